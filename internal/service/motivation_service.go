package service

import (
	"fmt"
	"math"
	"time"

	"postpone-diary/internal/model"
)

// CardType drives how a motivation card is presented.
type CardType string

const (
	CardSuccess       CardType = "success"
	CardInfo          CardType = "info"
	CardWarning       CardType = "warning"
	CardEncouragement CardType = "encouragement"
)

// MotivationCard is a short derived message. Cards are recomputed on every
// view and never stored.
type MotivationCard struct {
	Title   string
	Message string
	Type    CardType
	Icon    string
}

const streakDays = 3

// WeeklyPostponementCount counts postponements inside the current
// Monday-start week.
func WeeklyPostponementCount(postponements []model.Postponement, now time.Time) int {
	start, end := StartOfWeek(now), EndOfWeek(now)
	count := 0
	for _, p := range postponements {
		if within(p.Date, start, end) {
			count++
		}
	}
	return count
}

// TrailingWeekCount counts postponements from the last seven days, now
// included. Milestone notifications use this window rather than the
// calendar week.
func TrailingWeekCount(postponements []model.Postponement, now time.Time) int {
	since := now.Add(-7 * day)
	count := 0
	for _, p := range postponements {
		if !p.Date.Before(since) {
			count++
		}
	}
	return count
}

// MotivationCards evaluates the card rules in a fixed order. The rules are
// independent, so zero to four cards come back. The result only depends on
// the arguments.
func MotivationCards(tasks []model.Task, postponements []model.Postponement, now time.Time) []MotivationCard {
	cards := []MotivationCard{}

	weekly := WeeklyPostponementCount(postponements, now)
	switch {
	case weekly == 0:
		cards = append(cards, MotivationCard{
			Title:   "🎉 Mükemmel Hafta!",
			Message: "Bu hafta hiç erteleme yapmadınız. Harika bir başlangıç!",
			Type:    CardSuccess,
			Icon:    "🎉",
		})
	case weekly <= 2:
		cards = append(cards, MotivationCard{
			Title:   "💪 İyi Gidiyorsunuz!",
			Message: fmt.Sprintf("Bu hafta sadece %d erteleme yaptınız. Küçük adımlarla ilerliyorsunuz!", weekly),
			Type:    CardEncouragement,
			Icon:    "💪",
		})
	case weekly <= 5:
		cards = append(cards, MotivationCard{
			Title:   "📊 Farkındalık",
			Message: fmt.Sprintf("Bu hafta %d erteleme yaptınız. Görevleri daha küçük parçalara bölmeyi deneyin.", weekly),
			Type:    CardInfo,
			Icon:    "📊",
		})
	}
	// More than five this week gets no card.

	weekStart := StartOfWeek(now)
	completed := 0
	for _, task := range tasks {
		if task.Status == model.StatusDone && within(task.UpdatedAt, weekStart, now) {
			completed++
		}
	}
	if completed > 0 {
		cards = append(cards, MotivationCard{
			Title:   "✅ Tamamlanan Görevler",
			Message: fmt.Sprintf("Bu hafta %d görevi tamamladınız. Tebrikler!", completed),
			Type:    CardSuccess,
			Icon:    "✅",
		})
	}

	total := len(postponements)
	if total > 0 {
		if float64(weekly) < averagePerWeek(tasks, total, now) {
			cards = append(cards, MotivationCard{
				Title:   "📈 İlerleme Var!",
				Message: "Bu hafta ortalamanın altında erteleme yaptınız. İyi gidiyorsunuz!",
				Type:    CardEncouragement,
				Icon:    "📈",
			})
		}

		latest := postponements[0].Date
		for _, p := range postponements[1:] {
			if p.Date.After(latest) {
				latest = p.Date
			}
		}
		if days := wholeDays(latest, now); days >= streakDays {
			cards = append(cards, MotivationCard{
				Title:   "🔥 Seri Devam Ediyor!",
				Message: fmt.Sprintf("%d gündür erteleme yapmıyorsunuz. Harika!", days),
				Type:    CardSuccess,
				Icon:    "🔥",
			})
		}
	}

	return cards
}

// averagePerWeek approximates the historical weekly postponement rate since
// the earliest task was created.
func averagePerWeek(tasks []model.Task, total int, now time.Time) float64 {
	first := now
	for _, task := range tasks {
		if task.CreatedAt.Before(first) {
			first = task.CreatedAt
		}
	}
	weeks := math.Max(1, math.Ceil(float64(now.Sub(first))/float64(7*day)))
	return float64(total) / weeks
}

// MotivationalMessage is the one-line headline of the statistics view.
func MotivationalMessage(total, weekly int) string {
	switch {
	case total == 0:
		return "Henüz erteleme kaydı yok. Görevlerinizi takip etmeye başlayın!"
	case weekly == 0:
		return "Bu hafta hiç erteleme yapmadınız. Mükemmel! 🎉"
	case weekly <= 2:
		return fmt.Sprintf("Bu hafta sadece %d erteleme yaptınız. İyi gidiyorsunuz! 💪", weekly)
	case weekly <= 5:
		return fmt.Sprintf("Bu hafta %d erteleme yaptınız. Görevleri daha küçük parçalara bölmeyi deneyin. 📊", weekly)
	default:
		return fmt.Sprintf("Bu hafta %d erteleme yaptınız. İstatistiklerinize bakarak örüntüleri görebilirsiniz. 🤔", weekly)
	}
}
