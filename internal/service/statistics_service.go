package service

import (
	"context"
	"math"
	"sort"
	"time"

	"postpone-diary/internal/locale"
	"postpone-diary/internal/model"
	"postpone-diary/internal/repository"
)

const (
	topReasonLimit = 5
	trailingWeeks  = 12
	weekLabel      = "02 Jan"
)

// HourCount is the number of postponements recorded in one hour of the day.
type HourCount struct {
	Hour  int
	Count int
}

// DayCount is the number of postponements recorded on one weekday.
type DayCount struct {
	Weekday time.Weekday
	Day     string
	Count   int
}

// ReasonCount is one entry of the most frequent postponement reasons.
type ReasonCount struct {
	Reason     string
	Count      int
	Percentage int
}

// WeekCount summarises one Monday-start week.
type WeekCount struct {
	Week  string
	Start time.Time
	Count int
}

// PeriodCount folds hour buckets into a coarser part of the day.
type PeriodCount struct {
	Label string
	Name  string
	Start int
	End   int
	Count int
}

// Statistics is a derived snapshot of the postponement log. It is never stored.
type Statistics struct {
	TotalPostponements int
	CategoryBreakdown  map[model.Category]int
	TimePatterns       []HourCount
	DayPatterns        []DayCount
	TopReasons         []ReasonCount
	LeastPostponedWeek *WeekCount
	// Orphaned counts postponements whose task no longer exists.
	Orphaned int
}

// HasData reports whether anything has been postponed yet. Renderers show a
// "no data" state instead of empty charts when it is false.
func (s Statistics) HasData() bool {
	return s.TotalPostponements > 0
}

var dayPeriods = []PeriodCount{
	{Label: "00:00-07:59", Name: "Gece/Sabah", Start: 0, End: 7},
	{Label: "08:00-15:59", Name: "Gündüz", Start: 8, End: 15},
	{Label: "16:00-23:59", Name: "Akşam/Gece", Start: 16, End: 23},
}

// PeriodCounts groups the hourly buckets into three eight-hour periods.
func (s Statistics) PeriodCounts() []PeriodCount {
	out := make([]PeriodCount, len(dayPeriods))
	copy(out, dayPeriods)
	for i := range out {
		for _, h := range s.TimePatterns {
			if h.Hour >= out[i].Start && h.Hour <= out[i].End {
				out[i].Count += h.Count
			}
		}
	}
	return out
}

// BuildStatistics aggregates the postponement log. Hours and weekdays are
// taken in now's location. A postponement whose task was deleted still
// counts everywhere except in the category breakdown.
func BuildStatistics(tasks []model.Task, postponements []model.Postponement, now time.Time) Statistics {
	loc := now.Location()

	categoryOf := make(map[string]model.Category, len(tasks))
	for _, task := range tasks {
		categoryOf[task.ID] = task.Category
	}

	stats := Statistics{
		TotalPostponements: len(postponements),
		CategoryBreakdown:  make(map[model.Category]int, len(model.Categories)),
		TimePatterns:       make([]HourCount, 24),
		DayPatterns:        make([]DayCount, 7),
		TopReasons:         []ReasonCount{},
	}
	for _, c := range model.Categories {
		stats.CategoryBreakdown[c] = 0
	}
	for h := range stats.TimePatterns {
		stats.TimePatterns[h].Hour = h
	}
	for i := range stats.DayPatterns {
		wd := time.Weekday((int(WeekStartsOn) + i) % 7)
		stats.DayPatterns[i] = DayCount{Weekday: wd, Day: locale.WeekdayName(wd, locale.Turkish)}
	}

	reasonCounts := make(map[string]int)
	var reasonOrder []string

	for _, p := range postponements {
		if category, ok := categoryOf[p.TaskID]; ok {
			stats.CategoryBreakdown[category]++
		} else {
			stats.Orphaned++
		}

		local := p.Date.In(loc)
		stats.TimePatterns[local.Hour()].Count++
		stats.DayPatterns[(int(local.Weekday())-int(WeekStartsOn)+7)%7].Count++

		if _, seen := reasonCounts[p.Reason]; !seen {
			reasonOrder = append(reasonOrder, p.Reason)
		}
		reasonCounts[p.Reason]++
	}

	stats.TopReasons = topReasons(reasonOrder, reasonCounts, len(postponements))
	if len(postponements) > 0 {
		stats.LeastPostponedWeek = leastPostponedWeek(postponements, now)
	}
	return stats
}

func topReasons(order []string, counts map[string]int, total int) []ReasonCount {
	out := make([]ReasonCount, 0, len(order))
	if total == 0 {
		return out
	}
	for _, reason := range order {
		count := counts[reason]
		out = append(out, ReasonCount{
			Reason:     reason,
			Count:      count,
			Percentage: int(math.Round(100 * float64(count) / float64(total))),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if len(out) > topReasonLimit {
		out = out[:topReasonLimit]
	}
	return out
}

// trailingWeekWindows returns the last twelve Monday-start weeks, oldest
// first. The newest window ends at now instead of at the end of the week.
func trailingWeekWindows(now time.Time) [][2]time.Time {
	current := StartOfWeek(now)
	windows := make([][2]time.Time, 0, trailingWeeks)
	for k := trailingWeeks - 1; k >= 0; k-- {
		start := current.AddDate(0, 0, -7*k)
		end := EndOfWeek(start)
		if k == 0 {
			end = now
		}
		windows = append(windows, [2]time.Time{start, end})
	}
	return windows
}

func leastPostponedWeek(postponements []model.Postponement, now time.Time) *WeekCount {
	var least *WeekCount
	for _, window := range trailingWeekWindows(now) {
		count := 0
		for _, p := range postponements {
			if within(p.Date, window[0], window[1]) {
				count++
			}
		}
		if least == nil || count < least.Count {
			least = &WeekCount{
				Week:  locale.Format(window[0], weekLabel, locale.Turkish),
				Start: window[0],
				Count: count,
			}
		}
	}
	return least
}

// Report is everything the statistics view renders.
type Report struct {
	Statistics  Statistics
	Cards       []MotivationCard
	Headline    string
	WeeklyCount int
}

// StatisticsService reads both collections and derives a fresh report on
// every call.
type StatisticsService struct {
	store *repository.Store
}

func NewStatisticsService(store *repository.Store) *StatisticsService {
	return &StatisticsService{store: store}
}

func (s *StatisticsService) Report(ctx context.Context, now time.Time) Report {
	tasks := s.store.ListTasks(ctx)
	postponements := s.store.ListPostponements(ctx)

	weekly := WeeklyPostponementCount(postponements, now)
	return Report{
		Statistics:  BuildStatistics(tasks, postponements, now),
		Cards:       MotivationCards(tasks, postponements, now),
		Headline:    MotivationalMessage(len(postponements), weekly),
		WeeklyCount: weekly,
	}
}
