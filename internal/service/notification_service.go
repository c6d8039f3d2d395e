package service

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"postpone-diary/internal/model"
)

const (
	weeklyCheckTitle = "Haftalık Değerlendirme"
	weeklyCheckBody  = "Bu haftaki erteleme kayıtlarınızı kontrol etmek ister misiniz?"
	jobTimeout       = 30 * time.Second
)

// Milestones are the trailing-week postponement counts that trigger an
// immediate notification.
var Milestones = []int{3, 5, 10}

// Reminder describes a recurring weekly notification.
type Reminder struct {
	Title   string
	Body    string
	Weekday time.Weekday
	Time    string
	// AfterSend runs after the reminder itself was delivered.
	AfterSend func(ctx context.Context)
}

// ReminderHandle identifies a scheduled reminder.
type ReminderHandle int

// Notifier is the notification platform. Delivery is best-effort.
type Notifier interface {
	RequestPermission(ctx context.Context) bool
	ScheduleRecurring(ctx context.Context, r Reminder) (ReminderHandle, error)
	CancelAll(ctx context.Context) error
	SendImmediate(ctx context.Context, title, body string) error
}

// Sender pushes a notification to the owner.
type Sender interface {
	SendNotification(ctx context.Context, title, body string) error
	HasRecipient() bool
}

// LocalNotifier implements Notifier with cron for recurring reminders and a
// Sender for delivery.
type LocalNotifier struct {
	scheduler *SchedulerService
	enabled   atomic.Bool

	mu      sync.Mutex
	sender  Sender
	entries []cron.EntryID
}

func NewLocalNotifier(scheduler *SchedulerService, sender Sender, enabled bool) *LocalNotifier {
	n := &LocalNotifier{scheduler: scheduler, sender: sender}
	n.enabled.Store(enabled)
	return n
}

// AttachSender sets the delivery channel once it exists; the bot is built
// after the services that notify through it.
func (n *LocalNotifier) AttachSender(sender Sender) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sender = sender
}

func (n *LocalNotifier) currentSender() Sender {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sender
}

// SetEnabled toggles delivery; a disabled notifier denies permission.
func (n *LocalNotifier) SetEnabled(enabled bool) {
	n.enabled.Store(enabled)
}

func (n *LocalNotifier) Enabled() bool {
	return n.enabled.Load()
}

// RequestPermission is granted while notifications are enabled and there
// is someone to deliver them to.
func (n *LocalNotifier) RequestPermission(_ context.Context) bool {
	sender := n.currentSender()
	return n.enabled.Load() && sender != nil && sender.HasRecipient()
}

func (n *LocalNotifier) ScheduleRecurring(_ context.Context, r Reminder) (ReminderHandle, error) {
	id, err := n.scheduler.ScheduleWeekly(r.Weekday, r.Time, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if !n.RequestPermission(ctx) {
			return
		}
		if err := n.SendImmediate(ctx, r.Title, r.Body); err != nil {
			log.Printf("weekly reminder: %v", err)
			return
		}
		if r.AfterSend != nil {
			r.AfterSend(ctx)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("schedule reminder: %w", err)
	}

	n.mu.Lock()
	n.entries = append(n.entries, id)
	n.mu.Unlock()
	return ReminderHandle(id), nil
}

func (n *LocalNotifier) CancelAll(_ context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, id := range n.entries {
		n.scheduler.Remove(id)
	}
	n.entries = nil
	return nil
}

func (n *LocalNotifier) SendImmediate(ctx context.Context, title, body string) error {
	sender := n.currentSender()
	if sender == nil {
		return nil
	}
	return sender.SendNotification(ctx, title, body)
}

// Message is a push notification text.
type Message struct {
	Title string
	Body  string
}

type postponementLister interface {
	ListPostponements(ctx context.Context) []model.Postponement
}

// NotificationService schedules the weekly reminder and sends milestone
// messages. It never fails the caller because of the platform: denied
// permission and delivery errors are logged and dropped.
type NotificationService struct {
	notifier     Notifier
	store        postponementLister
	reminderTime string

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewNotificationService(notifier Notifier, store postponementLister, reminderTime string, rnd *rand.Rand) *NotificationService {
	if reminderTime == "" {
		reminderTime = "09:00"
	}
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return &NotificationService{
		notifier:     notifier,
		store:        store,
		reminderTime: reminderTime,
		rnd:          rnd,
	}
}

// ScheduleWeeklyCheck replaces any recurring reminder with a single one
// every Monday at the configured time. Only an invalid reminder time is
// reported as an error.
func (s *NotificationService) ScheduleWeeklyCheck(ctx context.Context, now time.Time) error {
	if err := s.notifier.CancelAll(ctx); err != nil {
		log.Printf("cancel reminders: %v", err)
	}

	if !s.notifier.RequestPermission(ctx) {
		log.Println("[info] notifications not permitted, weekly reminder skipped")
		return nil
	}

	hour, minute, err := ParseClock(s.reminderTime)
	if err != nil {
		return err
	}

	_, err = s.notifier.ScheduleRecurring(ctx, Reminder{
		Title:   weeklyCheckTitle,
		Body:    weeklyCheckBody,
		Weekday: WeekStartsOn,
		Time:    s.reminderTime,
		AfterSend: func(jobCtx context.Context) {
			s.CheckAndSendWeeklySummary(jobCtx, time.Now())
		},
	})
	if err != nil {
		return err
	}

	next := NextWeeklyAnchor(now, WeekStartsOn, hour, minute)
	log.Printf("[info] weekly reminder scheduled, next at %s", next.Format(time.RFC3339))
	return nil
}

// NotifyMilestone sends a motivational message when the trailing-week count
// equals one of the milestones. It reports whether a message was attempted.
func (s *NotificationService) NotifyMilestone(ctx context.Context, postponements []model.Postponement, now time.Time) bool {
	count := TrailingWeekCount(postponements, now)
	for _, milestone := range Milestones {
		if count == milestone {
			log.Printf("[info] postponement milestone reached count=%d", count)
			s.SendMotivationalMessage(ctx, count)
			return true
		}
	}
	return false
}

// CheckAndSendWeeklySummary sends a motivational message for the last seven
// days if anything was postponed in that time.
func (s *NotificationService) CheckAndSendWeeklySummary(ctx context.Context, now time.Time) {
	count := TrailingWeekCount(s.store.ListPostponements(ctx), now)
	if count > 0 {
		s.SendMotivationalMessage(ctx, count)
	}
}

// SendMotivationalMessage picks a random message for the count bracket and
// delivers it immediately.
func (s *NotificationService) SendMotivationalMessage(ctx context.Context, count int) {
	if !s.notifier.RequestPermission(ctx) {
		return
	}
	pool := MotivationalMessages(count)
	if len(pool) == 0 {
		return
	}

	s.mu.Lock()
	msg := pool[s.rnd.IntN(len(pool))]
	s.mu.Unlock()

	if err := s.notifier.SendImmediate(ctx, msg.Title, msg.Body); err != nil {
		log.Printf("send motivational message: %v", err)
	}
}

// MotivationalMessages returns the message pool for a weekly count. The
// brackets match the in-app cards: 0, 1-2, 3-5 and more than 5.
func MotivationalMessages(count int) []Message {
	switch {
	case count <= 0:
		return []Message{
			{Title: "🎉 Harika!", Body: "Bu hafta hiç erteleme yapmadınız. Devam edin!"},
		}
	case count <= 2:
		return []Message{
			{Title: "💪 İyi Gidiyorsunuz!", Body: fmt.Sprintf("Bu hafta sadece %d görev ertelediniz. Küçük adımlarla ilerlemeye devam edin!", count)},
			{Title: "🌟 Güzel!", Body: fmt.Sprintf("%d erteleme çok az. Her gün biraz daha ilerleyebilirsiniz!", count)},
		}
	case count <= 5:
		return []Message{
			{Title: "📊 Farkındalık", Body: fmt.Sprintf("Bu hafta %d görev ertelediniz. Belki bazı görevleri daha küçük parçalara bölebilirsiniz?", count)},
			{Title: "💡 Öneri", Body: fmt.Sprintf("%d erteleme yaptınız. En zor görevi 5 dakika yapmayı deneyin, başlamak yarısıdır!", count)},
		}
	default:
		return []Message{
			{Title: "🤔 Düşünelim", Body: fmt.Sprintf("Bu hafta %d görev ertelediniz. Nedenlerini gözden geçirmek ister misiniz?", count)},
			{Title: "📝 Not", Body: fmt.Sprintf("%d erteleme kaydettiniz. İstatistiklerinize bakarak örüntüleri görebilirsiniz.", count)},
		}
	}
}
