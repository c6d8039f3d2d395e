package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postpone-diary/internal/config"
	"postpone-diary/internal/model"
	"postpone-diary/internal/repository"
	"postpone-diary/internal/service"
)

type fakeAPI struct {
	sent []tgbotapi.MessageConfig
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	ch := make(chan tgbotapi.Update)
	close(ch)
	return ch
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) lastText() string {
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1].Text
}

func (f *fakeAPI) sentTo(chatID int64) []string {
	var out []string
	for _, msg := range f.sent {
		if msg.ChatID == chatID {
			out = append(out, msg.Text)
		}
	}
	return out
}

// fakeNotifier grants permission the same way LocalNotifier does and counts
// the reminders that are currently registered.
type fakeNotifier struct {
	enabled   bool
	recipient service.Sender
	scheduled int
	active    int
}

func (n *fakeNotifier) RequestPermission(context.Context) bool {
	return n.enabled && n.recipient != nil && n.recipient.HasRecipient()
}

func (n *fakeNotifier) ScheduleRecurring(context.Context, service.Reminder) (service.ReminderHandle, error) {
	n.scheduled++
	n.active++
	return service.ReminderHandle(n.scheduled), nil
}

func (n *fakeNotifier) CancelAll(context.Context) error {
	n.active = 0
	return nil
}

func (n *fakeNotifier) SendImmediate(context.Context, string, string) error {
	return nil
}

func (n *fakeNotifier) SetEnabled(enabled bool) { n.enabled = enabled }

func (n *fakeNotifier) Enabled() bool { return n.enabled }

type testBot struct {
	*Bot
	api           *fakeAPI
	notifier      *fakeNotifier
	notifications *service.NotificationService
	tasks         *service.TaskService
}

func newTestBot(t *testing.T, owner int64) *testBot {
	t.Helper()
	store := repository.NewStore(repository.NewMemoryKV())
	notifier := &fakeNotifier{enabled: true}
	notifications := service.NewNotificationService(notifier, store, "09:00", nil)
	tasks := service.NewTaskService(store, notifications)
	api := &fakeAPI{}

	b := newBot(api, tasks, service.NewStatisticsService(store), notifier, notifications, &config.Config{
		OwnerChatID: owner,
		Location:    time.UTC,
	})
	notifier.recipient = b
	return &testBot{Bot: b, api: api, notifier: notifier, notifications: notifications, tasks: tasks}
}

func textMessage(chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: chatID, FirstName: "Deniz"},
		Chat: &tgbotapi.Chat{ID: chatID, Type: "private"},
		Text: text,
	}
}

func commandMessage(chatID int64, text string) *tgbotapi.Message {
	msg := textMessage(chatID, text)
	cmd, _, _ := strings.Cut(text, " ")
	msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	return msg
}

func (tb *testBot) say(t *testing.T, msg *tgbotapi.Message) string {
	t.Helper()
	require.NoError(t, tb.handleMessage(context.Background(), msg))
	return tb.api.lastText()
}

func TestBot_StartClaimsOwnershipAndSchedulesReminder(t *testing.T) {
	tb := newTestBot(t, 0)
	assert.False(t, tb.HasRecipient())

	reply := tb.say(t, commandMessage(42, "/start"))
	assert.Contains(t, reply, "Merhaba, Deniz")
	assert.True(t, tb.HasRecipient())
	assert.True(t, tb.isOwner(42))
	assert.Equal(t, 1, tb.notifier.active)

	// A second /start from the owner does not stack reminders.
	tb.say(t, commandMessage(42, "/start"))
	assert.Equal(t, 1, tb.notifier.scheduled)
}

func TestBot_RequiresStartBeforeUse(t *testing.T) {
	tb := newTestBot(t, 0)

	reply := tb.say(t, commandMessage(7, "/newtask"))
	assert.Contains(t, reply, "/start")
	assert.False(t, tb.hasConversation(7))
	assert.False(t, tb.HasRecipient())

	tb.say(t, textMessage(7, "Rapor yaz"))
	open, _ := tb.tasks.ListTasks(context.Background())
	assert.Empty(t, open)

	tb.say(t, commandMessage(7, "/start"))
	reply = tb.say(t, commandMessage(8, "/newtask"))
	assert.Contains(t, reply, "başka bir kullanıcıya ait")
	assert.False(t, tb.hasConversation(8))
}

func TestBot_CallbacksFromStrangersAreIgnored(t *testing.T) {
	tb := newTestBot(t, 1)
	task, err := tb.tasks.AddTask(context.Background(), service.TaskInput{Title: "spor"}, time.Now())
	require.NoError(t, err)

	cb := &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: 9},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 9, Type: "private"}},
		Data:    cbDonePrefix + task.ID,
	}
	require.NoError(t, tb.handleCallback(context.Background(), cb))

	got, err := tb.tasks.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestBot_NewTaskRejectsEmptyTitle(t *testing.T) {
	tb := newTestBot(t, 1)

	tb.say(t, commandMessage(1, "/newtask"))
	reply := tb.say(t, textMessage(1, "   "))
	assert.Contains(t, reply, "Lütfen bir görev adı girin")
	require.True(t, tb.hasConversation(1))
	assert.Equal(t, stageTitle, tb.getConversation(1).stage)

	// A title that reads like a cancel word is still a title.
	tb.say(t, textMessage(1, "iptal"))
	require.True(t, tb.hasConversation(1))
	assert.Equal(t, stageCategory, tb.getConversation(1).stage)

	tb.say(t, textMessage(1, "💼 İş"))
	tb.say(t, textMessage(1, "Atla"))
	tb.say(t, textMessage(1, "Yorgunum"))
	assert.False(t, tb.hasConversation(1))

	open, _ := tb.tasks.ListTasks(context.Background())
	require.Len(t, open, 1)
	assert.Equal(t, "iptal", open[0].Title)
	assert.Equal(t, model.CategoryWork, open[0].Category)
	assert.Equal(t, model.StatusPostponed, open[0].Status)
	assert.Nil(t, open[0].Deadline)
}

func TestBot_CancelButtonAbortsDialog(t *testing.T) {
	tb := newTestBot(t, 1)

	tb.say(t, commandMessage(1, "/newtask"))
	reply := tb.say(t, textMessage(1, btnCancelDialog))
	assert.Contains(t, reply, "iptal edildi")
	assert.False(t, tb.hasConversation(1))
}

func TestBot_PostponeRejectsEmptyReason(t *testing.T) {
	tb := newTestBot(t, 1)
	ctx := context.Background()
	task, err := tb.tasks.AddTask(ctx, service.TaskInput{Title: "rapor"}, time.Now())
	require.NoError(t, err)

	reply := tb.say(t, commandMessage(1, "/postpone 1"))
	assert.Contains(t, reply, "neden erteliyorsunuz")

	tb.say(t, textMessage(1, model.ReasonOther))
	assert.Equal(t, stagePostponeCustomReason, tb.getConversation(1).stage)

	reply = tb.say(t, textMessage(1, "  "))
	assert.Contains(t, reply, "Lütfen erteleme nedenini yazın")
	assert.Empty(t, tb.tasks.History(ctx, task.ID))

	tb.say(t, textMessage(1, "Toplantı uzadı"))
	history := tb.tasks.History(ctx, task.ID)
	require.Len(t, history, 1)
	assert.Equal(t, "Toplantı uzadı", history[0].Reason)
	assert.Contains(t, strings.Join(tb.api.sentTo(1), "\n"), "1. kez ertelendi")
}

func TestBot_NotifyOffDropsWeeklyReminder(t *testing.T) {
	tb := newTestBot(t, 1)
	require.NoError(t, tb.notifications.ScheduleWeeklyCheck(context.Background(), time.Now()))
	require.Equal(t, 1, tb.notifier.active)

	reply := tb.say(t, commandMessage(1, "/notify off"))
	assert.Contains(t, reply, "kapatıldı")
	assert.False(t, tb.notifier.Enabled())
	assert.Zero(t, tb.notifier.active)
	assert.Equal(t, 1, tb.notifier.scheduled)

	reply = tb.say(t, commandMessage(1, "/notify on"))
	assert.Contains(t, reply, "açıldı")
	assert.Equal(t, 1, tb.notifier.active)
	assert.Equal(t, 2, tb.notifier.scheduled)

	reply = tb.say(t, commandMessage(1, "/notify"))
	assert.Contains(t, reply, "açık")
}

func TestBot_SendNotification(t *testing.T) {
	tb := newTestBot(t, 0)
	require.NoError(t, tb.SendNotification(context.Background(), "Başlık", "Gövde"))
	assert.Empty(t, tb.api.sent)

	tb.say(t, commandMessage(5, "/start"))
	require.NoError(t, tb.SendNotification(context.Background(), "Başlık", "<Gövde>"))
	assert.Equal(t, "🔔 <b>Başlık</b>\n&lt;Gövde&gt;", tb.api.lastText())
	assert.Equal(t, int64(5), tb.api.sent[len(tb.api.sent)-1].ChatID)
}
