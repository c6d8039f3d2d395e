package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"postpone-diary/internal/config"
	"postpone-diary/internal/model"
	"postpone-diary/internal/repository"
	"postpone-diary/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageCategory
	stageDeadline
	stageInitialReason
	stageInitialCustomReason
	stagePostponeReason
	stagePostponeCustomReason
)

const (
	cbDonePrefix     = "done:"
	cbPostponePrefix = "postpone:"
	cbDeletePrefix   = "delete:"
	cbDropPrefix     = "drop:"
)

type conversationState struct {
	stage  conversationStage
	input  service.TaskInput
	taskID string
}

type confirmationAction int

const (
	actionDelete confirmationAction = iota
	actionCancel
)

type confirmationRequest struct {
	taskID string
	action confirmationAction
}

// botAPI is the part of *tgbotapi.BotAPI the bot talks to.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// NotificationToggle switches notification delivery on and off.
type NotificationToggle interface {
	SetEnabled(enabled bool)
	Enabled() bool
}

// WeeklyScheduler (re)registers the weekly reminder.
type WeeklyScheduler interface {
	ScheduleWeeklyCheck(ctx context.Context, now time.Time) error
}

// Bot aggregates Telegram API with services. It also delivers notifications
// to the owner chat.
type Bot struct {
	api           botAPI
	taskSvc       *service.TaskService
	statsSvc      *service.StatisticsService
	notifier      NotificationToggle
	notifications WeeklyScheduler
	config        *config.Config
	location      *time.Location
	ownerChatID   atomic.Int64
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

func New(token string, taskSvc *service.TaskService, statsSvc *service.StatisticsService, notifier NotificationToggle, notifications WeeklyScheduler, cfg *config.Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return newBot(api, taskSvc, statsSvc, notifier, notifications, cfg), nil
}

func newBot(api botAPI, taskSvc *service.TaskService, statsSvc *service.StatisticsService, notifier NotificationToggle, notifications WeeklyScheduler, cfg *config.Config) *Bot {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	b := &Bot{
		api:           api,
		taskSvc:       taskSvc,
		statsSvc:      statsSvc,
		notifier:      notifier,
		notifications: notifications,
		config:        cfg,
		location:      loc,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}
	b.ownerChatID.Store(cfg.OwnerChatID)
	return b
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(botCommands()...)); err != nil {
		log.Printf("set commands: %v", err)
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("handle message: %v", err)
			}
		}
	}

	return nil
}

// SendNotification pushes a notification into the owner chat. Without an
// owner the message is dropped.
func (b *Bot) SendNotification(_ context.Context, title, body string) error {
	chatID := b.ownerChatID.Load()
	if chatID == 0 {
		return nil
	}
	return b.sendText(chatID, formatNotification(title, body))
}

// HasRecipient reports whether an owner chat is known.
func (b *Bot) HasRecipient() bool {
	return b.ownerChatID.Load() != 0
}

func (b *Bot) now() time.Time {
	return time.Now().In(b.location)
}

func (b *Bot) isOwner(chatID int64) bool {
	return b.ownerChatID.Load() == chatID
}

// claimOwner makes chatID the owner if nobody owns the diary yet and
// reschedules the weekly reminder for the new recipient.
func (b *Bot) claimOwner(ctx context.Context, chatID int64) {
	if !b.ownerChatID.CompareAndSwap(0, chatID) {
		return
	}
	log.Printf("[info] diary claimed by chat=%d", chatID)
	b.rescheduleReminders(ctx)
}

func (b *Bot) rescheduleReminders(ctx context.Context) {
	if b.notifications == nil {
		return
	}
	if err := b.notifications.ScheduleWeeklyCheck(ctx, b.now()); err != nil {
		log.Printf("schedule weekly check: %v", err)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	// Until someone sends /start the diary has no owner and accepts
	// nothing else.
	owner := b.ownerChatID.Load()
	isStart := msg.IsCommand() && msg.Command() == "start"
	switch {
	case owner == 0 && !isStart:
		return b.sendWithReplyMarkup(msg.Chat.ID, "👋 Başlamak için önce /start gönderin.", tgbotapi.NewRemoveKeyboard(true))
	case owner != 0 && owner != msg.Chat.ID:
		log.Printf("[info] ignored message from foreign chat=%d", msg.Chat.ID)
		return b.sendWithReplyMarkup(msg.Chat.ID, "🔒 Bu günlük başka bir kullanıcıya ait.", tgbotapi.NewRemoveKeyboard(true))
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ İşlem iptal edildi.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if b.hasConversation(msg.From.ID) {
		log.Printf("[info] conversation step %d from %d", b.getConversation(msg.From.ID).stage, msg.From.ID)
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "Mesajı anlayamadım. Görev eklemek için /newtask, komutlar için /help yazın.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "newtask":
		return b.startNewTaskConversation(msg)
	case "tasks":
		return b.sendTaskList(ctx, msg.Chat.ID)
	case "postpone":
		return b.handlePostponeCommand(ctx, msg)
	case "done":
		return b.handleDone(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "rename":
		return b.handleRename(ctx, msg)
	case "history":
		return b.handleHistory(ctx, msg)
	case "stats":
		return b.handleStats(ctx, msg)
	case "notify":
		return b.handleNotify(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ İşlem iptal edildi.")
	default:
		return b.sendText(msg.Chat.ID, "Bu komutu tanımıyorum. /help yazarak komutlara bakabilirsiniz.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	b.claimOwner(ctx, msg.Chat.ID)

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "dostum"
	}

	text := fmt.Sprintf(
		"👋 Merhaba, %s!\n<b>Ben erteleme günlüğünüzüm.</b> Görevlerinizi, neden ertelediğinizi ve erteleme alışkanlıklarınızı takip ederim.\n\n%s",
		escape(name), helpText(),
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, "ℹ️ <b>Komutlar</b>\n"+helpText())
}

func (b *Bot) startNewTaskConversation(msg *tgbotapi.Message) error {
	log.Printf("[info] start new task conversation user=%d", msg.From.ID)
	b.clearConfirmation(msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 Yeni görev.\n<b>Adım 1:</b> Görevin adı ne?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "⚠️ Lütfen bir görev adı girin.", cancelKeyboard())
		}
		state.input.Title = text
		state.stage = stageCategory
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏷 <b>Adım 2:</b> Bir kategori seçin.", categoryKeyboard())
	case stageCategory:
		category, ok := model.ParseCategory(text)
		if !ok {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Listeden bir kategori seçin.", categoryKeyboard())
		}
		state.input.Category = category
		state.stage = stageDeadline
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏰ <b>Adım 3:</b> Son tarihi <code>2026-11-30</code> biçiminde yazın (veya «Atla»).", skipKeyboard())
	case stageDeadline:
		if !isSkipInput(text) {
			deadline, err := parseDeadline(text, b.location)
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Tarihi anlayamadım. <code>2026-11-30</code> biçimini kullanın veya «Atla»ya basın.", skipKeyboard())
			}
			state.input.Deadline = &deadline
		}
		state.stage = stageInitialReason
		return b.sendWithReplyMarkup(msg.Chat.ID, "🤔 <b>Adım 4:</b> Bu görevi şimdiden erteliyor musunuz? Nedenini seçin (veya «Atla»).", reasonKeyboard(true))
	case stageInitialReason:
		switch {
		case isSkipInput(text):
			state.input.InitialPostponeReason = ""
		case isOtherReason(text):
			state.stage = stageInitialCustomReason
			return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Nedeninizi yazın.", cancelKeyboard())
		default:
			state.input.InitialPostponeReason = text
		}
		return b.finishTaskCreation(ctx, msg, state.input)
	case stageInitialCustomReason:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "⚠️ Lütfen erteleme nedenini yazın.", cancelKeyboard())
		}
		state.input.InitialPostponeReason = text
		return b.finishTaskCreation(ctx, msg, state.input)
	case stagePostponeReason:
		if isOtherReason(text) {
			state.stage = stagePostponeCustomReason
			return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Nedeninizi yazın.", cancelKeyboard())
		}
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "⚠️ Lütfen bir erteleme nedeni seçin veya yazın.", reasonKeyboard(false))
		}
		return b.finishPostponement(ctx, msg, state.taskID, text)
	case stagePostponeCustomReason:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "⚠️ Lütfen erteleme nedenini yazın.", cancelKeyboard())
		}
		return b.finishPostponement(ctx, msg, state.taskID, text)
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Diyalog sıfırlandı. /newtask ile yeniden deneyin.")
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, msg *tgbotapi.Message, input service.TaskInput) error {
	b.clearConversation(msg.From.ID)

	task, err := b.taskSvc.AddTask(ctx, input, b.now())
	if err != nil {
		if errors.Is(err, service.ErrTitleRequired) {
			return b.sendText(msg.Chat.ID, "⚠️ Lütfen bir görev adı girin.")
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Görev kaydedilemedi: %s", escape(err.Error())))
	}

	log.Printf("[info] task created id=%s category=%s status=%s", task.ID, task.Category, task.Status)

	if err := b.sendTextWithRemove(msg.Chat.ID, formatTaskSummary(*task, b.location)); err != nil {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID)
}

func (b *Bot) startPostponement(ctx context.Context, chatID, userID int64, taskID string) error {
	task, err := b.taskSvc.GetTask(ctx, taskID)
	if err != nil {
		return b.sendTaskError(chatID, err)
	}
	if !task.IsOpen() {
		return b.sendText(chatID, "Bu görev kapatılmış, ertelenemez.")
	}

	b.clearConfirmation(userID)
	b.setConversation(userID, &conversationState{stage: stagePostponeReason, taskID: task.ID})
	text := fmt.Sprintf("⏸ «%s» görevini neden erteliyorsunuz?", escape(task.Title))
	return b.sendWithReplyMarkup(chatID, text, reasonKeyboard(false))
}

func (b *Bot) finishPostponement(ctx context.Context, msg *tgbotapi.Message, taskID, reason string) error {
	b.clearConversation(msg.From.ID)

	postponement, err := b.taskSvc.PostponeTask(ctx, taskID, reason, b.now())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrReasonRequired):
			return b.sendText(msg.Chat.ID, "⚠️ Lütfen bir erteleme nedeni seçin veya yazın.")
		case errors.Is(err, service.ErrTaskClosed):
			return b.sendText(msg.Chat.ID, "Bu görev kapatılmış, ertelenemez.")
		default:
			return b.sendTaskError(msg.Chat.ID, err)
		}
	}

	text := fmt.Sprintf("📝 Kaydedildi. Bu görev %d. kez ertelendi.\nNeden: <i>%s</i>", postponement.PostponementNumber, escape(postponement.Reason))
	if err := b.sendTextWithRemove(msg.Chat.ID, text); err != nil {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID)
}

func (b *Bot) handlePostponeCommand(ctx context.Context, msg *tgbotapi.Message) error {
	task, ok, err := b.taskFromArgs(ctx, msg, "/postpone 2")
	if !ok {
		return err
	}
	return b.startPostponement(ctx, msg.Chat.ID, msg.From.ID, task.ID)
}

func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message) error {
	task, ok, err := b.taskFromArgs(ctx, msg, "/done 2")
	if !ok {
		return err
	}
	return b.completeTaskAndRefresh(ctx, msg.Chat.ID, task.ID)
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	task, ok, err := b.taskFromArgs(ctx, msg, "/delete 2")
	if !ok {
		return err
	}
	return b.askConfirmation(ctx, msg.Chat.ID, msg.From.ID, task.ID, actionDelete)
}

func (b *Bot) handleRename(ctx context.Context, msg *tgbotapi.Message) error {
	index, title, found := strings.Cut(strings.TrimSpace(msg.CommandArguments()), " ")
	if index == "" {
		return b.sendText(msg.Chat.ID, "Görev numarasını ve yeni adı yazın: /rename 2 Rapor yaz")
	}
	if !found || strings.TrimSpace(title) == "" {
		return b.sendText(msg.Chat.ID, "⚠️ Lütfen yeni bir görev adı girin.")
	}

	task, err := pickTask(b.openTasks(ctx), index)
	if err != nil {
		return b.sendText(msg.Chat.ID, taskIndexHint(err))
	}

	renamed, err := b.taskSvc.RenameTask(ctx, task.ID, title, b.now())
	if err != nil {
		if errors.Is(err, service.ErrTitleRequired) {
			return b.sendText(msg.Chat.ID, "⚠️ Lütfen yeni bir görev adı girin.")
		}
		return b.sendTaskError(msg.Chat.ID, err)
	}
	log.Printf("[info] task renamed id=%s", renamed.ID)
	return b.sendText(msg.Chat.ID, fmt.Sprintf("✏️ Görev yeniden adlandırıldı: «%s».", escape(renamed.Title)))
}

func (b *Bot) handleHistory(ctx context.Context, msg *tgbotapi.Message) error {
	task, ok, err := b.taskFromArgs(ctx, msg, "/history 2")
	if !ok {
		return err
	}
	history := b.taskSvc.History(ctx, task.ID)
	return b.sendText(msg.Chat.ID, formatHistory(*task, history, b.location))
}

func (b *Bot) handleStats(ctx context.Context, msg *tgbotapi.Message) error {
	report := b.statsSvc.Report(ctx, b.now())
	log.Printf("[info] statistics requested total=%d weekly=%d", report.Statistics.TotalPostponements, report.WeeklyCount)
	return b.sendText(msg.Chat.ID, formatReport(report))
}

func (b *Bot) handleNotify(ctx context.Context, msg *tgbotapi.Message) error {
	if b.notifier == nil {
		return b.sendText(msg.Chat.ID, "Bildirimler bu kurulumda kullanılamıyor.")
	}

	switch strings.ToLower(strings.TrimSpace(msg.CommandArguments())) {
	case "":
		state := "kapalı"
		if b.notifier.Enabled() {
			state = "açık"
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("🔔 Bildirimler şu an %s. Değiştirmek için /notify on veya /notify off yazın.", state))
	case "on", "açık", "ac":
		b.notifier.SetEnabled(true)
	case "off", "kapalı", "kapali":
		b.notifier.SetEnabled(false)
	default:
		return b.sendText(msg.Chat.ID, "Kullanım: /notify on veya /notify off")
	}

	b.rescheduleReminders(ctx)
	if b.notifier.Enabled() {
		return b.sendText(msg.Chat.ID, "🔔 Bildirimler açıldı. Her pazartesi haftalık değerlendirme göndereceğim.")
	}
	return b.sendText(msg.Chat.ID, "🔕 Bildirimler kapatıldı.")
}

// taskFromArgs resolves "/cmd <n>" against the numbered open-task list. When
// ok is false the user has already been answered and err is the send result.
func (b *Bot) taskFromArgs(ctx context.Context, msg *tgbotapi.Message, example string) (*model.Task, bool, error) {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return nil, false, b.sendText(msg.Chat.ID, fmt.Sprintf("Görev numarasını yazın: %s", example))
	}
	task, err := pickTask(b.openTasks(ctx), args)
	if err != nil {
		return nil, false, b.sendText(msg.Chat.ID, taskIndexHint(err))
	}
	return task, true, nil
}

func (b *Bot) openTasks(ctx context.Context) []model.Task {
	open, _ := b.taskSvc.ListTasks(ctx)
	sortOpenTasks(open)
	return open
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		if req.action == actionDelete {
			return b.deleteTaskAndRefresh(ctx, msg.Chat.ID, req.taskID)
		}
		return b.cancelTaskAndRefresh(ctx, msg.Chat.ID, req.taskID)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendMenuPlaceholder(msg.Chat.ID)
	default:
		prompt := "Silme işlemini onaylayın veya vazgeçin."
		if req.action == actionCancel {
			prompt = "Görevi iptal etmeyi onaylayın veya vazgeçin."
		}
		return b.sendWithReplyMarkup(msg.Chat.ID, prompt, confirmKeyboard())
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	chatID := cb.Message.Chat.ID
	if !b.isOwner(chatID) {
		return nil
	}

	data := cb.Data
	log.Printf("[info] callback user=%d data=%s", cb.From.ID, data)

	switch {
	case strings.HasPrefix(data, cbDonePrefix):
		return b.completeTaskAndRefresh(ctx, chatID, strings.TrimPrefix(data, cbDonePrefix))
	case strings.HasPrefix(data, cbPostponePrefix):
		return b.startPostponement(ctx, chatID, cb.From.ID, strings.TrimPrefix(data, cbPostponePrefix))
	case strings.HasPrefix(data, cbDeletePrefix):
		return b.askConfirmation(ctx, chatID, cb.From.ID, strings.TrimPrefix(data, cbDeletePrefix), actionDelete)
	case strings.HasPrefix(data, cbDropPrefix):
		return b.askConfirmation(ctx, chatID, cb.From.ID, strings.TrimPrefix(data, cbDropPrefix), actionCancel)
	default:
		return nil
	}
}

func (b *Bot) askConfirmation(ctx context.Context, chatID, userID int64, taskID string, action confirmationAction) error {
	task, err := b.taskSvc.GetTask(ctx, taskID)
	if err != nil {
		return b.sendTaskError(chatID, err)
	}

	text := fmt.Sprintf("🗑 «%s» görevi silinsin mi? Erteleme kayıtları istatistiklerde kalır.", escape(task.Title))
	if action == actionCancel {
		if !task.IsOpen() {
			return b.sendText(chatID, "Bu görev zaten kapatılmış.")
		}
		text = fmt.Sprintf("✖️ «%s» görevi iptal edilsin mi?", escape(task.Title))
	}

	b.clearConversation(userID)
	b.setConfirmation(userID, confirmationRequest{taskID: task.ID, action: action})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) completeTaskAndRefresh(ctx context.Context, chatID int64, taskID string) error {
	task, err := b.taskSvc.GetTask(ctx, taskID)
	if err != nil {
		return b.sendTaskError(chatID, err)
	}
	if task.Status == model.StatusDone {
		return b.sendText(chatID, "Bu görev zaten tamamlandı.")
	}

	task, err = b.taskSvc.CompleteTask(ctx, taskID, b.now())
	if err != nil {
		return b.sendTaskError(chatID, err)
	}

	log.Printf("[info] task completed id=%s", task.ID)
	if err := b.sendText(chatID, fmt.Sprintf("✅ «%s» tamamlandı. Tebrikler!", escape(task.Title))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID)
}

func (b *Bot) cancelTaskAndRefresh(ctx context.Context, chatID int64, taskID string) error {
	task, err := b.taskSvc.CancelTask(ctx, taskID, b.now())
	if err != nil {
		return b.sendTaskError(chatID, err)
	}

	log.Printf("[info] task cancelled id=%s", task.ID)
	if err := b.sendTextWithRemove(chatID, fmt.Sprintf("✖️ «%s» iptal edildi.", escape(task.Title))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID)
}

func (b *Bot) deleteTaskAndRefresh(ctx context.Context, chatID int64, taskID string) error {
	task, err := b.taskSvc.GetTask(ctx, taskID)
	if err != nil {
		return b.sendTaskError(chatID, err)
	}

	if err := b.taskSvc.DeleteTask(ctx, taskID); err != nil {
		return b.sendTextWithRemove(chatID, fmt.Sprintf("Görev silinemedi: %s", escape(err.Error())))
	}

	log.Printf("[info] task deleted id=%s", task.ID)
	if err := b.sendTextWithRemove(chatID, fmt.Sprintf("🗑 «%s» silindi.", escape(task.Title))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID)
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64) error {
	open := b.openTasks(ctx)
	_, done := b.taskSvc.ListTasks(ctx)
	counts := b.taskSvc.PostponementCounts(ctx)

	text := formatTaskList(open, done, counts, b.now())
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if len(open) > 0 {
		msg.ReplyMarkup = taskListKeyboard(open)
	} else {
		msg.ReplyMarkup = mainMenuKeyboard()
	}
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendTaskError(chatID int64, err error) error {
	if errors.Is(err, repository.ErrTaskNotFound) {
		return b.sendTextWithRemove(chatID, "Görev bulunamadı ya da silinmiş.")
	}
	return b.sendTextWithRemove(chatID, fmt.Sprintf("Hata: %s", escape(err.Error())))
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.sendTaskList(ctx, msg.Chat.ID)
	case strings.ToLower(menuLabelStats):
		return true, b.handleStats(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendMenuPlaceholder(chatID int64) error {
	return b.sendText(chatID, "🔹 Ana menü")
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}
