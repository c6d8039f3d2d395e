package bot

import (
	"errors"
	"fmt"
	"html"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"postpone-diary/internal/locale"
	"postpone-diary/internal/model"
	"postpone-diary/internal/service"
)

const (
	btnSkip          = "⏭️ Atla"
	btnConfirm       = "✅ Onayla"
	btnCancel        = "↩️ Vazgeç"
	btnCancelDialog  = "⏪ İptal"
	iconDefault      = "🟢"
	iconPostponed    = "⏸"
	iconDue          = "⏳"
	iconOverdue      = "⚠️"
	menuLabelNewTask = "➕ Yeni görev"
	menuLabelTasks   = "📋 Görevler"
	menuLabelStats   = "📊 İstatistikler"
	menuLabelHelp    = "ℹ️ Yardım"

	doneListLimit = 5
	dateLayout    = "2 January 2006"
	dateTimeLabel = "2 January 2006 15:04"
)

var (
	errNoOpenTasks      = errors.New("no open tasks")
	errTaskIndexInvalid = errors.New("task index is not a number")
	errTaskIndexRange   = errors.New("task index out of range")
)

func botCommands() []tgbotapi.BotCommand {
	return []tgbotapi.BotCommand{
		{Command: "newtask", Description: "Yeni görev ekle"},
		{Command: "tasks", Description: "Açık görevleri göster"},
		{Command: "postpone", Description: "Görevi ertele"},
		{Command: "done", Description: "Görevi tamamla"},
		{Command: "stats", Description: "Erteleme istatistikleri"},
		{Command: "history", Description: "Görevin erteleme geçmişi"},
		{Command: "notify", Description: "Bildirimleri aç/kapat"},
		{Command: "help", Description: "Komutlar"},
	}
}

func helpText() string {
	return "• /newtask: yeni görev ekle\n" +
		"• /tasks: açık görevler ve butonlar\n" +
		"• /postpone &lt;no&gt;: görevi bir nedenle ertele\n" +
		"• /done &lt;no&gt;: görevi tamamla\n" +
		"• /delete &lt;no&gt;: görevi sil\n" +
		"• /rename &lt;no&gt; &lt;ad&gt;: görevi yeniden adlandır\n" +
		"• /history &lt;no&gt;: erteleme geçmişi\n" +
		"• /stats: istatistikler ve motivasyon kartları\n" +
		"• /notify on|off: haftalık bildirimler\n" +
		"• /cancel: mevcut işlemi iptal et"
}

func escape(s string) string {
	return html.EscapeString(s)
}

func formatNotification(title, body string) string {
	return fmt.Sprintf("🔔 <b>%s</b>\n%s", escape(title), escape(body))
}

func parseDeadline(text string, loc *time.Location) (time.Time, error) {
	text = strings.TrimSpace(text)
	for _, layout := range []string{"2006-01-02", "02.01.2006"} {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", text)
}

// pickTask resolves a 1-based position in the numbered list.
func pickTask(tasks []model.Task, raw string) (*model.Task, error) {
	if len(tasks) == 0 {
		return nil, errNoOpenTasks
	}
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(raw), "#"))
	if err != nil {
		return nil, errTaskIndexInvalid
	}
	if n < 1 || n > len(tasks) {
		return nil, errTaskIndexRange
	}
	task := tasks[n-1]
	return &task, nil
}

func taskIndexHint(err error) string {
	switch {
	case errors.Is(err, errNoOpenTasks):
		return "Açık göreviniz yok. /newtask ile ekleyebilirsiniz."
	case errors.Is(err, errTaskIndexInvalid):
		return "Görev numarası bir sayı olmalı. Numaraları /tasks listesinde görebilirsiniz."
	default:
		return "Bu numarada bir görev yok. Numaraları /tasks listesinde görebilirsiniz."
	}
}

// sortOpenTasks orders by deadline, tasks without one last, then by
// creation time. Command numbers follow this order.
func sortOpenTasks(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Deadline != nil && b.Deadline != nil {
			if !a.Deadline.Equal(*b.Deadline) {
				return a.Deadline.Before(*b.Deadline)
			}
		} else if a.Deadline != nil {
			return true
		} else if b.Deadline != nil {
			return false
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

func isOtherReason(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), model.ReasonOther)
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "atla" || value == "skip"
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "onayla" || value == "evet"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "vazgeç" || value == "hayır"
}

// isCancelDialogInput matches the cancel button only, so a title or reason
// that happens to be a cancel word is still accepted.
func isCancelDialogInput(text string) bool {
	return strings.TrimSpace(text) == btnCancelDialog
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func formatTask(index int, task model.Task, postponed int, now time.Time) string {
	var b strings.Builder
	icon := iconDefault
	if task.Status == model.StatusPostponed {
		icon = iconPostponed
	}

	var deadlineLine string
	if task.Deadline != nil {
		d := dayStart(task.Deadline.In(now.Location()))
		days := int(math.Round(d.Sub(dayStart(now)).Hours() / 24))
		label := locale.Format(d, dateLayout, locale.Turkish)
		switch {
		case days < 0:
			icon = iconOverdue
			deadlineLine = fmt.Sprintf("   ⏰ Son tarih: %s · <b>gecikti</b>\n", label)
		case days == 0:
			icon = iconDue
			deadlineLine = fmt.Sprintf("   ⏰ Son tarih: %s · <b>bugün</b>\n", label)
		default:
			if days <= 2 {
				icon = iconDue
			}
			deadlineLine = fmt.Sprintf("   ⏰ Son tarih: %s · %d gün kaldı\n", label, days)
		}
	}

	b.WriteString(fmt.Sprintf("%s <b>%d.</b> %s <i>(%s %s)</i>\n", icon, index, escape(normalizeTitle(task.Title)), task.Category.Icon(), task.Category.Label()))
	b.WriteString(deadlineLine)
	if postponed > 0 {
		b.WriteString(fmt.Sprintf("   🔁 %d kez ertelendi\n", postponed))
	}
	if task.InitialPostponeReason != "" {
		b.WriteString(fmt.Sprintf("   💭 İlk neden: %s\n", escape(task.InitialPostponeReason)))
	}
	return b.String()
}

func formatTaskList(open, done []model.Task, counts map[string]int, now time.Time) string {
	if len(open) == 0 && len(done) == 0 {
		return "Henüz göreviniz yok. /newtask ile ilk görevinizi ekleyin."
	}

	var b strings.Builder
	if len(open) == 0 {
		b.WriteString("🎉 Açık göreviniz kalmadı.\n")
	} else {
		b.WriteString("📋 <b>Açık görevler</b>\n")
		b.WriteString("Butonlarla tamamlayabilir, erteleyebilir veya silebilirsiniz.\n\n")
		for i, task := range open {
			b.WriteString(formatTask(i+1, task, counts[task.ID], now))
		}
	}

	if len(done) > 0 {
		sort.SliceStable(done, func(i, j int) bool {
			return done[i].UpdatedAt.After(done[j].UpdatedAt)
		})
		b.WriteString("\n✅ <b>Son tamamlananlar</b>\n")
		for i, task := range done {
			if i == doneListLimit {
				b.WriteString(fmt.Sprintf("… ve %d görev daha\n", len(done)-doneListLimit))
				break
			}
			b.WriteString(fmt.Sprintf("• <s>%s</s>\n", escape(normalizeTitle(task.Title))))
		}
	}
	return strings.TrimSpace(b.String())
}

func formatTaskSummary(task model.Task, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("✅ <b>Görev kaydedildi</b>\n")
	b.WriteString(fmt.Sprintf("• <b>Ad:</b> %s\n", escape(normalizeTitle(task.Title))))
	b.WriteString(fmt.Sprintf("• <b>Kategori:</b> %s %s\n", task.Category.Icon(), task.Category.Label()))
	if task.Deadline != nil {
		b.WriteString(fmt.Sprintf("• <b>Son tarih:</b> %s\n", locale.Format(task.Deadline.In(loc), dateLayout, locale.Turkish)))
	}
	if task.InitialPostponeReason != "" {
		b.WriteString(fmt.Sprintf("• <b>Erteleme nedeni:</b> %s\n", escape(task.InitialPostponeReason)))
	}
	return strings.TrimSpace(b.String())
}

func formatHistory(task model.Task, history []model.Postponement, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🕓 <b>%s</b> erteleme geçmişi\n", escape(normalizeTitle(task.Title))))
	if task.InitialPostponeReason != "" {
		b.WriteString(fmt.Sprintf("İlk neden: <i>%s</i>\n", escape(task.InitialPostponeReason)))
	}
	if len(history) == 0 {
		b.WriteString("Bu görev henüz ertelenmedi.")
		return b.String()
	}
	b.WriteByte('\n')
	for _, p := range history {
		b.WriteString(fmt.Sprintf("%d. %s · %s\n", p.PostponementNumber, locale.Format(p.Date.In(loc), dateTimeLabel, locale.Turkish), escape(p.Reason)))
	}
	return strings.TrimSpace(b.String())
}

func formatReport(report service.Report) string {
	var b strings.Builder
	stats := report.Statistics

	b.WriteString("📊 <b>İstatistikler</b>\n")
	b.WriteString(fmt.Sprintf("<i>%s</i>\n\n", escape(report.Headline)))

	for _, card := range report.Cards {
		b.WriteString(fmt.Sprintf("<b>%s</b>\n%s\n\n", escape(card.Title), escape(card.Message)))
	}

	if !stats.HasData() {
		b.WriteString("Henüz erteleme kaydı yok. Bir görevi ertelediğinizde alışkanlıklarınız burada görünecek.")
		return strings.TrimSpace(b.String())
	}

	b.WriteString(fmt.Sprintf("Toplam erteleme: <b>%d</b> · bu hafta: <b>%d</b>\n", stats.TotalPostponements, report.WeeklyCount))

	b.WriteString("\n🏷 <b>Kategoriler</b>\n")
	for _, c := range model.Categories {
		if n := stats.CategoryBreakdown[c]; n > 0 {
			b.WriteString(fmt.Sprintf("• %s %s: %d\n", c.Icon(), c.Label(), n))
		}
	}
	if stats.Orphaned > 0 {
		b.WriteString(fmt.Sprintf("• 🗂 Silinmiş görevler: %d\n", stats.Orphaned))
	}

	b.WriteString("\n🕐 <b>Günün saatleri</b>\n")
	for _, period := range stats.PeriodCounts() {
		b.WriteString(fmt.Sprintf("• %s (%s): %d\n", period.Name, period.Label, period.Count))
	}

	b.WriteString("\n📅 <b>Günler</b>\n")
	for _, d := range stats.DayPatterns {
		if d.Count > 0 {
			b.WriteString(fmt.Sprintf("• %s: %d\n", d.Day, d.Count))
		}
	}

	if len(stats.TopReasons) > 0 {
		b.WriteString("\n💬 <b>En sık nedenler</b>\n")
		for i, r := range stats.TopReasons {
			b.WriteString(fmt.Sprintf("%d. %s: %d (%%%d)\n", i+1, escape(r.Reason), r.Count, r.Percentage))
		}
	}

	if week := stats.LeastPostponedWeek; week != nil {
		b.WriteString(fmt.Sprintf("\n🏆 En az erteleme: <b>%s</b> haftası (%d)\n", week.Week, week.Count))
	}
	return strings.TrimSpace(b.String())
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func shortTitle(title string, maxLen int) string {
	clean := normalizeTitle(strings.ReplaceAll(title, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func taskListKeyboard(tasks []model.Task) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(tasks))
	for i, task := range tasks {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ %d · %s", i+1, shortTitle(task.Title, 16)), cbDonePrefix+task.ID),
			tgbotapi.NewInlineKeyboardButtonData("⏸", cbPostponePrefix+task.ID),
			tgbotapi.NewInlineKeyboardButtonData("🗑", cbDeletePrefix+task.ID),
			tgbotapi.NewInlineKeyboardButtonData("✖️", cbDropPrefix+task.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func reasonKeyboard(withSkip bool) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for i := 0; i < len(model.PredefinedReasons); i += 2 {
		row := tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(model.PredefinedReasons[i]))
		if i+1 < len(model.PredefinedReasons) {
			row = append(row, tgbotapi.NewKeyboardButton(model.PredefinedReasons[i+1]))
		}
		rows = append(rows, row)
	}
	last := tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog))
	if withSkip {
		last = tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnSkip), tgbotapi.NewKeyboardButton(btnCancelDialog))
	}
	rows = append(rows, last)

	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func categoryKeyboard() tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for i := 0; i < len(model.Categories); i += 2 {
		c := model.Categories[i]
		row := tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(c.Icon() + " " + c.Label()))
		if i+1 < len(model.Categories) {
			next := model.Categories[i+1]
			row = append(row, tgbotapi.NewKeyboardButton(next.Icon()+" "+next.Label()))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)))

	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewTask),
			tgbotapi.NewKeyboardButton(menuLabelTasks),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelStats),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}
