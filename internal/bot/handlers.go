package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/lessonbot/internal/catalog"
	"github.com/example/lessonbot/internal/database"
	"github.com/example/lessonbot/pkg/models"
)

// Constants for callback data
const (
	callbackDeleteConfirm = "dellesson_confirm_"
	callbackDeleteCancel  = "dellesson_cancel"
)

// handleUpdate routes one incoming update.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.IsCommand():
		if err := b.handleCommand(ctx, update.Message); err != nil {
			b.log.Error("command failed",
				"command", update.Message.Command(), "user_id", update.Message.From.ID, "error", err)
			_ = b.reply(update.Message.Chat.ID, "❌ Произошла ошибка. Пожалуйста, попробуйте позже.")
		}
	case update.Message != nil:
		b.handleText(ctx, update.Message)
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			b.log.Error("callback failed", "data", update.CallbackQuery.Data, "error", err)
			if update.CallbackQuery.Message != nil {
				_ = b.reply(update.CallbackQuery.Message.Chat.ID, "❌ Произошла ошибка. Пожалуйста, попробуйте позже.")
			}
		}
	}
}

// handleCommand handles bot commands
func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) error {
	if message.From == nil {
		return fmt.Errorf("invalid message: sender is missing")
	}

	switch message.Command() {
	case "start":
		return b.handleStart(ctx, message)
	case "help":
		return b.handleHelp(message.Chat.ID)
	case "menu":
		return b.replyWithMenu(message.Chat.ID, "🤖 Главное меню\n\nВыберите действие:")
	case "lessons":
		return b.showLessons(ctx, message.From.ID, message.Chat.ID)
	case "learn":
		return b.showCurrentLesson(ctx, message.From.ID, message.Chat.ID)
	case "done":
		return b.markCurrentDone(ctx, message.From.ID, message.Chat.ID)
	case "stats":
		return b.showMyStats(ctx, message.From.ID, message.Chat.ID)
	case "leaderboard":
		return b.showLeaderboard(ctx, message.Chat.ID)
	case "settings":
		return b.handleSettings(ctx, message)
	case "notify":
		return b.handleNotify(ctx, message)
	case "time":
		return b.handleTime(ctx, message)
	case "cancel":
		delete(b.userStates, message.From.ID)
		return b.replyWithMenu(message.Chat.ID, "Действие отменено.")
	case "addlesson", "dellesson", "import", "repair", "audit", "trend", "report":
		if !b.isAdmin(message.From.ID) {
			return b.replyWithMenu(message.Chat.ID, "This command is only available for administrators.")
		}
		return b.handleAdminCommand(ctx, message)
	default:
		return b.replyWithMenu(message.Chat.ID, "Неизвестная команда. Используйте /help для просмотра списка доступных команд.")
	}
}

// handleAdminCommand dispatches the admin-only commands.
func (b *Bot) handleAdminCommand(ctx context.Context, message *tgbotapi.Message) error {
	switch message.Command() {
	case "addlesson":
		return b.handleAddLesson(ctx, message)
	case "dellesson":
		return b.handleDelLesson(ctx, message)
	case "import":
		return b.handleImport(message)
	case "repair":
		return b.handleRepair(ctx, message.Chat.ID)
	case "audit":
		return b.handleAudit(ctx, message.Chat.ID)
	case "trend":
		return b.handleTrend(ctx, message.Chat.ID)
	case "report":
		return b.handleReport(ctx, message.Chat.ID)
	}
	return nil
}

// ensureLearner registers the user and their progress record on any
// first contact.
func (b *Bot) ensureLearner(ctx context.Context, from *tgbotapi.User) error {
	user := &models.User{
		ID:        from.ID,
		Username:  from.UserName,
		FirstName: from.FirstName,
		LastName:  from.LastName,
		IsAdmin:   b.isAdmin(from.ID),
	}
	if err := b.users.Upsert(ctx, user); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	if err := b.progress.EnsureRecord(ctx, from.ID); err != nil {
		return fmt.Errorf("failed to create progress record: %w", err)
	}
	return nil
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) error {
	if err := b.ensureLearner(ctx, message.From); err != nil {
		return err
	}

	text := "👋 Добро пожаловать в курс уроков!\n\n" +
		"Уроки идут по порядку: пройдите текущий, отметьте его выполненным и двигайтесь дальше.\n\n" +
		"🔹 Основные команды:\n" +
		"/learn - Показать текущий урок\n" +
		"/done - Отметить текущий урок выполненным\n" +
		"/lessons - Список всех уроков\n" +
		"/stats - Ваша статистика\n" +
		"/help - Полная справка"
	return b.replyWithMenu(message.Chat.ID, text)
}

func (b *Bot) handleHelp(chatID int64) error {
	text := "📖 Справка по использованию бота\n\n" +
		"🔸 Обучение:\n" +
		"/learn - Показать текущий урок\n" +
		"/done - Отметить текущий урок выполненным\n" +
		"/lessons - Список всех уроков с вашим прогрессом\n\n" +

		"📊 Прогресс:\n" +
		"/stats - Ваша статистика\n" +
		"/leaderboard - Рейтинг учеников\n\n" +

		"⚙️ Настройки:\n" +
		"/notify on|off - Включить/выключить напоминания\n" +
		"/time <час> - Установить час напоминаний (0-23)\n\n" +

		"💡 Советы:\n" +
		"• Проходите уроки каждый день\n" +
		"• Настройте удобное время напоминаний"

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "⬅️ Вернуться в меню", CallbackData: "main_menu"}},
	})
	return b.sendMessage(msg)
}

// showLessons renders the whole curriculum with the learner's marks.
func (b *Bot) showLessons(ctx context.Context, userID, chatID int64) error {
	lessons, err := b.lessons.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list lessons: %w", err)
	}
	if len(lessons) == 0 {
		return b.replyWithMenu(chatID, "Уроков пока нет.")
	}

	rec, err := b.getProgress(ctx, userID)
	if err != nil {
		return err
	}

	var text strings.Builder
	text.WriteString("📋 Все уроки:\n\n")
	for _, lesson := range lessons {
		mark := "▫️"
		switch {
		case rec.HasCompleted(lesson.Seq):
			mark = "✅"
		case lesson.Seq == rec.Position:
			mark = "▶️"
		}
		text.WriteString(fmt.Sprintf("%s %d. %s\n", mark, lesson.Seq, lesson.Title))
	}
	text.WriteString(fmt.Sprintf("\nПройдено: %d из %d", rec.CompletedCount(), len(lessons)))

	return b.replyWithMenu(chatID, text.String())
}

// showCurrentLesson renders the lesson the learner's position points at.
func (b *Bot) showCurrentLesson(ctx context.Context, userID, chatID int64) error {
	rec, err := b.getProgress(ctx, userID)
	if err != nil {
		return err
	}

	total, err := b.lessons.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count lessons: %w", err)
	}
	if total == 0 {
		return b.replyWithMenu(chatID, "Уроков пока нет.")
	}
	if rec.Position > total {
		return b.replyWithMenu(chatID, "🎉 Поздравляем! Вы прошли все уроки курса.")
	}

	lesson, err := b.lessons.GetBySeq(ctx, rec.Position)
	if err != nil {
		if catalog.IsNotFound(err) {
			return b.replyWithMenu(chatID, "Урок не найден, попробуйте ещё раз: /learn")
		}
		return fmt.Errorf("failed to get lesson %d: %w", rec.Position, err)
	}

	var text strings.Builder
	text.WriteString(fmt.Sprintf("📖 Урок %d из %d: %s\n", lesson.Seq, total, lesson.Title))
	if body := renderContent(lesson.Content); body != "" {
		text.WriteString("\n")
		text.WriteString(body)
		text.WriteString("\n")
	}
	text.WriteString("\nКогда закончите, отметьте урок выполненным.")

	msg := tgbotapi.NewMessage(chatID, text.String())
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "✅ Выполнено", CallbackData: "mark_done"}},
		{{Text: "⬅️ Меню", CallbackData: "main_menu"}},
	})
	return b.sendMessage(msg)
}

// markCurrentDone completes the lesson at the learner's position and
// advances the pointer. The read-modify-write is last write wins against
// a concurrent repair sweep.
func (b *Bot) markCurrentDone(ctx context.Context, userID, chatID int64) error {
	rec, err := b.getProgress(ctx, userID)
	if err != nil {
		return err
	}

	total, err := b.lessons.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count lessons: %w", err)
	}
	if total == 0 {
		return b.replyWithMenu(chatID, "Уроков пока нет.")
	}
	if rec.Position > total {
		return b.replyWithMenu(chatID, "Вы уже прошли все уроки. 🎉")
	}

	lesson, err := b.lessons.GetBySeq(ctx, rec.Position)
	if err != nil {
		if catalog.IsNotFound(err) {
			return b.replyWithMenu(chatID, "Урок не найден, попробуйте ещё раз: /learn")
		}
		return fmt.Errorf("failed to get lesson %d: %w", rec.Position, err)
	}

	rec.AddCompleted(rec.Position)
	rec.Position++
	if err := b.progress.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}

	if rec.Position > total {
		return b.replyWithMenu(chatID,
			fmt.Sprintf("✅ Урок \"%s\" выполнен!\n\n🎉 Это был последний урок, вы прошли весь курс!", lesson.Title))
	}
	return b.replyWithMenu(chatID,
		fmt.Sprintf("✅ Урок \"%s\" выполнен!\n\nСледующий урок: /learn", lesson.Title))
}

func (b *Bot) showMyStats(ctx context.Context, userID, chatID int64) error {
	rec, err := b.getProgress(ctx, userID)
	if err != nil {
		return err
	}

	total, err := b.lessons.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count lessons: %w", err)
	}

	completed := rec.CompletedCount()
	text := "📊 Ваша статистика\n\n" +
		fmt.Sprintf("Пройдено уроков: %d из %d\n", completed, total) +
		fmt.Sprintf("Текущий урок: %d\n", rec.Position)
	if total > 0 {
		percent := float64(completed) / float64(total) * 100
		text += fmt.Sprintf("Прогресс: %s %.0f%%\n", progressBar(completed, total), percent)
	}

	return b.replyWithMenu(chatID, text)
}

func (b *Bot) showLeaderboard(ctx context.Context, chatID int64) error {
	entries, err := b.stats.Leaderboard(ctx, 10)
	if err != nil {
		return fmt.Errorf("failed to build leaderboard: %w", err)
	}
	if len(entries) == 0 {
		return b.replyWithMenu(chatID, "Рейтинг пока пуст. Станьте первым!")
	}

	var text strings.Builder
	text.WriteString("🏆 Рейтинг учеников:\n\n")
	for _, entry := range entries {
		text.WriteString(fmt.Sprintf("%d. %s — %d %s\n",
			entry.Rank, entry.Name, entry.Completed, lessonForm(entry.Completed)))
	}
	return b.replyWithMenu(chatID, text.String())
}

func (b *Bot) handleSettings(ctx context.Context, message *tgbotapi.Message) error {
	if err := b.ensureLearner(ctx, message.From); err != nil {
		return err
	}

	user, err := b.users.GetByID(ctx, message.From.ID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	text := fmt.Sprintf(
		`Текущие настройки:

Напоминания: %s
Час напоминаний: %d:00

Для изменения настроек используйте команды:
/notify on|off - Включить/выключить напоминания
/time <час> - Установить час напоминаний (0-23)`,
		boolToEnabledString(user.NotificationEnabled),
		user.NotificationHour,
	)
	return b.reply(message.Chat.ID, text)
}

func (b *Bot) handleNotify(ctx context.Context, message *tgbotapi.Message) error {
	args := strings.ToLower(strings.TrimSpace(message.CommandArguments()))
	if args != "on" && args != "off" {
		return b.reply(message.Chat.ID, "Пожалуйста, укажите on или off: /notify <on|off>")
	}

	if err := b.ensureLearner(ctx, message.From); err != nil {
		return err
	}

	if args == "off" {
		if err := b.users.DisableNotifications(ctx, message.From.ID); err != nil {
			return fmt.Errorf("failed to disable notifications: %w", err)
		}
		return b.reply(message.Chat.ID, "✅ Напоминания выключены")
	}

	user, err := b.users.GetByID(ctx, message.From.ID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if err := b.users.SetNotificationHour(ctx, message.From.ID, user.NotificationHour); err != nil {
		return fmt.Errorf("failed to enable notifications: %w", err)
	}
	return b.reply(message.Chat.ID, "✅ Напоминания включены")
}

func (b *Bot) handleTime(ctx context.Context, message *tgbotapi.Message) error {
	args := strings.TrimSpace(message.CommandArguments())
	if args == "" {
		return b.reply(message.Chat.ID, "Пожалуйста, укажите час (0-23): /time <час>")
	}

	hour, err := strconv.Atoi(args)
	if err != nil || hour < 0 || hour > 23 {
		return b.reply(message.Chat.ID, "Пожалуйста, укажите корректный час (0-23)")
	}

	if err := b.ensureLearner(ctx, message.From); err != nil {
		return err
	}
	if err := b.users.SetNotificationHour(ctx, message.From.ID, hour); err != nil {
		return fmt.Errorf("failed to set notification hour: %w", err)
	}
	return b.reply(message.Chat.ID, fmt.Sprintf("✅ Час напоминаний установлен на %d:00", hour))
}

// handleAddLesson appends one lesson: /addlesson Название | текст урока
func (b *Bot) handleAddLesson(ctx context.Context, message *tgbotapi.Message) error {
	args := strings.TrimSpace(message.CommandArguments())
	if args == "" {
		return b.reply(message.Chat.ID, "Формат: /addlesson Название | текст урока")
	}

	title, content := splitLessonLine(args)
	lesson, err := b.lessons.Create(ctx, title, content)
	if err != nil {
		return fmt.Errorf("failed to create lesson: %w", err)
	}

	return b.reply(message.Chat.ID, fmt.Sprintf("✅ Урок %d добавлен: %s", lesson.Seq, lesson.Title))
}

// handleDelLesson asks for confirmation before an irreversible delete.
func (b *Bot) handleDelLesson(ctx context.Context, message *tgbotapi.Message) error {
	args := strings.TrimSpace(message.CommandArguments())
	seq, err := strconv.Atoi(args)
	if err != nil || seq < 1 {
		return b.reply(message.Chat.ID, "Пожалуйста, укажите номер урока: /dellesson <номер>")
	}

	lesson, err := b.lessons.GetBySeq(ctx, seq)
	if err != nil {
		if catalog.IsNotFound(err) {
			return b.reply(message.Chat.ID, fmt.Sprintf("Урок с номером %d не найден", seq))
		}
		return fmt.Errorf("failed to get lesson %d: %w", seq, err)
	}

	text := fmt.Sprintf("⚠️ Удалить урок %d \"%s\"?\n\n"+
		"Уроки после него сдвинутся на место ниже, прогресс всех учеников будет исправлен автоматически.",
		lesson.Seq, lesson.Title)
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyMarkup = createKeyboard([][]MenuButton{
		{{Text: "🗑 Да, удалить", CallbackData: callbackDeleteConfirm + lesson.ID}},
		{{Text: "❌ Отмена", CallbackData: callbackDeleteCancel}},
	})
	return b.sendMessage(msg)
}

func (b *Bot) handleImport(message *tgbotapi.Message) error {
	b.userStates[message.From.ID] = UserState{
		Action:    "awaiting_import",
		Timestamp: time.Now(),
		Data:      make(map[string]string),
	}

	text := "📝 Импорт уроков\n\n" +
		"Отправьте уроки, по одному в строке:\n\n" +
		"Название | текст урока\n\n" +
		"Чтобы отменить, отправьте /cancel"
	return b.reply(message.Chat.ID, text)
}

func (b *Bot) handleRepair(ctx context.Context, chatID int64) error {
	closed, err := b.engine.RunPendingRepairs(ctx)
	if err != nil {
		b.log.Error("manual repair run failed", "closed", closed, "error", err)
		return b.reply(chatID, fmt.Sprintf("⚠️ Закрыто записей: %d, но часть не удалась. Попробуйте позже.", closed))
	}
	if closed == 0 {
		return b.reply(chatID, "🔧 Отложенных исправлений нет.")
	}
	return b.reply(chatID, fmt.Sprintf("🔧 Закрыто отложенных исправлений: %d", closed))
}

func (b *Bot) handleAudit(ctx context.Context, chatID int64) error {
	report, err := b.engine.VerifyIntegrity(ctx)
	if err != nil {
		return fmt.Errorf("failed to run audit: %w", err)
	}

	var text strings.Builder
	text.WriteString("🔍 ")
	text.WriteString(report.Summary())
	if !report.Clean() {
		text.WriteString("\n")
		for owner, seqs := range report.DanglingRefs {
			text.WriteString(fmt.Sprintf("\nУченик %d: ссылки на удалённые уроки %v", owner, seqs))
		}
		for owner, pos := range report.BadPositions {
			text.WriteString(fmt.Sprintf("\nУченик %d: некорректная позиция %d", owner, pos))
		}
		if len(report.SequenceGaps) > 0 {
			text.WriteString(fmt.Sprintf("\nПропуски в нумерации: %v", report.SequenceGaps))
		}
	}
	return b.reply(chatID, text.String())
}

func (b *Bot) handleTrend(ctx context.Context, chatID int64) error {
	points, err := b.stats.RegistrationTrend(ctx, 14)
	if err != nil {
		return fmt.Errorf("failed to build trend: %w", err)
	}
	if len(points) == 0 {
		return b.reply(chatID, "За последние две недели регистраций не было.")
	}

	var text strings.Builder
	text.WriteString("📈 Регистрации за 14 дней:\n\n")
	for _, p := range points {
		text.WriteString(fmt.Sprintf("%s: %d\n", p.Date, p.Count))
	}
	return b.reply(chatID, text.String())
}

func (b *Bot) handleReport(ctx context.Context, chatID int64) error {
	rates, err := b.stats.CompletionRates(ctx)
	if err != nil {
		return fmt.Errorf("failed to build completion report: %w", err)
	}
	if len(rates) == 0 {
		return b.reply(chatID, "Уроков пока нет.")
	}

	var text strings.Builder
	text.WriteString("📊 Прохождение уроков:\n\n")
	for _, r := range rates {
		text.WriteString(fmt.Sprintf("%d. %s — %d (%.0f%%)\n", r.Seq, r.Title, r.Completed, r.Rate*100))
	}
	return b.reply(chatID, text.String())
}

// handleText processes non-command text according to the user's state.
func (b *Bot) handleText(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}

	state, exists := b.userStates[message.From.ID]
	if !exists {
		_ = b.replyWithMenu(message.Chat.ID, "Я не понимаю. Используйте /menu для вызова главного меню.")
		return
	}

	switch state.Action {
	case "awaiting_import":
		b.processImportLines(ctx, message)
	default:
		delete(b.userStates, message.From.ID)
		_ = b.replyWithMenu(message.Chat.ID, "Я не понимаю. Используйте /menu для вызова главного меню.")
	}
}

// processImportLines creates one lesson per "Название | текст" line.
func (b *Bot) processImportLines(ctx context.Context, message *tgbotapi.Message) {
	delete(b.userStates, message.From.ID)

	var created, failed int
	for _, line := range strings.Split(message.Text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		title, content := splitLessonLine(line)
		if _, err := b.lessons.Create(ctx, title, content); err != nil {
			b.log.Error("import line failed", "line", line, "error", err)
			failed++
			continue
		}
		created++
	}

	text := fmt.Sprintf("📥 Импорт завершён: добавлено %d, с ошибками %d", created, failed)
	_ = b.replyWithMenu(message.Chat.ID, text)
}

// handleCallback обрабатывает нажатия на inline-кнопки
func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if callback.Message == nil || callback.From == nil {
		return fmt.Errorf("invalid callback data: required fields are missing")
	}

	// Always send an answer to the callback query to remove the loading state
	answer := tgbotapi.NewCallback(callback.ID, "")
	if _, err := b.api.Request(answer); err != nil {
		b.log.Warn("failed to answer callback", "error", err)
	}

	userID := callback.From.ID
	chatID := callback.Message.Chat.ID

	switch callback.Data {
	case "main_menu":
		return b.editToMainMenu(callback)
	case "lessons_list":
		return b.showLessons(ctx, userID, chatID)
	case "learn_current":
		return b.showCurrentLesson(ctx, userID, chatID)
	case "mark_done":
		return b.markCurrentDone(ctx, userID, chatID)
	case "my_stats":
		return b.showMyStats(ctx, userID, chatID)
	case "leaderboard":
		return b.showLeaderboard(ctx, chatID)
	case "help":
		return b.handleHelp(chatID)
	case callbackDeleteCancel:
		return b.editText(callback, "Удаление отменено.")
	}

	if strings.HasPrefix(callback.Data, callbackDeleteConfirm) {
		if !b.isAdmin(userID) {
			return b.editText(callback, "This action is only available for administrators.")
		}
		lessonID := strings.TrimPrefix(callback.Data, callbackDeleteConfirm)
		return b.confirmDelete(ctx, callback, lessonID)
	}

	return b.reply(chatID, "⚠️ Неизвестное действие")
}

// confirmDelete runs the deletion and reports what happened, including
// the number of repaired progress records.
func (b *Bot) confirmDelete(ctx context.Context, callback *tgbotapi.CallbackQuery, lessonID string) error {
	res, err := b.engine.DeleteLesson(ctx, lessonID)
	if err == nil {
		return b.editText(callback, fmt.Sprintf(
			"🗑 Урок %d \"%s\" удалён.\nИсправлено записей прогресса: %d",
			res.Lesson.Seq, res.Lesson.Title, res.Affected))
	}

	if catalog.IsNotFound(err) {
		return b.editText(callback, "Урок уже удалён.")
	}

	var pf *catalog.PartialFailureError
	if errors.As(err, &pf) {
		b.log.Error("lesson deleted but repair incomplete",
			"lesson_id", pf.LessonID, "seq", pf.Seq, "written", pf.Written, "error", pf.Err)
		return b.editText(callback, fmt.Sprintf(
			"⚠️ Урок \"%s\" удалён, но исправление прогресса не завершено (готово записей: %d).\n"+
				"Оно будет повторено автоматически, либо запустите /repair.",
			pf.Title, pf.Written))
	}

	return fmt.Errorf("failed to delete lesson: %w", err)
}

// editToMainMenu rewrites the callback's message into the main menu.
func (b *Bot) editToMainMenu(callback *tgbotapi.CallbackQuery) error {
	msg := tgbotapi.NewEditMessageTextAndMarkup(
		callback.Message.Chat.ID,
		callback.Message.MessageID,
		"🤖 Главное меню\n\nВыберите действие:",
		createKeyboard(b.MainMenuButtons()),
	)
	return b.sendMessage(msg)
}

// editText rewrites the callback's message into plain text.
func (b *Bot) editText(callback *tgbotapi.CallbackQuery, text string) error {
	msg := tgbotapi.NewEditMessageText(
		callback.Message.Chat.ID,
		callback.Message.MessageID,
		text,
	)
	return b.sendMessage(msg)
}

// getProgress loads a learner's record, enrolling them on first contact.
func (b *Bot) getProgress(ctx context.Context, userID int64) (*models.Progress, error) {
	rec, err := b.progress.GetByOwner(ctx, userID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, database.ErrProgressNotFound) {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	if err := b.progress.EnsureRecord(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to create progress record: %w", err)
	}
	rec, err = b.progress.GetByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return rec, nil
}

// splitLessonLine parses "Название | текст" into a title and a payload.
func splitLessonLine(line string) (string, json.RawMessage) {
	parts := strings.SplitN(line, "|", 2)
	title := strings.TrimSpace(parts[0])

	if len(parts) < 2 {
		return title, nil
	}
	body := strings.TrimSpace(parts[1])
	if body == "" {
		return title, nil
	}

	if json.Valid([]byte(body)) {
		return title, json.RawMessage(body)
	}
	data, err := json.Marshal(map[string]string{"text": body})
	if err != nil {
		return title, nil
	}
	return title, data
}

// progressBar renders a ten-segment completion bar.
func progressBar(done, total int) string {
	if total <= 0 {
		return ""
	}
	filled := done * 10 / total
	if filled > 10 {
		filled = 10
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
}

// boolToEnabledString converts a boolean to a human-readable enabled/disabled string
func boolToEnabledString(enabled bool) string {
	if enabled {
		return "включены"
	}
	return "выключены"
}
