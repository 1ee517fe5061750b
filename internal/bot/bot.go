package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/lessonbot/internal/catalog"
	"github.com/example/lessonbot/internal/config"
	"github.com/example/lessonbot/internal/logger"
	"github.com/example/lessonbot/pkg/models"
)

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// telegramAPI is the slice of the Telegram client the bot uses.
// *tgbotapi.BotAPI satisfies it.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// LessonStore is the slice of the lesson repository the bot needs.
type LessonStore interface {
	List(ctx context.Context) ([]models.Lesson, error)
	GetBySeq(ctx context.Context, seq int) (*models.Lesson, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, title string, content json.RawMessage) (*models.Lesson, error)
}

// ProgressStore is the slice of the progress repository the bot needs.
type ProgressStore interface {
	GetByOwner(ctx context.Context, ownerID int64) (*models.Progress, error)
	EnsureRecord(ctx context.Context, ownerID int64) error
	Upsert(ctx context.Context, rec *models.Progress) error
}

// UserStore is the slice of the user repository the bot needs.
type UserStore interface {
	Upsert(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	SetNotificationHour(ctx context.Context, id int64, hour int) error
	DisableNotifications(ctx context.Context, id int64) error
}

// Remover handles lesson deletion and the consistency jobs around it.
// *catalog.Engine satisfies it.
type Remover interface {
	DeleteLesson(ctx context.Context, lessonID string) (*catalog.DeleteResult, error)
	RunPendingRepairs(ctx context.Context) (int, error)
	VerifyIntegrity(ctx context.Context) (*catalog.AuditReport, error)
}

// Reports computes the derived read-only views.
type Reports interface {
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	CompletionRates(ctx context.Context) ([]models.LessonCompletion, error)
	RegistrationTrend(ctx context.Context, days int) ([]models.TrendPoint, error)
}

// Deps carries everything the bot depends on. All handles are injected,
// the bot keeps no global state.
type Deps struct {
	Lessons  LessonStore
	Progress ProgressStore
	Users    UserStore
	Engine   Remover
	Stats    Reports
	Log      *logger.Logger
}

// UserState represents the current state of user interaction
type UserState struct {
	Action    string
	Timestamp time.Time
	Data      map[string]string
}

// Bot represents the Telegram bot application
type Bot struct {
	api        telegramAPI
	cfg        *config.Config
	lessons    LessonStore
	progress   ProgressStore
	users      UserStore
	engine     Remover
	stats      Reports
	log        *logger.Logger
	userStates map[int64]UserState
}

// New creates a new bot instance. The Telegram connection is dialed in
// Start, so construction never does I/O.
func New(cfg *config.Config, deps Deps) *Bot {
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}
	return &Bot{
		cfg:        cfg,
		lessons:    deps.Lessons,
		progress:   deps.Progress,
		users:      deps.Users,
		engine:     deps.Engine,
		stats:      deps.Stats,
		log:        log,
		userStates: make(map[int64]UserState),
	}
}

// Start connects to Telegram and processes updates until the context is
// cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b.cfg.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}

	api, err := tgbotapi.NewBotAPI(b.cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("unable to create bot: %v", err)
	}
	b.api = api
	b.log.Info("authorized on telegram", "account", api.Self.UserName)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

// Stop gracefully stops the bot
func (b *Bot) Stop() {
	if b.api != nil {
		b.api.StopReceivingUpdates()
	}
	b.log.Info("bot stopped")
}

// SendReminder implements the scheduler notifier: ping one learner about
// how many lessons they have left.
func (b *Bot) SendReminder(userID int64, remaining int) error {
	// В личных чатах chat ID совпадает с user ID
	text := fmt.Sprintf("📚 У вас осталось %d %s! Отправьте /learn, чтобы продолжить обучение.",
		remaining, lessonForm(remaining))
	msg := tgbotapi.NewMessage(userID, text)
	if err := b.sendMessage(msg); err != nil {
		return fmt.Errorf("failed to send reminder to user %d: %w", userID, err)
	}
	return nil
}

// SendAlert implements the scheduler notifier: deliver an operational
// message to every configured admin.
func (b *Bot) SendAlert(message string) error {
	var lastErr error
	for _, adminID := range b.cfg.AdminIDs {
		msg := tgbotapi.NewMessage(adminID, message)
		if err := b.sendMessage(msg); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// MainMenuButtons returns the standard main menu layout.
func (b *Bot) MainMenuButtons() [][]MenuButton {
	return [][]MenuButton{
		{
			{Text: "📖 Учить", CallbackData: "learn_current"},
			{Text: "📋 Все уроки", CallbackData: "lessons_list"},
		},
		{
			{Text: "📊 Моя статистика", CallbackData: "my_stats"},
			{Text: "🏆 Рейтинг", CallbackData: "leaderboard"},
		},
		{
			{Text: "❓ Помощь", CallbackData: "help"},
		},
	}
}

// isAdmin checks if a user is an admin
func (b *Bot) isAdmin(userID int64) bool {
	return b.cfg.IsAdmin(userID)
}

// sendMessage sends any chattable and logs the failure.
func (b *Bot) sendMessage(msg tgbotapi.Chattable) error {
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("failed to send message", "error", err)
		return err
	}
	return nil
}

// reply sends a plain text message to a chat.
func (b *Bot) reply(chatID int64, text string) error {
	return b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

// replyWithMenu sends a text message with the main menu attached.
func (b *Bot) replyWithMenu(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
	return b.sendMessage(msg)
}

// lessonForm returns the Russian plural form for lesson counts.
func lessonForm(count int) string {
	form := "уроков"
	if count%100 >= 11 && count%100 <= 14 {
		return form
	}
	switch count % 10 {
	case 1:
		form = "урок"
	case 2, 3, 4:
		form = "урока"
	}
	return form
}

// renderContent turns the opaque lesson payload into displayable text.
// Payloads written by the importer carry a "text" field; anything else
// is shown as-is.
func renderContent(content json.RawMessage) string {
	if len(content) == 0 {
		return ""
	}

	var payload struct {
		Text  string   `json:"text"`
		Media []string `json:"media"`
	}
	if err := json.Unmarshal(content, &payload); err == nil && payload.Text != "" {
		var sb strings.Builder
		sb.WriteString(payload.Text)
		for _, m := range payload.Media {
			sb.WriteString("\n📎 ")
			sb.WriteString(m)
		}
		return sb.String()
	}

	return string(content)
}
