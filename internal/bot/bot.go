package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"echo-planner/internal/ai"
	"echo-planner/internal/config"
	"echo-planner/internal/model"
	"echo-planner/internal/repository"
	"echo-planner/internal/service"
)

const (
	cbCompletePrefix = "complete_"
	cbDeletePrefix   = "delete_"
	cbList           = "list"
	cbVoiceHint      = "voice"
	cbSuggestions    = "ai_suggestions"
)

const maxListedTasks = 10

// externalCallTimeout bounds AI and transcription calls so a slow
// collaborator never blocks the update loop indefinitely.
const externalCallTimeout = 30 * time.Second

// Bot aggregates the Telegram transport with the task service and the
// optional AI collaborators. A nil enricher or transcriber means the
// corresponding capability is off; everything degrades, nothing breaks.
type Bot struct {
	api         *tgbotapi.BotAPI
	userRepo    *repository.UserRepository
	taskSvc     *service.TaskService
	reportSvc   *service.ReportService
	enricher    *ai.Enricher
	transcriber *ai.Client
	config      *config.Config
	logger      *zap.SugaredLogger
}

func New(token string, userRepo *repository.UserRepository, taskSvc *service.TaskService, reportSvc *service.ReportService, enricher *ai.Enricher, transcriber *ai.Client, cfg *config.Config, logger *zap.SugaredLogger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	logger.Infow("bot authorized", "account", api.Self.UserName)

	return &Bot{
		api:         api,
		userRepo:    userRepo,
		taskSvc:     taskSvc,
		reportSvc:   reportSvc,
		enricher:    enricher,
		transcriber: transcriber,
		config:      cfg,
		logger:      logger,
	}, nil
}

// Start begins polling updates until ctx is cancelled. The webhook
// route feeds the same HandleUpdate path, so both ingress modes share
// one handler set.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.logger.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.HandleUpdate(ctx, update)
	}

	return nil
}

// HandleUpdate dispatches one transport event. Every user-initiated
// action produces a reply; errors are logged, not dropped silently.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			b.logger.Errorw("handle callback", "error", err)
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.logger.Errorw("handle message", "error", err)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		b.logger.Infow("command", "user", msg.From.ID, "command", msg.Command())
		return b.handleCommand(ctx, msg)
	}

	if msg.Voice != nil {
		return b.handleVoice(ctx, msg)
	}

	if strings.TrimSpace(msg.Text) != "" {
		return b.handleText(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "Я понимаю текст и голосовые сообщения. Напиши задачу или загляни в /help.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "complete":
		return b.handleComplete(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "stats":
		return b.handleStats(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	default:
		return b.sendText(msg.Chat.ID, "Команда не поддерживается. Загляни в /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "друг"
	}

	text := fmt.Sprintf(
		"🔊 <b>Echo — AI голосовой планировщик</b>\n\nПривет, %s! 👋\n\n"+
			"🎤 Запиши голосовое сообщение — я превращу его в задачу\n"+
			"📝 Или просто напиши текст\n"+
			"🤖 AI сам определит приоритет, срок и категорию\n\n"+
			"Команды:\n"+
			"• /tasks — список задач\n"+
			"• /complete &lt;id&gt; — отметить выполненной\n"+
			"• /delete &lt;id&gt; — удалить\n"+
			"• /stats — статистика за сегодня\n"+
			"• /help — подсказки",
		escape(name),
	)

	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ParseMode = tgbotapi.ModeHTML
	reply.ReplyMarkup = b.startKeyboard()
	_, err := b.api.Send(reply)
	return err
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Подсказки</b>\n" +
		"• Напиши текст или запиши голосовое — получится задача\n" +
		"• /tasks — показать задачи и кнопки действий\n" +
		"• /complete &lt;id&gt; — отметить задачу по номеру (например, /complete 3)\n" +
		"• /delete &lt;id&gt; — удалить задачу полностью\n" +
		"• /stats — сколько сделано сегодня"
	return b.sendText(msg.Chat.ID, text)
}

// handleText turns a plain message into a task, enriched when AI is on.
// The raw text is kept as description when the model rewrites the title.
func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	text := strings.TrimSpace(msg.Text)

	aiCtx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()
	analysis := b.analyzeFor(aiCtx, user, text)

	input := service.TaskInput{
		Title:      analysis.Title,
		Priority:   analysis.Priority,
		Deadline:   analysis.Deadline,
		Category:   analysis.Category,
		AIAnalyzed: analysis.Title != text || analysis.Deadline != nil,
	}
	if analysis.Title != text {
		input.Description = text
	}

	task, err := b.taskSvc.CreateTask(ctx, user.ID, input)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось сохранить задачу: %s", escape(err.Error())))
	}

	b.logger.Infow("task created", "task", task.ID, "user", user.ID, "ai", task.AIAnalyzed)
	return b.sendTaskCard(msg.Chat.ID, task, "")
}

// handleVoice downloads the audio, transcribes it and then follows the
// text path. Transcription failure is surfaced as an apology, never a
// crash.
func (b *Bot) handleVoice(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	if b.transcriber == nil {
		return b.sendText(msg.Chat.ID, "🎤 Распознавание речи отключено. Напиши задачу текстом.")
	}

	if err := b.sendText(msg.Chat.ID, "🎤 Распознаю речь..."); err != nil {
		return err
	}

	audio, err := b.downloadVoice(ctx, msg.Voice.FileID)
	if err != nil {
		b.logger.Errorw("download voice", "error", err)
		return b.sendText(msg.Chat.ID, "❌ Ошибка распознавания. Попробуй текстовый ввод.")
	}

	aiCtx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()

	text, err := b.transcriber.Transcribe(aiCtx, audio)
	if err != nil {
		b.logger.Errorw("transcribe voice", "error", err)
		return b.sendText(msg.Chat.ID, "❌ Ошибка распознавания. Попробуй текстовый ввод.")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return b.sendText(msg.Chat.ID, "Не расслышал 🙉 Попробуй ещё раз или напиши текстом.")
	}

	analysis := b.analyzeFor(aiCtx, user, text)

	task, err := b.taskSvc.CreateTask(ctx, user.ID, service.TaskInput{
		Title:       analysis.Title,
		Description: text,
		Priority:    analysis.Priority,
		Deadline:    analysis.Deadline,
		Category:    analysis.Category,
		AIAnalyzed:  true,
	})
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось сохранить задачу: %s", escape(err.Error())))
	}

	b.logger.Infow("voice task created", "task", task.ID, "user", user.ID)
	return b.sendTaskCard(msg.Chat.ID, task, fmt.Sprintf("🎤 <b>Распознано:</b>\n%s\n\n", escape(text)))
}

// analyzeFor respects the per-user AI flag on top of the global
// capability gate.
func (b *Bot) analyzeFor(ctx context.Context, user *model.User, text string) ai.Analysis {
	if !user.AIEnabled {
		return ai.DefaultAnalysis(text)
	}
	return b.enricher.AnalyzeOrDefault(ctx, text)
}

func (b *Bot) downloadVoice(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID, user.ID)
}

func (b *Bot) handleComplete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseIDArgument(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Укажи ID задачи: /complete 12")
	}

	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	ok, err := b.taskSvc.CompleteTask(ctx, taskID)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	}
	if !ok {
		return b.sendText(msg.Chat.ID, "❌ Задача не найдена")
	}
	b.logger.Infow("task completed", "task", taskID, "user", msg.From.ID)
	return b.sendText(msg.Chat.ID, "✅ Задача выполнена! Отличная работа! 💪")
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseIDArgument(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Укажи ID задачи: /delete 12")
	}

	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	ok, err := b.taskSvc.DeleteTask(ctx, taskID)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
	}
	if !ok {
		return b.sendText(msg.Chat.ID, "❌ Задача не найдена")
	}
	b.logger.Infow("task deleted", "task", taskID, "user", msg.From.ID)
	return b.sendText(msg.Chat.ID, "🗑 Задача удалена")
}

func (b *Bot) handleStats(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	text, err := b.reportSvc.DailySummary(ctx, user.ID, time.Now())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Не удалось сформировать отчёт: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Warnw("callback ack", "error", err)
	}

	chatID := cb.Message.Chat.ID
	data := cb.Data

	switch {
	case data == cbVoiceHint:
		return b.sendText(chatID, "🎤 Запиши голосовое сообщение\n\nЯ превращу его в задачу с помощью AI!")
	case data == cbList:
		user, err := b.ensureUser(ctx, cb.From)
		if err != nil {
			return err
		}
		return b.sendTaskList(ctx, chatID, user.ID)
	case data == cbSuggestions:
		return b.sendSuggestions(ctx, chatID, cb.From)
	case strings.HasPrefix(data, cbCompletePrefix):
		taskID, err := parseCallbackID(data, cbCompletePrefix)
		if err != nil {
			return nil
		}
		ok, err := b.taskSvc.CompleteTask(ctx, taskID)
		if err != nil {
			return b.sendText(chatID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
		}
		if !ok {
			return b.sendText(chatID, "❌ Задача не найдена")
		}
		b.logger.Infow("task completed", "task", taskID, "user", cb.From.ID)
		return b.sendText(chatID, "✅ Задача выполнена! Отличная работа! 💪")
	case strings.HasPrefix(data, cbDeletePrefix):
		taskID, err := parseCallbackID(data, cbDeletePrefix)
		if err != nil {
			return nil
		}
		ok, err := b.taskSvc.DeleteTask(ctx, taskID)
		if err != nil {
			return b.sendText(chatID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
		}
		if !ok {
			return b.sendText(chatID, "❌ Задача не найдена")
		}
		b.logger.Infow("task deleted", "task", taskID, "user", cb.From.ID)
		return b.sendText(chatID, "🗑 Задача удалена")
	default:
		return nil
	}
}

func (b *Bot) sendSuggestions(ctx context.Context, chatID int64, from *tgbotapi.User) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	active, err := b.taskSvc.ListTasks(ctx, user.ID, model.StatusActive)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось получить задачи: %s", escape(err.Error())))
	}

	aiCtx, cancel := context.WithTimeout(ctx, externalCallTimeout)
	defer cancel()

	tips := b.enricher.Suggest(aiCtx, active)
	var builder strings.Builder
	builder.WriteString("🤖 <b>AI Рекомендации:</b>\n\n")
	for _, tip := range tips {
		builder.WriteString(fmt.Sprintf("💡 %s\n", escape(tip)))
	}
	return b.sendText(chatID, strings.TrimSpace(builder.String()))
}

// SendDailyReports sends each known user their daily summary. Wired to
// the cron scheduler.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.userRepo.ListAll(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text, err := b.reportSvc.DailySummary(ctx, user.ID, now)
		if err != nil {
			b.logger.Warnw("build summary", "user", user.ID, "error", err)
			continue
		}
		if err := b.sendText(user.ID, text); err != nil {
			b.logger.Warnw("send summary", "user", user.ID, "error", err)
		}
	}
	return nil
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, userID int64) error {
	groups, err := b.taskSvc.ListByStatusGroup(ctx, userID)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось получить задачи: %s", escape(err.Error())))
	}

	if len(groups.Active) == 0 && len(groups.Completed) == 0 {
		return b.sendText(chatID, "📭 У тебя пока нет задач. 🎤 Запиши голосовое или напиши задачу!")
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("📊 <b>Твои задачи (%d активных)</b>\n\n", len(groups.Active)))

	var buttons [][]tgbotapi.InlineKeyboardButton
	if len(groups.Active) > 0 {
		builder.WriteString("🔴 <b>Активные:</b>\n")
		for i, task := range groups.Active {
			if i >= maxListedTasks {
				break
			}
			aiMark := ""
			if task.AIAnalyzed {
				aiMark = " 🤖"
			}
			builder.WriteString(fmt.Sprintf("%d. %s %s%s\n", i+1, service.PriorityIcon(task.Priority), escape(task.Title), aiMark))
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✓ #%d %s", task.ID, shortTitle(task.Title, 20)), fmt.Sprintf("%s%d", cbCompletePrefix, task.ID)),
				tgbotapi.NewInlineKeyboardButtonData("✗ Удалить", fmt.Sprintf("%s%d", cbDeletePrefix, task.ID)),
			))
		}
	}

	if len(groups.Completed) > 0 {
		builder.WriteString(fmt.Sprintf("\n✅ <b>Выполнено (%d)</b>\n", len(groups.Completed)))
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ParseMode = tgbotapi.ModeHTML
	if len(buttons) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	}
	_, err = b.api.Send(msg)
	return err
}

// sendTaskCard shows one freshly created task with action buttons.
func (b *Bot) sendTaskCard(chatID int64, task *model.Task, prefix string) error {
	var builder strings.Builder
	builder.WriteString(prefix)
	if task.AIAnalyzed {
		builder.WriteString("🤖 <b>AI создал задачу:</b>\n")
	} else {
		builder.WriteString("✅ <b>Задача создана:</b>\n")
	}
	builder.WriteString(fmt.Sprintf("%s <b>%s</b>\n\n", service.PriorityIcon(task.Priority), escape(task.Title)))
	builder.WriteString(fmt.Sprintf("📊 Приоритет: %d/10\n", task.Priority))
	builder.WriteString(fmt.Sprintf("🏷️ Категория: %s", escape(task.Category)))
	if task.Deadline != nil {
		builder.WriteString(fmt.Sprintf("\n⏰ Срок: %s", task.Deadline.Format("2006-01-02 15:04")))
	}

	msg := tgbotapi.NewMessage(chatID, builder.String())
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = b.taskCardKeyboard(task.ID)
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) taskCardKeyboard(taskID uint) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✓ Выполнить", fmt.Sprintf("%s%d", cbCompletePrefix, taskID)),
			tgbotapi.NewInlineKeyboardButtonData("✗ Удалить", fmt.Sprintf("%s%d", cbDeletePrefix, taskID)),
		),
	}
	if row, ok := b.miniAppRow(); ok {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) startKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🎤 Голосовой ввод", cbVoiceHint)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📊 Мои задачи", cbList)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🤖 AI Советы", cbSuggestions)),
	}
	if row, ok := b.miniAppRow(); ok {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) miniAppRow() ([]tgbotapi.InlineKeyboardButton, bool) {
	if b.config == nil || b.config.MiniAppURL == "" {
		return nil, false
	}
	btn := tgbotapi.InlineKeyboardButton{
		Text:   "📋 Открыть Echo",
		WebApp: &tgbotapi.WebAppInfo{URL: b.config.MiniAppURL},
	}
	return []tgbotapi.InlineKeyboardButton{btn}, true
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.userRepo.Upsert(ctx, from.ID, from.UserName, from.FirstName, from.LastName)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func parseIDArgument(args string) (uint, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return 0, errors.New("empty id")
	}
	value, err := strconv.ParseUint(args, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

func parseCallbackID(data, prefix string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimPrefix(data, prefix), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func escape(s string) string {
	return html.EscapeString(s)
}
