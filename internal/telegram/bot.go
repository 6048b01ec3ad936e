package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"meal-scheduler/internal/config"
	"meal-scheduler/internal/metrics"
	"meal-scheduler/internal/planner"
	"meal-scheduler/internal/recipe"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// sender is the part of *tgbotapi.BotAPI the bot talks through.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// MetricsSource reports mutation statistics for /metrics.
type MetricsSource interface {
	GetDailySummary(days int) ([]metrics.DailySummary, error)
}

// Bot lets allowed Telegram users schedule recipes. Each user gets a
// planner session keyed by their Telegram id.
type Bot struct {
	api      sender
	sessions *planner.Sessions
	catalog  recipe.Catalog
	metrics  MetricsSource
	cfg      *config.Config
	logger   *zap.Logger
	started  time.Time

	// background tracks goroutines waiting on mutations to report back.
	background sync.WaitGroup
}

// NewBot initializes the Telegram API and sets the webhook when one is
// configured.
func NewBot(cfg *config.Config, sessions *planner.Sessions, catalog recipe.Catalog, metricsSource MetricsSource, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	logger.Info("Authorized on telegram", zap.String("account", api.Self.UserName))

	if cfg.TelegramWebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
		if err != nil {
			return nil, fmt.Errorf("invalid webhook url %s: %w", cfg.TelegramWebhookURL, err)
		}
		resp, err := api.Request(wh)
		if err != nil {
			return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
		}
		logger.Info("Webhook set", zap.String("description", resp.Description))
	}

	return newBot(api, cfg, sessions, catalog, metricsSource, logger), nil
}

func newBot(api sender, cfg *config.Config, sessions *planner.Sessions, catalog recipe.Catalog, metricsSource MetricsSource, logger *zap.Logger) *Bot {
	return &Bot{
		api:      api,
		sessions: sessions,
		catalog:  catalog,
		metrics:  metricsSource,
		cfg:      cfg,
		logger:   logger,
		started:  time.Now(),
	}
}

// RegisterRoutes mounts the webhook endpoint.
func (b *Bot) RegisterRoutes(r gin.IRoutes) {
	r.POST("/webhook", b.handleWebhook)
}

// Wait blocks until every pending mutation report has been sent.
func (b *Bot) Wait() {
	b.background.Wait()
}

func (b *Bot) handleWebhook(c *gin.Context) {
	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		b.logger.Warn("Error parsing update", zap.Error(err))
		c.Status(http.StatusBadRequest)
		return
	}
	c.Status(http.StatusOK)
	go b.HandleUpdate(context.Background(), update)
}

// HandleUpdate processes one update synchronously.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		q := update.CallbackQuery
		if q.From == nil || q.Message == nil || !b.allowed(q.From) {
			return
		}
		b.handleCallbackQuery(ctx, q)
	case update.Message != nil:
		msg := update.Message
		if msg.From == nil || !b.allowed(msg.From) {
			return
		}
		b.processMessage(ctx, msg)
	}
}

func (b *Bot) allowed(user *tgbotapi.User) bool {
	for _, id := range b.cfg.TelegramAllowedUserIDs {
		if user.ID == id {
			return true
		}
	}
	b.logger.Warn("Unauthorized access attempt", zap.Int64("user_id", user.ID), zap.String("username", user.UserName))
	return false
}

// plannerFor returns the user's planner, loading the visible week the
// first time it is used.
func (b *Bot) plannerFor(ctx context.Context, user *tgbotapi.User) *planner.Planner {
	p := b.sessions.GetOrCreate(strconv.FormatInt(user.ID, 10)).Planner
	if !p.View().Loaded {
		if err := p.Load(ctx); err != nil {
			b.logger.Warn("failed to load week", zap.Int64("user_id", user.ID), zap.Error(err))
		}
	}
	return p
}

func (b *Bot) processMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		b.sendText(msg.Chat.ID, "Use /week to see your calendar or /recipes to add a recipe.")
		return
	}

	switch msg.Command() {
	case "metrics":
		b.handleMetricsRequest(msg)
	case "recipes":
		b.sendRecipes(ctx, msg.Chat.ID, msg.CommandArguments())
	case "start", "week":
		p := b.plannerFor(ctx, msg.From)
		if p.View().Unavailable {
			_ = p.Retry(ctx)
		}
		b.sendWeek(msg.Chat.ID, p)
	case "next":
		p := b.plannerFor(ctx, msg.From)
		_ = p.Next(ctx)
		b.sendWeek(msg.Chat.ID, p)
	case "prev":
		p := b.plannerFor(ctx, msg.From)
		_ = p.Prev(ctx)
		b.sendWeek(msg.Chat.ID, p)
	case "today":
		p := b.plannerFor(ctx, msg.From)
		_ = p.Today(ctx)
		b.relayNotices(msg.Chat.ID, p)
		b.sendWeek(msg.Chat.ID, p)
	default:
		b.sendText(msg.Chat.ID, "Unknown command. Try /week, /next, /prev, /today or /recipes.")
	}
}

func (b *Bot) handleMetricsRequest(msg *tgbotapi.Message) {
	if msg.From.ID != b.cfg.AdminTelegramID {
		b.sendText(msg.Chat.ID, "⛔ *Access Denied*: Admin only.")
		return
	}
	var summary []metrics.DailySummary
	if b.metrics != nil {
		var err error
		summary, err = b.metrics.GetDailySummary(7)
		if err != nil {
			b.logger.Error("failed to read metrics", zap.Error(err))
			b.sendText(msg.Chat.ID, "❌ Error fetching metrics.")
			return
		}
	}
	health := metrics.GetSysHealth(b.cfg.DatabasePath, b.started)
	b.sendText(msg.Chat.ID, formatMetricsMarkdown(summary, health, b.sessions.Len()))
}

// sendRecipes shows the recipe picker, narrowed to titles containing query.
func (b *Bot) sendRecipes(ctx context.Context, chatID int64, query string) {
	recipes, err := b.catalog.List(ctx)
	if err != nil {
		b.logger.Error("failed to list recipes", zap.Error(err))
		b.sendText(chatID, "❌ Could not load recipes. Please try again later.")
		return
	}
	if len(recipes) == 0 {
		b.sendText(chatID, "No recipes yet.")
		return
	}
	if recipes = recipe.Search(recipes, query); len(recipes) == 0 {
		b.sendText(chatID, fmt.Sprintf("No recipes match \"%s\".", escape(query)))
		return
	}
	msg := tgbotapi.NewMessage(chatID, "📖 *Pick a recipe to schedule*")
	msg.ParseMode = tgbotapi.ModeMarkdown
	keyboard := recipeKeyboard(recipes)
	msg.ReplyMarkup = keyboard
	b.send(msg)
}

func (b *Bot) sendWeek(chatID int64, p *planner.Planner) {
	v := p.View()
	msg := tgbotapi.NewMessage(chatID, formatWeekMarkdown(v))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = weekKeyboard(v)
	b.send(msg)
}

// relayNotices drains the session's notices into the chat, including
// results of changes that settled in the meantime.
func (b *Bot) relayNotices(chatID int64, p *planner.Planner) {
	for _, n := range p.Notices() {
		b.sendText(chatID, formatNotice(n))
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	b.send(msg)
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.logger.Warn("Failed to send telegram message", zap.Error(err))
	}
}
