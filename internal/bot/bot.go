package bot

import (
	"context"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sigmapips-bot/internal/bot/callback"
	"github.com/Proton-105/sigmapips-bot/internal/bot/handlers"
	"github.com/Proton-105/sigmapips-bot/internal/bot/keyboard"
	errors "github.com/Proton-105/sigmapips-bot/internal/errors"
	"github.com/Proton-105/sigmapips-bot/internal/idempotency"
	"github.com/Proton-105/sigmapips-bot/internal/middleware"
	"github.com/Proton-105/sigmapips-bot/internal/preferences"
	"github.com/Proton-105/sigmapips-bot/pkg/config"
)

const defaultWebhookListen = ":8443"

// allowedUpdates covers /start style commands and inline keyboard presses.
var allowedUpdates = []string{"message", "callback_query"}

// Options carries optional collaborators of the bot.
type Options struct {
	// Charts renders technical analysis charts. Nil disables the chart relay.
	Charts handlers.ChartProvider
	// Idempotency de-duplicates redelivered callbacks. Nil disables the guard.
	Idempotency idempotency.Manager
	// Preferences backs the /start menu. Nil disables the menu.
	Preferences handlers.PreferenceStore
}

// Bot wraps telebot.Bot with the callback router and the signal sender.
type Bot struct {
	telebot    *telebot.Bot
	log        *slog.Logger
	cfg        config.Config
	router     *Router
	sender     *Sender
	errHandler *errors.Handler
}

// New builds a telegram bot instance configured according to the application settings.
func New(cfg config.Config, log *slog.Logger, opts Options) (*Bot, error) {
	if log == nil {
		log = slog.Default()
	}

	errHandler := errors.NewHandler(log, cfg.Sentry.Enabled)
	return newBot(cfg, log, opts, Settings(cfg, errHandler), errHandler)
}

// Settings translates the bot configuration into telebot settings.
func Settings(cfg config.Config, errHandler *errors.Handler) telebot.Settings {
	settings := telebot.Settings{
		Token: cfg.Bot.Token,
		OnError: func(err error, _ telebot.Context) {
			errHandler.Handle(context.Background(), errors.NewPlatformRequestError("getUpdates", err))
		},
	}

	if cfg.Bot.IsWebhook() {
		listen := cfg.Bot.Webhook.Listen
		if listen == "" {
			listen = defaultWebhookListen
		}

		webhook := &telebot.Webhook{
			Listen:         listen,
			AllowedUpdates: allowedUpdates,
		}
		if cfg.Bot.Webhook.PublicURL != "" {
			webhook.Endpoint = &telebot.WebhookEndpoint{PublicURL: cfg.Bot.Webhook.PublicURL}
		}
		settings.Poller = webhook
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout:        cfg.Bot.Timeout,
			AllowedUpdates: allowedUpdates,
		}
	}

	return settings
}

func newBot(cfg config.Config, log *slog.Logger, opts Options, settings telebot.Settings, errHandler *errors.Handler) (*Bot, error) {
	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	router := NewRouter(log, errHandler)
	router.RegisterTopic(callback.TopicTechnicalAnalysis, handlers.NewTechnicalAnalysisHandler(opts.Charts, cfg.Chart.Timeframe, log))
	router.RegisterTopic(callback.TopicMarketSentiment, handlers.NewMarketSentimentHandler(log))
	// economic calendar has no handler, its presses are logged and ignored

	b := &Bot{
		telebot:    tb,
		log:        log,
		cfg:        cfg,
		router:     router,
		sender:     NewSender(tb, cfg.Bot.ChatID, log, errHandler),
		errHandler: errHandler,
	}

	b.telebot.Use(RecoveryMiddleware(log, errHandler))
	b.telebot.Use(LoggingMiddleware(log))
	if opts.Idempotency != nil {
		b.telebot.Use(middleware.Idempotency(opts.Idempotency, cfg.Idempotency.TTL, log))
	}

	b.telebot.Handle(telebot.OnCallback, b.router.Handle)

	if opts.Preferences != nil {
		builder := keyboard.NewBuilder(preferences.NewCatalog(cfg.Preferences), cfg.Preferences.PageSize)
		b.registerMenu(handlers.NewMenu(opts.Preferences, builder, errHandler, log))
	}

	return b, nil
}

// registerMenu binds the menu to its commands and unique button endpoints. telebot dispatches
// unique presses before OnCallback, so the router never sees them.
func (b *Bot) registerMenu(menu *handlers.Menu) {
	b.telebot.Handle(CommandStart, menu.Start)
	b.telebot.Handle(CommandPreferences, menu.Preferences)

	endpoints := map[string]telebot.HandlerFunc{
		keyboard.UniqueMarket:           menu.Market,
		keyboard.UniqueMarketPage:       menu.MarketPage,
		keyboard.UniqueInstrument:       menu.Instrument,
		keyboard.UniqueTimeframe:        menu.Timeframe,
		keyboard.UniqueBack:             menu.Back,
		keyboard.UniqueViewPreferences:  menu.ViewPreferences,
		keyboard.UniqueDeletePreference: menu.DeletePreference,
	}
	for unique, handler := range endpoints {
		b.telebot.Handle(&telebot.InlineButton{Unique: unique}, handler)
	}
}

// Start runs the telegram bot event loop. It blocks until Stop is called.
func (b *Bot) Start() {
	if b.telebot != nil {
		b.log.Info("starting telegram bot", slog.String("mode", b.cfg.Bot.Mode))
		b.telebot.Start()
	}
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

// Router exposes the callback router.
func (b *Bot) Router() *Router {
	return b.router
}

// Sender exposes the signal sender bound to the configured chat.
func (b *Bot) Sender() *Sender {
	return b.sender
}
