package handlers

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sigmapips-bot/internal/bot/keyboard"
	errors "github.com/Proton-105/sigmapips-bot/internal/errors"
	"github.com/Proton-105/sigmapips-bot/internal/preferences"
	"github.com/Proton-105/sigmapips-bot/pkg/logger"
)

const (
	WelcomeText             = "🌟 Welcome to SigmaPips!\n\nSelect a market to get started:"
	SelectMarketText        = "🌟 Select a market:"
	NoPreferencesText       = "You have no preferences yet. Select a market to get started:"
	NoPreferencesLeftText   = "🌟 No preferences left. Select a market to add new preferences:"
	CurrentPreferencesText  = "📋 Your current preferences:"
	InvalidMarketText       = "Invalid market"
	InvalidInstrumentText   = "Invalid instrument"
	InvalidTimeframeText    = "Invalid timeframe"
	DuplicatePreferenceText = "You already have this combination!"
	SaveFailedText          = "Failed to save preference"
	PreferenceDeletedText   = "✅ Preference deleted!"
	DeleteFailedText        = "❌ Could not delete preference"
	MenuErrorText           = "An error occurred"
)

// PreferenceStore persists the combinations chosen in the menu.
type PreferenceStore interface {
	Add(ctx context.Context, p preferences.Preference) (preferences.Preference, error)
	List(ctx context.Context, chatID int64) ([]preferences.Preference, error)
	Delete(ctx context.Context, chatID int64, id string) error
}

// Menu drives the /start flow: market, then instrument, then timeframe. Every press edits the
// menu message in place and is acknowledged so the client stops its spinner.
type Menu struct {
	store      PreferenceStore
	keyboards  *keyboard.Builder
	errHandler *errors.Handler
	log        *slog.Logger
}

func NewMenu(store PreferenceStore, keyboards *keyboard.Builder, errHandler *errors.Handler, log *slog.Logger) *Menu {
	if log == nil {
		log = slog.Default()
	}

	return &Menu{
		store:      store,
		keyboards:  keyboards,
		errHandler: errHandler,
		log:        log.With(slog.String("component", "menu")),
	}
}

// Start answers /start with the market menu.
func (m *Menu) Start(c telebot.Context) error {
	markup, err := m.keyboards.MainMenu()
	if err != nil {
		return err
	}
	return c.Send(WelcomeText, markup)
}

// Preferences answers /preferences with the stored combinations.
func (m *Menu) Preferences(c telebot.Context) error {
	ctx := menuContext(c)

	text, markup, err := m.preferencesView(ctx, c, NoPreferencesText)
	if err != nil {
		m.report(ctx, errors.NewStorageError("list preferences", err))
		return c.Send(MenuErrorText)
	}
	return c.Send(text, markup)
}

// Market shows the first page of instruments of the pressed market.
func (m *Menu) Market(c telebot.Context) error {
	return m.showInstruments(c, c.Data(), 1)
}

// MarketPage pages through the instruments of a market. Data is "<market>|<page>".
func (m *Menu) MarketPage(c telebot.Context) error {
	args := c.Args()
	if len(args) != 2 {
		return c.Respond(&telebot.CallbackResponse{Text: InvalidMarketText})
	}

	page, err := strconv.Atoi(args[1])
	if err != nil {
		page = 1
	}
	return m.showInstruments(c, args[0], page)
}

// Instrument offers the timeframes for the pressed instrument.
func (m *Menu) Instrument(c telebot.Context) error {
	instrument := c.Data()
	if _, ok := m.keyboards.Catalog().MarketOf(instrument); !ok {
		return c.Respond(&telebot.CallbackResponse{Text: InvalidInstrumentText})
	}

	markup, err := m.keyboards.TimeframeMenu(instrument)
	if err != nil {
		return err
	}
	if err := c.Edit(fmt.Sprintf("⏱ Select timeframe for %s:", instrument), markup); err != nil {
		return err
	}
	return c.Respond()
}

// Timeframe stores the chosen combination. Data is "<instrument>|<timeframe>".
func (m *Menu) Timeframe(c telebot.Context) error {
	ctx := menuContext(c)

	args := c.Args()
	if len(args) != 2 {
		return c.Respond(&telebot.CallbackResponse{Text: InvalidInstrumentText})
	}
	instrument, timeframe := args[0], args[1]

	catalog := m.keyboards.Catalog()
	market, ok := catalog.MarketOf(instrument)
	if !ok {
		m.log.WarnContext(ctx, "could not determine market for instrument", slog.String("instrument", instrument))
		return c.Respond(&telebot.CallbackResponse{Text: InvalidInstrumentText})
	}
	if !catalog.HasTimeframe(timeframe) {
		return c.Respond(&telebot.CallbackResponse{Text: InvalidTimeframeText})
	}

	chatID, ok := chatIDOf(c)
	if !ok {
		return c.Respond(&telebot.CallbackResponse{Text: MenuErrorText})
	}

	_, err := m.store.Add(ctx, preferences.Preference{
		ChatID:     chatID,
		Market:     market,
		Instrument: instrument,
		Timeframe:  timeframe,
	})
	switch {
	case stdErrors.Is(err, preferences.ErrDuplicate):
		return c.Respond(&telebot.CallbackResponse{Text: DuplicatePreferenceText})
	case err != nil:
		m.report(ctx, errors.NewStorageError("add preference", err))
		return c.Respond(&telebot.CallbackResponse{Text: SaveFailedText})
	}

	m.log.InfoContext(ctx, "preference saved",
		slog.Int64("chat_id", chatID),
		slog.String("market", market),
		slog.String("instrument", instrument),
		slog.String("timeframe", timeframe),
	)

	prefs, err := m.store.List(ctx, chatID)
	if err != nil {
		m.report(ctx, errors.NewStorageError("list preferences", err))
		return c.Respond(&telebot.CallbackResponse{Text: MenuErrorText})
	}

	markup, err := m.keyboards.PreferencesMenu(prefs)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("✅ Preference saved!\n\nInstrument: %s\nTimeframe: %s\n\n%s", instrument, timeframe, listPreferences(prefs))
	if err := c.Edit(text, markup); err != nil {
		return err
	}
	return c.Respond()
}

// Back returns to the market menu.
func (m *Menu) Back(c telebot.Context) error {
	markup, err := m.keyboards.MainMenu()
	if err != nil {
		return err
	}
	if err := c.Edit(SelectMarketText, markup); err != nil {
		return err
	}
	return c.Respond()
}

// ViewPreferences replaces the menu with the stored combinations.
func (m *Menu) ViewPreferences(c telebot.Context) error {
	ctx := menuContext(c)

	text, markup, err := m.preferencesView(ctx, c, NoPreferencesText)
	if err != nil {
		m.report(ctx, errors.NewStorageError("list preferences", err))
		return c.Respond(&telebot.CallbackResponse{Text: MenuErrorText})
	}
	if err := c.Edit(text, markup); err != nil {
		return err
	}
	return c.Respond()
}

// DeletePreference removes the pressed combination. Data is the preference id.
func (m *Menu) DeletePreference(c telebot.Context) error {
	ctx := menuContext(c)

	chatID, ok := chatIDOf(c)
	if !ok {
		return c.Respond(&telebot.CallbackResponse{Text: MenuErrorText})
	}

	err := m.store.Delete(ctx, chatID, c.Data())
	switch {
	case stdErrors.Is(err, preferences.ErrNotFound):
		return c.Respond(&telebot.CallbackResponse{Text: DeleteFailedText})
	case err != nil:
		m.report(ctx, errors.NewStorageError("delete preference", err))
		return c.Respond(&telebot.CallbackResponse{Text: MenuErrorText})
	}

	text, markup, err := m.preferencesView(ctx, c, NoPreferencesLeftText)
	if err != nil {
		m.report(ctx, errors.NewStorageError("list preferences", err))
		return c.Respond(&telebot.CallbackResponse{Text: PreferenceDeletedText})
	}
	if err := c.Edit(text, markup); err != nil {
		return err
	}
	return c.Respond(&telebot.CallbackResponse{Text: PreferenceDeletedText})
}

func (m *Menu) showInstruments(c telebot.Context, market string, page int) error {
	markup, err := m.keyboards.InstrumentMenu(market, page)
	if err != nil {
		return c.Respond(&telebot.CallbackResponse{Text: InvalidMarketText})
	}
	if err := c.Edit(fmt.Sprintf("📊 Select %s instrument:", market), markup); err != nil {
		return err
	}
	return c.Respond()
}

// preferencesView renders the stored combinations, or emptyText with the market menu when there are none.
func (m *Menu) preferencesView(ctx context.Context, c telebot.Context, emptyText string) (string, *telebot.ReplyMarkup, error) {
	chatID, ok := chatIDOf(c)
	if !ok {
		return "", nil, fmt.Errorf("update carries no chat")
	}

	prefs, err := m.store.List(ctx, chatID)
	if err != nil {
		return "", nil, err
	}

	if len(prefs) == 0 {
		markup, err := m.keyboards.MainMenu()
		return emptyText, markup, err
	}

	markup, err := m.keyboards.PreferencesMenu(prefs)
	return listPreferences(prefs), markup, err
}

func (m *Menu) report(ctx context.Context, err error) {
	if m.errHandler != nil {
		m.errHandler.Handle(ctx, err)
		return
	}
	m.log.ErrorContext(ctx, "menu action failed", slog.Any("error", err))
}

func listPreferences(prefs []preferences.Preference) string {
	var b strings.Builder
	b.WriteString(CurrentPreferencesText)
	b.WriteString("\n\n")
	for _, p := range prefs {
		fmt.Fprintf(&b, "• %s - %s\n", p.Instrument, p.Timeframe)
	}
	return b.String()
}

func chatIDOf(c telebot.Context) (int64, bool) {
	if chat := c.Chat(); chat != nil {
		return chat.ID, true
	}
	if sender := c.Sender(); sender != nil {
		return sender.ID, true
	}
	return 0, false
}

func menuContext(c telebot.Context) context.Context {
	id := ""
	if cb := c.Callback(); cb != nil && cb.ID != "" {
		id = "cb-" + cb.ID
	} else if msg := c.Message(); msg != nil {
		id = "msg-" + strconv.Itoa(msg.ID)
	}
	return logger.WithCorrelationID(context.Background(), id)
}
