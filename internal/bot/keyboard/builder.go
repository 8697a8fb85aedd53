package keyboard

import (
	"fmt"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sigmapips-bot/internal/bot/callback"
	"github.com/Proton-105/sigmapips-bot/internal/preferences"
)

// Unique endpoints of the preference menu. Presses on these buttons are routed by telebot
// straight to their handlers and never reach OnCallback.
const (
	UniqueMarket           = "market"
	UniqueMarketPage       = "market_page"
	UniqueInstrument       = "instrument"
	UniqueTimeframe        = "timeframe"
	UniqueBack             = "back"
	UniqueViewPreferences  = "view_prefs"
	UniqueDeletePreference = "delete_pref"
)

// DataSeparator joins the values carried by a menu button, telebot's Context.Args splits on it.
const DataSeparator = "|"

const (
	TextBack          = "◀️ Back"
	TextAddMore       = "➕ Add More"
	TextMyPreferences = "📋 My Preferences"
)

const (
	defaultPageSize = 6
	marketsPerRow   = 2
	instrumentsRow  = 2
)

// Button is a menu button bound to a telebot unique endpoint.
type Button struct {
	Text   string
	Unique string
	Data   string
}

// Builder creates the inline keyboards of the preference menu.
type Builder struct {
	catalog  preferences.Catalog
	pageSize int
}

// NewBuilder returns a Builder listing pageSize instruments per page.
func NewBuilder(catalog preferences.Catalog, pageSize int) *Builder {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Builder{catalog: catalog, pageSize: pageSize}
}

// Catalog exposes the markets the builder renders.
func (b *Builder) Catalog() preferences.Catalog {
	return b.catalog
}

// MainMenu lists the markets followed by a shortcut to the stored preferences.
func (b *Builder) MainMenu() (*telebot.ReplyMarkup, error) {
	buttons := make([]Button, 0, len(b.catalog.Markets()))
	for _, market := range b.catalog.Markets() {
		buttons = append(buttons, Button{Text: market, Unique: UniqueMarket, Data: market})
	}

	rows := chunk(buttons, marketsPerRow)
	rows = append(rows, []Button{{Text: TextMyPreferences, Unique: UniqueViewPreferences}})
	return Markup(rows...)
}

// InstrumentMenu lists one page of the instruments of market.
func (b *Builder) InstrumentMenu(market string, page int) (*telebot.ReplyMarkup, error) {
	instruments, ok := b.catalog.Instruments(market)
	if !ok {
		return nil, fmt.Errorf("unknown market %q", market)
	}

	total := TotalPages(len(instruments), b.pageSize)
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}

	start := (page - 1) * b.pageSize
	end := min(start+b.pageSize, len(instruments))

	buttons := make([]Button, 0, end-start)
	for _, instrument := range instruments[start:end] {
		buttons = append(buttons, Button{Text: instrument, Unique: UniqueInstrument, Data: instrument})
	}

	rows := chunk(buttons, instrumentsRow)
	if total > 1 {
		rows = append(rows, PaginationButtons(UniqueMarketPage, market, page, total))
	}
	rows = append(rows, []Button{{Text: TextBack, Unique: UniqueBack}})
	return Markup(rows...)
}

// TimeframeMenu offers every timeframe for instrument in a single row.
func (b *Builder) TimeframeMenu(instrument string) (*telebot.ReplyMarkup, error) {
	row := make([]Button, 0, len(b.catalog.Timeframes()))
	for _, tf := range b.catalog.Timeframes() {
		row = append(row, Button{Text: tf, Unique: UniqueTimeframe, Data: instrument + DataSeparator + tf})
	}

	return Markup(row, []Button{{Text: TextBack, Unique: UniqueBack}})
}

// PreferencesMenu offers a delete button per preference and a way back to the markets.
func (b *Builder) PreferencesMenu(prefs []preferences.Preference) (*telebot.ReplyMarkup, error) {
	rows := make([][]Button, 0, len(prefs)+1)
	for _, p := range prefs {
		rows = append(rows, []Button{{
			Text:   fmt.Sprintf("🗑 Delete %s %s", p.Instrument, p.Timeframe),
			Unique: UniqueDeletePreference,
			Data:   p.ID,
		}})
	}
	rows = append(rows, []Button{{Text: TextAddMore, Unique: UniqueBack}})
	return Markup(rows...)
}

// Markup renders rows of menu buttons, rejecting any whose callback data would exceed
// Telegram's limit once telebot prefixes the unique endpoint.
func Markup(rows ...[]Button) (*telebot.ReplyMarkup, error) {
	inlineKeyboard := make([][]telebot.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}

		buttons := make([]telebot.InlineButton, len(row))
		for j, btn := range row {
			if size := encodedSize(btn); size > callback.DataLimitBytes {
				return nil, fmt.Errorf("button %q: callback data exceeds %d byte limit: got %d", btn.Text, callback.DataLimitBytes, size)
			}

			buttons[j] = telebot.InlineButton{
				Text:   btn.Text,
				Unique: btn.Unique,
				Data:   btn.Data,
			}
		}
		inlineKeyboard = append(inlineKeyboard, buttons)
	}

	return &telebot.ReplyMarkup{InlineKeyboard: inlineKeyboard}, nil
}

// encodedSize mirrors telebot's "\f<unique>|<data>" encoding.
func encodedSize(btn Button) int {
	size := 1 + len(btn.Unique)
	if btn.Data != "" {
		size += 1 + len(btn.Data)
	}
	return size
}

func chunk(buttons []Button, size int) [][]Button {
	rows := make([][]Button, 0, (len(buttons)+size-1)/size)
	for start := 0; start < len(buttons); start += size {
		end := min(start+size, len(buttons))
		rows = append(rows, buttons[start:end])
	}
	return rows
}
