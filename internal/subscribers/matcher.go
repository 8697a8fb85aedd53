// Package subscribers resolves which chats receive a signal and delivers it to each of them.
package subscribers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Proton-105/sigmapips-bot/internal/preferences"
	"github.com/Proton-105/sigmapips-bot/internal/signal"
)

// Subscriber is a chat that asked for signals matching a preference.
type Subscriber struct {
	ChatID int64  `json:"chat_id"`
	Name   string `json:"name,omitempty"`
}

// UnmarshalJSON accepts chat ids encoded either as numbers or as strings.
func (s *Subscriber) UnmarshalJSON(data []byte) error {
	var raw struct {
		ChatID json.RawMessage `json:"chat_id"`
		Name   string          `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id := string(bytes.Trim(bytes.TrimSpace(raw.ChatID), `"`))
	chatID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("subscriber chat_id %s: %w", raw.ChatID, err)
	}

	s.ChatID = chatID
	s.Name = raw.Name
	return nil
}

// Matcher finds the subscribers of a signal.
type Matcher interface {
	Match(ctx context.Context, sig signal.Signal) ([]Subscriber, error)
}

// SubscriberIndex is the lookup side of the preference store.
type SubscriberIndex interface {
	Subscribers(ctx context.Context, instrument, timeframe string) ([]int64, error)
}

// PreferenceMatcher matches signals against the preferences chosen in the /start menu.
type PreferenceMatcher struct {
	index   SubscriberIndex
	catalog preferences.Catalog
}

func NewPreferenceMatcher(index SubscriberIndex, catalog preferences.Catalog) *PreferenceMatcher {
	return &PreferenceMatcher{index: index, catalog: catalog}
}

// Match returns the chats subscribed to the signal's symbol on its interval. A signal without an
// interval reaches the subscribers of every timeframe.
func (m *PreferenceMatcher) Match(ctx context.Context, sig signal.Signal) ([]Subscriber, error) {
	timeframes := m.catalog.Timeframes()
	if sig.Interval != "" {
		tf, ok := m.resolveTimeframe(sig.Interval)
		if !ok {
			return nil, nil
		}
		timeframes = []string{tf}
	}

	seen := make(map[int64]struct{})
	var subs []Subscriber
	for _, tf := range timeframes {
		chats, err := m.index.Subscribers(ctx, sig.Symbol, tf)
		if err != nil {
			return nil, fmt.Errorf("lookup subscribers of %s %s: %w", sig.Symbol, tf, err)
		}
		for _, chatID := range chats {
			if _, dup := seen[chatID]; dup {
				continue
			}
			seen[chatID] = struct{}{}
			subs = append(subs, Subscriber{ChatID: chatID})
		}
	}

	return subs, nil
}

// resolveTimeframe maps a signal interval onto the catalog spelling. Chart intervals arrive as
// minutes ("15", "240") or as "D"/"W".
func (m *PreferenceMatcher) resolveTimeframe(interval string) (string, bool) {
	candidate := normalizeInterval(interval)
	for _, tf := range m.catalog.Timeframes() {
		if strings.EqualFold(tf, candidate) {
			return tf, true
		}
	}
	return "", false
}

func normalizeInterval(interval string) string {
	interval = strings.TrimSpace(interval)

	minutes, err := strconv.Atoi(interval)
	if err != nil {
		switch strings.ToUpper(interval) {
		case "D", "1D":
			return "1d"
		case "W", "1W":
			return "1w"
		default:
			return interval
		}
	}

	if minutes >= 60 && minutes%60 == 0 {
		return strconv.Itoa(minutes/60) + "h"
	}
	return strconv.Itoa(minutes) + "m"
}
