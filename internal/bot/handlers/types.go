package handlers

import (
	"context"

	telebot "gopkg.in/telebot.v3"
)

// TopicHandler reacts to a signal keyboard button. symbol may be empty and must be tolerated.
type TopicHandler interface {
	Handle(ctx context.Context, c telebot.Context, symbol string) error
}

// TopicHandlerFunc adapts ordinary functions to the TopicHandler interface.
type TopicHandlerFunc func(ctx context.Context, c telebot.Context, symbol string) error

// Handle executes the underlying function.
func (h TopicHandlerFunc) Handle(ctx context.Context, c telebot.Context, symbol string) error {
	return h(ctx, c, symbol)
}
