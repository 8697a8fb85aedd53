// Package testutil holds fakes shared by bot tests.
package testutil

import (
	"strings"
	"sync"

	telebot "gopkg.in/telebot.v3"
)

// Edit is one recorded Context.Edit call.
type Edit struct {
	What interface{}
	Opts []interface{}
}

// FakeContext is a telebot.Context for a single callback query or command message.
// Methods not overridden here panic through the nil embedded interface.
type FakeContext struct {
	telebot.Context

	mu        sync.Mutex
	callback  *telebot.Callback
	message   *telebot.Message
	store     map[string]interface{}
	SendErr   error
	EditErr   error
	Sent      []interface{}
	SendOpts  [][]interface{}
	Edits     []Edit
	Responses []*telebot.CallbackResponse
	Responded int
}

// NewCallbackContext builds a context carrying callback data.
func NewCallbackContext(id, data string) *FakeContext {
	return &FakeContext{
		callback: &telebot.Callback{
			ID:     id,
			Data:   data,
			Sender: &telebot.User{ID: 42},
		},
		store: make(map[string]interface{}),
	}
}

// NewMenuCallbackContext builds a callback as telebot hands it to a unique endpoint handler:
// the unique prefix is stripped and Data holds only the payload. The press happens on a
// message in chatID.
func NewMenuCallbackContext(id, unique, data string, chatID int64) *FakeContext {
	return &FakeContext{
		callback: &telebot.Callback{
			ID:      id,
			Unique:  unique,
			Data:    data,
			Sender:  &telebot.User{ID: chatID},
			Message: &telebot.Message{ID: 100, Chat: &telebot.Chat{ID: chatID}},
		},
		store: make(map[string]interface{}),
	}
}

// NewCommandContext builds a context for a text command sent in chatID.
func NewCommandContext(text string, chatID int64) *FakeContext {
	command, payload, _ := strings.Cut(text, " ")
	return &FakeContext{
		message: &telebot.Message{
			ID:      1,
			Text:    command,
			Payload: payload,
			Sender:  &telebot.User{ID: chatID},
			Chat:    &telebot.Chat{ID: chatID},
		},
		store: make(map[string]interface{}),
	}
}

func (f *FakeContext) Callback() *telebot.Callback {
	return f.callback
}

func (f *FakeContext) Sender() *telebot.User {
	switch {
	case f.callback != nil:
		return f.callback.Sender
	case f.message != nil:
		return f.message.Sender
	default:
		return nil
	}
}

func (f *FakeContext) Message() *telebot.Message {
	if f.callback != nil {
		return f.callback.Message
	}
	return f.message
}

func (f *FakeContext) Chat() *telebot.Chat {
	if msg := f.Message(); msg != nil {
		return msg.Chat
	}
	return nil
}

func (f *FakeContext) Text() string {
	if f.message != nil {
		return f.message.Text
	}
	return ""
}

func (f *FakeContext) Data() string {
	switch {
	case f.callback != nil:
		return f.callback.Data
	case f.message != nil:
		return f.message.Payload
	default:
		return ""
	}
}

func (f *FakeContext) Args() []string {
	if f.callback != nil {
		return strings.Split(f.callback.Data, "|")
	}
	if f.message != nil && strings.TrimSpace(f.message.Payload) != "" {
		return strings.Fields(f.message.Payload)
	}
	return nil
}

func (f *FakeContext) Send(what interface{}, opts ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SendErr != nil {
		return f.SendErr
	}
	f.Sent = append(f.Sent, what)
	f.SendOpts = append(f.SendOpts, opts)
	return nil
}

func (f *FakeContext) Edit(what interface{}, opts ...interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.EditErr != nil {
		return f.EditErr
	}
	if f.callback == nil {
		return telebot.ErrBadContext
	}
	f.Edits = append(f.Edits, Edit{What: what, Opts: opts})
	return nil
}

func (f *FakeContext) Respond(resp ...*telebot.CallbackResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Responded++
	f.Responses = append(f.Responses, resp...)
	return nil
}

// LastResponseText returns the text of the latest callback answer, if any carried one.
func (f *FakeContext) LastResponseText() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.Responses) == 0 {
		return ""
	}
	return f.Responses[len(f.Responses)-1].Text
}

func (f *FakeContext) Get(key string) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store[key]
}

func (f *FakeContext) Set(key string, val interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[key] = val
}
