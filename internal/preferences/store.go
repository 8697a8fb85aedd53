package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "preferences:"

var (
	// ErrDuplicate is returned when the chat already subscribed to the combination.
	ErrDuplicate = errors.New("preference already exists")
	// ErrNotFound is returned when deleting a preference the chat does not have.
	ErrNotFound = errors.New("preference not found")
)

// Preference is one instrument and timeframe combination a chat subscribed to.
type Preference struct {
	ID         string    `json:"id"`
	ChatID     int64     `json:"chat_id"`
	Market     string    `json:"market"`
	Instrument string    `json:"instrument"`
	Timeframe  string    `json:"timeframe"`
	CreatedAt  time.Time `json:"created_at"`
}

// PreferenceID derives the stable identifier of a combination. It doubles as callback data.
func PreferenceID(instrument, timeframe string) string {
	return instrument + ":" + timeframe
}

type Store interface {
	Add(ctx context.Context, p Preference) (Preference, error)
	List(ctx context.Context, chatID int64) ([]Preference, error)
	Delete(ctx context.Context, chatID int64, id string) error
	Subscribers(ctx context.Context, instrument, timeframe string) ([]int64, error)
}

type RedisStore struct {
	client redis.UniversalClient
	log    *slog.Logger
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient, log *slog.Logger) *RedisStore {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{
		client: client,
		log:    log,
		now:    time.Now,
	}
}

// Add stores p for its chat. The chat hash and the subscriber index are written in one transaction.
func (s *RedisStore) Add(ctx context.Context, p Preference) (Preference, error) {
	p.ID = PreferenceID(p.Instrument, p.Timeframe)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}

	data, err := json.Marshal(p)
	if err != nil {
		return Preference{}, fmt.Errorf("marshal preference: %w", err)
	}

	var created *redis.BoolCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		created = pipe.HSetNX(ctx, chatKey(p.ChatID), p.ID, data)
		pipe.SAdd(ctx, subscribersKey(p.Instrument, p.Timeframe), p.ChatID)
		return nil
	})
	if err != nil {
		s.log.Error("failed to store preference",
			slog.Int64("chat_id", p.ChatID),
			slog.String("preference", p.ID),
			slog.Any("error", err),
		)
		return Preference{}, err
	}

	if !created.Val() {
		return Preference{}, ErrDuplicate
	}

	return p, nil
}

// List returns the preferences of chatID, oldest first.
func (s *RedisStore) List(ctx context.Context, chatID int64) ([]Preference, error) {
	raw, err := s.client.HGetAll(ctx, chatKey(chatID)).Result()
	if err != nil {
		s.log.Error("failed to list preferences", slog.Int64("chat_id", chatID), slog.Any("error", err))
		return nil, err
	}

	prefs := make([]Preference, 0, len(raw))
	for id, value := range raw {
		var p Preference
		if err := json.Unmarshal([]byte(value), &p); err != nil {
			s.log.Warn("skipping malformed preference", slog.Int64("chat_id", chatID), slog.String("preference", id))
			continue
		}
		prefs = append(prefs, p)
	}

	sort.Slice(prefs, func(i, j int) bool {
		if prefs[i].CreatedAt.Equal(prefs[j].CreatedAt) {
			return prefs[i].ID < prefs[j].ID
		}
		return prefs[i].CreatedAt.Before(prefs[j].CreatedAt)
	})

	return prefs, nil
}

// Delete removes the preference id of chatID.
func (s *RedisStore) Delete(ctx context.Context, chatID int64, id string) error {
	value, err := s.client.HGet(ctx, chatKey(chatID), id).Result()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		s.log.Error("failed to load preference", slog.Int64("chat_id", chatID), slog.String("preference", id), slog.Any("error", err))
		return err
	}

	var p Preference
	if err := json.Unmarshal([]byte(value), &p); err != nil {
		return fmt.Errorf("decode preference %s: %w", id, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, chatKey(chatID), id)
		pipe.SRem(ctx, subscribersKey(p.Instrument, p.Timeframe), chatID)
		return nil
	})
	if err != nil {
		s.log.Error("failed to delete preference", slog.Int64("chat_id", chatID), slog.String("preference", id), slog.Any("error", err))
		return err
	}

	return nil
}

// Subscribers returns the chats subscribed to instrument on timeframe, in ascending order.
func (s *RedisStore) Subscribers(ctx context.Context, instrument, timeframe string) ([]int64, error) {
	members, err := s.client.SMembers(ctx, subscribersKey(instrument, timeframe)).Result()
	if err != nil {
		return nil, err
	}

	chats := make([]int64, 0, len(members))
	for _, member := range members {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			s.log.Warn("skipping malformed subscriber", slog.String("member", member))
			continue
		}
		chats = append(chats, id)
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i] < chats[j] })

	return chats, nil
}

func chatKey(chatID int64) string {
	return keyPrefix + "chat:" + strconv.FormatInt(chatID, 10)
}

func subscribersKey(instrument, timeframe string) string {
	return keyPrefix + "subscribers:" + instrument + ":" + timeframe
}
