// Package api exposes the HTTP intake for signals alongside health and metrics endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sigmapips-bot/internal/bot"
	apperrors "github.com/Proton-105/sigmapips-bot/internal/errors"
	"github.com/Proton-105/sigmapips-bot/internal/health"
	"github.com/Proton-105/sigmapips-bot/internal/jobs"
	"github.com/Proton-105/sigmapips-bot/internal/lifecycle"
	"github.com/Proton-105/sigmapips-bot/internal/middleware"
	"github.com/Proton-105/sigmapips-bot/internal/signal"
	"github.com/Proton-105/sigmapips-bot/internal/subscribers"
	"github.com/Proton-105/sigmapips-bot/pkg/logger"
)

const maxBodyBytes = 1 << 20

// MessageSender publishes a signal message synchronously.
type MessageSender interface {
	Send(ctx context.Context, msg bot.OutboundMessage) (*telebot.Message, error)
}

// Enqueuer schedules background tasks.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Broadcaster fans a signal out to its matched subscribers.
type Broadcaster interface {
	Broadcast(ctx context.Context, sig signal.Signal) (subscribers.Result, error)
}

// Server serves the HTTP API.
type Server struct {
	sender      MessageSender
	queue       Enqueuer
	broadcaster Broadcaster
	checker     *health.Checker
	process     lifecycle.HealthChecker
	errHandler  *apperrors.Handler
	log         *slog.Logger
}

// Options wires optional collaborators.
type Options struct {
	// Queue enables asynchronous delivery for POST /signals. Nil sends synchronously.
	Queue Enqueuer
	// Broadcaster also delivers each signal to its subscribers. With a queue the fan-out runs
	// as its own task.
	Broadcaster Broadcaster
	Checker     *health.Checker
	Health      lifecycle.HealthChecker
}

// NewServer builds the API server.
func NewServer(sender MessageSender, errHandler *apperrors.Handler, log *slog.Logger, opts Options) *Server {
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		sender:      sender,
		queue:       opts.Queue,
		broadcaster: opts.Broadcaster,
		checker:     opts.Checker,
		process:     opts.Health,
		errHandler:  errHandler,
		log:         log.With(slog.String("component", "api")),
	}
}

// Handler returns the routed handler with correlation ids and request logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /send", s.handleSend)
	mux.HandleFunc("POST /signals", s.handleSignal)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /livez", s.handleLiveness)
	mux.HandleFunc("GET /readyz", s.handleReadiness)
	mux.Handle("GET /metrics", promhttp.Handler())

	return logger.Middleware(middleware.HTTPLogging(s.log)(mux))
}

type sendResponse struct {
	MessageID      int                 `json:"message_id"`
	Broadcast      *subscribers.Result `json:"broadcast,omitempty"`
	BroadcastError string              `json:"broadcast_error,omitempty"`
}

type enqueueResponse struct {
	TaskID          string `json:"task_id"`
	Queue           string `json:"queue"`
	BroadcastTaskID string `json:"broadcast_task_id,omitempty"`
	BroadcastError  string `json:"broadcast_error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var msg bot.OutboundMessage
	if err := decodeJSON(r, &msg); err != nil {
		s.fail(w, r, http.StatusBadRequest, apperrors.NewValidationError(err.Error()))
		return
	}

	if resp, ok := s.send(w, r, msg); ok {
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	var sig signal.Signal
	if err := decodeJSON(r, &sig); err != nil {
		s.fail(w, r, http.StatusBadRequest, apperrors.NewValidationError(err.Error()))
		return
	}
	if err := sig.Validate(); err != nil {
		s.fail(w, r, http.StatusBadRequest, apperrors.NewValidationError(err.Error()))
		return
	}

	if s.queue == nil {
		s.deliverSignal(w, r, sig)
		return
	}
	s.enqueueSignal(w, r, sig)
}

// deliverSignal sends to the configured chat, then fans out. A channel failure stops before the
// fan-out so a retried request does not reach subscribers twice.
func (s *Server) deliverSignal(w http.ResponseWriter, r *http.Request, sig signal.Signal) {
	resp, ok := s.send(w, r, sig.Message())
	if !ok {
		return
	}

	if s.broadcaster != nil {
		result, err := s.broadcaster.Broadcast(r.Context(), sig)
		if err != nil {
			s.report(r.Context(), err)
			resp.BroadcastError = err.Error()
		} else {
			resp.Broadcast = &result
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) enqueueSignal(w http.ResponseWriter, r *http.Request, sig signal.Signal) {
	ctx := r.Context()
	corrID := logger.CorrelationIDFromContext(ctx)

	task, err := jobs.NewSignalDeliveryTask(sig.Message(), corrID)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}

	info, err := s.queue.Enqueue(ctx, task)
	if err != nil {
		s.fail(w, r, http.StatusServiceUnavailable, apperrors.NewExternalAPIError("queue", err))
		return
	}

	resp := enqueueResponse{TaskID: info.ID, Queue: info.Queue}
	if s.broadcaster != nil {
		id, err := s.enqueueBroadcast(ctx, sig, corrID)
		if err != nil {
			s.report(ctx, err)
			resp.BroadcastError = err.Error()
		}
		resp.BroadcastTaskID = id
	}

	s.log.InfoContext(ctx, "signal queued",
		slog.String("symbol", sig.Symbol),
		slog.String("task_id", info.ID),
		slog.String("broadcast_task_id", resp.BroadcastTaskID),
		slog.String("correlation_id", corrID),
	)
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) enqueueBroadcast(ctx context.Context, sig signal.Signal, corrID string) (string, error) {
	task, err := jobs.NewSignalBroadcastTask(sig, corrID)
	if err != nil {
		return "", err
	}

	info, err := s.queue.Enqueue(ctx, task)
	if err != nil {
		return "", apperrors.NewExternalAPIError("queue", err)
	}
	return info.ID, nil
}

// send writes the error response itself and reports ok=false when delivery failed.
func (s *Server) send(w http.ResponseWriter, r *http.Request, msg bot.OutboundMessage) (sendResponse, bool) {
	sent, err := s.sender.Send(r.Context(), msg)
	if err != nil {
		// the sender already reported the failure
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return sendResponse{}, false
	}

	resp := sendResponse{}
	if sent != nil {
		resp.MessageID = sent.ID
	}
	return resp, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeJSON(w, http.StatusOK, health.Report{Status: health.StatusOK, Components: map[string]string{}})
		return
	}

	report := s.checker.Check(r.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.respondCheck(w, r, func(ctx context.Context) error {
		if s.process == nil {
			return nil
		}
		return s.process.Liveness(ctx)
	})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	s.respondCheck(w, r, func(ctx context.Context) error {
		if s.process == nil {
			return nil
		}
		return s.process.Readiness(ctx)
	})
}

func (s *Server) respondCheck(w http.ResponseWriter, r *http.Request, check func(context.Context) error) {
	if err := check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": health.StatusOK})
}

func (s *Server) report(ctx context.Context, err error) {
	if s.errHandler != nil {
		s.errHandler.Handle(ctx, err)
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := err.Error()
	s.report(r.Context(), err)

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Code == apperrors.CodeValidation {
		msg = appErr.Message
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
