// Package server exposes the webhook endpoint: rate limiting, request
// parsing, dispatch, and response shaping.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/adalundhe/relay/core/analytics"
	"github.com/adalundhe/relay/core/chat"
	"github.com/adalundhe/relay/core/knowledge"
	"github.com/adalundhe/relay/core/llm"
	"github.com/adalundhe/relay/core/locale"
	"github.com/adalundhe/relay/core/ratelimit"
)

const maxBodyBytes = 1 << 20

// Generator produces an answer for an assembled prompt.
type Generator interface {
	Dispatch(ctx context.Context, prompt string) (string, error)
}

// response is the wire envelope for every reply, success or failure.
type response struct {
	Success bool   `json:"success"`
	Answer  string `json:"answer,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithAnswerCache(cache *llm.AnswerCache) Option {
	return func(s *Server) {
		s.cache = cache
	}
}

func WithRecorder(recorder *analytics.Recorder) Option {
	return func(s *Server) {
		s.recorder = recorder
	}
}

type Server struct {
	gate      ratelimit.Gate
	kb        *knowledge.Base
	generator Generator
	cache     *llm.AnswerCache
	recorder  *analytics.Recorder
	logger    *slog.Logger
}

func New(gate ratelimit.Gate, kb *knowledge.Base, generator Generator, opts ...Option) *Server {
	s := &Server{
		gate:      gate,
		kb:        kb,
		generator: generator,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Handler routes the single webhook endpoint. The root path aliases it so
// bare deployments keep working.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.handleWebhook)
	mux.HandleFunc("/", s.handleWebhook)
	return mux
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		// GET doubles as a liveness probe.
		s.respond(w, response{Error: locale.Message(locale.English, locale.MsgLivenessResponse)})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.respond(w, response{Error: locale.Message(locale.English, locale.MsgNoData)})
		return
	}

	meta := chat.ExtractMetadata(body, r)

	// Plain analytics events (page views and the like) are recorded and
	// acknowledged without touching the quota or the dispatcher.
	if eventType := chat.EventType(body); eventType != "" {
		s.record(meta, eventType, nil, "", 0)
		s.respond(w, response{Success: true})
		return
	}

	if decision := s.gate.CheckAndConsume(meta.CallerID(), meta.UserAgent, meta.IP, meta.Referrer, meta.Language); !decision.Allowed {
		s.record(meta, analytics.EventRateLimit, nil, "", 0)
		s.respond(w, response{Error: decision.Message})
		return
	}

	req, err := chat.Parse(body)
	if err != nil {
		s.logger.Debug("rejecting request", "error", err)
		s.respond(w, response{Error: s.userMessage(err, meta.Language)})
		return
	}

	if answer, ok := s.cache.Get(req.Language, req.Question); ok {
		s.record(meta, analytics.EventChat, req, answer, 0)
		s.respond(w, response{Success: true, Answer: answer})
		return
	}

	started := time.Now()
	answer, err := s.generator.Dispatch(r.Context(), s.kb.BuildPrompt(req))
	elapsed := time.Since(started)

	if err != nil {
		// Diagnostic detail stays in the log; the caller sees only the
		// localized category message.
		s.logger.Error("dispatch failed", "error", err, "elapsed", elapsed)
		s.respond(w, response{Error: s.userMessage(err, req.Language)})
		return
	}

	s.cache.Add(req.Language, req.Question, answer)
	s.record(meta, analytics.EventChat, req, answer, elapsed)
	s.respond(w, response{Success: true, Answer: answer})
}

// userMessage maps the internal error taxonomy onto localized user-facing
// text. Unclassified failures collapse into the generic message.
func (s *Server) userMessage(err error, lang locale.Lang) string {
	switch {
	case errors.Is(err, chat.ErrEmptyQuestion):
		return locale.Message(lang, locale.MsgEmptyQuestion)
	case errors.Is(err, chat.ErrNoData), errors.Is(err, chat.ErrInvalidJSON):
		return locale.Message(lang, locale.MsgNoData)
	case errors.Is(err, llm.ErrRateLimitExceeded), errors.Is(err, llm.ErrQuotaExceeded):
		return locale.Message(lang, locale.MsgQuotaExceeded)
	case errors.Is(err, llm.ErrServiceUnavailable):
		return locale.Message(lang, locale.MsgServiceBusy)
	case errors.Is(err, llm.ErrTimeout):
		return locale.Message(lang, locale.MsgTimeout)
	default:
		return locale.Message(lang, locale.MsgGenericFailure)
	}
}

func (s *Server) record(meta chat.Metadata, eventType string, req *chat.ChatRequest, answer string, elapsed time.Duration) {
	if s.recorder == nil {
		return
	}

	event := analytics.NewEvent(eventType)
	event.UserID = meta.UserID
	event.DeviceID = meta.DeviceID
	event.UserAgent = meta.UserAgent
	event.Referrer = meta.Referrer
	event.IP = meta.IP
	event.Language = string(meta.Language)
	event.Answer = answer
	event.ResponseTime = elapsed
	if req != nil {
		event.Question = req.Question
		event.Language = string(req.Language)
	}

	s.recorder.Record(event)
}

func (s *Server) respond(w http.ResponseWriter, resp response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}
