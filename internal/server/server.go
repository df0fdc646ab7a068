// Package server exposes the inbound chat webhook. The endpoint
// acknowledges the transport immediately and runs the pipeline on a
// detached goroutine: the only ordering promise is "acknowledged before
// processing completes".
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"facturabot/internal/logger"
)

// Pipeline is the orchestrator surface the server dispatches into.
type Pipeline interface {
	HandleMessage(ctx context.Context, chatID int64, text string)
}

// Options for constructing the server.
type Options struct {
	Addr string

	// WebhookSecret, when set, becomes part of the webhook path so only
	// the transport that was given the URL can reach it.
	WebhookSecret string

	Pipeline Pipeline
}

// Server wraps the HTTP listener.
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
}

// New builds the router and server.
func New(opts Options) (*Server, error) {
	if opts.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}

	log := logger.WithComponent("server")

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	webhookPath := "/telegram/webhook"
	if opts.WebhookSecret != "" {
		webhookPath += "/" + opts.WebhookSecret
	}
	r.Post(webhookPath, webhookHandler(opts.Pipeline, log))

	return &Server{
		httpServer: &http.Server{
			Addr:              opts.Addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}, nil
}

// webhookHandler decodes one Bot API update, answers 200 right away and
// hands the message off. The transport retries on non-2xx, so the answer
// must never depend on the pipeline outcome.
func webhookHandler(pipeline Pipeline, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			log.Warn().Err(err).Msg("Dropping undecodable webhook payload")
			w.WriteHeader(http.StatusOK)
			return
		}

		w.WriteHeader(http.StatusOK)

		msg := update.Message
		if msg == nil || msg.Text == "" || msg.Chat == nil {
			return
		}

		log.Info().
			Int64("chat_id", msg.Chat.ID).
			Int("update_id", update.UpdateID).
			Msg("Dispatching chat message")

		go pipeline.HandleMessage(context.Background(), msg.Chat.ID, msg.Text)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.log.Info().Msg("Shutting down HTTP server")
	return s.httpServer.Shutdown(shutdownCtx)
}
