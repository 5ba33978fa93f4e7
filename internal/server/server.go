// -- internal/server/server.go --
package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/Mukuloli/browser-automation-1/internal/config"
	"github.com/Mukuloli/browser-automation-1/internal/interaction"
	"github.com/Mukuloli/browser-automation-1/internal/safety"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StartTaskFunc launches an automation for a goal. It returns immediately;
// progress is observed through the status endpoint.
type StartTaskFunc func(goal string) error

// Server is the thin HTTP bridge over the automation: a chat endpoint that
// starts tasks and answers pending questions, plus status and question
// polling for a frontend.
type Server struct {
	cfg       config.ServerConfig
	registry  *interaction.Registry
	gateway   *interaction.Gateway
	startTask StartTaskFunc
	logger    *zap.Logger
	httpSrv   *http.Server
}

// NewServer wires the router.
func NewServer(cfg config.ServerConfig, registry *interaction.Registry, gateway *interaction.Gateway, startTask StartTaskFunc, logger *zap.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		registry:  registry,
		gateway:   gateway,
		startTask: startTask,
		logger:    logger.Named("server"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/status", s.handleStatus)
	r.Get("/api/workflow-message", s.handleWorkflowMessage)
	r.Post("/api/chat", s.handleChat)
	r.Post("/api/emergency-stop", s.handleEmergencyStop)

	s.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP bridge listening", zap.String("addr", s.cfg.ListenAddr))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return <-errCh
}

// -- Handlers --

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type workflowMessage struct {
	Question   string `json:"question"`
	Screenshot string `json:"screenshot,omitempty"` // base64 PNG/JPEG
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Snapshot())
}

func (s *Server) handleWorkflowMessage(w http.ResponseWriter, _ *http.Request) {
	question, shot := s.gateway.PendingMessage()
	msg := workflowMessage{Question: question}
	if len(shot) > 0 {
		msg.Screenshot = base64.StdEncoding.EncodeToString(shot)
	}
	writeJSON(w, http.StatusOK, msg)
}

// handleChat either answers the pending question or starts a new automation
// with the message as its goal.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, chatResponse{Status: "error", Detail: "message is required"})
		return
	}

	if s.gateway.PendingQuestion() != "" {
		if err := s.gateway.Answer(req.Message); err != nil {
			writeJSON(w, http.StatusConflict, chatResponse{Status: "error", Detail: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, chatResponse{Status: "answered"})
		return
	}

	if err := s.startTask(req.Message); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, interaction.ErrAutomationBusy) {
			status = http.StatusConflict
		}
		writeJSON(w, status, chatResponse{Status: "error", Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, chatResponse{Status: "started"})
}

func (s *Server) handleEmergencyStop(w http.ResponseWriter, _ *http.Request) {
	safety.TriggerEmergencyStop()
	s.logger.Warn("Emergency stop triggered via HTTP")
	writeJSON(w, http.StatusOK, chatResponse{Status: "stopped"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
