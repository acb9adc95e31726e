// Package api serves the HTTP control surface of the measurement controller.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"throughput-tester/pkg/metrics"
	"throughput-tester/pkg/models"
	"throughput-tester/pkg/session"
)

const maxBodyBytes = 1 << 20

// Controller is the session lifecycle the API drives. *session.Controller implements it.
type Controller interface {
	Start(ctx context.Context, targetURL string) (session.StartResult, error)
	Stop() models.Record
	Status() session.Status
	Records() []models.Record
}

// Deps are the collaborators of the router. Stats and Metrics may be nil.
type Deps struct {
	Logger     *slog.Logger
	Controller Controller
	Stats      http.HandlerFunc
	Metrics    *metrics.Metrics
}

type startRequest struct {
	URL string `json:"url"`
}

type startResponse struct {
	Status    string    `json:"status"`
	URL       string    `json:"url"`
	Threads   int       `json:"threads"`
	SessionID uuid.UUID `json:"sessionId"`
}

type stopResponse struct {
	Status string        `json:"status"`
	Record models.Record `json:"record"`
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry(), promhttp.HandlerOpts{}))
	}
	if d.Stats != nil {
		r.Get("/ws", d.Stats)
	}

	r.Post("/start", d.handleStart)
	r.Post("/stop", d.handleStop)
	r.Get("/status", d.handleStatus)
	r.Get("/records", d.handleRecords)
	return r
}

func (d Deps) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be a JSON object")
		return
	}

	res, err := d.Controller.Start(r.Context(), req.URL)
	switch {
	case errors.Is(err, session.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", "missing url parameter")
		return
	case err != nil:
		d.Logger.Error("Failed to start session", "url", req.URL, "error", err)
		writeError(w, http.StatusInternalServerError, "", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, startResponse{
		Status:    "started",
		URL:       res.TargetURL,
		Threads:   res.WorkerCount,
		SessionID: res.SessionID,
	})
}

func (d Deps) handleStop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stopResponse{Status: "stopped", Record: d.Controller.Stop()})
}

func (d Deps) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, d.Controller.Status())
}

func (d Deps) handleRecords(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, d.Controller.Records())
}
