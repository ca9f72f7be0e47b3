package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jgivc/fetchguard/internal/adapter/report"
	"github.com/jgivc/fetchguard/internal/common"
	"github.com/jgivc/fetchguard/internal/entity"
)

const (
	queryParam = "q"
)

type ClassifyService interface {
	Classify(ctx context.Context, raw string) (*entity.LocationReport, error)
}

type ReportRenderer interface {
	Render(report *entity.LocationReport) (string, error)
}

type CounterService interface {
	Stats(ctx context.Context) (*entity.Stats, error)
}

type ClassifyResponse struct {
	ID      string          `json:"id"`
	Query   string          `json:"query"`
	Kind    string          `json:"kind"`
	Name    string          `json:"name"`
	Message string          `json:"message"`
	Figures []entity.Figure `json:"figures,omitempty"`

	FiguresUnavailable bool `json:"figures_unavailable,omitempty"`
}

func NewClassifyHandler(srv ClassifyService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "ClassifyHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		rep, ok := classify(w, r, srv, log)
		if !ok {
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(&ClassifyResponse{
			ID:      rep.ID,
			Query:   rep.Query,
			Kind:    rep.Result.Kind.String(),
			Name:    rep.Result.Name,
			Message: report.Message(rep.Result),
			Figures: rep.Figures,

			FiguresUnavailable: rep.FiguresUnavailable,
		}); err != nil {
			log.Error("Cannot encode response", slog.Any("error", err))
		}
	}
}

func NewReportHandler(srv ClassifyService, renderer ReportRenderer, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "ReportHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		rep, ok := classify(w, r, srv, log)
		if !ok {
			return
		}

		page, err := renderer.Render(rep)
		if err != nil {
			log.Error("Cannot render report", slog.String("id", rep.ID), slog.Any("error", err))
			http.Error(w, "Cannot render report", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	}
}

func NewCounterHandler(srv CounterService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "CounterHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := srv.Stats(r.Context())
		if err != nil {
			if errors.Is(err, common.ErrRedisUnavailable) {
				log.Warn("Counters are unavailable", slog.Any("error", err))
				http.Error(w, "Service unavailable", http.StatusServiceUnavailable)

				return
			}

			log.Error("Cannot get stats", slog.Any("error", err))
			http.Error(w, "Cannot get stats", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			log.Error("Cannot encode stats", slog.Any("error", err))
		}
	}
}

func classify(w http.ResponseWriter, r *http.Request, srv ClassifyService, log *slog.Logger) (*entity.LocationReport, bool) {
	rep, err := srv.Classify(r.Context(), r.URL.Query().Get(queryParam))
	if err != nil {
		switch {
		case errors.Is(err, common.ErrEmptyQueryError):
			http.Error(w, "Bad request", http.StatusBadRequest)
		case errors.Is(err, common.ErrConfiguration):
			log.Error("Classifier is misconfigured", slog.Any("error", err))
			http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		default:
			log.Error("Cannot classify", slog.Any("error", err))
			http.Error(w, "Cannot classify", http.StatusInternalServerError)
		}

		return nil, false
	}

	return rep, true
}
