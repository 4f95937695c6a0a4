// Package server exposes the operational HTTP surface: health, metrics and
// the subscription intake/listing API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/example/dining-watcher/internal/subscription"
)

// Pinger reports store backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	store  subscription.Store
	pinger Pinger
	logger *zap.Logger
}

func New(store subscription.Store, pinger Pinger, logger *zap.Logger) *Server {
	return &Server{store: store, pinger: pinger, logger: logger}
}

// Routes builds the chi router. The prometheus registry backs /metrics.
func (s *Server) Routes(reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(httprate.Limit(100, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/subscriptions", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Get("/", s.handleList)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.pinger.Ping(r.Context()); err != nil {
		s.logger.Error("store health check failed", zap.Error(err))
		http.Error(w, "store unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("OK"))
}

type createRequest struct {
	Owner          string `json:"owner"`
	LocationID     string `json:"location_id"`
	LocationName   string `json:"location_name"`
	RestaurantID   string `json:"restaurant_id"`
	RestaurantName string `json:"restaurant_name"`
	PartySize      int    `json:"party_size"`
	Date           string `json:"date"`
	MealPeriod     string `json:"meal_period"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid date: want YYYY-MM-DD")
		return
	}

	sub := subscription.Subscription{
		Owner: req.Owner,
		Resource: subscription.ResourceRef{
			LocationID:     req.LocationID,
			LocationName:   req.LocationName,
			RestaurantID:   req.RestaurantID,
			RestaurantName: req.RestaurantName,
		},
		Criteria: subscription.Criteria{
			PartySize:  req.PartySize,
			Date:       date,
			MealPeriod: subscription.MealPeriod(req.MealPeriod),
		},
	}

	id, err := s.store.Add(r.Context(), sub)
	if err != nil {
		var verr *subscription.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusUnprocessableEntity, verr.Error())
			return
		}
		s.logger.Error("creating subscription failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("content-type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"id": id})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var (
		subs []subscription.Subscription
		err  error
	)
	if owner := r.URL.Query().Get("owner"); owner != "" {
		subs, err = s.store.ListByOwner(r.Context(), owner)
	} else {
		subs, err = s.store.Active(r.Context())
	}
	if err != nil {
		s.logger.Error("listing subscriptions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	type item struct {
		ID             string     `json:"id"`
		Owner          string     `json:"owner"`
		RestaurantID   string     `json:"restaurant_id"`
		RestaurantName string     `json:"restaurant_name"`
		LocationName   string     `json:"location_name"`
		PartySize      int        `json:"party_size"`
		Date           string     `json:"date"`
		MealPeriod     string     `json:"meal_period"`
		Status         string     `json:"status"`
		CreatedAt      time.Time  `json:"created_at"`
		LastCheckedAt  *time.Time `json:"last_checked_at,omitempty"`
	}
	out := make([]item, 0, len(subs))
	for _, sub := range subs {
		out = append(out, item{
			ID:             sub.ID,
			Owner:          sub.Owner,
			RestaurantID:   sub.Resource.RestaurantID,
			RestaurantName: sub.Resource.RestaurantName,
			LocationName:   sub.Resource.LocationName,
			PartySize:      sub.Criteria.PartySize,
			Date:           sub.Criteria.Date.Format("2006-01-02"),
			MealPeriod:     string(sub.Criteria.MealPeriod),
			Status:         string(sub.Status),
			CreatedAt:      sub.CreatedAt,
			LastCheckedAt:  sub.LastCheckedAt,
		})
	}

	w.Header().Set("content-type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Start serves h on addr until ctx is cancelled, then shuts down within the
// grace period.
func Start(ctx context.Context, addr string, h http.Handler, grace time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
