package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/dining-watcher/internal/server"
	"github.com/example/dining-watcher/internal/subscription"
)

type fakeStore struct {
	subs []subscription.Subscription
}

func (f *fakeStore) Add(ctx context.Context, sub subscription.Subscription) (string, error) {
	if err := sub.Validate(time.Now()); err != nil {
		return "", err
	}
	sub.ID = "sub-1"
	sub.Status = subscription.StatusActive
	sub.CreatedAt = time.Now()
	f.subs = append(f.subs, sub)
	return sub.ID, nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (subscription.Subscription, error) {
	for _, s := range f.subs {
		if s.ID == id {
			return s, nil
		}
	}
	return subscription.Subscription{}, errors.New("not found")
}

func (f *fakeStore) Active(ctx context.Context) ([]subscription.Subscription, error) {
	return f.subs, nil
}

func (f *fakeStore) ListByOwner(ctx context.Context, owner string) ([]subscription.Subscription, error) {
	var out []subscription.Subscription
	for _, s := range f.subs {
		if s.Owner == owner {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkResolved(ctx context.Context, id string) error { return nil }

func (f *fakeStore) TouchChecked(ctx context.Context, id string, at time.Time) error { return nil }

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestHandler(t *testing.T, store subscription.Store, ping pingFunc) http.Handler {
	t.Helper()
	if ping == nil {
		ping = func(ctx context.Context) error { return nil }
	}
	s := server.New(store, ping, zap.NewNop())
	return s.Routes(prometheus.NewRegistry())
}

func TestCreateSubscription(t *testing.T) {
	store := &fakeStore{}
	h := newTestHandler(t, store, nil)

	body := `{
		"owner": "user-1",
		"location_id": "80007944",
		"location_name": "Magic Kingdom",
		"restaurant_id": "90002464",
		"restaurant_name": "Be Our Guest",
		"party_size": 4,
		"date": "2100-06-15",
		"meal_period": "Dinner"
	}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/subscriptions/", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sub-1", resp["id"])
	require.Len(t, store.subs, 1)
	assert.Equal(t, "90002464", store.subs[0].Resource.RestaurantID)
}

func TestCreateSubscriptionRejectsBadPartySize(t *testing.T) {
	h := newTestHandler(t, &fakeStore{}, nil)

	body := `{
		"owner": "user-1",
		"location_id": "l1",
		"restaurant_id": "r1",
		"party_size": 0,
		"date": "2100-06-15",
		"meal_period": "Dinner"
	}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/subscriptions/", strings.NewReader(body)))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "party_size")
}

func TestCreateSubscriptionRejectsBadDate(t *testing.T) {
	h := newTestHandler(t, &fakeStore{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/subscriptions/",
		strings.NewReader(`{"owner":"u","date":"June 15th"}`)))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateSubscriptionRejectsInvalidJSON(t *testing.T) {
	h := newTestHandler(t, &fakeStore{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/subscriptions/", strings.NewReader("{not json")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSubscriptions(t *testing.T) {
	now := time.Now()
	store := &fakeStore{subs: []subscription.Subscription{
		{
			ID:    "a",
			Owner: "alice",
			Resource: subscription.ResourceRef{
				RestaurantID: "r1", RestaurantName: "Sci-Fi Dine-In", LocationID: "l1",
			},
			Criteria: subscription.Criteria{
				PartySize: 2, Date: now.AddDate(0, 1, 0), MealPeriod: subscription.MealLunch,
			},
			Status:    subscription.StatusActive,
			CreatedAt: now,
		},
		{
			ID:    "b",
			Owner: "bob",
			Resource: subscription.ResourceRef{
				RestaurantID: "r2", RestaurantName: "Ohana", LocationID: "l2",
			},
			Criteria: subscription.Criteria{
				PartySize: 6, Date: now.AddDate(0, 2, 0), MealPeriod: subscription.MealBreakfast,
			},
			Status:    subscription.StatusActive,
			CreatedAt: now,
		},
	}}
	h := newTestHandler(t, store, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/subscriptions/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var all []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/subscriptions/?owner=bob", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, "Ohana", mine[0]["restaurant_name"])
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, &fakeStore{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	unhealthy := newTestHandler(t, &fakeStore{}, func(ctx context.Context) error {
		return errors.New("connection refused")
	})
	rec = httptest.NewRecorder()
	unhealthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
