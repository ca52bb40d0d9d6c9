package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-raffle/internal/models"
)

func TestPublishTicketEventCounts(t *testing.T) {
	m := New()
	ctx := context.Background()

	require.NoError(t, m.PublishTicketEvent(ctx, models.NewTicketEvent(models.EventTicketsReserved, "r1", "ana", []string{"001", "002"})))
	require.NoError(t, m.PublishTicketEvent(ctx, models.NewTicketEvent(models.EventTicketsReserved, "r1", "bob", []string{"003"})))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TicketEvents.WithLabelValues("tickets.reserved")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Numbers.WithLabelValues("tickets.reserved")))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/raffles/{raffleID}/tickets", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/metrics", m.Handler().ServeHTTP)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/raffles/abc/tickets", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("GET", "/api/raffles/{raffleID}/tickets", "418")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "raffle_http_requests_total")
}
