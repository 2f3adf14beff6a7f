// AngelaMos | 2026
// handler_test.go

package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pinger func(ctx context.Context) error

func (p pinger) Ping(ctx context.Context) error { return p(ctx) }

func healthyPinger() Checker {
	return pinger(func(ctx context.Context) error { return nil })
}

func brokenPinger() Checker {
	return pinger(func(ctx context.Context) error { return errors.New("down") })
}

func TestReadinessGatedOnBootstrap(t *testing.T) {
	h := NewHandler(Check{Name: "database", Checker: healthyPinger()})

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code,
		"not ready until bootstrap flips it")

	h.SetReady(true)

	rec = httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadinessDegradedDependency(t *testing.T) {
	h := NewHandler(
		Check{Name: "database", Checker: healthyPinger()},
		Check{Name: "redis", Checker: brokenPinger()},
	)
	h.SetReady(true)

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}

func TestLivenessDuringShutdown(t *testing.T) {
	h := NewHandler()
	h.SetReady(true)

	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	h.SetShutdown(true)

	rec = httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
