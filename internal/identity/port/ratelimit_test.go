package port

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bagly/claim-intake/internal/domain/domaintest"
	"github.com/bagly/claim-intake/internal/identity/app"
)

func TestIPRateLimiter_Allow(t *testing.T) {
	t.Run("allows the full budget then denies", func(t *testing.T) {
		l := NewIPRateLimiter(100, domaintest.NewFakeClock(fixedTime))

		for i := range 100 {
			assert.True(t, l.Allow("10.0.0.1"), "request %d", i+1)
		}
		assert.False(t, l.Allow("10.0.0.1"))
	})

	t.Run("clients are independent", func(t *testing.T) {
		l := NewIPRateLimiter(1, domaintest.NewFakeClock(fixedTime))

		assert.True(t, l.Allow("10.0.0.1"))
		assert.False(t, l.Allow("10.0.0.1"))
		assert.True(t, l.Allow("10.0.0.2"))
	})

	t.Run("budget refills over the minute", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime)
		l := NewIPRateLimiter(60, clock)
		for range 60 {
			l.Allow("10.0.0.1")
		}
		assert.False(t, l.Allow("10.0.0.1"))

		clock.Advance(time.Second)

		assert.True(t, l.Allow("10.0.0.1"))
	})

	t.Run("non-positive budget admits everything", func(t *testing.T) {
		for _, perMinute := range []int{0, -5} {
			var l *IPRateLimiter
			require.NotPanics(t, func() { l = NewIPRateLimiter(perMinute, nil) })

			for range 500 {
				require.True(t, l.Allow("10.0.0.1"))
			}
		}
	})

	t.Run("idle visitors are swept", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime)
		l := NewIPRateLimiter(10, clock)
		l.Allow("10.0.0.1")
		l.Allow("10.0.0.2")

		clock.Advance(visitorIdle + sweepInterval)
		l.Allow("10.0.0.3")

		assert.Equal(t, 1, l.size())
	})
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"peer address", "192.0.2.10:54321", "", "192.0.2.10"},
		{"forwarded header ignored", "10.0.0.1:80", "203.0.113.7, 10.0.0.1", "10.0.0.1"},
		{"address without port", "192.0.2.10", "", "192.0.2.10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}

			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}

func TestIPRateLimiter_Middleware(t *testing.T) {
	h := newHarness(t, &stubService{})
	for range 100 {
		h.limiter.Allow("192.0.2.1")
	}

	rec := h.do(t, http.MethodPost, "/auth/resend-otp", `{"cpf":"52998224725"}`)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"too many requests"}`, rec.Body.String())
}

func resendOK() *stubService {
	return &stubService{
		resendOTPFn: func(context.Context, string) (*app.RequestOTPResult, error) {
			return &app.RequestOTPResult{MaskedEmail: "usu***@email.com"}, nil
		},
	}
}

func smallBudget(trustProxy bool) func(*RouterConfig) {
	return func(cfg *RouterConfig) {
		cfg.Limiter = NewIPRateLimiter(2, domaintest.NewFakeClock(fixedTime))
		cfg.TrustProxy = trustProxy
	}
}

func TestIPRateLimiter_ForwardedHeaders(t *testing.T) {
	t.Run("rotating X-Forwarded-For does not reset the budget", func(t *testing.T) {
		h := newHarness(t, resendOK(), smallBudget(false))

		var allowed int
		for i := range 10 {
			rec := h.do(t, http.MethodPost, "/auth/resend-otp", `{"cpf":"52998224725"}`,
				"X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
			if rec.Code == http.StatusOK {
				allowed++
			}
		}

		assert.Equal(t, 2, allowed)
	})

	t.Run("trusted proxy keys on the forwarded client", func(t *testing.T) {
		h := newHarness(t, resendOK(), smallBudget(true))

		for range 2 {
			rec := h.do(t, http.MethodPost, "/auth/resend-otp", `{"cpf":"52998224725"}`,
				"X-Forwarded-For", "203.0.113.7")
			require.Equal(t, http.StatusOK, rec.Code)
		}

		limited := h.do(t, http.MethodPost, "/auth/resend-otp", `{"cpf":"52998224725"}`,
			"X-Forwarded-For", "203.0.113.7")
		other := h.do(t, http.MethodPost, "/auth/resend-otp", `{"cpf":"52998224725"}`,
			"X-Forwarded-For", "203.0.113.8")

		assert.Equal(t, http.StatusTooManyRequests, limited.Code)
		assert.Equal(t, http.StatusOK, other.Code)
	})
}
