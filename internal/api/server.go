package api

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"sitevolt/internal/auth"
	"sitevolt/internal/config"
	"sitevolt/internal/store"
	"sitevolt/internal/webhooks"
)

type Server struct {
	Store    store.Store
	Pub      *webhooks.Publisher
	Auth     *auth.Verifier
	Broker   EventBroker
	Baseline *config.Baseline

	limitRate  rate.Limit
	limitBurst int
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
}

// NewServer creates a Server. If DATABASE_URL is unset, uses in-memory store.
func NewServer() (*Server, error) {
	dsn := os.Getenv("DATABASE_URL")
	var s store.Store
	if strings.TrimSpace(dsn) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(dsn)
		if err != nil {
			return nil, err
		}
		// Create tables (dev helper)
		if os.Getenv("DB_MIGRATE") != "false" {
			_ = sp.EnsureSchema(context.Background())
		}
		s = sp
	}
	// Broker selection
	var broker EventBroker
	if os.Getenv("REDIS_URL") != "" {
		if rb, err := NewRedisBroker(); err == nil {
			broker = rb
		} else {
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}
	rps := 5.0
	if v := os.Getenv("OPTIMIZE_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			rps = f
		}
	}
	return &Server{
		Store:      s,
		Pub:        webhooks.NewPublisher(s),
		Auth:       auth.NewVerifierFromEnv(),
		Broker:     broker,
		Baseline:   config.FromEnv(),
		limitRate:  rate.Limit(rps),
		limitBurst: int(2 * rps),
		limiters:   map[string]*rate.Limiter{},
	}, nil
}

func (s *Server) withTenant(r *http.Request) (context.Context, string) {
	// For now, get tenant from header; in production decode from JWT.
	tenant := r.Header.Get("X-Tenant-Id")
	if tenant == "" {
		tenant = "t_demo"
	}
	ctx := context.WithValue(r.Context(), ctxKeyTenant{}, tenant)
	return ctx, tenant
}

type ctxKeyTenant struct{}

// allowOptimize applies the per-tenant solve rate limit.
func (s *Server) allowOptimize(tenant string) bool {
	s.mu.Lock()
	lim := s.limiters[tenant]
	if lim == nil {
		lim = rate.NewLimiter(s.limitRate, s.limitBurst)
		s.limiters[tenant] = lim
	}
	s.mu.Unlock()
	return lim.Allow()
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store)
}
