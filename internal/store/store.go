package store

import (
	"context"
	"errors"
	"time"

	"sitevolt/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Candidate sets
	CreateCandidateSet(ctx context.Context, tenantID, name string, cands []model.CandidateIn) (model.CandidateSet, error)
	GetCandidateSet(ctx context.Context, tenantID, id string) (model.CandidateSet, error)
	ListCandidateSets(ctx context.Context, tenantID, cursor string, limit int) ([]model.CandidateSet, string, error)

	// Optimization runs
	CreateRun(ctx context.Context, run model.Run) error
	UpdateRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, tenantID, id string) (model.Run, error)
	ListRuns(ctx context.Context, tenantID, cursor string, limit int) ([]model.Run, string, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, tenantID, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
}

// WebhookDelivery is one queued outbound notification.
type WebhookDelivery struct {
	ID        string
	TenantID  string
	EventType string
	URL       string
	Secret    string
	Payload   []byte
	Attempts  int
}

var ErrNotFound = errors.New("not found")
