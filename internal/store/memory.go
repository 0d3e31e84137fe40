package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"sitevolt/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu         sync.Mutex
	sets       map[string]model.CandidateSet // id -> set
	setsByTen  map[string][]string           // tenant -> set ids
	runs       map[string]model.Run          // id -> run
	runsByTen  map[string][]string           // tenant -> run ids
	subs       map[string][]model.Subscription
	deliveries map[string]*memDelivery
}

// memDelivery augments WebhookDelivery with scheduling state.
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	Dead          bool
	LastError     string
	ResponseCode  int
	LatencyMs     int
}

func NewMemory() *Memory {
	return &Memory{
		sets:       map[string]model.CandidateSet{},
		setsByTen:  map[string][]string{},
		runs:       map[string]model.Run{},
		runsByTen:  map[string][]string{},
		subs:       map[string][]model.Subscription{},
		deliveries: map[string]*memDelivery{},
	}
}

func (m *Memory) CreateCandidateSet(ctx context.Context, tenantID, name string, cands []model.CandidateIn) (model.CandidateSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs := model.CandidateSet{
		ID:         "cs_" + uuid.NewString(),
		TenantID:   tenantID,
		Name:       name,
		Candidates: append([]model.CandidateIn(nil), cands...),
		Count:      len(cands),
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	m.sets[cs.ID] = cs
	m.setsByTen[tenantID] = append(m.setsByTen[tenantID], cs.ID)
	return cs, nil
}

func (m *Memory) GetCandidateSet(ctx context.Context, tenantID, id string) (model.CandidateSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.sets[id]
	if !ok || cs.TenantID != tenantID {
		return model.CandidateSet{}, ErrNotFound
	}
	return cs, nil
}

func (m *Memory) ListCandidateSets(ctx context.Context, tenantID, cursor string, limit int) ([]model.CandidateSet, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := append([]string(nil), m.setsByTen[tenantID]...)
	sort.Strings(ids)
	return pageSets(m.sets, ids, cursor, limit)
}

func pageSets(all map[string]model.CandidateSet, ids []string, cursor string, limit int) ([]model.CandidateSet, string, error) {
	out := []model.CandidateSet{}
	for _, id := range ids {
		if cursor != "" && id <= cursor {
			continue
		}
		cs := all[id]
		cs.Candidates = nil // listings stay light
		out = append(out, cs)
		if len(out) == limit {
			return out, id, nil
		}
	}
	return out, "", nil
}

func (m *Memory) CreateRun(ctx context.Context, run model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	m.runsByTen[run.TenantID] = append(m.runsByTen[run.TenantID], run.ID)
	return nil
}

func (m *Memory) UpdateRun(ctx context.Context, run model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return ErrNotFound
	}
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) GetRun(ctx context.Context, tenantID, id string) (model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok || r.TenantID != tenantID {
		return model.Run{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) ListRuns(ctx context.Context, tenantID, cursor string, limit int) ([]model.Run, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := append([]string(nil), m.runsByTen[tenantID]...)
	sort.Strings(ids)
	out := []model.Run{}
	next := ""
	for _, id := range ids {
		if cursor != "" && id <= cursor {
			continue
		}
		r := m.runs[id]
		r.Selection = nil // listings stay light
		out = append(out, r)
		if len(out) == limit {
			next = id
			break
		}
	}
	return out, next, nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := model.Subscription{
		ID:       "sub_" + uuid.NewString(),
		TenantID: req.TenantID,
		URL:      req.URL,
		Events:   append([]string(nil), req.Events...),
		Secret:   req.Secret,
	}
	m.subs[req.TenantID] = append(m.subs[req.TenantID], sub)
	return sub, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs[tenantID] {
		for _, e := range s.Events {
			if e == eventType || e == "*" {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := append([]model.Subscription(nil), m.subs[tenantID]...)
	sort.Slice(subs, func(a, b int) bool { return subs[a].ID < subs[b].ID })
	out := []model.Subscription{}
	next := ""
	for _, s := range subs {
		if cursor != "" && s.ID <= cursor {
			continue
		}
		s.Secret = ""
		out = append(out, s)
		if len(out) == limit {
			next = s.ID
			break
		}
	}
	return out, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subs[tenantID]
	for i, s := range subs {
		if s.ID == id {
			m.subs[tenantID] = append(subs[:i], subs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := "whd_" + uuid.NewString()
	m.deliveries[id] = &memDelivery{
		WebhookDelivery: WebhookDelivery{
			ID: id, TenantID: tenantID, EventType: eventType,
			URL: url, Secret: secret, Payload: payload,
		},
		NextAttemptAt: time.Now(),
	}
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var out []WebhookDelivery
	for _, d := range m.deliveries {
		if d.Dead || d.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, d.WebhookDelivery)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.Attempts++
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		delete(m.deliveries, id)
		return nil
	}
	if nextAttemptAt != nil {
		d.NextAttemptAt = *nextAttemptAt
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.Attempts++
	d.Dead = true
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	return nil
}
