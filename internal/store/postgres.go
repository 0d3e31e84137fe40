package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"sitevolt/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// EnsureSchema creates tables if they do not exist (dev helper).
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS candidate_sets (
    id         TEXT PRIMARY KEY,
    tenant_id  TEXT NOT NULL,
    name       TEXT,
    candidates JSONB NOT NULL,
    count      INT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS runs (
    id           TEXT PRIMARY KEY,
    tenant_id    TEXT NOT NULL,
    status       TEXT NOT NULL,
    outcome      TEXT,
    error        TEXT,
    config       JSONB,
    solver       JSONB,
    selection    JSONB,
    advisories   JSONB,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    completed_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS subscriptions (
    id        TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    url       TEXT NOT NULL,
    events    JSONB NOT NULL,
    secret    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS webhook_deliveries (
    id              TEXT PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    subscription_id TEXT,
    event_type      TEXT NOT NULL,
    url             TEXT NOT NULL,
    secret          TEXT,
    payload         BYTEA NOT NULL,
    attempts        INT NOT NULL DEFAULT 0,
    dead            BOOL NOT NULL DEFAULT false,
    next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_error      TEXT,
    response_code   INT,
    latency_ms      INT
);`)
	return err
}

func (p *Postgres) CreateCandidateSet(ctx context.Context, tenantID, name string, cands []model.CandidateIn) (model.CandidateSet, error) {
	cs := model.CandidateSet{
		ID:         "cs_" + uuid.NewString(),
		TenantID:   tenantID,
		Name:       name,
		Candidates: cands,
		Count:      len(cands),
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO candidate_sets (id, tenant_id, name, candidates, count) VALUES ($1,$2,$3,$4,$5)`,
		cs.ID, tenantID, nullIfEmpty(name), toJSON(cands), cs.Count)
	if err != nil {
		return model.CandidateSet{}, err
	}
	return cs, nil
}

func (p *Postgres) GetCandidateSet(ctx context.Context, tenantID, id string) (model.CandidateSet, error) {
	var cs model.CandidateSet
	var name sql.NullString
	var raw []byte
	var created time.Time
	err := p.db.QueryRowContext(ctx,
		`SELECT id, name, candidates, count, created_at FROM candidate_sets WHERE tenant_id=$1 AND id=$2`,
		tenantID, id).Scan(&cs.ID, &name, &raw, &cs.Count, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CandidateSet{}, ErrNotFound
	}
	if err != nil {
		return model.CandidateSet{}, err
	}
	cs.TenantID = tenantID
	cs.Name = name.String
	cs.CreatedAt = created.UTC().Format(time.RFC3339)
	if err := json.Unmarshal(raw, &cs.Candidates); err != nil {
		return model.CandidateSet{}, err
	}
	return cs, nil
}

func (p *Postgres) ListCandidateSets(ctx context.Context, tenantID, cursor string, limit int) ([]model.CandidateSet, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, name, count, created_at FROM candidate_sets WHERE tenant_id=$1 AND id > $2 ORDER BY id LIMIT $3`,
		tenantID, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.CandidateSet{}
	last := ""
	for rows.Next() {
		var cs model.CandidateSet
		var name sql.NullString
		var created time.Time
		if err := rows.Scan(&cs.ID, &name, &cs.Count, &created); err != nil {
			return nil, "", err
		}
		cs.TenantID = tenantID
		cs.Name = name.String
		cs.CreatedAt = created.UTC().Format(time.RFC3339)
		out = append(out, cs)
		last = cs.ID
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, rows.Err()
}

func (p *Postgres) CreateRun(ctx context.Context, run model.Run) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO runs (id, tenant_id, status, outcome, error, config, solver, selection, advisories)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		run.ID, run.TenantID, run.Status, nullIfEmpty(run.Outcome), nullIfEmpty(run.Error),
		toJSON(run.Config), toJSON(run.Solver), toJSON(run.Selection), toJSON(run.Advisories))
	return err
}

func (p *Postgres) UpdateRun(ctx context.Context, run model.Run) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE runs SET status=$2, outcome=$3, error=$4, selection=$5, advisories=$6,
         completed_at=CASE WHEN $2 IN ('completed','failed') THEN now() ELSE completed_at END
         WHERE id=$1`,
		run.ID, run.Status, nullIfEmpty(run.Outcome), nullIfEmpty(run.Error),
		toJSON(run.Selection), toJSON(run.Advisories))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) GetRun(ctx context.Context, tenantID, id string) (model.Run, error) {
	var run model.Run
	var outcome, errMsg sql.NullString
	var cfg, solver, selection, advisories []byte
	var created time.Time
	var completed sql.NullTime
	err := p.db.QueryRowContext(ctx,
		`SELECT id, status, outcome, error, config, solver, selection, advisories, created_at, completed_at
         FROM runs WHERE tenant_id=$1 AND id=$2`,
		tenantID, id).Scan(&run.ID, &run.Status, &outcome, &errMsg, &cfg, &solver, &selection, &advisories, &created, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, ErrNotFound
	}
	if err != nil {
		return model.Run{}, err
	}
	run.TenantID = tenantID
	run.Outcome = outcome.String
	run.Error = errMsg.String
	run.CreatedAt = created.UTC().Format(time.RFC3339)
	if completed.Valid {
		run.CompletedAt = completed.Time.UTC().Format(time.RFC3339)
	}
	fromJSON(cfg, &run.Config)
	fromJSON(solver, &run.Solver)
	fromJSON(selection, &run.Selection)
	fromJSON(advisories, &run.Advisories)
	return run, nil
}

func (p *Postgres) ListRuns(ctx context.Context, tenantID, cursor string, limit int) ([]model.Run, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, status, outcome, created_at FROM runs WHERE tenant_id=$1 AND id > $2 ORDER BY id LIMIT $3`,
		tenantID, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Run{}
	last := ""
	for rows.Next() {
		var run model.Run
		var outcome sql.NullString
		var created time.Time
		if err := rows.Scan(&run.ID, &run.Status, &outcome, &created); err != nil {
			return nil, "", err
		}
		run.TenantID = tenantID
		run.Outcome = outcome.String
		run.CreatedAt = created.UTC().Format(time.RFC3339)
		out = append(out, run)
		last = run.ID
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, rows.Err()
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	sub := model.Subscription{
		ID:       "sub_" + uuid.NewString(),
		TenantID: req.TenantID,
		URL:      req.URL,
		Events:   req.Events,
		Secret:   req.Secret,
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`,
		sub.ID, sub.TenantID, sub.URL, toJSON(sub.Events), sub.Secret)
	if err != nil {
		return model.Subscription{}, err
	}
	return sub, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, url, events, secret FROM subscriptions WHERE tenant_id=$1 AND (events @> to_jsonb($2::text) OR events @> '"*"'::jsonb)`,
		tenantID, eventType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Subscription
	for rows.Next() {
		var s model.Subscription
		var events []byte
		if err := rows.Scan(&s.ID, &s.URL, &events, &s.Secret); err != nil {
			return nil, err
		}
		s.TenantID = tenantID
		fromJSON(events, &s.Events)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, url, events FROM subscriptions WHERE tenant_id=$1 AND id > $2 ORDER BY id LIMIT $3`,
		tenantID, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Subscription{}
	last := ""
	for rows.Next() {
		var s model.Subscription
		var events []byte
		if err := rows.Scan(&s.ID, &s.URL, &events); err != nil {
			return nil, "", err
		}
		s.TenantID = tenantID
		fromJSON(events, &s.Events)
		out = append(out, s)
		last = s.ID
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := "whd_" + uuid.NewString()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload)
         VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, tenant_id, event_type, url, COALESCE(secret,''), payload, attempts
         FROM webhook_deliveries WHERE NOT dead AND next_attempt_at <= now() ORDER BY next_attempt_at LIMIT $1`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WebhookDelivery
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.TenantID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if success {
		_, err := p.db.ExecContext(ctx, `DELETE FROM webhook_deliveries WHERE id=$1`, id)
		return err
	}
	var next any
	if nextAttemptAt != nil {
		next = *nextAttemptAt
	}
	_, err := p.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET attempts=attempts+1, next_attempt_at=COALESCE($2, next_attempt_at),
         last_error=$3, response_code=$4, latency_ms=$5 WHERE id=$1`,
		id, next, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET attempts=attempts+1, dead=true, last_error=$2, response_code=$3, latency_ms=$4 WHERE id=$1`,
		id, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func toJSON(v any) []byte {
	if v == nil {
		return []byte("null")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return b
}

func fromJSON(b []byte, v any) {
	if len(b) == 0 {
		return
	}
	_ = json.Unmarshal(b, v)
}
