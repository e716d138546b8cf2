package facepay

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "fmt"
    "sync"

    "github.com/jackc/pgconn"
    "github.com/lib/pq"
    "github.com/parsec/wechat-face-payment/facepay/models"
)

var ErrNotFound = fmt.Errorf("not found")

var ErrConflict = fmt.Errorf("conflict")

// Repository journals face-pay outcomes, one per session. It keeps them in
// memory unless constructed with NewPGRepository.
type Repository struct {
    mu       sync.RWMutex
    outcomes map[string]*models.Outcome
    order    []string
    db       *sql.DB
}

func NewRepository() *Repository {
    return &Repository{
        outcomes: make(map[string]*models.Outcome),
    }
}

// NewPGRepository constructs a db-backed repository.
func NewPGRepository(db *sql.DB) *Repository {
    return &Repository{db: db}
}

const schema = `
CREATE SCHEMA IF NOT EXISTS facepay;
CREATE TABLE IF NOT EXISTS facepay.outcomes (
    session_id   TEXT PRIMARY KEY,
    order_ref    TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL,
    stage        TEXT NOT NULL DEFAULT '',
    code         TEXT NOT NULL DEFAULT '',
    message      TEXT NOT NULL DEFAULT '',
    payload      JSONB,
    error        TEXT NOT NULL DEFAULT '',
    completed_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS outcomes_completed_at_idx ON facepay.outcomes (completed_at DESC);
`

// Migrate creates the outcome table when missing.
func (r *Repository) Migrate(ctx context.Context) error {
    if r.db == nil {
        return nil
    }
    if _, err := r.db.ExecContext(ctx, schema); err != nil {
        return fmt.Errorf("apply schema: %w", err)
    }
    return nil
}

func (r *Repository) SaveOutcome(ctx context.Context, o models.Outcome) error {
    if o.SessionID == "" {
        return fmt.Errorf("outcome without session id")
    }
    if r.db == nil {
        r.mu.Lock()
        defer r.mu.Unlock()
        if _, ok := r.outcomes[o.SessionID]; ok {
            return fmt.Errorf("outcome for session %s exists: %w", o.SessionID, ErrConflict)
        }
        cp := o
        r.outcomes[o.SessionID] = &cp
        r.order = append(r.order, o.SessionID)
        return nil
    }
    var payload []byte
    if o.Payload != nil {
        var err error
        if payload, err = json.Marshal(o.Payload); err != nil {
            return fmt.Errorf("encode payload: %w", err)
        }
    }
    _, err := r.db.ExecContext(ctx, `
        INSERT INTO facepay.outcomes(session_id, order_ref, status, stage, code, message, payload, error, completed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    `, o.SessionID, o.OrderRef, string(o.Status), string(o.Stage), o.Code, o.Message, payload, o.Error, o.CompletedAt)
    if isUniqueViolation(err) {
        return ErrConflict
    }
    return err
}

func (r *Repository) GetOutcome(ctx context.Context, sessionID string) (*models.Outcome, error) {
    if r.db == nil {
        r.mu.RLock()
        defer r.mu.RUnlock()
        o, ok := r.outcomes[sessionID]
        if !ok {
            return nil, ErrNotFound
        }
        cp := *o
        return &cp, nil
    }
    row := r.db.QueryRowContext(ctx, `
        SELECT session_id, order_ref, status, stage, code, message, payload, error, completed_at
          FROM facepay.outcomes WHERE session_id=$1
    `, sessionID)
    o, err := scanOutcome(row)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    return o, err
}

// ListOutcomes returns up to limit outcomes, newest first.
func (r *Repository) ListOutcomes(ctx context.Context, limit int) ([]*models.Outcome, error) {
    if limit <= 0 {
        limit = 50
    }
    if r.db == nil {
        r.mu.RLock()
        defer r.mu.RUnlock()
        out := make([]*models.Outcome, 0, limit)
        for i := len(r.order) - 1; i >= 0 && len(out) < limit; i-- {
            cp := *r.outcomes[r.order[i]]
            out = append(out, &cp)
        }
        return out, nil
    }
    rows, err := r.db.QueryContext(ctx, `
        SELECT session_id, order_ref, status, stage, code, message, payload, error, completed_at
          FROM facepay.outcomes ORDER BY completed_at DESC LIMIT $1
    `, limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []*models.Outcome
    for rows.Next() {
        o, err := scanOutcome(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, o)
    }
    return out, rows.Err()
}

type rowScanner interface {
    Scan(dest ...any) error
}

func scanOutcome(row rowScanner) (*models.Outcome, error) {
    var o models.Outcome
    var status, stage string
    var payload []byte
    if err := row.Scan(&o.SessionID, &o.OrderRef, &status, &stage, &o.Code, &o.Message, &payload, &o.Error, &o.CompletedAt); err != nil {
        return nil, err
    }
    o.Status = models.OutcomeStatus(status)
    o.Stage = models.Stage(stage)
    if len(payload) > 0 {
        if err := json.Unmarshal(payload, &o.Payload); err != nil {
            return nil, fmt.Errorf("decode payload: %w", err)
        }
    }
    return &o, nil
}

// Ping returns DB readiness
func (r *Repository) Ping(ctx context.Context) error {
    if r.db == nil {
        return nil
    }
    return r.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
    var pe *pq.Error
    if errors.As(err, &pe) && pe.Code == "23505" {
        return true
    }
    var pgerr *pgconn.PgError
    if errors.As(err, &pgerr) && pgerr.Code == "23505" {
        return true
    }
    return false
}
