package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/gridlabs/grid-api/internal/logger"
)

//go:generate mockgen -source=recorder.go -destination=../mocks/audit_recorder_mock.go -package=mocks

// Event is a transaction lifecycle fact worth keeping. A reverted
// transaction is still an on-chain fact; it is recorded, not discarded.
type Event string

const (
	EventSubmitted    Event = "submitted"
	EventConfirmed    Event = "confirmed"
	EventReverted     Event = "reverted"
	EventSubmitFailed Event = "submit_failed"
)

// Record is one audit row.
type Record struct {
	ID        uuid.UUID
	EntryName string
	OpKind    string
	TxHash    string
	Event     Event
	Detail    string
	CreatedAt time.Time
}

// Recorder persists transaction audit records. Implementations must be
// safe for concurrent use; recording failures are logged by callers and
// never block the operation being audited.
type Recorder interface {
	Record(ctx context.Context, record Record) error
}

// PGRecorder writes audit records to Postgres.
type PGRecorder struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPGRecorder creates a Postgres-backed recorder.
func NewPGRecorder(pool *pgxpool.Pool) *PGRecorder {
	return &PGRecorder{
		pool:   pool,
		logger: logger.Log,
	}
}

// Record inserts one audit row.
func (r *PGRecorder) Record(ctx context.Context, record Record) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO tx_audit (id, entry_name, op_kind, tx_hash, event, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID, record.EntryName, record.OpKind, record.TxHash, string(record.Event), record.Detail, record.CreatedAt,
	)
	return err
}

// NopRecorder discards records. Used when no DATABASE_URL is configured.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(ctx context.Context, record Record) error {
	return nil
}
