package account

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists session activations.
type Repository interface {
	RecordActivation(ctx context.Context, activation Activation) error
	ListBySession(ctx context.Context, session common.Address) ([]Activation, error)
}

// PostgresRepository stores activations in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// RecordActivation inserts an activation, or updates status and block when the
// same transaction is recorded again.
func (r *PostgresRepository) RecordActivation(ctx context.Context, a Activation) error {
	id, err := uuid.Parse(a.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO session_activations
        (id, account_address, session_address, duration_seconds, tx_hash, status, block_number, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (tx_hash) DO UPDATE SET status = EXCLUDED.status, block_number = EXCLUDED.block_number`,
		id, a.Account.Hex(), a.Session.Hex(), int64(a.DurationSeconds), a.TxHash.Hex(), a.Status, int64(a.BlockNumber), a.CreatedAt.UTC())
	return err
}

// ListBySession returns activations for session, newest first.
func (r *PostgresRepository) ListBySession(ctx context.Context, session common.Address) ([]Activation, error) {
	rows, err := r.db.Query(ctx, `SELECT id, account_address, session_address, duration_seconds, tx_hash, status, block_number, created_at
        FROM session_activations WHERE session_address = $1 ORDER BY created_at DESC`, session.Hex())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Activation
	for rows.Next() {
		var (
			a           Activation
			id          uuid.UUID
			accountHex  string
			sessionHex  string
			txHex       string
			duration    int64
			blockNumber int64
			createdAt   time.Time
		)
		if err := rows.Scan(&id, &accountHex, &sessionHex, &duration, &txHex, &a.Status, &blockNumber, &createdAt); err != nil {
			return nil, err
		}
		a.ID = id.String()
		a.Account = common.HexToAddress(accountHex)
		a.Session = common.HexToAddress(sessionHex)
		a.DurationSeconds = uint64(duration)
		a.TxHash = common.HexToHash(txHex)
		a.BlockNumber = uint64(blockNumber)
		a.CreatedAt = createdAt.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}
