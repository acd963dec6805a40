package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bagly/claim-intake/internal/domain"
	"github.com/bagly/claim-intake/internal/identity/app"
)

// PostgresOTPStore implements app.OTPStore on the otp_codes table.
type PostgresOTPStore struct {
	db pgQuerier
}

// NewPostgresOTPStore creates a store backed by db (usually a *pgxpool.Pool).
func NewPostgresOTPStore(db pgQuerier) *PostgresOTPStore {
	return &PostgresOTPStore{db: db}
}

func (s *PostgresOTPStore) Create(ctx context.Context, record app.OTPRecord) error {
	ctx, span := startSpan(ctx, "postgres.otp.create", "postgresql", "INSERT")
	defer span.End()

	_, err := s.db.Exec(ctx, `
		INSERT INTO otp_codes (id, account_id, code, expires_at, consumed, created_at)
		VALUES ($1, $2, $3, $4, false, $5)`,
		record.ID, record.AccountID.String(), record.Code, record.ExpiresAt, record.CreatedAt,
	)
	if err != nil {
		return failSpan(span, fmt.Errorf("otp store: create: %w", err))
	}
	return nil
}

// FindActive returns the newest unconsumed, unexpired record matching code.
func (s *PostgresOTPStore) FindActive(ctx context.Context, accountID domain.AccountID, code string, now time.Time) (*app.OTPRecord, error) {
	ctx, span := startSpan(ctx, "postgres.otp.find_active", "postgresql", "SELECT")
	defer span.End()

	var (
		rec              app.OTPRecord
		id, accountIDRaw string
	)
	err := s.db.QueryRow(ctx, `
		SELECT id::text, account_id::text, code, created_at, expires_at, consumed
		FROM otp_codes
		WHERE account_id = $1 AND code = $2 AND consumed = false AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1`,
		accountID.String(), code, now,
	).Scan(&id, &accountIDRaw, &rec.Code, &rec.CreatedAt, &rec.ExpiresAt, &rec.Consumed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("otp store: find active: %w", domain.ErrNotFound)
		}
		return nil, failSpan(span, fmt.Errorf("otp store: find active: %w", err))
	}

	rec.ID = id
	if rec.AccountID, err = domain.NewAccountID(accountIDRaw); err != nil {
		return nil, failSpan(span, fmt.Errorf("otp store: find active: %w", err))
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	return &rec, nil
}

// Consume marks record consumed. The update is conditioned on the flag
// still being false, so at most one caller succeeds per record.
func (s *PostgresOTPStore) Consume(ctx context.Context, record app.OTPRecord) error {
	ctx, span := startSpan(ctx, "postgres.otp.consume", "postgresql", "UPDATE")
	defer span.End()

	tag, err := s.db.Exec(ctx,
		`UPDATE otp_codes SET consumed = true WHERE id = $1 AND consumed = false`, record.ID)
	if err != nil {
		return failSpan(span, fmt.Errorf("otp store: consume: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("otp store: consume: %w", domain.ErrOTPConsumed)
	}
	return nil
}
