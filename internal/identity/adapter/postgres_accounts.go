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

const (
	accountColumns = `id::text, cpf, email, COALESCE(name, ''), COALESCE(phone, ''), created_at, updated_at`

	accountsEmailConstraint = "accounts_email_key"
)

// PostgresAccountStore implements app.AccountStore on the accounts table.
type PostgresAccountStore struct {
	db pgQuerier
}

// NewPostgresAccountStore creates a store backed by db (usually a *pgxpool.Pool).
func NewPostgresAccountStore(db pgQuerier) *PostgresAccountStore {
	return &PostgresAccountStore{db: db}
}

// FindByCPF returns the account owning cpf or domain.ErrNotFound.
func (s *PostgresAccountStore) FindByCPF(ctx context.Context, cpf domain.CPF) (*app.Account, error) {
	ctx, span := startSpan(ctx, "postgres.accounts.find_by_cpf", "postgresql", "SELECT")
	defer span.End()

	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE cpf = $1`, cpf.String())
	account, err := scanAccount(row)
	if err != nil {
		return nil, failSpan(span, fmt.Errorf("account store: find by cpf: %w", err))
	}
	return account, nil
}

// GetByID returns the account with id or domain.ErrNotFound.
func (s *PostgresAccountStore) GetByID(ctx context.Context, id domain.AccountID) (*app.Account, error) {
	ctx, span := startSpan(ctx, "postgres.accounts.get_by_id", "postgresql", "SELECT")
	defer span.End()

	row := s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id.String())
	account, err := scanAccount(row)
	if err != nil {
		return nil, failSpan(span, fmt.Errorf("account store: get by id: %w", err))
	}
	return account, nil
}

// Create inserts account. A taken CPF yields domain.ErrAlreadyExists and a
// taken email domain.ErrEmailInUse.
func (s *PostgresAccountStore) Create(ctx context.Context, account app.Account) error {
	ctx, span := startSpan(ctx, "postgres.accounts.create", "postgresql", "INSERT")
	defer span.End()

	_, err := s.db.Exec(ctx, `
		INSERT INTO accounts (id, cpf, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		account.ID.String(), account.CPF.String(), account.Email, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return failSpan(span, fmt.Errorf("account store: create: %w", classifyAccountWrite(err)))
	}
	return nil
}

// UpdateProfile applies the non-nil fields of update and returns the row
// as stored.
func (s *PostgresAccountStore) UpdateProfile(ctx context.Context, id domain.AccountID, update app.ProfileUpdate, now time.Time) (*app.Account, error) {
	ctx, span := startSpan(ctx, "postgres.accounts.update_profile", "postgresql", "UPDATE")
	defer span.End()

	row := s.db.QueryRow(ctx, `
		UPDATE accounts
		SET name = COALESCE($2, name),
		    phone = COALESCE($3, phone),
		    email = COALESCE($4, email),
		    updated_at = $5
		WHERE id = $1
		RETURNING `+accountColumns,
		id.String(), update.Name, update.Phone, update.Email, now,
	)
	account, err := scanAccount(row)
	if err != nil {
		return nil, failSpan(span, fmt.Errorf("account store: update profile: %w", classifyAccountWrite(err)))
	}
	return account, nil
}

func scanAccount(row pgx.Row) (*app.Account, error) {
	var (
		id, cpf string
		a       app.Account
	)
	err := row.Scan(&id, &cpf, &a.Email, &a.Name, &a.Phone, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if a.ID, err = domain.NewAccountID(id); err != nil {
		return nil, err
	}
	if a.CPF, err = domain.ParseCPFDigits(cpf); err != nil {
		return nil, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

// classifyAccountWrite maps unique violations on accounts to domain errors.
func classifyAccountWrite(err error) error {
	constraint, ok := uniqueViolation(err)
	if !ok {
		return err
	}
	if constraint == accountsEmailConstraint {
		return domain.ErrEmailInUse
	}
	return domain.ErrAlreadyExists
}
