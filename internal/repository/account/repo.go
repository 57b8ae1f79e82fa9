package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/agrosight/ndvi-vault/internal/model"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailTaken      = errors.New("email already taken")
)

type Repository struct {
	db *dbpg.DB
}

func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateAccount(ctx context.Context, acc model.Account) (uuid.UUID, error) {
	query := `
		INSERT INTO accounts (email, password_hash, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO NOTHING
		RETURNING id
    `

	var id uuid.UUID
	err := r.db.Master.QueryRowContext(
		ctx, query, acc.Email, acc.PasswordHash, acc.Role,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, ErrEmailTaken
		}

		return uuid.Nil, fmt.Errorf("create: failed to create account: %w", err)
	}

	return id, nil
}

func (r *Repository) GetAccountByID(ctx context.Context, id uuid.UUID) (model.Account, error) {
	query := `
		SELECT email, password_hash, role, created_at
		FROM accounts
		WHERE id = $1
    `

	var acc model.Account
	acc.ID = id
	err := r.db.Master.QueryRowContext(
		ctx, query, id,
	).Scan(&acc.Email, &acc.PasswordHash, &acc.Role, &acc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, ErrAccountNotFound
		}

		return model.Account{}, fmt.Errorf("get: failed to get account: %w", err)
	}

	return acc, nil
}

func (r *Repository) GetAccountByEmail(ctx context.Context, email string) (model.Account, error) {
	query := `
		SELECT id, password_hash, role, created_at
		FROM accounts
		WHERE email = $1
    `

	var acc model.Account
	acc.Email = email
	err := r.db.Master.QueryRowContext(
		ctx, query, email,
	).Scan(&acc.ID, &acc.PasswordHash, &acc.Role, &acc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, ErrAccountNotFound
		}

		return model.Account{}, fmt.Errorf("get: failed to get account by email: %w", err)
	}

	return acc, nil
}

func (r *Repository) ListAccounts(ctx context.Context) ([]model.Account, error) {
	query := `
		SELECT id, email, role, created_at
		FROM accounts
		ORDER BY created_at DESC
    `

	rows, err := r.db.Master.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list: failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var acc model.Account
		if err := rows.Scan(&acc.ID, &acc.Email, &acc.Role, &acc.CreatedAt); err != nil {
			return nil, fmt.Errorf("list: failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list: rows error: %w", err)
	}

	return accounts, nil
}

// DeleteAccount removes the account row. Image rows go with it via the
// ON DELETE CASCADE foreign key; their stored objects are the caller's
// responsibility.
func (r *Repository) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM accounts WHERE id = $1
    `

	rows, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete: failed to delete account: %w", err)
	}

	n, err := rows.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete: failed to get number of rows affected: %w", err)
	}

	if n == 0 {
		return ErrAccountNotFound
	}

	return nil
}
