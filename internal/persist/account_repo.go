package persist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// AccountRepo is the pgx-backed AccountStore implementation. Grounded on
// the teacher's internal/persist/account_repo.go Load/Create shape; the
// teacher's bcrypt password hashing is out of scope here (credentials are
// owned by the unspecified AuthProvider collaborator, §6), so this repo
// only stores the hash it is handed.
type AccountRepo struct {
	db *DB
}

func NewAccountRepo(db *DB) *AccountRepo {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) LoadAccountByUsername(ctx context.Context, username string) (*AccountRow, error) {
	row := &AccountRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, email, username, password_hash, access_level, status, created_at, last_login_at
		 FROM accounts WHERE username = $1`, username,
	).Scan(&row.ID, &row.Email, &row.Username, &row.PasswordHash, &row.AccessLevel, &row.Status, &row.CreatedAt, &row.LastLoginAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *AccountRepo) LoadAccountByID(ctx context.Context, id int64) (*AccountRow, error) {
	row := &AccountRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, email, username, password_hash, access_level, status, created_at, last_login_at
		 FROM accounts WHERE id = $1`, id,
	).Scan(&row.ID, &row.Email, &row.Username, &row.PasswordHash, &row.AccessLevel, &row.Status, &row.CreatedAt, &row.LastLoginAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *AccountRepo) CreateAccount(ctx context.Context, row *AccountRow) error {
	row.CreatedAt = time.Now()
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO accounts (email, username, password_hash, access_level, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		row.Email, row.Username, row.PasswordHash, row.AccessLevel, row.Status, row.CreatedAt,
	).Scan(&row.ID)
}

func (r *AccountRepo) SetAccountStatus(ctx context.Context, accountID int64, status string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE accounts SET status = $2 WHERE id = $1`, accountID, status)
	return err
}
