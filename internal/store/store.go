// Package store serves compliance data straight from PostgreSQL, for
// deployments that run without the REST API in front of the database.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/riskdesk/internal/auth"
	"github.com/odyssey-erp/riskdesk/internal/compliance"
	"github.com/odyssey-erp/riskdesk/internal/platform/db"
)

//go:embed schema.sql
var schema string

// ErrDuplicate reports a unique constraint violation.
var ErrDuplicate = errors.New("store: duplicate entry")

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store implements compliance.Source on PostgreSQL. Every data call checks
// the caller's token with the signer that issued it.
type Store struct {
	db     dbtx
	pool   *pgxpool.Pool
	signer *auth.Signer
}

// New constructs a Store.
func New(pool *pgxpool.Pool, signer *auth.Signer) *Store {
	return &Store{db: pool, pool: pool, signer: signer}
}

// Migrate applies the embedded schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// WithTx runs fn against a transaction-bound Store.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, *Store) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &Store{db: tx, pool: s.pool, signer: s.signer})
	})
}

func (s *Store) verify(cred auth.Credential) error {
	if !cred.Valid() {
		return compliance.ErrAuthExpired
	}
	if _, err := s.signer.Verify(cred.Token); err != nil {
		return fmt.Errorf("%w: %v", compliance.ErrAuthExpired, err)
	}
	return nil
}

// Login checks the password against the stored bcrypt hash and issues a
// signed token.
func (s *Store) Login(ctx context.Context, email, password string) (auth.Credential, error) {
	var hash, role string
	err := s.db.QueryRow(ctx, `SELECT password_hash, role FROM users WHERE email = $1`, normalizeEmail(email)).Scan(&hash, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.Credential{}, auth.ErrInvalidCredentials
		}
		return auth.Credential{}, requestError("login", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return auth.Credential{}, auth.ErrInvalidCredentials
	}
	return s.signer.Issue(normalizeEmail(email), role)
}

// CreateUser stores a user with a bcrypt hashed password.
func (s *Store) CreateUser(ctx context.Context, email, password, role string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("store: hash password: %w", err)
	}
	if role == "" {
		role = "analyst"
	}
	_, err = s.db.Exec(ctx, `INSERT INTO users (email, password_hash, role) VALUES ($1, $2, $3)`, normalizeEmail(email), string(hash), role)
	return classify("create user", err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// classify maps driver errors onto store and compliance errors.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("store: %s: %w", op, ErrDuplicate)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("store: %s: %w", op, compliance.ErrNotFound)
	}
	return requestError(op, err)
}

func requestError(op string, err error) error {
	return &compliance.RequestError{Op: "store: " + op, Err: err}
}

var _ compliance.Source = (*Store)(nil)
