package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL,
	can_create    BOOLEAN NOT NULL DEFAULT FALSE,
	can_delete    BOOLEAN NOT NULL DEFAULT FALSE,
	view_all      BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS user_instances (
	user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	instance_id TEXT NOT NULL,
	PRIMARY KEY (user_id, instance_id)
);
`

// PostgresStore implements Store on a pgx connection pool. Used when
// DATABASE_URL points at a postgres server instead of a local SQLite file.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// -- User operations --

func (s *PostgresStore) CreateUser(u *User) error {
	query := `INSERT INTO users (id, username, password_hash, role, can_create, can_delete, view_all, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.pool.Exec(context.Background(), query, u.ID, u.Username, u.PasswordHash, u.Role, u.CanCreate, u.CanDelete, u.ViewAll, u.CreatedAt)
	return err
}

func (s *PostgresStore) GetUser(id string) (*User, error) {
	u := &User{}
	query := `SELECT id, username, password_hash, role, can_create, can_delete, view_all, created_at FROM users WHERE id = $1`
	err := s.pool.QueryRow(context.Background(), query, id).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CanCreate, &u.CanDelete, &u.ViewAll, &u.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (s *PostgresStore) GetUserByUsername(username string) (*User, error) {
	u := &User{}
	query := `SELECT id, username, password_hash, role, can_create, can_delete, view_all, created_at FROM users WHERE username = $1`
	err := s.pool.QueryRow(context.Background(), query, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CanCreate, &u.CanDelete, &u.ViewAll, &u.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (s *PostgresStore) ListUsers() ([]*User, error) {
	query := `SELECT id, username, password_hash, role, can_create, can_delete, view_all, created_at FROM users ORDER BY created_at ASC`
	rows, err := s.pool.Query(context.Background(), query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u := &User{}
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CanCreate, &u.CanDelete, &u.ViewAll, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) DeleteUser(id string) error {
	_, err := s.pool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, id)
	return err
}

// -- Instance view grants --

func (s *PostgresStore) GrantInstanceView(userID, instanceID string) error {
	query := `INSERT INTO user_instances (user_id, instance_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	_, err := s.pool.Exec(context.Background(), query, userID, instanceID)
	return err
}

func (s *PostgresStore) RevokeInstanceView(userID, instanceID string) error {
	_, err := s.pool.Exec(context.Background(), `DELETE FROM user_instances WHERE user_id = $1 AND instance_id = $2`, userID, instanceID)
	return err
}

func (s *PostgresStore) ListViewableInstances(userID string) ([]string, error) {
	rows, err := s.pool.Query(context.Background(), `SELECT instance_id FROM user_instances WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) RevokeInstanceViewAll(instanceID string) error {
	_, err := s.pool.Exec(context.Background(), `DELETE FROM user_instances WHERE instance_id = $1`, instanceID)
	return err
}
