package store

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL,
	can_create    INTEGER NOT NULL DEFAULT 0,
	can_delete    INTEGER NOT NULL DEFAULT 0,
	view_all      INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS user_instances (
	user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	instance_id TEXT NOT NULL,
	PRIMARY KEY (user_id, instance_id)
);
`

// InitDB opens (creating if needed) the SQLite database at path and applies
// the schema.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// -- User operations --

func (s *SQLiteStore) CreateUser(u *User) error {
	query := `INSERT INTO users (id, username, password_hash, role, can_create, can_delete, view_all, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.Exec(query, u.ID, u.Username, u.PasswordHash, u.Role, u.CanCreate, u.CanDelete, u.ViewAll, u.CreatedAt)
	return err
}

func (s *SQLiteStore) GetUser(id string) (*User, error) {
	u := &User{}
	query := `SELECT id, username, password_hash, role, can_create, can_delete, view_all, created_at FROM users WHERE id = ?`
	err := s.db.QueryRow(query, id).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CanCreate, &u.CanDelete, &u.ViewAll, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (s *SQLiteStore) GetUserByUsername(username string) (*User, error) {
	u := &User{}
	query := `SELECT id, username, password_hash, role, can_create, can_delete, view_all, created_at FROM users WHERE username = ?`
	err := s.db.QueryRow(query, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CanCreate, &u.CanDelete, &u.ViewAll, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (s *SQLiteStore) ListUsers() ([]*User, error) {
	query := `SELECT id, username, password_hash, role, can_create, can_delete, view_all, created_at FROM users ORDER BY created_at ASC`
	rows, err := s.db.Query(query)
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

func (s *SQLiteStore) DeleteUser(id string) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	return err
}

// -- Instance view grants --

func (s *SQLiteStore) GrantInstanceView(userID, instanceID string) error {
	query := `INSERT OR IGNORE INTO user_instances (user_id, instance_id) VALUES (?, ?)`
	_, err := s.db.Exec(query, userID, instanceID)
	return err
}

func (s *SQLiteStore) RevokeInstanceView(userID, instanceID string) error {
	_, err := s.db.Exec(`DELETE FROM user_instances WHERE user_id = ? AND instance_id = ?`, userID, instanceID)
	return err
}

func (s *SQLiteStore) ListViewableInstances(userID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT instance_id FROM user_instances WHERE user_id = ?`, userID)
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

func (s *SQLiteStore) RevokeInstanceViewAll(instanceID string) error {
	_, err := s.db.Exec(`DELETE FROM user_instances WHERE instance_id = ?`, instanceID)
	return err
}
