// Package sqlitedb provides the sqlite storage backend.
package sqlitedb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"recordbook-ui/model"
	"recordbook-ui/store"
	"recordbook-ui/util"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	is_root INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	subject TEXT NOT NULL,
	person_name TEXT NOT NULL DEFAULT '',
	phone_number TEXT NOT NULL DEFAULT '',
	age INTEGER NOT NULL DEFAULT 0,
	email TEXT NOT NULL DEFAULT '',
	details TEXT NOT NULL,
	additional_links TEXT NOT NULL DEFAULT '',
	creator TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
`

// SqliteDB - representation of the sqlite database backend
type SqliteDB struct {
	conn   *sql.DB
	dbPath string
}

// New opens (or creates) a sqlite database at the given path and
// ensures parent directories exist.
func New(dbPath string) (*SqliteDB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// sqlite handles one writer at a time
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	return &SqliteDB{conn: conn, dbPath: dbPath}, nil
}

// Init creates the tables and seeds the root account. It is idempotent
// and must run once at process start, before serving requests.
func (o *SqliteDB) Init() error {
	if _, err := o.conn.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	// seed the root user if it does not exist yet
	_, err := o.GetUserByName(util.DefaultUsername)
	if err == nil {
		return nil
	}
	if err != store.ErrNotFound {
		return err
	}

	plaintext := util.LookupEnvOrString(util.PasswordEnvVar, util.DefaultPassword)
	hash, err := util.HashPassword(plaintext)
	if err != nil {
		return err
	}
	_, err = o.CreateUser(model.User{
		Username:     util.DefaultUsername,
		PasswordHash: hash,
		IsRoot:       true,
	})
	return err
}

func (o *SqliteDB) Close() error {
	return o.conn.Close()
}

func (o *SqliteDB) GetPath() string {
	return o.dbPath
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}

// CreateUser func to save a new user in the database
func (o *SqliteDB) CreateUser(user model.User) (model.User, error) {
	res, err := o.conn.Exec(`
INSERT INTO users (username, password_hash, is_root)
VALUES (?, ?, ?)`,
		user.Username, user.PasswordHash, user.IsRoot,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, store.ErrDuplicateUsername
		}
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, fmt.Errorf("user last insert id: %w", err)
	}
	user.ID = id
	return user, nil
}

// GetUserByName func to get a single user from the database
func (o *SqliteDB) GetUserByName(username string) (model.User, error) {
	row := o.conn.QueryRow(`
SELECT id, username, password_hash, is_root FROM users WHERE username = ?`,
		username,
	)
	return scanUser(row)
}

// GetUserByID func to get a single user from the database
func (o *SqliteDB) GetUserByID(id int64) (model.User, error) {
	row := o.conn.QueryRow(`
SELECT id, username, password_hash, is_root FROM users WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

// UpdateUser func to persist username, password hash and role changes.
// The creator fields of existing entries are intentionally untouched.
func (o *SqliteDB) UpdateUser(user model.User) error {
	res, err := o.conn.Exec(`
UPDATE users SET username = ?, password_hash = ?, is_root = ? WHERE id = ?`,
		user.Username, user.PasswordHash, user.IsRoot, user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateUsername
		}
		return fmt.Errorf("update user: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows: %w", err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteUser func to remove a user from the database
func (o *SqliteDB) DeleteUser(id int64) error {
	res, err := o.conn.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user rows: %w", err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

// GetUsers func to get all users from the database
func (o *SqliteDB) GetUsers() ([]model.User, error) {
	rows, err := o.conn.Query(`
SELECT id, username, password_hash, is_root FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var user model.User
		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.IsRoot); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// CountRootUsers reports how many root accounts exist.
func (o *SqliteDB) CountRootUsers() (int, error) {
	var count int
	err := o.conn.QueryRow(`SELECT COUNT(*) FROM users WHERE is_root = 1`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count root users: %w", err)
	}
	return count, nil
}

func scanUser(row *sql.Row) (model.User, error) {
	var user model.User
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.IsRoot); err != nil {
		if err == sql.ErrNoRows {
			return model.User{}, store.ErrNotFound
		}
		return model.User{}, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}
