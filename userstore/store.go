// Package userstore persists users in a SQLite database.
//
// The store only knows about e-mails and opaque password values, hashing
// and every uniqueness rule belong to its callers.
package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	_ "github.com/mattn/go-sqlite3"
)

const (
	InMemory = ":memory:"
)

type (
	Store struct {
		db        *sql.DB
		writeable bool
	}

	User struct {
		ID           int64
		Email        string
		PasswordHash string
	}

	// Changes lists the attributes to modify in Update, nil fields are
	// left untouched.
	Changes struct {
		Email        *string
		PasswordHash *string
	}
)

func openDatabase(ctx context.Context, file string, readwrite bool) (*sql.DB, error) {
	var connstr string
	switch {
	case file == InMemory:
		connstr = InMemory
	case readwrite:
		err := os.MkdirAll(filepath.Dir(file), 0755)
		if err != nil {
			return nil, fmt.Errorf("unable to create directory to store %v, cause %w", file, err)
		}
		connstr = fmt.Sprintf("file:%v?_busy_timeout=5000&mode=rwc", file)
	default:
		connstr = fmt.Sprintf("file:%v?mode=ro", file)
	}
	conn, err := sql.Open("sqlite3", connstr)
	if err != nil {
		return nil, fmt.Errorf("unable to open %v, cause %w", file, err)
	}
	if file == InMemory {
		// every connection to :memory: sees a different database
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
	}
	err = conn.PingContext(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to ping user store %v, cause %w", file, err)
	}
	return conn, nil
}

// Open loads the user store kept at file, use InMemory for a throw-away
// store. The schema is created when the store is writeable.
func Open(ctx context.Context, file string, readwrite bool) (*Store, error) {
	if file == InMemory {
		readwrite = true
	}
	conn, err := openDatabase(ctx, file, readwrite)
	if err != nil {
		return nil, err
	}
	s := &Store{db: conn, writeable: readwrite}
	if !readwrite {
		return s, nil
	}
	err = s.init(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to init user store %v, cause %w", file, err)
	}
	return s, nil
}

// Find returns all users registered with the given e-mail
func (s *Store) Find(ctx context.Context, email string) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `select user_id, email, password from users
	where email_hash64 = ? and email = ?
	order by user_id asc`, emailHash(email), email)
	if err != nil {
		return nil, fmt.Errorf("unable to find users by email, cause %w", err)
	}
	return scanUsers(rows)
}

func (s *Store) FindOne(ctx context.Context, id int64) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `select user_id, email, password from users where user_id = ?`, id).
		Scan(&u.ID, &u.Email, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, UserNotFound{ID: id}
	} else if err != nil {
		return nil, fmt.Errorf("unable to load user %v, cause %w", id, err)
	}
	return &u, nil
}

func (s *Store) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `select user_id, email, password from users order by user_id asc`)
	if err != nil {
		return nil, fmt.Errorf("unable to list users, cause %w", err)
	}
	return scanUsers(rows)
}

func (s *Store) Create(ctx context.Context, email, passwordHash string) (*User, error) {
	if !s.writeable {
		return nil, ReadOnly{}
	}
	u := User{Email: email, PasswordHash: passwordHash}
	err := s.db.QueryRowContext(ctx, `insert into users(email, email_hash64, password) values (?, ?, ?) returning user_id`,
		email, emailHash(email), passwordHash).Scan(&u.ID)
	if err != nil {
		return nil, fmt.Errorf("unable to create user, cause %w", err)
	}
	return &u, nil
}

func (s *Store) Update(ctx context.Context, id int64, changes Changes) (*User, error) {
	if !s.writeable {
		return nil, ReadOnly{}
	}
	u, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if changes.Email != nil {
		u.Email = *changes.Email
	}
	if changes.PasswordHash != nil {
		u.PasswordHash = *changes.PasswordHash
	}
	res, err := s.db.ExecContext(ctx, `update users set email = ?, email_hash64 = ?, password = ? where user_id = ?`,
		u.Email, emailHash(u.Email), u.PasswordHash, id)
	if err != nil {
		return nil, fmt.Errorf("unable to update user %v, cause %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, UserNotFound{ID: id}
	}
	return u, nil
}

// Remove deletes the user and returns the record as it was before removal
func (s *Store) Remove(ctx context.Context, id int64) (*User, error) {
	if !s.writeable {
		return nil, ReadOnly{}
	}
	var u User
	err := s.db.QueryRowContext(ctx, `delete from users where user_id = ? returning user_id, email, password`, id).
		Scan(&u.ID, &u.Email, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, UserNotFound{ID: id}
	} else if err != nil {
		return nil, fmt.Errorf("unable to remove user %v, cause %w", id, err)
	}
	return &u, nil
}

func (s *Store) init(ctx context.Context) error {
	for _, cmd := range []string{
		`create table if not exists users(
			user_id integer not null primary key autoincrement,
			email text not null,
			email_hash64 integer not null,
			password text not null
		)`,
		`create index if not exists idx_users_email_hash64
			on users(email_hash64)
		`,
	} {
		_, err := s.db.ExecContext(ctx, cmd)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func scanUsers(rows *sql.Rows) ([]User, error) {
	defer rows.Close()
	var out []User
	for rows.Next() {
		var u User
		err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash)
		if err != nil {
			return nil, fmt.Errorf("unable to scan user, cause %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func emailHash(email string) int64 {
	return int64(xxhash.Sum64String(email))
}
