package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	ProviderLocal  = "local"
	ProviderLDAP   = "ldap"
	ProviderGoogle = "google"

	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID                   int64      `json:"id"`
	Provider             string     `json:"provider"`
	Username             string     `json:"username"`
	Email                string     `json:"email"`
	DisplayName          string     `json:"displayName"`
	PasswordHash         string     `json:"-"`
	Role                 string     `json:"role"`
	ActiveParameterSetID *int64     `json:"activeParameterSetId,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	LastLoginAt          *time.Time `json:"lastLoginAt,omitempty"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

type UserStore struct {
	db *sql.DB
}

const userColumns = `id, provider, username, email, display_name, password_hash, role, active_parameter_set_id, created_at, last_login_at`

func scanUser(row rowScanner) (User, error) {
	var (
		u         User
		activeID  sql.NullInt64
		lastLogin sql.NullTime
	)
	if err := row.Scan(
		&u.ID, &u.Provider, &u.Username, &u.Email, &u.DisplayName, &u.PasswordHash, &u.Role,
		&activeID, &u.CreatedAt, &lastLogin,
	); err != nil {
		return User{}, err
	}
	if activeID.Valid {
		u.ActiveParameterSetID = &activeID.Int64
	}
	if lastLogin.Valid {
		u.LastLoginAt = &lastLogin.Time
	}
	return u, nil
}

func (s *UserStore) one(row *sql.Row) (User, error) {
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrRecordNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (User, error) {
	return s.one(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (s *UserStore) GetByUsername(ctx context.Context, provider, username string) (User, error) {
	return s.one(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE provider = ? AND username = ?`,
		provider, username,
	))
}

func (s *UserStore) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY provider, username`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// CreateLocal inserts a password user. passwordHash must already be a bcrypt hash.
func (s *UserStore) CreateLocal(ctx context.Context, username, passwordHash, role string) (User, error) {
	if role == "" {
		role = RoleUser
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (provider, username, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, ProviderLocal, username, passwordHash, role, time.Now().UTC())
	if isUniqueViolation(err) {
		return User{}, ErrDuplicateKey
	}
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, fmt.Errorf("read user id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// UpsertExternal provisions a directory or Google user on first login and
// refreshes their profile on every later one. The role follows the identity
// provider each time so that group changes take effect at the next login.
func (s *UserStore) UpsertExternal(ctx context.Context, u User) (User, error) {
	if u.Provider == "" || u.Provider == ProviderLocal {
		return User{}, fmt.Errorf("upsert external user: invalid provider %q", u.Provider)
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	now := time.Now().UTC()

	var id int64
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM users WHERE provider = ? AND username = ?`,
			u.Provider, u.Username,
		).Scan(&id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx, `
				INSERT INTO users (provider, username, email, display_name, role, created_at, last_login_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, u.Provider, u.Username, u.Email, u.DisplayName, u.Role, now, now)
			if err != nil {
				return fmt.Errorf("insert user: %w", err)
			}
			id, err = res.LastInsertId()
			if err != nil {
				return fmt.Errorf("read user id: %w", err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("load user: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET email = ?, display_name = ?, role = ?, last_login_at = ?
			WHERE id = ?
		`, u.Email, u.DisplayName, u.Role, now, id); err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) TouchLogin(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch user login: %w", err)
	}
	return expectOneRow(res)
}
