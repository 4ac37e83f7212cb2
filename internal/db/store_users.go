package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MacJediWizard/orgwarden/internal/models"
	"github.com/MacJediWizard/orgwarden/internal/store"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, organization_id, login, invite_language, status,
	accept_key, accept_key_timestamp, is_admin, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		u        models.User
		status   string
		key      *string
		issuedAt *time.Time
	)
	err := row.Scan(&u.ID, &u.OrganizationID, &u.Login, &u.InviteLanguage, &status,
		&key, &issuedAt, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Status = models.UserStatus(status)
	if key != nil && issuedAt != nil {
		u.AcceptKey = &models.AcceptKey{Key: *key, Timestamp: *issuedAt}
	}
	u.Roles = []*models.Role{}
	return &u, nil
}

func acceptKeyArgs(k *models.AcceptKey) (*string, *time.Time) {
	if k == nil {
		return nil, nil
	}
	return &k.Key, &k.Timestamp
}

// CreateUser inserts user and sets its ID.
func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	user.Login = models.NormalizeLogin(user.Login)
	key, issuedAt := acceptKeyArgs(user.AcceptKey)
	now := time.Now()

	err := db.q.QueryRow(ctx, `
		INSERT INTO users (organization_id, login, invite_language, status,
			accept_key, accept_key_timestamp, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id
	`, user.OrganizationID, user.Login, user.InviteLanguage, string(user.Status),
		key, issuedAt, user.IsAdmin, now,
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("create user: %w", mapPostgresError(err))
	}
	user.CreatedAt, user.UpdatedAt = now, now

	db.logger.Debug().Int64("user_id", user.ID).Int64("org_id", user.OrganizationID).Msg("created user")
	return nil
}

func (db *DB) getUserWhere(ctx context.Context, where string, arg any) (*models.User, error) {
	u, err := scanUser(db.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	roles, err := db.loadUserRoles(ctx, []int64{u.ID})
	if err != nil {
		return nil, err
	}
	if rs, ok := roles[u.ID]; ok {
		u.Roles = rs
	}
	return u, nil
}

// GetUser returns the user with its roles loaded.
func (db *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return db.getUserWhere(ctx, "id = $1", id)
}

// GetUserByLogin looks up a user by normalized login.
func (db *DB) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	return db.getUserWhere(ctx, "login = $1", models.NormalizeLogin(login))
}

// GetUserByAcceptKey looks up a user by accept key.
func (db *DB) GetUserByAcceptKey(ctx context.Context, key string) (*models.User, error) {
	if key == "" {
		return nil, store.ErrUserNotFound
	}
	return db.getUserWhere(ctx, "accept_key = $1", key)
}

// ListUsersByOrganization returns the organization's users ordered by ID.
func (db *DB) ListUsersByOrganization(ctx context.Context, orgID int64) ([]*models.User, error) {
	rows, err := db.q.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE organization_id = $1 ORDER BY id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var (
		users []*models.User
		ids   []int64
	)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
		ids = append(ids, u.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	rows.Close()

	if len(ids) == 0 {
		return users, nil
	}
	roles, err := db.loadUserRoles(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if rs, ok := roles[u.ID]; ok {
			u.Roles = rs
		}
	}
	return users, nil
}

// loadUserRoles returns the ordered roles of each given user.
func (db *DB) loadUserRoles(ctx context.Context, userIDs []int64) (map[int64][]*models.Role, error) {
	rows, err := db.q.Query(ctx, `
		SELECT ur.user_id, r.id, r.organization_id, r.name, COALESCE(r.role, '')
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = ANY($1)
		ORDER BY ur.user_id, ur.position
	`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("load user roles: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]*models.Role)
	for rows.Next() {
		var (
			userID int64
			r      models.Role
		)
		if err := rows.Scan(&userID, &r.ID, &r.OrganizationID, &r.Name, &r.Role); err != nil {
			return nil, fmt.Errorf("scan user role: %w", err)
		}
		out[userID] = append(out[userID], &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user roles: %w", err)
	}
	return out, nil
}

// UpdateUser writes status, accept key, admin flag and invite language.
func (db *DB) UpdateUser(ctx context.Context, user *models.User) error {
	key, issuedAt := acceptKeyArgs(user.AcceptKey)
	user.UpdatedAt = time.Now()

	result, err := db.q.Exec(ctx, `
		UPDATE users SET
			status = $2, accept_key = $3, accept_key_timestamp = $4,
			is_admin = $5, invite_language = $6, updated_at = $7
		WHERE id = $1
	`, user.ID, string(user.Status), key, issuedAt, user.IsAdmin, user.InviteLanguage, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update user: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

// SetUserRoles replaces the user's role assignments.
func (db *DB) SetUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	return db.InTx(ctx, func(tx store.Store) error {
		t := tx.(*DB)
		if _, err := t.q.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("clear user roles: %w", err)
		}

		seen := make(map[int64]struct{}, len(roleIDs))
		position := 0
		for _, roleID := range roleIDs {
			if _, dup := seen[roleID]; dup {
				continue
			}
			seen[roleID] = struct{}{}
			if _, err := t.q.Exec(ctx, `
				INSERT INTO user_roles (user_id, role_id, position) VALUES ($1, $2, $3)
			`, userID, roleID, position); err != nil {
				return fmt.Errorf("assign role %d: %w", roleID, mapPostgresError(err))
			}
			position++
		}
		return nil
	})
}

// DeleteUser deletes the user. Assignments go through ON DELETE CASCADE.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	result, err := db.q.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrUserNotFound
	}
	return nil
}
