package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/warp/inventory-engine/inventory"
)

type userRow struct {
	ID           int64  `db:"id"`
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash"`
	Role         string `db:"role"`
	AvatarRef    string `db:"avatar_ref"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

func (r userRow) toDomain() (*inventory.User, error) {
	created, updated, err := parseStamps(r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", r.ID, err)
	}
	return &inventory.User{
		ID:           inventory.UserID(r.ID),
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		Role:         inventory.Role(r.Role),
		AvatarRef:    r.AvatarRef,
		CreatedAt:    created,
		UpdatedAt:    updated,
	}, nil
}

const userCols = `id, username, password_hash, role, avatar_ref, created_at, updated_at`

func (q *queries) GetUser(ctx context.Context, id inventory.UserID) (*inventory.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, q.q, &row, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &inventory.NotFoundError{Kind: inventory.SubjectUser, ID: int64(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return row.toDomain()
}

func (q *queries) GetUserByName(ctx context.Context, username string) (*inventory.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, q.q, &row, `SELECT `+userCols+` FROM users WHERE username = ?`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &inventory.NotFoundError{Kind: inventory.SubjectUser, Name: username}
	}
	if err != nil {
		return nil, fmt.Errorf("get user by name: %w", err)
	}
	return row.toDomain()
}

func (q *queries) ListUsers(ctx context.Context) ([]*inventory.User, error) {
	var rows []userRow
	if err := sqlx.SelectContext(ctx, q.q, &rows, `SELECT `+userCols+` FROM users ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]*inventory.User, len(rows))
	for i, r := range rows {
		u, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out[i] = u
	}
	return out, nil
}

func (q *queries) InsertUser(ctx context.Context, u *inventory.User) error {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, avatar_ref, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.Username, u.PasswordHash, string(u.Role), u.AvatarRef, formatTime(u.CreatedAt), formatTime(u.UpdatedAt))
	if isUniqueConstraintError(err) {
		return &inventory.DuplicateNameError{Kind: inventory.SubjectUser, Name: u.Username}
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = inventory.UserID(id)
	return nil
}

func (q *queries) UpdateUser(ctx context.Context, u *inventory.User) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE users SET username = ?, password_hash = ?, role = ?, avatar_ref = ?, updated_at = ?
		WHERE id = ?`,
		u.Username, u.PasswordHash, string(u.Role), u.AvatarRef, formatTime(u.UpdatedAt), u.ID)
	if isUniqueConstraintError(err) {
		return &inventory.DuplicateNameError{Kind: inventory.SubjectUser, Name: u.Username}
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &inventory.NotFoundError{Kind: inventory.SubjectUser, ID: int64(u.ID)}
	}
	return nil
}

func (q *queries) DeleteUser(ctx context.Context, id inventory.UserID) error {
	res, err := q.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &inventory.NotFoundError{Kind: inventory.SubjectUser, ID: int64(id)}
	}
	return nil
}
