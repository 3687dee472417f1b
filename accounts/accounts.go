/*
Package accounts manages user accounts on top of the inventory ledger.

PURPOSE:
  Adds, edits, removes and authenticates users. Passwords are stored as
  bcrypt hashes. Every mutation appends an audit record in the same store
  transaction as the user write, like the inventory operations do.

RULES:
  - usernames are unique and at most 50 characters
  - passwords are 1..100 characters
  - roles are "admin" or "user"
  - the last administrator cannot be deleted or demoted

IMPORT:
  ImportUsers upserts spreadsheet rows by username through AddUser and
  UpdateUser, so each row gets the same checks and audit record.

SESSIONS:
  Authenticate returns the user; session handling belongs to the caller.
*/
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/inventory-engine/inventory"
)

// DefaultCost is the bcrypt work factor for new hashes.
const DefaultCost = 12

type Service struct {
	inv  *inventory.Service
	cost int
}

type Option func(*Service)

// WithCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithCost(cost int) Option { return func(s *Service) { s.cost = cost } }

func NewService(inv *inventory.Service, opts ...Option) *Service {
	s := &Service{inv: inv, cost: DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type NewUser struct {
	Username  string
	Password  string
	Role      inventory.Role
	AvatarRef string
}

// UserUpdate changes any non-nil field.
type UserUpdate struct {
	Username  *string
	Password  *string
	Role      *inventory.Role
	AvatarRef *string
}

func (s *Service) AddUser(ctx context.Context, actor string, in NewUser) (inventory.UserID, error) {
	limits := s.inv.Limits()
	actor, err := limits.Name("actor", actor, limits.UsernameMax)
	if err != nil {
		return 0, err
	}
	name, err := limits.Name("username", in.Username, limits.UsernameMax)
	if err != nil {
		return 0, err
	}
	if err := s.checkPassword(in.Password); err != nil {
		return 0, err
	}
	if !in.Role.Valid() {
		return 0, &inventory.ValidationError{Field: "role", Message: "must be admin or user"}
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return 0, err
	}

	var id inventory.UserID
	err = s.inv.Mutate(ctx, inventory.OpUserAdd, actor, func(tx inventory.Tx) error {
		now := s.inv.Now()
		u := &inventory.User{
			Username:     name,
			PasswordHash: hash,
			Role:         in.Role,
			AvatarRef:    in.AvatarRef,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.InsertUser(ctx, u); err != nil {
			return err
		}
		id = u.ID
		return s.inv.Record(ctx, tx, inventory.OpUserAdd, int64(u.ID), name, 0, actor,
			fmt.Sprintf("added user %s, role %s", name, in.Role))
	}, zap.String("username", name))
	return id, err
}

func (s *Service) UpdateUser(ctx context.Context, actor string, id inventory.UserID, u UserUpdate) error {
	limits := s.inv.Limits()
	actor, err := limits.Name("actor", actor, limits.UsernameMax)
	if err != nil {
		return err
	}
	if u.Username != nil {
		name, err := limits.Name("username", *u.Username, limits.UsernameMax)
		if err != nil {
			return err
		}
		u.Username = &name
	}
	var hash string
	if u.Password != nil {
		if err := s.checkPassword(*u.Password); err != nil {
			return err
		}
		h, err := s.hash(*u.Password)
		if err != nil {
			return err
		}
		hash = h
	}
	if u.Role != nil && !u.Role.Valid() {
		return &inventory.ValidationError{Field: "role", Message: "must be admin or user"}
	}

	return s.inv.Mutate(ctx, inventory.OpUserUpdate, actor, func(tx inventory.Tx) error {
		user, err := tx.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if u.Role != nil && user.Role == inventory.RoleAdmin && *u.Role != inventory.RoleAdmin {
			if err := ensureAnotherAdmin(ctx, tx, user.ID); err != nil {
				return err
			}
		}
		if u.Username != nil {
			user.Username = *u.Username
		}
		if hash != "" {
			user.PasswordHash = hash
		}
		if u.Role != nil {
			user.Role = *u.Role
		}
		if u.AvatarRef != nil {
			user.AvatarRef = *u.AvatarRef
		}
		user.UpdatedAt = s.inv.Now()
		if err := tx.UpdateUser(ctx, user); err != nil {
			return err
		}
		return s.inv.Record(ctx, tx, inventory.OpUserUpdate, int64(user.ID), user.Username, 0, actor,
			fmt.Sprintf("updated user %s, role %s", user.Username, user.Role))
	}, zap.Int64("user_id", int64(id)))
}

func (s *Service) DeleteUser(ctx context.Context, actor string, id inventory.UserID) error {
	limits := s.inv.Limits()
	actor, err := limits.Name("actor", actor, limits.UsernameMax)
	if err != nil {
		return err
	}
	return s.inv.Mutate(ctx, inventory.OpUserDelete, actor, func(tx inventory.Tx) error {
		user, err := tx.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if user.Role == inventory.RoleAdmin {
			if err := ensureAnotherAdmin(ctx, tx, user.ID); err != nil {
				return err
			}
		}
		if err := tx.DeleteUser(ctx, id); err != nil {
			return err
		}
		return s.inv.Record(ctx, tx, inventory.OpUserDelete, int64(id), user.Username, 0, actor,
			fmt.Sprintf("deleted user %s, role %s", user.Username, user.Role))
	}, zap.Int64("user_id", int64(id)))
}

func (s *Service) ListUsers(ctx context.Context) ([]*inventory.User, error) {
	var users []*inventory.User
	err := s.inv.View(ctx, "list_users", func(r inventory.Reader) error {
		var err error
		users, err = r.ListUsers(ctx)
		return err
	})
	return users, err
}

// Authenticate checks the password. Unknown users and wrong passwords both
// yield inventory.ErrUnauthorized.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*inventory.User, error) {
	var user *inventory.User
	err := s.inv.View(ctx, "authenticate", func(r inventory.Reader) error {
		var err error
		user, err = r.GetUserByName(ctx, username)
		return err
	})
	if errors.Is(err, inventory.ErrNotFound) {
		return nil, inventory.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, inventory.ErrUnauthorized
	}
	return user, nil
}

// UserRow is one spreadsheet row to upsert by username.
type UserRow struct {
	Row       int
	Username  string
	Password  string
	Role      inventory.Role
	AvatarRef string
}

// ImportUsers adds unknown usernames and updates existing ones, each row in
// its own transaction. An empty password keeps the stored hash of an
// existing user and is rejected for a new one.
func (s *Service) ImportUsers(ctx context.Context, actor string, rows []UserRow) (inventory.ImportResult, error) {
	var res inventory.ImportResult
	limits := s.inv.Limits()
	actor, err := limits.Name("actor", actor, limits.UsernameMax)
	if err != nil {
		return res, err
	}
	for _, row := range rows {
		created, err := s.importRow(ctx, actor, row)
		switch {
		case err != nil:
			res.Failed = append(res.Failed, inventory.RowFailure{
				Row: row.Row, Name: row.Username, Kind: inventory.KindOf(err), Reason: err.Error(),
			})
		case created:
			res.Created++
		default:
			res.Updated++
		}
	}
	return res, nil
}

func (s *Service) importRow(ctx context.Context, actor string, row UserRow) (created bool, err error) {
	var existing *inventory.User
	err = s.inv.View(ctx, "import_users", func(r inventory.Reader) error {
		var err error
		existing, err = r.GetUserByName(ctx, strings.TrimSpace(row.Username))
		return err
	})
	if errors.Is(err, inventory.ErrNotFound) {
		_, err = s.AddUser(ctx, actor, NewUser{
			Username: row.Username, Password: row.Password, Role: row.Role, AvatarRef: row.AvatarRef,
		})
		return err == nil, err
	}
	if err != nil {
		return false, err
	}

	u := UserUpdate{Role: &row.Role}
	if row.Password != "" {
		u.Password = &row.Password
	}
	if row.AvatarRef != "" {
		u.AvatarRef = &row.AvatarRef
	}
	return false, s.UpdateUser(ctx, actor, existing.ID, u)
}

// EnsureAdmin creates the initial administrator when no user exists yet.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (created bool, err error) {
	users, err := s.ListUsers(ctx)
	if err != nil || len(users) > 0 {
		return false, err
	}
	_, err = s.AddUser(ctx, "system", NewUser{Username: username, Password: password, Role: inventory.RoleAdmin})
	return err == nil, err
}

func (s *Service) checkPassword(p string) error {
	n := utf8.RuneCountInString(p)
	max := s.inv.Limits().PasswordMax
	if n == 0 || n > max {
		return &inventory.ValidationError{Field: "password", Message: fmt.Sprintf("must be 1 to %d characters", max)}
	}
	// bcrypt rejects longer inputs.
	if len(p) > 72 {
		return &inventory.ValidationError{Field: "password", Message: "must be at most 72 bytes"}
	}
	return nil
}

func (s *Service) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func ensureAnotherAdmin(ctx context.Context, r inventory.Reader, self inventory.UserID) error {
	users, err := r.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.ID != self && u.Role == inventory.RoleAdmin {
			return nil
		}
	}
	return &inventory.ValidationError{Field: "role", Message: "at least one administrator must remain"}
}
