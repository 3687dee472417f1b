package accounts

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/inventory-engine/inventory"
	"github.com/warp/inventory-engine/inventory/store"
)

func setup(t *testing.T) (*Service, *inventory.Service) {
	t.Helper()
	inv := inventory.NewService(store.NewMemory())
	return NewService(inv, WithCost(bcrypt.MinCost)), inv
}

func TestAddUser_HashesAndAudits(t *testing.T) {
	// GIVEN: An empty account store
	acc, inv := setup(t)
	ctx := context.Background()

	// WHEN: Adding a user
	id, err := acc.AddUser(ctx, "admin", NewUser{Username: " alice ", Password: "s3cret", Role: inventory.RoleUser})
	require.NoError(t, err)

	// THEN: The password is stored as a bcrypt hash
	users, err := acc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, id, users[0].ID)
	assert.Equal(t, "alice", users[0].Username)
	assert.NotEqual(t, "s3cret", users[0].PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users[0].PasswordHash), []byte("s3cret")))

	// AND: An audit record names the actor
	page, err := inv.ListRecords(ctx, inventory.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, inventory.OpUserAdd, page.Records[0].Type)
	assert.Equal(t, "admin", page.Records[0].Actor)
	assert.Equal(t, "added user alice, role user", page.Records[0].Detail)
}

func TestAddUser_Validation(t *testing.T) {
	acc, _ := setup(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		actor string
		in    NewUser
		field string
	}{
		{"empty username", "admin", NewUser{Username: "", Password: "x", Role: inventory.RoleUser}, "username"},
		{"long username", "admin", NewUser{Username: strings.Repeat("u", 51), Password: "x", Role: inventory.RoleUser}, "username"},
		{"empty password", "admin", NewUser{Username: "bob", Password: "", Role: inventory.RoleUser}, "password"},
		{"password over bcrypt limit", "admin", NewUser{Username: "bob", Password: strings.Repeat("p", 73), Role: inventory.RoleUser}, "password"},
		{"password over max", "admin", NewUser{Username: "bob", Password: strings.Repeat("p", 101), Role: inventory.RoleUser}, "password"},
		{"bad role", "admin", NewUser{Username: "bob", Password: "x", Role: "root"}, "role"},
		{"missing actor", "", NewUser{Username: "bob", Password: "x", Role: inventory.RoleUser}, "actor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := acc.AddUser(ctx, tt.actor, tt.in)
			var ve *inventory.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestAddUser_DuplicateUsername(t *testing.T) {
	acc, _ := setup(t)
	ctx := context.Background()
	_, err := acc.AddUser(ctx, "admin", NewUser{Username: "alice", Password: "a", Role: inventory.RoleUser})
	require.NoError(t, err)

	_, err = acc.AddUser(ctx, "admin", NewUser{Username: "alice", Password: "b", Role: inventory.RoleAdmin})
	assert.ErrorIs(t, err, inventory.ErrDuplicateName)
}

func TestAuthenticate(t *testing.T) {
	acc, _ := setup(t)
	ctx := context.Background()
	_, err := acc.AddUser(ctx, "admin", NewUser{Username: "alice", Password: "correct", Role: inventory.RoleAdmin})
	require.NoError(t, err)

	u, err := acc.Authenticate(ctx, "alice", "correct")
	require.NoError(t, err)
	assert.Equal(t, inventory.RoleAdmin, u.Role)

	_, err = acc.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, inventory.ErrUnauthorized)

	_, err = acc.Authenticate(ctx, "nobody", "correct")
	assert.ErrorIs(t, err, inventory.ErrUnauthorized)
}

func TestUpdateUser_PasswordAndRole(t *testing.T) {
	acc, _ := setup(t)
	ctx := context.Background()
	admin, err := acc.AddUser(ctx, "system", NewUser{Username: "root", Password: "pw", Role: inventory.RoleAdmin})
	require.NoError(t, err)
	bob, err := acc.AddUser(ctx, "root", NewUser{Username: "bob", Password: "old", Role: inventory.RoleUser})
	require.NoError(t, err)

	pw := "new"
	role := inventory.RoleAdmin
	require.NoError(t, acc.UpdateUser(ctx, "root", bob, UserUpdate{Password: &pw, Role: &role}))

	_, err = acc.Authenticate(ctx, "bob", "old")
	assert.ErrorIs(t, err, inventory.ErrUnauthorized)
	u, err := acc.Authenticate(ctx, "bob", "new")
	require.NoError(t, err)
	assert.Equal(t, inventory.RoleAdmin, u.Role)

	// Two admins now, so root may step down.
	demote := inventory.RoleUser
	require.NoError(t, acc.UpdateUser(ctx, "bob", admin, UserUpdate{Role: &demote}))
}

func TestLastAdminIsProtected(t *testing.T) {
	// GIVEN: A single administrator
	acc, _ := setup(t)
	ctx := context.Background()
	admin, err := acc.AddUser(ctx, "system", NewUser{Username: "root", Password: "pw", Role: inventory.RoleAdmin})
	require.NoError(t, err)

	// WHEN: Demoting or deleting them
	demote := inventory.RoleUser
	errUpdate := acc.UpdateUser(ctx, "root", admin, UserUpdate{Role: &demote})
	errDelete := acc.DeleteUser(ctx, "root", admin)

	// THEN: Both are rejected on the role field
	for _, err := range []error{errUpdate, errDelete} {
		var ve *inventory.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "role", ve.Field)
	}
	users, err := acc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, inventory.RoleAdmin, users[0].Role)
}

func TestDeleteUser(t *testing.T) {
	acc, inv := setup(t)
	ctx := context.Background()
	_, err := acc.AddUser(ctx, "system", NewUser{Username: "root", Password: "pw", Role: inventory.RoleAdmin})
	require.NoError(t, err)
	bob, err := acc.AddUser(ctx, "root", NewUser{Username: "bob", Password: "pw", Role: inventory.RoleUser})
	require.NoError(t, err)

	require.NoError(t, acc.DeleteUser(ctx, "root", bob))
	assert.ErrorIs(t, acc.DeleteUser(ctx, "root", bob), inventory.ErrNotFound)

	page, err := inv.ListRecords(ctx, inventory.RecordFilter{Types: []inventory.OperationType{inventory.OpUserDelete}})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "deleted user bob, role user", page.Records[0].Detail)
}

func TestEnsureAdmin_OnlyOnEmptyStore(t *testing.T) {
	acc, _ := setup(t)
	ctx := context.Background()

	created, err := acc.EnsureAdmin(ctx, "admin", "changeme")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = acc.EnsureAdmin(ctx, "other", "changeme")
	require.NoError(t, err)
	assert.False(t, created)

	users, err := acc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "admin", users[0].Username)
}

func TestImportUsers_Upsert(t *testing.T) {
	// GIVEN: An existing user bob
	acc, inv := setup(t)
	ctx := context.Background()
	_, err := acc.AddUser(ctx, "admin", NewUser{Username: "bob", Password: "old", Role: inventory.RoleUser})
	require.NoError(t, err)

	// WHEN: Importing rows for a new user, bob, and a new user without a password
	res, err := acc.ImportUsers(ctx, "admin", []UserRow{
		{Row: 2, Username: "carol", Password: "pw", Role: inventory.RoleAdmin},
		{Row: 3, Username: "bob", Role: inventory.RoleAdmin, AvatarRef: "bob.png"},
		{Row: 4, Username: "dave", Role: inventory.RoleUser},
	})
	require.NoError(t, err)

	// THEN: carol is created, bob is updated in place, dave fails on password
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, 4, res.Failed[0].Row)
	assert.Equal(t, inventory.KindValidation, res.Failed[0].Kind)

	bob, err := acc.Authenticate(ctx, "bob", "old")
	require.NoError(t, err)
	assert.Equal(t, inventory.RoleAdmin, bob.Role)
	assert.Equal(t, "bob.png", bob.AvatarRef)

	// AND: Each imported row left its own audit record
	page, err := inv.ListRecords(ctx, inventory.RecordFilter{
		Types: []inventory.OperationType{inventory.OpUserAdd, inventory.OpUserUpdate},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
}

func TestImportUsers_RequiresActor(t *testing.T) {
	acc, _ := setup(t)
	_, err := acc.ImportUsers(context.Background(), " ", []UserRow{{Row: 2, Username: "x", Password: "y", Role: inventory.RoleUser}})
	assert.ErrorIs(t, err, inventory.ErrValidation)
}
