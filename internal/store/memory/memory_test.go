package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MacJediWizard/orgwarden/internal/errs"
	"github.com/MacJediWizard/orgwarden/internal/models"
	"github.com/MacJediWizard/orgwarden/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOrg(t *testing.T, s *Store, name string) *models.Organization {
	t.Helper()
	org := models.NewOrganization(name)
	org.Role = "ROLE_" + name + "_ADMIN"
	require.NoError(t, s.CreateOrganization(context.Background(), org))
	return org
}

func TestStore_Organizations(t *testing.T) {
	ctx := context.Background()
	s := New()

	org := seedOrg(t, s, "ACME")
	assert.NotZero(t, org.ID)

	dup := models.NewOrganization("ACME")
	dup.Role = "ROLE_OTHER_ADMIN"
	err := s.CreateOrganization(ctx, dup)
	assert.ErrorIs(t, err, store.ErrOrganizationExists)
	assert.True(t, errs.Is(err, errs.EConflict))

	got, err := s.GetOrganizationByName(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, org.ID, got.ID)

	got.ContactName = "Jane"
	got.Role = "ROLE_CHANGED"
	require.NoError(t, s.UpdateOrganization(ctx, got))

	reloaded, err := s.GetOrganization(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane", reloaded.ContactName)
	assert.Equal(t, "ROLE_ACME_ADMIN", reloaded.Role, "admin role must not be rewritten")

	inUse, err := s.RoleIdentifierInUse(ctx, "ROLE_ACME_ADMIN")
	require.NoError(t, err)
	assert.True(t, inUse)

	_, err = s.GetOrganization(ctx, 999)
	assert.ErrorIs(t, err, store.ErrOrganizationNotFound)
}

func TestStore_UsersAndRoles(t *testing.T) {
	ctx := context.Background()
	s := New()
	org := seedOrg(t, s, "ACME")

	u := models.NewUser("Alice", "en")
	u.OrganizationID = org.ID
	require.NoError(t, s.CreateUser(ctx, u))

	other := models.NewUser("ALICE", "en")
	other.OrganizationID = org.ID
	assert.ErrorIs(t, s.CreateUser(ctx, other), store.ErrLoginExists)

	r1 := &models.Role{OrganizationID: org.ID, Name: "ops"}
	r2 := &models.Role{OrganizationID: org.ID, Name: "dev"}
	require.NoError(t, s.CreateRole(ctx, r1))
	require.NoError(t, s.CreateRole(ctx, r2))
	require.NoError(t, s.SetRoleIdentifier(ctx, r1.ID, "ROLE_ACME_1"))
	require.NoError(t, s.SetRoleIdentifier(ctx, r2.ID, "ROLE_ACME_2"))
	assert.ErrorIs(t, s.SetRoleIdentifier(ctx, r2.ID, "ROLE_ACME_1"), store.ErrRoleExists)
	assert.ErrorIs(t, s.SetRoleIdentifier(ctx, r2.ID, "ROLE_ACME_ADMIN"), store.ErrRoleExists)

	require.NoError(t, s.SetUserRoles(ctx, u.ID, []int64{r2.ID, r1.ID, r2.ID}))
	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ROLE_ACME_2", "ROLE_ACME_1"}, got.RoleIdentifiers())

	require.NoError(t, s.DeleteRole(ctx, r2.ID))
	got, err = s.GetUserByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"ROLE_ACME_1"}, got.RoleIdentifiers())

	full, err := s.GetOrganization(ctx, org.ID)
	require.NoError(t, err)
	assert.Len(t, full.Users, 1)
	assert.Len(t, full.Roles, 1)
}

func TestStore_AcceptKeyLookup(t *testing.T) {
	ctx := context.Background()
	s := New()
	org := seedOrg(t, s, "ACME")

	u := models.NewUser("bob", "en")
	u.OrganizationID = org.ID
	require.NoError(t, s.CreateUser(ctx, u))
	require.NoError(t, u.Invite(time.Now()))
	require.NoError(t, s.UpdateUser(ctx, u))

	got, err := s.GetUserByAcceptKey(ctx, u.AcceptKey.Key)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, models.UserStatusInvited, got.Status)

	_, err = s.GetUserByAcceptKey(ctx, "")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestStore_DeleteOrganizationCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	org := seedOrg(t, s, "ACME")

	u := models.NewUser("carol", "en")
	u.OrganizationID = org.ID
	require.NoError(t, s.CreateUser(ctx, u))
	r := &models.Role{OrganizationID: org.ID, Name: "ops", Role: "ROLE_ACME_9"}
	require.NoError(t, s.CreateRole(ctx, r))

	require.NoError(t, s.DeleteOrganization(ctx, org.ID))

	_, err := s.GetUser(ctx, u.ID)
	assert.ErrorIs(t, err, store.ErrUserNotFound)
	_, err = s.GetRole(ctx, r.ID)
	assert.ErrorIs(t, err, store.ErrRoleNotFound)
}

func TestStore_InTxRollback(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx store.Store) error {
		org := models.NewOrganization("Ghost")
		org.Role = "ROLE_GHOST_ADMIN"
		if err := tx.CreateOrganization(ctx, org); err != nil {
			return err
		}
		_, err := tx.GetOrganizationByName(ctx, "Ghost")
		require.NoError(t, err, "writes are visible inside the transaction")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetOrganizationByName(ctx, "Ghost")
	assert.ErrorIs(t, err, store.ErrOrganizationNotFound)
}

func TestStore_InTxCommit(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.InTx(ctx, func(tx store.Store) error {
		org := models.NewOrganization("Kept")
		org.Role = "ROLE_KEPT_ADMIN"
		return tx.InTx(ctx, func(inner store.Store) error {
			return inner.CreateOrganization(ctx, org)
		})
	})
	require.NoError(t, err)

	_, err = s.GetOrganizationByName(ctx, "Kept")
	assert.NoError(t, err)
}
