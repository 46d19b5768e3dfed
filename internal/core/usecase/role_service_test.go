package usecase_test

import (
	"context"
	"testing"

	"github.com/atvirokodosprendimai/identityapi/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRoleIsCaseInsensitiveUnique(t *testing.T) {
	f := newFixture(t)
	ctx := actingAs(anonymous(), "admin-1")

	role, err := f.roleSvc.CreateRole(ctx, " Auditor ", "Reads the audit log")
	require.NoError(t, err)
	assert.Equal(t, "Auditor", role.Name)
	assert.Equal(t, "admin-1", role.CreatedBy)

	_, err = f.roleSvc.CreateRole(ctx, "auditor", "")
	require.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = f.roleSvc.CreateRole(ctx, "  ", "")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	entries := f.history(t, "Role")
	require.Len(t, entries, 1)
	assert.Equal(t, "admin-1", entries[0].CreatedBy)

	roles, err := f.roleSvc.ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 3)
}

func TestAssignAndRemoveRole(t *testing.T) {
	f := newFixture(t)
	ctx := anonymous()
	session := f.register(t, ctx, "Ada", "ada@example.com")
	admin := actingAs(ctx, "admin-1")

	result, err := f.roleSvc.AssignRole(admin, session.User.ID, "admin")
	require.NoError(t, err)
	require.True(t, result.Success, result.Errors)
	assert.Equal(t, "Role 'Admin' successfully assigned to user", result.Message)
	assert.ElementsMatch(t, []string{domain.RoleAdmin, domain.RoleUser}, result.User.RoleNames())

	result, err = f.roleSvc.AssignRole(admin, session.User.ID, "Admin")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Role already assigned", result.Message)
	assert.Equal(t, []string{"User already has the role 'Admin'"}, result.Errors)

	result, err = f.roleSvc.RemoveRole(admin, session.User.ID, "Admin")
	require.NoError(t, err)
	require.True(t, result.Success, result.Errors)
	assert.Equal(t, "Role 'Admin' successfully removed from user", result.Message)
	assert.Equal(t, []string{domain.RoleUser}, result.User.RoleNames())

	result, err = f.roleSvc.RemoveRole(admin, session.User.ID, "Admin")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Role not assigned", result.Message)

	links := f.history(t, "UserRole")
	require.Len(t, links, 3)
	assert.Equal(t, domain.AuditCreate, links[1].Action)
	assert.Equal(t, domain.AuditDelete, links[2].Action)
	assert.Nil(t, links[2].NewValues)
	assert.Nil(t, links[2].ChangedFields)
	assert.Contains(t, decode(t, links[2].OldValues), "AssignedAt")
	assert.Equal(t, "admin-1", links[2].CreatedBy)
}

func TestAssignRoleReportsMissingUserAndRole(t *testing.T) {
	f := newFixture(t)
	ctx := anonymous()
	session := f.register(t, ctx, "Ada", "ada@example.com")

	result, err := f.roleSvc.AssignRole(ctx, "missing", domain.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "User not found", result.Message)
	assert.Equal(t, []string{"User does not exist or has been deleted"}, result.Errors)

	result, err = f.roleSvc.AssignRole(ctx, session.User.ID, "Ghost")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Role not found", result.Message)
}

func TestBulkAssignRolesCollectsFailures(t *testing.T) {
	f := newFixture(t)
	ctx := anonymous()
	ada := f.register(t, ctx, "Ada", "ada@example.com")
	grace := f.register(t, ctx, "Grace", "grace@example.com")

	result, err := f.roleSvc.BulkAssignRoles(actingAs(ctx, "admin-1"),
		[]string{ada.User.ID, "missing", grace.User.ID, ada.User.ID},
		[]string{domain.RoleAdmin, domain.RoleUser, "Ghost"},
	)
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalUsers)
	assert.Equal(t, 2, result.SuccessfulAssignments)
	assert.Equal(t, 2, result.FailedAssignments)
	assert.ElementsMatch(t, []string{
		"Role Ghost not found",
		"User missing not found",
		"User " + ada.User.ID + " listed more than once",
	}, result.Errors)
	require.Len(t, result.UpdatedUsers, 2)
	for _, u := range result.UpdatedUsers {
		assert.ElementsMatch(t, []string{domain.RoleAdmin, domain.RoleUser}, u.RoleNames())
	}

	created := 0
	for _, e := range f.history(t, "UserRole") {
		if e.CreatedBy == "admin-1" {
			created++
		}
	}
	assert.Equal(t, 2, created)
}

func TestBulkAssignRolesRollsBackEverythingOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := anonymous()
	ada := f.register(t, ctx, "Ada", "ada@example.com")
	grace := f.register(t, ctx, "Grace", "grace@example.com")

	_, err := f.wdb.ExecContext(context.Background(), `
		CREATE TRIGGER trg_fail_grace_roles
		BEFORE INSERT ON user_roles
		WHEN NEW.user_id = '`+grace.User.ID+`'
		BEGIN
			SELECT RAISE(ABORT, 'forced assignment failure');
		END;
	`)
	require.NoError(t, err)

	_, err = f.roleSvc.BulkAssignRoles(actingAs(ctx, "admin-1"),
		[]string{ada.User.ID, grace.User.ID},
		[]string{domain.RoleAdmin},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forced assignment failure")

	roles, err := f.roles.ListForUser(context.Background(), ada.User.ID)
	require.NoError(t, err)
	assert.Len(t, roles, 1, "first user's assignment must be rolled back with the scope")

	for _, e := range f.history(t, "UserRole") {
		assert.NotEqual(t, "admin-1", e.CreatedBy)
	}
}

func TestUsersWithRolesFiltersByRole(t *testing.T) {
	f := newFixture(t)
	ctx := anonymous()
	ada := f.register(t, ctx, "Ada", "ada@example.com")
	f.register(t, ctx, "Grace", "grace@example.com")
	_, err := f.roleSvc.AssignRole(ctx, ada.User.ID, domain.RoleAdmin)
	require.NoError(t, err)

	page, err := f.roleSvc.UsersWithRoles(ctx, domain.UserFilter{Role: domain.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, ada.User.ID, page.Items[0].ID)
	assert.Empty(t, page.Items[0].PasswordHash)
	assert.EqualValues(t, 1, page.TotalCount)
}
