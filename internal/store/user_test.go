package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medsupply/m/domain"
)

func openTestUsers(t *testing.T) (*UserStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := OpenUsers(dir)
	require.NoError(t, err)
	return s, dir
}

func testUser(username string) domain.User {
	return domain.User{
		Name:     "Test Person",
		Username: username,
		Role:     domain.RoleStaff,
		Email:    "test@example.com",
		Phone:    "555",
		Active:   true,
	}
}

func TestUserAddAssignsSequentialIDs(t *testing.T) {
	s, _ := openTestUsers(t)

	first, err := s.Add(testUser("alice"), "pw1")
	require.NoError(t, err)
	second, err := s.Add(testUser("bob"), "pw2")
	require.NoError(t, err)

	assert.Equal(t, 1, first.ID)
	assert.Equal(t, 2, second.ID)
}

func TestUserFieldsMayContainPackedSeparators(t *testing.T) {
	s, dir := openTestUsers(t)
	u := testUser("dana")
	u.Name = "Dana Smith; RN"
	u.Email = "dana@ward:icu.example.com"
	_, err := s.Add(u, "pw")
	require.NoError(t, err)

	reopened, err := OpenUsers(dir)
	require.NoError(t, err)
	got, err := reopened.ByUsername("dana")
	require.NoError(t, err)
	assert.Equal(t, "Dana Smith; RN", got.Name)
	assert.Equal(t, "dana@ward:icu.example.com", got.Email)
}

func TestUserAddRejectsDuplicateUsername(t *testing.T) {
	s, _ := openTestUsers(t)
	_, err := s.Add(testUser("alice"), "pw")
	require.NoError(t, err)

	_, err = s.Add(testUser("alice"), "other")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUserIDsStableAcrossReload(t *testing.T) {
	s, dir := openTestUsers(t)
	added, err := s.Add(testUser("alice"), "pw")
	require.NoError(t, err)

	reopened, err := OpenUsers(dir)
	require.NoError(t, err)
	u, err := reopened.ByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, added.ID, u.ID)

	byID, err := reopened.ByID(added.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)
}

func TestUserDeleteThenReaddGetsHigherID(t *testing.T) {
	s, _ := openTestUsers(t)
	first, err := s.Add(testUser("alice"), "pw")
	require.NoError(t, err)
	require.NoError(t, s.Delete("alice"))

	again, err := s.Add(testUser("alice"), "pw")
	require.NoError(t, err)
	assert.Greater(t, again.ID, first.ID)
}

func TestAuthenticate(t *testing.T) {
	s, _ := openTestUsers(t)
	_, err := s.Add(testUser("alice"), "secret")
	require.NoError(t, err)

	u, err := s.Authenticate("alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	_, err = s.Authenticate("alice", "wrong")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Authenticate("nobody", "secret")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAuthenticateInactiveAccount(t *testing.T) {
	s, _ := openTestUsers(t)
	inactive := testUser("carol")
	inactive.Active = false
	_, err := s.Add(inactive, "secret")
	require.NoError(t, err)

	_, err = s.Authenticate("carol", "secret")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserUpdatePreservesID(t *testing.T) {
	s, _ := openTestUsers(t)
	added, err := s.Add(testUser("alice"), "pw")
	require.NoError(t, err)

	updated := testUser("alice2")
	updated.Name = "Alice Renamed"
	require.NoError(t, s.Update("alice", updated, ""))

	u, err := s.ByUsername("alice2")
	require.NoError(t, err)
	assert.Equal(t, added.ID, u.ID)
	assert.Equal(t, "Alice Renamed", u.Name)

	_, err = s.ByUsername("alice")
	assert.ErrorIs(t, err, ErrNotFound)

	// Old password still valid because none was supplied.
	_, err = s.Authenticate("alice2", "pw")
	assert.NoError(t, err)
}

func TestUserUpdateChangesPassword(t *testing.T) {
	s, _ := openTestUsers(t)
	_, err := s.Add(testUser("alice"), "old")
	require.NoError(t, err)

	require.NoError(t, s.Update("alice", testUser("alice"), "new"))
	_, err = s.Authenticate("alice", "old")
	assert.Error(t, err)
	_, err = s.Authenticate("alice", "new")
	assert.NoError(t, err)
}

func TestSystemAccountIsProtected(t *testing.T) {
	s, _ := openTestUsers(t)
	sys := testUser("admin")
	sys.System = true
	_, err := s.Add(sys, "pw")
	require.NoError(t, err)

	assert.ErrorIs(t, s.Update("admin", testUser("admin"), ""), ErrIntegrity)
	assert.ErrorIs(t, s.Delete("admin"), ErrIntegrity)
}

func TestLegacySentinelRowDecodesAsSystemAccount(t *testing.T) {
	dir := t.TempDir()
	// Eight-field row with the old "-" sentinel in the active column.
	data := "UserID,Name,Username,Password,Role,Email,Phone,Active\n" +
		"1,Root,root,$2a$10$abcdefghijklmnopqrstuv,admin,root@x,0,-\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user"), []byte(data), 0o644))

	s, err := OpenUsers(dir)
	require.NoError(t, err)
	u, err := s.ByUsername("root")
	require.NoError(t, err)
	assert.True(t, u.Active)
	assert.True(t, u.System)
}

func TestUserIndexesAreRebuiltNotPersisted(t *testing.T) {
	s, dir := openTestUsers(t)
	_, err := s.Add(testUser("alice"), "pw")
	require.NoError(t, err)
	_, err = s.Add(testUser("bob"), "pw")
	require.NoError(t, err)
	require.NoError(t, s.Delete("alice"))

	reopened, err := OpenUsers(dir)
	require.NoError(t, err)
	_, err = reopened.ByUsername("alice")
	assert.ErrorIs(t, err, ErrNotFound)
	u, err := reopened.ByUsername("bob")
	require.NoError(t, err)
	assert.Equal(t, 2, u.ID)

	next, err := reopened.Add(testUser("carol"), "pw")
	require.NoError(t, err)
	assert.Equal(t, 3, next.ID)
}
