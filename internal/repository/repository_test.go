package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolhouse/api/internal/ids"
	"schoolhouse/api/internal/models"
	"schoolhouse/api/internal/testutil"
)

func TestUserRepositoryDuplicateUsername(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	existing := testutil.CreateUser(t, db, "ada")

	repo := NewUserRepository(db)
	dup := models.User{
		ID:           ids.New(),
		Username:     existing.Username,
		Email:        "other@example.test",
		PasswordHash: []byte("x"),
		Status:       models.UserStatusActive,
	}
	err := repo.Create(ctx, &dup)
	assert.ErrorIs(t, err, ErrDuplicate)

	usernameTaken, emailTaken, err := repo.UsernameOrEmailTaken(ctx, "ada", "ADA@example.test", "")
	require.NoError(t, err)
	assert.True(t, usernameTaken)
	assert.True(t, emailTaken)

	usernameTaken, emailTaken, err = repo.UsernameOrEmailTaken(ctx, "ada", existing.Email, existing.ID)
	require.NoError(t, err)
	assert.False(t, usernameTaken)
	assert.False(t, emailTaken)
}

func TestUserRepositoryReferencesAndDelete(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")
	plain := testutil.CreateUser(t, db, "plain")
	testutil.CreateSchoolhouse(t, db, "west", owner)

	repo := NewUserRepository(db)

	n, err := repo.References(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.References(ctx, plain.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, repo.Delete(ctx, plain.ID))
	_, err = repo.GetByID(ctx, plain.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, plain.ID), ErrNotFound)
}

func TestRoleRepositoryAssignments(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "grace")
	repo := NewRoleRepository(db)

	role := models.Role{ID: ids.New(), Name: "Editor"}
	require.NoError(t, repo.Create(ctx, &role))

	require.NoError(t, repo.Assign(ctx, &models.UserRole{UserID: user.ID, RoleID: role.ID, GrantedBy: user.ID, GrantedAt: time.Now().UTC()}))
	err := repo.Assign(ctx, &models.UserRole{UserID: user.ID, RoleID: role.ID, GrantedBy: user.ID, GrantedAt: time.Now().UTC()})
	assert.ErrorIs(t, err, ErrDuplicate)

	names, err := repo.NamesForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Editor"}, names)

	require.NoError(t, repo.Delete(ctx, role.ID))
	has, err := repo.HasAssignment(ctx, user.ID, role.ID)
	require.NoError(t, err)
	assert.False(t, has)
	assert.ErrorIs(t, repo.Unassign(ctx, user.ID, role.ID), ErrNotFound)
}

func TestAuditRepositoryListFilters(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewAuditRepository(db)

	target := "target-user"
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, action := range []string{"CreateUser", "UpdateUser", "CreateUser"} {
		entry := models.AuditLogEntry{
			ID:                ids.New(),
			Action:            action,
			TargetUserID:      &target,
			PerformedByUserID: "actor",
			CreatedAt:         base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Append(ctx, &entry))
	}

	entries, total, err := repo.List(ctx, AuditFilter{Action: "CreateUser"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].CreatedAt.After(entries[1].CreatedAt))

	entries, total, err = repo.List(ctx, AuditFilter{TargetUserID: target, Page: Page{Limit: 1, Offset: 1}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, entries, 1)
	assert.Equal(t, "UpdateUser", entries[0].Action)

	_, total, err = repo.List(ctx, AuditFilter{Since: base.Add(90 * time.Second)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestMediaRepositoryDeleteSchoolhouseMediaOwnedBy(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")
	instructor := testutil.CreateUser(t, db, "instructor")
	sh := testutil.CreateSchoolhouse(t, db, "hill", owner)
	other := testutil.CreateSchoolhouse(t, db, "valley", owner)

	mine := testutil.CreateMediaAsset(t, db, instructor)
	theirs := testutil.CreateMediaAsset(t, db, owner)

	repo := NewMediaRepository(db)
	for _, row := range []models.SchoolhouseMedia{
		{ID: ids.New(), SchoolhouseID: sh.ID, MediaAssetID: mine.ID, IsVisibleOnPublicSite: true},
		{ID: ids.New(), SchoolhouseID: sh.ID, MediaAssetID: theirs.ID, IsVisibleOnPublicSite: false, SortOrder: 1},
		{ID: ids.New(), SchoolhouseID: other.ID, MediaAssetID: mine.ID, IsVisibleOnPublicSite: true},
	} {
		row := row
		require.NoError(t, repo.AttachToSchoolhouse(ctx, &row))
	}

	removed, err := repo.DeleteSchoolhouseMediaOwnedBy(ctx, sh.ID, instructor.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	rows, err := repo.SchoolhouseMedia(ctx, sh.ID, false)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, theirs.ID, rows[0].MediaAssetID)

	public, err := repo.SchoolhouseMedia(ctx, sh.ID, true)
	require.NoError(t, err)
	assert.Empty(t, public)

	stillAttached, err := repo.SchoolhouseAttachmentExists(ctx, other.ID, mine.ID)
	require.NoError(t, err)
	assert.True(t, stillAttached)
}

func TestSchoolhouseRepositoryDeleteRemovesChildren(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")
	sh := testutil.CreateSchoolhouse(t, db, "ridge", owner)
	class := testutil.CreateClass(t, db, sh.ID, "intro", time.Now().Add(24*time.Hour), true)
	asset := testutil.CreateMediaAsset(t, db, owner)

	media := NewMediaRepository(db)
	require.NoError(t, media.AttachToClass(ctx, &models.ClassMedia{ID: ids.New(), ClassID: class.ID, MediaAssetID: asset.ID, IsVisibleToPublic: true}))

	require.NoError(t, NewSchoolhouseRepository(db).Delete(ctx, sh.ID))

	var n int64
	require.NoError(t, db.Model(&models.StaffMembership{}).Where("schoolhouse_id = ?", sh.ID).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, db.Model(&models.ClassMedia{}).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, db.Model(&models.Class{}).Count(&n).Error)
	assert.Zero(t, n)

	_, err := NewMediaRepository(db).GetByID(ctx, asset.ID)
	assert.NoError(t, err)
}

func TestStoreTransactionRollsBack(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	store := NewStore(db)

	err := store.Transaction(ctx, func(tx *Store) error {
		role := models.Role{ID: ids.New(), Name: "Temp"}
		if err := tx.Roles.Create(ctx, &role); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	_, err = store.Roles.GetByName(ctx, "Temp")
	assert.ErrorIs(t, err, ErrNotFound)
}
