package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolhouse/api/internal/models"
	"schoolhouse/api/internal/testutil"
)

func TestStaffRepositoryUpsertKeepsOneRow(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")
	member := testutil.CreateUser(t, db, "member")
	sh := testutil.CreateSchoolhouse(t, db, "north", owner)

	repo := NewStaffRepository(db)
	first, err := repo.Upsert(ctx, sh.ID, member.ID, models.StaffRoleInstructor, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, models.StaffRoleInstructor, first.Role)
	assert.True(t, first.Active)

	require.NoError(t, repo.Deactivate(ctx, first.ID, time.Now().UTC()))

	later := time.Now().UTC().Add(time.Minute)
	second, err := repo.Upsert(ctx, sh.ID, member.ID, models.StaffRoleAdmin, later)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.StaffRoleAdmin, second.Role)
	assert.True(t, second.Active)
	assert.WithinDuration(t, later, second.UpdatedAt, time.Second)

	rows, err := repo.ListBySchoolhouse(ctx, sh.ID, false)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestStaffRepositoryFindActive(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")
	former := testutil.CreateUser(t, db, "former")
	sh := testutil.CreateSchoolhouse(t, db, "south", owner)
	testutil.AddStaff(t, db, sh.ID, former.ID, models.StaffRoleAdmin, false)

	repo := NewStaffRepository(db)

	m, err := repo.FindActive(ctx, sh.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StaffRoleOwner, m.Role)

	_, err = repo.FindActive(ctx, sh.ID, former.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	m, err = repo.Find(ctx, sh.ID, former.ID)
	require.NoError(t, err)
	assert.False(t, m.Active)
}

func TestStaffRepositoryActiveInstructorIDs(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")
	active := testutil.CreateUser(t, db, "active")
	inactive := testutil.CreateUser(t, db, "inactive")
	sh := testutil.CreateSchoolhouse(t, db, "east", owner)
	testutil.AddStaff(t, db, sh.ID, active.ID, models.StaffRoleInstructor, true)
	testutil.AddStaff(t, db, sh.ID, inactive.ID, models.StaffRoleInstructor, false)

	ids, err := NewStaffRepository(db).ActiveInstructorIDs(ctx, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{active.ID}, ids)
}
