package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolhouse/api/internal/models"
	"schoolhouse/api/internal/repository"
	"schoolhouse/api/internal/testutil"
)

func TestPolicyPredicates(t *testing.T) {
	db := testutil.NewDB(t)
	owner := testutil.CreateUser(t, db, "owner")
	admin := testutil.CreateUser(t, db, "admin")
	instructor := testutil.CreateUser(t, db, "instructor")
	former := testutil.CreateUser(t, db, "former")
	outsider := testutil.CreateUser(t, db, "outsider")
	sh := testutil.CreateSchoolhouse(t, db, "maple", owner)
	other := testutil.CreateSchoolhouse(t, db, "cedar", outsider)
	testutil.AddStaff(t, db, sh.ID, admin.ID, models.StaffRoleAdmin, true)
	testutil.AddStaff(t, db, sh.ID, instructor.ID, models.StaffRoleInstructor, true)
	testutil.AddStaff(t, db, sh.ID, former.ID, models.StaffRoleAdmin, false)

	p := New(repository.NewStaffRepository(db))
	ctx := context.Background()

	tests := []struct {
		name        string
		schoolhouse string
		actor       string
		manage      bool
		owner       bool
	}{
		{"owner", sh.ID, owner.ID, true, true},
		{"admin", sh.ID, admin.ID, true, false},
		{"instructor", sh.ID, instructor.ID, false, false},
		{"inactive admin", sh.ID, former.ID, false, false},
		{"owner of another schoolhouse", sh.ID, outsider.ID, false, false},
		{"owner elsewhere", other.ID, owner.ID, false, false},
		{"unknown schoolhouse", "missing", owner.ID, false, false},
		{"empty actor", sh.ID, "", false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			staff, err := p.CanManageStaff(ctx, tc.schoolhouse, tc.actor)
			require.NoError(t, err)
			assert.Equal(t, tc.manage, staff)

			media, err := p.CanManageMedia(ctx, tc.schoolhouse, tc.actor)
			require.NoError(t, err)
			assert.Equal(t, tc.manage, media)

			isOwner, err := p.IsOwner(ctx, tc.schoolhouse, tc.actor)
			require.NoError(t, err)
			assert.Equal(t, tc.owner, isOwner)
		})
	}
}

type failingReader struct{}

func (failingReader) FindActive(context.Context, string, string) (models.StaffMembership, error) {
	return models.StaffMembership{}, assert.AnError
}

func TestPolicyPropagatesStoreErrors(t *testing.T) {
	p := New(failingReader{})

	ok, err := p.CanManageStaff(context.Background(), "sh", "actor")
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, ok)

	ok, err = p.CanManageMedia(context.Background(), "sh", "actor")
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, ok)
}
