package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"schoolhouse/api/internal/ids"
	"schoolhouse/api/internal/models"
)

const (
	ActionCreateRole = "CreateRole"
	ActionUpdateRole = "UpdateRole"
	ActionDeleteRole = "DeleteRole"
	ActionAssignUser = "AssignUser"
	ActionRemoveUser = "RemoveUser"
	ActionCreateUser = "CreateUser"
	ActionUpdateUser = "UpdateUser"
	ActionDeleteUser = "DeleteUser"

	ActionSuspendUser   = "SuspendUser"
	ActionUnsuspendUser = "UnsuspendUser"
	ActionBanUser       = "BanUser"
	ActionUnbanUser     = "UnbanUser"

	ActionAddAdmin      = "AddAdmin"
	ActionAddInstructor = "AddInstructor"
	ActionRemoveStaff   = "RemoveStaff"

	ActionCreateSchoolhouse       = "CreateSchoolhouse"
	ActionUpdateSchoolhouse       = "UpdateSchoolhouse"
	ActionDeleteSchoolhouse       = "DeleteSchoolhouse"
	ActionUpsertInstructorProfile = "UpsertInstructorProfile"
	ActionUploadMedia             = "UploadMedia"
	ActionDeleteMedia             = "DeleteMedia"
	ActionAttachMedia             = "AttachMedia"
	ActionCreateClass             = "CreateClass"
	ActionUpdateClass             = "UpdateClass"
	ActionDeleteClass             = "DeleteClass"
)

const maxDetails = 1024

var ErrMissingActor = errors.New("audit entry requires an actor")

// Sink persists audit entries. Implementations only ever insert.
type Sink interface {
	Append(ctx context.Context, entry *models.AuditLogEntry) error
}

type Event struct {
	Action        string
	ActorID       string
	TargetUserID  string
	RoleID        string
	RoleName      string
	SchoolhouseID string
	Details       string
}

// Recorder turns events into entries. Zero values fall back to the wall
// clock and ksuid identifiers.
type Recorder struct {
	Now   func() time.Time
	NewID func() string
}

func (r Recorder) Entry(ev Event) (models.AuditLogEntry, error) {
	if strings.TrimSpace(ev.ActorID) == "" {
		return models.AuditLogEntry{}, ErrMissingActor
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	newID := ids.New
	if r.NewID != nil {
		newID = r.NewID
	}

	details := ev.Details
	if len(details) > maxDetails {
		details = details[:maxDetails]
	}
	return models.AuditLogEntry{
		ID:                newID(),
		Action:            ev.Action,
		RoleID:            optional(ev.RoleID),
		RoleName:          ev.RoleName,
		TargetUserID:      optional(ev.TargetUserID),
		SchoolhouseID:     optional(ev.SchoolhouseID),
		PerformedByUserID: ev.ActorID,
		Details:           details,
		CreatedAt:         now().UTC(),
	}, nil
}

// Record builds the entry for ev and appends it to sink.
func (r Recorder) Record(ctx context.Context, sink Sink, ev Event) error {
	entry, err := r.Entry(ev)
	if err != nil {
		return err
	}
	return sink.Append(ctx, &entry)
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
