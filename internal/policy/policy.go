package policy

import (
	"context"
	"errors"
	"fmt"

	"schoolhouse/api/internal/models"
	"schoolhouse/api/internal/repository"
)

// StaffReader is the membership lookup the policy needs. FindActive returns
// repository.ErrNotFound when no active row exists.
type StaffReader interface {
	FindActive(ctx context.Context, schoolhouseID, userID string) (models.StaffMembership, error)
}

type Policy struct {
	staff StaffReader
}

func New(staff StaffReader) Policy {
	return Policy{staff: staff}
}

func (p Policy) CanManageStaff(ctx context.Context, schoolhouseID, actorID string) (bool, error) {
	return p.managerRole(ctx, schoolhouseID, actorID)
}

func (p Policy) CanManageMedia(ctx context.Context, schoolhouseID, actorID string) (bool, error) {
	return p.managerRole(ctx, schoolhouseID, actorID)
}

func (p Policy) IsOwner(ctx context.Context, schoolhouseID, actorID string) (bool, error) {
	m, ok, err := p.membership(ctx, schoolhouseID, actorID)
	if err != nil || !ok {
		return false, err
	}
	return m.Role == models.StaffRoleOwner, nil
}

func (p Policy) managerRole(ctx context.Context, schoolhouseID, actorID string) (bool, error) {
	m, ok, err := p.membership(ctx, schoolhouseID, actorID)
	if err != nil || !ok {
		return false, err
	}
	return m.Role.CanManage(), nil
}

func (p Policy) membership(ctx context.Context, schoolhouseID, actorID string) (models.StaffMembership, bool, error) {
	if schoolhouseID == "" || actorID == "" {
		return models.StaffMembership{}, false, nil
	}
	m, err := p.staff.FindActive(ctx, schoolhouseID, actorID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.StaffMembership{}, false, nil
	}
	if err != nil {
		return models.StaffMembership{}, false, fmt.Errorf("lookup staff membership: %w", err)
	}
	return m, true, nil
}
