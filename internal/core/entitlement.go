package core

import (
	"context"

	"themecore/pkg/domain"
)

// Entitlement summarizes an organization's seat usage.
type Entitlement struct {
	OrganizationID string `json:"organization_id"`
	Seats          int    `json:"seats"`
	Used           int    `json:"used"`
	Remaining      int    `json:"remaining"`
}

// UserEntitlement summarizes an individual account's plan. Individual accounts
// always own exactly one seat.
type UserEntitlement struct {
	UserID     string      `json:"user_id"`
	Plan       domain.Plan `json:"plan"`
	SeatsOwned int         `json:"seats_owned"`
}

// ResolveEntitlement reports seat capacity and current usage for an organization.
func (s *Service) ResolveEntitlement(ctx context.Context, organizationID string) (Entitlement, error) {
	var ent Entitlement
	err := s.store.View(ctx, func(view TransactionView) error {
		org, ok := view.FindOrganization(organizationID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityOrganization, ID: organizationID}
		}
		used := len(view.MembersOf(organizationID))
		remaining := org.Seats - used
		if remaining < 0 {
			remaining = 0
		}
		ent = Entitlement{
			OrganizationID: organizationID,
			Seats:          org.Seats,
			Used:           used,
			Remaining:      remaining,
		}
		return nil
	})
	return ent, err
}

// ResolveUserEntitlement reports the plan attached to an individual account.
func (s *Service) ResolveUserEntitlement(ctx context.Context, userID string) (UserEntitlement, error) {
	var ent UserEntitlement
	err := s.store.View(ctx, func(view TransactionView) error {
		user, ok := view.FindUser(userID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityUser, ID: userID}
		}
		ent = UserEntitlement{UserID: userID, Plan: user.Plan, SeatsOwned: 1}
		return nil
	})
	return ent, err
}

// CanAddMember reports whether the organization currently has a free seat.
// The check is advisory; AddOrganizationMember re-validates in-transaction.
func (s *Service) CanAddMember(ctx context.Context, organizationID string) (bool, error) {
	ent, err := s.ResolveEntitlement(ctx, organizationID)
	if err != nil {
		return false, err
	}
	return ent.Remaining > 0, nil
}

// AddOrganizationMember joins a user to an organization. Adding an existing
// member is a no-op returning the current row. When the organization is at
// capacity the add is rejected before the transaction commits.
func (s *Service) AddOrganizationMember(ctx context.Context, organizationID, userID string, role domain.MemberRole) (OrganizationMember, Result, error) {
	var member OrganizationMember
	var res Result
	err := s.run(ctx, "add_member", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			view := tx.Snapshot()
			if existing, ok := view.FindOrganizationMember(organizationID, userID); ok {
				member = existing
				return nil
			}
			org, ok := view.FindOrganization(organizationID)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityOrganization, ID: organizationID}
			}
			if used := len(view.MembersOf(organizationID)); used >= org.Seats {
				return domain.CapacityExceededError{OrganizationID: organizationID, Seats: org.Seats}
			}
			var txErr error
			member, txErr = tx.CreateOrganizationMember(OrganizationMember{
				OrganizationID: organizationID,
				UserID:         userID,
				Role:           role,
			})
			return txErr
		})
		return member.ID, err
	})
	return member, res, err
}

// RemoveOrganizationMember removes a membership. Removing an absent member is
// a no-op; the returned bool reports whether a row was removed.
func (s *Service) RemoveOrganizationMember(ctx context.Context, organizationID, userID string) (bool, Result, error) {
	var removed bool
	var res Result
	err := s.run(ctx, "remove_member", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			removed, txErr = tx.DeleteOrganizationMember(organizationID, userID)
			return txErr
		})
		return userID, err
	})
	return removed, res, err
}

// SetOrganizationSeats adjusts seat capacity. Reductions below the current
// membership count are rolled back by the seat capacity rule.
func (s *Service) SetOrganizationSeats(ctx context.Context, organizationID string, seats int) (Organization, Result, error) {
	var updated Organization
	var res Result
	err := s.run(ctx, "set_organization_seats", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.UpdateOrganization(organizationID, func(o *Organization) error {
				o.Seats = seats
				return nil
			})
			return txErr
		})
		return organizationID, err
	})
	return updated, res, err
}

// ListOrganizationMembers returns memberships of an organization ordered by user ID.
func (s *Service) ListOrganizationMembers(ctx context.Context, organizationID string) ([]OrganizationMember, error) {
	var out []OrganizationMember
	err := s.store.View(ctx, func(view TransactionView) error {
		if _, ok := view.FindOrganization(organizationID); !ok {
			return domain.NotFoundError{Entity: domain.EntityOrganization, ID: organizationID}
		}
		out = view.MembersOf(organizationID)
		return nil
	})
	return out, err
}
