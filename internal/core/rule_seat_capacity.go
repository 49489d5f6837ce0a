package core

import (
	"context"
	"fmt"

	"themecore/pkg/domain"
)

// NewSeatCapacityRule returns the in-transaction rule blocking commits that
// leave an organization with more members than purchased seats.
func NewSeatCapacityRule() domain.Rule {
	return seatCapacityRule{}
}

type seatCapacityRule struct{}

func (seatCapacityRule) Name() string { return "seat_capacity" }

func (seatCapacityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	occupancy := make(map[string]int)
	for _, member := range view.ListOrganizationMembers() {
		occupancy[member.OrganizationID]++
	}

	res := domain.Result{}
	for _, org := range view.ListOrganizations() {
		count := occupancy[org.ID]
		if count > org.Seats {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "seat_capacity",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("organization %s (%s) over capacity: %d/%d seats", org.Name, org.ID, count, org.Seats),
				Entity:   domain.EntityOrganization,
				EntityID: org.ID,
			})
		}
	}
	return res, nil
}
