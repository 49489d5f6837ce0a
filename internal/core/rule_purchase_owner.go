package core

import (
	"context"
	"fmt"

	"themecore/pkg/domain"
)

// NewPurchaseOwnerRule returns the rule blocking purchases that do not
// reference exactly one owner, or whose owner no longer exists.
func NewPurchaseOwnerRule() domain.Rule {
	return purchaseOwnerRule{}
}

type purchaseOwnerRule struct{}

func (purchaseOwnerRule) Name() string { return "purchase_owner" }

func (purchaseOwnerRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	violation := func(id, msg string) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "purchase_owner",
			Severity: domain.SeverityBlock,
			Message:  msg,
			Entity:   domain.EntityPurchase,
			EntityID: id,
		})
	}
	for _, p := range view.ListPurchases() {
		userID, orgID := p.Owner()
		if (userID == nil) == (orgID == nil) {
			violation(p.ID, fmt.Sprintf("purchase %s must reference exactly one of user or organization", p.ID))
			continue
		}
		if userID != nil {
			if _, ok := view.FindUser(*userID); !ok {
				violation(p.ID, fmt.Sprintf("purchase %s references missing user %s", p.ID, *userID))
			}
		}
		if orgID != nil {
			if _, ok := view.FindOrganization(*orgID); !ok {
				violation(p.ID, fmt.Sprintf("purchase %s references missing organization %s", p.ID, *orgID))
			}
		}
	}
	return res, nil
}
