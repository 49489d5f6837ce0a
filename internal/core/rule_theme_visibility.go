package core

import (
	"context"
	"fmt"

	"themecore/pkg/domain"
)

// NewThemeVisibilityRule returns the rule blocking themes whose visibility
// and organization reference are inconsistent.
func NewThemeVisibilityRule() domain.Rule {
	return themeVisibilityRule{}
}

type themeVisibilityRule struct{}

func (themeVisibilityRule) Name() string { return "theme_visibility" }

func (themeVisibilityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	violation := func(id, msg string) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "theme_visibility",
			Severity: domain.SeverityBlock,
			Message:  msg,
			Entity:   domain.EntityTheme,
			EntityID: id,
		})
	}
	for _, t := range view.ListThemes() {
		switch t.Visibility {
		case domain.VisibilityOrganization:
			if t.OrganizationID == nil {
				violation(t.ID, fmt.Sprintf("theme %s is organization-visible without an organization", t.ID))
				continue
			}
			if _, ok := view.FindOrganization(*t.OrganizationID); !ok {
				violation(t.ID, fmt.Sprintf("theme %s references missing organization %s", t.ID, *t.OrganizationID))
			}
		case domain.VisibilityPrivate, domain.VisibilityPublic:
			if t.OrganizationID != nil {
				violation(t.ID, fmt.Sprintf("theme %s is %s but references organization %s", t.ID, t.Visibility, *t.OrganizationID))
			}
		default:
			violation(t.ID, fmt.Sprintf("theme %s has unknown visibility %q", t.ID, t.Visibility))
		}
	}
	return res, nil
}
