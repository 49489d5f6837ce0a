package core

import (
	"context"
	"fmt"

	"themecore/pkg/domain"
)

// NewVersionMonotonicRule returns the rule blocking commits in which a
// theme's snapshot tags are not unique strictly increasing integers.
func NewVersionMonotonicRule() domain.Rule {
	return versionMonotonicRule{}
}

type versionMonotonicRule struct{}

func (versionMonotonicRule) Name() string { return "version_monotonic" }

func (versionMonotonicRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	violation := func(id, msg string) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "version_monotonic",
			Severity: domain.SeverityBlock,
			Message:  msg,
			Entity:   domain.EntityGeneratedTheme,
			EntityID: id,
		})
	}
	seen := make(map[string]map[uint64]bool)
	for _, g := range view.ListGeneratedThemes() {
		tag, err := domain.ParseVersionTag(g.Version)
		if err != nil {
			violation(g.ID, fmt.Sprintf("snapshot %s of theme %s carries invalid version %q", g.ID, g.ThemeID, g.Version))
			continue
		}
		if seen[g.ThemeID] == nil {
			seen[g.ThemeID] = make(map[uint64]bool)
		}
		if seen[g.ThemeID][tag] {
			violation(g.ID, fmt.Sprintf("theme %s has duplicate snapshot version %q", g.ThemeID, g.Version))
		}
		seen[g.ThemeID][tag] = true
	}
	return res, nil
}
