package domain

import "context"

// RuleView provides read-only access to domain entities for rule evaluation.
type RuleView interface {
	ListUsers() []User
	ListOrganizations() []Organization
	ListOrganizationMembers() []OrganizationMember
	ListPurchases() []Purchase
	ListPurchaseEvents() []PurchaseEvent
	ListThemes() []Theme
	ListGeneratedThemes() []GeneratedTheme
	ListThemeShares() []ThemeShare
	ListColorPalettes() []ColorPalette
	ListNeutralPalettes() []NeutralPalette
	FindUser(id string) (User, bool)
	FindUserByEmail(email string) (User, bool)
	FindOrganization(id string) (Organization, bool)
	FindOrganizationByClerkID(clerkOrgID string) (Organization, bool)
	FindOrganizationMember(organizationID, userID string) (OrganizationMember, bool)
	MembersOf(organizationID string) []OrganizationMember
	FindPurchase(id string) (Purchase, bool)
	FindPurchaseEvent(id string) (PurchaseEvent, bool)
	FindTheme(id string) (Theme, bool)
	FindGeneratedTheme(themeID, version string) (GeneratedTheme, bool)
	GeneratedVersionsOf(themeID string) []GeneratedTheme
	FindThemeShare(themeID, sharedWith string) (ThemeShare, bool)
	SharesOf(themeID string) []ThemeShare
	FindColorPalette(id string) (ColorPalette, bool)
	FindNeutralPalette(id string) (NeutralPalette, bool)
}

// Rule defines an evaluation executed within a transaction boundary.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
