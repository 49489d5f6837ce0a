// Package core exposes the transactional service layer over the domain
// schema: entitlement resolution, theme access control, snapshot versioning,
// sharing and the purchase lifecycle.
package core

import (
	"themecore/pkg/domain"
)

// Exported aliases keep method signatures concise while still exposing domain
// types from this package.
type (
	// User is an alias of domain.User.
	User = domain.User
	// Organization is an alias of domain.Organization.
	Organization = domain.Organization
	// OrganizationMember is an alias of domain.OrganizationMember.
	OrganizationMember = domain.OrganizationMember
	// Purchase is an alias of domain.Purchase.
	Purchase = domain.Purchase
	// PurchaseEvent is an alias of domain.PurchaseEvent.
	PurchaseEvent = domain.PurchaseEvent
	// Theme is an alias of domain.Theme.
	Theme = domain.Theme
	// GeneratedTheme is an alias of domain.GeneratedTheme.
	GeneratedTheme = domain.GeneratedTheme
	// ThemeShare is an alias of domain.ThemeShare.
	ThemeShare = domain.ThemeShare
	// ColorPalette is an alias of domain.ColorPalette.
	ColorPalette = domain.ColorPalette
	// NeutralPalette is an alias of domain.NeutralPalette.
	NeutralPalette = domain.NeutralPalette
	// EntityType is an alias of domain.EntityType.
	EntityType = domain.EntityType
	// Change is an alias of domain.Change.
	Change = domain.Change
	// Result is an alias of domain.Result.
	Result = domain.Result
	// Violation is an alias of domain.Violation.
	Violation = domain.Violation
	// Rule is an alias of domain.Rule.
	Rule = domain.Rule
	// RulesEngine is an alias of domain.RulesEngine.
	RulesEngine = domain.RulesEngine
	// Permission is an alias of domain.Permission.
	Permission = domain.Permission
	// PermissionSet is an alias of domain.PermissionSet.
	PermissionSet = domain.PermissionSet
	// Transaction is an alias of domain.Transaction.
	Transaction = domain.Transaction
	// TransactionView is an alias of domain.TransactionView.
	TransactionView = domain.TransactionView
	// PersistentStore is an alias of domain.PersistentStore.
	PersistentStore = domain.PersistentStore
)

// NewRulesEngine constructs an empty engine instance.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}
