// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by themecore.
package domain

import (
	"encoding/json"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityUser identifies an account record.
	EntityUser EntityType = "user"
	// EntityOrganization identifies an organization record.
	EntityOrganization EntityType = "organization"
	// EntityOrganizationMember identifies a membership join record.
	EntityOrganizationMember EntityType = "organization_member"
	// EntityPurchase identifies a purchase record.
	EntityPurchase EntityType = "purchase"
	// EntityPurchaseEvent identifies an applied payment-provider event record.
	EntityPurchaseEvent EntityType = "purchase_event"
	// EntityTheme identifies a mutable working theme record.
	EntityTheme EntityType = "theme"
	// EntityGeneratedTheme identifies an immutable rendered snapshot record.
	EntityGeneratedTheme EntityType = "generated_theme"
	// EntityThemeShare identifies an explicit share grant record.
	EntityThemeShare EntityType = "theme_share"
	// EntityColorPalette identifies a color palette record.
	EntityColorPalette EntityType = "color_palette"
	// EntityNeutralPalette identifies a neutral palette record.
	EntityNeutralPalette EntityType = "neutral_palette"
)

// Plan enumerates account plan tiers.
type Plan string

// Account plan tiers mirrored from the billing schema.
const (
	PlanPro  Plan = "PRO"
	PlanTeam Plan = "TEAM"
)

// PurchasePlan enumerates purchasable plan SKUs.
type PurchasePlan string

// Purchasable plan SKUs. Team SKUs carry a fixed seat count.
const (
	PurchasePlanPro    PurchasePlan = "PRO"
	PurchasePlanTeam5  PurchasePlan = "TEAM_5"
	PurchasePlanTeam10 PurchasePlan = "TEAM_10"
)

// SeatCount returns the seat capacity granted by a team SKU, or 0 for
// single-seat plans.
func (p PurchasePlan) SeatCount() int {
	switch p {
	case PurchasePlanTeam5:
		return 5
	case PurchasePlanTeam10:
		return 10
	default:
		return 0
	}
}

// IsTeam reports whether the SKU provisions organization seats.
func (p PurchasePlan) IsTeam() bool {
	return p == PurchasePlanTeam5 || p == PurchasePlanTeam10
}

// PurchaseStatus enumerates the purchase payment lifecycle.
type PurchaseStatus string

// Purchase statuses. A purchase is created PENDING, transitions once via the
// payment webhook to COMPLETED or FAILED, and may transition once more from
// COMPLETED to REFUNDED. FAILED and REFUNDED are terminal.
const (
	PurchasePending   PurchaseStatus = "PENDING"
	PurchaseCompleted PurchaseStatus = "COMPLETED"
	PurchaseFailed    PurchaseStatus = "FAILED"
	PurchaseRefunded  PurchaseStatus = "REFUNDED"
)

// MemberRole enumerates organization membership roles.
type MemberRole string

// Organization membership roles.
const (
	RoleAdmin  MemberRole = "ADMIN"
	RoleMember MemberRole = "MEMBER"
)

// Visibility controls default (non-explicit-share) readability of a theme.
type Visibility string

// Theme visibility variants. ORGANIZATION couples the theme to an owning
// organization; PRIVATE and PUBLIC themes carry no organization reference.
const (
	VisibilityPrivate      Visibility = "PRIVATE"
	VisibilityOrganization Visibility = "ORGANIZATION"
	VisibilityPublic       Visibility = "PUBLIC"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User represents an account provisioned by the identity provider.
type User struct {
	Base
	Email            string  `json:"email"`
	Plan             Plan    `json:"plan"`
	StripeCustomerID *string `json:"stripe_customer_id,omitempty"`
}

// Organization groups users under a shared seat capacity.
type Organization struct {
	Base
	ClerkOrgID string `json:"clerk_org_id"`
	Name       string `json:"name"`
	Seats      int    `json:"seats"`
}

// OrganizationMember joins a user to an organization with a role. The
// (organization, user) pair is unique; each row consumes one seat.
type OrganizationMember struct {
	Base
	OrganizationID string     `json:"organization_id"`
	UserID         string     `json:"user_id"`
	Role           MemberRole `json:"role"`
}

// Purchase records a checkout and its payment lifecycle. Exactly one of
// UserID and OrganizationID is set.
type Purchase struct {
	Base
	UserID                *string        `json:"user_id,omitempty"`
	OrganizationID        *string        `json:"organization_id,omitempty"`
	StripeSessionID       *string        `json:"stripe_session_id,omitempty"`
	StripePaymentIntentID *string        `json:"stripe_payment_intent_id,omitempty"`
	AmountCents           int64          `json:"amount_cents"`
	Currency              string         `json:"currency"`
	Plan                  PurchasePlan   `json:"plan"`
	Seats                 *int           `json:"seats,omitempty"`
	Status                PurchaseStatus `json:"status"`
}

// Owner returns the single owning reference of the purchase. The store
// rejects purchases that do not satisfy the XOR invariant, so exactly one
// return value is non-nil for persisted rows.
func (p Purchase) Owner() (userID, organizationID *string) {
	return p.UserID, p.OrganizationID
}

// PurchaseEvent records an applied payment-provider event. The row ID is the
// provider's event identifier; its presence makes webhook redelivery a no-op.
type PurchaseEvent struct {
	Base
	PurchaseID string         `json:"purchase_id"`
	Status     PurchaseStatus `json:"status"`
}

// Theme is the mutable working document a user edits. Rendered output lives
// in GeneratedTheme snapshots.
type Theme struct {
	Base
	UserID         string          `json:"user_id"`
	OrganizationID *string         `json:"organization_id,omitempty"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	ThemeData      json.RawMessage `json:"theme_data"`
	Version        string          `json:"version"`
	IsDefault      bool            `json:"is_default"`
	Visibility     Visibility      `json:"visibility"`
}

// GeneratedTheme is an immutable rendered snapshot of a theme. Rows are
// append-only; version tags per theme are strictly increasing in creation
// order.
type GeneratedTheme struct {
	Base
	ThemeID       string          `json:"theme_id"`
	GeneratedJSON json.RawMessage `json:"generated_json"`
	Version       string          `json:"version"`
}

// ThemeShare grants read access on a theme to a specific user outside the
// theme's default visibility rule. The (theme, shared-with) pair is unique.
type ThemeShare struct {
	Base
	ThemeID    string `json:"theme_id"`
	SharedBy   string `json:"shared_by"`
	SharedWith string `json:"shared_with"`
}

// ColorPalette is a read-only color input to theme generation. Built-ins are
// process-wide seed data with no owner.
type ColorPalette struct {
	Base
	UserID    *string         `json:"user_id,omitempty"`
	Name      string          `json:"name"`
	Colors    json.RawMessage `json:"colors"`
	IsBuiltIn bool            `json:"is_built_in"`
}

// NeutralPalette is a read-only neutral-scale input to theme generation.
type NeutralPalette struct {
	Base
	UserID    *string         `json:"user_id,omitempty"`
	Name      string          `json:"name"`
	Colors    json.RawMessage `json:"colors"`
	IsBuiltIn bool            `json:"is_built_in"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported mutations captured for rule evaluation
// and auditing.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
