package domain

import "context"

// TransactionView provides read-only access to snapshot data. It is the same
// surface rules evaluate against.
type TransactionView = RuleView

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. Users and organizations arrive from
// the identity provider and are never deleted here; purchases and generated
// snapshots are append-only apart from status transitions.
type Transaction interface {
	Snapshot() TransactionView
	CreateUser(User) (User, error)
	UpdateUser(id string, mutator func(*User) error) (User, error)
	CreateOrganization(Organization) (Organization, error)
	UpdateOrganization(id string, mutator func(*Organization) error) (Organization, error)
	CreateOrganizationMember(OrganizationMember) (OrganizationMember, error)
	DeleteOrganizationMember(organizationID, userID string) (bool, error)
	CreatePurchase(Purchase) (Purchase, error)
	UpdatePurchase(id string, mutator func(*Purchase) error) (Purchase, error)
	CreatePurchaseEvent(PurchaseEvent) (PurchaseEvent, error)
	CreateTheme(Theme) (Theme, error)
	UpdateTheme(id string, mutator func(*Theme) error) (Theme, error)
	DeleteTheme(id string) error
	CreateGeneratedTheme(GeneratedTheme) (GeneratedTheme, error)
	UpsertThemeShare(ThemeShare) (ThemeShare, error)
	DeleteThemeShare(themeID, sharedWith string) (bool, error)
	CreateColorPalette(ColorPalette) (ColorPalette, error)
	UpdateColorPalette(id string, mutator func(*ColorPalette) error) (ColorPalette, error)
	DeleteColorPalette(id string) error
	CreateNeutralPalette(NeutralPalette) (NeutralPalette, error)
	UpdateNeutralPalette(id string, mutator func(*NeutralPalette) error) (NeutralPalette, error)
	DeleteNeutralPalette(id string) error
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetUser(id string) (User, bool)
	GetOrganization(id string) (Organization, bool)
	GetTheme(id string) (Theme, bool)
	GetPurchase(id string) (Purchase, bool)
	ListUsers() []User
	ListOrganizations() []Organization
	ListThemes() []Theme
	ListColorPalettes() []ColorPalette
	ListNeutralPalettes() []NeutralPalette
}
