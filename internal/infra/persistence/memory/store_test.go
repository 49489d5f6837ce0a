package memory

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"themecore/pkg/domain"
)

func fixedClock() func() time.Time {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return ts }
}

func newTestStore(t *testing.T, engine *RulesEngine) *Store {
	t.Helper()
	s := NewStore(engine)
	s.SetNowFunc(fixedClock())
	return s
}

func mustCreateUser(t *testing.T, s *Store, email string) User {
	t.Helper()
	var created User
	_, err := s.RunInTransaction(context.Background(), func(tx Transaction) error {
		var txErr error
		created, txErr = tx.CreateUser(User{Email: email})
		return txErr
	})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return created
}

func mustCreateOrg(t *testing.T, s *Store, clerkID string, seats int) Organization {
	t.Helper()
	var created Organization
	_, err := s.RunInTransaction(context.Background(), func(tx Transaction) error {
		var txErr error
		created, txErr = tx.CreateOrganization(Organization{ClerkOrgID: clerkID, Name: clerkID, Seats: seats})
		return txErr
	})
	if err != nil {
		t.Fatalf("create organization %s: %v", clerkID, err)
	}
	return created
}

func mustCreateTheme(t *testing.T, s *Store, owner User, name string) Theme {
	t.Helper()
	var created Theme
	_, err := s.RunInTransaction(context.Background(), func(tx Transaction) error {
		var txErr error
		created, txErr = tx.CreateTheme(Theme{UserID: owner.ID, Name: name, ThemeData: json.RawMessage(`{"radius":4}`)})
		return txErr
	})
	if err != nil {
		t.Fatalf("create theme %s: %v", name, err)
	}
	return created
}

func TestCreateUserDefaultsAndUniqueness(t *testing.T) {
	s := newTestStore(t, nil)
	u := mustCreateUser(t, s, "a@example.com")
	if u.ID == "" {
		t.Fatalf("expected generated id")
	}
	if u.Plan != domain.PlanPro {
		t.Fatalf("expected default plan PRO, got %s", u.Plan)
	}
	if u.CreatedAt.IsZero() || !u.CreatedAt.Equal(u.UpdatedAt) {
		t.Fatalf("expected transaction timestamps, got %v / %v", u.CreatedAt, u.UpdatedAt)
	}

	_, err := s.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, txErr := tx.CreateUser(User{Email: "a@example.com"})
		return txErr
	})
	if err == nil {
		t.Fatalf("expected duplicate email rejection")
	}
}

func TestCreateUserStripeCustomerUniqueness(t *testing.T) {
	s := newTestStore(t, nil)
	cust := "cus_123"
	_, err := s.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, txErr := tx.CreateUser(User{Email: "a@example.com", StripeCustomerID: &cust}); txErr != nil {
			return txErr
		}
		_, txErr := tx.CreateUser(User{Email: "b@example.com", StripeCustomerID: &cust})
		return txErr
	})
	if err == nil {
		t.Fatalf("expected duplicate stripe customer rejection")
	}
}

func TestUpdateUserPreservesIDAndBumpsTimestamp(t *testing.T) {
	s := newTestStore(t, nil)
	u := mustCreateUser(t, s, "a@example.com")

	later := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	s.SetNowFunc(func() time.Time { return later })

	var updated User
	_, err := s.RunInTransaction(context.Background(), func(tx Transaction) error {
		var txErr error
		updated, txErr = tx.UpdateUser(u.ID, func(user *User) error {
			user.Email = "renamed@example.com"
			user.ID = "tamper"
			return nil
		})
		return txErr
	})
	if err != nil {
		t.Fatalf("update user: %v", err)
	}
	if updated.ID != u.ID {
		t.Fatalf("id must be immutable, got %s", updated.ID)
	}
	if !updated.UpdatedAt.Equal(later) {
		t.Fatalf("expected updated_at %v, got %v", later, updated.UpdatedAt)
	}
	if !updated.CreatedAt.Equal(u.CreatedAt) {
		t.Fatalf("created_at must not change")
	}
}

func TestUpdateMissingUserReturnsNotFound(t *testing.T) {
	s := newTestStore(t, nil)
	_, err := s.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, txErr := tx.UpdateUser("missing", func(*User) error { return nil })
		return txErr
	})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOrganizationClerkIDUniqueness(t *testing.T) {
	s := newTestStore(t, nil)
	mustCreateOrg(t, s, "org_1", 5)
	_, err := s.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, txErr := tx.CreateOrganization(Organization{ClerkOrgID: "org_1", Seats: 5})
		return txErr
	})
	if err == nil {
		t.Fatalf("expected duplicate clerk org rejection")
	}
}

func TestMembershipPairUniqueness(t *testing.T) {
	s := newTestStore(t, nil)
	u := mustCreateUser(t, s, "a@example.com")
	org := mustCreateOrg(t, s, "org_1", 5)

	_, err := s.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, txErr := tx.CreateOrganizationMember(OrganizationMember{OrganizationID: org.ID, UserID: u.ID})
		return txErr
	})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	_, err = s.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, txErr := tx.CreateOrganizationMember(OrganizationMember{OrganizationID: org.ID, UserID: u.ID})
		return txErr
	})
	if err == nil {
		t.Fatalf("expected duplicate membership rejection")
	}
}

func TestDeleteOrganizationMemberIdempotent(t *testing.T) {
	s := newTestStore(t, nil)
	u := mustCreateUser(t, s, "a@example.com")
	org := mustCreateOrg(t, s, "org_1", 5)

	var removed bool
	_, err := s.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, txErr := tx.CreateOrganizationMember(OrganizationMember{OrganizationID: org.ID, UserID: u.ID}); txErr != nil {
			return txErr
		}
		var txErr error
		removed, txErr = tx.DeleteOrganizationMember(org.ID, u.ID)
		return txErr
	})
	if err != nil || !removed {
		t.Fatalf("expected removal, removed=%v err=%v", removed, err)
	}
	_, err = s.RunInTransaction(context.Background(), func(tx Transaction) error {
		var txErr error
		removed, txErr = tx.DeleteOrganizationMember(org.ID, u.ID)
		return txErr
	})
	if err != nil || removed {
		t.Fatalf("second removal must be a no-op, removed=%v err=%v", removed, err)
	}
}

func TestPurchaseOwnerXOR(t *testing.T) {
	s := newTestStore(t, nil)
	u := mustCreateUser(t, s, "a@example.com")
	org := mustCreateOrg(t, s, "org_1", 5)

	_, err := s.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, txErr := tx.CreatePurchase(Purchase{UserID: &u.ID, OrganizationID: &org.ID, Plan: domain.PurchasePlanPro})
		return txErr
	})
	if !domain.IsInvalidState(err) {
		t.Fatalf("expected invalid state for dual owner, got %v", err)
	}

	_, err = s.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, txErr := tx.CreatePurchase(Purchase{Plan: domain.PurchasePlanPro})
		return txErr
	})
	if !domain.IsInvalidState(err) {
		t.Fatalf("expected invalid state for no owner, got %v", err)
	}
}

func TestPurchaseTeamSeatsDerivedFromPlan(t *testing.T) {
	s := newTestStore(t, nil)
	org := mustCreateOrg(t, s, "org_1", 0)

	var created Purchase
	_, err := s.RunInTransaction(context.Background(), func(tx Transaction) error {
		var txErr error
		created, txErr = tx.CreatePurchase(Purchase{OrganizationID: &org.ID, Plan: domain.PurchasePlanTeam10})
		return txErr
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	if created.Seats == nil || *created.Seats != 10 {
		t.Fatalf("expected 10 seats derived from plan, got %v", created.Seats)
	}
	if created.Status != domain.PurchasePending {
		t.Fatalf("expected PENDING status, got %s", created.Status)
	}
	if created.Currency != "usd" {
		t.Fatalf("expected default currency usd, got %s", created.Currency)
	}

	wrong := 3
	_, err = s.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, txErr := tx.CreatePurchase(Purchase{OrganizationID: &org.ID, Plan: domain.PurchasePlanTeam5, Seats: &wrong})
		return txErr
	})
	if err == nil {
		t.Fatalf("expected seat mismatch rejection")
	}
}

func TestPurchaseEventRequiresProviderIDAndRejectsDuplicates(t *testing.T) {
	s := newTestStore(t, nil)
	u := mustCreateUser(t, s, "a@example.com")

	var purchase Purchase
	_, err := s.RunInTransaction(context.Background(), func(tx Transaction) error {
		var txErr error
		purchase, txErr = tx.CreatePurchase(Purchase{UserID: &u.ID, Plan: domain.PurchasePlanPro})
		return txErr
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}

	_, err = s.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, txErr := tx.CreatePurchaseEvent(PurchaseEvent{PurchaseID: purchase.ID, Status: domain.PurchaseCompleted})
		return txErr
	})
	if err == nil {
		t.Fatalf("expected rejection without provider event id")
	}

	event := PurchaseEvent{Base: domain.Base{ID: "evt_1"}, PurchaseID: purchase.ID, Status: domain.PurchaseCompleted}
	_, err = s.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, txErr := tx.CreatePurchaseEvent(event)
		return txErr
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	_, err = s.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, txErr := tx.CreatePurchaseEvent(event)
		return txErr
	})
	if err == nil {
		t.Fatalf("expected duplicate event rejection")
	}
}

func TestThemeVisibilityCoupling(t *testing.T) {
	s := newTestStore(t, nil)
	u := mustCreateUser(t, s, "a@example.com")
	org := mustCreateOrg(t, s, "org_1", 5)

	_, err := s.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, txErr := tx.CreateTheme(Theme{UserID: u.ID, Name: "Dark", Visibility: domain.VisibilityOrganization})
		return txErr
	})
	if !domain.IsInvalidState(err) {
		t.Fatalf("expected invalid state for org visibility without org, got %v", err)
	}

	_, err = s.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, txErr := tx.CreateTheme(Theme{UserID: u.ID, Name: "Dark", Visibility: domain.VisibilityPrivate, OrganizationID: &org.ID})
		return txErr
	})
	if !domain.IsInvalidState(err) {
		t.Fatalf("expected invalid state for private theme with org, got %v", err)
	}

	_, err = s.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, txErr := tx.CreateTheme(Theme{UserID: u.ID, Name: "Dark", Visibility: domain.VisibilityOrganization, OrganizationID: &org.ID})
		return txErr
	})
	if err != nil {
		t.Fatalf("org-visible theme with org ref should be accepted: %v", err)
	}
}

func TestThemeDefaultsToPrivate(t *testing.T) {
	s := newTestStore(t, nil)
	u := mustCreateUser(t, s, "a@example.com")
	theme := mustCreateTheme(t, s, u, "Dark")
	if theme.Visibility != domain.VisibilityPrivate {
		t.Fatalf("expected default PRIVATE, got %s", theme.Visibility)
	}
}

func TestGeneratedThemeMonotonicVersions(t *testing.T) {
	s := newTestStore(t, nil)
	u := mustCreateUser(t, s, "a@example.com")
	theme := mustCreateTheme(t, s, u, "Dark")

	for i := 1; i <= 3; i++ {
		tag := strconv.Itoa(i)
		_, err := s.RunInTransaction(context.Background(), func(tx Transaction) error {
			_, txErr := tx.CreateGeneratedTheme(GeneratedTheme{ThemeID: theme.ID, Version: tag, GeneratedJSON: json.RawMessage(`{}`)})
			return txErr
		})
		if err != nil {
			t.Fatalf("create snapshot %s: %v", tag, err)
		}
	}

	for _, tag := range []string{"3", "2", "1"} {
		_, err := s.RunInTransaction(context.Background(), func(tx Transaction) error {
			_, txErr := tx.CreateGeneratedTheme(GeneratedTheme{ThemeID: theme.ID, Version: tag, GeneratedJSON: json.RawMessage(`{}`)})
			return txErr
		})
		if !domain.IsVersionConflict(err) {
			t.Fatalf("expected version conflict for tag %s, got %v", tag, err)
		}
	}

	err := s.View(context.Background(), func(view TransactionView) error {
		versions := view.GeneratedVersionsOf(theme.ID)
		if len(versions) != 3 {
			t.Fatalf("expected 3 snapshots, got %d", len(versions))
		}
		for i, g := range versions {
			if g.Version != strconv.Itoa(i+1) {
				t.Fatalf("expected ascending versions, got %v at %d", g.Version, i)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestDeleteThemeCascadesSnapshotsAndShares(t *testing.T) {
	s := newTestStore(t, nil)
	owner := mustCreateUser(t, s, "owner@example.com")
	grantee := mustCreateUser(t, s, "grantee@example.com")
	theme := mustCreateTheme(t, s, owner, "Dark")

	_, err := s.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, txErr := tx.CreateGeneratedTheme(GeneratedTheme{ThemeID: theme.ID, Version: "1", GeneratedJSON: json.RawMessage(`{}`)}); txErr != nil {
			return txErr
		}
		_, txErr := tx.UpsertThemeShare(ThemeShare{ThemeID: theme.ID, SharedBy: owner.ID, SharedWith: grantee.ID})
		return txErr
	})
	if err != nil {
		t.Fatalf("seed snapshot and share: %v", err)
	}

	_, err = s.RunInTransaction(context.Background(), func(tx Transaction) error {
		return tx.DeleteTheme(theme.ID)
	})
	if err != nil {
		t.Fatalf("delete theme: %v", err)
	}

	err = s.View(context.Background(), func(view TransactionView) error {
		if len(view.GeneratedVersionsOf(theme.ID)) != 0 {
			t.Fatalf("snapshots must cascade")
		}
		if len(view.SharesOf(theme.ID)) != 0 {
			t.Fatalf("shares must cascade")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestUpsertThemeShareIdempotentAndOwnerRejected(t *testing.T) {
	s := newTestStore(t, nil)
	owner := mustCreateUser(t, s, "owner@example.com")
	grantee := mustCreateUser(t, s, "grantee@example.com")
	theme := mustCreateTheme(t, s, owner, "Dark")

	var first, second ThemeShare
	_, err := s.RunInTransaction(context.Background(), func(tx Transaction) error {
		var txErr error
		first, txErr = tx.UpsertThemeShare(ThemeShare{ThemeID: theme.ID, SharedBy: owner.ID, SharedWith: grantee.ID})
		if txErr != nil {
			return txErr
		}
		second, txErr = tx.UpsertThemeShare(ThemeShare{ThemeID: theme.ID, SharedBy: owner.ID, SharedWith: grantee.ID})
		return txErr
	})
	if err != nil {
		t.Fatalf("upsert share: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("re-share must return the existing grant")
	}

	_, err = s.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, txErr := tx.UpsertThemeShare(ThemeShare{ThemeID: theme.ID, SharedBy: owner.ID, SharedWith: owner.ID})
		return txErr
	})
	if !domain.IsInvalidState(err) {
		t.Fatalf("expected owner-share rejection, got %v", err)
	}
}

func TestDeleteThemeShareIdempotent(t *testing.T) {
	s := newTestStore(t, nil)
	owner := mustCreateUser(t, s, "owner@example.com")
	grantee := mustCreateUser(t, s, "grantee@example.com")
	theme := mustCreateTheme(t, s, owner, "Dark")

	var removed bool
	_, err := s.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, txErr := tx.UpsertThemeShare(ThemeShare{ThemeID: theme.ID, SharedBy: owner.ID, SharedWith: grantee.ID}); txErr != nil {
			return txErr
		}
		var txErr error
		removed, txErr = tx.DeleteThemeShare(theme.ID, grantee.ID)
		return txErr
	})
	if err != nil || !removed {
		t.Fatalf("expected grant removal, removed=%v err=%v", removed, err)
	}

	_, err = s.RunInTransaction(context.Background(), func(tx Transaction) error {
		var txErr error
		removed, txErr = tx.DeleteThemeShare(theme.ID, grantee.ID)
		return txErr
	})
	if err != nil || removed {
		t.Fatalf("revoking absent grant must be a no-op, removed=%v err=%v", removed, err)
	}
}

func TestBuiltInPalettesImmutable(t *testing.T) {
	s := newTestStore(t, nil)

	var builtin ColorPalette
	_, err := s.RunInTransaction(context.Background(), func(tx Transaction) error {
		var txErr error
		builtin, txErr = tx.CreateColorPalette(ColorPalette{Name: "Ocean", Colors: json.RawMessage(`{}`), IsBuiltIn: true})
		return txErr
	})
	if err != nil {
		t.Fatalf("create builtin: %v", err)
	}

	_, err = s.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, txErr := tx.UpdateColorPalette(builtin.ID, func(p *ColorPalette) error {
			p.Name = "Renamed"
			return nil
		})
		return txErr
	})
	if !domain.IsInvalidState(err) {
		t.Fatalf("expected immutability rejection on update, got %v", err)
	}

	_, err = s.RunInTransaction(context.Background(), func(tx Transaction) error {
		return tx.DeleteColorPalette(builtin.ID)
	})
	if !domain.IsInvalidState(err) {
		t.Fatalf("expected immutability rejection on delete, got %v", err)
	}
}

func TestBuiltInPaletteMustNotHaveOwner(t *testing.T) {
	s := newTestStore(t, nil)
	u := mustCreateUser(t, s, "a@example.com")

	_, err := s.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, txErr := tx.CreateNeutralPalette(NeutralPalette{Name: "Slate", UserID: &u.ID, IsBuiltIn: true})
		return txErr
	})
	if !domain.IsInvalidState(err) {
		t.Fatalf("expected rejection of owned builtin, got %v", err)
	}
}

type blockAllRule struct{}

func (blockAllRule) Name() string { return "block_all" }

func (blockAllRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	if len(changes) == 0 {
		return domain.Result{}, nil
	}
	return domain.Result{Violations: []domain.Violation{{Rule: "block_all", Severity: domain.SeverityBlock, Message: "blocked"}}}, nil
}

func TestBlockingRuleRollsBackTransaction(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockAllRule{})
	s := newTestStore(t, engine)

	res, err := s.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, txErr := tx.CreateUser(User{Email: "a@example.com"})
		return txErr
	})
	var ruleErr domain.RuleViolationError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if !res.HasBlocking() {
		t.Fatalf("expected blocking result")
	}
	if len(s.ListUsers()) != 0 {
		t.Fatalf("blocked transaction must not mutate state")
	}
}

func TestFailedTransactionLeavesNoPartialState(t *testing.T) {
	s := newTestStore(t, nil)
	_, err := s.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, txErr := tx.CreateUser(User{Email: "a@example.com"}); txErr != nil {
			return txErr
		}
		_, txErr := tx.CreateUser(User{Email: "a@example.com"})
		return txErr
	})
	if err == nil {
		t.Fatalf("expected duplicate rejection")
	}
	if len(s.ListUsers()) != 0 {
		t.Fatalf("failed transaction must roll back all writes")
	}
}

func TestExportImportStateRoundTrip(t *testing.T) {
	s := newTestStore(t, nil)
	u := mustCreateUser(t, s, "a@example.com")
	theme := mustCreateTheme(t, s, u, "Dark")

	snapshot := s.ExportState()
	restored := NewStore(nil)
	restored.ImportState(snapshot)

	got, ok := restored.GetTheme(theme.ID)
	if !ok {
		t.Fatalf("theme missing after import")
	}
	if got.Name != "Dark" || got.UserID != u.ID {
		t.Fatalf("unexpected theme after import: %+v", got)
	}
}

func TestViewIsIsolatedFromStoreState(t *testing.T) {
	s := newTestStore(t, nil)
	u := mustCreateUser(t, s, "a@example.com")
	theme := mustCreateTheme(t, s, u, "Dark")

	err := s.View(context.Background(), func(view TransactionView) error {
		found, _ := view.FindTheme(theme.ID)
		found.ThemeData[2] = 'X'
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	got, _ := s.GetTheme(theme.ID)
	if string(got.ThemeData) != `{"radius":4}` {
		t.Fatalf("store state mutated through view: %s", got.ThemeData)
	}
}
