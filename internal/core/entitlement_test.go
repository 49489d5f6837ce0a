package core

import (
	"context"
	"testing"

	"themecore/pkg/domain"
)

func TestAddMemberConsumesSeats(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	org := seedOrg(t, svc, "org_1", 2)
	a := seedUser(t, svc, "a@example.com")
	b := seedUser(t, svc, "b@example.com")
	c := seedUser(t, svc, "c@example.com")

	if _, _, err := svc.AddOrganizationMember(ctx, org.ID, a.ID, domain.RoleAdmin); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if _, _, err := svc.AddOrganizationMember(ctx, org.ID, b.ID, domain.RoleMember); err != nil {
		t.Fatalf("add b: %v", err)
	}
	if _, _, err := svc.AddOrganizationMember(ctx, org.ID, c.ID, domain.RoleMember); !domain.IsCapacityExceeded(err) {
		t.Fatalf("expected capacity exceeded, got %v", err)
	}

	ent, err := svc.ResolveEntitlement(ctx, org.ID)
	if err != nil {
		t.Fatalf("entitlement: %v", err)
	}
	if ent.Seats != 2 || ent.Used != 2 || ent.Remaining != 0 {
		t.Fatalf("unexpected entitlement: %+v", ent)
	}
}

func TestAddMemberIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	org := seedOrg(t, svc, "org_1", 1)
	a := seedUser(t, svc, "a@example.com")

	first, _, err := svc.AddOrganizationMember(ctx, org.ID, a.ID, domain.RoleMember)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	second, _, err := svc.AddOrganizationMember(ctx, org.ID, a.ID, domain.RoleAdmin)
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if second.ID != first.ID || second.Role != domain.RoleMember {
		t.Fatalf("re-add must return existing row unchanged, got %+v", second)
	}

	ent, err := svc.ResolveEntitlement(ctx, org.ID)
	if err != nil || ent.Used != 1 {
		t.Fatalf("expected single seat used, got %+v err=%v", ent, err)
	}
}

func TestRemoveMemberIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	org := seedOrg(t, svc, "org_1", 1)
	a := seedUser(t, svc, "a@example.com")

	if _, _, err := svc.AddOrganizationMember(ctx, org.ID, a.ID, domain.RoleMember); err != nil {
		t.Fatalf("add: %v", err)
	}
	removed, _, err := svc.RemoveOrganizationMember(ctx, org.ID, a.ID)
	if err != nil || !removed {
		t.Fatalf("expected removal, removed=%v err=%v", removed, err)
	}
	removed, _, err = svc.RemoveOrganizationMember(ctx, org.ID, a.ID)
	if err != nil || removed {
		t.Fatalf("second removal must be a no-op, removed=%v err=%v", removed, err)
	}
}

func TestSeatReductionBelowUsageRollsBack(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	org := seedOrg(t, svc, "org_1", 3)
	a := seedUser(t, svc, "a@example.com")
	b := seedUser(t, svc, "b@example.com")

	if _, _, err := svc.AddOrganizationMember(ctx, org.ID, a.ID, domain.RoleMember); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if _, _, err := svc.AddOrganizationMember(ctx, org.ID, b.ID, domain.RoleMember); err != nil {
		t.Fatalf("add b: %v", err)
	}

	_, res, err := svc.SetOrganizationSeats(ctx, org.ID, 1)
	if err == nil {
		t.Fatalf("expected seat capacity rule to reject reduction")
	}
	if !res.HasBlocking() {
		t.Fatalf("expected blocking violation, got %+v", res)
	}

	current, err := svc.GetOrganization(ctx, org.ID)
	if err != nil || current.Seats != 3 {
		t.Fatalf("seats must be unchanged after rollback, got %+v err=%v", current, err)
	}

	if _, _, err := svc.SetOrganizationSeats(ctx, org.ID, 10); err != nil {
		t.Fatalf("raising seats must succeed: %v", err)
	}
}

func TestListOrganizationMembers(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	org := seedOrg(t, svc, "org_1", 5)
	a := seedUser(t, svc, "a@example.com")
	b := seedUser(t, svc, "b@example.com")

	if _, _, err := svc.AddOrganizationMember(ctx, org.ID, a.ID, domain.RoleAdmin); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if _, _, err := svc.AddOrganizationMember(ctx, org.ID, b.ID, domain.RoleMember); err != nil {
		t.Fatalf("add b: %v", err)
	}

	members, err := svc.ListOrganizationMembers(ctx, org.ID)
	if err != nil || len(members) != 2 {
		t.Fatalf("expected 2 members, got %d err=%v", len(members), err)
	}
	if _, err := svc.ListOrganizationMembers(ctx, "missing"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolveEntitlementMissingOrganization(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.ResolveEntitlement(context.Background(), "missing"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolveUserEntitlement(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	user := seedUser(t, svc, "solo@example.com")

	ent, err := svc.ResolveUserEntitlement(ctx, user.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ent.UserID != user.ID || ent.Plan != domain.PlanPro || ent.SeatsOwned != 1 {
		t.Fatalf("unexpected entitlement: %+v", ent)
	}
	if _, err := svc.ResolveUserEntitlement(ctx, "missing"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCanAddMemberTracksRemainingSeats(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	org := seedOrg(t, svc, "org_1", 1)
	member := seedUser(t, svc, "m@example.com")

	ok, err := svc.CanAddMember(ctx, org.ID)
	if err != nil || !ok {
		t.Fatalf("expected free seat, got ok=%v err=%v", ok, err)
	}
	if _, _, err := svc.AddOrganizationMember(ctx, org.ID, member.ID, domain.RoleMember); err != nil {
		t.Fatalf("add member: %v", err)
	}
	ok, err = svc.CanAddMember(ctx, org.ID)
	if err != nil || ok {
		t.Fatalf("expected no free seat, got ok=%v err=%v", ok, err)
	}
	if _, err := svc.CanAddMember(ctx, "missing"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
