package core

import (
	"context"

	"themecore/pkg/domain"
)

// resolvePermissions computes the permission set actorID holds on theme by
// taking the union over every applicable source. Owners hold everything;
// nothing else grants share or delete.
func resolvePermissions(view TransactionView, actorID string, theme Theme) PermissionSet {
	if theme.UserID == actorID {
		return domain.FullPermissions()
	}
	perms := domain.NewPermissionSet()
	if theme.Visibility == domain.VisibilityPublic {
		perms.Grant(domain.PermissionRead)
	}
	if theme.Visibility == domain.VisibilityOrganization && theme.OrganizationID != nil {
		if member, ok := view.FindOrganizationMember(*theme.OrganizationID, actorID); ok {
			perms.Grant(domain.PermissionRead)
			if member.Role == domain.RoleAdmin {
				perms.Grant(domain.PermissionWrite)
			}
		}
	}
	if _, ok := view.FindThemeShare(theme.ID, actorID); ok {
		perms.Grant(domain.PermissionRead)
	}
	return perms
}

// requireAccess returns nil when actorID holds perm on the theme, a not-found
// error when the theme does not exist, and a permission error otherwise.
func requireAccess(view TransactionView, actorID, themeID string, perm Permission) error {
	theme, ok := view.FindTheme(themeID)
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityTheme, ID: themeID}
	}
	if !resolvePermissions(view, actorID, theme).Has(perm) {
		return domain.PermissionDeniedError{UserID: actorID, ThemeID: themeID, Operation: perm}
	}
	return nil
}

// ResolveAccess reports the permission set actorID holds on the theme.
func (s *Service) ResolveAccess(ctx context.Context, actorID, themeID string) (PermissionSet, error) {
	var perms PermissionSet
	err := s.store.View(ctx, func(view TransactionView) error {
		theme, ok := view.FindTheme(themeID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityTheme, ID: themeID}
		}
		perms = resolvePermissions(view, actorID, theme)
		return nil
	})
	return perms, err
}

// RequireAccess returns an error unless actorID holds perm on the theme.
func (s *Service) RequireAccess(ctx context.Context, actorID, themeID string, perm Permission) error {
	return s.store.View(ctx, func(view TransactionView) error {
		return requireAccess(view, actorID, themeID, perm)
	})
}
