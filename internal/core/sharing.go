package core

import (
	"context"

	"themecore/pkg/domain"
)

// ShareListPolicy controls who may list a theme's share grants beyond users
// holding share permission.
type ShareListPolicy int

const (
	// ShareListAnyGrantee lets any principal holding read access list grants.
	ShareListAnyGrantee ShareListPolicy = iota
	// ShareListOwnerOnly restricts listing to users with share permission.
	ShareListOwnerOnly
)

// ShareTheme grants themeID read access to granteeID on behalf of actorID,
// which must hold share permission. Re-sharing with an existing grantee is a
// no-op returning the current grant.
func (s *Service) ShareTheme(ctx context.Context, actorID, themeID, granteeID string) (ThemeShare, Result, error) {
	var share ThemeShare
	var res Result
	err := s.run(ctx, "share_theme", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if err := requireAccess(tx.Snapshot(), actorID, themeID, domain.PermissionShare); err != nil {
				return err
			}
			var txErr error
			share, txErr = tx.UpsertThemeShare(ThemeShare{
				ThemeID:    themeID,
				SharedBy:   actorID,
				SharedWith: granteeID,
			})
			return txErr
		})
		return share.ID, err
	})
	return share, res, err
}

// RevokeThemeShare removes granteeID's grant on themeID on behalf of actorID,
// which must hold share permission. Revoking an absent grant is a no-op; the
// returned bool reports whether a grant was removed.
func (s *Service) RevokeThemeShare(ctx context.Context, actorID, themeID, granteeID string) (bool, Result, error) {
	var revoked bool
	var res Result
	err := s.run(ctx, "revoke_theme_share", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if err := requireAccess(tx.Snapshot(), actorID, themeID, domain.PermissionShare); err != nil {
				return err
			}
			var txErr error
			revoked, txErr = tx.DeleteThemeShare(themeID, granteeID)
			return txErr
		})
		return themeID, err
	})
	return revoked, res, err
}

// ListThemeShares returns the grants on themeID ordered by grantee. Users
// holding share permission may always list; under ShareListAnyGrantee read
// access suffices.
func (s *Service) ListThemeShares(ctx context.Context, actorID, themeID string) ([]ThemeShare, error) {
	var out []ThemeShare
	err := s.store.View(ctx, func(view TransactionView) error {
		theme, ok := view.FindTheme(themeID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityTheme, ID: themeID}
		}
		perms := resolvePermissions(view, actorID, theme)
		allowed := perms.Has(domain.PermissionShare)
		if !allowed && s.sharePolicy == ShareListAnyGrantee {
			allowed = perms.Has(domain.PermissionRead)
		}
		if !allowed {
			return domain.PermissionDeniedError{UserID: actorID, ThemeID: themeID, Operation: "list_shares"}
		}
		out = view.SharesOf(themeID)
		return nil
	})
	return out, err
}
