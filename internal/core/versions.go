package core

import (
	"bytes"
	"context"
	"fmt"

	"themecore/internal/blob"
	"themecore/pkg/domain"
)

// generateAttempts bounds retries when a concurrent writer claims the
// computed version tag first.
const generateAttempts = 3

// GenerateTheme stores renderedJSON, the rendering engine's output for the
// theme, as an immutable snapshot on behalf of actorID, which must hold write
// permission. The document is stored verbatim; the core never renders. The
// snapshot receives the next version tag ("1" for the first snapshot) and the
// theme's version label is advanced to match. Tag collisions with concurrent
// generators are retried with a recomputed tag.
func (s *Service) GenerateTheme(ctx context.Context, actorID, themeID string, renderedJSON []byte) (GeneratedTheme, Result, error) {
	var snapshot GeneratedTheme
	var res Result
	err := s.run(ctx, "generate_theme", func(ctx context.Context) (string, error) {
		if len(renderedJSON) == 0 {
			return themeID, domain.InvalidStateError{Entity: domain.EntityGeneratedTheme, ID: themeID, Reason: "rendered document is empty"}
		}
		var err error
		for attempt := 0; attempt < generateAttempts; attempt++ {
			snapshot, res, err = s.generateOnce(ctx, actorID, themeID, renderedJSON)
			if err == nil || !domain.IsVersionConflict(err) {
				break
			}
		}
		if err != nil {
			return themeID, err
		}
		s.archiveSnapshot(ctx, snapshot)
		return snapshot.ID, nil
	})
	return snapshot, res, err
}

func (s *Service) generateOnce(ctx context.Context, actorID, themeID string, renderedJSON []byte) (GeneratedTheme, Result, error) {
	var snapshot GeneratedTheme
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		view := tx.Snapshot()
		if err := requireAccess(view, actorID, themeID, domain.PermissionWrite); err != nil {
			return err
		}
		tag := domain.NextVersionTag(view.GeneratedVersionsOf(themeID))
		var txErr error
		snapshot, txErr = tx.CreateGeneratedTheme(GeneratedTheme{
			ThemeID:       themeID,
			GeneratedJSON: renderedJSON,
			Version:       tag,
		})
		if txErr != nil {
			return txErr
		}
		_, txErr = tx.UpdateTheme(themeID, func(t *Theme) error {
			t.Version = tag
			return nil
		})
		return txErr
	})
	return snapshot, res, err
}

// archiveSnapshot writes the rendered document to the blob store. Archival is
// best effort; the committed snapshot is authoritative.
func (s *Service) archiveSnapshot(ctx context.Context, snapshot GeneratedTheme) {
	if s.blobs == nil {
		return
	}
	key := snapshotKey(snapshot.ThemeID, snapshot.Version)
	_, err := s.blobs.Put(ctx, key, bytes.NewReader(snapshot.GeneratedJSON), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"theme_id": snapshot.ThemeID, "version": snapshot.Version},
	})
	if err != nil {
		s.logger.Warn("snapshot archive failed", "theme_id", snapshot.ThemeID, "version", snapshot.Version, "error", err)
	}
}

func snapshotKey(themeID, version string) string {
	return fmt.Sprintf("themes/%s/versions/%s.json", themeID, version)
}

// GetGeneratedTheme retrieves one snapshot by theme and version tag on behalf
// of actorID, which must hold read permission.
func (s *Service) GetGeneratedTheme(ctx context.Context, actorID, themeID, version string) (GeneratedTheme, error) {
	var snapshot GeneratedTheme
	err := s.store.View(ctx, func(view TransactionView) error {
		if err := requireAccess(view, actorID, themeID, domain.PermissionRead); err != nil {
			return err
		}
		g, ok := view.FindGeneratedTheme(themeID, version)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityGeneratedTheme, ID: themeID + "@" + version}
		}
		snapshot = g
		return nil
	})
	return snapshot, err
}

// LatestGeneratedTheme returns the newest snapshot of a theme on behalf of
// actorID, which must hold read permission.
func (s *Service) LatestGeneratedTheme(ctx context.Context, actorID, themeID string) (GeneratedTheme, error) {
	var snapshot GeneratedTheme
	err := s.store.View(ctx, func(view TransactionView) error {
		if err := requireAccess(view, actorID, themeID, domain.PermissionRead); err != nil {
			return err
		}
		versions := view.GeneratedVersionsOf(themeID)
		if len(versions) == 0 {
			return domain.NotFoundError{Entity: domain.EntityGeneratedTheme, ID: themeID}
		}
		snapshot = versions[len(versions)-1]
		return nil
	})
	return snapshot, err
}

// ListGeneratedThemes returns a theme's snapshots in ascending version order
// on behalf of actorID, which must hold read permission.
func (s *Service) ListGeneratedThemes(ctx context.Context, actorID, themeID string) ([]GeneratedTheme, error) {
	var out []GeneratedTheme
	err := s.store.View(ctx, func(view TransactionView) error {
		if err := requireAccess(view, actorID, themeID, domain.PermissionRead); err != nil {
			return err
		}
		out = view.GeneratedVersionsOf(themeID)
		return nil
	})
	return out, err
}

// GeneratedThemeArtifactURL returns a time-limited URL for the archived
// rendered document of one snapshot. Requires read permission and a
// configured blob store.
func (s *Service) GeneratedThemeArtifactURL(ctx context.Context, actorID, themeID, version string) (string, error) {
	if s.blobs == nil {
		return "", blob.ErrUnsupported
	}
	if _, err := s.GetGeneratedTheme(ctx, actorID, themeID, version); err != nil {
		return "", err
	}
	return s.blobs.PresignURL(ctx, snapshotKey(themeID, version), blob.SignedURLOptions{})
}
