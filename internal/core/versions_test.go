package core

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"themecore/internal/blob"
	"themecore/pkg/domain"
)

var renderedDoc = []byte(`{"resolved":{"radius":"8px"}}`)

func TestGenerateThemeSeedsVersionOne(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	owner := seedUser(t, svc, "owner@example.com")
	theme := seedTheme(t, svc, owner, "Dark")

	snapshot, _, err := svc.GenerateTheme(ctx, owner.ID, theme.ID, renderedDoc)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if snapshot.Version != "1" {
		t.Fatalf("first snapshot must be version 1, got %s", snapshot.Version)
	}
	if string(snapshot.GeneratedJSON) != string(renderedDoc) {
		t.Fatalf("snapshot must store the supplied document verbatim, got %s", snapshot.GeneratedJSON)
	}

	current, err := svc.GetTheme(ctx, owner.ID, theme.ID)
	if err != nil || current.Version != "1" {
		t.Fatalf("theme version label must advance, got %+v err=%v", current, err)
	}
}

func TestGenerateThemeStoresRendererOutputNotWorkingDocument(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	owner := seedUser(t, svc, "owner@example.com")
	theme := seedTheme(t, svc, owner, "Dark")

	rendered := []byte(`{"tokens":{"color-bg":"#111"}}`)
	snapshot, _, err := svc.GenerateTheme(ctx, owner.ID, theme.ID, rendered)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if string(snapshot.GeneratedJSON) == string(theme.ThemeData) {
		t.Fatalf("snapshot must not copy the working document: %s", snapshot.GeneratedJSON)
	}
	if string(snapshot.GeneratedJSON) != string(rendered) {
		t.Fatalf("snapshot altered the rendered document: %s", snapshot.GeneratedJSON)
	}
}

func TestGenerateThemeRejectsEmptyDocument(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	owner := seedUser(t, svc, "owner@example.com")
	theme := seedTheme(t, svc, owner, "Dark")

	if _, _, err := svc.GenerateTheme(ctx, owner.ID, theme.ID, nil); !domain.IsInvalidState(err) {
		t.Fatalf("expected invalid state for nil document, got %v", err)
	}
	if _, _, err := svc.GenerateTheme(ctx, owner.ID, theme.ID, []byte{}); !domain.IsInvalidState(err) {
		t.Fatalf("expected invalid state for empty document, got %v", err)
	}
	versions, err := svc.ListGeneratedThemes(ctx, owner.ID, theme.ID)
	if err != nil || len(versions) != 0 {
		t.Fatalf("rejected generation must not leave snapshots: %d err=%v", len(versions), err)
	}
}

func TestGenerateThemeIncrementsMonotonically(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	owner := seedUser(t, svc, "owner@example.com")
	theme := seedTheme(t, svc, owner, "Dark")

	for _, want := range []string{"1", "2", "3"} {
		snapshot, _, err := svc.GenerateTheme(ctx, owner.ID, theme.ID, renderedDoc)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if snapshot.Version != want {
			t.Fatalf("expected version %s, got %s", want, snapshot.Version)
		}
	}

	versions, err := svc.ListGeneratedThemes(ctx, owner.ID, theme.ID)
	if err != nil || len(versions) != 3 {
		t.Fatalf("expected 3 snapshots, got %d err=%v", len(versions), err)
	}
	for i, g := range versions {
		if g.Version != []string{"1", "2", "3"}[i] {
			t.Fatalf("snapshots out of order: %v", versions)
		}
	}
}

func TestGenerateThemeRequiresWritePermission(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	owner := seedUser(t, svc, "owner@example.com")
	grantee := seedUser(t, svc, "grantee@example.com")
	theme := seedTheme(t, svc, owner, "Dark")

	if _, _, err := svc.ShareTheme(ctx, owner.ID, theme.ID, grantee.ID); err != nil {
		t.Fatalf("share: %v", err)
	}
	if _, _, err := svc.GenerateTheme(ctx, grantee.ID, theme.ID, renderedDoc); !domain.IsPermissionDenied(err) {
		t.Fatalf("read-only grantee must not generate, got %v", err)
	}
	if _, _, err := svc.GenerateTheme(ctx, owner.ID, "missing", renderedDoc); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGenerateThemeArchivesToBlobStore(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	svc := newTestService(t, WithBlobStore(blobs))
	owner := seedUser(t, svc, "owner@example.com")
	theme := seedTheme(t, svc, owner, "Dark")

	snapshot, _, err := svc.GenerateTheme(ctx, owner.ID, theme.ID, renderedDoc)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	key := "themes/" + theme.ID + "/versions/" + snapshot.Version + ".json"
	info, rc, err := blobs.Get(ctx, key)
	if err != nil {
		t.Fatalf("archived object missing: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != string(snapshot.GeneratedJSON) {
		t.Fatalf("archive content mismatch: %s", data)
	}
	if info.Metadata["theme_id"] != theme.ID || info.Metadata["version"] != snapshot.Version {
		t.Fatalf("archive metadata mismatch: %v", info.Metadata)
	}
}

func TestGenerateThemeSurvivesArchiveFailure(t *testing.T) {
	ctx := context.Background()
	blobs := blob.NewMemory()
	svc := newTestService(t, WithBlobStore(blobs))
	owner := seedUser(t, svc, "owner@example.com")
	theme := seedTheme(t, svc, owner, "Dark")

	// Occupy the archive key so the Put fails create-only.
	key := "themes/" + theme.ID + "/versions/1.json"
	if _, err := blobs.Put(ctx, key, strings.NewReader("occupied"), blob.PutOptions{}); err != nil {
		t.Fatalf("occupy key: %v", err)
	}

	snapshot, _, err := svc.GenerateTheme(ctx, owner.ID, theme.ID, renderedDoc)
	if err != nil {
		t.Fatalf("generation must commit despite archive failure: %v", err)
	}
	if snapshot.Version != "1" {
		t.Fatalf("unexpected version %s", snapshot.Version)
	}
}

func TestGetGeneratedTheme(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	owner := seedUser(t, svc, "owner@example.com")
	stranger := seedUser(t, svc, "stranger@example.com")
	theme := seedTheme(t, svc, owner, "Dark")

	if _, _, err := svc.GenerateTheme(ctx, owner.ID, theme.ID, renderedDoc); err != nil {
		t.Fatalf("generate: %v", err)
	}
	got, err := svc.GetGeneratedTheme(ctx, owner.ID, theme.ID, "1")
	if err != nil || got.Version != "1" {
		t.Fatalf("get snapshot: %+v err=%v", got, err)
	}
	if _, err := svc.GetGeneratedTheme(ctx, owner.ID, theme.ID, "9"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found for missing version, got %v", err)
	}
	if _, err := svc.GetGeneratedTheme(ctx, stranger.ID, theme.ID, "1"); !domain.IsPermissionDenied(err) {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestLatestGeneratedTheme(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	owner := seedUser(t, svc, "owner@example.com")
	theme := seedTheme(t, svc, owner, "Dark")

	if _, err := svc.LatestGeneratedTheme(ctx, owner.ID, theme.ID); !domain.IsNotFound(err) {
		t.Fatalf("expected not found before first snapshot, got %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, _, err := svc.GenerateTheme(ctx, owner.ID, theme.ID, renderedDoc); err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
	}
	latest, err := svc.LatestGeneratedTheme(ctx, owner.ID, theme.ID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Version != "3" {
		t.Fatalf("expected version 3, got %q", latest.Version)
	}
}

func TestGeneratedSnapshotsAreImmutable(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	owner := seedUser(t, svc, "owner@example.com")
	theme := seedTheme(t, svc, owner, "Dark")

	first, _, err := svc.GenerateTheme(ctx, owner.ID, theme.ID, renderedDoc)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, _, err := svc.UpdateTheme(ctx, owner.ID, theme.ID, func(th *Theme) error {
		th.ThemeData = json.RawMessage(`{"radius":99}`)
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := svc.GetGeneratedTheme(ctx, owner.ID, theme.ID, first.Version)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if string(got.GeneratedJSON) != string(first.GeneratedJSON) {
		t.Fatalf("snapshot mutated after theme edit: %s", got.GeneratedJSON)
	}
}

func TestGeneratedThemeArtifactURL(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	owner := seedUser(t, svc, "owner@example.com")
	theme := seedTheme(t, svc, owner, "Dark")
	if _, _, err := svc.GenerateTheme(ctx, owner.ID, theme.ID, renderedDoc); err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := svc.GeneratedThemeArtifactURL(ctx, owner.ID, theme.ID, "1"); err != blob.ErrUnsupported {
		t.Fatalf("expected ErrUnsupported without blob store, got %v", err)
	}

	s3svc := newTestService(t, WithBlobStore(blob.NewMockS3ForTests()))
	o2 := seedUser(t, s3svc, "owner@example.com")
	t2 := seedTheme(t, s3svc, o2, "Dark")
	if _, _, err := s3svc.GenerateTheme(ctx, o2.ID, t2.ID, renderedDoc); err != nil {
		t.Fatalf("generate: %v", err)
	}
	url, err := s3svc.GeneratedThemeArtifactURL(ctx, o2.ID, t2.ID, "1")
	if err != nil {
		t.Fatalf("artifact url: %v", err)
	}
	if !strings.Contains(url, t2.ID) {
		t.Fatalf("unexpected artifact url %s", url)
	}
}
