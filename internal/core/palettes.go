package core

import (
	"context"
	"encoding/json"
)

// CreateColorPalette persists a user-owned color palette.
func (s *Service) CreateColorPalette(ctx context.Context, palette ColorPalette) (ColorPalette, Result, error) {
	var created ColorPalette
	var res Result
	err := s.run(ctx, "create_color_palette", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			created, txErr = tx.CreateColorPalette(palette)
			return txErr
		})
		return created.ID, err
	})
	return created, res, err
}

// UpdateColorPalette mutates a user-owned color palette.
func (s *Service) UpdateColorPalette(ctx context.Context, id string, mutator func(*ColorPalette) error) (ColorPalette, Result, error) {
	var updated ColorPalette
	var res Result
	err := s.run(ctx, "update_color_palette", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.UpdateColorPalette(id, mutator)
			return txErr
		})
		return id, err
	})
	return updated, res, err
}

// DeleteColorPalette removes a user-owned color palette.
func (s *Service) DeleteColorPalette(ctx context.Context, id string) (Result, error) {
	var res Result
	err := s.run(ctx, "delete_color_palette", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteColorPalette(id)
		})
		return id, err
	})
	return res, err
}

// CreateNeutralPalette persists a user-owned neutral palette.
func (s *Service) CreateNeutralPalette(ctx context.Context, palette NeutralPalette) (NeutralPalette, Result, error) {
	var created NeutralPalette
	var res Result
	err := s.run(ctx, "create_neutral_palette", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			created, txErr = tx.CreateNeutralPalette(palette)
			return txErr
		})
		return created.ID, err
	})
	return created, res, err
}

// UpdateNeutralPalette mutates a user-owned neutral palette.
func (s *Service) UpdateNeutralPalette(ctx context.Context, id string, mutator func(*NeutralPalette) error) (NeutralPalette, Result, error) {
	var updated NeutralPalette
	var res Result
	err := s.run(ctx, "update_neutral_palette", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var txErr error
			updated, txErr = tx.UpdateNeutralPalette(id, mutator)
			return txErr
		})
		return id, err
	})
	return updated, res, err
}

// DeleteNeutralPalette removes a user-owned neutral palette.
func (s *Service) DeleteNeutralPalette(ctx context.Context, id string) (Result, error) {
	var res Result
	err := s.run(ctx, "delete_neutral_palette", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			return tx.DeleteNeutralPalette(id)
		})
		return id, err
	})
	return res, err
}

// ListColorPalettes returns the palettes visible to userID: built-ins plus
// the user's own.
func (s *Service) ListColorPalettes(ctx context.Context, userID string) ([]ColorPalette, error) {
	var out []ColorPalette
	err := s.store.View(ctx, func(view TransactionView) error {
		for _, p := range view.ListColorPalettes() {
			if p.IsBuiltIn || (p.UserID != nil && *p.UserID == userID) {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

// ListNeutralPalettes returns the palettes visible to userID: built-ins plus
// the user's own.
func (s *Service) ListNeutralPalettes(ctx context.Context, userID string) ([]NeutralPalette, error) {
	var out []NeutralPalette
	err := s.store.View(ctx, func(view TransactionView) error {
		for _, p := range view.ListNeutralPalettes() {
			if p.IsBuiltIn || (p.UserID != nil && *p.UserID == userID) {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

type builtinPalette struct {
	name   string
	colors string
}

var builtinColorPalettes = []builtinPalette{
	{name: "Ocean", colors: `{"primary":"#0ea5e9","secondary":"#0369a1","accent":"#38bdf8"}`},
	{name: "Forest", colors: `{"primary":"#16a34a","secondary":"#14532d","accent":"#4ade80"}`},
	{name: "Sunset", colors: `{"primary":"#f97316","secondary":"#9a3412","accent":"#fdba74"}`},
	{name: "Berry", colors: `{"primary":"#a21caf","secondary":"#701a75","accent":"#e879f9"}`},
}

var builtinNeutralPalettes = []builtinPalette{
	{name: "Slate", colors: `{"50":"#f8fafc","500":"#64748b","900":"#0f172a"}`},
	{name: "Stone", colors: `{"50":"#fafaf9","500":"#78716c","900":"#1c1917"}`},
	{name: "Zinc", colors: `{"50":"#fafafa","500":"#71717a","900":"#18181b"}`},
}

// SeedBuiltinPalettes installs the built-in palette catalog. Seeding is
// idempotent; palettes already present by name are left alone.
func (s *Service) SeedBuiltinPalettes(ctx context.Context) (Result, error) {
	var res Result
	err := s.run(ctx, "seed_builtin_palettes", func(ctx context.Context) (string, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			view := tx.Snapshot()
			haveColor := make(map[string]bool)
			for _, p := range view.ListColorPalettes() {
				if p.IsBuiltIn {
					haveColor[p.Name] = true
				}
			}
			haveNeutral := make(map[string]bool)
			for _, p := range view.ListNeutralPalettes() {
				if p.IsBuiltIn {
					haveNeutral[p.Name] = true
				}
			}
			for _, b := range builtinColorPalettes {
				if haveColor[b.name] {
					continue
				}
				if _, err := tx.CreateColorPalette(ColorPalette{
					Name:      b.name,
					Colors:    json.RawMessage(b.colors),
					IsBuiltIn: true,
				}); err != nil {
					return err
				}
			}
			for _, b := range builtinNeutralPalettes {
				if haveNeutral[b.name] {
					continue
				}
				if _, err := tx.CreateNeutralPalette(NeutralPalette{
					Name:      b.name,
					Colors:    json.RawMessage(b.colors),
					IsBuiltIn: true,
				}); err != nil {
					return err
				}
			}
			return nil
		})
		return "", err
	})
	return res, err
}
