// Package main runs the themecore administrative CLI.
//
// Subcommands:
//
//	seed-palettes          install the built-in color and neutral palettes
//	entitlement <org-id>   print an organization's seat entitlement as JSON
//	export                 dump the full store snapshot as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"themecore/internal/core"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "usage: themecore-admin <seed-palettes|entitlement|export> [args]")
		return 2
	}

	store, err := core.OpenPersistentStore(core.NewDefaultRulesEngine())
	if err != nil {
		fmt.Fprintf(stderr, "open store: %v\n", err)
		return 1
	}
	defer closeStore(store)

	svc := core.NewService(store)
	ctx := context.Background()

	switch args[0] {
	case "seed-palettes":
		if _, err := svc.SeedBuiltinPalettes(ctx); err != nil {
			fmt.Fprintf(stderr, "seed palettes: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, "built-in palettes seeded")
		return 0
	case "entitlement":
		if len(args) < 2 {
			fmt.Fprintln(stderr, "usage: themecore-admin entitlement <org-id>")
			return 2
		}
		ent, err := svc.ResolveEntitlement(ctx, args[1])
		if err != nil {
			fmt.Fprintf(stderr, "resolve entitlement: %v\n", err)
			return 1
		}
		return writeJSON(stdout, stderr, ent)
	case "export":
		snapshot, err := exportSnapshot(ctx, svc)
		if err != nil {
			fmt.Fprintf(stderr, "export: %v\n", err)
			return 1
		}
		return writeJSON(stdout, stderr, snapshot)
	default:
		fmt.Fprintf(stderr, "unknown subcommand %q\n", args[0])
		return 2
	}
}

type storeSnapshot struct {
	Users           any `json:"users"`
	Organizations   any `json:"organizations"`
	Members         any `json:"members"`
	Purchases       any `json:"purchases"`
	PurchaseEvents  any `json:"purchase_events"`
	Themes          any `json:"themes"`
	GeneratedThemes any `json:"generated_themes"`
	ThemeShares     any `json:"theme_shares"`
	ColorPalettes   any `json:"color_palettes"`
	NeutralPalettes any `json:"neutral_palettes"`
}

func exportSnapshot(ctx context.Context, svc *core.Service) (storeSnapshot, error) {
	var snapshot storeSnapshot
	err := svc.Store().View(ctx, func(view core.TransactionView) error {
		snapshot = storeSnapshot{
			Users:           view.ListUsers(),
			Organizations:   view.ListOrganizations(),
			Members:         view.ListOrganizationMembers(),
			Purchases:       view.ListPurchases(),
			PurchaseEvents:  view.ListPurchaseEvents(),
			Themes:          view.ListThemes(),
			GeneratedThemes: view.ListGeneratedThemes(),
			ThemeShares:     view.ListThemeShares(),
			ColorPalettes:   view.ListColorPalettes(),
			NeutralPalettes: view.ListNeutralPalettes(),
		}
		return nil
	})
	return snapshot, err
}

func writeJSON(stdout, stderr io.Writer, v any) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(stderr, "encode: %v\n", err)
		return 1
	}
	return 0
}

func closeStore(store core.PersistentStore) {
	if closer, ok := store.(io.Closer); ok {
		_ = closer.Close()
	}
}
