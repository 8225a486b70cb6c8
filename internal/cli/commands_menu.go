package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"livemenu/internal/app"
	"livemenu/internal/models"
	"livemenu/internal/pricing"
)

func newMenuCommand(deps Dependencies, flags *globalFlags) *cobra.Command {
	var section string
	cmd := &cobra.Command{
		Use:   "menu",
		Short: "Show the live menu.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys := models.SectionKeys
			if section != "" {
				key, err := models.ParseSectionKey(section)
				if err != nil {
					return err
				}
				keys = []models.SectionKey{key}
			}
			return withApp(cmd, deps, flags, func(ctx context.Context, a *app.App) error {
				snap, err := a.Menu.Snapshot(ctx)
				if err != nil {
					return err
				}
				if f := format(flags); f != formatTable {
					return writePayload(cmd.OutOrStdout(), f, snap)
				}

				t := newTable(cmd.OutOrStdout(), "SECTION", "CATEGORY", "#", "ITEM", "PRICE", "BADGES")
				for _, key := range keys {
					sec, ok := snap.Section(key)
					if !ok {
						continue
					}
					for ci, c := range sec.Categories {
						for ii, item := range c.Items {
							t.row(string(key), fmt.Sprintf("%d %s", ci, c.Title), strconv.Itoa(ii), item.Name,
								priceLabel(item), strings.Join(item.Badges(), ","))
						}
					}
				}
				return t.flush()
			})
		},
	}
	cmd.Flags().StringVar(&section, "section", "", "Only show one section: snacks, food, beverages or sides.")
	return cmd
}

func priceLabel(item models.MenuItem) string {
	switch item.PriceShape() {
	case models.ShapeSingle:
		return item.Price
	case models.ShapeHalfFull:
		return item.HalfPrice + " / " + item.FullPrice
	case models.ShapeSized:
		return strings.Join(item.Sizes, " | ")
	default:
		return "-"
	}
}

func newPlanCommand(deps Dependencies, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show the print plan: the pages an export of the live menu produces.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, deps, flags, func(ctx context.Context, a *app.App) error {
				p, err := a.Exports.Plan(ctx)
				if err != nil {
					return err
				}
				summaries := p.Summaries()
				if f := format(flags); f != formatTable {
					return writePayload(cmd.OutOrStdout(), f, summaries)
				}

				t := newTable(cmd.OutOrStdout(), "#", "KEY", "KIND", "VARIANT", "LAYOUT", "ITEMS", "CATEGORIES")
				for _, s := range summaries {
					t.row(strconv.Itoa(s.Number), s.Key, string(s.Kind), string(s.Variant), string(s.Layout),
						strconv.Itoa(s.Items), strings.Join(s.Categories, ", "))
				}
				return t.flush()
			})
		},
	}
}

func newPricesCommand(deps Dependencies, flags *globalFlags) *cobra.Command {
	prices := &cobra.Command{
		Use:   "prices",
		Short: "Bulk price operations.",
	}

	var (
		percent  float64
		section  string
		category int
	)
	adjust := &cobra.Command{
		Use:   "adjust",
		Short: "Raise or cut prices by a percentage. The current menu is archived first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope := pricing.Scope{}
			if section != "" {
				key, err := models.ParseSectionKey(section)
				if err != nil {
					return err
				}
				scope.Section = key
			}
			if cmd.Flags().Changed("category") {
				if scope.Section == "" {
					return fmt.Errorf("--category requires --section")
				}
				scope.Category = &category
			}

			return withApp(cmd, deps, flags, func(ctx context.Context, a *app.App) error {
				info, err := a.Menu.AdjustPrices(ctx, percent, scope)
				if err != nil {
					return err
				}
				return printArchiveInfo(cmd, flags, "prices adjusted", info)
			})
		},
	}
	adjust.Flags().Float64VarP(&percent, "percent", "p", 0, "Percentage change, for example 10 or -5. [required]")
	adjust.Flags().StringVar(&section, "section", "", "Limit the change to one section.")
	adjust.Flags().IntVar(&category, "category", 0, "Limit the change to one category index of --section.")
	_ = adjust.MarkFlagRequired("percent")

	prices.AddCommand(adjust)
	return prices
}

func newResetCommand(deps Dependencies, flags *globalFlags) *cobra.Command {
	var preserve bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Replace the live menu with the seed menu. The current menu is archived first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, deps, flags, func(ctx context.Context, a *app.App) error {
				info, err := a.Menu.Reset(ctx, preserve)
				if err != nil {
					return err
				}
				return printArchiveInfo(cmd, flags, "menu reset", info)
			})
		},
	}
	cmd.Flags().BoolVar(&preserve, "preserve-prices", false, "Keep current prices for items that exist in both menus.")
	return cmd
}

// newSeedCommand loads a menu from a YAML file, validating it before anything is written.
func newSeedCommand(deps Dependencies, flags *globalFlags) *cobra.Command {
	var (
		file     string
		preserve bool
		dryRun   bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the menu from a YAML seed file. The current menu is archived first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read seed file: %w", err)
			}
			snap, err := models.ParseSnapshotYAML(data)
			if err != nil {
				return fmt.Errorf("parse %s: %w", filepath.Base(file), err)
			}
			if dryRun {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d items, valid\n", file, snap.ItemCount())
				return nil
			}

			return withApp(cmd, deps, flags, func(ctx context.Context, a *app.App) error {
				a.Menu.SetSeed(func() (models.Snapshot, error) { return snap.Clone(), nil })
				info, err := a.Menu.Reset(ctx, preserve)
				if err != nil {
					return err
				}
				return printArchiveInfo(cmd, flags, fmt.Sprintf("seeded %d items", snap.ItemCount()), info)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Seed YAML file. [required]")
	cmd.Flags().BoolVar(&preserve, "preserve-prices", false, "Keep current prices for items that exist in both menus.")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only validate the file.")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newPriceListCommand(deps Dependencies, flags *globalFlags) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "pricelist",
		Short: "Write the XLSX price list of the live menu.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, deps, flags, func(ctx context.Context, a *app.App) error {
				artifact, err := a.Exports.PriceList(ctx)
				if err != nil {
					return err
				}
				path, err := writeFile(out, artifact.Name, artifact.Data)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", ".", "Output directory.")
	return cmd
}

func printArchiveInfo(cmd *cobra.Command, flags *globalFlags, action string, info models.ArchiveInfo) error {
	if f := format(flags); f != formatTable {
		return writePayload(cmd.OutOrStdout(), f, map[string]any{"archive": info})
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s; previous menu archived as %s (%s)\n", action, info.ID, info.Note)
	return nil
}

func writeFile(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
