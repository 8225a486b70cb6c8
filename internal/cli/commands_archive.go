package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"livemenu/internal/app"
	"livemenu/internal/export"
)

func newArchiveCommand(deps Dependencies, flags *globalFlags) *cobra.Command {
	archive := &cobra.Command{
		Use:   "archive",
		Short: "List, create, restore and export menu archives.",
	}

	archive.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List archives, newest first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, deps, flags, func(ctx context.Context, a *app.App) error {
				archives, err := a.Menu.ListArchives(ctx)
				if err != nil {
					return err
				}
				if f := format(flags); f != formatTable {
					return writePayload(cmd.OutOrStdout(), f, archives)
				}
				t := newTable(cmd.OutOrStdout(), "ID", "ARCHIVED", "ITEMS", "NOTE")
				for _, info := range archives {
					t.row(info.ID, info.ArchivedAt.Local().Format(time.DateTime), strconv.Itoa(info.Items), info.Note)
				}
				return t.flush()
			})
		},
	})

	var note string
	create := &cobra.Command{
		Use:   "create",
		Short: "Archive the live menu.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, deps, flags, func(ctx context.Context, a *app.App) error {
				info, err := a.Menu.Archive(ctx, note)
				if err != nil {
					return err
				}
				if f := format(flags); f != formatTable {
					return writePayload(cmd.OutOrStdout(), f, info)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "archived %d items as %s\n", info.Items, info.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&note, "note", "", "Archive note.")
	archive.AddCommand(create)

	archive.AddCommand(&cobra.Command{
		Use:   "restore <id>",
		Short: "Make an archived menu live again. The current menu is archived first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, deps, flags, func(ctx context.Context, a *app.App) error {
				info, err := a.Menu.Restore(ctx, args[0])
				if err != nil {
					return err
				}
				return printArchiveInfo(cmd, flags, "restored "+args[0], info)
			})
		},
	})

	var out string
	exportCmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Render an archived menu as a PDF document.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, deps, flags, func(ctx context.Context, a *app.App) error {
				outcome, err := a.Exports.ExportArchive(ctx, args[0], export.Request{Kind: export.KindDocument}, progressPrinter(cmd, flags))
				if err != nil {
					return err
				}
				return writeOutcome(cmd, flags, out, outcome)
			})
		},
	}
	exportCmd.Flags().StringVarP(&out, "out", "o", ".", "Output directory.")
	archive.AddCommand(exportCmd)

	return archive
}
