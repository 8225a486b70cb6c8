package cli

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"livemenu/internal/app"
	"livemenu/internal/export"
	"livemenu/internal/models"
	"livemenu/internal/service"
)

type exportFlags struct {
	Kind   string
	Page   string
	All    bool
	Format string
	Promo  float64
	Out    string
}

func (f *exportFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.Kind, "kind", "k", string(export.KindDocument), "Artifact kind: image, image-set, document or print.")
	fs.StringVar(&f.Page, "page", "", "Page key for single page exports (see the plan command).")
	fs.BoolVar(&f.All, "all", false, "Export every page of the plan.")
	fs.StringVar(&f.Format, "image-format", string(export.FormatPNG), "Raster format: png or jpg.")
	fs.Float64Var(&f.Promo, "promo", 0, "Price adjustment percentage for promotional pricing (negative for a discount).")
	fs.StringVarP(&f.Out, "out", "o", ".", "Output directory.")
}

// request turns the flags into an export request. Promo is set only when given.
func (f *exportFlags) request(fs *pflag.FlagSet) (export.Request, error) {
	req := export.Request{
		Kind:   export.Kind(strings.ToLower(f.Kind)),
		Page:   f.Page,
		Format: export.Format(strings.ToLower(f.Format)),
	}
	if f.All {
		req.Mode = export.ModeAll
	}
	if fs.Changed("promo") {
		promo := f.Promo
		req.PromoPercent = &promo
	}
	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

func newExportCommand(deps Dependencies, flags *globalFlags) *cobra.Command {
	ef := &exportFlags{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render the live menu to images, a PDF document or the printer.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := ef.request(cmd.Flags())
			if err != nil {
				return err
			}
			return withApp(cmd, deps, flags, func(ctx context.Context, a *app.App) error {
				outcome, err := a.Exports.Export(ctx, req, progressPrinter(cmd, flags))
				if err != nil {
					return err
				}
				return writeOutcome(cmd, flags, ef.Out, outcome)
			})
		},
	}
	ef.register(cmd.Flags())
	return cmd
}

// progressPrinter reports pages on stderr so stdout stays machine readable.
func progressPrinter(cmd *cobra.Command, flags *globalFlags) export.ProgressFunc {
	if format(flags) != formatTable {
		return nil
	}
	return func(p export.Progress) {
		switch p.Status {
		case export.PageRendered:
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s\n", p.Position, p.Total, p.Key)
		case export.PageFailed:
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s failed: %v\n", p.Position, p.Total, p.Key, p.Err)
		}
	}
}

func writeOutcome(cmd *cobra.Command, flags *globalFlags, dir string, outcome *service.ExportOutcome) error {
	var written []string
	for _, a := range outcome.Result.Artifacts {
		p, err := writeFile(dir, a.Name, a.Data)
		if err != nil {
			return err
		}
		written = append(written, p)
	}

	if f := format(flags); f != formatTable {
		return writePayload(cmd.OutOrStdout(), f, map[string]any{
			"status": outcome.Result.Status,
			"pages":  outcome.Result.Pages,
			"files":  written,
		})
	}

	for _, p := range written {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	if outcome.Result.Printed {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "sent to printer")
	}
	if failed := outcome.Result.Failed(); len(failed) > 0 {
		keys := make([]string, 0, len(failed))
		for _, p := range failed {
			keys = append(keys, p.Key)
		}
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "partial export, skipped pages: %s\n", strings.Join(keys, ", "))
	}
	return nil
}

type remoteFlags struct {
	Server  string
	APIKey  string
	Extra   string
	Timeout time.Duration
}

func newRemoteCommand(deps Dependencies, flags *globalFlags) *cobra.Command {
	rf := &remoteFlags{}
	remote := &cobra.Command{
		Use:   "remote",
		Short: "Queue exports on a running menu API and fetch the results.",
	}
	pf := remote.PersistentFlags()
	pf.StringVar(&rf.Server, "server", envOr("MENU_API_URL", "http://localhost:8080"), "Menu API base URL.")
	pf.StringVar(&rf.APIKey, "api-key", os.Getenv("MENU_API_KEY"), "API key.")
	pf.StringVar(&rf.Extra, "api-extra", os.Getenv("MENU_API_EXTRA"), "Second half of the API key pair.")
	pf.DurationVar(&rf.Timeout, "timeout", 30*time.Second, "Per request timeout.")

	ef := &exportFlags{}
	var (
		archiveID string
		wait      bool
	)
	submit := &cobra.Command{
		Use:   "export",
		Short: "Queue an export job, optionally wait for it and download the files.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := ef.request(cmd.Flags())
			if err != nil {
				return err
			}
			c := deps.Remote(rf.Server, rf.APIKey, rf.Extra, rf.Timeout)
			defer (func() { _ = c.Close() })()

			job, err := c.EnqueueExport(cmd.Context(), req, archiveID)
			if err != nil {
				return err
			}
			if !wait {
				return printJob(cmd, flags, job)
			}

			last := ""
			job, err = c.WaitJob(cmd.Context(), job.ID, time.Second, func(j *models.ExportJob) {
				line := fmt.Sprintf("%s %s %d/%d", j.ID, j.Status, len(j.Pages), j.Total)
				if line != last && format(flags) == formatTable {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), line)
					last = line
				}
			})
			if job == nil {
				return err
			}
			for _, ref := range job.Artifacts {
				data, derr := c.Download(cmd.Context(), ref.Location)
				if derr != nil {
					return derr
				}
				p, werr := writeFile(ef.Out, path.Base(ref.Name), data)
				if werr != nil {
					return werr
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			if err != nil {
				return err
			}
			return printJob(cmd, flags, job)
		},
	}
	ef.register(submit.Flags())
	submit.Flags().StringVar(&archiveID, "archive", "", "Export this archive instead of the live menu.")
	submit.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the job and download its files.")
	remote.AddCommand(submit)

	remote.AddCommand(&cobra.Command{
		Use:   "status <job-id>",
		Short: "Show an export job with its per-page progress.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := deps.Remote(rf.Server, rf.APIKey, rf.Extra, rf.Timeout)
			defer (func() { _ = c.Close() })()
			job, err := c.Job(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJob(cmd, flags, job)
		},
	})

	return remote
}

func printJob(cmd *cobra.Command, flags *globalFlags, job *models.ExportJob) error {
	if f := format(flags); f != formatTable {
		return writePayload(cmd.OutOrStdout(), f, job)
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "job %s: %s (%s)\n", job.ID, job.Status, job.Kind)
	if job.Error != "" {
		_, _ = fmt.Fprintf(out, "error: %s\n", job.Error)
	}
	if len(job.Pages) > 0 {
		t := newTable(out, "#", "PAGE", "STATUS", "ERROR")
		for _, p := range job.Pages {
			t.row(fmt.Sprint(p.Number), p.Key, p.Status, p.Error)
		}
		if err := t.flush(); err != nil {
			return err
		}
	}
	for _, ref := range job.Artifacts {
		_, _ = fmt.Fprintf(out, "artifact %s (%d bytes)\n", ref.Location, ref.Size)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
