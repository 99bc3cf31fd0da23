package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/boamp-console/internal/app"
	"github.com/JakeFAU/boamp-console/internal/clock/system"
	"github.com/JakeFAU/boamp-console/internal/config"
	"github.com/JakeFAU/boamp-console/internal/id/uuid"
	"github.com/JakeFAU/boamp-console/internal/jobs"
	"github.com/JakeFAU/boamp-console/internal/logging"
	"github.com/JakeFAU/boamp-console/internal/results"
	"github.com/JakeFAU/boamp-console/internal/server"
	"github.com/JakeFAU/boamp-console/internal/storage"
)

type runOptions struct {
	date        string
	departments []string
	predefined  bool
	keywords    []string
	custom      []string
	saveExports bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit a job from the terminal and wait for its results",
		Example: `  boamp-console run --predefined --keyword Serrurerie --keyword 45421000
  boamp-console run --departments 13,2A --custom porte --custom "grille de défense" --save-exports`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd.Context())
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging)
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			defer func() { _ = logger.Sync() }()
			return runJob(cmd.Context(), cfg, opts, cmd.OutOrStdout(), logger)
		},
	}
	cmd.Flags().StringVar(&opts.date, "date", "", "target date (YYYY-MM-DD, default today)")
	cmd.Flags().StringSliceVar(&opts.departments, "departments", nil, "department codes, comma separated")
	cmd.Flags().BoolVar(&opts.predefined, "predefined", false, "add the predefined departments")
	cmd.Flags().StringArrayVar(&opts.keywords, "keyword", nil, "keyword to search for (repeatable)")
	cmd.Flags().StringArrayVar(&opts.custom, "custom", nil, "additional free-text keyword (repeatable)")
	cmd.Flags().BoolVar(&opts.saveExports, "save-exports", false, "save both exports to the configured destination")
	return cmd
}

func runJob(ctx context.Context, cfg *config.Config, opts runOptions, out io.Writer, logger *zap.Logger) error {
	client, err := server.NewBackendClient(cfg, logger)
	if err != nil {
		return err
	}
	console := app.New(app.Config{
		Predefined:      cfg.Selection.Predefined,
		Keywords:        cfg.Keywords,
		NotificationTTL: cfg.NotificationTTL(),
		Sender:          client,
		Poller:          server.NewPoller(cfg, client, logger),
		Clock:           system.New(time.Local),
		IDs:             uuid.New(),
		Logger:          logger,
	})
	defer console.Close()

	if opts.predefined {
		console.SelectPredefined()
	}
	for _, code := range opts.departments {
		if code = strings.TrimSpace(code); code == "" {
			continue
		}
		if _, err := console.Add(code); err != nil {
			return fmt.Errorf("département %q inconnu: %w", code, err)
		}
	}

	spinner, err := pterm.DefaultSpinner.WithWriter(out).Start("Envoi de la demande...")
	if err != nil {
		return fmt.Errorf("start spinner: %w", err)
	}

	finished := make(chan app.JobView, 1)
	unsubscribe := console.Subscribe(func(ch app.Change) {
		view, ok := ch.Payload.(app.JobView)
		if ch.Type != app.ChangeJob || !ok {
			return
		}
		spinner.UpdateText(jobLine(view))
		if view.ProcessID != "" && !view.ModalOpen {
			select {
			case finished <- view:
			default:
			}
		}
	})
	defer unsubscribe()

	sub, err := console.Submit(ctx, app.SubmitForm{
		TargetDate:     opts.date,
		Keywords:       opts.keywords,
		CustomKeywords: strings.Join(opts.custom, "\n"),
	})
	if err != nil {
		msg := submitMessage(err)
		spinner.Fail(msg)
		return errors.New(msg)
	}

	var view app.JobView
	select {
	case <-ctx.Done():
		spinner.Warning("Suivi interrompu")
		return fmt.Errorf("wait for job %s: %w", sub.ProcessID, ctx.Err())
	case view = <-finished:
	}
	if view.Error != "" {
		spinner.Fail("Erreur: " + view.Error)
		return errors.New(view.Error)
	}
	spinner.Success(view.StatusText)

	if res, ok := console.Results(); ok {
		if err := printResults(out, res); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "\nExport complet : %s\nExport résumé  : %s\n", client.DownloadURL(sub.ProcessID), client.SummaryURL(sub.ProcessID))

	if !opts.saveExports {
		return nil
	}
	return saveExports(ctx, cfg, client, sub.ProcessID, out, logger)
}

func jobLine(v app.JobView) string {
	parts := []string{v.StatusText}
	if v.StepLabel != "" {
		parts = append(parts, v.StepLabel)
	}
	if v.ProgressText != "" {
		parts = append(parts, v.ProgressText)
	}
	return strings.Join(parts, " | ")
}

func submitMessage(err error) string {
	switch {
	case errors.Is(err, jobs.ErrNoDepartments):
		return app.MsgNoDepartments
	case errors.Is(err, jobs.ErrNoKeywords):
		return app.MsgNoKeywords
	default:
		return "Erreur: " + jobs.ErrorDetail(err)
	}
}

func printResults(out io.Writer, v results.View) error {
	if err := renderTable(out, pterm.TableData{
		{results.LabelTotal, results.LabelLotsFound, results.LabelVisitMandatory},
		{strconv.Itoa(v.Stats.Total), strconv.Itoa(v.Stats.LotsFound), strconv.Itoa(v.Stats.VisitMandatory)},
	}); err != nil {
		return err
	}
	if v.Empty() {
		fmt.Fprintln(out, results.EmptyTableMessage)
		return nil
	}
	data := pterm.TableData{results.Columns}
	for _, r := range v.Rows {
		data = append(data, []string{
			r.Keywords, r.Buyer, r.Subject, r.Lots, r.Visit.Label,
			r.Department, r.DeadlineDate, linkCell(r.PDF, r.ExtractedLink),
		})
	}
	return renderTable(out, data)
}

func linkCell(pdf, extracted results.Link) string {
	cell := results.NotAvailable
	if pdf.Available() {
		cell = pdf.Href
	}
	if extracted.Available() {
		cell += "\n" + extracted.Href
	}
	return cell
}

func saveExports(ctx context.Context, cfg *config.Config, d storage.Downloader, processID string, out io.Writer, logger *zap.Logger) error {
	store, closer, err := server.NewExportStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	saved, err := storage.NewExporter(store, cfg.Exports.Prefix, logger).Save(ctx, d, processID)
	for _, s := range saved {
		fmt.Fprintf(out, "Enregistré %s -> %s\n", s.Filename, s.URI)
	}
	if err != nil {
		return fmt.Errorf("save exports: %w", err)
	}
	return nil
}
