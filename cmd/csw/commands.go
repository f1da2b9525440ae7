package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alphagov/csw-engine/internal/config"
	"github.com/alphagov/csw-engine/internal/criteria"
	"github.com/alphagov/csw-engine/internal/dispatch"
	"github.com/alphagov/csw-engine/internal/engine"
	"github.com/alphagov/csw-engine/internal/models"
	"github.com/alphagov/csw-engine/internal/output"
	"github.com/alphagov/csw-engine/internal/providers/aws/common"
	"github.com/alphagov/csw-engine/internal/store"
	"github.com/alphagov/csw-engine/internal/version"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "csw",
		Short: "Cloud Security Watch: AWS account compliance auditing",
	}
	root.AddCommand(newAuditCmd())
	root.AddCommand(newCriteriaCmd())
	root.AddCommand(newShowCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newAuditCmd() *cobra.Command {
	var (
		profile       string
		allProfiles   bool
		regions       []string
		reportFmt     string
		outputPath    string
		configPath    string
		persist       bool
		enqueue       bool
		showCompliant bool
		verbose       bool
	)

	cmd := &cobra.Command{
		Use:           "audit",
		Short:         "Run the compliance criteria against an AWS account",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			log := newLogger(verbose)
			sessions := common.NewDefaultSessionProvider()
			runner := engine.NewAuditRunner(
				sessions,
				common.NewClientSet,
				criteria.DefaultRegistry(),
				cfg.BuildExceptionStore(),
				log,
			)
			if reportFmt != "json" {
				runner.SetProgress(printProgress)
			}

			opts := engine.Options{
				Profile:   profile,
				Regions:   regions,
				Whitelist: cfg.Audit.AllowedCIDRs,
				Disabled:  cfg.Audit.DisabledCriteria,
			}
			if opts.Profile == "" {
				opts.Profile = cfg.Audit.DefaultProfile
			}
			if len(opts.Regions) == 0 {
				opts.Regions = cfg.Audit.Regions
			}

			var reports []*models.AuditReport
			if allProfiles {
				reports, err = runner.RunAll(cmd.Context(), opts)
			} else {
				var one *models.AuditReport
				one, err = runner.Run(cmd.Context(), opts)
				reports = []*models.AuditReport{one}
			}
			if err != nil {
				return fmt.Errorf("audit failed: %w", err)
			}

			var steps []reportStep
			if persist {
				steps = append(steps, reportStep{"store", func(r *models.AuditReport) error {
					return persistReport(cmd, cfg, sessions, r)
				}})
			}
			if enqueue {
				steps = append(steps, reportStep{"dispatch", func(r *models.AuditReport) error {
					return enqueueReport(cmd, cfg, sessions, r)
				}})
			}
			if outputPath != "" {
				steps = append(steps, reportStep{"write", func(r *models.AuditReport) error {
					return writeReportToFile(outputPath, r)
				}})
			}
			steps = append(steps, reportStep{"render", func(r *models.AuditReport) error {
				if reportFmt == "json" {
					return output.WriteJSON(os.Stdout, r)
				}
				fmt.Println()
				output.RenderReport(os.Stdout, r, output.TableOptions{
					Colored:       !color.NoColor,
					ShowCompliant: showCompliant,
				})
				return nil
			}})
			return emitReports(os.Stdout, reports, steps)
		},
	}

	cmd.Flags().StringVar(&profile, "profile", "", "AWS profile name (default: uses environment / default profile)")
	cmd.Flags().BoolVar(&allProfiles, "all-profiles", false, "Audit all configured AWS profiles")
	cmd.Flags().StringSliceVar(&regions, "region", nil, "AWS region(s) to audit (default: all active regions)")
	cmd.Flags().StringVar(&reportFmt, "report", "table", "Output format: json or table")
	cmd.Flags().StringVar(&outputPath, "output", "", "Write full JSON report to this file path (in addition to stdout output)")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to the configuration file (default: ~/.config/csw/config.yaml)")
	cmd.Flags().BoolVar(&persist, "store", false, "Persist the encrypted report to the configured local store")
	cmd.Flags().BoolVar(&enqueue, "dispatch", false, "Send the report to the configured SQS queue")
	cmd.Flags().BoolVar(&showCompliant, "show-compliant", false, "Include passing resources in the detail table")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	return cmd
}

func newCriteriaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "criteria",
		Short: "List the built-in compliance criteria",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, c := range criteria.DefaultRegistry().All() {
				state := color.GreenString("active")
				if !c.Active {
					state = color.YellowString("inactive")
				}
				fmt.Printf("%-46s  %-8s  sev %d  %s\n", c.Name, state, c.Severity, c.Title)
			}
			return nil
		},
	}
}

func newShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "show [audit-id]",
		Short:         "Decrypt and print a stored audit report",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			session, err := common.NewDefaultSessionProvider().GetSession(cmd.Context(), cfg.Audit.DefaultProfile)
			if err != nil {
				return err
			}
			blobs, err := store.NewLocalBlobStore(
				cfg.Store.Dir, cfg.Store.KeyForAccount(session.AccountID), session.Clients.KMS)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				ids, err := blobs.ListAudits(cmd.Context())
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Println(id)
				}
				return nil
			}

			report, err := blobs.LoadReport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return output.WriteJSON(os.Stdout, report)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to the configuration file (default: ~/.config/csw/config.yaml)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.Info())
		},
	}
}

// reportStep is one post-audit action applied to each completed report.
type reportStep struct {
	name string
	fn   func(*models.AuditReport) error
}

// emitReports applies each step to each report in turn. A failing step is
// printed inline and recorded, but the remaining steps and the sibling
// reports still run: a store or dispatch failure loses that one unit of
// work, never the rest of a multi-account sweep. All failures are joined
// into the returned error so the command still exits non-zero.
func emitReports(w io.Writer, reports []*models.AuditReport, steps []reportStep) error {
	var errs []error
	for _, report := range reports {
		for _, step := range steps {
			if err := step.fn(report); err != nil {
				fmt.Fprintf(w, "%s %s failed for account %s: %v\n",
					color.YellowString("[ERR ]"), step.name, report.AccountID, err)
				errs = append(errs, fmt.Errorf("%s audit %q: %w", step.name, report.AuditID, err))
			}
		}
	}
	return errors.Join(errs...)
}

// printProgress prints one line per completed criterion during a table run.
func printProgress(report *models.CriterionReport) {
	switch {
	case report.Err != "":
		fmt.Printf("%s %s: %s\n", color.YellowString("[ERR ]"), report.Name, report.Err)
	case report.Summary.NonCompliant.DisplayStat > 0:
		fmt.Printf("%s %s: %d non-compliant of %d\n", color.RedString("[FAIL]"),
			report.Name, report.Summary.NonCompliant.DisplayStat, report.Summary.All.DisplayStat)
	default:
		fmt.Printf("%s %s: %d resources\n", color.GreenString("[ OK ]"),
			report.Name, report.Summary.All.DisplayStat)
	}
}

func persistReport(cmd *cobra.Command, cfg *config.Config, sessions common.SessionProvider, report *models.AuditReport) error {
	keyARN := cfg.Store.KeyForAccount(report.AccountID)
	session, err := sessions.GetSession(cmd.Context(), report.Profile)
	if err != nil {
		return fmt.Errorf("load session for store: %w", err)
	}
	blobs, err := store.NewLocalBlobStore(cfg.Store.Dir, keyARN, session.Clients.KMS)
	if err != nil {
		return err
	}
	return blobs.SaveReport(cmd.Context(), report)
}

func enqueueReport(cmd *cobra.Command, cfg *config.Config, sessions common.SessionProvider, report *models.AuditReport) error {
	session, err := sessions.GetSession(cmd.Context(), report.Profile)
	if err != nil {
		return fmt.Errorf("load session for dispatch: %w", err)
	}
	d, err := dispatch.NewDispatcher(session.Clients.SQS, cfg.Dispatch.QueueURL)
	if err != nil {
		return err
	}
	return d.Send(cmd.Context(), report)
}

// writeReportToFile serialises report as indented JSON and writes it to
// path, creating or overwriting the file. It does not affect stdout output.
func writeReportToFile(path string, report *models.AuditReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file %q: %w", path, err)
	}
	defer f.Close()
	if err := output.WriteJSON(f, report); err != nil {
		return fmt.Errorf("write report file %q: %w", path, err)
	}
	return nil
}

func newLogger(verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}
	return log
}
