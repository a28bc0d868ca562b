// Package main is the entry point for the academyd CLI.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/academyops/academyd/internal/app"
	"github.com/academyops/academyd/internal/config"
	"github.com/academyops/academyd/internal/jobs"
	"github.com/academyops/academyd/internal/settings"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// errJobFailed makes `run` exit non-zero after printing an error result.
var errJobFailed = errors.New("job failed")

func main() {
	if err := rootCmd().Execute(); err != nil {
		if !errors.Is(err, errJobFailed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "academyd",
		Short:         "Scheduled attendance and parent-report jobs for a tutoring academy",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.PersistentFlags().String("env-file", ".env", "dotenv file with settings seed variables")
	root.AddCommand(versionCmd(), startCmd(), runCmd(), settingsCmd(), configCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "academyd %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

// loadConfig reads the file named by --config or found in the standard
// locations. Without a file, defaults are used.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	explicit, _ := cmd.Flags().GetString("config")
	path := config.ResolvePath(explicit)

	var cfg *config.Config
	if path == "" {
		cfg = config.Default()
	} else {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildApp assembles the app. Headless builds skip the scheduler and
// gateway and log only warnings, for one-shot commands.
func buildApp(cmd *cobra.Command, headless bool) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	envFile, _ := cmd.Flags().GetString("env-file")
	seed, err := config.LoadSeed(envFile)
	if err != nil {
		return nil, err
	}

	opts := app.Options{Version: version}
	if headless {
		off := false
		cfg.Scheduler.Enabled = &off
		cfg.Gateway.Enabled = &off
		cfg.Log.File = ""
		cfg.Log.Level = "warn"
	}
	return app.Build(cmd.Context(), cfg, seed, opts)
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the scheduler and admin gateway until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd, false)
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "run <job>",
		Short:     "Run one job now and print the result",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(jobs.AutoLeave), string(jobs.DailyReport)},
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := jobs.ParseType(args[0])
			if err != nil {
				return err
			}

			a, err := buildApp(cmd, true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.WithoutCancel(cmd.Context())) }()

			req := jobs.Request{Job: job}
			req.Force, _ = cmd.Flags().GetBool("force")
			if raw, _ := cmd.Flags().GetString("now"); raw != "" {
				cfg, err := a.Settings.Get(cmd.Context())
				if err != nil {
					return err
				}
				now, err := jobs.ParseNow(raw, cfg.Location())
				if err != nil {
					return err
				}
				req.Now = &now
			}

			res := a.Runner.Run(cmd.Context(), req)
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if res.Outcome == jobs.OutcomeError {
				return errJobFailed
			}
			return nil
		},
	}
	cmd.Flags().String("now", "", "Evaluate the run at this time (RFC 3339 or 2006-01-02 15:04 in the configured timezone)")
	cmd.Flags().Bool("force", false, "Run even if the job is disabled")
	return cmd
}

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and change the stored cron settings",
	}
	cmd.AddCommand(settingsShowCmd(), settingsSetCmd(), settingsUnlockCmd())
	return cmd
}

func settingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd, true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.WithoutCancel(cmd.Context())) }()

			cfg, err := a.Settings.GetFresh(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cfg)
		},
	}
}

func settingsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change one or more settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			patch, err := patchFromFlags(cmd)
			if err != nil {
				return err
			}
			if patch.Empty() {
				return errors.New("no settings flags given")
			}

			a, err := buildApp(cmd, true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.WithoutCancel(cmd.Context())) }()

			actor, _ := cmd.Flags().GetString("actor")
			cfg, err := a.Settings.Update(cmd.Context(), patch, actor)
			if err != nil {
				return err
			}
			a.Audit.SettingsUpdated(actor, patch.Fields())
			return printJSON(cmd.OutOrStdout(), cfg)
		},
	}
	f := cmd.Flags()
	f.Bool("auto-leave-enabled", false, "Enable the auto-leave job")
	f.String("auto-leave-cron", "", "Auto-leave schedule (5 or 6 field cron expression)")
	f.Bool("auto-report-enabled", false, "Enable the daily report job")
	f.String("auto-report-cron", "", "Daily report schedule")
	f.Bool("dry-run", true, "Preview only, never change data or send messages")
	f.String("timezone", "", "IANA timezone for schedules and run keys")
	f.Int("rate-limit", 0, "Maximum records per run")
	f.String("actor", "cli", "Name recorded as updatedBy")
	return cmd
}

// patchFromFlags builds a patch from the flags the user actually set.
func patchFromFlags(cmd *cobra.Command) (settings.Patch, error) {
	var p settings.Patch
	f := cmd.Flags()

	boolFlag := func(name string) (*bool, error) {
		if !f.Changed(name) {
			return nil, nil
		}
		v, err := f.GetBool(name)
		return &v, err
	}
	stringFlag := func(name string) (*string, error) {
		if !f.Changed(name) {
			return nil, nil
		}
		v, err := f.GetString(name)
		return &v, err
	}

	var errs []error
	var err error
	p.AutoLeaveEnabled, err = boolFlag("auto-leave-enabled")
	errs = append(errs, err)
	p.AutoLeaveCron, err = stringFlag("auto-leave-cron")
	errs = append(errs, err)
	p.AutoReportEnabled, err = boolFlag("auto-report-enabled")
	errs = append(errs, err)
	p.AutoReportCron, err = stringFlag("auto-report-cron")
	errs = append(errs, err)
	p.DryRun, err = boolFlag("dry-run")
	errs = append(errs, err)
	p.Timezone, err = stringFlag("timezone")
	errs = append(errs, err)
	if f.Changed("rate-limit") {
		v, err := f.GetInt("rate-limit")
		errs = append(errs, err)
		p.RateLimitPerRun = &v
	}
	return p, errors.Join(errs...)
}

func settingsUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Clear the job lock regardless of holder",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd, true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.WithoutCancel(cmd.Context())) }()

			prev, err := a.Locks.ForceRelease(cmd.Context())
			if err != nil {
				return err
			}
			a.Audit.LockReleaseForced("cli", prev.Owner)
			if !prev.Held {
				fmt.Fprintln(cmd.OutOrStdout(), "lock was not held")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "released lock held by %s\n", prev.Owner)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK\n")
			fmt.Fprintf(out, "  store:     %s\n", cfg.Store.Backend)
			fmt.Fprintf(out, "  scheduler: %t\n", cfg.Scheduler.IsEnabled())
			fmt.Fprintf(out, "  gateway:   %s (admin API: %t)\n", cfg.Gateway.Bind, cfg.Gateway.Auth.IsConfigured())
			fmt.Fprintf(out, "  notifier:  %s\n", cfg.Academy.Notifier.Kind)
			return nil
		},
	})
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
