package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/harrisonrobin/twsync/pkg/auth"
	"github.com/harrisonrobin/twsync/pkg/config"
	"github.com/harrisonrobin/twsync/pkg/google"
	"github.com/harrisonrobin/twsync/pkg/index"
	"github.com/harrisonrobin/twsync/pkg/reconcile"
	"github.com/harrisonrobin/twsync/pkg/store"
	"github.com/harrisonrobin/twsync/pkg/taskwarrior"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var errParseFailures = errors.New("some tasks could not be parsed")

type app struct {
	configPath string
	dataDir    string
	logLevel   string

	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "twsync",
		Short:         "Sync TaskWarrior tasks without losing attributes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ~/.config/twsync/config.yaml)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "directory holding the local task store")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		a.importCmd(),
		a.exportCmd(),
		a.pullCmd(),
		a.pushCmd(),
		a.addCmd(),
		a.hookCmd(),
		a.calendarCmd(),
		a.authCmd(),
		a.setCalendarCmd(),
		a.watchCmd(),
	)
	return root
}

func (a *app) init(stderr io.Writer) error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if a.dataDir != "" {
		a.cfg.DataDir = a.dataDir
	}
	if a.logLevel != "" {
		a.cfg.LogLevel = a.logLevel
	}

	level, err := zerolog.ParseLevel(a.cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", a.cfg.LogLevel, err)
	}
	a.log = zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
	return nil
}

// updateConfig edits the config file itself, so flag overrides and defaults
// held in a.cfg are not persisted.
func (a *app) updateConfig(fn func(*config.Config)) error {
	fn(a.cfg)
	if a.configPath != "" {
		return config.UpdateFile(a.configPath, fn)
	}
	return config.Update(fn)
}

// apply merges a batch into the local store and saves it.
func (a *app) apply(batch *taskwarrior.Batch, metrics *reconcile.Metrics) (*reconcile.Report, error) {
	s, err := store.Open(a.cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("error opening store: %w", err)
	}
	rep := reconcile.New(s, a.log, metrics).Apply(batch)
	if err := s.Save(); err != nil {
		return nil, fmt.Errorf("error saving store: %w", err)
	}
	return rep, nil
}

func (a *app) pull(ctx context.Context, filter []string, metrics *reconcile.Metrics) (*reconcile.Report, error) {
	batch, err := taskwarrior.NewClient(a.cfg.TaskCommand).Export(ctx, filter...)
	if err != nil {
		return nil, err
	}
	return a.apply(batch, metrics)
}

func printReport(w io.Writer, rep *reconcile.Report) {
	fmt.Fprintf(w, "added %d, updated %d, unchanged %d, kept local %d, failed %d\n",
		len(rep.Added), len(rep.Updated), len(rep.Unchanged), len(rep.KeptLocal), len(rep.Failed))
	for _, se := range rep.Failed {
		fmt.Fprintf(w, "  %v\n", se)
	}
}

func reportErr(rep *reconcile.Report, strict bool) error {
	if strict && len(rep.Failed) > 0 {
		return fmt.Errorf("%w: %d", errParseFailures, len(rep.Failed))
	}
	return nil
}

func (a *app) importCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Merge task export JSON from a file or stdin into the local store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			batch, err := taskwarrior.ParseBatch(in)
			if err != nil {
				return err
			}
			rep, err := a.apply(batch, nil)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), rep)
			return reportErr(rep, strict)
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when a task fails to parse")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the local store as task export JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := store.Open(a.cfg.DataDir)
			if err != nil {
				return err
			}
			return taskwarrior.WriteBatch(cmd.OutOrStdout(), s.All())
		},
	}
}

func (a *app) pullCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "pull [filter...]",
		Short: "Run task export and merge the result into the local store",
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := a.pull(cmd.Context(), args, nil)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), rep)
			return reportErr(rep, strict)
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when a task fails to parse")
	return cmd
}

func (a *app) pushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Send the local store to task import",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := store.Open(a.cfg.DataDir)
			if err != nil {
				return err
			}
			tasks := s.All()
			if err := taskwarrior.NewClient(a.cfg.TaskCommand).Import(cmd.Context(), tasks); err != nil {
				return err
			}
			a.log.Info().Int("tasks", len(tasks)).Msg("pushed local store")
			return nil
		},
	}
}

func (a *app) addCmd() *cobra.Command {
	var (
		project string
		tags    []string
		due     string
	)
	cmd := &cobra.Command{
		Use:   "add <description...>",
		Short: "Create a task in the local store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := store.NewLocalTask(strings.Join(args, " "), time.Now())
			t.Project = project
			t.AddTags(tags...)
			if due != "" {
				at, err := taskwarrior.ParseDate(due)
				if err != nil {
					return err
				}
				t.Due = &at
			}

			s, err := store.Open(a.cfg.DataDir)
			if err != nil {
				return err
			}
			s.Put(t)
			if err := s.Save(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.UUID)
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project name")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().StringVar(&due, "due", "", "due date as YYYYMMDDTHHMMSSZ")
	return cmd
}

// hookCmd implements the on-add/on-modify hook protocol: one or two task lines
// on stdin, the final task echoed on stdout.
func (a *app) hookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hook",
		Short: "TaskWarrior on-add/on-modify hook that mirrors tasks into the local store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			batch, err := taskwarrior.ParseBatch(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if len(batch.Errors) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "twsync: %v\n", batch.Errors[0])
				return batch.Errors[0]
			}
			if len(batch.Tasks) == 0 {
				return nil
			}

			final := batch.Tasks[len(batch.Tasks)-1]
			out, err := taskwarrior.Encode(final)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", out)

			if _, err := a.apply(&taskwarrior.Batch{Tasks: []*taskwarrior.Task{final}}, nil); err != nil {
				a.log.Warn().Err(err).Str("uuid", final.UUID).Msg("could not mirror task")
			}
			return nil
		},
	}
}

func (a *app) calendarCmd() *cobra.Command {
	var calendarName string
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Push tasks with a due date from the local store to Google Calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if calendarName == "" {
				calendarName = a.cfg.Calendar
			}
			configDir, err := config.Dir()
			if err != nil {
				return err
			}
			s, err := store.Open(a.cfg.DataDir)
			if err != nil {
				return err
			}
			idx, err := index.Open(a.cfg.DataDir)
			if err != nil {
				a.log.Warn().Err(err).Msg("failed to open event index")
				idx = nil
			}
			gClient, err := google.NewClient(ctx, configDir, calendarName, idx)
			if err != nil {
				return err
			}

			counts := map[google.Action]int{}
			for _, t := range s.All() {
				action, err := gClient.SyncTask(ctx, t)
				if err != nil {
					a.log.Error().Err(err).Str("uuid", t.UUID).Msg("error syncing event")
					continue
				}
				counts[action]++
			}
			if idx != nil {
				if err := idx.Save(); err != nil {
					a.log.Warn().Err(err).Msg("failed to save event index")
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d, patched %d, kept %d, deleted %d\n",
				counts[google.Created], counts[google.Patched], counts[google.Kept], counts[google.Deleted])
			return nil
		},
	}
	cmd.Flags().StringVar(&calendarName, "calendar", "", "Google Calendar name (overrides config)")
	return cmd
}

func (a *app) authCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with Google Calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, err := config.Dir()
			if err != nil {
				return fmt.Errorf("could not find path to configuration file: %w", err)
			}
			if err := auth.ResetToken(configDir); err != nil {
				return fmt.Errorf("could not delete token file, please delete it manually: %w", err)
			}
			if _, err := auth.GetClient(cmd.Context(), configDir, google.Scopes); err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
			a.log.Info().Str("dir", configDir).Msg("authentication successful")
			return nil
		},
	}
}

func (a *app) setCalendarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-calendar <name>",
		Short: "Set the default Google Calendar name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.updateConfig(func(c *config.Config) { c.Calendar = args[0] })
			if err != nil {
				return fmt.Errorf("error saving config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default calendar set to: %s\n", args[0])
			return nil
		},
	}
}

func (a *app) watchCmd() *cobra.Command {
	var schedule, metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch [filter...]",
		Short: "Pull from TaskWarrior on a cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if schedule == "" {
				schedule = a.cfg.Schedule
			}
			if metricsAddr == "" {
				metricsAddr = a.cfg.MetricsAddr
			}

			reg := prometheus.NewRegistry()
			metrics := reconcile.NewMetrics(reg)
			if metricsAddr != "" {
				srv := &http.Server{
					Addr:              metricsAddr,
					Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						a.log.Error().Err(err).Msg("metrics server stopped")
					}
				}()
				defer srv.Shutdown(context.Background())
			}

			c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
			if _, err := c.AddFunc(schedule, func() {
				if _, err := a.pull(ctx, args, metrics); err != nil {
					a.log.Error().Err(err).Msg("scheduled pull failed")
				}
			}); err != nil {
				return fmt.Errorf("invalid schedule %q: %w", schedule, err)
			}
			c.Start()
			a.log.Info().Str("schedule", schedule).Msg("watching")

			<-ctx.Done()
			<-c.Stop().Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron expression (overrides config)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}
