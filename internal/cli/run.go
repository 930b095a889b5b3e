package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/restackio/restack/internal/config"
	"github.com/restackio/restack/internal/events"
	"github.com/restackio/restack/internal/executor"
	"github.com/restackio/restack/internal/fsutil"
	"github.com/restackio/restack/internal/history"
	"github.com/restackio/restack/internal/job"
	"github.com/restackio/restack/internal/lock"
	"github.com/restackio/restack/internal/logging"
	"github.com/restackio/restack/internal/model"
	"github.com/restackio/restack/internal/orchestrator"
	"github.com/restackio/restack/internal/retry"
	"github.com/restackio/restack/internal/telemetry"
	"github.com/restackio/restack/internal/workspace"
)

var (
	runSource      string
	runOut         string
	runProviderBin string
	runValidator   string
	runIntegrator  string
	runSourceStack string
	runTargetStack string
	runS3Prefix    string
)

var runCmd = &cobra.Command{
	Use:   "run <plan.yaml>",
	Short: "Execute a conversion plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversion,
}

func init() {
	runCmd.Flags().StringVar(&runSource, "source", ".", "source tree directory")
	runCmd.Flags().StringVar(&runOut, "out", "", "output directory (defaults to the source directory)")
	runCmd.Flags().StringVar(&runProviderBin, "provider", "", "conversion provider executable (required)")
	runCmd.Flags().StringVar(&runValidator, "validator", "", "validator executable, run per converted file")
	runCmd.Flags().StringVar(&runIntegrator, "integrator", "", "integrator executable, run once after conversion")
	runCmd.Flags().StringVar(&runSourceStack, "source-stack", "", "source stack, e.g. typescript/express@4")
	runCmd.Flags().StringVar(&runTargetStack, "target-stack", "", "target stack, e.g. go/chi@5")
	runCmd.Flags().StringVar(&runS3Prefix, "s3-prefix", "", "load the source tree from this S3 prefix instead of --source")
	_ = runCmd.MarkFlagRequired("provider")
	rootCmd.AddCommand(runCmd)
}

// parseStack parses "language/framework@version" descriptors; framework
// and version are optional.
func parseStack(s string) model.StackDescriptor {
	var d model.StackDescriptor
	if s == "" {
		return d
	}
	if at := strings.LastIndex(s, "@"); at >= 0 {
		d.Version = s[at+1:]
		s = s[:at]
	}
	if slash := strings.Index(s, "/"); slash >= 0 {
		d.Framework = s[slash+1:]
		s = s[:slash]
	}
	d.Language = s
	return d
}

func runConversion(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger := logging.New(log.New(os.Stderr, "", 0), logging.ParseLevel(cfg.Logging.Level), "cli")

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry, Version)
	if err != nil {
		return fmt.Errorf("telemetry init: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	var plan model.ConversionPlan
	if err := fsutil.ReadYAML(args[0], &plan); err != nil {
		return err
	}

	if err := os.MkdirAll(".restack", 0755); err != nil {
		return err
	}
	runLock := lock.NewFileLock(filepath.Join(".restack", "run.lock"))
	if err := runLock.TryLock(); err != nil {
		return err
	}
	defer runLock.Unlock()

	tree, s3loader, err := loadTree(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Infof("source tree loaded files=%d", tree.Len())

	provider, err := executor.NewExecProvider(runProviderBin)
	if err != nil {
		return err
	}
	var validator executor.Validator
	if runValidator != "" {
		if validator, err = executor.NewExecValidator(runValidator); err != nil {
			return err
		}
	}
	var integrator executor.Integrator
	if runIntegrator != "" {
		if integrator, err = executor.NewExecIntegrator(runIntegrator); err != nil {
			return err
		}
	}

	hist, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer hist.Close()

	store, err := openJobStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	bus := events.NewBus(256)
	defer bus.Close()

	journal, err := events.NewJournal(filepath.Join(".restack", "events.jsonl"), 0)
	if err != nil {
		return err
	}
	defer journal.Close()
	detach := journal.Attach(bus)
	defer detach()

	if cfg.Orchestrator.WatchSourceTree && runS3Prefix == "" {
		watcher, werr := workspace.NewWatcher(runSource, func(rel string, op fsnotify.Op) {
			logger.Warnf("source tree changed during run file=%s op=%s", rel, op)
		}, logger)
		if werr != nil {
			return werr
		}
		if werr := watcher.Start(ctx); werr != nil {
			return werr
		}
		defer watcher.Stop()
	}

	exec := executor.New(provider, hist, logger, cfg.Orchestrator.PreserveContext)
	orch := orchestrator.New(exec, retry.NewManager(), hist, validator, integrator, logger, cfg.Orchestrator, cfg.Retry)
	controller := job.NewController(store, bus, orch, logger)

	created, err := controller.Create(ctx, &plan)
	if err != nil {
		return err
	}

	done := make(chan model.JobStatus, 1)
	_, err = controller.OnProgress(ctx, created.ID, func(ev events.Event) {
		switch ev.Kind {
		case events.KindProgress:
			fmt.Fprintf(cmd.OutOrStdout(), "[%3d%%] %s\n", ev.Progress, ev.Message)
		case events.KindWarning:
			fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", ev.Message)
		case events.KindState:
			if model.IsJobTerminal(ev.Status) {
				select {
				case done <- ev.Status:
				default:
				}
			}
		}
	})
	if err != nil {
		return err
	}

	err = controller.Start(ctx, created.ID, job.StartOptions{
		Tree:        tree,
		SourceStack: parseStack(runSourceStack),
		TargetStack: parseStack(runTargetStack),
	})
	if err != nil {
		return err
	}

	var status model.JobStatus
	select {
	case status = <-done:
	case <-ctx.Done():
		_ = controller.Cancel(context.Background(), created.ID)
		return ctx.Err()
	}

	final, err := controller.GetStatus(ctx, created.ID)
	if err != nil {
		return err
	}
	if status == model.JobStatusFailed {
		return fmt.Errorf("conversion failed: %s", final.ErrorMessage)
	}

	return writeOutput(ctx, cmd, s3loader, final)
}

// loadTree loads the source tree from S3 when --s3-prefix is given,
// otherwise from the local --source directory.
func loadTree(ctx context.Context, cfg *model.Config) (*workspace.SourceTree, *workspace.S3Loader, error) {
	if runS3Prefix != "" {
		loader, err := workspace.NewS3Loader(cfg.Workspace)
		if err != nil {
			return nil, nil, err
		}
		tree, err := loader.Load(ctx, runS3Prefix)
		return tree, loader, err
	}
	tree, err := workspace.LoadDir(runSource)
	return tree, nil, err
}

func openHistory(cfg *model.Config) (history.Store, error) {
	if cfg.History.Backend == "postgres" {
		return history.NewPostgresStore(cfg.History.DatabaseURL)
	}
	return history.NewMemoryStore(), nil
}

func openJobStore(ctx context.Context, cfg *model.Config) (job.Store, error) {
	if cfg.JobStore.Backend == "redis" {
		return job.NewRedisStore(ctx, cfg.JobStore)
	}
	return job.NewMemoryStore(), nil
}

// writeOutput applies every successful result's file changes and flushes
// them to the output destination.
func writeOutput(ctx context.Context, cmd *cobra.Command, s3loader *workspace.S3Loader, final *model.Job) error {
	outDir := runOut
	if outDir == "" {
		outDir = runSource
	}
	out := workspace.NewSourceTree(outDir)

	succeeded, failed := 0, 0
	for _, res := range final.Results {
		if res.Status != model.ResultSuccess {
			failed++
			continue
		}
		succeeded++
		if err := out.Apply(res.Files); err != nil {
			return err
		}
	}

	if s3loader != nil {
		if err := s3loader.Store(ctx, runS3Prefix, out); err != nil {
			return err
		}
	} else if err := out.Flush(); err != nil {
		return err
	}

	snapshot := filepath.Join(".restack", "jobs", final.ID+".yaml")
	if err := fsutil.WriteYAML(snapshot, final); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "job %s: %d succeeded, %d failed, %d files written\n",
		final.ID, succeeded, failed, out.Len())
	return nil
}
