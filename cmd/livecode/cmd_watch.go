package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ZanzyTHEbar/livecode/livecode/journal"
	"github.com/ZanzyTHEbar/livecode/livecode/patch"
	"github.com/ZanzyTHEbar/livecode/livecode/program"
	"github.com/ZanzyTHEbar/livecode/livecode/snapshot"
	"github.com/ZanzyTHEbar/livecode/livecode/watcher"
)

// logRunner stands in for an evaluator: it reports the designated entry.
func logRunner(logger zerolog.Logger) patch.Runner {
	return patch.RunnerFunc(func(_ context.Context, entry patch.EntryPoint, prog *program.Program) error {
		logger.Info().
			Str("entry", entry.String()).
			Int("namespaces", len(prog.Namespaces())).
			Msg("Entry designated")
		return nil
	})
}

func newWatchCmd(a *app) *cobra.Command {
	var snapshotPath, patchPath, metricsAddr string
	var reloadLibs bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Load the snapshot into a live program and apply every new patch artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if snapshotPath == "" {
				snapshotPath = a.cfg.SnapshotPath()
			}
			if patchPath == "" {
				patchPath = a.cfg.PatchPath()
			}
			if !cmd.Flags().Changed("metrics-addr") {
				metricsAddr = a.cfg.Metrics.Addr
			}
			if !cmd.Flags().Changed("reload-libs") {
				reloadLibs = a.cfg.LiveCode.ReloadLibs
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := []patch.Option{
				patch.WithRunner(logRunner(a.logger)),
				patch.WithReloadLibs(reloadLibs),
			}
			if a.cfg.Journal.Enabled {
				jcfg := journal.DefaultConfig(a.cfg.Journal.Path)
				if a.cfg.Journal.InMemory {
					jcfg = journal.InMemoryConfig()
				}
				jcfg.Logger = a.logger
				j, err := journal.Open(jcfg)
				if err != nil {
					return err
				}
				defer j.Close()
				opts = append(opts, patch.WithJournal(j))
			}

			var metrics *metricsServer
			if metricsAddr != "" {
				var err error
				if metrics, err = newMetricsServer(metricsAddr); err != nil {
					return err
				}
			}

			pipeline := patch.New(a.logger, opts...)
			s, err := snapshot.LoadSnapshotFile(ctx, snapshotPath)
			if err != nil {
				return err
			}
			if _, err := pipeline.Load(ctx, s); err != nil {
				return err
			}

			wcfg := watcher.Config{
				DebounceDelay:    time.Duration(a.cfg.Watch.DebounceMs) * time.Millisecond,
				MaxDebounceDelay: time.Duration(a.cfg.Watch.MaxDebounceMs) * time.Millisecond,
				QueueCapacity:    a.cfg.Watch.QueueCapacity,
				Logger:           a.logger,
			}
			report := watcher.WithResultHandler(func(res *patch.Result, err error) {
				if err != nil || res.Skipped {
					return
				}
				for _, line := range res.Summary {
					a.logger.Info().Str("patch", res.ID.String()).Msg(line)
				}
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return watcher.WatchArtifact(gctx, wcfg, patchPath, pipeline, report)
			})
			if metrics != nil {
				g.Go(metrics.Serve)
				g.Go(func() error {
					<-gctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return metrics.Shutdown(shutdownCtx)
				})
				a.logger.Info().Str("addr", metricsAddr).Msg("Serving metrics")
			}

			a.logger.Info().Str("snapshot", snapshotPath).Str("patch", patchPath).Msg("Watching for patches")
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "materialized snapshot to load (default from config)")
	cmd.Flags().StringVar(&patchPath, "patch", "", "patch artifact to watch (default from config)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (default metrics.addr)")
	cmd.Flags().BoolVar(&reloadLibs, "reload-libs", false, "also invalidate library namespaces (default livecode.reloadLibs)")
	return cmd
}
