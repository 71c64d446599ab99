package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/nemanja-m/mrstep/internal/shared/logging"
	"github.com/nemanja-m/mrstep/internal/step/core"
	"github.com/nemanja-m/mrstep/internal/step/service"
)

type runOptions struct {
	id          string
	job         string
	args        string
	metricsAddr string
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run or resume a MapReduce step until it finishes",
		Example: `  stepexec run --id nightly-wc --job wordcount --args "--input 'logs/**/*.log' --reducers 4"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStep(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.id, "id", "", "Step id; reuse it to resume a step (default: random)")
	cmd.Flags().StringVar(&opts.job, "job", "", "Registered MapReduce job name")
	cmd.Flags().StringVar(&opts.args, "args", "", "Job arguments, e.g. \"--input in/*.txt --output out --reducers 2\"")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	return cmd
}

func runStep(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	env, err := root.open(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	backend, closeBackend, err := env.backend()
	if err != nil {
		return err
	}
	defer closeBackend()

	id := opts.id
	if id == "" {
		id = uuid.NewString()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	if opts.metricsAddr != "" {
		stop := serveMetrics(opts.metricsAddr, registry, env.logger)
		defer stop()
	}

	exec := service.NewMapReduceExecutable(id, env.store, backend, env.cfg.Poll.Interval(), env.logger,
		service.WithMetrics(service.NewMetrics(registry)),
	)
	exec.SetJobName(opts.job)
	if cmd.Flags().Changed("args") {
		exec.SetJobParams(opts.args)
	}

	ctx := cmd.Context()
	env.logger.Info("Starting step", "step_id", id, "job", opts.job, "backend", env.cfg.Backend.Type)

	exec.OnExecuteStart(ctx)
	result := exec.DoWork(ctx)

	if ctx.Err() != nil {
		env.logger.Warn("Step interrupted; run again with the same id to resume", "step_id", id)
		return ctx.Err()
	}

	if err := exec.OnExecuteFinished(context.WithoutCancel(ctx), result); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, result.State)
	switch result.State {
	case core.ResultFailed, core.ResultError:
		return fmt.Errorf("step %s finished with state %s", id, result.State)
	}
	return nil
}

func serveMetrics(addr string, registry *prometheus.Registry, logger logging.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("Serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("Failed to stop metrics server", "error", err)
		}
		<-done
	}
}
