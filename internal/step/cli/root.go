package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nemanja-m/mrstep/internal/backend/local"
	"github.com/nemanja-m/mrstep/internal/backend/rest"
	"github.com/nemanja-m/mrstep/internal/shared/config"
	"github.com/nemanja-m/mrstep/internal/shared/logging"
	"github.com/nemanja-m/mrstep/internal/step/core"
	"github.com/nemanja-m/mrstep/internal/step/storage"
)

const rootLong = `stepexec submits a MapReduce job to a compute backend and follows it
until it finishes, recording progress in a durable output store.

A step that is restarted with the same id attaches to the job it submitted
earlier instead of starting a new one.`

type rootOptions struct {
	configPath string
}

// NewRootCommand builds the stepexec command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "stepexec",
		Short:        "Run and control resumable MapReduce steps",
		Long:         rootLong,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to stepexec.yaml")

	root.AddCommand(
		newRunCommand(opts),
		newStateCommand(opts, "stop", "Ask a running step to stop", core.StateStopped),
		newStateCommand(opts, "discard", "Discard a step; a running step stops at its next poll", core.StateDiscarded),
		newStatusCommand(opts),
	)
	return root
}

type environment struct {
	cfg    *config.StepConfig
	logger logging.Logger
	store  *storage.SQLOutputStore
}

func (o *rootOptions) open(cmd *cobra.Command) (*environment, error) {
	cfg, err := config.LoadStep(o.configPath)
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.NewSlogLoggerWithWriter(cmd.ErrOrStderr(), level, cfg.Logging.Format)

	store, err := storage.OpenSQLOutputStore(cfg.Store.DSN)
	if err != nil {
		return nil, err
	}

	return &environment{cfg: cfg, logger: logger, store: store}, nil
}

func (e *environment) close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("Failed to close output store", "error", err)
	}
}

func (e *environment) backend() (core.Backend, func(), error) {
	switch e.cfg.Backend.Type {
	case config.BackendLocal:
		b := local.NewBackend(e.cfg.Local.Slots, e.cfg.Local.Mappers, e.cfg.Local.OutputRoot, e.logger)
		return b, b.Close, nil
	case config.BackendREST:
		b := rest.NewBackend(e.cfg.Backend.StatusURL, e.cfg.Backend.RequestTimeout, e.cfg.Backend.MaxRetries, e.logger)
		return b, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unsupported backend type: %s", e.cfg.Backend.Type)
}
