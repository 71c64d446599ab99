package cli

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/nemanja-m/mrstep/internal/step/core"
	"github.com/nemanja-m/mrstep/internal/step/service"
)

type statusView struct {
	ID         string            `json:"id"`
	State      string            `json:"state"`
	WaitTimeMs int64             `json:"wait_time_ms"`
	UpdatedAt  time.Time         `json:"updated_at"`
	Info       map[string]string `json:"info"`
	Output     string            `json:"output,omitempty"`
}

func newStatusCommand(root *rootOptions) *cobra.Command {
	var asJSON, showOutput bool

	cmd := &cobra.Command{
		Use:   "status <step_id>",
		Short: "Show the recorded state of a step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			ctx := cmd.Context()
			id := args[0]
			output, err := env.store.GetOutput(ctx, id)
			if errors.Is(err, core.ErrOutputNotFound) {
				return fmt.Errorf("unknown step %s", id)
			}
			if err != nil {
				return err
			}

			// Only reads the store, so no backend is needed.
			exec := service.NewMapReduceExecutable(id, env.store, nil, env.cfg.Poll.Interval(), env.logger)
			waitTime, err := exec.WaitTime(ctx)
			if err != nil {
				return err
			}

			view := statusView{
				ID:         output.ID,
				State:      string(output.State),
				WaitTimeMs: waitTime.Milliseconds(),
				UpdatedAt:  output.UpdatedAt,
				Info:       output.Info,
			}
			if showOutput {
				view.Output = output.Text
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			return printStatus(cmd, view, waitTime)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&showOutput, "output", false, "Include the job output text")
	return cmd
}

func printStatus(cmd *cobra.Command, view statusView, waitTime time.Duration) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", view.ID)
	fmt.Fprintf(w, "State:\t%s\n", view.State)
	fmt.Fprintf(w, "Wait time:\t%s\n", waitTime)
	fmt.Fprintf(w, "Updated:\t%s\n", view.UpdatedAt.UTC().Format(time.RFC3339))

	keys := make([]string, 0, len(view.Info))
	for key := range view.Info {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	if len(keys) > 0 {
		fmt.Fprintln(w, "Info:")
	}
	for _, key := range keys {
		fmt.Fprintf(w, "  %s\t%s\n", key, view.Info[key])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if view.Output != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s", view.Output)
		if !strings.HasSuffix(view.Output, "\n") {
			fmt.Fprintln(cmd.OutOrStdout())
		}
	}
	return nil
}
