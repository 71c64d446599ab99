package service

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/spf13/pflag"

	"github.com/nemanja-m/mrstep/internal/step/core"
)

const (
	ParamJobName   = "mr_job_name"
	ParamJobParams = "mr_job_params"
)

// parseJobSpec turns the argument string of a MapReduce step into a submission.
//
// Supported arguments:
//
//	--input PATTERN   input glob, repeatable or comma separated (required)
//	--output DIR      output directory (backend default when empty)
//	--reducers N      number of reduce partitions (default 1)
func parseJobSpec(name, params string) (core.JobSpec, error) {
	args, err := shellwords.Parse(strings.TrimSpace(params))
	if err != nil {
		return core.JobSpec{}, fmt.Errorf("invalid argument string: %w", err)
	}

	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	input := flags.StringSlice("input", nil, "input glob patterns")
	output := flags.String("output", "", "output directory")
	reducers := flags.Int("reducers", 1, "number of reducers")

	if err := flags.Parse(args); err != nil {
		return core.JobSpec{}, err
	}
	if flags.NArg() > 0 {
		return core.JobSpec{}, fmt.Errorf("unexpected arguments: %v", flags.Args())
	}
	if len(*input) == 0 {
		return core.JobSpec{}, errors.New("--input is required")
	}
	if *reducers <= 0 {
		return core.JobSpec{}, fmt.Errorf("--reducers must be greater than 0, got %d", *reducers)
	}

	return core.JobSpec{
		Name:        name,
		Input:       *input,
		Output:      *output,
		NumReducers: *reducers,
	}, nil
}
