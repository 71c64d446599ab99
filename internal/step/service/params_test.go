package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nemanja-m/mrstep/internal/step/core"
)

func TestParseJobSpec(t *testing.T) {
	tests := []struct {
		name   string
		params string
		want   core.JobSpec
	}{
		{
			name:   "input only",
			params: "--input x",
			want:   core.JobSpec{Name: "wordcount", Input: []string{"x"}, NumReducers: 1},
		},
		{
			name:   "all flags",
			params: "  --input in/a.txt --input 'in/dir with space/*.txt' --output out --reducers 4 ",
			want: core.JobSpec{
				Name:        "wordcount",
				Input:       []string{"in/a.txt", "in/dir with space/*.txt"},
				Output:      "out",
				NumReducers: 4,
			},
		},
		{
			name:   "comma separated inputs",
			params: "--input=a.txt,b.txt --reducers=2",
			want:   core.JobSpec{Name: "wordcount", Input: []string{"a.txt", "b.txt"}, NumReducers: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := parseJobSpec("wordcount", tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, spec)
		})
	}
}

func TestParseJobSpec_Errors(t *testing.T) {
	for _, params := range []string{
		"--reducers 2",
		"--input x --reducers 0",
		"--input x extra",
		"--input x --unknown",
		`--input "x`,
	} {
		t.Run(params, func(t *testing.T) {
			_, err := parseJobSpec("wordcount", params)
			require.Error(t, err)
		})
	}
}
