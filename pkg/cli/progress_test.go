package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"mercator-hq/webdev/pkg/build"
)

func TestProgressReporter_Results(t *testing.T) {
	start := time.Now()

	tests := []struct {
		name string
		res  build.Result
		want []string
	}{
		{
			name: "success",
			res:  build.Result{State: build.Succeeded, StartedAt: start, FinishedAt: start.Add(1234 * time.Millisecond)},
			want: []string{"✓ build succeeded in 1.2s"},
		},
		{
			name: "failure with tail",
			res: build.Result{
				State:      build.Failed,
				ExitCode:   2,
				Tail:       []string{"src/app.ts(3,1): error TS1005"},
				StartedAt:  start,
				FinishedAt: start.Add(40 * time.Millisecond),
			},
			want: []string{"✗ build failed after 40ms (exit code 2)", "  last output:", "  src/app.ts(3,1): error TS1005"},
		},
		{
			name: "failure before start",
			res: build.Result{
				State:      build.Failed,
				ExitCode:   -1,
				Err:        errors.New("exec: \"pnpm\": executable file not found in $PATH"),
				StartedAt:  start,
				FinishedAt: start,
			},
			want: []string{"✗ build failed after 0s\n", "executable file not found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			p := NewProgressReporter(buf, true)
			p.JobFinished(nil, tt.res)

			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output %q missing %q", buf.String(), want)
				}
			}
		})
	}
}

func TestProgressReporter_Published(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgressReporter(buf, true)

	p.Published("j", 3*time.Millisecond, nil)
	p.Published("j", 0, errors.New("rename dist: permission denied"))

	out := buf.String()
	if !strings.Contains(out, "✓ published in 3ms") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "✗ publish failed: rename dist: permission denied") {
		t.Errorf("output = %q", out)
	}
}

func TestRoundDuration(t *testing.T) {
	tests := map[time.Duration]time.Duration{
		1234 * time.Millisecond: 1200 * time.Millisecond,
		1500 * time.Microsecond: 2 * time.Millisecond,
		500 * time.Microsecond:   500 * time.Microsecond,
	}
	for in, want := range tests {
		if got := roundDuration(in); got != want {
			t.Errorf("roundDuration(%v) = %v, want %v", in, got, want)
		}
	}
}
