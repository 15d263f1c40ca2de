// Package runner dispatches resolved command lines: directly, as an echo
// dry run, or through the slurm batch scheduler.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/astrokit/projector/internal/config"
	"github.com/astrokit/projector/internal/log"
)

// Runner executes command lines under a tracer.
type Runner struct {
	tracer trace.Tracer
}

// New returns a runner. A nil tracer falls back to a no-op tracer.
func New(tracer trace.Tracer) *Runner {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(serviceName)
	}
	return &Runner{tracer: tracer}
}

// Run executes one command line in the given mode and returns its exit
// status. Dry runs echo the command instead of executing it. Slurm is not a
// valid mode for a single command; use RunAll.
func (r *Runner) Run(ctx context.Context, mode RunMode, cmdline []string) (int, error) {
	if len(cmdline) == 0 {
		return 1, fmt.Errorf("empty command line")
	}
	if mode == Slurm {
		return 1, fmt.Errorf("Run must not be called with run mode slurm")
	}
	if mode == DryRun {
		cmdline = append([]string{"echo"}, cmdline...)
	}

	id := uuid.NewString()
	ctx, span := r.tracer.Start(ctx, "runner.command",
		trace.WithAttributes(
			attribute.String("command.id", id),
			attribute.String("command.binary", cmdline[0]),
			attribute.Int("command.args", len(cmdline)-1),
		))
	defer span.End()

	log.Info(log.CatRunner, "running command", "id", id, "cmd", strings.Join(cmdline, " "))
	start := time.Now()

	cmd := exec.CommandContext(ctx, cmdline[0], cmdline[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err := cmd.Run()
	elapsed := time.Since(start)

	status := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			status = exitErr.ExitCode()
		} else {
			log.ErrorErr(log.CatRunner, "command failed to start", err, "id", id)
			return 1, err
		}
	}
	span.SetAttributes(attribute.Int("command.status", status))
	log.Info(log.CatRunner, "command completed", "id", id,
		"status", status, "elapsed", elapsed.String())
	return status, nil
}

// RunAll executes a command batch. For dry_run and bash modes the commands
// run sequentially, stopping at the first failure. For slurm the commands
// are written to a submit script at scriptPath and handed to srun; the
// returned status is the parsed job id line.
func (r *Runner) RunAll(ctx context.Context, mode RunMode, cmdlines [][]string, scriptPath string) (int, error) {
	if mode != Slurm {
		for _, cmdline := range cmdlines {
			status, err := r.Run(ctx, mode, cmdline)
			if err != nil || status != 0 {
				return status, err
			}
		}
		return 0, nil
	}

	if scriptPath == "" {
		return 1, fmt.Errorf("run mode slurm requires a script path to write")
	}
	if err := writeSubmitScript(scriptPath, cmdlines); err != nil {
		return 1, err
	}
	scriptOut := strings.Replace(scriptPath, ".sh", ".out", 1)

	ctx, span := r.tracer.Start(ctx, "runner.srun",
		trace.WithAttributes(attribute.String("slurm.script", scriptPath)))
	defer span.End()

	cmd := exec.CommandContext(ctx, "srun", "--output", scriptOut, "--error", scriptPath)
	out, err := cmd.Output()
	if err != nil {
		return 1, fmt.Errorf("slurm submit failed: %w", err)
	}
	line := strings.TrimSpace(string(out))
	jobID, err := strconv.Atoi(strings.SplitN(line, "|", 2)[0])
	if err != nil {
		return 1, fmt.Errorf("bad slurm submit output %q: %w", line, err)
	}
	log.Info(log.CatRunner, "submitted batch job", "script", scriptPath, "job_id", jobID)
	return jobID, nil
}

func writeSubmitScript(path string, cmdlines [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating script dir: %w", err)
	}
	var sb strings.Builder
	sb.WriteString("#!/usr/bin/bash\n\n")
	for _, cmdline := range cmdlines {
		sb.WriteString(strings.Join(cmdline, " "))
		sb.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o755); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// SbatchWrap wraps a projector invocation with the site's sbatch options so
// the work itself runs inside the batch allocation.
func (r *Runner) SbatchWrap(ctx context.Context, mode RunMode, cfg config.Config, site string, args []string) (int, error) {
	siteArgs, err := cfg.SiteArgs(site)
	if err != nil {
		return 1, err
	}
	cmdline := append([]string{"sbatch"}, siteArgs...)
	cmdline = append(cmdline, "projector", "--run-mode", "slurm")
	cmdline = append(cmdline, args...)
	return r.Run(ctx, mode, cmdline)
}
