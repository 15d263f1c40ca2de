package runner

import "fmt"

// RunMode selects how resolved command lines are dispatched.
type RunMode int

const (
	// DryRun echoes every command instead of executing it.
	DryRun RunMode = iota
	// Bash executes commands directly, one after another.
	Bash
	// Slurm writes commands to a submit script and hands it to the batch
	// scheduler.
	Slurm
)

func (m RunMode) String() string {
	switch m {
	case DryRun:
		return "dry_run"
	case Bash:
		return "bash"
	case Slurm:
		return "slurm"
	}
	return fmt.Sprintf("RunMode(%d)", int(m))
}

// Set implements pflag.Value so a RunMode can back a cobra flag.
func (m *RunMode) Set(value string) error {
	switch value {
	case "dry_run":
		*m = DryRun
	case "bash":
		*m = Bash
	case "slurm":
		*m = Slurm
	default:
		return fmt.Errorf("invalid run mode %q, must be one of dry_run, bash, slurm", value)
	}
	return nil
}

// Type implements pflag.Value.
func (m *RunMode) Type() string { return "run_mode" }
