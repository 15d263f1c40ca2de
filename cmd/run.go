package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/astrokit/projector/internal/interpolate"
	"github.com/astrokit/projector/internal/library"
	"github.com/astrokit/projector/internal/project"
	"github.com/astrokit/projector/internal/runner"
)

var (
	runMode       = runner.Bash
	runPipeline   string
	runFlavors    []string
	runSelections []string
	runSite       string
)

var runCmd = &cobra.Command{
	Use:   "run <project-yaml>",
	Short: "Run a pipeline for the selected flavors and selections",
	Long: `Run one pipeline over every selected flavor and selection pair.
Pipelines with an input catalog template run once per iteration-variable
combination; the rest run once on their per-flavor input files. The command
keeps going after failures and exits with the bitwise OR of the statuses.

With --site set, the whole invocation is wrapped in an sbatch submission
using the site's batch options.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := project.Load(args[0], library.New())
		if err != nil {
			return err
		}
		r, shutdown, err := newRunner(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = shutdown() }()
		ctx := cmd.Context()

		flavors, err := p.GetFlavorArgs(runFlavors)
		if err != nil {
			return err
		}
		selections, err := p.GetSelectionArgs(runSelections)
		if err != nil {
			return err
		}

		if runSite != "" {
			wrapped := []string{"run", args[0], "--pipeline", runPipeline}
			for _, flavor := range flavors {
				wrapped = append(wrapped, "--flavor", flavor)
			}
			for _, selection := range selections {
				wrapped = append(wrapped, "--selection", selection)
			}
			code, err := r.SbatchWrap(ctx, runMode, cfg, runSite, wrapped)
			exitStatus |= code
			return err
		}

		tmpl, err := p.GetPipeline(runPipeline)
		if err != nil {
			return err
		}
		combos := project.GenerateKwargsIterable([]interpolate.Domain{
			{Name: "flavor", Values: flavors},
			{Name: "selection", Values: selections},
		})
		for _, kw := range combos {
			code, err := runCombination(cmd, r, p, tmpl, kw["flavor"], kw)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "pipeline %s flavor %s selection %s: %v\n",
					runPipeline, kw["flavor"], kw["selection"], err)
				if code == 0 {
					code = 1
				}
			}
			exitStatus |= code
		}
		return nil
	},
}

func runCombination(cmd *cobra.Command, r *runner.Runner, p *project.Project, tmpl *library.PipelineTemplate, flavor string, interpolants map[string]string) (int, error) {
	ctx := cmd.Context()
	if tmpl.InputCatalogTemplate != "" {
		batches, err := p.MakePipelineCatalogCommands(cfg.CeciBin, tmpl.Name, flavor, interpolants)
		if err != nil {
			return 1, err
		}
		status := 0
		for _, batch := range batches {
			code, err := r.RunAll(ctx, runMode, batch.Commands, batch.ScriptPath)
			status |= code
			if err != nil {
				return status, err
			}
		}
		return status, nil
	}

	cmdline, err := p.MakePipelineSingleInputCommand(cfg.CeciBin, tmpl.Name, flavor, interpolants)
	if err != nil {
		return 1, err
	}
	return r.Run(ctx, runMode, cmdline)
}

func init() {
	rootCmd.PersistentFlags().Var(&runMode, "run-mode",
		"how to execute commands: dry_run, bash or slurm")
	runCmd.Flags().StringVar(&runPipeline, "pipeline", "", "pipeline to run")
	runCmd.Flags().StringSliceVar(&runFlavors, "flavor", []string{"all"},
		"flavors to run, repeatable, 'all' for every flavor")
	runCmd.Flags().StringSliceVar(&runSelections, "selection", []string{"all"},
		"selections to run, repeatable, 'all' for every selection")
	runCmd.Flags().StringVar(&runSite, "site", "",
		"submit the invocation via sbatch using this site's options")
	_ = runCmd.MarkFlagRequired("pipeline")
	rootCmd.AddCommand(runCmd)
}
