package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/astrokit/projector/internal/library"
	"github.com/astrokit/projector/internal/project"
)

var (
	buildFlavors []string
	buildForce   bool
)

var buildCmd = &cobra.Command{
	Use:   "build <project-yaml>",
	Short: "Materialize pipeline definition files for the selected flavors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := project.Load(args[0], library.New())
		if err != nil {
			return err
		}
		flavors, err := p.GetFlavorArgs(buildFlavors)
		if err != nil {
			return err
		}
		builder := project.YamlPipelineBuilder{}
		for _, flavor := range flavors {
			if err := p.BuildPipelines(builder, flavor, buildForce); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "flavor %s: %v\n", flavor, err)
				exitStatus |= 1
			}
		}
		return nil
	},
}

func init() {
	buildCmd.Flags().StringSliceVar(&buildFlavors, "flavor", []string{"all"},
		"flavors to build, repeatable, 'all' for every flavor")
	buildCmd.Flags().BoolVar(&buildForce, "force", false,
		"rebuild pipelines whose outputs already exist")
	rootCmd.AddCommand(buildCmd)
}
