package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/astrokit/projector/internal/interpolate"
	"github.com/astrokit/projector/internal/library"
	"github.com/astrokit/projector/internal/project"
)

var (
	subsampleCatalog    string
	subsampleFile       string
	subsampleSampler    string
	subsampleName       string
	subsampleFlavors    []string
	subsampleSelections []string
	subsampleDryRun     bool
)

var subsampleCmd = &cobra.Command{
	Use:   "subsample <project-yaml>",
	Short: "Draw a subsample out of a catalog",
	Long: `Draw a named subsample out of every file of a catalog and write it
to the path the file template resolves to, once per selected flavor and
selection pair. The command keeps going after failures and exits with the
bitwise OR of the statuses.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := project.Load(args[0], library.New())
		if err != nil {
			return err
		}
		flavors, err := p.GetFlavorArgs(subsampleFlavors)
		if err != nil {
			return err
		}
		selections, err := p.GetSelectionArgs(subsampleSelections)
		if err != nil {
			return err
		}
		combos := project.GenerateKwargsIterable([]interpolate.Domain{
			{Name: "flavor", Values: flavors},
			{Name: "selection", Values: selections},
		})
		for _, kw := range combos {
			output, err := p.SubsampleData(subsampleCatalog, subsampleFile,
				subsampleSampler, subsampleName, subsampleDryRun, kw)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "flavor %s selection %s: %v\n",
					kw["flavor"], kw["selection"], err)
				exitStatus |= 1
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "flavor %s selection %s: %s\n",
				kw["flavor"], kw["selection"], output)
		}
		return nil
	},
}

func init() {
	subsampleCmd.Flags().StringVar(&subsampleCatalog, "catalog", "", "input catalog template")
	subsampleCmd.Flags().StringVar(&subsampleFile, "file", "", "output file template")
	subsampleCmd.Flags().StringVar(&subsampleSampler, "subsampler", "", "subsampler algorithm to apply")
	subsampleCmd.Flags().StringVar(&subsampleName, "subsample", "", "subsample configuration to draw")
	subsampleCmd.Flags().StringSliceVar(&subsampleFlavors, "flavor", []string{"baseline"},
		"flavors to draw for, repeatable, 'all' for every flavor")
	subsampleCmd.Flags().StringSliceVar(&subsampleSelections, "selection", []string{"all"},
		"selections to draw for, repeatable, 'all' for every selection")
	subsampleCmd.Flags().BoolVar(&subsampleDryRun, "dry-run", false,
		"resolve everything but skip the draw")
	_ = subsampleCmd.MarkFlagRequired("catalog")
	_ = subsampleCmd.MarkFlagRequired("file")
	_ = subsampleCmd.MarkFlagRequired("subsampler")
	_ = subsampleCmd.MarkFlagRequired("subsample")
	rootCmd.AddCommand(subsampleCmd)
}
