package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/astrokit/projector/internal/library"
	"github.com/astrokit/projector/internal/project"
)

var (
	reduceCatalog        string
	reduceOutputCatalog  string
	reduceReducer        string
	reduceSelections     []string
	reduceInputSelection string
	reduceDryRun         bool
)

var reduceCmd = &cobra.Command{
	Use:   "reduce <project-yaml>",
	Short: "Apply selection cuts to an input catalog",
	Long: `Apply each selection's cuts to every file of the input catalog,
writing the reduced copies to the output catalog's resolved paths. The
command keeps going after failures and exits with the bitwise OR of the
per-selection statuses.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := project.Load(args[0], library.New())
		if err != nil {
			return err
		}
		selections, err := p.GetSelectionArgs(reduceSelections)
		if err != nil {
			return err
		}
		for _, selection := range selections {
			sinks, err := p.ReduceData(reduceCatalog, reduceOutputCatalog, reduceReducer,
				reduceInputSelection, selection, reduceDryRun, nil)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "selection %s: %v\n", selection, err)
				exitStatus |= 1
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "selection %s: %d files\n", selection, len(sinks))
		}
		return nil
	},
}

func init() {
	reduceCmd.Flags().StringVar(&reduceCatalog, "catalog", "", "input catalog template")
	reduceCmd.Flags().StringVar(&reduceOutputCatalog, "output-catalog", "", "output catalog template")
	reduceCmd.Flags().StringVar(&reduceReducer, "reducer", "", "reducer algorithm to apply")
	reduceCmd.Flags().StringSliceVar(&reduceSelections, "selection", []string{"all"},
		"selections to apply, repeatable, 'all' for every selection")
	reduceCmd.Flags().StringVar(&reduceInputSelection, "input-selection", "",
		"selection the input catalog was made with")
	reduceCmd.Flags().BoolVar(&reduceDryRun, "dry-run", false,
		"resolve everything but skip the reduction")
	_ = reduceCmd.MarkFlagRequired("catalog")
	_ = reduceCmd.MarkFlagRequired("output-catalog")
	_ = reduceCmd.MarkFlagRequired("reducer")
	rootCmd.AddCommand(reduceCmd)
}
