package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/astrokit/projector/internal/plotting"
)

var (
	plotInclude  []string
	plotExclude  []string
	plotOutdir   string
	plotFindOnly bool
	plotNoSave   bool
	plotMakeHTML bool
)

var plotCmd = &cobra.Command{
	Use:   "plot <plots-yaml>",
	Short: "Render the plot groups defined in a plot file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plots, err := plotting.Run(args[0], plotInclude, plotExclude, plotting.RunOptions{
			SavePlots:  !plotNoSave,
			PurgePlots: true,
			FindOnly:   plotFindOnly,
			Outdir:     plotOutdir,
			MakeHTML:   plotMakeHTML,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d datasets plotted\n", len(plots))
		return nil
	},
}

func init() {
	plotCmd.Flags().StringSliceVar(&plotInclude, "include", nil,
		"plot groups to run, repeatable, default all")
	plotCmd.Flags().StringSliceVar(&plotExclude, "exclude", nil,
		"plot groups to skip, repeatable")
	plotCmd.Flags().StringVar(&plotOutdir, "outdir", ".",
		"directory to prepend to each group's output directory")
	plotCmd.Flags().BoolVar(&plotFindOnly, "find-only", false,
		"record expected plot paths without rendering")
	plotCmd.Flags().BoolVar(&plotNoSave, "no-save", false,
		"render plots without writing them to disk")
	plotCmd.Flags().BoolVar(&plotMakeHTML, "make-html", false,
		"write browsable HTML tables and an index page")
	rootCmd.AddCommand(plotCmd)
}
