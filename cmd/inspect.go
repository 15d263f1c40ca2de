package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/astrokit/projector/internal/library"
	"github.com/astrokit/projector/internal/project"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <project-yaml>",
	Short: "Print the contents of a project and its library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := project.Load(args[0], library.New())
		if err != nil {
			return err
		}
		p.Library().PrintContents(os.Stdout)
		var sb strings.Builder
		if err := p.Describe(&sb); err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), sb.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
