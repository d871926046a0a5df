package cli

import (
	"bigbio/internal/skeleton"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "skeleton",
		Short: "Print the skeleton of block content read from stdin",
		Args:  cobra.NoArgs,
		RunE:  runSkeleton,
	}

	RootCmd.AddCommand(cmd)
}

func runSkeleton(cmd *cobra.Command, args []string) error {
	content, err := readInput(cmd)
	if err != nil {
		return err
	}
	return printJSON(cmd, skeleton.Build(content))
}
