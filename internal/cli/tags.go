package cli

import (
	"bigbio/internal/skeleton"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Suggest tags for block content read from stdin",
		Args:  cobra.NoArgs,
		RunE:  runTags,
	}

	RootCmd.AddCommand(cmd)
}

func runTags(cmd *cobra.Command, args []string) error {
	content, err := readInput(cmd)
	if err != nil {
		return err
	}
	s, err := suggester()
	if err != nil {
		return err
	}
	return printJSON(cmd, s.Suggest(skeleton.Build(content).Text, content))
}
