package cli

import (
	"fmt"
	"os"

	"bigbio/internal/linediff"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "diff <old-file> <new-file>",
		Short: "Print the positional line diff between two files",
		Args:  cobra.ExactArgs(2),
		RunE:  runDiff,
	}

	RootCmd.AddCommand(cmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	oldText, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	newText, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[1], err)
	}
	return printJSON(cmd, linediff.Diff(string(oldText), string(newText)))
}
