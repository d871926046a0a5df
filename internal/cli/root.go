// Package cli implements the bigbio-tools commands: offline skeleton, tag and diff tooling plus database backfills.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"bigbio/internal/tagsuggest"

	"github.com/spf13/cobra"
)

var (
	inputPath string
	rulesPath string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:          "bigbio-tools",
	Short:        "Skeleton, tag and diff tooling for BigBio blocks",
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&inputPath, "file", "i", "", "Read block content from a file instead of stdin")
	RootCmd.PersistentFlags().StringVarP(&rulesPath, "rules", "r", "", "Tag rule YAML file (default: $TAG_RULES_FILE or built-in rules)")
}

// readInput returns the content of --file, or all of stdin.
func readInput(cmd *cobra.Command) (string, error) {
	if inputPath != "" {
		b, err := os.ReadFile(inputPath)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", inputPath, err)
		}
		return string(b), nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(b), nil
}

func suggester() (*tagsuggest.Suggester, error) {
	path := rulesPath
	if path == "" {
		path = os.Getenv("TAG_RULES_FILE")
	}
	if path == "" {
		return tagsuggest.Default(), nil
	}
	return tagsuggest.LoadFile(path)
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}
