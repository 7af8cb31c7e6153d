// cmd/keywords.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/clapdetector/internal/keyword"
	"github.com/ColonelBlimp/clapdetector/internal/output"
)

var keywordsFormat string

var keywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "List the keyword templates",
	Args:  cobra.NoArgs,
	RunE:  runKeywords,
}

func init() {
	keywordsCmd.Flags().StringVarP(&keywordsFormat, "output", "o", "table", "output format: yaml, json or table")
}

func runKeywords(cmd *cobra.Command, _ []string) error {
	format, err := output.ParseFormat(keywordsFormat)
	if err != nil {
		return err
	}

	store, err := openCache(settings)
	if err != nil {
		return err
	}
	defer closeCache(store)

	lib, err := keyword.Build(cmd.Context(), libraryOptions(settings, store))
	if err != nil {
		return fmt.Errorf("build keyword library: %w", err)
	}
	return output.Write(cmd.OutOrStdout(), format, lib.Summaries())
}
