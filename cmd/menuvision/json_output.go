package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// writeJSON prints v as indented JSON on the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
