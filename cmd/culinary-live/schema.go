package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/redilah/CulinaryAI/pkg/config"
)

const schemaFileMode = 0o644

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the config file JSON schema",
	Long: `Print the JSON schema config files are validated against. It is generated
from the config types, so editors can use it for completion.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		data := append(config.Schema(), '\n')
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			_, err := cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(output, data, schemaFileMode); err != nil {
			return fmt.Errorf("failed to write schema: %w", err)
		}
		return nil
	},
}

func init() {
	schemaCmd.Flags().StringP("output", "o", "", "Write the schema to this file")
	rootCmd.AddCommand(schemaCmd)
}
