package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var propertiesCmd = &cobra.Command{
	Use:   "properties",
	Short: "List the property keys of the boundary layer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ws, err := openWorkspace(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, key := range ws.Layers.PropertyKeys() {
			fmt.Fprintln(out, key)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(propertiesCmd)
}
