package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"whiteboard/internal/template"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the built-in canvas templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		list := template.Builtin().List()
		if jsonOutput {
			data, err := json.MarshalIndent(list, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}
		for _, t := range list {
			fmt.Printf("%-18s %2d elements  %s\n", t.ID, len(t.Elements), t.Description)
		}
		return nil
	},
}
