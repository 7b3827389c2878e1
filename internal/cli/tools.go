package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/planops/planagent/internal/catalog"
)

// NewToolsCmd creates the 'tools' command listing the planning catalog.
func NewToolsCmd() *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the planning tool catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := catalog.Names()

			if search != "" {
				index, err := catalog.NewIndex()
				if err != nil {
					return fmt.Errorf("failed to build catalog index: %w", err)
				}
				defer index.Close()

				names, err = index.Search(search, 10)
				if err != nil {
					return fmt.Errorf("search failed: %w", err)
				}
				if len(names) == 0 {
					fmt.Printf("No tools match %q\n", search)
					return nil
				}
			}

			for _, name := range names {
				tool, _ := catalog.Get(name)
				fmt.Printf("%-30s %s\n", tool.Name, tool.Description)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Filter tools by search query")
	return cmd
}
