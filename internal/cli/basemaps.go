package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

// basemapsCommand lists the base map catalogue, including config overrides.
func (c *CLI) basemapsCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "basemaps",
		Short: "List available base maps",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(configPath)
			if err != nil {
				return err
			}
			cat, err := cfg.Catalog()
			if err != nil {
				return err
			}

			var rows [][]string
			for _, name := range cat.Names() {
				s, _ := cat.Lookup(name)
				marker := ""
				if name == cfg.BaseMap {
					marker = iconSuccess
				}
				rows = append(rows, []string{marker, s.Name, zoomRange(s.MinZoom, s.MaxZoom), s.URL})
			}

			headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
			t := table.New().
				Border(lipgloss.RoundedBorder()).
				BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
				Headers("", "Name", "Zoom", "URL").
				Rows(rows...).
				StyleFunc(func(row, col int) lipgloss.Style {
					switch {
					case row == -1:
						return headerStyle
					case col == 0:
						return StyleSuccess
					case col == 3:
						return StyleDim
					}
					return StyleValue
				})
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (TOML or YAML)")
	return cmd
}

func zoomRange(lo, hi int) string {
	if hi == 0 {
		return strconv.Itoa(lo) + "+"
	}
	return strconv.Itoa(lo) + "–" + strconv.Itoa(hi)
}
