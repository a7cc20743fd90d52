package cli

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/geoviewer/pkg/errors"
	"github.com/matzehuels/geoviewer/pkg/layer"
	"github.com/matzehuels/geoviewer/pkg/style"
	"github.com/matzehuels/geoviewer/pkg/viewer"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	listOnStyle       = lipgloss.NewStyle().Foreground(colorGreen)
)

// =============================================================================
// tui command
// =============================================================================

// tuiFlags holds flags for the tui command.
type tuiFlags struct {
	sessionFlags
	out string
}

func (c *CLI) tuiCommand() *cobra.Command {
	var flags tuiFlags

	cmd := &cobra.Command{
		Use:     "tui",
		Short:   "Toggle layers interactively",
		Long:    `Tui opens a terminal control panel for a graph file. Every toggle re-renders the configured outputs after the layer update delay.`,
		Example: `  geoviewer tui -g landscape.json -o layers.geojson`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.parsed(cmd)
			return c.runTUI(cmd.Context(), flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "GeoJSON output file (default: config output)")

	return cmd
}

func (c *CLI) runTUI(ctx context.Context, flags tuiFlags) error {
	cfg, err := c.loadConfig(flags.config)
	if err != nil {
		return err
	}
	if flags.out == "" {
		flags.out = cfg.Output
	}
	opts, err := c.viewerOptions(cfg)
	if err != nil {
		return err
	}
	w, cleanup, err := c.widgets(ctx, cfg, flags.out, "")
	if err != nil {
		return err
	}
	defer cleanup()

	v, err := viewer.New(w, opts)
	if err != nil {
		return err
	}
	defer v.Close()

	if _, err := c.openGraph(ctx, v, flags.sessionFlags, flags.withComponents(cfg)); err != nil {
		return err
	}

	panel := NewLayerPanel(ctx)
	if err := v.EnableGraphControls(panel); err != nil {
		return err
	}

	// Log lines would tear the alt screen.
	prev := c.Logger.GetLevel()
	if !c.verbose {
		c.Logger.SetLevel(LogWarn)
	}
	defer c.Logger.SetLevel(prev)

	_, err = tea.NewProgram(panel, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// =============================================================================
// LayerPanel - Interactive layer toggles
// =============================================================================

// LayerPanel is the bubbletea model for toggling viewer layers. It is a
// viewer control: bind it with Viewer.EnableGraphControls before running it.
type LayerPanel struct {
	ctx    context.Context
	v      *viewer.Viewer
	Rows   []layer.LayerState
	Cursor int
	Offset int
	Height int
	Info   bool
	Status string
}

var _ viewer.Control = (*LayerPanel)(nil)

// NewLayerPanel creates an unbound panel. ctx is passed to every viewer call.
func NewLayerPanel(ctx context.Context) *LayerPanel {
	return &LayerPanel{ctx: ctx, Height: 15}
}

// Bind implements viewer.Control.
func (m *LayerPanel) Bind(v *viewer.Viewer) error {
	if v == nil {
		return errors.New(errors.ErrCodeInvalidInput, "cannot bind a nil viewer")
	}
	m.v = v
	m.refresh()
	return nil
}

func (m *LayerPanel) refresh() {
	m.Rows = m.v.Layers()
	if m.Cursor >= len(m.Rows) {
		m.Cursor = max(len(m.Rows)-1, 0)
	}
}

func (m *LayerPanel) Init() tea.Cmd {
	return nil
}

func (m *LayerPanel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Rows)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case " ", "enter":
			m.toggle()
		case "a":
			m.apply("Hid all layers", m.v.HideAllLayers(m.ctx))
		case "+", "=":
			m.resize(1)
		case "-":
			m.resize(-1)
		case "i":
			m.Info = !m.Info
		case "r":
			m.refresh()
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 10
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m *LayerPanel) toggle() {
	if len(m.Rows) == 0 {
		return
	}
	row := m.Rows[m.Cursor]
	err := m.v.SetLayerVisibility(m.ctx, row.Kind, row.Name, row.Subtype, !row.Active)
	state := "on"
	if row.Active {
		state = "off"
	}
	m.apply(fmt.Sprintf("%s/%s %s", row.Name, row.Subtype, state), err)
}

func (m *LayerPanel) resize(delta float64) {
	r := m.v.Styles().Get(style.Graph).PointStyle.Radius + delta
	if r < 1 {
		r = 1
	}
	m.apply(fmt.Sprintf("Node radius %.0f", r), m.v.SetGraphStyle(m.ctx, r, ""))
}

func (m *LayerPanel) apply(done string, err error) {
	if err != nil {
		m.Status = StyleWarning.Render(errors.UserMessage(err))
	} else {
		m.Status = done
	}
	m.refresh()
}

func (m *LayerPanel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Layers"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ␣ toggle  a hide all  +/- radius  i info  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Rows))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		r := m.Rows[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		state := "off"
		switch {
		case !r.Available:
			state = "—"
		case r.Active:
			state = "on"
		}
		name := r.Name
		if r.IsHabitat {
			name = "  " + name
		}
		rows = append(rows, []string{cursor, string(r.Kind), name, string(r.Subtype), state})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Kind", "Name", "Layer", "Shown").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			idx := m.Offset + row
			if idx >= len(m.Rows) {
				return lipgloss.NewStyle()
			}
			r := m.Rows[idx]
			switch {
			case idx == m.Cursor:
				return listSelectedStyle
			case !r.Available:
				return listDimStyle
			case r.Active && col == 4:
				return listOnStyle
			}
			return lipgloss.NewStyle()
		})

	b.WriteString(t.Render())
	b.WriteString("\n")
	if m.v != nil {
		b.WriteString(listDimStyle.Render(fmt.Sprintf("  graph %s · map %s · [%d/%d]",
			m.v.CurrentGraph(), m.v.CurrentMap(), m.Cursor+1, len(m.Rows))))
		b.WriteString("\n")
	}
	if m.Info {
		b.WriteString(m.infoView())
	}
	if m.Status != "" {
		b.WriteString("\n  " + m.Status + "\n")
	}
	return b.String()
}

// infoView lists the metrics of the graph under the cursor.
func (m *LayerPanel) infoView() string {
	if len(m.Rows) == 0 || m.Rows[m.Cursor].Kind != layer.KindGraphs {
		return ""
	}
	info, ok := m.v.Graph(m.Rows[m.Cursor].Name)
	if !ok {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n" + StyleHighlight.Render(info.Name) + "\n")
	for _, mt := range info.Metrics {
		label := mt.Description
		if label == "" {
			label = mt.Name
		}
		value := fmt.Sprintf("%.4g", mt.Value)
		if mt.Unit != "" {
			value += " " + mt.Unit
		}
		b.WriteString("  " + lipgloss.NewStyle().Foreground(colorGray).Width(28).Render(label) + " " + StyleValue.Render(value) + "\n")
	}
	return b.String()
}
