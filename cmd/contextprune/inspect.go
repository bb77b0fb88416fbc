package main

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/initializ/contextprune/message"
	"github.com/initializ/contextprune/store"
)

var (
	inspectStateDir  string
	inspectSessionID string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Step turn-by-turn through a session's persisted pruning history",
	Long: "inspect replays the PruneRecord history a `prune --state-dir` run " +
		"persisted for one session, one turn at a time: which messages survived, " +
		"and how many were soft-trimmed, hard-cleared, or dropped as orphans.",
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectStateDir, "state-dir", "", "directory passed to `contextprune prune --state-dir` (required)")
	inspectCmd.Flags().StringVar(&inspectSessionID, "session-id", "", "session identifier to replay (required)")
	_ = inspectCmd.MarkFlagRequired("state-dir")
	_ = inspectCmd.MarkFlagRequired("session-id")
}

func runInspect(cmd *cobra.Command, _ []string) error {
	st, err := store.New(inspectStateDir)
	if err != nil {
		return fmt.Errorf("opening state dir: %w", err)
	}
	history, err := st.History(inspectSessionID)
	if err != nil {
		return fmt.Errorf("loading session history: %w", err)
	}
	if len(history) == 0 {
		return fmt.Errorf("no persisted turns for session %q under %s (run `contextprune prune --state-dir %s --session-id %s --turn N` first)",
			inspectSessionID, inspectStateDir, inspectStateDir, inspectSessionID)
	}

	p := tea.NewProgram(newInspectModel(inspectSessionID, history), tea.WithContext(cmd.Context()), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// inspectModel steps through a session's turn-by-turn PruneRecord history
// (spec "a debugging aid for invariant violations, not a pipeline
// dependency"): left/right move between turns, the viewport scrolls a
// tabwriter-rendered breakdown of that turn's surviving context.
type inspectModel struct {
	sessionID string
	history   []*store.PruneRecord
	turn      int
	ready     bool
	vp        viewport.Model

	headerStyle lipgloss.Style
	statStyle   lipgloss.Style
	footerStyle lipgloss.Style
	roleStyle   func(message.Role) lipgloss.Style
}

func newInspectModel(sessionID string, history []*store.PruneRecord) inspectModel {
	roleColors := map[message.Role]lipgloss.Color{
		message.RoleSystem: lipgloss.Color("243"),
		message.RoleHuman:  lipgloss.Color("39"),
		message.RoleAI:     lipgloss.Color("42"),
		message.RoleTool:   lipgloss.Color("214"),
	}
	return inspectModel{
		sessionID:   sessionID,
		history:     history,
		headerStyle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")).Background(lipgloss.Color("57")).Padding(0, 1),
		statStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		footerStyle: lipgloss.NewStyle().Faint(true),
		roleStyle: func(r message.Role) lipgloss.Style {
			c, ok := roleColors[r]
			if !ok {
				c = lipgloss.Color("255")
			}
			return lipgloss.NewStyle().Foreground(c).Bold(true)
		},
	}
}

func (m inspectModel) Init() tea.Cmd { return nil }

func (m inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		headerHeight := lipgloss.Height(m.renderHeader())
		footerHeight := 1
		vpHeight := msg.Height - headerHeight - footerHeight
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.vp = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = vpHeight
		}
		m.vp.SetContent(m.renderTurn())
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "right", "l", "n":
			if m.turn < len(m.history)-1 {
				m.turn++
				m.vp.SetContent(m.renderTurn())
				m.vp.GotoTop()
			}
			return m, nil
		case "left", "h", "p":
			if m.turn > 0 {
				m.turn--
				m.vp.SetContent(m.renderTurn())
				m.vp.GotoTop()
			}
			return m, nil
		}
	}

	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m inspectModel) View() string {
	if !m.ready {
		return "loading…"
	}
	return m.renderHeader() + "\n" + m.vp.View() + "\n" + m.footerStyle.Render("←/→ or h/l: step turns   ↑/↓: scroll   q: quit")
}

func (m inspectModel) renderHeader() string {
	rec := m.history[m.turn]
	title := fmt.Sprintf("%s — turn %d/%d (turn index %d)", m.sessionID, m.turn+1, len(m.history), rec.TurnIndex)
	stats := fmt.Sprintf("soft-trimmed=%d hard-cleared=%d dropped-orphans=%d messages-to-refine=%d",
		rec.SoftTrimmedCount, rec.HardClearedCount, rec.DroppedOrphanCount, rec.MessagesToRefineCount)
	return m.headerStyle.Render(title) + "\n" + m.statStyle.Render(stats)
}

func (m inspectModel) renderTurn() string {
	rec := m.history[m.turn]

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "IDX\tROLE\tBLOCKS\tTOOL_CALLS\tTEXT")
	for i, msg := range rec.Context {
		style := m.roleStyle(msg.Role)
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			i, style.Render(string(msg.Role)), blockSummary(msg), toolCallSummary(msg), previewText(msg))
	}
	_ = w.Flush()

	if rec.Summary != "" {
		buf.WriteString("\nsummary: " + rec.Summary + "\n")
	}
	return buf.String()
}

func blockSummary(m message.Message) string {
	if len(m.Content) == 0 {
		return "-"
	}
	types := make([]string, len(m.Content))
	for i, b := range m.Content {
		types[i] = string(b.Type)
	}
	return strings.Join(types, ",")
}

func toolCallSummary(m message.Message) string {
	if len(m.ToolCalls) == 0 {
		if m.ToolCallID != "" {
			return m.ToolCallID
		}
		return "-"
	}
	names := make([]string, len(m.ToolCalls))
	for i, tc := range m.ToolCalls {
		names[i] = tc.Name
	}
	return strings.Join(names, ",")
}

func previewText(m message.Message) string {
	const maxLen = 60
	text := m.Text()
	if len(text) > maxLen {
		return text[:maxLen] + "…"
	}
	if text == "" {
		return "-"
	}
	return text
}
