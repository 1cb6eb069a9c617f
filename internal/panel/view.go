package panel

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Alia5/midikeys/scale"
)

// The visualizer covers a standard 88-key piano.
const (
	pianoLow  scale.Note = 21
	pianoHigh scale.Note = 108
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#fff"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	onStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#5f5"))
	offStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
	cursorStyle = lipgloss.NewStyle().Background(lipgloss.Color("#444"))
	inStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#5af"))
	outStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#fa5"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#f55"))
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	conn := offStyle.Render("disconnected")
	if m.sess.Connected() {
		conn = onStyle.Render("connected: " + m.sess.Port())
	}
	b.WriteString(titleStyle.Render("midikeys") + "  " + conn + "\n\n")

	b.WriteString(m.viewPorts())
	b.WriteString("\n")
	b.WriteString(m.viewToggles())
	b.WriteString("\n\n")
	b.WriteString(m.viewPiano())
	b.WriteString("\n")

	status := dimStyle.Render(m.status)
	if m.failed {
		status = errStyle.Render(m.status)
	}
	b.WriteString(status + "\n")
	b.WriteString(dimStyle.Render("j/k:select  enter:connect  d:disconnect  r:refresh  1/2/3:ranges  a:auto  e:experimental  +/-:tap delay  x:release keys  q:quit"))
	return b.String()
}

func (m Model) viewPorts() string {
	if len(m.list) == 0 {
		return dimStyle.Render("  no MIDI inputs (r to refresh)") + "\n"
	}
	var b strings.Builder
	for i, p := range m.list {
		line := fmt.Sprintf("%2d  %s", p.Number, p.Name)
		if i == m.cursor {
			b.WriteString("> " + cursorStyle.Render(line) + "\n")
			continue
		}
		b.WriteString("  " + line + "\n")
	}
	return b.String()
}

func (m Model) viewToggles() string {
	st := m.settings.Snapshot()
	toggles := []struct {
		key, label string
		on         bool
	}{
		{"1", "base", st.Ranges.Base},
		{"2", "low", st.Ranges.Low},
		{"3", "high", st.Ranges.High},
		{"a", "auto transpose", st.AutoTranspose},
		{"e", "experimental black keys", st.ExperimentalBlackKeys},
	}
	parts := make([]string, 0, len(toggles)+1)
	for _, t := range toggles {
		box, style := "[ ]", offStyle
		if t.on {
			box, style = "[x]", onStyle
		}
		parts = append(parts, style.Render(fmt.Sprintf("%s %s (%s)", box, t.label, t.key)))
	}
	parts = append(parts, offStyle.Render(fmt.Sprintf("tap delay %s", st.TapDelay)))
	return strings.Join(parts, "  ")
}

func (m Model) viewPiano() string {
	in := map[scale.Note]bool{}
	for _, n := range m.sess.Sounding() {
		in[n] = true
	}
	out := map[scale.Note]bool{}
	for _, h := range m.holds.Holds() {
		out[h.Target] = true
	}

	var b strings.Builder
	b.WriteString("     " + octaveLabels() + "\n")
	b.WriteString(inStyle.Render("in   ") + renderCells(keyCells(in), inStyle) + "\n")
	b.WriteString(outStyle.Render("out  ") + renderCells(keyCells(out), outStyle) + "\n")
	return b.String()
}

// keyCells draws one rune per piano key: a block for an active note,
// otherwise a dot for white and a small square for black keys.
func keyCells(active map[scale.Note]bool) []rune {
	cells := make([]rune, 0, pianoHigh-pianoLow+1)
	for n := pianoLow; n <= pianoHigh; n++ {
		switch {
		case active[n]:
			cells = append(cells, '█')
		case n.IsBlack():
			cells = append(cells, '▪')
		default:
			cells = append(cells, '·')
		}
	}
	return cells
}

func renderCells(cells []rune, active lipgloss.Style) string {
	var b strings.Builder
	for _, c := range cells {
		if c == '█' {
			b.WriteString(active.Render(string(c)))
			continue
		}
		b.WriteString(dimStyle.Render(string(c)))
	}
	return b.String()
}

// octaveLabels marks every C above the visualizer's lowest key.
func octaveLabels() string {
	line := []rune(strings.Repeat(" ", int(pianoHigh-pianoLow+1)))
	for n := pianoLow; n <= pianoHigh; n++ {
		if n.Offset() != 0 {
			continue
		}
		label := n.Name()
		at := int(n - pianoLow)
		for i, r := range label {
			if at+i < len(line) {
				line[at+i] = r
			}
		}
	}
	return strings.TrimRight(string(line), " ")
}
