// Package panel is the terminal control surface: MIDI port picker, range and
// mode toggles, the release-keys action and a live note visualizer.
package panel

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Alia5/midikeys/engine"
	"github.com/Alia5/midikeys/internal/midiin"
	"github.com/Alia5/midikeys/internal/session"
	"github.com/Alia5/midikeys/scale"
	"github.com/Alia5/midikeys/settings"
)

// TapDelayStep is the +/- increment for the experimental tap delay.
const TapDelayStep = 5 * time.Millisecond

const refreshInterval = 50 * time.Millisecond

// Session is the part of the event loop the panel drives.
type Session interface {
	Connect(ctx context.Context, id string) error
	Disconnect(ctx context.Context) error
	ReleaseKeys(ctx context.Context) error
	Connected() bool
	Port() string
	Sounding() []scale.Note
	Status() <-chan session.Status
}

// Holds reports the notes the engine is currently emulating.
type Holds interface {
	Holds() []engine.Hold
}

type Model struct {
	ctx      context.Context
	sess     Session
	holds    Holds
	settings *settings.Store
	ports    func() ([]midiin.Port, error)

	list     []midiin.Port
	cursor   int
	status   string
	failed   bool
	quitting bool
}

type tickMsg time.Time

type statusMsg session.Status

type portsMsg struct {
	ports []midiin.Port
	err   error
}

type doneMsg struct {
	action string
	err    error
}

// New builds the panel. ports is called on start and on every refresh.
func New(ctx context.Context, sess Session, holds Holds, store *settings.Store, ports func() ([]midiin.Port, error)) Model {
	return Model{
		ctx:      ctx,
		sess:     sess,
		holds:    holds,
		settings: store,
		ports:    ports,
		status:   "ready",
	}
}

func listenForStatus(s Session) tea.Cmd {
	return func() tea.Msg {
		return statusMsg(<-s.Status())
	}
}

func refreshPorts(f func() ([]midiin.Port, error)) tea.Cmd {
	return func() tea.Msg {
		ports, err := f()
		return portsMsg{ports: ports, err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) run(action string, f func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return doneMsg{action: action, err: f(m.ctx)}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		refreshPorts(m.ports),
		listenForStatus(m.sess),
		tick(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		return m, tick()

	case statusMsg:
		st := session.Status(msg)
		m.failed = st.Err != nil
		switch {
		case st.Err != nil:
			m.status = fmt.Sprintf("%s: %v", st.Kind, st.Err)
		case st.Port != "":
			m.status = fmt.Sprintf("%s: %s", st.Kind, st.Port)
		default:
			m.status = st.Kind.String()
		}
		return m, listenForStatus(m.sess)

	case portsMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("listing MIDI ports: %v", msg.err)
			m.failed = true
			return m, nil
		}
		m.list = msg.ports
		m.cursor = min(m.cursor, max(len(m.list)-1, 0))

	case doneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
			m.failed = true
		}
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.list)-1 {
			m.cursor++
		}

	case "enter":
		if len(m.list) == 0 {
			return m, nil
		}
		id := strconv.Itoa(m.list[m.cursor].Number)
		return m, m.run("connect", func(ctx context.Context) error { return m.sess.Connect(ctx, id) })

	case "d":
		return m, m.run("disconnect", m.sess.Disconnect)

	case "r":
		return m, refreshPorts(m.ports)

	case " ", "x":
		return m, m.run("release keys", m.sess.ReleaseKeys)

	case "1":
		m.settings.SetBaseEnabled(!m.settings.Snapshot().Ranges.Base)
	case "2":
		m.settings.SetLowExtendEnabled(!m.settings.Snapshot().Ranges.Low)
	case "3":
		m.settings.SetHighExtendEnabled(!m.settings.Snapshot().Ranges.High)
	case "a":
		m.settings.SetAutoTranspose(!m.settings.Snapshot().AutoTranspose)
	case "e":
		m.settings.SetExperimentalBlackKeys(!m.settings.Snapshot().ExperimentalBlackKeys)

	case "+", "=":
		m.settings.SetTapDelay(m.settings.Snapshot().TapDelay + TapDelayStep)
	case "-", "_":
		m.settings.SetTapDelay(m.settings.Snapshot().TapDelay - TapDelayStep)
	}
	return m, nil
}
