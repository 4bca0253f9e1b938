// Package tui is a terminal front end for one canvas session. Mouse cells
// are translated into screen pixels so the session sees the same pointer
// stream a browser would send.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/reloquent/schemacanvas/internal/geometry"
	"github.com/reloquent/schemacanvas/internal/schema"
	"github.com/reloquent/schemacanvas/internal/session"
)

// Rows taken by the title bar and the status line.
const chromeRows = 2

const saveTimeout = 10 * time.Second

// keyCommands maps toolbar shortcuts onto session commands.
var keyCommands = map[string]string{
	"a":      session.CmdAddEntity,
	"c":      session.CmdToggleConnection,
	"l":      session.CmdAlign,
	"u":      session.CmdUndo,
	"ctrl+z": session.CmdUndo,
	"r":      session.CmdRedo,
	"ctrl+y": session.CmdRedo,
	"+":      session.CmdZoomIn,
	"=":      session.CmdZoomIn,
	"-":      session.CmdZoomOut,
	"f":      session.CmdZoomFit,
	"0":      session.CmdResetView,
	"g":      session.CmdToggleGrid,
	"x":      session.CmdDelete,
	"delete": session.CmdDelete,
}

type changedMsg struct{}

type saveDoneMsg struct{ err error }

// Model is the bubbletea model for the canvas editor.
type Model struct {
	sess    *session.Session
	changes chan struct{}

	width  int
	height int

	renaming bool
	input    textinput.Model

	saving  bool
	spinner spinner.Model

	message string
	err     error
	done    bool
}

// New creates the editor model and subscribes it to session changes.
func New(sess *session.Session) Model {
	in := textinput.New()
	in.Placeholder = "entity name"
	in.CharLimit = 63

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = highlightStyle

	changes := make(chan struct{}, 1)
	sess.OnChange(func(session.Event) {
		select {
		case changes <- struct{}{}:
		default:
		}
	})

	return Model{
		sess:    sess,
		changes: changes,
		width:   100,
		height:  30,
		input:   in,
		spinner: s,
	}
}

// Run starts the editor on the alternate screen with mouse tracking.
func Run(sess *session.Session) error {
	p := tea.NewProgram(New(sess), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running canvas editor: %w", err)
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	return m.waitForChange()
}

// waitForChange blocks until the session reports an edit, including ones
// made by autosave or another client.
func (m Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		<-m.changes
		return changedMsg{}
	}
}

// viewport is the canvas area in screen pixels.
func (m Model) viewport() geometry.Size {
	return geometry.Size{
		Width:  float64(m.width * CellWidth),
		Height: float64(max(m.height-chromeRows, 0) * CellHeight),
	}
}

// screenPoint maps a terminal cell to the pixel at its center. Row 0 is the
// title bar.
func screenPoint(x, y int) geometry.Point {
	return geometry.Point{
		X: float64(x*CellWidth) + CellWidth/2,
		Y: float64((y-1)*CellHeight) + CellHeight/2,
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case changedMsg:
		return m, m.waitForChange()

	case saveDoneMsg:
		m.saving = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.message = "saved"
		return m, nil

	case spinner.TickMsg:
		if m.saving {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.MouseMsg:
		// Releases still end a drag begun before the rename opened.
		if m.renaming && msg.Action != tea.MouseActionRelease {
			return m, nil
		}
		return m.updateMouse(msg)

	case tea.KeyMsg:
		if m.renaming {
			return m.updateRename(msg)
		}
		if _, open := m.sess.PendingPrompt(); open {
			return m.updatePrompt(msg)
		}
		return m.updateCanvas(msg)
	}
	return m, nil
}

func (m Model) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	p := screenPoint(msg.X, msg.Y)
	ev := session.PointerEvent{X: p.X, Y: p.Y}
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		ev.Kind, ev.DeltaY = session.PointerKindWheel, -1
	case msg.Button == tea.MouseButtonWheelDown:
		ev.Kind, ev.DeltaY = session.PointerKindWheel, 1
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		if msg.Y < 1 || msg.Y > m.height-chromeRows {
			return m, nil
		}
		ev.Kind = session.PointerKindDown
	case msg.Action == tea.MouseActionMotion:
		ev.Kind = session.PointerKindMove
	case msg.Action == tea.MouseActionRelease:
		ev.Kind = session.PointerKindUp
	default:
		return m, nil
	}
	if err := m.sess.Dispatch(ev); err != nil {
		m.err = err
	}
	return m, nil
}

func (m Model) updateCanvas(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		m.sess.PointerCancel()
		m.done = true
		return m, tea.Quit
	case "esc":
		m.sess.CancelConnection()
		return m, nil
	case "s":
		if m.saving {
			return m, nil
		}
		m.saving = true
		m.message = ""
		return m, tea.Batch(m.spinner.Tick, m.save())
	case "n", "enter":
		id := m.sess.SelectedEntityID()
		e, ok := m.sess.Entity(id)
		if !ok {
			m.message = "select an entity to rename"
			return m, nil
		}
		m.renaming = true
		m.input.SetValue(e.Name)
		m.input.CursorEnd()
		return m, m.input.Focus()
	}
	if cmd, ok := keyCommands[key]; ok {
		m.err = m.sess.Exec(cmd, m.viewport())
		m.message = ""
	}
	return m, nil
}

// updatePrompt handles the relationship modal: digits pick an option.
func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "ctrl+c":
		m.done = true
		return m, tea.Quit
	case "esc", "q":
		m.sess.CancelConnection()
		return m, nil
	}
	p, _ := m.sess.PendingPrompt()
	if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
		i := int(key[0] - '1')
		if i >= len(p.Options) {
			return m, nil
		}
		c, err := m.sess.ConfirmConnection(p.Options[i].Type)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.message = fmt.Sprintf("connected %s → %s (%s)", p.SourceName, p.TargetName, c.Type)
	}
	return m, nil
}

func (m Model) updateRename(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.renaming = false
		m.input.Blur()
		return m, nil
	case "enter":
		name := strings.TrimSpace(m.input.Value())
		_, err := m.sess.UpdateEntity(m.sess.SelectedEntityID(), schema.EntityPatch{Name: &name})
		if err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.renaming = false
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) save() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		return saveDoneMsg{err: sess.Save(ctx)}
	}
}

// Done reports whether the user quit.
func (m Model) Done() bool { return m.done }

func (m Model) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder

	title := titleStyle.Render("schemacanvas · " + m.sess.ID())
	if m.sess.ConnectionMode() {
		title += " " + modeStyle.Render("CONNECT")
	}
	b.WriteString(title + dimStyle.Render("  a add · c connect · l align · u/r undo/redo · +/- zoom · f fit · s save · n rename · q quit"))
	b.WriteString("\n")

	rows := max(m.height-chromeRows, 0)
	if p, open := m.sess.PendingPrompt(); open {
		var body strings.Builder
		body.WriteString(headerStyle.Render(fmt.Sprintf("Connect %s → %s", p.SourceName, p.TargetName)))
		body.WriteString("\n\n")
		for i, o := range p.Options {
			fmt.Fprintf(&body, "%s %s  %s\n", highlightStyle.Render(fmt.Sprintf("[%d]", i+1)), o.Label, dimStyle.Render(o.Description))
		}
		body.WriteString("\n" + dimStyle.Render("esc to cancel"))
		b.WriteString(lipgloss.Place(m.width, rows, lipgloss.Center, lipgloss.Center, modalStyle.Render(body.String())))
	} else {
		c := newCanvas(m.width, rows)
		c.draw(m.sess.Scene(m.viewport()))
		b.WriteString(c.String())
	}
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	return b.String()
}

func (m Model) statusLine() string {
	if m.renaming {
		line := "Rename: " + m.input.View()
		if m.err != nil {
			line += "  " + errStyle.Render(m.err.Error())
		}
		return line
	}

	var parts []string
	switch st := m.sess.Status(); {
	case m.saving:
		parts = append(parts, m.spinner.View()+" saving")
	case st == session.StatusSaved:
		parts = append(parts, successStyle.Render(string(st)))
	default:
		parts = append(parts, warnStyle.Render(string(st)))
	}
	parts = append(parts, dimStyle.Render(m.sess.InteractionState()))
	if m.err != nil {
		var verr *schema.ValidationError
		if errors.As(m.err, &verr) {
			parts = append(parts, warnStyle.Render(m.err.Error()))
		} else {
			parts = append(parts, errStyle.Render(m.err.Error()))
		}
	} else if m.message != "" {
		parts = append(parts, m.message)
	}
	return strings.Join(parts, "  ")
}
