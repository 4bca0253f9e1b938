package interaction

import "github.com/reloquent/schemacanvas/internal/geometry"

// Wheel zoom factors.
const (
	WheelZoomIn  = 1.1
	WheelZoomOut = 0.9
)

// View is the read-only canvas state the machine needs to classify a gesture.
type View interface {
	Transform() geometry.Transform
	EntityPosition(id string) (geometry.Point, bool)
}

// Machine holds the interaction state and the connection mode toggle.
type Machine struct {
	state          State
	connectionMode bool
}

// NewMachine returns a machine in Idle with connection mode off.
func NewMachine() *Machine {
	return &Machine{state: Idle{}}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// ConnectionMode reports whether the sticky toggle is on.
func (m *Machine) ConnectionMode() bool { return m.connectionMode }

// Source returns the selected connection source, or "".
func (m *Machine) Source() string {
	if c, ok := m.state.(Connecting); ok {
		return c.SourceID
	}
	return ""
}

// Pending reports whether a resolver prompt is open.
func (m *Machine) Pending() bool {
	c, ok := m.state.(Connecting)
	return ok && c.Pending()
}

// Reset returns to the rest state, dropping any gesture without intents.
func (m *Machine) Reset() {
	m.connectionMode = false
	m.state = Idle{}
}

func (m *Machine) rest() State {
	if m.connectionMode {
		return Connecting{}
	}
	return Idle{}
}

// PointerDown routes a press by its hit target.
func (m *Machine) PointerDown(hit Hit, screen geometry.Point, v View) []Intent {
	switch s := m.state.(type) {
	case Idle:
		return m.beginGesture(hit, screen, v)
	case Connecting:
		return m.pressConnecting(s, hit)
	default:
		// A press without a release: finish the stale gesture first.
		out := m.release()
		return append(out, m.PointerDown(hit, screen, v)...)
	}
}

func (m *Machine) beginGesture(hit Hit, screen geometry.Point, v View) []Intent {
	t := v.Transform()
	switch h := hit.(type) {
	case HitEntity:
		pos, ok := v.EntityPosition(h.ID)
		if !ok {
			return nil
		}
		world := geometry.ScreenToWorld(screen, t)
		m.state = DraggingEntity{
			EntityID:   h.ID,
			GrabOffset: world.Sub(pos),
			Start:      pos,
			Last:       pos,
		}
		return []Intent{SelectEntity{EntityID: h.ID}}
	default:
		m.state = Panning{Origin: screen, StartPan: t.Pan}
		return []Intent{ClearSelection{}}
	}
}

func (m *Machine) pressConnecting(s Connecting, hit Hit) []Intent {
	if s.Pending() {
		return nil
	}
	h, ok := hit.(HitEntity)
	if !ok {
		if s.SourceID == "" {
			return nil
		}
		m.state = Connecting{}
		return []Intent{SourceSelected{}}
	}
	switch s.SourceID {
	case "":
		m.state = Connecting{SourceID: h.ID}
		return []Intent{SourceSelected{EntityID: h.ID}}
	case h.ID:
		m.state = Connecting{}
		return []Intent{SourceSelected{}}
	default:
		m.state = Connecting{SourceID: s.SourceID, TargetID: h.ID}
		return []Intent{ConnectionRequested{SourceID: s.SourceID, TargetID: h.ID}}
	}
}

// PointerMove continues the active gesture.
func (m *Machine) PointerMove(screen geometry.Point, v View) []Intent {
	switch s := m.state.(type) {
	case Panning:
		pan := s.StartPan.Add(screen.Sub(s.Origin))
		return []Intent{PanTo{Pan: pan}}
	case DraggingEntity:
		world := geometry.ScreenToWorld(screen, v.Transform())
		pos := world.Sub(s.GrabOffset)
		if pos == s.Last {
			return nil
		}
		s.Last = pos
		s.Moved = true
		m.state = s
		return []Intent{MoveEntity{EntityID: s.EntityID, Position: pos}}
	}
	return nil
}

// PointerUp ends panning or dragging. Connection mode state survives.
func (m *Machine) PointerUp(geometry.Point) []Intent {
	return m.release()
}

// PointerCancel is a release observed outside the canvas. It ends the
// gesture the same way PointerUp does.
func (m *Machine) PointerCancel() []Intent {
	return m.release()
}

func (m *Machine) release() []Intent {
	switch s := m.state.(type) {
	case Panning:
		m.state = m.rest()
	case DraggingEntity:
		m.state = m.rest()
		if s.Moved && s.Last != s.Start {
			return []Intent{MoveCommitted{EntityID: s.EntityID, From: s.Start, To: s.Last}}
		}
	}
	return nil
}

// Wheel zooms without touching the interaction state.
func (m *Machine) Wheel(deltaY float64) []Intent {
	switch {
	case deltaY < 0:
		return []Intent{ZoomBy{Factor: WheelZoomIn}}
	case deltaY > 0:
		return []Intent{ZoomBy{Factor: WheelZoomOut}}
	}
	return nil
}

// ToggleConnectionMode flips the sticky toggle. A gesture in progress keeps
// running and lands in the new rest state when released.
func (m *Machine) ToggleConnectionMode() []Intent {
	m.connectionMode = !m.connectionMode
	out := []Intent{ConnectionModeChanged{Enabled: m.connectionMode}}
	switch s := m.state.(type) {
	case Idle:
		if m.connectionMode {
			m.state = Connecting{}
		}
	case Connecting:
		m.state = Idle{}
		if s.SourceID != "" {
			out = append(out, SourceSelected{})
		}
	}
	return out
}

// ResolveConnection closes a confirmed prompt. The source is cleared and
// connection mode stays as it was.
func (m *Machine) ResolveConnection() []Intent {
	if !m.Pending() {
		return nil
	}
	m.state = Connecting{}
	return []Intent{SourceSelected{}}
}

// CancelConnection discards the pending pair and leaves connection mode.
func (m *Machine) CancelConnection() []Intent {
	c, ok := m.state.(Connecting)
	if !ok {
		return nil
	}
	m.connectionMode = false
	m.state = Idle{}
	out := []Intent{ConnectionModeChanged{Enabled: false}}
	if c.SourceID != "" {
		out = append(out, SourceSelected{})
	}
	return out
}

// Forget drops any reference to an entity that no longer exists. A drag of
// it ends without a commit; a connection pair involving it is cleared.
func (m *Machine) Forget(id string) []Intent {
	switch s := m.state.(type) {
	case DraggingEntity:
		if s.EntityID == id {
			m.state = m.rest()
		}
	case Connecting:
		if s.SourceID == id || s.TargetID == id {
			m.state = Connecting{}
			return []Intent{SourceSelected{}}
		}
	}
	return nil
}
