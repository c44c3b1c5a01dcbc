package tui

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/taskctl/internal/config"
	"github.com/san-kum/taskctl/internal/control"
	"github.com/san-kum/taskctl/internal/dynamo"
	"github.com/san-kum/taskctl/internal/experiment"
	"github.com/san-kum/taskctl/internal/models"
	"github.com/san-kum/taskctl/internal/sim"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
)

// tunables are edited on the config screen through dynamo.Configurable.
var tunables = []string{"Kp", "Kd", "Damping", "TargetX", "TargetY", "TargetZ"}

type state int

const (
	stateMenu state = iota
	stateConfig
	stateSim
)

type model struct {
	state    state
	cursor   int
	models   []string
	selected string
	base     *config.Config
	logger   *slog.Logger

	paramCursor int
	editing     bool
	editBuf     string

	exp     *experiment.Experiment
	ctrl    *control.Controller
	stepper *sim.Stepper

	running   bool
	paused    bool
	speed     float64
	trail     []r3.Vec
	history   []float64
	status    string
	err       error
	lastFrame time.Time
	fps       float64

	width  int
	height int
}

// NewInteractiveApp starts at the arm menu. base, when non-nil, supplies
// everything but the model; otherwise each arm's "reach" preset is used.
func NewInteractiveApp(base *config.Config, logger *slog.Logger) *model {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &model{
		state:   stateMenu,
		models:  models.Names(),
		base:    base,
		logger:  logger,
		speed:   1.0,
		trail:   make([]r3.Vec, 0, 100),
		history: make([]float64, 0, 120),
		width:   80,
		height:  24,
	}
}

func (m model) Init() tea.Cmd { return nil }

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(16*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		if m.state != stateSim {
			return m, nil
		}
		if m.running && !m.paused && m.stepper != nil {
			now := time.Now()
			if !m.lastFrame.IsZero() {
				if dt := now.Sub(m.lastFrame).Seconds(); dt > 0 {
					m.fps = 1.0 / dt
				}
			}
			m.lastFrame = now
			m.advance(m.stepsPerFrame())
		}
		if m.running {
			return m, tick()
		}
		return m, nil
	}
	return m, nil
}

// stepsPerFrame keeps simulated time near wall time at 60 frames a second.
func (m model) stepsPerFrame() int {
	dt := m.exp.Config().Dt
	return max(1, int(m.speed/(60*dt)+0.5))
}

func (m *model) advance(steps int) {
	for i := 0; i < steps; i++ {
		tk, err := m.stepper.Step()
		if err != nil {
			m.err = err
			m.running = false
			return
		}
		if tk.Reported {
			m.history = append(m.history, tk.Report.TaskError)
			if len(m.history) > 120 {
				m.history = m.history[1:]
			}
		}
	}
	if segs, err := m.exp.Plant().Skeleton(m.stepper.State()); err == nil {
		m.trail = append(m.trail, segs[len(segs)-1].To)
		if len(m.trail) > 60 {
			m.trail = m.trail[1:]
		}
	}
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	switch m.state {
	case stateMenu:
		return m.menuKey(msg)
	case stateConfig:
		return m.configKey(msg)
	case stateSim:
		return m.simKey(msg)
	}
	return m, nil
}

func (m model) menuKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.models)-1 {
			m.cursor++
		}
	case "enter", " ":
		m.selected = m.models[m.cursor]
		if err := m.build(); err != nil {
			m.err = err
			return m, nil
		}
		m.state = stateConfig
		m.paramCursor = 0
	}
	return m, nil
}

func (m *model) build() error {
	var cfg *config.Config
	if m.base != nil {
		cfg = m.base.Clone()
		cfg.Model = m.selected
		cfg.InitState = config.InitStateConfig{}
		cfg.TorqueLimits = nil
		cfg.ControllerParams.Target = nil
		cfg.ControllerParams.Secondary.Target = nil
	} else {
		cfg = config.GetPreset(m.selected, "reach")
	}
	cfg.Controller = config.ControllerTaskSpace

	exp, err := experiment.New(cfg, experiment.WithLogger(m.logger))
	if err != nil {
		return err
	}
	m.exp, m.ctrl, m.err = exp, exp.Controller(), nil
	return nil
}

func (m model) configKey(msg tea.KeyMsg) (model, tea.Cmd) {
	var params dynamo.Configurable = m.ctrl
	name := tunables[m.paramCursor]

	if m.editing {
		switch msg.String() {
		case "enter":
			v, err := strconv.ParseFloat(m.editBuf, 64)
			if err == nil {
				err = params.SetParam(name, v)
			}
			m.err = err
			m.editing = false
			m.editBuf = ""
		case "esc":
			m.editing = false
			m.editBuf = ""
		case "backspace":
			if len(m.editBuf) > 0 {
				m.editBuf = m.editBuf[:len(m.editBuf)-1]
			}
		default:
			if s := msg.String(); len(s) == 1 && strings.ContainsAny(s, "0123456789.-e") {
				m.editBuf += s
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "esc":
		m.state = stateMenu
		m.exp, m.ctrl = nil, nil
	case "up", "k":
		if m.paramCursor > 0 {
			m.paramCursor--
		}
	case "down", "j":
		if m.paramCursor < len(tunables)-1 {
			m.paramCursor++
		}
	case "enter", " ":
		m.editing = true
		m.editBuf = strconv.FormatFloat(params.GetParams()[name], 'g', -1, 64)
	case "left", "h", "right", "l":
		step := 0.1 * math.Max(1, math.Abs(params.GetParams()[name]))
		if strings.HasPrefix(name, "Target") {
			step = control.TargetIncrement
		}
		if s := msg.String(); s == "left" || s == "h" {
			step = -step
		}
		m.err = params.SetParam(name, params.GetParams()[name]+step)
	case "s":
		if err := m.start(); err != nil {
			m.err = err
			return m, nil
		}
		m.state = stateSim
		return m, tea.Batch(tea.ClearScreen, tick())
	}
	return m, nil
}

// simKey handles the live controls: arrows move the target in x and z,
// page up and down move it in y.
func (m model) simKey(msg tea.KeyMsg) (model, tea.Cmd) {
	move := func(axis control.Axis, delta float64) {
		p, err := m.ctrl.MoveTarget(axis, delta)
		m.err = err
		m.status = fmt.Sprintf("target %s", formatVec(p))
	}
	switch msg.String() {
	case "q", "esc":
		m.running = false
		m.state = stateMenu
		m.reset()
		return m, tea.ClearScreen
	case "right":
		move(control.AxisX, control.TargetIncrement)
	case "left":
		move(control.AxisX, -control.TargetIncrement)
	case "up":
		move(control.AxisZ, control.TargetIncrement)
	case "down":
		move(control.AxisZ, -control.TargetIncrement)
	case "pgup":
		move(control.AxisY, control.TargetIncrement)
	case "pgdown":
		move(control.AxisY, -control.TargetIncrement)
	case "g":
		m.status = "gravity compensation " + onOff(m.ctrl.ToggleGravityCompensation())
	case "t":
		m.status = "task " + onOff(m.ctrl.ToggleTask())
	case "s":
		m.status = "forearm task " + onOff(m.ctrl.ToggleSecondary())
	case " ", "p":
		m.paused = !m.paused
	case "r":
		if err := m.start(); err != nil {
			m.err = err
		}
		return m, tea.ClearScreen
	case "c":
		m.running = false
		m.state = stateConfig
		return m, tea.ClearScreen
	case "+", "=":
		m.speed = math.Min(m.speed*2, 8)
	case "-", "_":
		m.speed = math.Max(m.speed/2, 0.125)
	case "0":
		m.speed = 1.0
	}
	return m, nil
}

func (m *model) start() error {
	st, err := m.exp.Stepper()
	if err != nil {
		return err
	}
	m.stepper = st
	m.trail = m.trail[:0]
	m.history = m.history[:0]
	m.lastFrame = time.Time{}
	m.status, m.err = "", nil
	m.running, m.paused = true, false
	return nil
}

func (m *model) reset() {
	m.exp, m.ctrl, m.stepper = nil, nil, nil
	m.trail = m.trail[:0]
	m.history = m.history[:0]
	m.status = ""
}

func (m model) View() string {
	switch m.state {
	case stateMenu:
		return m.viewMenu()
	case stateConfig:
		return m.viewConfig()
	case stateSim:
		return m.viewSim()
	}
	return ""
}

func (m model) viewMenu() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n")
	b.WriteString("           " + cyan.Render("t a s k c t l") + "\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n")
	b.WriteString("\n")

	for i, name := range m.models {
		desc := ""
		if arm, err := models.Lookup(name); err == nil {
			desc = arm.Description
		}
		if i == m.cursor {
			b.WriteString("      " + cyan.Render("▸ ") + white.Render(fmt.Sprintf("%-12s", name)) + dim.Render(desc) + "\n")
		} else {
			b.WriteString("        " + dim.Render(fmt.Sprintf("%-12s", name)) + dimmer.Render(desc) + "\n")
		}
	}

	b.WriteString("\n")
	if m.err != nil {
		b.WriteString("      " + red.Render(m.err.Error()) + "\n\n")
	}
	b.WriteString(dim.Render("      ↑↓ select   enter choose   q quit") + "\n")
	return b.String()
}

func (m model) viewConfig() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString("      " + cyan.Render(m.selected) + "  " + dim.Render(m.exp.Arm().Description) + "\n")
	b.WriteString(dimmer.Render("      "+strings.Repeat("─", 30)) + "\n\n")

	params := m.ctrl.GetParams()
	for i, name := range tunables {
		val := fmt.Sprintf("%8.3f", params[name])
		if m.editing && i == m.paramCursor {
			val = fmt.Sprintf("%8s", m.editBuf+"▋")
		}
		if i == m.paramCursor {
			b.WriteString("      " + cyan.Render("▸ ") + white.Render(fmt.Sprintf("%-10s", name)) + magenta.Render(val) + "\n")
		} else {
			b.WriteString("        " + dim.Render(fmt.Sprintf("%-10s", name)) + dim.Render(val) + "\n")
		}
	}

	b.WriteString("\n")
	if m.err != nil {
		b.WriteString("      " + red.Render(m.err.Error()) + "\n\n")
	}
	b.WriteString(dim.Render("      ↑↓ select  ←→ adjust  enter edit  s start  esc back") + "\n")
	return b.String()
}

func (m model) viewSim() string {
	cw := max(m.width-6, 50)
	ch := max(m.height-14, 12)

	st := m.stepper.State()
	settings := m.ctrl.Settings()
	segs, err := m.exp.Plant().Skeleton(st)

	var b strings.Builder
	statusIcon, statusText := green.Render("●"), green.Render("running")
	switch {
	case m.err != nil:
		statusIcon, statusText = red.Render("✕"), red.Render("stopped")
	case m.paused:
		statusIcon, statusText = yellow.Render("○"), yellow.Render("paused")
	}
	fmt.Fprintf(&b, "\n   %s %s  %s  %s  %s\n\n",
		statusIcon, cyan.Render(m.selected), statusText,
		dim.Render(fmt.Sprintf("t=%.2fs ×%.3g", m.stepper.Time(), m.speed)),
		dim.Render(fmt.Sprintf("%.0ffps", m.fps)))

	if err == nil {
		c := newCanvas(cw, ch, armReach(segs, settings.Target))
		c.ground()
		for i, p := range m.trail {
			if i < len(m.trail)/2 {
				c.mark(p, '·')
			} else {
				c.mark(p, '•')
			}
		}
		c.drawArm(segs)
		if settings.SecondaryEnabled {
			c.mark(settings.SecondaryTarget, '+')
		}
		c.mark(settings.Target, '✕')
		for _, row := range strings.Split(c.String(), "\n") {
			b.WriteString("   " + row + "\n")
		}
	}

	rep := m.ctrl.LastReport()
	fmt.Fprintf(&b, "\n   %s %s  %s %s  %s %s\n",
		dim.Render("target"), white.Render(formatVec(settings.Target)),
		dim.Render("error"), white.Render(fmt.Sprintf("%.4f m", rep.TaskError)),
		dim.Render("model/sensor"), white.Render(fmt.Sprintf("%.2g m", rep.Mismatch)))
	fmt.Fprintf(&b, "   %s %s  %s %s  %s %s  %s %s\n",
		dim.Render("task"), flag(settings.TrackTarget),
		dim.Render("gravity"), flag(settings.CompensateGravity),
		dim.Render("forearm"), flag(settings.SecondaryEnabled),
		dim.Render("saturated"), white.Render(strconv.Itoa(rep.Saturated)))
	if rep.Regularized {
		b.WriteString("   " + yellow.Render("task-space inertia regularized") + "\n")
	}
	if len(m.history) > 1 {
		fmt.Fprintf(&b, "   %s %s\n", dim.Render("error"), cyan.Render(sparkline(m.history, 40)))
	}
	if m.err != nil {
		b.WriteString("   " + red.Render(m.err.Error()) + "\n")
	} else if m.status != "" {
		b.WriteString("   " + magenta.Render(m.status) + "\n")
	}

	b.WriteString("\n" + dim.Render("   ←→ x  ↑↓ z  pgup/pgdn y  g gravity  t task  s forearm  space pause  ±speed  r reset  c config  esc quit") + "\n")
	return b.String()
}

func sparkline(data []float64, width int) string {
	if len(data) == 0 {
		return ""
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		minVal, maxVal = math.Min(minVal, v), math.Max(maxVal, v)
	}
	rang := maxVal - minVal
	if rang == 0 {
		rang = 1
	}
	step := max(len(data)/width, 1)
	var sb strings.Builder
	for i := 0; i < width && i*step < len(data); i++ {
		idx := int((data[i*step] - minVal) / rang * 7)
		sb.WriteRune(chars[min(max(idx, 0), 7)])
	}
	return sb.String()
}

func formatVec(p r3.Vec) string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", p.X, p.Y, p.Z)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func flag(on bool) string {
	if on {
		return green.Render("on")
	}
	return dimmer.Render("off")
}

// RunInteractive opens the full-screen controller. base may be nil.
func RunInteractive(base *config.Config, logger *slog.Logger) error {
	p := tea.NewProgram(NewInteractiveApp(base, logger), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
