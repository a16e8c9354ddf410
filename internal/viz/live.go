package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/mpctrack/internal/geom"
	"github.com/san-kum/mpctrack/internal/mpc"
	"github.com/san-kum/mpctrack/internal/sim"
	"github.com/san-kum/mpctrack/internal/track"
)

const (
	width           = 72
	height          = 22
	historyCapacity = 600
)

type StepMsg sim.Step

// DoneMsg reports the end of the simulation feeding the view.
type DoneMsg struct {
	Result *sim.Result
	Err    error
}

// Live follows a simulation that publishes its steps on a channel. The
// channel should be unbuffered: a frozen view stops reading, which holds
// the simulation at its next step.
type Live struct {
	title string
	steps <-chan sim.Step
	done  <-chan DoneMsg
	m     *Map

	last          sim.Step
	seen          bool
	trail         []geom.Point
	cte, speed    []float64
	counts        map[mpc.Status]int
	fallbacks     int
	frozen        bool
	waiting       bool
	showPredicted bool

	finished bool
	result   *sim.Result
	err      error
}

func NewLive(title string, trk *track.Track, steps <-chan sim.Step, done <-chan DoneMsg) Live {
	return Live{
		title:         title,
		steps:         steps,
		done:          done,
		m:             NewMap(trk, width, height),
		trail:         make([]geom.Point, 0, historyCapacity),
		counts:        make(map[mpc.Status]int),
		showPredicted: true,
	}
}

func waitStep(ch <-chan sim.Step) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return nil
		}
		return StepMsg(st)
	}
}

func waitDone(ch <-chan DoneMsg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return DoneMsg{}
		}
		return msg
	}
}

func (m Live) Init() tea.Cmd {
	return tea.Batch(waitStep(m.steps), waitDone(m.done))
}

func (m Live) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.frozen = !m.frozen
			if !m.frozen && !m.waiting && !m.finished {
				m.waiting = true
				return m, waitStep(m.steps)
			}
		case "p":
			m.showPredicted = !m.showPredicted
		}
	case StepMsg:
		m.apply(sim.Step(msg))
		if m.frozen {
			m.waiting = false
			return m, nil
		}
		m.waiting = true
		return m, waitStep(m.steps)
	case DoneMsg:
		m.finished = true
		m.result, m.err = msg.Result, msg.Err
	}
	return m, nil
}

func push(buf []float64, v float64) []float64 {
	buf = append(buf, v)
	if len(buf) > historyCapacity {
		buf = buf[len(buf)-historyCapacity:]
	}
	return buf
}

func (m *Live) apply(st sim.Step) {
	m.last = st
	m.seen = true
	m.trail = append(m.trail, geom.Point{X: st.Pose.X, Y: st.Pose.Y})
	if len(m.trail) > historyCapacity {
		m.trail = m.trail[len(m.trail)-historyCapacity:]
	}
	m.cte = push(m.cte, st.CTE)
	m.speed = push(m.speed, st.Speed)
	m.counts[st.Status]++
	if st.Fallback {
		m.fallbacks++
	}
}

// Result is the simulation outcome once DoneMsg has arrived.
func (m Live) Result() (*sim.Result, error) { return m.result, m.err }

func (m Live) View() string {
	var predicted []geom.Point
	if m.showPredicted {
		predicted = m.last.Predicted
	}
	canvasView := canvasStyle.Render(m.m.Render(m.trail, predicted))

	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.title)) + "\n")

	switch {
	case m.finished && m.err != nil:
		s.WriteString(StatusInfeasible.Render("FAILED: "+m.err.Error()) + "\n\n")
	case m.finished:
		s.WriteString(StatusConverged.Render("FINISHED") + "\n\n")
	case m.frozen:
		s.WriteString(StatusDegraded.Render("FROZEN") + "\n\n")
	default:
		s.WriteString("RUNNING\n\n")
	}

	if len(m.speed) > 1 {
		chart := asciigraph.Plot(m.speed, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Speed"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}
	abs := make([]float64, len(m.cte))
	for i, v := range m.cte {
		abs[i] = max(v, -v)
	}
	s.WriteString(labelStyle.Render("|CTE|") + Sparkline(abs, 30) + "\n\n")

	if m.seen {
		st := m.last
		row := func(label, value string) {
			s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
		}
		row("Time", fmt.Sprintf("%.1fs", st.Time))
		row("Speed", fmt.Sprintf("%.2f m/s", st.Speed))
		row("CTE", fmt.Sprintf("%+.3f m", st.CTE))
		row("EPsi", fmt.Sprintf("%+.3f rad", st.EPsi))
		row("Steer", fmt.Sprintf("%+.3f rad", st.Command.Steer))
		row("Accel", fmt.Sprintf("%+.2f", st.Command.Accel))
		row("Cost", fmt.Sprintf("%.1f", st.Cost))
		row("Solve", st.SolveTime.String())
		s.WriteString(labelStyle.Render("Status") + StatusStyle(st.Status).Render(st.Status.String()) + "\n")
		row("Outcomes", fmt.Sprintf("%d ok %d slow %d bad %d fb",
			m.counts[mpc.Converged], m.counts[mpc.Degraded], m.counts[mpc.Infeasible], m.fallbacks))
	}

	s.WriteString(helpStyle.Render("─────────────────────\nSP:Freeze P:Predicted Q:Quit"))
	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
}
