// Command sprinklerctl is a read-only bubbletea dashboard: it polls
// sprinklerd's ambient HTTP status/history surface and renders run mode,
// rain-delay state, the currently running zone and recent events. It has
// no control actions, so it can never race the daemon's own mutex (§6
// EXTERNAL INTERFACES, ADDED per SPEC_FULL.md — grounded on the teacher's
// TUI/ package, generalized from a portfolio dashboard to this domain's
// status snapshot).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const pollInterval = 2 * time.Second

func main() {
	apiURL := flag.String("api-url", "http://localhost:8080", "sprinklerd HTTP status surface")
	flag.Parse()

	m := newModel(*apiURL)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Println("sprinklerctl:", err)
	}
}

// status mirrors engine.Status's JSON shape without importing the engine
// package — sprinklerctl only ever talks to the daemon over HTTP, never
// in-process, matching §1's separation between the core and its external
// collaborators.
type status struct {
	Mode       string `json:"Mode"`
	On         bool   `json:"On"`
	RainDelay  struct {
		Enabled   bool          `json:"Enabled"`
		Active    bool          `json:"Active"`
		Remaining time.Duration `json:"Remaining"`
	} `json:"RainDelay"`
	Running struct {
		Active    bool   `json:"Active"`
		Zone      int    `json:"Zone"`
		Parent    string `json:"Parent"`
		Seconds   int    `json:"Seconds"`
		Remaining int    `json:"Remaining"`
	} `json:"Running"`
	QueueDepth int `json:"QueueDepth"`
	Calendars  []struct {
		Name    string    `json:"Name"`
		OK      bool      `json:"OK"`
		Updated time.Time `json:"Updated"`
	} `json:"Calendars"`
	Weather       adjusterStatus `json:"Weather"`
	WateringIndex adjusterStatus `json:"WateringIndex"`
}

type adjusterStatus struct {
	OK      bool      `json:"OK"`
	Updated time.Time `json:"Updated"`
}

type historyEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Zone      *int      `json:"zone,omitempty"`
	Program   *string   `json:"program,omitempty"`
}

type statusMsg struct {
	status status
	err    error
}

type historyMsg struct {
	entries []historyEntry
	err     error
}

type tickMsg time.Time

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	borderStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type model struct {
	apiURL  string
	client  *http.Client
	spinner spinner.Model

	loaded  bool
	status  status
	history []historyEntry
	err     error
}

func newModel(apiURL string) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return model{
		apiURL:  strings.TrimRight(apiURL, "/"),
		client:  &http.Client{Timeout: 3 * time.Second},
		spinner: s,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchStatus(), m.fetchHistory(), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) fetchStatus() tea.Cmd {
	return func() tea.Msg {
		var s status
		err := m.getJSON("/api/status", &s)
		return statusMsg{status: s, err: err}
	}
}

func (m model) fetchHistory() tea.Cmd {
	return func() tea.Msg {
		var entries []historyEntry
		err := m.getJSON("/api/history?limit=8", &entries)
		return historyMsg{entries: entries, err: err}
	}
}

func (m model) getJSON(path string, out interface{}) error {
	resp, err := m.client.Get(m.apiURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(m.fetchStatus(), m.fetchHistory(), tickCmd())
	case statusMsg:
		m.loaded = true
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.status = msg.status
		}
		return m, nil
	case historyMsg:
		if msg.err == nil {
			m.history = msg.entries
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("sprinklerctl") + labelStyle.Render("  "+m.apiURL) + "\n\n")

	if !m.loaded {
		b.WriteString(m.spinner.View() + " connecting...\n")
		return b.String()
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render("fetch failed: "+m.err.Error()) + "\n")
		return b.String()
	}

	s := m.status
	modeLine := labelStyle.Render("mode: ") + modeStyle(s.Mode).Render(strings.ToUpper(s.Mode))
	if !s.On {
		modeLine += labelStyle.Render("  (scheduler off, manual activation still works)")
	}
	b.WriteString(modeLine + "\n")

	rainLine := labelStyle.Render("rain delay: ")
	switch {
	case !s.RainDelay.Enabled:
		rainLine += labelStyle.Render("disabled")
	case s.RainDelay.Active:
		rainLine += warnStyle.Render(fmt.Sprintf("active, lifts in %s", s.RainDelay.Remaining.Round(time.Minute)))
	default:
		rainLine += okStyle.Render("armed, not active")
	}
	b.WriteString(rainLine + "\n")

	runLine := labelStyle.Render("running: ")
	if s.Running.Active {
		parent := s.Running.Parent
		if parent == "" {
			parent = "(manual)"
		}
		runLine += okStyle.Render(fmt.Sprintf("zone %d, %ds remaining, parent %s", s.Running.Zone, s.Running.Remaining, parent))
	} else {
		runLine += labelStyle.Render("idle")
	}
	b.WriteString(runLine + "\n")

	b.WriteString(labelStyle.Render(fmt.Sprintf("queue depth: %d\n", s.QueueDepth)))

	b.WriteString(labelStyle.Render(fmt.Sprintf(
		"weather: %s   watering index: %s\n",
		adjusterLine(s.Weather), adjusterLine(s.WateringIndex),
	)))

	if len(s.Calendars) > 0 {
		var cals []string
		for _, c := range s.Calendars {
			style := okStyle
			if !c.OK {
				style = errorStyle
			}
			cals = append(cals, style.Render(c.Name))
		}
		b.WriteString(labelStyle.Render("calendars: ") + strings.Join(cals, ", ") + "\n")
	}

	if len(m.history) > 0 {
		var lines []string
		for _, e := range m.history {
			line := e.Timestamp.Format("15:04:05") + "  " + e.Action
			if e.Zone != nil {
				line += fmt.Sprintf("  zone %d", *e.Zone)
			}
			if e.Program != nil {
				line += "  " + *e.Program
			}
			lines = append(lines, line)
		}
		b.WriteString("\n" + borderStyle.Render(labelStyle.Render("recent events")+"\n"+strings.Join(lines, "\n")) + "\n")
	}

	b.WriteString("\n" + labelStyle.Render("q to quit"))
	return b.String()
}

func adjusterLine(a adjusterStatus) string {
	if a.OK {
		return okStyle.Render("ok")
	}
	return errorStyle.Render("unavailable")
}

func modeStyle(mode string) lipgloss.Style {
	switch mode {
	case "running":
		return okStyle
	case "rainhold":
		return warnStyle
	case "off":
		return labelStyle
	default:
		return labelStyle
	}
}
