package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Styling
var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#0a84ff")).
			Bold(true)

	botStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#30d158"))

	buttonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#3a3a3c")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#ff453a")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8e8e93"))
)

// Model defines the application state
type Model struct {
	client   *ApiClient
	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model
	lines    []string
	buttons  []Button
	state    string
	loading  bool
	error    string
	ready    bool
}

// Custom message types for the tea.Model
type turnMsg struct {
	result *TurnResult
	err    error
}

type resetMsg struct{ err error }

func initialModel(client *ApiClient) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ti := textinput.New()
	ti.Placeholder = "2 tavuk döner, bir de ayran"
	ti.Focus()
	ti.CharLimit = 280
	ti.Width = 60

	return Model{
		client:  client,
		input:   ti,
		spinner: s,
		state:   "IDLE",
		lines:   []string{infoStyle.Render(helpText)},
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink)
}

// Update handles UI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h := msg.Height - 8
		if h < 5 {
			h = 5
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, h)
			m.ready = true
		} else {
			m.viewport.Width, m.viewport.Height = msg.Width-4, h
		}
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			line := m.input.Value()
			m.input.SetValue("")
			act, err := parseInput(line, m.buttons)
			if err != nil {
				m.error = err.Error()
				return m, nil
			}
			m.error = ""
			switch {
			case act.quit:
				return m, tea.Quit
			case act.help:
				m.append(infoStyle.Render(helpText))
				return m, nil
			case act.reset:
				m.loading = true
				return m, resetConversation(m.client)
			case act.payment != nil:
				m.loading = true
				outcome := "declined"
				if act.payment.success {
					outcome = "succeeded"
				}
				m.append(infoStyle.Render("[payment " + outcome + "]"))
				return m, reportPayment(m.client, act.payment.success)
			default:
				m.loading = true
				m.append(userStyle.Render("you: ") + describe(*act.event, m.buttons))
				return m, sendEvent(m.client, *act.event)
			}
		}

	case turnMsg:
		m.loading = false
		if msg.result != nil {
			m.showResult(msg.result)
		}
		if msg.err != nil {
			m.error = msg.err.Error()
		}

	case resetMsg:
		m.loading = false
		if msg.err != nil {
			m.error = msg.err.Error()
		} else {
			m.state = "IDLE"
			m.buttons = nil
			m.append(infoStyle.Render("[conversation reset]"))
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) showResult(res *TurnResult) {
	if res.NoOp {
		m.append(infoStyle.Render("[ignored]"))
		return
	}
	if res.State != "" {
		m.state = res.State
	}
	for _, r := range res.Replies {
		m.append(botStyle.Render("restaurant: ") + r.Text)
		if len(r.Buttons) > 0 {
			m.buttons = r.Buttons
			labels := make([]string, len(r.Buttons))
			for i, b := range r.Buttons {
				labels[i] = buttonStyle.Render(fmt.Sprintf("/%d %s", i+1, b.Title))
			}
			m.append("  " + strings.Join(labels, " "))
		}
	}
}

func (m *Model) append(line string) {
	m.lines = append(m.lines, line)
	m.refresh()
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

// View renders the UI
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("maitred · %s · %s", m.client.TenantID, m.state)))
	b.WriteString("\n\n")
	if m.ready {
		b.WriteString(m.viewport.View())
	} else {
		b.WriteString(strings.Join(m.lines, "\n"))
	}
	b.WriteString("\n\n")
	if m.loading {
		b.WriteString(m.spinner.View() + " ")
	}
	b.WriteString(m.input.View())
	if m.error != "" {
		b.WriteString("\n" + errorStyle.Render(m.error))
	}
	return docStyle.Render(b.String())
}

func describe(ev Event, buttons []Button) string {
	switch ev.Kind {
	case "button":
		for _, b := range buttons {
			if b.ID == ev.ButtonID {
				return "[" + b.Title + "]"
			}
		}
		return "[" + ev.ButtonID + "]"
	case "location":
		return fmt.Sprintf("[location %.4f, %.4f]", ev.Location.Lat, ev.Location.Lng)
	}
	return ev.Text
}

func sendEvent(client *ApiClient, ev Event) tea.Cmd {
	return func() tea.Msg {
		res, err := client.SendEvent(ev)
		return turnMsg{result: res, err: err}
	}
}

func reportPayment(client *ApiClient, success bool) tea.Cmd {
	return func() tea.Msg {
		res, err := client.ReportPayment(success)
		return turnMsg{result: res, err: err}
	}
}

func resetConversation(client *ApiClient) tea.Cmd {
	return func() tea.Msg {
		return resetMsg{err: client.Reset()}
	}
}

func main() {
	client := NewApiClient()
	if err := client.CheckHealth(); err != nil {
		fmt.Fprintf(os.Stderr, "API server at %s is not available: %v\n", client.BaseURL, err)
		os.Exit(1)
	}

	p := tea.NewProgram(initialModel(client), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}
