package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"symbion.dev/harness/internal/core/observation"
	"symbion.dev/harness/internal/infrastructure/bus"
	"symbion.dev/harness/internal/logging"
)

func newWatchCommand() *cobra.Command {
	var maxRows int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live view of bus traffic under the contract namespaces",
		Long: `Watch subscribes to the contract topic patterns and displays incoming
messages as they arrive, without starting any process. Useful while
developing a plugin against a running system. Press q to quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if v, _ := cmd.Flags().GetString("broker-host"); v != "" {
				cfg.BrokerHost = v
			}
			if v, _ := cmd.Flags().GetInt("broker-port"); v > 0 {
				cfg.BrokerPort = v
			}

			// The TUI owns the terminal, so the listener logs nowhere.
			obsLog := observation.NewLog()
			var program *tea.Program
			listener := bus.NewListener(obsLog, logging.Discard(),
				bus.WithTopicRoot(cfg.TopicRoot),
				bus.WithTap(func(o observation.Observation) {
					program.Send(observedMsg{o})
				}),
			)
			defer listener.Disconnect()

			model := newWatchModel(listener, cfg.BrokerHost, cfg.BrokerPort, cfg.ConnectTimeout(), maxRows)
			program = tea.NewProgram(model, tea.WithAltScreen())
			finalModel, err := program.Run()
			if err != nil {
				return fmt.Errorf("watch failed: %w", err)
			}
			if m, ok := finalModel.(watchModel); ok && m.err != nil {
				return m.err
			}
			return nil
		},
	}

	cmd.Flags().String("broker-host", "", "MQTT broker host")
	cmd.Flags().Int("broker-port", 0, "MQTT broker port")
	cmd.Flags().IntVar(&maxRows, "max-rows", 50, "Maximum number of messages kept on screen")

	return cmd
}

type observedMsg struct {
	obs observation.Observation
}

type connectedMsg struct{}

type connectErrMsg struct {
	err error
}

// watchModel is the Bubble Tea state for the live traffic view.
type watchModel struct {
	listener  *bus.Listener
	host      string
	port      int
	timeout   time.Duration
	maxRows   int
	connected bool
	rows      []observation.Observation
	total     int
	width     int
	err       error
}

func newWatchModel(listener *bus.Listener, host string, port int, timeout time.Duration, maxRows int) watchModel {
	return watchModel{
		listener: listener,
		host:     host,
		port:     port,
		timeout:  timeout,
		maxRows:  maxRows,
		width:    80,
	}
}

func (m watchModel) Init() tea.Cmd {
	return func() tea.Msg {
		if err := m.listener.Connect(m.host, m.port, m.timeout); err != nil {
			return connectErrMsg{err}
		}
		return connectedMsg{}
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case connectedMsg:
		m.connected = true
	case connectErrMsg:
		m.err = msg.err
		return m, tea.Quit
	case observedMsg:
		m.total++
		m.rows = append(m.rows, msg.obs)
		if len(m.rows) > m.maxRows {
			m.rows = m.rows[len(m.rows)-m.maxRows:]
		}
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("symbion bus  %s:%d", m.host, m.port)))
	if m.connected {
		b.WriteString(okStyle.Render("  connected"))
	} else {
		b.WriteString(warnStyle.Render("  connecting..."))
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d message(s)", m.total)) + "\n\n")

	for _, o := range m.rows {
		ts := o.ReceivedAt.Format("15:04:05.000")
		line := fmt.Sprintf("%s  %s  %s", dimStyle.Render(ts), headStyle.Render(o.Topic), string(o.Payload))
		b.WriteString(truncate(line, m.width) + "\n")
	}

	b.WriteString("\n" + dimStyle.Render("q to quit"))
	return b.String()
}

// truncate keeps long payload lines from wrapping more than once.
func truncate(s string, width int) string {
	if width <= 3 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width*2 {
		return s
	}
	return string(runes[:width*2]) + "..."
}
