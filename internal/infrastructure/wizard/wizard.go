package wizard

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/felixgeelhaar/covstatus/internal/application"
	"github.com/felixgeelhaar/covstatus/internal/domain"
)

type (
	wizardState int

	initWizardModel struct {
		state     wizardState
		cfg       application.Config
		cursor    int
		confirmed bool
		aborted   bool
		err       string
	}
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2563EB"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#16A34A")).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#DC2626"))
	hintStyle     = lipgloss.NewStyle().Faint(true)
)

const (
	stateIntro wizardState = iota
	stateEdit
	stateConfirm
)

// editable rows, in display order
const (
	rowYellow = iota
	rowGreen
	rowNegativeIsRed
	rowAggregates
	rowCommentMode
	rowPlainGreen
	rowCount
)

func Run(cfg application.Config, stdout io.Writer, stdin io.Reader) (application.Config, bool, error) {
	return runInitWizard(cfg, stdout, stdin)
}

func runInitWizard(cfg application.Config, stdout io.Writer, stdin io.Reader) (application.Config, bool, error) {
	model := newInitWizardModel(cfg)
	program := tea.NewProgram(model, tea.WithInput(stdin), tea.WithOutput(stdout))
	res, err := program.Run()
	if err != nil {
		return cfg, false, err
	}
	finalModel, ok := res.(*initWizardModel)
	if !ok {
		return cfg, false, fmt.Errorf("unexpected wizard state")
	}
	if finalModel.aborted || !finalModel.confirmed {
		return cfg, false, nil
	}
	return finalModel.cfg, true, nil
}

func newInitWizardModel(cfg application.Config) *initWizardModel {
	if cfg.Thresholds.Yellow == 0 && cfg.Thresholds.Green == 0 {
		cfg.Thresholds = domain.DefaultThresholds()
	}
	if cfg.Comment.Mode == "" {
		cfg.Comment.Mode = domain.CommentShields
	}
	return &initWizardModel{state: stateIntro, cfg: cfg}
}

func (m *initWizardModel) Init() tea.Cmd {
	return nil
}

func (m *initWizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.aborted = true
			return m, tea.Quit
		case "enter":
			switch m.state {
			case stateIntro:
				m.state = stateEdit
			case stateEdit:
				if err := m.cfg.Thresholds.Validate(); err != nil {
					m.err = err.Error()
					return m, nil
				}
				m.err = ""
				m.state = stateConfirm
			case stateConfirm:
				m.confirmed = true
				return m, tea.Quit
			}
		case "esc":
			if m.state == stateConfirm {
				m.state = stateEdit
			}
		case "up":
			if m.state == stateEdit {
				m.moveCursor(-1)
			}
		case "down":
			if m.state == stateEdit {
				m.moveCursor(1)
			}
		case "left", "-":
			if m.state == stateEdit {
				m.adjustSelection(-5)
			}
		case "right", "+":
			if m.state == stateEdit {
				m.adjustSelection(5)
			}
		case " ", "space":
			if m.state == stateEdit {
				m.adjustSelection(0)
			}
		}
	}
	return m, nil
}

func (m *initWizardModel) View() string {
	switch m.state {
	case stateIntro:
		return m.viewIntro()
	case stateEdit:
		return m.viewEdit()
	case stateConfirm:
		return m.viewConfirm()
	default:
		return ""
	}
}

func (m *initWizardModel) moveCursor(delta int) {
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= rowCount {
		m.cursor = rowCount - 1
	}
}

// adjustSelection moves a threshold by delta or flips a switch row.
func (m *initWizardModel) adjustSelection(delta int) {
	t := &m.cfg.Thresholds
	switch m.cursor {
	case rowYellow:
		t.Yellow = clamp(t.Yellow+delta, 0, 100)
	case rowGreen:
		t.Green = clamp(t.Green+delta, 0, 100)
	case rowNegativeIsRed:
		t.NegativeCoverageIsRed = !t.NegativeCoverageIsRed
	case rowAggregates:
		m.cfg.Aggregation.UseAggregates = !m.cfg.Aggregation.UseAggregates
	case rowCommentMode:
		if m.cfg.Comment.Mode == domain.CommentLocal {
			m.cfg.Comment.Mode = domain.CommentShields
		} else {
			m.cfg.Comment.Mode = domain.CommentLocal
		}
	case rowPlainGreen:
		m.cfg.Comment.PlainGreen = !m.cfg.Comment.PlainGreen
	}
}

func (m *initWizardModel) rows() []string {
	t := m.cfg.Thresholds
	return []string{
		fmt.Sprintf("Yellow from: %d%%", t.Yellow),
		fmt.Sprintf("Green from: %d%%", t.Green),
		fmt.Sprintf("Any decrease is red: %s", yesNo(t.NegativeCoverageIsRed)),
		fmt.Sprintf("Aggregation: %s", domain.PolicyFor(m.cfg.Aggregation.UseAggregates)),
		fmt.Sprintf("Comment icon: %s", m.cfg.Comment.Mode),
		fmt.Sprintf("Plain green color: %s", yesNo(m.cfg.Comment.PlainGreen)),
	}
}

func (m *initWizardModel) viewIntro() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n\n", titleStyle.Render("covstatus init wizard"))
	fmt.Fprintf(&b, "The wizard sets the color thresholds used for coverage status icons.\n\n")
	fmt.Fprintf(&b, "%s\n", hintStyle.Render("Press Enter to continue, or Ctrl+C to cancel."))
	return b.String()
}

func (m *initWizardModel) viewEdit() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n\n", titleStyle.Render("Review and adjust settings"))
	fmt.Fprintf(&b, "%s\n\n", hintStyle.Render("Use ↑/↓ to move, ←/→ or +/- to change values, space to toggle."))
	for idx, row := range m.rows() {
		if m.cursor == idx {
			fmt.Fprintf(&b, "%s\n", selectedStyle.Render("> "+row))
			continue
		}
		fmt.Fprintf(&b, "  %s\n", row)
	}
	if m.err != "" {
		fmt.Fprintf(&b, "\n%s\n", errorStyle.Render("! "+m.err))
	}
	fmt.Fprintf(&b, "\n%s\n", hintStyle.Render("Enter to continue, q to cancel."))
	return b.String()
}

func (m *initWizardModel) viewConfirm() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n\n", titleStyle.Render("Ready to write configuration"))
	for _, row := range m.rows() {
		fmt.Fprintf(&b, "  %s\n", row)
	}
	fmt.Fprintf(&b, "\n%s\n", hintStyle.Render("Press Enter to save, Esc to go back, q to cancel."))
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
