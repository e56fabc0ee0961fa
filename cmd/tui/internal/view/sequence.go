package view

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/billy/internal/billing"
)

type sequenceFields struct {
	docType billing.DocumentType
	year    string
}

// SequenceModel allocates a document number.
type SequenceModel struct {
	CommonModel
	svc     *billing.Service
	session Session

	form   *huh.Form
	fields *sequenceFields

	submitting bool
	done       bool
	number     string
	err        error
}

func NewSequenceModel(svc *billing.Service, session Session) SequenceModel {
	fields := &sequenceFields{docType: billing.DocInvoice}

	options := make([]huh.Option[billing.DocumentType], 0, len(billing.DocumentTypes()))
	for _, t := range billing.DocumentTypes() {
		options = append(options, huh.NewOption(fmt.Sprintf("%s (%s)", t, t.Prefix()), t))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[billing.DocumentType]().
				Key("type").
				Title("Document type").
				Options(options...).
				Value(&fields.docType),

			huh.NewInput().
				Key("year").
				Title("Year (blank for current)").
				Value(&fields.year).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return nil
					}

					if _, err := strconv.Atoi(strings.TrimSpace(s)); err != nil {
						return fmt.Errorf("year must be a number")
					}

					return nil
				}),
		),
	).WithWidth(50).WithShowHelp(false)

	return SequenceModel{svc: svc, session: session, form: form, fields: fields}
}

func (m SequenceModel) Title() string     { return "Allocate Number" }
func (m SequenceModel) ShortHelp() string { return "Enter: next | Esc: back" }

func (m SequenceModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m SequenceModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m, Back
		}

	case allocatedMsg:
		m.done = true
		m.number = msg.number
		m.err = msg.err

		return m, nil
	}

	if m.done || m.submitting {
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	m.submitting = true

	return m, m.allocateCmd()
}

func (m SequenceModel) View() string {
	if m.submitting && !m.done {
		return lipgloss.NewStyle().Padding(2).Render("Allocating...")
	}

	if m.done {
		return resultView(m.err, "Allocated "+m.number)
	}

	return lipgloss.NewStyle().Padding(1).Render(m.form.View())
}

type allocatedMsg struct {
	number string
	err    error
}

func (m SequenceModel) allocateCmd() tea.Cmd {
	docType := m.fields.docType
	year, _ := strconv.Atoi(strings.TrimSpace(m.fields.year))

	return func() tea.Msg {
		ctx, cancel := m.session.Ctx()
		defer cancel()

		number, err := m.svc.AllocateNumber(ctx, docType, year)

		return allocatedMsg{number: number, err: err}
	}
}
