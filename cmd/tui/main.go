package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/billy/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/billy/internal/app"
	"github.com/MrJamesThe3rd/billy/internal/billing"
	"github.com/MrJamesThe3rd/billy/internal/config"
	"github.com/MrJamesThe3rd/billy/internal/importer"
)

type model struct {
	billing       *billing.Service
	importService *importer.Service
	session       view.Session
	appName       string

	currentView View

	sequenceView view.SequenceModel
	createView   view.CreateModel
	invoicesView view.InvoicesModel
}

type View int

const (
	ViewMenu     View = 0
	ViewSequence View = 1
	ViewCreate   View = 2
	ViewInvoices View = 3
)

func initialModel(a *app.App) model {
	return model{
		billing:       a.Billing,
		importService: importer.NewService(),
		session:       view.Session{Actor: a.Operator()},
		appName:       a.Config.App.Name,
		currentView:   ViewMenu,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		if m.currentView == ViewMenu {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewSequence
				m.sequenceView = view.NewSequenceModel(m.billing, m.session)

				return m, m.sequenceView.Init()
			case "2":
				m.currentView = ViewCreate
				m.createView = view.NewCreateModel(m.billing, m.importService, m.session)

				return m, m.createView.Init()
			case "3":
				m.currentView = ViewInvoices
				m.invoicesView = view.NewInvoicesModel(m.billing, m.session)

				return m, m.invoicesView.Init()
			}
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	switch m.currentView {
	case ViewSequence:
		var newModel tea.Model
		newModel, cmd = m.sequenceView.Update(msg)
		m.sequenceView = newModel.(view.SequenceModel)
	case ViewCreate:
		var newModel tea.Model
		newModel, cmd = m.createView.Update(msg)
		m.createView = newModel.(view.CreateModel)
	case ViewInvoices:
		var newModel tea.Model
		newModel, cmd = m.invoicesView.Update(msg)
		m.invoicesView = newModel.(view.InvoicesModel)
	}

	return m, cmd
}

func (m model) View() string {
	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(
			m.appName + " TUI (" + m.session.Actor.ID + ")\n\n" +
				"1. Allocate Document Number\n" +
				"2. New Invoice & Payment\n" +
				"3. Invoices\n\n" +
				"q. Quit",
		)
	case ViewSequence:
		return withHelp(m.sequenceView.View(), m.sequenceView.ShortHelp())
	case ViewCreate:
		return withHelp(m.createView.View(), m.createView.ShortHelp())
	case ViewInvoices:
		return withHelp(m.invoicesView.View(), m.invoicesView.ShortHelp())
	}

	return "Unknown View"
}

func withHelp(body, help string) string {
	return body + "\n" + lipgloss.NewStyle().Faint(true).PaddingLeft(2).Render(help)
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Log to a file so the terminal UI is not overwritten.
	logFile, err := tea.LogToFile("billy-tui.log", "")
	if err != nil {
		slog.Error("failed to open log file", "error", err)
		os.Exit(1)
	}
	defer logFile.Close()

	logger := slog.New(slog.NewTextHandler(logFile, nil))

	a, err := app.Open(context.Background(), cfg, logger)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}

	p := tea.NewProgram(initialModel(a))
	_, runErr := p.Run()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.Close(ctx); err != nil {
		logger.Error("failed to close", "error", err)
	}

	if runErr != nil {
		slog.Error("failed to run TUI", "error", runErr)
		os.Exit(1)
	}
}
