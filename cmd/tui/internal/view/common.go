package view

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/billy/internal/billing"
)

const dbTimeout = 5 * time.Second

type CommonModel struct {
	Width  int
	Height int
}

type BackMsg struct{}

func Back() tea.Msg {
	return BackMsg{}
}

// Session carries the operator the TUI acts as.
type Session struct {
	Actor billing.Actor
}

// Ctx returns a context bound to the operator with the standard timeout.
func (s Session) Ctx() (context.Context, context.CancelFunc) {
	ctx := billing.ContextWithActor(context.Background(), s.Actor)
	return context.WithTimeout(ctx, dbTimeout)
}

// FormatMoney formats an amount with two decimals.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatDate formats a time.Time into YYYY-MM-DD.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.Format(time.DateOnly)
}

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

func activeStyle(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Render(s)
}

func resultView(err error, msg string) string {
	style := lipgloss.NewStyle().Padding(2)
	if err != nil {
		return style.Render(errorStyle.Render(fmt.Sprintf("Error: %v", err)) + "\n\n(Esc to go back)")
	}

	return style.Render(successStyle.Render(msg) + "\n\n(Esc to go back)")
}
