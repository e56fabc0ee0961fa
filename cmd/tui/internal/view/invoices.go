package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/billy/internal/billing"
)

type invoicesState int

const (
	invoicesStateBrowse invoicesState = iota
	invoicesStateReceipts
	invoicesStatePayment
	invoicesStateConfirm
)

var statusFilters = []struct {
	label  string
	status *billing.InvoiceStatus
}{
	{label: "All"},
	{label: "Draft", status: new(billing.StatusDraft)},
	{label: "Partial", status: new(billing.StatusPartial)},
	{label: "Paid", status: new(billing.StatusPaid)},
}

type paymentFields struct {
	amount string
	method billing.PaymentMethod
}

// pendingDelete is what the confirm dialog will remove.
type pendingDelete struct {
	invoiceID int64
	receiptID int64
	label     string
	confirmed bool
}

// InvoicesModel browses invoices and their receipts, records further payments
// and runs the delete cascades.
type InvoicesModel struct {
	CommonModel
	svc     *billing.Service
	session Session

	state    invoicesState
	invoices table.Model
	receipts table.Model
	invs     []*billing.Invoice
	rcts     []*billing.Receipt
	current  *billing.Invoice

	form    *huh.Form
	payment *paymentFields
	pending *pendingDelete

	filterIdx int
	loading   bool
	err       error
	status    string
}

func newTable(columns []table.Column) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return t
}

func NewInvoicesModel(svc *billing.Service, session Session) InvoicesModel {
	return InvoicesModel{
		svc:     svc,
		session: session,
		invoices: newTable([]table.Column{
			{Title: "Number", Width: 16},
			{Title: "Issued", Width: 12},
			{Title: "Status", Width: 9},
			{Title: "Total", Width: 12},
			{Title: "Paid", Width: 12},
			{Title: "Due", Width: 12},
		}),
		receipts: newTable([]table.Column{
			{Title: "Number", Width: 16},
			{Title: "Payment", Width: 9},
			{Title: "Total", Width: 12},
			{Title: "Excess", Width: 12},
			{Title: "Handling", Width: 10},
		}),
		loading: true,
	}
}

func (m InvoicesModel) Title() string { return "Invoices" }

func (m InvoicesModel) ShortHelp() string {
	switch m.state {
	case invoicesStateReceipts:
		return "Esc: back | x: delete receipt"
	case invoicesStatePayment, invoicesStateConfirm:
		return "Navigate form | Esc: cancel"
	}

	return "Esc: back | Enter: receipts | p: payment | x: delete | s: status filter | r: refresh"
}

func (m InvoicesModel) Init() tea.Cmd {
	return m.loadInvoicesCmd()
}

func (m InvoicesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadInvoicesMsg:
		m.loading = false
		m.err = msg.err
		m.invs = msg.invs
		m.refreshInvoices()

		return m, nil

	case loadReceiptsMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}

		m.rcts = msg.rcts
		m.refreshReceipts()

		return m, nil

	case actionMsg:
		m.status = msg.text
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
		}

		m.form = nil
		m.pending = nil

		if msg.backToList || m.current == nil {
			m.state = invoicesStateBrowse
			m.invoices.Focus()

			return m, m.loadInvoicesCmd()
		}

		m.state = invoicesStateReceipts

		return m, tea.Batch(m.loadInvoicesCmd(), m.loadReceiptsCmd(m.current.ID))

	case tea.WindowSizeMsg:
		m.invoices.SetHeight(msg.Height - 10)
		m.receipts.SetHeight(msg.Height - 10)

		return m, nil
	}

	switch m.state {
	case invoicesStateBrowse:
		return m.updateBrowse(msg)
	case invoicesStateReceipts:
		return m.updateReceipts(msg)
	case invoicesStatePayment, invoicesStateConfirm:
		return m.updateForm(msg)
	}

	return m, nil
}

func (m InvoicesModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadInvoicesCmd()
		case "s":
			m.filterIdx = (m.filterIdx + 1) % len(statusFilters)
			return m, m.loadInvoicesCmd()
		case "enter":
			inv := m.selectedInvoice()
			if inv == nil {
				return m, nil
			}

			m.current = inv
			m.state = invoicesStateReceipts
			m.rcts = nil
			m.refreshReceipts()

			return m, m.loadReceiptsCmd(inv.ID)
		case "p":
			inv := m.selectedInvoice()
			if inv == nil {
				return m, nil
			}

			m.current = inv

			return m.enterPayment()
		case "x":
			inv := m.selectedInvoice()
			if inv == nil {
				return m, nil
			}

			m.current = nil

			return m.enterConfirm(&pendingDelete{
				invoiceID: inv.ID,
				label:     fmt.Sprintf("Delete invoice %s with all payments and receipts?", inv.Number),
			})
		}
	}

	var cmd tea.Cmd
	m.invoices, cmd = m.invoices.Update(msg)

	return m, cmd
}

func (m InvoicesModel) updateReceipts(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			m.state = invoicesStateBrowse
			m.current = nil
			m.invoices.Focus()

			return m, nil
		case "x":
			idx := m.receipts.Cursor()
			if idx < 0 || idx >= len(m.rcts) {
				return m, nil
			}

			rct := m.rcts[idx]

			return m.enterConfirm(&pendingDelete{
				receiptID: rct.ID,
				label:     fmt.Sprintf("Delete receipt %s and reverse its payment?", rct.Number),
			})
		}
	}

	var cmd tea.Cmd
	m.receipts, cmd = m.receipts.Update(msg)

	return m, cmd
}

func (m InvoicesModel) enterPayment() (tea.Model, tea.Cmd) {
	m.payment = &paymentFields{method: billing.MethodCash}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("amount").
				Title(fmt.Sprintf("Amount (due %s)", FormatMoney(m.current.BalanceDue))).
				Value(&m.payment.amount).
				Validate(validateAmount(true)),
			huh.NewSelect[billing.PaymentMethod]().
				Key("method").
				Title("Method").
				Options(huh.NewOptions(
					billing.MethodCash, billing.MethodBankTransfer, billing.MethodCard,
					billing.MethodMobileMoney, billing.MethodCheque, billing.MethodOther,
				)...).
				Value(&m.payment.method),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = invoicesStatePayment
	m.invoices.Blur()

	return m, m.form.Init()
}

func (m InvoicesModel) enterConfirm(p *pendingDelete) (tea.Model, tea.Cmd) {
	m.pending = p

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Key("confirm").
				Title(p.label).
				Affirmative("Delete").
				Negative("Cancel").
				Value(&p.confirmed),
		),
	).WithWidth(50).WithShowHelp(false)

	m.state = invoicesStateConfirm

	return m, m.form.Init()
}

func (m InvoicesModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		return m.closeForm()
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	if m.state == invoicesStatePayment {
		m.form = nil
		return m, m.recordPaymentCmd()
	}

	if !m.pending.confirmed {
		return m.closeForm()
	}

	m.form = nil

	return m, m.deleteCmd()
}

func (m InvoicesModel) closeForm() (tea.Model, tea.Cmd) {
	m.form = nil
	m.pending = nil

	if m.current != nil && m.state == invoicesStateConfirm {
		m.state = invoicesStateReceipts
		return m, nil
	}

	m.state = invoicesStateBrowse
	m.invoices.Focus()

	return m, nil
}

func (m InvoicesModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading invoices...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v", m.err))
	}

	var content string

	switch {
	case m.state == invoicesStateReceipts || (m.state == invoicesStateConfirm && m.current != nil):
		content = m.receiptsView()
	default:
		header := fmt.Sprintf("Filter: [s] Status: %s", activeStyle(statusFilters[m.filterIdx].label))

		content = lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.NewStyle().PaddingBottom(1).Render(header),
			boxed(m.invoices.View()),
		)
	}

	if m.form != nil {
		panel := lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Width(52).
			Render(m.form.View())

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	if m.status != "" {
		content = faintStyle.Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m InvoicesModel) receiptsView() string {
	inv := m.current

	header := fmt.Sprintf("Invoice %s  total %s  paid %s  due %s  [%s]",
		inv.Number,
		FormatMoney(inv.TotalAmount),
		FormatMoney(inv.PaidAmount),
		FormatMoney(inv.BalanceDue),
		activeStyle(string(inv.Status)),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		boxed(m.receipts.View()),
	)
}

func boxed(s string) string {
	return lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(s)
}

func (m InvoicesModel) selectedInvoice() *billing.Invoice {
	idx := m.invoices.Cursor()
	if idx < 0 || idx >= len(m.invs) {
		return nil
	}

	return m.invs[idx]
}

func (m *InvoicesModel) refreshInvoices() {
	rows := make([]table.Row, 0, len(m.invs))
	for _, inv := range m.invs {
		rows = append(rows, table.Row{
			inv.Number,
			FormatDate(inv.IssueDate),
			string(inv.Status),
			FormatMoney(inv.TotalAmount),
			FormatMoney(inv.PaidAmount),
			FormatMoney(inv.BalanceDue),
		})
	}

	m.invoices.SetRows(rows)

	// Keep the header of the receipts screen in step with the reloaded row.
	if m.current != nil {
		for _, inv := range m.invs {
			if inv.ID == m.current.ID {
				m.current = inv
			}
		}
	}
}

func (m *InvoicesModel) refreshReceipts() {
	rows := make([]table.Row, 0, len(m.rcts))
	for _, r := range m.rcts {
		rows = append(rows, table.Row{
			r.Number,
			fmt.Sprintf("#%d", r.PaymentID),
			FormatMoney(r.TotalAmount),
			FormatMoney(r.ExcessAmount),
			string(r.ExcessHandling),
		})
	}

	m.receipts.SetRows(rows)
}

// Messages

type loadInvoicesMsg struct {
	invs []*billing.Invoice
	err  error
}

type loadReceiptsMsg struct {
	rcts []*billing.Receipt
	err  error
}

type actionMsg struct {
	text       string
	backToList bool
	err        error
}

func (m InvoicesModel) loadInvoicesCmd() tea.Cmd {
	filter := billing.InvoiceFilter{Status: statusFilters[m.filterIdx].status}

	return func() tea.Msg {
		ctx, cancel := m.session.Ctx()
		defer cancel()

		invs, err := m.svc.ListInvoices(ctx, filter)

		return loadInvoicesMsg{invs: invs, err: err}
	}
}

func (m InvoicesModel) loadReceiptsCmd(invoiceID int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := m.session.Ctx()
		defer cancel()

		rcts, err := m.svc.ListReceipts(ctx, invoiceID)

		return loadReceiptsMsg{rcts: rcts, err: err}
	}
}

func (m InvoicesModel) recordPaymentCmd() tea.Cmd {
	invoiceID := m.current.ID
	fields := *m.payment

	return func() tea.Msg {
		amount, err := decimal.NewFromString(strings.TrimSpace(fields.amount))
		if err != nil {
			return actionMsg{err: err}
		}

		ctx, cancel := m.session.Ctx()
		defer cancel()

		res, err := m.svc.RecordPayment(ctx, billing.PaymentRequest{
			InvoiceID: invoiceID,
			Payment:   billing.PaymentInput{Amount: &amount, Method: fields.method},
		})
		if err != nil {
			return actionMsg{err: err}
		}

		return actionMsg{text: fmt.Sprintf("Recorded %s, receipt %s", res.Payment.Number, res.Receipt.Number)}
	}
}

func (m InvoicesModel) deleteCmd() tea.Cmd {
	p := *m.pending

	return func() tea.Msg {
		ctx, cancel := m.session.Ctx()
		defer cancel()

		if p.receiptID != 0 {
			res, err := m.svc.DeleteReceiptCascade(ctx, p.receiptID)
			if err != nil {
				return actionMsg{err: err}
			}

			return actionMsg{text: fmt.Sprintf("Receipt deleted, %s reversed", FormatMoney(res.AmountReversed))}
		}

		res, err := m.svc.DeleteInvoiceCascade(ctx, p.invoiceID)
		if err != nil {
			return actionMsg{err: err, backToList: true}
		}

		return actionMsg{
			text:       fmt.Sprintf("Invoice deleted with %d payment(s)", res.DeletedPaymentCount),
			backToList: true,
		}
	}
}
