package view

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/billy/internal/billing"
	"github.com/MrJamesThe3rd/billy/internal/importer"
)

type createState int

const (
	createStateForm createState = iota
	createStateFilePick
	createStateSaving
	createStateResult
)

type createFields struct {
	companyID  string
	customerID string
	amount     string
	method     billing.PaymentMethod
	total      string
	notes      string
	withItems  bool
}

// CreateModel records an invoice together with its first payment and receipt.
// Line items can be loaded from a CSV file.
type CreateModel struct {
	CommonModel
	svc           *billing.Service
	importService *importer.Service
	session       Session

	state      createState
	form       *huh.Form
	fields     *createFields
	filePicker filepicker.Model

	result *billing.CreateResult
	status string
	err    error
}

func NewCreateModel(svc *billing.Service, impSvc *importer.Service, session Session) CreateModel {
	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.Getwd()
	fp.AllowedTypes = []string{".csv", ".txt"}
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.SetHeight(15)

	fields := &createFields{method: billing.MethodCash}

	return CreateModel{
		svc:           svc,
		importService: impSvc,
		session:       session,
		form:          newCreateForm(fields),
		fields:        fields,
		filePicker:    fp,
	}
}

func newCreateForm(f *createFields) *huh.Form {
	methods := []billing.PaymentMethod{
		billing.MethodCash, billing.MethodBankTransfer, billing.MethodCard,
		billing.MethodMobileMoney, billing.MethodCheque, billing.MethodOther,
	}

	options := make([]huh.Option[billing.PaymentMethod], len(methods))
	for i, m := range methods {
		options[i] = huh.NewOption(string(m), m)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Key("company").Title("Company ID").Value(&f.companyID).Validate(validateID),
			huh.NewInput().Key("customer").Title("Customer ID").Value(&f.customerID).Validate(validateID),
			huh.NewInput().Key("amount").Title("Payment amount").Value(&f.amount).Validate(validateAmount(true)),
			huh.NewSelect[billing.PaymentMethod]().Key("method").Title("Method").Options(options...).Value(&f.method),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Key("items").
				Title("Load line items from a CSV file?").
				Affirmative("Yes").
				Negative("No").
				Value(&f.withItems),
			huh.NewInput().
				Key("total").
				Title("Invoice total (used without items)").
				Value(&f.total).
				Validate(validateAmount(false)),
			huh.NewInput().Key("notes").Title("Notes").Value(&f.notes),
		),
	).WithWidth(50).WithShowHelp(false)
}

func validateID(s string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("must be a positive number")
	}

	return nil
}

func validateAmount(required bool) func(string) error {
	return func(s string) error {
		s = strings.TrimSpace(s)
		if s == "" && !required {
			return nil
		}

		d, err := decimal.NewFromString(s)
		if err != nil {
			return fmt.Errorf("must be a number")
		}

		if d.IsNegative() {
			return fmt.Errorf("must not be negative")
		}

		return nil
	}
}

func (m CreateModel) Title() string { return "New Invoice & Payment" }

func (m CreateModel) ShortHelp() string {
	if m.state == createStateFilePick {
		return "Enter: select file | Esc: back"
	}

	return "Enter: next | Esc: back"
}

func (m CreateModel) Init() tea.Cmd {
	return tea.Batch(m.form.Init(), m.filePicker.Init())
}

func (m CreateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m, Back
		}

	case createdMsg:
		m.state = createStateResult
		m.result = msg.result
		m.err = msg.err

		return m, nil
	}

	switch m.state {
	case createStateForm:
		return m.updateForm(msg)
	case createStateFilePick:
		return m.updateFilePick(msg)
	}

	return m, nil
}

func (m CreateModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	if m.fields.withItems {
		m.state = createStateFilePick
		return m, m.filePicker.Init()
	}

	m.state = createStateSaving
	m.status = "Saving..."

	return m, m.createCmd("")
}

func (m CreateModel) updateFilePick(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.filePicker, cmd = m.filePicker.Update(msg)

	if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
		m.state = createStateSaving
		m.status = fmt.Sprintf("Importing items from %s...", path)

		return m, m.createCmd(path)
	}

	return m, cmd
}

func (m CreateModel) View() string {
	switch m.state {
	case createStateForm:
		return lipgloss.NewStyle().Padding(1).Render(m.form.View())
	case createStateFilePick:
		return lipgloss.NewStyle().Padding(1).Render("Select line-item file:\n\n" + m.filePicker.View())
	case createStateSaving:
		return lipgloss.NewStyle().Padding(2).Render(m.status)
	case createStateResult:
		if m.err != nil {
			return resultView(m.err, "")
		}

		return resultView(nil, m.summary())
	}

	return ""
}

func (m CreateModel) summary() string {
	r := m.result

	s := fmt.Sprintf("Invoice %s  total %s  paid %s  due %s  [%s]\nPayment %s  %s\nReceipt %s",
		r.Invoice.Number,
		FormatMoney(r.Invoice.TotalAmount),
		FormatMoney(r.Invoice.PaidAmount),
		FormatMoney(r.Invoice.BalanceDue),
		r.Invoice.Status,
		r.Payment.Number,
		FormatMoney(r.Payment.Amount),
		r.Receipt.Number,
	)

	if r.ExcessAmount.IsPositive() {
		s += fmt.Sprintf("\nExcess %s pending", FormatMoney(r.ExcessAmount))
	}

	return s
}

type createdMsg struct {
	result *billing.CreateResult
	err    error
}

func (m CreateModel) createCmd(itemsPath string) tea.Cmd {
	f := *m.fields

	return func() tea.Msg {
		req, err := f.request()
		if err != nil {
			return createdMsg{err: err}
		}

		if itemsPath != "" {
			file, err := os.Open(itemsPath)
			if err != nil {
				return createdMsg{err: err}
			}
			defer file.Close()

			res, err := m.importService.Import(importer.FormatCSV, file)
			if err != nil {
				return createdMsg{err: err}
			}

			req.Items = res.Items
		}

		ctx, cancel := m.session.Ctx()
		defer cancel()

		result, err := m.svc.CreateDocumentGraph(ctx, req)

		return createdMsg{result: result, err: err}
	}
}

func (f createFields) request() (billing.CreateRequest, error) {
	company, _ := strconv.ParseInt(strings.TrimSpace(f.companyID), 10, 64)
	customer, _ := strconv.ParseInt(strings.TrimSpace(f.customerID), 10, 64)

	amount, err := decimal.NewFromString(strings.TrimSpace(f.amount))
	if err != nil {
		return billing.CreateRequest{}, fmt.Errorf("payment amount: %w", err)
	}

	req := billing.CreateRequest{
		CompanyID:  company,
		CustomerID: customer,
		Payment:    billing.PaymentInput{Amount: &amount, Method: f.method},
		Invoice:    billing.InvoiceInput{Notes: strings.TrimSpace(f.notes)},
	}

	if s := strings.TrimSpace(f.total); s != "" {
		total, err := decimal.NewFromString(s)
		if err != nil {
			return billing.CreateRequest{}, fmt.Errorf("invoice total: %w", err)
		}

		req.Invoice.TotalAmount = &total
	}

	return req, nil
}
