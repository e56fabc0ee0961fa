package items_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/MrJamesThe3rd/billy/internal/billing"
	"github.com/MrJamesThe3rd/billy/internal/importer/items"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertItem(t *testing.T, want, got billing.ItemInput) {
	t.Helper()

	assert.Equal(t, want.Description, got.Description)
	assert.True(t, want.Quantity.Equal(got.Quantity), "quantity: want %s, got %s", want.Quantity, got.Quantity)
	assert.True(t, want.UnitPrice.Equal(got.UnitPrice), "unit price: want %s, got %s", want.UnitPrice, got.UnitPrice)
	assert.True(t, want.TaxAmount.Equal(got.TaxAmount), "tax: want %s, got %s", want.TaxAmount, got.TaxAmount)
}

func TestParser_Parse(t *testing.T) {
	tests := []struct {
		name        string
		csv         string
		wantProfile string
		want        []billing.ItemInput
	}{
		{
			name: "english comma separated",
			csv: `Description,Quantity,Unit Price,Tax
Consulting,2,400.00,100.00
Travel,1,"1,234.50",0
`,
			wantProfile: "itemized",
			want: []billing.ItemInput{
				{Description: "Consulting", Quantity: dec("2"), UnitPrice: dec("400"), TaxAmount: dec("100")},
				{Description: "Travel", Quantity: dec("1"), UnitPrice: dec("1234.5"), TaxAmount: dec("0")},
			},
		},
		{
			name: "portuguese semicolon with preamble and footer",
			csv: `Orçamento 2025
Cliente;ACME

Descrição;Quantidade;Preço unitário;IVA
Horas de desenvolvimento;10;45,00;103,50
Licença anual;1;1.200,00;276,00
Total;;;1.579,50
`,
			wantProfile: "itemized",
			want: []billing.ItemInput{
				{Description: "Horas de desenvolvimento", Quantity: dec("10"), UnitPrice: dec("45"), TaxAmount: dec("103.5")},
				{Description: "Licença anual", Quantity: dec("1"), UnitPrice: dec("1200"), TaxAmount: dec("276")},
			},
		},
		{
			name: "amount only",
			csv: `Item;Amount
Setup fee;250,00
Support;99,90
;
`,
			wantProfile: "amount",
			want: []billing.ItemInput{
				{Description: "Setup fee", Quantity: dec("1"), UnitPrice: dec("250"), TaxAmount: dec("0")},
				{Description: "Support", Quantity: dec("1"), UnitPrice: dec("99.9"), TaxAmount: dec("0")},
			},
		},
		{
			name: "different column order and missing quantity",
			csv: `Unit Price	Ignored	Description	Qty
10.5	x	Widget
`,
			wantProfile: "itemized",
			want: []billing.ItemInput{
				{Description: "Widget", Quantity: dec("1"), UnitPrice: dec("10.5"), TaxAmount: dec("0")},
			},
		},
		{
			name:        "header only",
			csv:         "Description;Quantity;Unit Price",
			wantProfile: "itemized",
			want:        []billing.ItemInput{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := items.NewParser().Parse(strings.NewReader(tt.csv))
			require.NoError(t, err)

			assert.Equal(t, tt.wantProfile, res.Profile)
			require.Len(t, res.Items, len(tt.want))

			for i := range tt.want {
				assertItem(t, tt.want[i], res.Items[i])
			}
		})
	}
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		wantErr string
	}{
		{name: "empty file", csv: "", wantErr: "no matching line-item format"},
		{name: "unknown header", csv: "Foo;Bar\n1;2\n", wantErr: "no matching line-item format"},
		{name: "missing description", csv: "Description;Quantity;Unit Price\n;1;10\n", wantErr: "row 2: missing description"},
		{name: "bad price", csv: "Description;Quantity;Unit Price\nA;1;ten\n", wantErr: "row 2: invalid unit price"},
		{name: "bad quantity", csv: "Description;Quantity;Unit Price\nA;x;10\n", wantErr: "row 2: invalid quantity"},
		{name: "bad tax", csv: "Description;Quantity;Unit Price;VAT\nA;1;10;?\n", wantErr: "row 2: invalid tax"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := items.NewParser().Parse(strings.NewReader(tt.csv))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParser_Latin1Encoding(t *testing.T) {
	utf8CSV := "Descrição;Quantidade;Preço\nCafé;2;1,50\n"

	latin1, err := charmap.Windows1252.NewEncoder().Bytes([]byte(utf8CSV))
	require.NoError(t, err)

	res, err := items.NewParser().Parse(bytes.NewReader(latin1))
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	assert.Equal(t, "Café", res.Items[0].Description)
	assert.True(t, dec("1.5").Equal(res.Items[0].UnitPrice))
}

func TestParser_ItemsBuildValidGraph(t *testing.T) {
	res, err := items.NewParser().Parse(strings.NewReader("Description,Quantity,Unit Price\nA,3,10\n"))
	require.NoError(t, err)

	amount := dec("30")
	req := billing.CreateRequest{
		CompanyID:  1,
		CustomerID: 2,
		Payment:    billing.PaymentInput{Amount: &amount},
		Items:      res.Items,
	}

	require.NoError(t, req.Validate())
}
