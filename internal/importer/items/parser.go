package items

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/billy/internal/billing"
	enc "github.com/MrJamesThe3rd/billy/internal/encoding"
)

// ErrNoProfile is returned when no row of the file looks like a known header.
var ErrNoProfile = errors.New("no matching line-item format found")

// delimiters are tried in order until one yields a recognised header.
var delimiters = []rune{';', ',', '\t'}

// Result is what a parsed file produced.
type Result struct {
	Profile string
	Charset enc.Charset
	Items   []billing.ItemInput
}

// Parser reads line-item spreadsheets exported as CSV. It detects the
// charset, the delimiter and the column layout from the file itself.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(r io.Reader) (*Result, error) {
	utf8r, charset, err := enc.NewUTF8Reader(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	data, err := io.ReadAll(utf8r)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	for _, comma := range delimiters {
		rows, err := readRows(data, comma)
		if err != nil {
			continue
		}

		profile, cols, headerIdx := detectProfile(rows)
		if profile == nil {
			continue
		}

		items, err := parseRows(profile, cols, rows[headerIdx+1:], headerIdx+1)
		if err != nil {
			return nil, err
		}

		return &Result{Profile: profile.Name, Charset: charset, Items: items}, nil
	}

	return nil, fmt.Errorf("%w: expected description with quantity and unit price, or description with amount", ErrNoProfile)
}

func readRows(data []byte, comma rune) ([][]string, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	return rows, nil
}

// colIndex maps logical columns to their index in the row.
type colIndex map[column]int

// detectProfile scans rows for a header that matches a known profile.
func detectProfile(rows [][]string) (*Profile, colIndex, int) {
	for rowIdx, row := range rows {
		cols := make(colIndex)

		for i, cell := range row {
			name := strings.ToLower(strings.Trim(strings.TrimSpace(cell), ".:"))
			if c, ok := headers[name]; ok {
				if _, seen := cols[c]; !seen {
					cols[c] = i
				}
			}
		}

		for i := range profiles {
			if matchesProfile(&profiles[i], cols) {
				return &profiles[i], cols, rowIdx
			}
		}
	}

	return nil, nil, 0
}

func matchesProfile(p *Profile, cols colIndex) bool {
	for _, c := range p.requiredCols() {
		if _, ok := cols[c]; !ok {
			return false
		}
	}

	return true
}

// footers label summary rows that follow the items.
var footers = map[string]bool{"total": true, "subtotal": true, "totais": true, "sub-total": true}

// parseRows extracts items from the rows after the header. Rows without any
// price and summary rows are skipped.
func parseRows(p *Profile, cols colIndex, rows [][]string, headerRowNum int) ([]billing.ItemInput, error) {
	items := []billing.ItemInput{}

	for i, row := range rows {
		rowNum := headerRowNum + i + 1

		if footers[strings.ToLower(cellValue(row, cols[colDescription]))] {
			continue
		}

		quantity, unitPrice, ok, err := parsePrice(p, cols, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}

		if !ok {
			continue
		}

		desc := cellValue(row, cols[colDescription])
		if desc == "" {
			return nil, fmt.Errorf("row %d: missing description", rowNum)
		}

		tax := decimal.Zero

		if idx, ok := cols[colTax]; ok {
			if s := cellValue(row, idx); s != "" {
				if tax, err = parseNumber(s); err != nil {
					return nil, fmt.Errorf("row %d: invalid tax %q", rowNum, s)
				}
			}
		}

		items = append(items, billing.ItemInput{
			Description: desc,
			Quantity:    quantity,
			UnitPrice:   unitPrice,
			TaxAmount:   tax,
		})
	}

	return items, nil
}

// parsePrice returns the quantity and unit price of a row. ok is false when
// the row carries no price at all.
func parsePrice(p *Profile, cols colIndex, row []string) (decimal.Decimal, decimal.Decimal, bool, error) {
	switch p.PriceMode {
	case priceAmount:
		s := cellValue(row, cols[colAmount])
		if s == "" {
			return decimal.Zero, decimal.Zero, false, nil
		}

		amount, err := parseNumber(s)
		if err != nil {
			return decimal.Zero, decimal.Zero, false, fmt.Errorf("invalid amount %q", s)
		}

		return decimal.NewFromInt(1), amount, true, nil
	default:
		ps := cellValue(row, cols[colUnitPrice])
		if ps == "" {
			return decimal.Zero, decimal.Zero, false, nil
		}

		unitPrice, err := parseNumber(ps)
		if err != nil {
			return decimal.Zero, decimal.Zero, false, fmt.Errorf("invalid unit price %q", ps)
		}

		quantity := decimal.NewFromInt(1)

		if qs := cellValue(row, cols[colQuantity]); qs != "" {
			if quantity, err = parseNumber(qs); err != nil {
				return decimal.Zero, decimal.Zero, false, fmt.Errorf("invalid quantity %q", qs)
			}
		}

		return quantity, unitPrice, true, nil
	}
}

// cellValue safely gets a trimmed cell value from a row.
func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}
