package billing

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DocumentType partitions the sequence counters and selects the number prefix.
type DocumentType string

const (
	DocInvoice       DocumentType = "invoice"
	DocProforma      DocumentType = "proforma"
	DocQuotation     DocumentType = "quotation"
	DocPurchaseOrder DocumentType = "purchase_order"
	DocDeliveryNote  DocumentType = "delivery_note"
	DocCreditNote    DocumentType = "credit_note"
	DocDebitNote     DocumentType = "debit_note"
	DocPayment       DocumentType = "payment"
	DocReceipt       DocumentType = "receipt"
	DocRemittance    DocumentType = "remittance"
)

const (
	minSequenceYear  = 2000
	maxYearsAhead    = 10
	sequencePadWidth = 4
)

var documentPrefixes = map[DocumentType]string{
	DocInvoice:       "INV",
	DocProforma:      "PRO",
	DocQuotation:     "QUO",
	DocPurchaseOrder: "PO",
	DocDeliveryNote:  "DN",
	DocCreditNote:    "CN",
	DocDebitNote:     "DBN",
	DocPayment:       "PAY",
	DocReceipt:       "RCT",
	DocRemittance:    "REM",
}

// DocumentTypes returns every known document type.
func DocumentTypes() []DocumentType {
	return []DocumentType{
		DocInvoice, DocProforma, DocQuotation, DocPurchaseOrder, DocDeliveryNote,
		DocCreditNote, DocDebitNote, DocPayment, DocReceipt, DocRemittance,
	}
}

// Valid reports whether t has a number prefix.
func (t DocumentType) Valid() bool {
	_, ok := documentPrefixes[t]
	return ok
}

// Prefix returns the number prefix of t, or "" for an unknown type.
func (t DocumentType) Prefix() string {
	return documentPrefixes[t]
}

// ParseDocumentType accepts a type name ("credit-note", "credit_note") or its
// number prefix ("CN"), case-insensitively.
func ParseDocumentType(s string) (DocumentType, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)

	if t := DocumentType(norm); t.Valid() {
		return t, nil
	}

	for t, prefix := range documentPrefixes {
		if strings.EqualFold(prefix, norm) {
			return t, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidDocumentType, s)
}

// ResolveYear returns year, or the current year when year is zero, and rejects
// years outside [2000, now+10].
func ResolveYear(year int, now time.Time) (int, error) {
	if year == 0 {
		return now.Year(), nil
	}

	if year < minSequenceYear || year > now.Year()+maxYearsAhead {
		return 0, fmt.Errorf("%w: %d outside [%d, %d]", ErrInvalidYear, year, minSequenceYear, now.Year()+maxYearsAhead)
	}

	return year, nil
}

// FormatNumber renders PREFIX-YEAR-NNNN. The counter is zero-padded to four
// digits and grows beyond that without truncation.
func FormatNumber(t DocumentType, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%0*d", t.Prefix(), year, sequencePadWidth, seq)
}

// SequenceCounter increments the (type, year) counter and returns the new value.
// Implementations must do so atomically inside the caller's transaction.
type SequenceCounter interface {
	NextSequence(ctx context.Context, docType DocumentType, year int) (int64, error)
}

func allocateNumber(ctx context.Context, c SequenceCounter, docType DocumentType, year int) (string, error) {
	seq, err := c.NextSequence(ctx, docType, year)
	if err != nil {
		return "", fmt.Errorf("allocating %s number: %w", docType, err)
	}

	return FormatNumber(docType, year, seq), nil
}
