package items

// priceMode determines how the line price is read from a row.
type priceMode int

const (
	// priceUnit means separate quantity and unit price columns.
	priceUnit priceMode = iota
	// priceAmount means a single line amount column; quantity is 1.
	priceAmount
)

// column is one logical field of a line item.
type column string

const (
	colDescription column = "description"
	colQuantity    column = "quantity"
	colUnitPrice   column = "unit_price"
	colTax         column = "tax"
	colAmount      column = "amount"
)

// headers maps every accepted header spelling, lowercased, to its column.
var headers = map[string]column{
	"description": colDescription, "item": colDescription, "product": colDescription,
	"descrição": colDescription, "artigo": colDescription,

	"quantity": colQuantity, "qty": colQuantity, "quantidade": colQuantity, "qtd": colQuantity,

	"unit price": colUnitPrice, "unit_price": colUnitPrice, "price": colUnitPrice,
	"preço unitário": colUnitPrice, "preço": colUnitPrice,

	"tax": colTax, "tax amount": colTax, "vat": colTax, "iva": colTax, "imposto": colTax,

	"amount": colAmount, "line total": colAmount, "total": colAmount,
	"montante": colAmount, "valor": colAmount,
}

// Profile describes one line-item spreadsheet layout. A tax column is read
// whenever the header has one.
type Profile struct {
	Name      string
	PriceMode priceMode
}

func (p Profile) requiredCols() []column {
	if p.PriceMode == priceAmount {
		return []column{colDescription, colAmount}
	}

	return []column{colDescription, colQuantity, colUnitPrice}
}

// profiles are tried in order; more specific layouts come first.
var profiles = []Profile{
	{Name: "itemized", PriceMode: priceUnit},
	{Name: "amount", PriceMode: priceAmount},
}
