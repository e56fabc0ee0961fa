// Package importer turns uploaded files into invoice line items.
package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/MrJamesThe3rd/billy/internal/importer/items"
)

type Format string

const (
	FormatCSV Format = "csv"
)

type Importer interface {
	Parse(r io.Reader) (*items.Result, error)
}

type Service struct {
	csvImporter Importer
}

func NewService() *Service {
	return &Service{
		csvImporter: items.NewParser(),
	}
}

// Import parses r as format. An empty format means CSV.
func (s *Service) Import(format Format, r io.Reader) (*items.Result, error) {
	var importer Importer

	switch Format(strings.ToLower(string(format))) {
	case FormatCSV, "":
		importer = s.csvImporter
	default:
		return nil, fmt.Errorf("unknown import format: %s", format)
	}

	return importer.Parse(r)
}
