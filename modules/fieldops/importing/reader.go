package importing

import (
	"encoding/csv"
	"io"
	"strings"

	gerrors "github.com/go-faster/errors"
)

type column int

const (
	colCode column = iota
	colVehicle
	colDate
	colStreet
	colNumber
	colCommune
	colDescription
	colQuantity
	colAdditional
)

// Columns are located by role: any of the listed header names (after BOM
// strip, trim and uppercase) binds the column to the role.
var headerAliases = map[column][]string{
	colCode:        {"OT", "NRO OT", "N OT", "CODIGO OT", "CODIGO"},
	colVehicle:     {"MOVIL", "VEHICULO", "PATENTE"},
	colDate:        {"FECHA", "FECHA EJECUCION"},
	colStreet:      {"CALLE", "DIRECCION"},
	colNumber:      {"NUMERO", "NRO", "ALTURA"},
	colCommune:     {"COMUNA"},
	colDescription: {"DESCRIPCION", "ITEM", "DETALLE"},
	colQuantity:    {"CANTIDAD", "CANT"},
	colAdditional:  {"ADICIONAL"},
}

// ReadRows reads the whole semicolon-delimited stream into normalized rows.
// Cell-level problems never fail the read; only a stream-level failure
// returns an error, which aborts the entire import.
func ReadRows(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, gerrors.Wrap(err, "failed to read header row")
	}

	index := bindColumns(header)

	var rows []Row
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, gerrors.Wrapf(err, "failed to read row %d", line)
		}
		rows = append(rows, Row{
			Line:        line,
			Code:        cell(record, index, colCode),
			VehicleCode: cell(record, index, colVehicle),
			ExecutedAt:  ParseDate(cell(record, index, colDate)),
			Street:      cell(record, index, colStreet),
			Number:      cell(record, index, colNumber),
			Commune:     cell(record, index, colCommune),
			Description: cell(record, index, colDescription),
			Quantity:    ParseQuantity(cell(record, index, colQuantity)),
			Additional:  parseFlag(cell(record, index, colAdditional)),
		})
	}
	return rows, nil
}

func bindColumns(header []string) map[column]int {
	byName := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		name = strings.ToUpper(strings.TrimSpace(name))
		if _, seen := byName[name]; !seen {
			byName[name] = i
		}
	}

	index := make(map[column]int, len(headerAliases))
	for col, aliases := range headerAliases {
		for _, alias := range aliases {
			if i, ok := byName[alias]; ok {
				index[col] = i
				break
			}
		}
	}
	return index
}

func cell(record []string, index map[column]int, col column) string {
	i, ok := index[col]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
