// Package spreadsheet turns uploaded xlsx and csv files into import rows keyed by
// canonical field names.
package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"certhub/internal/certificate/models"
	dErrors "certhub/pkg/domain-errors"
	pstrings "certhub/pkg/platform/strings"
)

type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// headerAliases maps folded header labels to canonical field names. The Chinese
// labels are the ones operators' existing spreadsheets use.
var headerAliases = map[string]string{
	"name":              models.FieldName,
	"fullname":          models.FieldName,
	"姓名":                models.FieldName,
	"gender":            models.FieldGender,
	"sex":               models.FieldGender,
	"性别":                models.FieldGender,
	"idtype":            models.FieldIDType,
	"documenttype":      models.FieldIDType,
	"证件类型":              models.FieldIDType,
	"idnumber":          models.FieldIDNumber,
	"idno":              models.FieldIDNumber,
	"证件号":               models.FieldIDNumber,
	"证件号码":              models.FieldIDNumber,
	"certnumber":        models.FieldCertNumber,
	"certificatenumber": models.FieldCertNumber,
	"certno":            models.FieldCertNumber,
	"证书编号":              models.FieldCertNumber,
}

// Sheet is the parsed content of one spreadsheet.
type Sheet struct {
	Rows []models.RawRow
	// Ignored lists header labels that map to no field.
	Ignored []string
}

// FormatFor picks the reader from a file name's extension.
func FormatFor(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	}
	return "", dErrors.New(dErrors.CodeBadRequest,
		fmt.Sprintf("unsupported file type %q: upload an .xlsx or .csv spreadsheet", filepath.Ext(filename)))
}

// ReadFile parses the spreadsheet at path.
func ReadFile(path string) (*Sheet, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()
	return Read(f, format)
}

// Read parses r. The first row is the header; the first sheet of a workbook is
// used. Rows with every cell blank are dropped.
func Read(r io.Reader, format Format) (*Sheet, error) {
	var (
		records [][]string
		err     error
	)
	switch format {
	case FormatXLSX:
		records, err = readXLSX(r)
	case FormatCSV:
		records, err = readCSV(r)
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unsupported format %q", format))
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "could not read spreadsheet")
	}
	return fromRecords(records), nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return wb.GetRows(sheets[0])
}

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr.ReadAll()
}

func fromRecords(records [][]string) *Sheet {
	sheet := &Sheet{Rows: []models.RawRow{}}
	if len(records) == 0 {
		return sheet
	}

	columns := make([]string, len(records[0]))
	taken := make(map[string]bool)
	var ignored []string
	for i, label := range records[0] {
		field, ok := headerAliases[pstrings.FoldKey(label)]
		if !ok || taken[field] {
			ignored = append(ignored, label)
			continue
		}
		columns[i] = field
		taken[field] = true
	}
	sheet.Ignored = pstrings.DedupeAndTrim(ignored)

	for _, record := range records[1:] {
		if blank(record) {
			continue
		}
		row := make(models.RawRow, len(taken))
		for i, field := range columns {
			if field == "" {
				continue
			}
			if i < len(record) {
				row[field] = strings.TrimSpace(record[i])
			} else {
				row[field] = ""
			}
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet
}

func blank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
