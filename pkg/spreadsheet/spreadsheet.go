// Package spreadsheet turns uploaded xlsx, xls and csv files into rows of
// strings. Only the first sheet of a workbook is read.
package spreadsheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/extrame/xls"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatCSV  Format = "csv"
)

var (
	ErrEmpty       = errors.New("spreadsheet has no rows")
	ErrUnsupported = errors.New("unsupported spreadsheet format")
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
)

// Detect sniffs the content first and falls back to the file extension.
// Files named like CSV must still look like text.
func Detect(name string, data []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX, nil
	case bytes.HasPrefix(data, oleMagic):
		return FormatXLS, nil
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xls":
		return "", errors.Wrapf(ErrUnsupported, "%s is not a valid workbook", name)
	case ".csv", ".txt", ".tsv", "":
		if mt := mimetype.Detect(data); !isText(mt) {
			return "", errors.Wrapf(ErrUnsupported, "%s looks like %s", name, mt.String())
		}
		return FormatCSV, nil
	default:
		return "", errors.Wrapf(ErrUnsupported, "%s", name)
	}
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// Read parses data according to its detected format.
func Read(name string, data []byte) ([][]string, error) {
	format, err := Detect(name, data)
	if err != nil {
		return nil, err
	}
	var rows [][]string
	switch format {
	case FormatXLSX:
		rows, err = readXLSX(data)
	case FormatXLS:
		rows, err = readXLS(data)
	default:
		rows, err = readCSV(data)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s as %s", name, format)
	}
	if len(rows) == 0 {
		return nil, ErrEmpty
	}
	return rows, nil
}

func ReadFile(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Read(filepath.Base(path), data)
}

// readXLSX keeps raw cell values so dates arrive as serial numbers rather
// than in the workbook's locale-dependent display format.
func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, ErrEmpty
	}
	return f.GetRows(sheet)
}

// readXLS converts panics from the legacy BIFF decoder into errors; it
// panics on some truncated files.
func readXLS(data []byte) (rows [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, errors.Errorf("corrupt xls workbook: %v", r)
		}
	}()
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, ErrEmpty
	}
	rows = make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for j := row.FirstCol(); j < row.LastCol(); j++ {
			cells[j] = row.Col(j)
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// readCSV accepts UTF-8 (with or without BOM) and falls back to Windows-1252,
// which is what spreadsheet programs commonly write for Spanish text.
// The delimiter is guessed from the first lines so a title row above the
// header does not hide it.
func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, errors.Wrap(err, "decode windows-1252")
		}
		data = decoded
	}

	r := csv.NewReader(bufio.NewReader(bytes.NewReader(data)))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

const sniffLines = 8

func sniffDelimiter(data []byte) rune {
	lines := bytes.SplitN(data, []byte{'\n'}, sniffLines+1)
	if len(lines) > sniffLines {
		lines = lines[:sniffLines]
	}
	sample := bytes.Join(lines, nil)
	best, bestCount := ',', bytes.Count(sample, []byte{','})
	for _, d := range []rune{';', '\t', '|'} {
		if n := bytes.Count(sample, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
