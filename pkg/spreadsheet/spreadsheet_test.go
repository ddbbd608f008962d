package spreadsheet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

func TestRead_XLSX(t *testing.T) {
	t.Parallel()

	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"FICHA", "FECHA_INICIO", "NOMBRE_CENTRO"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{12345, 45306, "Centro de Diseño"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	rows, err := Read("historico.xlsx", buf.Bytes())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"FICHA", "FECHA_INICIO", "NOMBRE_CENTRO"}, rows[0])
	assert.Equal(t, []string{"12345", "45306", "Centro de Diseño"}, rows[1])
}

func TestRead_CSVWithBOMAndSemicolons(t *testing.T) {
	t.Parallel()

	data := []byte("\xEF\xBB\xBFFICHA;NOMBRE_CENTRO\n12345;\"Centro; Norte\"\n")
	rows, err := Read("historico.csv", data)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"FICHA", "NOMBRE_CENTRO"}, {"12345", "Centro; Norte"}}, rows)
}

func TestRead_CSVPipeDelimited(t *testing.T) {
	t.Parallel()

	data := []byte("FICHA|NOMBRE_CENTRO|CERTIFICADOS\n12345|Centro, Norte|3\n")
	rows, err := Read("historico.csv", data)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"FICHA", "NOMBRE_CENTRO", "CERTIFICADOS"}, {"12345", "Centro, Norte", "3"}}, rows)
}

func TestSniffDelimiter(t *testing.T) {
	t.Parallel()

	cases := []struct {
		sample string
		want   rune
	}{
		{"a,b,c\n1,2,3\n", ','},
		{"a;b;c\n1;2,5;3\n", ';'},
		{"a\tb\tc\n1\t2\t3\n", '\t'},
		{"a|b|c\n1|2|3\n", '|'},
		{"single\nvalue\n", ','},
	}
	for _, tc := range cases {
		assert.Equal(t, string(tc.want), string(sniffDelimiter([]byte(tc.sample))), tc.sample)
	}
}

func TestRead_CSVWindows1252(t *testing.T) {
	t.Parallel()

	data, err := charmap.Windows1252.NewEncoder().Bytes([]byte("FICHA,MUNICIPIO\n1,Bogotá\n"))
	require.NoError(t, err)

	rows, err := Read("historico.csv", data)
	require.NoError(t, err)
	assert.Equal(t, "Bogotá", rows[1][1])
}

func TestRead_Empty(t *testing.T) {
	t.Parallel()

	_, err := Read("empty.csv", nil)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestDetect(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		data    []byte
		want    Format
		wantErr bool
	}{
		{name: "a.bin", data: []byte("PK\x03\x04rest"), want: FormatXLSX},
		{name: "a.csv", data: append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, 0), want: FormatXLS},
		{name: "a.CSV", data: []byte("x,y"), want: FormatCSV},
		{name: "a.xlsx", data: []byte("x,y"), wantErr: true},
		{name: "a.pdf", data: []byte("%PDF"), wantErr: true},
		{name: "informe.csv", data: []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n1 0 obj"), wantErr: true},
		{name: "latin1.csv", data: []byte("FICHA;NOMBRE_CENTRO\n1;Dise\xf1o\n"), want: FormatCSV},
		{name: "empty.csv", data: nil, want: FormatCSV},
	}
	for _, tc := range cases {
		got, err := Detect(tc.name, tc.data)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrUnsupported, tc.name)
			continue
		}
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, got, tc.name)
	}
}
