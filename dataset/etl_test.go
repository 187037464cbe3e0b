package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSheet builds a small raw grid in the shape the insurer exports use:
// stacked header rows around sheet rows 8..10, product rows from row 12, and
// an FC계 aggregate closing the commission block.
func testSheet() [][]string {
	cells := make([][]string, 15)
	for i := range cells {
		cells[i] = make([]string, 9)
	}
	cells[7][5] = "2025년 FC 수수료"
	cells[8][5] = "0.6"
	cells[8][8] = "FC계"
	cells[9][5] = "1차년"
	cells[9][6] = "2차년"

	cells[11] = []string{"(무)약속플러스종신보험", "20년납", "95", "", "", "1.2", "0.5", "0.1", "2.91582"}
	cells[12] = []string{"합계", "", "", "", "", "9.9", "", "", "9.9"}
	cells[13] = []string{"AB", "20년납", "95", "", "", "1.0", "", "", "1.0"}
	cells[14] = []string{"무배당건강보험", "10년납", "90", "", "", "1.0", "", "", "2.2"}
	return cells
}

var testLayout = SheetLayout{DataStartRow: 12, ProductCol: 0, PaymentCol: 1, RateCol: 2}

func TestFindFCColumns(t *testing.T) {
	start, end, ok := findFCColumns(testSheet())
	require.True(t, ok)
	assert.Equal(t, 5, start)
	assert.Equal(t, 8, end)
}

func TestFindFCColumns_NoMarker(t *testing.T) {
	cells := testSheet()
	cells[8][5] = ""
	_, _, ok := findFCColumns(cells)
	assert.False(t, ok)
}

func TestFindFCColumns_EndByVote(t *testing.T) {
	cells := testSheet()
	// Without the FC계 header the end column comes from the data itself.
	cells[8][8] = ""
	start, end, ok := findFCColumns(cells)
	require.True(t, ok)
	assert.Equal(t, 5, start)
	assert.Equal(t, 8, end)
}

func TestNormalizeSheet(t *testing.T) {
	record, err := NormalizeSheet("KB라이프", testSheet(), testLayout)
	require.NoError(t, err)
	require.Len(t, record.Products, 2, "subtotal and short-name rows must be skipped")

	p := record.Products[0]
	assert.Equal(t, 12, p.RowNumber)
	assert.Equal(t, "(무)약속플러스종신보험", p.Metadata.ProductName)
	assert.Equal(t, "20년납", p.Metadata.PaymentPeriod)
	assert.Equal(t, 95.0, p.Metadata.ConversionRate)

	// Stacked headers become the rate labels; the last column doubles as the
	// aggregate and its alias.
	assert.Equal(t, 1.2, p.BaseCommissionRates["2025년 FC 수수료_0.6_0.6_1차년"])
	assert.Equal(t, 0.5, p.BaseCommissionRates["2차년"])
	assert.Equal(t, 0.1, p.BaseCommissionRates["col_7"])
	assert.Equal(t, 2.91582, p.BaseCommissionRates[FCTotalKey])
	assert.Equal(t, p.BaseCommissionRates[FCTotalKey], p.BaseCommissionRates[TotalKey])

	p2 := record.Products[1]
	assert.Equal(t, 15, p2.RowNumber)
	assert.Equal(t, "무배당건강보험", p2.Metadata.ProductName)
}

func TestNormalizeSheet_NoCommissionBlock(t *testing.T) {
	cells := [][]string{{"아무", "의미", "없는"}, {"셀", "값"}}
	_, err := NormalizeSheet("KB라이프", cells, testLayout)
	require.Error(t, err)
}

func TestIsHeadingRow(t *testing.T) {
	for _, name := range []string{"합계", "월납 소계", "상품명", "Subtotal", "TOTAL 합산"} {
		assert.True(t, isHeadingRow(name), name)
	}
	assert.False(t, isHeadingRow("(무)약속플러스종신보험"))
}

func TestBuildDataset(t *testing.T) {
	sheets := map[string][][]string{
		"KB라이프":  testSheet(),
		"미지의보험": testSheet(), // no layout entry, skipped
	}
	ds, err := BuildDataset(sheets, nil)
	require.NoError(t, err)
	require.Contains(t, ds.Companies, "KB라이프")
	assert.NotContains(t, ds.Companies, "미지의보험")
	assert.Equal(t, 2, ds.NumProducts())
}

func TestBuildDataset_Empty(t *testing.T) {
	_, err := BuildDataset(map[string][][]string{}, nil)
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestReadSheetCSV_RaggedRows(t *testing.T) {
	cells, err := ReadSheetCSV(strings.NewReader("a,b,c\nd\ne,f\n"))
	require.NoError(t, err)
	require.Len(t, cells, 3)
	assert.Len(t, cells[0], 3)
	assert.Len(t, cells[1], 1)
}
