package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDatasetJSON = `{
  "companies": {
    "KB라이프": {
      "company_name": "KB라이프",
      "products": [
        {
          "row_number": 12,
          "metadata": {"상품명": "(무)약속플러스종신보험", "납입기간": "20년납", "환산율": 95},
          "base_commission_rates": {"1차년": 1.2, "FC계": 2.91582, "Total": 2.91582}
        }
      ]
    }
  }
}`

func TestParse(t *testing.T) {
	ds, err := Parse([]byte(validDatasetJSON))
	require.NoError(t, err)
	require.Contains(t, ds.Companies, "KB라이프")
	require.Len(t, ds.Companies["KB라이프"].Products, 1)

	p := ds.Companies["KB라이프"].Products[0]
	assert.Equal(t, "(무)약속플러스종신보험", p.Metadata.ProductName)
	assert.Equal(t, 2.91582, p.BaseCommissionRates[FCTotalKey])
	total, ok := p.Total()
	require.True(t, ok)
	assert.Equal(t, 2.91582, total)
}

func TestParse_FillsCompanyName(t *testing.T) {
	ds, err := Parse([]byte(`{"companies": {"삼성생명": {"products": [
		{"row_number": 1, "metadata": {"상품명": "무배당종신"}, "base_commission_rates": {"FC계": 1}}
	]}}}`))
	require.NoError(t, err)
	assert.Equal(t, "삼성생명", ds.Companies["삼성생명"].CompanyName)
}

func TestParse_DropsProductsWithoutRates(t *testing.T) {
	ds, err := Parse([]byte(`{"companies": {"삼성생명": {"company_name": "삼성생명", "products": [
		{"row_number": 1, "metadata": {"상품명": "무배당종신"}, "base_commission_rates": {"FC계": 1}},
		{"row_number": 2, "metadata": {"상품명": "빈상품"}, "base_commission_rates": {}}
	]}}}`))
	require.NoError(t, err)
	assert.Len(t, ds.Companies["삼성생명"].Products, 1)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `{`},
		{"missing companies", `{}`},
		{"product without name", `{"companies": {"A": {"products": [
			{"row_number": 1, "metadata": {}, "base_commission_rates": {"FC계": 1}}
		]}}}`},
		{"alias mismatch", `{"companies": {"A": {"products": [
			{"row_number": 1, "metadata": {"상품명": "무배당종신"}, "base_commission_rates": {"FC계": 1, "Total": 2}}
		]}}}`},
		{"no products at all", `{"companies": {"A": {"products": []}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
		})
	}
}

func TestStore_ReloadSwapsAndKeepsOldOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commission_data.json")
	require.NoError(t, os.WriteFile(path, []byte(validDatasetJSON), 0o644))

	store, err := NewStore(path)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Current().NumProducts())

	// A corrupt file must not displace the live dataset.
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	require.Error(t, store.Reload())
	assert.Equal(t, 1, store.Current().NumProducts())

	updated := `{"companies": {"KB라이프": {"company_name": "KB라이프", "products": [
		{"row_number": 12, "metadata": {"상품명": "(무)약속플러스종신보험"}, "base_commission_rates": {"FC계": 1}},
		{"row_number": 13, "metadata": {"상품명": "무배당건강보험"}, "base_commission_rates": {"FC계": 2}}
	]}}}`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	require.NoError(t, store.Reload())
	assert.Equal(t, 2, store.Current().NumProducts())
}

func TestNewStore_MissingFile(t *testing.T) {
	_, err := NewStore(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
