package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractFilters_EntityKeywords(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "english invoice",
			query: "show me the latest invoices",
			want:  []string{"invoices"},
		},
		{
			name:  "singular invoice",
			query: "find invoice for last week",
			want:  []string{"invoices"},
		},
		{
			name:  "arabic invoices",
			query: "أرني الفواتير",
			want:  []string{"invoices"},
		},
		{
			name:  "vendor maps to clients",
			query: "which vendor supplied the most",
			want:  []string{"clients"},
		},
		{
			name:  "arabic products",
			query: "كم عدد المنتجات في المخزون",
			want:  []string{"products"},
		},
		{
			name:  "multiple types",
			query: "invoices for client Ahmed",
			want:  []string{"invoices", "clients"},
		},
		{
			name:  "no match",
			query: "hello there",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ExtractFilters(tt.query)
			assert.Equal(t, tt.want, f.EntityTypes)
		})
	}
}

func TestExtractFilters_Dates(t *testing.T) {
	f := ExtractFilters("sales on 2024-01-15")
	assert.Equal(t, "2024-01-15", f.DateFrom)
	assert.Equal(t, "2024-01-15", f.DateTo)

	f = ExtractFilters("between 2024-01-01 and 2024-03-31")
	assert.Equal(t, "2024-01-01", f.DateFrom)
	assert.Equal(t, "2024-03-31", f.DateTo)
}

func TestExtractFilters_SlashDates(t *testing.T) {
	f := ExtractFilters("invoices from 5/1/2024")
	assert.Equal(t, "2024-01-05", f.DateFrom)
	assert.Equal(t, "2024-01-05", f.DateTo)

	f = ExtractFilters("from 05/01/2024 to 31/03/2024")
	assert.Equal(t, "2024-01-05", f.DateFrom)
	assert.Equal(t, "2024-03-31", f.DateTo)
}

func TestExtractFilters_MixedDateFormatsKeepOrder(t *testing.T) {
	// The ISO date matches first even though it is the later bound.
	f := ExtractFilters("invoices from 5/1/2024 to 2024-03-31")
	assert.Equal(t, "2024-01-05", f.DateFrom)
	assert.Equal(t, "2024-03-31", f.DateTo)
}

func TestExtractFilters_EntityIDs(t *testing.T) {
	f := ExtractFilters("what is the status of invoice #42 and order #137?")
	assert.Equal(t, []string{"42", "137"}, f.EntityIDs)
}

func TestExtractFilters_Empty(t *testing.T) {
	f := ExtractFilters("how are you today")
	assert.True(t, f.Empty())

	f = ExtractFilters("show invoice #9")
	assert.False(t, f.Empty())
}
