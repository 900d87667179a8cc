package catalog

import (
	"strings"
	"testing"

	"github.com/shelfmatch/backend/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestBuildSearchTerm(t *testing.T) {
	tests := []struct {
		name  string
		query domain.SearchQuery
		want  string
	}{
		{
			name:  "brand prepended when missing from name",
			query: domain.SearchQuery{Brand: "Acme", ProductName: "Cola Zero"},
			want:  "Acme Cola Zero",
		},
		{
			name:  "brand not duplicated when already in name",
			query: domain.SearchQuery{Brand: "Acme", ProductName: "Acme Cola Zero"},
			want:  "Acme Cola Zero",
		},
		{
			name:  "size fragments stripped from name",
			query: domain.SearchQuery{ProductName: "Cola Zero 500 ml"},
			want:  "Cola Zero",
		},
		{
			name:  "pack counts stripped",
			query: domain.SearchQuery{ProductName: "Cola Zero 6-pack"},
			want:  "Cola Zero",
		},
		{
			name:  "comma tail stripped",
			query: domain.SearchQuery{ProductName: "Cola Zero, 500 ml bottle"},
			want:  "Cola Zero",
		},
		{
			name:  "noise words removed",
			query: domain.SearchQuery{ProductName: "Premium Cola Zero Value Pack"},
			want:  "Cola Zero",
		},
		{
			name:  "flavor appended when absent",
			query: domain.SearchQuery{Brand: "Acme", ProductName: "Cola", Flavor: "Cherry"},
			want:  "Acme Cola Cherry",
		},
		{
			name:  "flavor skipped when present",
			query: domain.SearchQuery{ProductName: "Cherry Cola", Flavor: "Cherry"},
			want:  "Cherry Cola",
		},
		{
			name:  "ampersand expanded",
			query: domain.SearchQuery{ProductName: "Mac & Cheese"},
			want:  "Mac and Cheese",
		},
		{
			name:  "empty attributes yield empty term",
			query: domain.SearchQuery{},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildSearchTerm(tt.query))
		})
	}
}

func TestBuildSearchTerm_CapsLengthAtWordBoundary(t *testing.T) {
	long := strings.Repeat("verylongword ", 20)
	got := BuildSearchTerm(domain.SearchQuery{ProductName: long})

	assert.LessOrEqual(t, len(got), 100)
	assert.False(t, strings.HasSuffix(got, "verylongwor"), "should not cut mid-word")
}

func TestCleanProductName_SpecialCharacters(t *testing.T) {
	got := cleanProductName("Cola* Zero [New] #1")
	assert.NotContains(t, got, "*")
	assert.NotContains(t, got, "[")
	assert.NotContains(t, got, "#")
}
