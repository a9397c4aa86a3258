package repository

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/models"
)

func TestParseSort(t *testing.T) {
	cases := []struct {
		key   string
		field string
		desc  bool
	}{
		{"title", SortTitle, false},
		{"-title", SortTitle, true},
		{"uploaded_at", SortCreatedAt, false},
		{"-created_at", SortCreatedAt, true},
		{"file_size", SortSize, false},
		{"-size", SortSize, true},
		{"", SortCreatedAt, true},
		{"owner", SortCreatedAt, true},
	}
	for _, tc := range cases {
		field, desc := ParseSort(tc.key)
		require.Equal(t, tc.field, field, tc.key)
		require.Equal(t, tc.desc, desc, tc.key)
	}
}

func TestDateToIsInclusive(t *testing.T) {
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	f := SearchFilter{DateFrom: &day, DateTo: &day}

	late := &models.Document{CreatedAt: day.Add(23*time.Hour + 59*time.Minute)}
	next := &models.Document{CreatedAt: day.AddDate(0, 0, 1)}
	before := &models.Document{CreatedAt: day.Add(-time.Second)}

	require.True(t, f.Matches(late))
	require.False(t, f.Matches(next))
	require.False(t, f.Matches(before))
}

func TestMatchesQueryAndFacets(t *testing.T) {
	doc := &models.Document{
		Title:    "Quarterly Budget",
		Author:   "Ana",
		Tags:     "finance,q3",
		Category: "Finance Reports",
		FileType: "pdf",
	}

	require.True(t, SearchFilter{Query: "budget"}.Matches(doc))
	require.True(t, SearchFilter{Query: "FINANCE"}.Matches(doc))
	require.True(t, SearchFilter{Query: "ana"}.Matches(doc))
	require.False(t, SearchFilter{Query: "invoice"}.Matches(doc))

	require.True(t, SearchFilter{FileType: "pdf", Category: "reports"}.Matches(doc))
	require.False(t, SearchFilter{FileType: "docx"}.Matches(doc))
	require.False(t, SearchFilter{Category: "legal"}.Matches(doc))
}

func TestLessOrdersBySelectedField(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []*models.Document{
		{Title: "b", Size: 30, CreatedAt: base.Add(2 * time.Hour)},
		{Title: "a", Size: 10, CreatedAt: base},
		{Title: "c", Size: 20, CreatedAt: base.Add(time.Hour)},
	}
	titles := func(f SearchFilter) []string {
		sorted := append([]*models.Document(nil), docs...)
		sort.SliceStable(sorted, func(i, j int) bool { return f.Less(sorted[i], sorted[j]) })
		out := make([]string, len(sorted))
		for i, d := range sorted {
			out[i] = d.Title
		}
		return out
	}

	require.Equal(t, []string{"a", "b", "c"}, titles(SearchFilter{SortField: SortTitle}))
	require.Equal(t, []string{"b", "c", "a"}, titles(SearchFilter{SortField: SortSize, SortDesc: true}))
	require.Equal(t, []string{"b", "c", "a"}, titles(SearchFilter{SortDesc: true}))
}
