package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/docreview-backend/internal/models"
)

func (f *fixture) uploadIn(t *testing.T, owner *models.User, title, filename, category string) *models.Document {
	t.Helper()
	doc, err := f.documents.Upload(f.ctx, owner.ID, &UploadInput{
		Title:    title,
		Filename: filename,
		Category: category,
		Size:     int64(len(title)),
		Body:     strings.NewReader(title),
	})
	require.NoError(t, err)
	return doc
}

func TestSearchOnlySeesOwnDocuments(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "ana")
	admin := f.user(t, "root", superuser)
	f.uploadIn(t, owner, "Quarterly report", "q.pdf", "finance")
	f.uploadIn(t, admin, "Admin report", "a.pdf", "ops")

	res, err := f.search.Search(f.ctx, admin.ID, &SearchQuery{Q: "report"})
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Total)
	require.Equal(t, "Admin report", res.Documents[0].Title)
	require.Equal(t, []string{"ops"}, res.Categories)
}

func TestSearchFilters(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "ana")
	f.uploadIn(t, owner, "Budget 2024", "budget.xlsx", "Finance")
	f.uploadIn(t, owner, "Contract", "contract.pdf", "Legal")
	f.uploadIn(t, owner, "Invoice", "invoice.pdf", "Finance")

	cases := []struct {
		name  string
		query SearchQuery
		want  []string
	}{
		{"text", SearchQuery{Q: "budget"}, []string{"Budget 2024"}},
		{"file type", SearchQuery{FileType: "PDF", Sort: "title"}, []string{"Contract", "Invoice"}},
		{"category substring", SearchQuery{Category: "fin", Sort: "title"}, []string{"Budget 2024", "Invoice"}},
		{"inclusive end date", SearchQuery{DateTo: "2024-06-03", Sort: "title"}, []string{"Budget 2024", "Contract", "Invoice"}},
		{"future start date", SearchQuery{DateFrom: "2024-06-04"}, nil},
		{"malformed date ignored", SearchQuery{DateFrom: "yesterday", Sort: "-title"}, []string{"Invoice", "Contract", "Budget 2024"}},
		{"default newest first", SearchQuery{}, []string{"Invoice", "Contract", "Budget 2024"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := f.search.Search(f.ctx, owner.ID, &tc.query)
			require.NoError(t, err)
			var got []string
			for _, d := range res.Documents {
				got = append(got, d.Title)
			}
			require.Equal(t, tc.want, got)
			require.EqualValues(t, len(tc.want), res.Total)
			require.NotNil(t, res.Documents)
		})
	}
}

func TestSearchPagination(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "ana")
	for i := 0; i < 23; i++ {
		f.uploadIn(t, owner, fmt.Sprintf("Doc %02d", i), "d.txt", "")
	}

	res, err := f.search.Search(f.ctx, owner.ID, &SearchQuery{Sort: "title", Page: 0})
	require.NoError(t, err)
	require.Equal(t, 1, res.Page)
	require.Equal(t, 3, res.TotalPages)
	require.Len(t, res.Documents, SearchPageSize)
	require.Equal(t, "Doc 00", res.Documents[0].Title)
	require.Equal(t, "title", res.Sort)

	res, err = f.search.Search(f.ctx, owner.ID, &SearchQuery{Sort: "title", Page: 99})
	require.NoError(t, err)
	require.Equal(t, 3, res.Page)
	require.Len(t, res.Documents, 3)
	require.Equal(t, "Doc 20", res.Documents[0].Title)
	require.Equal(t, []string{"txt"}, res.FileTypes)
	require.Empty(t, res.Categories)
	require.NotNil(t, res.Categories)
}

func TestSearchEmpty(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "ana")

	res, err := f.search.Search(f.ctx, owner.ID, &SearchQuery{Page: 4, Sort: "bogus"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Page)
	require.Equal(t, 1, res.TotalPages)
	require.Empty(t, res.Documents)
	require.Equal(t, "-created_at", res.Sort)
}

func TestRecent(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "ana")
	for i := 0; i < 7; i++ {
		f.uploadIn(t, owner, fmt.Sprintf("Doc %d", i), "d.txt", "")
	}

	docs, err := f.search.Recent(f.ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, docs, 5)
	require.Equal(t, "Doc 6", docs[0].Title)
	require.Equal(t, "Doc 2", docs[4].Title)
}
