package results

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/boamp-console/internal/jobs"
)

func TestComputeStats(t *testing.T) {
	t.Parallel()

	rows := []jobs.ResultRow{
		{Lots: "Lot 1", VisitMandatory: "yes"},
		{Lots: "  ", VisitMandatory: "no"},
		{VisitMandatory: "Yes"},
	}
	assert.Equal(t, Stats{Total: 3, LotsFound: 1, VisitMandatory: 1}, ComputeStats(rows))
	assert.Equal(t, Stats{}, ComputeStats(nil))
}

func TestVisitBadge(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Badge{Class: "bg-warning", Label: "yes"}, VisitBadge("yes"))
	assert.Equal(t, Badge{Class: "bg-secondary", Label: "no"}, VisitBadge(""))
	assert.Equal(t, Badge{Class: "bg-secondary", Label: "unknown"}, VisitBadge("unknown"))
}

func TestPDFLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in        jobs.Text
		available bool
	}{
		{in: "https://www.boamp.fr/avis/pdf/25-1234", available: true},
		{in: "http://example.test/a.pdf", available: true},
		{in: "N/A"},
		{in: "   "},
		{in: "javascript:alert(1)"},
		{in: "/relative.pdf"},
	}
	for _, tt := range tests {
		link := PDFLink(tt.in)
		assert.Equal(t, tt.available, link.Available(), string(tt.in))
		if !tt.available {
			assert.Equal(t, NotAvailable, link.Label)
		}
	}
}

func TestBuildView(t *testing.T) {
	t.Parallel()

	p := jobs.Progress{
		Status:      jobs.StatusCompleted,
		Departments: []string{"75", "93"},
		Message:     " done ",
		SummaryTable: []jobs.ResultRow{
			{Keywords: "a", Lots: "1", PDFLink: "https://x.test/1.pdf"},
			{Keywords: "b"},
		},
	}
	v := Build("p/1", p)
	assert.Equal(t, Stats{Total: 2, LotsFound: 1}, v.Stats)
	assert.Equal(t, "Traitement terminé! 2 enregistrements trouvés pour 2 départements.", v.StatusLine)
	assert.Equal(t, "done", v.Message)
	assert.Equal(t, "/download/p%2F1", v.DownloadURL)
	assert.Equal(t, "/download-summary/p%2F1", v.SummaryURL)
	require.Len(t, v.Rows, 2)
	assert.True(t, v.Rows[0].PDF.Available())
	assert.False(t, v.Rows[1].PDF.Available())
	assert.False(t, v.Empty())

	assert.True(t, Build("x", jobs.Progress{}).Empty())
}
