package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"transcript_sync/internal/domain"
)

func TestDispositionLabel(t *testing.T) {
	report := &domain.AuditReport{
		MissingLocally:  []domain.RemoteTranscript{{ID: "a"}, {ID: "b"}},
		OrphanedLocally: []string{"z"},
	}

	tests := []struct {
		disposition domain.Disposition
		expected    string
	}{
		{domain.DispositionSyncMissing, "Sync 2 missing transcripts"},
		{domain.DispositionDeleteOrphans, "Delete 1 orphaned transcripts"},
		{domain.DispositionExport, "Export discrepancies as JSON"},
		{domain.DispositionNone, "Do nothing"},
	}

	for _, tt := range tests {
		t.Run(string(tt.disposition), func(t *testing.T) {
			assert.Equal(t, tt.expected, DispositionLabel(tt.disposition, report))
		})
	}
}
