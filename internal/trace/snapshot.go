package trace

import (
	"time"

	"github.com/hyperjump/kensho/internal/fault"
	"github.com/hyperjump/kensho/internal/models"
)

// Snapshot is a point-in-time value copy of one document's index state.
// Exports serialize snapshots, never the live index, so concurrent writers
// are neither blocked nor observed mid-update.
type Snapshot struct {
	DocumentID  string
	GeneratedAt time.Time
	Rows        []models.TraceabilityRow
	TestCases   []models.TestCase // all cases in insertion order, superseded included
}

// Snapshot copies the document's current state under a read lock and returns
// it. The returned value shares no memory with the index.
func (ix *Index) Snapshot(docID string) (*Snapshot, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	d := ix.docs[docID]
	if d == nil {
		return nil, fault.Newf(fault.KindNotFound, "document %s is not indexed", docID)
	}
	snap := &Snapshot{
		DocumentID:  docID,
		GeneratedAt: time.Now().UTC(),
		Rows:        d.rows(),
	}
	for _, id := range d.caseOrder {
		snap.TestCases = append(snap.TestCases, copyCase(d.cases[id]))
	}
	return snap, nil
}
