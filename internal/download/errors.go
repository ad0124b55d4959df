package download

import (
	"fmt"
	"strings"
)

// FailedArtifact names one artifact that exhausted its retry budget,
// together with its final error.
type FailedArtifact struct {
	ID  string
	Err error
}

// DownloadFailedError aggregates every failed artifact of a run. Healthy
// sibling downloads are never rolled back, so a retry only has to cover the
// ids listed here.
type DownloadFailedError struct {
	Failed []FailedArtifact
}

// Error implements the error interface, enumerating every failure.
func (e *DownloadFailedError) Error() string {
	ids := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		ids[i] = f.ID
	}
	return fmt.Sprintf("%d artifact(s) failed to download: %s", len(e.Failed), strings.Join(ids, ", "))
}
