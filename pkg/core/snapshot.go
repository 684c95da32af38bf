// pkg/core/snapshot.go
package core

import "time"

// SnapshotVersion is the interchange format version written by Snapshot.
const SnapshotVersion = "2.0"

// Snapshot is the durable mirror of the marker collection, written to the
// local cache slot on explicit save and exchanged as a JSON file.
type Snapshot struct {
	Markers   []MarkerRecord `json:"markers"`
	Timestamp time.Time      `json:"timestamp"`
	Version   string         `json:"version"`
}

// NewSnapshot stamps the given collection with the current time and format
// version.
func NewSnapshot(markers []MarkerRecord) Snapshot {
	return Snapshot{
		Markers:   markers,
		Timestamp: time.Now().UTC(),
		Version:   SnapshotVersion,
	}
}
