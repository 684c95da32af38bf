// Package cache persists marker snapshots to a local SQLite database so the
// map survives the remote store being unreachable. Writes happen only on
// explicit save; the slot is read once at startup.
package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hexatlas/engine/internal/fault"
	"github.com/hexatlas/engine/pkg/core"
)

// DefaultSlot is the slot name used for the marker collection.
const DefaultSlot = "hexagram_coordinates"

type snapshotRow struct {
	Slot    string `gorm:"primaryKey"`
	Payload datatypes.JSON
	SavedAt time.Time
}

func (snapshotRow) TableName() string { return "snapshots" }

// Store is a named-slot snapshot store backed by SQLite.
type Store struct {
	db   *gorm.DB
	slot string
	log  zerolog.Logger
}

// Open opens or creates the snapshot database at path. An empty path uses an
// in-memory database, useful for tests.
func Open(path, slot string, log zerolog.Logger) (*Store, error) {
	if slot == "" {
		slot = DefaultSlot
	}

	dsn := "file::memory:?cache=shared"
	if path != "" {
		dsn = path
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot DB: %w", err)
	}

	pragmas := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA journal_mode = MEMORY;",
		"PRAGMA synchronous = OFF;",
		"PRAGMA temp_store = MEMORY;",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}

	if err := db.AutoMigrate(&snapshotRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate snapshot schema: %w", err)
	}

	if path != "" {
		log.Info().Str("path", path).Str("slot", slot).Msg("Using local snapshot DB")
	} else {
		log.Info().Str("slot", slot).Msg("Using in-memory snapshot DB")
	}

	return &Store{db: db, slot: slot, log: log}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save writes a snapshot into the slot, replacing any previous one.
func (s *Store) Save(snap core.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	row := snapshotRow{
		Slot:    s.slot,
		Payload: datatypes.JSON(payload),
		SavedAt: time.Now().UTC(),
	}
	if err := s.db.Save(&row).Error; err != nil {
		return fmt.Errorf("failed to write snapshot slot %q: %w", s.slot, err)
	}

	s.log.Debug().Int("markers", len(snap.Markers)).Msg("Snapshot saved")
	return nil
}

// Load reads the slot. The second return is false when no snapshot has ever
// been saved.
func (s *Store) Load() (core.Snapshot, bool, error) {
	var row snapshotRow
	err := s.db.First(&row, "slot = ?", s.slot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.Snapshot{}, false, nil
	}
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("failed to read snapshot slot %q: %w", s.slot, err)
	}

	snap, err := Decode(row.Payload)
	if err != nil {
		return core.Snapshot{}, false, err
	}
	return snap, true, nil
}

// Export writes the slot's snapshot to w in the interchange format.
func (s *Store) Export(w io.Writer) error {
	snap, ok, err := s.Load()
	if err != nil {
		return err
	}
	if !ok {
		return fault.New(fault.Validation, "no snapshot saved in slot %q", s.slot)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// ExportFile writes the snapshot to a file.
func (s *Store) ExportFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()
	return s.Export(f)
}

// Import decodes an interchange-format snapshot from r without touching the
// slot. Callers load the result into the marker collection and save
// explicitly.
func Import(r io.Reader) (core.Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Snapshot{}, fault.Wrap(fault.Validation, fmt.Errorf("failed to read import: %w", err))
	}
	return Decode(data)
}

// Decode parses interchange JSON, requiring an array field named "markers".
// Anything else is rejected so a bad file can never clobber the collection.
func Decode(data []byte) (core.Snapshot, error) {
	var probe struct {
		Markers   json.RawMessage `json:"markers"`
		Timestamp time.Time       `json:"timestamp"`
		Version   string          `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return core.Snapshot{}, fault.Wrap(fault.Validation, fmt.Errorf("snapshot is not valid JSON: %w", err))
	}
	raw := bytes.TrimSpace(probe.Markers)
	if len(raw) == 0 {
		return core.Snapshot{}, fault.New(fault.Validation, "snapshot has no markers field")
	}
	// a JSON null unmarshals into a nil slice without error; only a
	// literal array may replace the collection
	if raw[0] != '[' {
		return core.Snapshot{}, fault.New(fault.Validation, "markers field is not an array")
	}

	var markers []core.MarkerRecord
	if err := json.Unmarshal(raw, &markers); err != nil {
		return core.Snapshot{}, fault.Wrap(fault.Validation, fmt.Errorf("markers field is not an array: %w", err))
	}

	return core.Snapshot{
		Markers:   markers,
		Timestamp: probe.Timestamp,
		Version:   probe.Version,
	}, nil
}
