package main

import (
	"fmt"
	"os"
	"time"

	"github.com/hexatlas/engine/internal/dispatcher"
	"github.com/hexatlas/engine/internal/search"
)

// runPull loads the collection from the remote store (falling back to the
// local snapshot when it is unreachable) and mirrors it locally.
func runPull() error {
	start := time.Now()
	if err := eng.Bootstrap(); err != nil {
		return err
	}
	fmt.Printf("Loaded %d markers in %s\n", markerStore.Len(), time.Since(start))
	return nil
}

// runExport writes the current collection as an interchange file.
func runExport(path string) error {
	if err := eng.Bootstrap(); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating export file: %w", err)
	}
	defer f.Close()

	if err := eng.ExportSnapshot(f); err != nil {
		return fmt.Errorf("error writing export file: %w", err)
	}
	fmt.Printf("Exported %d markers to %s\n", markerStore.Len(), path)
	return nil
}

// runImport replaces the collection from an interchange file and saves the
// result as the local snapshot.
func runImport(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening import file: %w", err)
	}
	defer f.Close()

	if err := eng.ImportSnapshot(f); err != nil {
		return err
	}
	if snapshots != nil {
		if err := eng.SaveSnapshot(); err != nil {
			return err
		}
	}
	return nil
}

// searchDone is signalled once the debounced query cycle has delivered.
var searchDone chan error

// runSearch routes one query through the buffered search handler, the same
// path a dialog keystroke takes, and prints the ranked results.
func runSearch(query string) error {
	if err := eng.Bootstrap(); err != nil {
		Logger.Warn("Proceeding without placement counts", "error", err)
	}

	searchDone = make(chan error, 1)
	if _, err := eventDispatcher.Dispatch(dispatcher.Event{
		Command:   "search:input",
		Payload:   query,
		Timestamp: time.Now(),
	}); err != nil {
		return err
	}
	return <-searchDone
}

func printRanked(ranked []search.Ranked, err error) {
	if err != nil {
		if searchDone != nil {
			searchDone <- err
		}
		return
	}
	for _, r := range ranked {
		fmt.Printf("%3d  %-4s %-20s placed %d\n",
			r.Entry.Number, r.Entry.Symbol, r.Entry.DisplayName, r.Used)
	}
	if searchDone != nil {
		searchDone <- nil
	}
}

// runStatus reports remote and local availability.
func runStatus() error {
	fmt.Printf("%s %s (built %s)\n", AppName, Version, BuildDate)

	if err := client.Healthcheck(); err != nil {
		fmt.Println("Remote store: offline")
	} else {
		fmt.Println("Remote store: online")
	}

	if snapshots == nil {
		fmt.Println("Local snapshot: unavailable")
		return nil
	}
	snap, ok, err := snapshots.Load()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Local snapshot: empty")
		return nil
	}
	fmt.Printf("Local snapshot: %d markers, saved %s (format %s)\n",
		len(snap.Markers), snap.Timestamp.Format(time.RFC3339), snap.Version)
	return nil
}
