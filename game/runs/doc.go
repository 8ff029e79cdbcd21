// Package runs stores the results of solver runs.
//
// Manager keeps runs in memory and writes through to an optional
// RunPersistence. Two backends are provided:
//   - FilePersistence writes each run as zstd-compressed JSON (<id>.json.zst)
//   - SQLitePersistence keeps runs in a single SQLite database
//
// Run IDs are UUIDs assigned by the manager when a run is saved without one.
//
// Usage:
//
//	store, err := runs.NewFilePersistence("runs")
//	if err != nil {
//		log.Fatal(err)
//	}
//	manager := runs.NewManagerWithPersistence(store)
//	if err := manager.LoadPersistedRuns(); err != nil {
//		log.Printf("Warning: %v", err)
//	}
package runs
