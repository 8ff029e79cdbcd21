// Package levels loads, validates and caches Pushmo levels from a directory.
//
// A level file is one of:
//   - JSON: {"name", "description", "max_depth", "layout": [...]}, checked
//     against an embedded JSON Schema before validation
//   - YAML (.yaml/.yml): the same fields
//   - plain text (.txt): the raw ASCII layout, top row first; the file stem
//     becomes the level name
//
// Usage:
//
//	manager, err := levels.NewManager("levels")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer manager.Close()
//
//	level, err := manager.LoadLevel("tutorial")
//	board, err := level.Board()
//
// Cached levels are dropped when their file changes on disk; see Watch.
package levels
