// Package watcher provides live file system watching for document
// roots, with debouncing and gitignore-aware filtering.
//
// Watching is hybrid:
//   - fsnotify for event-based watching where the kernel supports it
//   - polling for network mounts, some containers, and other places
//     fsnotify cannot reach
//
// Events are debounced so that editors and sync clients saving a file
// repeatedly produce one re-index, and coalesced so a create followed
// by a delete inside the window produces nothing at all. Batches are
// emitted after a quiet period:
//
//	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//	go w.Start(ctx, "/srv/docs")
//
//	for batch := range w.Events() {
//	    for _, event := range batch {
//	        // upsert on CREATE/MODIFY, remove on DELETE
//	    }
//	}
package watcher
