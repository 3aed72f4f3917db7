// Package watcher keeps the index in step with a dav root on local disk.
//
// FSWatcher watches every directory under the root with fsnotify, honoring
// the crawler's skip rules. Events are debounced per path so editors and
// bulk copies produce one update per file:
//
//   - CREATE + MODIFY = CREATE
//   - CREATE + DELETE = nothing
//   - MODIFY + DELETE = DELETE
//   - DELETE + CREATE = MODIFY
//
// Bridge turns the debounced batches into work items on the search service.
//
//	w, err := watcher.New(root, watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go bridge.Run(ctx, w.Events())
//	return w.Start(ctx)
package watcher
