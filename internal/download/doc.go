// Package download implements the batch download manager.
//
// A batch is an ordered list of model.DownloadItem values processed as one
// cancellable unit of work. The Manager resolves a concrete destination path
// for every item, then a single worker goroutine streams the items one at a
// time and reports progress through an ordered, non-blocking event stream.
//
// # Architecture
//
//	Manager.Start(ctx, dir, items)
//	    │
//	    ├── resolve destinations (whole batch, names reserved)
//	    │
//	    └── Job.run (worker goroutine)
//	            │
//	            ├── for each item, in input order
//	            │       ├── GET (status >= 400 is a TransportError)
//	            │       ├── read chunk ── cancelled? ── remove partial file, stop batch
//	            │       ├── write chunk to .<name>.*.part + SHA3-256
//	            │       ├── EventProgress
//	            │       └── rename the .part file over the destination
//	            │
//	            └── EventCompleted{CompletionRecord}
//
// Design decision: Items are never downloaded in parallel. One worker keeps
// aggregate progress monotonic and gives the batch a single cancellation
// checkpoint: the flag set by Job.Cancel is read before every item and
// before every chunk write. An in-flight read is never interrupted.
//
// # Failure isolation
//
// Every item is written to a temporary file in the destination directory
// and renamed into place when complete, so an existing file at the
// destination is only replaced by a complete download.
//
// A TransportError or FilesystemError fails only the current item. Its
// partial file is removed and the worker moves on to the next item. A
// cancellation is not a failure: the item in flight is removed from disk and
// reported as cancelled, and no further item is attempted. Removal errors
// during cleanup are ignored.
//
// # Usage
//
//	m := download.NewManager(httpClient, download.WithLogger(logger))
//	job, err := m.Start(ctx, "/tmp/out", model.NewDownloadItems(urls...))
//	if err != nil {
//	    return err
//	}
//	for ev := range job.Events() {
//	    fmt.Println(ev.StatusText())
//	}
//	record := job.Wait()
//	fmt.Println(record.Message())
package download
