// Package crawler implements the single-site breadth-first crawl.
//
// # Architecture
//
// The Engine owns one crawl run at a time. A run seeds a Frontier with the
// normalized seed address and then, on its own goroutine, repeatedly:
//
//  1. checks the stop flag
//  2. dequeues the next address and marks it visited
//  3. fetches it with a bounded timeout
//  4. classifies the response and records a DiscoveryRecord in the Session
//  5. for HTML, extracts links and offers the in-scope ones to the Frontier
//  6. sleeps for the politeness delay
//
// Every record is posted to the caller as an Event in fetch order. Posting
// never blocks, so a slow consumer cannot stall the crawl.
//
// Design decision: Fetch failures are data, not errors. A timeout or a
// refused connection becomes a record of category Error and the loop moves
// on. Only a panic inside the loop ends the run early, and even then the
// engine recovers, reports one diagnostic and finishes cleanly.
//
// # Components
//
//   - Engine: state machine (Idle, Running, Stopped, Finished) and traversal loop
//   - Frontier: FIFO of pending addresses plus visited and pending sets
//   - Session: insertion ordered records of one crawl, with sorting and selection
//   - Classify: content type to Category
//   - SameOrigin: scope check against the seed
//   - Parser / ExtractLinks: anchor, link, script and img references
//   - HTTPFetcher: default Fetcher on top of *http.Client
//
// # Usage
//
//	engine := crawler.NewEngine(crawler.NewHTTPFetcher(client))
//	events, err := engine.Start(ctx, "http://example.com/")
//	for ev := range events {
//	    fmt.Println(ev.Record.Address, ev.Record.Category)
//	}
package crawler
