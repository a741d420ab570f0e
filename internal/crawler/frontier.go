package crawler

import "github.com/bits-and-blooms/bloom/v3"

// bloomEstimate sizes the bloom filter. It only affects the false positive
// rate of the fast path; correctness comes from the exact sets.
const bloomEstimate = 100_000

// Frontier holds the addresses awaiting a fetch plus the visited set of the
// current run. Addresses are compared by their normalized string form.
//
// Invariants:
//   - an address is in at most one of queue and visited
//   - the queue never holds the same address twice
//   - addresses leave the queue in the order they were first offered
//
// A Frontier is owned by the engine's worker goroutine and is not safe for
// concurrent use.
type Frontier struct {
	queue   []string
	pending map[string]struct{}
	visited map[string]struct{}

	// seen answers "definitely never offered" without touching the maps.
	seen *bloom.BloomFilter
}

// NewFrontier returns an empty frontier.
func NewFrontier() *Frontier {
	f := &Frontier{}
	f.reset()
	return f
}

func (f *Frontier) reset() {
	f.queue = make([]string, 0)
	f.pending = make(map[string]struct{})
	f.visited = make(map[string]struct{})
	f.seen = bloom.NewWithEstimates(bloomEstimate, 0.01)
}

// Seed discards all state and starts over with address as the only entry.
func (f *Frontier) Seed(address string) {
	f.reset()
	f.enqueue(address)
}

// DequeueNext pops the earliest offered address. ok is false when the
// frontier is exhausted.
func (f *Frontier) DequeueNext() (address string, ok bool) {
	if len(f.queue) == 0 {
		return "", false
	}
	address = f.queue[0]
	f.queue[0] = ""
	f.queue = f.queue[1:]
	delete(f.pending, address)
	return address, true
}

// MarkVisited records address as fetched. Calling it again is a no-op.
func (f *Frontier) MarkVisited(address string) {
	f.visited[address] = struct{}{}
	f.seen.AddString(address)
}

// IsVisited reports whether address was marked visited in this run.
func (f *Frontier) IsVisited(address string) bool {
	if !f.seen.TestString(address) {
		return false
	}
	_, ok := f.visited[address]
	return ok
}

// Offer enqueues address unless it was already visited or is already
// pending. It reports whether the address was added.
func (f *Frontier) Offer(address string) bool {
	if f.seen.TestString(address) {
		if _, ok := f.visited[address]; ok {
			return false
		}
		if _, ok := f.pending[address]; ok {
			return false
		}
	}
	f.enqueue(address)
	return true
}

func (f *Frontier) enqueue(address string) {
	f.queue = append(f.queue, address)
	f.pending[address] = struct{}{}
	f.seen.AddString(address)
}

// Len returns the number of pending addresses.
func (f *Frontier) Len() int {
	return len(f.queue)
}

// VisitedCount returns the number of visited addresses.
func (f *Frontier) VisitedCount() int {
	return len(f.visited)
}

// Pending returns a copy of the queue in dequeue order.
func (f *Frontier) Pending() []string {
	out := make([]string, len(f.queue))
	copy(out, f.queue)
	return out
}
