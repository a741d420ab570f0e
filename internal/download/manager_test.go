package download

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/sitegrab/internal/model"
)

// drain reads a job's events until the stream closes.
func drain(t *testing.T, job *Job, onEvent func(Event)) []Event {
	t.Helper()

	var events []Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-job.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
			if onEvent != nil {
				onEvent(ev)
			}
		case <-timeout:
			t.Fatal("batch did not finish in time")
		}
	}
}

// assertNoPartialFiles fails when a temporary transfer file is left in dir.
func assertNoPartialFiles(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*"+partialSuffix))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) > 0 {
		t.Errorf("temporary files left behind: %v", matches)
	}
}

// serveBytes answers with body and an explicit Content-Length.
func serveBytes(body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		_, _ = w.Write(body)
	}
}

// TestManagerBatch tests batches that run to completion.
func TestManagerBatch(t *testing.T) {
	t.Parallel()

	t.Run("single file", func(t *testing.T) {
		t.Parallel()

		content := bytes.Repeat([]byte("sitegrab"), 4096)
		server := httptest.NewServer(serveBytes(content))
		defer server.Close()

		dir := t.TempDir()
		m := NewManager(server.Client())
		job, err := m.Start(context.Background(), dir, model.NewDownloadItems(server.URL+"/files/data.bin"))
		if err != nil {
			t.Fatalf("failed to start: %v", err)
		}
		events := drain(t, job, nil)
		record := job.Wait()

		path := filepath.Join(dir, "data.bin")
		if record.Message() != "Download complete: file saved to "+path {
			t.Errorf("unexpected message %q", record.Message())
		}
		got, err := os.ReadFile(path) //nolint:gosec // test file
		if err != nil {
			t.Fatalf("file not saved: %v", err)
		}
		if !bytes.Equal(got, content) {
			t.Error("saved content differs")
		}

		sum := sha3.Sum256(content)
		if record.Results[0].Digest != hex.EncodeToString(sum[:]) {
			t.Errorf("unexpected digest %s", record.Results[0].Digest)
		}

		var last int64
		var progress int
		for _, ev := range events {
			if ev.Kind != EventProgress {
				continue
			}
			progress++
			if ev.Written < last {
				t.Errorf("progress went backwards: %d after %d", ev.Written, last)
			}
			last = ev.Written
			if ev.Size != int64(len(content)) {
				t.Errorf("expected known size, got %d", ev.Size)
			}
		}
		if progress < 2 || last != int64(len(content)) {
			t.Errorf("expected several progress events ending at %d, got %d ending at %d", len(content), progress, last)
		}
		if events[len(events)-1].Kind != EventCompleted || events[len(events)-1].Completion != record {
			t.Error("expected the completion event last")
		}
	})

	t.Run("failure in the middle does not stop the batch", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/a.txt", serveBytes([]byte("alpha")))
		mux.HandleFunc("/b.txt", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})
		mux.HandleFunc("/c.txt", serveBytes([]byte("gamma")))
		server := httptest.NewServer(mux)
		defer server.Close()

		dir := t.TempDir()
		m := NewManager(server.Client())
		job, err := m.Start(context.Background(), dir, model.NewDownloadItems(
			server.URL+"/a.txt", server.URL+"/b.txt", server.URL+"/c.txt"))
		if err != nil {
			t.Fatalf("failed to start: %v", err)
		}

		var itemErr error
		drain(t, job, func(ev Event) {
			if ev.Kind == EventItemDone && ev.Index == 1 {
				itemErr = ev.Err
			}
		})
		record := job.Wait()

		if len(record.Succeeded) != 2 || record.Succeeded[0] != "a.txt" || record.Succeeded[1] != "c.txt" {
			t.Errorf("unexpected succeeded list %v", record.Succeeded)
		}
		if len(record.Failed) != 1 || record.Failed[0] != "b.txt" {
			t.Errorf("unexpected failed list %v", record.Failed)
		}
		if record.Cancelled || record.LastIndex != 2 {
			t.Errorf("unexpected record state cancelled=%v last=%d", record.Cancelled, record.LastIndex)
		}
		if record.Message() != "Download complete: 2 succeeded, 1 failed" {
			t.Errorf("unexpected message %q", record.Message())
		}

		var te *TransportError
		if !errors.As(itemErr, &te) || te.StatusCode != http.StatusInternalServerError {
			t.Errorf("expected transport error with status 500, got %v", itemErr)
		}
		if _, err := os.Stat(filepath.Join(dir, "b.txt")); !os.IsNotExist(err) {
			t.Error("failed item left a file behind")
		}
	})

	t.Run("truncated body removes the partial file", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Length", "100000")
			_, _ = w.Write(bytes.Repeat([]byte("x"), 1000))
		}))
		defer server.Close()

		dir := t.TempDir()
		job, err := NewManager(server.Client()).Start(context.Background(), dir,
			model.NewDownloadItems(server.URL+"/short.bin"))
		if err != nil {
			t.Fatalf("failed to start: %v", err)
		}
		drain(t, job, nil)
		record := job.Wait()

		if len(record.Failed) != 1 {
			t.Fatalf("expected one failure, got %+v", record)
		}
		if _, err := os.Stat(filepath.Join(dir, "short.bin")); !os.IsNotExist(err) {
			t.Error("partial file was not removed")
		}
	})

	t.Run("failed transfer keeps an existing explicit destination", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Length", "100000")
			_, _ = w.Write(bytes.Repeat([]byte("x"), 1000))
		}))
		defer server.Close()

		dir := t.TempDir()
		dest := filepath.Join(dir, "keep.txt")
		if err := os.WriteFile(dest, []byte("original"), 0o600); err != nil {
			t.Fatal(err)
		}

		job, err := NewManager(server.Client()).Start(context.Background(), dir,
			[]model.DownloadItem{{Address: server.URL + "/keep.txt", DestinationPath: dest}})
		if err != nil {
			t.Fatalf("failed to start: %v", err)
		}
		drain(t, job, nil)
		if record := job.Wait(); len(record.Failed) != 1 {
			t.Fatalf("expected one failure, got %+v", record)
		}

		got, err := os.ReadFile(dest) //nolint:gosec // test file
		if err != nil || string(got) != "original" {
			t.Errorf("expected the existing file to survive, got %q, %v", got, err)
		}
		assertNoPartialFiles(t, dir)
	})

	t.Run("successful transfer replaces an explicit destination", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(serveBytes([]byte("fresh")))
		defer server.Close()

		dir := t.TempDir()
		dest := filepath.Join(dir, "page.html")
		if err := os.WriteFile(dest, []byte("stale"), 0o600); err != nil {
			t.Fatal(err)
		}

		job, err := NewManager(server.Client()).Start(context.Background(), dir,
			[]model.DownloadItem{{Address: server.URL + "/page.html", DestinationPath: dest}})
		if err != nil {
			t.Fatalf("failed to start: %v", err)
		}
		drain(t, job, nil)
		if record := job.Wait(); !record.AllSucceeded() {
			t.Fatalf("expected success, got %+v", record)
		}

		got, err := os.ReadFile(dest) //nolint:gosec // test file
		if err != nil || string(got) != "fresh" {
			t.Errorf("expected replaced content, got %q, %v", got, err)
		}
		assertNoPartialFiles(t, dir)
	})

	t.Run("two report.pdf downloads produce two files", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/2023/report.pdf", serveBytes([]byte("first")))
		mux.HandleFunc("/2024/report.pdf", serveBytes([]byte("second")))
		server := httptest.NewServer(mux)
		defer server.Close()

		dir := t.TempDir()
		job, err := NewManager(server.Client()).Start(context.Background(), dir, model.NewDownloadItems(
			server.URL+"/2023/report.pdf", server.URL+"/2024/report.pdf"))
		if err != nil {
			t.Fatalf("failed to start: %v", err)
		}
		drain(t, job, nil)
		record := job.Wait()

		if len(record.Succeeded) != 2 {
			t.Fatalf("expected two successes, got %+v", record)
		}
		first, second := record.Results[0].Path, record.Results[1].Path
		if first == second {
			t.Fatalf("both items saved to %s", first)
		}
		a, _ := os.ReadFile(first)  //nolint:gosec // test file
		b, _ := os.ReadFile(second) //nolint:gosec // test file
		if string(a) != "first" || string(b) != "second" {
			t.Errorf("unexpected contents %q and %q", a, b)
		}
	})

	t.Run("unknown length reports bytes only", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("part one "))
			w.(http.Flusher).Flush()
			_, _ = w.Write([]byte("part two"))
		}))
		defer server.Close()

		job, err := NewManager(server.Client()).Start(context.Background(), t.TempDir(),
			model.NewDownloadItems(server.URL+"/stream"))
		if err != nil {
			t.Fatalf("failed to start: %v", err)
		}
		events := drain(t, job, nil)

		for _, ev := range events {
			if ev.Kind != EventProgress {
				continue
			}
			if ev.Size != model.UnknownTotal {
				t.Errorf("expected unknown total, got %d", ev.Size)
			}
			if _, ok := ev.Percent(); ok {
				t.Error("expected no percentage")
			}
		}
		if !job.Wait().AllSucceeded() {
			t.Error("expected success")
		}
	})

	t.Run("empty batch is rejected", func(t *testing.T) {
		t.Parallel()
		if _, err := NewManager(nil).Start(context.Background(), t.TempDir(), nil); !errors.Is(err, ErrNoItems) {
			t.Errorf("expected ErrNoItems, got %v", err)
		}
	})
}

// blockingSite serves a.txt at once, sends the first chunk of b.bin and then
// waits for release, and counts requests to c.txt.
type blockingSite struct {
	server  *httptest.Server
	release chan struct{}
	cHits   atomic.Int32
}

func newBlockingSite(t *testing.T) *blockingSite {
	t.Helper()

	s := &blockingSite{release: make(chan struct{})}
	mux := http.NewServeMux()
	mux.HandleFunc("/a.txt", serveBytes([]byte("alpha")))
	mux.HandleFunc("/b.bin", func(w http.ResponseWriter, r *http.Request) {
		chunk := bytes.Repeat([]byte("b"), 1024)
		w.Header().Set("Content-Length", strconv.Itoa(3*len(chunk)))
		_, _ = w.Write(chunk)
		w.(http.Flusher).Flush()
		select {
		case <-s.release:
		case <-r.Context().Done():
			return
		}
		_, _ = w.Write(chunk)
		_, _ = w.Write(chunk)
	})
	mux.HandleFunc("/c.txt", func(w http.ResponseWriter, _ *http.Request) {
		s.cHits.Add(1)
		_, _ = w.Write([]byte("gamma"))
	})
	s.server = httptest.NewServer(mux)
	return s
}

func (s *blockingSite) items() []model.DownloadItem {
	return model.NewDownloadItems(s.server.URL+"/a.txt", s.server.URL+"/b.bin", s.server.URL+"/c.txt")
}

// TestManagerCancel tests cooperative cancellation.
func TestManagerCancel(t *testing.T) {
	t.Parallel()

	t.Run("cancel during the second item", func(t *testing.T) {
		t.Parallel()

		site := newBlockingSite(t)
		defer site.server.Close()

		dir := t.TempDir()
		job, err := NewManager(site.server.Client()).Start(context.Background(), dir, site.items())
		if err != nil {
			t.Fatalf("failed to start: %v", err)
		}

		released := false
		drain(t, job, func(ev Event) {
			if ev.Kind == EventProgress && ev.Index == 1 && !released {
				job.Cancel()
				close(site.release)
				released = true
			}
		})
		record := job.Wait()

		if !record.Cancelled {
			t.Error("expected a cancelled record")
		}
		if len(record.Succeeded) != 1 || record.Succeeded[0] != "a.txt" {
			t.Errorf("unexpected succeeded list %v", record.Succeeded)
		}
		if len(record.Failed) != 0 {
			t.Errorf("cancelled item reported as failure: %v", record.Failed)
		}
		if record.LastIndex != 1 {
			t.Errorf("expected last index 1, got %d", record.LastIndex)
		}
		if site.cHits.Load() != 0 {
			t.Error("item after the cancelled one was attempted")
		}
		if _, err := os.Stat(filepath.Join(dir, "b.bin")); !os.IsNotExist(err) {
			t.Error("partial file of the cancelled item remains")
		}
		assertNoPartialFiles(t, dir)
		if record.Message() != "Download cancelled: 1 of 3 file(s) downloaded before cancellation." {
			t.Errorf("unexpected message %q", record.Message())
		}
		if record.Title() != "Download Cancelled" {
			t.Errorf("unexpected title %q", record.Title())
		}
	})

	t.Run("context cancellation cancels the batch", func(t *testing.T) {
		t.Parallel()

		site := newBlockingSite(t)
		defer site.server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		dir := t.TempDir()
		job, err := NewManager(site.server.Client()).Start(ctx, dir, site.items())
		if err != nil {
			t.Fatalf("failed to start: %v", err)
		}
		drain(t, job, func(ev Event) {
			if ev.Kind == EventProgress && ev.Index == 1 {
				cancel()
			}
		})
		record := job.Wait()

		if !record.Cancelled || len(record.Failed) != 0 {
			t.Errorf("expected cancellation without failures, got %+v", record)
		}
		if site.cHits.Load() != 0 {
			t.Error("item after the cancelled one was attempted")
		}
		if _, err := os.Stat(filepath.Join(dir, "b.bin")); !os.IsNotExist(err) {
			t.Error("partial file remains")
		}
	})

	t.Run("cancel before the worker reaches an item", func(t *testing.T) {
		t.Parallel()

		site := newBlockingSite(t)
		defer site.server.Close()

		m := NewManager(site.server.Client())
		job, err := m.Start(context.Background(), t.TempDir(), site.items())
		if err != nil {
			t.Fatalf("failed to start: %v", err)
		}
		job.Cancel()
		close(site.release)
		drain(t, job, nil)

		if !job.Wait().Cancelled {
			t.Error("expected a cancelled record")
		}
		if site.cHits.Load() != 0 {
			t.Error("no item after cancellation may be attempted")
		}
	})

	t.Run("stalled transfer fails with a timeout", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
		}))
		defer server.Close()

		job, err := NewManager(server.Client(), WithTimeout(50*time.Millisecond)).Start(
			context.Background(), t.TempDir(), model.NewDownloadItems(server.URL+"/slow"))
		if err != nil {
			t.Fatalf("failed to start: %v", err)
		}
		var itemErr error
		drain(t, job, func(ev Event) {
			if ev.Kind == EventItemDone {
				itemErr = ev.Err
			}
		})

		if !errors.Is(itemErr, errStalled) {
			t.Errorf("expected a stalled transfer error, got %v", itemErr)
		}
		if job.Wait().Cancelled {
			t.Error("a timeout is not a cancellation")
		}
	})
}

// TestManagerSingleBatch tests that batches do not overlap.
func TestManagerSingleBatch(t *testing.T) {
	t.Parallel()

	site := newBlockingSite(t)
	defer site.server.Close()

	m := NewManager(site.server.Client())
	job, err := m.Start(context.Background(), t.TempDir(), site.items())
	if err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	if m.Active() != job {
		t.Error("expected the job to be active")
	}
	if _, err := m.Start(context.Background(), t.TempDir(), site.items()); !errors.Is(err, ErrBatchActive) {
		t.Errorf("expected ErrBatchActive, got %v", err)
	}

	close(site.release)
	drain(t, job, nil)
	job.Wait()

	if m.Active() != nil {
		t.Error("expected no active job after completion")
	}
	next, err := m.Start(context.Background(), t.TempDir(), model.NewDownloadItems(site.server.URL+"/a.txt"))
	if err != nil {
		t.Fatalf("expected a new batch to start, got %v", err)
	}
	drain(t, next, nil)
}
