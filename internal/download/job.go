package download

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"

	"github.com/nao1215/sitegrab/internal/dispatch"
	"github.com/nao1215/sitegrab/internal/model"
)

// Job is one running download batch.
//
// The worker goroutine owns the completion record. Other goroutines only
// observe it through events and Wait.
type Job struct {
	id      string
	manager *Manager
	dir     string
	items   []model.DownloadItem

	cancelled atomic.Bool
	events    *dispatch.Queue[Event]
	done      chan struct{}
	record    *model.CompletionRecord
}

func newJob(m *Manager, dir string, items []model.DownloadItem) *Job {
	return &Job{
		id:      uuid.NewString(),
		manager: m,
		dir:     dir,
		items:   items,
		events:  dispatch.NewQueue[Event](),
		done:    make(chan struct{}),
		record:  model.NewCompletionRecord(len(items), dir),
	}
}

// ID returns the job identifier.
func (j *Job) ID() string {
	return j.id
}

// Dir returns the batch directory.
func (j *Job) Dir() string {
	return j.dir
}

// Items returns the batch items with their resolved destinations.
func (j *Job) Items() []model.DownloadItem {
	out := make([]model.DownloadItem, len(j.items))
	copy(out, j.items)
	return out
}

// Events returns the event stream. It is closed after EventCompleted.
func (j *Job) Events() <-chan Event {
	return j.events.C()
}

// Cancel requests cancellation. The worker honors it before the next chunk
// write or the next item, whichever comes first.
func (j *Job) Cancel() {
	j.cancelled.Store(true)
}

// Cancelled reports whether cancellation was requested.
func (j *Job) Cancelled() bool {
	return j.cancelled.Load()
}

// Done is closed when the batch has ended.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the batch ends and returns its completion record.
func (j *Job) Wait() *model.CompletionRecord {
	<-j.done
	return j.record
}

// watch maps context cancellation onto the cancellation flag.
func (j *Job) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		j.Cancel()
	case <-j.done:
	}
}

// run processes the items in input order.
func (j *Job) run(ctx context.Context) {
	logger := j.manager.logger.With("job", j.id)
	total := len(j.items)

	for i, item := range j.items {
		if j.cancelled.Load() {
			j.record.Cancelled = true
			break
		}
		j.record.LastIndex = i

		name := filepath.Base(item.DestinationPath)
		j.events.Post(Event{
			Kind:  EventItemStarted,
			Index: i,
			Total: total,
			Name:  name,
			Size:  model.UnknownTotal,
		})

		result, err := j.download(ctx, i, item)
		j.record.Add(result)
		j.events.Post(Event{
			Kind:    EventItemDone,
			Index:   i,
			Total:   total,
			Name:    name,
			Written: result.Bytes,
			Size:    model.UnknownTotal,
			Status:  result.Status,
			Err:     err,
		})

		switch result.Status {
		case model.ItemSucceeded:
			logger.Debug("item saved", "address", item.Address, "path", result.Path, "bytes", result.Bytes)
		case model.ItemFailed:
			logger.Warn("item failed", "address", item.Address, "error", err)
		case model.ItemCancelled:
			logger.Info("batch cancelled", "index", i)
		}
		if result.Status == model.ItemCancelled {
			break
		}
	}

	j.manager.logger.Info("download batch ended", "job", j.id,
		"succeeded", len(j.record.Succeeded), "failed", len(j.record.Failed), "cancelled", j.record.Cancelled)

	j.manager.release(j)
	j.events.Post(Event{Kind: EventCompleted, Index: j.record.LastIndex, Total: total, Completion: j.record})
	j.events.Close()
	close(j.done)
}

// download transfers one item. The returned error is nil on success and
// ErrCancelled, *TransportError or *FilesystemError otherwise.
func (j *Job) download(ctx context.Context, index int, item model.DownloadItem) (model.ItemResult, error) {
	result := model.ItemResult{
		Index:   index,
		Address: item.Address,
		Path:    item.DestinationPath,
		Status:  model.ItemFailed,
	}
	fail := func(err error) (model.ItemResult, error) {
		if ctx.Err() != nil {
			j.Cancel()
		}
		if j.cancelled.Load() {
			result.Status = model.ItemCancelled
			return result, ErrCancelled
		}
		result.Error = err.Error()
		return result, err
	}

	m := j.manager
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var stalled atomic.Bool
	timer := time.AfterFunc(m.timeout, func() {
		stalled.Store(true)
		cancel()
	})
	defer timer.Stop()

	transportErr := func(err error) error {
		if stalled.Load() {
			err = fmt.Errorf("%w: no data for %s", errStalled, m.timeout)
		}
		return &TransportError{Address: item.Address, Err: err}
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, item.Address, nil)
	if err != nil {
		return fail(&TransportError{Address: item.Address, Err: err})
	}
	req.Header.Set("User-Agent", m.userAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		return fail(transportErr(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fail(&TransportError{Address: item.Address, StatusCode: resp.StatusCode})
	}

	// Data goes to a temporary file next to the destination, which is only
	// replaced once the transfer is complete.
	f, err := os.CreateTemp(filepath.Dir(item.DestinationPath), "."+filepath.Base(item.DestinationPath)+".*"+partialSuffix)
	if err != nil {
		return fail(&FilesystemError{Path: item.DestinationPath, Op: "create", Err: err})
	}
	partial := f.Name()

	size := resp.ContentLength
	if size <= 0 {
		size = model.UnknownTotal
	}
	hasher := sha3.New256()
	pw := &progressWriter{
		Writer: io.MultiWriter(f, hasher),
		Total:  size,
		OnUpdate: func(written, total int64) {
			j.events.Post(Event{
				Kind:    EventProgress,
				Index:   index,
				Total:   len(j.items),
				Name:    filepath.Base(item.DestinationPath),
				Written: written,
				Size:    total,
			})
		},
	}

	copyErr := j.copyChunks(pw, resp.Body, item.DestinationPath, func() { timer.Reset(m.timeout) })
	closeErr := f.Close()
	result.Bytes = pw.Written

	switch {
	case copyErr != nil:
		removePartial(partial)
		var fsErr *FilesystemError
		if errors.Is(copyErr, ErrCancelled) || errors.As(copyErr, &fsErr) {
			return fail(copyErr)
		}
		return fail(transportErr(copyErr))
	case closeErr != nil:
		removePartial(partial)
		return fail(&FilesystemError{Path: item.DestinationPath, Op: "close", Err: closeErr})
	}

	if err := os.Rename(partial, item.DestinationPath); err != nil {
		removePartial(partial)
		return fail(&FilesystemError{Path: item.DestinationPath, Op: "rename", Err: err})
	}

	result.Status = model.ItemSucceeded
	result.Digest = hex.EncodeToString(hasher.Sum(nil))
	return result, nil
}

// copyChunks streams body into dst one chunk at a time. The cancellation
// flag is read before every write. tick is called after every read that
// returned data.
func (j *Job) copyChunks(dst *progressWriter, body io.Reader, path string, tick func()) error {
	buf := make([]byte, j.manager.chunkSize)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			tick()
			if j.cancelled.Load() {
				return ErrCancelled
			}
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return &FilesystemError{Path: path, Op: "write", Err: werr}
			}
		}
		if errors.Is(rerr, io.EOF) {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

// partialSuffix marks temporary files of transfers in progress.
const partialSuffix = ".part"

// removePartial deletes a partially written file. Errors are ignored.
func removePartial(path string) {
	_ = os.Remove(path)
}
