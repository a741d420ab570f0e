package download

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/nao1215/sitegrab/internal/model"
)

// Defaults of the download manager.
const (
	// DefaultTimeout is the longest a transfer may go without receiving data.
	DefaultTimeout = 20 * time.Second

	// DefaultChunkSize is the read buffer size of a transfer.
	DefaultChunkSize = 8192

	// DefaultUserAgent is sent with every download request.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Manager starts download batches. At most one batch is active at a time.
type Manager struct {
	client    Doer
	timeout   time.Duration
	chunkSize int
	userAgent string
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.Mutex
	active *Job
}

// Option configures a Manager.
type Option func(*Manager)

// WithTimeout sets how long a transfer may stall before it fails.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithChunkSize sets the read buffer size.
func WithChunkSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.chunkSize = n
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(m *Manager) {
		if ua != "" {
			m.userAgent = ua
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a manager that downloads through client.
// A nil client means http.DefaultClient.
func NewManager(client Doer, opts ...Option) *Manager {
	if client == nil {
		client = http.DefaultClient
	}
	m := &Manager{
		client:    client,
		timeout:   DefaultTimeout,
		chunkSize: DefaultChunkSize,
		userAgent: DefaultUserAgent,
		logger:    slog.New(slog.DiscardHandler),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start resolves the destinations of items under dir and begins the batch
// in a background worker. Cancelling ctx has the same effect as Job.Cancel.
func (m *Manager) Start(ctx context.Context, dir string, items []model.DownloadItem) (*Job, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return nil, ErrBatchActive
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, &FilesystemError{Path: dir, Op: "mkdir", Err: err}
	}

	resolved := ResolveDestinations(dir, items, m.now())
	job := newJob(m, dir, resolved)
	m.active = job

	m.logger.Info("download batch started", "job", job.id, "items", len(resolved), "dir", dir)
	go job.watch(ctx)
	go job.run(ctx)
	return job, nil
}

// Active returns the running job, or nil.
func (m *Manager) Active() *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// release clears the active job once it has ended.
func (m *Manager) release(j *Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == j {
		m.active = nil
	}
}
