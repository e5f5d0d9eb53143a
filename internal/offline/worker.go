// Package offline is a caching [http.RoundTripper] that keeps the app usable without a network.
//
// Requests are routed to one of four strategies: stale-while-revalidate for cover images,
// network-first with an offline error for catalog API calls, cache-first for static assets,
// and network-first with an app shell fallback for documents. Everything else passes through.
package offline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/patrickmn/go-cache"

	"github.com/desertthunder/manhwatrack/internal/metrics"
	"github.com/desertthunder/manhwatrack/internal/shared"
)

// Message types accepted by [Worker.Post] and sent in reply.
const (
	MessageSkipWaiting  = "SKIP_WAITING"
	MessageClearCache   = "CLEAR_CACHE"
	MessageCacheCleared = "CACHE_CLEARED"
)

// CacheHeader reports how a response was served: hit, stale, or fallback.
const CacheHeader = "X-Offline-Cache"

// Kind names a cache partition.
type Kind string

const (
	KindStatic Kind = "static"
	KindCovers Kind = "covers"
	KindAPI    Kind = "api"
)

// Kinds lists every partition kind.
var Kinds = []Kind{KindStatic, KindCovers, KindAPI}

// State is the worker lifecycle state.
type State int

const (
	StateInstalling State = iota
	StateWaiting
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateWaiting:
		return "waiting"
	case StateActive:
		return "active"
	default:
		return "closed"
	}
}

// Message is posted to a worker. Replies, if any, go to Reply: CLEAR_CACHE is answered with
// CACHE_CLEARED and SKIP_WAITING is echoed once the worker is active.
type Message struct {
	Type  string
	Reply chan<- Message
}

// Options configures a [Worker].
type Options struct {
	AppName string
	Version string
	// Transport performs network requests. Defaults to [http.DefaultTransport].
	Transport http.RoundTripper
	// ImageHosts and APIHosts route absolute upstream URLs to the image and catalog strategies.
	ImageHosts []string
	APIHosts   []string
	// ShellAssets are fetched by [Worker.Install]; the first is the app shell document.
	ShellAssets []string
	CacheDir    string
	// SkipWaiting activates the worker as soon as it is installed.
	SkipWaiting bool
	Logger      *log.Logger
	Metrics     *metrics.Metrics
}

// DefaultShellAssets are the paths pre-cached on install.
var DefaultShellAssets = []string{"/", "/manifest.webmanifest", "/static/app.css"}

const revalidateTimeout = 30 * time.Second

// Worker caches responses in named partitions and serves them when the network fails.
type Worker struct {
	appName     string
	version     string
	transport   http.RoundTripper
	imageHosts  []string
	apiHosts    []string
	shellAssets []string
	cacheDir    string
	skipWaiting bool
	logger      *log.Logger
	metrics     *metrics.Metrics
	now         func() time.Time

	mu         sync.RWMutex
	state      State
	partitions map[string]*cache.Cache
	shellKey   string

	messages  chan Message
	done      chan struct{}
	closeOnce sync.Once
	loop      sync.WaitGroup
	bg        sync.WaitGroup
}

// NewWorker creates a worker and starts its message loop. Call [Worker.Close] to stop it.
func NewWorker(opts Options) *Worker {
	if opts.AppName == "" {
		opts.AppName = "manhwatrack"
	}
	if opts.Version == "" {
		opts.Version = "v1"
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if len(opts.ShellAssets) == 0 {
		opts.ShellAssets = DefaultShellAssets
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	w := &Worker{
		appName:     opts.AppName,
		version:     opts.Version,
		transport:   opts.Transport,
		imageHosts:  hosts(opts.ImageHosts),
		apiHosts:    hosts(opts.APIHosts),
		shellAssets: opts.ShellAssets,
		cacheDir:    shared.ExpandPath(opts.CacheDir),
		skipWaiting: opts.SkipWaiting,
		logger:      shared.WithLogger(opts.Logger, "component", "offline"),
		metrics:     opts.Metrics,
		now:         time.Now,
		partitions:  make(map[string]*cache.Cache),
		messages:    make(chan Message),
		done:        make(chan struct{}),
	}
	for _, k := range Kinds {
		w.partitions[w.PartitionName(k)] = newPartition()
	}

	w.loop.Add(1)
	go w.run()
	return w
}

// NewWorkerFromConfig builds a worker from the [offline], [catalog], and [proxy] config sections.
func NewWorkerFromConfig(cfg *shared.Config, transport http.RoundTripper, logger *log.Logger, m *metrics.Metrics) *Worker {
	return NewWorker(Options{
		AppName:     cfg.Offline.AppName,
		Version:     cfg.Offline.Version,
		Transport:   transport,
		ImageHosts:  []string{cfg.Proxy.ImageHost, cfg.Catalog.UploadsURL},
		APIHosts:    []string{cfg.Catalog.BaseURL},
		CacheDir:    cfg.Offline.CacheDir,
		SkipWaiting: true,
		Logger:      logger,
		Metrics:     m,
	})
}

func newPartition() *cache.Cache {
	return cache.New(cache.NoExpiration, 0)
}

// hosts reduces URLs or bare hosts to lower-case host names.
func hosts(raw []string) []string {
	var out []string
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if u, err := url.Parse(r); err == nil && u.Host != "" {
			r = u.Host
		}
		r = strings.ToLower(r)
		if !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}

// PartitionName returns the versioned partition name for k: <app>-<kind>-<version>.
func (w *Worker) PartitionName(k Kind) string {
	return fmt.Sprintf("%s-%s-%s", w.appName, k, w.version)
}

func (w *Worker) partition(k Kind) *cache.Cache {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.partitions[w.PartitionName(k)]
}

// State returns the lifecycle state.
func (w *Worker) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Client returns an HTTP client that routes through the worker.
func (w *Worker) Client(timeout time.Duration) *http.Client {
	return &http.Client{Transport: w, Timeout: timeout}
}

// Install fetches the shell assets relative to baseURL into the static partition. Assets that
// fail to download are reported in the returned error; the rest stay cached.
func (w *Worker) Install(ctx context.Context, baseURL string) error {
	base := strings.TrimRight(baseURL, "/")
	static := w.partition(KindStatic)

	var errs []error
	for i, asset := range w.shellAssets {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+asset, nil)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if i == 0 {
			w.mu.Lock()
			w.shellKey = cacheKey(req)
			w.mu.Unlock()
		}

		resp, err := w.transport.RoundTrip(req)
		if err != nil {
			errs = append(errs, fmt.Errorf("precache %s: %w", asset, err))
			continue
		}
		e, err := readEntry(resp, w.now())
		if err != nil {
			errs = append(errs, fmt.Errorf("precache %s: %w", asset, err))
			continue
		}
		if !e.ok() {
			errs = append(errs, fmt.Errorf("precache %s: status %d", asset, e.Status))
			continue
		}
		static.SetDefault(cacheKey(req), e)
	}

	w.mu.Lock()
	if w.state == StateInstalling {
		w.state = StateWaiting
	}
	w.mu.Unlock()

	if err := errors.Join(errs...); err != nil {
		w.logger.Warn("install incomplete", "error", err)
		return err
	}

	w.logger.Debug("installed", "assets", len(w.shellAssets))
	if w.skipWaiting {
		w.Activate()
	}
	return nil
}

// Resume activates a worker whose static partition already holds the app shell, as it does
// after an install in an earlier run. It reports whether the worker is active.
func (w *Worker) Resume() bool {
	if w.State() == StateActive {
		return true
	}

	for key := range w.partition(KindStatic).Items() {
		method, raw, ok := strings.Cut(key, " ")
		if !ok || method != http.MethodGet {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Path != w.shellAssets[0] {
			continue
		}

		w.mu.Lock()
		if w.shellKey == "" {
			w.shellKey = key
		}
		w.mu.Unlock()
		w.Activate()
		return w.State() == StateActive
	}
	return false
}

// Activate deletes partitions from other versions and starts intercepting requests.
func (w *Worker) Activate() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateClosed {
		return
	}

	current := make(map[string]bool, len(Kinds))
	for _, k := range Kinds {
		current[w.PartitionName(k)] = true
	}
	for name := range w.partitions {
		if current[name] {
			continue
		}
		delete(w.partitions, name)
		if w.cacheDir != "" {
			_ = os.Remove(filepath.Join(w.cacheDir, name+".gob"))
		}
		w.logger.Info("deleted stale cache", "name", name)
	}
	w.state = StateActive
}

// Clear empties every partition.
func (w *Worker) Clear() {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, c := range w.partitions {
		c.Flush()
	}
	w.logger.Info("cache cleared")
}

// Partitions returns each partition name with its item count.
func (w *Worker) Partitions() map[string]int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]int, len(w.partitions))
	for name, c := range w.partitions {
		out[name] = c.ItemCount()
	}
	return out
}

// Post delivers a message to the worker's loop.
func (w *Worker) Post(m Message) error {
	select {
	case w.messages <- m:
		return nil
	case <-w.done:
		return shared.ErrWorkerClosed
	}
}

func (w *Worker) run() {
	defer w.loop.Done()
	for {
		select {
		case m := <-w.messages:
			w.handle(m)
		case <-w.done:
			return
		}
	}
}

func (w *Worker) handle(m Message) {
	switch m.Type {
	case MessageSkipWaiting:
		w.Activate()
		if m.Reply != nil {
			select {
			case m.Reply <- Message{Type: MessageSkipWaiting}:
			case <-w.done:
			}
		}
	case MessageClearCache:
		w.Clear()
		if m.Reply != nil {
			select {
			case m.Reply <- Message{Type: MessageCacheCleared}:
			case <-w.done:
			}
		}
	default:
		w.logger.Debug("ignored message", "type", m.Type)
	}
}

// Wait blocks until background revalidations finish.
func (w *Worker) Wait() {
	w.bg.Wait()
}

// Close stops the message loop and waits for background work.
func (w *Worker) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		w.state = StateClosed
		w.mu.Unlock()
	})
	w.loop.Wait()
	w.bg.Wait()
	return nil
}

// Save writes each partition to <cache dir>/<partition>.gob.
func (w *Worker) Save() error {
	if w.cacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(w.cacheDir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	for name, c := range w.partitions {
		if err := c.SaveFile(filepath.Join(w.cacheDir, name+".gob")); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
	}
	return nil
}

// Load reads every partition file in the cache dir. Partitions from other versions are loaded
// too so that [Worker.Activate] can delete them.
func (w *Worker) Load() error {
	if w.cacheDir == "" {
		return nil
	}
	files, err := filepath.Glob(filepath.Join(w.cacheDir, "*.gob"))
	if err != nil {
		return fmt.Errorf("list cache dir: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), ".gob")
		if !strings.HasPrefix(name, w.appName+"-") {
			continue
		}
		c, ok := w.partitions[name]
		if !ok {
			c = newPartition()
			w.partitions[name] = c
		}
		if err := c.LoadFile(f); err != nil {
			w.logger.Warn("discarding unreadable cache", "file", f, "error", err)
			c.Flush()
		}
	}
	return nil
}
