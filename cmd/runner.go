package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/manhwatrack/internal/auth"
	"github.com/desertthunder/manhwatrack/internal/catalog"
	"github.com/desertthunder/manhwatrack/internal/library"
	"github.com/desertthunder/manhwatrack/internal/metrics"
	"github.com/desertthunder/manhwatrack/internal/offline"
	"github.com/desertthunder/manhwatrack/internal/repositories"
	"github.com/desertthunder/manhwatrack/internal/shared"
	"github.com/desertthunder/manhwatrack/internal/storage"
	"github.com/desertthunder/manhwatrack/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The database, local storage, offline worker, and catalog client are opened on first use so
// commands that need none of them (setup config, notify settings) never touch the disk.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	metrics    *metrics.Metrics

	db      *sql.DB
	store   *repositories.Store
	local   storage.Store
	worker  *offline.Worker
	catalog *catalog.Client
	session *library.Session
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	// HTTPClient replaces the offline worker as the catalog transport when set.
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Store      *repositories.Store
	Local      storage.Store
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		metrics:    metrics.New(),
		store:      opts.Store,
		local:      opts.Local,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, authCommand, catalogCommand, libraryCommand, goalsCommand,
		achievementsCommand, statsCommand, exportCommand, refreshCommand, notifyCommand, cacheCommand,
		tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before runs ahead of every command: it reloads the config named by --config and honors
// --verbose and --reset-storage.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.IsSet("config") {
		path := cmd.String("config")
		config, err := shared.LoadConfig(path)
		if err != nil {
			return ctx, err
		}
		r.config, r.configPath = config, path
	}
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	if cmd.Bool("reset-storage") {
		if err := r.ResetStorage(); err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}

// ResetStorage clears local storage, including the saved sign-in.
func (r *Runner) ResetStorage() error {
	if err := r.localStore().Clear(); err != nil {
		return fmt.Errorf("failed to reset storage: %w", err)
	}
	r.logger.Warn("local storage cleared")
	return nil
}

// Close releases whatever the commands opened. The offline cache is saved first so the next
// run starts warm.
func (r *Runner) Close() error {
	var errs []error
	if r.worker != nil {
		if err := r.worker.Save(); err != nil {
			errs = append(errs, err)
		}
		errs = append(errs, r.worker.Close())
	}
	if r.db != nil {
		errs = append(errs, r.db.Close())
	}
	return errors.Join(errs...)
}

// openStore opens the database and applies pending migrations.
func (r *Runner) openStore(ctx context.Context) (*repositories.Store, error) {
	if r.store != nil {
		return r.store, nil
	}

	path := shared.ExpandPath(r.config.Database.Path)
	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, path, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrationsContext(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db = db
	r.store = repositories.NewStore(db)
	return r.store, nil
}

func (r *Runner) localStore() storage.Store {
	if r.local == nil {
		r.local = storage.OpenLocal(r.config.Storage.Path)
	}
	return r.local
}

func (r *Runner) tokens() *auth.Tokens {
	return auth.NewTokens(r.config.Auth.JWTSecret, r.config.Auth.TokenTTL.Duration)
}

// librarySession restores the signed-in session from local storage.
func (r *Runner) librarySession() *library.Session {
	if r.session == nil {
		r.session = library.NewSession(r.tokens(), r.localStore())
	}
	return r.session
}

// libraryClient returns a client for the signed-in user.
func (r *Runner) libraryClient(ctx context.Context) (*library.Client, error) {
	store, err := r.openStore(ctx)
	if err != nil {
		return nil, err
	}
	client := library.NewClient(store, r.librarySession(), r.logger)
	if _, err := client.Session().UserID(); err != nil {
		return nil, fmt.Errorf("%w: run 'manhwatrack auth login' first", err)
	}
	return client, nil
}

func (r *Runner) accounts(ctx context.Context) (*auth.Service, error) {
	store, err := r.openStore(ctx)
	if err != nil {
		return nil, err
	}
	return auth.NewService(store.Users, r.tokens(), r.logger), nil
}

// offlineWorker returns the offline cache, loading partitions saved by earlier runs. A cache
// installed by an earlier run is active straight away.
func (r *Runner) offlineWorker() *offline.Worker {
	if r.worker == nil {
		var transport http.RoundTripper
		if r.httpClient != nil {
			transport = r.httpClient.Transport
		}
		r.worker = offline.NewWorkerFromConfig(r.config, transport, r.logger, r.metrics)
		if err := r.worker.Load(); err != nil {
			r.logger.Warn("failed to load offline cache", "error", err)
		}
		if r.worker.Resume() {
			r.logger.Debug("offline cache active", "partitions", r.worker.Partitions())
		}
	}
	return r.worker
}

// catalogHTTPClient routes catalog traffic through the offline worker when it is enabled.
func (r *Runner) catalogHTTPClient() *http.Client {
	timeout := r.config.Proxy.RequestTimeout.Duration
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	switch {
	case r.config.Offline.Enabled:
		return r.offlineWorker().Client(timeout)
	case r.httpClient != nil:
		return r.httpClient
	default:
		return &http.Client{Timeout: timeout}
	}
}

func (r *Runner) catalogClient(ctx context.Context) *catalog.Client {
	if r.catalog != nil {
		return r.catalog
	}

	opts := catalog.OptionsFromConfig(r.config.Catalog, r.config.Proxy.UserAgent)
	opts.HTTPClient = r.catalogHTTPClient()
	opts.Logger = r.logger
	r.catalog = catalog.NewClient(opts)

	if r.config.Catalog.HasCredentials() {
		if err := r.catalog.Authenticate(ctx, r.config.Catalog); err != nil {
			r.logger.Warn("catalog sign-in failed, continuing anonymously", "error", err)
		}
	}
	return r.catalog
}

func (r *Runner) engine(ctx context.Context) (*tasks.LibraryEngine, error) {
	client, err := r.libraryClient(ctx)
	if err != nil {
		return nil, err
	}
	return tasks.NewLibraryEngine(client, r.catalogClient(ctx), r.logger), nil
}

// printProgress writes updates as they arrive. Close ch, then wait on the returned channel.
func (r *Runner) printProgress(ch <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range ch {
			if update.Total > 0 {
				r.writePlain("[%d/%d] %s\n", update.Step, update.Total, update.Message)
			} else {
				r.writePlain("%s\n", update.Message)
			}
		}
	}()
	return done
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
