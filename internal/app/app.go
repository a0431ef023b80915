package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"sdr-go/internal/api"
	"sdr-go/internal/cocina"
	"sdr-go/internal/config"
	"sdr-go/internal/credentials"
	"sdr-go/internal/files"
	"sdr-go/internal/grouping"
	"sdr-go/internal/history"
	"sdr-go/internal/receipt"
	"sdr-go/internal/sdr"
)

// PasswordPrompt asks the user for the password of email.
type PasswordPrompt func(email string) (string, error)

// Options control how an SDRApp is built. Zero values use the real clock,
// sleeper and stderr.
type Options struct {
	// Operation identifies the CLI command being run (e.g. "deposit", "get").
	Operation  string
	Parameters string
	Verbose    bool
	Prompt     PasswordPrompt
	Console    io.Writer
	Clock      sdr.Clock
	Sleeper    sdr.Sleeper
}

// SDRApp is the application layer between the CLI and DepositService.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw CLI values, and records mutating operations in the history.
type SDRApp struct {
	cfg      *config.Config
	client   *api.Client
	tokens   *credentials.Provider
	service  *sdr.DepositService
	history  sdr.History
	receipts sdr.ReceiptStore
	clock    sdr.Clock
	prompt   PasswordPrompt
	logger   sdr.Logger
	op       *DepositOperation
	logFile  *os.File
}

// NewSDRApp creates a fully wired SDRApp from the given config.
// The caller must call Close when done.
func NewSDRApp(ctx context.Context, cfg *config.Config, opts Options) (*SDRApp, error) {
	clock := opts.Clock
	if clock == nil {
		clock = sdr.RealClock{}
	}
	sleeper := opts.Sleeper
	if sleeper == nil {
		sleeper = sdr.RealSleeper{}
	}
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}

	opID := uuid.New().String()
	slogger, logFile, err := newLogger(cfg.LogDir, opID, console, level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	hist, err := history.NewHistoryFromConfig(cfg.History)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening history: %w", err)
	}

	receipts, err := receipt.NewStoreFromConfig(ctx, cfg.Receipts)
	if err != nil {
		hist.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating receipt store: %w", err)
	}
	if receipts != nil {
		if err := receipts.ValidateSetup(ctx); err != nil {
			logger.Warn("receipt store unavailable, receipts disabled", "type", cfg.Receipts.Type, "error", err)
			receipts = nil
		}
	}

	a := &SDRApp{
		cfg:      cfg,
		history:  hist,
		receipts: receipts,
		clock:    clock,
		prompt:   opts.Prompt,
		logger:   logger,
		op:       NewDepositOperation(opts.Operation, opts.Parameters),
		logFile:  logFile,
	}

	a.tokens = credentials.NewProvider(credentials.NewFileStore(cfg.TokenPath), a.reauthenticate, clock, logger)

	client, err := api.NewClient(api.Options{
		BaseURL:       cfg.URL,
		Timeout:       cfg.HTTP.Timeout,
		CocinaVersion: cfg.CocinaVersion,
		Tokens:        a.tokens,
		Logger:        logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating api client: %w", err)
	}
	a.client = client

	a.service = sdr.NewDepositService(sdr.Dependencies{
		Files:     files.NewInspector(),
		Uploader:  client,
		Resources: client,
		Jobs:      client,
		Builder:   cocina.NewBuilder(),
		Receipts:  receipts,
		Logger:    logger,
		Clock:     clock,
		Sleeper:   sleeper,
	}, sdr.ServiceOptions{
		UploadWorkers: cfg.Upload.Workers,
		Polling: sdr.PollerOptions{
			Interval:    cfg.Polling.Interval,
			Backoff:     cfg.Polling.Backoff,
			MaxInterval: cfg.Polling.MaxInterval,
			Timeout:     cfg.Polling.Timeout,
		},
	})

	return a, nil
}

// persistOperation saves the operation to the history, giving it an ID.
// This should only be called for mutating commands.
func (a *SDRApp) persistOperation() error {
	if a.op.Persisted() {
		return nil
	}
	rec, err := a.history.CreateOperation(a.op.Operation, a.op.Parameters, a.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("recording operation: %w", err)
	}
	a.op.ID = rec.ID
	return nil
}

// Deposit uploads local files and creates an object from them. With
// Accession unset in the request this registers the object only.
func (a *SDRApp) Deposit(ctx context.Context, req DepositRequest) (*sdr.DepositResult, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	result, err := a.deposit(ctx, req)
	a.op.Record(result, err)
	return result, err
}

func (a *SDRApp) deposit(ctx context.Context, req DepositRequest) (*sdr.DepositResult, error) {
	metadata, err := ParseFileMetadata(req.FileMetadataJSON)
	if err != nil {
		return nil, err
	}

	if req.DocumentPath != "" {
		doc, err := cocina.ReadDocument(req.DocumentPath)
		if err != nil {
			return nil, err
		}
		a.logger.Debug("read request document", "path", req.DocumentPath, "file_sets", doc.FileSetCount())
		paths := req.Files
		if len(paths) == 0 {
			paths = doc.Filenames()
		}
		return a.service.DepositDocument(ctx, sdr.DocumentInput{
			Document:     doc,
			BaseDir:      req.BaseDir,
			Files:        paths,
			FileMetadata: metadata,
			SkipPolling:  req.SkipPolling,
		}, req.Create)
	}

	groupingName := valueOr(req.Grouping, a.cfg.Upload.Grouping)
	strategy, err := grouping.New(groupingName)
	if err != nil {
		return nil, err
	}
	fileSetType, err := grouping.NewFileSetType(valueOr(req.FileSetType, a.cfg.Upload.FileSetType))
	if err != nil {
		return nil, err
	}

	paths := req.Files
	if len(paths) == 0 {
		paths, err = a.discover(req.BaseDir)
		if err != nil {
			return nil, err
		}
	}
	if len(paths) == 0 {
		return nil, &sdr.PreconditionError{Path: req.BaseDir, Reason: fmt.Sprintf("no files to deposit in %s", req.BaseDir)}
	}

	return a.service.Deposit(ctx, sdr.DepositInput{
		BaseDir:      req.BaseDir,
		Files:        paths,
		Object:       req.Object,
		FileMetadata: metadata,
		Grouping:     strategy,
		FileSetType:  fileSetType,
		Create:       req.Create,
		SkipPolling:  req.SkipPolling,
	})
}

func (a *SDRApp) discover(baseDir string) ([]string, error) {
	matcher, err := files.LoadIgnoreMatcher(baseDir, a.cfg.Upload.Ignore)
	if err != nil {
		return nil, err
	}
	paths, err := files.Discover(baseDir, matcher)
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}
	a.logger.Debug("discovered files", "base_dir", baseDir, "count", len(paths))
	return paths, nil
}

// Update opens a new version of an existing object from a document file.
// When no files are listed, every file the document references is uploaded.
func (a *SDRApp) Update(ctx context.Context, req UpdateRequest) (*sdr.DepositResult, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	result, err := a.update(ctx, req)
	a.op.Record(result, err)
	return result, err
}

func (a *SDRApp) update(ctx context.Context, req UpdateRequest) (*sdr.DepositResult, error) {
	metadata, err := ParseFileMetadata(req.FileMetadataJSON)
	if err != nil {
		return nil, err
	}
	doc, err := cocina.ReadDocument(req.DocumentPath)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("read update document", "path", req.DocumentPath, "file_sets", doc.FileSetCount())
	if req.Druid != "" && doc.ExternalIdentifier() != req.Druid {
		return nil, &sdr.PreconditionError{
			Path:   req.DocumentPath,
			Reason: fmt.Sprintf("document externalIdentifier %q does not match %s", doc.ExternalIdentifier(), req.Druid),
		}
	}
	paths := req.Files
	if len(paths) == 0 {
		paths = doc.Filenames()
	}
	return a.service.Update(ctx, sdr.DocumentInput{
		Document:     doc,
		BaseDir:      req.BaseDir,
		Files:        paths,
		FileMetadata: metadata,
		SkipPolling:  req.SkipPolling,
	}, req.Options)
}

// Wait polls a job submitted earlier, e.g. with polling skipped, until it
// finishes or the polling timeout is spent.
func (a *SDRApp) Wait(ctx context.Context, jobID string) (*sdr.DepositResult, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	var result *sdr.DepositResult
	status, err := a.service.WaitForJob(ctx, jobID)
	if err == nil {
		result = &sdr.DepositResult{JobID: jobID, Status: status}
	}
	a.op.Record(result, err)
	return result, err
}

// Get returns the document of an object.
func (a *SDRApp) Get(ctx context.Context, druid string) ([]byte, error) {
	return a.service.Find(ctx, druid)
}

// Login exchanges credentials for a token and stores it.
func (a *SDRApp) Login(ctx context.Context, email, password string) error {
	token, err := a.client.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if err := a.tokens.Save(token); err != nil {
		return err
	}
	a.logger.Info("logged in", "email", email)
	return nil
}

// ProxyToken returns a token acting on behalf of another account. The stored
// token is left unchanged.
func (a *SDRApp) ProxyToken(ctx context.Context, to string) (string, error) {
	return a.client.ProxyToken(ctx, to)
}

// GetHistory returns the most recent operations, newest first.
func (a *SDRApp) GetHistory(limit int) ([]*sdr.OperationRecord, error) {
	return a.history.ListOperations(limit)
}

// reauthenticate logs in again after the server rejected the stored token.
// Credentials come from SDR_EMAIL/SDR_PASSWORD, or the configured email and
// a password prompt.
func (a *SDRApp) reauthenticate(ctx context.Context) (string, error) {
	email := valueOr(os.Getenv("SDR_EMAIL"), a.cfg.Email)
	password := os.Getenv("SDR_PASSWORD")

	if email == "" {
		return "", fmt.Errorf("no email for login, set SDR_EMAIL or run `sdr login`: %w", sdr.ErrUnauthorized)
	}
	if password == "" {
		if a.prompt == nil {
			return "", fmt.Errorf("no password for %s, set SDR_PASSWORD or run `sdr login`: %w", email, sdr.ErrUnauthorized)
		}
		var err error
		if password, err = a.prompt(email); err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
	}

	a.logger.Info("logging in again", "email", email)
	return a.client.Login(ctx, email, password)
}

// Close finalizes the operation record and closes all resources.
func (a *SDRApp) Close() error {
	var firstErr error

	if a.op.Persisted() {
		err := a.history.FinishOperation(a.op.ID, a.op.Status, a.op.JobID, a.op.Druid, a.clock.Now().UTC())
		if err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.history.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing history: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
