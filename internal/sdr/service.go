package sdr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Dependencies are the collaborators of a DepositService.
// Receipts is optional; all others are required.
type Dependencies struct {
	Files     FileInspector
	Uploader  DirectUploader
	Resources ResourceAPI
	Jobs      JobStatusFetcher
	Builder   DocumentBuilder
	Receipts  ReceiptStore
	Logger    Logger
	Clock     Clock
	Sleeper   Sleeper
}

// ServiceOptions tune a DepositService.
type ServiceOptions struct {
	// UploadWorkers bounds concurrent file uploads. 1 uploads sequentially.
	UploadWorkers int
	Polling       PollerOptions
}

// DepositService is the orchestration layer that runs the deposit, register
// and update workflows: collect file metadata, upload files, build or link
// the document, submit it and wait for the background job.
//
// Each call is independent; a single service may run deposits concurrently.
type DepositService struct {
	files     FileInspector
	uploader  DirectUploader
	resources ResourceAPI
	builder   DocumentBuilder
	receipts  ReceiptStore
	poller    *JobPoller
	logger    Logger
	clock     Clock
	workers   int
}

// NewDepositService creates a DepositService with the provided dependencies.
func NewDepositService(deps Dependencies, opts ServiceOptions) *DepositService {
	workers := opts.UploadWorkers
	if workers < 1 {
		workers = 1
	}
	return &DepositService{
		files:     deps.Files,
		uploader:  deps.Uploader,
		resources: deps.Resources,
		builder:   deps.Builder,
		receipts:  deps.Receipts,
		poller:    NewJobPoller(deps.Jobs, deps.Sleeper, deps.Logger, opts.Polling),
		logger:    deps.Logger,
		clock:     deps.Clock,
		workers:   workers,
	}
}

// Find returns the raw document of an object.
func (s *DepositService) Find(ctx context.Context, objectID string) ([]byte, error) {
	return s.resources.Find(ctx, objectID)
}

// WaitForJob polls a job that was submitted earlier.
func (s *DepositService) WaitForJob(ctx context.Context, jobID string) (*JobStatus, error) {
	return s.poller.Wait(ctx, jobID)
}

// uploadFiles runs the direct upload of every file, bounded by the worker
// count. Responses come back in the order of files. The first failure
// cancels the remaining uploads; blobs already uploaded stay on the server.
func (s *DepositService) uploadFiles(ctx context.Context, files []LocalFile, requests map[string]UploadRequest) ([]UploadResponse, error) {
	for _, f := range files {
		if _, ok := requests[f.RelativePath]; !ok {
			return nil, &PreconditionError{Path: f.RelativePath, Reason: fmt.Sprintf("no upload request for file %s", f.RelativePath)}
		}
	}

	responses := make([]UploadResponse, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, f := range files {
		req := requests[f.RelativePath]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			resp, err := s.uploader.Upload(gctx, f, req)
			if err != nil {
				return fmt.Errorf("uploading %s: %w", f.RelativePath, err)
			}
			if resp.SignedID == "" {
				return fmt.Errorf("uploading %s: server returned no signed id", f.RelativePath)
			}
			responses[i] = *resp
			s.logger.Info("file uploaded", "path", f.RelativePath, "signed_id", resp.SignedID)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return responses, nil
}

// prepareUploads resolves, inspects and uploads the files of a deposit.
func (s *DepositService) prepareUploads(ctx context.Context, baseDir string, paths []string, overrides map[string]FileMetadata) ([]UploadResponse, map[string]FileMetadata, error) {
	files, err := s.files.Resolve(baseDir, paths)
	if err != nil {
		return nil, nil, err
	}

	metadata, err := s.files.Collect(baseDir, paths, overrides)
	if err != nil {
		return nil, nil, fmt.Errorf("collecting file metadata: %w", err)
	}

	requests, err := s.files.UploadRequests(files, metadata)
	if err != nil {
		return nil, nil, fmt.Errorf("building upload requests: %w", err)
	}

	uploads, err := s.uploadFiles(ctx, files, requests)
	if err != nil {
		return nil, nil, err
	}
	return uploads, metadata, nil
}

// finish waits for the job unless polling is skipped and records a receipt.
func (s *DepositService) finish(ctx context.Context, operation, jobID string, skipPolling bool, uploads []UploadResponse, metadata map[string]FileMetadata) (*JobStatus, error) {
	if skipPolling {
		s.logger.Info("skipping job polling", "job_id", jobID)
		return nil, nil
	}

	status, err := s.poller.Wait(ctx, jobID)
	if err != nil {
		return nil, err
	}

	s.writeReceipt(ctx, operation, status, uploads, metadata)
	return status, nil
}

// writeReceipt stores a receipt for a terminal job. Failures are logged only.
func (s *DepositService) writeReceipt(ctx context.Context, operation string, status *JobStatus, uploads []UploadResponse, metadata map[string]FileMetadata) {
	if s.receipts == nil {
		return
	}

	receipt := Receipt{
		Operation:   operation,
		JobID:       status.JobID,
		Druid:       status.Druid(),
		Status:      status.Status,
		TimedOut:    status.TimedOut,
		Errors:      status.Errors(),
		CompletedAt: s.clock.Now().UTC(),
		Files:       make([]ReceiptFile, 0, len(uploads)),
	}
	for _, u := range uploads {
		md := metadata[u.Filename]
		receipt.Files = append(receipt.Files, ReceiptFile{
			Filename: u.Filename,
			SignedID: u.SignedID,
			ByteSize: u.ByteSize,
			MimeType: md.MimeType,
			MD5:      md.MD5,
			SHA1:     md.SHA1,
		})
	}

	data, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		s.logger.Warn("encoding receipt failed", "job_id", status.JobID, "error", err)
		return
	}

	key := ReceiptKey(status.JobID)
	if err := s.receipts.PutReceipt(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		s.logger.Warn("storing receipt failed", "job_id", status.JobID, "key", key, "error", err)
		return
	}
	s.logger.Debug("receipt stored", "key", key)
}
