package sdr

import (
	"context"
	"fmt"
)

// DocumentInput is a deposit or update driven by a caller-supplied document.
// Every file node in Document must match exactly one entry of Files.
type DocumentInput struct {
	Document     Document
	BaseDir      string
	Files        []string
	FileMetadata map[string]FileMetadata
	SkipPolling  bool
}

// DepositDocument creates a resource from an existing document, uploading
// the files it references and linking them by signed id.
func (s *DepositService) DepositDocument(ctx context.Context, in DocumentInput, opts CreateOptions) (*DepositResult, error) {
	operation := createOperation(opts)
	s.logger.Info("starting "+operation+" from document", "files", len(in.Files))

	uploads, metadata, err := s.linkDocument(ctx, in)
	if err != nil {
		return nil, err
	}

	jobID, err := s.resources.Create(ctx, in.Document, opts)
	if err != nil {
		return nil, err
	}
	s.logger.Info("resource submitted", "job_id", jobID, "accession", opts.Accession)

	status, err := s.finish(ctx, operation, jobID, in.SkipPolling, uploads, metadata)
	if err != nil {
		return nil, err
	}
	return &DepositResult{JobID: jobID, Status: status, Document: in.Document, Uploads: uploads}, nil
}

// Update opens a new version of an existing object from a full document.
func (s *DepositService) Update(ctx context.Context, in DocumentInput, opts UpdateOptions) (*DepositResult, error) {
	if in.Document == nil {
		return nil, fmt.Errorf("update: document is required")
	}
	objectID := in.Document.ExternalIdentifier()
	if objectID == "" {
		return nil, &PreconditionError{Reason: "update: document has no externalIdentifier"}
	}
	s.logger.Info("starting update", "druid", objectID, "files", len(in.Files))

	uploads, metadata, err := s.linkDocument(ctx, in)
	if err != nil {
		return nil, err
	}

	jobID, err := s.resources.Update(ctx, in.Document, opts)
	if err != nil {
		return nil, err
	}
	s.logger.Info("update submitted", "job_id", jobID, "druid", objectID)

	status, err := s.finish(ctx, "update", jobID, in.SkipPolling, uploads, metadata)
	if err != nil {
		return nil, err
	}
	return &DepositResult{JobID: jobID, Status: status, Document: in.Document, Uploads: uploads}, nil
}

// linkDocument checks the document against the supplied files before any
// network call, then uploads the files and links them into the document.
func (s *DepositService) linkDocument(ctx context.Context, in DocumentInput) ([]UploadResponse, map[string]FileMetadata, error) {
	if in.Document == nil {
		return nil, nil, fmt.Errorf("document is required")
	}
	if err := checkDocumentFiles(in.Document.Filenames(), in.Files); err != nil {
		return nil, nil, err
	}

	uploads, metadata, err := s.prepareUploads(ctx, in.BaseDir, in.Files, in.FileMetadata)
	if err != nil {
		return nil, nil, err
	}

	signedIDs := make(map[string]string, len(uploads))
	for _, u := range uploads {
		signedIDs[u.Filename] = u.SignedID
	}
	if err := in.Document.LinkFiles(signedIDs); err != nil {
		return nil, nil, fmt.Errorf("linking uploaded files: %w", err)
	}
	return uploads, metadata, nil
}
