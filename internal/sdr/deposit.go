package sdr

import (
	"context"
	"fmt"
)

// DepositInput describes a deposit or registration built from local files.
type DepositInput struct {
	BaseDir      string
	Files        []string
	Object       ObjectAttributes
	FileMetadata map[string]FileMetadata
	Grouping     GroupingStrategy
	FileSetType  FileSetTypeStrategy
	Create       CreateOptions
	SkipPolling  bool
}

// DepositResult is the outcome of a submitted deposit.
// Status is nil when polling was skipped.
type DepositResult struct {
	JobID    string
	Status   *JobStatus
	Document Document
	Uploads  []UploadResponse
}

// createOperation names a create call in receipts and logs.
func createOperation(opts CreateOptions) string {
	if opts.Accession {
		return "deposit"
	}
	return "register"
}

// Deposit uploads the files, builds the request document from the grouped
// uploads, creates the resource and waits for the background job.
//
// Any failure before the create call aborts the deposit without creating a
// resource. A terminal job with errors is not an error here; callers inspect
// the returned status.
func (s *DepositService) Deposit(ctx context.Context, in DepositInput) (*DepositResult, error) {
	if in.Grouping == nil || in.FileSetType == nil {
		return nil, fmt.Errorf("deposit: grouping and file set type strategies are required")
	}
	operation := createOperation(in.Create)
	s.logger.Info("starting "+operation, "files", len(in.Files), "base_dir", in.BaseDir)

	uploads, metadata, err := s.prepareUploads(ctx, in.BaseDir, in.Files, in.FileMetadata)
	if err != nil {
		return nil, err
	}

	groups := in.Grouping.Group(uploads)
	if err := checkGroups(uploads, groups); err != nil {
		return nil, err
	}

	doc, err := s.builder.Build(in.Object, groups, metadata, in.FileSetType)
	if err != nil {
		return nil, fmt.Errorf("building request document: %w", err)
	}
	if err := checkDocumentFiles(doc.Filenames(), uploadFilenames(uploads)); err != nil {
		return nil, err
	}

	jobID, err := s.resources.Create(ctx, doc, in.Create)
	if err != nil {
		return nil, err
	}
	s.logger.Info("resource submitted", "job_id", jobID, "accession", in.Create.Accession)

	status, err := s.finish(ctx, operation, jobID, in.SkipPolling, uploads, metadata)
	if err != nil {
		return nil, err
	}
	return &DepositResult{JobID: jobID, Status: status, Document: doc, Uploads: uploads}, nil
}

func uploadFilenames(uploads []UploadResponse) []string {
	names := make([]string, 0, len(uploads))
	for _, u := range uploads {
		names = append(names, u.Filename)
	}
	return names
}

// checkGroups verifies that the groups partition the uploads: every upload
// appears in exactly one group and no group holds anything else.
func checkGroups(uploads []UploadResponse, groups [][]UploadResponse) error {
	seen := make(map[string]int, len(uploads))
	for _, u := range uploads {
		seen[u.Filename] = 0
	}
	for _, group := range groups {
		for _, u := range group {
			n, ok := seen[u.Filename]
			if !ok {
				return &PreconditionError{Path: u.Filename, Reason: fmt.Sprintf("file set references unknown file %s", u.Filename)}
			}
			if n > 0 {
				return &PreconditionError{Path: u.Filename, Reason: fmt.Sprintf("file %s is in more than one file set", u.Filename)}
			}
			seen[u.Filename] = n + 1
		}
	}
	for _, u := range uploads {
		if seen[u.Filename] == 0 {
			return &PreconditionError{Path: u.Filename, Reason: fmt.Sprintf("file %s is not in any file set", u.Filename)}
		}
	}
	return nil
}

// checkDocumentFiles verifies a one-to-one match between the file nodes of a
// document and the supplied files. Both directions are checked, supplied
// files first, so the error names the first offending file in input order.
func checkDocumentFiles(documentFiles, supplied []string) error {
	inDocument := make(map[string]bool, len(documentFiles))
	for _, name := range documentFiles {
		if inDocument[name] {
			return &PreconditionError{Path: name, Reason: fmt.Sprintf("Request file %s is referenced more than once", name)}
		}
		inDocument[name] = true
	}

	provided := make(map[string]bool, len(supplied))
	for _, name := range supplied {
		provided[name] = true
		if !inDocument[name] {
			return &PreconditionError{Path: name, Reason: fmt.Sprintf("Request file not provided for file %s", name)}
		}
	}
	for _, name := range documentFiles {
		if !provided[name] {
			return &PreconditionError{Path: name, Reason: fmt.Sprintf("File not provided for request file %s", name)}
		}
	}
	return nil
}
