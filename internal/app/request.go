package app

import (
	"encoding/json"
	"fmt"

	"sdr-go/internal/sdr"
)

// DepositRequest carries the CLI values of a deposit or register command.
// DocumentPath selects a caller-supplied document instead of a generated
// one; Grouping and FileSetType fall back to the configured strategies.
type DepositRequest struct {
	BaseDir          string
	Files            []string
	DocumentPath     string
	FileMetadataJSON string
	Grouping         string
	FileSetType      string
	Object           sdr.ObjectAttributes
	Create           sdr.CreateOptions
	SkipPolling      bool
}

// UpdateRequest carries the CLI values of an update command. Druid, when
// set, must match the document's externalIdentifier.
type UpdateRequest struct {
	Druid            string
	DocumentPath     string
	BaseDir          string
	Files            []string
	FileMetadataJSON string
	Options          sdr.UpdateOptions
	SkipPolling      bool
}

// ParseFileMetadata decodes per-file metadata given as a JSON object keyed
// by relative path. An empty string means no metadata.
func ParseFileMetadata(raw string) (map[string]sdr.FileMetadata, error) {
	if raw == "" {
		return nil, nil
	}
	var metadata map[string]sdr.FileMetadata
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil, fmt.Errorf("parsing files metadata: %w", err)
	}
	return metadata, nil
}
