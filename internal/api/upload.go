package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"sdr-go/internal/sdr"
)

type blobRequest struct {
	Blob sdr.UploadRequest `json:"blob"`
}

type directUploadResponse struct {
	ID          identifier `json:"id"`
	Key         string     `json:"key"`
	Filename    string     `json:"filename"`
	ContentType string     `json:"content_type"`
	ByteSize    int64      `json:"byte_size"`
	Checksum    string     `json:"checksum"`
	SignedID    string     `json:"signed_id"`
	Direct      struct {
		URL     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"direct_upload"`
}

// Upload registers a direct upload for file and then sends its content.
// The returned response carries the file's relative path as its filename.
func (c *Client) Upload(ctx context.Context, file sdr.LocalFile, req sdr.UploadRequest) (*sdr.UploadResponse, error) {
	resp, err := c.InitiateUpload(ctx, req)
	if err != nil {
		return nil, err
	}
	resp.Filename = file.RelativePath

	if err := c.PutContent(ctx, file, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// InitiateUpload asks the server for an upload slot.
func (c *Client) InitiateUpload(ctx context.Context, req sdr.UploadRequest) (*sdr.UploadResponse, error) {
	const op = "initiating upload"

	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   DirectUploadsPath,
		body:   blobRequest{Blob: req},
	})
	if err != nil {
		return nil, err
	}
	if err := resp.expect(op, http.StatusOK, http.StatusCreated); err != nil {
		return nil, err
	}

	var out directUploadResponse
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, fmt.Errorf("%s: decoding response: %w", op, err)
	}
	if out.Direct.URL == "" {
		return nil, fmt.Errorf("%s: response for %s has no direct upload url", op, req.Filename)
	}

	return &sdr.UploadResponse{
		ID:                  string(out.ID),
		Key:                 out.Key,
		Filename:            out.Filename,
		ByteSize:            out.ByteSize,
		ContentType:         out.ContentType,
		Checksum:            out.Checksum,
		SignedID:            out.SignedID,
		DirectUploadURL:     out.Direct.URL,
		DirectUploadHeaders: out.Direct.Headers,
	}, nil
}

// PutContent streams the file to the upload URL. The URL is pre-authorized,
// so no bearer token is sent.
func (c *Client) PutContent(ctx context.Context, file sdr.LocalFile, upload *sdr.UploadResponse) error {
	op := "uploading " + file.RelativePath

	target, err := c.resolve(upload.DirectUploadURL)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	f, err := os.Open(file.AbsolutePath)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, f)
	if err != nil {
		return fmt.Errorf("%s: building request: %w", op, err)
	}
	for k, v := range upload.DirectUploadHeaders {
		req.Header.Set(k, v)
	}
	if upload.ContentType != "" {
		req.Header.Set("Content-Type", upload.ContentType)
	}
	req.ContentLength = upload.ByteSize
	if req.ContentLength == 0 {
		req.ContentLength = file.ByteSize
	}
	if req.ContentLength == 0 {
		req.Body = http.NoBody
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return sdr.NewUnexpectedResponse(op, resp.StatusCode, body)
	}
	c.logger.Debug("content uploaded", "path", file.RelativePath, "bytes", req.ContentLength)
	return nil
}

// Compile-time check that Client implements sdr.DirectUploader interface
var _ sdr.DirectUploader = (*Client)(nil)
