package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"sdr-go/internal/sdr"
)

type jobResponse struct {
	JobID identifier `json:"jobId"`
}

func (c *Client) resourceHeaders() map[string]string {
	if c.cocinaVersion == "" {
		return nil
	}
	return map[string]string{CocinaVersionHeader: c.cocinaVersion}
}

// Create submits a new object and returns the id of its background job.
func (c *Client) Create(ctx context.Context, doc sdr.Document, opts sdr.CreateOptions) (string, error) {
	const op = "creating resource"

	query := url.Values{}
	query.Set("accession", strconv.FormatBool(opts.Accession))
	if opts.Priority != "" {
		query.Set("priority", opts.Priority)
	}
	if opts.AssignDOI {
		query.Set("assign_doi", "true")
	}
	if opts.UserVersions != "" {
		query.Set("user_versions", opts.UserVersions)
	}

	resp, err := c.do(ctx, request{
		op:      op,
		method:  http.MethodPost,
		path:    ResourcesPath,
		query:   query,
		body:    doc,
		headers: c.resourceHeaders(),
	})
	if err != nil {
		return "", err
	}
	if err := resp.expect(op, http.StatusCreated); err != nil {
		return "", err
	}
	return decodeJobID(op, resp.body)
}

// Update submits a new version of the object named by the document's
// external identifier and returns the id of its background job.
func (c *Client) Update(ctx context.Context, doc sdr.Document, opts sdr.UpdateOptions) (string, error) {
	const op = "updating resource"

	objectID := doc.ExternalIdentifier()
	if objectID == "" {
		return "", fmt.Errorf("%s: document has no external identifier", op)
	}

	query := url.Values{}
	if opts.VersionDescription != "" {
		query.Set("versionDescription", opts.VersionDescription)
	}
	if opts.UserVersions != "" {
		query.Set("user_versions", opts.UserVersions)
	}

	resp, err := c.do(ctx, request{
		op:      op,
		method:  http.MethodPut,
		path:    ResourcesPath + "/" + url.PathEscape(objectID),
		query:   query,
		body:    doc,
		headers: c.resourceHeaders(),
	})
	if err != nil {
		return "", err
	}
	if err := resp.expect(op, http.StatusAccepted); err != nil {
		return "", err
	}
	return decodeJobID(op, resp.body)
}

// Find returns the raw document of an object.
func (c *Client) Find(ctx context.Context, objectID string) ([]byte, error) {
	const op = "finding resource"

	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   ResourcesPath + "/" + url.PathEscape(objectID),
	})
	if err != nil {
		return nil, err
	}
	if err := resp.expect(op, http.StatusOK); err != nil {
		c.logger.Error("unexpected response finding resource", "druid", objectID, "status", resp.status, "body", string(resp.body))
		return nil, err
	}
	return resp.body, nil
}

// JobStatus reads the state of a background job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*sdr.JobStatus, error) {
	const op = "fetching job status"

	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   JobResultsPath + "/" + url.PathEscape(jobID),
	})
	if err != nil {
		return nil, err
	}
	if err := resp.expect(op, http.StatusOK, http.StatusAccepted); err != nil {
		return nil, err
	}

	var status sdr.JobStatus
	if err := json.Unmarshal(resp.body, &status); err != nil {
		return nil, fmt.Errorf("%s: decoding response: %w", op, err)
	}
	status.JobID = jobID
	return &status, nil
}

func decodeJobID(op string, body []byte) (string, error) {
	var out jobResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%s: decoding response: %w", op, err)
	}
	if out.JobID == "" {
		return "", fmt.Errorf("%s: response has no job id", op)
	}
	return string(out.JobID), nil
}

var (
	_ sdr.ResourceAPI      = (*Client)(nil)
	_ sdr.JobStatusFetcher = (*Client)(nil)
)
