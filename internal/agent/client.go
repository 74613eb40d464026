package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zaqqye/proctor_backend/internal/proctor"
)

// Client talks to the proctoring backend with the student's bearer
// token. It is both the monitor's Reporter and the coordinator's
// Submitter.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client

	// StudentID travels in metadata for shells that proxy several
	// displays; the backend resolves identity from the token.
	UserAgent string

	// RetryDelay is the pause before the single report retry.
	RetryDelay time.Duration
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    baseURL,
		Token:      token,
		HTTP:       &http.Client{Timeout: 10 * time.Second},
		UserAgent:  "proctor-agent/1.0",
		RetryDelay: 2 * time.Second,
	}
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, msg)
	}
	return nil
}

type logRequest struct {
	ExamID           string         `json:"exam_id"`
	ViolationType    string         `json:"violation_type"`
	Timestamp        time.Time      `json:"timestamp"`
	ViolationCount   int            `json:"violation_count"`
	CausedAutoSubmit bool           `json:"caused_auto_submit"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// Report implements proctor.Reporter. One retry after a short delay;
// past that the violation survives only in the local counter, which is
// the source of truth for the session anyway.
func (c *Client) Report(ctx context.Context, r proctor.Report) error {
	body := logRequest{
		ExamID:           r.ExamID,
		ViolationType:    string(r.Type),
		Timestamp:        r.Timestamp,
		ViolationCount:   r.Count,
		CausedAutoSubmit: r.CausedAutoSubmit,
	}
	if r.Detail != "" {
		body.Metadata = map[string]any{"details": r.Detail}
	}

	err := c.post(ctx, "/api/v1/violations/log", body)
	if err == nil {
		return nil
	}
	select {
	case <-time.After(c.RetryDelay):
	case <-ctx.Done():
		return err
	}
	return c.post(ctx, "/api/v1/violations/log", body)
}

// Submit implements proctor.Submitter.
func (c *Client) Submit(ctx context.Context, req proctor.SubmitRequest) error {
	body := map[string]any{"auto_submit": req.AutoSubmit}
	return c.post(ctx, "/api/v1/exams/"+req.ExamID+"/submit", body)
}
