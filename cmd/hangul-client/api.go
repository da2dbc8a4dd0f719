package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/hangul-tts/internal/batch"
)

const (
	apiPath           = "/api/tts"
	contentTypeJSON   = "application/json"
	maxErrorBodyBytes = 4096
)

var errEmptyAudio = errors.New("server returned an empty audio payload")

// apiError is a non-2xx reply from the service.
type apiError struct {
	Status  int
	Message string `json:"error"`
	Details string `json:"details"`
}

func (e *apiError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}

	return fmt.Sprintf("server returned %d: %s: %s", e.Status, e.Message, e.Details)
}

type progressReply struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Remaining int `json:"remaining"`
	Progress  int `json:"progress"`
}

// apiClient talks to the /api/tts endpoint of a running service.
type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *apiClient) generateBatch(ctx context.Context, startIndex, batchSize int) (*batch.Result, error) {
	var result batch.Result

	err := c.postJSON(ctx, map[string]any{
		"action":     "generate-all",
		"startIndex": startIndex,
		"batchSize":  batchSize,
	}, &result)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *apiClient) progress(ctx context.Context) (*progressReply, error) {
	var reply progressReply

	err := c.postJSON(ctx, map[string]any{"action": "get-progress"}, &reply)
	if err != nil {
		return nil, err
	}

	return &reply, nil
}

func (c *apiClient) single(ctx context.Context, syllable string) ([]byte, error) {
	resp, err := c.post(ctx, map[string]any{"action": "generate-single", "syllable": syllable})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}

	if len(audio) == 0 {
		return nil, errEmptyAudio
	}

	return audio, nil
}

func (c *apiClient) postJSON(ctx context.Context, payload, out any) error {
	resp, err := c.post(ctx, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("failed to decode reply: %w", err)
	}

	return nil
}

// post sends the request and converts non-2xx replies into *apiError.
func (c *apiClient) post(ctx context.Context, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", contentTypeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", c.baseURL, err)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return resp, nil
	}

	defer resp.Body.Close()

	apiErr := &apiError{Status: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if json.Unmarshal(raw, apiErr) != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}

	return nil, apiErr
}
