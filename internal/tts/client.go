// Package tts provides the HTTP client for the remote speech synthesis API.
//
// One request synthesizes one syllable into MP3 bytes. The client performs no
// retries; pacing and error accounting belong to the caller.
package tts

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
)

// API endpoints and paths.
const (
	apiSpeech = "/v1/audio/speech"
)

// HTTP headers.
const (
	headerContentType   = "Content-Type"
	headerAuthorization = "Authorization"
	contentTypeJSON     = "application/json"
	bearerPrefix        = "Bearer "
)

// Default values.
const (
	DefaultBaseURL        = "https://api.openai.com"
	DefaultModel          = "gpt-4o-mini-tts"
	DefaultVoice          = "fable"
	DefaultSpeed          = 1.0
	DefaultInstructions   = "한국어, 한 음절씩만 줌. 빠르고 명확하고 부드럽게, 아나운서같게, 1초 안에 발음."
	responseFormatMP3     = "mp3"
	maxErrorBodyBytes     = 4096
	errFmtSynthesisFailed = "synthesis failed for %q (status %d): %s"
)

var (
	// ErrSyllableEmpty indicates that no input text was supplied.
	ErrSyllableEmpty = errors.New("syllable cannot be empty")
	// ErrAPIKeyEmpty indicates that the client was built without a bearer token.
	ErrAPIKeyEmpty = errors.New("api key cannot be empty")
	// ErrEmptyAudio indicates a successful response that carried no audio.
	ErrEmptyAudio = errors.New("received empty audio data")
)

// SynthesisError reports a failed synthesis call for one syllable.
type SynthesisError struct {
	Syllable string
	Status   int
	Body     string
	Err      error
}

func (e *SynthesisError) Error() string {
	detail := e.Body
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}

	return fmt.Sprintf(errFmtSynthesisFailed, e.Syllable, e.Status, detail)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// Options configures the synthesis request parameters.
type Options struct {
	BaseURL      string
	APIKey       string
	Model        string
	Voice        string
	Instructions string
	Speed        float64
	Timeout      time.Duration
}

// Client calls the remote speech endpoint.
type Client struct {
	httpClient *http.Client
	opts       Options
}

// SpeechRequest is the JSON payload sent to the speech endpoint.
type SpeechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed"`
	Instructions   string  `json:"instructions,omitempty"`
}

// apiErrorResponse is the structured error body returned by the API.
type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// NewClient creates a client. Zero-valued options fall back to the package defaults;
// a zero timeout leaves the http.Client default (no timeout) in place.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrAPIKeyEmpty
	}

	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	if opts.Model == "" {
		opts.Model = DefaultModel
	}

	if opts.Voice == "" {
		opts.Voice = DefaultVoice
	}

	if opts.Speed == 0 {
		opts.Speed = DefaultSpeed
	}

	if opts.Instructions == "" {
		opts.Instructions = DefaultInstructions
	}

	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		opts:       opts,
	}, nil
}

// Synthesize requests MP3 audio for one syllable and returns the raw bytes.
func (c *Client) Synthesize(ctx context.Context, syllable string) ([]byte, error) {
	if syllable == "" {
		return nil, ErrSyllableEmpty
	}

	requestBody, err := json.Marshal(SpeechRequest{
		Model:          c.opts.Model,
		Input:          syllable,
		Voice:          c.opts.Voice,
		ResponseFormat: responseFormatMP3,
		Speed:          c.opts.Speed,
		Instructions:   c.opts.Instructions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.opts.BaseURL+apiSpeech,
		bytes.NewReader(requestBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAuthorization, bearerPrefix+c.opts.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &SynthesisError{Syllable: syllable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, parseErrorResponse(syllable, resp)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SynthesisError{Syllable: syllable, Status: resp.StatusCode, Err: err}
	}

	if len(audioData) == 0 {
		return nil, &SynthesisError{Syllable: syllable, Status: resp.StatusCode, Err: ErrEmptyAudio}
	}

	return audioData, nil
}

// parseErrorResponse prefers the API's structured message and falls back to the raw body.
func parseErrorResponse(syllable string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	var errorResp apiErrorResponse

	detail := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &errorResp) == nil && errorResp.Error.Message != "" {
		detail = errorResp.Error.Message
	}

	return &SynthesisError{
		Syllable: syllable,
		Status:   resp.StatusCode,
		Body:     detail,
	}
}
