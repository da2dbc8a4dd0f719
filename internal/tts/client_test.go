package tts_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/book-expert/hangul-tts/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey    = "sk-test"
	testMP3Header = "ID3\x04mock-mp3"
)

func newTestClient(t *testing.T, serverURL string) *tts.Client {
	t.Helper()

	client, err := tts.NewClient(tts.Options{BaseURL: serverURL, APIKey: testAPIKey})
	require.NoError(t, err)

	return client
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := tts.NewClient(tts.Options{})
	require.ErrorIs(t, err, tts.ErrAPIKeyEmpty)
}

func TestClient_Synthesize_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(
		http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
			assert.Equal(t, http.MethodPost, request.Method)
			assert.Equal(t, "/v1/audio/speech", request.URL.Path)
			assert.Equal(t, "Bearer "+testAPIKey, request.Header.Get("Authorization"))
			assert.Equal(t, "application/json", request.Header.Get("Content-Type"))

			var req tts.SpeechRequest

			decodeErr := json.NewDecoder(request.Body).Decode(&req)
			assert.NoError(t, decodeErr)
			assert.Equal(t, "안", req.Input)
			assert.Equal(t, "mp3", req.ResponseFormat)
			assert.Equal(t, tts.DefaultModel, req.Model)
			assert.Equal(t, tts.DefaultVoice, req.Voice)
			assert.InEpsilon(t, tts.DefaultSpeed, req.Speed, 0.001)
			assert.NotEmpty(t, req.Instructions)

			responseWriter.Header().Set("Content-Type", "audio/mpeg")
			_, _ = responseWriter.Write([]byte(testMP3Header))
		}),
	)
	defer server.Close()

	audio, err := newTestClient(t, server.URL).Synthesize(context.Background(), "안")
	require.NoError(t, err)
	assert.Equal(t, []byte(testMP3Header), audio)
}

func TestClient_Synthesize_StructuredError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(
		http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
			responseWriter.Header().Set("Content-Type", "application/json")
			responseWriter.WriteHeader(http.StatusTooManyRequests)
			_, _ = responseWriter.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`))
		}),
	)
	defer server.Close()

	_, err := newTestClient(t, server.URL).Synthesize(context.Background(), "가")
	require.Error(t, err)

	var synthErr *tts.SynthesisError
	require.ErrorAs(t, err, &synthErr)
	assert.Equal(t, "가", synthErr.Syllable)
	assert.Equal(t, http.StatusTooManyRequests, synthErr.Status)
	assert.Equal(t, "Rate limit reached", synthErr.Body)
	assert.Contains(t, err.Error(), "Rate limit reached")
}

func TestClient_Synthesize_RawErrorBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(
		http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
			responseWriter.WriteHeader(http.StatusBadGateway)
			_, _ = responseWriter.Write([]byte("upstream down"))
		}),
	)
	defer server.Close()

	_, err := newTestClient(t, server.URL).Synthesize(context.Background(), "가")

	var synthErr *tts.SynthesisError
	require.ErrorAs(t, err, &synthErr)
	assert.Equal(t, "upstream down", synthErr.Body)
}

func TestClient_Synthesize_EmptyPayload(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(
		http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
			responseWriter.WriteHeader(http.StatusOK)
		}),
	)
	defer server.Close()

	_, err := newTestClient(t, server.URL).Synthesize(context.Background(), "가")
	require.ErrorIs(t, err, tts.ErrEmptyAudio)

	var synthErr *tts.SynthesisError
	assert.True(t, errors.As(err, &synthErr))
}

func TestClient_Synthesize_EmptyInput(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "http://127.0.0.1:1")

	_, err := client.Synthesize(context.Background(), "")
	require.ErrorIs(t, err, tts.ErrSyllableEmpty)
}

func TestClient_Synthesize_Unreachable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newTestClient(t, url).Synthesize(context.Background(), "가")

	var synthErr *tts.SynthesisError
	require.ErrorAs(t, err, &synthErr)
	assert.Equal(t, 0, synthErr.Status)
}
