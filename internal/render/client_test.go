package render

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tryonserver/internal/domain"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		BaseURL:       srv.URL,
		APIKey:        "test-key",
		PollInterval:  10 * time.Millisecond,
		PollBudget:    500 * time.Millisecond,
		SubmitRetries: 3,
		Logger:        zerolog.Nop(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestRenderHappyPath(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var payload submitPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "garments/a.jpg", payload.GarmentURL)
		assert.Equal(t, "job-1", payload.Reference)
		writeJSON(w, submitResponse{ID: "ext-1"})
	})
	mux.HandleFunc("GET /jobs/ext-1", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 3 {
			writeJSON(w, statusResponse{ID: "ext-1", Status: "processing"})
			return
		}
		writeJSON(w, statusResponse{ID: "ext-1", Status: "succeeded", Output: []string{"http://" + r.Host + "/outputs/ext-1.png"}})
	})
	mux.HandleFunc("GET /outputs/ext-1.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	})

	c := testClient(t, mux)
	result, err := c.Render(context.Background(), Request{GarmentURL: "garments/a.jpg", SubjectURL: "avatars/a.jpg", JobID: "job-1"})
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), result.Data)
	assert.Equal(t, "image/png", result.ContentType)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestSubmitRetriesTransientFailure(t *testing.T) {
	var attempts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, submitResponse{ID: "ext-1"})
	})

	c := testClient(t, mux)
	id, err := c.Submit(context.Background(), Request{GarmentURL: "g", SubjectURL: "s", JobID: "job-1"})
	require.NoError(t, err)
	assert.Equal(t, "ext-1", id)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestSubmitExhaustsRetries(t *testing.T) {
	var attempts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	c := testClient(t, mux)
	_, err := c.Submit(context.Background(), Request{GarmentURL: "g", SubjectURL: "s"})
	assert.ErrorIs(t, err, domain.ErrProviderFailure)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestSubmitRequiresBothImages(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://127.0.0.1:0", Logger: zerolog.Nop()})
	_, err := c.Submit(context.Background(), Request{GarmentURL: "g"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRenderProviderFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, submitResponse{ID: "ext-1"})
	})
	mux.HandleFunc("GET /jobs/ext-1", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, statusResponse{ID: "ext-1", Status: "failed", Error: "nsfw content"})
	})

	c := testClient(t, mux)
	_, err := c.Render(context.Background(), Request{GarmentURL: "g", SubjectURL: "s"})
	assert.ErrorIs(t, err, domain.ErrProviderFailure)
	assert.Contains(t, err.Error(), "nsfw content")
}

func TestRenderSucceededWithoutOutputIsError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, submitResponse{ID: "ext-1"})
	})
	mux.HandleFunc("GET /jobs/ext-1", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, statusResponse{ID: "ext-1", Status: "succeeded"})
	})

	c := testClient(t, mux)
	_, err := c.Render(context.Background(), Request{GarmentURL: "g", SubjectURL: "s"})
	assert.ErrorIs(t, err, domain.ErrProviderFailure)
	assert.Contains(t, err.Error(), "without output")
}

func TestRenderPollBudgetExceeded(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, submitResponse{ID: "ext-1"})
	})
	mux.HandleFunc("GET /jobs/ext-1", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, statusResponse{ID: "ext-1", Status: "processing"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c := NewClient(Options{
		BaseURL:      srv.URL,
		PollInterval: 5 * time.Millisecond,
		PollBudget:   30 * time.Millisecond,
		Logger:       zerolog.Nop(),
	})

	_, err := c.Render(context.Background(), Request{GarmentURL: "g", SubjectURL: "s"})
	assert.ErrorIs(t, err, ErrTimedOut)
}

func TestRenderContextCancellation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, submitResponse{ID: "ext-1"})
	})
	mux.HandleFunc("GET /jobs/ext-1", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, statusResponse{ID: "ext-1", Status: "processing"})
	})

	c := testClient(t, mux)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := c.Render(ctx, Request{GarmentURL: "g", SubjectURL: "s"})
	assert.ErrorIs(t, err, context.Canceled)
}
