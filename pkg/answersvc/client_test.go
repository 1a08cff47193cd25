package answersvc

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/formpilot/formpilot/internal/config"
)

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	c, err := NewClient(config.AnswersConfig{
		Endpoint:       endpoint,
		Timeout:        5 * time.Second,
		MaxRetryTime:   5 * time.Second,
		RequestsPerMin: 6000, // effectively unthrottled for tests
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	_, err := NewClient(config.AnswersConfig{}, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "endpoint is required")
}

func TestClientAnswerSuccess(t *testing.T) {
	var gotReq Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"answer": "  Go, Postgres and Kubernetes.  "}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	answer, err := c.Answer(context.Background(), Request{
		Question:    "What are your main technologies?",
		ProfileText: "Backend engineer",
	})
	require.NoError(t, err)
	assert.Equal(t, "Go, Postgres and Kubernetes.", answer)
	assert.Equal(t, "What are your main technologies?", gotReq.Question)
	assert.Equal(t, "Backend engineer", gotReq.ProfileText)
}

func TestClientAnswerMapsToOption(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"answer": "3. Conversational"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	answer, err := c.Answer(context.Background(), Request{
		Question: "Spanish proficiency",
		Options:  []string{"None", "Basic", "Conversational", "Fluent"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Conversational", answer)
}

func TestClientRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"answer": "yes"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	answer, err := c.Answer(context.Background(), Request{Question: "retry me"})
	require.NoError(t, err)
	assert.Equal(t, "yes", answer)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Answer(context.Background(), Request{Question: "bad request"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientEmptyAnswerIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"answer": ""}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Answer(context.Background(), Request{Question: "empty"})
	assert.ErrorContains(t, err, "empty answer")
}

func TestClientCoalescesIdenticalQuestions(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		w.Write([]byte(`{"answer": "shared"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	const n = 4
	var wg sync.WaitGroup
	answers := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := c.Answer(context.Background(), Request{Question: "same question"})
			assert.NoError(t, err)
			answers[i] = a
		}(i)
	}

	// Give the goroutines time to pile onto the in-flight call.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "identical in-flight questions share one request")
	for _, a := range answers {
		assert.Equal(t, "shared", a)
	}
}

func TestClientContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server notices the client disconnect and
		// cancels the request context; otherwise srv.Close deadlocks.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.Answer(ctx, Request{Question: "slow"})
	assert.Error(t, err)
}
