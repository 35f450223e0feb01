package completion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(chatResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{{Message: chatMessage{Role: "assistant", Content: "  short summary \n"}}},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk-test", 5*time.Second)
	result, err := client.Complete(context.Background(), TaskSummarize, "a very long text", 100)
	require.NoError(t, err)

	assert.Equal(t, "short summary", result)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "a very long text", gotReq.Messages[1].Content)
	assert.Equal(t, 100, gotReq.MaxTokens)
}

func TestComplete_UnknownTask(t *testing.T) {
	client := NewClient("http://localhost", "sk-test", time.Second)
	_, err := client.Complete(context.Background(), "translate", "text", 0)
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestComplete_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk-test", time.Second)
	_, err := client.Complete(context.Background(), TaskGenerate, "text", 0)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestKnownTask(t *testing.T) {
	assert.True(t, KnownTask(TaskSummarize))
	assert.True(t, KnownTask(TaskAnalyze))
	assert.False(t, KnownTask(""))
	assert.False(t, KnownTask("translate"))
}
