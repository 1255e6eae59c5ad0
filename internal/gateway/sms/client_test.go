package sms_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Murudula29/Dosemate/internal/domain"
	"github.com/Murudula29/Dosemate/internal/gateway/sms"
)

func TestClient_Send_Success(t *testing.T) {
	var gotAuth, gotIdempotency string
	var gotBody map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotIdempotency = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message_id": "msg-42"}`))
	}))
	defer server.Close()

	client := sms.NewClient(sms.Config{
		BaseURL: server.URL,
		APIKey:  "secret",
		From:    "Dosemate",
	})

	result, err := client.Send(context.Background(), "+15550001111", "time to take aspirin", "task-abc")

	require.NoError(t, err)
	assert.Equal(t, "msg-42", result.ProviderRef)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "task-abc", gotIdempotency)
	assert.Equal(t, map[string]string{
		"from": "Dosemate",
		"to":   "+15550001111",
		"body": "time to take aspirin",
	}, gotBody)
}

func TestClient_Send_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := sms.NewClient(sms.Config{BaseURL: server.URL})

	result, err := client.Send(context.Background(), "+15550001111", "hello", "task-abc")

	assert.Nil(t, result)
	assert.True(t, domain.IsTransientSendError(err))
}

func TestClient_Send_RateLimitIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := sms.NewClient(sms.Config{BaseURL: server.URL})

	_, err := client.Send(context.Background(), "+15550001111", "hello", "task-abc")

	assert.True(t, domain.IsTransientSendError(err))
}

func TestClient_Send_BadRequestIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid recipient", http.StatusBadRequest)
	}))
	defer server.Close()

	client := sms.NewClient(sms.Config{BaseURL: server.URL})

	_, err := client.Send(context.Background(), "not-a-phone", "hello", "task-abc")

	require.Error(t, err)
	assert.False(t, domain.IsTransientSendError(err))
	assert.Contains(t, err.Error(), "400")
}

func TestClient_Send_ConnectionErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // nothing is listening anymore

	client := sms.NewClient(sms.Config{BaseURL: server.URL})

	_, err := client.Send(context.Background(), "+15550001111", "hello", "task-abc")

	assert.True(t, domain.IsTransientSendError(err))
}

func TestClient_Send_TimeoutIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	client := sms.NewClient(sms.Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond})

	_, err := client.Send(context.Background(), "+15550001111", "hello", "task-abc")

	assert.True(t, domain.IsTransientSendError(err))
}
