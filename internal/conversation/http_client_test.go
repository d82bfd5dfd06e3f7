package conversation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClient(t *testing.T) {
	t.Run("requires base URL", func(t *testing.T) {
		_, err := NewHTTPClient(HTTPClientOptions{})
		assert.Error(t, err)
	})

	t.Run("trims trailing slash", func(t *testing.T) {
		client, err := NewHTTPClient(HTTPClientOptions{BaseURL: "https://platform.local/"})
		require.NoError(t, err)
		assert.Equal(t, "https://platform.local", client.baseURL)
	})
}

func TestHTTPClientGetConversation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/conversations/conv-1", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(Conversation{
			ID:       "conv-1",
			Title:    "Launch planning",
			Metadata: map[string]string{MetadataShareID: "share-1"},
		})
	}))
	defer server.Close()

	client, err := NewHTTPClient(HTTPClientOptions{BaseURL: server.URL, APIToken: "secret"})
	require.NoError(t, err)

	conv, err := client.GetConversation(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "Launch planning", conv.Title)
	assert.Equal(t, "share-1", conv.MetadataValue(MetadataShareID))
}

func TestHTTPClientNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewHTTPClient(HTTPClientOptions{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.GetConversation(context.Background(), "conv-missing")
	assert.True(t, IsNotFound(err))

	err = client.DeleteFile(context.Background(), "conv-missing", "a.txt")
	assert.True(t, IsNotFound(err))
}

func TestHTTPClientCopyFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/conversations/conv-1/files/spec%20v2.pdf/copy", r.URL.EscapedPath())

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "conv-2", body["target_conversation_id"])

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client, err := NewHTTPClient(HTTPClientOptions{BaseURL: server.URL})
	require.NoError(t, err)

	err = client.CopyFile(context.Background(), "conv-1", "conv-2", "spec v2.pdf")
	assert.NoError(t, err)
}

func TestHTTPClientCreateShareableConversation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/conversations/conv-1/share", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "share-1", body["share_id"])

		json.NewEncoder(w).Encode(map[string]string{
			"conversation_id": "conv-template",
			"share_url":       "https://platform.local/redeem/tok",
		})
	}))
	defer server.Close()

	client, err := NewHTTPClient(HTTPClientOptions{BaseURL: server.URL})
	require.NoError(t, err)

	convID, shareURL, err := client.CreateShareableConversation(context.Background(), "conv-1", "share-1")
	require.NoError(t, err)
	assert.Equal(t, "conv-template", convID)
	assert.Equal(t, "https://platform.local/redeem/tok", shareURL)
}

func TestHTTPClientSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	client, err := NewHTTPClient(HTTPClientOptions{BaseURL: server.URL})
	require.NoError(t, err)

	err = client.SendMessage(context.Background(), "conv-1", NewMessage{Content: "hi", Kind: MessageKindChat})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream exploded")
}
