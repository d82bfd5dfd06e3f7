package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClientOptions configures the platform HTTP client.
type HTTPClientOptions struct {
	BaseURL    string
	APIToken   string
	HTTPClient *http.Client
	UserAgent  string
}

// HTTPClient is a Store backed by the conversation platform's REST API.
type HTTPClient struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	userAgent  string
}

// NewHTTPClient creates a platform client. BaseURL is required.
func NewHTTPClient(opts HTTPClientOptions) (*HTTPClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("conversation API base URL cannot be empty")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}

	return &HTTPClient{
		baseURL:    baseURL,
		apiToken:   strings.TrimSpace(opts.APIToken),
		httpClient: httpClient,
		userAgent:  strings.TrimSpace(opts.UserAgent),
	}, nil
}

// GetConversation fetches a conversation including its metadata view.
func (c *HTTPClient) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	var conv Conversation
	err := c.do(ctx, http.MethodGet, c.conversationPath(conversationID), nil, &conv)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// SendMessage posts a message into a conversation.
func (c *HTTPClient) SendMessage(ctx context.Context, conversationID string, msg NewMessage) error {
	return c.do(ctx, http.MethodPost, c.conversationPath(conversationID)+"/messages", msg, nil)
}

// UpdateParticipantStatus sets the assistant participant's transient status.
func (c *HTTPClient) UpdateParticipantStatus(ctx context.Context, conversationID, status string) error {
	body := map[string]string{"status": status}
	return c.do(ctx, http.MethodPatch, c.conversationPath(conversationID)+"/participants/me", body, nil)
}

// SendStateEvent delivers a UI state event to a conversation.
func (c *HTTPClient) SendStateEvent(ctx context.Context, conversationID string, ev StateEvent) error {
	return c.do(ctx, http.MethodPost, c.conversationPath(conversationID)+"/state-events", ev, nil)
}

// SetMetadata writes one metadata field on a conversation.
func (c *HTTPClient) SetMetadata(ctx context.Context, conversationID, key, value string) error {
	body := map[string]map[string]string{"metadata": {key: value}}
	return c.do(ctx, http.MethodPatch, c.conversationPath(conversationID), body, nil)
}

// UpdateTitle renames a conversation.
func (c *HTTPClient) UpdateTitle(ctx context.Context, conversationID, title string) error {
	body := map[string]string{"title": title}
	return c.do(ctx, http.MethodPatch, c.conversationPath(conversationID), body, nil)
}

// CopyFile copies a file's bytes from one conversation to another.
func (c *HTTPClient) CopyFile(ctx context.Context, sourceConversationID, targetConversationID, filename string) error {
	body := map[string]string{"target_conversation_id": targetConversationID}
	path := c.conversationPath(sourceConversationID) + "/files/" + url.PathEscape(filename) + "/copy"
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// DeleteFile removes a file from a conversation.
func (c *HTTPClient) DeleteFile(ctx context.Context, conversationID, filename string) error {
	path := c.conversationPath(conversationID) + "/files/" + url.PathEscape(filename)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// ListFiles returns the filenames present in a conversation.
func (c *HTTPClient) ListFiles(ctx context.Context, conversationID string) ([]string, error) {
	var resp struct {
		Filenames []string `json:"filenames"`
	}
	if err := c.do(ctx, http.MethodGet, c.conversationPath(conversationID)+"/files", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Filenames, nil
}

// CreateShareableConversation asks the platform to mint the dormant template
// conversation carrying the share's join link.
func (c *HTTPClient) CreateShareableConversation(ctx context.Context, sourceConversationID, shareID string) (string, string, error) {
	body := map[string]string{"share_id": shareID}
	var resp struct {
		ConversationID string `json:"conversation_id"`
		ShareURL       string `json:"share_url"`
	}
	if err := c.do(ctx, http.MethodPost, c.conversationPath(sourceConversationID)+"/share", body, &resp); err != nil {
		return "", "", err
	}
	return resp.ConversationID, resp.ShareURL, nil
}

func (c *HTTPClient) conversationPath(conversationID string) string {
	return "/v1/conversations/" + url.PathEscape(conversationID)
}

// do performs one JSON request/response cycle against the platform API.
func (c *HTTPClient) do(ctx context.Context, method, path string, payload, result interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to conversation platform failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("conversation platform returned %d for %s %s: %s",
			resp.StatusCode, method, path, strings.TrimSpace(string(snippet)))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
