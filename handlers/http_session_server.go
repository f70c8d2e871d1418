package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// sessionRequestTimeout bounds every individual session-server HTTP
// call, distinct from the ~1s observation delay
// opencode.sendUserPrompt waits before listing messages.
const sessionRequestTimeout = 5 * time.Second

// HTTPSessionServer is the default SessionServer: a thin wrapper over
// *http.Client with a fixed per-request timeout, grounded on the
// pack's own plain-net/http client idiom (no resty/req wrapper
// anywhere in the retrieved examples).
type HTTPSessionServer struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPSessionServer returns an HTTPSessionServer against baseURL
// using client, or http.DefaultClient if nil.
func NewHTTPSessionServer(baseURL string, client *http.Client) *HTTPSessionServer {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSessionServer{BaseURL: baseURL, Client: client}
}

type createSessionResponse struct {
	ID string `json:"id"`
}

// CreateSession calls POST /session.
func (s *HTTPSessionServer) CreateSession(ctx context.Context, projectID uuid.UUID) (string, error) {
	body, err := json.Marshal(map[string]string{"projectId": projectID.String()})
	if err != nil {
		return "", err
	}
	var resp createSessionResponse
	if err := s.doJSON(ctx, http.MethodPost, "/session", body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("session server returned no id")
	}
	return resp.ID, nil
}

// SendPromptAsync calls POST /session/{id}/prompt_async and does not
// wait for the agent to finish responding.
func (s *HTTPSessionServer) SendPromptAsync(ctx context.Context, sessionID string, prompt Prompt) error {
	body, err := json.Marshal(prompt)
	if err != nil {
		return err
	}
	return s.doJSON(ctx, http.MethodPost, "/session/"+sessionID+"/prompt_async", body, nil)
}

type listMessagesResponse struct {
	Messages []Message `json:"messages"`
}

// ListMessages calls GET /session/{id}/message.
func (s *HTTPSessionServer) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	var resp listMessagesResponse
	if err := s.doJSON(ctx, http.MethodGet, "/session/"+sessionID+"/message", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (s *HTTPSessionServer) doJSON(ctx context.Context, method, path string, body []byte, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, sessionRequestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, s.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("session server request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return fmt.Errorf("session server returned %d: %s", resp.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
