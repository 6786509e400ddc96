package syncer

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

	"checkmate/internal/command"
	"checkmate/internal/model"
)

// HTTPTransport talks to the remote service over its JSON API.
type HTTPTransport struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPTransport(baseURL, token string, timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPTransport{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Token:   strings.TrimSpace(token),
		Client:  &http.Client{Timeout: timeout},
	}
}

func (h *HTTPTransport) Push(ctx context.Context, batch []command.Record) ([]Ack, error) {
	var resp PushResponse
	if err := h.do(ctx, "push", http.MethodPost, "/v1/commands", PushRequest{Commands: batch}, &resp); err != nil {
		return nil, err
	}
	return resp.Acks, nil
}

func (h *HTTPTransport) Pull(ctx context.Context) (Snapshot, error) {
	var tpls struct {
		Templates []model.Template `json:"templates"`
	}
	if err := h.do(ctx, "pull", http.MethodGet, "/v1/templates", nil, &tpls); err != nil {
		return Snapshot{}, err
	}
	var cls struct {
		Checklists []model.Checklist `json:"checklists"`
	}
	if err := h.do(ctx, "pull", http.MethodGet, "/v1/checklists", nil, &cls); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Templates: tpls.Templates, Checklists: cls.Checklists}, nil
}

func (h *HTTPTransport) do(ctx context.Context, op, method, path string, in, out any) error {
	if h.BaseURL == "" {
		return TransportError{Op: op, Err: errors.New("no remote url configured")}
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("sync %s: marshal: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.BaseURL+path, body)
	if err != nil {
		return TransportError{Op: op, Err: err}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.Token)
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return TransportError{Op: op, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(respBody))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return TransportError{Op: op, Status: resp.StatusCode, Err: errors.New(msg)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
