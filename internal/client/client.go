// Package client talks to the snippets REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/snippets/backend/internal/library"
)

const DefaultTimeout = 30 * time.Second

var errMissingBaseURL = errors.New("client: base url is required")

// APIError is a non-2xx response. It matches the library error kind derived
// from the status code.
type APIError struct {
	Status  int
	Kind    string
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
	}
	if e.Kind != "" {
		return fmt.Sprintf("api error (status %d): %s", e.Status, e.Kind)
	}
	return fmt.Sprintf("api error (status %d)", e.Status)
}

func (e *APIError) Is(target error) bool {
	if e.Kind == library.ErrMalformedInput.Error() && target == library.ErrMalformedInput {
		return true
	}
	kind := kindForStatus(e.Status)
	return kind != nil && target == kind
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusBadRequest:
		return library.ErrValidation
	case http.StatusUnauthorized:
		return library.ErrUnauthorized
	case http.StatusNotFound:
		return library.ErrNotFound
	case http.StatusConflict:
		return library.ErrConflict
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return library.ErrUnavailable
	default:
		return nil
	}
}

// Client is safe for concurrent use. A 401 response clears the stored token so
// the caller logs in again.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

func New(baseURL string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errMissingBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("client: invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}, nil
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Login exchanges the shared password for a bearer token and keeps it for
// subsequent calls.
func (c *Client) Login(ctx context.Context, password string) error {
	var response struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/login", map[string]string{"password": password}, &response); err != nil {
		return err
	}
	if response.Token == "" {
		return fmt.Errorf("%w: login returned no token", library.ErrUnauthorized)
	}
	c.SetToken(response.Token)
	return nil
}

func (c *Client) ListComponents(ctx context.Context) ([]library.Component, error) {
	var components []library.Component
	err := c.doJSON(ctx, http.MethodGet, "/api/components", nil, &components)
	return components, err
}

func (c *Client) GetComponent(ctx context.Context, id string) (library.Component, error) {
	var component library.Component
	err := c.doJSON(ctx, http.MethodGet, "/api/components/"+url.PathEscape(id), nil, &component)
	return component, err
}

func (c *Client) CreateComponent(ctx context.Context, component library.Component) (library.Component, error) {
	var created library.Component
	err := c.doJSON(ctx, http.MethodPost, "/api/components", component, &created)
	return created, err
}

// UpdateComponent sends the editable fields with the expected updatedAt and
// returns the new one. A stale baseline fails with library.ErrConflict.
func (c *Client) UpdateComponent(ctx context.Context, component library.Component, expectedUpdatedAt *int64) (int64, error) {
	body := struct {
		library.Component
		UpdatedAt *int64 `json:"updatedAt"`
	}{Component: component, UpdatedAt: expectedUpdatedAt}
	var response struct {
		UpdatedAt int64 `json:"updatedAt"`
	}
	err := c.doJSON(ctx, http.MethodPut, "/api/components/"+url.PathEscape(component.ID), body, &response)
	return response.UpdatedAt, err
}

func (c *Client) DeleteComponent(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/components/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	var response struct {
		Favorite bool `json:"favorite"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/components/"+url.PathEscape(id)+"/favorite", nil, &response)
	return response.Favorite, err
}

func (c *Client) ListVersions(ctx context.Context, componentID string) ([]library.ComponentVersion, error) {
	var versions []library.ComponentVersion
	err := c.doJSON(ctx, http.MethodGet, "/api/versions?componentId="+url.QueryEscape(componentID), nil, &versions)
	return versions, err
}

func (c *Client) ListTrash(ctx context.Context) ([]library.TrashEntry, error) {
	var entries []library.TrashEntry
	err := c.doJSON(ctx, http.MethodGet, "/api/trash", nil, &entries)
	return entries, err
}

func (c *Client) RestoreComponent(ctx context.Context, id string) (library.Component, error) {
	var component library.Component
	err := c.doJSON(ctx, http.MethodPost, "/api/trash/"+url.PathEscape(id), nil, &component)
	return component, err
}

func (c *Client) PurgeTrashEntry(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/trash/"+url.PathEscape(id), nil, nil)
}

func (c *Client) PurgeTrash(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/trash", nil, nil)
}

func (c *Client) ListTemplates(ctx context.Context) ([]library.Template, error) {
	var templates []library.Template
	err := c.doJSON(ctx, http.MethodGet, "/api/templates", nil, &templates)
	return templates, err
}

func (c *Client) CreateTemplate(ctx context.Context, template library.Template) (library.Template, error) {
	var created library.Template
	err := c.doJSON(ctx, http.MethodPost, "/api/templates", template, &created)
	return created, err
}

func (c *Client) UpdateTemplate(ctx context.Context, template library.Template, expectedUpdatedAt *int64) (int64, error) {
	body := struct {
		library.Template
		UpdatedAt *int64 `json:"updatedAt"`
	}{Template: template, UpdatedAt: expectedUpdatedAt}
	var response struct {
		UpdatedAt int64 `json:"updatedAt"`
	}
	err := c.doJSON(ctx, http.MethodPut, "/api/templates/"+url.PathEscape(template.ID), body, &response)
	return response.UpdatedAt, err
}

func (c *Client) DeleteTemplate(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/templates/"+url.PathEscape(id), nil, nil)
}

func (c *Client) RenderTemplate(ctx context.Context, id string) (string, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/templates/"+url.PathEscape(id)+"/html", "", nil)
	return string(body), err
}

func (c *Client) ListFolders(ctx context.Context) (library.FolderSet, error) {
	folders := library.FolderSet{}
	err := c.doJSON(ctx, http.MethodGet, "/api/folders", nil, &folders)
	return folders, err
}

func (c *Client) ReplaceFolders(ctx context.Context, folders library.FolderSet) error {
	return c.doJSON(ctx, http.MethodPut, "/api/folders", folders, nil)
}

// Export downloads every record of kind ("components" or "templates").
func (c *Client) Export(ctx context.Context, kind string, format library.Format) ([]byte, error) {
	query := url.Values{"kind": {kind}, "format": {string(format)}}
	return c.do(ctx, http.MethodGet, "/api/export?"+query.Encode(), "", nil)
}

// Import uploads an encoded record array and returns how many records were stored.
func (c *Client) Import(ctx context.Context, kind string, format library.Format, payload []byte) (int, error) {
	query := url.Values{"kind": {kind}, "format": {string(format)}}
	body, err := c.do(ctx, http.MethodPost, "/api/import?"+query.Encode(), "application/octet-stream", payload)
	if err != nil {
		return 0, err
	}
	var response struct {
		Imported int `json:"imported"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return 0, fmt.Errorf("failed to parse import response: %w", err)
	}
	return response.Imported, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	contentType := ""
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = encoded
		contentType = "application/json"
	}
	body, err := c.do(ctx, method, path, contentType, payload)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, payload []byte) ([]byte, error) {
	var reader io.Reader = http.NoBody
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", library.ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", library.ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized {
			c.SetToken("")
		}
		return nil, decodeAPIError(resp.StatusCode, body)
	}
	return body, nil
}

func decodeAPIError(status int, body []byte) error {
	apiErr := &APIError{Status: status}
	var payload struct {
		Error   string `json:"error"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Kind = payload.Error
		apiErr.Code = payload.Code
		apiErr.Message = payload.Message
	}
	return apiErr
}
