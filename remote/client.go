// Package remote is the HTTP client of the session server.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Dosada05/alliance-board/models"
	"github.com/Dosada05/alliance-board/realtime"
)

var (
	ErrSessionNotFound       = errors.New("session not found")
	ErrSessionIDConflict     = errors.New("session id already exists")
	ErrShareConflict         = errors.New("session is already shared with this user")
	ErrShareRecipientUnknown = errors.New("no registered user with this email")
	ErrForbidden             = errors.New("operation not allowed")
	ErrUnauthorized          = errors.New("not signed in or token expired")
	ErrInvalidRequest        = errors.New("request rejected by server")
)

// APIError keeps the status and message of a failed call. It unwraps to one
// of the sentinels above when the status has a meaning.
// Text the server uses when the share recipient has never signed in.
const recipientUnknownText = "no registered user"

type APIError struct {
	Status  int
	Message string
	kind    error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.kind }

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: httpClient}
}

type createRequest struct {
	ID        string            `json:"id"`
	EventCode string            `json:"event_code"`
	Name      string            `json:"name,omitempty"`
	Data      models.BoardState `json:"data,omitempty"`
}

type updateRequest struct {
	Data models.BoardState `json:"data,omitempty"`
	Name *string           `json:"name,omitempty"`
}

func (c *Client) CreateSession(ctx context.Context, id, eventCode, name string, data models.BoardState) (*models.Session, error) {
	var out models.Session
	err := c.do(ctx, http.MethodPost, "/sessions", "", createRequest{ID: id, EventCode: eventCode, Name: name, Data: data}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var out models.Session
	if err := c.do(ctx, http.MethodGet, sessionPath(id), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListSessions(ctx context.Context) ([]models.Session, error) {
	var out []models.Session
	if err := c.do(ctx, http.MethodGet, "/sessions", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateSessionData(ctx context.Context, id string, data models.BoardState, origin string) error {
	return c.do(ctx, http.MethodPatch, sessionPath(id), origin, updateRequest{Data: data}, nil)
}

func (c *Client) UpdateSessionName(ctx context.Context, id, name, origin string) error {
	return c.do(ctx, http.MethodPatch, sessionPath(id), origin, updateRequest{Name: &name}, nil)
}

func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, sessionPath(id), "", nil, nil)
}

func (c *Client) ShareSession(ctx context.Context, id, email string) (*models.Share, error) {
	var out models.Share
	err := c.do(ctx, http.MethodPost, sessionPath(id)+"/shares", "", map[string]string{"email": email}, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			switch {
			// на шаринге 409 означает повторный шаринг, а не занятый id
			case apiErr.Status == http.StatusConflict:
				apiErr.kind = ErrShareConflict
			case apiErr.Status == http.StatusUnprocessableEntity && strings.Contains(apiErr.Message, recipientUnknownText):
				apiErr.kind = ErrShareRecipientUnknown
			}
		}
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListShares(ctx context.Context, id string) ([]models.Share, error) {
	var out []models.Share
	if err := c.do(ctx, http.MethodGet, sessionPath(id)+"/shares", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func sessionPath(id string) string {
	return "/sessions/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path, origin string, body, dst interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if origin != "" {
		req.Header.Set(realtime.OriginHeader, origin)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if dst == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}

	var env struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(raw, &env) == nil && len(env.Error) > 0 {
		var msg string
		if json.Unmarshal(env.Error, &msg) == nil {
			apiErr.Message = msg
		} else {
			// ошибки валидации приходят картой поле -> текст
			var fields map[string]string
			if json.Unmarshal(env.Error, &fields) == nil {
				parts := make([]string, 0, len(fields))
				for k, v := range fields {
					parts = append(parts, k+": "+v)
				}
				sort.Strings(parts)
				apiErr.Message = strings.Join(parts, "; ")
			}
		}
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		apiErr.kind = ErrSessionNotFound
	case http.StatusConflict:
		apiErr.kind = ErrSessionIDConflict
	case http.StatusForbidden:
		apiErr.kind = ErrForbidden
	case http.StatusUnauthorized:
		apiErr.kind = ErrUnauthorized
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		apiErr.kind = ErrInvalidRequest
	}
	return apiErr
}
