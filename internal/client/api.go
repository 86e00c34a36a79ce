// Package client talks to the reaction endpoints on behalf of one widget.
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
	"time"

	"anoa.com/ulike/internal/entity"
	reactionDto "anoa.com/ulike/internal/modules/reaction/dto"
)

const defaultTimeout = 10 * time.Second

// ErrRequestFailed covers network failures and timeouts. The server never
// saw or never answered the request.
var ErrRequestFailed = errors.New("request failed, please try again")

// APIError is a {success:false} answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type API struct {
	baseURL    string
	httpClient *http.Client
	bearer     string
	cookies    []*http.Cookie
}

type Option func(*API)

// WithHTTPClient replaces the default client, e.g. to share a cookie jar.
func WithHTTPClient(c *http.Client) Option {
	return func(a *API) { a.httpClient = c }
}

// WithBearer authenticates every request with a session token.
func WithBearer(token string) Option {
	return func(a *API) { a.bearer = token }
}

func WithTimeout(d time.Duration) Option {
	return func(a *API) { a.httpClient.Timeout = d }
}

// WithCookies sends cookies such as the anonymous visitor cookie.
func WithCookies(cookies ...*http.Cookie) Option {
	return func(a *API) { a.cookies = append(a.cookies, cookies...) }
}

func NewAPI(baseURL string, opts ...Option) *API {
	a := &API{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func subjectRef(subject entity.Subject) reactionDto.SubjectRef {
	id := subject.ID
	return reactionDto.SubjectRef{Type: string(subject.Type), ID: &id}
}

func (a *API) Toggle(ctx context.Context, subject entity.Subject, kind entity.Kind, token string, presented entity.PresentationStatus) (*reactionDto.ToggleResponse, error) {
	body := reactionDto.ToggleRequest{
		Subject:         subjectRef(subject),
		RequestedKind:   string(kind),
		Token:           token,
		PresentedStatus: string(presented),
	}
	var resp reactionDto.ToggleResponse
	if err := a.do(ctx, http.MethodPost, "/api/react", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *API) Likers(ctx context.Context, subject entity.Subject, page int, refresh bool) (*reactionDto.LikersResponse, error) {
	body := reactionDto.LikersRequest{
		Subject: subjectRef(subject),
		Refresh: refresh,
		Page:    page,
	}
	var resp reactionDto.LikersResponse
	if err := a.do(ctx, http.MethodPost, "/api/likers", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *API) Status(ctx context.Context, subject entity.Subject, kind entity.Kind) (*reactionDto.StatusResponse, error) {
	path := fmt.Sprintf("/api/reactions/%s/%d?kind=%s", url.PathEscape(string(subject.Type)), subject.ID, url.QueryEscape(string(kind)))
	var resp reactionDto.StatusResponse
	if err := a.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+a.bearer)
	}
	for _, c := range a.cookies {
		req.AddCookie(c)
	}

	res, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer res.Body.Close()

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return &APIError{StatusCode: res.StatusCode, Message: http.StatusText(res.StatusCode)}
	}
	if !env.Success || res.StatusCode >= http.StatusBadRequest {
		var msg struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(env.Data, &msg)
		if msg.Message == "" {
			msg.Message = http.StatusText(res.StatusCode)
		}
		return &APIError{StatusCode: res.StatusCode, Message: msg.Message}
	}

	return json.Unmarshal(env.Data, out)
}
