// Package client connects Go programs to the notification service: a REST client,
// a reconnecting WebSocket adapter, and a synchronizer keeping a local inbox current.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"beacon/pkg/protocol"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxErrorBody       = 1 << 20
)

// ListOptions narrows FetchNotifications. Zero values use the server defaults.
type ListOptions struct {
	Limit      int
	Offset     int
	UnreadOnly bool
}

// API is the REST client of the notification API.
type API struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewAPI creates a REST client authenticating with the Bearer token.
func NewAPI(baseURL, token string) *API {
	return &API{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (a *API) WithHTTPClient(hc *http.Client) *API {
	a.httpClient = hc

	return a
}

// List returns the caller's notifications, newest first.
func (a *API) List(ctx context.Context, opts ListOptions) ([]protocol.Notification, error) {
	params := url.Values{}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.UnreadOnly {
		params.Set("unread", "true")
	}

	path := "/api/v1/notifications"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var notifications []protocol.Notification
	if err := a.doRequest(ctx, http.MethodGet, path, nil, &notifications); err != nil {
		return nil, errors.Wrap(err, "client.List")
	}

	return notifications, nil
}

// UnreadCount returns the number of unread notifications.
func (a *API) UnreadCount(ctx context.Context) (int64, error) {
	var out protocol.UnreadCount
	if err := a.doRequest(ctx, http.MethodGet, "/api/v1/notifications/unread-count", nil, &out); err != nil {
		return 0, errors.Wrap(err, "client.UnreadCount")
	}

	return out.Count, nil
}

// MarkRead flags one notification as read.
func (a *API) MarkRead(ctx context.Context, notificationID string) error {
	if err := a.doRequest(ctx, http.MethodPatch, "/api/v1/notifications/"+url.PathEscape(notificationID)+"/read", nil, nil); err != nil {
		return errors.Wrap(err, "client.MarkRead")
	}

	return nil
}

// MarkAllRead flags every notification as read and returns how many changed.
func (a *API) MarkAllRead(ctx context.Context) (int64, error) {
	var out struct {
		Updated int64 `json:"updated"`
	}
	if err := a.doRequest(ctx, http.MethodPost, "/api/v1/notifications/read-all", nil, &out); err != nil {
		return 0, errors.Wrap(err, "client.MarkAllRead")
	}

	return out.Updated, nil
}

// Delete removes one notification.
func (a *API) Delete(ctx context.Context, notificationID string) error {
	if err := a.doRequest(ctx, http.MethodDelete, "/api/v1/notifications/"+url.PathEscape(notificationID), nil, nil); err != nil {
		return errors.Wrap(err, "client.Delete")
	}

	return nil
}

// successBody and errorBody mirror the API response envelope.
type successBody struct {
	Data json.RawMessage `json:"data"`
}

type errorBody struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *API) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal body")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr errorBody
		if sonic.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != nil {
			return &HTTPError{StatusCode: resp.StatusCode, Code: apiErr.Error.Code, Message: apiErr.Error.Message}
		}

		return &HTTPError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if out == nil {
		return nil
	}

	var envelope successBody
	if err := sonic.Unmarshal(respBody, &envelope); err != nil {
		return errors.Wrap(err, "decode response")
	}
	if err := sonic.Unmarshal(envelope.Data, out); err != nil {
		return errors.Wrap(err, "decode response data")
	}

	return nil
}
