package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPI_List(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/notifications", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "true", r.URL.Query().Get("unread"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"n1","type":"info","title":"Hi","message":"","timestamp":"2026-01-02T03:04:05Z","isRead":false,"category":"system"}],"meta":{"request_id":"r"}}`))
	}))
	defer srv.Close()

	notifications, err := NewAPI(srv.URL, "tok").List(context.Background(), ListOptions{Limit: 10, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, "n1", notifications[0].ID)
	assert.Equal(t, "Hi", notifications[0].Title)
}

func TestAPI_UnreadCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/notifications/unread-count", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"count":3},"meta":{"request_id":"r"}}`))
	}))
	defer srv.Close()

	count, err := NewAPI(srv.URL, "tok").UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestAPI_MutationsUseExpectedRoutes(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Method+" "+r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"updated":2},"meta":{"request_id":"r"}}`))
	}))
	defer srv.Close()

	api := NewAPI(srv.URL, "tok")
	require.NoError(t, api.MarkRead(context.Background(), "n1"))
	updated, err := api.MarkAllRead(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)
	require.NoError(t, api.Delete(context.Background(), "n1"))

	assert.Equal(t, []string{
		"PATCH /api/v1/notifications/n1/read",
		"POST /api/v1/notifications/read-all",
		"DELETE /api/v1/notifications/n1",
	}, got)
}

func TestAPI_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"NOTIFICATION_NOT_FOUND","message":"notification not found"},"meta":{"request_id":"r"}}`))
	}))
	defer srv.Close()

	err := NewAPI(srv.URL, "tok").MarkRead(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusNotFound))
	assert.Contains(t, err.Error(), "NOTIFICATION_NOT_FOUND")
}
