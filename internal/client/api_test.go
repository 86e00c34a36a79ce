package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"anoa.com/ulike/internal/client"
	"anoa.com/ulike/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIToggleSendsBody(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/react", r.URL.Path)
		assert.Equal(t, "Bearer session", r.Header.Get("Authorization"))
		if cookie, err := r.Cookie("ulike_visitor"); assert.NoError(t, err) {
			assert.Equal(t, "visitor-1", cookie.Value)
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"new_counter_value":3,"counter_text":"3","next_state":"liked","button_status":"reacted","button_text":"Unlike"}}`))
	}))
	defer srv.Close()

	api := client.NewAPI(srv.URL+"/", client.WithBearer("session"),
		client.WithCookies(&http.Cookie{Name: "ulike_visitor", Value: "visitor-1"}))
	resp, err := api.Toggle(context.Background(), entity.Subject{Type: entity.ItemPost, ID: 7}, entity.KindLike, "tok", entity.StatusNotYetReacted)
	require.NoError(t, err)

	assert.Equal(t, int64(3), resp.NewCounterValue)
	assert.Equal(t, entity.StatusReacted, resp.ButtonStatus)
	assert.Equal(t, "like", got["requested_kind"])
	assert.Equal(t, "tok", got["token"])
	assert.Equal(t, "not_yet_reacted", got["presented_status"])
	assert.Equal(t, map[string]any{"type": "post", "id": float64(7)}, got["subject"])
}

func TestAPIErrors(t *testing.T) {
	t.Run("failure envelope", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"success":false,"data":{"message":"Reaction changed elsewhere"}}`))
		}))
		defer srv.Close()

		_, err := client.NewAPI(srv.URL).Likers(context.Background(), entity.Subject{Type: entity.ItemPost, ID: 1}, 1, false)
		var apiErr *client.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
		assert.Equal(t, "Reaction changed elsewhere", apiErr.Message)
	})

	t.Run("not json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>bad gateway</html>"))
		}))
		defer srv.Close()

		_, err := client.NewAPI(srv.URL).Status(context.Background(), entity.Subject{Type: entity.ItemPost, ID: 1}, entity.KindLike)
		var apiErr *client.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "Bad Gateway", apiErr.Message)
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		api := client.NewAPI(srv.URL, client.WithTimeout(50*time.Millisecond))
		_, err := api.Toggle(context.Background(), entity.Subject{Type: entity.ItemPost, ID: 1}, entity.KindLike, "", "")
		assert.True(t, errors.Is(err, client.ErrRequestFailed))
	})
}
