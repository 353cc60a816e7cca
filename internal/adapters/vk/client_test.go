package vk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vk-tg-transfer/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-token", "5.131",
		WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestClient(t *testing.T) {
	ctx := context.Background()

	t.Run("UsersGet", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "/users.get", r.URL.Path)
			assert.Equal(t, "test-token", r.Form.Get("access_token"))
			assert.Equal(t, "5.131", r.Form.Get("v"))
			assert.Equal(t, "100,200", r.Form.Get("user_ids"))
			_, _ = w.Write([]byte(`{"response": [
				{"id": 100, "first_name": "Alice", "last_name": "Smith"},
				{"id": 200, "first_name": "Bob", "last_name": "Jones"}
			]}`))
		})

		users, err := client.UsersGet(ctx, []int64{100, 200})
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, int64(100), users[0].ID)
		assert.Equal(t, "Alice", users[0].FirstName)
		assert.Equal(t, "Jones", users[1].LastName)
	})

	t.Run("Ego", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Empty(t, r.Form.Get("user_ids"))
			_, _ = w.Write([]byte(`{"response": [{"id": 42, "first_name": "Me", "last_name": ""}]}`))
		})

		ego, err := client.Ego(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(42), ego.ID)
	})

	t.Run("GroupsGetByID", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "/groups.getById", r.URL.Path)
			assert.Equal(t, "7", r.Form.Get("group_ids"))
			_, _ = w.Write([]byte(`{"response": [{"id": 7, "name": "Some Group"}]}`))
		})

		groups, err := client.GroupsGetByID(ctx, []int64{7})
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, "Some Group", groups[0].Name)
	})

	t.Run("VideoPlayerURL", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "/video.get", r.URL.Path)
			assert.Equal(t, "1_2_abc", r.Form.Get("videos"))
			_, _ = w.Write([]byte(`{"response": {"count": 1, "items": [{"player": "https://player.example.com/v"}]}}`))
		})

		url, err := client.VideoPlayerURL(ctx, domain.VkVideo{OwnerID: 1, ID: 2, AccessKey: "abc"})
		require.NoError(t, err)
		assert.Equal(t, "https://player.example.com/v", url)
	})

	t.Run("DeletedVideoHasNoPlayer", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"response": {"count": 0, "items": []}}`))
		})

		url, err := client.VideoPlayerURL(ctx, domain.VkVideo{OwnerID: 1, ID: 2})
		require.NoError(t, err)
		assert.Empty(t, url)
	})

	t.Run("RestrictedVideoSkipsRequest", func(t *testing.T) {
		client := newTestClient(t, func(http.ResponseWriter, *http.Request) {
			t.Fatal("no request expected for restricted video")
		})

		url, err := client.VideoPlayerURL(ctx, domain.VkVideo{ContentRestricted: true})
		require.NoError(t, err)
		assert.Empty(t, url)
	})

	t.Run("APIErrorEnvelope", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"error": {"error_code": 5, "error_msg": "User authorization failed"}}`))
		})

		_, err := client.UsersGet(ctx, []int64{1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "User authorization failed")
	})
}
