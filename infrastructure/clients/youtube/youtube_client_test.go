package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"yt-elt/domain/apperror"
	"yt-elt/domain/dto"
	"yt-elt/infrastructure/logger"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// fakeAPI is a minimal stand-in for the YouTube Data API v3.
type fakeAPI struct {
	*httptest.Server
	channels      http.HandlerFunc
	playlistItems http.HandlerFunc
	videos        http.HandlerFunc
	requests      atomic.Int32
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("/youtube/v3/channels", func(w http.ResponseWriter, r *http.Request) {
		api.requests.Add(1)
		api.channels(w, r)
	})
	mux.HandleFunc("/youtube/v3/playlistItems", func(w http.ResponseWriter, r *http.Request) {
		api.requests.Add(1)
		api.playlistItems(w, r)
	})
	mux.HandleFunc("/youtube/v3/videos", func(w http.ResponseWriter, r *http.Request) {
		api.requests.Add(1)
		api.videos(w, r)
	})
	api.Server = httptest.NewServer(mux)
	t.Cleanup(api.Close)
	return api
}

func (api *fakeAPI) client(t *testing.T) *Client {
	t.Helper()
	c, err := NewYouTubeClient(context.Background(), &Config{
		HTTPClient: api.Server.Client(),
		Endpoint:   api.URL + "/",
	})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func apiError(code int, reason string) string {
	return fmt.Sprintf(`{"error":{"code":%d,"message":"%s","errors":[{"reason":"%s","message":"%s"}]}}`, code, reason, reason, reason)
}

func TestGetChannelByHandle(t *testing.T) {
	api := newFakeAPI(t)
	api.channels = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "contentDetails", r.URL.Query().Get("part"))
		assert.Equal(t, "MrBeast", r.URL.Query().Get("forHandle"))
		writeJSON(w, http.StatusOK, `{
			"kind": "youtube#channelListResponse",
			"items": [{
				"id": "UCX6OQ3DkcsbYNE6H8uQQuVA",
				"contentDetails": {"relatedPlaylists": {"likes": "", "uploads": "UUX6OQ3DkcsbYNE6H8uQQuVA"}}
			}]
		}`)
	}

	channel, err := api.client(t).GetChannelByHandle(context.Background(), "@MrBeast")
	require.NoError(t, err)
	require.Equal(t, "UCX6OQ3DkcsbYNE6H8uQQuVA", channel.ID)
	require.Equal(t, "MrBeast", channel.Handle)
	require.Equal(t, "UUX6OQ3DkcsbYNE6H8uQQuVA", channel.UploadsPlaylist)
}

func TestGetChannelByHandle_NotFound(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "no items", body: `{"kind":"youtube#channelListResponse","pageInfo":{"totalResults":0,"resultsPerPage":5}}`},
		{name: "empty items", body: `{"items":[]}`},
		{name: "no uploads playlist", body: `{"items":[{"id":"UC1","contentDetails":{"relatedPlaylists":{}}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t)
			api.channels = func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, tt.body)
			}

			channel, err := api.client(t).GetChannelByHandle(context.Background(), "ghost")
			require.Nil(t, channel)
			require.True(t, errors.Is(err, apperror.ErrNotFound))

			var nfErr *apperror.NotFoundError
			require.True(t, errors.As(err, &nfErr))
			require.Equal(t, "ghost", nfErr.Handle)
		})
	}
}

func TestGetChannelByHandle_Upstream(t *testing.T) {
	api := newFakeAPI(t)
	api.channels = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, apiError(403, "quotaExceeded"))
	}

	_, err := api.client(t).GetChannelByHandle(context.Background(), "chan")
	require.True(t, errors.Is(err, apperror.ErrUpstream))
	require.False(t, errors.Is(err, apperror.ErrNotFound))

	var upErr *apperror.UpstreamError
	require.True(t, errors.As(err, &upErr))
	require.Equal(t, "channels", upErr.Stage)
	require.Equal(t, "chan", upErr.Resource)
	require.Equal(t, http.StatusForbidden, upErr.Status)
}

func TestGetPlaylistVideoIDs(t *testing.T) {
	api := newFakeAPI(t)
	api.playlistItems = func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "contentDetails", q.Get("part"))
		assert.Equal(t, "UUchan", q.Get("playlistId"))

		switch q.Get("pageToken") {
		case "":
			assert.False(t, q.Has("pageToken"))
			assert.Equal(t, "50", q.Get("maxResults"))
			writeJSON(w, http.StatusOK, `{
				"nextPageToken": "CDIQAA",
				"pageInfo": {"totalResults": 3, "resultsPerPage": 50},
				"items": [
					{"contentDetails": {"videoId": "v1"}},
					{"contentDetails": {}},
					{"snippet": {"title": "no details"}},
					{"contentDetails": {"videoId": "v2"}}
				]
			}`)
		case "CDIQAA":
			assert.Equal(t, "20", q.Get("maxResults"))
			writeJSON(w, http.StatusOK, `{"items": [{"contentDetails": {"videoId": "v3"}}]}`)
		default:
			writeJSON(w, http.StatusBadRequest, apiError(400, "invalidPageToken"))
		}
	}
	c := api.client(t)

	page, err := c.GetPlaylistVideoIDs(context.Background(), &dto.YouTubePlaylistRequest{PlaylistID: "UUchan"})
	require.NoError(t, err)
	require.Equal(t, []string{"v1", "v2"}, page.VideoIDs)
	require.Equal(t, "CDIQAA", page.NextPageToken)
	require.Equal(t, int64(3), page.PageInfo.TotalResults)

	page, err = c.GetPlaylistVideoIDs(context.Background(), &dto.YouTubePlaylistRequest{
		PlaylistID: "UUchan",
		MaxResults: 20,
		PageToken:  "CDIQAA",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"v3"}, page.VideoIDs)
	require.Empty(t, page.NextPageToken)

	_, err = c.GetPlaylistVideoIDs(context.Background(), &dto.YouTubePlaylistRequest{PlaylistID: "UUchan", PageToken: "bogus"})
	var upErr *apperror.UpstreamError
	require.True(t, errors.As(err, &upErr))
	require.Equal(t, "playlistItems", upErr.Stage)
	require.Equal(t, http.StatusBadRequest, upErr.Status)
}

func TestGetVideosByIDs(t *testing.T) {
	api := newFakeAPI(t)
	api.videos = func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "snippet,contentDetails,statistics", q.Get("part"))
		assert.Equal(t, "full,hidden,partial,junk", q.Get("id"))
		writeJSON(w, http.StatusOK, `{
			"items": [
				{
					"id": "full",
					"snippet": {"title": "Tom & Jerry", "publishedAt": "2024-05-01T12:00:00Z"},
					"contentDetails": {"duration": "PT10M5S"},
					"statistics": {"viewCount": "1000", "likeCount": "0", "favoriteCount": "0", "commentCount": "7"}
				},
				{
					"id": "hidden",
					"snippet": {"title": "No stats", "publishedAt": "2024-05-02T12:00:00Z"},
					"contentDetails": {"duration": "PT1M"}
				},
				{
					"id": "partial",
					"snippet": {"title": "Likes hidden", "publishedAt": "2024-05-03T12:00:00Z"},
					"contentDetails": {"duration": "PT2M"},
					"statistics": {"viewCount": "55", "commentCount": "3"}
				},
				{
					"id": "junk",
					"snippet": {"title": "Bad count"},
					"statistics": {"viewCount": "lots"}
				},
				{"snippet": {"title": "missing id"}}
			]
		}`)
	}

	records, err := api.client(t).GetVideosByIDs(context.Background(), []string{"full", "hidden", "partial", "junk"})
	require.NoError(t, err)
	require.Len(t, records, 4)

	full := records[0]
	assert.Equal(t, "full", full.VideoID)
	assert.Equal(t, "Tom & Jerry", full.Title)
	assert.Equal(t, "2024-05-01T12:00:00Z", full.PublishedAt)
	assert.Equal(t, "PT10M5S", full.Duration)
	require.NotNil(t, full.ViewCount)
	require.NotNil(t, full.LikeCount)
	assert.Equal(t, uint64(1000), *full.ViewCount)
	assert.Equal(t, uint64(0), *full.LikeCount)
	assert.Equal(t, uint64(7), *full.CommentCount)

	hidden := records[1]
	assert.Nil(t, hidden.ViewCount)
	assert.Nil(t, hidden.LikeCount)
	assert.Nil(t, hidden.CommentCount)

	partial := records[2]
	require.NotNil(t, partial.ViewCount)
	assert.Equal(t, uint64(55), *partial.ViewCount)
	assert.Nil(t, partial.LikeCount)
	assert.Equal(t, uint64(3), *partial.CommentCount)

	junk := records[3]
	assert.Nil(t, junk.ViewCount)
	assert.Empty(t, junk.Duration)
}

func TestGetVideosByIDs_NoRequest(t *testing.T) {
	api := newFakeAPI(t)
	api.videos = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"items":[]}`)
	}
	c := api.client(t)

	records, err := c.GetVideosByIDs(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, records)
	require.Empty(t, records)

	tooMany := make([]string, MaxIDsPerRequest+1)
	for i := range tooMany {
		tooMany[i] = fmt.Sprintf("id%d", i)
	}
	_, err = c.GetVideosByIDs(context.Background(), tooMany)
	require.True(t, errors.Is(err, apperror.ErrConfig))

	require.Equal(t, int32(0), api.requests.Load())
}

func TestGetVideosByIDs_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantErr    string
	}{
		{name: "server error", status: 500, body: apiError(500, "backendError"), wantStatus: 500},
		{name: "bad request", status: 400, body: apiError(400, "badRequest"), wantStatus: 400},
		{name: "truncated body", status: 200, body: `{"items": [`, wantStatus: 200, wantErr: "decode response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t)
			api.videos = func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}

			records, err := api.client(t).GetVideosByIDs(context.Background(), []string{"a", "b", "c"})
			require.Nil(t, records)
			require.True(t, errors.Is(err, apperror.ErrUpstream))

			var upErr *apperror.UpstreamError
			require.True(t, errors.As(err, &upErr))
			require.Equal(t, "videos", upErr.Stage)
			require.Equal(t, "a..c (3 ids)", upErr.Resource)
			require.Equal(t, tt.wantStatus, upErr.Status)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestRequestTimeout(t *testing.T) {
	api := newFakeAPI(t)
	api.videos = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
		writeJSON(w, http.StatusOK, `{"items":[]}`)
	}

	c, err := NewYouTubeClient(context.Background(), &Config{
		HTTPClient:     api.Server.Client(),
		Endpoint:       api.URL + "/",
		RequestTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = c.GetVideosByIDs(context.Background(), []string{"slow"})
	var upErr *apperror.UpstreamError
	require.True(t, errors.As(err, &upErr))
	require.Equal(t, 0, upErr.Status)
}

func TestNewYouTubeClient_APIKey(t *testing.T) {
	api := newFakeAPI(t)
	var key atomic.Value
	api.videos = func(w http.ResponseWriter, r *http.Request) {
		key.Store(r.URL.Query().Get("key"))
		writeJSON(w, http.StatusOK, `{"items":[{"id":"a","snippet":{"title":"A"}}]}`)
	}

	c, err := NewYouTubeClient(context.Background(), &Config{APIKey: "MOCK_KEY1234", Endpoint: api.URL + "/"})
	require.NoError(t, err)

	records, err := c.GetVideosByIDs(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "MOCK_KEY1234", key.Load())
}

func TestNewYouTubeClient_NoCredentials(t *testing.T) {
	_, err := NewYouTubeClient(context.Background(), &Config{})
	require.True(t, errors.Is(err, apperror.ErrConfig))

	// a lone access token is not enough for OAuth mode
	_, err = NewYouTubeClient(context.Background(), &Config{AccessToken: "only-access"})
	require.True(t, errors.Is(err, apperror.ErrConfig))
}

// TestLiveAPI runs against the real API when a key and handle are exported.
func TestLiveAPI(t *testing.T) {
	key := os.Getenv("YOUTUBE_API_KEY")
	handle := os.Getenv("CHANNEL_HANDLE")
	if key == "" || handle == "" {
		t.Skip("YOUTUBE_API_KEY and CHANNEL_HANDLE not set")
	}

	c, err := NewYouTubeClient(context.Background(), &Config{APIKey: key, RequestTimeout: 30 * time.Second})
	require.NoError(t, err)

	channel, err := c.GetChannelByHandle(context.Background(), handle)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(channel.UploadsPlaylist, "UU"))

	page, err := c.GetPlaylistVideoIDs(context.Background(), &dto.YouTubePlaylistRequest{PlaylistID: channel.UploadsPlaylist, MaxResults: 5})
	require.NoError(t, err)
	if len(page.VideoIDs) == 0 {
		return
	}

	records, err := c.GetVideosByIDs(context.Background(), page.VideoIDs)
	require.NoError(t, err)
	require.NotEmpty(t, records)
}
