package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"yt-elt/domain/apperror"
	"yt-elt/domain/dto"
	"yt-elt/domain/model"
	"yt-elt/infrastructure/logger"

	"github.com/google/go-querystring/query"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"
	"google.golang.org/api/youtube/v3"
)

const (
	// MaxResultsPerPage is the largest page playlistItems.list will return.
	MaxResultsPerPage = 50
	// MaxIDsPerRequest is the largest id list videos.list accepts.
	MaxIDsPerRequest = 50
)

// Client represents YouTube API client
type Client struct {
	service    *youtube.Service
	httpClient *http.Client
	basePath   string
}

// Config represents YouTube API configuration
type Config struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURL  string `json:"redirect_url"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	APIKey       string `json:"api_key"`
	// Endpoint overrides the API base URL, mostly for tests.
	Endpoint       string        `json:"endpoint"`
	RequestTimeout time.Duration `json:"request_timeout"`
	// HTTPClient replaces credential handling entirely when set.
	HTTPClient *http.Client `json:"-"`
}

// NewYouTubeClient creates a new YouTube API client.
// OAuth mode is used when both tokens are present, API key mode otherwise.
func NewYouTubeClient(ctx context.Context, config *Config) (*Client, error) {
	httpClient, err := newHTTPClient(ctx, config)
	if err != nil {
		return nil, err
	}
	if config.RequestTimeout > 0 {
		withTimeout := *httpClient
		withTimeout.Timeout = config.RequestTimeout
		httpClient = &withTimeout
	}

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if config.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(config.Endpoint))
	}
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	return &Client{
		service:    service,
		httpClient: httpClient,
		basePath:   service.BasePath,
	}, nil
}

func newHTTPClient(ctx context.Context, config *Config) (*http.Client, error) {
	if config.HTTPClient != nil {
		return config.HTTPClient, nil
	}

	if config.AccessToken != "" && config.RefreshToken != "" {
		oauth2Config := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       []string{youtube.YoutubeReadonlyScope},
			Endpoint:     google.Endpoint,
		}
		token := &oauth2.Token{
			AccessToken:  config.AccessToken,
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
			Expiry:       time.Now().Add(-1 * time.Minute), // Force refresh on first use
		}
		return oauth2Config.Client(ctx, token), nil
	}

	if config.APIKey == "" {
		return nil, &apperror.ConfigError{Option: "youtube.apiKey", Reason: "required when OAuth tokens are not configured"}
	}
	httpClient, _, err := htransport.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube transport with API key: %w", err)
	}
	return httpClient, nil
}

// GetChannelByHandle resolves a handle to the channel and its uploads playlist
func (c *Client) GetChannelByHandle(ctx context.Context, handle string) (*model.YouTubeChannel, error) {
	handle = strings.TrimPrefix(handle, "@")

	response, err := c.service.Channels.List([]string{"contentDetails"}).
		ForHandle(handle).
		Context(ctx).
		Do()
	if err != nil {
		return nil, upstreamError("channels", handle, err)
	}

	if len(response.Items) == 0 {
		return nil, &apperror.NotFoundError{Handle: handle}
	}

	channel := response.Items[0]
	if channel.ContentDetails == nil || channel.ContentDetails.RelatedPlaylists == nil ||
		channel.ContentDetails.RelatedPlaylists.Uploads == "" {
		return nil, &apperror.NotFoundError{Handle: handle}
	}

	return &model.YouTubeChannel{
		ID:              channel.Id,
		Handle:          handle,
		UploadsPlaylist: channel.ContentDetails.RelatedPlaylists.Uploads,
	}, nil
}

// GetPlaylistVideoIDs fetches a single page of a playlist.
// Items without a video id are skipped.
func (c *Client) GetPlaylistVideoIDs(ctx context.Context, req *dto.YouTubePlaylistRequest) (*dto.YouTubePlaylistPage, error) {
	call := c.service.PlaylistItems.List([]string{"contentDetails"}).
		PlaylistId(req.PlaylistID).
		Context(ctx)

	if req.MaxResults > 0 {
		call = call.MaxResults(req.MaxResults)
	} else {
		call = call.MaxResults(MaxResultsPerPage)
	}
	if req.PageToken != "" {
		call = call.PageToken(req.PageToken)
	}

	response, err := call.Do()
	if err != nil {
		return nil, upstreamError("playlistItems", req.PlaylistID, err)
	}

	page := &dto.YouTubePlaylistPage{
		VideoIDs:      make([]string, 0, len(response.Items)),
		NextPageToken: response.NextPageToken,
	}
	for _, item := range response.Items {
		if item.ContentDetails == nil || item.ContentDetails.VideoId == "" {
			continue
		}
		page.VideoIDs = append(page.VideoIDs, item.ContentDetails.VideoId)
	}
	if response.PageInfo != nil {
		page.PageInfo = dto.PageInfo{
			TotalResults:   response.PageInfo.TotalResults,
			ResultsPerPage: response.PageInfo.ResultsPerPage,
		}
	}
	return page, nil
}

// videosListParams are the query parameters of videos.list
type videosListParams struct {
	Part        string `url:"part"`
	ID          string `url:"id"`
	Alt         string `url:"alt"`
	PrettyPrint bool   `url:"prettyPrint"`
}

// videoListResponse mirrors videos.list but keeps statistics as optional strings,
// since the typed client cannot tell a hidden count from zero.
type videoListResponse struct {
	Items []videoItem `json:"items"`
}

type videoItem struct {
	ID      string `json:"id"`
	Snippet *struct {
		Title       string `json:"title"`
		PublishedAt string `json:"publishedAt"`
	} `json:"snippet"`
	ContentDetails *struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
	Statistics *struct {
		ViewCount    *string `json:"viewCount"`
		LikeCount    *string `json:"likeCount"`
		CommentCount *string `json:"commentCount"`
	} `json:"statistics"`
}

// GetVideosByIDs retrieves snippet, content details and statistics for one batch of ids
func (c *Client) GetVideosByIDs(ctx context.Context, videoIDs []string) ([]model.VideoRecord, error) {
	if len(videoIDs) == 0 {
		return []model.VideoRecord{}, nil
	}
	if len(videoIDs) > MaxIDsPerRequest {
		return nil, &apperror.ConfigError{
			Option: "batchSize",
			Reason: fmt.Sprintf("%d ids exceeds the per-request maximum of %d", len(videoIDs), MaxIDsPerRequest),
		}
	}

	resource := fmt.Sprintf("%s..%s (%d ids)", videoIDs[0], videoIDs[len(videoIDs)-1], len(videoIDs))
	params, err := query.Values(videosListParams{
		Part:        "snippet,contentDetails,statistics",
		ID:          strings.Join(videoIDs, ","),
		Alt:         "json",
		PrettyPrint: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode videos request: %w", err)
	}

	urls := googleapi.ResolveRelative(c.basePath, "youtube/v3/videos") + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urls, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build videos request: %w", err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, upstreamError("videos", resource, err)
	}
	defer googleapi.CloseBody(res)
	if err := googleapi.CheckResponse(res); err != nil {
		return nil, upstreamError("videos", resource, err)
	}

	var response videoListResponse
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, &apperror.UpstreamError{
			Stage:    "videos",
			Resource: resource,
			Status:   res.StatusCode,
			Err:      fmt.Errorf("decode response: %w", err),
		}
	}

	records := make([]model.VideoRecord, 0, len(response.Items))
	for _, item := range response.Items {
		if item.ID == "" {
			continue
		}
		records = append(records, convertToVideoRecord(item))
	}
	return records, nil
}

// convertToVideoRecord converts a videos.list item to our model
func convertToVideoRecord(item videoItem) model.VideoRecord {
	record := model.VideoRecord{VideoID: item.ID}
	if item.Snippet != nil {
		record.Title = item.Snippet.Title
		record.PublishedAt = item.Snippet.PublishedAt
	}
	if item.ContentDetails != nil {
		record.Duration = item.ContentDetails.Duration
	}
	if item.Statistics != nil {
		record.ViewCount = parseCount(item.ID, "viewCount", item.Statistics.ViewCount)
		record.LikeCount = parseCount(item.ID, "likeCount", item.Statistics.LikeCount)
		record.CommentCount = parseCount(item.ID, "commentCount", item.Statistics.CommentCount)
	}
	return record
}

func parseCount(videoID, field string, raw *string) *uint64 {
	if raw == nil {
		return nil
	}
	n, err := strconv.ParseUint(*raw, 10, 64)
	if err != nil {
		logger.GetLogger().WithFields(map[string]interface{}{
			"videoId": videoID,
			"field":   field,
			"value":   *raw,
		}).Warn("Unparseable statistic treated as unknown")
		return nil
	}
	return &n
}

func upstreamError(stage, resource string, err error) error {
	upErr := &apperror.UpstreamError{Stage: stage, Resource: resource, Err: err}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		upErr.Status = apiErr.Code
	}
	return upErr
}
