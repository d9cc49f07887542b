package repository

import (
	"context"

	"yt-elt/domain/dto"
	"yt-elt/domain/model"
)

// IYouTube defines the read-only YouTube Data API calls the pipeline depends on
type IYouTube interface {
	// GetChannelByHandle looks up a channel's content details by handle.
	// It returns apperror.ErrNotFound when the response carries no channel.
	GetChannelByHandle(ctx context.Context, handle string) (*model.YouTubeChannel, error)

	// GetPlaylistVideoIDs fetches one page of a playlist.
	GetPlaylistVideoIDs(ctx context.Context, req *dto.YouTubePlaylistRequest) (*dto.YouTubePlaylistPage, error)

	// GetVideosByIDs fetches details for up to MaxIDsPerRequest ids in one request.
	GetVideosByIDs(ctx context.Context, videoIDs []string) ([]model.VideoRecord, error)
}
