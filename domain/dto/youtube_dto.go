package dto

import "yt-elt/domain/model"

// YouTubePlaylistRequest represents one page request against a playlist
type YouTubePlaylistRequest struct {
	PlaylistID string `json:"playlist_id"`
	MaxResults int64  `json:"max_results,omitempty"`
	PageToken  string `json:"page_token,omitempty"`
}

// PageInfo represents pagination information
type PageInfo struct {
	TotalResults   int64 `json:"total_results"`
	ResultsPerPage int64 `json:"results_per_page"`
}

// YouTubePlaylistPage is one page of video ids from a playlist.
// An empty NextPageToken marks the last page.
type YouTubePlaylistPage struct {
	VideoIDs      []string `json:"video_ids"`
	NextPageToken string   `json:"next_page_token,omitempty"`
	PageInfo      PageInfo `json:"page_info"`
}

// RunResult summarises a completed extraction run
type RunResult struct {
	RunID         string   `json:"run_id"`
	ChannelHandle string   `json:"channel_handle"`
	PlaylistID    string   `json:"playlist_id"`
	VideoIDs      []string `json:"video_ids"`
	OutputPath    string   `json:"output_path"`
	Loaded        int      `json:"loaded"`

	Records []model.VideoRecord `json:"-"`
}
