package model

// VideoRecord is one row of the extraction output.
// Statistic counts are nil when the platform hides them; they still serialize as null.
type VideoRecord struct {
	VideoID      string  `json:"video_id"`
	Title        string  `json:"title"`
	PublishedAt  string  `json:"published_at"`
	Duration     string  `json:"duration"`
	ViewCount    *uint64 `json:"view_count"`
	LikeCount    *uint64 `json:"like_count"`
	CommentCount *uint64 `json:"comment_count"`
}

// YouTubeChannel is the subset of channel data needed to enumerate uploads.
type YouTubeChannel struct {
	ID              string `json:"id"`
	Handle          string `json:"handle"`
	UploadsPlaylist string `json:"uploads_playlist"`
}
