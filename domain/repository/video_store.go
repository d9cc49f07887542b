package repository

import (
	"context"

	"yt-elt/domain/model"
)

// QualityReport holds the figures a data-quality check is evaluated against
type QualityReport struct {
	TotalRows      int64
	MatchedRows    int64
	EmptyTitleRows int64
}

// IVideoStore persists extracted records into a SQL database
type IVideoStore interface {
	EnsureSchema(ctx context.Context) error
	// UpsertVideos writes all records in a single transaction, stamping them with runID,
	// and returns the number written.
	UpsertVideos(ctx context.Context, runID string, records []model.VideoRecord) (int, error)
	// Quality counts rows overall, rows among videoIDs, and rows with an empty title.
	Quality(ctx context.Context, videoIDs []string) (*QualityReport, error)
}
