package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"yt-elt/domain/model"
	"yt-elt/domain/repository"
)

const videoTableDDLMSSQL = `IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.yt_videos') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.yt_videos (
        video_id NVARCHAR(64) NOT NULL PRIMARY KEY,
        title NVARCHAR(MAX) NOT NULL,
        published_at DATETIMEOFFSET NULL,
        duration NVARCHAR(64) NULL,
        view_count BIGINT NULL,
        like_count BIGINT NULL,
        comment_count BIGINT NULL,
        loaded_at DATETIMEOFFSET NOT NULL
    );
END`

const upsertVideoQueryMSSQL = `MERGE dbo.yt_videos AS target
USING (SELECT @p1 AS video_id) AS src
ON (target.video_id = src.video_id)
WHEN MATCHED THEN UPDATE SET title=@p2, published_at=@p3, duration=@p4, view_count=@p5, like_count=@p6, comment_count=@p7, run_id=@p8, loaded_at=@p9
WHEN NOT MATCHED THEN INSERT (video_id, title, published_at, duration, view_count, like_count, comment_count, run_id, loaded_at)
VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8, @p9);`

const qualityQueryMSSQL = `SELECT COUNT(1),
    ISNULL(SUM(CASE WHEN video_id IN (SELECT value FROM STRING_SPLIT(@p1, ',')) THEN 1 ELSE 0 END), 0),
    ISNULL(SUM(CASE WHEN LTRIM(RTRIM(ISNULL(title, N''))) = N'' THEN 1 ELSE 0 END), 0)
FROM dbo.yt_videos`

// VideoRepositoryMSSQL implements IVideoStore on SQL Server
type VideoRepositoryMSSQL struct {
	db *sql.DB
}

var _ repository.IVideoStore = (*VideoRepositoryMSSQL)(nil)

func NewVideoRepositoryMSSQL(db *sql.DB) *VideoRepositoryMSSQL {
	return &VideoRepositoryMSSQL{db: db}
}

func (r *VideoRepositoryMSSQL) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, videoTableDDLMSSQL); err != nil {
		return fmt.Errorf("create yt_videos table (mssql): %w", err)
	}

	addIfMissing := func(table, column, ddl string) error {
		q := fmt.Sprintf(`IF COL_LENGTH('%s', '%s') IS NULL BEGIN %s END`, table, column, ddl)
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure column %s.%s: %w", table, column, err)
		}
		return nil
	}
	return addIfMissing("dbo.yt_videos", "run_id", "ALTER TABLE dbo.[yt_videos] ADD run_id NVARCHAR(64) NULL")
}

func (r *VideoRepositoryMSSQL) UpsertVideos(ctx context.Context, runID string, records []model.VideoRecord) (n int, err error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, upsertVideoQueryMSSQL)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range records {
		v := &records[i]
		if _, err = stmt.ExecContext(ctx, v.VideoID, v.Title, nullString(v.PublishedAt), nullString(v.Duration),
			nullCount(v.ViewCount), nullCount(v.LikeCount), nullCount(v.CommentCount), runID, now); err != nil {
			return 0, fmt.Errorf("merge video %s: %w", v.VideoID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return len(records), nil
}

// Quality passes the ids as one comma-joined parameter; video ids never contain commas.
func (r *VideoRepositoryMSSQL) Quality(ctx context.Context, videoIDs []string) (*repository.QualityReport, error) {
	var report repository.QualityReport
	if err := r.db.QueryRowContext(ctx, qualityQueryMSSQL, strings.Join(videoIDs, ",")).
		Scan(&report.TotalRows, &report.MatchedRows, &report.EmptyTitleRows); err != nil {
		return nil, fmt.Errorf("quality query (mssql): %w", err)
	}
	return &report, nil
}
