package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"yt-elt/domain/model"
	"yt-elt/domain/repository"
	"yt-elt/infrastructure/logger"

	"github.com/lib/pq"
)

const videoTableDDL = `CREATE TABLE IF NOT EXISTS yt_videos (
        video_id TEXT PRIMARY KEY,
        title TEXT NOT NULL,
        published_at TIMESTAMPTZ NULL,
        duration TEXT NULL,
        view_count BIGINT NULL,
        like_count BIGINT NULL,
        comment_count BIGINT NULL,
        loaded_at TIMESTAMPTZ NOT NULL
    )`

const upsertVideoQuery = `INSERT INTO yt_videos(video_id, title, published_at, duration, view_count, like_count, comment_count, run_id, loaded_at)
          VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
          ON CONFLICT (video_id) DO UPDATE SET title=EXCLUDED.title, published_at=EXCLUDED.published_at, duration=EXCLUDED.duration, view_count=EXCLUDED.view_count, like_count=EXCLUDED.like_count, comment_count=EXCLUDED.comment_count, run_id=EXCLUDED.run_id, loaded_at=EXCLUDED.loaded_at`

const qualityQuery = `SELECT COUNT(1),
        COUNT(1) FILTER (WHERE video_id = ANY($1)),
        COUNT(1) FILTER (WHERE COALESCE(TRIM(title), '') = '')
    FROM yt_videos`

// VideoRepository loads extracted records into PostgreSQL.
type VideoRepository struct{ db *sql.DB }

var _ repository.IVideoStore = (*VideoRepository)(nil)

func NewVideoRepository(db *sql.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

// EnsureSchema creates yt_videos if missing and adds columns introduced after the first release.
func (r *VideoRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, videoTableDDL); err != nil {
		return fmt.Errorf("create yt_videos table: %w", err)
	}

	checks := []struct {
		table  string
		column string
		ddl    string
	}{
		{"yt_videos", "run_id", "ALTER TABLE yt_videos ADD COLUMN run_id TEXT"},
	}
	for _, c := range checks {
		exists, err := columnExists(ctx, r.db, c.table, c.column)
		if err != nil {
			return err
		}
		if !exists {
			if _, err := r.db.ExecContext(ctx, c.ddl); err != nil {
				return fmt.Errorf("adding column %s.%s failed: %w", c.table, c.column, err)
			}
		}
	}

	if _, err := r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_yt_videos_published_at ON yt_videos(published_at)`); err != nil {
		logger.GetLogger().WithField("error", err).Warn("failed creating idx_yt_videos_published_at")
	}
	return nil
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	row := db.QueryRowContext(ctx, `SELECT 1 FROM information_schema.columns WHERE table_name=$1 AND column_name=$2`, table, column)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// UpsertVideos writes every record in one transaction; any failure rolls the whole load back.
func (r *VideoRepository) UpsertVideos(ctx context.Context, runID string, records []model.VideoRecord) (n int, err error) {
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

	stmt, err := tx.PrepareContext(ctx, upsertVideoQuery)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range records {
		v := &records[i]
		if _, err = stmt.ExecContext(ctx, v.VideoID, v.Title, nullString(v.PublishedAt), nullString(v.Duration),
			nullCount(v.ViewCount), nullCount(v.LikeCount), nullCount(v.CommentCount), runID, now); err != nil {
			return 0, fmt.Errorf("upsert video %s: %w", v.VideoID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return len(records), nil
}

func (r *VideoRepository) Quality(ctx context.Context, videoIDs []string) (*repository.QualityReport, error) {
	var report repository.QualityReport
	if err := r.db.QueryRowContext(ctx, qualityQuery, pq.Array(videoIDs)).
		Scan(&report.TotalRows, &report.MatchedRows, &report.EmptyTitleRows); err != nil {
		return nil, fmt.Errorf("quality query: %w", err)
	}
	return &report, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullCount(c *uint64) interface{} {
	if c == nil {
		return nil
	}
	return int64(*c)
}
