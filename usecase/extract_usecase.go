package usecase

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"yt-elt/domain/apperror"
	"yt-elt/domain/dto"
	"yt-elt/domain/model"
	"yt-elt/domain/repository"
	"yt-elt/infrastructure/filejson"
	"yt-elt/infrastructure/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxPageSize and MaxBatchSize are the Data API's per-request ceilings.
	MaxPageSize  = 50
	MaxBatchSize = 50

	DefaultMaxPages = 1000
)

var ErrDataQuality = errors.New("data quality check failed")

// ExtractOptions tunes a run. Zero sizes fall back to the API maximum.
type ExtractOptions struct {
	PageSize  int
	BatchSize int
	// MaxPages bounds pagination; 0 disables the bound.
	MaxPages    int
	Concurrency int

	OutputPathTemplate string
	PlaylistCacheTTL   time.Duration
}

// Normalize clamps sizes into the range the API accepts.
func (o ExtractOptions) Normalize() ExtractOptions {
	o.PageSize = clampSize("pageSize", o.PageSize, MaxPageSize)
	o.BatchSize = clampSize("batchSize", o.BatchSize, MaxBatchSize)
	if o.MaxPages < 0 {
		o.MaxPages = DefaultMaxPages
	}
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.OutputPathTemplate == "" {
		o.OutputPathTemplate = "./data/youtube_data_{date}.json"
	}
	if o.PlaylistCacheTTL <= 0 {
		o.PlaylistCacheTTL = 24 * time.Hour
	}
	return o
}

func clampSize(name string, v, limit int) int {
	if v <= 0 {
		return limit
	}
	if v > limit {
		logger.GetLogger().
			WithField(name, v).
			WithField("max", limit).
			Warn("Size above API maximum, clamping")
		return limit
	}
	return v
}

// IExtractUseCase is the channel extraction pipeline: resolve, paginate, fetch, write.
type IExtractUseCase interface {
	ResolvePlaylist(ctx context.Context, handle string) (string, error)
	ListVideoIDs(ctx context.Context, playlistID string, pageSize int) ([]string, error)
	FetchDetails(ctx context.Context, videoIDs []string, batchSize int) ([]model.VideoRecord, error)
	Run(ctx context.Context, handle string) (*dto.RunResult, error)
}

type ExtractUseCase struct {
	youtubeRepo repository.IYouTube
	cache       repository.IPlaylistCache // optional
	store       repository.IVideoStore   // optional
	opts        ExtractOptions

	now      func() time.Time
	newRunID func() string
}

var _ IExtractUseCase = (*ExtractUseCase)(nil)

func NewExtractUseCase(youtubeRepo repository.IYouTube, opts ExtractOptions) *ExtractUseCase {
	return &ExtractUseCase{
		youtubeRepo: youtubeRepo,
		opts:        opts.Normalize(),
		now:         time.Now,
		newRunID:    uuid.NewString,
	}
}

// WithCache enables the handle -> playlist cache (fluent)
func (u *ExtractUseCase) WithCache(cache repository.IPlaylistCache) *ExtractUseCase {
	u.cache = cache
	return u
}

// WithStore enables the database load and quality steps (fluent)
func (u *ExtractUseCase) WithStore(store repository.IVideoStore) *ExtractUseCase {
	u.store = store
	return u
}

// ResolvePlaylist maps a channel handle to its uploads playlist id.
func (u *ExtractUseCase) ResolvePlaylist(ctx context.Context, handle string) (string, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return "", &apperror.ConfigError{Option: "extract.channelHandle", Reason: "must not be empty"}
	}

	if u.cache != nil {
		id, ok, err := u.cache.GetPlaylistID(ctx, handle)
		switch {
		case err != nil:
			logger.GetLogger().WithField("error", err).Warn("Playlist cache lookup failed, calling API")
		case ok:
			logger.GetLogger().WithField("handle", handle).WithField("playlist_id", id).Debug("Playlist cache hit")
			return id, nil
		}
	}

	channel, err := u.youtubeRepo.GetChannelByHandle(ctx, handle)
	if err != nil {
		return "", err
	}

	if u.cache != nil {
		if err := u.cache.SetPlaylistID(ctx, handle, channel.UploadsPlaylist, u.opts.PlaylistCacheTTL); err != nil {
			logger.GetLogger().WithField("error", err).Warn("Playlist cache store failed")
		}
	}
	logger.GetLogger().
		WithField("handle", handle).
		WithField("channel_id", channel.ID).
		WithField("playlist_id", channel.UploadsPlaylist).
		Info("Uploads playlist resolved")
	return channel.UploadsPlaylist, nil
}

// ListVideoIDs walks the playlist page by page until the API stops returning a cursor.
// Nothing is returned on failure, including when MaxPages is exceeded.
func (u *ExtractUseCase) ListVideoIDs(ctx context.Context, playlistID string, pageSize int) ([]string, error) {
	pageSize = clampSize("pageSize", pageSize, MaxPageSize)

	ids := make([]string, 0, pageSize)
	pageToken := ""
	pages := 0
	for {
		if u.opts.MaxPages > 0 && pages >= u.opts.MaxPages {
			return nil, &apperror.UpstreamError{
				Stage:    "playlistItems",
				Resource: playlistID,
				Err:      fmt.Errorf("%w: next page token still present after %d pages", apperror.ErrPageLimit, pages),
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, &apperror.UpstreamError{Stage: "playlistItems", Resource: playlistID, Err: err}
		}

		page, err := u.youtubeRepo.GetPlaylistVideoIDs(ctx, &dto.YouTubePlaylistRequest{
			PlaylistID: playlistID,
			MaxResults: int64(pageSize),
			PageToken:  pageToken,
		})
		if err != nil {
			return nil, err
		}
		pages++
		ids = append(ids, page.VideoIDs...)

		logger.GetLogger().
			WithField("page", pages).
			WithField("items", len(page.VideoIDs)).
			WithField("total", len(ids)).
			Debug("Playlist page fetched")

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	logger.GetLogger().
		WithField("playlist_id", playlistID).
		WithField("pages", pages).
		WithField("video_ids", len(ids)).
		Info("Playlist enumerated")
	return ids, nil
}

// FetchDetails requests details in contiguous batches and returns records in input order.
// With Concurrency > 1 batches run in parallel; the first failing batch fails the call.
func (u *ExtractUseCase) FetchDetails(ctx context.Context, videoIDs []string, batchSize int) ([]model.VideoRecord, error) {
	batchSize = clampSize("batchSize", batchSize, MaxBatchSize)
	if len(videoIDs) == 0 {
		return []model.VideoRecord{}, nil
	}

	batches := chunk(videoIDs, batchSize)
	results := make([][]model.VideoRecord, len(batches))

	if u.opts.Concurrency <= 1 || len(batches) == 1 {
		for i, batch := range batches {
			records, err := u.fetchBatch(ctx, batch)
			if err != nil {
				return nil, err
			}
			results[i] = records
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(u.opts.Concurrency)
		for i, batch := range batches {
			g.Go(func() error {
				records, err := u.fetchBatch(gctx, batch)
				if err != nil {
					return err
				}
				results[i] = records
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	out := make([]model.VideoRecord, 0, len(videoIDs))
	for _, records := range results {
		out = append(out, records...)
	}

	logger.GetLogger().
		WithField("requested", len(videoIDs)).
		WithField("batches", len(batches)).
		WithField("records", len(out)).
		Info("Video details fetched")
	return out, nil
}

func (u *ExtractUseCase) fetchBatch(ctx context.Context, ids []string) ([]model.VideoRecord, error) {
	records, err := u.youtubeRepo.GetVideosByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return orderByRequest(ids, records), nil
}

// orderByRequest puts each returned record at the first requested position of its id.
// Every record is emitted exactly once; ids the API did not return are left out and
// records matching no requested id are appended in response order.
func orderByRequest(ids []string, records []model.VideoRecord) []model.VideoRecord {
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, ok := pos[id]; !ok {
			pos[id] = i
		}
	}
	rank := func(r model.VideoRecord) int {
		if i, ok := pos[r.VideoID]; ok {
			return i
		}
		return len(ids)
	}

	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b model.VideoRecord) int {
		return cmp.Compare(rank(a), rank(b))
	})
	return out
}

func chunk(ids []string, size int) [][]string {
	batches := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}

// Run executes the whole pipeline for one channel and writes the dated output file.
// When a store is configured the records are loaded and quality-checked afterwards;
// a store failure never prevents the file from being written.
func (u *ExtractUseCase) Run(ctx context.Context, handle string) (*dto.RunResult, error) {
	runID := u.newRunID()
	started := u.now()
	log := logger.GetLogger().WithField("run_id", runID).WithField("channel", handle)
	log.Info("Extraction started")

	playlistID, err := u.ResolvePlaylist(ctx, handle)
	if err != nil {
		return nil, err
	}
	videoIDs, err := u.ListVideoIDs(ctx, playlistID, u.opts.PageSize)
	if err != nil {
		return nil, err
	}
	records, err := u.FetchDetails(ctx, videoIDs, u.opts.BatchSize)
	if err != nil {
		return nil, err
	}

	outputPath := filejson.ResolvePath(u.opts.OutputPathTemplate, started)
	if err := filejson.Write(records, outputPath); err != nil {
		return nil, err
	}

	result := &dto.RunResult{
		RunID:         runID,
		ChannelHandle: handle,
		PlaylistID:    playlistID,
		VideoIDs:      videoIDs,
		OutputPath:    outputPath,
		Records:       records,
	}

	if u.store != nil {
		loaded, err := u.load(ctx, runID, records)
		if err != nil {
			return nil, err
		}
		result.Loaded = loaded
	}

	log.WithField("video_ids", len(videoIDs)).
		WithField("records", len(records)).
		WithField("output", outputPath).
		WithField("loaded", result.Loaded).
		WithField("elapsed", time.Since(started).String()).
		Info("Extraction finished")
	return result, nil
}

func (u *ExtractUseCase) load(ctx context.Context, runID string, records []model.VideoRecord) (int, error) {
	if err := u.store.EnsureSchema(ctx); err != nil {
		return 0, fmt.Errorf("ensure schema: %w", err)
	}
	loaded, err := u.store.UpsertVideos(ctx, runID, records)
	if err != nil {
		return 0, fmt.Errorf("load videos: %w", err)
	}

	ids := distinctIDs(records)
	report, err := u.store.Quality(ctx, ids)
	if err != nil {
		return 0, err
	}
	if err := CheckQuality(report, len(ids)); err != nil {
		return 0, err
	}
	return loaded, nil
}

func distinctIDs(records []model.VideoRecord) []string {
	seen := make(map[string]struct{}, len(records))
	ids := make([]string, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.VideoID]; ok {
			continue
		}
		seen[r.VideoID] = struct{}{}
		ids = append(ids, r.VideoID)
	}
	return ids
}

// CheckQuality verifies that every loaded id is present and no row lacks a title.
func CheckQuality(report *repository.QualityReport, expected int) error {
	var failed []string
	if report.MatchedRows < int64(expected) {
		failed = append(failed, fmt.Sprintf("row count: %d of %d loaded videos present", report.MatchedRows, expected))
	}
	if report.EmptyTitleRows > 0 {
		failed = append(failed, fmt.Sprintf("title: %d rows with an empty title", report.EmptyTitleRows))
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w: %s", ErrDataQuality, strings.Join(failed, "; "))
	}
	logger.GetLogger().
		WithField("total_rows", report.TotalRows).
		WithField("matched_rows", report.MatchedRows).
		Info("Data quality checks passed")
	return nil
}
