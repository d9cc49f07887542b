package filejson

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"yt-elt/domain/apperror"
	"yt-elt/domain/model"
)

func count(v uint64) *uint64 { return &v }

func sampleRecords() []model.VideoRecord {
	return []model.VideoRecord{
		{
			VideoID:      "abc123",
			Title:        "Tom & Jerry <Remastered> ñandú 🎬",
			PublishedAt:  "2024-05-01T12:00:00Z",
			Duration:     "PT10M5S",
			ViewCount:    count(1000),
			LikeCount:    count(0),
			CommentCount: count(7),
		},
		{
			VideoID:     "hidden",
			Title:       "Stats hidden",
			PublishedAt: "2024-05-02T12:00:00Z",
			Duration:    "PT1M",
		},
	}
}

func TestResolvePath(t *testing.T) {
	date := time.Date(2025, time.March, 7, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "./data/youtube_data_2025-03-07.json", ResolvePath("./data/youtube_data_{date}.json", date))
	assert.Equal(t, "/out/fixed.json", ResolvePath("/out/fixed.json", date))
}

func TestWrite_Format(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "out.json")

	require.NoError(t, Write(sampleRecords(), path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	expected := `[
    {
        "video_id": "abc123",
        "title": "Tom & Jerry <Remastered> ñandú 🎬",
        "published_at": "2024-05-01T12:00:00Z",
        "duration": "PT10M5S",
        "view_count": 1000,
        "like_count": 0,
        "comment_count": 7
    },
    {
        "video_id": "hidden",
        "title": "Stats hidden",
        "published_at": "2024-05-02T12:00:00Z",
        "duration": "PT1M",
        "view_count": null,
        "like_count": null,
        "comment_count": null
    }
]
`
	require.Equal(t, expected, string(raw))

	var decoded []model.VideoRecord
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, sampleRecords(), decoded)
}

func TestWrite_SameInputSameBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")

	require.NoError(t, Write(sampleRecords(), path))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, Write(sampleRecords(), path))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	require.Equal(t, first, second)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
}

func TestWrite_OverwritesPreviousRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, Write(sampleRecords(), path))
	require.NoError(t, Write(sampleRecords()[:1], path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded []model.VideoRecord
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 1)
}

func TestWrite_EmptyIsArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, Write(nil, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "[]\n", string(raw))
}

func TestWrite_UnwritableDestination(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := Write(sampleRecords(), filepath.Join(blocker, "out.json"))
	require.Error(t, err)
	require.True(t, errors.Is(err, apperror.ErrIO))

	var ioErr *apperror.IOError
	require.True(t, errors.As(err, &ioErr))
	require.Equal(t, "mkdir", ioErr.Op)
}
