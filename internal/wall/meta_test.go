package wall_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/liquidev/rakugaki/internal/wall"
)

func TestWriteMetaIfAbsentWritesOnce(t *testing.T) {
	fs := afero.NewMemMapFs()
	meta := wall.Meta{WallID: "wall_test", ChunkSize: 168, MaxChunks: 100, MaxSessions: 10}

	require.NoError(t, wall.WriteMetaIfAbsent(fs, "db/walls/wall_test", meta))

	got, err := wall.ReadMeta(fs, "db/walls/wall_test")
	require.NoError(t, err)
	require.Equal(t, "wall_test", got.WallID)
	require.NotEmpty(t, got.CreatedAt)

	firstCreatedAt := got.CreatedAt
	meta.MaxChunks = 999
	require.NoError(t, wall.WriteMetaIfAbsent(fs, "db/walls/wall_test", meta))

	got2, err := wall.ReadMeta(fs, "db/walls/wall_test")
	require.NoError(t, err)
	require.Equal(t, 100, got2.MaxChunks, "meta.json must not be overwritten once created")
	require.Equal(t, firstCreatedAt, got2.CreatedAt)
}

func TestReadMetaErrorsWhenMissing(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := wall.ReadMeta(fs, "db/walls/nonexistent")
	require.Error(t, err)
}
