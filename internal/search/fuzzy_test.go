package search

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alexander-D-Karpov/streamplayer/pkg/types"
)

type memLister []types.ResourceInfo

func (m memLister) ListResources(context.Context) ([]types.ResourceInfo, error) {
	return m, nil
}

func (m memLister) SearchResources(_ context.Context, query string, limit int) ([]types.ResourceInfo, error) {
	var out []types.ResourceInfo
	for _, info := range m {
		if strings.Contains(strings.ToLower(info.Key), strings.ToLower(query)) {
			out = append(out, info)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func TestRank(t *testing.T) {
	t.Parallel()

	names := []string{"songs/outro.patch", "samples/kick.wav", "samples/kick2.wav", "roms/bios.bin"}
	got := Rank("kick.wav", names)
	require.NotEmpty(t, got)
	assert.Equal(t, "samples/kick.wav", got[0])
	assert.Contains(t, got, "samples/kick2.wav")
	assert.NotContains(t, got, "roms/bios.bin")

	assert.Empty(t, Rank("zzzzzz", names))
}

func TestFoldedMatch(t *testing.T) {
	t.Parallel()

	candidates := []string{"Kick.WAV", "kick2.wav", "snare1.wav", "Café.ogg"}

	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"kick.wav", "Kick.WAV", true},
		{"cafe.ogg", "Café.ogg", true},
		{"CAFÉ.OGG", "Café.ogg", true},
		{"snare.wav", "", false},
		{"snare2.wav", "", false},
		{"kick2.wav", "kick2.wav", true},
		{"kick.wa", "", false},
		{"hihat.wav", "", false},
	}
	for _, tt := range tests {
		got, ok := FoldedMatch(tt.name, candidates)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestEngineSearch(t *testing.T) {
	t.Parallel()

	store := memLister{
		{Key: "songs/intro.patch", Size: 10},
		{Key: "samples/kick.wav", Size: 20},
		{Key: "samples/Kick-Room.wav", Size: 30},
	}
	e := NewEngine(store)
	ctx := context.Background()

	all, err := e.Search(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	found, err := e.Search(ctx, "kick", 10)
	require.NoError(t, err)
	require.NotEmpty(t, found)
	assert.Equal(t, "samples/kick.wav", found[0].Key)

	keys := make([]string, len(found))
	for i, f := range found {
		keys[i] = f.Key
	}
	assert.Contains(t, keys, "samples/Kick-Room.wav")
	assert.NotContains(t, keys, "songs/intro.patch")

	limited, err := e.Search(ctx, "kick", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
