package social

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tavern-minds/internal/agents"
	"github.com/talgya/tavern-minds/internal/entropy"
	"github.com/talgya/tavern-minds/internal/phi"
)

func TestSpreadArtifact(t *testing.T) {
	e := NewEngine(entropy.NewSource(2))
	song := e.CreateArtifact(ArtifactSong, "The Ballad of the Empty Keg", 1, 5)
	assert.Equal(t, []agents.AgentID{1}, song.KnownBy)
	assert.InDelta(t, phi.Matter, song.Sentiment[1], 1e-9)

	got, err := e.SpreadCulturalArtifact(song.ID, 1, 3, 0.2, 6)
	require.NoError(t, err)
	assert.Equal(t, []agents.AgentID{1, 3}, got.KnownBy)
	assert.Empty(t, got.Variations, "a closed mind repeats it faithfully")
	assert.Greater(t, got.Sentiment[3], 0.0)

	got, err = e.SpreadCulturalArtifact(song.ID, 3, 2, 0.9, 7)
	require.NoError(t, err)
	assert.Equal(t, []agents.AgentID{1, 2, 3}, got.KnownBy)
	require.Len(t, got.Variations, 1)
	assert.Equal(t, agents.AgentID(2), got.Variations[0].By)
	assert.Contains(t, got.Latest(), song.Content)
	assert.NotEqual(t, song.Content, got.Latest())

	again, err := e.SpreadCulturalArtifact(song.ID, 1, 2, 0.9, 8)
	require.NoError(t, err)
	assert.Equal(t, got, again, "retelling to someone who knows it changes nothing")
}

func TestSpreadArtifactErrors(t *testing.T) {
	e := NewEngine(nil)
	_, err := e.SpreadCulturalArtifact(uuid.New(), 1, 2, 0.5, 1)
	assert.ErrorIs(t, err, ErrUnknownArtifact)
	_, err = e.Artifact(uuid.New())
	assert.ErrorIs(t, err, ErrUnknownArtifact)

	s := e.CreateArtifact(ArtifactSaying, "never trust a dry well", 1, 1)
	_, err = e.SpreadCulturalArtifact(s.ID, 2, 3, 0.5, 2)
	assert.Error(t, err)
	a, err := e.Artifact(s.ID)
	require.NoError(t, err)
	assert.Len(t, a.KnownBy, 1)
}

func TestKnownByNeverShrinks(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	e := NewEngine(entropy.NewSource(4))
	story := e.CreateArtifact(ArtifactStory, "how the fire started", 1, 1)
	prev := 1
	for tick := uint64(2); tick < 200; tick++ {
		cur, _ := e.Artifact(story.ID)
		from := cur.KnownBy[rng.Intn(len(cur.KnownBy))]
		to := agents.AgentID(rng.Intn(30) + 1)
		got, err := e.SpreadCulturalArtifact(story.ID, from, to, rng.Float64(), tick)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(got.KnownBy), prev)
		prev = len(got.KnownBy)
	}
}

func TestTraditions(t *testing.T) {
	e := NewEngine(nil)
	small := e.CreateArtifact(ArtifactSaying, "small", 1, 1)
	big := e.CreateArtifact(ArtifactTradition, "toast the founder", 2, 1)
	for to := agents.AgentID(3); to <= 6; to++ {
		_, err := e.SpreadCulturalArtifact(big.ID, 2, to, 0, 2)
		require.NoError(t, err)
	}
	_, err := e.SpreadCulturalArtifact(small.ID, 1, 2, 0, 2)
	require.NoError(t, err)

	tr := e.Traditions(3)
	require.Len(t, tr, 1)
	assert.Equal(t, big.ID, tr[0].ID)
	assert.Len(t, e.Traditions(1), 2)
	assert.Len(t, e.ArtifactsKnownBy(2), 2)

	k, ok := ParseArtifactKind("Song")
	assert.True(t, ok)
	assert.Equal(t, ArtifactSong, k)
	assert.Equal(t, "tradition", ArtifactTradition.String())
}
