// internal/models/player_test.go
package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardViewHidesFaceDownCards(t *testing.T) {
	c := NewCard(SuitHeart, RankQueen)
	require.False(t, c.Visible, "cards start face-down")

	view := c.View()
	assert.Empty(t, view.Suite)
	assert.Empty(t, view.Value)
	assert.False(t, view.Visible)

	data, err := json.Marshal(view)
	require.NoError(t, err)
	assert.JSONEq(t, `{"visible":false}`, string(data), "hidden view must not leak identity")

	c.Visible = true
	view = c.View()
	assert.Equal(t, SuitHeart, view.Suite)
	assert.Equal(t, RankQueen, view.Value)
	assert.True(t, view.Visible)
}

func TestHandFindToggleDiscard(t *testing.T) {
	p := NewPlayer("A", make(Sink, 4))
	p.AddToHand(NewCard(SuitClub, RankAce))
	p.AddToHand(NewCard(SuitSpade, RankTen))

	require.NotNil(t, p.Find(SuitClub, RankAce))
	require.Nil(t, p.Find(SuitHeart, RankAce))

	toggled := p.ToggleVisibility(SuitClub, RankAce)
	require.NotNil(t, toggled)
	assert.True(t, toggled.Visible)
	toggled = p.ToggleVisibility(SuitClub, RankAce)
	require.NotNil(t, toggled)
	assert.False(t, toggled.Visible, "double toggle restores original visibility")

	assert.Nil(t, p.ToggleVisibility(SuitDiamond, RankTwo), "toggling an absent card is a no-op")

	discarded := p.Discard(SuitSpade, RankTen)
	require.NotNil(t, discarded)
	assert.Equal(t, SuitSpade, discarded.Suite)
	assert.Len(t, p.Hand, 1)
	assert.Nil(t, p.Discard(SuitSpade, RankTen), "discarding twice returns nothing")
}

func TestPublicViewProjectsHand(t *testing.T) {
	p := NewPlayer("A", make(Sink, 4))
	hidden := NewCard(SuitClub, RankKing)
	shown := NewCard(SuitHeart, RankThree)
	shown.Visible = true
	p.AddToHand(hidden)
	p.AddToHand(shown)

	view := p.PublicView()
	assert.Equal(t, p.ID.String(), view.ID)
	assert.Equal(t, "A", view.Name)
	require.Len(t, view.Hand, 2)
	assert.Empty(t, view.Hand[0].Suite, "face-down card stays concealed")
	assert.Equal(t, SuitHeart, view.Hand[1].Suite)
}

func TestSendNeverBlocks(t *testing.T) {
	p := NewPlayer("A", make(Sink, 1))
	assert.True(t, p.Send([]byte("one")))
	assert.False(t, p.Send([]byte("two")), "a full sink reports overflow instead of blocking")
}
