package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overtimegame/server/internal/domain/deck"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	def, err := c.Definition(3)
	require.NoError(t, err)
	assert.True(t, def.Restorative())
	assert.Equal(t, "Take 1h to recover 3 energy.", def.Describe())

	all := c.All()
	require.NotEmpty(t, all)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID)
	}

	starter := c.StarterDeck()
	require.NoError(t, starter.Validate())
	cards, err := c.BuildDeck(starter)
	require.NoError(t, err)
	assert.Len(t, cards, starter.Size())
}

func TestUnknownCardFailsLoudly(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	_, err = c.Definition(999)
	assert.ErrorIs(t, err, ErrUnknownCard)

	_, err = c.BuildDeck(deck.PlayerDeck{PlayerDeckEntries: []deck.Entry{{CardID: 999, CardCount: 1}}})
	assert.ErrorIs(t, err, ErrUnknownCard)
}

func TestBuildDeckMakesDistinctInstances(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	cards, err := c.BuildDeck(deck.PlayerDeck{PlayerDeckEntries: []deck.Entry{{CardID: 1, CardCount: 3}}})
	require.NoError(t, err)
	require.Len(t, cards, 3)
	assert.NotEqual(t, cards[0].InstanceID, cards[1].InstanceID)
	assert.Same(t, cards[0].Def, cards[2].Def)
}

func TestStarterDeckIsACopy(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	d := c.StarterDeck()
	d.Unlock(11)
	fresh := c.StarterDeck()
	assert.False(t, fresh.IsUnlocked(11))
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	cases := map[string]string{
		"empty":     "cards: []",
		"duplicate": "cards:\n  - {id: 1, name: a}\n  - {id: 1, name: b}\n",
		"bad id":    "cards:\n  - {id: 0, name: a}\n",
		"bad deck":  "cards:\n  - {id: 1, name: a}\nstarter:\n  entries:\n    - {card_id: 2, count: 1}\n",
		"not yaml":  "cards: [",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			assert.Error(t, err)
		})
	}
}
