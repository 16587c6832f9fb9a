// internal/game/deck.go
package game

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/Ahlecss/Gobeluno-server/internal/models"
)

const (
	// UniverseSize is the number of cards in play for the lifetime of a game.
	UniverseSize = 100

	// HandSize is the number of cards dealt to each player.
	HandSize = 7

	// MinPlayers is the smallest table that can start a game.
	MinPlayers = 2

	// MaxSeats is the largest table the universe can deal: 7P+1 <= 100.
	MaxSeats = (UniverseSize - 1) / HandSize

	wildCopies = 4
)

// newRand returns a time-seeded source. Sessions own one and only touch it under their lock.
func newRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// NewUniverse builds all 100 cards in a fixed order with sequential ids:
// per color two of each digit plus skip, reverse and +2, then four wilds and four +4s.
func NewUniverse() []*models.Card {
	values := make([]models.Value, 0, 23)
	for copies := 0; copies < 2; copies++ {
		for n := 0; n <= 9; n++ {
			values = append(values, models.DigitValue(n))
		}
	}
	values = append(values, models.ValueSkip, models.ValueReverse, models.ValueDrawTwo)

	cards := make([]*models.Card, 0, UniverseSize)
	for _, color := range models.SuitColors {
		for _, v := range values {
			cards = append(cards, &models.Card{Color: color, Value: v})
		}
	}
	for _, v := range []models.Value{models.ValueWild, models.ValueDrawFour} {
		for i := 0; i < wildCopies; i++ {
			cards = append(cards, &models.Card{Color: models.ColorWild, Value: v})
		}
	}

	for i, c := range cards {
		c.ID = i
	}
	return cards
}

// Deck is a draw stack. The last element is the top.
type Deck []*models.Card

// NewDeck returns the full universe in a uniformly random order.
func NewDeck(r *rand.Rand) Deck {
	d := Deck(NewUniverse())
	d.Shuffle(r)
	return d
}

// Shuffle permutes the deck in place (Fisher-Yates via rand.Shuffle).
func (d Deck) Shuffle(r *rand.Rand) {
	r.Shuffle(len(d), func(i, j int) {
		d[i], d[j] = d[j], d[i]
	})
}

func (d Deck) Len() int { return len(d) }

// Draw pops the top card. ok is false when the deck is empty.
func (d *Deck) Draw() (card *models.Card, ok bool) {
	n := len(*d)
	if n == 0 {
		return nil, false
	}
	card = (*d)[n-1]
	*d = (*d)[:n-1]
	return card, true
}

// PutBottom slides cards under the stack so they are drawn last.
func (d *Deck) PutBottom(cards ...*models.Card) {
	if len(cards) == 0 {
		return
	}
	merged := make(Deck, 0, len(cards)+len(*d))
	merged = append(merged, cards...)
	*d = append(merged, *d...)
}

// Deal gives every player HandSize cards from the top, in player order, and
// returns one more card to start the discard pile. A wild-colored starter is
// tucked under the deck and replaced so the active card always has a color.
func (d *Deck) Deal(players []*models.Player) (*models.Card, error) {
	if len(players) < MinPlayers {
		return nil, fmt.Errorf("deal needs at least %d players, have %d", MinPlayers, len(players))
	}
	if need := HandSize*len(players) + 1; need > d.Len() {
		return nil, fmt.Errorf("deal needs %d cards, deck has %d", need, d.Len())
	}

	for _, p := range players {
		p.Hand = make([]*models.Card, 0, HandSize)
		for i := 0; i < HandSize; i++ {
			c, _ := d.Draw()
			p.Hand = append(p.Hand, c)
		}
	}

	for tries := 0; tries <= d.Len(); tries++ {
		top, _ := d.Draw()
		if top.Color != models.ColorWild {
			return top, nil
		}
		d.PutBottom(top)
	}
	return nil, fmt.Errorf("deck holds no colored card to start the discard pile")
}
