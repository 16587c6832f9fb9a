package models

import "github.com/google/uuid"

// Player is a seat at the table. ID is the connection identifier assigned by
// the transport when the client connected.
type Player struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Hand    []*Card   `json:"hand"`
	IsReady bool      `json:"isReady"`
}

// NewPlayer returns an unnamed, not-ready player with an empty hand.
func NewPlayer(id uuid.UUID) *Player {
	return &Player{
		ID:   id,
		Hand: []*Card{},
	}
}

// FindCard returns the index of the card with the given id in the hand, or -1.
func (p *Player) FindCard(cardID int) int {
	for i, c := range p.Hand {
		if c.ID == cardID {
			return i
		}
	}
	return -1
}

// RemoveCard takes the card at idx out of the hand and returns it.
func (p *Player) RemoveCard(idx int) *Card {
	c := p.Hand[idx]
	p.Hand = append(p.Hand[:idx], p.Hand[idx+1:]...)
	return c
}
