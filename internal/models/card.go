// internal/models/card.go
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Color is the suit of a card. Wild cards carry ColorWild until a color is chosen.
type Color string

const (
	ColorRed    Color = "red"
	ColorGreen  Color = "green"
	ColorBlue   Color = "blue"
	ColorYellow Color = "yellow"
	ColorWild   Color = "wild"
)

// SuitColors lists the four playable colors in deck-building order.
var SuitColors = []Color{ColorRed, ColorGreen, ColorBlue, ColorYellow}

// IsSuit reports whether c is one of the four choosable colors.
func (c Color) IsSuit() bool {
	switch c {
	case ColorRed, ColorGreen, ColorBlue, ColorYellow:
		return true
	}
	return false
}

// Value is the face of a card: "0".."9", "skip", "reverse", "+2", "wild" or "+4".
type Value string

const (
	ValueSkip     Value = "skip"
	ValueReverse  Value = "reverse"
	ValueDrawTwo  Value = "+2"
	ValueWild     Value = "wild"
	ValueDrawFour Value = "+4"
)

// DigitValue returns the Value for a number card.
func DigitValue(n int) Value {
	return Value(strconv.Itoa(n))
}

// IsDigit reports whether v is a plain number card.
func (v Value) IsDigit() bool {
	return len(v) == 1 && v[0] >= '0' && v[0] <= '9'
}

// MarshalJSON encodes digits as JSON numbers and everything else as strings,
// which is what browser clients send back in playCard.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsDigit() {
		return []byte(v), nil
	}
	return json.Marshal(string(v))
}

// UnmarshalJSON accepts either a JSON number or a string.
func (v *Value) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if n < 0 || n > 9 {
			return fmt.Errorf("card value %d out of range", n)
		}
		*v = DigitValue(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("card value must be a number or string: %w", err)
	}
	*v = Value(s)
	return nil
}

// Card is a single card. ID is unique across the 100-card universe.
type Card struct {
	ID    int   `json:"id"`
	Color Color `json:"color"`
	Value Value `json:"value"`
}

func (c Card) String() string {
	return fmt.Sprintf("%s %s (#%d)", c.Color, c.Value, c.ID)
}
