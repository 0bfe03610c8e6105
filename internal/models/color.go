package models

import (
	"fmt"
)

// RGB is an integer color triple. It encodes as a JSON array.
type RGB [3]uint8

// NeutralColor is rendered while a lookup is in flight or after it fails.
var NeutralColor = RGB{83, 83, 83}

func (c RGB) R() uint8 { return c[0] }
func (c RGB) G() uint8 { return c[1] }
func (c RGB) B() uint8 { return c[2] }

// Hex renders the color as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

// CSS renders the color as rgb(r, g, b).
func (c RGB) CSS() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", c[0], c[1], c[2])
}

// ColorRequest is the message submitted to a color worker.
type ColorRequest struct {
	ID       string `json:"id"`
	ImageURL string `json:"imageUrl"`
}

// ColorResponse is the single message a worker sends back.
type ColorResponse struct {
	Success bool   `json:"success"`
	Color   *RGB   `json:"color,omitempty"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ColorCacheEntry is a persisted extraction result.
type ColorCacheEntry struct {
	EntityID string `json:"entity_id"`
	RGB      RGB    `json:"rgb"`
}

// ColorState is what a consumer renders: a color, a loading flag or an error.
//
// Color is nil until a lookup succeeds.
type ColorState struct {
	Color   *RGB  `json:"color"`
	Loading bool  `json:"loading"`
	Error   error `json:"-"`
}

// Display returns the color to paint, falling back to [NeutralColor].
func (s ColorState) Display() RGB {
	if s.Color == nil {
		return NeutralColor
	}
	return *s.Color
}
