// Package outbox implements the outbound message pipeline: a closed set of
// typed messages, an unbounded FIFO queue, and a single rate-limited
// consumer that delivers through a transport Sender.
package outbox

import (
	"github.com/go-telegram/bot/models"
)

// Message is the closed set of outbound message variants. The sealed
// interface keeps dispatch exhaustive: adding a variant forces a
// compile-time change in the dispatcher's switch.
type Message interface {
	// Kind names the variant for failure accounting.
	Kind() string

	outbound()
}

// Text is a plain text message, optionally carrying a reply keyboard.
type Text struct {
	ChatID      int64
	Body        string
	ReplyMarkup models.ReplyMarkup
}

// Location is a map pin.
type Location struct {
	ChatID int64
	Lat    float64
	Lon    float64
}

// MediaGroup is an ordered album of photo URLs.
type MediaGroup struct {
	ChatID int64
	URLs   []string
}

func (Text) Kind() string       { return "text" }
func (Location) Kind() string   { return "location" }
func (MediaGroup) Kind() string { return "media_group" }

func (Text) outbound()       {}
func (Location) outbound()   {}
func (MediaGroup) outbound() {}
