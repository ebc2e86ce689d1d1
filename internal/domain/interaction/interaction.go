// Package interaction defines user feedback events on search results.
package interaction

import (
	"strings"
	"time"

	"github.com/kailas-cloud/cinerank/internal/domain"
)

// Type is the kind of user interaction.
type Type string

// Interaction types.
const (
	Click    Type = "click"
	View     Type = "view"
	Like     Type = "like"
	Share    Type = "share"
	Bookmark Type = "bookmark"
)

// UnknownWeight is the signal increment for an unrecognized type.
const UnknownWeight = 0.1

var weights = map[Type]float64{
	Click:    0.1,
	View:     0.2,
	Like:     0.5,
	Share:    0.3,
	Bookmark: 0.4,
}

// Types returns all known interaction types.
func Types() []Type { return []Type{Click, View, Like, Share, Bookmark} }

// ParseType validates s as an interaction type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := weights[t]; !ok {
		names := make([]string, 0, len(weights))
		for _, k := range Types() {
			names = append(names, string(k))
		}
		return "", domain.NewInputError("interaction_type", "unknown interaction type "+s,
			"use one of: "+strings.Join(names, ", "))
	}
	return t, nil
}

// Weight returns the signal increment of t.
func (t Type) Weight() float64 {
	if w, ok := weights[t]; ok {
		return w
	}
	return UnknownWeight
}

// Event is a recorded interaction.
type Event struct {
	SessionID  string    `json:"session_id,omitempty"`
	Query      string    `json:"query"`
	DocumentID string    `json:"document_id"`
	Type       Type      `json:"type"`
	At         time.Time `json:"at"`
}
