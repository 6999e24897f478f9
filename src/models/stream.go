package models

import (
	"fmt"
	"strings"
)

// Wildcard matches any value in a stream pattern segment.
const Wildcard = "*"

// -----------------------------------------------------------------------------
// Wire Messages
// -----------------------------------------------------------------------------

// MStreamPayload is one real-time update pushed by the stream endpoint.
// Key is the concrete time bucket key that matched a subscribed pattern.
type MStreamPayload struct {
	Key  string                 `codec:"key" json:"key"`
	Data map[string]interface{} `codec:"data" json:"data"`
}

// MSubscribeMessage is sent once after connecting and echoed back by the server.
type MSubscribeMessage struct {
	Streams []string `codec:"streams" json:"streams"`
}

// MErrorMessage is pushed by the server when a subscribe request is rejected.
type MErrorMessage struct {
	Error string `codec:"error" json:"error"`
}

// -----------------------------------------------------------------------------
// Stream Patterns
// -----------------------------------------------------------------------------

// ValidateStreamPattern checks the symbol/timeframe/attribute-group shape.
func ValidateStreamPattern(pattern string) error {
	parts := strings.Split(pattern, "/")
	if len(parts) != 3 {
		return fmt.Errorf("stream %q must have exactly 3 segments, got %d", pattern, len(parts))
	}
	for i, p := range parts {
		if p == "" {
			return fmt.Errorf("stream %q has an empty segment at position %d", pattern, i)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// MatchStream reports whether a concrete key is covered by a pattern.
// Malformed patterns or keys never match.
func MatchStream(pattern, key string) bool {
	pp := strings.Split(pattern, "/")
	kp := strings.Split(key, "/")
	if len(pp) != 3 || len(kp) != 3 {
		return false
	}
	for i := range pp {
		if pp[i] == Wildcard {
			continue
		}
		if pp[i] != kp[i] {
			return false
		}
	}
	return true
}

// -----------------------------------------------------------------------------
// Subscription Builder
// -----------------------------------------------------------------------------

// MStreamSubscription is an ordered list of stream patterns. Duplicates are kept.
type MStreamSubscription struct {
	Streams []string
}

func NewStreamSubscription() *MStreamSubscription {
	return &MStreamSubscription{Streams: []string{}}
}

func (s *MStreamSubscription) AddStream(stream string) *MStreamSubscription {
	s.Streams = append(s.Streams, stream)
	return s
}

func (s *MStreamSubscription) AddStreams(streams []string) *MStreamSubscription {
	s.Streams = append(s.Streams, streams...)
	return s
}

// Validate returns the first malformed pattern error, if any.
func (s *MStreamSubscription) Validate() error {
	for _, stream := range s.Streams {
		if err := ValidateStreamPattern(stream); err != nil {
			return err
		}
	}
	return nil
}
