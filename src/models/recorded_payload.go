package models

import "time"

// MRecordedPayload is a stream payload as persisted by the recorder.
// Data holds the payload's data map encoded as JSON.
type MRecordedPayload struct {
	Key        string    `json:"key"`
	Epoch      int64     `json:"epoch"`
	Data       string    `json:"data"`
	ReceivedAt int64     `json:"received_at"`
	CreatedAt  time.Time `json:"created_at"`
}
