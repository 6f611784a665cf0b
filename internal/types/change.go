package types

import (
	json "github.com/goccy/go-json"
)

// ChangePayload is the JSON body of one change notification. Every field is
// an optional string; anything else fails validation and the message is
// discarded.
type ChangePayload struct {
	UserID        string `json:"user_id,omitempty"`
	DetectedAt    string `json:"detected_at,omitempty"`
	BucketDay     string `json:"bucket_day,omitempty"`
	Op            string `json:"op,omitempty"`
	At            string `json:"at,omitempty"`
	SourceTrigger string `json:"source_trigger,omitempty"`
}

// ParseChangePayload validates raw notification bytes against the payload
// shape. Unknown fields are tolerated; non-string values for known fields,
// or a non-object body, are not.
func ParseChangePayload(raw []byte) (ChangePayload, error) {
	var p ChangePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return ChangePayload{}, err
	}
	return p, nil
}
