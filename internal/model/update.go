// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

// UpdateRecord is the notification published to downstream subscribers.
// Data holds the JSON encoding of the ListRecord that triggered it.
type UpdateRecord struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   string `json:"data"`
}
