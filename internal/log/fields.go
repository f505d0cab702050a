// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionKey    = "session_key"
	FieldCorrelationID = "correlation_id"
	FieldInstanceID    = "instance_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStage     = "stage"
	FieldGroup     = "group"

	// Log position fields
	FieldTopic     = "topic"
	FieldPartition = "partition"
	FieldOffset    = "offset"

	// List fields
	FieldListName = "list_name"
	FieldStatus   = "status"
	FieldCmd      = "cmd"
	FieldReason   = "reason"

	// Storage fields
	FieldBackend = "backend"
	FieldPath    = "path"
)
