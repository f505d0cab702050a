// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by pipeline spans.
const (
	StageKey     = "listflow.stage"
	TopicKey     = "messaging.destination"
	PartitionKey = "messaging.kafka.partition"
	OffsetKey    = "messaging.kafka.offset"
	SessionKey   = "listflow.session_key"
	ListNameKey  = "listflow.list_name"
	OutcomeKey   = "listflow.outcome"

	HTTPMethodKey     = "http.method"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"
	HTTPStatusCodeKey = "http.status_code"
)

// RecordAttributes describes the log position of a record being processed.
func RecordAttributes(stage, topic string, partition int, offset int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(StageKey, stage),
		attribute.String(TopicKey, topic),
		attribute.Int(PartitionKey, partition),
		attribute.Int64(OffsetKey, offset),
	}
}

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}
