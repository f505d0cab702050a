// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package codec encodes pipeline records for the wire.
//
// With a schema registry the value is framed as
//
//	0x00 | schema id (uint32, big endian) | JSON body
//
// and without one it is the bare JSON body.
package codec

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

const (
	magicByte  byte = 0x00
	headerSize      = 5
)

var (
	// ErrDecode marks a record that could not be read back from a log.
	// Stages treat it as fatal: it means the producer and this process
	// disagree about the wire format.
	ErrDecode = errors.New("decode record")

	// ErrSchemaNotFound is returned by a Registry for an unknown schema id.
	ErrSchemaNotFound = errors.New("schema not found")
)

// Registry assigns ids to schemas and resolves them back.
type Registry interface {
	Register(ctx context.Context, subject, schema string) (int, error)
	Lookup(ctx context.Context, id int) (string, error)
}

// SubjectFor returns the value subject of a topic.
func SubjectFor(topic string) string {
	return topic + "-value"
}

// Serde encodes and decodes one record type for one subject. It is safe for
// concurrent use.
type Serde[T any] struct {
	registry Registry
	subject  string
	schema   string

	mu sync.Mutex
	id int
}

// NewSerde returns a serde bound to subject. A nil registry selects plain
// JSON without framing.
func NewSerde[T any](registry Registry, subject, schema string) *Serde[T] {
	return &Serde[T]{registry: registry, subject: subject, schema: schema}
}

// Subject returns the registry subject the serde registers under.
func (s *Serde[T]) Subject() string { return s.subject }

// Encode serializes v, registering the schema on first use.
func (s *Serde[T]) Encode(ctx context.Context, v T) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", s.subject, err)
	}
	if s.registry == nil {
		return body, nil
	}

	id, err := s.schemaID(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]byte, headerSize+len(body))
	out[0] = magicByte
	binary.BigEndian.PutUint32(out[1:headerSize], uint32(id))
	copy(out[headerSize:], body)
	return out, nil
}

func (s *Serde[T]) schemaID(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id != 0 {
		return s.id, nil
	}
	id, err := s.registry.Register(ctx, s.subject, s.schema)
	if err != nil {
		return 0, fmt.Errorf("register schema for %s: %w", s.subject, err)
	}
	s.id = id
	return id, nil
}

// Decode parses data. Every failure wraps ErrDecode.
func (s *Serde[T]) Decode(ctx context.Context, data []byte) (T, error) {
	var out T
	body := data

	if s.registry != nil {
		if len(data) < headerSize {
			return out, fmt.Errorf("%w: %s: %d bytes is shorter than the wire header", ErrDecode, s.subject, len(data))
		}
		if data[0] != magicByte {
			return out, fmt.Errorf("%w: %s: unknown magic byte 0x%02x", ErrDecode, s.subject, data[0])
		}
		id := int(binary.BigEndian.Uint32(data[1:headerSize]))
		if _, err := s.registry.Lookup(ctx, id); err != nil {
			return out, fmt.Errorf("%w: %s: schema id %d: %w", ErrDecode, s.subject, id, err)
		}
		body = data[headerSize:]
	}

	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("%w: %s: %w", ErrDecode, s.subject, err)
	}
	return out, nil
}
