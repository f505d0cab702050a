// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lists

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ManuGH/listflow/internal/model"
)

var (
	// ErrMalformedPayload marks a command whose data carries no usable
	// list name. Such commands are dropped.
	ErrMalformedPayload = errors.New("malformed list payload")

	// ErrUnsupportedCommand marks a LIST command whose cmd is neither
	// CREATE nor DELETE. Such commands are dropped rather than written
	// with an undefined status.
	ErrUnsupportedCommand = errors.New("unsupported list command")
)

// Drop reasons used in logs and metrics.
const (
	ReasonMalformedPayload   = "malformed_payload"
	ReasonUnsupportedCommand = "unsupported_command"
)

// ListPayload is the parsed data of a CREATE or DELETE command.
type ListPayload struct {
	Name string
}

// ParsePayload extracts the list name from a command's data. The data must
// be a JSON object with a scalar "name"; other fields are ignored. Numbers
// and booleans keep their literal text, and the empty string is a valid
// name. A null, object or array name is malformed.
func ParsePayload(data string) (ListPayload, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return ListPayload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if obj == nil {
		return ListPayload{}, fmt.Errorf("%w: not an object", ErrMalformedPayload)
	}
	raw, ok := obj["name"]
	if !ok {
		return ListPayload{}, fmt.Errorf("%w: missing name", ErrMalformedPayload)
	}
	name, err := scalarText(raw)
	if err != nil {
		return ListPayload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return ListPayload{Name: name}, nil
}

// scalarText renders a JSON scalar as text. raw is already valid JSON.
func scalarText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", errors.New("empty name")
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case 'n':
		return "", errors.New("name is null")
	case '{', '[':
		return "", errors.New("name is not a scalar")
	default:
		// Numbers, true and false.
		return string(raw), nil
	}
}

// Mutation is a list change attributed to the session that asked for it.
// The session routes the resulting update; the store is keyed by name.
type Mutation struct {
	Session string
	Record  model.ListRecord
}

// Interpret turns a mutation command into the list record it implies.
func Interpret(session string, cmd model.Command) (Mutation, error) {
	payload, err := ParsePayload(cmd.Data)
	if err != nil {
		return Mutation{}, err
	}

	rec := model.ListRecord{Name: payload.Name}
	switch kind := cmd.Kind(); kind {
	case model.CommandCreate:
		rec.Status = model.ListActive
	case model.CommandDelete:
		rec.Status = model.ListDeleted
	case model.CommandRefresh, model.CommandUnknown:
		return Mutation{}, fmt.Errorf("%w: %q", ErrUnsupportedCommand, cmd.Cmd)
	default:
		return Mutation{}, fmt.Errorf("%w: kind %v", ErrUnsupportedCommand, kind)
	}
	return Mutation{Session: session, Record: rec}, nil
}

// DropReason maps an interpreter error to its metric label. The second
// result is false for errors that must not be dropped.
func DropReason(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrMalformedPayload):
		return ReasonMalformedPayload, true
	case errors.Is(err, ErrUnsupportedCommand):
		return ReasonUnsupportedCommand, true
	default:
		return "", false
	}
}
