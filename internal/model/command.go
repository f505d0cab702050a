// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package model defines the records that flow through the list pipeline.
package model

// TypeList tags commands and updates that belong to list lifecycle processing.
const TypeList = "LIST"

// Command is a single client instruction read from the commands log.
// The session key travels beside it as the record key.
type Command struct {
	Type string `json:"type"`
	Cmd  string `json:"cmd"`
	Data string `json:"data"`
}

// Kind classifies the free-form cmd field.
func (c Command) Kind() CommandKind {
	return ParseCommandKind(c.Cmd)
}

// CommandKind is the closed set of command verbs the pipeline understands.
type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandCreate
	CommandDelete
	CommandRefresh
)

// ParseCommandKind maps a raw cmd value to its kind. Matching is exact:
// "create" is not CREATE.
func ParseCommandKind(s string) CommandKind {
	switch s {
	case "CREATE":
		return CommandCreate
	case "DELETE":
		return CommandDelete
	case "REFRESH":
		return CommandRefresh
	default:
		return CommandUnknown
	}
}

func (k CommandKind) String() string {
	switch k {
	case CommandCreate:
		return "CREATE"
	case CommandDelete:
		return "DELETE"
	case CommandRefresh:
		return "REFRESH"
	default:
		return "UNKNOWN"
	}
}
