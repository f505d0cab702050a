// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "fmt"

// ListStatus is the lifecycle state of a named list.
type ListStatus string

const (
	ListActive  ListStatus = "ACTIVE"
	ListDeleted ListStatus = "DELETED"
)

// Valid reports whether s is one of the known statuses.
func (s ListStatus) Valid() bool {
	return s == ListActive || s == ListDeleted
}

func (s ListStatus) String() string { return string(s) }

// ParseListStatus accepts the wire spelling of a status.
func ParseListStatus(s string) (ListStatus, error) {
	st := ListStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown list status %q", s)
	}
	return st, nil
}

// ListRecord is the materialized state of one list. Deleted lists stay in
// the table with status DELETED.
type ListRecord struct {
	Name   string     `json:"name"`
	Status ListStatus `json:"status"`
}

// Active reports whether the list should appear in snapshots.
func (r ListRecord) Active() bool {
	return r.Status == ListActive
}
