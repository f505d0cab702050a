// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lists

import "github.com/ManuGH/listflow/internal/model"

// IsListCommand selects commands that belong to list lifecycle processing.
// A command without a type never matches.
func IsListCommand(c model.Command) bool {
	return c.Type == model.TypeList
}

// IsMutationCommand selects LIST commands that may change a list.
func IsMutationCommand(c model.Command) bool {
	return IsListCommand(c) && c.Kind() != model.CommandRefresh
}

// IsRefreshCommand selects LIST commands asking for a snapshot.
func IsRefreshCommand(c model.Command) bool {
	return IsListCommand(c) && c.Kind() == model.CommandRefresh
}
