// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lists

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/listflow/internal/model"
)

func TestFilters(t *testing.T) {
	tests := []struct {
		cmd                     model.Command
		list, mutation, refresh bool
	}{
		{model.Command{Type: "LIST", Cmd: "CREATE"}, true, true, false},
		{model.Command{Type: "LIST", Cmd: "DELETE"}, true, true, false},
		{model.Command{Type: "LIST", Cmd: "REFRESH"}, true, false, true},
		{model.Command{Type: "LIST", Cmd: "SOMETHING"}, true, true, false},
		{model.Command{Type: "LIST"}, true, true, false},
		{model.Command{Type: "list", Cmd: "CREATE"}, false, false, false},
		{model.Command{Cmd: "REFRESH"}, false, false, false},
		{model.Command{}, false, false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.list, IsListCommand(tt.cmd), "%+v", tt.cmd)
		assert.Equal(t, tt.mutation, IsMutationCommand(tt.cmd), "%+v", tt.cmd)
		assert.Equal(t, tt.refresh, IsRefreshCommand(tt.cmd), "%+v", tt.cmd)
	}
}

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload(`{"name":"groceries","color":"green"}`)
	require.NoError(t, err)
	assert.Equal(t, "groceries", p.Name)

	scalars := map[string]string{
		`{"name":42}`:      "42",
		`{"name":-1.5e3}`:  "-1.5e3",
		`{"name":true}`:    "true",
		`{"name":false}`:   "false",
		`{"name":""}`:      "",
		`{"name": "a b" }`: "a b",
	}
	for data, want := range scalars {
		p, err := ParsePayload(data)
		require.NoError(t, err, data)
		assert.Equal(t, want, p.Name, data)
	}

	for _, bad := range []string{``, `{`, `null`, `[]`, `"groceries"`, `{}`, `{"name":null}`, `{"name":{}}`, `{"name":["a"]}`} {
		_, err := ParsePayload(bad)
		assert.ErrorIs(t, err, ErrMalformedPayload, "%q", bad)
	}
}

func TestInterpret(t *testing.T) {
	m, err := Interpret("s1", model.Command{Type: "LIST", Cmd: "CREATE", Data: `{"name":"a"}`})
	require.NoError(t, err)
	assert.Equal(t, Mutation{Session: "s1", Record: model.ListRecord{Name: "a", Status: model.ListActive}}, m)

	m, err = Interpret("s2", model.Command{Type: "LIST", Cmd: "DELETE", Data: `{"name":"a"}`})
	require.NoError(t, err)
	assert.Equal(t, model.ListDeleted, m.Record.Status)
	assert.Equal(t, "s2", m.Session)

	_, err = Interpret("s1", model.Command{Type: "LIST", Cmd: "ARCHIVE", Data: `{"name":"a"}`})
	assert.ErrorIs(t, err, ErrUnsupportedCommand)
	_, err = Interpret("s1", model.Command{Type: "LIST", Cmd: "REFRESH", Data: `{"name":"a"}`})
	assert.ErrorIs(t, err, ErrUnsupportedCommand)

	_, err = Interpret("s1", model.Command{Type: "LIST", Cmd: "ARCHIVE", Data: `oops`})
	assert.ErrorIs(t, err, ErrMalformedPayload, "payload is checked first")
}

func TestDropReason(t *testing.T) {
	_, err := ParsePayload("{}")
	reason, ok := DropReason(err)
	assert.True(t, ok)
	assert.Equal(t, ReasonMalformedPayload, reason)

	_, err = Interpret("s", model.Command{Cmd: "X", Data: `{"name":"n"}`})
	reason, ok = DropReason(err)
	assert.True(t, ok)
	assert.Equal(t, ReasonUnsupportedCommand, reason)

	_, ok = DropReason(assert.AnError)
	assert.False(t, ok)
}

func TestNewUpdate(t *testing.T) {
	upd, err := NewUpdate(model.ListRecord{Name: "chores", Status: model.ListDeleted})
	require.NoError(t, err)
	assert.Equal(t, "LIST", upd.Type)
	assert.Equal(t, "DELETED", upd.Action)
	assert.JSONEq(t, `{"name":"chores","status":"DELETED"}`, upd.Data)
}
