// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lists

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/listflow/internal/codec"
	"github.com/ManuGH/listflow/internal/config"
	"github.com/ManuGH/listflow/internal/eventlog"
	"github.com/ManuGH/listflow/internal/liststore"
	xglog "github.com/ManuGH/listflow/internal/log"
	"github.com/ManuGH/listflow/internal/model"
)

// harness runs the pipeline stage by stage over an in-memory log.
type harness struct {
	t      *testing.T
	log    *eventlog.Memory
	store  *liststore.MemoryStore
	topics config.Topics
	serdes Serdes
	svc    *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Defaults()
	log := eventlog.NewMemory(4)
	require.NoError(t, log.EnsureTopics(context.Background(), eventlog.Specs(cfg)))

	store := liststore.NewMemoryStore()
	serdes := NewSerdes(codec.NewMemoryRegistry(), cfg.Topics)
	t.Cleanup(func() {
		_ = store.Close()
		_ = log.Close()
	})
	return &harness{
		t:      t,
		log:    log,
		store:  store,
		topics: cfg.Topics,
		serdes: serdes,
		svc:    NewService(cfg.Topics, log, store, serdes),
	}
}

func (h *harness) command(session, typ, cmd, data string) {
	h.t.Helper()
	value, err := h.serdes.Commands.Encode(context.Background(), model.Command{Type: typ, Cmd: cmd, Data: data})
	require.NoError(h.t, err)
	require.NoError(h.t, h.log.Produce(context.Background(), h.topics.Commands, eventlog.Message{Key: []byte(session), Value: value}))
}

func (h *harness) list(session, cmd, name string) {
	h.t.Helper()
	data, err := json.Marshal(map[string]string{"name": name})
	require.NoError(h.t, err)
	h.command(session, model.TypeList, cmd, string(data))
}

// run feeds everything currently on the logs through all four stages.
func (h *harness) run() {
	h.t.Helper()
	for _, stage := range h.svc.Stages() {
		c, err := h.log.NewConsumer("test-"+stage.Name, stage.Topics...)
		require.NoError(h.t, err)
		for {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			rec, err := c.Fetch(ctx)
			cancel()
			if err != nil {
				break
			}
			require.NoError(h.t, stage.Handler(context.Background(), rec))
			require.NoError(h.t, c.Commit(context.Background(), rec))
		}
		require.NoError(h.t, c.Close())
	}
}

type sentUpdate struct {
	session string
	update  model.UpdateRecord
	record  model.ListRecord
}

func (h *harness) updates() []sentUpdate {
	h.t.Helper()
	var out []sentUpdate
	for _, rec := range h.log.Records(h.topics.Updates) {
		upd, err := h.serdes.Updates.Decode(context.Background(), rec.Value)
		require.NoError(h.t, err)
		var lr model.ListRecord
		require.NoError(h.t, json.Unmarshal([]byte(upd.Data), &lr))
		out = append(out, sentUpdate{session: string(rec.Key), update: upd, record: lr})
	}
	return out
}

func (h *harness) updatesFor(session string) []sentUpdate {
	var out []sentUpdate
	for _, u := range h.updates() {
		if u.session == session {
			out = append(out, u)
		}
	}
	return out
}

func (h *harness) status(name string) (model.ListStatus, bool) {
	rec, ok, err := h.store.Get(context.Background(), name)
	require.NoError(h.t, err)
	return rec.Status, ok
}

func TestPipeline_NonListCommandsProduceNothing(t *testing.T) {
	h := newHarness(t)
	h.command("s1", "TODO", "CREATE", `{"name":"groceries"}`)
	h.command("s1", "", "REFRESH", `{}`)
	h.command("s1", "", "", "")
	h.run()

	for _, topic := range h.topics.All()[1:] {
		assert.Empty(t, h.log.Records(topic), topic)
	}
	_, ok := h.status("groceries")
	assert.False(t, ok)
}

func TestPipeline_CreatePublishesOneActiveUpdate(t *testing.T) {
	h := newHarness(t)
	h.list("s1", "CREATE", "groceries")
	h.run()

	st, ok := h.status("groceries")
	require.True(t, ok)
	assert.Equal(t, model.ListActive, st)

	ups := h.updates()
	require.Len(t, ups, 1)
	assert.Equal(t, "s1", ups[0].session)
	assert.Equal(t, model.UpdateRecord{Type: "LIST", Action: "ACTIVE", Data: `{"name":"groceries","status":"ACTIVE"}`}, ups[0].update)

	table := h.log.Records(h.topics.ListsTable)
	require.Len(t, table, 1)
	assert.Equal(t, "groceries", string(table[0].Key), "table log is keyed by list name")
}

func TestPipeline_DeleteHidesListFromRefresh(t *testing.T) {
	h := newHarness(t)
	h.list("s1", "CREATE", "groceries")
	h.list("s1", "CREATE", "chores")
	h.list("s1", "DELETE", "groceries")
	h.run()

	st, _ := h.status("groceries")
	assert.Equal(t, model.ListDeleted, st)

	var actions []string
	for _, u := range h.updatesFor("s1") {
		actions = append(actions, u.update.Action+":"+u.record.Name)
	}
	assert.Equal(t, []string{"ACTIVE:groceries", "ACTIVE:chores", "DELETED:groceries"}, actions)

	h.command("s2", model.TypeList, "REFRESH", "")
	h.run()

	refresh := h.updatesFor("s2")
	require.Len(t, refresh, 1)
	assert.Equal(t, "chores", refresh[0].record.Name)
	assert.Equal(t, "ACTIVE", refresh[0].update.Action)
}

func TestPipeline_ReplayedCreateIsIdempotentButNotifiesTwice(t *testing.T) {
	h := newHarness(t)
	h.list("s1", "CREATE", "groceries")
	h.list("s1", "CREATE", "groceries")
	h.run()

	n, err := h.store.ApproximateCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	st, _ := h.status("groceries")
	assert.Equal(t, model.ListActive, st)
	assert.Len(t, h.updates(), 2)
}

func TestPipeline_DroppedCommandsLeaveNoTrace(t *testing.T) {
	payloads := map[string]string{
		"missing name":  `{"title":"x"}`,
		"unparsable":    `{"name":`,
		"not an object": `["groceries"]`,
		"null":          `null`,
		"null name":     `{"name":null}`,
		"object name":   `{"name":{"v":"x"}}`,
		"empty data":    ``,
	}
	for desc, data := range payloads {
		t.Run(desc, func(t *testing.T) {
			h := newHarness(t)
			h.command("s1", model.TypeList, "CREATE", data)
			h.run()
			assert.Empty(t, h.log.Records(h.topics.ListUpdates))
			assert.Empty(t, h.updates())
			n, err := h.store.ApproximateCount(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}

	t.Run("unknown cmd", func(t *testing.T) {
		h := newHarness(t)
		h.list("s1", "CREATE", "groceries")
		h.list("s1", "RENAME", "groceries")
		h.list("s1", "create", "groceries")
		h.run()
		st, _ := h.status("groceries")
		assert.Equal(t, model.ListActive, st, "unknown cmd does not overwrite the status")
		assert.Len(t, h.updates(), 1)
	})
}

func TestPipeline_ScalarNamesAreAccepted(t *testing.T) {
	names := map[string]string{
		`{"name":42}`:   "42",
		`{"name":true}`: "true",
		`{"name":""}`:   "",
	}
	for data, want := range names {
		t.Run(data, func(t *testing.T) {
			h := newHarness(t)
			h.command("s1", model.TypeList, "CREATE", data)
			h.run()
			st, ok := h.status(want)
			require.True(t, ok)
			assert.Equal(t, model.ListActive, st)
			ups := h.updates()
			require.Len(t, ups, 1)
			assert.Equal(t, want, ups[0].record.Name)
		})
	}
}

func TestPipeline_RefreshEmitsOnlyActiveLists(t *testing.T) {
	h := newHarness(t)
	h.list("writer", "CREATE", "A")
	h.list("writer", "CREATE", "B")
	h.list("writer", "CREATE", "C")
	h.list("writer", "DELETE", "B")
	h.run()

	h.command("reader", model.TypeList, "REFRESH", "")
	h.run()

	refresh := h.updatesFor("reader")
	require.Len(t, refresh, 2)
	var names []string
	for _, u := range refresh {
		assert.Equal(t, "ACTIVE", u.update.Action)
		names = append(names, u.record.Name)
	}
	assert.ElementsMatch(t, []string{"A", "C"}, names)
	assert.Len(t, h.log.Records(h.topics.InternalRefreshes), 2)
}

func TestPipeline_RefreshOnEmptyStore(t *testing.T) {
	h := newHarness(t)
	h.command("reader", model.TypeList, "REFRESH", "")
	h.run()

	assert.Empty(t, h.updates())
	n, err := h.svc.snapshots.Respond(context.Background(), "reader")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHandleCommand_CorruptRecordIsFatal(t *testing.T) {
	h := newHarness(t)
	err := h.svc.HandleCommand(context.Background(), eventlog.Record{
		Topic: h.topics.Commands,
		Key:   []byte("s1"),
		Value: []byte(`{"type":"LIST"}`),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, codec.ErrDecode))

	err = h.svc.HandleMerge(context.Background(), eventlog.Record{Topic: h.topics.InternalRefreshes, Value: []byte{0, 0, 0, 0, 9, '{', '}'}})
	assert.ErrorIs(t, err, codec.ErrDecode)
}

func TestRestore(t *testing.T) {
	h := newHarness(t)
	h.list("s1", "CREATE", "A")
	h.list("s2", "CREATE", "B")
	h.list("s1", "DELETE", "A")
	h.run()

	ctx := context.Background()
	fresh := liststore.NewMemoryStore()
	n, err := Restore(ctx, h.log, h.topics.ListsTable, h.serdes.Table, fresh)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, name := range []string{"A", "B"} {
		want, _, err := h.store.Get(ctx, name)
		require.NoError(t, err)
		got, ok, err := fresh.Get(ctx, name)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	n, err = Restore(ctx, h.log, h.topics.ListsTable, h.serdes.Table, fresh)
	require.NoError(t, err)
	assert.Zero(t, n, "a populated store is not replayed into")
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
		out = append(out, entry)
	}
	return out
}

func TestHandleCommand_LogsCarrySessionKey(t *testing.T) {
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	h := newHarness(t)
	h.list("writer", "CREATE", "A")
	h.run()

	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())
	encode := func(cmd model.Command) []byte {
		v, err := h.serdes.Commands.Encode(ctx, cmd)
		require.NoError(t, err)
		return v
	}

	require.NoError(t, h.svc.HandleCommand(ctx, eventlog.Record{
		Topic: h.topics.Commands,
		Key:   []byte("s-drop"),
		Value: encode(model.Command{Type: model.TypeList, Cmd: "CREATE", Data: `{"title":"x"}`}),
	}))
	require.NoError(t, h.svc.HandleCommand(ctx, eventlog.Record{
		Topic: h.topics.Commands,
		Key:   []byte("s-refresh"),
		Value: encode(model.Command{Type: model.TypeList, Cmd: "REFRESH"}),
	}))

	lines := logLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "command.dropped", lines[0][xglog.FieldEvent])
	assert.Equal(t, "s-drop", lines[0][xglog.FieldSessionKey])
	assert.Equal(t, "lists", lines[0][xglog.FieldComponent])
	assert.Equal(t, "snapshot.respond", lines[1][xglog.FieldEvent])
	assert.Equal(t, "s-refresh", lines[1][xglog.FieldSessionKey])
	assert.Equal(t, "lists.snapshot", lines[1][xglog.FieldComponent])
}
