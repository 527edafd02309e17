package migrate

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/mealsync/internal/storage"
	"github.com/steveyegge/mealsync/internal/storage/memory"
	"github.com/steveyegge/mealsync/internal/types"
)

func writeRaw(t *testing.T, ls storage.LocalStore, key, value string) {
	t.Helper()
	require.NoError(t, ls.Write(context.Background(), key, []byte(value)))
}

func seedLegacy(t *testing.T, ls storage.LocalStore) {
	t.Helper()
	writeRaw(t, ls, storage.LegacyKey(types.CollectionMeals),
		`[{"id":"m1","timestamp":"2024-06-01T12:00:00Z","items":["poulet"]},
		  {"timestamp":"2024-06-02T12:00:00Z","name":"sans id"},
		  {"id":"bad"}]`)
	writeRaw(t, ls, storage.LegacyKey(types.CollectionWeights),
		`{"2024-06-01":{"date":"2024-06-01","value":82.5}}`)
}

func TestMigrateTwice(t *testing.T) {
	ctx := context.Background()
	local, remote := memory.NewLocal(), memory.NewRemote()
	seedLegacy(t, local)
	r := New(local, remote, nil)

	res, err := r.Migrate(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, res.AlreadyCompleted)

	meals := res.Collections[types.CollectionMeals]
	assert.Equal(t, 3, meals.Found)
	assert.Equal(t, 2, meals.Migrated)
	assert.Equal(t, 1, meals.Skipped)
	assert.Equal(t, 1, meals.AssignedIDs)
	assert.Equal(t, 1, res.Collections[types.CollectionWeights].Migrated)
	assert.Equal(t, 3, res.Total())

	done, err := r.Completed(ctx)
	require.NoError(t, err)
	assert.True(t, done)

	localWrites, remoteWrites := local.Writes(), remote.Writes()
	again, err := r.Migrate(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, again.AlreadyCompleted)
	assert.Zero(t, again.Total())
	assert.Equal(t, localWrites, local.Writes(), "no local writes on the second call")
	assert.Equal(t, remoteWrites, remote.Writes(), "no remote writes on the second call")
}

func TestMigrateWritesBothSides(t *testing.T) {
	ctx := context.Background()
	local, remote := memory.NewLocal(), memory.NewRemote()
	seedLegacy(t, local)
	_, err := New(local, remote, nil).Migrate(ctx, "alice")
	require.NoError(t, err)

	docs, err := remote.ListCollection(ctx, "alice", types.CollectionMeals)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	weights, err := remote.ListCollection(ctx, "alice", types.CollectionWeights)
	require.NoError(t, err)
	require.Len(t, weights, 1)
	assert.Equal(t, "2024-06-01", weights[0].ID)

	recs, err := storage.ReadSnapshot(ctx, local, storage.LocalKey(types.CollectionMeals, "alice"))
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestMigrateKeepsExistingLocalRecords(t *testing.T) {
	ctx := context.Background()
	local, remote := memory.NewLocal(), memory.NewRemote()
	seedLegacy(t, local)
	writeRaw(t, local, storage.LocalKey(types.CollectionMeals, "alice"),
		`[{"id":"m1","createdAt":"2024-06-01T12:00:00Z","label":"current"},
		  {"id":"m9","createdAt":"2024-07-01T12:00:00Z"}]`)

	res, err := New(local, remote, nil).Migrate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Collections[types.CollectionMeals].Merged)

	recs, err := storage.ReadSnapshot(ctx, local, storage.LocalKey(types.CollectionMeals, "alice"))
	require.NoError(t, err)
	for _, rec := range recs {
		if rec["id"] == "m1" {
			assert.Equal(t, "current", rec["label"])
		}
	}
}

func TestMigrateKeepsExistingRemoteDocuments(t *testing.T) {
	ctx := context.Background()
	local, remote := memory.NewLocal(), memory.NewRemote()
	seedLegacy(t, local)
	current := `{"id":"m1","createdAt":"2024-06-01T12:00:00Z","items":[{"foodId":"remote1"},{"foodId":"remote2"}]}`
	require.NoError(t, remote.PutDocument(ctx, "alice", types.CollectionMeals,
		storage.Document{ID: "m1", Body: json.RawMessage(current)}))

	res, err := New(local, remote, nil).Migrate(ctx, "alice")
	require.NoError(t, err)
	meals := res.Collections[types.CollectionMeals]
	assert.Equal(t, 2, meals.Migrated)
	assert.Equal(t, 1, meals.Pushed)
	assert.Equal(t, 1, meals.Superseded)

	doc, err := remote.GetDocument(ctx, "alice", types.CollectionMeals, "m1")
	require.NoError(t, err)
	assert.JSONEq(t, current, string(doc.Body), "the remote document is authoritative")

	docs, err := remote.ListCollection(ctx, "alice", types.CollectionMeals)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	recs, err := storage.ReadSnapshot(ctx, local, storage.LocalKey(types.CollectionMeals, "alice"))
	require.NoError(t, err)
	var found bool
	for _, rec := range recs {
		if rec["id"] != "m1" {
			continue
		}
		found = true
		items, ok := rec["items"].([]any)
		require.True(t, ok)
		assert.Len(t, items, 2, "the local copy follows the remote document")
	}
	assert.True(t, found)
}

func TestMigrateAssignsStableIDs(t *testing.T) {
	rec := func() storage.Record {
		var r storage.Record
		require.NoError(t, json.Unmarshal([]byte(`{"timestamp":"2024-06-02T12:00:00Z","name":"x"}`), &r))
		return r
	}
	a, b := rec(), rec()
	require.True(t, assignID(types.CollectionMeals, a))
	require.True(t, assignID(types.CollectionMeals, b))
	assert.Equal(t, a["id"], b["id"])

	w := storage.Record{"date": "2024-06-01"}
	assert.False(t, assignID(types.CollectionWeights, w))
	assert.NotContains(t, w, "id")
}

func TestForceMigration(t *testing.T) {
	ctx := context.Background()
	local, remote := memory.NewLocal(), memory.NewRemote()
	seedLegacy(t, local)
	r := New(local, remote, nil)

	_, err := r.Migrate(ctx, "alice")
	require.NoError(t, err)
	res, err := r.ForceMigration(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, res.AlreadyCompleted)
	assert.Equal(t, 3, res.Total())

	docs, err := remote.ListCollection(ctx, "alice", types.CollectionMeals)
	require.NoError(t, err)
	assert.Len(t, docs, 2, "re-running replaces, it does not duplicate")
}

func TestMigrateRemoteFailureLeavesFlagUnset(t *testing.T) {
	ctx := context.Background()
	local, remote := memory.NewLocal(), memory.NewRemote()
	seedLegacy(t, local)
	remote.SetFault(func(op, target string) error { return storage.ErrTransientIO })
	r := New(local, remote, nil)

	_, err := r.Migrate(ctx, "alice")
	require.ErrorIs(t, err, storage.ErrTransientIO)
	done, err := r.Completed(ctx)
	require.NoError(t, err)
	assert.False(t, done)

	remote.SetFault(nil)
	res, err := r.Migrate(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, res.AlreadyCompleted)
}

func TestMigrateNothingToDo(t *testing.T) {
	r := New(memory.NewLocal(), memory.NewRemote(), nil)
	res, err := r.Migrate(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, res.Collections)
	_, err = r.Migrate(context.Background(), "")
	assert.Error(t, err)
}
