package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/mealsync/internal/storage"
	"github.com/steveyegge/mealsync/internal/types"
)

func TestLocalWriteBatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()
	require.NoError(t, l.Write(ctx, "a", []byte("1")))

	l.SetFault(func(op, target string) error {
		if op == "Write" && target == "b" {
			return storage.ErrTransientIO
		}
		return nil
	})
	err := l.WriteBatch(ctx, map[string][]byte{"a": []byte("2"), "b": []byte("2")})
	require.ErrorIs(t, err, storage.ErrTransientIO)

	got, err := l.Read(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", string(got), "failed batch must not apply any key")
	assert.Equal(t, 1, l.Writes())
}

func TestLocalReadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()
	require.NoError(t, l.Write(ctx, "k", []byte("abc")))
	got, _ := l.Read(ctx, "k")
	got[0] = 'z'
	again, _ := l.Read(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestRemoteListAndBatch(t *testing.T) {
	ctx := context.Background()
	r := NewRemote()
	require.NoError(t, r.PutBatch(ctx, "u1", types.CollectionMeals, []storage.Document{
		{ID: "m2", Body: []byte(`{"id":"m2"}`)},
		{ID: "m1", Body: []byte(`{"id":"m1"}`)},
	}))
	require.NoError(t, r.PutDocument(ctx, "u2", types.CollectionMeals, storage.Document{ID: "m9", Body: []byte(`{}`)}))

	docs, err := r.ListCollection(ctx, "u1", types.CollectionMeals)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "m1", docs[0].ID)
	assert.Equal(t, "m2", docs[1].ID)

	_, err = r.GetDocument(ctx, "u1", types.CollectionMeals, "m9")
	assert.True(t, storage.IsNotFound(err))

	err = r.PutBatch(ctx, "u1", types.CollectionMeals, []storage.Document{{ID: "ok"}, {ID: ""}})
	require.Error(t, err)
	docs, _ = r.ListCollection(ctx, "u1", types.CollectionMeals)
	assert.Len(t, docs, 2, "rejected batch must not write")

	require.NoError(t, r.DeleteDocument(ctx, "u1", types.CollectionMeals, "m1"))
	assert.Equal(t, []string{"users/u1/meals/m2", "users/u2/meals/m9"}, r.Paths())
}

func TestRemoteFault(t *testing.T) {
	ctx := context.Background()
	r := NewRemote()
	denied := errors.New("boom")
	r.SetFault(func(op, target string) error {
		if target == string(types.CollectionWeights) {
			return denied
		}
		return nil
	})
	_, err := r.ListCollection(ctx, "u1", types.CollectionWeights)
	assert.ErrorIs(t, err, denied)
	_, err = r.ListCollection(ctx, "u1", types.CollectionMeals)
	assert.NoError(t, err)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewLocal().Write(ctx, "k", nil), context.Canceled)
	_, err := NewRemote().ListCollection(ctx, "u", types.CollectionMeals)
	assert.ErrorIs(t, err, context.Canceled)
}
