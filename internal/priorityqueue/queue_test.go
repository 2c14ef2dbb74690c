package priorityqueue

import (
	"testing"

	"github.com/stretchr/testify/require"

	"photocatalog/internal/model"
)

func TestFIFOWithinPriority(t *testing.T) {
	q := New()
	q.Enqueue(Entry{ID: "a", Priority: model.BACKGROUND})
	q.Enqueue(Entry{ID: "b", Priority: model.BACKGROUND})
	q.Enqueue(Entry{ID: "c", Priority: model.BACKGROUND})

	for _, want := range []string{"a", "b", "c"} {
		e, ok := q.Dequeue()
		require.True(t, ok)
		require.Equal(t, want, e.ID)
	}
	_, ok := q.Dequeue()
	require.False(t, ok)
}

func TestPriorityPreemption(t *testing.T) {
	q := New()
	q.Enqueue(Entry{ID: "a", Priority: model.BACKGROUND})
	q.Enqueue(Entry{ID: "b", Priority: model.VISIBLE})

	e, ok := q.Dequeue()
	require.True(t, ok)
	require.Equal(t, "b", e.ID, "VISIBLE must be served before BACKGROUND regardless of enqueue order")
}

func TestEnqueueExistingOnlyUpdatesPriority(t *testing.T) {
	q := New()
	producer := func() ([]byte, error) { return []byte("original"), nil }
	q.Enqueue(Entry{ID: "a", Priority: model.BACKGROUND, Bytes: producer})
	q.Enqueue(Entry{ID: "a", Priority: model.VISIBLE, Bytes: nil})

	require.Equal(t, 1, q.Size())
	e, ok := q.Dequeue()
	require.True(t, ok)
	require.Equal(t, model.VISIBLE, e.Priority)
	b, err := e.Bytes()
	require.NoError(t, err)
	require.Equal(t, "original", string(b), "producer must not be replaced by a bare priority update")
}

func TestUpdatePriorityNoOpWhenAbsent(t *testing.T) {
	q := New()
	q.UpdatePriority("missing", model.VISIBLE)
	require.Equal(t, 0, q.Size())
}

func TestRemove(t *testing.T) {
	q := New()
	q.Enqueue(Entry{ID: "a", Priority: model.BACKGROUND})
	q.Remove("a")
	require.False(t, q.Contains("a"))
	require.Equal(t, 0, q.Size())
}

func TestRemoveWhere(t *testing.T) {
	q := New()
	q.Enqueue(Entry{ID: "a", Priority: model.BACKGROUND})
	q.Enqueue(Entry{ID: "b", Priority: model.VISIBLE})
	q.Enqueue(Entry{ID: "c", Priority: model.BACKGROUND})

	removed := q.RemoveWhere(func(e Entry) bool { return e.Priority == model.BACKGROUND })
	require.Equal(t, 2, removed)
	require.Equal(t, 1, q.Size())
	require.True(t, q.Contains("b"))
}

func TestSizeMatchesIndex(t *testing.T) {
	q := New()
	for i, id := range []string{"a", "b", "c", "d"} {
		q.Enqueue(Entry{ID: id, Priority: model.Priorities[i%len(model.Priorities)]})
	}
	require.Equal(t, 4, q.Size())
	q.Dequeue()
	require.Equal(t, 3, q.Size())
}
