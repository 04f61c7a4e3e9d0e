package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequest(in Input) request {
	return request{ctx: context.Background(), input: in, reply: make(chan reply, 1)}
}

func TestRequestQueue_FIFO(t *testing.T) {
	q := newRequestQueue()

	require.True(t, q.Enqueue(newTestRequest(SubmitPhoneNumber{E164: "+1"})))
	require.True(t, q.Enqueue(newTestRequest(SubmitPhoneNumber{E164: "+2"})))
	require.True(t, q.Enqueue(newTestRequest(SubmitPhoneNumber{E164: "+3"})))
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"+1", "+2", "+3"} {
		r, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, r.input.(SubmitPhoneNumber).E164)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestRequestQueue_SignalCoalesces(t *testing.T) {
	q := newRequestQueue()
	q.Enqueue(newTestRequest(NextStep{}))
	q.Enqueue(newTestRequest(NextStep{}))

	select {
	case <-q.Wait():
	default:
		t.Fatal("expected a pending signal")
	}
	select {
	case <-q.Wait():
		t.Fatal("signals should coalesce")
	default:
	}
}

func TestRequestQueue_CloseReturnsPending(t *testing.T) {
	q := newRequestQueue()
	q.Enqueue(newTestRequest(NextStep{}))
	q.Enqueue(newTestRequest(ExitFlow{}))

	pending := q.Close()
	assert.Len(t, pending, 2)
	assert.False(t, q.Enqueue(newTestRequest(NextStep{})), "enqueue after close fails")
	assert.Nil(t, q.Close(), "second close is a no-op")

	_, open := <-q.Wait()
	assert.False(t, open, "signal channel closed")
}

func TestRequestQueue_ThreadSafe(t *testing.T) {
	q := newRequestQueue()
	const producers, perProducer = 8, 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(newTestRequest(NextStep{}))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, q.Len())
}
