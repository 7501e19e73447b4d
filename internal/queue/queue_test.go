package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTryPopEmpty(t *testing.T) {
	q := New[int]()
	_, ok := q.TryPop()
	assert.False(t, ok)
}

func TestFIFOOrder(t *testing.T) {
	q := New[int]()
	for i := 0; i < 5; i++ {
		q.Push(i)
	}
	require.Equal(t, 5, q.Len())
	for i := 0; i < 5; i++ {
		v, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, 0, q.Len())
}

func TestPopTimeoutExpires(t *testing.T) {
	q := New[string]()
	start := time.Now()
	_, ok := q.PopTimeout(30 * time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestPopTimeoutReceivesLatePush(t *testing.T) {
	q := New[string]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Push("late")
	}()
	v, ok := q.PopTimeout(time.Second)
	require.True(t, ok)
	assert.Equal(t, "late", v)
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := New[int]()
	done := make(chan int)
	go func() { done <- q.Pop() }()

	select {
	case <-done:
		t.Fatal("Pop returned before any push")
	case <-time.After(20 * time.Millisecond):
	}
	q.Push(42)
	assert.Equal(t, 42, <-done)
}

func TestPopContextCancelled(t *testing.T) {
	q := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.PopContext(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPopContextPrefersQueuedItem(t *testing.T) {
	q := New[int]()
	q.Push(7)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	v, err := q.PopContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestProducerConsumerNoLossNoDuplicate(t *testing.T) {
	const n = 10000
	q := New[int]()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.Push(i)
		}
	}()

	got := make([]int, 0, n)
	for len(got) < n {
		v, ok := q.PopTimeout(time.Second)
		require.True(t, ok, "consumer starved after %d items", len(got))
		got = append(got, v)
	}
	wg.Wait()

	for i, v := range got {
		require.Equal(t, i, v)
	}
	_, ok := q.TryPop()
	assert.False(t, ok)
}
