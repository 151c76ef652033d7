package radio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameQueue_FIFO(t *testing.T) {
	var q FrameQueue
	require.True(t, q.Push([]byte("a")))
	require.True(t, q.Push([]byte("b")))
	assert.Equal(t, 2, q.Len())

	f, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", string(f))
	f, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, "b", string(f))

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestFrameQueue_CopiesInput(t *testing.T) {
	var q FrameQueue
	buf := []byte{1, 2, 3}
	q.Push(buf)
	buf[0] = 9

	f, _ := q.Pop()
	assert.Equal(t, []byte{1, 2, 3}, f)
}

func TestFrameQueue_FullRefusesPush(t *testing.T) {
	var q FrameQueue
	for i := 0; i < FrameQueueSize; i++ {
		require.True(t, q.Push([]byte{byte(i)}))
	}
	assert.False(t, q.Push([]byte{0xff}))
	assert.Equal(t, FrameQueueSize, q.Len())
}

func TestFrameQueue_PushDropOldest(t *testing.T) {
	var q FrameQueue
	for i := 0; i < FrameQueueSize; i++ {
		assert.False(t, q.PushDropOldest([]byte{byte(i)}))
	}
	assert.True(t, q.PushDropOldest([]byte{0xff}))

	f, _ := q.Pop()
	assert.Equal(t, []byte{1}, f, "oldest frame was evicted")
	assert.Equal(t, FrameQueueSize-1, q.Len())
}

func TestFrameQueue_Busy(t *testing.T) {
	var q FrameQueue
	threshold := FrameQueueSize * 2 / 3
	for i := 0; i < threshold-1; i++ {
		q.Push([]byte{byte(i)})
	}
	assert.False(t, q.Busy())
	q.Push([]byte{0})
	assert.True(t, q.Busy())

	q.Reset()
	assert.False(t, q.Busy())
	assert.Equal(t, 0, q.Len())
}
