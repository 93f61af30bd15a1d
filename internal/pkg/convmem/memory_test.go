package convmem

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(i int) Message {
	return Message{Role: RoleUser, Content: fmt.Sprintf("m%d", i)}
}

func TestStore_AppendBeyondCap(t *testing.T) {
	s := New(30)
	for i := 0; i < 30+7; i++ {
		s.Append("c1", msg(i))
	}

	got := s.Recent("c1", 0)
	require.Len(t, got, 30)
	assert.Equal(t, "m7", got[0].Content)
	assert.Equal(t, "m36", got[29].Content)

	// Recent with a larger limit is still bounded by the cap.
	assert.Len(t, s.Recent("c1", 100), 30)
}

func TestStore_RecentLimit(t *testing.T) {
	s := New(5)
	s.Append("c1", msg(1), msg(2), msg(3))

	got := s.Recent("c1", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "m2", got[0].Content)
	assert.Equal(t, "m3", got[1].Content)

	assert.Nil(t, s.Recent("unknown", 10))
}

func TestStore_BatchAppendOverflow(t *testing.T) {
	s := New(3)
	s.Append("c1", msg(1), msg(2), msg(3), msg(4), msg(5))

	got := s.Recent("c1", 0)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"m3", "m4", "m5"}, []string{got[0].Content, got[1].Content, got[2].Content})
}

func TestStore_ClearIsolated(t *testing.T) {
	s := New(10)
	s.Append("a", msg(1))
	s.Append("b", msg(2))

	s.Clear("a")
	assert.Equal(t, 0, s.Len("a"))
	assert.Equal(t, 1, s.Len("b"))
}

func TestStore_RecentReturnsCopy(t *testing.T) {
	s := New(10)
	s.Append("a", msg(1))
	got := s.Recent("a", 0)
	got[0].Content = "mutated"
	assert.Equal(t, "m1", s.Recent("a", 0)[0].Content)
}

func TestStore_Seed(t *testing.T) {
	s := New(2)
	applied := s.Seed("a", []Message{msg(1), msg(2), msg(3)})
	assert.True(t, applied)
	got := s.Recent("a", 0)
	require.Len(t, got, 2)
	assert.Equal(t, "m2", got[0].Content)

	assert.False(t, s.Seed("a", []Message{msg(9)}))
}

func TestStore_DefaultCap(t *testing.T) {
	assert.Equal(t, DefaultWindow, New(0).Cap())
}

func TestStore_ConcurrentConversations(t *testing.T) {
	s := New(30)
	var wg sync.WaitGroup
	for c := 0; c < 8; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", c)
			for i := 0; i < 100; i++ {
				s.Append(id, msg(i))
			}
		}(c)
	}
	wg.Wait()

	for c := 0; c < 8; c++ {
		got := s.Recent(fmt.Sprintf("c%d", c), 0)
		require.Len(t, got, 30)
		assert.Equal(t, "m70", got[0].Content)
		assert.Equal(t, "m99", got[29].Content)
	}
}
