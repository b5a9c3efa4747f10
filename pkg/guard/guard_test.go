package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryWriteSkipsWhileHeld(t *testing.T) {
	g := New(0)

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.Write(func(v *int) {
			close(held)
			<-release
			*v = 1
		})
	}()
	<-held

	called := false
	ok := g.TryWrite(func(v *int) { called = true })
	assert.False(t, ok)
	assert.False(t, called)

	ok = g.TryRead(func(v *int) { called = true })
	assert.False(t, ok)
	assert.False(t, called)

	close(release)
	<-done

	var got int
	require.True(t, g.TryRead(func(v *int) { got = *v }))
	assert.Equal(t, 1, got)
}

func TestReadersShareLock(t *testing.T) {
	g := New("a")

	g.Read(func(outer *string) {
		ok := g.TryRead(func(inner *string) {
			assert.Equal(t, "a", *inner)
		})
		assert.True(t, ok)
		assert.False(t, g.TryWrite(func(*string) {}))
	})
}

func TestBlockingWriteWaits(t *testing.T) {
	g := New(0)

	held := make(chan struct{})
	release := make(chan struct{})
	go g.Read(func(*int) {
		close(held)
		<-release
	})
	<-held

	done := make(chan struct{})
	go func() {
		g.Write(func(v *int) { *v = 7 })
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("write finished while a reader held the lock")
	default:
	}
	close(release)
	<-done

	g.Read(func(v *int) {
		if *v != 7 {
			t.Fatalf("value: got %d want %d", *v, 7)
		}
	})
}
