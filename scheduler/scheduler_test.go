package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 10, 15, 12, 0, 0, 0, time.UTC)

func TestAfterFiresOnce(t *testing.T) {
	clk := NewFakeClock(epoch)
	s := New(clk)
	var n atomic.Int32

	s.After("once", 10*time.Second, func() { n.Add(1) })
	require.True(t, s.Active("once"))

	clk.Advance(9 * time.Second)
	assert.Equal(t, int32(0), n.Load())

	clk.Advance(time.Second)
	assert.Equal(t, int32(1), n.Load())
	assert.False(t, s.Active("once"), "one-shot task should be removed after firing")

	clk.Advance(time.Minute)
	assert.Equal(t, int32(1), n.Load())
}

func TestEveryRepeatsUntilCancelled(t *testing.T) {
	clk := NewFakeClock(epoch)
	s := New(clk)
	var n atomic.Int32

	s.Every("tick", time.Second, func() { n.Add(1) })
	clk.Advance(5 * time.Second)
	assert.Equal(t, int32(5), n.Load())

	assert.True(t, s.Cancel("tick"))
	clk.Advance(5 * time.Second)
	assert.Equal(t, int32(5), n.Load())
}

func TestRescheduleReplacesPrevious(t *testing.T) {
	clk := NewFakeClock(epoch)
	s := New(clk)
	var first, second atomic.Int32

	s.Every("tick", time.Second, func() { first.Add(1) })
	s.Every("tick", time.Second, func() { second.Add(1) })
	clk.Advance(3 * time.Second)

	assert.Equal(t, int32(0), first.Load(), "replaced interval must not keep firing")
	assert.Equal(t, int32(3), second.Load())
	assert.Equal(t, 1, s.Len())
}

func TestCancelIsIdempotent(t *testing.T) {
	s := New(NewFakeClock(epoch))
	assert.False(t, s.Cancel("missing"))
	s.After("x", time.Second, func() {})
	assert.True(t, s.Cancel("x"))
	assert.False(t, s.Cancel("x"))
}

func TestCloseCancelsEverythingAndRefusesNewTasks(t *testing.T) {
	clk := NewFakeClock(epoch)
	s := New(clk)
	var n atomic.Int32
	s.Every("a", time.Second, func() { n.Add(1) })
	s.After("b", 2*time.Second, func() { n.Add(1) })

	s.Close()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, clk.Pending())

	s.After("c", time.Second, func() { n.Add(1) })
	clk.Advance(10 * time.Second)
	assert.Equal(t, int32(0), n.Load())
}

func TestCallbackMayReschedule(t *testing.T) {
	clk := NewFakeClock(epoch)
	s := New(clk)
	var n atomic.Int32
	var rearm func()
	rearm = func() {
		if n.Add(1) < 3 {
			s.After("poll", 20*time.Second, rearm)
		}
	}
	s.After("poll", 0, rearm)
	clk.Advance(time.Minute)
	assert.Equal(t, int32(3), n.Load())
	assert.False(t, s.Active("poll"))
}

func TestFakeClockOrdersTimers(t *testing.T) {
	clk := NewFakeClock(epoch)
	var order []string
	clk.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	clk.AfterFunc(time.Second, func() {
		order = append(order, "a")
		assert.Equal(t, epoch.Add(time.Second), clk.Now())
	})
	stopped := clk.AfterFunc(1500*time.Millisecond, func() { order = append(order, "stopped") })
	stopped.Stop()

	clk.Advance(3 * time.Second)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, epoch.Add(3*time.Second), clk.Now())
}
