package ws

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/emandor/mailsift/internal/ocr"
)

// fakeConn flags overlapping writes and records deadlines.
type fakeConn struct {
	active    atomic.Int32
	overlap   atomic.Bool
	writes    atomic.Int32
	deadlines atomic.Int32
	fail      error
}

func (f *fakeConn) WriteJSON(any) error {
	if f.active.Add(1) > 1 {
		f.overlap.Store(true)
	}
	time.Sleep(time.Millisecond)
	f.active.Add(-1)
	f.writes.Add(1)
	return f.fail
}

func (f *fakeConn) SetWriteDeadline(t time.Time) error {
	if time.Until(t) <= 0 {
		return errors.New("deadline in the past")
	}
	f.deadlines.Add(1)
	return nil
}

func TestRoom(t *testing.T) {
	if got := Room("abc"); got != "harvest.room.abc" {
		t.Errorf("Room = %q", got)
	}
}

func TestNotifierWithoutSubscribers(t *testing.T) {
	if HasSubscribers("nobody") {
		t.Fatal("unexpected subscribers")
	}
	var n Notifier
	n.Progress("nobody", ocr.Progress{Done: 1, Total: 2, Percent: 50})
	n.ImageFailed("nobody", &ocr.ImageError{Filename: "x.png", Err: errors.New("bad")})
	n.Completed("nobody", map[string]any{"status": "saved"})
}

func TestNotifierSerializesWritesAcrossActions(t *testing.T) {
	conn := &fakeConn{}
	p := &peer{conn: conn}
	joinRoom(p, Room("action-a"))
	joinRoom(p, Room("action-b"))
	defer drop(p)

	if !HasSubscribers("action-a") || !HasSubscribers("action-b") {
		t.Fatal("peer should be subscribed to both actions")
	}

	var n Notifier
	var wg sync.WaitGroup
	for _, id := range []string{"action-a", "action-b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				n.Progress(id, ocr.Progress{Done: i, Total: 20})
			}
		}(id)
	}
	wg.Wait()

	if conn.overlap.Load() {
		t.Error("concurrent writes reached one connection")
	}
	if got := conn.writes.Load(); got != 40 {
		t.Errorf("writes = %d, want 40", got)
	}
	if conn.deadlines.Load() != conn.writes.Load() {
		t.Errorf("deadlines = %d, writes = %d", conn.deadlines.Load(), conn.writes.Load())
	}
}

func TestFailedWriteDropsPeer(t *testing.T) {
	p := &peer{conn: &fakeConn{fail: errors.New("i/o timeout")}}
	joinRoom(p, Room("stalled"))
	joinRoom(p, Room("other"))

	Notifier{}.Completed("stalled", nil)

	if HasSubscribers("stalled") || HasSubscribers("other") {
		t.Error("peer should be removed from every room after a failed write")
	}
}

func TestLeaveRoom(t *testing.T) {
	p := &peer{conn: &fakeConn{}}
	joinRoom(p, Room("leaving"))
	leaveRoom(p, Room("leaving"))
	if HasSubscribers("leaving") {
		t.Error("room should be empty after leave")
	}
}
