package ether

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/zombie-proximity/internal/radio"
)

// helper: receive one frame with a timeout so tests never hang
func recvFrame(t *testing.T, ch <-chan Frame, within time.Duration) Frame {
	t.Helper()
	select {
	case f, ok := <-ch:
		if !ok {
			t.Fatalf("station outbox closed unexpectedly")
		}
		return f
	case <-time.After(within):
		t.Fatalf("timed out waiting for frame")
		return Frame{}
	}
}

func recvNoFrame(t *testing.T, ch <-chan Frame, within time.Duration) {
	t.Helper()
	select {
	case f, ok := <-ch:
		if !ok {
			return
		}
		t.Fatalf("expected no frame within %v, got %+v", within, f)
	case <-time.After(within):
	}
}

func list(t *testing.T, e *Ether) []Station {
	t.Helper()
	reply := make(chan []Station, 1)
	e.Inbox() <- List{Reply: reply}
	select {
	case s := <-reply:
		return s
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for station list")
		return nil
	}
}

func join(e *Ether, id uint64, x, y float64, depth int) chan Frame {
	out := make(chan Frame, depth)
	e.Inbox() <- Join{Station: Station{ID: id, X: x, Y: y}, Outbox: out}
	return out
}

func TestPathLoss(t *testing.T) {
	cases := []struct {
		d    float64
		want int32
	}{
		{0, -40},
		{0.5, -40},
		{1, -40},
		{10, -62},
		{100, -84},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RSSI(tc.d), "d=%v", tc.d)
	}
}

func TestTransmitReachesOthersWithDistanceRSSI(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := New(ctx, nil)

	a := join(e, 1, 0, 0, 4)
	b := join(e, 2, 10, 0, 4)
	c := join(e, 3, 0, 100, 4)

	e.Inbox() <- Transmit{From: 1, Data: []byte("hello")}

	fb := recvFrame(t, b, time.Second)
	assert.Equal(t, uint64(1), fb.From)
	assert.Equal(t, []byte("hello"), fb.Data)
	assert.Equal(t, int32(-62), fb.RSSI)

	assert.Equal(t, int32(-84), recvFrame(t, c, time.Second).RSSI)
	recvNoFrame(t, a, 50*time.Millisecond)
}

func TestFramesBelowFloorAreLost(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := New(ctx, nil)

	join(e, 1, 0, 0, 4)
	far := join(e, 2, 1000, 0, 4)

	e.Inbox() <- Transmit{From: 1, Data: []byte{1}}
	recvNoFrame(t, far, 50*time.Millisecond)
}

func TestSlowStationMissesFramesButStays(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := New(ctx, nil)

	join(e, 1, 0, 0, 4)
	slow := join(e, 2, 1, 0, 1)

	e.Inbox() <- Transmit{From: 1, Data: []byte{1}}
	e.Inbox() <- Transmit{From: 1, Data: []byte{2}}
	require.Len(t, list(t, e), 2)

	assert.Equal(t, []byte{1}, recvFrame(t, slow, time.Second).Data)
	recvNoFrame(t, slow, 50*time.Millisecond)

	e.Inbox() <- Transmit{From: 1, Data: []byte{3}}
	assert.Equal(t, []byte{3}, recvFrame(t, slow, time.Second).Data)
}

func TestMoveChangesSignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := New(ctx, nil)

	join(e, 1, 0, 0, 4)
	b := join(e, 2, 10, 0, 4)

	e.Inbox() <- Move{ID: 2, X: 100, Y: 0}
	e.Inbox() <- Transmit{From: 1, Data: []byte{1}}
	assert.Equal(t, int32(-84), recvFrame(t, b, time.Second).RSSI)
}

func TestStaleLeaveKeepsReconnectedStation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := New(ctx, nil)

	join(e, 1, 0, 0, 4)
	first := join(e, 2, 1, 0, 4)
	second := join(e, 2, 1, 0, 4)

	_, ok := <-first
	assert.False(t, ok, "replaced outbox is closed")

	e.Inbox() <- Leave{ID: 2, Outbox: first}
	require.Len(t, list(t, e), 2)

	e.Inbox() <- Transmit{From: 1, Data: []byte{9}}
	assert.Equal(t, []byte{9}, recvFrame(t, second, time.Second).Data)

	e.Inbox() <- Leave{ID: 2, Outbox: second}
	assert.Len(t, list(t, e), 1)
}

func TestShutdownClosesOutboxes(t *testing.T) {
	e := New(context.Background(), nil)
	out := join(e, 1, 0, 0, 4)

	e.Inbox() <- Shutdown{}
	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("outbox not closed on shutdown")
	}
	assert.ErrorIs(t, e.Send(context.Background(), Transmit{From: 1}), ErrStopped)
}

type heard struct {
	rssi int32
	data []byte
}

// recorder pairs each Signal with the Deliver that follows it.
type recorder struct {
	mu     sync.Mutex
	rssi   int32
	frames chan heard
}

func (r *recorder) Signal(rssi int32) {
	r.mu.Lock()
	r.rssi = rssi
	r.mu.Unlock()
}

func (r *recorder) Deliver(frame []byte) {
	r.mu.Lock()
	h := heard{rssi: r.rssi, data: append([]byte(nil), frame...)}
	r.mu.Unlock()
	r.frames <- h
}

func TestLinksOverWebsocket(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := New(ctx, nil)

	srv := httptest.NewServer(Handler(e, nil))
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	a := &radio.EtherLink{URL: base + "?id=a1&x=0&y=0"}
	b := &radio.EtherLink{URL: base + "?id=b2&x=10&y=0"}
	rb := &recorder{frames: make(chan heard, 4)}
	require.NoError(t, a.Open(&recorder{frames: make(chan heard, 4)}))
	defer a.Close()
	require.NoError(t, b.Open(rb))
	defer b.Close()

	require.Eventually(t, func() bool { return len(list(t, e)) == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, a.Broadcast([]byte("beacon")))
	select {
	case h := <-rb.frames:
		assert.Equal(t, int32(-62), h.rssi)
		assert.Equal(t, []byte("beacon"), h.data)
	case <-time.After(2 * time.Second):
		t.Fatal("frame not relayed")
	}

	require.NoError(t, a.Move(110, 0))
	require.Eventually(t, func() bool { return list(t, e)[0].X == 110 }, time.Second, 5*time.Millisecond)

	require.NoError(t, a.Broadcast([]byte("again")))
	select {
	case h := <-rb.frames:
		assert.Equal(t, int32(-84), h.rssi)
	case <-time.After(2 * time.Second):
		t.Fatal("frame not relayed after move")
	}
}

func TestIdleStationStaysConnected(t *testing.T) {
	prev := pingInterval
	pingInterval = 10 * time.Millisecond
	t.Cleanup(func() { pingInterval = prev })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e := New(ctx, nil)

	srv := httptest.NewServer(Handler(e, nil))
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	a := &radio.EtherLink{URL: base + "?id=a1&x=0&y=0"}
	b := &radio.EtherLink{URL: base + "?id=b2&x=10&y=0"}
	rb := &recorder{frames: make(chan heard, 4)}
	require.NoError(t, a.Open(&recorder{frames: make(chan heard, 4)}))
	defer a.Close()
	require.NoError(t, b.Open(rb))
	defer b.Close()
	require.Eventually(t, func() bool { return len(list(t, e)) == 2 }, time.Second, 5*time.Millisecond)

	// Many ping intervals with no traffic at all.
	time.Sleep(20 * pingInterval)
	require.Len(t, list(t, e), 2)

	require.NoError(t, a.Broadcast([]byte("still here")))
	select {
	case h := <-rb.frames:
		assert.Equal(t, []byte("still here"), h.data)
	case <-time.After(2 * time.Second):
		t.Fatal("idle station lost")
	}
}

func TestHandlerRejectsBadQuery(t *testing.T) {
	e := New(context.Background(), nil)
	defer func() { e.Inbox() <- Shutdown{} }()

	for _, q := range []string{"", "?id=0", "?id=zz", "?id=1&x=left"} {
		rec := httptest.NewRecorder()
		Handler(e, nil)(rec, httptest.NewRequest("GET", "/ether"+q, nil))
		assert.Equal(t, 400, rec.Code, q)
	}
}
