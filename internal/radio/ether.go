package radio

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/zombie-proximity/pkg/types"
)

const etherWriteTimeout = 2 * time.Second

// EtherLink attaches the device to the simulated radio medium served by
// cmd/server. Each delivered frame arrives with the RSSI the ether computed
// for this station.
type EtherLink struct {
	URL string
	Log *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

func (l *EtherLink) Open(rx Receiver) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return nil
	}
	if l.Log == nil {
		l.Log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	dialCtx, dialCancel := context.WithTimeout(ctx, 5*time.Second)
	defer dialCancel()
	conn, _, err := websocket.Dial(dialCtx, l.URL, nil)
	if err != nil {
		cancel()
		return err
	}

	l.conn = conn
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.readLoop(ctx, conn, rx)
	l.Log.Info("ether link open", zap.String("url", l.URL))
	return nil
}

func (l *EtherLink) readLoop(ctx context.Context, conn *websocket.Conn, rx Receiver) {
	defer close(l.done)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if ctx.Err() == nil {
					l.Log.Warn("ether read", zap.Error(err))
				}
			}
			return
		}

		var msg types.EtherMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != types.EtherFrameMsg {
			continue
		}
		rx.Signal(msg.RSSI)
		rx.Deliver(msg.Data)
	}
}

func (l *EtherLink) write(msg types.EtherMessage) error {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn == nil {
		return ErrNotOpen
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), etherWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

func (l *EtherLink) Broadcast(frame []byte) error {
	return l.write(types.EtherMessage{Type: types.EtherFrameMsg, Data: frame})
}

// Move reports a new position for this station.
func (l *EtherLink) Move(x, y float64) error {
	return l.write(types.EtherMessage{Type: types.EtherMoveMsg, X: x, Y: y})
}

func (l *EtherLink) Close() error {
	l.mu.Lock()
	conn, cancel, done := l.conn, l.cancel, l.done
	l.conn = nil
	l.mu.Unlock()
	if conn == nil {
		return nil
	}
	err := conn.Close(websocket.StatusNormalClosure, "bye")
	cancel()
	<-done
	return err
}
