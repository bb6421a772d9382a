package radio

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
)

const DefaultUDPPort = 47800

// UDPLink broadcasts frames on a LAN. UDP carries no signal strength, so
// every frame is reported at the configured nominal RSSI.
type UDPLink struct {
	Port        int
	BroadcastIP string
	NominalRSSI int32
	Log         *zap.Logger

	mu   sync.Mutex
	conn *net.UDPConn
	dst  *net.UDPAddr
	wg   sync.WaitGroup
}

func (l *UDPLink) Open(rx Receiver) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return nil
	}
	if l.Log == nil {
		l.Log = zap.NewNop()
	}
	port := l.Port
	if port == 0 {
		port = DefaultUDPPort
	}
	ip := l.BroadcastIP
	if ip == "" {
		ip = net.IPv4bcast.String()
	}

	dst, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", ip, port))
	if err != nil {
		return fmt.Errorf("resolve broadcast address: %w", err)
	}
	lc := net.ListenConfig{Control: allowBroadcast}
	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen udp :%d: %w", port, err)
	}

	l.conn = pc.(*net.UDPConn)
	l.dst = dst
	l.wg.Add(1)
	go l.readLoop(l.conn, rx)
	l.Log.Info("udp link open", zap.Int("port", port), zap.String("broadcast", dst.String()))
	return nil
}

func (l *UDPLink) readLoop(conn *net.UDPConn, rx Receiver) {
	defer l.wg.Done()
	buf := make([]byte, 2048)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.Log.Debug("udp read", zap.Error(err))
			continue
		}
		rx.Signal(l.NominalRSSI)
		rx.Deliver(buf[:n])
	}
}

func (l *UDPLink) Broadcast(frame []byte) error {
	l.mu.Lock()
	conn, dst := l.conn, l.dst
	l.mu.Unlock()
	if conn == nil {
		return ErrNotOpen
	}
	_, err := conn.WriteToUDP(frame, dst)
	return err
}

func (l *UDPLink) Close() error {
	l.mu.Lock()
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()
	if conn == nil {
		return nil
	}
	err := conn.Close()
	l.wg.Wait()
	return err
}
