package ether

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/zombie-proximity/internal/match"
	"github.com/DoyleJ11/zombie-proximity/pkg/types"
)

const (
	outboxDepth  = 32
	writeTimeout = 3 * time.Second
)

// pingInterval paces liveness checks. Stations may stay silent
// indefinitely, so reads carry no deadline.
var pingInterval = 15 * time.Second

// Handler attaches one websocket client as a station:
// /ether?id=<hex device id>&x=<m>&y=<m>.
func Handler(e *Ether, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		id, err := match.ParseDeviceID(q.Get("id"))
		if err != nil {
			http.Error(w, "bad id", http.StatusBadRequest)
			return
		}
		x, errX := parseCoord(q.Get("x"))
		y, errY := parseCoord(q.Get("y"))
		if errX != nil || errY != nil {
			http.Error(w, "bad position", http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan Frame, outboxDepth)
		interval := pingInterval
		if err := e.Send(r.Context(), Join{Station: Station{ID: id, X: x, Y: y}, Outbox: out}); err != nil {
			conn.Close(websocket.StatusGoingAway, "ether stopped")
			return
		}
		defer func() { _ = e.Send(context.Background(), Leave{ID: id, Outbox: out}) }()
		log.Info("station connected", zap.String("id", match.FormatDeviceID(id)), zap.Float64("x", x), zap.Float64("y", y))

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for f := range out {
				payload, _ := json.Marshal(types.EtherMessage{Type: types.EtherFrameMsg, Data: f.Data, RSSI: f.RSSI})
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		go func() {
			tick := time.NewTicker(interval)
			defer tick.Stop()
			for {
				select {
				case <-writeCtx.Done():
					return
				case <-tick.C:
					ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
					err := conn.Ping(ctx)
					cancel()
					if err != nil {
						log.Debug("station ping", zap.String("id", match.FormatDeviceID(id)), zap.Error(err))
						conn.CloseNow()
						return
					}
				}
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("station read", zap.String("id", match.FormatDeviceID(id)), zap.Error(err))
				}
				return
			}

			var msg types.EtherMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			switch msg.Type {
			case types.EtherFrameMsg:
				err = e.Send(r.Context(), Transmit{From: id, Data: msg.Data})
			case types.EtherMoveMsg:
				err = e.Send(r.Context(), Move{ID: id, X: msg.X, Y: msg.Y})
			}
			if err != nil {
				return
			}
		}
	}
}

func parseCoord(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
