package types

const (
	EtherFrameMsg = "frame"
	EtherMoveMsg  = "move"
)

// EtherMessage travels over the simulated radio medium's websocket.
// Stations send "frame" (Data) and "move" (X, Y); the ether delivers
// "frame" with the RSSI it computed for the receiving station.
type EtherMessage struct {
	Type string  `json:"type"`
	Data []byte  `json:"data,omitempty"`
	RSSI int32   `json:"rssi,omitempty"`
	X    float64 `json:"x,omitempty"`
	Y    float64 `json:"y,omitempty"`
}
