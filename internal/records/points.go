package records

type Band uint8

const (
	BandOut Band = iota
	BandFar
	BandMiddle
	BandNear
)

func (b Band) String() string {
	switch b {
	case BandFar:
		return "far"
	case BandMiddle:
		return "middle"
	case BandNear:
		return "near"
	default:
		return "out"
	}
}

// RssiToPoints picks the value the peer projects at the band its signal
// falls in. The strongest band (above Close) uses the Near field.
func RssiToPoints(p Peer, t Thresholds) (int32, Band) {
	switch {
	case p.RSSI < t.Far:
		return 0, BandOut
	case p.RSSI > t.Close:
		return p.HitPoints.Near, BandNear
	case p.RSSI > t.Middle:
		return p.HitPoints.Middle, BandMiddle
	default:
		return p.HitPoints.Far, BandFar
	}
}
