package types

// Device -> authority, posted as JSON on every sync.
type MatchRequest struct {
	ID      string  `json:"id"` // hex device id
	Role    string  `json:"role"`
	Status  string  `json:"status"`
	Health  int32   `json:"health"`
	Battery float64 `json:"battery"`
	Comment string  `json:"comment,omitempty"`
}

// Authority -> device. Durations are whole seconds.
type MatchResponse struct {
	GameDuration int64  `json:"game_duration"` // seconds until the match ends
	GameTimeout  int64  `json:"game_timeout"`  // seconds until the match starts
	Role         string `json:"role"`
	Status       string `json:"status"`
	Success      bool   `json:"success"`
}

// Admin view of the match, served by GET /match.
type MatchView struct {
	MatchID    string       `json:"match_id,omitempty"`
	Status     string       `json:"status"`
	StartsInS  int64        `json:"starts_in_s"`
	RemainingS int64        `json:"remaining_s"`
	Devices    []DeviceView `json:"devices"`
}

type DeviceView struct {
	ID       string  `json:"id"`
	Role     string  `json:"role"`
	Status   string  `json:"status"`
	Health   int32   `json:"health"`
	Battery  float64 `json:"battery"`
	Comment  string  `json:"comment,omitempty"`
	LastSeen int64   `json:"last_seen_unix_ms"`
}
