package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/DoyleJ11/zombie-proximity/internal/authority"
	"github.com/DoyleJ11/zombie-proximity/internal/match"
	"github.com/DoyleJ11/zombie-proximity/internal/role"
	"github.com/DoyleJ11/zombie-proximity/pkg/types"
)

const maxBody = 4 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func rejected() types.MatchResponse {
	return types.MatchResponse{Role: role.None.String(), Success: false}
}

// ReportGame answers a device sync.
func ReportGame(a *authority.Authority, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var wire types.MatchRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&wire); err != nil {
			writeJSON(w, http.StatusBadRequest, rejected())
			return
		}
		req, err := match.RequestFromWire(wire)
		if err != nil {
			log.Debug("bad report", zap.String("id", wire.ID), zap.Error(err))
			writeJSON(w, http.StatusBadRequest, rejected())
			return
		}

		resp, err := a.Report(r.Context(), req)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, rejected())
			return
		}
		writeJSON(w, http.StatusOK, resp.Wire())
	}
}

func StartMatch(a *authority.Authority) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := a.Start(r.Context())
		if err != nil {
			http.Error(w, "failed to start match", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusCreated, struct {
			MatchID string `json:"match_id"`
		}{MatchID: id})
	}
}

func GetMatch(a *authority.Authority) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := a.View(r.Context())
		if err != nil {
			http.Error(w, "authority unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
