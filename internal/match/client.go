package match

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/DoyleJ11/zombie-proximity/pkg/types"
)

var ErrRejected = errors.New("authority rejected request")

// Authority is one request/response exchange with the match authority.
type Authority interface {
	Exchange(ctx context.Context, req Request) (Response, error)
}

// HTTPAuthority posts JSON to the authority's game endpoint.
type HTTPAuthority struct {
	URL    string
	Client *http.Client
}

func NewHTTPAuthority(url string) *HTTPAuthority {
	return &HTTPAuthority{URL: url, Client: &http.Client{Timeout: 5 * time.Second}}
}

func (a *HTTPAuthority) Exchange(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(req.Wire())
	if err != nil {
		return Response{}, err
	}
	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL, bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	hr.Header.Set("Content-Type", "application/json")

	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(hr)
	if err != nil {
		return Response{}, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return Response{}, fmt.Errorf("%w: %s: %s", ErrRejected, res.Status, bytes.TrimSpace(msg))
	}

	var wire types.MatchResponse
	if err := json.NewDecoder(res.Body).Decode(&wire); err != nil {
		return Response{}, fmt.Errorf("decode authority response: %w", err)
	}
	out, err := ResponseFromWire(wire)
	if err != nil {
		return Response{}, fmt.Errorf("decode authority response: %w", err)
	}
	if !out.Success {
		return Response{}, ErrRejected
	}
	return out, nil
}
