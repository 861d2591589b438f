package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pion/webrtc/v4"

	"parley/internal/turnrest"
)

// fetchTURNServer retrieves time-limited TURN credentials from the
// configured endpoint. Done once, before the signaling channel matters.
func fetchTURNServer(ctx context.Context, credentialURL string) (*webrtc.ICEServer, error) {
	hc := resty.New().SetTimeout(10 * time.Second)

	var creds turnrest.Credentials
	resp, err := hc.R().
		SetContext(ctx).
		SetResult(&creds).
		Get(credentialURL)
	if err != nil {
		return nil, fmt.Errorf("fetch TURN credentials: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch TURN credentials: %s", resp.Status())
	}
	if creds.TURN == "" || creds.Username == "" {
		return nil, fmt.Errorf("fetch TURN credentials: incomplete response")
	}

	return &webrtc.ICEServer{
		URLs:       []string{creds.TURN},
		Username:   creds.Username,
		Credential: creds.Password,
	}, nil
}

// hasTURN reports whether the ICE server list already includes a TURN
// entry, in which case the credential fetch is skipped.
func hasTURN(servers []webrtc.ICEServer) bool {
	for _, s := range servers {
		for _, u := range s.URLs {
			if strings.HasPrefix(u, "turn:") || strings.HasPrefix(u, "turns:") {
				return true
			}
		}
	}
	return false
}
