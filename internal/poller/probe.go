package poller

import (
	"context"
	"net"
	"net/http"
	"time"
)

// probeTimeout caps a single probe attempt.
const probeTimeout = 2 * time.Second

// WebPortProbe reports up when url answers with any HTTP response.
func WebPortProbe(url string) Probe {
	client := &http.Client{
		Timeout: probeTimeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}
}

// TCPProbe reports up when a TCP connection to addr can be established.
func TCPProbe(addr string) Probe {
	return func(ctx context.Context) bool {
		ctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}
}
