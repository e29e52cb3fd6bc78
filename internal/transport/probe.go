package transport

import (
	"context"
	"io"
	"net/http"
	"time"

	"lectern/internal/services"
)

// probeTimeout bounds each path check so a black-holed proxy cannot stall
// startup.
const probeTimeout = 10 * time.Second

// ProbeResult reports how each path fared against the probe URL.
type ProbeResult struct {
	ProxyOK       bool
	ProxyLatency  time.Duration
	DirectOK      bool
	DirectLatency time.Duration
	ProxyFirst    bool
}

// Probe checks the probe URL over both paths concurrently, commits the
// faster working path as the preferred one, and returns the measurements.
// When neither path can reach the portal it returns ErrConnectivity and
// leaves the current preference untouched.
func (c *Client) Probe(ctx context.Context, probeURL string) (ProbeResult, error) {
	c.mu.Lock()
	proxied, direct := c.proxied, c.direct
	c.mu.Unlock()

	type outcome struct {
		ok      bool
		latency time.Duration
	}
	probePath := func(client *http.Client, out chan<- outcome) {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		start := time.Now()
		req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, probeURL, nil)
		if err != nil {
			out <- outcome{}
			return
		}
		req.Header.Set("User-Agent", c.userAgent)
		resp, err := client.Do(req)
		if err != nil {
			out <- outcome{}
			return
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		out <- outcome{ok: true, latency: time.Since(start)}
	}

	proxyCh := make(chan outcome, 1)
	directCh := make(chan outcome, 1)
	go probePath(proxied, proxyCh)
	go probePath(direct, directCh)
	proxyOut := <-proxyCh
	directOut := <-directCh

	result := ProbeResult{
		ProxyOK:       proxyOut.ok,
		ProxyLatency:  proxyOut.latency,
		DirectOK:      directOut.ok,
		DirectLatency: directOut.latency,
	}
	switch {
	case proxyOut.ok && directOut.ok:
		result.ProxyFirst = proxyOut.latency <= directOut.latency
	case proxyOut.ok:
		result.ProxyFirst = true
	case directOut.ok:
		result.ProxyFirst = false
	default:
		return result, services.Wrap(services.ErrConnectivity, "probe", "portal unreachable on both paths", nil)
	}

	c.PreferProxy(result.ProxyFirst)
	c.logger.Info("connectivity probe",
		"proxy_ok", result.ProxyOK,
		"direct_ok", result.DirectOK,
		"proxy_first", result.ProxyFirst)
	return result, nil
}
