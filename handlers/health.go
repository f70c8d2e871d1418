package handlers

import (
	"context"
	"net/http"
	"time"
)

// healthTimeout bounds every individual health probe request, per the
// external-interfaces contract: health checks are short regardless of
// how long the overall wait job is allowed to run.
const healthTimeout = 5 * time.Second

// probeHealthy issues a GET against url and reports "up" for any
// response in the 1xx-5xx range: the probe only cares that something
// is listening and responding, not that it returned 2xx. A transport
// error (connection refused, timeout) reports down.
func probeHealthy(ctx context.Context, client *http.Client, url string) bool {
	reqCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 600
}
