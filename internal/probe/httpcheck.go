package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// maxDrain limits how much of a response body is read before closing it.
const maxDrain = 64 * 1024

// HTTPChecker sends GET requests to the web portal. The portal uses a self
// signed certificate, so TLS verification is disabled. Every check opens a
// new connection. Redirects are followed and only the final status counts.
type HTTPChecker struct {
	url    string
	client *http.Client
}

func NewHTTPChecker(u *url.URL, timeout time.Duration) *HTTPChecker {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // self signed certificate of the portal
		},
		DisableKeepAlives:   true,
		TLSHandshakeTimeout: timeout,
	}
	return &HTTPChecker{
		url: u.String(),
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
}

func (h *HTTPChecker) URL() string {
	return h.url
}

// Check returns nil for 200 OK, ErrUnhealthy for any other status or the
// transport error.
func (h *HTTPChecker) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %s", ErrUnhealthy, resp.Status)
	}
	return nil
}
