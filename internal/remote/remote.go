// Package remote checks that another lanshare instance is reachable before
// the browser is redirected to it.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

const DefaultTimeout = 5 * time.Second

// ErrUnexpectedStatus is returned when the remote answers with anything but 200.
var ErrUnexpectedStatus = errors.New("remote server did not answer 200")

// Prober issues one bounded GET per call. It holds no locks, so a hanging
// remote only ever stalls the request that asked for it.
type Prober struct {
	Client  *http.Client
	Timeout time.Duration
}

func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{
		Client: &http.Client{
			Timeout: timeout,
			// The remote may redirect /browse to / while it has no folder;
			// report that as-is instead of following it.
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
		Timeout: timeout,
	}
}

// BrowseURL is the page the client gets redirected to.
func BrowseURL(host, port string) string {
	u := url.URL{Scheme: "http", Host: net.JoinHostPort(host, port), Path: "/browse"}
	return u.String()
}

// Probe GETs BrowseURL(host, port) and returns nil only for HTTP 200.
func (p *Prober) Probe(ctx context.Context, host, port string) error {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, BrowseURL(host, port), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
	return nil
}
