package assets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"
)

const maxFetchBytes = 20 << 20

// Fetcher returns the raw bytes behind a source reference.
type Fetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// ObjectReader is the slice of the storage layer the resolver needs.
type ObjectReader interface {
	Download(ctx context.Context, bucket, name string) ([]byte, error)
}

// ErrBlockedAddress is returned when a fetch would reach a loopback, private
// or link-local address, or a host outside the allowlist.
var ErrBlockedAddress = errors.New("address not allowed")

type HTTPFetcher struct {
	client       *http.Client
	timeout      time.Duration
	allowedHosts map[string]bool
	allowPrivate bool
}

type FetchOption func(*HTTPFetcher)

// WithAllowedHosts limits fetches to the named hosts. An empty list allows
// any public host.
func WithAllowedHosts(hosts ...string) FetchOption {
	return func(f *HTTPFetcher) {
		for _, h := range hosts {
			if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
				f.allowedHosts[h] = true
			}
		}
	}
}

// WithPrivateNetworks lets fetches reach loopback and private addresses.
func WithPrivateNetworks(on bool) FetchOption {
	return func(f *HTTPFetcher) { f.allowPrivate = on }
}

func NewHTTPFetcher(timeout time.Duration, opts ...FetchOption) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	f := &HTTPFetcher{timeout: timeout, allowedHosts: map[string]bool{}}
	for _, opt := range opts {
		opt(f)
	}
	dialer := &net.Dialer{Timeout: timeout, Control: f.checkDial}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	f.client = &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("too many redirects")
			}
			return f.checkHost(req.URL)
		},
	}
	return f
}

func (f *HTTPFetcher) checkHost(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrBlockedAddress, u.Scheme)
	}
	if len(f.allowedHosts) > 0 && !f.allowedHosts[strings.ToLower(u.Hostname())] {
		return fmt.Errorf("%w: host %q", ErrBlockedAddress, u.Hostname())
	}
	return nil
}

// checkDial runs after name resolution, so it sees the address actually
// dialled.
func (f *HTTPFetcher) checkDial(_, address string, _ syscall.RawConn) error {
	if f.allowPrivate {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if !publicAddr(addr.Unmap()) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, addr)
	}
	return nil
}

func publicAddr(addr netip.Addr) bool {
	return addr.IsGlobalUnicast() && !addr.IsPrivate() && !addr.IsLoopback() && !addr.IsLinkLocalUnicast()
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if err := f.checkHost(req.URL); err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(raw) > maxFetchBytes {
		return nil, errors.New("response exceeds max size")
	}
	if len(raw) == 0 {
		return nil, errors.New("empty response")
	}
	return raw, nil
}

// Resolver understands the three kinds of reference stored on records:
// inline data URLs, storage://bucket/name references and plain URLs. Plain
// URLs under the storage public base are read from storage directly.
type Resolver struct {
	HTTP          Fetcher
	Objects       ObjectReader
	PublicBaseURL string
}

func (r *Resolver) Fetch(ctx context.Context, source string) ([]byte, error) {
	source = strings.TrimSpace(source)
	switch {
	case source == "":
		return nil, errors.New("empty source")
	case strings.HasPrefix(source, "data:"):
		raw, _, err := DecodeDataURL(source)
		return raw, err
	}
	if bucket, name, ok := r.objectRef(source); ok {
		if r.Objects == nil {
			return nil, errors.New("no storage configured")
		}
		return r.Objects.Download(ctx, bucket, name)
	}
	if r.HTTP == nil {
		return nil, errors.New("no http fetcher configured")
	}
	return r.HTTP.Fetch(ctx, source)
}

func (r *Resolver) objectRef(source string) (string, string, bool) {
	if rest, ok := strings.CutPrefix(source, "storage://"); ok {
		return splitObjectPath(rest)
	}
	base := strings.TrimRight(r.PublicBaseURL, "/")
	if base != "" {
		if rest, ok := strings.CutPrefix(source, base+"/"); ok {
			return splitObjectPath(rest)
		}
	}
	return "", "", false
}

func splitObjectPath(path string) (string, string, bool) {
	bucket, name, ok := strings.Cut(strings.TrimLeft(path, "/"), "/")
	if !ok || bucket == "" || name == "" {
		return "", "", false
	}
	return bucket, name, true
}

// DecodeDataURL decodes a base64 data URL and returns its payload and the
// declared mime type.
func DecodeDataURL(value string) ([]byte, string, error) {
	raw := strings.TrimSpace(value)
	if !strings.HasPrefix(raw, "data:") {
		return nil, "", errors.New("invalid data url prefix")
	}
	comma := strings.Index(raw, ",")
	if comma <= 5 {
		return nil, "", errors.New("invalid data url payload")
	}
	meta := raw[5:comma]
	if !strings.HasSuffix(strings.ToLower(meta), ";base64") {
		return nil, "", errors.New("data url must be base64")
	}
	mime := strings.TrimSpace(meta[:len(meta)-len(";base64")])
	if mime == "" {
		return nil, "", errors.New("missing data url mime type")
	}
	decoded, err := base64.StdEncoding.DecodeString(raw[comma+1:])
	if err != nil {
		return nil, "", errors.New("unable to decode data url")
	}
	if len(decoded) == 0 {
		return nil, "", errors.New("empty data url content")
	}
	return decoded, mime, nil
}
