// Package httpclient provides the outbound HTTP client used for feeds and
// article pages: scheme checks, a redirect cap, optional private-address
// blocking at dial time, and bounded response bodies.
package httpclient

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/kliewerdaniel/News02/errors"
)

// DefaultUserAgent identifies News02 to feed servers
const DefaultUserAgent = "News02/1.0 (+https://github.com/kliewerdaniel/News02)"

// DefaultMaxBodyBytes caps article downloads
const DefaultMaxBodyBytes = 5 << 20

// Options configures a Client. Zero values take the defaults.
type Options struct {
	Timeout        time.Duration
	BlockPrivateIP bool     // Refuse loopback, RFC 1918, link-local and similar targets
	MaxRedirects   int      // Default 10
	MaxBodyBytes   int64    // Default DefaultMaxBodyBytes
	AllowedSchemes []string // Default http, https
	UserAgent      string
}

// StatusError is returned by Fetch for non-2xx responses
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return "GET " + e.URL + ": " + http.StatusText(e.StatusCode)
}

// Client is an http.Client with URL validation applied to every request
// and redirect
type Client struct {
	http           *http.Client
	allowedSchemes []string
	blockPrivateIP bool
	maxRedirects   int
	maxBodyBytes   int64
	userAgent      string
}

// New creates a Client
func New(opts Options) *Client {
	c := &Client{
		allowedSchemes: opts.AllowedSchemes,
		blockPrivateIP: opts.BlockPrivateIP,
		maxRedirects:   opts.MaxRedirects,
		maxBodyBytes:   opts.MaxBodyBytes,
		userAgent:      opts.UserAgent,
	}
	if len(c.allowedSchemes) == 0 {
		c.allowedSchemes = []string{"http", "https"}
	}
	if c.maxRedirects <= 0 {
		c.maxRedirects = 10
	}
	if c.maxBodyBytes <= 0 {
		c.maxBodyBytes = DefaultMaxBodyBytes
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}

	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if c.blockPrivateIP {
		transport.Proxy = nil
		transport.DialContext = guardedDial(dialer)
	}

	c.http = &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= c.maxRedirects {
				return errors.Newf("stopped after %d redirects", c.maxRedirects)
			}
			if err := c.validate(req.URL); err != nil {
				return errors.Wrap(err, "redirect blocked")
			}
			return nil
		},
	}
	return c
}

// HTTP returns the underlying *http.Client for libraries that take one.
// Redirects and dials stay guarded; callers validate the first URL with
// ValidateURL.
func (c *Client) HTTP() *http.Client {
	return c.http
}

// UserAgent returns the User-Agent header value sent by Fetch
func (c *Client) UserAgent() string {
	return c.userAgent
}

// ValidateURL parses rawURL and checks it against the client's rules
func (c *Client) ValidateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid URL %q", rawURL)
	}
	if err := c.validate(u); err != nil {
		return nil, err
	}
	return u, nil
}

// Do validates req.URL and sends the request
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := c.validate(req.URL); err != nil {
		return nil, errors.Wrap(err, "request blocked")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.http.Do(req)
}

// Fetch GETs rawURL and returns at most MaxBodyBytes of the body.
// Non-2xx responses return a *StatusError.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, *url.URL, error) {
	u, err := c.ValidateURL(rawURL)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to build request")
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "GET %s", u.Redacted())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &StatusError{URL: u.Redacted(), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read %s", u.Redacted())
	}

	// Final URL after redirects, for resolving relative links
	return body, resp.Request.URL, nil
}

func (c *Client) validate(u *url.URL) error {
	scheme := strings.ToLower(u.Scheme)
	allowed := false
	for _, s := range c.allowedSchemes {
		if scheme == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return errors.Newf("scheme %q not allowed (allowed: %v)", scheme, c.allowedSchemes)
	}

	if u.User != nil {
		return errors.New("URL must not carry credentials")
	}

	host := u.Hostname()
	if host == "" {
		return errors.New("URL missing hostname")
	}

	if c.blockPrivateIP {
		if isLocalhost(host) {
			return errors.New("localhost access blocked")
		}
		if addr, err := netip.ParseAddr(host); err == nil && isPrivateAddr(addr) {
			return errors.Newf("private IP address blocked: %s", host)
		}
	}
	return nil
}

// guardedDial resolves the host itself and refuses private targets, so a
// public name that resolves to an internal address is still blocked
func guardedDial(dialer *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, errors.Wrap(err, "invalid address")
		}

		addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to resolve host %q", host)
		}
		for _, a := range addrs {
			if isPrivateAddr(a) {
				return nil, errors.Newf("private IP address blocked: %s", a)
			}
		}
		if len(addrs) == 0 {
			return nil, errors.Newf("no addresses for host %q", host)
		}

		// Dial the checked address, not the name, so a second lookup cannot differ
		return dialer.DialContext(ctx, network, net.JoinHostPort(addrs[0].Unmap().String(), port))
	}
}

var specialPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"), // carrier-grade NAT
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("fec0::/10"),     // deprecated site-local
	netip.MustParsePrefix("2001:db8::/32"), // documentation
}

func isPrivateAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() || addr.IsMulticast() || addr.IsUnspecified() {
		return true
	}
	for _, p := range specialPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func isLocalhost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	return host == "localhost" ||
		host == "localhost.localdomain" ||
		strings.HasSuffix(host, ".localhost")
}
