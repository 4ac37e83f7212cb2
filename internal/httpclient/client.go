// Package httpclient provides the outbound HTTP client used for the directory,
// the asset registry and the callback receiver, with proxy support.
package httpclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MacJediWizard/orgwarden/internal/config"
	"golang.org/x/net/proxy"
)

// DefaultTimeout bounds every outbound request unless Options.Timeout is set.
const DefaultTimeout = 30 * time.Second

// Options configures the outbound client.
type Options struct {
	Timeout     time.Duration
	ProxyConfig *config.ProxyConfig
	// UserAgent is sent on every request that does not set its own.
	UserAgent string
}

// New builds the client shared by all integrations.
func New(opts Options) (*http.Client, error) {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	if cfg := opts.ProxyConfig; cfg != nil && cfg.HasProxy() {
		if err := applyProxy(transport, cfg); err != nil {
			return nil, fmt.Errorf("configure proxy: %w", err)
		}
	}

	var rt http.RoundTripper = transport
	if opts.UserAgent != "" {
		rt = &userAgentTransport{next: transport, agent: opts.UserAgent}
	}
	return &http.Client{Timeout: opts.Timeout, Transport: rt}, nil
}

type userAgentTransport struct {
	next  http.RoundTripper
	agent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.next.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.agent)
	return t.next.RoundTrip(r)
}

// applyProxy routes the transport through SOCKS5 when configured, through
// the HTTP proxy otherwise.
func applyProxy(transport *http.Transport, cfg *config.ProxyConfig) error {
	if cfg.SOCKS5Proxy != "" {
		dial, err := socks5Dialer(cfg.SOCKS5Proxy)
		if err != nil {
			return err
		}
		transport.DialContext = dial
		return nil
	}

	proxyURL, err := url.Parse(cfg.HTTPProxy)
	if err != nil {
		return fmt.Errorf("parse HTTP proxy URL: %w", err)
	}
	bypass := parseNoProxy(cfg.NoProxy)
	transport.Proxy = func(req *http.Request) (*url.URL, error) {
		if bypass.matches(req.URL.Host) {
			return nil, nil
		}
		return proxyURL, nil
	}
	return nil
}

func socks5Dialer(rawURL string) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse SOCKS5 proxy URL: %w", err)
	}

	var auth *proxy.Auth
	if u.User != nil {
		password, _ := u.User.Password()
		auth = &proxy.Auth{User: u.User.Username(), Password: password}
	}

	dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("create SOCKS5 dialer: %w", err)
	}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}, nil
}

// noProxyList holds lowercased NO_PROXY entries. "*" bypasses everything,
// ".example.com" and "example.com" both cover subdomains.
type noProxyList []string

func parseNoProxy(hosts string) noProxyList {
	var list noProxyList
	for _, entry := range strings.Split(hosts, ",") {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry != "" {
			list = append(list, entry)
		}
	}
	return list
}

func (l noProxyList) matches(hostport string) bool {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		host = hostport
	}
	host = strings.ToLower(host)

	for _, entry := range l {
		switch {
		case entry == "*", entry == host:
			return true
		case strings.HasPrefix(entry, "."):
			if strings.HasSuffix(host, entry) {
				return true
			}
		case strings.HasSuffix(host, "."+entry):
			return true
		}
	}
	return false
}

// Describe summarizes the proxy settings for logging with credentials masked.
func Describe(cfg *config.ProxyConfig) string {
	if cfg == nil || !cfg.HasProxy() {
		return "direct"
	}

	var parts []string
	if cfg.SOCKS5Proxy != "" {
		parts = append(parts, "socks5="+redactURL(cfg.SOCKS5Proxy))
	}
	if cfg.HTTPProxy != "" {
		parts = append(parts, "http="+redactURL(cfg.HTTPProxy))
	}
	if cfg.NoProxy != "" {
		parts = append(parts, "no_proxy="+cfg.NoProxy)
	}
	return strings.Join(parts, " ")
}

func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "[UNPARSEABLE]"
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
	}
	return u.String()
}
