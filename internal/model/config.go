package model

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultHost   = "localhost"
	DefaultPort   = 47990
	DefaultBinary = "sunshine"

	DefaultBackoff       = 5 * time.Second
	DefaultProbeInterval = 10 * time.Second
	DefaultProbeTimeout  = 5 * time.Second
	DefaultJoinTimeout   = 15 * time.Second
)

// Config holds everything the supervisor needs for one run. There is no
// config file, values come from DefaultConfig and the command line.
type Config struct {
	Host    string // bare hostname or a URL with scheme, e.g. https://host
	Port    uint16
	Binary  string // server executable, looked up in $PATH
	Verbose bool

	Backoff       time.Duration // pause between attempts
	ProbeInterval time.Duration // pause between two web portal probes
	ProbeTimeout  time.Duration // single web portal request
	JoinTimeout   time.Duration // upper bound for probes to finish after kill
}

func DefaultConfig() Config {
	return Config{
		Host:          DefaultHost,
		Port:          DefaultPort,
		Binary:        DefaultBinary,
		Backoff:       DefaultBackoff,
		ProbeInterval: DefaultProbeInterval,
		ProbeTimeout:  DefaultProbeTimeout,
		JoinTimeout:   DefaultJoinTimeout,
	}
}

// ParsePort parses a decimal TCP port. Port 0 is rejected.
func ParsePort(s string) (uint16, error) {
	p, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPort, s)
	}
	if p == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPort, s)
	}
	return uint16(p), nil
}

// Validate returns all problems found in c joined together.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Host) == "" {
		errs = append(errs, errors.New("host is empty"))
	}
	if c.Port == 0 {
		errs = append(errs, ErrInvalidPort)
	}
	if strings.TrimSpace(c.Binary) == "" {
		errs = append(errs, errors.New("binary is empty"))
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"backoff", c.Backoff},
		{"probe interval", c.ProbeInterval},
		{"probe timeout", c.ProbeTimeout},
		{"join timeout", c.JoinTimeout},
	} {
		if d.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", d.name, d.value))
		}
	}
	if len(errs) == 0 {
		if _, err := c.ProbeURL(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ProbeURL returns the web portal URL probed after the server is ready.
// A bare host gets the http scheme and Port. When Host is already a URL its
// scheme is kept, and a port given in Host wins over Port.
func (c Config) ProbeURL() (*url.URL, error) {
	host := strings.TrimSpace(c.Host)
	if !strings.Contains(host, "://") {
		hostname, err := bareHostname(host)
		if err != nil {
			return nil, err
		}
		return &url.URL{
			Scheme: "http",
			Host:   net.JoinHostPort(hostname, strconv.Itoa(int(c.Port))),
			Path:   "/",
		}, nil
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHost, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidHost, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q has no hostname", ErrInvalidHost, host)
	}
	if u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(int(c.Port)))
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u, nil
}

// bareHostname checks a HOST given without a scheme. It is a name or an IP
// address, IPv6 optionally in brackets. A port or a path needs the URL form.
func bareHostname(host string) (string, error) {
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = host[1 : len(host)-1]
		if _, err := netip.ParseAddr(host); err != nil || !strings.Contains(host, ":") {
			return "", fmt.Errorf("%w: %q is not an IPv6 address", ErrInvalidHost, host)
		}
	}
	if strings.ContainsAny(host, "/%?#@[] \t\n") {
		return "", fmt.Errorf("%w: %q, use http://host:port/path to set a port or a path", ErrInvalidHost, host)
	}
	if strings.Contains(host, ":") {
		if _, err := netip.ParseAddr(host); err != nil {
			return "", fmt.Errorf("%w: %q, use http://host:port to set a port", ErrInvalidHost, host)
		}
	}
	return host, nil
}
