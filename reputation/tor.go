package reputation

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/logging"
)

// Tor endpoints.
const (
	DefaultTorZone = "dnsel.torproject.org"
	ExoneratorURL  = "https://metrics.torproject.org/exonerator.html"

	torListed          = "127.0.0.2"
	exoneratorMarker   = "Result is positive"
	exoneratorUA       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.3"
	exoneratorLookback = 48 * time.Hour
)

// Resolver is the subset of *net.Resolver used by the DNS source.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

type torDNS struct {
	resolver Resolver
	zone     string
	timeout  time.Duration
	suspect  bool
	log      logging.Sink
}

// NewTorDNS returns a DNSBL source for Tor exit relays. Only IPv4 addresses
// are checked. A timeout of zero means DefaultTimeout. With suspect set,
// resolver failures other than NXDOMAIN count as positive.
func NewTorDNS(resolver Resolver, zone string, timeout time.Duration, suspect bool, sink logging.Sink) Source {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if zone == "" {
		zone = DefaultTorZone
	}
	return &torDNS{
		resolver: resolver,
		zone:     strings.TrimSuffix(zone, "."),
		timeout:  timeout,
		suspect:  suspect,
		log:      logging.OrDiscard(sink),
	}
}

func (s *torDNS) Name() string { return "tor_hostname" }

func (s *torDNS) Check(ctx context.Context, ip string) Verdict {
	v4 := net.ParseIP(ip).To4()
	if v4 == nil {
		return Unknown
	}

	lctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	addrs, err := s.resolver.LookupHost(lctx, reverseIPv4(v4)+"."+s.zone)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return Benign
		}
		if ctx.Err() != nil {
			return Unknown
		}
		s.log.Log("tor dns lookup failed: "+err.Error(), logging.LevelError)
		if s.suspect {
			return Suspected
		}
		return Unknown
	}

	for _, a := range addrs {
		if a == torListed {
			return Malicious
		}
	}
	return Benign
}

func reverseIPv4(ip net.IP) string {
	parts := strings.Split(ip.String(), ".")
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

type torExonerator struct {
	opts    HTTPOptions
	suspect bool
	now     func() time.Time
}

// NewTorExonerator returns the ExoneraTor source, which reports whether ip
// ran a Tor relay two days ago. With suspect set, timeouts and transport
// failures count as positive.
func NewTorExonerator(suspect bool, opts HTTPOptions) Source {
	return &torExonerator{opts: opts.withDefaults(ExoneratorURL), suspect: suspect, now: time.Now}
}

func (s *torExonerator) Name() string { return "tor_exonerator" }

func (s *torExonerator) Check(ctx context.Context, ip string) Verdict {
	q := url.Values{
		"ip":        {ip},
		"timestamp": {s.now().Add(-exoneratorLookback).Format("2006-01-02")},
		"lang":      {"en"},
	}

	lctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(lctx, http.MethodGet, s.opts.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Unknown
	}
	req.Header.Set("Range", "bytes=0-")
	req.Header.Set("User-Agent", exoneratorUA)

	resp, err := s.opts.Client.Do(req)
	if err != nil {
		return s.failed(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.opts.Log.Log("exonerator returned "+resp.Status, logging.LevelWarn)
		return Unknown
	}

	found, err := scanFor(io.LimitReader(resp.Body, maxBody), []byte(exoneratorMarker))
	if found {
		return Malicious
	}
	if err != nil {
		return s.failed(ctx, err)
	}
	return Benign
}

func (s *torExonerator) failed(ctx context.Context, err error) Verdict {
	if ctx.Err() != nil {
		return Unknown
	}
	s.opts.Log.Log("exonerator lookup failed: "+err.Error(), logging.LevelError)
	if s.suspect {
		return Suspected
	}
	return Unknown
}

// scanFor reads r in small chunks and stops as soon as marker is seen.
func scanFor(r io.Reader, marker []byte) (bool, error) {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 512)
	for {
		n, err := r.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if bytes.Contains(buf, marker) {
			return true, nil
		}
		if keep := len(marker) - 1; len(buf) > keep {
			buf = append(buf[:0], buf[len(buf)-keep:]...)
		}
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
}
