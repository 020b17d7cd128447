package reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/logging"
	"github.com/google/uuid"
)

// DefaultTimeout bounds every outbound reputation request.
const DefaultTimeout = 3 * time.Second

const maxBody = 1 << 20

// Public endpoints.
const (
	IPAPIURL         = "http://ip-api.com/json/"
	IPIntelURL       = "https://check.getipintel.net/check.php"
	StopForumSpamURL = "https://api.stopforumspam.org/api"
)

// HTTPOptions is shared by the HTTP-backed sources.
type HTTPOptions struct {
	Client  *http.Client
	Timeout time.Duration
	// BaseURL replaces the public endpoint, mostly for tests.
	BaseURL string
	Log     logging.Sink
}

func (o HTTPOptions) withDefaults(base string) HTTPOptions {
	if o.Client == nil {
		o.Client = http.DefaultClient
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.BaseURL == "" {
		o.BaseURL = base
	}
	o.Log = logging.OrDiscard(o.Log)
	return o
}

// get fetches rawURL under the per-call timeout and returns at most maxBody
// bytes of a 2xx response.
func (o HTTPOptions) get(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBody))
}

type ipapi struct {
	opts HTTPOptions
}

// NewIPAPI returns the ip-api.com source. An address is malicious when it is
// a known proxy or hosting provider.
func NewIPAPI(opts HTTPOptions) Source {
	return &ipapi{opts: opts.withDefaults(IPAPIURL)}
}

func (s *ipapi) Name() string { return "ipapi" }

func (s *ipapi) Check(ctx context.Context, ip string) Verdict {
	body, err := s.opts.get(ctx, s.opts.BaseURL+url.PathEscape(ip)+"?fields=proxy,hosting")
	if err != nil {
		s.opts.Log.Log("ipapi lookup failed: "+err.Error(), logging.LevelWarn)
		return Unknown
	}

	var data struct {
		Proxy   *bool `json:"proxy"`
		Hosting *bool `json:"hosting"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return Unknown
	}
	if (data.Proxy != nil && *data.Proxy) || (data.Hosting != nil && *data.Hosting) {
		return Malicious
	}
	if data.Proxy == nil && data.Hosting == nil {
		return Unknown
	}
	return Benign
}

type ipintel struct {
	opts    HTTPOptions
	contact string
}

// NewIPIntel returns the getipintel.net source. contact is the address the
// service requires; a throwaway one is generated per call when empty.
func NewIPIntel(contact string, opts HTTPOptions) Source {
	return &ipintel{opts: opts.withDefaults(IPIntelURL), contact: contact}
}

func (s *ipintel) Name() string { return "ipintel" }

var contactDomains = []string{"outlook.com", "gmail.com", "icloud.com", "aol.com"}

func (s *ipintel) Check(ctx context.Context, ip string) Verdict {
	contact := s.contact
	if contact == "" {
		id := uuid.New()
		local := strings.ReplaceAll(id.String(), "-", "")[:4+int(id[0])%6]
		contact = local + "@" + contactDomains[int(id[1])%len(contactDomains)]
	}

	q := url.Values{"ip": {ip}, "contact": {contact}}
	body, err := s.opts.get(ctx, s.opts.BaseURL+"?"+q.Encode())
	if err != nil {
		s.opts.Log.Log("ipintel lookup failed: "+err.Error(), logging.LevelWarn)
		return Unknown
	}

	score, err := strconv.ParseFloat(strings.TrimSpace(string(body)), 64)
	if err != nil || score < 0 || score > 1 {
		return Unknown
	}
	if score > 0.90 {
		return Malicious
	}
	return Benign
}

type stopForumSpam struct {
	opts HTTPOptions
}

// NewStopForumSpam returns the stopforumspam.org source. An address is
// malicious when it was reported at least twice.
func NewStopForumSpam(opts HTTPOptions) Source {
	return &stopForumSpam{opts: opts.withDefaults(StopForumSpamURL)}
}

func (s *stopForumSpam) Name() string { return "stopforumspam" }

func (s *stopForumSpam) Check(ctx context.Context, ip string) Verdict {
	body, err := s.opts.get(ctx, s.opts.BaseURL+"?ip="+url.QueryEscape(ip)+"&json")
	if err != nil {
		s.opts.Log.Log("stopforumspam lookup failed: "+err.Error(), logging.LevelWarn)
		return Unknown
	}

	var data struct {
		Success int `json:"success"`
		IP      struct {
			Appears   int `json:"appears"`
			Frequency int `json:"frequency"`
		} `json:"ip"`
	}
	if err := json.Unmarshal(body, &data); err != nil || data.Success != 1 {
		return Unknown
	}
	if data.IP.Appears >= 1 && data.IP.Frequency >= 2 {
		return Malicious
	}
	return Benign
}
