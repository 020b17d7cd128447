package reputation

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"

	"github.com/MrEthical07/goGuard/logging"
	"github.com/MrEthical07/goGuard/reputation/rules"
	"github.com/gobwas/glob"
	"github.com/oschwald/maxminddb-golang"
)

// DefaultASNDenylist names hosting, CDN and VPN operators whose address space
// rarely carries real browsers.
var DefaultASNDenylist = []string{
	"Fastly", "Incapsula", "Akamai", "AkamaiGslb", "Google", "Datacamp Limited",
	"Bing", "Censys", "Hetzner", "Linode", "Amazon", "AWS", "DigitalOcean", "Vultr",
	"Azure", "Alibaba", "Netlify", "IBM", "Oracle", "Scaleway", "Cloud", "VPN",
}

// Denylist matches AS organisation names by case-insensitive substring.
// Patterns compile on first use.
type Denylist struct {
	names []string

	mu       sync.Mutex
	patterns []glob.Glob
}

// NewDenylist returns a denylist over names.
func NewDenylist(names []string) *Denylist {
	return &Denylist{names: names}
}

// Match reports whether org contains any denylisted name.
func (d *Denylist) Match(org string) bool {
	if d == nil {
		return false
	}
	org = strings.ToLower(strings.TrimSpace(org))
	if org == "" {
		return false
	}
	for _, g := range d.compiled() {
		if g.Match(org) {
			return true
		}
	}
	return false
}

func (d *Denylist) compiled() []glob.Glob {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.patterns == nil {
		d.patterns = make([]glob.Glob, 0, len(d.names))
		for _, n := range d.names {
			n = strings.ToLower(strings.TrimSpace(n))
			if n == "" {
				continue
			}
			g, err := glob.Compile("*" + glob.QuoteMeta(n) + "*")
			if err != nil {
				continue
			}
			d.patterns = append(d.patterns, g)
		}
	}
	return d.patterns
}

// Lookup resolves an address to flat fields. A nil map with a nil error means
// the address is not in the database.
type Lookup interface {
	Lookup(ip net.IP) (map[string]any, error)
}

// DatabaseKind selects the record layout of an MMDB file.
type DatabaseKind int

const (
	CityDatabase DatabaseKind = iota
	ASNDatabase
)

type cityRecord struct {
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Continent struct {
		Code string `maxminddb:"code"`
	} `maxminddb:"continent"`
	Country struct {
		ISOCode string            `maxminddb:"iso_code"`
		Names   map[string]string `maxminddb:"names"`
	} `maxminddb:"country"`
	Location struct {
		Latitude  float64 `maxminddb:"latitude"`
		Longitude float64 `maxminddb:"longitude"`
		TimeZone  string  `maxminddb:"time_zone"`
	} `maxminddb:"location"`
}

type asnRecord struct {
	Number uint   `maxminddb:"autonomous_system_number"`
	Org    string `maxminddb:"autonomous_system_organization"`
}

// MMDB is a MaxMind database opened on first lookup and kept until Close.
// Lookups hold a read lock so Close never unmaps a reader in use.
type MMDB struct {
	path string
	kind DatabaseKind

	mu     sync.RWMutex
	opened bool
	reader *maxminddb.Reader
	err    error
}

// OpenMMDB returns a lazily opened database. An empty path yields a database
// whose lookups fail with ErrNoDatabase.
func OpenMMDB(path string, kind DatabaseKind) *MMDB {
	return &MMDB{path: path, kind: kind}
}

func (m *MMDB) open() error {
	m.mu.RLock()
	opened, err := m.opened, m.err
	m.mu.RUnlock()
	if opened {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.opened {
		m.opened = true
		if m.path == "" {
			m.err = ErrNoDatabase
		} else if m.reader, m.err = maxminddb.Open(m.path); m.err != nil {
			m.err = errors.Join(ErrNoDatabase, m.err)
		}
	}
	return m.err
}

// Lookup implements Lookup. After Close it fails with ErrNoDatabase.
func (m *MMDB) Lookup(ip net.IP) (map[string]any, error) {
	if err := m.open(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	r := m.reader
	if r == nil {
		return nil, ErrNoDatabase
	}

	if m.kind == ASNDatabase {
		var rec asnRecord
		_, ok, err := r.LookupNetwork(ip, &rec)
		if err != nil || !ok {
			return nil, err
		}
		return map[string]any{"asn": rec.Number, "asorg": rec.Org}, nil
	}

	var rec cityRecord
	_, ok, err := r.LookupNetwork(ip, &rec)
	if err != nil || !ok {
		return nil, err
	}
	return map[string]any{
		"city":         rec.City.Names["en"],
		"continent":    rec.Continent.Code,
		"country_code": rec.Country.ISOCode,
		"country":      rec.Country.Names["en"],
		"latitude":     rec.Location.Latitude,
		"longitude":    rec.Location.Longitude,
		"time_zone":    rec.Location.TimeZone,
	}, nil
}

// Close releases the reader. The database stays closed: later lookups fail
// with ErrNoDatabase instead of reopening the file.
func (m *MMDB) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = true
	m.err = ErrNoDatabase
	if m.reader == nil {
		return nil
	}
	err := m.reader.Close()
	m.reader = nil
	return err
}

// GeoIPConfig wires the GeoIP source.
type GeoIPConfig struct {
	City     Lookup
	ASN      Lookup
	Denylist *Denylist
	// Rules are evaluated over each database's fields.
	Rules rules.Node
	Log   logging.Sink
}

type geoIP struct {
	cfg GeoIPConfig
}

// NewGeoIP returns the local GeoIP source. It answers Unknown when neither
// database is available.
func NewGeoIP(cfg GeoIPConfig) Source {
	cfg.Log = logging.OrDiscard(cfg.Log)
	return &geoIP{cfg: cfg}
}

func (s *geoIP) Name() string { return "geoip" }

func (s *geoIP) Check(_ context.Context, ip string) Verdict {
	addr := net.ParseIP(ip)
	if addr == nil {
		return Unknown
	}

	available := false
	for _, db := range []struct {
		name   string
		lookup Lookup
	}{
		{"city", s.cfg.City},
		{"asn", s.cfg.ASN},
	} {
		if db.lookup == nil {
			continue
		}
		fields, err := db.lookup.Lookup(addr)
		if err != nil {
			s.cfg.Log.Log(db.name+" database is not available: "+err.Error(), logging.LevelWarn)
			continue
		}
		available = true
		if fields == nil {
			continue
		}

		if db.name == "asn" {
			org, _ := fields["asorg"].(string)
			if s.cfg.Denylist.Match(org) {
				return Malicious
			}
		}
		if s.cfg.Rules != nil && s.cfg.Rules.Match(fields) {
			return Malicious
		}
	}

	if !available {
		return Unknown
	}
	return Benign
}
