package reputation

import (
	"fmt"

	"github.com/MrEthical07/goGuard/logging"
)

// DefaultSources is the lookup order used when none is configured.
var DefaultSources = []string{"ipapi", "ipintel", "stopforumspam", "geoip"}

// Deps carries what FromNames needs to build sources. HTTP.Timeout also
// bounds the Tor DNS lookup.
type Deps struct {
	HTTP                HTTPOptions
	Resolver            Resolver
	TorZone             string
	SuspectOnTorFailure bool
	GeoIP               GeoIPConfig
	Log                 logging.Sink
}

// FromNames builds sources in the given order. Entries may carry a key as
// "name:key"; for ipintel the key is the contact address.
func FromNames(names []string, deps Deps) ([]Source, error) {
	if deps.HTTP.Log == nil {
		deps.HTTP.Log = deps.Log
	}
	if deps.GeoIP.Log == nil {
		deps.GeoIP.Log = deps.Log
	}

	out := make([]Source, 0, len(names))
	for _, entry := range names {
		name, key := parseName(entry)
		switch name {
		case "ipapi":
			out = append(out, NewIPAPI(deps.HTTP))
		case "ipintel":
			out = append(out, NewIPIntel(key, deps.HTTP))
		case "stopforumspam":
			out = append(out, NewStopForumSpam(deps.HTTP))
		case "geoip":
			out = append(out, NewGeoIP(deps.GeoIP))
		case "tor_hostname":
			out = append(out, NewTorDNS(deps.Resolver, deps.TorZone, deps.HTTP.Timeout, deps.SuspectOnTorFailure, deps.Log))
		case "tor_exonerator":
			out = append(out, NewTorExonerator(deps.SuspectOnTorFailure, deps.HTTP))
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownSource, entry)
		}
	}
	return out, nil
}
