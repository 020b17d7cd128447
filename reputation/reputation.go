package reputation

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"

	"github.com/MrEthical07/goGuard/logging"
	"golang.org/x/sync/errgroup"
)

// Verdict is a single source's opinion about an address.
type Verdict int

const (
	// Unknown means the source had no usable answer.
	Unknown Verdict = iota
	// Benign means the source answered and found nothing.
	Benign
	// Malicious means the source flagged the address.
	Malicious
	// Suspected is a policy positive: the lookup failed in a way that is
	// treated as malicious. It is never cached.
	Suspected
)

// Positive reports whether v blocks the request.
func (v Verdict) Positive() bool {
	return v == Malicious || v == Suspected
}

func (v Verdict) String() string {
	switch v {
	case Benign:
		return "benign"
	case Malicious:
		return "malicious"
	case Suspected:
		return "suspected"
	default:
		return "unknown"
	}
}

// Source is one reputation provider.
type Source interface {
	Name() string
	Check(ctx context.Context, ip string) Verdict
}

// Result is the aggregated answer for one address.
type Result struct {
	Malicious bool
	// Source names the first source that flagged the address.
	Source string
	Verdict Verdict
}

var (
	// ErrUnknownSource is returned by FromNames for unrecognised names.
	ErrUnknownSource = errors.New("unknown reputation source")
	// ErrNoDatabase is returned by a GeoIP lookup whose database is missing.
	ErrNoDatabase = errors.New("geoip database not available")
)

// Aggregator consults sources in order and reports the first positive.
type Aggregator struct {
	sources  []Source
	parallel bool
	log      logging.Sink
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithParallel fans lookups out concurrently. The first positive cancels the
// rest, so Result.Source names the fastest positive rather than the first in
// configured order.
func WithParallel(parallel bool) AggregatorOption {
	return func(a *Aggregator) {
		a.parallel = parallel
	}
}

// WithLogger sets the sink that receives positive hits.
func WithLogger(sink logging.Sink) AggregatorOption {
	return func(a *Aggregator) {
		a.log = logging.OrDiscard(sink)
	}
}

// NewAggregator returns an aggregator over sources.
func NewAggregator(sources []Source, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{sources: sources, log: logging.Discard}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Sources returns the configured source names in order.
func (a *Aggregator) Sources() []string {
	names := make([]string, 0, len(a.sources))
	for _, s := range a.sources {
		names = append(names, s.Name())
	}
	return names
}

// Check reports whether any source flags ip. A non-malicious result is only
// returned after every source answered. Unparsable addresses are not
// malicious. The only error is the context's.
func (a *Aggregator) Check(ctx context.Context, ip string) (Result, error) {
	if net.ParseIP(ip) == nil || len(a.sources) == 0 {
		return Result{}, nil
	}
	if a.parallel {
		return a.checkParallel(ctx, ip)
	}

	for _, s := range a.sources {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if v := s.Check(ctx, ip); v.Positive() {
			a.log.Log("ip flagged by "+s.Name()+" ("+v.String()+")", logging.LevelNotice)
			return Result{Malicious: true, Source: s.Name(), Verdict: v}, nil
		}
	}
	return Result{}, ctx.Err()
}

var errFlagged = errors.New("flagged")

func (a *Aggregator) checkParallel(ctx context.Context, ip string) (Result, error) {
	g, gctx := errgroup.WithContext(ctx)

	var (
		mu  sync.Mutex
		hit Result
	)
	for _, s := range a.sources {
		g.Go(func() error {
			v := s.Check(gctx, ip)
			if !v.Positive() {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			if !hit.Malicious {
				hit = Result{Malicious: true, Source: s.Name(), Verdict: v}
			}
			return errFlagged
		})
	}

	err := g.Wait()
	if hit.Malicious {
		a.log.Log("ip flagged by "+hit.Source+" ("+hit.Verdict.String()+")", logging.LevelNotice)
		return hit, nil
	}
	if err != nil && !errors.Is(err, errFlagged) {
		return Result{}, err
	}
	return Result{}, ctx.Err()
}

// parseName splits "name:key" entries. Keys shorter than two characters are
// ignored.
func parseName(entry string) (name, key string) {
	name, key, _ = strings.Cut(strings.TrimSpace(entry), ":")
	name = strings.ToLower(strings.TrimSpace(name))
	key = strings.TrimSpace(key)
	if len(key) < 2 {
		key = ""
	}
	return name, key
}
