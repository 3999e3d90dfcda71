package iplookup

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
)

// Attempt records one strategy invocation.
type Attempt struct {
	Source   string        `json:"source"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Result is the typed outcome of a resolution: either an address from Source
// or Unknown when every strategy failed.
type Result struct {
	IP       string    `json:"ip"`
	Source   string    `json:"source,omitempty"`
	Attempts []Attempt `json:"attempts,omitempty"`
}

// OK reports whether an address was resolved.
func (r Result) OK() bool { return r.IP != "" && r.IP != Unknown }

// Exhausted reports whether every strategy failed.
func (r Result) Exhausted() bool { return !r.OK() }

// Observer receives resolution outcomes, typically for metrics.
type Observer interface {
	ObserveIPResolution(source string, ok bool, attempts int)
}

// Options tunes a Resolver.
type Options struct {
	AttemptTimeout time.Duration
	Budget         time.Duration
	Logger         *zap.Logger
	Observer       Observer
}

// Resolver runs strategies in order until one yields a valid address.
type Resolver struct {
	strategies     []Strategy
	attemptTimeout time.Duration
	budget         time.Duration
	logger         *zap.Logger
	observer       Observer
}

// NewResolver builds a resolver over an ordered strategy list.
func NewResolver(strategies []Strategy, opts Options) *Resolver {
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 5 * time.Second
	}
	if opts.Budget <= 0 {
		opts.Budget = 3 * opts.AttemptTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Resolver{
		strategies:     strategies,
		attemptTimeout: opts.AttemptTimeout,
		budget:         opts.Budget,
		logger:         opts.Logger,
		observer:       opts.Observer,
	}
}

// Resolve never returns an error: failures are logged per strategy and
// exhaustion is reported through the Result.
func (r *Resolver) Resolve(ctx context.Context) Result {
	return r.run(ctx, r.strategies)
}

func (r *Resolver) run(ctx context.Context, strategies []Strategy) Result {
	result := Result{IP: Unknown, Attempts: make([]Attempt, 0, len(strategies))}

	budgetCtx, cancel := context.WithTimeout(ctx, r.budget)
	defer cancel()

	for _, strategy := range strategies {
		if budgetCtx.Err() != nil {
			break
		}

		start := time.Now()
		ip, err := r.attempt(budgetCtx, strategy)
		attempt := Attempt{Source: strategy.Name(), Duration: time.Since(start)}
		if err != nil {
			attempt.Error = err.Error()
			result.Attempts = append(result.Attempts, attempt)
			if !errors.Is(err, ErrNoAddress) {
				r.logger.Warn("ip lookup attempt failed",
					zap.String("source", strategy.Name()),
					zap.Duration("duration", attempt.Duration),
					zap.Error(err),
				)
			}
			continue
		}

		result.Attempts = append(result.Attempts, attempt)
		result.IP = ip
		result.Source = strategy.Name()
		break
	}

	if result.Exhausted() {
		r.logger.Warn("ip lookup exhausted", zap.Int("attempts", len(result.Attempts)))
	}
	if r.observer != nil {
		r.observer.ObserveIPResolution(result.Source, result.OK(), len(result.Attempts))
	}
	return result
}

func (r *Resolver) attempt(ctx context.Context, strategy Strategy) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()

	raw, err := strategy.Lookup(attemptCtx)
	if err != nil {
		return "", err
	}
	ip := Normalize(raw)
	if ip == "" {
		return "", errors.New("invalid address " + raw)
	}
	return ip, nil
}

// RequestResolver resolves the address of an inbound HTTP request.
type RequestResolver struct {
	resolver *Resolver
}

// NewRequestResolver builds a RequestResolver.
func NewRequestResolver(opts Options) *RequestResolver {
	return &RequestResolver{resolver: NewResolver(nil, opts)}
}

// Resolve validates clientIP, the address the router derived from the
// connection and its trusted proxies. Forwarding headers are never read here.
func (r *RequestResolver) Resolve(ctx context.Context, clientIP string) Result {
	return r.resolver.run(ctx, []Strategy{ClientAddress{Addr: clientIP}})
}

// Normalize returns the canonical text form of ip or "" when it does not parse.
func Normalize(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	if v4 := parsed.To4(); v4 != nil {
		return v4.String()
	}
	return parsed.String()
}

// Match reports whether current is the same address as stored. Unknown or
// unparseable values on either side never match.
func Match(stored, current string) bool {
	a, b := Normalize(stored), Normalize(current)
	return a != "" && a == b
}

// IsPrivate reports loopback and RFC 1918 / ULA addresses.
func IsPrivate(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && (parsed.IsLoopback() || parsed.IsPrivate())
}
