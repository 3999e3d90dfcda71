package iplookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Unknown is returned when no strategy produced an address. It never
// matches any address, including itself.
const Unknown = "unknown"

// ErrNoAddress is returned by a strategy that had nothing to offer.
var ErrNoAddress = errors.New("no address available")

// Strategy is one way of learning the caller's public address.
type Strategy interface {
	Name() string
	Lookup(ctx context.Context) (string, error)
}

// HTTPService asks an external echo service and reads Key from its JSON body.
type HTTPService struct {
	URL    string
	Key    string
	Client *http.Client
}

// ParseService reads the "url#key" form used by IP_LOOKUP_SERVICES. A missing
// key defaults to "ip".
func ParseService(raw string) (HTTPService, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return HTTPService{}, errors.New("empty service definition")
	}
	url, key := raw, "ip"
	if idx := strings.LastIndex(raw, "#"); idx >= 0 {
		url, key = raw[:idx], raw[idx+1:]
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return HTTPService{}, fmt.Errorf("service %q must be an http(s) url", raw)
	}
	if key == "" {
		return HTTPService{}, fmt.Errorf("service %q has an empty response key", raw)
	}
	return HTTPService{URL: url, Key: key}, nil
}

// ParseServices parses every entry, stopping at the first invalid one.
func ParseServices(raw []string, client *http.Client) ([]Strategy, error) {
	out := make([]Strategy, 0, len(raw))
	for _, entry := range raw {
		svc, err := ParseService(entry)
		if err != nil {
			return nil, err
		}
		svc.Client = client
		out = append(out, svc)
	}
	return out, nil
}

// Name implements Strategy.
func (s HTTPService) Name() string { return s.URL }

// Lookup implements Strategy.
func (s HTTPService) Lookup(ctx context.Context) (string, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("received status %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	value, ok := body[s.Key].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("response has no %q field", s.Key)
	}
	return firstHop(value), nil
}

// ClientAddress wraps an address already derived from the connection, such
// as gin's ClientIP which only honors forwarding headers from trusted proxies.
type ClientAddress struct{ Addr string }

// Name implements Strategy.
func (ClientAddress) Name() string { return "client-ip" }

// Lookup implements Strategy.
func (s ClientAddress) Lookup(context.Context) (string, error) {
	addr := strings.TrimSpace(s.Addr)
	if addr == "" {
		return "", ErrNoAddress
	}
	return addr, nil
}

func firstHop(value string) string {
	return strings.TrimSpace(strings.SplitN(value, ",", 2)[0])
}
