package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sessionguard/internal/fingerprint"
	"github.com/noah-isme/sessionguard/internal/iplookup"
	"github.com/noah-isme/sessionguard/internal/models"
	appErrors "github.com/noah-isme/sessionguard/pkg/errors"
	"github.com/noah-isme/sessionguard/pkg/response"
)

const defaultUserAgent = "sessionguard-client/1.0"

// Config configures a Client.
type Config struct {
	// BaseURL includes the API prefix, e.g. http://localhost:8080/api/v1.
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
	// Probes overrides the host probes used to fingerprint this process.
	Probes *fingerprint.Probes
	// IPServices are "url#key" echo services used by PublicIP.
	IPServices []string
	Logger     *zap.Logger
}

// Client talks to the session API on behalf of one device.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	collector *fingerprint.Collector
	deriver   *fingerprint.Deriver
	ipLookup  *iplookup.Resolver
	session   *SessionContext
	logger    *zap.Logger
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

// New builds a Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("client: base url is required")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	probes := fingerprint.HostProbes(cfg.UserAgent)
	if cfg.Probes != nil {
		probes = *cfg.Probes
	}
	strategies, err := iplookup.ParseServices(cfg.IPServices, cfg.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}

	return &Client{
		baseURL:   base,
		userAgent: cfg.UserAgent,
		http:      cfg.HTTPClient,
		collector: fingerprint.NewCollector(probes),
		deriver:   fingerprint.NewDeriver(nil),
		ipLookup:  iplookup.NewResolver(strategies, iplookup.Options{Logger: cfg.Logger}),
		session:   NewSessionContext(),
		logger:    cfg.Logger,
	}, nil
}

// Session exposes the token holder.
func (c *Client) Session() *SessionContext {
	return c.session
}

// Fingerprint collects this device's signals and derives its fingerprint.
func (c *Client) Fingerprint(ctx context.Context) (fingerprint.Signals, fingerprint.Result) {
	signals := c.collector.Collect(ctx)
	return signals, c.deriver.Derive(signals)
}

// DeriveRemote asks the server to derive a fingerprint from signals.
func (c *Client) DeriveRemote(ctx context.Context, signals fingerprint.Signals) (*models.FingerprintResponse, error) {
	var res models.FingerprintResponse
	if err := c.do(ctx, http.MethodPost, "/fingerprint", models.FingerprintRequest{Signals: signals}, &res, false); err != nil {
		return nil, err
	}
	return &res, nil
}

// Login authenticates and stores the issued token.
func (c *Client) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	signals, fp := c.Fingerprint(ctx)
	if fp.Degraded {
		c.logger.Warn("fingerprint derived in degraded mode")
	}
	described := fingerprint.Describe(signals.UserAgent)

	req := models.LoginRequest{
		TelegramUsername: username,
		Password:         password,
		Fingerprint:      fp.Fingerprint,
		Device: models.DeviceMetadata{
			Name:             described.Name,
			Browser:          described.Browser,
			OS:               described.OS,
			ScreenResolution: signals.ScreenResolution(),
			Timezone:         signals.Timezone,
			Language:         signals.Language,
		},
	}

	var res models.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, &res, false); err != nil {
		return nil, err
	}
	c.session.Set(res.Token, res.ExpiresAt)
	return &res, nil
}

// Logout ends the server session and clears the local one. The local token
// is dropped even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	if !c.session.Authenticated() {
		return nil
	}
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, true)
	c.session.Clear(string(models.LogoutUser))
	return err
}

// CurrentSession returns the server view of the current session.
func (c *Client) CurrentSession(ctx context.Context) (*models.SessionInfo, error) {
	var info models.SessionInfo
	if err := c.do(ctx, http.MethodGet, "/auth/session", nil, &info, true); err != nil {
		return nil, err
	}
	return &info, nil
}

// Devices lists this user's devices.
func (c *Client) Devices(ctx context.Context) (*models.DeviceOverview, error) {
	var overview models.DeviceOverview
	if err := c.do(ctx, http.MethodGet, "/user/devices", nil, &overview, true); err != nil {
		return nil, err
	}
	return &overview, nil
}

// LogoutOthers ends every other session of this user.
func (c *Client) LogoutOthers(ctx context.Context) (*models.RevocationResult, error) {
	var res models.RevocationResult
	if err := c.do(ctx, http.MethodDelete, "/user/devices?action=logout-others", nil, &res, true); err != nil {
		return nil, err
	}
	return &res, nil
}

// ServerSeenIP asks the API which address it attributes to this client.
func (c *Client) ServerSeenIP(ctx context.Context) (iplookup.Result, error) {
	var res iplookup.Result
	err := c.do(ctx, http.MethodGet, "/user/current-ip", nil, &res, false)
	return res, err
}

// PublicIP resolves this host's public address through the configured echo
// services, in order.
func (c *Client) PublicIP(ctx context.Context) iplookup.Result {
	return c.ipLookup.Resolve(ctx)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, authenticated bool) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		token := c.session.Token()
		if token == "" {
			return appErrors.ErrSessionInvalid
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := env.Error
		if apiErr == nil {
			apiErr = appErrors.New(appErrors.ErrInternal.Code, resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		apiErr.Status = resp.StatusCode
		if reason := resp.Header.Get(response.LogoutReasonHeader); reason != "" {
			apiErr.Reason = reason
		}
		if authenticated && apiErr.Reason != "" {
			c.forceLogout(apiErr.Reason)
		}
		return apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func (c *Client) forceLogout(reason string) {
	if c.session.Clear(reason) {
		c.logger.Info("session ended by server", zap.String("reason", reason))
	}
}
