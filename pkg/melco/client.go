package melco

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elliotchance/orderedmap"
)

// Client talks to one central controller. Every operation is a single HTTP
// POST round trip; nothing is retried or cached.
type Client struct {
	host           string
	url            string
	httpClient     *http.Client
	requestTimeout time.Duration
	logger         *slog.Logger
	validate       bool
}

// NewClient creates a client for the controller at host. host may carry a
// port ("10.0.0.5:8080"); otherwise the configured port is used.
// No connection is made until the first request.
func NewClient(host string, opts ...ClientOption) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}
	if host == "" {
		return nil, &ValidationError{Field: "host", Value: host, Reason: "must not be empty"}
	}
	if strings.ContainsAny(host, "/?#") {
		return nil, &ValidationError{Field: "host", Value: host, Reason: "must be a hostname or host:port without scheme or path"}
	}

	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, strconv.Itoa(cfg.port))
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				DisableKeepAlives: true,
			},
		}
	}

	return &Client{
		host:           host,
		url:            "http://" + addr + cfg.path,
		httpClient:     hc,
		requestTimeout: cfg.requestTimeout,
		logger:         cfg.logger,
		validate:       cfg.validate,
	}, nil
}

// Host returns the host the client was created for.
func (c *Client) Host() string {
	return c.host
}

// URL returns the endpoint requests are posted to.
func (c *Client) URL() string {
	return c.url
}

// post sends one request document and returns the response body.
func (c *Client) post(ctx context.Context, op string, body []byte) ([]byte, error) {
	// Apply request timeout if context has no deadline
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "text/xml")

	if c.logger != nil {
		c.logger.Debug("request sent", "op", op, "url", c.url, "bytes", len(body))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.Error("request failed", "op", op, "error", err)
		}
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if c.logger != nil {
			c.logger.Warn("unexpected status", "op", op, "status", resp.StatusCode)
		}
		return nil, &HTTPStatusError{Op: op, StatusCode: resp.StatusCode}
	}

	if c.logger != nil {
		c.logger.Debug("response received", "op", op, "status", resp.StatusCode, "bytes", len(payload))
	}
	return payload, nil
}

// GetAttributes reads the named Mnet attributes of group. The returned map
// holds whatever the controller reported, which may omit some names.
func (c *Client) GetAttributes(ctx context.Context, group string, names ...string) (map[string]string, error) {
	req, err := EncodeGetMnet(group, names)
	if err != nil {
		return nil, err
	}
	resp, err := c.post(ctx, "get", req)
	if err != nil {
		return nil, err
	}
	attrs, err := DecodeMnetAttributes(resp)
	if err != nil {
		c.logDecodeFailure("get", err)
		return nil, err
	}
	return attrs, nil
}

// SetAttributes writes values to group. See EncodeSetMnet for accepted values.
func (c *Client) SetAttributes(ctx context.Context, group string, values *orderedmap.OrderedMap) error {
	req, err := EncodeSetMnet(group, values)
	if err != nil {
		return err
	}
	resp, err := c.post(ctx, "set", req)
	if err != nil {
		return err
	}
	// The body only echoes the request, but a broken one is still reported.
	if _, err := DecodeMnetAttributes(resp); err != nil {
		c.logDecodeFailure("set", err)
		return err
	}
	return nil
}

// GetGroupState reads Drive, Mode, SetTemp and InletTemp of group.
func (c *Client) GetGroupState(ctx context.Context, group string) (GroupState, error) {
	attrs, err := c.GetAttributes(ctx, group, stateAttributes...)
	if err != nil {
		return GroupState{}, err
	}
	return NewGroupState(group, attrs), nil
}

// SetDrive switches group ON or OFF.
func (c *Client) SetDrive(ctx context.Context, group string, drive Drive) error {
	if c.validate && !drive.Valid() {
		return &ValidationError{Field: "drive", Value: string(drive), Reason: "must be ON or OFF"}
	}
	return c.setOne(ctx, group, AttrDrive, drive)
}

// SetMode changes the operating mode of group.
func (c *Client) SetMode(ctx context.Context, group string, mode Mode) error {
	if c.validate && !mode.Valid() {
		return &ValidationError{Field: "mode", Value: string(mode), Reason: "unknown mode"}
	}
	return c.setOne(ctx, group, AttrMode, mode)
}

// SetTemperature changes the target temperature of group, in °C.
func (c *Client) SetTemperature(ctx context.Context, group string, celsius float64) error {
	if math.IsNaN(celsius) || math.IsInf(celsius, 0) {
		return &ValidationError{Field: "temperature", Value: fmt.Sprint(celsius), Reason: "must be finite"}
	}
	return c.setOne(ctx, group, AttrSetTemp, celsius)
}

func (c *Client) setOne(ctx context.Context, group, name string, value any) error {
	values := orderedmap.NewOrderedMap()
	values.Set(name, value)
	return c.SetAttributes(ctx, group, values)
}

// DiscoverGroups lists the groups configured on the controller. An empty
// result is not an error; callers setting up a controller should treat it
// as "nothing to monitor".
func (c *Client) DiscoverGroups(ctx context.Context) ([]GroupDescriptor, error) {
	req, err := EncodeGetControlGroup(SublistMnetList)
	if err != nil {
		return nil, err
	}
	resp, err := c.post(ctx, "discover", req)
	if err != nil {
		return nil, err
	}
	groups, err := DecodeGroupList(resp)
	if err != nil {
		c.logDecodeFailure("discover", err)
		return nil, err
	}
	if c.logger != nil {
		c.logger.Debug("groups discovered", "count", len(groups))
	}
	return groups, nil
}

// GetControlGroup fetches one ControlGroup sublist and returns the raw
// response document. The sublist must be one of the known names.
func (c *Client) GetControlGroup(ctx context.Context, sublist string) ([]byte, error) {
	req, err := EncodeGetControlGroup(sublist)
	if err != nil {
		return nil, err
	}
	return c.post(ctx, "controlgroup", req)
}

// GetSystemData reads the controller's SystemData attributes (model,
// firmware version, temperature unit).
func (c *Client) GetSystemData(ctx context.Context) (map[string]string, error) {
	resp, err := c.post(ctx, "system", EncodeGetSystemData())
	if err != nil {
		return nil, err
	}
	attrs, err := DecodeElementAttributes(resp, ElementSystemData)
	if err != nil {
		c.logDecodeFailure("system", err)
		return nil, err
	}
	return attrs, nil
}

func (c *Client) logDecodeFailure(op string, err error) {
	if c.logger != nil {
		c.logger.Warn("failed to decode response", "op", op, "error", err)
	}
}
