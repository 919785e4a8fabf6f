package melco

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ClientOption configures a Client.
type ClientOption func(*clientConfig) error

// clientConfig holds the configuration for a Client.
type clientConfig struct {
	port           int
	path           string
	requestTimeout time.Duration
	httpClient     *http.Client
	logger         *slog.Logger
	validate       bool
}

// defaultConfig returns the default client configuration.
func defaultConfig() *clientConfig {
	return &clientConfig{
		port:           DefaultPort,
		path:           DefaultPath,
		requestTimeout: 5 * time.Second,
		httpClient:     nil,
		logger:         nil,
		validate:       true,
	}
}

// WithPort sets the HTTP port of the controller.
// Default is 80. A port given as part of the host passed to NewClient wins.
func WithPort(port int) ClientOption {
	return func(c *clientConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		c.port = port
		return nil
	}
}

// WithPath sets the servlet path requests are posted to.
// Default is /servlet/MIMEReceiveServlet.
func WithPath(path string) ClientOption {
	return func(c *clientConfig) error {
		if !strings.HasPrefix(path, "/") {
			return errors.New("path must start with /")
		}
		c.path = path
		return nil
	}
}

// WithRequestTimeout sets the deadline applied to a request when the caller's
// context has none. Default is 5 seconds.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		c.requestTimeout = d
		return nil
	}
}

// WithHTTPClient replaces the HTTP client used for requests.
// By default a client without keep-alives is used, so no connection
// outlives the call that opened it.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *clientConfig) error {
		if hc == nil {
			return errors.New("http client must not be nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithLogger sets a structured logger for debug and error logging.
// By default, no logging is performed.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *clientConfig) error {
		c.logger = logger
		return nil
	}
}

// WithValidation toggles checking drive and mode values against the known
// vocabulary before a set request is sent. Empty group ids and non-finite
// temperatures are rejected either way. Enabled by default.
func WithValidation(enabled bool) ClientOption {
	return func(c *clientConfig) error {
		c.validate = enabled
		return nil
	}
}
