package promql

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"go.uber.org/zap"

	"github.com/albertoperdomo2/llm-d-bench/internal/telemetry"
)

// DefaultTimeout bounds each individual query.
const DefaultTimeout = 10 * time.Second

// ClientConfig carries the connection settings for the query endpoint.
type ClientConfig struct {
	// URL is the base endpoint, e.g. the Thanos Querier route. A trailing
	// slash is stripped.
	URL string
	// TokenFile optionally points at a bearer token (typically the
	// mounted ServiceAccount token). An unreadable file downgrades to
	// unauthenticated queries, it is not fatal.
	TokenFile string
	// InsecureSkipVerify disables TLS certificate verification, needed
	// for in-cluster service routes with internal CAs.
	InsecureSkipVerify bool
	// Timeout per query; DefaultTimeout when zero.
	Timeout time.Duration
}

// Client executes instant queries and reduces every outcome to a
// SampleValue: transport failures, backend errors, empty results, and
// non-finite samples all become Absent. Errors never escape past this
// boundary.
type Client struct {
	api     promv1.API
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient builds a query client. The bearer token, when configured, is
// read once here and attached to every request.
func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	var rt http.RoundTripper = transport
	if token := loadToken(cfg.TokenFile, logger); token != "" {
		rt = &bearerRoundTripper{token: token, next: rt}
	}

	apiClient, err := api.NewClient(api.Config{
		Address:      strings.TrimRight(cfg.URL, "/"),
		RoundTripper: rt,
	})
	if err != nil {
		return nil, fmt.Errorf("promql: new client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		api:     promv1.NewAPI(apiClient),
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Execute runs one instant query and returns its scalar sample. When the
// result carries multiple series (label ambiguity) the first series is
// taken, deterministically; this is a known simplification.
func (c *Client) Execute(ctx context.Context, query string) telemetry.SampleValue {
	qctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	value, warnings, err := c.api.Query(qctx, query, time.Now())
	if err != nil {
		c.logger.Warn("query failed",
			zap.String("query", query),
			zap.Error(err))
		return telemetry.Absent()
	}
	if len(warnings) > 0 {
		c.logger.Warn("query returned warnings",
			zap.String("query", query),
			zap.Strings("warnings", []string(warnings)))
	}

	vector, ok := value.(model.Vector)
	if !ok {
		c.logger.Warn("query returned non-vector result",
			zap.String("query", query),
			zap.String("result_type", resultType(value)))
		return telemetry.Absent()
	}
	if len(vector) == 0 {
		c.logger.Warn("no data for query", zap.String("query", query))
		return telemetry.Absent()
	}

	v := float64(vector[0].Value)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		c.logger.Warn("non-finite sample treated as absent",
			zap.String("query", query))
		return telemetry.Absent()
	}
	return telemetry.Some(v)
}

func resultType(v model.Value) string {
	if v == nil {
		return "none"
	}
	return v.Type().String()
}

// loadToken reads a bearer token file. A missing or unreadable file means
// unauthenticated queries, never a startup failure.
func loadToken(path string, logger *zap.Logger) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("failed to read token file, proceeding without authentication",
			zap.String("path", path),
			zap.Error(err))
		return ""
	}
	logger.Info("loaded authentication token", zap.String("path", path))
	return strings.TrimSpace(string(data))
}

type bearerRoundTripper struct {
	token string
	next  http.RoundTripper
}

// RoundTrip attaches the bearer token. The incoming request is cloned
// since RoundTrippers must not mutate their argument.
func (b *bearerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+b.token)
	return b.next.RoundTrip(clone)
}
