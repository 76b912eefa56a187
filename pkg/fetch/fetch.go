// Package fetch performs the network tier of the resource cache: an HTTP
// request whose outcome is classified as success, transport error, HTTP
// error or empty body.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/resource-cache/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for fetch operations.
var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rescache_fetch_total",
		Help: "Total network fetches by outcome",
	}, []string{"outcome"})

	fetchStatusTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rescache_fetch_status_total",
		Help: "Total network responses by HTTP status code",
	}, []string{"status"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rescache_fetch_duration_seconds",
		Help:    "Network fetch duration in seconds by outcome",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"outcome"})
)

// DefaultTimeout bounds a single fetch when no HTTP client is supplied.
const DefaultTimeout = 30 * time.Second

// Kind classifies a fetch outcome.
type Kind int

const (
	// KindSuccess is a 2xx response with a non-empty body.
	KindSuccess Kind = iota

	// KindTransportError is a failure before a complete response was read
	// (connection, DNS, TLS, timeout, body read).
	KindTransportError

	// KindHTTPError is a response with a status outside 200..299.
	KindHTTPError

	// KindEmptyBody is a 2xx response without body bytes.
	KindEmptyBody
)

// String returns the metric label for k.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindTransportError:
		return "transport_error"
	case KindHTTPError:
		return "http_error"
	case KindEmptyBody:
		return "empty_body"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of one fetch.
type Outcome struct {
	Kind       Kind
	Data       []byte
	StatusCode int
	URL        string

	// Detail carries the transport error for KindTransportError.
	Detail error
}

// OK reports whether the outcome carries data.
func (o Outcome) OK() bool {
	return o.Kind == KindSuccess
}

// Err returns the failure as a *FetchError, or nil on success.
func (o Outcome) Err() error {
	switch o.Kind {
	case KindSuccess:
		return nil
	case KindHTTPError:
		return &FetchError{Kind: o.Kind, StatusCode: o.StatusCode, ErrorClass: classifyStatus(o.StatusCode), URL: o.URL}
	case KindEmptyBody:
		return &FetchError{Kind: o.Kind, StatusCode: o.StatusCode, ErrorClass: ErrorClassOther, URL: o.URL}
	default:
		return &FetchError{Kind: o.Kind, ErrorClass: ErrorClassNetwork, URL: o.URL, Err: o.Detail}
	}
}

func (o Outcome) errorClass() ErrorClass {
	switch o.Kind {
	case KindTransportError:
		return ErrorClassNetwork
	case KindHTTPError:
		return classifyStatus(o.StatusCode)
	default:
		return ErrorClassOther
	}
}

// Config holds the fetcher configuration.
type Config struct {
	// HTTPClient performs the requests (default: a client with DefaultTimeout
	// and no cookie jar, so no state is carried between fetches).
	HTTPClient *http.Client

	// UserAgent is set on requests that carry none (optional).
	UserAgent string

	// Retry configures retries of network and 5xx failures (default: none).
	Retry RetryConfig

	// Limiter gates fetch starts (optional).
	Limiter *ratelimit.Limiter

	// Logger receives fetch diagnostics (default: disabled).
	Logger *zerolog.Logger
}

// Fetcher performs classified HTTP fetches. It is safe for concurrent use.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	retry      RetryConfig
	limiter    *ratelimit.Limiter
	logger     zerolog.Logger
}

// New creates a fetcher.
func New(cfg Config) *Fetcher {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "fetch").Logger()
	}

	return &Fetcher{
		httpClient: httpClient,
		userAgent:  cfg.UserAgent,
		retry:      cfg.Retry,
		limiter:    cfg.Limiter,
		logger:     logger,
	}
}

// FetchAsync runs Fetch on a new goroutine with the request's context and
// invokes completion exactly once with the outcome.
func (f *Fetcher) FetchAsync(req *http.Request, completion func(Outcome)) {
	ctx := context.Background()
	if req != nil {
		ctx = req.Context()
	}
	go func() {
		completion(f.Fetch(ctx, req))
	}()
}

// Fetch performs the request and classifies the outcome. It never returns a
// Go error; failures are described by the Outcome.
func (f *Fetcher) Fetch(ctx context.Context, req *http.Request) Outcome {
	if req == nil || req.URL == nil {
		return Outcome{Kind: KindTransportError, Detail: ErrNilRequest}
	}

	start := time.Now()
	var out Outcome

	// The last attempt's outcome is reported; the retry error adds nothing
	_ = retryWithBackoff(ctx, f.retry, f.logger, func() (ErrorClass, error) {
		out = f.fetchOnce(ctx, req)
		if out.OK() {
			return "", nil
		}
		return out.errorClass(), out.Err()
	})

	fetchTotal.WithLabelValues(out.Kind.String()).Inc()
	fetchDuration.WithLabelValues(out.Kind.String()).Observe(time.Since(start).Seconds())
	return out
}

func (f *Fetcher) fetchOnce(ctx context.Context, req *http.Request) Outcome {
	url := req.URL.String()

	release, err := f.limiter.Acquire(ctx)
	if err != nil {
		return Outcome{Kind: KindTransportError, URL: url, Detail: err}
	}
	defer release()

	outReq := req.Clone(ctx)
	if outReq.Method == "" {
		outReq.Method = http.MethodGet
	}
	if f.userAgent != "" && outReq.Header.Get("User-Agent") == "" {
		outReq.Header.Set("User-Agent", f.userAgent)
	}

	f.logger.Debug().
		Str("url", url).
		Str("method", outReq.Method).
		Msg("Executing fetch")

	resp, err := f.httpClient.Do(outReq)
	if err != nil {
		f.logger.Debug().Err(err).Str("url", url).Msg("Fetch transport error")
		return Outcome{Kind: KindTransportError, URL: url, Detail: err}
	}
	defer resp.Body.Close()

	fetchStatusTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return Outcome{Kind: KindHTTPError, URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{
			Kind:       KindTransportError,
			URL:        url,
			StatusCode: resp.StatusCode,
			Detail:     fmt.Errorf("read response body: %w", err),
		}
	}
	if len(data) == 0 {
		return Outcome{Kind: KindEmptyBody, URL: url, StatusCode: resp.StatusCode}
	}

	return Outcome{Kind: KindSuccess, URL: url, StatusCode: resp.StatusCode, Data: data}
}
