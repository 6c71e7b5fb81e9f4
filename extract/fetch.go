package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/vinayakanadinni99/ETL-Finance/config"
)

const (
	APIKeyEnv       = "ALPHAVANTAGE_API_KEY"
	defaultFunction = "TIME_SERIES_DAILY"
	defaultDatatype = "json"
	redacted        = "REDACTED"
)

type AlphaVantageClient struct {
	HTTPClient         *retryablehttp.Client
	Logger             *slog.Logger
	AlphaVantageConfig *config.AlphaVantageConfig
	apiKey             string
}

func NewAlphaVantageClient(cfg *config.Config, logger *slog.Logger) (*AlphaVantageClient, error) {
	apiKey := os.Getenv(APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%s env variable is not set", APIKeyEnv)
	}

	client := &AlphaVantageClient{
		HTTPClient:         retryablehttp.NewClient(),
		Logger:             logger,
		AlphaVantageConfig: &cfg.AlphaVantage,
		apiKey:             apiKey,
	}

	client.HTTPClient.RetryWaitMin = cfg.Extract.Backoff.RetryWaitMin
	client.HTTPClient.RetryWaitMax = cfg.Extract.Backoff.RetryWaitMax
	client.HTTPClient.RetryMax = cfg.Extract.Backoff.RetryMax
	if cfg.Extract.Timeout > 0 {
		client.HTTPClient.HTTPClient.Timeout = cfg.Extract.Timeout
	}
	client.HTTPClient.Logger = redactingLogger{logger}
	client.HTTPClient.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			logger.Warn("retrying Alpha Vantage request", "url", redactURL(req.URL), "attempt", attempt)
		}
	}

	return client, nil
}

// GetDailyTimeSeries fetches the daily OHLCV series for symbol. The body is returned
// unparsed; throttle and error notices come back with status 200 and are left to the normalizer.
func (c *AlphaVantageClient) GetDailyTimeSeries(ctx context.Context, symbol, outputSize string) ([]byte, error) {
	rawURL, err := c.dailyTimeSeriesURL(symbol, outputSize)
	if err != nil {
		return nil, err
	}
	return c.FetchData(ctx, rawURL, fmt.Sprintf("daily time series for symbol %s", symbol))
}

// FetchData handles the common logic of making the HTTP request and checking the response status
func (c *AlphaVantageClient) FetchData(ctx context.Context, rawURL, description string) ([]byte, error) {
	c.Logger.Debug("fetching", "description", description, "url", RedactAPIKey(rawURL))

	body, resp, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch the `%s`: %w", description, redactedError{err})
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch the `%s`, status: %s, body: %s", description, resp.Status, RedactAPIKey(string(body)))
	}

	return body, nil
}

// dailyTimeSeriesURL adds function, symbol, outputsize, datatype and apikey to the query endpoint
func (c *AlphaVantageClient) dailyTimeSeriesURL(symbol, outputSize string) (string, error) {
	if symbol == "" {
		return "", fmt.Errorf("symbol is required")
	}

	parsedURL, err := url.Parse(strings.TrimRight(c.AlphaVantageConfig.BaseURL, "/") + "/query")
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}

	function := c.AlphaVantageConfig.Function
	if function == "" {
		function = defaultFunction
	}
	datatype := c.AlphaVantageConfig.Datatype
	if datatype == "" {
		datatype = defaultDatatype
	}
	if outputSize == "" {
		outputSize = c.AlphaVantageConfig.OutputSize
	}

	query := parsedURL.Query()
	query.Set("function", function)
	query.Set("symbol", symbol)
	if outputSize != "" {
		query.Set("outputsize", outputSize)
	}
	query.Set("datatype", datatype)
	query.Set("apikey", c.apiKey)
	parsedURL.RawQuery = query.Encode()

	return parsedURL.String(), nil
}

// get fetches the URL and returns the body and response
func (c *AlphaVantageClient) get(ctx context.Context, rawURL string) (body []byte, resp *http.Response, err error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, err
	}

	resp, err = c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	return body, resp, nil
}

// RedactAPIKey replaces the apikey query value in any string containing a request URL.
func RedactAPIKey(s string) string {
	const marker = "apikey="
	var b strings.Builder
	for {
		i := strings.Index(s, marker)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i+len(marker)])
		b.WriteString(redacted)
		s = s[i+len(marker):]
		end := strings.IndexAny(s, "&\" ")
		if end < 0 {
			return b.String()
		}
		s = s[end:]
	}
}

// redactingLogger is the retryablehttp.LeveledLogger used by the client; it scrubs the
// api key from the request URLs the library logs.
type redactingLogger struct {
	logger *slog.Logger
}

func (l redactingLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, redactArgs(keysAndValues)...)
}

func (l redactingLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, redactArgs(keysAndValues)...)
}

func (l redactingLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, redactArgs(keysAndValues)...)
}

func (l redactingLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, redactArgs(keysAndValues)...)
}

func redactArgs(args []interface{}) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case *url.URL:
			out[i] = redactURL(v)
		case error:
			out[i] = RedactAPIKey(v.Error())
		case string:
			out[i] = RedactAPIKey(v)
		default:
			out[i] = a
		}
	}
	return out
}

// redactedError hides the api key in the wrapped error's message and keeps it unwrappable.
type redactedError struct {
	err error
}

func (e redactedError) Error() string { return RedactAPIKey(e.err.Error()) }

func (e redactedError) Unwrap() error { return e.err }

func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	return RedactAPIKey(u.String())
}
