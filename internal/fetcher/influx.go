package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"link-watcher/internal/report"
)

const influxQueryPath = "/query"

// InfluxOptions parameterise the InfluxDB 1.x sample source.
type InfluxOptions struct {
	BaseURL      string
	Database     string
	Username     string
	Password     string
	Measurement  string
	HostTag      string
	MetricTag    string
	MetricPrefix string
	Timeout      time.Duration
	// RatePerSecond bounds outgoing queries; zero disables the limit.
	RatePerSecond float64
	Burst         int
	UserAgent     string
}

// Influx queries interface traffic through the InfluxQL HTTP API.
type Influx struct {
	opts    InfluxOptions
	logger  zerolog.Logger
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

// NewInflux constructs an InfluxDB sample source.
func NewInflux(opts InfluxOptions, logger zerolog.Logger) *Influx {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opts.Measurement == "" {
		opts.Measurement = "check_iface_traffic"
	}
	if opts.HostTag == "" {
		opts.HostTag = "hostname"
	}
	if opts.MetricTag == "" {
		opts.MetricTag = "metric"
	}
	if opts.MetricPrefix == "" {
		opts.MetricPrefix = "iface-traffic"
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:8086"
	}

	return &Influx{
		opts:    opts,
		logger:  logger.With().Str("component", "influx_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		baseURL: baseURL,
	}
}

// FetchTraffic returns the raw byte-rate samples of one interface direction.
func (f *Influx) FetchTraffic(ctx context.Context, link string, dir report.Direction, tr report.TimeRange) ([]report.Sample, error) {
	q := fmt.Sprintf(`SELECT "value" FROM %s WHERE %s ORDER BY time ASC`,
		quoteIdent(f.opts.Measurement), f.where(link, dir, tr))

	series, err := f.query(ctx, q)
	if err != nil {
		return []report.Sample{}, err
	}

	samples := make([]report.Sample, 0)
	for _, s := range series {
		timeIdx, valueIdx := columnIndex(s.Columns, "time"), columnIndex(s.Columns, "value")
		if timeIdx < 0 || valueIdx < 0 {
			return []report.Sample{}, fmt.Errorf("influx series %q missing time/value columns", s.Name)
		}
		for _, row := range s.Values {
			ts, okTime := numberAt(row, timeIdx)
			value, okValue := numberAt(row, valueIdx)
			if !okTime || !okValue {
				continue
			}
			samples = append(samples, report.Sample{
				Time:  time.UnixMilli(int64(ts)).UTC(),
				Value: value,
			})
		}
	}

	f.logger.Debug().Str("link", link).Str("direction", string(dir)).Int("points", len(samples)).Msg("traffic fetched")
	return samples, nil
}

// FetchPercentile returns the pct-th percentile of the series converted to bits.
func (f *Influx) FetchPercentile(ctx context.Context, pct int, tr report.TimeRange, link string, dir report.Direction) (float64, error) {
	if pct <= 0 || pct > 100 {
		return 0, fmt.Errorf("percentile must be within (0,100], got %d", pct)
	}
	q := fmt.Sprintf(`SELECT PERCENTILE("value", %d) AS "percentile" FROM %s WHERE %s`,
		pct, quoteIdent(f.opts.Measurement), f.where(link, dir, tr))

	series, err := f.query(ctx, q)
	if err != nil {
		return 0, err
	}

	for _, s := range series {
		idx := columnIndex(s.Columns, "percentile")
		if idx < 0 {
			continue
		}
		for _, row := range s.Values {
			if v, ok := numberAt(row, idx); ok {
				return v * report.BitsPerByte, nil
			}
		}
	}
	return 0, ErrNoData
}

func (f *Influx) where(link string, dir report.Direction, tr report.TimeRange) string {
	return fmt.Sprintf(`time >= %s AND time < %s AND %s = %s AND %s = %s`,
		quoteLiteral(tr.Begin.UTC().Format(time.RFC3339)),
		quoteLiteral(tr.End.UTC().Format(time.RFC3339)),
		quoteIdent(f.opts.HostTag), quoteLiteral(link),
		quoteIdent(f.opts.MetricTag), quoteLiteral(f.opts.MetricPrefix+string(dir)),
	)
}

func (f *Influx) query(ctx context.Context, q string) ([]influxSeries, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("db", f.opts.Database)
	params.Set("q", q)
	params.Set("epoch", "ms")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+influxQueryPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(f.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	if f.opts.Username != "" {
		req.SetBasicAuth(f.opts.Username, f.opts.Password)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("influx query: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var res influxResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("influx error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
		}
		return nil, fmt.Errorf("decode influx response: %w", err)
	}
	if res.Error != "" {
		return nil, fmt.Errorf("influx error (%d): %s", resp.StatusCode, res.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("influx error (%d)", resp.StatusCode)
	}

	var series []influxSeries
	for _, r := range res.Results {
		if r.Error != "" {
			return nil, errors.New("influx statement error: " + r.Error)
		}
		series = append(series, r.Series...)
	}
	return series, nil
}

type influxResponse struct {
	Results []struct {
		Series []influxSeries `json:"series"`
		Error  string         `json:"error"`
	} `json:"results"`
	Error string `json:"error"`
}

type influxSeries struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Values  [][]any  `json:"values"`
}

func columnIndex(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}

// numberAt reads a numeric cell; null cells are reported as missing.
func numberAt(row []any, idx int) (float64, bool) {
	if idx >= len(row) {
		return 0, false
	}
	v, ok := row[idx].(float64)
	return v, ok
}

func quoteIdent(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

func quoteLiteral(s string) string {
	return `'` + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s) + `'`
}

var _ SampleSource = (*Influx)(nil)
