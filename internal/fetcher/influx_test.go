package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"link-watcher/internal/report"
)

func testRange() report.TimeRange {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	return report.TimeRange{Begin: day.Add(8 * time.Hour), End: day.Add(18 * time.Hour)}
}

func TestInfluxFetchTrafficDropsNulls(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "reader" || pass != "secret" {
			t.Fatalf("basic auth missing")
		}
		if r.URL.Query().Get("db") != "telegraf" {
			t.Fatalf("db = %q", r.URL.Query().Get("db"))
		}
		query = r.URL.Query().Get("q")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []any{map[string]any{
				"series": []any{map[string]any{
					"name":    "check_iface_traffic",
					"columns": []string{"time", "value"},
					"values": []any{
						[]any{1709539200000, 100.5},
						[]any{1709539500000, nil},
						[]any{1709539800000, 200},
					},
				}},
			}},
		})
	}))
	defer srv.Close()

	f := NewInflux(InfluxOptions{BaseURL: srv.URL, Database: "telegraf", Username: "reader", Password: "secret", Timeout: time.Second}, zerolog.Nop())
	samples, err := f.FetchTraffic(context.Background(), "site-a", report.TX, testRange())
	if err != nil {
		t.Fatalf("fetch traffic: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected null point to be dropped, got %d samples", len(samples))
	}
	if samples[0].Value != 100.5 || !samples[0].Time.Equal(time.UnixMilli(1709539200000)) {
		t.Fatalf("unexpected first sample %+v", samples[0])
	}
	if !strings.Contains(query, `"metric" = 'iface-traffictx'`) || !strings.Contains(query, `"hostname" = 'site-a'`) {
		t.Fatalf("unexpected query %s", query)
	}
}

func TestInfluxFetchTrafficEmptySeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"statement_id":0}]}`))
	}))
	defer srv.Close()

	f := NewInflux(InfluxOptions{BaseURL: srv.URL}, zerolog.Nop())
	samples, err := f.FetchTraffic(context.Background(), "site-a", report.RX, testRange())
	if err != nil {
		t.Fatalf("fetch traffic: %v", err)
	}
	if samples == nil || len(samples) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", samples)
	}
}

func TestInfluxFetchPercentileConvertsToBits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Query().Get("q"), `PERCENTILE("value", 95)`) {
			t.Fatalf("unexpected query %s", r.URL.Query().Get("q"))
		}
		_, _ = w.Write([]byte(`{"results":[{"series":[{"name":"check_iface_traffic","columns":["time","percentile"],"values":[[0,1000]]}]}]}`))
	}))
	defer srv.Close()

	f := NewInflux(InfluxOptions{BaseURL: srv.URL}, zerolog.Nop())
	v, err := f.FetchPercentile(context.Background(), 95, testRange(), "site-a", report.RX)
	if err != nil {
		t.Fatalf("fetch percentile: %v", err)
	}
	if v != 8000 {
		t.Fatalf("percentile = %v, want 8000", v)
	}
}

func TestInfluxFetchPercentileNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{}]}`))
	}))
	defer srv.Close()

	f := NewInflux(InfluxOptions{BaseURL: srv.URL}, zerolog.Nop())
	if _, err := f.FetchPercentile(context.Background(), 95, testRange(), "site-a", report.RX); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestInfluxHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"authorization failed"}`))
	}))
	defer srv.Close()

	f := NewInflux(InfluxOptions{BaseURL: srv.URL}, zerolog.Nop())
	if _, err := f.FetchTraffic(context.Background(), "site-a", report.RX, testRange()); err == nil {
		t.Fatal("HTTP 401 should return an error")
	}
}

func TestQuoteLiteralEscapes(t *testing.T) {
	if got := quoteLiteral(`o'brien`); got != `'o\'brien'` {
		t.Fatalf("quoteLiteral = %s", got)
	}
}
