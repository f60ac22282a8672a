package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

var testDefaults = Defaults{MaxTrafficFraction: 0.8, HysteresisFraction: 0.05}

func TestFileAppliesDefaultsOnlyWhenOmitted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts.json")
	doc := `{"LINKS": [
		{"LINK_NAME": "site-a", "LINK_SPEED": 1000000000},
		{"LINK_NAME": "site-b", "LINK_SPEED": 200000000, "LINK_MAX_TRAFFIC_PERCENTAGE": 0.9, "LINK_HISTERESYS": 0}
	]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	links, err := NewFile(path, testDefaults, zerolog.Nop()).ListLinks(context.Background())
	if err != nil {
		t.Fatalf("list links: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
	if links[0].Name != "site-a" || links[0].MaxTrafficFraction != 0.8 || links[0].HysteresisFraction != 0.05 {
		t.Fatalf("defaults not applied: %+v", links[0])
	}
	if links[1].MaxTrafficFraction != 0.9 || links[1].HysteresisFraction != 0 {
		t.Fatalf("explicit values overwritten: %+v", links[1])
	}
}

func TestFileReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts.yaml")
	doc := "links:\n  - link_name: site-c\n    link_speed: 50000000\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	links, err := NewFile(path, testDefaults, zerolog.Nop()).ListLinks(context.Background())
	if err != nil {
		t.Fatalf("list links: %v", err)
	}
	if len(links) != 1 || links[0].CapacityBPS != 50_000_000 {
		t.Fatalf("unexpected links %+v", links)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watcher", "hosts.json")
	src, err := NewFile(writeHosts(t), testDefaults, zerolog.Nop()).ListLinks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteSnapshot(path, src); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	got, err := NewFile(path, Defaults{}, zerolog.Nop()).ListLinks(context.Background())
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if len(got) != len(src) || got[0] != src[0] {
		t.Fatalf("snapshot mismatch: %+v vs %+v", got, src)
	}
}

func writeHosts(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hosts.json")
	if err := os.WriteFile(path, []byte(`{"LINKS":[{"LINK_NAME":"site-a","LINK_SPEED":1000000000}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNetBoxFiltersTypeAndIgnoreList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token tkn" {
			t.Fatalf("missing token header")
		}
		switch r.URL.Path {
		case netboxSitesPath:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"count": 3,
				"results": []map[string]any{
					{"id": 1, "name": "campus-1"},
					{"id": 2, "name": "campus-2"},
					{"id": 3, "name": "lab"},
				},
			})
		case netboxCircuitsPath:
			if r.URL.Query().Get("status") != "active" {
				t.Fatalf("status filter missing")
			}
			var results []map[string]any
			switch r.URL.Query().Get("site_id") {
			case "1":
				results = []map[string]any{
					{"id": 10, "cid": "c10", "type": map[string]string{"name": "RNP"}, "commit_rate": 100000},
					{"id": 11, "cid": "c11", "type": map[string]string{"name": "Internet"}, "commit_rate": 50000},
				}
			case "2":
				results = []map[string]any{
					{"id": 20, "cid": "c20", "type": map[string]string{"name": "RNP"}, "commit_rate": nil},
				}
			case "3":
				t.Fatalf("ignored site should not be queried")
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"count": len(results), "results": results})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	nb := NewNetBox(NetBoxOptions{BaseURL: srv.URL, Token: "tkn", CircuitType: "RNP", IgnoreSites: []string{"lab"}}, testDefaults, zerolog.Nop())
	links, err := nb.ListLinks(context.Background())
	if err != nil {
		t.Fatalf("list links: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %+v", links)
	}
	if links[0].Name != "campus-1" || links[0].CapacityBPS != 100_000_000 {
		t.Fatalf("unexpected link %+v", links[0])
	}
	if links[0].MaxTrafficFraction != testDefaults.MaxTrafficFraction {
		t.Fatalf("defaults not applied")
	}
}

func TestNetBoxHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	nb := NewNetBox(NetBoxOptions{BaseURL: srv.URL}, testDefaults, zerolog.Nop())
	if _, err := nb.ListLinks(context.Background()); err == nil {
		t.Fatal("HTTP 403 should return an error")
	}
}
