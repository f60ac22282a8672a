package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"link-watcher/internal/report"
	"link-watcher/internal/version"
)

const (
	netboxSitesPath    = "/api/dcim/sites/"
	netboxCircuitsPath = "/api/circuits/circuits/"
	netboxPageSize     = 500
)

// NetBoxOptions parameterise the NetBox inventory.
type NetBoxOptions struct {
	BaseURL     string
	Token       string
	CircuitType string
	IgnoreSites []string
	Timeout     time.Duration
}

// NetBox derives links from active circuits: one link per site, named after the site,
// with the circuit's commit rate as capacity.
type NetBox struct {
	opts     NetBoxOptions
	defaults Defaults
	client   *http.Client
	baseURL  string
	logger   zerolog.Logger
}

// NewNetBox constructs a NetBox inventory.
func NewNetBox(opts NetBoxOptions, defaults Defaults, logger zerolog.Logger) *NetBox {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NetBox{
		opts:     opts,
		defaults: defaults,
		client:   &http.Client{Timeout: timeout},
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		logger:   logger.With().Str("component", "inventory_netbox").Logger(),
	}
}

type netboxPage[T any] struct {
	Count   int    `json:"count"`
	Next    string `json:"next"`
	Results []T    `json:"results"`
}

type netboxSite struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type netboxCircuit struct {
	ID   int    `json:"id"`
	CID  string `json:"cid"`
	Type struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	} `json:"type"`
	// CommitRate is in kbps.
	CommitRate *int64 `json:"commit_rate"`
}

// ListLinks walks every site and its active circuits.
func (n *NetBox) ListLinks(ctx context.Context) ([]report.LinkConfig, error) {
	if n.baseURL == "" {
		return nil, fmt.Errorf("netbox url not configured")
	}

	sites, err := listAll[netboxSite](ctx, n, netboxSitesPath, url.Values{})
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	n.logger.Info().Int("sites", len(sites)).Msg("sites fetched from netbox")

	ignored := make(map[string]struct{}, len(n.opts.IgnoreSites))
	for _, s := range n.opts.IgnoreSites {
		ignored[s] = struct{}{}
	}

	var entries []hostEntry
	for _, site := range sites {
		if _, skip := ignored[site.Name]; skip {
			continue
		}

		params := url.Values{}
		params.Set("site_id", strconv.Itoa(site.ID))
		params.Set("status", "active")
		circuits, err := listAll[netboxCircuit](ctx, n, netboxCircuitsPath, params)
		if err != nil {
			return nil, fmt.Errorf("list circuits of site %s: %w", site.Name, err)
		}

		for _, c := range circuits {
			if n.opts.CircuitType != "" && !strings.EqualFold(c.Type.Name, n.opts.CircuitType) {
				continue
			}
			if c.CommitRate == nil {
				n.logger.Warn().Str("site", site.Name).Str("circuit", c.CID).Msg("circuit without commit rate skipped")
				continue
			}
			entries = append(entries, hostEntry{Name: site.Name, Speed: float64(*c.CommitRate) * 1000})
		}
	}

	links := applyDefaults(entries, n.defaults)
	n.logger.Info().Int("links", len(links)).Msg("circuits fetched from netbox")
	return links, nil
}

func listAll[T any](ctx context.Context, n *NetBox, path string, params url.Values) ([]T, error) {
	params.Set("limit", strconv.Itoa(netboxPageSize))
	next := n.baseURL + path + "?" + params.Encode()

	var out []T
	for next != "" {
		var page netboxPage[T]
		if err := n.get(ctx, next, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Results...)
		next = page.Next
	}
	return out, nil
}

func (n *NetBox) get(ctx context.Context, endpoint string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if n.opts.Token != "" {
		req.Header.Set("Authorization", "Token "+n.opts.Token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("netbox api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

var _ Inventory = (*NetBox)(nil)
