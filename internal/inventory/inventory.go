package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"link-watcher/internal/report"
)

// Inventory lists the links to watch.
type Inventory interface {
	ListLinks(ctx context.Context) ([]report.LinkConfig, error)
}

// Defaults fill thresholds the inventory source leaves out.
type Defaults struct {
	MaxTrafficFraction float64
	HysteresisFraction float64
}

// hostEntry is one link of a hosts file. Omitted fractions stay nil so defaults can
// be told apart from explicit zeros.
type hostEntry struct {
	Name       string   `mapstructure:"link_name" json:"LINK_NAME"`
	Speed      float64  `mapstructure:"link_speed" json:"LINK_SPEED"`
	MaxTraffic *float64 `mapstructure:"link_max_traffic_percentage" json:"LINK_MAX_TRAFFIC_PERCENTAGE,omitempty"`
	Hysteresis *float64 `mapstructure:"link_histeresys" json:"LINK_HISTERESYS,omitempty"`
}

type hostsFile struct {
	Links []hostEntry `mapstructure:"links" json:"LINKS"`
}

// applyDefaults converts host entries into link configs.
func applyDefaults(entries []hostEntry, defaults Defaults) []report.LinkConfig {
	links := make([]report.LinkConfig, 0, len(entries))
	for _, e := range entries {
		link := report.LinkConfig{
			Name:               e.Name,
			CapacityBPS:        e.Speed,
			MaxTrafficFraction: defaults.MaxTrafficFraction,
			HysteresisFraction: defaults.HysteresisFraction,
		}
		if e.MaxTraffic != nil {
			link.MaxTrafficFraction = *e.MaxTraffic
		}
		if e.Hysteresis != nil {
			link.HysteresisFraction = *e.Hysteresis
		}
		links = append(links, link)
	}
	return links
}

// WriteSnapshot stores links as a hosts file that File can read back.
func WriteSnapshot(path string, links []report.LinkConfig) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	doc := hostsFile{Links: make([]hostEntry, 0, len(links))}
	for _, l := range links {
		maxTraffic, hysteresis := l.MaxTrafficFraction, l.HysteresisFraction
		doc.Links = append(doc.Links, hostEntry{
			Name:       l.Name,
			Speed:      l.CapacityBPS,
			MaxTraffic: &maxTraffic,
			Hysteresis: &hysteresis,
		})
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Capacities indexes link capacity by name.
func Capacities(links []report.LinkConfig) map[string]float64 {
	out := make(map[string]float64, len(links))
	for _, l := range links {
		out[l.Name] = l.CapacityBPS
	}
	return out
}
