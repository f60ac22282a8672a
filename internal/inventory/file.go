package inventory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"link-watcher/internal/report"
)

// File reads links from a JSON or YAML hosts file:
//
//	{"LINKS": [{"LINK_NAME": "site-a", "LINK_SPEED": 1000000000}]}
type File struct {
	path     string
	defaults Defaults
	logger   zerolog.Logger
}

// NewFile builds a hosts-file inventory.
func NewFile(path string, defaults Defaults, logger zerolog.Logger) *File {
	return &File{
		path:     path,
		defaults: defaults,
		logger:   logger.With().Str("component", "inventory_file").Logger(),
	}
}

// ListLinks parses the hosts file on every call.
func (f *File) ListLinks(ctx context.Context) ([]report.LinkConfig, error) {
	if f.path == "" {
		return nil, fmt.Errorf("hosts file path not configured")
	}

	v := viper.New()
	v.SetConfigFile(f.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read hosts file: %w", err)
	}

	var doc hostsFile
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("decode hosts file: %w", err)
	}

	links := applyDefaults(doc.Links, f.defaults)
	f.logger.Info().Str("path", f.path).Int("links", len(links)).Msg("links loaded from hosts file")
	return links, nil
}

var _ Inventory = (*File)(nil)
