package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: test\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Watch.WorkHourBegin != 8 || cfg.Watch.WorkHourEnd != 18 {
		t.Fatalf("work hours = %d..%d", cfg.Watch.WorkHourBegin, cfg.Watch.WorkHourEnd)
	}
	if cfg.Watch.Cadence != 5*time.Minute {
		t.Fatalf("cadence = %s", cfg.Watch.Cadence)
	}
	if cfg.Alert.Days != 7 || cfg.Alert.TimeThresholdMinutes != 60 {
		t.Fatalf("alert defaults = %+v", cfg.Alert)
	}
	if cfg.Storage.Backend != StorageFile || cfg.Inventory.Source != InventoryFile {
		t.Fatalf("backends = %s/%s", cfg.Storage.Backend, cfg.Inventory.Source)
	}
	if day, err := cfg.AlertWeekday(); err != nil || day != time.Monday {
		t.Fatalf("alert weekday = %v, %v", day, err)
	}
}

func TestLoadFileAndEnvironment(t *testing.T) {
	t.Setenv("LINKWATCHER_INFLUX_PASSWORD", "from-env")
	path := writeConfig(t, strings.Join([]string{
		"app:",
		"  timezone: America/Sao_Paulo",
		"watch:",
		"  work_hour_begin: 7",
		"  work_hour_end: 19",
		"  ignore: [lab, spare]",
		"alerting:",
		"  telegram:",
		"    enabled: true",
		"    bot_token: abc",
		"    chat_ids: [\"-100\", \"-200\"]",
	}, "\n"))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Influx.Password != "from-env" {
		t.Fatalf("env override not applied: %q", cfg.Influx.Password)
	}
	if cfg.Watch.WorkHourBegin != 7 || len(cfg.Watch.Ignore) != 2 {
		t.Fatalf("watch = %+v", cfg.Watch)
	}
	if len(cfg.Alerting.Telegram.ChatIDs) != 2 {
		t.Fatalf("chat ids = %v", cfg.Alerting.Telegram.ChatIDs)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "America/Sao_Paulo" {
		t.Fatalf("location = %v, %v", loc, err)
	}
}

func TestValidateRejectsInvertedWorkHours(t *testing.T) {
	_, err := Load(writeConfig(t, "watch:\n  work_hour_begin: 19\n  work_hour_end: 8\n"))
	if err == nil || !strings.Contains(err.Error(), "work_hour_begin") {
		t.Fatalf("expected work hour error, got %v", err)
	}
}

func TestValidateBackends(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{body: "storage:\n  backend: s3\n", want: "storage.backend"},
		{body: "storage:\n  backend: postgres\n", want: "database.dsn"},
		{body: "inventory:\n  source: netbox\n", want: "inventory.netbox"},
		{body: "scheduler:\n  alert_weekday: someday\n", want: "alert_weekday"},
		{body: "alerting:\n  telegram:\n    enabled: true\n    bot_token: x\n", want: "chat_ids"},
		{body: "watch:\n  default_hysteresis_fraction: 1.5\n", want: "fractions"},
	}
	for _, tc := range cases {
		_, err := Load(writeConfig(t, tc.body))
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("config %q: expected error containing %q, got %v", tc.body, tc.want, err)
		}
	}
}
