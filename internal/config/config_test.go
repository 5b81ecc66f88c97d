package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
app:
  name: Tasky
logging:
  level: debug
  console: true
telegram:
  enabled: true
  token: from-file
  owner_user_ids: [42]
reminder:
  timezone: UTC
  past_policy: reject
  supersede: false
delivery:
  dismiss_after: 0s
  surface: both
update:
  enabled: true
  feed_url: http://127.0.0.1:9005
  schedule: "@every 6h"
storage:
  driver: sqlite
  path: ./data/tasky.db
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestParseYAML(t *testing.T) {
	p := writeFile(t, t.TempDir(), "tasky.yaml", sampleYAML)
	t.Setenv(EnvTelegramToken, "")

	cfg, err := NewManager(p).Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Telegram.Token != "from-file" || len(cfg.Telegram.OwnerUserIDs) != 1 || cfg.Telegram.OwnerUserIDs[0] != 42 {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
	if cfg.Reminder.PastPolicy != "reject" || SupersedeEnabled(cfg.Reminder) {
		t.Fatalf("reminder = %+v", cfg.Reminder)
	}
	if d, err := DismissAfter(cfg.Delivery); err != nil || d != 0 {
		t.Fatalf("DismissAfter = %v, %v; want 0 (disabled)", d, err)
	}
	if SurfaceKind(cfg.Delivery) != SurfaceBoth {
		t.Fatalf("surface = %q", cfg.Delivery.Surface)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
}

func TestParseEnvOverride(t *testing.T) {
	p := writeFile(t, t.TempDir(), "tasky.json", `{"telegram":{"enabled":true,"token":""}}`)
	t.Setenv(EnvTelegramToken, "from-env")

	cfg, err := NewManager(p).Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("token = %q, want env override", cfg.Telegram.Token)
	}
}

func TestParseDotEnvOverlay(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "tasky.json", `{"update":{"feed_url":"http://file"},"logging":{"level":"info"}}`)
	first := writeFile(t, dir, "base.env", EnvUpdateFeedURL+"=http://base\n"+EnvLogLevel+"=warn\n")
	second := writeFile(t, dir, "local.env", EnvUpdateFeedURL+"=http://local\n")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvUpdateFeedURL, "")
	os.Unsetenv(EnvUpdateFeedURL)

	cfg, err := NewManager(p, filepath.Join(dir, "missing.env"), first, second).Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Update.FeedURL != "http://local" {
		t.Fatalf("feed_url = %q, want later env file to win", cfg.Update.FeedURL)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q, want process env to win", cfg.Logging.Level)
	}
}

func TestDuration(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want time.Duration
		ok   bool
	}{
		{raw: "", want: time.Minute, ok: true},
		{raw: " 0s ", want: time.Minute, ok: true},
		{raw: "90s", want: 90 * time.Second, ok: true},
		{raw: "-1s"},
		{raw: "soon"},
	}
	for _, tt := range tests {
		got, err := Duration("x.timeout", tt.raw, time.Minute)
		if tt.ok != (err == nil) || (tt.ok && got != tt.want) {
			t.Fatalf("Duration(%q) = %v, %v", tt.raw, got, err)
		}
		if err != nil && !strings.Contains(err.Error(), "x.timeout") {
			t.Fatalf("Duration(%q) error %q lacks the field path", tt.raw, err)
		}
	}
	zero := "0s"
	if d, err := DismissAfter(DeliveryConfig{DismissAfter: &zero}); err != nil || d != 0 {
		t.Fatalf("explicit 0s dismiss_after = %v, %v; want disabled", d, err)
	}
}

func TestParseRejectsUnknownAndTrailing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for name, body := range map[string]string{
		"unknown.json":  `{"reminder":{"policy":"rollover"}}`,
		"trailing.json": `{} {}`,
		"bad.yaml":      "reminder: [",
	} {
		p := writeFile(t, dir, name, body)
		if _, err := NewManager(p).Parse(); err == nil {
			t.Fatalf("%s: expected parse error", name)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	bad := "soon"
	cfg := &Config{
		Telegram: TelegramConfig{Enabled: true},
		Delivery: DeliveryConfig{Surface: "hologram", DismissAfter: &bad},
		Update:   UpdateConfig{Enabled: true},
		Storage:  &StorageConfig{Driver: "file"},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"telegram.token", "delivery.surface", "delivery.dismiss_after", "update.feed_url", "storage.path"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}

	if err := Validate(&Config{}); err != nil {
		t.Fatalf("empty config should be valid: %v", err)
	}
	if d, _ := DismissAfter(DeliveryConfig{}); d != DefaultDismissAfter {
		t.Fatalf("default dismiss_after = %v", d)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	no := false
	oldCfg := &Config{Telegram: TelegramConfig{Token: "secret-a", OwnerUserIDs: []int64{1}}}
	newCfg := &Config{
		Telegram: TelegramConfig{Token: "secret-b", OwnerUserIDs: []int64{1, 2}},
		Reminder: ReminderConfig{Supersede: &no},
		Storage:  &StorageConfig{Driver: "file", Path: "x"},
	}
	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	want := []string{"reminder", "storage", "telegram", "telegram.transport"}
	if strings.Join(changed, ",") != strings.Join(want, ",") {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
	if len(attrs) == 0 {
		t.Fatal("expected attrs")
	}
	if got := NeedsRestart(changed); strings.Join(got, ",") != "storage,telegram.transport" {
		t.Fatalf("NeedsRestart = %v", got)
	}

	if changed, _ := SummarizeConfigChange(newCfg, newCfg); len(changed) != 0 {
		t.Fatalf("identical configs changed = %v", changed)
	}
}

func TestWatchPublishesValidChanges(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := writeFile(t, dir, "tasky.json", `{"logging":{"level":"info"}}`)
	m := NewManager(p)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	m.SetValidator(func(_ context.Context, cfg *Config) error { return Validate(cfg) })
	sub, unsub := m.Subscribe(4)
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()

	// Give the watcher a moment to register the directory.
	time.Sleep(200 * time.Millisecond)

	// Invalid config is rejected and never published.
	writeFile(t, dir, "tasky.json", `{"delivery":{"surface":"hologram"}}`)
	time.Sleep(600 * time.Millisecond)
	writeFile(t, dir, "tasky.json", `{"logging":{"level":"debug"}}`)

	select {
	case cfg := <-sub:
		if cfg.Logging.Level != "debug" {
			t.Fatalf("published level = %q", cfg.Logging.Level)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no config published")
	}
	if got := m.Get().Logging.Level; got != "debug" {
		t.Fatalf("Get().Logging.Level = %q", got)
	}
	cancel()
	<-done
}

func TestWatchReloadsOnEnvFileChange(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "tasky.json", `{"logging":{"level":"info"}}`)
	envFile := writeFile(t, dir, ".env", "")
	t.Setenv(EnvLogLevel, "")
	os.Unsetenv(EnvLogLevel)

	m := NewManager(p, envFile)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	sub, unsub := m.Subscribe(1)
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()
	time.Sleep(200 * time.Millisecond)

	writeFile(t, dir, ".env", EnvLogLevel+"=error\n")
	select {
	case cfg := <-sub:
		if cfg.Logging.Level != "error" {
			t.Fatalf("published level = %q", cfg.Logging.Level)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("env file change not published")
	}
	cancel()
	<-done
}

func TestSubscribeKeepsNewest(t *testing.T) {
	t.Parallel()
	m := NewManager("unused.json")
	sub, unsub := m.Subscribe(1)
	a, b := &Config{}, &Config{}
	m.publish(a)
	m.publish(b)
	if got := <-sub; got != b {
		t.Fatal("slow subscriber did not get the newest config")
	}
	unsub()
	unsub()
	if _, ok := <-sub; ok {
		t.Fatal("channel open after unsubscribe")
	}
	m.publish(a)
}
