package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr() != "0.0.0.0:7777" {
		t.Fatalf("addr %s", cfg.Server.Addr())
	}
	if cfg.Match.Timings.Shopping != 15*time.Second || cfg.Match.Timings.Intro != 2*time.Second {
		t.Fatalf("timings %+v", cfg.Match.Timings)
	}
	if cfg.Auth.TicketDuration != time.Hour || cfg.AI.Timeout != 3*time.Second {
		t.Fatalf("auth %+v ai %+v", cfg.Auth, cfg.AI)
	}
	if cfg.RemoteSync.Enabled {
		t.Fatal("remote sync enabled by default")
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "sos.yaml", `
server:
  http_port: 9000
database:
  path: /tmp/x.db
match:
  early_resolve: true
  timings:
    shopping: 5s
ai:
  endpoint: http://localhost:8081/move
nats:
  url: nats://127.0.0.1:4222
remote_sync:
  enabled: true
  bucket: saves
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != 9000 || cfg.Database.Path != "/tmp/x.db" {
		t.Fatalf("server %+v db %+v", cfg.Server, cfg.Database)
	}
	if !cfg.Match.EarlyResolve || cfg.Match.Timings.Shopping != 5*time.Second {
		t.Fatalf("match %+v", cfg.Match)
	}
	if cfg.Match.Timings.Resolution != 5*time.Second {
		t.Fatal("unset timing not defaulted")
	}
	if !cfg.RemoteSync.Enabled || cfg.RemoteSync.Prefix != "profiles" || cfg.RemoteSync.Region != "auto" {
		t.Fatalf("remote sync %+v", cfg.RemoteSync)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	if _, err := Load(writeFile(t, "bad.yaml", "server: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SOS_HTTP_PORT", "8123")
	t.Setenv("SOS_TICKET_SECRET", "s3cret")
	t.Setenv("SOS_S3_BUCKET", "backups")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != 8123 || cfg.Auth.TicketSecret != "s3cret" {
		t.Fatalf("env not applied: %+v %+v", cfg.Server, cfg.Auth)
	}
	if !cfg.RemoteSync.Enabled || cfg.RemoteSync.Bucket != "backups" {
		t.Fatalf("remote sync %+v", cfg.RemoteSync)
	}

	t.Setenv("SOS_HTTP_PORT", "eighty")
	if _, err := Load(""); err == nil {
		t.Fatal("expected bad port error")
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := writeFile(t, ".env", "SOS_NATS_URL=nats://env:4222\n")
	t.Setenv("SOS_NATS_URL", "")
	os.Unsetenv("SOS_NATS_URL")
	if got := LoadEnv(filepath.Join(t.TempDir(), "none"), path); got != path {
		t.Fatalf("loaded %q", got)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.NATS.URL != "nats://env:4222" {
		t.Fatalf("nats url %q", cfg.NATS.URL)
	}
}
