package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	c := Default()
	if c.Safety.TileSizeMeters != 50 || c.Safety.KAnon != 3 || c.Safety.WindowDays != 30 || c.Safety.HeatmapWindowDays != 90 {
		t.Fatalf("unexpected safety defaults: %+v", c.Safety)
	}
	if c.Cache.TTL != 60*time.Second {
		t.Fatalf("cache ttl: %v", c.Cache.TTL)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "safemap.yaml")
	body := "safety:\n  tileSizeMeters: 100\n  kAnon: 5\ncache:\n  ttl: 30s\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SAFETY_K_ANON", "7")
	t.Setenv("PORT", "9090")
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Safety.TileSizeMeters != 100 {
		t.Fatalf("tile size from yaml: %v", c.Safety.TileSizeMeters)
	}
	if c.Safety.KAnon != 7 {
		t.Fatalf("env must override yaml: %d", c.Safety.KAnon)
	}
	if c.Cache.TTL != 30*time.Second {
		t.Fatalf("ttl: %v", c.Cache.TTL)
	}
	if c.Server.Addr != ":9090" {
		t.Fatalf("addr: %s", c.Server.Addr)
	}
}

func TestValidateRejectsDegenerateTile(t *testing.T) {
	c := Default()
	c.Safety.TileSizeMeters = 0
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for zero tile size")
	}
}

func TestApplyEnvReportsBadNumbers(t *testing.T) {
	c := Default()
	env := map[string]string{"SAFETY_TILE_METERS": "abc"}
	err := c.applyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	if err == nil {
		t.Fatal("expected parse error")
	}
}
