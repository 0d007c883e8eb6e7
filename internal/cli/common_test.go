package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	jerrors "github.com/jinix-lang/jinix/internal/errors"
)

func TestLoadConfigLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jinix.json")
	if err := os.WriteFile(path, []byte(`{"policy": "global", "workers": 2, "out_dir": "gen"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JINIX_WORKERS", "6")
	t.Setenv("JINIX_VERBOSE", "true")

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Policy != "global" || c.OutDir != "gen" {
		t.Errorf("file values lost: %+v", c)
	}
	if c.Workers != 6 || !c.Verbose {
		t.Errorf("environment not applied: %+v", c)
	}
	if c.Report != "jinix-report.json" || c.Compiler != "g++" {
		t.Errorf("defaults lost: %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	c, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatal(err)
	}
	if c.OutDir != ".jinix" {
		t.Errorf("config = %+v", c)
	}
}

func TestConfigValidate(t *testing.T) {
	c := DefaultConfig()
	c.Policy = "everywhere"
	if err := c.Validate(); !jerrors.IsCategory(err, jerrors.CategoryValidation) {
		t.Errorf("bad policy error = %v", err)
	}
	c = DefaultConfig()
	c.Workers = -1
	if err := c.Validate(); !jerrors.IsCategory(err, jerrors.CategoryValidation) {
		t.Errorf("negative workers error = %v", err)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jinix.json")
	c := DefaultConfig()
	c.CacheDir = "/tmp/cache"
	if err := c.SaveConfig(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got Config
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.CacheDir != "/tmp/cache" || got.Library != "jinix" {
		t.Errorf("saved = %+v", got)
	}
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jinix.json")
	c := DefaultConfig()
	c.Policy = "global"
	if err := c.InitConfig(path, false); err != nil {
		t.Fatal(err)
	}
	if err := DefaultConfig().InitConfig(path, false); !jerrors.IsCategory(err, jerrors.CategoryValidation) {
		t.Errorf("second init error = %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Policy != "global" {
		t.Errorf("existing file overwritten: %+v", loaded)
	}

	if err := DefaultConfig().InitConfig(path, true); err != nil {
		t.Fatal(err)
	}
	if loaded, err = LoadConfig(path); err != nil || loaded.Policy != "inline" {
		t.Errorf("forced init = %+v, %v", loaded, err)
	}
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	quiet := NewLoggerTo(&buf, false, false)
	quiet.Info("hidden")
	quiet.Warn("shown %d", 1)
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "shown 1") {
		t.Errorf("quiet output = %q", out)
	}

	buf.Reset()
	debug := NewLoggerTo(&buf, false, true)
	debug.WithFields(map[string]interface{}{"class": "demo.Calc"}).Debug("transpiled")
	if out := buf.String(); !strings.Contains(out, "transpiled") || !strings.Contains(out, "class=demo.Calc") {
		t.Errorf("debug output = %q", out)
	}
}

func TestPrintVersionJSON(t *testing.T) {
	var buf bytes.Buffer
	PrintVersion(&buf, "jinix", true)
	var got struct {
		Tool string       `json:"tool"`
		Info *VersionInfo `json:"version_info"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output %q: %v", buf.String(), err)
	}
	if got.Tool != "jinix" || got.Info.Version != Version {
		t.Errorf("version = %+v", got)
	}
}
