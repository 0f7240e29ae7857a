package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lanshare/internal/config"
)

func TestConfigInit(t *testing.T) {
	p := filepath.Join(t.TempDir(), "lanshare.toml")
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"config", "init", p})
	if err := root.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out.String(), "wrote "+p) {
		t.Errorf("output = %q", out.String())
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "port = 8080") || !strings.Contains(string(b), `staleness = "5m0s"`) {
		t.Errorf("config file = %s", b)
	}

	root = newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"config", "init", p})
	if err := root.Execute(); err == nil {
		t.Error("second init must refuse to overwrite")
	}
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "lanshare "+Version) {
		t.Errorf("output = %q", out.String())
	}
}

func TestPrintBanner(t *testing.T) {
	cfg := config.Defaults()
	var buf bytes.Buffer
	printBanner(&buf, &cfg, "http://192.168.1.42:8080", "/srv/share", false)
	out := buf.String()
	for _, want := range []string{
		"Local:    http://localhost:8080",
		"Network:  http://192.168.1.42:8080",
		"Sharing:  /srv/share",
		"WebDAV:   http://192.168.1.42:8080/dav/",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("banner lacks %q:\n%s", want, out)
		}
	}

	buf.Reset()
	printBanner(&buf, &cfg, "http://192.168.1.42:8080", "", true)
	if !strings.Contains(buf.String(), "Scan to open") || strings.Count(buf.String(), "\n") < 15 {
		t.Errorf("banner without QR code:\n%s", buf.String())
	}
}

func TestBindServeFlags(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"-p", "9999", "--debug"}); err != nil {
		t.Fatal(err)
	}
	v := config.NewViper(filepath.Join(t.TempDir(), "none.toml"))
	if err := bindServeFlags(v, cmd); err != nil {
		t.Fatal(err)
	}
	if v.GetInt("port") != 9999 || v.GetString("log.level") != "debug" {
		t.Errorf("port = %d level = %q", v.GetInt("port"), v.GetString("log.level"))
	}
	if v.GetString("host") != "0.0.0.0" {
		t.Errorf("unset flag overrode the default: host = %q", v.GetString("host"))
	}
}
