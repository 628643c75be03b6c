package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quicknginx/backend/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"), nil)
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultBinaryPath, cfg.Nginx.Bin)
	assert.Equal(t, domain.DefaultConfigPath, cfg.Nginx.Conf)
	assert.True(t, cfg.Nginx.Bootstrap)
	assert.Equal(t, time.Second, cfg.Nginx.SettleDelay)
	assert.Equal(t, "reject", cfg.Lifecycle.BusyPolicy)
	assert.Equal(t, 5*time.Second, cfg.Lifecycle.PollInterval)
	assert.Equal(t, DefaultListen, cfg.Server.Listen)
	assert.Equal(t, []string{"yx_main", "yx_h5", "yx_tob", "yx_tob_admin"}, cfg.Fragments.IDs)

	catalog, err := cfg.Catalog()
	require.NoError(t, err)
	assert.Len(t, catalog.List(), 4)
	assert.Equal(t, "/usr/local/nginx/logs", cfg.Paths().LogDir)
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
nginx:
  bin: /opt/nginx/sbin/nginx
  conf: /opt/nginx/conf/nginx.conf
  settle_delay: 250ms
  bootstrap: false
fragments:
  include_dir: ./sites
  marker: "# fragments"
  ids: [blue, green]
lifecycle:
  busy_policy: QUEUE
  poll_interval: 2s
server:
  listen: 0.0.0.0:8088
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "/opt/nginx/sbin/nginx", cfg.Nginx.Bin)
	assert.Equal(t, 250*time.Millisecond, cfg.Nginx.SettleDelay)
	assert.False(t, cfg.Nginx.Bootstrap)
	assert.Equal(t, "queue", cfg.Lifecycle.BusyPolicy)
	assert.Equal(t, 2*time.Second, cfg.Lifecycle.PollInterval)
	assert.Equal(t, "0.0.0.0:8088", cfg.Server.Listen)

	catalog, err := cfg.Catalog()
	require.NoError(t, err)
	f, ok := catalog.Lookup("green")
	require.True(t, ok)
	assert.Equal(t, "include ./sites/green.conf;", f.Include)
	assert.Equal(t, "# fragments", catalog.Marker())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "nginx:\n  bin: /from/file\n")
	t.Setenv("QUICKNGINX_NGINX_BIN", "/from/env")
	t.Setenv("QUICKNGINX_LIFECYCLE_POLL_INTERVAL", "9s")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.Nginx.Bin)
	assert.Equal(t, 9*time.Second, cfg.Lifecycle.PollInterval)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("QUICKNGINX_SERVER_LISTEN", "127.0.0.1:1111")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("listen", DefaultListen, "")
	flags.String("busy-policy", DefaultBusyPolicy, "")
	require.NoError(t, flags.Parse([]string{"--listen", "127.0.0.1:2222"}))

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"), flags)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:2222", cfg.Server.Listen)
	assert.Equal(t, "reject", cfg.Lifecycle.BusyPolicy)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"bad policy":     "lifecycle:\n  busy_policy: drop\n",
		"bad listen":     "server:\n  listen: nowhere\n",
		"duplicate ids":  "fragments:\n  ids: [a, a]\n",
		"id with slash":  "fragments:\n  ids: [a/b]\n",
		"negative delay": "nginx:\n  settle_delay: -1s\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validation failed")
		})
	}
}

func TestSaveConfig_RoundTripsThroughLoad(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Nginx.Bin = "/srv/nginx"
	cfg.Lifecycle.PollInterval = 3 * time.Second

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "/srv/nginx", loaded.Nginx.Bin)
	assert.Equal(t, 3*time.Second, loaded.Lifecycle.PollInterval)
}
