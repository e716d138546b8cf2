package facepay_test

import (
    "os"
    "path/filepath"
    "testing"
    "time"

    "github.com/parsec/wechat-face-payment/facepay"
    "github.com/parsec/wechat-face-payment/internal/wxpayface"
    "github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
    cfg := facepay.DefaultConfig()
    require.Equal(t, "mem", cfg.RepoBackend)
    require.Equal(t, 2*time.Minute, cfg.CallbackTimeout)
    require.Equal(t, 100*time.Second, cfg.OrderRefWindow)
    require.NoError(t, cfg.Validate())
    require.NotEmpty(t, cfg.Platform())
}

func TestLoadConfig_File(t *testing.T) {
    dir := t.TempDir()
    path := filepath.Join(dir, "facepay.yaml")
    content := `http_addr: "127.0.0.1:0"
platform_version: "Android 10"
callback_timeout: 5s
simulator:
  face_code_return: USER_CANCEL
  delay: 10ms
`
    require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

    cfg, err := facepay.LoadConfig(path)
    require.NoError(t, err)
    require.Equal(t, "127.0.0.1:0", cfg.HTTPAddr)
    require.Equal(t, "Android 10", cfg.Platform())
    require.Equal(t, 5*time.Second, cfg.CallbackTimeout)
    require.Equal(t, 10*time.Second, cfg.HTTPTimeout)
    require.Equal(t, "USER_CANCEL", cfg.Simulator.FaceCodeReturn)
    require.Equal(t, 10*time.Millisecond, cfg.Simulator.Delay)

    sim := cfg.Simulator.NewSimulator()
    require.Equal(t, wxpayface.CodeUserCancel, sim.FaceCode.Response[wxpayface.KeyReturnCode])
}

func TestLoadConfig_Env(t *testing.T) {
    t.Setenv("FACEPAY_REPO_BACKEND", "pg")
    t.Setenv("FACEPAY_DB_DSN", "postgres://localhost/facepay")
    t.Setenv("FACEPAY_SIMULATOR_SCAN_CODE", "999")

    cfg, err := facepay.LoadConfig("")
    require.NoError(t, err)
    require.Equal(t, "pg", cfg.RepoBackend)
    require.Equal(t, "postgres://localhost/facepay", cfg.DBDSN)
    require.Equal(t, "999", cfg.Simulator.ScanCode)
}

func TestLoadConfig_Invalid(t *testing.T) {
    t.Setenv("FACEPAY_REPO_BACKEND", "pg")
    _, err := facepay.LoadConfig("")
    require.ErrorContains(t, err, "db_dsn")

    t.Setenv("FACEPAY_REPO_BACKEND", "redis")
    _, err = facepay.LoadConfig("")
    require.ErrorContains(t, err, "unsupported repo_backend")

    cfg := facepay.DefaultConfig()
    cfg.OrderRefWindow = -time.Second
    require.ErrorContains(t, cfg.Validate(), "order_ref_window")

    _, err = facepay.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
    require.Error(t, err)
}
