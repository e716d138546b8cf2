package facepay

import (
    "fmt"
    "runtime"
    "strings"
    "time"

    "github.com/parsec/wechat-face-payment/internal/orderref"
    "github.com/parsec/wechat-face-payment/internal/wxauth"
    "github.com/parsec/wechat-face-payment/internal/wxpayface"
    "github.com/spf13/viper"
)

// Config is a configuration for the face payment bridge
type Config struct {
    HTTPAddr string `mapstructure:"http_addr"`
    // PlatformVersion is returned by getPlatformVersion; empty means "<GOOS> <go version>".
    PlatformVersion string `mapstructure:"platform_version"`
    AuthInfoURL     string `mapstructure:"authinfo_url"`
    UserInfoURL     string `mapstructure:"userinfo_url"`
    // HTTPTimeout bounds each call to the authorization endpoints.
    HTTPTimeout time.Duration `mapstructure:"http_timeout"`
    // CallbackTimeout bounds the wait for each SDK callback; zero waits forever.
    CallbackTimeout time.Duration `mapstructure:"callback_timeout"`
    // OrderRefWindow is the truncation unit of generated order references; zero means orderref.DefaultWindow.
    OrderRefWindow time.Duration `mapstructure:"order_ref_window"`
    // RepoBackend selects the outcome store: "mem" or "pg".
    RepoBackend string `mapstructure:"repo_backend"`
    DBDSN       string `mapstructure:"db_dsn"`
    Simulator   SimulatorConfig `mapstructure:"simulator"`
}

// SimulatorConfig scripts the in-process SDK used when no device SDK is attached.
type SimulatorConfig struct {
    // FaceCodeReturn is the return_code of the simulated face-code reply.
    FaceCodeReturn string        `mapstructure:"face_code_return"`
    ScanCode       string        `mapstructure:"scan_code"`
    Delay          time.Duration `mapstructure:"delay"`
}

func DefaultConfig() *Config {
    return &Config{
        HTTPAddr:        "localhost:9090",
        AuthInfoURL:     wxauth.DefaultAuthInfoURL,
        UserInfoURL:     wxauth.DefaultUserInfoURL,
        HTTPTimeout:     10 * time.Second,
        CallbackTimeout: 2 * time.Minute,
        OrderRefWindow:  orderref.DefaultWindow,
        RepoBackend:     "mem",
        Simulator: SimulatorConfig{
            FaceCodeReturn: wxpayface.CodeSuccess,
            ScanCode:       "134500000000000000",
        },
    }
}

// Platform returns the string reported by getPlatformVersion.
func (c *Config) Platform() string {
    if c.PlatformVersion != "" {
        return c.PlatformVersion
    }
    return fmt.Sprintf("%s %s", runtime.GOOS, runtime.Version())
}

// LoadConfig reads path (YAML, optional) over the defaults. Every key can be
// overridden from the environment as FACEPAY_<KEY>, e.g. FACEPAY_SIMULATOR_DELAY.
func LoadConfig(path string) (*Config, error) {
    v := viper.New()
    v.SetEnvPrefix("FACEPAY")
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
    v.AutomaticEnv()

    def := DefaultConfig()
    v.SetDefault("http_addr", def.HTTPAddr)
    v.SetDefault("platform_version", def.PlatformVersion)
    v.SetDefault("authinfo_url", def.AuthInfoURL)
    v.SetDefault("userinfo_url", def.UserInfoURL)
    v.SetDefault("http_timeout", def.HTTPTimeout)
    v.SetDefault("callback_timeout", def.CallbackTimeout)
    v.SetDefault("order_ref_window", def.OrderRefWindow)
    v.SetDefault("repo_backend", def.RepoBackend)
    v.SetDefault("db_dsn", def.DBDSN)
    v.SetDefault("simulator.face_code_return", def.Simulator.FaceCodeReturn)
    v.SetDefault("simulator.scan_code", def.Simulator.ScanCode)
    v.SetDefault("simulator.delay", def.Simulator.Delay)

    if path != "" {
        v.SetConfigFile(path)
        v.SetConfigType("yaml")
        if err := v.ReadInConfig(); err != nil {
            return nil, fmt.Errorf("read config %s: %w", path, err)
        }
    }

    cfg := &Config{}
    if err := v.Unmarshal(cfg); err != nil {
        return nil, fmt.Errorf("decode config: %w", err)
    }
    if err := cfg.Validate(); err != nil {
        return nil, err
    }
    return cfg, nil
}

// Validate rejects configurations the App cannot start with.
func (c *Config) Validate() error {
    switch c.RepoBackend {
    case "mem":
    case "pg":
        if c.DBDSN == "" {
            return fmt.Errorf("db_dsn is required for pg backend")
        }
    default:
        return fmt.Errorf("unsupported repo_backend=%s", c.RepoBackend)
    }
    if c.HTTPTimeout < 0 || c.CallbackTimeout < 0 {
        return fmt.Errorf("timeouts must not be negative")
    }
    if c.OrderRefWindow < 0 {
        return fmt.Errorf("order_ref_window must not be negative")
    }
    return nil
}

// NewSimulator builds a Simulator scripted by c.
func (c SimulatorConfig) NewSimulator() *wxpayface.Simulator {
    sim := wxpayface.NewSimulator()
    sim.Delay = c.Delay
    if c.FaceCodeReturn != "" {
        sim.FaceCode.Response[wxpayface.KeyReturnCode] = c.FaceCodeReturn
    }
    if c.ScanCode != "" {
        sim.Scanner.Response[wxpayface.KeyCodeMsg] = c.ScanCode
    }
    return sim
}
