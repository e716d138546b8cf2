package facepay

import (
    "context"
    "database/sql"
    "fmt"
    "net"
    "net/http"
    "sync"
    "time"

    "github.com/go-chi/chi/v5"
    chimw "github.com/go-chi/chi/v5/middleware"
    _ "github.com/lib/pq"
    "github.com/parsec/wechat-face-payment/internal/middleware"
    "github.com/parsec/wechat-face-payment/internal/wxauth"
    "github.com/parsec/wechat-face-payment/internal/wxpayface"
    "golang.org/x/exp/slog"
)

// App is the main application, it wires the SDK, the sequencer, the bridge
// and the HTTP method channel and is responsible for starting and stopping them.
type App struct {
    srv    *http.Server
    wg     *sync.WaitGroup
    Addr   string
    logger *slog.Logger
    config *Config
    sdk    wxpayface.SDK
    db     *sql.DB
    Bridge *Bridge
}

func NewApp(logger *slog.Logger, config *Config, sdk wxpayface.SDK) *App {
    logger = logger.With(slog.String("app", "facepay"))

    if config == nil {
        config = DefaultConfig()
    }

    return &App{
        wg:     &sync.WaitGroup{},
        logger: logger,
        config: config,
        sdk:    sdk,
    }
}

func (a *App) Start() error {
    a.logger.Info("starting app...")

    if err := a.config.Validate(); err != nil {
        return fmt.Errorf("invalid config: %w", err)
    }
    if a.sdk == nil {
        return fmt.Errorf("no sdk attached")
    }

    var repository *Repository
    switch a.config.RepoBackend {
    case "pg":
        db, err := sql.Open("postgres", a.config.DBDSN)
        if err != nil {
            return fmt.Errorf("open postgres: %w", err)
        }
        db.SetMaxIdleConns(2)
        db.SetMaxOpenConns(5)
        ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        defer cancel()
        if err := db.PingContext(ctx); err != nil {
            db.Close()
            return fmt.Errorf("ping postgres: %w", err)
        }
        repository = NewPGRepository(db)
        if err := repository.Migrate(ctx); err != nil {
            db.Close()
            return fmt.Errorf("migrate: %w", err)
        }
        a.db = db
    default:
        repository = NewRepository()
    }

    authClient := wxauth.New(a.config.AuthInfoURL, a.config.UserInfoURL, &http.Client{Timeout: a.config.HTTPTimeout})
    seq := NewSequencer(a.sdk, authClient, a.logger, a.config)
    a.Bridge = NewBridge(a.sdk, seq, authClient, repository, a.logger, a.config)

    router := chi.NewRouter()
    router.Use(chimw.RequestID)
    router.Use(middleware.NewStructuredLogger(a.logger))

    api := NewAPI(a.Bridge)
    api.AppendRoutes(router)

    router.Get("/-/live", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
    router.Get("/-/ready", func(w http.ResponseWriter, r *http.Request) {
        ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
        defer cancel()
        if err := repository.Ping(ctx); err != nil {
            http.Error(w, "db not ready", http.StatusServiceUnavailable)
            return
        }
        w.WriteHeader(http.StatusOK)
    })

    l, err := net.Listen("tcp", a.config.HTTPAddr)
    if err != nil {
        return fmt.Errorf("listening tcp port: %w", err)
    }

    a.Addr = l.Addr().String()

    a.srv = &http.Server{
        Handler:           router,
        ReadHeaderTimeout: 10 * time.Second,
    }

    a.wg.Add(1)
    go func() {
        a.logger.Info("http server started", slog.String("addr", a.Addr))

        if err := a.srv.Serve(l); err != nil {
            if err != http.ErrServerClosed {
                a.logger.Error("starting http server", "err", err)
            }

            a.logger.Info("http server stopped")
        }

        a.wg.Done()
    }()

    return nil
}

func (a *App) Shutdown() {
    a.logger.Info("shutting down app...")

    if a.srv != nil {
        ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        if err := a.srv.Shutdown(ctx); err != nil {
            a.logger.Error("shutting down http server", "err", err)
        }
    }

    if a.Bridge != nil {
        a.Bridge.Close()
    }

    if a.db != nil {
        if err := a.db.Close(); err != nil {
            a.logger.Error("closing db", "err", err)
        }
    }

    a.wg.Wait()

    a.logger.Info("app stopped")
}
