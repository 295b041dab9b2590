package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"weather_dashboard/internal/handlers"
	"weather_dashboard/internal/logger"
	"weather_dashboard/internal/metrics"
	"weather_dashboard/internal/repository"
	"weather_dashboard/internal/repository/db"
	"weather_dashboard/internal/server"
	"weather_dashboard/internal/service"
	"weather_dashboard/internal/weather"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const shutdownTimeout = 10 * time.Second

// @title        Weather Dashboard API
// @version      1.0
// @description  Current weather per city with a per-browser dashboard session.
// @BasePath     /
func main() {
	// .env is optional
	envErr := godotenv.Load()

	cfgErr := loadConfig()

	// init logger
	log := logger.Init(viper.GetString("log.level"), viper.GetString("log.format"))
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.Warnw("failed to load .env", "err", envErr)
	}
	if cfgErr != nil {
		log.Fatalw("error reading config", "err", cfgErr)
	}

	// open DB
	sqlDB, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(sqlDB)
	settings, closeSettings, err := openSettings(repos, log)
	if err != nil {
		log.Fatalw("failed to init settings store", "err", err)
	}
	defer closeSettings()

	m := metricsFromConfig()
	client := weather.NewClient(weather.Config{
		BaseURL: viper.GetString("weather.base_url"),
		APIKey:  viper.GetString("weather.api_key"),
		Timeout: viper.GetDuration("weather.timeout"),
	}, nil)
	if strings.TrimSpace(viper.GetString("weather.api_key")) == "" {
		log.Warnw("WEATHER_API_KEY is not set; every fetch will fail with a configuration error")
	}

	factory := service.DashboardFactoryFor(service.DashboardConfig{
		DefaultCity:                 viper.GetString("dashboard.default_city"),
		RefreshInterval:             viper.GetDuration("dashboard.refresh_interval"),
		KeepSnapshotOnSilentFailure: viper.GetBool("dashboard.keep_snapshot_on_silent_failure"),
	}, service.DashboardDeps{
		Fetcher:  client,
		Settings: settings,
		Events:   repos.EventRepo,
		Metrics:  m,
		Log:      log,
	})
	sessions := service.NewSessionManager(service.SessionConfig{
		Secret:   viper.GetString("session.secret"),
		TokenTTL: viper.GetDuration("session.token_ttl"),
		IdleTTL:  viper.GetDuration("session.idle_ttl"),
	}, factory, m, log)

	services := service.NewService(repos, sessions)
	apiHandler := handlers.NewHandler(services, log, handlers.Config{
		Metrics:      metricsHandler(m),
		Location:     location(log),
		SecureCookie: viper.GetBool("session.secure_cookie"),
	})

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// evict idle dashboards
	go sessions.Run(ctx, viper.GetDuration("session.sweep_interval"))

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, sessions, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")

	viper.SetDefault("port", "8080")
	viper.SetDefault("log.level", logger.InfoLevel)
	viper.SetDefault("log.format", logger.FormatConsole)
	viper.SetDefault("db.path", "weather.db")
	viper.SetDefault("storage.driver", "sqlite")
	viper.SetDefault("weather.base_url", weather.DefaultBaseURL)
	viper.SetDefault("dashboard.default_city", service.DefaultCity)
	viper.SetDefault("dashboard.refresh_interval", service.DefaultRefreshInterval)
	viper.SetDefault("session.sweep_interval", time.Minute)
	viper.SetDefault("metrics.enabled", true)

	// WEATHER_API_KEY -> weather.api_key, SESSION_SECRET -> session.secret, ...
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about
	_ = viper.BindEnv("weather.api_key")
	_ = viper.BindEnv("session.secret")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "weather.db")
		dbPath = "weather.db"
	}
	return db.InitDB(dbPath)
}

// openSettings picks the last-city store named by storage.driver.
func openSettings(repos *repository.Repository, log *logger.Logger) (repository.SettingsRepo, func(), error) {
	switch driver := strings.ToLower(viper.GetString("storage.driver")); driver {
	case "", "sqlite":
		return repos.Settings, func() {}, nil
	case "redis":
		r, err := repository.NewSettingsRedis(
			viper.GetString("redis.addr"),
			viper.GetString("redis.password"),
			viper.GetInt("redis.db"),
		)
		if err != nil {
			return nil, nil, err
		}
		log.Infow("settings store", "driver", driver, "addr", viper.GetString("redis.addr"))
		return r, func() {
			if err := r.Close(); err != nil {
				log.Errorw("failed to close redis", "err", err)
			}
		}, nil
	default:
		return nil, nil, errors.New("unknown storage.driver " + driver + " (want sqlite or redis)")
	}
}

func metricsFromConfig() *metrics.Metrics {
	if !viper.GetBool("metrics.enabled") {
		return nil
	}
	return metrics.New()
}

func metricsHandler(m *metrics.Metrics) http.Handler {
	if m == nil {
		return nil
	}
	return m.Handler()
}

// location resolves dashboard.timezone; an unknown name falls back to the local zone.
func location(log *logger.Logger) *time.Location {
	name := viper.GetString("dashboard.timezone")
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Warnw("unknown dashboard.timezone; using local zone", "timezone", name, "err", err)
		return time.Local
	}
	return loc
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		log.Infow("http server starting", "port", port)
		if err := srv.Run(port, handler.InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, sessions *service.SessionManager, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}

	// cancel every dashboard's refresh timer
	sessions.Close()
	_ = log.Sync()
}
