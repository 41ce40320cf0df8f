package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/robfig/cron/v3"
	"github.com/umputun/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/modarc/modarc/app/notify"
	"github.com/modarc/modarc/app/store"
	"github.com/modarc/modarc/app/web"
)

var opts struct {
	Store struct {
		Type string `long:"type" env:"TYPE" choice:"remote" choice:"local" default:"local" description:"store backend type"`

		Remote struct {
			URL     string        `long:"url" env:"URL" description:"remote backend base URL"`
			APIKey  string        `long:"api-key" env:"API_KEY" description:"remote backend API key"`
			Timeout time.Duration `long:"timeout" env:"TIMEOUT" default:"30s" description:"remote request timeout"`
		} `group:"remote" namespace:"remote" env-namespace:"REMOTE"`

		Local struct {
			DBPath string `long:"db" env:"DB" default:"modarc.db" description:"sqlite database path"`
			Seed   string `long:"seed" env:"SEED" description:"yaml seed file, loaded on start"`
		} `group:"local" namespace:"local" env-namespace:"LOCAL"`
	} `group:"store" namespace:"store" env-namespace:"MODARC_STORE"`

	Web struct {
		Address        string        `long:"address" env:"ADDRESS" default:":8080" description:"listen address"`
		BaseURL        string        `long:"base-url" env:"BASE_URL" description:"base URL path for reverse proxy"`
		Hostname       string        `long:"hostname" env:"HOSTNAME" description:"hostname shown in UI"`
		AuthHash       string        `long:"auth-hash" env:"AUTH_HASH" description:"bcrypt hash of the admin password, empty disables auth"`
		LoginTTL       time.Duration `long:"login-ttl" env:"LOGIN_TTL" default:"24h" description:"session lifetime"`
		ArchiveTimeout time.Duration `long:"archive-timeout" env:"ARCHIVE_TIMEOUT" default:"10s" description:"archive request timeout"`
	} `group:"web" namespace:"web" env-namespace:"MODARC_WEB"`

	Notify struct {
		Destinations []string      `long:"destination" env:"DESTINATIONS" description:"webhook destination(s) for archive events" env-delim:","`
		Timeout      time.Duration `long:"timeout" env:"TIMEOUT" default:"10s" description:"webhook delivery timeout"`
		Attempts     int           `long:"attempts" env:"ATTEMPTS" default:"3" description:"delivery attempts per destination"`
	} `group:"notify" namespace:"notify" env-namespace:"MODARC_NOTIFY"`

	Refresh string `long:"refresh" env:"MODARC_REFRESH" description:"cron spec for scheduled collection reload, empty disables"`

	LogEnabled bool   `long:"log" env:"MODARC_LOG" description:"enable logging"`
	LogFile    string `long:"log-file" env:"MODARC_LOG_FILE" description:"log file path, rotated; empty logs to stdout only"`
	Dbg        bool   `long:"dbg" env:"MODARC_DEBUG" description:"debug mode"`
}

var revision = "unknown"

func main() {
	fmt.Printf("modarc %s\n", revision)

	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(2)
	}
	setupLogs(opts.LogEnabled, opts.Dbg, opts.LogFile)

	defer func() {
		if x := recover(); x != nil {
			log.Printf("[WARN] run time panic:\n%v", x)
			panic(x)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	signals(cancel) // handle SIGQUIT and SIGTERM

	if err := run(ctx); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	dataStore, err := makeStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to make store: %w", err)
	}
	defer func() {
		if err := dataStore.Close(); err != nil {
			log.Printf("[WARN] failed to close store: %v", err)
		}
	}()

	notifier := makeNotifier()

	srv, err := web.New(web.Config{
		Store:          dataStore,
		Notifier:       notifier,
		BaseURL:        opts.Web.BaseURL,
		Hostname:       makeHostName(),
		Version:        revision,
		PasswordHash:   opts.Web.AuthHash,
		LoginTTL:       opts.Web.LoginTTL,
		ArchiveTimeout: opts.Web.ArchiveTimeout,
		Settings:       makeSettings(),
	})
	if err != nil {
		return fmt.Errorf("failed to make web server: %w", err)
	}

	if opts.Refresh != "" {
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(opts.Refresh, func() { srv.Reload(context.Background()) }); err != nil {
			return fmt.Errorf("invalid refresh spec %q: %w", opts.Refresh, err)
		}
		scheduler.Start()
		defer scheduler.Stop()
		log.Printf("[INFO] scheduled collection refresh enabled, spec %q", opts.Refresh)
	}

	return srv.Run(ctx, opts.Web.Address)
}

// makeStore builds the store backend and, for a local store, applies the
// optional seed file
func makeStore(ctx context.Context) (web.Storage, error) {
	switch opts.Store.Type {
	case "remote":
		if opts.Store.Remote.URL == "" {
			return nil, fmt.Errorf("remote store requires --store.remote.url")
		}
		client := &http.Client{Timeout: opts.Store.Remote.Timeout}
		return store.NewRemote(opts.Store.Remote.URL, opts.Store.Remote.APIKey, client)

	case "local":
		local, err := store.NewLocal(opts.Store.Local.DBPath)
		if err != nil {
			return nil, err
		}
		if opts.Store.Local.Seed != "" {
			seed, err := store.LoadSeed(opts.Store.Local.Seed)
			if err != nil {
				return nil, fmt.Errorf("failed to load seed file: %w", err)
			}
			if err := local.Seed(ctx, seed); err != nil {
				return nil, fmt.Errorf("failed to apply seed file: %w", err)
			}
			log.Printf("[INFO] seeded %d modules from %s", len(seed.Modules), opts.Store.Local.Seed)
		}
		return local, nil
	}
	return nil, fmt.Errorf("unsupported store type %q", opts.Store.Type)
}

// makeNotifier returns nil when no destinations are configured, a typed
// nil would defeat the interface nil check in the web server
func makeNotifier() web.Notifier {
	svc := notify.New(notify.Params{
		Destinations: opts.Notify.Destinations,
		Hostname:     makeHostName(),
		Timeout:      opts.Notify.Timeout,
		Attempts:     opts.Notify.Attempts,
	})
	if svc == nil {
		return nil
	}
	return svc
}

func makeSettings() web.SettingsInfo {
	return web.SettingsInfo{
		Version:         revision,
		StartTime:       time.Now(),
		StoreKind:       opts.Store.Type,
		BackendURL:      opts.Store.Remote.URL,
		DBPath:          dbPathForSettings(),
		WebAddress:      opts.Web.Address,
		WebHostname:     makeHostName(),
		AuthEnabled:     opts.Web.AuthHash != "",
		RefreshEnabled:  opts.Refresh != "",
		RefreshSpec:     opts.Refresh,
		NotifyDestCount: len(opts.Notify.Destinations),
		LoggingEnabled:  opts.LogEnabled,
		DebugMode:       opts.Dbg,
		LogFilePath:     opts.LogFile,
	}
}

func dbPathForSettings() string {
	if opts.Store.Type != "local" {
		return ""
	}
	return opts.Store.Local.DBPath
}

func makeHostName() string {
	if opts.Web.Hostname != "" {
		return opts.Web.Hostname
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

func setupLogs(enabled, dbg bool, logFile string) {
	if !enabled {
		log.Setup(log.Out(io.Discard), log.Err(io.Discard))
		return
	}

	logOpts := []log.Option{log.Msec}
	if dbg {
		logOpts = []log.Option{log.Debug, log.Msec, log.CallerFunc, log.CallerPkg, log.CallerFile}
	}

	if logFile != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		logOpts = append(logOpts, log.Out(io.MultiWriter(os.Stdout, fileWriter)))
	}

	log.Setup(logOpts...)
}

func signals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	go func() {
		stacktrace := make([]byte, 8192)
		for sig := range sigChan {
			if sig == syscall.SIGQUIT { // catch SIGQUIT and print stack traces
				length := runtime.Stack(stacktrace, true)
				fmt.Println(string(stacktrace[:length]))
				continue
			}
			cancel() // terminate on SIGTERM
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT, syscall.SIGTERM)
}
