package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"fileserver/internal/config"
	"fileserver/internal/httpserver"
	"fileserver/internal/logging"
	"fileserver/internal/metrics"
)

func main() {
	var (
		addr           = flag.String("addr", "", "listen address (default "+config.DefaultAddr+")")
		root           = flag.String("root", "", "directory to serve (required if -config is not set)")
		cfgPath        = flag.String("config", "", "path to config json (optional)")
		metricsAddr    = flag.String("metrics-addr", "", "serve /metrics on this address")
		logLevel       = flag.String("log-level", "", "debug, info, warn or error")
		logFormat      = flag.String("log-format", "", "json or console")
		followSymlinks = flag.Bool("follow-symlinks", false, "follow symlinks that stay inside root")
		maxConns       = flag.Int("max-conns", 0, "max simultaneous connections (0 = unlimited)")
	)
	flag.Parse()

	var cfg config.Config
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			fatal("load config", err)
		}
	}
	// flags override the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "root":
			cfg.Root = *root
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		case "follow-symlinks":
			cfg.FollowSymlinks = *followSymlinks
		case "max-conns":
			cfg.MaxConns = *maxConns
		}
	})
	if *cfgPath == "" && strings.TrimSpace(cfg.Root) == "" {
		fatal("missing -root (or provide -config)", nil)
	}
	if err := cfg.Validate(); err != nil {
		fatal("invalid config", err)
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		fatal("init logging", err)
	}
	defer func() { _ = logging.Sync() }()
	log := logging.L()

	srv, err := httpserver.New(httpserver.Options{Config: cfg})
	if err != nil {
		log.Fatal("server init", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, srv.Handler(), log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
	log.Info("bye")
}

func run(ctx context.Context, cfg config.Config, handler http.Handler, log *zap.Logger) error {
	readHeaderTimeout := time.Duration(cfg.ReadHeaderTimeout)
	web := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	servers := []*http.Server{web}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	if cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConns)
	}

	g, gctx := errgroup.WithContext(ctx)

	var certs *autocert.Manager
	if len(cfg.Autocert.Domains) > 0 {
		certs = &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(cfg.Autocert.Domains...),
			Cache:      autocert.DirCache(cfg.Autocert.CacheDir),
		}
		web.TLSConfig = certs.TLSConfig()
		if cfg.Autocert.HTTPAddr != "" {
			challenge := &http.Server{
				Addr:              cfg.Autocert.HTTPAddr,
				Handler:           certs.HTTPHandler(nil),
				ReadHeaderTimeout: readHeaderTimeout,
			}
			servers = append(servers, challenge)
			g.Go(func() error { return serve(challenge, nil) })
		}
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		ms := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
		servers = append(servers, ms)
		g.Go(func() error { return serve(ms, nil) })
		log.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
	}

	g.Go(func() error {
		if certs != nil {
			log.Info("fileserver listening (tls)", zap.String("addr", cfg.Addr), zap.String("root", cfg.Root), zap.Strings("domains", cfg.Autocert.Domains))
			return ignoreClosed(web.ServeTLS(ln, "", ""))
		}
		log.Info("fileserver listening", zap.String("addr", cfg.Addr), zap.String("root", cfg.Root))
		return serve(web, ln)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		var errs []error
		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func serve(s *http.Server, ln net.Listener) error {
	if ln == nil {
		return ignoreClosed(s.ListenAndServe())
	}
	return ignoreClosed(s.Serve(ln))
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func fatal(msg string, err error) {
	if err != nil {
		logging.L().Fatal(msg, zap.Error(err))
	}
	logging.L().Fatal(msg)
}
