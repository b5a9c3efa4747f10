package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"futurebot/internal/app"
	"futurebot/internal/auth"
	"futurebot/internal/contract"
	"futurebot/internal/journal"
	"futurebot/internal/notify"
	"futurebot/internal/obs"
	"futurebot/internal/ops"
	"futurebot/internal/recorder"
	"futurebot/internal/schedule"
	"futurebot/internal/status"
	"futurebot/pkg/exception"
	ws "futurebot/pkg/websocket"

	"github.com/grafana/pyroscope-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
)

const (
	_dialAttempts  = 3
	_queueCapacity = 256
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config")
	logFile := flag.String("log-file", "", "Trading log file (overrides config)")
	statusAddr := flag.String("metrics-addr", "", "Status and metrics listen address (overrides config)")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (empty=disabled)")
	flag.Parse()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		logs.Errorf("load config, err: %+v", err)
		os.Exit(2)
	}
	if *logFile != "" {
		cfg.Log.Path = *logFile
	}
	if *statusAddr != "" {
		cfg.Status.Addr = *statusAddr
	}

	if *pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "futurebot.trader",
			ServerAddress:   *pyroscopeAddr,
			Logger:          profilerLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			logs.Errorf("start pyroscope, err: %+v", err)
		} else {
			defer func() { _ = profiler.Stop() }()
		}
	}

	if err := run(cfg); err != nil {
		logs.Errorf("trader stopped, err: %+v", err)
		if errors.Is(err, exception.ErrReconnectStorm) {
			os.Exit(1)
		}
		os.Exit(2)
	}
	logs.Info("trader stopped")
}

func run(cfg ops.Loaded) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan struct{})
	go func() {
		<-sys.Shutdown()
		logs.Info("shutdown requested")
		close(interrupt)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := obs.NewMetrics(reg)

	logCfg := recorder.DefaultConfig(cfg.Log.Path)
	rec, err := recorder.NewWriter(logCfg, metrics)
	if err != nil {
		return err
	}
	if err := rec.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := rec.Close(); err != nil {
			logs.Errorf("close trading log, err: %+v", err)
		}
	}()

	loc, err := time.LoadLocation(logCfg.Location)
	if err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}

	hub := notify.NewHub(
		notify.NewEmail(notify.SMTPConfig(cfg.Notify.SMTP), loc),
		notify.NewSMS(notify.TwilioConfig(cfg.Notify.Twilio), httpClient),
		_queueCapacity, metrics,
	)
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(ctx)
	}()
	defer func() {
		hub.Close()
		select {
		case <-hubDone:
		case <-time.After(cfg.Intervals.ShutdownGrace):
		}
	}()

	var jr journal.Journal = journal.Nop{}
	if cfg.Journal.DSN != "" {
		store, err := journal.Open(ctx, cfg.Journal.DSN)
		if err != nil {
			logs.Errorf("open trade journal, err: %+v", err)
		} else {
			defer store.Close()
			async := journal.NewAsync(store, _queueCapacity, metrics)
			go async.Run(ctx)
			defer async.Close()
			jr = async
		}
	}

	tradingURL := "https://" + cfg.Server.TradingHost
	creds := auth.NewSource(auth.NewClient(auth.Config{
		BaseURL:    tradingURL,
		Username:   cfg.Credentials.Username,
		Password:   cfg.Credentials.Password,
		AppID:      cfg.Server.AppID,
		AppVersion: cfg.Server.AppVersion,
		CID:        cfg.Credentials.CID,
		Secret:     cfg.Credentials.Secret,
		DeviceID:   cfg.Credentials.DeviceID,
		CachePath:  cfg.Credentials.CachePath,
	}, httpClient))

	hours, err := schedule.Default()
	if err != nil {
		return err
	}

	runner := app.NewRunner(cfg, app.Deps{
		Credentials: creds,
		Contracts:   contract.NewClient(tradingURL, httpClient),
		Dial:        dial,
		Hours:       hours,
		Notifier:    hub,
		Journal:     jr,
		Recorder:    rec,
		Metrics:     metrics,
		Interrupt:   interrupt,
		Location:    loc,
	})

	if cfg.Status.Addr != "" {
		srv := status.NewServer(runner.Report, reg)
		go func() {
			if err := srv.Run(ctx, cfg.Status.Addr); err != nil {
				logs.Errorf("status server, err: %+v", err)
			}
		}()
	}

	logs.Infof("trader started for %s", cfg.Strategy.Symbol)
	return runner.Run(ctx)
}

func dial(ctx context.Context, url string) (app.Conn, error) {
	conn, err := ws.DialWithRetry(ctx, url, nil, ws.DefaultBackoff(), _dialAttempts)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

type profilerLogger struct{}

func (profilerLogger) Infof(format string, args ...interface{})  { logs.Infof(format, args...) }
func (profilerLogger) Debugf(string, ...interface{})             {}
func (profilerLogger) Errorf(format string, args ...interface{}) { logs.Errorf(format, args...) }
