package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/gofrs/flock"

	"github.com/podvault/podvault/internal/scheduler"
	"github.com/podvault/podvault/internal/store"
	"github.com/podvault/podvault/internal/store/config"
	"github.com/podvault/podvault/internal/store/constants"
	"github.com/podvault/podvault/internal/syslog"
	"github.com/podvault/podvault/internal/web"
	"github.com/podvault/podvault/internal/web/ws"

	_ "github.com/KimMachineGun/automemlimit"
)

var Version = "v0.0.0"

func main() {
	configPath := flag.String("config", constants.AppConfigFile, "Path to the config file")
	logPath := flag.String("log", constants.LogFilePath, "Path to the log file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(Version)
		return
	}

	syslog.L.SetFileLogger(*logPath)

	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	// One daemon per host; a second instance would defeat the
	// single-batch guarantee.
	instanceLock := flock.New(constants.LockFilePath)
	locked, err := instanceLock.TryLock()
	if err != nil || !locked {
		syslog.L.Error(err).WithMessage("another podvault instance is already running").Write()
		os.Exit(1)
	}
	defer instanceLock.Unlock()

	cfg, err := config.Load(*configPath)
	if err != nil {
		syslog.L.Error(err).WithMessage("failed to load config").Write()
		os.Exit(1)
	}

	hub := ws.NewHub()
	storeInstance := store.NewStore(mainCtx, cfg, hub)

	if err := storeInstance.Worker().CheckVersion(mainCtx); err != nil {
		// Refusing to start would make a worker upgrade a chicken-and-
		// egg problem; batches are refused instead.
		syslog.L.Warn().WithMessage(err.Error()).Write()
	}

	sched := scheduler.New(storeInstance)
	sched.Reload(cfg)
	sched.Start()
	defer sched.Stop()

	go func() {
		err := config.Watch(mainCtx, *configPath, func(newCfg *config.AppConfig) {
			storeInstance.ApplyConfig(newCfg)
			sched.Reload(newCfg)
		})
		if err != nil {
			syslog.L.Error(err).WithMessage("config watcher failed to start").Write()
		}
	}()

	router := web.NewRouter(storeInstance, hub, Version)
	apiServer := web.NewServer(cfg.Server.Listen, router)

	var wg sync.WaitGroup
	wg.Add(1)
	go web.WatchAndServe(mainCtx, apiServer, cfg.Server.CertFile, cfg.Server.KeyFile, &wg)

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	syslog.L.Info().WithMessage("shutting down").Write()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	// Stop starting new jobs; the one already running finishes on the
	// worker regardless.
	if active := storeInstance.Runner.Active(); active != nil {
		active.RequestCancel()
	}

	mainCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
		syslog.L.Error(err).WithMessage("api server shutdown error").Write()
	}

	wg.Wait()
}
