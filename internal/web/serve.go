package web

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/podvault/podvault/internal/orchestrator"
	"github.com/podvault/podvault/internal/store"
	"github.com/podvault/podvault/internal/store/constants"
	"github.com/podvault/podvault/internal/syslog"
	"github.com/podvault/podvault/internal/web/controllers/batches"
	"github.com/podvault/podvault/internal/web/controllers/plus"
	"github.com/podvault/podvault/internal/web/controllers/targets"
	"github.com/podvault/podvault/internal/web/middlewares"
	"github.com/podvault/podvault/internal/web/ws"
)

// NewRouter builds the API surface the UI talks to.
func NewRouter(storeInstance *store.Store, hub *ws.Hub, serverVersion string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api2/json/batches", batches.StartHandler(storeInstance))
	mux.HandleFunc("GET /api2/json/batches", batches.ListHandler(storeInstance))
	mux.HandleFunc("GET /api2/json/batches/{batch}", batches.GetHandler(storeInstance))
	mux.HandleFunc("DELETE /api2/json/batches/{batch}", batches.DeleteHandler(storeInstance))
	mux.HandleFunc("POST /api2/json/jobs/run", batches.RunSingleHandler(storeInstance))
	mux.HandleFunc("GET /api2/json/targets", targets.ListHandler(storeInstance))
	mux.HandleFunc("GET /api2/json/plus/lock", plus.LockHandler(storeInstance))
	mux.HandleFunc("GET /api2/json/plus/version", plus.VersionHandler(storeInstance, serverVersion))
	mux.Handle("GET /api2/json/plus/metrics", orchestrator.MetricsHandler())
	mux.HandleFunc("GET /api2/json/ws", hub.Handler())

	return middlewares.CORS(middlewares.RateLimit(mux))
}

// NewServer wraps the router with the standard timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:           addr,
		Handler:        handler,
		ReadTimeout:    constants.HTTPReadTimeout,
		WriteTimeout:   constants.HTTPWriteTimeout,
		IdleTimeout:    constants.HTTPIdleTimeout,
		MaxHeaderBytes: constants.HTTPMaxHeaderBytes,
	}
}

// WatchAndServe runs the API server, restarting it when a watched file
// (certificate, key) changes on disk. Without certificates it falls
// back to plain HTTP.
func WatchAndServe(ctx context.Context, apiServer *http.Server, certFile, keyFile string, wg *sync.WaitGroup) {
	defer wg.Done()

	useTLS := fileExists(certFile) && fileExists(keyFile)

	if useTLS {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			syslog.L.Error(err).WithMessage("api server watcher error").Write()
			return
		}
		defer watcher.Close()

		for _, f := range []string{certFile, keyFile} {
			if err := watcher.Add(f); err != nil {
				syslog.L.Error(err).WithMessage("api server watcher error").Write()
				return
			}
		}

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case event := <-watcher.Events:
					if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
						syslog.L.Info().
							WithMessage("certificate file has changed").
							WithFields(map[string]any{"name": event.Name, "operation": event.Op.String()}).
							Write()
						shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
						if err := apiServer.Shutdown(shutdownCtx); err != nil {
							syslog.L.Error(err).WithMessage("api server shutdown error").Write()
						}
						cancel()
					}
				case err := <-watcher.Errors:
					syslog.L.Error(err).WithMessage("api server watcher error").Write()
				}
			}
		}()
	}

	for {
		if ctx.Err() != nil {
			return
		}

		syslog.L.Info().
			WithMessage("starting api server").
			WithField("addr", apiServer.Addr).
			WithField("tls", useTLS).
			Write()

		var err error
		if useTLS {
			err = apiServer.ListenAndServeTLS(certFile, keyFile)
		} else {
			err = apiServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			syslog.L.Error(err).WithMessage("server failed").Write()
		}
		time.Sleep(time.Second)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
