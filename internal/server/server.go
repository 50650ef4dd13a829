package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/angelajfisher/call-logger/internal/metrics"
	"github.com/angelajfisher/call-logger/internal/notion"
	"github.com/angelajfisher/call-logger/internal/types"
	glog "github.com/goliatone/go-logger/glog"
)

type Dispatcher interface {
	Dispatch(event types.WebhookEvent) string
	Wait(ctx context.Context) error
}

type Verifier interface {
	Verify(ctx context.Context) (notion.VerifyResult, error)
}

type Config struct {
	Port       string
	BaseURL    string
	Secret     string
	CertFile   string
	KeyFile    string
	Dispatcher Dispatcher
	Verifier   Verifier
	Logger     glog.Logger
	Metrics    *metrics.Metrics
	server     *http.Server
}

func (sc *Config) logger() glog.Logger {
	if sc.Logger == nil {
		return glog.Nop()
	}
	return sc.Logger
}

// Router builds the handler tree: webhook intake, liveness, destination check, and metrics
func Router(sc *Config) http.Handler {
	router := http.NewServeMux()

	router.HandleFunc("POST "+sc.BaseURL+"/webhook", sc.handleWebhook)
	router.HandleFunc("GET "+sc.BaseURL+"/ping", handlePing)
	router.HandleFunc("GET "+sc.BaseURL+"/notion/verify", sc.handleVerify)
	router.Handle("GET "+sc.BaseURL+"/metrics", sc.Metrics.Handler())

	return router
}

func Start(sc *Config) error {
	sc.server = &http.Server{
		Addr:              sc.Port,
		Handler:           http.TimeoutHandler(Router(sc), 15*time.Second, "Oops, timed out!"),
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       30 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	var err error
	if sc.CertFile != "" && sc.KeyFile != "" {
		sc.logger().Info("webhook listener starting with TLS", "port", sc.Port)
		err = sc.server.ListenAndServeTLS(sc.CertFile, sc.KeyFile)
	} else {
		sc.logger().Info("webhook listener starting", "port", sc.Port)
		err = sc.server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("could not start webhook listener: %w", err)
	}

	return nil
}

// Stop shuts the listener down, then gives in-flight background events a chance to finish
func Stop(sc *Config) error {
	if sc.server == nil {
		return nil
	}

	sc.logger().Info("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := sc.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("could not shutdown server gracefully: %w", err)
	}

	if sc.Dispatcher != nil {
		if err = sc.Dispatcher.Wait(ctx); err != nil {
			return fmt.Errorf("could not drain background events: %w", err)
		}
	}

	sc.logger().Info("server stopped")
	return nil
}

func handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("pong"))
}

func (sc *Config) handleVerify(w http.ResponseWriter, r *http.Request) {
	if sc.Verifier == nil {
		writeError(w, types.ConfigurationError("NOTION_API_KEY"))
		return
	}

	result, err := sc.Verifier.Verify(r.Context())
	if err != nil {
		sc.logger().Error("could not verify notion credentials", "error", err)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.StatusCode)
	_, _ = w.Write(result.Body)
}
