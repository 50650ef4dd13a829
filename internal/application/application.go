// Boilerplate for initializing the program
package application

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/angelajfisher/call-logger/internal/logging"
	"github.com/angelajfisher/call-logger/internal/metrics"
	"github.com/angelajfisher/call-logger/internal/normalizer"
	"github.com/angelajfisher/call-logger/internal/notion"
	"github.com/angelajfisher/call-logger/internal/orchestrator"
	"github.com/angelajfisher/call-logger/internal/server"
	"github.com/angelajfisher/call-logger/internal/zoom"
	"github.com/joho/godotenv"
	"github.com/oklog/run"
)

const (
	appVersion    = "1.0"
	fatalErrorMsg = "\nfatal: %v\n\nA fatal error occurred. Call Logger shut down.\n"
	separator     = "\n——————————————————————————————————————\n\n"
)

// Settings is everything read from flags and the environment
type Settings struct {
	Port              string
	BaseURL           string
	Verbose           bool
	CertFile          string
	KeyFile           string
	WebhookSecret     string
	ZoomAccountID     string
	ZoomClientID      string
	ZoomClientSecret  string
	NotionAPIKey      string
	NotionDatabaseID  string
	NotionProperties  notion.PropertyNames
	EnrichmentEnabled bool
}

func Initialize() {
	fmt.Print(
		"\n┬┴┬┴┤･ω･)ﾉ├┬┴┬┴\n",
		"Hi, Welcome to Call Logger v"+appVersion+"!\n",
	)

	settings, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, fatalErrorMsg, err)
		os.Exit(1)
	}

	logger := logging.New("call-logger", settings.Verbose)
	for _, warning := range settings.Validate() {
		logger.Warn(warning)
	}

	serverConfig := build(settings, logger)

	osSignal := make(chan os.Signal, 1)
	signal.Notify(osSignal, syscall.SIGINT, syscall.SIGTERM)

	g := run.Group{}

	g.Add(func() error {
		<-osSignal
		return nil
	}, func(error) {
		signal.Stop(osSignal)
		close(osSignal)
	})

	g.Add(func() error { return server.Start(serverConfig) }, func(error) {
		err = server.Stop(serverConfig)
		if err != nil {
			logger.Error("could not stop server", "error", err)
		}
	})

	err = g.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, fatalErrorMsg, err)
		os.Exit(1)
	}

	fmt.Println("See you later! o/")
}

func parseFlags() (Settings, error) {
	envPath := flag.String("envFile", "", "program will load environment variables from the file at this path if provided")
	port := flag.String("port", ":3000", "address at which the webhook server will listen for incoming hooks")
	baseURL := flag.String("baseURL", "", "path prefix for every route, e.g. /projects/call-logger")
	verbose := flag.Bool("verbose", false, "emit debug logging")
	flag.Parse()

	fmt.Println(separator + "Starting setup...\n\nLoading environment variables")
	defer fmt.Print(separator)

	if *envPath != "" {
		fmt.Println(
			"Loading variables from",
			*envPath,
			"(these will not override any existing environment variables)",
		)
		err := godotenv.Load(*envPath)
		if err != nil {
			return Settings{}, errors.New("could not load .env file at provided path")
		}
	} else {
		fmt.Println("note: no .env file provided")
	}

	settings := loadSettings(os.Getenv)
	settings.Port = *port
	settings.BaseURL = strings.TrimRight(*baseURL, "/")
	settings.Verbose = *verbose

	fmt.Println("\nSetup complete!")
	return settings, nil
}

// loadSettings reads every environment-backed setting through getenv
func loadSettings(getenv func(string) string) Settings {
	get := func(keys ...string) string {
		for _, key := range keys {
			if value := strings.TrimSpace(getenv(key)); value != "" {
				return value
			}
		}
		return ""
	}

	settings := Settings{
		Port:             ":3000",
		CertFile:         get("SSL_CERT"),
		KeyFile:          get("SSL_KEY"),
		WebhookSecret:    get("ZOOM_WEBHOOK_SECRET", "ZOOM_TOKEN"),
		ZoomAccountID:    get("ZOOM_ACCOUNT_ID"),
		ZoomClientID:     get("ZOOM_CLIENT_ID"),
		ZoomClientSecret: get("ZOOM_CLIENT_SECRET"),
		NotionAPIKey:     get("NOTION_API_KEY"),
		NotionDatabaseID: get("NOTION_DATABASE_ID"),
		NotionProperties: notion.PropertyNames{
			Title:     get("NOTION_PROP_TITLE"),
			Subject:   get("NOTION_PROP_PHONE"),
			Duration:  get("NOTION_PROP_DURATION"),
			Type:      get("NOTION_PROP_TYPE"),
			Date:      get("NOTION_PROP_DATE"),
			Recording: get("NOTION_PROP_RECORDING"),
		},
	}
	settings.EnrichmentEnabled = settings.ZoomAccountID != "" &&
		settings.ZoomClientID != "" &&
		settings.ZoomClientSecret != ""

	return settings
}

// Validate reports missing settings. None of them stop the process; the affected feature is skipped.
func (s Settings) Validate() []string {
	var warnings []string
	if s.WebhookSecret == "" {
		warnings = append(warnings, "ZOOM_WEBHOOK_SECRET is not set; URL validation requests will fail with 500")
	}
	if s.NotionAPIKey == "" {
		warnings = append(warnings, "NOTION_API_KEY is not set; records will not be delivered")
	}
	if s.NotionDatabaseID == "" {
		warnings = append(warnings, "NOTION_DATABASE_ID is not set; records will not be delivered")
	}
	if !s.EnrichmentEnabled {
		warnings = append(warnings, "ZOOM_ACCOUNT_ID, ZOOM_CLIENT_ID, and/or ZOOM_CLIENT_SECRET not set; host ids will not be resolved")
	}
	if (s.CertFile == "") != (s.KeyFile == "") {
		warnings = append(warnings, "only one of SSL_CERT and SSL_KEY is set; serving without TLS")
	}
	return warnings
}

// build wires every component from settings. The token cache is created once here and shared by
// all requests through the enrichment client.
func build(settings Settings, logger *logging.Logger) *server.Config {
	m := metrics.New()
	httpClient := newHTTPClient()

	var resolver normalizer.ActorResolver
	if settings.EnrichmentEnabled {
		tokens := zoom.NewTokenCache(zoom.TokenCacheConfig{
			AccountID:    settings.ZoomAccountID,
			ClientID:     settings.ZoomClientID,
			ClientSecret: settings.ZoomClientSecret,
			HTTPClient:   httpClient,
			Logger:       logger.Named("zoom"),
			Metrics:      m,
		})
		resolver = zoom.NewClient(zoom.ClientConfig{
			Tokens:     tokens,
			HTTPClient: httpClient,
			Logger:     logger.Named("zoom"),
			Metrics:    m,
		})
	}

	sink := notion.NewSink(notion.Config{
		APIKey:     settings.NotionAPIKey,
		DatabaseID: settings.NotionDatabaseID,
		Properties: settings.NotionProperties,
		HTTPClient: httpClient,
		Logger:     logger.Named("notion"),
		Metrics:    m,
	})

	o := orchestrator.NewOrchestrator(orchestrator.Config{
		Normalizer: normalizer.New(resolver, nil),
		Sink:       sink,
		Logger:     logger.Named("events"),
		Metrics:    m,
	})

	certFile, keyFile := settings.CertFile, settings.KeyFile
	if certFile == "" || keyFile == "" {
		certFile, keyFile = "", ""
	}

	return &server.Config{
		Port:       settings.Port,
		BaseURL:    settings.BaseURL,
		Secret:     settings.WebhookSecret,
		CertFile:   certFile,
		KeyFile:    keyFile,
		Dispatcher: o,
		Verifier:   sink,
		Logger:     logger.Named("server"),
		Metrics:    m,
	}
}

// newHTTPClient builds the client shared by every outbound call. It has no timeout.
func newHTTPClient() *http.Client {
	return &http.Client{}
}
