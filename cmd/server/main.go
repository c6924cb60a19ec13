package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ultradash/internal/backend"
	"github.com/MarkoPoloResearchLab/ultradash/internal/capture"
	"github.com/MarkoPoloResearchLab/ultradash/internal/httpapi"
	"github.com/MarkoPoloResearchLab/ultradash/internal/leads"
	"github.com/MarkoPoloResearchLab/ultradash/internal/model"
	"github.com/MarkoPoloResearchLab/ultradash/internal/observability"
	"github.com/MarkoPoloResearchLab/ultradash/internal/session"
	"github.com/MarkoPoloResearchLab/ultradash/internal/task"
)

const (
	commandUseName                = "server"
	commandShortDescription       = "Run the Ultra Dashboard server"
	commandLongDescription        = "Serve the lead-capture dashboard pages and session API in front of the lead-capture REST API"
	missingConfigurationMessage   = "missing required configuration"
	invalidConfigurationMessage   = "invalid configuration"
	loggerCreationErrorMessage    = "logger"
	logEventListening             = "listening"
	logEventShutdown              = "shutdown"
	logFieldAddress               = "addr"
	logFieldServeMode             = "serve_mode"
	unexpectedArgumentsMessage    = "unexpected command arguments"
	commandInitializationFailure  = "failed to configure command"
	flagNotDefinedMessage         = "flag %s not defined"
	environmentConfigurationError = "failed to apply environment configuration"
	loggerContextServer           = "server"
	loggerContextWire             = "wire"

	flagNameApplicationAddress  = "app-addr"
	flagNameBackendAPIURL       = "backend-api-url"
	flagNameSessionSecret       = "session-secret"
	flagNameCaptureAPIURL       = "capture-api-url"
	flagNameCaptureFormSelector = "capture-form-selector"
	flagNameServeMode           = "serve-mode"
	flagNameDashboardOrigin     = "dashboard-origin"
	flagNameDisplayTimezone     = "display-timezone"
	flagNameSessionCacheTTL     = "session-cache-ttl"
	flagNamePriceIDPower        = "price-id-power"
	flagNamePriceIDTurbo        = "price-id-turbo"
	flagNamePriceIDUltra        = "price-id-ultra"
	flagNameLogLevel            = "log-level"
	flagNameCookieSecure        = "cookie-secure"
	flagNameVersion             = "app-version"

	environmentKeyApplicationAddress  = "APP_ADDR"
	environmentKeyBackendAPIURL       = "BACKEND_API_URL"
	environmentKeySessionSecret       = "SESSION_SECRET"
	environmentKeyCaptureAPIURL       = "CAPTURE_API_URL"
	environmentKeyCaptureFormSelector = "CAPTURE_FORM_SELECTOR"
	environmentKeyServeMode           = "SERVE_MODE"
	environmentKeyDashboardOrigin     = "DASHBOARD_ORIGIN"
	environmentKeyDisplayTimezone     = "DISPLAY_TIMEZONE"
	environmentKeySessionCacheTTL     = "SESSION_CACHE_TTL"
	environmentKeyPriceIDPower        = "PRICE_ID_POWER"
	environmentKeyPriceIDTurbo        = "PRICE_ID_TURBO"
	environmentKeyPriceIDUltra        = "PRICE_ID_ULTRA"
	environmentKeyLogLevel            = "LOG_LEVEL"
	environmentKeyCookieSecure        = "COOKIE_SECURE"
	environmentKeyVersion             = "APP_VERSION"

	defaultApplicationAddress = ":8080"
	defaultDashboardOrigin    = "http://localhost:8080"
	defaultDisplayTimezone    = "America/Sao_Paulo"
	defaultVersion            = "Alpha"

	planKeyPower = "power"
	planKeyTurbo = "turbo"
	planKeyUltra = "ultra"

	minimumSessionSecretBytes = 32
	readHeaderTimeoutSeconds  = 5
	shutdownTimeout           = 10 * time.Second
	cachePurgeInterval        = time.Minute
)

// ServerConfig captures configuration needed to run the server.
type ServerConfig struct {
	ApplicationAddress  string
	BackendAPIURL       string
	SessionSecret       string
	CaptureAPIURL       string
	CaptureFormSelector string
	ServeMode           ServeMode
	DashboardOrigin     string
	DisplayLocation     *time.Location
	SessionCacheTTL     time.Duration
	PriceOverrides      map[string]string
	LogLevel            string
	CookieSecure        bool
	Version             string
}

type configurationFlag struct {
	environmentKey string
	flagName       string
	defaultValue   string
	usage          string
}

var stringFlags = []configurationFlag{
	{environmentKey: environmentKeyApplicationAddress, flagName: flagNameApplicationAddress, defaultValue: defaultApplicationAddress, usage: "address for the HTTP server to listen on"},
	{environmentKey: environmentKeyBackendAPIURL, flagName: flagNameBackendAPIURL, usage: "base URL of the lead-capture REST API"},
	{environmentKey: environmentKeySessionSecret, flagName: flagNameSessionSecret, usage: "secret used to sign and encrypt the session cookie (at least 32 bytes)"},
	{environmentKey: environmentKeyCaptureAPIURL, flagName: flagNameCaptureAPIURL, usage: "base URL embedded in installation scripts (defaults to the backend API URL)"},
	{environmentKey: environmentKeyCaptureFormSelector, flagName: flagNameCaptureFormSelector, defaultValue: capture.DefaultFormSelector, usage: "CSS selector of the form the installation script watches"},
	{environmentKey: environmentKeyServeMode, flagName: flagNameServeMode, defaultValue: string(ServeModeMonolith), usage: "monolith, web or api"},
	{environmentKey: environmentKeyDashboardOrigin, flagName: flagNameDashboardOrigin, defaultValue: defaultDashboardOrigin, usage: "origin allowed to call the session API with credentials"},
	{environmentKey: environmentKeyDisplayTimezone, flagName: flagNameDisplayTimezone, defaultValue: defaultDisplayTimezone, usage: "IANA time zone used to display dates"},
	{environmentKey: environmentKeySessionCacheTTL, flagName: flagNameSessionCacheTTL, defaultValue: session.DefaultCacheTTL.String(), usage: "lifetime of cached profiles, projects and lead pages"},
	{environmentKey: environmentKeyPriceIDPower, flagName: flagNamePriceIDPower, usage: "checkout price id of the Power plan"},
	{environmentKey: environmentKeyPriceIDTurbo, flagName: flagNamePriceIDTurbo, usage: "checkout price id of the Turbo plan"},
	{environmentKey: environmentKeyPriceIDUltra, flagName: flagNamePriceIDUltra, usage: "checkout price id of the Ultra plan"},
	{environmentKey: environmentKeyLogLevel, flagName: flagNameLogLevel, defaultValue: "info", usage: "log level (debug switches to console output)"},
	{environmentKey: environmentKeyCookieSecure, flagName: flagNameCookieSecure, defaultValue: "false", usage: "mark the session cookie Secure"},
	{environmentKey: environmentKeyVersion, flagName: flagNameVersion, defaultValue: defaultVersion, usage: "version label shown on the login page and sidebar"},
}

var requiredFlagNames = []string{flagNameBackendAPIURL, flagNameSessionSecret}

// ServerApplication constructs and executes the server command.
type ServerApplication struct {
	configurationLoader *viper.Viper
	httpClient          backend.HTTPClient
}

// NewServerApplication creates a ServerApplication with default dependencies.
func NewServerApplication() *ServerApplication {
	return &ServerApplication{
		configurationLoader: viper.New(),
	}
}

// WithHTTPClient overrides the client used to reach the lead-capture API.
func (application *ServerApplication) WithHTTPClient(httpClient backend.HTTPClient) *ServerApplication {
	application.httpClient = httpClient
	return application
}

// Command builds the Cobra command for the server.
func (application *ServerApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:   commandUseName,
		Short: commandShortDescription,
		Long:  commandLongDescription,
		RunE:  application.runCommand,
	}

	if configurationErr := application.configureCommand(rootCommand); configurationErr != nil {
		return nil, configurationErr
	}

	return rootCommand, nil
}

func (application *ServerApplication) configureCommand(command *cobra.Command) error {
	commandFlags := command.Flags()
	for _, definition := range stringFlags {
		application.configurationLoader.SetDefault(definition.environmentKey, definition.defaultValue)
		commandFlags.String(definition.flagName, definition.defaultValue, definition.usage)
	}
	application.configurationLoader.AutomaticEnv()

	for _, definition := range stringFlags {
		if bindErr := application.bindFlag(commandFlags, definition.environmentKey, definition.flagName); bindErr != nil {
			return bindErr
		}
		if environmentErr := application.applyEnvironmentConfiguration(commandFlags, definition.environmentKey, definition.flagName); environmentErr != nil {
			return environmentErr
		}
	}

	for _, flagName := range requiredFlagNames {
		if markErr := command.MarkFlagRequired(flagName); markErr != nil {
			return markErr
		}
	}

	return nil
}

func (application *ServerApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	if bindErr := application.configurationLoader.BindPFlag(environmentKey, flag); bindErr != nil {
		return bindErr
	}

	return nil
}

func (application *ServerApplication) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}

	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %w", environmentConfigurationError, setErr)
	}

	return nil
}

func (application *ServerApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	serverConfig, configurationErr := application.loadConfiguration()
	if configurationErr != nil {
		return configurationErr
	}

	logger, loggerErr := observability.NewLogger(serverConfig.LogLevel)
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	tracerProvider := observability.InstallTracerProvider()
	defer func() {
		_ = tracerProvider.Shutdown(context.Background())
	}()

	server, wireErr := newServer(serverConfig, application.httpClient, logger)
	if wireErr != nil {
		logger.Error(loggerContextWire, zap.Error(wireErr))
		return wireErr
	}

	signalContext, stopSignals := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	server.scheduler.Start(signalContext)
	defer server.scheduler.Stop()

	httpServer := &http.Server{
		Addr:              serverConfig.ApplicationAddress,
		Handler:           server.router,
		ReadHeaderTimeout: readHeaderTimeoutSeconds * time.Second,
	}

	serveErrors := make(chan error, 1)
	go func() {
		logger.Info(logEventListening, zap.String(logFieldAddress, serverConfig.ApplicationAddress), zap.String(logFieldServeMode, string(serverConfig.ServeMode)))
		serveErrors <- httpServer.ListenAndServe()
	}()

	select {
	case serveErr := <-serveErrors:
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error(loggerContextServer, zap.Error(serveErr))
			return serveErr
		}
	case <-signalContext.Done():
		logger.Info(logEventShutdown)
		shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownContext); shutdownErr != nil {
			logger.Error(loggerContextServer, zap.Error(shutdownErr))
			return shutdownErr
		}
	}

	return nil
}

func (application *ServerApplication) loadConfiguration() (ServerConfig, error) {
	loader := application.configurationLoader
	serverConfig := ServerConfig{
		ApplicationAddress:  strings.TrimSpace(loader.GetString(environmentKeyApplicationAddress)),
		BackendAPIURL:       strings.TrimSpace(loader.GetString(environmentKeyBackendAPIURL)),
		SessionSecret:       strings.TrimSpace(loader.GetString(environmentKeySessionSecret)),
		CaptureAPIURL:       strings.TrimSpace(loader.GetString(environmentKeyCaptureAPIURL)),
		CaptureFormSelector: strings.TrimSpace(loader.GetString(environmentKeyCaptureFormSelector)),
		DashboardOrigin:     strings.TrimSpace(loader.GetString(environmentKeyDashboardOrigin)),
		LogLevel:            strings.TrimSpace(loader.GetString(environmentKeyLogLevel)),
		CookieSecure:        loader.GetBool(environmentKeyCookieSecure),
		Version:             strings.TrimSpace(loader.GetString(environmentKeyVersion)),
		PriceOverrides: map[string]string{
			planKeyPower: loader.GetString(environmentKeyPriceIDPower),
			planKeyTurbo: loader.GetString(environmentKeyPriceIDTurbo),
			planKeyUltra: loader.GetString(environmentKeyPriceIDUltra),
		},
	}

	if validationErr := ensureRequiredConfiguration(serverConfig); validationErr != nil {
		return ServerConfig{}, validationErr
	}

	serveMode, serveModeErr := ParseServeMode(loader.GetString(environmentKeyServeMode))
	if serveModeErr != nil {
		return ServerConfig{}, fmt.Errorf("%s: %w", invalidConfigurationMessage, serveModeErr)
	}
	serverConfig.ServeMode = serveMode

	location, locationErr := time.LoadLocation(strings.TrimSpace(loader.GetString(environmentKeyDisplayTimezone)))
	if locationErr != nil {
		return ServerConfig{}, fmt.Errorf("%s: %s: %w", invalidConfigurationMessage, flagNameDisplayTimezone, locationErr)
	}
	serverConfig.DisplayLocation = location

	cacheTTL, ttlErr := time.ParseDuration(strings.TrimSpace(loader.GetString(environmentKeySessionCacheTTL)))
	if ttlErr != nil || cacheTTL <= 0 {
		return ServerConfig{}, fmt.Errorf("%s: %s: %q", invalidConfigurationMessage, flagNameSessionCacheTTL, loader.GetString(environmentKeySessionCacheTTL))
	}
	serverConfig.SessionCacheTTL = cacheTTL

	if serverConfig.CaptureAPIURL == "" {
		serverConfig.CaptureAPIURL = serverConfig.BackendAPIURL
	}
	return serverConfig, nil
}

func ensureRequiredConfiguration(configuration ServerConfig) error {
	var missingParameters []string

	if configuration.BackendAPIURL == "" {
		missingParameters = append(missingParameters, flagNameBackendAPIURL)
	}

	if configuration.SessionSecret == "" {
		missingParameters = append(missingParameters, flagNameSessionSecret)
	}

	if len(missingParameters) > 0 {
		return fmt.Errorf("%s: %s", missingConfigurationMessage, strings.Join(missingParameters, ", "))
	}

	if len(configuration.SessionSecret) < minimumSessionSecretBytes {
		return fmt.Errorf("%s: %s: %w", invalidConfigurationMessage, flagNameSessionSecret, session.ErrWeakSecret)
	}

	if parsedURL, parseErr := url.Parse(configuration.BackendAPIURL); parseErr != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("%s: %s: %q", invalidConfigurationMessage, flagNameBackendAPIURL, configuration.BackendAPIURL)
	}

	return nil
}

type applicationServer struct {
	router    *gin.Engine
	scheduler *task.Scheduler
	manager   *session.Manager
	web       *httpapi.WebHandlers
}

func newServer(serverConfig ServerConfig, httpClient backend.HTTPClient, logger *zap.Logger) (*applicationServer, error) {
	metrics := observability.NewMetrics()

	backendClient, clientErr := backend.NewClient(backend.Config{
		BaseURL:    serverConfig.BackendAPIURL,
		HTTPClient: httpClient,
		Metrics:    metrics,
		Logger:     logger,
	})
	if clientErr != nil {
		return nil, clientErr
	}

	vault, vaultErr := session.NewCookieVault([]byte(serverConfig.SessionSecret), session.CookieOptions{Secure: serverConfig.CookieSecure})
	if vaultErr != nil {
		return nil, vaultErr
	}

	manager, managerErr := session.NewManager(session.ManagerConfig{
		Vault:    vault,
		Backend:  backendClient,
		CacheTTL: serverConfig.SessionCacheTTL,
		Metrics:  metrics,
		Logger:   logger,
	})
	if managerErr != nil {
		return nil, managerErr
	}

	catalog, catalogErr := model.DefaultPlanCatalog()
	if catalogErr != nil {
		return nil, catalogErr
	}
	catalog = catalog.WithPriceOverrides(serverConfig.PriceOverrides)

	scripts := capture.NewGenerator(serverConfig.CaptureAPIURL, serverConfig.CaptureFormSelector)
	pages := leads.NewPageStore(serverConfig.SessionCacheTTL, nil)

	webHandlers, webErr := httpapi.NewWebHandlers(httpapi.WebConfig{
		Backend:  backendClient,
		Pages:    pages,
		Exporter: leads.NewExporter(backendClient, serverConfig.DisplayLocation, metrics),
		Scripts:  scripts,
		Plans:    catalog,
		Location: serverConfig.DisplayLocation,
		Version:  serverConfig.Version,
		Logger:   logger,
	})
	if webErr != nil {
		return nil, webErr
	}

	jsonHandlers, jsonErr := httpapi.NewJSONHandlers(backendClient, scripts, logger)
	if jsonErr != nil {
		return nil, jsonErr
	}

	guard := httpapi.NewAuthGuard(logger, httpapi.DefaultValidationWait)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestLogger(logger))
	router.GET(metricsRoute, gin.WrapH(metrics.Handler()))

	sessionMiddleware := httpapi.SessionMiddleware(manager)
	if serverConfig.ServeMode.servesFrontend() {
		registerFrontendRoutes(router, sessionMiddleware, guard, webHandlers)
	}
	if serverConfig.ServeMode.servesBackend() {
		registerBackendRoutes(router, sessionMiddleware, guard, jsonHandlers, serverConfig.DashboardOrigin)
	}

	scheduler := task.NewScheduler(cachePurgeInterval, task.NewCachePurgeRunner(logger,
		task.NamedPurger{Name: session.CacheNameUsers, Purger: manager.UserCache()},
		task.NamedPurger{Name: session.CacheNameProjects, Purger: manager.ProjectCache()},
		task.NamedPurger{Name: cacheNameLeadPages, Purger: pages},
	))

	return &applicationServer{
		router:    router,
		scheduler: scheduler,
		manager:   manager,
		web:       webHandlers,
	}, nil
}

func main() {
	application := NewServerApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
