// Package promptroute is a configuration-driven prompt routing and
// execution engine. Given a declarative config of providers, prompts,
// variants, routing rules, and fallback chains, it renders templated
// message arrays and executes chat completions against the selected
// provider, with deterministic per-user routing and a single
// observability event per request.
package promptroute

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/promptroute/promptroute/config"
	"github.com/promptroute/promptroute/internal/providers"
	"github.com/promptroute/promptroute/internal/providers/anthropic"
	"github.com/promptroute/promptroute/internal/providers/google"
	"github.com/promptroute/promptroute/internal/providers/openai"
	"github.com/promptroute/promptroute/internal/router"
	"github.com/promptroute/promptroute/internal/template"
	"github.com/promptroute/promptroute/types"
)

// Version is reported as sdkVersion in observability events.
const Version = "1.0.0"

// Default environment variable names consulted for provider credentials
// when the caller supplies a lookup (WithEnvLookup) and no explicit key
// is configured.
var defaultKeyEnv = map[config.ProviderType]string{
	config.ProviderOpenAI:    "OPENAI_API_KEY",
	config.ProviderAnthropic: "ANTHROPIC_API_KEY",
	config.ProviderGoogle:    "GOOGLE_API_KEY",
}

// Engine is the orchestrator. It is safe for concurrent use: the config
// load is single-flight, provider adapters are cached after first use,
// and everything else is request-scoped.
type Engine struct {
	configPath  string
	rawConfig   []byte
	environment string
	sink        types.ObservabilitySink
	logger      *slog.Logger
	httpClient  *http.Client
	timeout     time.Duration
	apiKeys     map[string]string
	baseURLs    map[string]string
	lookupEnv   func(string) string

	loadOnce sync.Once
	cfg      *config.Config
	loadErr  error

	templates *template.Engine
	router    *router.Router

	mu      sync.Mutex
	callers map[string]providers.Caller
}

// Option configures an Engine.
type Option func(*Engine)

// WithEnvironment tags emitted events with a deployment environment.
func WithEnvironment(env string) Option {
	return func(e *Engine) { e.environment = env }
}

// WithSink installs the observability sink. Events are delivered inline;
// sink panics are isolated from the request.
func WithSink(sink types.ObservabilitySink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithHTTPClient shares one HTTP client across all provider adapters.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.httpClient = c }
}

// WithTimeout sets the per-adapter HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithAPIKey pins the credential for one provider alias, bypassing the
// environment lookup.
func WithAPIKey(providerID, key string) Option {
	return func(e *Engine) { e.apiKeys[providerID] = key }
}

// WithBaseURL overrides one provider alias's endpoint, e.g. for proxies
// or tests.
func WithBaseURL(providerID, url string) Option {
	return func(e *Engine) { e.baseURLs[providerID] = url }
}

// WithEnvLookup supplies the lookup used to resolve credentials named by
// a provider's apiKeyEnv entry or the vendor default variables. The
// engine never reads the process environment itself; binaries pass
// os.Getenv here. Without a lookup, only keys set via WithAPIKey are
// available.
func WithEnvLookup(lookup func(string) string) Option {
	return func(e *Engine) { e.lookupEnv = lookup }
}

// New creates an Engine reading its config from path on first use.
func New(configPath string, opts ...Option) *Engine {
	e := newEngine(opts)
	e.configPath = configPath
	return e
}

// NewFromBytes creates an Engine over an in-memory config document.
func NewFromBytes(raw []byte, opts ...Option) *Engine {
	e := newEngine(opts)
	e.rawConfig = raw
	return e
}

func newEngine(opts []Option) *Engine {
	e := &Engine{
		logger:    slog.Default(),
		apiKeys:   make(map[string]string),
		baseURLs:  make(map[string]string),
		templates: template.New(),
		router:    router.New(),
		callers:   make(map[string]providers.Caller),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Config returns the validated configuration, loading it on first call.
// Concurrent first callers share the same in-flight load.
func (e *Engine) Config() (*config.Config, error) {
	e.loadOnce.Do(func() {
		start := time.Now()
		if e.rawConfig != nil {
			e.cfg, e.loadErr = config.Validate(e.rawConfig)
		} else {
			e.cfg, e.loadErr = config.Load(e.configPath)
		}
		if e.loadErr != nil {
			e.logger.Error("config load failed", "path", e.configPath, "error", e.loadErr)
			return
		}
		e.logger.Info("config loaded",
			"path", e.configPath,
			"version", e.cfg.Version,
			"prompts", len(e.cfg.Prompts),
			"providers", len(e.cfg.Providers),
			"elapsed", time.Since(start))
	})
	return e.cfg, e.loadErr
}

// provider returns the cached adapter for a provider alias, creating it
// on first use.
func (e *Engine) provider(cfg *config.Config, providerID string) (providers.Caller, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller, ok := e.callers[providerID]; ok {
		return caller, nil
	}

	decl := cfg.Providers[providerID]
	key, err := e.resolveKey(providerID, decl)
	if err != nil {
		return nil, err
	}

	var caller providers.Caller
	switch decl.Type {
	case config.ProviderOpenAI:
		var opts []openai.Option
		if url := e.baseURL(providerID, decl); url != "" {
			opts = append(opts, openai.WithBaseURL(url))
		}
		if e.httpClient != nil {
			opts = append(opts, openai.WithHTTPClient(e.httpClient))
		} else if e.timeout > 0 {
			opts = append(opts, openai.WithTimeout(e.timeout))
		}
		caller = openai.New(providerID, key, opts...)
	case config.ProviderAnthropic:
		var opts []anthropic.Option
		if url := e.baseURL(providerID, decl); url != "" {
			opts = append(opts, anthropic.WithBaseURL(url))
		}
		if e.httpClient != nil {
			opts = append(opts, anthropic.WithHTTPClient(e.httpClient))
		} else if e.timeout > 0 {
			opts = append(opts, anthropic.WithTimeout(e.timeout))
		}
		caller = anthropic.New(providerID, key, opts...)
	case config.ProviderGoogle:
		var opts []google.Option
		if url := e.baseURL(providerID, decl); url != "" {
			opts = append(opts, google.WithBaseURL(url))
		}
		if e.httpClient != nil {
			opts = append(opts, google.WithHTTPClient(e.httpClient))
		} else if e.timeout > 0 {
			opts = append(opts, google.WithTimeout(e.timeout))
		}
		caller = google.New(providerID, key, opts...)
	default:
		return nil, types.NewError(types.KindExecution, "unsupported-provider",
			fmt.Sprintf("provider %q has unsupported type %q", providerID, decl.Type)).
			WithDetail("provider", providerID)
	}

	e.callers[providerID] = caller
	return caller, nil
}

// resolveKey finds the credential for a provider alias: explicit option,
// then the configured env lookup against the provider entry's apiKeyEnv
// name or the vendor default. A missing key is fatal for the request.
func (e *Engine) resolveKey(providerID string, decl config.Provider) (string, error) {
	if key, ok := e.apiKeys[providerID]; ok && key != "" {
		return key, nil
	}
	envName := defaultKeyEnv[decl.Type]
	if v, ok := decl.Extras["apiKeyEnv"].(string); ok && v != "" {
		envName = v
	}
	if e.lookupEnv != nil && envName != "" {
		if key := e.lookupEnv(envName); key != "" {
			return key, nil
		}
	}
	return "", types.NewError(types.KindExecution, "provider-credentials",
		fmt.Sprintf("no API key for provider %q (set %s)", providerID, envName)).
		WithDetail("provider", providerID).
		WithDetail("env", envName)
}

func (e *Engine) baseURL(providerID string, decl config.Provider) string {
	if url, ok := e.baseURLs[providerID]; ok {
		return url
	}
	if url, ok := decl.Extras["baseUrl"].(string); ok {
		return url
	}
	return ""
}
