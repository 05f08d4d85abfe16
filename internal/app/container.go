package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/multiocr/internal/engine/builtin"
	"github.com/felixgeelhaar/multiocr/internal/engine/registry"
	"github.com/felixgeelhaar/multiocr/internal/engine/runtime"
	"github.com/felixgeelhaar/multiocr/internal/engine/sdk"
	"github.com/felixgeelhaar/multiocr/internal/files"
	"github.com/felixgeelhaar/multiocr/internal/output"
	"github.com/felixgeelhaar/multiocr/pkg/config"
	"github.com/felixgeelhaar/multiocr/pkg/observability"
)

// Container holds the wired application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Counters collects operation counters and timings.
	Counters *observability.InMemoryMetrics

	// Engines
	Factories *registry.Factories
	Registry  *registry.Registry
	Manager   *runtime.Manager

	// Output sinks and their readiness checks
	Writers *output.MultiWriter
	Checks  *observability.Checks

	closeLog func() error
}

// NewContainer builds the logger, engines, output sinks and manager from cfg.
// Engines that fail to build are logged and left out; a sink that fails to
// open is an error.
func NewContainer(ctx context.Context, cfg *config.Config, version string) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	logger, closeLog, err := observability.Setup(LogConfig(cfg, version))
	if err != nil {
		return nil, fmt.Errorf("set up logging: %w", err)
	}

	c := &Container{
		Config:    cfg,
		Logger:    logger,
		Counters:  observability.NewInMemoryMetrics(),
		Factories: registry.DefaultFactories(),
		closeLog:  closeLog,
	}

	specs, err := EngineSpecs(cfg, logger)
	if err != nil {
		_ = closeLog()
		return nil, err
	}

	c.Registry = registry.NewRegistry(logger)
	if err := c.Factories.BuildInto(ctx, c.Registry, specs, logger); err != nil {
		logger.Warn("some engines were not registered", "error", err)
	}
	c.Counters.Gauge(observability.MetricEnginesRegistered, float64(c.Registry.Count()))
	logger.Info("registered engines", "count", c.Registry.Count(), "names", c.Registry.Names())

	c.Writers, err = output.OpenWriters(ctx, OutputConfig(cfg), logger, c.Counters)
	if err != nil {
		_ = c.Registry.Shutdown()
		_ = closeLog()
		return nil, fmt.Errorf("open output sinks: %w", err)
	}
	c.Checks = c.Writers.Checks()

	c.Manager = runtime.NewManager(c.Registry,
		runtime.WithLogger(logger),
		runtime.WithDiscoverer(files.NewDiscoverer(logger)),
		runtime.WithMetadataExtractor(files.NewMetadataExtractor()),
		runtime.WithWriter(c.Writers),
		runtime.WithCounters(c.Counters),
		runtime.WithBreaker(BreakerConfig(cfg)),
	)

	return c, nil
}

// Close cleans up all resources.
func (c *Container) Close() error {
	var errs []error
	if c.Manager != nil {
		if err := c.Manager.Shutdown(); err != nil {
			c.Logger.Warn("error shutting down engines", "error", err)
			errs = append(errs, err)
		}
	}
	if c.Writers != nil {
		if err := c.Writers.Close(); err != nil {
			c.Logger.Warn("error closing output sinks", "error", err)
			errs = append(errs, err)
		}
	}
	if c.closeLog != nil {
		errs = append(errs, c.closeLog())
	}
	return errors.Join(errs...)
}

// EngineSpecs returns the engines to build: the engines file when one is
// configured, otherwise a tesseract engine from the environment defaults,
// followed by plugins found on the plugin path.
func EngineSpecs(cfg *config.Config, logger *slog.Logger) ([]registry.EngineSpec, error) {
	file := registry.DefaultEnginesFile()
	if cfg.EnginesFile != "" {
		loaded, err := registry.LoadEnginesFile(cfg.EnginesFile)
		if err != nil {
			return nil, err
		}
		file = loaded
	} else {
		file.Engines[0].Options = sdk.Options{
			"binary": cfg.TesseractBinary,
			"lang":   cfg.TesseractLang,
			"psm":    cfg.TesseractPSM,
		}
		file.Engines[0].FileTypes = builtin.TesseractFileTypes
	}

	file.Append(registry.NewDiscovery(cfg.PluginPaths, logger).Discover()...)
	return file.Enabled(), nil
}

// LogConfig maps configuration onto logger settings.
func LogConfig(cfg *config.Config, version string) observability.LogConfig {
	lc := observability.DefaultLogConfig()
	lc.Level = observability.LogLevel(cfg.LogLevel)
	if cfg.LogFormat == string(observability.LogFormatJSON) {
		lc.Format = observability.LogFormatJSON
	}
	lc.File = cfg.LogFile
	lc.ServiceVersion = version
	lc.AddSource = cfg.IsDevelopment() && lc.Level == observability.LogLevelDebug
	return lc
}

// OutputConfig maps configuration onto the output sinks.
func OutputConfig(cfg *config.Config) output.Config {
	return output.Config{
		Dir:          cfg.OutputDir,
		BlobURL:      cfg.BlobURL,
		BlobPrefix:   cfg.BlobPrefix,
		RedisURL:     cfg.RedisURL,
		RedisPrefix:  cfg.RedisPrefix,
		RedisTTL:     cfg.RedisTTL,
		SQLitePath:   cfg.SQLitePath,
		PostgresURL:  cfg.DatabaseURL,
		AMQPURL:      cfg.RabbitMQURL,
		AMQPExchange: cfg.RabbitMQExchange,
	}
}

// BreakerConfig maps configuration onto the per-engine circuit breakers.
func BreakerConfig(cfg *config.Config) runtime.BreakerConfig {
	bc := runtime.DefaultBreakerConfig()
	bc.Enabled = cfg.BreakerEnabled
	if cfg.BreakerThreshold > 0 {
		bc.FailureThreshold = uint32(cfg.BreakerThreshold)
	}
	if cfg.BreakerMaxRequests > 0 {
		bc.MaxRequests = uint32(cfg.BreakerMaxRequests)
	}
	if cfg.BreakerTimeout > 0 {
		bc.Timeout = cfg.BreakerTimeout
	}
	return bc
}
