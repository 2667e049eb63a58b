package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"weighbridge/internal/adapter/cache"
	"weighbridge/internal/adapter/gateway"
	"weighbridge/internal/adapter/source"
	"weighbridge/internal/adapter/ticket"
	"weighbridge/internal/domain"
	"weighbridge/internal/infra/config"
	"weighbridge/internal/infra/logger"
	"weighbridge/internal/infra/tracer"
	"weighbridge/internal/usecase"
	"weighbridge/internal/usecase/eventbus"
	"weighbridge/internal/usecase/registry"
)

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()

	if err := run(*cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	// 1. Config
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(context.Background())

	// 3. Event bus
	bus := eventbus.New(log)
	defer bus.Close()

	// 4. Weight cache
	weightCache := cache.New(cache.WithTTL(cfg.Cache.TTL))

	// 5. Connection registry
	expected, err := expectedLocations(cfg)
	if err != nil {
		return fmt.Errorf("agents: %w", err)
	}
	reg := registry.New(expected, bus, log)

	// 6. Extraction transport
	retry := usecase.RetryConfig{Delay: cfg.Batch.RetryDelay, Budget: cfg.Batch.RetryBudget}

	var client domain.ExtractionClient
	var cleanup func()
	switch cfg.Source.Mode {
	case "navigate":
		client, cleanup, err = buildNavigateClient(cfg, bus, weightCache, reg, log)
		if err != nil {
			return fmt.Errorf("navigate source: %w", err)
		}
		defer cleanup()
	default:
		client = source.NewDirectClient(source.DirectConfig{
			IdentifierEndpoints: cfg.Source.Direct.IdentifierEndpoints,
			WeightEndpoints:     cfg.Source.Direct.WeightEndpoints,
			RequestsPerSecond:   cfg.Source.Direct.RequestsPerSecond,
			Burst:               cfg.Source.Direct.Burst,
			Breaker: source.BreakerConfig{
				MaxFailures: cfg.Source.Direct.Breaker.MaxFailures,
				Interval:    cfg.Source.Direct.Breaker.Interval,
				Timeout:     cfg.Source.Direct.Breaker.Timeout,
			},
		}, log)
	}

	// 7. Orchestrator
	svc := usecase.NewService(
		usecase.NewResolver(client, retry, log),
		usecase.NewFetcher(client, weightCache, cfg.FanOut(), retry, log),
		weightCache,
		reg,
		bus,
		cfg.Source.Mode == "navigate",
		log,
	)

	// 8. Gateway
	if !cfg.Gateway.Enabled {
		log.Info("gateway disabled; nothing to serve", "mode", cfg.Source.Mode)
		<-ctx.Done()
		return nil
	}

	var auth gateway.Authenticator = gateway.AllowAllAuth{}
	if cfg.Gateway.Auth.Type == "static" {
		entries := make([]gateway.TokenEntry, len(cfg.Gateway.Auth.Tokens))
		for i, tok := range cfg.Gateway.Auth.Tokens {
			entries[i] = gateway.TokenEntry{Token: tok.Token, Name: tok.Name}
		}
		auth = gateway.NewStaticTokenAuth(entries)
	}

	srv := gateway.NewServer(bus, auth, cfg.Gateway.Addr, log)
	gateway.RegisterRPCHandlers(srv, gateway.HandlerDeps{Service: svc, Logger: log})

	log.Info("weighbridge daemon starting",
		"mode", cfg.Source.Mode,
		"gateway", cfg.Gateway.Addr,
		"fan_out", cfg.FanOut())

	return srv.Start(ctx)
}

// expectedLocations compiles the configured per-role location patterns.
// Direct mode runs with no expected roles, which reports always-ready.
func expectedLocations(cfg *config.Config) (map[domain.AgentRole]*regexp.Regexp, error) {
	expected := make(map[domain.AgentRole]*regexp.Regexp, len(cfg.Agents.Locations))
	if cfg.Source.Mode != "navigate" {
		return expected, nil
	}
	for role, pattern := range cfg.Agents.Locations {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("location pattern for %s: %w", role, err)
		}
		expected[domain.AgentRole(role)] = re
	}
	return expected, nil
}

// buildNavigateClient launches one browser-backed agent host per required
// role and wires load events back into the resume path.
func buildNavigateClient(
	cfg *config.Config,
	bus domain.EventBus,
	weightCache domain.WeightCache,
	reg *registry.Registry,
	log *slog.Logger,
) (domain.ExtractionClient, func(), error) {
	store, err := ticket.NewStore(cfg.Ticket.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("ticket store: %w", err)
	}

	janitor, err := ticket.NewJanitor(store, bus, cfg.Ticket.SweepInterval, log)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("ticket janitor: %w", err)
	}
	janitor.Start()

	hostCfg := source.ChromeHostConfig{
		RemoteURL: cfg.Agents.Browser.RemoteURL,
		Headless:  cfg.Agents.Browser.Headless,
		Timeout:   cfg.Agents.Browser.Timeout,
	}

	hosts := make(map[domain.AgentRole]source.AgentHost, len(domain.RequiredRoles))
	chromeHosts := make([]*source.ChromeHost, 0, len(domain.RequiredRoles))
	closeAll := func() {
		for _, h := range chromeHosts {
			h.Close()
		}
		janitor.Stop()
		store.Close()
	}

	for _, role := range domain.RequiredRoles {
		host, err := source.NewChromeHost(role, hostCfg, log)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("agent host %s: %w", role, err)
		}
		chromeHosts = append(chromeHosts, host)
		hosts[role] = host
	}

	client := source.NewNavigateClient(hosts, store, weightCache, bus, reg,
		source.NavigateConfig{
			IdentifierTarget: cfg.Source.Navigate.IdentifierTarget,
			WeightTarget:     cfg.Source.Navigate.WeightTarget,
			ContentTimeout:   cfg.Source.Navigate.ContentTimeout,
			PollInterval:     cfg.Source.Navigate.PollInterval,
		}, log)

	for _, host := range chromeHosts {
		host.SetLoadHandler(func(ctx context.Context, role domain.AgentRole, location string) {
			client.HandleAgentLoad(ctx, role, location)
		})
	}

	// Seed the registry with the agents' starting locations so a deployment
	// whose agents already sit on valid pages is ready immediately.
	for role, host := range hosts {
		seedCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if loc, err := host.Location(seedCtx); err == nil {
			reg.Announce(seedCtx, role, loc)
		}
		cancel()
	}

	return client, closeAll, nil
}
