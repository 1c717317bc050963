package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"streamBot/internal/app/connection"
	"streamBot/internal/app/events"
	"streamBot/internal/domain"
	"streamBot/internal/infrastructure/config"
	sqlitestorage "streamBot/internal/infrastructure/persistence/sqlite"
	twitchinfra "streamBot/internal/infrastructure/platform/twitch"
	kickadapter "streamBot/internal/interface/adapters/kick"
	twitchadapter "streamBot/internal/interface/adapters/twitch"
	"streamBot/internal/interface/api/ws"
	"streamBot/internal/interface/outs"
	"streamBot/internal/telemetry"
	"streamBot/internal/usecase/commands"
	"streamBot/internal/usecase/cooldown"
	statususecase "streamBot/internal/usecase/status"
)

type Options struct{}

// Runtime is the composition root: it wires the bus, the dispatcher, the
// per-platform connection managers and the API server, and owns shutdown.
type Runtime struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg        *config.Config
	store      *sqlitestorage.Store
	bus        *events.Bus
	watcher    *config.Watcher
	dispatcher *commands.Dispatcher
	multiOut   *outs.MultiSender
	status     *statususecase.Resolver
	wsServer   *ws.Server
	managers   []*connection.Manager

	wg      sync.WaitGroup
	started bool
}

func Start(ctx context.Context, _ Options) (*Runtime, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	runtimeCtx, cancel := context.WithCancel(ctx)

	cfg, err := config.Load()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("load config: %w", err)
	}

	cmdSettings, err := config.LoadCommandSettings(cfg.CommandsFile)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("load command settings: %w", err)
	}

	telemetry.Init()

	store, err := sqlitestorage.NewStore(cfg.DatabasePath)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	bus := events.NewBus()
	watcher := config.NewWatcher(bus, cfg)

	run := &Runtime{
		ctx:      runtimeCtx,
		cancel:   cancel,
		cfg:      cfg,
		store:    store,
		bus:      bus,
		watcher:  watcher,
		multiOut: outs.NewMultiSender(),
		status:   statususecase.NewResolver(),
	}

	if cfg.TwitchClientID != "" && cfg.TwitchToken != "" && len(cfg.TwitchChannels) > 0 {
		channel := normalizeTwitchChannel(cfg.TwitchChannels[0])
		svc, err := twitchinfra.NewStatusService(cfg.TwitchClientID, cfg.TwitchToken, channel)
		if err != nil {
			slog.Warn("runtime: twitch status service unavailable", slog.Any("err", err))
		} else {
			run.status.Set(domain.PlatformTwitch, svc)
			bus.Subscribe(events.TopicSettingsChanged, func(payload any) {
				dto, ok := payload.(events.SettingsChangedDTO)
				if ok && !dto.Affects("TWITCH_") {
					return
				}
				svc.UpdateAccessToken(watcher.Current().TwitchToken)
			})
		}
	}

	ledger := cooldown.NewLedger()
	replier := commands.NewReplier(bus)

	help := commands.NewHelpCommand(replier, cmdSettings.Prefix)
	seen := commands.NewSeenCommand(replier, store)

	builder := commands.NewBuilder().
		Register(commands.NewPingCommand(replier)).
		Register(help).
		Register(seen).
		Register(commands.NewCheckinCommand(replier, store)).
		Register(commands.NewCountCommand(replier, store)).
		Register(commands.NewUptimeCommand(replier, run.status))
	registry := builder.Build()
	help.SetRegistry(registry)

	for name, override := range cmdSettings.Cooldowns {
		ledger.SetDurations(strings.ToLower(name),
			time.Duration(override.User), time.Duration(override.Global))
	}
	for _, name := range registry.Names() {
		if reg, ok := registry.Lookup(name); ok {
			ledger.SetDurations(name, reg.UserCooldown, reg.GlobalCooldown)
		}
	}

	disabled := make([]domain.Platform, 0, len(cmdSettings.DisabledPlatforms))
	for _, p := range cmdSettings.DisabledPlatforms {
		disabled = append(disabled, domain.Platform(strings.ToLower(p)))
	}

	run.dispatcher = commands.NewDispatcher(commands.DispatcherConfig{
		Prefix:            cmdSettings.Prefix,
		Registry:          registry,
		Ledger:            ledger,
		Replier:           replier,
		DisabledPlatforms: disabled,
	})
	run.dispatcher.Attach(runtimeCtx, bus)

	// Activity tracking for !seen rides the same bus subscription model as
	// the dispatcher, off the hot path.
	bus.Subscribe(events.TopicChatMessage, func(payload any) {
		if msg, ok := payload.(domain.Message); ok {
			go seen.Observe(runtimeCtx, msg)
		}
	})

	twitchMgr := connection.NewManager(connection.Config{
		Platform:         domain.PlatformTwitch,
		Bus:              bus,
		Factory:          run.twitchTransport,
		SettingsPrefixes: []string{"TWITCH_"},
	})
	kickMgr := connection.NewManager(connection.Config{
		Platform:         domain.PlatformKick,
		Bus:              bus,
		Factory:          run.kickTransport,
		SettingsPrefixes: []string{"KICK_"},
	})
	run.managers = []*connection.Manager{twitchMgr, kickMgr}
	run.multiOut.Register(domain.PlatformTwitch, twitchMgr)
	run.multiOut.Register(domain.PlatformKick, kickMgr)

	run.wsServer = ws.NewServer(ws.Config{Addr: cfg.APIAddr, Bus: bus})
	run.wsServer.SetHandler(run.DispatchMessage)

	run.wg.Add(1)
	go func() {
		defer run.wg.Done()
		if err := run.wsServer.Start(runtimeCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("ws server error", slog.Any("err", err))
		}
	}()

	run.wg.Add(1)
	go func() {
		defer run.wg.Done()
		watcher.Run(runtimeCtx)
	}()

	for _, mgr := range run.managers {
		mgr.Start(runtimeCtx)
	}

	run.started = true
	slog.Info("runtime: started")
	return run, nil
}

// Stop shuts everything down in dependency order. Safe to call twice.
func (r *Runtime) Stop() error {
	if r == nil || !r.started {
		return nil
	}
	r.cancel()
	for _, mgr := range r.managers {
		mgr.Shutdown()
	}
	r.dispatcher.Wait()
	r.wg.Wait()
	r.started = false
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}

func (r *Runtime) Bus() *events.Bus { return r.bus }

func (r *Runtime) Out() domain.OutgoingMessagePort { return r.multiOut }

// DispatchMessage feeds a message into the pipeline as if it had been
// received from a platform. The desktop console and tests use it.
func (r *Runtime) DispatchMessage(ctx context.Context, msg domain.Message) error {
	if r == nil || r.bus == nil {
		return fmt.Errorf("runtime not started")
	}
	r.bus.Publish(events.TopicChatMessage, msg)
	return nil
}

func (r *Runtime) twitchTransport() (domain.ChatTransport, error) {
	cfg := r.watcher.Current()
	channels := normalizeTwitchChannels(cfg.TwitchChannels)
	if cfg.TwitchUsername == "" || cfg.TwitchToken == "" || len(channels) == 0 {
		return nil, fmt.Errorf("twitch: missing bot credentials or channels: %w", domain.ErrNotConfigured)
	}
	return twitchadapter.New(twitchadapter.Config{
		Username:   cfg.TwitchUsername,
		OAuthToken: cfg.TwitchToken,
		Channels:   channels,
		ClientID:   cfg.TwitchClientID,
	}), nil
}

func (r *Runtime) kickTransport() (domain.ChatTransport, error) {
	cfg := r.watcher.Current()
	if cfg.KickAccessToken == "" || cfg.KickBroadcasterUserID == 0 || cfg.KickChatroomID == 0 {
		return nil, fmt.Errorf("kick: missing token or chatroom ids: %w", domain.ErrNotConfigured)
	}
	return kickadapter.New(kickadapter.Config{
		AccessToken:       cfg.KickAccessToken,
		BroadcasterUserID: cfg.KickBroadcasterUserID,
		ChatroomID:        cfg.KickChatroomID,
	}), nil
}

func normalizeTwitchChannels(input []string) []string {
	var result []string
	seen := make(map[string]struct{})
	for _, raw := range input {
		for _, part := range strings.Split(raw, ",") {
			channel := normalizeTwitchChannel(part)
			if channel == "" {
				continue
			}
			if _, ok := seen[channel]; ok {
				continue
			}
			seen[channel] = struct{}{}
			result = append(result, channel)
		}
	}
	return result
}

func normalizeTwitchChannel(value string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), "#"))
}
