// Package daemon composes the engine: logger, bus, store, REST client,
// transport channel, router and action pipeline, with lifecycle hooks for
// the initial snapshot fetch and the channel connect/disconnect.
package daemon

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/osilveira/courier/internal/actions"
	"github.com/osilveira/courier/internal/bus"
	"github.com/osilveira/courier/internal/channel"
	"github.com/osilveira/courier/internal/config"
	"github.com/osilveira/courier/internal/logging"
	"github.com/osilveira/courier/internal/rest"
	"github.com/osilveira/courier/internal/search"
	"github.com/osilveira/courier/internal/session"
	"github.com/osilveira/courier/internal/status"
	"github.com/osilveira/courier/internal/store"
	intsync "github.com/osilveira/courier/internal/sync"
)

// Params holds the resolved configuration and session passed to the fx module.
type Params struct {
	Config  *config.Config
	Session *session.Context
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("courierd",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideStore,
			provideRestClient,
			provideEngine,
			provideChannel,
			providePipeline,
			provideSearcher,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(p.Config.LogPath)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideStore(b *bus.Bus) *store.Store {
	return store.New(b)
}

func provideRestClient(p Params, logger *zap.Logger) *rest.Client {
	return rest.NewClient(p.Config.ServerURL, p.Session.Token, logger)
}

func provideEngine(p Params, st *store.Store, client *rest.Client, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(st, p.Session, client, logger)
}

func provideChannel(p Params, engine *intsync.Engine, machine *status.Machine, logger *zap.Logger) *channel.Channel {
	return channel.New(p.Config.SocketURL, p.Session.Token, engine.Handle, machine, p.Config.ReconnectDelay(), logger)
}

func providePipeline(p Params, st *store.Store, client *rest.Client, searcher *search.Searcher, logger *zap.Logger) *actions.Pipeline {
	return actions.NewPipeline(st, p.Session, client, searcher, logger)
}

func provideSearcher(p Params, st *store.Store, client *rest.Client, logger *zap.Logger) *search.Searcher {
	return search.NewSearcher(st, client, p.Config.UserSearchDebounce(), p.Config.MessageSearchDebounce(), logger)
}

func registerLifecycle(
	lc fx.Lifecycle,
	ch *channel.Channel,
	st *store.Store,
	client *rest.Client,
	pipeline *actions.Pipeline,
	searcher *search.Searcher,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Initial snapshot: the chat list and blocked set must be in
			// place before push frames start mutating them.
			chats, err := client.ListChats(ctx)
			if err != nil {
				return fmt.Errorf("initial chat fetch: %w", err)
			}
			st.ReplaceChats(chats)

			blocked, err := client.ListBlocked(ctx)
			if err != nil {
				return fmt.Errorf("initial blocked fetch: %w", err)
			}
			st.SetBlocked(blocked)

			logger.Info("snapshot loaded",
				zap.Int("chats", len(chats)),
				zap.Int("blocked", len(blocked)))

			go func() {
				if err := ch.Connect(); err != nil {
					// Connect schedules its own reconnect on failure.
					logger.Warn("initial connect failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			ch.Disconnect()
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
