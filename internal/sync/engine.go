// Package sync reconciles inbound push frames into the conversation store.
// The engine is the single router: each frame is dispatched to exactly one
// rule, synchronously, in arrival order. Every rule is idempotent, because a
// locally-initiated optimistic mutation and the authoritative broadcast for
// the same logical change may arrive in either order.
package sync

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/osilveira/courier/internal/session"
	"github.com/osilveira/courier/internal/store"
	"github.com/osilveira/courier/internal/wire"
)

// ChatLister fetches the full chat list snapshot; used for the self-healing
// refetch when a frame references a chat the store does not know.
type ChatLister interface {
	ListChats(ctx context.Context) ([]store.Chat, error)
}

const refetchTimeout = 15 * time.Second

// Engine routes frames to reconciliation rules.
type Engine struct {
	store  *store.Store
	sess   *session.Context
	chats  ChatLister
	logger *zap.Logger

	refetching atomic.Bool
}

// NewEngine creates the engine.
func NewEngine(st *store.Store, sess *session.Context, chats ChatLister, logger *zap.Logger) *Engine {
	return &Engine{
		store:  st,
		sess:   sess,
		chats:  chats,
		logger: logger,
	}
}

// Handle dispatches one frame to its rule. It is the channel's handler and
// runs on the channel's read loop, so rules run to completion before the
// next frame is processed.
func (e *Engine) Handle(f wire.Frame) {
	switch f.Kind {
	case wire.KindNewMessage:
		e.applyNewMessage(*f.Message)
	case wire.KindMessageUpdate:
		e.applyMessageUpdate(f.MessageUpdate)
	case wire.KindUserStatusChange:
		e.applyStatusChange(f.StatusChange)
	case wire.KindUserBlockUpdate:
		e.applyBlockUpdate(f.BlockUpdate)
	case wire.KindGroupEvent:
		e.applyGroupEvent(f.GroupEvent)
	default:
		e.logger.Warn("frame with unroutable kind dropped", zap.String("kind", string(f.Kind)))
	}
}

// refetchChats repairs a gap in local knowledge by re-fetching the full chat
// list. Single-flight: overlapping triggers collapse into one fetch.
func (e *Engine) refetchChats() {
	if !e.refetching.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer e.refetching.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), refetchTimeout)
		defer cancel()

		chats, err := e.chats.ListChats(ctx)
		if err != nil {
			e.logger.Error("chat list refetch failed", zap.Error(err))
			return
		}
		e.store.ReplaceChats(chats)
		e.logger.Info("chat list refetched", zap.Int("chats", len(chats)))
	}()
}
