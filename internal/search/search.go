// Package search runs the debounced user and in-chat message searches.
// Every query issuance increments a generation counter; a response is applied
// only when its generation is still the latest, so a late response for a
// superseded query is discarded deterministically rather than relying on
// timer cancellation alone. Results go into the store's transient overlay,
// never into the canonical lists.
package search

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/osilveira/courier/internal/store"
)

// API is the REST surface the searcher depends on.
type API interface {
	SearchUsers(ctx context.Context, query string) ([]store.User, error)
	ListMessages(ctx context.Context, chatID, query string) ([]store.Message, error)
}

const requestTimeout = 15 * time.Second

// Searcher debounces queries and applies only current results.
type Searcher struct {
	store  *store.Store
	api    API
	logger *zap.Logger

	userDelay time.Duration
	msgDelay  time.Duration

	mu        sync.Mutex
	userGen   uint64
	msgGen    uint64
	userTimer *time.Timer
	msgTimer  *time.Timer
}

// NewSearcher creates a searcher with the given debounce windows.
func NewSearcher(st *store.Store, api API, userDelay, msgDelay time.Duration, logger *zap.Logger) *Searcher {
	if userDelay <= 0 {
		userDelay = 500 * time.Millisecond
	}
	if msgDelay <= 0 {
		msgDelay = 300 * time.Millisecond
	}
	return &Searcher{
		store:     st,
		api:       api,
		logger:    logger,
		userDelay: userDelay,
		msgDelay:  msgDelay,
	}
}

// QueryUsers (re)arms the user search debounce timer for the query. An empty
// query clears the overlay and invalidates any in-flight request.
func (s *Searcher) QueryUsers(query string) {
	s.mu.Lock()
	s.userGen++
	gen := s.userGen
	if s.userTimer != nil {
		s.userTimer.Stop()
		s.userTimer = nil
	}
	if query == "" {
		s.mu.Unlock()
		s.store.ClearSearch()
		return
	}
	s.userTimer = time.AfterFunc(s.userDelay, func() {
		s.runUserQuery(gen, query)
	})
	s.mu.Unlock()
}

// Cancel invalidates both pending timers and any in-flight request, so a
// response landing after the overlay was cleared elsewhere (chat selection)
// cannot repopulate it.
func (s *Searcher) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userGen++
	s.msgGen++
	if s.userTimer != nil {
		s.userTimer.Stop()
		s.userTimer = nil
	}
	if s.msgTimer != nil {
		s.msgTimer.Stop()
		s.msgTimer = nil
	}
}

func (s *Searcher) runUserQuery(gen uint64, query string) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	users, err := s.api.SearchUsers(ctx, query)
	if err != nil {
		s.logger.Error("user search failed", zap.Error(err), zap.String("query", query))
		return
	}

	// Apply under the lock so a concurrent re-query cannot slip between the
	// generation check and the store write.
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.userGen {
		s.logger.Debug("stale user search response discarded", zap.String("query", query))
		return
	}
	s.store.SetUserResults(users)
}

// QueryMessages (re)arms the in-chat message search debounce timer. The open
// chat is captured at issue time; a response for a chat that is no longer
// open is discarded.
func (s *Searcher) QueryMessages(query string) {
	chatID := s.store.OpenChatID()

	s.mu.Lock()
	s.msgGen++
	gen := s.msgGen
	if s.msgTimer != nil {
		s.msgTimer.Stop()
		s.msgTimer = nil
	}
	if query == "" || chatID == "" {
		s.mu.Unlock()
		s.store.ClearSearch()
		return
	}
	s.msgTimer = time.AfterFunc(s.msgDelay, func() {
		s.runMessageQuery(gen, chatID, query)
	})
	s.mu.Unlock()
}

func (s *Searcher) runMessageQuery(gen uint64, chatID, query string) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	msgs, err := s.api.ListMessages(ctx, chatID, query)
	if err != nil {
		s.logger.Error("message search failed", zap.Error(err),
			zap.String("chat_id", chatID), zap.String("query", query))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.msgGen || s.store.OpenChatID() != chatID {
		s.logger.Debug("stale message search response discarded", zap.String("query", query))
		return
	}
	s.store.SetMessageResults(msgs)
}
