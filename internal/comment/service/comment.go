package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/marcelofinamorvieira/record-comments/internal/comment/bridge"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/identity"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/model"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/storage"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/tree"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/view"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
)

// lockStripes bounds the number of record mutexes; records sharing a stripe
// only serialize against each other.
const lockStripes = 256

type Option func(*commentService)

// WithClock replaces time.Now as the source of new comment timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *commentService) {
		s.now = now
	}
}

type commentService struct {
	bridge *bridge.Bridge
	logger zerolog.Logger
	now    func() time.Time

	locks [lockStripes]sync.Mutex
}

func New(b *bridge.Bridge, logger zerolog.Logger, opts ...Option) CommentService {
	s := &commentService{
		bridge: b,
		logger: logger.With().Str("component", "comment_service").Logger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *commentService) FieldSettings(ctx context.Context, modelID string) (bridge.FieldSettings, error) {
	if strings.TrimSpace(modelID) == "" {
		return bridge.FieldSettings{}, ErrInvalidInput
	}
	return s.bridge.FieldSettings(ctx, modelID)
}

func (s *commentService) List(ctx context.Context, recordID string, who identity.Principal) (Thread, error) {
	if strings.TrimSpace(recordID) == "" {
		return Thread{}, ErrInvalidInput
	}

	sess, err := s.open(ctx, recordID)
	if err != nil {
		return Thread{}, err
	}
	return thread(sess, identity.Resolve(who), ""), nil
}

func (s *commentService) Add(ctx context.Context, recordID string, who identity.Principal) (Thread, error) {
	if strings.TrimSpace(recordID) == "" {
		return Thread{}, ErrInvalidInput
	}
	unlock := s.lock(recordID)
	defer unlock()

	sess, err := s.open(ctx, recordID)
	if err != nil {
		return Thread{}, err
	}
	if !sess.Enabled() {
		return Thread{}, &bridge.FieldMissingError{Prompt: sess.Prompt()}
	}

	me := identity.Resolve(who)
	ts := tree.NewTimestamp(sess.Log(), s.now())
	if _, err := sess.Apply(ctx, func(log model.Log) (model.Log, bool) {
		return tree.Add(log, me.Author(), ts), true
	}); err != nil {
		return Thread{}, err
	}

	s.logger.Info().Str("record_id", recordID).Str("timestamp", ts).Msg("comment added")
	return thread(sess, me, ts), nil
}

func (s *commentService) Reply(ctx context.Context, recordID, parentTS string, who identity.Principal) (Thread, error) {
	if strings.TrimSpace(recordID) == "" || parentTS == "" {
		return Thread{}, ErrInvalidInput
	}
	unlock := s.lock(recordID)
	defer unlock()

	sess, err := s.openEnabled(ctx, recordID)
	if err != nil {
		return Thread{}, err
	}

	me := identity.Resolve(who)
	ts := tree.NewTimestamp(sess.Log(), s.now())
	ok, err := sess.Apply(ctx, func(log model.Log) (model.Log, bool) {
		return tree.Reply(log, parentTS, me.Author(), ts)
	})
	if err != nil {
		return Thread{}, err
	}
	if !ok {
		return Thread{}, s.missing(recordID, parentTS, "")
	}

	s.logger.Info().Str("record_id", recordID).Str("timestamp", ts).Str("parent", parentTS).Msg("reply added")
	return thread(sess, me, ts), nil
}

func (s *commentService) Edit(ctx context.Context, recordID, ts, parentTS, text string, who identity.Principal) (Thread, error) {
	if strings.TrimSpace(recordID) == "" || ts == "" {
		return Thread{}, ErrInvalidInput
	}
	if err := view.ValidateEditText(text); err != nil {
		return Thread{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	unlock := s.lock(recordID)
	defer unlock()

	sess, err := s.openEnabled(ctx, recordID)
	if err != nil {
		return Thread{}, err
	}
	me := identity.Resolve(who)
	if err := s.authorize(sess.Log(), recordID, ts, parentTS, me); err != nil {
		return Thread{}, err
	}

	ok, err := sess.Apply(ctx, func(log model.Log) (model.Log, bool) {
		return tree.Edit(log, ts, text, parentTS)
	})
	if err != nil {
		return Thread{}, err
	}
	if !ok {
		return Thread{}, s.missing(recordID, ts, parentTS)
	}
	return thread(sess, me, ""), nil
}

func (s *commentService) Delete(ctx context.Context, recordID, ts, parentTS string, who identity.Principal) (Thread, error) {
	if strings.TrimSpace(recordID) == "" || ts == "" {
		return Thread{}, ErrInvalidInput
	}
	unlock := s.lock(recordID)
	defer unlock()

	sess, err := s.openEnabled(ctx, recordID)
	if err != nil {
		return Thread{}, err
	}
	me := identity.Resolve(who)
	if err := s.authorize(sess.Log(), recordID, ts, parentTS, me); err != nil {
		return Thread{}, err
	}

	ok, err := sess.Apply(ctx, func(log model.Log) (model.Log, bool) {
		return tree.Delete(log, ts, parentTS)
	})
	if err != nil {
		return Thread{}, err
	}
	if !ok {
		return Thread{}, s.missing(recordID, ts, parentTS)
	}

	s.logger.Info().Str("record_id", recordID).Str("timestamp", ts).Msg("comment deleted")
	return thread(sess, me, ""), nil
}

func (s *commentService) ToggleUpvote(ctx context.Context, recordID, ts, parentTS string, alreadyUpvoted *bool, who identity.Principal) (Thread, error) {
	if strings.TrimSpace(recordID) == "" || ts == "" {
		return Thread{}, ErrInvalidInput
	}
	unlock := s.lock(recordID)
	defer unlock()

	sess, err := s.openEnabled(ctx, recordID)
	if err != nil {
		return Thread{}, err
	}
	me := identity.Resolve(who)

	node, found := tree.Find(sess.Log(), ts, parentTS)
	if !found {
		return Thread{}, s.missing(recordID, ts, parentTS)
	}
	upvoted := node.UpvotedBy(me.ContactKey)
	if alreadyUpvoted != nil {
		upvoted = *alreadyUpvoted
	}

	ok, err := sess.Apply(ctx, func(log model.Log) (model.Log, bool) {
		return tree.ToggleUpvote(log, ts, upvoted, me.ContactKey, parentTS)
	})
	if err != nil {
		return Thread{}, err
	}
	if !ok {
		return Thread{}, s.missing(recordID, ts, parentTS)
	}
	return thread(sess, me, ""), nil
}

func (s *commentService) open(ctx context.Context, recordID string) (*bridge.Session, error) {
	sess, err := s.bridge.Open(ctx, recordID)
	if errors.Is(err, storage.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: record %s", ErrNotFound, recordID)
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// openEnabled is open for operations that address an existing comment; with
// persistence disabled there are none.
func (s *commentService) openEnabled(ctx context.Context, recordID string) (*bridge.Session, error) {
	sess, err := s.open(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if !sess.Enabled() {
		return nil, &bridge.FieldMissingError{Prompt: sess.Prompt()}
	}
	return sess, nil
}

func (s *commentService) authorize(log model.Log, recordID, ts, parentTS string, me identity.Identity) error {
	node, ok := tree.Find(log, ts, parentTS)
	if !ok {
		return s.missing(recordID, ts, parentTS)
	}
	if !view.IsAuthor(node, me) {
		return ErrForbidden
	}
	return nil
}

// missing reports a target that is gone, typically because the caller
// rendered a stale tree. The stored log is left as it was.
func (s *commentService) missing(recordID, ts, parentTS string) error {
	s.logger.Debug().
		Str("record_id", recordID).
		Str("timestamp", ts).
		Str("parent", parentTS).
		Msg("comment not found")
	return fmt.Errorf("%w: comment %s", ErrNotFound, ts)
}

func (s *commentService) lock(recordID string) func() {
	mu := &s.locks[stripe(recordID)]
	mu.Lock()
	return mu.Unlock
}

func stripe(recordID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(recordID))
	return h.Sum32() % lockStripes
}

func thread(sess *bridge.Session, me identity.Identity, created string) Thread {
	return Thread{
		RecordID: sess.Record().ID,
		Enabled:  sess.Enabled(),
		FieldID:  sess.Field().ID,
		Created:  created,
		Comments: view.Render(sess.Log(), me),
	}
}
