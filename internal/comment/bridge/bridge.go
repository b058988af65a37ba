// Package bridge keeps a record's comment log in sync with the host's
// comment_log field. Mutations only ever produce a new log; writing it back to
// the host happens in Session.Sync, after the log has been replaced.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/marcelofinamorvieira/record-comments/internal/comment/codec"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/model"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/storage"
)

// ErrPersistenceDisabled is returned when writing to a record whose model has
// no comment_log field.
var ErrPersistenceDisabled = errors.New("comment log field missing")

type Bridge struct {
	repo         storage.Repository
	modelEditURL string
	logger       zerolog.Logger
}

// New creates a bridge. modelEditURL is a fmt template taking the model id,
// e.g. "https://admin.example.com/schema/item_types/%s".
func New(repo storage.Repository, modelEditURL string, logger zerolog.Logger) *Bridge {
	return &Bridge{
		repo:         repo,
		modelEditURL: modelEditURL,
		logger:       logger.With().Str("component", "bridge").Logger(),
	}
}

// FindCommentLogField returns the JSON field reserved for comments, if any.
func FindCommentLogField(fields []model.Field) (model.Field, bool) {
	for _, f := range fields {
		if f.IsCommentLog() {
			return f, true
		}
	}
	return model.Field{}, false
}

// FieldSettings tells the host how to present the comment_log field in its
// default form. The field is edited through the sidebar only.
type FieldSettings struct {
	ModelID  string       `json:"model_id"`
	Enabled  bool         `json:"enabled"`
	FieldID  string       `json:"field_id,omitempty"`
	Disabled []string     `json:"disabled_fields"`
	Prompt   *ModelPrompt `json:"prompt,omitempty"`
}

func (b *Bridge) FieldSettings(ctx context.Context, modelID string) (FieldSettings, error) {
	fields, err := b.repo.Fields(ctx, modelID)
	if err != nil {
		return FieldSettings{}, fmt.Errorf("load fields of model %s: %w", modelID, err)
	}

	out := FieldSettings{ModelID: modelID, Disabled: []string{}}
	if f, ok := FindCommentLogField(fields); ok {
		out.Enabled = true
		out.FieldID = f.ID
		out.Disabled = append(out.Disabled, f.ID)
		return out, nil
	}

	prompt := b.Prompt(modelID)
	out.Prompt = &prompt
	return out, nil
}

// Open loads the record and its schema and decodes the stored comment log.
func (b *Bridge) Open(ctx context.Context, recordID string) (*Session, error) {
	rec, err := b.repo.Record(ctx, recordID)
	if err != nil {
		return nil, err
	}

	fields, err := b.repo.Fields(ctx, rec.ModelID)
	if err != nil {
		return nil, fmt.Errorf("load fields of model %s: %w", rec.ModelID, err)
	}

	s := &Session{
		bridge: b,
		record: rec,
		log:    model.Log{},
	}

	field, ok := FindCommentLogField(fields)
	if !ok {
		return s, nil
	}
	s.enabled = true
	s.field = field

	if rec.CommentLog != nil && strings.TrimSpace(*rec.CommentLog) != "" {
		log, err := codec.Unmarshal(*rec.CommentLog)
		if err != nil {
			return nil, fmt.Errorf("load comments of record %s: %w", recordID, err)
		}
		s.log = log
	}

	return s, nil
}

// Session is one record's comment log as loaded from the host.
type Session struct {
	bridge  *Bridge
	record  model.Record
	field   model.Field
	enabled bool
	log     model.Log
}

func (s *Session) Enabled() bool        { return s.enabled }
func (s *Session) Field() model.Field   { return s.field }
func (s *Session) Record() model.Record { return s.record }
func (s *Session) Log() model.Log       { return s.log }

// Prompt describes the blocking dialog shown when comments can not be stored.
func (s *Session) Prompt() ModelPrompt {
	return s.bridge.Prompt(s.record.ModelID)
}

// Mutation is a pure transition of the log. ok=false means the target was
// not found and the log is left unchanged.
type Mutation func(model.Log) (next model.Log, ok bool)

// Apply replaces the log with the mutation's result and syncs it to the host.
func (s *Session) Apply(ctx context.Context, m Mutation) (bool, error) {
	if !s.enabled {
		return false, ErrPersistenceDisabled
	}

	next, ok := m(s.log)
	if !ok {
		return false, nil
	}
	s.log = next

	if err := s.Sync(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// Sync mirrors the current log into the host field. An empty log clears the
// field; otherwise the value is written only when it differs from the stored one.
func (s *Session) Sync(ctx context.Context) error {
	if !s.enabled {
		return nil
	}

	if s.log.Empty() {
		if s.record.CommentLog == nil {
			return nil
		}
		if err := s.bridge.repo.WriteCommentLog(ctx, s.record.ID, nil); err != nil {
			return fmt.Errorf("clear comment log of record %s: %w", s.record.ID, err)
		}
		s.record.CommentLog = nil
		s.bridge.logger.Debug().Str("record_id", s.record.ID).Msg("comment log cleared")
		return nil
	}

	text, err := codec.Marshal(s.log)
	if err != nil {
		return err
	}
	if s.record.CommentLog != nil && *s.record.CommentLog == text {
		return nil
	}

	if err := s.bridge.repo.WriteCommentLog(ctx, s.record.ID, &text); err != nil {
		return fmt.Errorf("write comment log of record %s: %w", s.record.ID, err)
	}
	s.record.CommentLog = &text
	s.bridge.logger.Debug().
		Str("record_id", s.record.ID).
		Int("comments", len(s.log)).
		Msg("comment log written")
	return nil
}
