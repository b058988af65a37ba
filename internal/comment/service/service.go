package service

import (
	"context"

	"github.com/marcelofinamorvieira/record-comments/internal/comment/bridge"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/identity"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/view"
)

type CommentService interface {
	FieldSettings(ctx context.Context, modelID string) (bridge.FieldSettings, error)
	List(ctx context.Context, recordID string, who identity.Principal) (Thread, error)
	Add(ctx context.Context, recordID string, who identity.Principal) (Thread, error)
	Reply(ctx context.Context, recordID, parentTS string, who identity.Principal) (Thread, error)
	Edit(ctx context.Context, recordID, ts, parentTS, text string, who identity.Principal) (Thread, error)
	Delete(ctx context.Context, recordID, ts, parentTS string, who identity.Principal) (Thread, error)
	// ToggleUpvote removes the user's upvote when alreadyUpvoted is true and
	// adds it otherwise; nil derives the flag from the stored comment.
	ToggleUpvote(ctx context.Context, recordID, ts, parentTS string, alreadyUpvoted *bool, who identity.Principal) (Thread, error)
}

// Thread is a record's comment tree rendered for one user.
type Thread struct {
	RecordID string      `json:"record_id"`
	Enabled  bool        `json:"enabled"`
	FieldID  string      `json:"field_id,omitempty"`
	Created  string      `json:"created,omitempty"`
	Comments []view.Node `json:"comments"`
}
