package storage

import (
	"context"
	"errors"

	"github.com/marcelofinamorvieira/record-comments/internal/comment/model"
)

var ErrRecordNotFound = errors.New("record not found")

// Repository is the host side of the plugin: record schema and the
// comment_log field value store.
type Repository interface {
	Record(ctx context.Context, recordID string) (model.Record, error)
	Fields(ctx context.Context, modelID string) ([]model.Field, error)
	// WriteCommentLog stores value as the record's comment_log; nil clears it.
	WriteCommentLog(ctx context.Context, recordID string, value *string) error
}
