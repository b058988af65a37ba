package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/marcelofinamorvieira/record-comments/internal/comment/model"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/storage"
)

type Repo struct {
	mu sync.RWMutex

	records map[string]model.Record
	fields  map[string]map[string]model.Field
	writes  int
}

func New() *Repo {
	return &Repo{
		records: make(map[string]model.Record),
		fields:  make(map[string]map[string]model.Field),
	}
}

func (r *Repo) PutField(f model.Field) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byID, ok := r.fields[f.ModelID]
	if !ok {
		byID = make(map[string]model.Field)
		r.fields[f.ModelID] = byID
	}
	byID[f.ID] = f
}

func (r *Repo) DeleteField(modelID, fieldID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.fields[modelID], fieldID)
}

func (r *Repo) PutRecord(rec model.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = copyRecord(rec)
}

// Writes reports how many times WriteCommentLog stored a value.
func (r *Repo) Writes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.writes
}

func (r *Repo) Record(ctx context.Context, recordID string) (model.Record, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[recordID]
	if !ok {
		return model.Record{}, storage.ErrRecordNotFound
	}
	return copyRecord(rec), nil
}

func (r *Repo) Fields(ctx context.Context, modelID string) ([]model.Field, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Field, 0, len(r.fields[modelID]))
	for _, f := range r.fields[modelID] {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *Repo) WriteCommentLog(ctx context.Context, recordID string, value *string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[recordID]
	if !ok {
		return storage.ErrRecordNotFound
	}
	rec.CommentLog = copyValue(value)
	r.records[recordID] = rec
	r.writes++

	return nil
}

func copyRecord(rec model.Record) model.Record {
	rec.CommentLog = copyValue(rec.CommentLog)
	return rec
}

func copyValue(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}
