package rediscache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"github.com/marcelofinamorvieira/record-comments/internal/comment/model"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/storage"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/storage/inmemory"
)

func setupTestCache(t *testing.T) (*Repo, *inmemory.Repo, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	client, err := NewClient(context.Background(), "redis://"+s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	backing := inmemory.New()
	return New(backing, client, time.Minute, zerolog.Nop()), backing, s
}

// pausingRepo blocks Record after it has read the host value until release
// is closed.
type pausingRepo struct {
	*inmemory.Repo
	read    chan struct{}
	release chan struct{}
}

func (p *pausingRepo) Record(ctx context.Context, recordID string) (model.Record, error) {
	rec, err := p.Repo.Record(ctx, recordID)
	close(p.read)
	<-p.release
	return rec, err
}

func TestRecordNeverServedStale(t *testing.T) {
	repo, backing, s := setupTestCache(t)
	ctx := context.Background()

	v := "[]"
	backing.PutRecord(model.Record{ID: "r1", ModelID: "m1", CommentLog: &v})

	rec, err := repo.Record(ctx, "r1")
	if err != nil || rec.CommentLog == nil || *rec.CommentLog != "[]" {
		t.Fatalf("Record: %v %v", rec.CommentLog, err)
	}

	other := "changed"
	backing.PutRecord(model.Record{ID: "r1", ModelID: "m1", CommentLog: &other})
	rec, err = repo.Record(ctx, "r1")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if *rec.CommentLog != "changed" {
		t.Fatalf("expected host value, got %q", *rec.CommentLog)
	}
	if len(s.Keys()) != 0 {
		t.Fatalf("record value cached: %v", s.Keys())
	}
}

func TestConcurrentReadAndWrite(t *testing.T) {
	_, backing, s := setupTestCache(t)
	ctx := context.Background()

	old := "old"
	backing.PutRecord(model.Record{ID: "r1", ModelID: "m1", CommentLog: &old})

	slow := &pausingRepo{Repo: backing, read: make(chan struct{}), release: make(chan struct{})}
	client, err := NewClient(ctx, "redis://"+s.Addr())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	repo := New(slow, client, time.Minute, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		_, err := repo.Record(ctx, "r1")
		done <- err
	}()

	<-slow.read
	fresh := "new"
	if err := repo.WriteCommentLog(ctx, "r1", &fresh); err != nil {
		t.Fatalf("WriteCommentLog: %v", err)
	}
	close(slow.release)
	if err := <-done; err != nil {
		t.Fatalf("Record: %v", err)
	}

	// the slow read finished; later reads see the write
	rec, err := New(backing, client, time.Minute, zerolog.Nop()).Record(ctx, "r1")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.CommentLog == nil || *rec.CommentLog != "new" {
		t.Fatalf("stale comment log served: %v", rec.CommentLog)
	}
}

func TestWriteCommentLogPassesThrough(t *testing.T) {
	repo, backing, _ := setupTestCache(t)
	ctx := context.Background()
	backing.PutRecord(model.Record{ID: "r1", ModelID: "m1"})

	v := `[{"timestamp":"a"}]`
	if err := repo.WriteCommentLog(ctx, "r1", &v); err != nil {
		t.Fatalf("WriteCommentLog: %v", err)
	}
	rec, err := repo.Record(ctx, "r1")
	if err != nil || rec.CommentLog == nil || *rec.CommentLog != v {
		t.Fatalf("expected written value, got %v %v", rec.CommentLog, err)
	}

	if err := repo.WriteCommentLog(ctx, "r1", nil); err != nil {
		t.Fatalf("WriteCommentLog nil: %v", err)
	}
	rec, _ = repo.Record(ctx, "r1")
	if rec.CommentLog != nil {
		t.Fatalf("expected null after clear")
	}
	if backing.Writes() != 2 {
		t.Fatalf("expected 2 host writes, got %d", backing.Writes())
	}
}

func TestMissingRecord(t *testing.T) {
	repo, _, _ := setupTestCache(t)

	_, err := repo.Record(context.Background(), "missing")
	if !errors.Is(err, storage.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestFieldsCached(t *testing.T) {
	repo, backing, s := setupTestCache(t)
	ctx := context.Background()
	backing.PutField(model.Field{ID: "f1", ModelID: "m1", APIKey: model.CommentLogAPIKey, Type: model.FieldTypeJSON})

	fields, err := repo.Fields(ctx, "m1")
	if err != nil || len(fields) != 1 {
		t.Fatalf("Fields: %v %v", fields, err)
	}
	if !s.Exists(FieldsKey("m1")) {
		t.Fatalf("schema not cached")
	}

	backing.DeleteField("m1", "f1")
	fields, _ = repo.Fields(ctx, "m1")
	if len(fields) != 1 {
		t.Fatalf("expected cached schema")
	}

	if err := repo.InvalidateFields(ctx, "m1"); err != nil {
		t.Fatalf("InvalidateFields: %v", err)
	}
	fields, _ = repo.Fields(ctx, "m1")
	if len(fields) != 0 {
		t.Fatalf("expected fresh schema, got %v", fields)
	}
}
