package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/marcelofinamorvieira/record-comments/internal/comment/bridge"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/codec"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/identity"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/model"
	inm "github.com/marcelofinamorvieira/record-comments/internal/comment/storage/inmemory"
)

var (
	alice = identity.Principal{Kind: identity.KindUser, ID: "1", FullName: "Alice", Email: "a@x.com"}
	bob   = identity.Principal{Kind: identity.KindSSOUser, ID: "2", FirstName: "Bob", Email: "b@x.com"}
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newService(withField bool) (CommentService, *inm.Repo) {
	repo := inm.New()
	if withField {
		repo.PutField(model.Field{ID: "f-log", ModelID: "article", APIKey: model.CommentLogAPIKey, Type: model.FieldTypeJSON})
	}
	repo.PutRecord(model.Record{ID: "r1", ModelID: "article"})

	clock := &fixedClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := bridge.New(repo, "https://admin.example.com/schema/item_types/%s", zerolog.Nop())
	return New(b, zerolog.Nop(), WithClock(clock.now)), repo
}

func storedLog(t *testing.T, repo *inm.Repo) (model.Log, bool) {
	t.Helper()
	rec, err := repo.Record(context.Background(), "r1")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.CommentLog == nil {
		return nil, false
	}
	log, err := codec.Unmarshal(*rec.CommentLog)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	return log, true
}

func TestAddOnEmptyStore(t *testing.T) {
	svc, repo := newService(true)

	th, err := svc.Add(context.Background(), "r1", alice)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(th.Comments) != 1 {
		t.Fatalf("expected 1 comment, got %d", len(th.Comments))
	}
	c := th.Comments[0]
	if c.Text != "" || !c.Editing {
		t.Fatalf("new comment should be empty and editing: %+v", c)
	}
	if c.Author.Name != "Alice" || c.Author.Email != "a@x.com" {
		t.Fatalf("unexpected author %+v", c.Author)
	}
	if th.Created != c.Timestamp || c.Timestamp != "2024-01-01T00:00:01.000Z" {
		t.Fatalf("unexpected timestamp %q created %q", c.Timestamp, th.Created)
	}

	log, ok := storedLog(t, repo)
	if !ok || len(log) != 1 {
		t.Fatalf("comment not persisted")
	}
}

func TestAddWithoutFieldReturnsPrompt(t *testing.T) {
	svc, repo := newService(false)

	_, err := svc.Add(context.Background(), "r1", alice)
	var missing *bridge.FieldMissingError
	if !errors.As(err, &missing) {
		t.Fatalf("expected FieldMissingError, got %v", err)
	}
	if missing.Prompt.ModelEditURL != "https://admin.example.com/schema/item_types/article" {
		t.Fatalf("unexpected prompt %+v", missing.Prompt)
	}
	if repo.Writes() != 0 {
		t.Fatalf("host written without field")
	}

	th, err := svc.List(context.Background(), "r1", alice)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if th.Enabled {
		t.Fatalf("expected disabled thread")
	}
}

func TestEditRules(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(true)

	th, err := svc.Add(ctx, "r1", alice)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	ts := th.Created

	if _, err := svc.Edit(ctx, "r1", ts, "", "   ", alice); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank text, got %v", err)
	}
	if _, err := svc.Edit(ctx, "r1", ts, "", "hijack", bob); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	th, err = svc.Edit(ctx, "r1", ts, "", "hello", alice)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if th.Comments[0].Text != "hello" || th.Comments[0].Editing {
		t.Fatalf("unexpected comment after edit %+v", th.Comments[0])
	}

	if _, err := svc.Edit(ctx, "r1", "missing", "", "x", alice); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReplyEditDelete(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(true)

	th, _ := svc.Add(ctx, "r1", alice)
	parent := th.Created

	th, err := svc.Reply(ctx, "r1", parent, bob)
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	reply := th.Created
	if len(th.Comments[0].Replies) != 1 || th.Comments[0].Replies[0].ParentTimestamp != parent {
		t.Fatalf("reply not nested under parent: %+v", th.Comments[0])
	}

	if _, err := svc.Reply(ctx, "r1", reply, alice); !errors.Is(err, ErrNotFound) {
		t.Fatalf("replying to a reply must fail, got %v", err)
	}

	if _, err := svc.Edit(ctx, "r1", reply, parent, "thanks", bob); err != nil {
		t.Fatalf("Edit reply: %v", err)
	}
	if _, err := svc.Edit(ctx, "r1", reply, "", "thanks", bob); !errors.Is(err, ErrNotFound) {
		t.Fatalf("reply must only be addressable through its parent, got %v", err)
	}

	if _, err := svc.Delete(ctx, "r1", reply, parent, alice); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	th, err = svc.Delete(ctx, "r1", reply, parent, bob)
	if err != nil {
		t.Fatalf("Delete reply: %v", err)
	}
	if len(th.Comments) != 1 || len(th.Comments[0].Replies) != 0 {
		t.Fatalf("unexpected thread after reply delete %+v", th.Comments)
	}

	if _, err := svc.Delete(ctx, "r1", parent, "", alice); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := storedLog(t, repo); ok {
		t.Fatalf("expected null field after deleting the last comment")
	}
}

func TestToggleUpvote(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(true)

	th, _ := svc.Add(ctx, "r1", alice)
	ts := th.Created
	if _, err := svc.Edit(ctx, "r1", ts, "", "hi", alice); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	no := false
	th, err := svc.ToggleUpvote(ctx, "r1", ts, "", &no, bob)
	if err != nil {
		t.Fatalf("ToggleUpvote: %v", err)
	}
	if th.Comments[0].Upvotes != 1 || !th.Comments[0].Upvoted {
		t.Fatalf("expected upvote recorded %+v", th.Comments[0])
	}
	log, _ := storedLog(t, repo)
	if len(log[0].Upvoters) != 1 || log[0].Upvoters[0] != "b@x.com" {
		t.Fatalf("unexpected stored upvoters %v", log[0].Upvoters)
	}

	// derived from stored state when the flag is omitted
	th, err = svc.ToggleUpvote(ctx, "r1", ts, "", nil, bob)
	if err != nil {
		t.Fatalf("ToggleUpvote: %v", err)
	}
	if th.Comments[0].Upvotes != 0 {
		t.Fatalf("expected upvote removed %+v", th.Comments[0])
	}

	if _, err := svc.ToggleUpvote(ctx, "r1", "missing", "", nil, bob); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUnknownRecord(t *testing.T) {
	svc, _ := newService(true)
	if _, err := svc.List(context.Background(), "nope", alice); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.List(context.Background(), " ", alice); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestOrganizationAuthor(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(true)
	org := identity.Principal{Kind: identity.KindOrganization, ID: "7", Name: "Acme"}

	th, err := svc.Add(ctx, "r1", org)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if th.Comments[0].Author.Name != "Acme" || th.Comments[0].Author.Email == "" {
		t.Fatalf("unexpected organization author %+v", th.Comments[0].Author)
	}
	if _, err := svc.Edit(ctx, "r1", th.Created, "", "from org", org); err != nil {
		t.Fatalf("organization could not edit its comment: %v", err)
	}
}

func TestMalformedStoredLog(t *testing.T) {
	svc, repo := newService(true)
	bad := "[{"
	repo.PutRecord(model.Record{ID: "r1", ModelID: "article", CommentLog: &bad})

	if _, err := svc.List(context.Background(), "r1", alice); !errors.Is(err, codec.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestConcurrentAddsKeepEveryComment(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(true)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Add(ctx, "r1", alice); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Add: %v", err)
	}

	log, ok := storedLog(t, repo)
	if !ok || len(log) != n {
		t.Fatalf("expected %d stored comments, got %d", n, len(log))
	}
}

func TestStripeIsStable(t *testing.T) {
	for _, id := range []string{"r1", "r2", "some-long-record-id"} {
		a, b := stripe(id), stripe(id)
		if a != b || a >= lockStripes {
			t.Fatalf("stripe(%q) = %d, %d", id, a, b)
		}
	}
}

func TestEditAcceptsLongText(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(true)

	th, err := svc.Add(ctx, "r1", alice)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	long := strings.Repeat("a", 20000)
	th, err = svc.Edit(ctx, "r1", th.Created, "", long, alice)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if th.Comments[0].Text != long {
		t.Fatalf("text truncated")
	}
}
