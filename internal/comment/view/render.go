package view

import (
	"crypto/md5"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marcelofinamorvieira/record-comments/internal/comment/identity"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/model"
)

var ErrBlankText = errors.New("comment text is blank")

const (
	ActionUpvote = "upvote"
	ActionEdit   = "edit"
	ActionDelete = "delete"
	ActionReply  = "reply"
)

// Node is a comment as presented to the acting user.
type Node struct {
	Timestamp       string       `json:"timestamp"`
	ParentTimestamp string       `json:"parent_timestamp,omitempty"`
	Text            string       `json:"text"`
	Author          model.Author `json:"author"`
	AvatarURL       string       `json:"avatar_url"`
	CreatedAt       time.Time    `json:"created_at,omitzero"`
	Upvotes         int          `json:"upvotes"`
	Upvoted         bool         `json:"upvoted"`
	Editing         bool         `json:"editing"`
	Actions         []string     `json:"actions"`
	Replies         []Node       `json:"replies,omitempty"`
}

func Render(log model.Log, who identity.Identity) []Node {
	out := make([]Node, 0, len(log))
	for _, n := range log {
		out = append(out, render(n, who))
	}
	return out
}

func render(n model.CommentNode, who identity.Identity) Node {
	v := Node{
		Timestamp:       n.Timestamp,
		ParentTimestamp: n.ParentTimestamp,
		Text:            n.Text,
		Author:          n.Author,
		AvatarURL:       AvatarURL(n.Author.Email),
		CreatedAt:       createdAt(n.Timestamp),
		Upvotes:         len(n.Upvoters),
		Upvoted:         n.UpvotedBy(who.ContactKey),
		Editing:         n.Text == "",
		Actions:         Actions(n, who),
	}

	if !n.IsReply() {
		v.Replies = make([]Node, 0, len(n.Replies))
		for _, r := range n.Replies {
			v.Replies = append(v.Replies, render(r, who))
		}
	}
	return v
}

// Actions lists what who may do with n. Upvoting is open to everyone, edit
// and delete to the author, and only top-level comments take replies.
func Actions(n model.CommentNode, who identity.Identity) []string {
	actions := []string{ActionUpvote}
	if IsAuthor(n, who) {
		actions = append(actions, ActionEdit, ActionDelete)
	}
	if !n.IsReply() {
		actions = append(actions, ActionReply)
	}
	return actions
}

// AvatarURL is the Gravatar image for email, falling back to the
// mystery-person silhouette.
func AvatarURL(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%x?d=mp", sum)
}

// createdAt parses a comment timestamp; unparsable keys give the zero time.
func createdAt(ts string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func IsAuthor(n model.CommentNode, who identity.Identity) bool {
	return who.ContactKey != "" && n.Author.Email == who.ContactKey
}

// ValidateEditText rejects committing an edit with blank text; the comment
// stays in editing state.
func ValidateEditText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrBlankText
	}
	return nil
}
