package model

import "encoding/json"

// CommentLogAPIKey is the reserved api key of the record field holding the
// serialized comment tree.
const (
	CommentLogAPIKey = "comment_log"
	FieldTypeJSON    = "json"
)

type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CommentNode is either a top-level comment (Replies set, no ParentTimestamp)
// or a reply (ParentTimestamp set, no Replies). Timestamp is the node's key.
type CommentNode struct {
	Timestamp       string        `json:"timestamp"`
	Text            string        `json:"text"`
	Author          Author        `json:"author"`
	Upvoters        []string      `json:"upvoters"`
	Replies         []CommentNode `json:"replies,omitempty"`
	ParentTimestamp string        `json:"parentTimestamp,omitempty"`
}

func (n CommentNode) IsReply() bool {
	return n.ParentTimestamp != ""
}

func (n CommentNode) UpvotedBy(email string) bool {
	for _, e := range n.Upvoters {
		if e == email {
			return true
		}
	}
	return false
}

// Log is the ordered list of top-level comments of one record.
type Log []CommentNode

func (l Log) Empty() bool {
	return len(l) == 0
}

type wireNode struct {
	Timestamp       string         `json:"timestamp"`
	Text            string         `json:"text"`
	Author          Author         `json:"author"`
	Upvoters        []string       `json:"upvoters"`
	Replies         *[]CommentNode `json:"replies,omitempty"`
	ParentTimestamp string         `json:"parentTimestamp,omitempty"`
}

// MarshalJSON always writes "replies" for top-level nodes, even when empty,
// and never for replies.
func (n CommentNode) MarshalJSON() ([]byte, error) {
	w := wireNode{
		Timestamp:       n.Timestamp,
		Text:            n.Text,
		Author:          n.Author,
		Upvoters:        n.Upvoters,
		ParentTimestamp: n.ParentTimestamp,
	}
	if w.Upvoters == nil {
		w.Upvoters = []string{}
	}
	if !n.IsReply() {
		replies := n.Replies
		if replies == nil {
			replies = []CommentNode{}
		}
		w.Replies = &replies
	}
	return json.Marshal(w)
}

// readNode accepts both the current keys and the ones written by earlier
// versions of the plugin (dateISO, comment, usersWhoUpvoted, parentCommentISO).
type readNode struct {
	Timestamp       string        `json:"timestamp"`
	Text            *string       `json:"text"`
	Author          Author        `json:"author"`
	Upvoters        []string      `json:"upvoters"`
	Replies         []CommentNode `json:"replies"`
	ParentTimestamp string        `json:"parentTimestamp"`

	DateISO          string   `json:"dateISO"`
	Comment          string   `json:"comment"`
	UsersWhoUpvoted  []string `json:"usersWhoUpvoted"`
	ParentCommentISO string   `json:"parentCommentISO"`
}

func (n *CommentNode) UnmarshalJSON(data []byte) error {
	var r readNode
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}

	*n = CommentNode{
		Timestamp:       r.Timestamp,
		Author:          r.Author,
		Upvoters:        r.Upvoters,
		Replies:         r.Replies,
		ParentTimestamp: r.ParentTimestamp,
	}
	if n.Timestamp == "" {
		n.Timestamp = r.DateISO
	}
	if r.Text != nil {
		n.Text = *r.Text
	} else {
		n.Text = r.Comment
	}
	if n.Upvoters == nil {
		n.Upvoters = r.UsersWhoUpvoted
	}
	if n.ParentTimestamp == "" {
		n.ParentTimestamp = r.ParentCommentISO
	}
	return nil
}
