// Package tree holds the comment mutation engine. Every function takes the
// current log and returns a new one; the input is never modified, and a
// missing target is reported through the boolean result instead of a panic.
package tree

import (
	"time"

	"github.com/marcelofinamorvieira/record-comments/internal/comment/model"
)

// TimestampLayout matches the ISO-8601 form browsers produce with toISOString.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Add prepends a new top-level comment in editing state (empty text).
func Add(log model.Log, author model.Author, timestamp string) model.Log {
	node := model.CommentNode{
		Timestamp: timestamp,
		Text:      "",
		Author:    author,
		Upvoters:  []string{},
		Replies:   []model.CommentNode{},
	}

	out := make(model.Log, 0, len(log)+1)
	out = append(out, node)
	return append(out, log...)
}

// Reply prepends a reply to the replies of parentTimestamp.
func Reply(log model.Log, parentTimestamp string, author model.Author, timestamp string) (model.Log, bool) {
	i := indexOf(log, parentTimestamp)
	if i < 0 {
		return log, false
	}

	reply := model.CommentNode{
		Timestamp:       timestamp,
		Text:            "",
		Author:          author,
		Upvoters:        []string{},
		ParentTimestamp: parentTimestamp,
	}

	out := clone(log)
	parent := out[i]
	replies := make([]model.CommentNode, 0, len(parent.Replies)+1)
	replies = append(replies, reply)
	parent.Replies = append(replies, parent.Replies...)
	out[i] = parent

	return out, true
}

// Edit overwrites the text of the target node. A non-empty parentTimestamp
// addresses a reply of that parent.
func Edit(log model.Log, timestamp, text, parentTimestamp string) (model.Log, bool) {
	return update(log, timestamp, parentTimestamp, func(n *model.CommentNode) {
		n.Text = text
	})
}

// Delete removes the target node. Deleting a top-level comment drops its
// replies with it.
func Delete(log model.Log, timestamp, parentTimestamp string) (model.Log, bool) {
	if parentTimestamp == "" {
		i := indexOf(log, timestamp)
		if i < 0 {
			return log, false
		}
		out := make(model.Log, 0, len(log)-1)
		out = append(out, log[:i]...)
		return append(out, log[i+1:]...), true
	}

	p := indexOf(log, parentTimestamp)
	if p < 0 {
		return log, false
	}
	r := indexOf(log[p].Replies, timestamp)
	if r < 0 {
		return log, false
	}

	out := clone(log)
	parent := out[p]
	replies := make([]model.CommentNode, 0, len(parent.Replies)-1)
	replies = append(replies, parent.Replies[:r]...)
	parent.Replies = append(replies, parent.Replies[r+1:]...)
	out[p] = parent

	return out, true
}

// ToggleUpvote removes email from the upvoters when alreadyUpvoted is set,
// otherwise appends it. An email is never recorded twice.
func ToggleUpvote(log model.Log, timestamp string, alreadyUpvoted bool, email, parentTimestamp string) (model.Log, bool) {
	return update(log, timestamp, parentTimestamp, func(n *model.CommentNode) {
		upvoters := make([]string, 0, len(n.Upvoters)+1)
		for _, e := range n.Upvoters {
			if alreadyUpvoted && e == email {
				continue
			}
			upvoters = append(upvoters, e)
		}
		if !alreadyUpvoted && !n.UpvotedBy(email) {
			upvoters = append(upvoters, email)
		}
		n.Upvoters = upvoters
	})
}

// Find looks up a node. Replies are only reachable through their parent.
func Find(log model.Log, timestamp, parentTimestamp string) (model.CommentNode, bool) {
	if parentTimestamp == "" {
		i := indexOf(log, timestamp)
		if i < 0 {
			return model.CommentNode{}, false
		}
		return log[i], true
	}

	p := indexOf(log, parentTimestamp)
	if p < 0 {
		return model.CommentNode{}, false
	}
	r := indexOf(log[p].Replies, timestamp)
	if r < 0 {
		return model.CommentNode{}, false
	}
	return log[p].Replies[r], true
}

// NewTimestamp formats now and moves it forward by a millisecond until it
// collides with no timestamp in the tree.
func NewTimestamp(log model.Log, now time.Time) string {
	used := make(map[string]struct{})
	for _, n := range log {
		used[n.Timestamp] = struct{}{}
		for _, r := range n.Replies {
			used[r.Timestamp] = struct{}{}
		}
	}

	t := now.UTC().Truncate(time.Millisecond)
	for {
		ts := t.Format(TimestampLayout)
		if _, ok := used[ts]; !ok {
			return ts
		}
		t = t.Add(time.Millisecond)
	}
}

func update(log model.Log, timestamp, parentTimestamp string, fn func(*model.CommentNode)) (model.Log, bool) {
	if parentTimestamp == "" {
		i := indexOf(log, timestamp)
		if i < 0 {
			return log, false
		}
		out := clone(log)
		fn(&out[i])
		return out, true
	}

	p := indexOf(log, parentTimestamp)
	if p < 0 {
		return log, false
	}
	r := indexOf(log[p].Replies, timestamp)
	if r < 0 {
		return log, false
	}

	out := clone(log)
	parent := out[p]
	parent.Replies = append([]model.CommentNode(nil), parent.Replies...)
	fn(&parent.Replies[r])
	out[p] = parent

	return out, true
}

func indexOf(nodes []model.CommentNode, timestamp string) int {
	if timestamp == "" {
		return -1
	}
	for i, n := range nodes {
		if n.Timestamp == timestamp {
			return i
		}
	}
	return -1
}

func clone(log model.Log) model.Log {
	return append(model.Log(nil), log...)
}
