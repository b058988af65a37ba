package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/marcelofinamorvieira/record-comments/internal/comment/model"
)

var ErrMalformed = errors.New("malformed comment log")

// Marshal renders the log as the JSON text stored in the comment_log field.
func Marshal(log model.Log) (string, error) {
	if log == nil {
		log = model.Log{}
	}
	b, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal comment log: %w", err)
	}
	return string(b), nil
}

// Unmarshal parses a stored comment_log value. Blank text is an empty log.
// Every node needs a timestamp that is unique across the whole tree.
func Unmarshal(text string) (model.Log, error) {
	if strings.TrimSpace(text) == "" || strings.TrimSpace(text) == "null" {
		return model.Log{}, nil
	}

	var log model.Log
	if err := json.Unmarshal([]byte(text), &log); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	seen := make(map[string]struct{})
	claim := func(ts string) error {
		if ts == "" {
			return fmt.Errorf("%w: comment without timestamp", ErrMalformed)
		}
		if _, dup := seen[ts]; dup {
			return fmt.Errorf("%w: duplicate timestamp %s", ErrMalformed, ts)
		}
		seen[ts] = struct{}{}
		return nil
	}

	for i := range log {
		normalize(&log[i])
		if log[i].IsReply() {
			return nil, fmt.Errorf("%w: top-level comment %s has a parent", ErrMalformed, log[i].Timestamp)
		}
		if err := claim(log[i].Timestamp); err != nil {
			return nil, err
		}
		if log[i].Replies == nil {
			log[i].Replies = []model.CommentNode{}
		}
		for j := range log[i].Replies {
			reply := &log[i].Replies[j]
			normalize(reply)
			if len(reply.Replies) > 0 {
				return nil, fmt.Errorf("%w: reply %s has replies", ErrMalformed, reply.Timestamp)
			}
			if err := claim(reply.Timestamp); err != nil {
				return nil, err
			}
			reply.Replies = nil
			// Nesting is authoritative; the back-reference follows it.
			reply.ParentTimestamp = log[i].Timestamp
		}
	}

	return log, nil
}

func normalize(n *model.CommentNode) {
	if n.Upvoters == nil {
		n.Upvoters = []string{}
	}
}
