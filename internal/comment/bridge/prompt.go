package bridge

import (
	"fmt"
	"strings"

	"github.com/marcelofinamorvieira/record-comments/internal/comment/model"
)

const (
	ActionCancel         = "cancel"
	ActionGoToModelEdit  = "goToModelEdit"
	promptTitle          = "Comment log field missing"
	promptMessageFormat  = "To store comments, add a JSON field with the API key %q to this model."
	defaultModelEditPath = "/schema/item_types/%s"
)

// ModelPrompt is the blocking dialog the host shows instead of adding a
// comment. Choosing goToModelEdit takes the operator to ModelEditURL.
type ModelPrompt struct {
	Title        string   `json:"title"`
	Message      string   `json:"message"`
	Actions      []string `json:"actions"`
	ModelID      string   `json:"model_id"`
	ModelEditURL string   `json:"model_edit_url"`
}

func (b *Bridge) Prompt(modelID string) ModelPrompt {
	tmpl := b.modelEditURL
	if tmpl == "" {
		tmpl = defaultModelEditPath
	}

	var url string
	if strings.Contains(tmpl, "%s") {
		url = fmt.Sprintf(tmpl, modelID)
	} else {
		url = strings.TrimRight(tmpl, "/") + "/" + modelID
	}

	return ModelPrompt{
		Title:        promptTitle,
		Message:      fmt.Sprintf(promptMessageFormat, model.CommentLogAPIKey),
		Actions:      []string{ActionCancel, ActionGoToModelEdit},
		ModelID:      modelID,
		ModelEditURL: url,
	}
}

// FieldMissingError carries the prompt back to the caller that tried to add
// a comment.
type FieldMissingError struct {
	Prompt ModelPrompt
}

func (e *FieldMissingError) Error() string {
	return fmt.Sprintf("model %s has no comment_log field", e.Prompt.ModelID)
}

func (e *FieldMissingError) Unwrap() error {
	return ErrPersistenceDisabled
}
