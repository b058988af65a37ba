package model

// Record is a host content record. CommentLog is nil when the field is null.
type Record struct {
	ID         string  `json:"id"`
	ModelID    string  `json:"model_id"`
	CommentLog *string `json:"comment_log"`
}

// Field describes one field of a host record type (model).
type Field struct {
	ID      string `json:"id"`
	ModelID string `json:"model_id"`
	APIKey  string `json:"api_key"`
	Type    string `json:"field_type"`
}

func (f Field) IsCommentLog() bool {
	return f.APIKey == CommentLogAPIKey && f.Type == FieldTypeJSON
}
