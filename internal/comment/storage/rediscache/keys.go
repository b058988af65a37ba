package rediscache

import "fmt"

const FIELDS_KEY = "record-comments:fields:%s" // <modelID>

func FieldsKey(modelID string) string {
	return fmt.Sprintf(FIELDS_KEY, modelID)
}
