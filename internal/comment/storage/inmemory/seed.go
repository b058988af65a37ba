package inmemory

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/marcelofinamorvieira/record-comments/internal/comment/model"
)

// Seed is the JSON document accepted by LoadSeed.
type Seed struct {
	Fields  []model.Field  `json:"fields"`
	Records []model.Record `json:"records"`
}

func (r *Repo) LoadSeed(src io.Reader) error {
	var seed Seed
	if err := json.NewDecoder(src).Decode(&seed); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}
	for _, f := range seed.Fields {
		r.PutField(f)
	}
	for _, rec := range seed.Records {
		r.PutRecord(rec)
	}
	return nil
}
