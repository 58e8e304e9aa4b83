package ingest

import (
	"github.com/go-playground/validator/v10"
)

var rawPostingValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate schema-checks a batch of raw postings. Invalid postings are
// dropped and counted; a bad posting never aborts the batch.
func Validate(postings []RawPosting) (valid []ValidatedPosting, dropped int) {
	for _, p := range postings {
		if err := rawPostingValidator.Struct(p); err != nil {
			dropped++
			continue
		}
		valid = append(valid, ValidatedPosting{RawPosting: p})
	}
	return valid, dropped
}
