package helper

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// NewID returns a random UUID string, used for session identifiers.
func NewID() string {
	return uuid.NewString()
}

// PrettyPrint dumps a value as indented JSON to stdout, for the one-shot CLI
// output of answers and their sources.
func PrettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("pretty print failed")
		return
	}
	fmt.Println(string(b))
}
