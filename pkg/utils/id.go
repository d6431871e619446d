package utils

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateID returns a prefixed, URL-safe unique identifier,
// e.g. "auction-5f3a...".
func GenerateID(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s-%s", prefix, id)
}
