package storage

import (
	"strings"

	"github.com/google/uuid"
)

// SecureName returns "<random uuid>.<ext>". Nothing from the client, the clock
// or a counter goes into the name.
func SecureName(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	return uuid.New().String() + "." + ext
}
