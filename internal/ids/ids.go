package ids

import "github.com/segmentio/ksuid"

// New returns a new K-sortable identifier in its 27-character string form.
func New() string {
	return ksuid.New().String()
}
