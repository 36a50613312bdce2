package assets

import (
	"fmt"
	"path/filepath"
	"strings"
)

// tempPrefix marks in-flight writes in a disk store. Ids never start with it.
const tempPrefix = ".picdrop-upload-"

// ValidateID rejects ids that could resolve outside the backing location.
// It runs before any storage call made on behalf of a client.
func ValidateID(id string) error {
	switch {
	case id == "", id == ".", id == "..":
		return fmt.Errorf("%w: %q", ErrPathTraversal, id)
	case strings.ContainsAny(id, "/\\\x00"):
		return fmt.Errorf("%w: %q", ErrPathTraversal, id)
	case strings.HasPrefix(id, tempPrefix):
		return fmt.Errorf("%w: %q", ErrPathTraversal, id)
	case !filepath.IsLocal(id):
		return fmt.Errorf("%w: %q", ErrPathTraversal, id)
	}
	return nil
}
