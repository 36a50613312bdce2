package assets

import (
	"path"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Namer generates the storage id for a new upload.
type Namer interface {
	Name(originalName string) string
}

// TimestampNamer names assets "<unix millis><ext>". Two uploads with the same
// extension in the same millisecond get the same id and the later one wins.
type TimestampNamer struct {
	Now func() time.Time
}

func (n TimestampNamer) Name(originalName string) string {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	return strconv.FormatInt(now().UnixMilli(), 10) + Extension(originalName)
}

// UUIDNamer names assets "<random uuid><ext>".
type UUIDNamer struct{}

func (UUIDNamer) Name(originalName string) string {
	return uuid.NewString() + Extension(originalName)
}

// NamerFor maps a configured naming scheme to a Namer.
func NamerFor(scheme string) (Namer, bool) {
	switch scheme {
	case "", "timestamp":
		return TimestampNamer{}, true
	case "uuid":
		return UUIDNamer{}, true
	}
	return nil, false
}

// Extension returns the extension of the base of name including its leading
// dot. A base whose only dot is its first byte (".bashrc") has none, as does
// "..". Extensions carrying control characters are dropped.
func Extension(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "/" || base == "." || base == ".." {
		return ""
	}
	i := strings.LastIndexByte(base, '.')
	if i <= 0 {
		return ""
	}
	ext := base[i:]
	if strings.IndexFunc(ext, unicode.IsControl) >= 0 {
		return ""
	}
	return ext
}
