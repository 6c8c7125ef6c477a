package models

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ErrMalformedGalleryName is returned when a gallery filename does not follow
// the "<id>.<name>.<ext>" convention.
var ErrMalformedGalleryName = errors.New("malformed gallery filename")

// Identity is a registered person. Identities are unique by ID.
type Identity struct {
	ID          int    `json:"id"`
	DisplayName string `json:"display_name"`
}

func (i Identity) String() string {
	return fmt.Sprintf("%d.%s", i.ID, i.DisplayName)
}

// LabelTable maps classifier labels to identities. It is produced by a gallery
// load and is read-only once a classifier has been trained against it.
type LabelTable map[int]Identity

// Lookup returns the identity registered under id.
func (lt LabelTable) Lookup(id int) (Identity, bool) {
	identity, ok := lt[id]
	return identity, ok
}

// Identities returns the table contents ordered by ID.
func (lt LabelTable) Identities() []Identity {
	out := make([]Identity, 0, len(lt))
	for _, identity := range lt {
		out = append(out, identity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GalleryEntry is one labeled reference image on disk.
type GalleryEntry struct {
	Identity  Identity `json:"identity"`
	ImagePath string   `json:"image_path"`
}

// ParseGalleryFilename extracts the identity encoded in a gallery filename.
// Only the first two dot-separated segments are meaningful, so
// "1.Alice.2.jpg" is a second sample for identity 1.
func ParseGalleryFilename(filename string) (Identity, error) {
	base := filepath.Base(filename)
	parts := strings.Split(base, ".")
	if len(parts) < 3 {
		return Identity{}, fmt.Errorf("%w: %q needs <id>.<name>.<ext>", ErrMalformedGalleryName, base)
	}

	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %q id segment %q is not an integer", ErrMalformedGalleryName, base, parts[0])
	}

	name := strings.TrimSpace(parts[1])
	if name == "" {
		return Identity{}, fmt.Errorf("%w: %q has an empty name segment", ErrMalformedGalleryName, base)
	}

	return Identity{ID: id, DisplayName: name}, nil
}

// GalleryFilename builds the on-disk name for a sample. sample 0 and 1 both
// map to the plain "<id>.<name>.<ext>" form.
func GalleryFilename(identity Identity, sample int, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if sample <= 1 {
		return fmt.Sprintf("%d.%s.%s", identity.ID, identity.DisplayName, ext)
	}
	return fmt.Sprintf("%d.%s.%d.%s", identity.ID, identity.DisplayName, sample, ext)
}
