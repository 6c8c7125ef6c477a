package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGalleryFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     Identity
		wantErr  bool
	}{
		{name: "plain", filename: "1.Alice.jpg", want: Identity{ID: 1, DisplayName: "Alice"}},
		{name: "with directory", filename: "students/2.Bob.png", want: Identity{ID: 2, DisplayName: "Bob"}},
		{name: "extra sample segment", filename: "1.Alice.2.jpg", want: Identity{ID: 1, DisplayName: "Alice"}},
		{name: "non numeric id", filename: "abc.Name.jpg", wantErr: true},
		{name: "missing name", filename: "3.jpg", wantErr: true},
		{name: "empty name", filename: "3..jpg", wantErr: true},
		{name: "no extension", filename: "Alice", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseGalleryFilename(tt.filename)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformedGalleryName))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGalleryFilenameRoundTrip(t *testing.T) {
	identity := Identity{ID: 7, DisplayName: "Vy"}

	assert.Equal(t, "7.Vy.jpg", GalleryFilename(identity, 1, ".jpg"))
	assert.Equal(t, "7.Vy.3.jpg", GalleryFilename(identity, 3, "jpg"))

	for _, sample := range []int{1, 2, 5} {
		parsed, err := ParseGalleryFilename(GalleryFilename(identity, sample, "jpg"))
		require.NoError(t, err)
		assert.Equal(t, identity, parsed)
	}
}

func TestLabelTableIdentitiesOrdered(t *testing.T) {
	table := LabelTable{
		10: {ID: 10, DisplayName: "Ten"},
		2:  {ID: 2, DisplayName: "Two"},
		1:  {ID: 1, DisplayName: "One"},
	}

	ids := []int{}
	for _, identity := range table.Identities() {
		ids = append(ids, identity.ID)
	}
	assert.Equal(t, []int{1, 2, 10}, ids)

	_, ok := table.Lookup(3)
	assert.False(t, ok)
}
