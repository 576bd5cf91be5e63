package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/video2doc/video2doc-processing-service/internal/domain/entity"
)

func TestCreateArchive(t *testing.T) {
	frames := []entity.KeptFrame{
		{Ordinal: 1, Page: entity.PageImage{Data: []byte("png-1"), Format: "png"}},
		{Ordinal: 7, Page: entity.PageImage{Data: []byte("jpg-7"), Format: "jpeg"}},
	}

	var buf bytes.Buffer
	require.NoError(t, NewZipCreator().CreateArchive(context.Background(), frames, &buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)

	want := map[string]string{"slide_0001.png": "png-1", "slide_0007.jpg": "jpg-7"}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		assert.Equal(t, want[f.Name], string(data), f.Name)
	}
}

func TestCreateArchiveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frames := []entity.KeptFrame{{Ordinal: 1, Page: entity.PageImage{Data: []byte("x"), Format: "png"}}}
	err := NewZipCreator().CreateArchive(ctx, frames, io.Discard)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEntryName(t *testing.T) {
	assert.Equal(t, "slide_0042.gif", EntryName(entity.KeptFrame{Ordinal: 42, Page: entity.PageImage{Format: "gif"}}))
	assert.Equal(t, "slide_0003.img", EntryName(entity.KeptFrame{Ordinal: 3}))
}
