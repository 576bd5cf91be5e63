package minio

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
)

func TestStorage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	defer container.Terminate(ctx)

	endpoint, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	s, err := NewStorage(StorageConfig{
		Endpoint:       endpoint,
		AccessKey:      "minioadmin",
		SecretKey:      "minioadmin",
		UploadBucket:   "uploads",
		DocumentBucket: "documents",
	})
	require.NoError(t, err)
	require.NoError(t, s.EnsureBuckets(ctx))
	require.NoError(t, s.EnsureBuckets(ctx))

	video := []byte("not really a video")
	_, err = s.client.PutObject(ctx, "uploads", "user-1/talk.mp4", bytes.NewReader(video), int64(len(video)), miniogo.PutObjectOptions{})
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "input.mp4")
	require.NoError(t, s.DownloadVideo(ctx, "user-1/talk.mp4", dest))
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, video, got)

	assert.Error(t, s.DownloadVideo(ctx, "user-1/missing.mp4", filepath.Join(t.TempDir(), "x.mp4")))

	doc := []byte("%PDF-1.3 fake")
	require.NoError(t, s.UploadDocument(ctx, "user-1/slides_1.pdf", bytes.NewReader(doc), int64(len(doc))))
	zipped := []byte("PK fake")
	require.NoError(t, s.UploadArchive(ctx, "user-1/slides_1.zip", bytes.NewReader(zipped), int64(len(zipped))))

	for key, want := range map[string]string{
		"user-1/slides_1.pdf": "application/pdf",
		"user-1/slides_1.zip": "application/zip",
	} {
		obj, err := s.client.GetObject(ctx, "documents", key, miniogo.GetObjectOptions{})
		require.NoError(t, err)
		info, err := obj.Stat()
		require.NoError(t, err)
		assert.Equal(t, want, info.ContentType, key)
		_, err = io.Copy(io.Discard, obj)
		require.NoError(t, err)
		obj.Close()
	}
}
