//go:build integration
// +build integration

package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startMinio runs a throwaway MinIO container and returns its host:port.
// The image tag can be overridden with PICDROP_MINIO_TEST_TAG.
func startMinio(t *testing.T) string {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("could not connect to docker: %v", err)
	}

	tag := os.Getenv("PICDROP_MINIO_TEST_TAG")
	if tag == "" {
		tag = "RELEASE.2024-01-31T20-20-33Z"
	}
	res, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "minio/minio",
		Tag:        tag,
		Cmd:        []string{"server", "/data"},
		Env: []string{
			"MINIO_ROOT_USER=minio",
			"MINIO_ROOT_PASSWORD=minio123",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
	})
	require.NoError(t, err, "could not start minio")
	t.Cleanup(func() { _ = pool.Purge(res) })

	endpoint := "localhost:" + res.GetPort("9000/tcp")
	err = pool.Retry(func() error {
		resp, err := http.Get("http://" + endpoint + "/minio/health/live")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("minio not ready: %d", resp.StatusCode)
		}
		return nil
	})
	require.NoError(t, err, "minio not ready")
	return endpoint
}

func TestS3Store_Lifecycle(t *testing.T) {
	endpoint := startMinio(t)
	ctx := context.Background()

	s, err := NewS3Store(S3Config{
		Endpoint:  endpoint,
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "pictures",
	}, nil)
	require.NoError(t, err)

	// Bucket is created on first Initialize; the second is a no-op.
	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Initialize(ctx))

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = s.Put(ctx, nil, "pic.png")
	assert.ErrorIs(t, err, ErrNoPayload)

	a, err := s.Put(ctx, []byte("abc"), "pic.png")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(a.ID, ".png"))

	list, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, "/uploads/"+a.ID, list[0].URL)

	blob, err := s.Open(ctx, a.ID)
	require.NoError(t, err)
	body, err := io.ReadAll(blob.Body)
	_ = blob.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "abc", string(body))
	assert.Equal(t, "image/png", blob.ContentType)

	assert.ErrorIs(t, s.Delete(ctx, "../"+a.ID), ErrPathTraversal)
	require.NoError(t, s.Delete(ctx, a.ID))
	assert.ErrorIs(t, s.Delete(ctx, a.ID), ErrNotFound)

	_, err = s.Open(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
