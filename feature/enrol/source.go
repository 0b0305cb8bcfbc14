package enrol

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"enrol-sync/core/storage"

	"github.com/minio/minio-go/v7"
)

// feedSource is a located feed: its identity for the skip decision and a way to read it.
type feedSource struct {
	Location string
	ModTime  int64
	Hash     string
	Size     int64
	open     func(ctx context.Context) (io.ReadCloser, error)
}

// Open starts a fresh read of the feed.
func (s *feedSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return s.open(ctx)
}

// locateFeed stats and hashes the feed at location. It returns nil without
// error when the feed does not exist.
func locateFeed(ctx context.Context, client storage.Client, location string) (*feedSource, error) {
	if location == "" {
		return nil, errors.New("no feed location configured")
	}
	if bucket, key, ok := storage.ParseURI(location); ok {
		return locateObject(ctx, client, location, bucket, key)
	}
	return locateFile(location)
}

func locateFile(path string) (*feedSource, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat feed: %w", err)
	}

	src := &feedSource{
		Location: path,
		ModTime:  info.ModTime().Unix(),
		Size:     info.Size(),
		open: func(context.Context) (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
	if src.Hash, err = hashOf(context.Background(), src); err != nil {
		return nil, err
	}
	return src, nil
}

func locateObject(ctx context.Context, client storage.Client, location, bucket, key string) (*feedSource, error) {
	if client == nil {
		return nil, fmt.Errorf("feed %s needs object storage, which is not configured", location)
	}

	info, err := client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat feed object: %w", err)
	}

	src := &feedSource{
		Location: location,
		ModTime:  info.LastModified.Unix(),
		Size:     info.Size,
		open: func(ctx context.Context) (io.ReadCloser, error) {
			return client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
		},
	}
	if src.Hash, err = hashOf(ctx, src); err != nil {
		return nil, err
	}
	return src, nil
}

// hashOf streams the feed through MD5.
func hashOf(ctx context.Context, src *feedSource) (string, error) {
	r, err := src.Open(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to open feed: %w", err)
	}
	defer r.Close()

	h := md5.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash feed: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
