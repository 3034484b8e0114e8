package mirror

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/picpilot/picpilot/internal/config"
	"github.com/picpilot/picpilot/internal/cryptoutil"
)

const uploadParallelism = 4

// Mirror keeps a best-effort off-host copy of backup directories in object
// storage. A nil *Mirror is valid and does nothing.
type Mirror struct {
	client *minio.Client
	bucket string
	prefix string
	key    []byte
	log    zerolog.Logger
}

// FromConfig builds a Mirror, or nil when mirroring is disabled.
func FromConfig(cfg config.MirrorConfig, log zerolog.Logger) (*Mirror, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("mirror endpoint and bucket are required")
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.TLSInsecureSkip {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: transport,
		BucketLookup: func() minio.BucketLookupType {
			if cfg.ForcePathStyle {
				return minio.BucketLookupPath
			}
			return minio.BucketLookupDNS
		}(),
	})
	if err != nil {
		return nil, err
	}
	m := &Mirror{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, log: log}
	if cfg.EncryptionKey != "" {
		key, err := cryptoutil.ParseKey(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("mirror encryption key: %w", err)
		}
		m.key = key
	}
	return m, nil
}

func (m *Mirror) objectKey(kind string, id int64, name string) string {
	parts := []string{}
	if m.prefix != "" {
		parts = append(parts, strings.Trim(m.prefix, "/"))
	}
	parts = append(parts, kind, strconv.FormatInt(id, 10))
	if name != "" {
		parts = append(parts, name)
	}
	return path.Join(parts...)
}

// Upload copies every file in dir to the bucket. Callers treat failures as
// non-fatal: the local backup is already durable.
func (m *Mirror) Upload(ctx context.Context, kind string, id int64, dir string) error {
	if m == nil {
		return nil
	}
	items, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(uploadParallelism)
	for _, item := range items {
		if item.IsDir() {
			continue
		}
		name := item.Name()
		eg.Go(func() error {
			return m.putFile(egCtx, filepath.Join(dir, name), m.objectKey(kind, id, name))
		})
	}
	return eg.Wait()
}

func (m *Mirror) putFile(ctx context.Context, src, key string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	var reader io.Reader = f
	size := info.Size()
	if m.key != nil {
		reader, err = cryptoutil.EncryptReader(f, m.key)
		if err != nil {
			return err
		}
		size, err = cryptoutil.EncryptedSize(info.Size())
		if err != nil {
			return err
		}
	}
	_, err = m.client.PutObject(ctx, m.bucket, key, reader, size, minio.PutObjectOptions{
		UserMetadata: map[string]string{"picpilot-backup": "true"},
	})
	return err
}

// Remove deletes every mirrored object for (kind, id).
func (m *Mirror) Remove(ctx context.Context, kind string, id int64) error {
	if m == nil {
		return nil
	}
	prefix := m.objectKey(kind, id, "") + "/"
	ch := m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
	var firstErr error
	for obj := range ch {
		if obj.Err != nil {
			return obj.Err
		}
		if err := m.client.RemoveObject(ctx, m.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
