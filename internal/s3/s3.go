package s3

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/framesource"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/models"
)

// maxFrameSize bounds a single frame object.
const maxFrameSize = 32 << 20

type Client struct {
	client *minio.Client
}

func NewMinioClient(endpoint, accessKey, secretKey string, secure bool) (*Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &Client{client: client}, nil
}

// Open implements framesource.Opener for descriptors of the form
// s3://bucket/prefix. Every object under the prefix is one frame; frames are
// served in key order and the stream ends after the last one.
func (c *Client) Open(ctx context.Context, descriptor string) (framesource.Stream, error) {
	bucket, prefix, err := parseDescriptor(descriptor)
	if err != nil {
		return nil, err
	}

	keys, err := c.listFrameKeys(ctx, bucket, prefix)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no frames under %s", descriptor)
	}

	return &frameStream{client: c.client, bucket: bucket, keys: keys}, nil
}

func (c *Client) listFrameKeys(ctx context.Context, bucket, prefix string) ([]string, error) {
	objectCh := c.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	var keys []string
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects: %w", object.Err)
		}

		// Пропускаем саму папку
		if strings.HasSuffix(object.Key, "/") {
			continue
		}
		keys = append(keys, object.Key)
	}

	sort.Strings(keys)
	return keys, nil
}

// parseDescriptor accepts s3://bucket/prefix.
func parseDescriptor(descriptor string) (bucket, prefix string, err error) {
	u, err := url.Parse(descriptor)
	if err != nil {
		return "", "", fmt.Errorf("parse source %q: %w", descriptor, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("not an s3 source: %q", descriptor)
	}

	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

type frameStream struct {
	client *minio.Client
	bucket string
	keys   []string
	next   int
}

func (s *frameStream) Next(ctx context.Context) (models.Frame, error) {
	if s.next >= len(s.keys) {
		return models.Frame{}, framesource.ErrEndOfStream
	}
	idx := s.next
	s.next++

	obj, err := s.client.GetObject(ctx, s.bucket, s.keys[idx], minio.GetObjectOptions{})
	if err != nil {
		return models.Frame{}, fmt.Errorf("get %s: %w", s.keys[idx], err)
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, maxFrameSize))
	if err != nil {
		return models.Frame{}, fmt.Errorf("read %s: %w", s.keys[idx], err)
	}

	return models.Frame{Index: idx, Data: data, CapturedAt: time.Now().UTC()}, nil
}

func (s *frameStream) Close() error {
	return nil
}

// Reconnectable is false: a recording is read once.
func (s *frameStream) Reconnectable() bool {
	return false
}
