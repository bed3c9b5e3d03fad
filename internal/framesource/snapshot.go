package framesource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/models"
)

// maxSnapshotSize bounds a single fetched image.
const maxSnapshotSize = 16 << 20

// SnapshotOpener opens live cameras that serve a still image per request,
// which is how most IP cameras expose a JPEG endpoint.
type SnapshotOpener struct {
	client *http.Client
}

func NewSnapshotOpener(timeout time.Duration) *SnapshotOpener {
	return &SnapshotOpener{client: &http.Client{Timeout: timeout}}
}

// Open fetches one image to make sure the camera answers; that image becomes
// the first frame of the stream.
func (o *SnapshotOpener) Open(ctx context.Context, descriptor string) (Stream, error) {
	s := &snapshotStream{url: descriptor, client: o.client}

	first, err := s.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", descriptor, err)
	}
	s.pending = &first
	return s, nil
}

type snapshotStream struct {
	url     string
	client  *http.Client
	pending *models.Frame
	index   int
}

func (s *snapshotStream) Next(ctx context.Context) (models.Frame, error) {
	if s.pending != nil {
		f := *s.pending
		s.pending = nil
		return f, nil
	}
	return s.fetch(ctx)
}

func (s *snapshotStream) fetch(ctx context.Context) (models.Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return models.Frame{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return models.Frame{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Frame{}, fmt.Errorf("bad status: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotSize))
	if err != nil {
		return models.Frame{}, fmt.Errorf("read snapshot: %w", err)
	}
	if len(data) == 0 {
		return models.Frame{}, fmt.Errorf("empty snapshot")
	}

	frame := models.Frame{Index: s.index, Data: data, CapturedAt: time.Now().UTC()}
	s.index++
	return frame, nil
}

func (s *snapshotStream) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *snapshotStream) Reconnectable() bool {
	return true
}
