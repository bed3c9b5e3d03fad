package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/samber/lo"

	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/geometry"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/models"
)

// ErrUnavailable wraps every failure to obtain detections for a frame.
var ErrUnavailable = errors.New("detector unavailable")

// Detection представляет структуру одного обнаруженного объекта
type Detection struct {
	TrackID *int64    `json:"track_id"`
	Class   string    `json:"class"`
	Score   float64   `json:"score"`
	Box     []float64 `json:"box"` // [x1, y1, x2, y2]
}

type trackResponse struct {
	Detections []Detection `json:"detections"`
}

// Client talks to the tracking service. The service keeps one tracking
// session per source id, so track ids are only stable within a source.
type Client struct {
	URL    string
	client *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{URL: baseURL, client: &http.Client{Timeout: timeout}}
}

// ForSource binds the client to one source.
func (c *Client) ForSource(sourceID string) *SourceDetector {
	return &SourceDetector{client: c, sourceID: sourceID}
}

// SourceDetector is a Client bound to a source id.
type SourceDetector struct {
	client   *Client
	sourceID string
}

func (d *SourceDetector) Detect(ctx context.Context, frame models.Frame) ([]models.Observation, error) {
	detections, err := d.client.SendFrame(ctx, frame.Data, d.sourceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return Observations(detections), nil
}

// SendFrame отправляет изображение JPEG байтами на /track
func (c *Client) SendFrame(ctx context.Context, imageData []byte, sourceID string) ([]Detection, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("source_id", sourceID); err != nil {
		return nil, fmt.Errorf("write source field: %w", err)
	}

	// Создаем form field с правильным Content-Type
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")

	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create form part: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+"/track", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bad status: %s, error: %s", resp.Status, bodyBytes)
	}

	var out trackResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return out.Detections, nil
}

// Observations keeps the tracked detections and reduces each box to its
// centre. Untracked or malformed boxes are dropped.
func Observations(detections []Detection) []models.Observation {
	tracked := lo.Filter(detections, func(d Detection, _ int) bool {
		return d.TrackID != nil && len(d.Box) == 4
	})

	return lo.Map(tracked, func(d Detection, _ int) models.Observation {
		return models.Observation{
			TrackID: *d.TrackID,
			Centroid: geometry.Point{
				X: (d.Box[0] + d.Box[2]) / 2,
				Y: (d.Box[1] + d.Box[3]) / 2,
			},
		}
	})
}
