package detector

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
	"strings"
	"time"

	"github.com/kozaktomas/face-signin/internal/facematch"
)

const defaultDetectorURL = "http://localhost:8000"

// ErrInvalidFace is returned when the service reports a face with an unusable bounding box.
var ErrInvalidFace = errors.New("detector returned invalid face")

// Client calls an InsightFace-style HTTP service that detects faces and computes embeddings.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new detector client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultDetectorURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// faceDetection represents a single detected face in the service response.
type faceDetection struct {
	FaceIndex int          `json:"face_index"`
	Dim       int          `json:"dim"`
	Embedding []float32    `json:"embedding"`
	BBox      []float64    `json:"bbox"`      // [x1, y1, x2, y2] in pixels
	Landmarks [][2]float64 `json:"landmarks"` // [[x, y], ...] in pixels, stable order
	DetScore  float64      `json:"det_score"`
}

// faceResponse represents the response from the face endpoint.
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Detect uploads the image to /embed/face and converts the answer.
func (c *Client) Detect(ctx context.Context, image []byte) facematch.DetectorOutput {
	body, err := c.postImage(ctx, "/embed/face", image)
	if err != nil {
		return facematch.DetectorOutput{Err: err}
	}

	var resp faceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return facematch.DetectorOutput{Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	faces, err := convertFaces(resp.Faces)
	if err != nil {
		return facematch.DetectorOutput{Err: err}
	}
	return facematch.DetectorOutput{Faces: faces}
}

// convertFaces turns pixel-space detections into box-relative landmarks and float64 vectors.
func convertFaces(detections []faceDetection) ([]facematch.DetectedFace, error) {
	faces := make([]facematch.DetectedFace, 0, len(detections))
	for _, d := range detections {
		box, ok := facematch.RectFromCorners(d.BBox)
		if !ok {
			return nil, fmt.Errorf("%w: face %d has bbox %v", ErrInvalidFace, d.FaceIndex, d.BBox)
		}

		face := facematch.DetectedFace{Box: box, Score: d.DetScore}
		if len(d.Landmarks) > 0 {
			face.Landmarks = make([]facematch.Point, len(d.Landmarks))
			for i, lm := range d.Landmarks {
				face.Landmarks[i] = box.Relative(facematch.Point{X: lm[0], Y: lm[1]})
			}
		}
		if len(d.Embedding) > 0 {
			face.Vector = make([]float64, len(d.Embedding))
			for i, v := range d.Embedding {
				face.Vector[i] = float64(v)
			}
		}
		faces = append(faces, face)
	}
	return faces, nil
}

// postImage sends the image as a multipart form with a sniffed Content-Type.
func (c *Client) postImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="capture.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// WebP: RIFF....WEBP
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
		return "image/webp"
	}
	return "application/octet-stream"
}
