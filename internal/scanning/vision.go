package scanning

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

const documentTextDetection = "DOCUMENT_TEXT_DETECTION"

// Vision implements the Recognizer interface using Google Cloud Vision
type Vision struct {
	service *vision.Service
	timeout time.Duration
}

// VisionOptions builds client options from an API key or a service account
// credentials file. The key wins when both are set.
func VisionOptions(apiKey, credentialsFile string) ([]option.ClientOption, error) {
	switch {
	case apiKey != "":
		return []option.ClientOption{option.WithAPIKey(apiKey)}, nil
	case credentialsFile != "":
		return []option.ClientOption{option.WithCredentialsFile(credentialsFile)}, nil
	default:
		return nil, fmt.Errorf("vision api key or credentials file is required")
	}
}

// NewVision creates a new Vision Recognizer instance
func NewVision(ctx context.Context, opts ...option.ClientOption) (*Vision, error) {
	service, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating vision client: %w", err)
	}

	return &Vision{
		service: service,
		timeout: 30 * time.Second,
	}, nil
}

// RecognizeText runs document text detection on a single image
func (v *Vision) RecognizeText(ctx context.Context, imageData []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	data, err := prepareImageData(imageData, contentType)
	if err != nil {
		return "", err
	}

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{
			{
				Image: &vision.Image{Content: base64.StdEncoding.EncodeToString(data)},
				Features: []*vision.Feature{
					{Type: documentTextDetection, MaxResults: 1},
				},
			},
		},
	}

	resp, err := v.service.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("calling vision API: %w", err)
	}
	if len(resp.Responses) == 0 {
		return "", ErrNoText
	}

	annotated := resp.Responses[0]
	if annotated.Error != nil && annotated.Error.Message != "" {
		return "", fmt.Errorf("vision API error (code %d): %s", annotated.Error.Code, annotated.Error.Message)
	}

	var text string
	if len(annotated.TextAnnotations) > 0 {
		text = annotated.TextAnnotations[0].Description
	} else if annotated.FullTextAnnotation != nil {
		text = annotated.FullTextAnnotation.Text
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// Close is a no-op; the REST client holds no resources
func (v *Vision) Close() error {
	return nil
}
