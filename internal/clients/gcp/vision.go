package gcp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/SAP-F-2025/practice-service/internal/practice"
)

var ErrNoImages = errors.New("no images to annotate")

type annotateFunc func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error)

// VisionExtractor reads handwritten or printed answers from photos.
type VisionExtractor struct {
	logger   *slog.Logger
	client   *vision.ImageAnnotatorClient
	annotate annotateFunc
	timeout  time.Duration
}

func NewVisionExtractor(ctx context.Context, logger *slog.Logger) (*VisionExtractor, error) {
	client, err := vision.NewImageAnnotatorClient(ctx, ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}

	return &VisionExtractor{
		logger: logger.With("client", "gcp.Vision"),
		client: client,
		annotate: func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
			return client.BatchAnnotateImages(ctx, req)
		},
		timeout: 60 * time.Second,
	}, nil
}

func (v *VisionExtractor) Close() error {
	if v == nil || v.client == nil {
		return nil
	}
	return v.client.Close()
}

// Extract runs document text detection over every image and joins the text, one image per line block.
func (v *VisionExtractor) Extract(ctx context.Context, images []practice.ImageInput) (string, error) {
	if len(images) == 0 {
		return "", ErrNoImages
	}

	reqs := make([]*visionpb.AnnotateImageRequest, 0, len(images))
	for i, img := range images {
		content, err := base64.StdEncoding.DecodeString(img.Base64)
		if err != nil {
			return "", fmt.Errorf("image %d: invalid base64: %w", i, err)
		}
		reqs = append(reqs, &visionpb.AnnotateImageRequest{
			Image: &visionpb.Image{Content: content},
			Features: []*visionpb.Feature{
				{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
			},
		})
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	resp, err := v.annotate(ctx, &visionpb.BatchAnnotateImagesRequest{Requests: reqs})
	if err != nil {
		return "", fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}

	text, err := textFromBatch(resp)
	if err != nil {
		return "", err
	}
	v.logger.Debug("Extracted answer text", "images", len(images), "chars", len(text))
	return text, nil
}

func textFromBatch(resp *visionpb.BatchAnnotateImagesResponse) (string, error) {
	if resp == nil {
		return "", nil
	}

	var blocks []string
	for _, r := range resp.Responses {
		if r == nil {
			continue
		}
		if r.Error != nil && r.Error.Message != "" {
			return "", fmt.Errorf("vision annotate error: %s", r.Error.Message)
		}
		if r.FullTextAnnotation == nil {
			continue
		}
		if text := strings.TrimSpace(r.FullTextAnnotation.Text); text != "" {
			blocks = append(blocks, text)
		}
	}
	return strings.Join(blocks, "\n"), nil
}
