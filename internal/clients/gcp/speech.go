package gcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/SAP-F-2025/practice-service/internal/practice"
)

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

type SpeechConfig struct {
	LanguageCode string
	Model        string
	MaxRetries   int
}

// SpeechTranscriber turns short recorded answers into text with synchronous recognition.
type SpeechTranscriber struct {
	logger    *slog.Logger
	client    *speech.Client
	recognize recognizeFunc
	cfg       SpeechConfig
	backoff   time.Duration
}

func NewSpeechTranscriber(ctx context.Context, cfg SpeechConfig, logger *slog.Logger) (*SpeechTranscriber, error) {
	client, err := speech.NewClient(ctx, ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}

	return &SpeechTranscriber{
		logger: logger.With("client", "gcp.Speech"),
		client: client,
		recognize: func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
			return client.Recognize(ctx, req)
		},
		cfg:     withSpeechDefaults(cfg),
		backoff: 750 * time.Millisecond,
	}, nil
}

func withSpeechDefaults(cfg SpeechConfig) SpeechConfig {
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return cfg
}

func (s *SpeechTranscriber) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *SpeechTranscriber) Transcribe(ctx context.Context, audio practice.Audio) (string, error) {
	if len(audio.Data) == 0 {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, 90*time.Second)
	defer cancel()

	enc, rate := inferSpeechEncoding(audio.MimeType)
	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   enc,
			SampleRateHertz:            rate,
			LanguageCode:               s.cfg.LanguageCode,
			Model:                      s.cfg.Model,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio.Data},
		},
	}

	resp, err := s.retry(ctx, func() (*speechpb.RecognizeResponse, error) {
		return s.recognize(ctx, req)
	})
	if err != nil {
		return "", fmt.Errorf("speech recognize: %w", err)
	}

	text := transcriptFromResponse(resp)
	s.logger.Debug("Transcribed answer audio", "bytes", len(audio.Data), "chars", len(text))
	return text, nil
}

func (s *SpeechTranscriber) retry(ctx context.Context, fn func() (*speechpb.RecognizeResponse, error)) (*speechpb.RecognizeResponse, error) {
	backoff := s.backoff
	var last error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		last = err

		if !retryable(err) || attempt == s.cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 10*time.Second {
			backoff = 10 * time.Second
		}
	}
	return nil, last
}

func retryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded:
		return true
	}
	return false
}

// inferSpeechEncoding maps recorder mime types. Opus containers need an explicit 48kHz rate.
func inferSpeechEncoding(mimeType string) (speechpb.RecognitionConfig_AudioEncoding, int32) {
	m := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.Contains(m, "webm"):
		return speechpb.RecognitionConfig_WEBM_OPUS, 48000
	case strings.Contains(m, "ogg") || strings.Contains(m, "opus"):
		return speechpb.RecognitionConfig_OGG_OPUS, 48000
	case strings.Contains(m, "wav"):
		return speechpb.RecognitionConfig_LINEAR16, 0
	case strings.Contains(m, "flac"):
		return speechpb.RecognitionConfig_FLAC, 0
	case strings.Contains(m, "mp3") || strings.Contains(m, "mpeg"):
		return speechpb.RecognitionConfig_MP3, 0
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, 0
	}
}

func transcriptFromResponse(resp *speechpb.RecognizeResponse) string {
	if resp == nil {
		return ""
	}
	var parts []string
	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		if t := strings.TrimSpace(r.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
