package voice

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailtriage/pkg/logger"
)

// TranscriptSink writes each digest to a text file for an external speech
// engine to pick up.
type TranscriptSink struct {
	dir    string
	logger *zap.Logger
}

func NewTranscriptSink(dir string, l *zap.Logger) *TranscriptSink {
	if dir == "" {
		dir = os.TempDir()
	}
	return &TranscriptSink{dir: dir, logger: logger.OrNop(l)}
}

func (s *TranscriptSink) Speak(ctx context.Context, d Digest) error {
	_, err := s.Write(ctx, d)
	return err
}

// Write stores the digest and returns the file path.
func (s *TranscriptSink) Write(ctx context.Context, d Digest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create voice dir: %w", err)
	}

	name := fmt.Sprintf("voice_%s_%s.txt", d.Kind, uuid.NewString())
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, []byte(d.Text+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}

	logger.WithTrace(ctx, s.logger).Info("Voice transcript written",
		zap.String("kind", string(d.Kind)),
		zap.String("language", d.Language),
		zap.String("path", path),
	)
	return path, nil
}
