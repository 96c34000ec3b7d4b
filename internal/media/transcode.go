package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// Transcoder converts audio bytes between encodings.
type Transcoder interface {
	Transcode(ctx context.Context, data []byte, srcExt, dstExt string) ([]byte, error)
}

// FFmpegTranscoder shells out to ffmpeg through uniquely named temp files.
// Concurrent calls never collide and both files are removed on every path.
type FFmpegTranscoder struct {
	ffmpegPath string
	tmpDir     string
}

// NewFFmpegTranscoder creates a transcoder. An empty ffmpegPath resolves
// "ffmpeg" from PATH; an empty tmpDir uses the system temp directory.
func NewFFmpegTranscoder(ffmpegPath, tmpDir string) *FFmpegTranscoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	return &FFmpegTranscoder{ffmpegPath: ffmpegPath, tmpDir: tmpDir}
}

// Transcode converts data from srcExt to dstExt (e.g. "ogg" to "mp3").
func (t *FFmpegTranscoder) Transcode(ctx context.Context, data []byte, srcExt, dstExt string) ([]byte, error) {
	id := uuid.NewString()
	src := filepath.Join(t.tmpDir, fmt.Sprintf("in-%s.%s", id, srcExt))
	dst := filepath.Join(t.tmpDir, fmt.Sprintf("out-%s.%s", id, dstExt))
	defer os.Remove(src)
	defer os.Remove(dst)

	if err := os.WriteFile(src, data, 0o600); err != nil {
		return nil, fmt.Errorf("write temp input: %w", err)
	}

	cmd := exec.CommandContext(ctx, t.ffmpegPath, "-y", "-i", src, "-f", dstExt, dst)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, out)
	}

	converted, err := os.ReadFile(dst)
	if err != nil {
		return nil, fmt.Errorf("read temp output: %w", err)
	}
	return converted, nil
}
