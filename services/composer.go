package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// MergeOptions bound each source clip and the output format when
// concatenating video contributions.
type MergeOptions struct {
	ClipSeconds int
	Resolution  string // 480p, 720p, 1080p
	FPS         int
}

// Composer is the external composition tool boundary: blocking, possibly
// slow, possibly failing. Callers bound every invocation with a context
// timeout.
type Composer interface {
	MergeVideos(ctx context.Context, inputs []string, outputPath string, opts MergeOptions) error
	CreateSlideshow(ctx context.Context, inputs []string, outputPath string) error
	ExtractThumbnail(ctx context.Context, videoPath, outputPath string) error
}

var resolutionMap = map[string]string{
	"480p":  "854x480",
	"720p":  "1280x720",
	"1080p": "1920x1080",
}

// FFmpegComposer drives the ffmpeg binary. Inputs and outputs are local
// paths under the uploads dir.
type FFmpegComposer struct {
	Binary string
}

func NewFFmpegComposer() *FFmpegComposer {
	binary := os.Getenv("FFMPEG_PATH")
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegComposer{Binary: binary}
}

// MergeVideos concatenates the inputs into one clip, scaling and padding
// each source to the target resolution.
func (f *FFmpegComposer) MergeVideos(ctx context.Context, inputs []string, outputPath string, opts MergeOptions) error {
	if opts.ClipSeconds <= 0 {
		opts.ClipSeconds = 5
	}
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	size, ok := resolutionMap[opts.Resolution]
	if !ok {
		size = resolutionMap["720p"]
	}

	listFile, err := writeConcatList(inputs)
	if err != nil {
		return err
	}
	defer os.Remove(listFile)

	filter := fmt.Sprintf(
		"[0:v]scale=%s:force_original_aspect_ratio=decrease,pad=%s:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%d[v]",
		size, size, opts.FPS,
	)
	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-filter_complex", filter,
		"-map", "[v]",
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-t", fmt.Sprintf("%d", opts.ClipSeconds*len(inputs)),
		"-y",
		outputPath,
	}
	return f.run(ctx, args)
}

// CreateSlideshow turns the photo inputs into a two-seconds-per-frame clip.
func (f *FFmpegComposer) CreateSlideshow(ctx context.Context, inputs []string, outputPath string) error {
	listFile, err := writeConcatList(inputs)
	if err != nil {
		return err
	}
	defer os.Remove(listFile)

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-vf", "fps=1/2,scale=1280:720:force_original_aspect_ratio=decrease,pad=1280:720:(ow-iw)/2:(oh-ih)/2",
		"-t", fmt.Sprintf("%d", len(inputs)*2),
		"-y",
		outputPath,
	}
	return f.run(ctx, args)
}

// ExtractThumbnail grabs a single frame one second in.
func (f *FFmpegComposer) ExtractThumbnail(ctx context.Context, videoPath, outputPath string) error {
	args := []string{
		"-i", videoPath,
		"-ss", "1",
		"-vframes", "1",
		"-q:v", "2",
		"-y",
		outputPath,
	}
	return f.run(ctx, args)
}

func (f *FFmpegComposer) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, f.Binary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg timed out: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, tail(string(out), 512))
	}
	return nil
}

// writeConcatList writes the ffmpeg concat demuxer input file. Local refs
// are resolved against the working directory, matching how upload paths are
// stored (leading slash, relative to the service root).
func writeConcatList(inputs []string) (string, error) {
	file, err := os.CreateTemp("", fmt.Sprintf("media_list_%d_*.txt", time.Now().UnixMilli()))
	if err != nil {
		return "", fmt.Errorf("failed to create concat list: %w", err)
	}
	defer file.Close()

	var b strings.Builder
	for _, input := range inputs {
		abs := strings.TrimPrefix(input, "/")
		if filepath.IsAbs(input) {
			abs = input
		}
		b.WriteString(fmt.Sprintf("file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`)))
	}
	if _, err := file.WriteString(b.String()); err != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("failed to write concat list: %w", err)
	}
	return file.Name(), nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
