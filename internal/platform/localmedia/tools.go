package localmedia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/omniquery/omniquery-backend/internal/platform/logger"
)

// Tools is the glue around system binaries.
//
// REQUIRED BINARIES in the runtime:
// - ffprobe/ffmpeg for audio/video probing and frame extraction
// - pdftotext (poppler-utils) for PDF text extraction
// - libreoffice (soffice) for DOC/DOCX -> PDF
type Tools interface {
	ConvertOfficeToPDF(ctx context.Context, inputPath string, outDir string) (pdfPath string, err error)
	PDFText(ctx context.Context, pdfPath string) (string, error)

	ProbeVideo(ctx context.Context, videoPath string) (VideoProbe, error)
	ProbeAudio(ctx context.Context, audioPath string) (AudioProbe, error)
	ExtractFrame(ctx context.Context, videoPath string, atSeconds float64, outPath string) error
}

type VideoProbe struct {
	Duration   float64
	FPS        float64
	Width      int
	Height     int
	Resolution string
}

type AudioProbe struct {
	Duration   float64
	SampleRate int
	Channels   int
	Format     string
}

type tools struct {
	log *logger.Logger

	ffmpegPath    string
	ffprobePath   string
	pdftotextPath string
	sofficePath   string

	defaultTimeout time.Duration
}

func New(log *logger.Logger) Tools {
	return &tools{
		log:            log.With("service", "MediaTools"),
		ffmpegPath:     "ffmpeg",
		ffprobePath:    "ffprobe",
		pdftotextPath:  "pdftotext",
		sofficePath:    "soffice",
		defaultTimeout: 5 * time.Minute,
	}
}

// FrameTimestamps returns n evenly spaced sample points strictly inside
// (0, duration): duration/(n+1)*i for i in 1..n.
func FrameTimestamps(duration float64, n int) []float64 {
	if n <= 0 || duration <= 0 {
		return nil
	}
	interval := duration / float64(n+1)
	out := make([]float64, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, interval*float64(i))
	}
	return out
}

func (m *tools) ConvertOfficeToPDF(ctx context.Context, inputPath string, outDir string) (string, error) {
	if inputPath == "" {
		return "", fmt.Errorf("inputPath required")
	}
	if outDir == "" {
		return "", fmt.Errorf("outDir required")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir outDir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.defaultTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.sofficePath,
		"--headless",
		"--nologo",
		"--nolockcheck",
		"--norestore",
		"--convert-to", "pdf",
		"--outdir", outDir,
		inputPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("soffice convert failed: %w; out=%s", err, string(out))
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	pdfPath := filepath.Join(outDir, base+".pdf")
	if _, statErr := os.Stat(pdfPath); statErr != nil {
		return "", fmt.Errorf("pdf output not found at %s; soffice out=%s", pdfPath, string(out))
	}
	return pdfPath, nil
}

func (m *tools) PDFText(ctx context.Context, pdfPath string) (string, error) {
	if pdfPath == "" {
		return "", fmt.Errorf("pdfPath required")
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, m.pdftotextPath, "-layout", pdfPath, "-")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext failed: %w; out=%s", err, stderr.String())
	}
	return stdout.String(), nil
}

type ffprobeOutput struct {
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		RFrameRate string `json:"r_frame_rate"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

func (m *tools) probe(ctx context.Context, path string) (ffprobeOutput, error) {
	var out ffprobeOutput
	if path == "" {
		return out, fmt.Errorf("path required")
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, m.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return out, fmt.Errorf("ffprobe failed: %w; out=%s", err, stderr.String())
	}
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return out, fmt.Errorf("ffprobe decode: %w", err)
	}
	return out, nil
}

func (m *tools) ProbeVideo(ctx context.Context, videoPath string) (VideoProbe, error) {
	var vp VideoProbe
	raw, err := m.probe(ctx, videoPath)
	if err != nil {
		return vp, err
	}
	vp.Duration = parseFloat(raw.Format.Duration)
	for _, s := range raw.Streams {
		if s.CodecType != "video" {
			continue
		}
		vp.FPS = parseFrameRate(s.RFrameRate)
		vp.Width = s.Width
		vp.Height = s.Height
		if s.Width > 0 && s.Height > 0 {
			vp.Resolution = fmt.Sprintf("%dx%d", s.Width, s.Height)
		}
		break
	}
	return vp, nil
}

func (m *tools) ProbeAudio(ctx context.Context, audioPath string) (AudioProbe, error) {
	var ap AudioProbe
	raw, err := m.probe(ctx, audioPath)
	if err != nil {
		return ap, err
	}
	ap.Duration = parseFloat(raw.Format.Duration)
	ap.Format = raw.Format.FormatName
	for _, s := range raw.Streams {
		if s.CodecType != "audio" {
			continue
		}
		ap.SampleRate = int(parseFloat(s.SampleRate))
		ap.Channels = s.Channels
		break
	}
	return ap, nil
}

func (m *tools) ExtractFrame(ctx context.Context, videoPath string, atSeconds float64, outPath string) error {
	if videoPath == "" || outPath == "" {
		return fmt.Errorf("videoPath and outPath required")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("mkdir frame dir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.ffmpegPath,
		"-ss", strconv.FormatFloat(atSeconds, 'f', 3, 64),
		"-i", videoPath,
		"-vframes", "1",
		"-q:v", "2",
		"-y",
		outPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg frame extract failed: %w; out=%s", err, string(out))
	}
	if _, statErr := os.Stat(outPath); statErr != nil {
		return fmt.Errorf("frame not written: %w", statErr)
	}
	return nil
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// parseFrameRate handles ffprobe rational rates like "30000/1001".
func parseFrameRate(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if num, den, ok := strings.Cut(s, "/"); ok {
		n := parseFloat(num)
		d := parseFloat(den)
		if d == 0 {
			return 0
		}
		return n / d
	}
	return parseFloat(s)
}
