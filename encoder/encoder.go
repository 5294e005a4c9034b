// Package encoder pipes presented frames to an ffmpeg process as raw RGBA
// video.
package encoder

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapio"
)

var (
	// ErrConfig is returned by New for an unusable Config.
	ErrConfig = errors.New("invalid encoder config")
	// ErrFrameSize is returned for a frame that does not match the stream.
	ErrFrameSize = errors.New("frame size does not match the stream")
	// ErrClosed is returned by WriteFrame after Close.
	ErrClosed = errors.New("encoder closed")
)

// Config describes the video an Encoder writes.
type Config struct {
	Output     string
	Width      int
	Height     int
	FPS        float64
	Codec      string // "h264" (default) or "hevc"
	FFmpegPath string // ffmpeg from PATH if empty
}

func (c Config) Validate() error {
	if c.Output == "" {
		return fmt.Errorf("%w: no output file", ErrConfig)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrConfig, c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("%w: fps %v", ErrConfig, c.FPS)
	}
	switch c.Codec {
	case "", "h264", "hevc":
	default:
		return fmt.Errorf("%w: codec %q", ErrConfig, c.Codec)
	}
	return nil
}

// Args returns the ffmpeg input and output arguments for c. The input is
// raw RGBA on stdin.
func Args(c Config) (inputArgs ffmpeg.KwArgs, outputArgs ffmpeg.KwArgs) {
	inputArgs = ffmpeg.KwArgs{
		"f":         "rawvideo",
		"pix_fmt":   "rgba",
		"s":         fmt.Sprintf("%dx%d", c.Width, c.Height),
		"framerate": strconv.FormatFloat(c.FPS, 'f', -1, 64),
	}
	outputArgs = ffmpeg.KwArgs{
		"pix_fmt": "yuv420p",
		"b:v":     "25M",
	}
	if c.Codec == "hevc" {
		outputArgs["c:v"] = "libx265"
		if strings.EqualFold(filepath.Ext(c.Output), ".mp4") {
			outputArgs["tag:v"] = "hvc1"
		}
	} else {
		outputArgs["c:v"] = "libx264"
	}
	return
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithLogger sets the logger. ffmpeg's own output goes to it at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Encoder) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Encoder feeds frames to one ffmpeg process. It is not safe for
// concurrent use.
type Encoder struct {
	cfg    Config
	logger *zap.Logger
	run    func(*exec.Cmd) error

	cmd    *exec.Cmd
	stderr *zapio.Writer
	pipe   *io.PipeWriter
	done   chan error

	buf    []byte
	frames int
	closed bool
}

// New validates cfg and starts ffmpeg.
func New(cfg Config, opts ...Option) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Encoder{
		cfg:    cfg,
		logger: zap.NewNop(),
		run:    (*exec.Cmd).Run,
		done:   make(chan error, 1),
	}
	for _, o := range opts {
		o(e)
	}
	e.start()
	return e, nil
}

func (e *Encoder) start() {
	pipeReader, pipeWriter := io.Pipe()
	inputArgs, outputArgs := Args(e.cfg)

	ffmpegCmd := ffmpeg.Input("pipe:", inputArgs).
		Output(e.cfg.Output, outputArgs).
		OverWriteOutput().WithInput(pipeReader)
	if e.cfg.FFmpegPath != "" {
		ffmpegCmd = ffmpegCmd.SetFfmpegPath(e.cfg.FFmpegPath)
	}

	e.cmd = ffmpegCmd.Compile()
	e.stderr = &zapio.Writer{Log: e.logger.With(zap.String("process", "ffmpeg")), Level: zap.DebugLevel}
	e.cmd.Stderr = e.stderr
	e.pipe = pipeWriter

	e.logger.Info("encoding video",
		zap.String("output", e.cfg.Output),
		zap.Int("width", e.cfg.Width),
		zap.Int("height", e.cfg.Height),
		zap.Float64("fps", e.cfg.FPS),
		zap.Strings("args", e.cmd.Args))

	go func() {
		err := e.run(e.cmd)
		// unblocks a pending WriteFrame if ffmpeg exits early
		if err != nil {
			pipeReader.CloseWithError(fmt.Errorf("ffmpeg exited: %w", err))
		} else {
			pipeReader.CloseWithError(errors.New("ffmpeg exited"))
		}
		e.done <- err
	}()
}

// WriteFrame encodes one frame. pix is RGBA floats, bottom row first, as
// graphics.Device.ReadPixels returns them.
func (e *Encoder) WriteFrame(pix []float32, width, height int) error {
	if e.closed {
		return ErrClosed
	}
	if width != e.cfg.Width || height != e.cfg.Height || len(pix) < width*height*4 {
		return fmt.Errorf("%w: %dx%d (%d values), stream is %dx%d",
			ErrFrameSize, width, height, len(pix), e.cfg.Width, e.cfg.Height)
	}
	e.buf = Pack(e.buf, pix, width, height)
	if _, err := e.pipe.Write(e.buf); err != nil {
		return fmt.Errorf("frame %d: %w", e.frames, err)
	}
	e.frames++
	return nil
}

// Frames returns the number of frames written.
func (e *Encoder) Frames() int { return e.frames }

// Close ends the stream and waits for ffmpeg to finish the file.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	_ = e.pipe.Close()
	err := <-e.done
	_ = e.stderr.Close()
	if err != nil {
		e.logger.Error("ffmpeg failed", zap.String("output", e.cfg.Output), zap.Error(err))
		return fmt.Errorf("encode %s: %w", e.cfg.Output, err)
	}
	e.logger.Info("video written", zap.String("output", e.cfg.Output), zap.Int("frames", e.frames))
	return nil
}

// Pack converts RGBA floats to 8-bit RGBA and flips rows from GL's
// bottom-up order to top-down. dst is reused when large enough.
func Pack(dst []byte, pix []float32, width, height int) []byte {
	n := width * height * 4
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	row := width * 4
	for y := 0; y < height; y++ {
		src := pix[(height-1-y)*row : (height-y)*row]
		out := dst[y*row : (y+1)*row]
		for i, v := range src {
			out[i] = byte(mgl32.Clamp(v, 0, 1)*255 + 0.5)
		}
	}
	return dst
}
