package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	glfw "github.com/go-gl/glfw/v3.3/glfw"
	"github.com/richinsley/goshaderfx/config"
	"github.com/richinsley/goshaderfx/encoder"
	"github.com/richinsley/goshaderfx/glbackend"
	"github.com/richinsley/goshaderfx/glfwcontext"
	"github.com/richinsley/goshaderfx/graphics"
	"github.com/richinsley/goshaderfx/headless"
	"github.com/richinsley/goshaderfx/options"
	"github.com/richinsley/goshaderfx/renderer"
	"github.com/richinsley/goshaderfx/shader"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func init() {
	runtime.LockOSThread()
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return cfg.Build()
}

func loadProfile(opts *options.ShaderOptions) (config.Profile, error) {
	p := config.Default()
	if *opts.Config != "" {
		var err error
		if p, err = config.Load(*opts.Config); err != nil {
			return config.Profile{}, err
		}
	}
	opts.Apply(&p)
	return p, p.Validate()
}

func run(opts *options.ShaderOptions, logger *zap.Logger) error {
	profile, err := loadProfile(opts)
	if err != nil {
		return err
	}

	var ctx graphics.Context
	var window *glfwcontext.Context
	if *opts.Headless {
		hc, err := headless.New(profile.Pipeline.Width, profile.Pipeline.Height, *opts.Frames, *opts.FPS, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize headless context: %w", err)
		}
		ctx = hc
	} else {
		if err := glfwcontext.InitGraphics(logger); err != nil {
			return fmt.Errorf("failed to initialize glfw: %w", err)
		}
		defer glfwcontext.TerminateGraphics(logger)

		title := "goshaderfx"
		if profile.Pipeline.Name != "" {
			title += " - " + profile.Pipeline.Name
		}
		window, err = glfwcontext.New(profile.Pipeline.Width, profile.Pipeline.Height, title, *opts.Visible)
		if err != nil {
			return fmt.Errorf("failed to initialize glfw context: %w", err)
		}
		ctx = window
	}
	ctx.MakeCurrent()
	if !profile.Pipeline.Translate && ctx.IsGLES() != shader.GLES {
		logger.Warn("context and shader dialect differ; build with -tags gles or enable translate",
			zap.Bool("context_gles", ctx.IsGLES()),
			zap.String("shader_root", shader.Root))
	}

	dev, err := glbackend.New(logger)
	if err != nil {
		ctx.Shutdown()
		return err
	}

	r, err := renderer.New(ctx, dev, profile, renderer.WithLogger(logger))
	if err != nil {
		dev.Release()
		ctx.Shutdown()
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	defer func() {
		dev.Release()
		r.Shutdown()
	}()

	var enc *encoder.Encoder
	if *opts.OutputFile != "" {
		w, h := r.Size()
		enc, err = encoder.New(encoder.Config{
			Output:     *opts.OutputFile,
			Width:      w,
			Height:     h,
			FPS:        *opts.FPS,
			Codec:      *opts.Codec,
			FFmpegPath: *opts.FFMPEGPath,
		}, encoder.WithLogger(logger))
		if err != nil {
			return err
		}
		r.SetFrameSink(enc)
	}

	if window != nil {
		window.RegisterKeyCallback(glfw.KeyR, r.RequestReload)
		window.RegisterKeyCallback(glfw.KeyTab, r.TogglePanels)
		window.RegisterKeyCallback(glfw.KeyI, func() {
			if err := r.DumpPanels(os.Stdout); err != nil {
				logger.Warn("failed to print debug panels", zap.Error(err))
			}
		})
	}

	logger.Info("starting render loop",
		zap.String("scene", profile.Pipeline.Name),
		zap.Bool("headless", window == nil),
		zap.Bool("watch", profile.Reload.Watch),
		zap.String("output", *opts.OutputFile))
	r.Run()
	if enc != nil {
		if err := enc.Close(); err != nil {
			return err
		}
	}
	if window == nil {
		return r.DumpPanels(os.Stdout)
	}
	return nil
}

func main() {
	opts := options.Register(flag.CommandLine)
	flag.Parse()

	if *opts.Help {
		fmt.Println("goshaderfx: multi-pass shader pipeline with bloom and colour grading")
		fmt.Println("Keys: R reload shaders, I print debug panels, Tab show/hide panels, Esc quit")
		flag.PrintDefaults()
		return
	}

	logger, err := newLogger(*opts.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(opts, logger); err != nil {
		logger.Fatal("goshaderfx failed", zap.Error(err))
	}
}
