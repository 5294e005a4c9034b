package options

import (
	"flag"

	"github.com/richinsley/goshaderfx/config"
)

// ShaderOptions are the demo's command-line flags.
type ShaderOptions struct {
	Config     *string
	Help       *bool
	Width      *int
	Height     *int
	ShaderDir  *string // Overrides the profile's shader_dir
	Watch      *bool   // Watch shader_dir and reload on change
	Translate  *bool   // Author shaders in WebGL2 and translate them
	Visible    *bool
	Verbose    *bool
	Headless   *bool // Render into an EGL pbuffer instead of a window (Linux)
	Frames     *int  // Frame budget in headless mode
	FPS        *float64
	OutputFile *string // Encode every presented frame to this file with ffmpeg
	Codec      *string
	FFMPEGPath *string
}

// Register declares the flags on fs.
func Register(fs *flag.FlagSet) *ShaderOptions {
	return &ShaderOptions{
		Config:     fs.String("config", "", "Path to a TOML tuning profile (built-in demo if empty)"),
		Help:       fs.Bool("help", false, "Show help message"),
		Width:      fs.Int("width", 0, "Window width (profile width if 0)"),
		Height:     fs.Int("height", 0, "Window height (profile height if 0)"),
		ShaderDir:  fs.String("shaders", "", "Directory containing gl410/ and gles300/ shader trees"),
		Watch:      fs.Bool("watch", false, "Reload shaders when files under -shaders change"),
		Translate:  fs.Bool("translate", false, "Translate WebGL2 shader sources to the native dialect"),
		Visible:    fs.Bool("visible", true, "Show the window"),
		Verbose:    fs.Bool("verbose", false, "Enable debug logging"),
		Headless:   fs.Bool("headless", false, "Render off-screen with EGL and print the debug panels on exit"),
		Frames:     fs.Int("frames", 120, "Number of frames to render in headless mode"),
		FPS:        fs.Float64("fps", 60, "Simulated frame rate in headless mode, and the frame rate of -output"),
		OutputFile: fs.String("output", "", "Encode the presented frames to this video file (requires ffmpeg)"),
		Codec:      fs.String("codec", "h264", "Video codec for -output: h264 or hevc"),
		FFMPEGPath: fs.String("ffmpeg", "", "Path to the ffmpeg binary (PATH lookup if empty)"),
	}
}

// Apply overlays the flags that were given on p. Zero values leave the
// profile untouched.
func (o *ShaderOptions) Apply(p *config.Profile) {
	if *o.Width > 0 {
		p.Pipeline.Width = *o.Width
	}
	if *o.Height > 0 {
		p.Pipeline.Height = *o.Height
	}
	if *o.ShaderDir != "" {
		p.Pipeline.ShaderDir = *o.ShaderDir
	}
	if *o.Watch {
		p.Reload.Watch = true
	}
	if *o.Translate {
		p.Pipeline.Translate = true
	}
}
