// Command oxy-choreo opens a window and renders procedural sky scenes through the render
// choreographer, with every feature toggleable from the keyboard or a live-reloaded TOML file.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Carmen-Shannon/oxy-choreo/common"
	"github.com/Carmen-Shannon/oxy-choreo/engine"
	"github.com/Carmen-Shannon/oxy-choreo/engine/choreographer"
	"github.com/Carmen-Shannon/oxy-choreo/engine/config"
	"github.com/Carmen-Shannon/oxy-choreo/engine/device"
	"github.com/Carmen-Shannon/oxy-choreo/engine/profiler"
	"github.com/Carmen-Shannon/oxy-choreo/engine/scene"
	"github.com/Carmen-Shannon/oxy-choreo/engine/window"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	width      int
	height     int
	software   bool
	msaa       int
	vsync      bool
	stereo     bool
	fpsLimit   float64
	verbose    bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "oxy-choreo",
		Short:         "Render procedural scenes through the HDR, bloom and post-process pipeline",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cfg, opts)
		},
	}

	flags := root.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "TOML settings file, reloaded when it changes")
	flags.IntVar(&opts.width, "width", 0, "window width in pixels")
	flags.IntVar(&opts.height, "height", 0, "window height in pixels")
	flags.BoolVar(&opts.software, "software", false, "force the software (fallback) adapter")
	flags.IntVar(&opts.msaa, "msaa", 0, "display multisample count, 1 or 4")
	flags.BoolVar(&opts.vsync, "vsync", false, "present on vertical sync")
	flags.BoolVar(&opts.stereo, "stereo", false, "render a side-by-side stereo pair")
	flags.Float64Var(&opts.fpsLimit, "fps-limit", 0, "frame rate cap, 0 for uncapped")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log per-frame diagnostics")

	root.AddCommand(newConfigCommand())
	return root
}

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect settings files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "default",
		Short: "Print the default settings as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := config.Default().Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "check <file>",
		Short: "Validate a settings file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
			return nil
		},
	})
	return cmd
}

// loadConfig reads the settings file, if any, and applies explicitly set flags on top.
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("width") {
		cfg.Window.Width = opts.width
	}
	if flags.Changed("height") {
		cfg.Window.Height = opts.height
	}
	if flags.Changed("software") {
		cfg.Device.ForceSoftware = opts.software
	}
	if flags.Changed("msaa") {
		cfg.Device.MSAA = opts.msaa
	}
	return cfg, cfg.Validate()
}

func run(cfg config.Config, opts *options) error {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	common.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	win, err := window.NewWindow(
		window.WithTitle(cfg.Window.Title),
		window.WithSize(cfg.Window.Width, cfg.Window.Height),
	)
	if err != nil {
		return err
	}
	defer win.Close()

	dev, err := device.NewWGPUDevice(win.SurfaceDescriptor(),
		device.WithForceSoftwareDevice(cfg.Device.ForceSoftware),
		device.WithMSAA(device.MSAASampleCount(cfg.Device.MSAA)),
		device.WithVSync(opts.vsync),
	)
	if err != nil {
		return err
	}
	defer dev.Release()

	prof := profiler.NewProfiler(profiler.WithReportFunc(func(s profiler.Snapshot) {
		win.SetTitle(fmt.Sprintf("%s - %.0f fps", cfg.Window.Title, s.FPS))
	}))
	c, err := choreographer.New(dev, append(cfg.Renderer.Options(), choreographer.WithProfiler(prof))...)
	if err != nil {
		return err
	}
	defer c.Release()
	if _, err := cfg.Renderer.Apply(c); err != nil {
		return err
	}

	scenes := make([]scene.Scene, 0, len(scene.Presets))
	defer func() {
		for _, s := range scenes {
			s.Release()
		}
	}()
	for _, p := range scene.Presets {
		s, err := scene.NewScene(dev, scene.WithPreset(p))
		if err != nil {
			return err
		}
		scenes = append(scenes, s)
	}

	eng := engine.NewEngine(win, dev, c,
		engine.WithScene(scenes[0]),
		engine.WithStereo(opts.stereo),
		engine.WithRenderFrameLimit(opts.fpsLimit),
	)

	ctl := newControls(eng, scenes)
	win.SetKeyDownCallback(ctl.handleKey)

	if opts.configPath != "" {
		watcher, err := config.Watch(opts.configPath)
		if err != nil {
			return err
		}
		defer watcher.Close()
		eng.SetUpdateCallback(func(float32) {
			ctl.drain(watcher.Updates(), watcher.Errors())
		})
	}

	common.Logger().Info("controls",
		"h", "hdr", "b", "bloom", "s", "shadows", "p", "pbr", "r", "render to texture",
		"e", "next effect", "t", "next scene", "space", "stereo", "esc", "quit")
	eng.Run()
	return nil
}
