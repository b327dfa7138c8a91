// Command mixery opens a project, plays it through the in-process engine,
// and bridges live MIDI input and output to it.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chase3718/mixery/config"
	"github.com/chase3718/mixery/internal/logging"
	"github.com/chase3718/mixery/nodes"
	"github.com/chase3718/mixery/project"
	"github.com/chase3718/mixery/resources"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

type options struct {
	configPath  string
	projectPath string
	importSMF   string
	exportSMF   string
	savePath    string
	play        bool
	fromMs      float64
}

func main() {
	var opts options
	cfg := config.Default()

	flag.StringVar(&opts.configPath, "config", "mixery.yaml", "config file")
	flag.StringVar(&opts.projectPath, "project", "", "project file to open")
	flag.StringVar(&opts.importSMF, "import", "", "standard MIDI file to use as the playlist")
	flag.StringVar(&opts.exportSMF, "export", "", "write the playlist as a standard MIDI file and exit")
	flag.StringVar(&opts.savePath, "save", "", "write the project file and exit")
	flag.BoolVar(&opts.play, "play", false, "start playback on launch")
	flag.Float64Var(&opts.fromMs, "from", 0, "playback start position in ms")
	debug := flag.Bool("debug", false, "enable debug logging (adds source location)")
	serialDev := flag.String("serial", "", "serial device for MIDI out")
	baud := flag.Int("baud", cfg.Serial.Baud, "serial baud rate")
	bpm := flag.Float64("bpm", 0, "override the project tempo")
	metronome := flag.Bool("metronome", false, "enable the metronome")
	quality := flag.Int("quality", cfg.Player.Quality, "scheduler ticks per second")
	flag.Parse()

	logging.Init(*debug)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		logging.L().Error("config load failed", "path", opts.configPath, "err", err)
		os.Exit(1)
	}
	// Flags given on the command line win over the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "debug":
			cfg.Debug = *debug
		case "serial":
			cfg.Serial.Device = *serialDev
		case "baud":
			cfg.Serial.Baud = *baud
		case "bpm":
			cfg.Project.BPM = *bpm
		case "metronome":
			cfg.Metronome.Enabled = *metronome
		case "quality":
			cfg.Player.Quality = *quality
		}
	})
	if err := cfg.Validate(); err != nil {
		logging.L().Error("invalid settings", "err", err)
		os.Exit(1)
	}
	logging.Init(cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, flagSet("bpm")); err != nil {
		logging.L().Error("mixery failed", "err", err)
		os.Exit(1)
	}
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func run(ctx context.Context, cfg config.Config, opts options, forceBPM bool) error {
	logging.L().Info("mixery starting",
		"config", opts.configPath,
		"project", opts.projectPath,
		"quality", cfg.Player.Quality,
		"ahead_ms", cfg.Player.AheadMs,
		"serial", cfg.Serial.Device,
		"debug", cfg.Debug,
	)

	var senders fanout
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	if cfg.Serial.Device != "" {
		sink, err := openSerial(cfg.Serial.Device, cfg.Serial.Baud)
		if err != nil {
			return err
		}
		senders = append(senders, sink)
		closers = append(closers, sink)
	}

	drv, err := rtmididrv.New()
	if err != nil {
		logging.L().Warn("midi: driver unavailable, live MIDI disabled", "err", err)
		drv = nil
	} else {
		defer drv.Close()
		if cfg.MIDI.Output != "" {
			out, err := openMIDIOut(drv, cfg.MIDI.Output)
			if err != nil {
				logging.L().Warn("midi: output disabled", "err", err)
			} else {
				senders = append(senders, out)
				closers = append(closers, out)
			}
		}
	}

	var sender nodes.MIDISender
	if len(senders) > 0 {
		sender = senders
	}
	ws, err := project.NewWorkspace(project.Options{
		Store:        resources.NewDirStore(cfg.Resources.Dir),
		MIDI:         sender,
		InputChannel: cfg.MIDI.InputChannelName,
	})
	if err != nil {
		return err
	}
	defer ws.Close()
	configure(ws, cfg)

	if err := openProject(ws, cfg, opts, forceBPM); err != nil {
		return err
	}
	if opts.exportSMF != "" || opts.savePath != "" {
		return export(ws, opts)
	}

	if drv != nil {
		watcher := NewMIDIWatcher(drv, cfg.MIDI.Preferred, cfg.MIDI.Excluded,
			func(msg midi.Message) {
				if acceptChannel(msg, cfg.MIDI.Channel) {
					ws.Do(func() { ws.Input(msg) })
				}
			},
			func() {
				logging.L().Warn("midi: disconnect, releasing held notes")
				ws.Do(ws.ReleaseInput)
			})
		defer watcher.Close()
		go watch(ctx, watcher)
	}

	if opts.play {
		ws.Do(func() { ws.Player.Play(opts.fromMs) })
	}
	logging.L().Info("running", "tracks", len(ws.Playlist().Tracks), "nodes", len(ws.Network().Nodes()))
	return ws.Run(ctx)
}

// acceptChannel filters live input by channel; a negative channel accepts
// everything.
func acceptChannel(msg midi.Message, channel int) bool {
	if channel < 0 {
		return true
	}
	var ch uint8
	if !msg.GetChannel(&ch) {
		return false
	}
	return int(ch) == channel
}

func configure(ws *project.Workspace, cfg config.Config) {
	ws.Player.Quality = cfg.Player.Quality
	ws.Player.AheadMs = cfg.Player.AheadMs
	ws.Metronome.Enabled = cfg.Metronome.Enabled
	ws.Metronome.BeatsPerBar = cfg.Metronome.BeatsPerBar
	ws.Metronome.Division = cfg.Metronome.DivisionUnits
	ws.Metronome.BufferMs = cfg.Metronome.BufferMs
	for _, n := range ws.Registry.All() {
		logging.L().Debug("node type available", "type", n.TypeID, "label", n.Label, "category", n.Category)
	}
}

func openProject(ws *project.Workspace, cfg config.Config, opts options, forceBPM bool) error {
	p := ws.Project()
	if opts.projectPath != "" {
		if err := ws.Open(opts.projectPath); err != nil {
			return err
		}
	} else {
		if err := p.Patch(); err != nil {
			return err
		}
		_ = p.SetBPM(cfg.Project.BPM)
	}
	if opts.importSMF != "" {
		if err := ws.ImportSMF(opts.importSMF, cfg.MIDI.InputChannelName); err != nil {
			return err
		}
	}
	if forceBPM {
		return p.SetBPM(cfg.Project.BPM)
	}
	return nil
}

func export(ws *project.Workspace, opts options) error {
	if opts.exportSMF != "" {
		if err := ws.ExportSMF(opts.exportSMF); err != nil {
			return err
		}
		logging.L().Info("playlist exported", "path", opts.exportSMF)
	}
	if opts.savePath != "" {
		if err := ws.Project().SaveFile(opts.savePath); err != nil {
			return err
		}
		logging.L().Info("project saved", "path", opts.savePath)
	}
	return nil
}

func watch(ctx context.Context, w *MIDIWatcher) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	w.Tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Tick()
		}
	}
}
