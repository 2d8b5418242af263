package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tjamescouch/visage/internal/bus"
	"github.com/tjamescouch/visage/internal/config"
	"github.com/tjamescouch/visage/internal/engine"
	"github.com/tjamescouch/visage/internal/face"
	"github.com/tjamescouch/visage/internal/logging"
	"github.com/tjamescouch/visage/internal/markup"
	"github.com/tjamescouch/visage/internal/sentiment"
	"github.com/tjamescouch/visage/internal/style"
)

var version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "visage",
	Short: "Drive an animated face from LLM text and speech timing",
	Long: `visage turns a live LLM token stream, expression commands and TTS text
into a smooth 60 fps stream of facial control points.

Configuration:
  1. --config flag (explicit path)
  2. $HOME/.visage/config.yaml
  3. ./config.yaml

Environment variables use the VISAGE_ prefix with dots replaced by
underscores, e.g. VISAGE_SINKS_RELAY_URL. Variables in ~/.visage/.env and
./.env are loaded first and never override the real environment.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.visage/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(lipsyncCmd)
	rootCmd.AddCommand(stripCmd)
	rootCmd.AddCommand(bridgeCmd)
	rootCmd.AddCommand(framesCmd)
	rootCmd.AddCommand(styleCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "visage:", err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "visage", version)
	},
}

// loadEnv reads .env files without overriding variables already set.
func loadEnv() {
	var files []string
	if dir, err := config.Dir(); err == nil {
		files = append(files, filepath.Join(dir, ".env"))
	}
	files = append(files, ".env")
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "visage: ignoring %s: %v\n", f, err)
		}
	}
}

type app struct {
	cfg *config.Config
	log *logging.Logger
	bus *bus.EventBus
}

// bootstrap loads env files and configuration and opens the logger.
// console=false keeps log lines off the terminal, for the TUI.
func bootstrap(console bool) (*app, error) {
	loadEnv()

	cfg, _, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if verbose {
		cfg.Logging.Level = logging.LevelDebug
	}
	if !console {
		cfg.Logging.Console = false
		cfg.Logging.JSON = false
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	b := bus.NewEventBus()
	b.SubscribeAll(func(ev bus.Event) {
		log.Debug("bus", string(ev.Type), ev.Data)
	})
	return &app{cfg: cfg, log: log, bus: b}, nil
}

// documents holds the optional override tables named in config.
type documents struct {
	presets *face.Presets
	lexicon *sentiment.Lexicon
	effects *markup.Effects
	style   style.Style
}

// loadDocuments falls back to the built-in table for any document that is
// unset or fails to load, logging the failure.
func (a *app) loadDocuments() documents {
	d := documents{
		presets: face.DefaultPresets(),
		lexicon: sentiment.DefaultLexicon(),
		effects: markup.DefaultEffects(),
	}
	files := a.cfg.Files

	if files.Presets != "" {
		if p, err := face.LoadPresets(files.Presets); err != nil {
			a.log.Warn("config", "using default presets", map[string]any{"error": err.Error()})
		} else {
			d.presets = p
		}
	}
	if files.Lexicon != "" {
		if l, err := sentiment.LoadLexicon(files.Lexicon); err != nil {
			a.log.Warn("config", "using default lexicon", map[string]any{"error": err.Error()})
		} else {
			d.lexicon = l
		}
	}
	if files.Effects != "" {
		if e, err := markup.LoadEffects(files.Effects); err != nil {
			a.log.Warn("config", "using default effects", map[string]any{"error": err.Error()})
		} else {
			d.effects = e
		}
	}

	st, err := style.LoadOrDefault(files.Style)
	if err != nil {
		a.log.Warn("config", "using default style", map[string]any{"error": err.Error()})
	}
	d.style = st
	return d
}

func (a *app) newEngine(d documents) *engine.Engine {
	return engine.New(engine.Options{
		FPS:              a.cfg.Engine.FPS,
		MaxStep:          a.cfg.Engine.MaxStep,
		MailboxSize:      a.cfg.Engine.MailboxSize,
		DefaultIntensity: a.cfg.Engine.DefaultIntensity,
		LipSyncFPS:       a.cfg.LipSync.FPS,
		Blender:          a.cfg.Blender,
		Idle:             a.cfg.Idle,
		Sentiment:        a.cfg.Sentiment,
		Presets:          d.presets,
		Lexicon:          d.lexicon,
		Effects:          d.effects,
		Bus:              a.bus,
		Logger:           a.log.Component("engine"),
	})
}
