package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tjamescouch/visage/internal/emote"
	"github.com/tjamescouch/visage/internal/engine"
	"github.com/tjamescouch/visage/internal/face"
	"github.com/tjamescouch/visage/internal/input"
	"github.com/tjamescouch/visage/internal/lipsync"
	"github.com/tjamescouch/visage/internal/markup"
	"github.com/tjamescouch/visage/internal/monitor"
	"github.com/tjamescouch/visage/internal/sink"
	"github.com/tjamescouch/visage/internal/style"
)

// textArg joins the arguments, or reads stdin when there are none.
func textArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

var monitorTokens string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the engine under a terminal debug view",
	Long: `Shows sentiment, live layers and every control point at 30 Hz.
Keys 1-7 push expressions, 0 clears all layers, q quits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(false)
		if err != nil {
			return err
		}
		defer a.log.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		eng := a.newEngine(a.loadDocuments())
		go eng.Run(ctx, nil)

		if monitorTokens != "" {
			tw := input.NewTokenWatcher(monitorTokens, func(text string, at time.Time) {
				eng.Submit(engine.Text{Text: text, At: at})
			}, a.log.Component("tokens"))
			go func() {
				if err := tw.Run(ctx); err != nil {
					a.log.Error("tokens", "token watcher stopped", err, nil)
				}
			}()
		}

		_, err = tea.NewProgram(monitor.New(eng), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	},
}

var (
	lipsyncFPS      float64
	lipsyncRealtime bool
	lipsyncTimeline bool
	lipsyncPhonemes string
)

var lipsyncCmd = &cobra.Command{
	Use:   "lipsync [text]",
	Short: "Print lip-sync frames for marked-up text or TTS phoneme timing",
	Long: `Prints lip-sync frames for marked-up text, or with --phonemes for a JSON
array of TTS phonemes such as

  [{"marker": "emphasis"}, {"symbol": "HH", "duration": 0.05},
   {"symbol": "AY1", "duration": 0.2}, {"marker": "/emphasis"}]`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var text string
		if lipsyncPhonemes == "" {
			var err error
			if text, err = textArg(cmd, args); err != nil {
				return err
			}
		}
		a, err := bootstrap(true)
		if err != nil {
			return err
		}
		defer a.log.Close()

		effects := a.loadDocuments().effects
		var tl *lipsync.Timeline
		if lipsyncPhonemes != "" {
			phonemes, err := readPhonemes(lipsyncPhonemes)
			if err != nil {
				return err
			}
			tl = lipsync.FromPhonemes(phonemes, effects)
		} else {
			tl = lipsync.FromText(text, effects)
		}
		out := cmd.OutOrStdout()

		if lipsyncTimeline {
			enc := json.NewEncoder(out)
			for _, seg := range tl.Segments {
				if err := enc.Encode(map[string]any{
					"start":  seg.Start,
					"end":    seg.End,
					"viseme": seg.Viseme,
				}); err != nil {
					return err
				}
			}
			return nil
		}

		fps := lipsyncFPS
		if fps <= 0 {
			fps = a.cfg.LipSync.FPS
		}
		frames := tl.Frames(fps)
		lines := sink.NewJSONLines("stdout", out)

		if !lipsyncRealtime {
			for _, f := range frames {
				if err := lines.Send(cmd.Context(), f); err != nil {
					return err
				}
			}
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		pb := lipsync.Play(ctx, frames, func(f face.Frame) {
			lines.Send(ctx, f)
		})
		if err := pb.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func readPhonemes(path string) ([]lipsync.Phoneme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read phonemes: %w", err)
	}
	var phonemes []lipsync.Phoneme
	if err := json.Unmarshal(data, &phonemes); err != nil {
		return nil, fmt.Errorf("decode phonemes %s: %w", path, err)
	}
	return phonemes, nil
}

var stripCmd = &cobra.Command{
	Use:   "strip [text]",
	Short: "Remove @@effect@@ markers and normalise whitespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := textArg(cmd, args)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), markup.Strip(text))
		return nil
	},
}

var (
	bridgeIn    string
	bridgeOut   string
	bridgeBlend bool
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Map an emote-vector WebSocket stream onto face frames",
	Long: `Consumes emote vectors ({"valence": 0.2, "arousal": 0.7, "happy": 0.1, ...})
from --in and produces frames on --out (a relay) or stdout.

By default each vector maps straight to a frame. With --blend the vectors
become a layer in the engine, so idle motion and smoothing apply.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(true)
		if err != nil {
			return err
		}
		defer a.log.Close()

		in := bridgeIn
		if in == "" {
			in = a.cfg.Bridge.URL
		}
		if in == "" {
			return errors.New("no emote stream: pass --in or set bridge.url")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		docs := a.loadDocuments()
		if bridgeOut != "" {
			a.cfg.Sinks.Relay.URL = bridgeOut
			a.cfg.Sinks.Stdout = false
		}
		out, err := a.openSinks(ctx, docs)
		if err != nil {
			return err
		}
		defer out.Close()

		b := emote.NewBridge(in, a.log.Zerolog())

		if !bridgeBlend {
			return b.Run(ctx, func(m emote.Message, at time.Time) {
				f := face.Frame{T: float64(at.UnixNano()) / 1e9, Pts: emote.ToParams(m.Vector, docs.presets)}
				if err := out.Send(ctx, f); err != nil {
					a.log.Debug("bridge", "frame dropped", map[string]any{"error": err.Error()})
				}
			})
		}

		eng := a.newEngine(docs)
		go eng.Run(ctx, func(f face.Frame) {
			out.Send(ctx, f)
		})
		return b.Run(ctx, func(m emote.Message, _ time.Time) {
			eng.Submit(engine.Pose{Name: "emote", Pose: emote.ToParams(m.Vector, docs.presets), Weight: 1})
		})
	},
}

var framesCmd = &cobra.Command{
	Use:   "frames",
	Short: "Print frames published on the Redis channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(true)
		if err != nil {
			return err
		}
		defer a.log.Close()

		r, err := sink.NewRedis(sink.RedisOptions{
			Addr:     a.cfg.Sinks.Redis.Addr,
			Password: a.cfg.Sinks.Redis.Password,
			DB:       a.cfg.Sinks.Redis.DB,
			Channel:  a.cfg.Sinks.Redis.Channel,
		})
		if err != nil {
			return err
		}
		defer r.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		frames, err := r.Subscribe(ctx)
		if err != nil {
			return err
		}
		a.log.Info("frames", "subscribed", map[string]any{"channel": r.Channel()})

		lines := sink.NewJSONLines("stdout", cmd.OutOrStdout())
		for f := range frames {
			if err := lines.Send(ctx, f); err != nil {
				return err
			}
		}
		return nil
	},
}

var styleFile string

var styleCmd = &cobra.Command{
	Use:   "style",
	Short: "Print the effective renderer style as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := styleFile
		if path == "" {
			a, err := bootstrap(true)
			if err != nil {
				return err
			}
			defer a.log.Close()
			path = a.cfg.Files.Style
		}

		st, err := style.LoadOrDefault(path)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "visage: %v; using defaults\n", err)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	},
}

func init() {
	monitorCmd.Flags().StringVar(&monitorTokens, "tokens", "", "tail this file for streamed LLM text")

	lipsyncCmd.Flags().Float64Var(&lipsyncFPS, "fps", 0, "frame rate (default from config)")
	lipsyncCmd.Flags().BoolVar(&lipsyncRealtime, "realtime", false, "emit frames at their timestamps")
	lipsyncCmd.Flags().BoolVar(&lipsyncTimeline, "timeline", false, "print viseme segments instead of frames")
	lipsyncCmd.Flags().StringVar(&lipsyncPhonemes, "phonemes", "", "JSON file of TTS phonemes to use instead of text")

	bridgeCmd.Flags().StringVar(&bridgeIn, "in", "", "emote WebSocket URL (default bridge.url)")
	bridgeCmd.Flags().StringVar(&bridgeOut, "out", "", "relay WebSocket URL (default sinks.relay.url)")
	bridgeCmd.Flags().BoolVar(&bridgeBlend, "blend", false, "blend vectors through the engine")

	styleCmd.Flags().StringVar(&styleFile, "file", "", "style document (default files.style)")
}
