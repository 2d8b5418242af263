package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tjamescouch/visage/internal/bus"
	"github.com/tjamescouch/visage/internal/engine"
	"github.com/tjamescouch/visage/internal/face"
	"github.com/tjamescouch/visage/internal/input"
	"github.com/tjamescouch/visage/internal/markup"
	"github.com/tjamescouch/visage/internal/metrics"
	"github.com/tjamescouch/visage/internal/sentiment"
	"github.com/tjamescouch/visage/internal/sink"
)

var (
	runTokens  string
	runReload  bool
	runNoStdin bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engine: commands on stdin, frames to the configured sinks",
	Long: `Reads JSON command lines on stdin, e.g.

  {"expression": "joy", "intensity": 0.8}
  {"name": "set_expression", "arguments": {"expression": "thinking"}}
  {"text": "streamed llm output"}
  {"say": "hello @@emphasis@@there@@/emphasis@@"}
  {"say": "hi", "phonemes": [{"symbol": "HH", "duration": 0.05}, {"symbol": "AY1", "duration": 0.2}]}

and writes one {"t": ..., "pts": {...}} frame per tick to stdout, the
WebSocket relay and Redis, as configured.`,
	RunE: runEngine,
}

func init() {
	runCmd.Flags().StringVar(&runTokens, "tokens", "", "tail this file for streamed LLM text")
	runCmd.Flags().BoolVar(&runReload, "reload", false, "reload preset/lexicon/effects files when they change")
	runCmd.Flags().BoolVar(&runNoStdin, "no-stdin", false, "do not read commands from stdin")
}

func runEngine(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(true)
	if err != nil {
		return err
	}
	defer a.log.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs := a.loadDocuments()
	eng := a.newEngine(docs)

	out, err := a.openSinks(ctx, docs)
	if err != nil {
		return err
	}
	defer out.Close()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var lastErr time.Time
		return eng.Run(ctx, func(f face.Frame) {
			if err := out.Send(ctx, f); err != nil && time.Since(lastErr) > 5*time.Second {
				lastErr = time.Now()
				a.log.Warn("sink", "frame delivery failed", map[string]any{"error": err.Error()})
			}
		})
	})

	if !runNoStdin {
		g.Go(func() error {
			err := input.ReadCommands(ctx, os.Stdin, eng.Submit, a.log.Component("stdin"))
			a.log.Debug("stdin", "command input closed", nil)
			return err
		})
	}

	if runTokens != "" {
		tw := input.NewTokenWatcher(runTokens, func(text string, at time.Time) {
			eng.Submit(engine.Text{Text: text, At: at})
		}, a.log.Component("tokens"))
		g.Go(func() error { return tw.Run(ctx) })
	}

	if runReload || a.cfg.Files.Watch {
		rw := a.reloadWatcher(eng)
		if rw.Len() > 0 {
			g.Go(func() error { return rw.Run(ctx) })
		}
	}

	if addr := a.cfg.Metrics.Addr; addr != "" {
		srv := &http.Server{Addr: addr, Handler: metricsMux()}
		g.Go(func() error {
			a.log.Info("metrics", "serving /metrics", map[string]any{"addr": addr})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdown)
		})
	}

	return g.Wait()
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func (a *app) openSinks(ctx context.Context, docs documents) (*sink.Multi, error) {
	var sinks []sink.Sink
	cfg := a.cfg.Sinks

	if cfg.Stdout {
		sinks = append(sinks, sink.NewJSONLines("stdout", os.Stdout))
	}
	if cfg.Relay.URL != "" {
		sinks = append(sinks, sink.NewRelay(ctx, sink.RelayOptions{
			URL:          cfg.Relay.URL,
			ReconnectMin: cfg.Relay.ReconnectMin,
			ReconnectMax: cfg.Relay.ReconnectMax,
			WriteTimeout: cfg.Relay.WriteTimeout,
			Style:        docs.style,
			Bus:          a.bus,
		}, a.log.Zerolog()))
	}
	if cfg.Redis.Enabled {
		r, err := sink.NewRedis(sink.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		})
		if err != nil {
			for _, s := range sinks {
				s.Close()
			}
			return nil, err
		}
		sinks = append(sinks, r)
	}

	a.log.Info("sink", "frame sinks ready", map[string]any{"count": len(sinks)})
	return sink.NewMulti(a.log.Component("sink"), sinks...), nil
}

// reloadWatcher re-reads override documents and hands the new tables to
// the engine. A document that fails to parse leaves the old table live.
func (a *app) reloadWatcher(eng *engine.Engine) *input.ReloadWatcher {
	rw := input.NewReloadWatcher(input.DefaultDebounce, a.log.Component("reload"))
	files := a.cfg.Files

	failed := func(doc, path string, err error) {
		metrics.Reloads.WithLabelValues(doc, "error").Inc()
		a.log.Error("reload", "reload failed", err, map[string]any{"document": doc, "path": path})
		a.bus.Publish(bus.Event{Type: bus.EventReloadFailed, Data: map[string]any{"document": doc, "path": path}})
	}

	rw.Watch(files.Presets, func(path string) {
		p, err := face.LoadPresets(path)
		if err != nil {
			failed("presets", path, err)
			return
		}
		metrics.Reloads.WithLabelValues("presets", "ok").Inc()
		eng.Submit(engine.ReloadPresets{Presets: p})
	})
	rw.Watch(files.Lexicon, func(path string) {
		l, err := sentiment.LoadLexicon(path)
		if err != nil {
			failed("lexicon", path, err)
			return
		}
		metrics.Reloads.WithLabelValues("lexicon", "ok").Inc()
		eng.Submit(engine.ReloadLexicon{Lexicon: l})
	})
	rw.Watch(files.Effects, func(path string) {
		e, err := markup.LoadEffects(path)
		if err != nil {
			failed("effects", path, err)
			return
		}
		metrics.Reloads.WithLabelValues("effects", "ok").Inc()
		eng.Submit(engine.ReloadEffects{Effects: e})
	})
	return rw
}
