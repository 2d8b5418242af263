// Package input turns external signals into engine commands: JSON command
// lines, a tailed token stream, and reloads of watched config documents.
package input

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tjamescouch/visage/internal/engine"
	"github.com/tjamescouch/visage/internal/face"
	"github.com/tjamescouch/visage/internal/lipsync"
	"github.com/tjamescouch/visage/internal/metrics"
)

// maxLine bounds a single command line.
const maxLine = 1 << 20

var ErrEmptyLine = errors.New("input: empty line")

// wireCommand is one JSON line. Only expression is required by the
// protocol; the other fields extend it.
type wireCommand struct {
	Expression *string  `json:"expression"`
	Intensity  *float64 `json:"intensity"`
	Decay      *float64 `json:"decay"`
	Text       string   `json:"text"`
	Say        string   `json:"say"`
	Clear      bool     `json:"clear"`
	Sentiment  *struct {
		Valence float64 `json:"valence"`
		Arousal float64 `json:"arousal"`
	} `json:"sentiment"`

	// Phonemes carries TTS timing for say, with optional marker entries.
	Phonemes []lipsync.Phoneme `json:"phonemes"`
}

// envelope is the tool-call wrapper some producers put around a command.
type envelope struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ParseCommand decodes one command line. A line of the form
// {"name": ..., "arguments": {...}} is unwrapped first; arguments may also
// be a JSON-encoded string. A line with no recognised field is an idle
// expression.
func ParseCommand(line string) ([]engine.Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, ErrEmptyLine
	}

	raw := []byte(line)
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	if env.Name != "" && len(env.Arguments) > 0 {
		raw = env.Arguments
		var s string
		if json.Unmarshal(raw, &s) == nil {
			raw = []byte(s)
		}
	}

	var w wireCommand
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}

	var cmds []engine.Command
	if w.Clear {
		cmds = append(cmds, engine.Clear{})
	}
	if w.Expression != nil {
		cmds = append(cmds, expression(*w.Expression, w.Intensity, w.Decay))
	}
	if w.Sentiment != nil {
		cmds = append(cmds, engine.Sentiment{Valence: w.Sentiment.Valence, Arousal: w.Sentiment.Arousal})
	}
	if w.Text != "" {
		cmds = append(cmds, engine.Text{Text: w.Text})
	}
	if w.Say != "" || len(w.Phonemes) > 0 {
		cmds = append(cmds, engine.Say{Text: w.Say, Phonemes: w.Phonemes})
	}
	if len(cmds) == 0 {
		cmds = append(cmds, expression(string(face.EmotionIdle), w.Intensity, w.Decay))
	}
	return cmds, nil
}

func expression(name string, intensity, decay *float64) engine.Expression {
	e := engine.Expression{Name: face.Emotion(strings.ToLower(strings.TrimSpace(name)))}
	if intensity != nil {
		e = e.WithIntensity(*intensity)
	}
	if decay != nil {
		e.DecayRate = *decay
	}
	return e
}

// ReadCommands reads JSON command lines from r until EOF or ctx is done,
// handing each decoded command to submit. Malformed lines are logged,
// counted and skipped.
func ReadCommands(ctx context.Context, r io.Reader, submit func(engine.Command), log zerolog.Logger) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					if err != nil {
						return fmt.Errorf("read commands: %w", err)
					}
				default:
				}
				return nil
			}
			cmds, err := ParseCommand(line)
			if errors.Is(err, ErrEmptyLine) {
				continue
			}
			if err != nil {
				metrics.MalformedInput.WithLabelValues("commands").Inc()
				log.Debug().Err(err).Str("line", truncate(line, 120)).Msg("dropping malformed command")
				continue
			}
			for _, c := range cmds {
				submit(c)
			}
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
