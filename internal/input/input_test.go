package input

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjamescouch/visage/internal/engine"
	"github.com/tjamescouch/visage/internal/face"
	"github.com/tjamescouch/visage/internal/lipsync"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []engine.Command
	}{
		{
			name: "expression only",
			line: `{"expression": "joy"}`,
			want: []engine.Command{engine.Expression{Name: face.EmotionJoy}},
		},
		{
			name: "with intensity",
			line: `{"expression": "Sad", "intensity": 0.4}`,
			want: []engine.Command{engine.Expression{Name: face.EmotionSad}.WithIntensity(0.4)},
		},
		{
			name: "explicit zero intensity is kept",
			line: `{"expression": "joy", "intensity": 0}`,
			want: []engine.Command{engine.Expression{Name: face.EmotionJoy}.WithIntensity(0)},
		},
		{
			name: "say with phonemes",
			line: `{"say": "hi", "phonemes": [{"marker": "emphasis"}, {"symbol": "HH", "duration": 0.05}, {"symbol": "AY1", "duration": 0.2}, {"marker": "/emphasis"}]}`,
			want: []engine.Command{engine.Say{Text: "hi", Phonemes: []lipsync.Phoneme{
				{Marker: "emphasis"},
				{Symbol: "HH", Duration: 0.05},
				{Symbol: "AY1", Duration: 0.2},
				{Marker: "/emphasis"},
			}}},
		},
		{
			name: "phonemes without text",
			line: `{"phonemes": [{"symbol": "M", "duration": 0.1}]}`,
			want: []engine.Command{engine.Say{Phonemes: []lipsync.Phoneme{{Symbol: "M", Duration: 0.1}}}},
		},
		{
			name: "tool envelope",
			line: `{"name": "set_expression", "arguments": {"expression": "thinking", "intensity": 0.7}}`,
			want: []engine.Command{engine.Expression{Name: face.EmotionThinking}.WithIntensity(0.7)},
		},
		{
			name: "string-encoded arguments",
			line: `{"name": "set_expression", "arguments": "{\"expression\": \"angry\"}"}`,
			want: []engine.Command{engine.Expression{Name: face.EmotionAngry}},
		},
		{
			name: "expression with text",
			line: `{"expression": "joy", "text": "yay"}`,
			want: []engine.Command{engine.Expression{Name: face.EmotionJoy}, engine.Text{Text: "yay"}},
		},
		{
			name: "no fields means idle",
			line: `{}`,
			want: []engine.Command{engine.Expression{Name: face.EmotionIdle}},
		},
		{
			name: "clear and say",
			line: `{"clear": true, "say": "hello @@shout@@there@@/shout@@"}`,
			want: []engine.Command{engine.Clear{}, engine.Say{Text: "hello @@shout@@there@@/shout@@"}},
		},
		{
			name: "sentiment",
			line: `{"sentiment": {"valence": -0.5, "arousal": 0.2}}`,
			want: []engine.Command{engine.Sentiment{Valence: -0.5, Arousal: 0.2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommandRejects(t *testing.T) {
	for _, line := range []string{`not json`, `{"expression": 3}`, `[1,2]`, `{"intensity": "high"}`} {
		_, err := ParseCommand(line)
		assert.Error(t, err, line)
	}

	_, err := ParseCommand("   ")
	assert.ErrorIs(t, err, ErrEmptyLine)
}

func TestReadCommandsSkipsBadLines(t *testing.T) {
	r := strings.NewReader(strings.Join([]string{
		`{"expression": "joy"}`,
		``,
		`{garbage`,
		`{"expression": "sad", "intensity": 0.5}`,
	}, "\n"))

	var got []engine.Command
	err := ReadCommands(context.Background(), r, func(c engine.Command) { got = append(got, c) }, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []engine.Command{
		engine.Expression{Name: face.EmotionJoy},
		engine.Expression{Name: face.EmotionSad}.WithIntensity(0.5),
	}, got)
}

func TestReadCommandsStopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ReadCommands(ctx, pr, func(engine.Command) {}, zerolog.Nop())
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ReadCommands did not return after cancel")
	}
}

type chunkRecorder struct {
	mu     sync.Mutex
	chunks []string
}

func (r *chunkRecorder) emit(text string, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, text)
}

func (r *chunkRecorder) joined() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.chunks, "")
}

func TestTokenWatcherTailsAndResets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.txt")
	require.NoError(t, os.WriteFile(path, []byte("old text "), 0o644))

	rec := &chunkRecorder{}
	tw := NewTokenWatcher(path, rec.emit, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tw.Run(ctx)
	time.Sleep(100 * time.Millisecond)

	appendFile(t, path, "hello ")
	appendFile(t, path, "world")
	require.Eventually(t, func() bool { return rec.joined() == "hello world" }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.Eventually(t, func() bool { return strings.HasSuffix(rec.joined(), "x") }, 2*time.Second, 10*time.Millisecond)
	assert.NotContains(t, rec.joined(), "old text")
}

func TestReloadWatcherDebounces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("joy: {}\n"), 0o644))

	var mu sync.Mutex
	calls := 0
	rw := NewReloadWatcher(100*time.Millisecond, zerolog.Nop())
	rw.Watch(path, func(string) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	rw.Watch("", func(string) {})
	assert.Equal(t, 1, rw.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rw.Run(ctx)
	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 5; i++ {
		appendFile(t, path, "# edit\n")
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 1
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(250 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func appendFile(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(text)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}
