package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".webm": true,
}

// FileSource picks up utterances dropped into a directory: .txt files hold
// text, audio files are transcribed. Consumed files are renamed with a
// .processed suffix.
type FileSource struct {
	dir       string
	interval  time.Duration
	processed map[string]bool
	mu        sync.Mutex
}

func NewFileSource(dir string) *FileSource {
	return &FileSource{
		dir:       dir,
		interval:  500 * time.Millisecond,
		processed: make(map[string]bool),
	}
}

func (f *FileSource) WithPollInterval(d time.Duration) *FileSource {
	f.interval = d
	return f
}

func (f *FileSource) Name() string {
	return "file"
}

func (f *FileSource) Open(_ context.Context) error {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("creating capture dir: %w", err)
	}
	return nil
}

func (f *FileSource) Close() error {
	return nil
}

func (f *FileSource) Next(ctx context.Context) (Utterance, error) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		utt, found, err := f.checkForNewFile()
		if err != nil {
			return Utterance{}, err
		}
		if found {
			return utt, nil
		}

		select {
		case <-ctx.Done():
			return Utterance{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (f *FileSource) checkForNewFile() (Utterance, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return Utterance{}, false, fmt.Errorf("reading dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".txt" && !audioExtensions[ext] {
			continue
		}

		path := filepath.Join(f.dir, name)
		if f.processed[path] {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return Utterance{}, false, fmt.Errorf("reading file %s: %w", path, err)
		}

		f.processed[path] = true
		_ = os.Rename(path, path+".processed")

		if ext == ".txt" {
			return Utterance{Text: strings.TrimSpace(string(data))}, true, nil
		}
		return Utterance{Audio: data}, true, nil
	}

	return Utterance{}, false, nil
}
