// internal/keyword/library.go
// Package keyword builds the library of recorded keyword templates and
// matches captured sounds against it.
package keyword

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ColonelBlimp/clapdetector/internal/cache"
	"github.com/ColonelBlimp/clapdetector/internal/dsp"
	"github.com/ColonelBlimp/clapdetector/internal/wav"
)

// DefaultGlob selects template files within the keyword directory
const DefaultGlob = "*.wav"

var (
	// ErrNotDirectory indicates the keyword path exists but is not a directory
	ErrNotDirectory = errors.New("keyword path is not a directory")
	// ErrInvalidName indicates a keyword name that cannot be used as a file stem
	ErrInvalidName = errors.New("keyword name must be a non-empty file name without path separators")
)

// Template is one labeled spectrum loaded from disk.
type Template struct {
	Name       string
	Path       string
	SampleRate int
	Spectrum   dsp.Spectrum
}

// Library maps keyword names to their templates. It is read-only once built.
type Library struct {
	templates map[string]Template
}

// NewLibrary creates a library from already analyzed templates.
func NewLibrary(templates ...Template) *Library {
	l := &Library{templates: make(map[string]Template, len(templates))}
	for _, t := range templates {
		l.templates[t.Name] = t
	}
	return l
}

// Len returns the number of templates
func (l *Library) Len() int {
	return len(l.templates)
}

// Names returns the keyword names in sorted order
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.templates))
	for name := range l.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the template for name
func (l *Library) Get(name string) (Template, bool) {
	t, ok := l.templates[name]
	return t, ok
}

// Spectra returns the name to spectrum mapping used by the Matcher.
func (l *Library) Spectra() map[string]dsp.Spectrum {
	out := make(map[string]dsp.Spectrum, len(l.templates))
	for name, t := range l.templates {
		out[name] = t.Spectrum
	}
	return out
}

// BuildOptions configures Build.
type BuildOptions struct {
	// Dir is the keyword directory (from config: keywords_dir)
	Dir string
	// Glob selects files within Dir (from config: keywords_glob)
	Glob string
	// Fold is the spectrum fold mode (from config: spectrum_fold)
	Fold dsp.FoldMode
	// SampleRate, when positive, skips templates recorded at another rate:
	// their bins cover different frequencies than the capture's.
	SampleRate int
	// Cache stores computed spectra between runs. Nil disables caching.
	Cache cache.Store
	// Logger receives skipped-file warnings. Nil uses slog.Default().
	Logger *slog.Logger
}

// NameFromPath returns the keyword label for a template file: its base name without extension.
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// TemplatePath returns the file a keyword recording is saved to.
func TemplatePath(dir, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(dir, name+".wav"), nil
}

// ValidateName reports whether name can be used as a template file stem.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Build loads every mono 16-bit WAV in the directory as a template.
// Files that are not compatible WAVs or are too short to analyze are logged
// and skipped. When two files map to the same name the later one, in
// lexical path order, wins.
func Build(ctx context.Context, opts BuildOptions) (*Library, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	glob := opts.Glob
	if glob == "" {
		glob = DefaultGlob
	}
	fold := opts.Fold
	if fold == "" {
		fold = dsp.FoldSum
	}

	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("keyword dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, opts.Dir)
	}

	paths, err := filepath.Glob(filepath.Join(opts.Dir, glob))
	if err != nil {
		return nil, fmt.Errorf("keyword glob %q: %w", glob, err)
	}

	lib := NewLibrary()
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		t, err := loadTemplate(ctx, path, fold, opts.Cache, logger)
		if err != nil {
			logger.Warn("skipping keyword file", "file", path, "err", err)
			continue
		}
		if opts.SampleRate > 0 && t.SampleRate != opts.SampleRate {
			logger.Warn("skipping keyword recorded at another sample rate",
				"file", path, "rate", t.SampleRate, "want", opts.SampleRate)
			continue
		}
		if prev, dup := lib.templates[t.Name]; dup {
			logger.Warn("duplicate keyword name, replacing", "keyword", t.Name, "previous", prev.Path, "file", path)
		}
		lib.templates[t.Name] = t
	}

	logger.Debug("keyword library built", "dir", opts.Dir, "candidates", len(paths), "keywords", lib.Len())
	return lib, nil
}

// cachedSpectrum is the cache value for one template file
type cachedSpectrum struct {
	Size       int64     `msgpack:"size"`
	ModTime    int64     `msgpack:"mtime"`
	Fold       string    `msgpack:"fold"`
	SampleRate int       `msgpack:"rate"`
	Spectrum   []float64 `msgpack:"spectrum"`
}

func cacheKey(path string) cache.Key {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return cache.Key{"spectrum", path}
}

func loadTemplate(ctx context.Context, path string, fold dsp.FoldMode, store cache.Store, logger *slog.Logger) (Template, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Template{}, err
	}
	if info.IsDir() {
		return Template{}, fmt.Errorf("%s is a directory", path)
	}

	name := NameFromPath(path)
	key := cacheKey(path)

	if store != nil {
		if t, ok := lookupCache(ctx, store, key, info, fold, logger); ok {
			t.Name = name
			t.Path = path
			return t, nil
		}
	}

	m, err := wav.ReadMonoFile(path)
	if err != nil {
		return Template{}, err
	}
	spectrum, err := dsp.AnalyzeFold(m.Samples, fold)
	if err != nil {
		return Template{}, fmt.Errorf("analyze %s: %w", path, err)
	}

	if store != nil {
		entry := cachedSpectrum{
			Size:       info.Size(),
			ModTime:    info.ModTime().UnixNano(),
			Fold:       string(fold),
			SampleRate: m.SampleRate,
			Spectrum:   spectrum,
		}
		if data, err := msgpack.Marshal(&entry); err != nil {
			logger.Warn("encode cached spectrum", "file", path, "err", err)
		} else if err := store.Set(ctx, key, data); err != nil {
			logger.Warn("store cached spectrum", "file", path, "err", err)
		}
	}

	return Template{Name: name, Path: path, SampleRate: m.SampleRate, Spectrum: spectrum}, nil
}

func lookupCache(ctx context.Context, store cache.Store, key cache.Key, info os.FileInfo, fold dsp.FoldMode, logger *slog.Logger) (Template, bool) {
	data, err := store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			logger.Warn("read cached spectrum", "key", key.String(), "err", err)
		}
		return Template{}, false
	}

	var entry cachedSpectrum
	if err := msgpack.Unmarshal(data, &entry); err != nil {
		logger.Warn("decode cached spectrum", "key", key.String(), "err", err)
		return Template{}, false
	}
	if entry.Size != info.Size() || entry.ModTime != info.ModTime().UnixNano() || entry.Fold != string(fold) {
		return Template{}, false
	}
	return Template{SampleRate: entry.SampleRate, Spectrum: entry.Spectrum}, true
}
