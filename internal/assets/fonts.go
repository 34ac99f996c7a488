package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/sync/singleflight"

	u "flyergen/internal/utils"
)

var defaultFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(goregular.TTF)
})

// DefaultFace returns the built-in Go Regular face at size, or basicfont's
// 7x13 face when even that cannot be built.
func DefaultFace(size float64) font.Face {
	if f, err := defaultFont(); err == nil {
		if face, err := newFace(f, size); err == nil {
			return face
		}
	}
	return basicfont.Face7x13
}

func newFace(f *opentype.Font, size float64) (font.Face, error) {
	if size <= 0 {
		return nil, fmt.Errorf("font size %.1f must be positive", size)
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// Font is a resolved glyph source. The zero value renders with DefaultFace.
type Font struct {
	Name string
	otf  *opentype.Font
}

// Face returns a new face at size. Faces are not safe for concurrent use, so
// every render asks for its own.
func (f Font) Face(size float64) font.Face {
	if f.otf != nil {
		if face, err := newFace(f.otf, size); err == nil {
			return face
		}
	}
	return DefaultFace(size)
}

// Fallback reports whether f is the built-in default rather than the requested family.
func (f Font) Fallback() bool { return f.otf == nil }

// FontResolver resolves font files by name: memory, then the on-disk cache,
// then the configured remote URL.
type FontResolver struct {
	dir     string
	urls    map[string]string
	fetcher *Fetcher
	timeout time.Duration

	group  singleflight.Group
	mu     sync.RWMutex
	parsed map[string]*opentype.Font
}

// NewFontResolver caches downloaded fonts under cfg.FontDir.
func NewFontResolver(cfg u.AssetsConfig, fetcher *Fetcher) *FontResolver {
	urls := make(map[string]string, len(cfg.Fonts))
	for name, url := range cfg.Fonts {
		urls[name] = url
	}
	return &FontResolver{
		dir:     cfg.FontDir,
		urls:    urls,
		fetcher: fetcher,
		timeout: cfg.FontTimeout,
		parsed:  make(map[string]*opentype.Font),
	}
}

// ResolveFont returns a face of the named font at size. It never fails: any
// problem yields the built-in default face.
func (r *FontResolver) ResolveFont(ctx context.Context, name string, size float64) font.Face {
	return r.Font(ctx, name).Face(size)
}

// Font resolves the named font family. Failures are logged and produce the
// zero Font, which draws with the built-in face.
func (r *FontResolver) Font(ctx context.Context, name string) Font {
	otf, err := r.load(ctx, name)
	if err != nil {
		u.Warn("Font unavailable, using built-in face", "font", name, "error", err)
		return Font{Name: name}
	}
	return Font{Name: name, otf: otf}
}

// Warm resolves every configured font so the first flyer does not pay for the download.
func (r *FontResolver) Warm(ctx context.Context) {
	for name := range r.urls {
		if _, err := r.load(ctx, name); err != nil {
			u.Warn("Font warm-up failed", "font", name, "error", err)
			continue
		}
		u.Info("Font ready", "font", name)
	}
}

func (r *FontResolver) load(ctx context.Context, name string) (*opentype.Font, error) {
	if name == "" || filepath.Base(name) != name {
		return nil, fmt.Errorf("%w: invalid font name %q", ErrAssetUnavailable, name)
	}

	r.mu.RLock()
	otf, ok := r.parsed[name]
	r.mu.RUnlock()
	if ok {
		return otf, nil
	}

	key := Key{Kind: KindFont, Name: name}.String()
	v, err, _ := r.group.Do(key, func() (any, error) {
		otf, err := r.loadUncached(ctx, name)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.parsed[name] = otf
		r.mu.Unlock()
		return otf, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*opentype.Font), nil
}

func (r *FontResolver) loadUncached(ctx context.Context, name string) (*opentype.Font, error) {
	path := filepath.Join(r.dir, name)

	data, err := os.ReadFile(path)
	if err == nil {
		otf, perr := opentype.Parse(data)
		if perr == nil {
			return otf, nil
		}
		u.Warn("Cached font is corrupt, downloading again", "path", path, "error", perr)
	} else if !errors.Is(err, os.ErrNotExist) {
		u.Warn("Cached font unreadable", "path", path, "error", err)
	}

	url, ok := r.urls[name]
	if !ok {
		return nil, fmt.Errorf("%w: no source configured for font %q", ErrAssetUnavailable, name)
	}
	if r.fetcher == nil {
		return nil, fmt.Errorf("%w: font %q not cached and fetching is disabled", ErrAssetUnavailable, name)
	}

	data, err = r.fetcher.Get(ctx, url, r.timeout)
	if err != nil {
		return nil, err
	}
	otf, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse font %q: %v", ErrAssetUnavailable, name, err)
	}

	if err := writeFileAtomic(r.dir, name, data); err != nil {
		// The parsed font is still usable for this process.
		u.Warn("Failed to cache font on disk", "path", path, "error", err)
	} else {
		u.Info("Downloaded font", "font", name, "path", path)
	}
	return otf, nil
}

// writeFileAtomic writes data to dir/name through a temp file and rename, so
// concurrent writers never leave a partially written file behind.
func writeFileAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
