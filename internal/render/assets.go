package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // decoders for logo files
	_ "image/png"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
	_ "golang.org/x/image/webp"
	"resty.dev/v3"
)

var ErrAssetUnavailable = errors.New("asset unavailable")

// Source produces one image.
type Source interface {
	Load(ctx context.Context) (image.Image, error)
}

// FileSource decodes an image from disk.
type FileSource struct {
	Path string
}

func (s FileSource) Load(_ context.Context) (image.Image, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.Path, err)
	}
	return img, nil
}

// HTTPSource downloads an image.
type HTTPSource struct {
	URL    string
	Client *resty.Client
}

// NewHTTPClient builds the resty client shared by remote asset sources.
func NewHTTPClient(timeout time.Duration, retries int) *resty.Client {
	return resty.New().
		SetRetryCount(retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetTimeout(timeout)
}

func (s HTTPSource) Load(ctx context.Context) (image.Image, error) {
	client := s.Client
	if client == nil {
		client = NewHTTPClient(5*time.Second, 1)
		defer client.Close()
	}

	resp, err := client.R().SetContext(ctx).Get(s.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("fetch %s: status %d", s.URL, resp.StatusCode())
	}

	buff := new(bytes.Buffer)
	if _, err := buff.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	img, _, err := image.Decode(buff)
	if err != nil {
		return nil, fmt.Errorf("decode %s (%s): %w", s.URL, resp.Header().Get("Content-Type"), err)
	}
	return img, nil
}

// QRSource encodes Content as a QR code.
type QRSource struct {
	Content string
	Size    int
}

func (s QRSource) Load(_ context.Context) (image.Image, error) {
	if s.Content == "" {
		return nil, fmt.Errorf("%w: empty qr content", ErrAssetUnavailable)
	}
	q, err := qrcode.New(s.Content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	q.BackgroundColor = color.White
	q.ForegroundColor = color.Black

	size := s.Size
	if size <= 0 {
		size = 256
	}
	return q.Image(size), nil
}

// AssetLoader resolves named assets with a per-asset deadline. Successful
// loads are cached; failures are retried on the next render.
type AssetLoader struct {
	timeout time.Duration
	logger  *zerolog.Logger

	mu      sync.RWMutex
	sources map[string]Source
	cache   sync.Map
}

func NewAssetLoader(timeout time.Duration, logger *zerolog.Logger) *AssetLoader {
	if timeout <= 0 {
		timeout = time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &AssetLoader{
		timeout: timeout,
		logger:  logger,
		sources: make(map[string]Source),
	}
}

func (l *AssetLoader) Register(name string, src Source) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sources[name] = src
	l.cache.Delete(name)
}

func (l *AssetLoader) source(name string) (Source, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src, ok := l.sources[name]
	return src, ok
}

type loadResult struct {
	name string
	img  image.Image
	err  error
}

// Load resolves every name concurrently. Names that fail or time out are
// returned in missing; the render goes on without them.
func (l *AssetLoader) Load(ctx context.Context, names ...string) (Assets, []string) {
	assets := make(Assets, len(names))
	results := make(chan loadResult, len(names))
	pending := 0

	for _, name := range names {
		if cached, ok := l.cache.Load(name); ok {
			assets[name] = cached.(image.Image)
			continue
		}
		src, ok := l.source(name)
		if !ok {
			results <- loadResult{name: name, err: ErrAssetUnavailable}
			pending++
			continue
		}
		pending++
		go func(name string, src Source) {
			results <- l.loadOne(ctx, name, src)
		}(name, src)
	}

	var missing []string
	for i := 0; i < pending; i++ {
		res := <-results
		if res.err != nil {
			l.logger.Warn().Err(res.err).Str("asset", res.name).Msg("asset not loaded")
			missing = append(missing, res.name)
			continue
		}
		l.cache.Store(res.name, res.img)
		assets[res.name] = res.img
	}
	sort.Strings(missing)
	return assets, missing
}

func (l *AssetLoader) loadOne(ctx context.Context, name string, src Source) loadResult {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	done := make(chan loadResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- loadResult{name: name, err: fmt.Errorf("%w: panic: %v", ErrAssetUnavailable, rec)}
			}
		}()
		img, err := src.Load(ctx)
		done <- loadResult{name: name, img: img, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil && res.img == nil {
			res.err = ErrAssetUnavailable
		}
		return res
	case <-ctx.Done():
		return loadResult{name: name, err: fmt.Errorf("%w: %v", ErrAssetUnavailable, ctx.Err())}
	}
}
