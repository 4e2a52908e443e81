// Package source は CLI が受け取った入力画像の場所 (ローカルパス, gs://, s3://, http(s)://)
// からバイト列を読み込みます。
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/shouni/go-remote-io/pkg/remoteio"
	"golang.org/x/sync/errgroup"

	"github.com/shouni/gemini-recolor-kit/pkg/domain"
	"github.com/shouni/gemini-recolor-kit/pkg/generator"
)

// Scheme は入力の取得元の種類です。
type Scheme string

const (
	SchemeLocal Scheme = "file"
	SchemeGCS   Scheme = "gs"
	SchemeS3    Scheme = "s3"
	SchemeHTTP  Scheme = "http"
)

// ErrUnsupportedScheme は読み込み手段が設定されていない取得元を指定したときのエラーです。
var ErrUnsupportedScheme = errors.New("unsupported source scheme")

// Location は解析済みの入力の場所です。
type Location struct {
	Scheme Scheme
	Bucket string
	// Path はローカルパス、オブジェクトキー、または URL 全体です。
	Path string
}

// URI は gs://bucket/key の形式に戻した場所を返します。ローカルパスと URL は Path のままです。
func (l Location) URI() string {
	if l.Bucket == "" {
		return l.Path
	}
	return fmt.Sprintf("%s://%s/%s", l.Scheme, l.Bucket, l.Path)
}

// ParseLocation は入力文字列を Location に分解します。スキームのない文字列はローカルパスです。
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, fmt.Errorf("empty source location")
	}

	switch {
	case strings.HasPrefix(raw, "gs://"), strings.HasPrefix(raw, "s3://"):
		u, err := url.Parse(raw)
		if err != nil {
			return Location{}, fmt.Errorf("invalid object URL %q: %w", raw, err)
		}
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, fmt.Errorf("object URL %q must have both bucket and key", raw)
		}
		return Location{Scheme: Scheme(u.Scheme), Bucket: u.Host, Path: key}, nil
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return Location{Scheme: SchemeHTTP, Path: raw}, nil
	case strings.HasPrefix(raw, "file://"):
		return Location{Scheme: SchemeLocal, Path: strings.TrimPrefix(raw, "file://")}, nil
	case strings.Contains(raw, "://"):
		return Location{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, raw)
	default:
		return Location{Scheme: SchemeLocal, Path: raw}, nil
	}
}

// Loader は Location の種類に応じて読み込み手段を切り替えます。
// http(s):// は fetcher で、それ以外は remoteio.InputReader で読み込みます。
type Loader struct {
	fetcher     generator.HTTPClient
	reader      remoteio.InputReader
	remote      map[Scheme]bool
	validateURL generator.URLValidator
}

// Option は Loader の設定を変更します。
type Option func(*Loader)

// WithInputReader はローカルパスと remote に挙げたスキームの読み込みに使う InputReader を設定します。
// remote に含まれない gs:// / s3:// は ErrUnsupportedScheme になります。
func WithInputReader(r remoteio.InputReader, remote ...Scheme) Option {
	return func(l *Loader) {
		l.reader = r
		l.remote = make(map[Scheme]bool, len(remote))
		for _, s := range remote {
			l.remote[s] = true
		}
	}
}

// WithURLValidator は http(s):// の読み込み前に行う URL 検証を差し替えます。
func WithURLValidator(v generator.URLValidator) Option {
	return func(l *Loader) { l.validateURL = v }
}

// NewLoader は Loader を初期化します。
func NewLoader(fetcher generator.HTTPClient, opts ...Option) (*Loader, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	l := &Loader{
		fetcher:     fetcher,
		reader:      remoteio.NewUniversalInputReader(nil, nil),
		remote:      map[Scheme]bool{},
		validateURL: generator.IsSafeURL,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Load は1つの入力を読み込みます。
func (l *Loader) Load(ctx context.Context, raw string) ([]byte, error) {
	loc, err := ParseLocation(raw)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch loc.Scheme {
	case SchemeLocal:
		data, err = l.read(ctx, loc.Path)
	case SchemeHTTP:
		data, err = l.fetchURL(ctx, loc.Path)
	case SchemeGCS, SchemeS3:
		if !l.remote[loc.Scheme] {
			err = fmt.Errorf("%w: no reader configured for %s://", ErrUnsupportedScheme, loc.Scheme)
			break
		}
		data, err = l.read(ctx, loc.URI())
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedScheme, loc.Scheme)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", raw, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("failed to load %s: empty content", raw)
	}

	slog.DebugContext(ctx, "入力を読み込みました", "source", raw, "bytes", len(data))
	return data, nil
}

// LoadInputs はテンプレートと領域ごとのマスクを並行して読み込みます。
// いずれか1つでも失敗すれば全体が失敗します。
func (l *Loader) LoadInputs(ctx context.Context, template string, masks map[domain.Region]string) ([]byte, domain.MaskSet, error) {
	g, gctx := errgroup.WithContext(ctx)

	var templateData []byte
	g.Go(func() error {
		data, err := l.Load(gctx, template)
		if err != nil {
			return fmt.Errorf("template: %w", err)
		}
		templateData = data
		return nil
	})

	regions := make([]domain.Region, 0, len(masks))
	for r := range masks {
		regions = append(regions, r)
	}
	maskData := make([][]byte, len(regions))
	for i, r := range regions {
		g.Go(func() error {
			data, err := l.Load(gctx, masks[r])
			if err != nil {
				return fmt.Errorf("%s mask: %w", r, err)
			}
			maskData[i] = data
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var set domain.MaskSet
	if len(regions) > 0 {
		set = make(domain.MaskSet, len(regions))
		for i, r := range regions {
			set[r] = maskData[i]
		}
	}
	return templateData, set, nil
}

// Schemes は locations に含まれるスキームの集合を返します。不正な値は無視します。
func Schemes(locations ...string) map[Scheme]bool {
	out := make(map[Scheme]bool)
	for _, raw := range locations {
		if loc, err := ParseLocation(raw); err == nil {
			out[loc.Scheme] = true
		}
	}
	return out
}

func (l *Loader) fetchURL(ctx context.Context, rawURL string) ([]byte, error) {
	if safe, err := l.validateURL(rawURL); err != nil || !safe {
		if err == nil {
			err = errors.New("rejected by validator")
		}
		return nil, fmt.Errorf("unsafe URL: %w", err)
	}
	return l.fetcher.FetchBytes(ctx, rawURL)
}

func (l *Loader) read(ctx context.Context, path string) ([]byte, error) {
	rc, err := l.reader.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
