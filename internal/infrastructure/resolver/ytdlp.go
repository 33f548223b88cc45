package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"callplayer/internal/core/domain"
	"callplayer/internal/core/ports"
	"callplayer/pkg/tracing"

	"github.com/lrstanley/go-ytdlp"
	"go.uber.org/zap"
)

const streamFormat = "bestvideo+bestaudio/best"

type Config struct {
	// Binary is the yt-dlp executable; empty means "yt-dlp" from PATH.
	Binary  string
	Timeout time.Duration
}

// Runner executes yt-dlp against target and returns its stdout.
type Runner interface {
	Run(ctx context.Context, target string) (string, error)
}

type ytdlpRunner struct {
	binary string
}

func (r ytdlpRunner) Run(ctx context.Context, target string) (string, error) {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings()
	if r.binary != "" {
		cmd.SetExecutable(r.binary)
	}

	res, err := cmd.
		Format(streamFormat).
		NoPlaylist().
		Print("urls").
		Run(ctx, target)
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

type YTDLPResolver struct {
	runner  Runner
	timeout time.Duration
	logger  *zap.SugaredLogger
}

func NewYTDLPResolver(cfg Config, logger *zap.SugaredLogger) ports.MediaResolver {
	return NewResolverWithRunner(ytdlpRunner{binary: cfg.Binary}, cfg.Timeout, logger)
}

func NewResolverWithRunner(runner Runner, timeout time.Duration, logger *zap.SugaredLogger) *YTDLPResolver {
	return &YTDLPResolver{runner: runner, timeout: timeout, logger: logger}
}

// Resolve asks yt-dlp for direct stream URLs. yt-dlp prints the video URL
// first and the audio URL second; a muxed format prints a single URL that
// serves both.
func (r *YTDLPResolver) Resolve(ctx context.Context, query string) (*domain.ResolvedMedia, error) {
	ctx, span := tracing.TraceResolve(ctx, query)
	defer span.End()
	start := time.Now()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	target := Target(query)
	out, err := r.runner.Run(ctx, target)
	tracing.MeasureDuration(ctx, start, "resolve")
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("%w: yt-dlp failed for %q: %w", domain.ErrResolution, target, err)
	}

	var urls []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			urls = append(urls, line)
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: no stream for %q", domain.ErrResolution, query)
	}

	media := &domain.ResolvedMedia{Query: query, VideoURL: urls[0], AudioURL: urls[0]}
	if len(urls) > 1 {
		media.AudioURL = urls[1]
	}

	r.logger.Debugw("media resolved",
		"query", query,
		"target", target,
		"separate_audio", media.AudioURL != media.VideoURL,
	)
	return media, nil
}
