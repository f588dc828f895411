package httpsource

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/MhdAstro/video-to-frame/internal/domain/entity"
)

const downloadPattern = "download-*.video"

// Stager streams a remote video to a local file in fixed-size chunks.
type Stager struct {
	client    *http.Client
	timeout   time.Duration
	chunkSize int
	logger    *zap.Logger
}

// NewStager returns a Stager whose connect, response-header and per-read
// timeouts are all bounded by timeout. There is no limit on total transfer time.
func NewStager(timeout time.Duration, chunkSize int, logger *zap.Logger) *Stager {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
	}
	return &Stager{
		client:    &http.Client{Transport: transport},
		timeout:   timeout,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// Stage downloads videoURL into a new file under dir and returns its path.
// On any failure the partial file is removed before the error is returned.
func (s *Stager) Stage(ctx context.Context, videoURL string, dir string) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var timedOut atomic.Bool
	idle := time.AfterFunc(s.timeout, func() {
		timedOut.Store(true)
		cancel()
	})
	defer idle.Stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return "", &entity.DownloadError{URL: videoURL, Err: fmt.Errorf("create request: %w", err)}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &entity.DownloadError{URL: videoURL, Err: s.explain(err, &timedOut)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &entity.DownloadError{URL: videoURL, StatusCode: resp.StatusCode}
	}

	f, err := os.CreateTemp(dir, downloadPattern)
	if err != nil {
		return "", &entity.DownloadError{URL: videoURL, Err: fmt.Errorf("create local file: %w", err)}
	}
	path := f.Name()

	body := &idleReader{r: resp.Body, timer: idle, timeout: s.timeout}
	buf := make([]byte, s.chunkSize)
	written, err := io.CopyBuffer(struct{ io.Writer }{f}, struct{ io.Reader }{body}, buf)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", &entity.DownloadError{URL: videoURL, Err: s.explain(err, &timedOut)}
	}

	s.logger.Debug("video staged",
		zap.String("video_url", videoURL),
		zap.String("path", path),
		zap.Int64("bytes", written),
	)
	return path, nil
}

func (s *Stager) explain(err error, timedOut *atomic.Bool) error {
	if timedOut.Load() {
		return fmt.Errorf("no data for %s: %w", s.timeout, err)
	}
	return err
}

// idleReader pushes the idle deadline forward every time data arrives.
type idleReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.timer.Reset(r.timeout)
	}
	return n, err
}
