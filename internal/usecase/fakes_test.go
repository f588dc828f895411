package usecase

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MhdAstro/video-to-frame/internal/domain/entity"
	"github.com/MhdAstro/video-to-frame/internal/domain/port"
	"github.com/MhdAstro/video-to-frame/internal/staging"
)

type fakeStager struct {
	err    error
	staged []string
}

func (s *fakeStager) Stage(_ context.Context, _ string, dir string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	f, err := os.CreateTemp(dir, "download-*.video")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.WriteString("video"); err != nil {
		return "", err
	}
	s.staged = append(s.staged, f.Name())
	return f.Name(), nil
}

type fakeDecoder struct {
	frames  []image.Image
	fps     float64
	openErr error
	onRead  func(index int)
}

func (d *fakeDecoder) Open(ctx context.Context, _ string) (port.VideoStream, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	return &fakeStream{ctx: ctx, frames: d.frames, fps: d.fps, onRead: d.onRead}, nil
}

// fakeStream fails reads with the context error once its context is done,
// like the ffmpeg pipe does when its process is killed.
type fakeStream struct {
	ctx    context.Context
	frames []image.Image
	fps    float64
	pos    int
	onRead func(index int)
}

func (s *fakeStream) FPS() float64 { return s.fps }

func (s *fakeStream) Skip() error {
	_, err := s.Read()
	return err
}

func (s *fakeStream) Read() (image.Image, error) {
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	if s.onRead != nil {
		s.onRead(s.pos)
	}
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}
	img := s.frames[s.pos]
	s.pos++
	return img, nil
}

func (s *fakeStream) Close() error { return nil }

func gray(v uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = v
		img.Pix[i+1] = v
		img.Pix[i+2] = v
		img.Pix[i+3] = 0xff
	}
	return img
}

func grays(values ...uint8) []image.Image {
	out := make([]image.Image, len(values))
	for i, v := range values {
		out[i] = gray(v)
	}
	return out
}

func testConfig() ExtractConfig {
	return ExtractConfig{
		Stride:         3,
		SceneThreshold: 20,
		ResizeWidth:    8,
		ResizeHeight:   8,
		MaxFrames:      2,
		DefaultFPS:     30,
		FrameBaseURL:   "http://localhost:8000/frame?path=",
		JPEGQuality:    90,
	}
}

func newTestExtractor(t *testing.T, stager port.SourceStager, decoder port.VideoDecoder, delay time.Duration, cfg ExtractConfig) (*ExtractKeyframesUseCase, *staging.Manager) {
	t.Helper()
	manager, err := staging.NewManager(t.TempDir(), delay, zap.NewNop())
	require.NoError(t, err)
	return NewExtractKeyframesUseCase(stager, decoder, manager, zap.NewNop(), cfg), manager
}

func rootEntries(t *testing.T, root string) []string {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

type fakeExtractor struct {
	ext *Extraction
	err error
}

func (f *fakeExtractor) Execute(_ context.Context, _ uuid.UUID, _ string) (*Extraction, error) {
	return f.ext, f.err
}

type fakeModerator struct {
	results []entity.ModerationResult
	err     error
	got     []entity.ModerationItem
	calls   int
}

func (m *fakeModerator) Moderate(_ context.Context, items []entity.ModerationItem) ([]entity.ModerationResult, error) {
	m.calls++
	m.got = items
	return m.results, m.err
}

type fakeRepo struct {
	mu   sync.Mutex
	runs map[uuid.UUID]entity.Run
	log  []entity.RunStatus
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{runs: make(map[uuid.UUID]entity.Run)}
}

func (r *fakeRepo) Create(_ context.Context, run *entity.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = *run
	return nil
}

func (r *fakeRepo) Update(_ context.Context, run *entity.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = *run
	r.log = append(r.log, run.Status)
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &run, nil
}

type fakeStorage struct {
	key  string
	data []byte
	err  error
}

func (s *fakeStorage) UploadEvidence(_ context.Context, key string, reader io.Reader, _ int64) error {
	if s.err != nil {
		return s.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return err
	}
	s.key = key
	s.data = buf.Bytes()
	return nil
}

type fakeNotifier struct {
	to        []string
	frameURLs []string
	calls     int
}

func (n *fakeNotifier) NotifyForbidden(_ context.Context, to []string, _ string, _ string, frameURLs []string) error {
	n.calls++
	n.to = to
	n.frameURLs = frameURLs
	return nil
}

type fakePublisher struct {
	verdicts [][]byte
	dlq      [][]byte
	reasons  []string
}

func (p *fakePublisher) PublishVerdict(_ context.Context, msg []byte) error {
	p.verdicts = append(p.verdicts, msg)
	return nil
}

func (p *fakePublisher) PublishToDLQ(_ context.Context, msg []byte, reason string) error {
	p.dlq = append(p.dlq, msg)
	p.reasons = append(p.reasons, reason)
	return nil
}
