package router_test

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/disintegration/imaging"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/trunov/imagecache/internal/cache"
	"github.com/trunov/imagecache/internal/config"
	"github.com/trunov/imagecache/internal/entities"
	"github.com/trunov/imagecache/internal/locator"
	"github.com/trunov/imagecache/internal/queue"
	"github.com/trunov/imagecache/internal/redisholder"
	"github.com/trunov/imagecache/internal/transport/handler"
	"github.com/trunov/imagecache/internal/transport/router"
	use_case "github.com/trunov/imagecache/internal/use-case"
	"github.com/trunov/imagecache/mocks"
)

type stack struct {
	srv   http.Handler
	store *mocks.MockObjectStore
	redis *miniredis.Miniredis
	png   []byte
}

func newStack(t *testing.T) *stack {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 20, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 12), G: uint8(y * 25), B: 40, A: 255})
		}
	}
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))

	store := new(mocks.MockObjectStore)
	store.On("List", mock.Anything, "abc123").Return([]entities.StoredObject{{Key: "abc123.png", Size: int64(buf.Len())}}, nil)
	store.On("List", mock.Anything, mock.Anything).Return([]entities.StoredObject{}, nil)
	store.On("Download", mock.Anything, "abc123.png").Return(buf.Bytes(), nil)

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	holder := redisholder.NewHolder(rc)

	uc := use_case.New(locator.New(store), store, cache.NewCache("test", holder), use_case.Options{TTL: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	producer := queue.Init(ctx, holder, config.WarmupConfig{
		Enabled:      true,
		Stream:       "test:warmup",
		Group:        "warmers",
		Consumer:     "c1",
		Workers:      1,
		MaxLen:       100,
		MaxAttempts:  1,
		BlockTimeout: 20 * time.Millisecond,
		BackoffBase:  10 * time.Millisecond,
	}, uc)

	h := handler.New(uc, map[string]handler.Pinger{"redis": holder}).WithWarmup(producer)

	return &stack{
		srv:   router.NewRouter(h, 5*time.Second),
		store: store,
		redis: mr,
		png:   buf.Bytes(),
	}
}

func (s *stack) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestImages_Original(t *testing.T) {
	s := newStack(t)

	rec := s.get(t, "/images/abc123")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "max-age=31536000", rec.Header().Get("Cache-Control"))
	assert.Equal(t, s.png, rec.Body.Bytes())
	assert.True(t, s.redis.Exists("test:img:abc123:wnone:hnone:qnone:fnone"))
}

func TestImages_ConvertedVariantIsCached(t *testing.T) {
	s := newStack(t)

	first := s.get(t, "/images/abc123?format=jpeg&quality=50")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "image/jpeg", first.Header().Get("Content-Type"))
	assert.Equal(t, []byte{0xFF, 0xD8}, first.Body.Bytes()[:2])
	assert.True(t, s.redis.Exists("test:img:abc123:wnone:hnone:q50:fjpeg"))

	second := s.get(t, "/images/abc123?format=jpeg&quality=50")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
	assert.Equal(t, "image/jpeg", second.Header().Get("Content-Type"))

	s.store.AssertNumberOfCalls(t, "Download", 1)
}

func TestImages_ResizeFillsMissingAxisFromSource(t *testing.T) {
	s := newStack(t)

	rec := s.get(t, "/images/abc123?width=10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	img, err := imaging.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 10, img.Bounds().Dx())
	assert.Equal(t, 10, img.Bounds().Dy())
}

func TestImages_Head(t *testing.T) {
	s := newStack(t)

	rec := httptest.NewRecorder()
	s.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/images/abc123", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Body.Bytes())
}

func TestImages_Errors(t *testing.T) {
	s := newStack(t)

	assert.Equal(t, http.StatusNotFound, s.get(t, "/images/missing").Code)
	assert.Equal(t, http.StatusBadRequest, s.get(t, "/images/abc123?width=abc").Code)
	assert.Equal(t, http.StatusBadRequest, s.get(t, "/images/abc123?format=tiff").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, httpDo(s.srv, http.MethodPost, "/images/abc123").Code)
}

func TestImages_WarmPopulatesCache(t *testing.T) {
	s := newStack(t)

	rec := httpDo(s.srv, http.MethodPost, "/images/abc123/warm?format=webp")
	require.Equal(t, http.StatusAccepted, rec.Code)

	assert.Eventually(t, func() bool {
		return s.redis.Exists("test:img:abc123:wnone:hnone:qnone:fwebp")
	}, 2*time.Second, 20*time.Millisecond)

	got := s.get(t, "/images/abc123?format=webp")
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, "image/webp", got.Header().Get("Content-Type"))
	s.store.AssertNumberOfCalls(t, "Download", 1)
}

func TestProbes(t *testing.T) {
	s := newStack(t)

	assert.Equal(t, http.StatusOK, s.get(t, "/healthz").Code)
	assert.Equal(t, http.StatusOK, s.get(t, "/readyz").Code)

	s.redis.Close()
	assert.Equal(t, http.StatusServiceUnavailable, s.get(t, "/readyz").Code)
}

func httpDo(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestImages_TimeoutAnswers504(t *testing.T) {
	uc := new(mocks.MockUseCase)
	uc.On("GetImage", mock.Anything, "slow", mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(entities.Variant{}, fmt.Errorf("download: %w", context.DeadlineExceeded))

	srv := router.NewRouter(handler.New(uc, nil), 20*time.Millisecond)

	rec := httpDo(srv, http.MethodGet, "/images/slow")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}
