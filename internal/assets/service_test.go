package assets

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ar-asset-backend/internal/imagebuf"
	"ar-asset-backend/internal/index"
	"ar-asset-backend/internal/kv"
	"ar-asset-backend/internal/marker"
	"ar-asset-backend/internal/models"
	"ar-asset-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var owner = Session{OwnerID: "user-1"}

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// noisyPNG does not compress, so it can cross the optimization threshold.
func noisyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	var seed uint32 = 2463534242
	for i := range img.Pix {
		seed ^= seed << 13
		seed ^= seed >> 17
		seed ^= seed << 5
		img.Pix[i] = uint8(seed)
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func redUpload(t *testing.T) UploadInput {
	data := solidPNG(t, 100, 100, color.NRGBA{R: 255, A: 255})
	return UploadInput{Name: "red.png", ContentType: "image/png", Size: int64(len(data)), Data: data}
}

// flakyStore fails Put or Delete for paths containing a substring.
type flakyStore struct {
	*storage.MemoryStore
	failPut    string
	failDelete string
	puts       atomic.Int32
}

func (f *flakyStore) Put(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	f.puts.Add(1)
	if f.failPut != "" && strings.Contains(path, f.failPut) {
		return "", &storage.Error{Op: storage.OpPut, Path: path, Err: errors.New("network down")}
	}
	return f.MemoryStore.Put(ctx, path, data, contentType)
}

func (f *flakyStore) Delete(ctx context.Context, path string) error {
	if f.failDelete != "" && strings.Contains(path, f.failDelete) {
		return &storage.Error{Op: storage.OpDelete, Path: path, Err: errors.New("network down")}
	}
	return f.MemoryStore.Delete(ctx, path)
}

type synthFunc func([]byte) ([]byte, error)

func (f synthFunc) ComposeBytes(data []byte) ([]byte, error) { return f(data) }

type brokenIndex struct {
	AssetIndex
	err error
}

func (b brokenIndex) Append(context.Context, string, models.Asset) error { return b.err }

type recordedEvent struct {
	owner, event string
	payload      map[string]any
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (r *recorder) PublishAssetEvent(_ context.Context, ownerID, event string, payload map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{ownerID, event, payload})
	return r.err
}

type fixture struct {
	store  *flakyStore
	index  *index.Index
	events *recorder
	svc    *Service
}

func newFixture(t *testing.T, synth MarkerSynthesizer, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:  &flakyStore{MemoryStore: storage.NewMemoryStore("https://cdn.test")},
		index:  index.New(kv.NewMemory()),
		events: &recorder{},
	}
	if synth == nil {
		synth = marker.Default()
	}
	var n atomic.Int32
	base := []Option{
		WithEvents(f.events),
		WithClock(func() time.Time { return time.UnixMilli(1_700_000_000_000) }),
		WithIDGenerator(func() string { return fmt.Sprintf("a%07d", n.Add(1)) }),
	}
	f.svc = NewService(f.store, f.index, synth, append(base, opts...)...)
	return f
}

func TestUpload_RedSquareRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	a, err := f.svc.Upload(ctx, owner, redUpload(t))
	require.NoError(t, err)

	assert.Equal(t, "a0000001", a.ID)
	assert.Equal(t, "user-1", a.OwnerID)
	assert.Equal(t, "red.png", a.Name)
	assert.Equal(t, "user-1/user-1_1700000000000_a0000001.png", a.FilePath)
	assert.Equal(t, "https://cdn.test/"+a.FilePath, a.FileURL)
	assert.Equal(t, models.MarkerCustom, a.MarkerType)
	assert.Equal(t, "user-1/markers/a0000001.png", a.MarkerPath)
	assert.Equal(t, "https://cdn.test/user-1/markers/a0000001.png", a.MarkerURL)
	assert.False(t, a.CreatedAt.IsZero())

	obj, ok := f.store.Get(a.MarkerPath)
	require.True(t, ok)
	assert.Equal(t, "image/png", obj.ContentType)
	m, err := imagebuf.Decode(obj.Data)
	require.NoError(t, err)
	assert.Equal(t, 512, m.Width())
	assert.Equal(t, 512, m.Height())

	list, err := f.svc.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)
	assert.True(t, list[0].CreatedAt.Equal(a.CreatedAt))

	require.Len(t, f.events.events, 1)
	assert.Equal(t, EventAssetCreated, f.events.events[0].event)
	assert.Equal(t, "user-1", f.events.events[0].owner)
}

func TestUpload_NewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	first, err := f.svc.Upload(ctx, owner, redUpload(t))
	require.NoError(t, err)
	second, err := f.svc.Upload(ctx, owner, redUpload(t))
	require.NoError(t, err)

	list, err := f.svc.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.NotEqual(t, first.FilePath, second.FilePath)
}

func TestUpload_Validation(t *testing.T) {
	ctx := context.Background()
	good := redUpload(t)

	cases := map[string]UploadInput{
		"gif":        {Name: "a.gif", ContentType: "image/gif", Data: good.Data},
		"empty type": {Name: "a", Data: good.Data},
		"no data":    {Name: "a.png", ContentType: "image/png"},
		"declared too large": {
			Name: "a.png", ContentType: "image/png", Size: MaxUploadSize + 1, Data: good.Data,
		},
		"actual too large": {
			Name: "a.png", ContentType: "image/png", Data: make([]byte, MaxUploadSize+1),
		},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, nil)
			_, err := f.svc.Upload(ctx, owner, in)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, strings.Contains(name, "too large"), errors.Is(err, ErrTooLarge))
			assert.Zero(t, f.store.puts.Load())
			assert.Empty(t, f.events.events)
		})
	}
}

func TestUpload_JPGAliasIsNormalized(t *testing.T) {
	f := newFixture(t, synthFunc(func([]byte) ([]byte, error) { return nil, errors.New("skip") }))
	in := redUpload(t)
	in.ContentType = "image/jpg"

	a, err := f.svc.Upload(context.Background(), owner, in)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(a.FilePath, ".jpg"))
	obj, ok := f.store.Get(a.FilePath)
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", obj.ContentType)
}

func TestUpload_Unauthenticated(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Upload(context.Background(), Session{OwnerID: "  "}, redUpload(t))
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = f.svc.List(context.Background(), Session{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestUpload_OriginalStoreFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.store.failPut = "user-1_"

	_, err := f.svc.Upload(ctx, owner, redUpload(t))
	require.Error(t, err)
	assert.True(t, storage.IsStoreError(err))

	var se *storage.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, storage.OpPut, se.Op)

	list, err := f.svc.List(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, f.store.Len())
}

func TestUpload_SynthesisFailureDowngrades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, synthFunc(func([]byte) ([]byte, error) {
		return nil, marker.ErrCanvasUnavailable
	}))

	a, err := f.svc.Upload(ctx, owner, redUpload(t))
	require.NoError(t, err)
	assert.Equal(t, models.MarkerDefaultPreset, a.MarkerType)
	assert.Empty(t, a.MarkerPath)
	assert.Empty(t, a.MarkerURL)
	assert.NotEmpty(t, a.FileURL)

	list, err := f.svc.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.MarkerDefaultPreset, list[0].MarkerType)
}

func TestUpload_SynthesisPanicDowngrades(t *testing.T) {
	f := newFixture(t, synthFunc(func([]byte) ([]byte, error) { panic("canvas gone") }))

	a, err := f.svc.Upload(context.Background(), owner, redUpload(t))
	require.NoError(t, err)
	assert.Equal(t, models.MarkerDefaultPreset, a.MarkerType)
}

func TestUpload_UndecodableImageStillIndexed(t *testing.T) {
	f := newFixture(t, nil)
	in := UploadInput{Name: "x.png", ContentType: "image/png", Data: []byte("not really a png")}

	a, err := f.svc.Upload(context.Background(), owner, in)
	require.NoError(t, err)
	assert.Equal(t, models.MarkerDefaultPreset, a.MarkerType)
	assert.Equal(t, 1, f.store.Len())
}

func TestUpload_MarkerStoreFailureDowngrades(t *testing.T) {
	f := newFixture(t, nil)
	f.store.failPut = "/markers/"

	a, err := f.svc.Upload(context.Background(), owner, redUpload(t))
	require.NoError(t, err)
	assert.Equal(t, models.MarkerDefaultPreset, a.MarkerType)
	assert.Empty(t, a.MarkerPath)
	assert.Equal(t, 1, f.store.Len())
}

func TestUpload_IndexFailureReportsErrorAndLeavesBlobs(t *testing.T) {
	f := newFixture(t, nil)
	boom := fmt.Errorf("%w: disk full", index.ErrIndex)
	f.svc.index = brokenIndex{AssetIndex: f.index, err: boom}

	_, err := f.svc.Upload(context.Background(), owner, redUpload(t))
	assert.ErrorIs(t, err, index.ErrIndex)
	assert.Equal(t, 2, f.store.Len())
	assert.Empty(t, f.events.events)
}

func TestUpload_CancelledBeforeIndexing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newFixture(t, synthFunc(func([]byte) ([]byte, error) {
		cancel()
		return nil, errors.New("interrupted")
	}))

	_, err := f.svc.Upload(ctx, owner, redUpload(t))
	assert.ErrorIs(t, err, context.Canceled)

	list, err := f.svc.List(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpload_OptimizesLargeImages(t *testing.T) {
	data := noisyPNG(t, 1200, 700)
	require.Greater(t, len(data), OptimizeThreshold)
	require.LessOrEqual(t, len(data), MaxUploadSize)

	f := newFixture(t, synthFunc(func([]byte) ([]byte, error) { return nil, errors.New("skip") }))
	a, err := f.svc.Upload(context.Background(), owner, UploadInput{
		Name: "noise.png", ContentType: "image/png", Data: data,
	})
	require.NoError(t, err)

	obj, ok := f.store.Get(a.FilePath)
	require.True(t, ok)
	stored, err := imagebuf.Decode(obj.Data)
	require.NoError(t, err)
	assert.Equal(t, MaxDimension, stored.Width())
	assert.Less(t, stored.Height(), 700)
}

func TestUpload_SmallImagesAreStoredVerbatim(t *testing.T) {
	f := newFixture(t, nil)
	in := redUpload(t)

	a, err := f.svc.Upload(context.Background(), owner, in)
	require.NoError(t, err)
	obj, ok := f.store.Get(a.FilePath)
	require.True(t, ok)
	assert.Equal(t, in.Data, obj.Data)
}

func TestUpload_ConcurrentSameOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, synthFunc(func([]byte) ([]byte, error) { return nil, errors.New("skip") }))

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Upload(ctx, owner, redUpload(t))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	list, err := f.svc.List(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, list, n)
	assert.Equal(t, n, f.store.Len())
}

func TestUpload_EventFailureIsIgnored(t *testing.T) {
	f := newFixture(t, nil)
	f.events.err = errors.New("realtime down")

	_, err := f.svc.Upload(context.Background(), owner, redUpload(t))
	assert.NoError(t, err)
}

func TestDelete_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	a, err := f.svc.Upload(ctx, owner, redUpload(t))
	require.NoError(t, err)
	require.Equal(t, 2, f.store.Len())

	in := DeleteInput{ID: a.ID, OriginalPath: a.FilePath, MarkerPath: a.MarkerPath}
	report, err := f.svc.Delete(ctx, owner, in)
	require.NoError(t, err)
	assert.False(t, report.Partial())
	assert.Zero(t, f.store.Len())

	report, err = f.svc.Delete(ctx, owner, in)
	require.NoError(t, err)
	assert.False(t, report.Partial())

	list, err := f.svc.List(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDelete_LooksUpPaths(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	a, err := f.svc.Upload(ctx, owner, redUpload(t))
	require.NoError(t, err)

	_, err = f.svc.Delete(ctx, owner, DeleteInput{ID: a.ID})
	require.NoError(t, err)
	assert.Zero(t, f.store.Len())

	_, err = f.svc.Delete(ctx, owner, DeleteInput{ID: "never-existed"})
	assert.NoError(t, err)
}

func TestDelete_BlobFailureIsPartial(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	a, err := f.svc.Upload(ctx, owner, redUpload(t))
	require.NoError(t, err)
	f.store.failDelete = "user-1_"

	report, err := f.svc.Delete(ctx, owner, DeleteInput{ID: a.ID})
	require.NoError(t, err)
	require.True(t, report.Partial())
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], a.FilePath)

	_, ok := f.store.Get(a.MarkerPath)
	assert.False(t, ok)
	list, err := f.svc.List(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, list)

	events := f.events.events
	assert.Equal(t, EventAssetDeleted, events[len(events)-1].event)
}

func TestDelete_RejectsForeignPaths(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Delete(context.Background(), owner, DeleteInput{ID: "x", OriginalPath: "user-2/user-2_1.png"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.Delete(context.Background(), owner, DeleteInput{ID: "x", MarkerPath: "user-10/markers/x.png"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.Delete(context.Background(), owner, DeleteInput{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDelete_RejectsTraversalPaths(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	_, err := f.store.Put(ctx, "user-2/x.png", []byte("theirs"), "image/png")
	require.NoError(t, err)

	for _, p := range []string{
		"user-1/../user-2/x.png",
		"user-1/./../user-2/x.png",
		"user-1//x.png",
		"user-1/markers/../../user-2/x.png",
	} {
		_, err := f.svc.Delete(ctx, owner, DeleteInput{ID: "x", OriginalPath: p})
		assert.ErrorIs(t, err, ErrValidation, p)
		_, err = f.svc.Delete(ctx, owner, DeleteInput{ID: "x", OriginalPath: "user-1/a.png", MarkerPath: p})
		assert.ErrorIs(t, err, ErrValidation, p)
	}

	_, ok := f.store.Get("user-2/x.png")
	assert.True(t, ok)
}

func TestViewer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, WithMarkerPreset("kanji"))

	custom, err := f.svc.Upload(ctx, owner, redUpload(t))
	require.NoError(t, err)

	v, err := f.svc.Viewer(ctx, owner, custom.ID)
	require.NoError(t, err)
	assert.Equal(t, ViewerPatternType, v.MarkerType)
	assert.Equal(t, custom.MarkerURL, v.MarkerURL)
	assert.Equal(t, custom.FileURL, v.AssetURL)
	assert.Equal(t, "red.png", v.AssetName)

	f.store.failPut = "/markers/"
	preset, err := f.svc.Upload(ctx, owner, redUpload(t))
	require.NoError(t, err)
	v, err = f.svc.Viewer(ctx, owner, preset.ID)
	require.NoError(t, err)
	assert.Equal(t, "kanji", v.MarkerType)
	assert.Empty(t, v.MarkerURL)

	_, err = f.svc.Viewer(ctx, owner, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClearAndPing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.svc.Upload(ctx, owner, redUpload(t))
	require.NoError(t, err)
	require.NoError(t, f.svc.Clear(ctx, owner))

	list, err := f.svc.List(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, 2, f.store.Len())

	assert.NoError(t, f.svc.Ping(ctx))
	assert.Equal(t, "https://cdn.test/a/b.png", f.svc.PublicURL("a/b.png"))
}

func TestPreview(t *testing.T) {
	f := newFixture(t, nil)

	out, err := f.svc.Preview(context.Background(), redUpload(t))
	require.NoError(t, err)
	m, err := imagebuf.Decode(out)
	require.NoError(t, err)
	assert.Equal(t, 512, m.Width())
	assert.Zero(t, f.store.Len())

	_, err = f.svc.Preview(context.Background(), UploadInput{ContentType: "text/plain", Data: []byte("x")})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Preview(context.Background(), UploadInput{ContentType: "image/png", Data: []byte("x")})
	assert.ErrorIs(t, err, imagebuf.ErrDecode)
}

// hugeHeaderPNG is a few hundred bytes on disk but declares w x h pixels.
func hugeHeaderPNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := solidPNG(t, 1, 1, color.Black)
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestPreview_RejectsOversizedDimensions(t *testing.T) {
	f := newFixture(t, nil)
	in := UploadInput{Name: "big.png", ContentType: "image/png", Data: hugeHeaderPNG(t, 8000, 8000)}

	_, err := f.svc.Preview(context.Background(), in)
	require.ErrorIs(t, err, imagebuf.ErrDecode)
	assert.Contains(t, err.Error(), "pixel limit")
}

func TestUpload_OversizedDimensionsDowngrade(t *testing.T) {
	f := newFixture(t, nil)
	in := UploadInput{Name: "big.png", ContentType: "image/png", Data: hugeHeaderPNG(t, 8000, 8000)}

	a, err := f.svc.Upload(context.Background(), owner, in)
	require.NoError(t, err)
	assert.Equal(t, models.MarkerDefaultPreset, a.MarkerType)
	assert.Empty(t, a.MarkerURL)
	assert.Equal(t, 1, f.store.Len())
}
