package capture

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/face-signin/internal/detector"
	"github.com/kozaktomas/face-signin/internal/facematch"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func countingDetector(calls *int) detector.Detector {
	return detector.Func(func(context.Context, []byte) facematch.DetectorOutput {
		*calls++
		return facematch.DetectorOutput{Faces: []facematch.DetectedFace{{Score: 0.9}}}
	})
}

// gradientPNG renders a horizontal gradient; reversed flips its direction.
func gradientPNG(t *testing.T, reversed bool) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8(x * 4)
			if reversed {
				v = uint8(255 - x*4)
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestThrottle_LimitsCallRate(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	calls := 0
	th := NewThrottle(countingDetector(&calls), Options{MinInterval: time.Second, Now: clock.Now})
	ctx := context.Background()

	out := th.Detect(ctx, []byte("frame"))
	require.NoError(t, out.Err)
	assert.Len(t, out.Faces, 1)

	out = th.Detect(ctx, []byte("frame"))
	assert.ErrorIs(t, out.Err, ErrThrottled)
	assert.Empty(t, out.Faces)

	clock.Advance(500 * time.Millisecond)
	assert.ErrorIs(t, th.Detect(ctx, []byte("frame")).Err, ErrThrottled)

	clock.Advance(500 * time.Millisecond)
	assert.NoError(t, th.Detect(ctx, []byte("frame")).Err)
	assert.Equal(t, 2, calls)
}

func TestThrottle_ThrottledFrameEncodesAsDetectorError(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	calls := 0
	th := NewThrottle(countingDetector(&calls), Options{MinInterval: time.Second, Now: clock.Now})
	_ = th.Detect(context.Background(), nil)

	enc, err := facematch.NewEncoder(facematch.ModeVector)
	require.NoError(t, err)
	outcome := enc.Encode(th.Detect(context.Background(), nil))

	assert.Equal(t, facematch.StatusDetectorError, outcome.Status)
	assert.ErrorIs(t, outcome.AsError(), ErrThrottled)
	assert.NotErrorIs(t, outcome.AsError(), facematch.ErrNoFace)
}

func TestThrottle_DefaultInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	calls := 0
	th := NewThrottle(countingDetector(&calls), Options{Now: clock.Now})
	ctx := context.Background()

	require.NoError(t, th.Detect(ctx, nil).Err)
	clock.Advance(DefaultMinInterval - time.Millisecond)
	assert.ErrorIs(t, th.Detect(ctx, nil).Err, ErrThrottled)
	clock.Advance(10 * time.Millisecond)
	assert.NoError(t, th.Detect(ctx, nil).Err)
}

func TestThrottle_SkipsUnchangedFrames(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	calls := 0
	th := NewThrottle(countingDetector(&calls), Options{
		MinInterval:   time.Second,
		FrameDistance: 5,
		Now:           clock.Now,
	})
	ctx := context.Background()
	frame := gradientPNG(t, false)

	require.NoError(t, th.Detect(ctx, frame).Err)

	clock.Advance(2 * time.Second)
	assert.ErrorIs(t, th.Detect(ctx, frame).Err, ErrFrameUnchanged)

	assert.NoError(t, th.Detect(ctx, gradientPNG(t, true)).Err)
	assert.Equal(t, 2, calls)
}

func TestThrottle_UndecodableFramesPassThrough(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	calls := 0
	th := NewThrottle(countingDetector(&calls), Options{
		MinInterval:   time.Second,
		FrameDistance: 5,
		Now:           clock.Now,
	})

	require.NoError(t, th.Detect(context.Background(), []byte("not an image")).Err)
	clock.Advance(time.Second)
	require.NoError(t, th.Detect(context.Background(), []byte("not an image")).Err)
	assert.Equal(t, 2, calls)
}

func TestThrottle_StreamsAreIndependent(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	calls := 0
	th := NewThrottle(countingDetector(&calls), Options{
		MinInterval:   time.Second,
		FrameDistance: 5,
		Now:           clock.Now,
	})
	lobby := WithStream(context.Background(), "lobby")
	garden := WithStream(context.Background(), "garden")
	frame := gradientPNG(t, false)

	require.NoError(t, th.Detect(lobby, frame).Err)
	assert.NoError(t, th.Detect(garden, frame).Err, "a second kiosk must not be throttled by the first")
	assert.ErrorIs(t, th.Detect(lobby, gradientPNG(t, true)).Err, ErrThrottled)
	assert.NoError(t, th.Detect(context.Background(), frame).Err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, th.Streams())

	clock.Advance(2 * time.Second)
	assert.ErrorIs(t, th.Detect(garden, frame).Err, ErrFrameUnchanged)
	assert.NoError(t, th.Detect(lobby, gradientPNG(t, true)).Err)
	assert.Equal(t, 4, calls)
}

func TestThrottle_PrunesIdleStreams(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	calls := 0
	th := NewThrottle(countingDetector(&calls), Options{MinInterval: time.Second, Now: clock.Now})

	for _, stream := range []string{"a", "b", "c"} {
		require.NoError(t, th.Detect(WithStream(context.Background(), stream), nil).Err)
	}
	assert.Equal(t, 3, th.Streams())

	clock.Advance(StreamIdleTimeout)
	require.NoError(t, th.Detect(WithStream(context.Background(), "a"), nil).Err)
	assert.Equal(t, 1, th.Streams())
}

func TestStreamFromContext(t *testing.T) {
	assert.Empty(t, StreamFromContext(context.Background()))
	assert.Equal(t, "kiosk-2", StreamFromContext(WithStream(context.Background(), "kiosk-2")))
}

func TestFrameHash(t *testing.T) {
	a, err := FrameHash(gradientPNG(t, false))
	require.NoError(t, err)
	b, err := FrameHash(gradientPNG(t, false))
	require.NoError(t, err)
	c, err := FrameHash(gradientPNG(t, true))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Greater(t, HammingDistance(a, c), 32)

	_, err = FrameHash([]byte("garbage"))
	assert.Error(t, err)
}

func TestHammingDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want int
	}{
		{"identical", 0, 0, 0},
		{"one bit", 1, 0, 1},
		{"all bits", 0xFFFFFFFFFFFFFFFF, 0, 64},
		{"alternating", 0xAAAAAAAAAAAAAAAA, 0x5555555555555555, 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HammingDistance(tt.a, tt.b))
		})
	}
}
