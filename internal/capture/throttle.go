// Package capture guards the detector from being hammered by a live camera loop.
package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kozaktomas/face-signin/internal/detector"
	"github.com/kozaktomas/face-signin/internal/facematch"
)

// DefaultMinInterval is the minimum spacing between two detector calls.
const DefaultMinInterval = 1500 * time.Millisecond

var (
	// ErrThrottled is reported when a frame arrives before MinInterval elapsed.
	ErrThrottled = errors.New("capture throttled, try again shortly")
	// ErrFrameUnchanged is reported when a frame is nearly identical to the last processed one.
	ErrFrameUnchanged = errors.New("frame unchanged since last detection")
)

// StreamIdleTimeout is how long a capture stream's state is kept after its last frame.
const StreamIdleTimeout = 10 * time.Minute

// Options configure a Throttle.
type Options struct {
	MinInterval   time.Duration
	FrameDistance int // frames whose dHash differs by fewer bits are skipped; 0 disables the check
	Now           func() time.Time
}

type streamKey struct{}

// WithStream tags ctx with the capture stream a frame belongs to, typically one kiosk camera.
// Frames without a stream share a single default stream.
func WithStream(ctx context.Context, stream string) context.Context {
	return context.WithValue(ctx, streamKey{}, stream)
}

// StreamFromContext returns the stream set by WithStream, or "".
func StreamFromContext(ctx context.Context) string {
	stream, _ := ctx.Value(streamKey{}).(string)
	return stream
}

type streamState struct {
	limiter  *rate.Limiter
	lastHash uint64
	hasHash  bool
	lastSeen time.Time
}

// Throttle is a detector.Detector that forwards at most one frame per MinInterval for each
// capture stream.
type Throttle struct {
	next          detector.Detector
	interval      time.Duration
	frameDistance int
	now           func() time.Time

	mu        sync.Mutex
	streams   map[string]*streamState
	lastPrune time.Time
}

// NewThrottle wraps next with rate limiting and optional frame-change detection.
func NewThrottle(next detector.Detector, opts Options) *Throttle {
	if opts.MinInterval <= 0 {
		opts.MinInterval = DefaultMinInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Throttle{
		next:          next,
		interval:      opts.MinInterval,
		frameDistance: opts.FrameDistance,
		now:           opts.Now,
		streams:       make(map[string]*streamState),
	}
}

// Detect forwards the frame to the wrapped detector unless its stream is throttled or the frame
// is unchanged. Rejections are reported through DetectorOutput.Err so callers see a detector
// failure, never "no face".
func (t *Throttle) Detect(ctx context.Context, image []byte) facematch.DetectorOutput {
	hash, hashed := t.frameHash(image)
	now := t.now()

	t.mu.Lock()
	t.pruneLocked(now)
	st := t.streamLocked(StreamFromContext(ctx), now)
	if hashed && t.frameDistance > 0 && st.hasHash &&
		HammingDistance(hash, st.lastHash) < t.frameDistance {
		t.mu.Unlock()
		return facematch.DetectorOutput{Err: ErrFrameUnchanged}
	}
	if !st.limiter.AllowN(now, 1) {
		t.mu.Unlock()
		return facematch.DetectorOutput{Err: ErrThrottled}
	}
	if hashed {
		st.lastHash, st.hasHash = hash, true
	}
	t.mu.Unlock()

	return t.next.Detect(ctx, image)
}

// Streams returns the number of capture streams currently tracked.
func (t *Throttle) Streams() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.streams)
}

func (t *Throttle) streamLocked(key string, now time.Time) *streamState {
	st, ok := t.streams[key]
	if !ok {
		st = &streamState{limiter: rate.NewLimiter(rate.Every(t.interval), 1)}
		t.streams[key] = st
	}
	st.lastSeen = now
	return st
}

// pruneLocked drops idle streams at most once per StreamIdleTimeout.
func (t *Throttle) pruneLocked(now time.Time) {
	if now.Sub(t.lastPrune) < StreamIdleTimeout {
		return
	}
	t.lastPrune = now
	for key, st := range t.streams {
		if now.Sub(st.lastSeen) >= StreamIdleTimeout {
			delete(t.streams, key)
		}
	}
}

func (t *Throttle) frameHash(image []byte) (uint64, bool) {
	if t.frameDistance <= 0 {
		return 0, false
	}
	// Undecodable frames go through; the detector reports them properly.
	hash, err := FrameHash(image)
	if err != nil {
		return 0, false
	}
	return hash, true
}
