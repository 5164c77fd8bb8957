package audio

import (
	"bytes"
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSpeaker plays each chunk for a fixed wall time and records order.
type fakeSpeaker struct {
	mu     sync.Mutex
	spoken []int // chunk indexes in play order
	delay  time.Duration
}

func (s *fakeSpeaker) Speak(ctx context.Context, id string, chunk *Chunk, onStart func()) error {
	if onStart != nil {
		onStart()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.delay):
	}
	s.mu.Lock()
	s.spoken = append(s.spoken, chunk.Index)
	s.mu.Unlock()
	return nil
}

func (s *fakeSpeaker) order() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.spoken))
	copy(out, s.spoken)
	return out
}

// slowBody feeds data in pieces with a delay between reads, emulating
// a chunked network fetch.
type slowBody struct {
	chunks [][]byte
	pos    int
	delay  time.Duration
}

func (b *slowBody) Read(p []byte) (int, error) {
	if b.pos >= len(b.chunks) {
		return 0, io.EOF
	}
	time.Sleep(b.delay)
	n := copy(p, b.chunks[b.pos])
	b.pos++
	return n, nil
}

func (b *slowBody) Close() error { return nil }

func pcmBytes(n int) []byte {
	return bytes.Repeat([]byte{0x00, 0x40}, n/2) // constant amplitude
}

func newTestPlayer(speaker Speaker) *StreamPlayer {
	p := NewStreamPlayer(speaker, NewPCM16Decoder(16000), NewBufferCache())
	p.chunkSize = 512
	return p
}

func countingFetch(calls *atomic.Int32, nChunks int, delay time.Duration) FetchFunc {
	return func(ctx context.Context) (io.ReadCloser, error) {
		calls.Add(1)
		chunks := make([][]byte, nChunks)
		for i := range chunks {
			chunks[i] = pcmBytes(512)
		}
		return &slowBody{chunks: chunks, delay: delay}, nil
	}
}

func drain(t *testing.T, status <-chan PlayStatus, timeout time.Duration) []PlayStatus {
	t.Helper()
	var got []PlayStatus
	deadline := time.After(timeout)
	for {
		select {
		case s, ok := <-status:
			if !ok {
				return got
			}
			got = append(got, s)
		case <-deadline:
			t.Fatalf("timed out waiting for status; got %v so far", got)
		}
	}
}

func TestStreamPlayer_PlaysChunksInOrder(t *testing.T) {
	speaker := &fakeSpeaker{delay: time.Millisecond}
	p := newTestPlayer(speaker)

	var calls atomic.Int32
	status, err := p.Play(context.Background(), "utt1", countingFetch(&calls, 4, time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	got := drain(t, status, 2*time.Second)
	if len(got) != 2 || got[0] != PlayStatusStart || got[1] != PlayStatusEnd {
		t.Fatalf("status = %v, want [start end]", got)
	}

	want := []int{0, 1, 2, 3}
	order := speaker.order()
	if len(order) != len(want) {
		t.Fatalf("spoke %v chunks, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("chunk order = %v, want %v", order, want)
		}
	}
}

func TestStreamPlayer_StopIsIdempotent(t *testing.T) {
	speaker := &fakeSpeaker{delay: 50 * time.Millisecond}
	p := newTestPlayer(speaker)

	// stop when fully idle: must not panic or error
	p.Stop()
	p.Stop()

	var calls atomic.Int32
	status, err := p.Play(context.Background(), "utt1", countingFetch(&calls, 4, time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	// let it start speaking, then stop twice
	time.Sleep(20 * time.Millisecond)
	p.Stop()
	p.Stop()

	// session channel closes without End
	got := drain(t, status, time.Second)
	for _, s := range got {
		if s == PlayStatusEnd {
			t.Errorf("got End after Stop; status = %v", got)
		}
	}
	if p.Playing() {
		t.Error("Playing() = true after Stop")
	}
}

func TestStreamPlayer_ResumeAfterStopDoesNotRefetch(t *testing.T) {
	speaker := &fakeSpeaker{delay: 5 * time.Millisecond}
	p := newTestPlayer(speaker)

	var calls atomic.Int32
	// slow fetch: 6 chunks, 30ms apart
	fetch := countingFetch(&calls, 6, 30*time.Millisecond)

	status, err := p.Play(context.Background(), "utt1", fetch)
	if err != nil {
		t.Fatal(err)
	}

	// stop mid-fetch
	time.Sleep(50 * time.Millisecond)
	p.Stop()
	drain(t, status, time.Second)

	if got := p.State(); got == NetIdle {
		t.Fatal("fetch should have kept running after Stop")
	}

	// play the same identity again, before the fetch would have finished
	status, err = p.Play(context.Background(), "utt1", fetch)
	if err != nil {
		t.Fatal(err)
	}
	got := drain(t, status, 2*time.Second)

	if n := calls.Load(); n != 1 {
		t.Errorf("fetch called %d times, want 1 (no re-fetch on resume)", n)
	}
	if len(got) == 0 || got[len(got)-1] != PlayStatusEnd {
		t.Errorf("status = %v, want trailing End", got)
	}

	// every chunk index 0..5 was eventually spoken in order within each pass
	order := speaker.order()
	last := -1
	seen := map[int]bool{}
	for _, idx := range order {
		if idx <= last && idx != 0 {
			t.Fatalf("chunks reordered: %v", order)
		}
		last = idx
		seen[idx] = true
	}
	for i := 0; i < 6; i++ {
		if !seen[i] {
			t.Errorf("chunk %d never spoken; order = %v", i, order)
		}
	}
}

// handoffSpeaker hands control to the test on every Speak: the test
// sees which chunk entered and decides when it finishes. It ignores
// ctx so a chunk can finish after a takeover by a newer Play.
type handoffSpeaker struct {
	enter chan int
	exit  chan struct{}
}

func (s *handoffSpeaker) Speak(ctx context.Context, id string, chunk *Chunk, onStart func()) error {
	s.enter <- chunk.Index
	<-s.exit
	if onStart != nil {
		onStart()
	}
	return nil
}

func TestStreamPlayer_StaleRunDoesNotAdvanceReplayCursor(t *testing.T) {
	speaker := &handoffSpeaker{enter: make(chan int), exit: make(chan struct{})}
	p := NewStreamPlayer(speaker, NewPCM16Decoder(16000), NewBufferCache())
	p.chunkSize = 512

	waitEnter := func(want int) {
		t.Helper()
		select {
		case got := <-speaker.enter:
			if got != want {
				t.Fatalf("chunk %d entered playback, want %d", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for chunk %d", want)
		}
	}

	var calls atomic.Int32
	status1, err := p.Play(context.Background(), "utt1", countingFetch(&calls, 2, 0))
	if err != nil {
		t.Fatal(err)
	}
	waitEnter(0) // first session speaking chunk 0

	// replay the same utterance while that chunk is still sounding
	status2, err := p.Play(context.Background(), "utt1", nil)
	if err != nil {
		t.Fatal(err)
	}

	// now let the superseded session's chunk finish: its completion
	// must not move the replay's cursor
	speaker.exit <- struct{}{}

	waitEnter(0) // replay starts at the head
	speaker.exit <- struct{}{}
	waitEnter(1) // and does not skip the next chunk
	speaker.exit <- struct{}{}

	// superseded session reports nothing after the takeover
	got1 := drain(t, status1, time.Second)
	if len(got1) != 1 || got1[0] != PlayStatusStart {
		t.Errorf("superseded status = %v, want [start]", got1)
	}

	got2 := drain(t, status2, 2*time.Second)
	if len(got2) != 2 || got2[0] != PlayStatusStart || got2[1] != PlayStatusEnd {
		t.Errorf("replay status = %v, want [start end]", got2)
	}
}

func TestStreamPlayer_PlaysFromCommittedCache(t *testing.T) {
	speaker := &fakeSpeaker{delay: time.Millisecond}
	cache := NewBufferCache()
	p := NewStreamPlayer(speaker, NewPCM16Decoder(16000), cache)
	p.chunkSize = 512

	var calls atomic.Int32
	status, _ := p.Play(context.Background(), "utt1", countingFetch(&calls, 3, time.Millisecond))
	drain(t, status, 2*time.Second)

	if _, ok := cache.Get("utt1"); !ok {
		t.Fatal("complete fetch was not committed to the cache")
	}

	// fresh player sharing the cache: no fetch needed at all
	p2 := NewStreamPlayer(speaker, NewPCM16Decoder(16000), cache)
	status, err := p2.Play(context.Background(), "utt1", nil)
	if err != nil {
		t.Fatal(err)
	}
	got := drain(t, status, 2*time.Second)
	if len(got) != 2 || got[1] != PlayStatusEnd {
		t.Errorf("cache playback status = %v, want [start end]", got)
	}
	if calls.Load() != 1 {
		t.Errorf("fetch calls = %d, want 1", calls.Load())
	}
}

func TestStreamPlayer_FetchErrorKeepsPartialPlayable(t *testing.T) {
	speaker := &fakeSpeaker{delay: time.Millisecond}
	p := newTestPlayer(speaker)

	fetch := func(ctx context.Context) (io.ReadCloser, error) {
		return &failingBody{good: pcmBytes(512)}, nil
	}

	status, err := p.Play(context.Background(), "utt1", fetch)
	if err != nil {
		t.Fatal(err)
	}
	got := drain(t, status, time.Second)

	// the one good chunk played, then the error surfaced
	if len(got) < 2 || got[0] != PlayStatusStart || got[len(got)-1] != PlayStatusErr {
		t.Errorf("status = %v, want [start ... err]", got)
	}
	if order := speaker.order(); len(order) != 1 {
		t.Errorf("spoke %v, want exactly the one buffered chunk", order)
	}
}

type failingBody struct {
	good []byte
	done bool
}

func (b *failingBody) Read(p []byte) (int, error) {
	if b.done {
		return 0, io.ErrClosedPipe
	}
	b.done = true
	return copy(p, b.good), nil
}

func (b *failingBody) Close() error { return nil }
