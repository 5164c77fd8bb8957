package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cdfmlr/ellipsis"
	"golang.org/x/exp/slog"
)

const DefaultChunkSize = 32 * 1024 // bytes per fetched chunk

// Speaker plays one decoded chunk at a time.
type Speaker interface {
	// Speak blocks until the chunk finishes sounding or ctx is
	// canceled. onStart fires at the instant audible output begins,
	// which may be well after the call (network, view-side queueing).
	Speak(ctx context.Context, id string, chunk *Chunk, onStart func()) error
}

// StreamPlayer plays one logical utterance as it streams in.
//
// Its state is the cross product of NetworkState {Idle, Fetching,
// Finished} and whether a playback session is running. Stop halts the
// sound but neither clears the chunk queue nor aborts an in-flight
// fetch, so a later Play of the same identity needs no re-fetch.
//
// At most one chunk is audibly playing at any instant; the read cursor
// only advances after a chunk finishes. The fetch goroutine writes
// chunks while the playback goroutine reads them, strictly in order.
type StreamPlayer struct {
	mu   sync.Mutex
	cond *sync.Cond // signals: chunk appended / fetch finished / stop

	speaker   Speaker
	decoder   Decoder
	cache     *BufferCache
	chunkSize int

	identity string
	netState NetworkState
	netErr   error
	queue    []*Chunk
	cursor   int

	playing    bool
	playCancel context.CancelFunc
	seq        uint64 // bumps on every Play; fences stale run goroutines

	cur atomic.Pointer[playingChunk] // for lip sync sampling

	logger *slog.Logger
}

type playingChunk struct {
	buf   *Buffer
	start time.Time
}

func NewStreamPlayer(speaker Speaker, decoder Decoder, cache *BufferCache) *StreamPlayer {
	p := &StreamPlayer{
		speaker:   speaker,
		decoder:   decoder,
		cache:     cache,
		chunkSize: DefaultChunkSize,
	}
	p.cond = sync.NewCond(&p.mu)
	p.logger = slog.With("streamPlayer", fmt.Sprintf("%p", p))
	return p
}

// Play plays the utterance identified by identity. Non-blocking: the
// returned channel reports start / end / err and is closed when the
// playback session is over (including when Stop cuts it short).
//
// Where the sound comes from depends on the player's state:
//   - same identity, fetch finished, unplayed chunks queued: resume
//     from the read cursor, no re-fetch;
//   - same identity, fetch still running: replay from the queue's
//     head, the fetch keeps filling the queue;
//   - cache holds a complete buffer for identity: play from cache;
//   - otherwise: start a fresh fetch, decoding chunks as they arrive.
func (p *StreamPlayer) Play(ctx context.Context, identity string, fetch FetchFunc) (<-chan PlayStatus, error) {
	if identity == "" {
		return nil, fmt.Errorf("empty utterance identity")
	}

	p.stopPlayback() // only one audio source at a time

	p.mu.Lock()

	switch {
	case identity == p.identity && p.netState == NetFinished && p.cursor < len(p.queue):
		p.logger.Info("[streamPlayer] resume from cursor",
			"identity", ellipsis.Ending(identity, 9), "cursor", p.cursor)

	case identity == p.identity && p.netState == NetFetching:
		p.cursor = 0
		p.logger.Info("[streamPlayer] replay buffered queue, fetch in flight",
			"identity", ellipsis.Ending(identity, 9), "buffered", len(p.queue))

	case identity == p.identity && p.netState == NetFinished:
		// fully played before: replay from the head
		p.cursor = 0

	default:
		if chunks, ok := p.cache.Get(identity); ok {
			p.identity = identity
			p.queue = chunks
			p.cursor = 0
			p.netState = NetFinished
			p.netErr = nil
			p.logger.Info("[streamPlayer] play from cache",
				"identity", ellipsis.Ending(identity, 9), "chunks", len(chunks))
		} else {
			if fetch == nil {
				p.mu.Unlock()
				return nil, fmt.Errorf("utterance %s not buffered and no fetcher given", identity)
			}
			p.identity = identity
			p.queue = nil
			p.cursor = 0
			p.netState = NetFetching
			p.netErr = nil
			p.logger.Info("[streamPlayer] new fetch",
				"identity", ellipsis.Ending(identity, 9))
			// Stop must not abort reception, so the fetch does not
			// inherit the playback session's ctx.
			go p.fetch(context.Background(), identity, fetch)
		}
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	p.playCancel = cancel
	p.playing = true
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	status := make(chan PlayStatus, 4)
	go p.run(sessionCtx, identity, seq, status)

	return status, nil
}

// Stop halts the active sound output immediately. The chunk queue
// stays, the in-flight fetch (if any) keeps receiving. Idempotent,
// safe in any state.
func (p *StreamPlayer) Stop() {
	p.stopPlayback()
}

// Playing reports whether a playback session is active.
func (p *StreamPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// State returns the network axis of the player state.
func (p *StreamPlayer) State() NetworkState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.netState
}

// Samples returns a live window of the chunk currently sounding, for
// the lip sync analyzer. Nil when nothing plays.
func (p *StreamPlayer) Samples() []float64 {
	pc := p.cur.Load()
	if pc == nil || pc.buf == nil {
		return nil
	}

	const window = 1024
	pos := int(time.Since(pc.start).Seconds() * float64(pc.buf.SampleRate))
	if pos < 0 || pos >= len(pc.buf.Samples) {
		return nil
	}
	end := pos + window
	if end > len(pc.buf.Samples) {
		end = len(pc.buf.Samples)
	}
	return pc.buf.Samples[pos:end]
}

func (p *StreamPlayer) stopPlayback() {
	p.mu.Lock()
	cancel := p.playCancel
	p.playCancel = nil
	p.playing = false
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.cond.Broadcast()
}

// fetch streams, chunks and decodes the utterance, appending to the
// queue in order. On clean completion the full buffer is committed to
// the cache. A partial buffer stays playable after an error.
func (p *StreamPlayer) fetch(ctx context.Context, identity string, fetch FetchFunc) {
	var chunks []*Chunk

	err := func() error {
		body, err := fetch(ctx)
		if err != nil {
			return err
		}
		defer body.Close()

		buf := make([]byte, p.chunkSize)
		for i := 0; ; i++ {
			n, readErr := io.ReadFull(body, buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])

				decoded, decErr := p.decoder.Decode(data)
				if decErr != nil {
					return fmt.Errorf("decode chunk %d: %w", i, decErr)
				}

				chunk := &Chunk{Index: i, Data: data, Buffer: decoded}
				chunks = append(chunks, chunk)
				p.appendChunk(identity, chunk)
			}
			if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
				return nil
			}
			if readErr != nil {
				return readErr
			}
		}
	}()

	if err == nil {
		p.cache.Put(identity, chunks)
	} else {
		p.logger.Warn("[streamPlayer] fetch failed",
			"identity", ellipsis.Ending(identity, 9), "buffered", len(chunks), "err", err)
	}

	p.mu.Lock()
	if p.identity == identity {
		p.netState = NetFinished
		p.netErr = err
	}
	p.mu.Unlock()
	p.cond.Broadcast()
}

func (p *StreamPlayer) appendChunk(identity string, chunk *Chunk) {
	p.mu.Lock()
	if p.identity == identity {
		p.queue = append(p.queue, chunk)
	}
	p.mu.Unlock()
	p.cond.Broadcast()
}

// run is the playback session: consume queued chunks in order from the
// cursor, speaking each one. seq fences this run against a newer Play:
// after a takeover its Speak may still return nil, and the stale run
// must not advance the new session's cursor.
func (p *StreamPlayer) run(ctx context.Context, identity string, seq uint64, status chan<- PlayStatus) {
	defer close(status)

	// wake the cond waiter when the session is canceled
	go func() {
		<-ctx.Done()
		p.cond.Broadcast()
	}()

	started := false
	for {
		chunk, ok := p.awaitChunk(ctx, identity, seq)
		if !ok {
			break
		}

		onStart := func() {
			p.cur.Store(&playingChunk{buf: chunk.Buffer, start: time.Now()})
			if !started {
				started = true
				status <- PlayStatusStart
			}
		}

		err := p.speaker.Speak(ctx, p.chunkID(identity, chunk), chunk, onStart)
		p.cur.Store(nil)

		if err != nil {
			if ctx.Err() != nil {
				return // stopped; channel just closes
			}
			p.logger.Error("[streamPlayer] speak failed",
				"identity", ellipsis.Ending(identity, 9), "chunk", chunk.Index, "err", err)
			status <- PlayStatusErr
			return
		}

		p.mu.Lock()
		if p.seq == seq {
			p.cursor++ // advance only after the chunk finished
		}
		p.mu.Unlock()
	}

	if ctx.Err() != nil {
		return
	}

	p.mu.Lock()
	netErr := p.netErr
	switched := p.seq != seq
	if p.seq == seq {
		p.playing = false
	}
	p.mu.Unlock()

	switch {
	case switched:
		// a newer Play took over; report nothing
	case netErr != nil:
		status <- PlayStatusErr
	default:
		status <- PlayStatusEnd
	}
}

// awaitChunk blocks until the chunk at the cursor exists, the
// utterance is over, or the session is canceled or superseded.
func (p *StreamPlayer) awaitChunk(ctx context.Context, identity string, seq uint64) (*Chunk, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if ctx.Err() != nil || p.identity != identity || p.seq != seq {
			return nil, false
		}
		if p.cursor < len(p.queue) {
			return p.queue[p.cursor], true
		}
		if p.netState == NetFinished {
			return nil, false
		}
		p.cond.Wait()
	}
}

func (p *StreamPlayer) chunkID(identity string, chunk *Chunk) string {
	return fmt.Sprintf("%s-%d", identity, chunk.Index)
}
