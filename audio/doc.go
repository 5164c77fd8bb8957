// Package audio plays one logical utterance's sound as it streams in.
//
// StreamPlayer is the state machine: it fetches chunked audio over the
// network, decodes each chunk as it arrives, queues the chunks in
// order, and speaks them back-to-back through a Speaker. Stop halts
// the sound but keeps buffering, so a later Play of the same utterance
// resumes without a re-fetch.
//
// The Speaker shipped here (Controller) is a websocket server that
// sends play commands to the avatarview and tracks its start/end
// reports, so the driver knows the instant a chunk actually sounds.
package audio
