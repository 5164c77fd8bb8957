// Package wsforwarder forwards messages (from chan, etc) to WebSocket
// clients. The driver uses it to fan per-frame state and audio
// commands out to every connected avatarview.
package wsforwarder

import (
	"fmt"
	"sync"

	"golang.org/x/net/websocket"
)

// chan buffer size
const BufferSize = 8

type Forwarder interface {
	ForwardMessageTo(ws *websocket.Conn)
	ForwardMessageFrom(msgCh <-chan []byte)
	SendMessage(msg []byte)
}

// messageForwarder forwards messages to connected clients.
type messageForwarder struct {
	msgChans []chan []byte
	mu       sync.RWMutex // to protect msgChans
}

func NewMessageForwarder() Forwarder {
	return &messageForwarder{
		msgChans: []chan []byte{},
	}
}

// ForwardMessageTo the WebSocket connection.
//
// Use SendMessage to send messages.
//
// Block until the websocket connection is closed.
func (f *messageForwarder) ForwardMessageTo(ws *websocket.Conn) {
	ch := make(chan []byte, BufferSize)

	// add

	f.mu.Lock()
	f.msgChans = append(f.msgChans, ch)
	f.mu.Unlock()

	logger.Info("Start ForwardMessageTo",
		"ws.RemoteAddr()", ws.RemoteAddr(),
		"chan", ch)

	// forward

	forwardMessage(ch, ws) // 阻塞

	// clean up

	close(ch)

	f.mu.Lock()
	for i, c := range f.msgChans {
		if c == ch {
			f.msgChans = append(f.msgChans[:i], f.msgChans[i+1:]...)
			break
		}
	}
	f.mu.Unlock()

	logger.Info("Stop ForwardMessageTo", "ws.RemoteAddr()", ws.RemoteAddr(), "chan", ch)
}

// SendMessage to WebSocket clients.
//
// Block until message is sent to all clients.
func (f *messageForwarder) SendMessage(msg []byte) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, ch := range f.msgChans {
		if ch != nil {
			ch <- msg
		}
	}
}

// ForwardMessageFrom the message channel.
//
// Block until the message channel is closed.
func (f *messageForwarder) ForwardMessageFrom(msgCh <-chan []byte) {
	for msg := range msgCh {
		f.SendMessage(msg)
	}
}

// forwardMessage forwards messages from the message channel to the
// websocket connection. The channel is expected to carry JSON bytes:
//
//	`{"cmd": "frame", "data": {...}}`
func forwardMessage(msgCh <-chan []byte, ws *websocket.Conn) {
	for msg := range msgCh {
		_, err := ws.Write(msg)
		if err != nil {
			logger.Info(fmt.Sprintf("fwd msg to %s (chan %v) error: %s.", ws.RemoteAddr(), msgCh, err))
			break
		}
	}
	_ = ws.Close()
}
