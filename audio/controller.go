package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"avatardriver/pkg/wsforwarder"

	"github.com/cdfmlr/ellipsis"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/exp/slog"
	"golang.org/x/net/websocket"
)

const (
	playbackStartTimeout = 10 * time.Second
	playbackEndTimeout   = 300 * time.Second

	// reports older than this are stale; drop them
	reportTTL = 5 * time.Minute
)

// Controller is the Speaker implementation backed by the avatarview:
// a websocket server that sends play commands and resolves the view's
// start/end reports.
type Controller interface {
	Speaker

	WsHandler() http.Handler

	// Reset asks the avatarview to reload and reconnect.
	Reset() error
}

type wsController struct {
	forwarder wsforwarder.Forwarder

	format string // media type of chunk payloads, e.g. "audio/wav"

	mu      sync.Mutex
	reports map[string]time.Time       // report key -> recv time
	waiters map[string][]chan struct{} // report key -> blocked waits

	logger *slog.Logger
}

func NewController(format string) Controller {
	c := &wsController{
		forwarder: wsforwarder.NewMessageForwarder(),
		format:    format,
		reports:   make(map[string]time.Time),
		waiters:   make(map[string][]chan struct{}),
	}
	c.logger = slog.With("audioController", fmt.Sprintf("%p", c))
	return c
}

func (c *wsController) WsHandler() http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		defer conn.Close()
		c.logger.Info("[audioController] avatarview connected",
			"remoteAddr", conn.Request().RemoteAddr)
		go c.recv(conn)
		c.forwarder.ForwardMessageTo(conn)
	})
}

// Speak implements Speaker: send the chunk as a playVocal command,
// fire onStart when the view reports start, return when it reports
// end. On cancel, tell the view to cut the sound.
func (c *wsController) Speak(ctx context.Context, id string, chunk *Chunk, onStart func()) error {
	track := &Track{
		ID:     id,
		Src:    Base64EncodeAudio(c.format, chunk.Data),
		Format: c.format,
	}

	if err := c.sendCmd(CmdPlayVocal, track); err != nil {
		return err
	}

	startCtx, cancelStart := context.WithTimeout(ctx, playbackStartTimeout)
	defer cancelStart()

	if err := c.wait(startCtx, ReportStart(id)); err != nil {
		c.stopSound()
		return fmt.Errorf("wait START report from avatarview: %w", err)
	}
	if onStart != nil {
		onStart()
	}

	endCtx, cancelEnd := context.WithTimeout(ctx, playbackEndTimeout)
	defer cancelEnd()

	if err := c.wait(endCtx, ReportEnd(id)); err != nil {
		c.stopSound()
		return fmt.Errorf("wait END report from avatarview: %w", err)
	}
	return nil
}

func (c *wsController) Reset() error {
	return c.sendCmd(CmdReset, nil)
}

// stopSound cuts whatever the view is playing. Best-effort.
func (c *wsController) stopSound() {
	if err := c.sendCmd(CmdStop, nil); err != nil {
		c.logger.Warn("[audioController] send stop cmd failed", "err", err)
	}
}

func (c *wsController) sendCmd(cmd string, data any) error {
	j, err := json.Marshal(Message{Cmd: cmd, Data: data})
	if err != nil {
		return err
	}

	if track, ok := data.(*Track); ok {
		c.logger.Info("[audioController] send cmd to avatarview",
			"cmd", cmd, "track", ellipsis.Ending(track.ID, 10))
	} else {
		c.logger.Info("[audioController] send cmd to avatarview", "cmd", cmd)
	}

	c.forwarder.SendMessage(j)
	return nil
}

// wait blocks until the report arrives (or already arrived) or ctx is
// done. Any one of multiple connected views reporting resolves it.
func (c *wsController) wait(ctx context.Context, report *Report) error {
	key := report.String()

	c.mu.Lock()
	if _, ok := c.reports[key]; ok {
		delete(c.reports, key)
		c.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	c.waiters[key] = append(c.waiters[key], ch)
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		c.mu.Lock()
		c.dropWaiter(key, ch)
		c.mu.Unlock()
		return ctx.Err()
	case <-ch:
		return nil
	}
}

// dropWaiter removes ch from the waiter list. Caller holds c.mu.
func (c *wsController) dropWaiter(key string, ch chan struct{}) {
	ws := c.waiters[key]
	for i, w := range ws {
		if w == ch {
			c.waiters[key] = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(c.waiters[key]) == 0 {
		delete(c.waiters, key)
	}
}

// recv handles messages (keepAlive | report) from one avatarview.
// Blocks until the connection closes.
func (c *wsController) recv(conn *websocket.Conn) {
	for {
		var msg Message
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			c.logger.Warn("[audioController] recv msg failed", "err", err)
			return
		}

		switch msg.Cmd {
		case "keepAlive":
			// nothing to do
		case "report":
			c.handleReport(&msg)
		default:
			c.logger.Warn("[audioController] recv unknown cmd", "cmd", msg.Cmd)
		}
	}
}

func (c *wsController) handleReport(msg *Message) {
	if msg.Data == nil {
		c.logger.Warn("[audioController] recv report failed: data is nil")
		return
	}

	var report Report
	if err := mapstructure.Decode(msg.Data, &report); err != nil {
		c.logger.Error("[audioController] recv report: decode failed", "err", err)
		return
	}

	if report.ID == "" {
		c.logger.Warn("[audioController] recv report failed: ID is empty")
		return
	}
	if report.Status != PlayStatusStart && report.Status != PlayStatusEnd {
		c.logger.Error("[audioController] report status is not start or end", "status", report.Status)
		return
	}

	c.logger.Info("[audioController] recv report from avatarview",
		"ID", ellipsis.Ending(report.ID, 10), "Status", report.Status)

	key := report.String()

	c.mu.Lock()
	defer c.mu.Unlock()

	if ws, ok := c.waiters[key]; ok {
		for _, ch := range ws {
			close(ch)
		}
		delete(c.waiters, key)
		return
	}

	// nobody waiting yet: stash it
	c.reports[key] = time.Now()
	for k, t := range c.reports {
		if time.Since(t) > reportTTL {
			delete(c.reports, k)
		}
	}
}
