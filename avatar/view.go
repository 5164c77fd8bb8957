// Package avatar talks to the avatarview: the websocket client that
// owns the actual 3D scene. The driver computes per-frame weights and
// poses; the view rasterizes them.
package avatar

import (
	"encoding/json"
	"fmt"
	"net/http"

	"avatardriver/pkg/wsforwarder"

	"golang.org/x/exp/slog"
	"golang.org/x/net/websocket"
)

// Frame is one frame's worth of avatar state, sent to every connected
// view. Motion weights and facial channels come straight from the
// blenders; the view applies them to the loaded model and runs its
// own physics pass on top.
type Frame struct {
	Motions  map[string]float64 `json:"motions,omitempty"`
	Channels map[string]float64 `json:"channels,omitempty"`
}

// view commands
const (
	cmdFrame     = "frame"
	cmdLoadModel = "loadModel"
	cmdSubtitle  = "subtitle"
)

type viewMessage struct {
	Cmd  string `json:"cmd"`
	Data any    `json:"data,omitempty"`
}

// View forwards frames and commands to all connected avatarviews.
type View struct {
	forwarder wsforwarder.Forwarder
	logger    *slog.Logger
}

func NewView() *View {
	v := &View{forwarder: wsforwarder.NewMessageForwarder()}
	v.logger = slog.With("avatarView", fmt.Sprintf("%p", v))
	return v
}

func (v *View) WsHandler() http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		defer conn.Close()
		v.logger.Info("[avatarView] view connected",
			"remoteAddr", conn.Request().RemoteAddr)
		v.forwarder.ForwardMessageTo(conn)
	})
}

// SendFrame pushes one frame of weights. Called every tick from the
// render scheduler's last stage, after all blends committed.
func (v *View) SendFrame(frame *Frame) {
	v.send(viewMessage{Cmd: cmdFrame, Data: frame})
}

// ShowModel directs the views to load the base avatar binary.
// The binary format is the view's business.
func (v *View) ShowModel(url string) {
	v.logger.Info("[avatarView] show model", "url", url)
	v.send(viewMessage{Cmd: cmdLoadModel, Data: map[string]string{"url": url}})
}

// ShowSubtitle updates the subtitle line under the avatar.
// An empty text clears it.
func (v *View) ShowSubtitle(text string) {
	v.send(viewMessage{Cmd: cmdSubtitle, Data: map[string]string{"text": text}})
}

func (v *View) send(msg viewMessage) {
	j, err := json.Marshal(msg)
	if err != nil {
		v.logger.Error("[avatarView] marshal msg failed", "err", err)
		return
	}
	v.forwarder.SendMessage(j)
}
