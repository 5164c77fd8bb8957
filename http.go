package main

import (
	"context"
	"net/http"

	"avatardriver/coordinator"
	"avatardriver/model"

	"github.com/cdfmlr/ellipsis"
	"github.com/gin-gonic/gin"
	"golang.org/x/exp/slog"
)

// SegmentsInFromHTTP listens addr, waiting for audio segments to drive the
// avatar with:
//
//	POST /segments
//	Content-Type: application/json
//	[ { "sequence_index": 0, "marked_text": "Hello [State:happy] world", "audio_url": "http://..." }, ... ]
//
// replaces whatever is queued and starts a fresh session.
//
//	POST /segment
//	Content-Type: application/json
//	{ "sequence_index": 3, "marked_text": "...", "audio_url": "..." }
//
// appends to the current session (starts one if idle).
//
//	POST /stop
//
// interrupts playback.
func SegmentsInFromHTTP(addr string, coord *coordinator.Coordinator) {
	// no logger
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/segments", func(c *gin.Context) {
		var segments []*model.AudioSegment
		if err := c.BindJSON(&segments); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.Info("[SegmentsInFromHTTP] recv segments batch.", "count", len(segments))
		coord.SetSegments(segments)
		go coord.Play(context.Background())
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/segment", func(c *gin.Context) {
		var segment model.AudioSegment
		if err := c.BindJSON(&segment); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.Info("[SegmentsInFromHTTP] recv segment.",
			"seq", segment.SequenceIndex,
			"text", ellipsis.Centering(segment.MarkedText, 17))
		coord.AppendSegment(&segment)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/stop", func(c *gin.Context) {
		slog.Info("[SegmentsInFromHTTP] recv stop.")
		coord.Stop()
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.Run(addr)
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
