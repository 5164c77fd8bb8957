package main

import (
	"context"
	"flag"
	"net/http"
	"os"

	"avatardriver/anim"
	"avatardriver/audio"
	"avatardriver/avatar"
	"avatardriver/config"
	"avatardriver/coordinator"
	"avatardriver/lipsync"
	"avatardriver/model"
	"avatardriver/pkg/pubsub"
	"avatardriver/render"

	"github.com/cdfmlr/ellipsis"
	"github.com/redis/go-redis/v9"
	"golang.org/x/exp/slog"
)

var (
	configFile    = flag.String("c", "config.yaml", "config file path (yaml)")
	genConfigFile = flag.String("genconfig", "", "generate an example config file and exit")
)

func main() {
	flag.Parse()

	if *genConfigFile != "" {
		c := config.ExampleConfig()
		if err := c.WriteToYaml(*genConfigFile); err != nil {
			slog.Error("[main] write example config failed", "err", err)
			os.Exit(1)
		}
		return
	}

	cfg := config.UseConfig()
	if err := cfg.ReadFromYaml(*configFile); err != nil {
		slog.Error("[main] read config failed", "file", *configFile, "err", err)
		os.Exit(1)
	}
	if err := cfg.Check(); err != nil {
		slog.Error("[main] bad config", "err", err)
		os.Exit(1)
	}

	// events: coordinator & loader -> (view subtitle) & (redis)
	events := pubsub.NewPubSubChan[model.Event]()

	// one pooled http fetcher for audio and assets alike
	fetcher := audio.NewHTTPFetcher(int64(cfg.Playback.FetchPoolSize))

	// avatarview: model, clips, frames
	view := avatar.NewView()
	loader := avatar.NewLoader(avatar.Assets{
		ModelURL: cfg.Avatar.Model,
		ClipURLs: cfg.Avatar.Clips,
	}, view, events, fetcher)

	// audio: avatarview speaker -> stream player
	controller := audio.NewController(cfg.Playback.AudioFormat)
	audioCache := audio.NewBufferCache()
	player := audio.NewStreamPlayer(controller,
		audio.NewPCM16Decoder(cfg.Playback.SampleRate), audioCache)

	// animation: motion crossfade + expression blend + blink + lipsync
	clips := anim.NewClipCache(cfg.Avatar.ClipCacheSize)
	motion := anim.NewMotionBlender(clips, cfg.Avatar.IdleMotion, cfg.Playback.GetTransition())
	expression := anim.NewExpressionBlender(cfg.Playback.GetExpressionTransition())
	for name, channels := range cfg.Avatar.Expressions {
		expression.Define(name, channels)
	}

	blinker := anim.NewBlinker(expression)

	analyzer := lipsync.NewAnalyzer(player, expression.SetChannel)
	if cfg.Lipsync.SilenceThreshold > 0 {
		analyzer.SilenceThreshold = cfg.Lipsync.SilenceThreshold
	}
	if cfg.Lipsync.Gain > 0 {
		analyzer.Gain = cfg.Lipsync.Gain
	}
	if cfg.Lipsync.Cap > 0 {
		analyzer.Cap = cfg.Lipsync.Cap
	}
	for _, ch := range lipsync.Channels() {
		expression.Reserve(ch)
	}

	// segments -> coordinator -> (audio) & (anim) & (events)
	coord := coordinator.NewCoordinator(player, motion, expression, clips, audioCache, events,
		coordinator.WithDwell(cfg.Playback.GetDwell()),
		coordinator.WithFetcher(fetcher),
		coordinator.WithClipSource(loader.ClipFor))

	// per-frame update order
	scheduler := render.NewScheduler(cfg.Playback.FrameRate)
	scheduler.Register(render.StageMotion, motion.Update)
	scheduler.Register(render.StageExtension, analyzer.Update)
	scheduler.Register(render.StageBlink, blinker.Update)
	scheduler.Register(render.StageExpression, expression.Update)
	scheduler.Register(render.StagePhysics, func(delta float64) {
		view.SendFrame(&avatar.Frame{
			Motions:  motion.Weights(),
			Channels: expression.Weights(),
		})
	})

	go serveWs(cfg.Listen.AvatarViewWs, view.WsHandler())
	go serveWs(cfg.Listen.AudioWs, controller.WsHandler())
	go SegmentsInFromHTTP(cfg.Listen.SegmentHTTP, coord)
	go fanoutEvents(events, view)

	go func() {
		loader.ShowModel()
		loader.Preload(context.Background(), clips)
	}()

	slog.Info("[main] avatardriver up",
		"segments", cfg.Listen.SegmentHTTP,
		"avatarview", cfg.Listen.AvatarViewWs,
		"audio", cfg.Listen.AudioWs)
	scheduler.Run(context.Background())
}

func serveWs(addr string, handler http.Handler) {
	if err := http.ListenAndServe(addr, handler); err != nil {
		slog.Error("[main] ws server exited", "addr", addr, "err", err)
		os.Exit(1)
	}
}

// fanoutEvents logs driver events, mirrors subtitles to the views
// and, when enabled, republishes everything onto a redis channel.
func fanoutEvents(events pubsub.PubSub[model.Event], view *avatar.View) {
	cfg := config.UseConfig()

	var redisPub pubsub.PubSub[model.Event]
	if enabled, err := cfg.Redis.IsEnabledAndValid(); enabled && err == nil {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Server})
		redisPub = pubsub.NewPubSubRedis[model.Event](cfg.Redis.Channel, rdb)
	}

	for result := range events.Subscribe() {
		if result.Err != nil {
			slog.Warn("[fanoutEvents] subscribe error", "err", result.Err)
			continue
		}
		evt := result.Ok

		switch evt.Kind {
		case model.EventSubtitle:
			slog.Info("[fanoutEvents] subtitle", "text", ellipsis.Centering(evt.Text, 17))
			view.ShowSubtitle(evt.Text)
		case model.EventError:
			slog.Warn("[fanoutEvents] error event", "text", evt.Text)
		case model.EventLoading:
			slog.Info("[fanoutEvents] loading", "loading", evt.Loading)
		}

		if redisPub != nil {
			if err := redisPub.Publish(evt); err != nil {
				slog.Warn("[fanoutEvents] publish to redis failed", "err", err)
			}
		}
	}
}
