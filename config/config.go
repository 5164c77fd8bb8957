package config

import (
	"errors"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// 只支持 yaml。字段尽量都填上，默认值能省则省。

type config struct {
	Avatar   AvatarConfig   // 模型与动作资源
	Playback PlaybackConfig // 音频分段播放
	Lipsync  LipsyncConfig  // 口型同步
	Listen   ListenConfig   // 这个程序会监听的一些地址
	Redis    RedisConfig    // 事件转发到 redis（可选）
}

// AvatarConfig 模型与动作资源
type AvatarConfig struct {
	Model         string                        // base avatar binary url
	Clips         map[string]string             // motion name -> url
	Expressions   map[string]map[string]float64 // expression name -> channel weights
	IdleMotion    string                        // clip the blender falls back to
	ClipCacheSize int                           // max resident motion clips
}

func (c *AvatarConfig) Check() error {
	if c.Model == "" {
		return errors.New("avatar model url is empty")
	}
	if c.IdleMotion == "" {
		return errors.New("avatar idle motion is empty")
	}
	if _, ok := c.Clips[c.IdleMotion]; !ok {
		return errors.New("idle motion has no clip url")
	}
	return nil
}

// PlaybackConfig 音频分段播放
type PlaybackConfig struct {
	AudioFormat      string // media type sent to the avatarview, e.g. "audio/wav"
	SampleRate       int    // PCM sample rate of fetched audio
	FrameRate        float64
	DwellMillis      int // hold time for marker-only / failed segments
	TransitionMillis int // motion crossfade duration
	ExpressionMillis int // expression blend duration
	FetchPoolSize    int
}

func (c *PlaybackConfig) GetDwell() time.Duration {
	return time.Duration(c.DwellMillis) * time.Millisecond
}

func (c *PlaybackConfig) GetTransition() time.Duration {
	return time.Duration(c.TransitionMillis) * time.Millisecond
}

func (c *PlaybackConfig) GetExpressionTransition() time.Duration {
	return time.Duration(c.ExpressionMillis) * time.Millisecond
}

// LipsyncConfig 口型同步
type LipsyncConfig struct {
	SilenceThreshold float64
	Gain             float64
	Cap              float64
}

// ListenConfig 这个程序会监听的一些地址
type ListenConfig struct {
	SegmentHTTP  string // segment ingest http server address
	AvatarViewWs string // avatarview frame websocket address
	AudioWs      string // avatarview audio websocket address
}

// RedisConfig 事件转发到 redis
type RedisConfig struct {
	Server   string // redis address
	Channel  string // pubsub channel for driver events
	Disabled bool
}

// IsEnabledAndValid 检查是否启用 & 可用
//
// 返回值: 是否启用（true 则启用） & 是否可用 (err == nil 时可用)
func (c *RedisConfig) IsEnabledAndValid() (enabled bool, err error) {
	if c.Disabled {
		return false, nil
	}
	enabled = true
	if c.Server == "" {
		err = errors.New("redis server address is empty")
	}
	if c.Channel == "" {
		err = errors.New("redis channel is empty")
	}
	return enabled, err
}

func (c *config) Read(src io.Reader) error {
	return yaml.NewDecoder(src).Decode(&c)
}

func (c *config) Write(dst io.Writer) error {
	return yaml.NewEncoder(dst).Encode(&c)
}

// ReadFromYaml 读取配置文件
func (c *config) ReadFromYaml(file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	return c.Read(f)
}

// WriteToYaml 写入配置文件
func (c *config) WriteToYaml(file string) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer f.Close()

	return c.Write(f)
}

// Check 检查配置是否合法
func (c *config) Check() error {
	if err := c.Avatar.Check(); err != nil {
		return err
	}
	if _, err := c.Redis.IsEnabledAndValid(); err != nil {
		return err
	}
	return nil
}

var configInstance = config{}

func UseConfig() *config {
	return &configInstance
}

// ExampleConfig 会生成一个示例配置，返回生成的配置。
func ExampleConfig() config {
	return config{
		Avatar: AvatarConfig{
			Model: "http://assets:9030/models/muli.vrm",
			Clips: map[string]string{
				"idle":  "http://assets:9030/motions/idle.vrma",
				"wave":  "http://assets:9030/motions/wave.vrma",
				"nod":   "http://assets:9030/motions/nod.vrma",
				"think": "http://assets:9030/motions/think.vrma",
			},
			Expressions: map[string]map[string]float64{
				"neutral": {},
				"happy":   {"smile": 1, "brow_up": 0.4},
				"sad":     {"frown": 0.8, "brow_down": 0.5},
				"angry":   {"frown": 1, "brow_down": 1},
			},
			IdleMotion:    "idle",
			ClipCacheSize: 8,
		},
		Playback: PlaybackConfig{
			AudioFormat:      "audio/wav",
			SampleRate:       24000,
			FrameRate:        60,
			DwellMillis:      1000,
			TransitionMillis: 500,
			ExpressionMillis: 400,
			FetchPoolSize:    8,
		},
		Lipsync: LipsyncConfig{
			SilenceThreshold: 0.04,
			Gain:             1.0,
			Cap:              0.7,
		},
		Listen: ListenConfig{
			SegmentHTTP:  "0.0.0.0:51080",
			AvatarViewWs: "0.0.0.0:51081",
			AudioWs:      "0.0.0.0:51082",
		},
		Redis: RedisConfig{
			Server:   "redis:6379",
			Channel:  "avatardriver.events",
			Disabled: true,
		},
	}
}
