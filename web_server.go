package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

////////////////////////////////////////////////////////////////////////////////
// Web服务模块
////////////////////////////////////////////////////////////////////////////////

// WebServer Web服务器
type WebServer struct {
	cli     *CLIExecutor
	opts    CLIOptions
	scanner *ScriptScanner
	tracker *PlaybackController

	mutex   sync.RWMutex
	session *Session
	cfg     Config
}

// NewWebServer 创建新的Web服务器
func NewWebServer(cli *CLIExecutor, opts CLIOptions, session *Session, cfg Config) *WebServer {
	return &WebServer{
		cli:     cli,
		opts:    opts,
		scanner: NewScriptScanner(),
		tracker: playbackController,
		session: session,
		cfg:     cfg,
	}
}

// StartWebServer 启动Web服务器
func (ws *WebServer) StartWebServer() error {
	// 设置Gin为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)
	r := ws.setupRouter()

	listen := ws.currentConfig().Server.Listen
	fmt.Println("💡 灯光秀Web服务启动成功!")
	fmt.Printf("🌐 监听地址: %s\n", listen)

	if err := r.Run(listen); err != nil {
		return errors.Wrap(err, "Web服务启动失败")
	}
	return nil
}

// setupRouter 注册中间件和路由
func (ws *WebServer) setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// 允许跨域
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// API路由
	r.GET("/api/show", ws.getShow)
	r.POST("/api/show/load", ws.loadShow)
	r.GET("/api/scripts", ws.getScripts)
	r.GET("/api/symbols", ws.getSymbols)
	r.GET("/api/schedule", ws.getSchedule)
	r.GET("/api/playback/status", ws.getPlaybackStatus)
	r.POST("/api/playback/start", ws.startPlayback)
	r.POST("/api/playback/go", ws.goPlayback)
	r.POST("/api/playback/stop", ws.stopPlayback)

	return r
}

func (ws *WebServer) current() (*Session, Config) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()
	return ws.session, ws.cfg
}

func (ws *WebServer) currentConfig() Config {
	_, cfg := ws.current()
	return cfg
}

func (ws *WebServer) scriptDir() string {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()
	if ws.cfg.Server.ScriptDir != "" {
		return ws.cfg.Server.ScriptDir
	}
	return filepath.Dir(ws.opts.ScriptFile)
}

func (ws *WebServer) scriptFile() string {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()
	return ws.opts.ScriptFile
}

func (ws *WebServer) isRunning() bool {
	ws.tracker.mutex.RLock()
	defer ws.tracker.mutex.RUnlock()
	return ws.tracker.isRunning
}

// scheduleMeta 当前时间表的元数据
func scheduleMeta(s *Session) ScheduleMeta {
	meta := ScheduleMeta{
		MusicFile:     s.MusicFile,
		IdleAnimation: s.IdleAnimation,
		TotalEvents:   s.Schedule.Len(),
		DurationSec:   s.Schedule.Duration(),
		StartCue:      s.Cue.Start,
		Warnings:      len(s.Warnings),
		GeneratedAt:   s.Epoch,
	}
	if s.Cue.HasEnd {
		end := s.Cue.End
		meta.EndCue = &end
	}
	return meta
}

// getShow 演出概况
func (ws *WebServer) getShow(c *gin.Context) {
	session, cfg := ws.current()

	c.JSON(http.StatusOK, gin.H{
		"script":       ws.scriptFile(),
		"device":       orDefault(session.DeviceName, "dry-run"),
		"start_offset": session.StartOffset,
		"auto_start":   cfg.Playback.AutoStart,
		"meta":         scheduleMeta(session),
		"warnings":     session.Warnings,
		"commands":     len(session.Commands),
		"symbols":      session.Symbols.Len(),
		"macros":       session.Macros.Len(),
	})
}

// loadShow 重新编译脚本目录中的另一个脚本
func (ws *WebServer) loadShow(c *gin.Context) {
	var request struct {
		Script string `json:"script"`
	}
	if err := c.ShouldBindJSON(&request); err != nil || request.Script == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}

	if ws.isRunning() {
		c.JSON(http.StatusConflict, gin.H{"error": "演出正在进行中，请先停止当前演出"})
		return
	}

	dir := ws.scriptDir()
	ws.mutex.RLock()
	opts := ws.opts
	ws.mutex.RUnlock()
	opts.ScriptFile = filepath.Join(dir, filepath.Base(request.Script))

	session, cfg, err := ws.cli.LoadShow(opts)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ws.mutex.Lock()
	ws.opts = opts
	ws.session = session
	ws.cfg = cfg
	ws.mutex.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"message": "脚本已加载",
		"meta":    scheduleMeta(session),
	})
}

// getScripts 脚本文件列表
func (ws *WebServer) getScripts(c *gin.Context) {
	search := c.Query("search") // 搜索关键词

	files, err := ws.scanner.ScanScripts(ws.scriptDir(), search)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("扫描脚本文件失败: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"files": files,
		"total": len(files),
	})
}

// getSymbols 符号表和宏名称
func (ws *WebServer) getSymbols(c *gin.Context) {
	session, _ := ws.current()

	symbols := make([]gin.H, 0, session.Symbols.Len())
	for _, sym := range session.Symbols.All() {
		symbols = append(symbols, gin.H{
			"name":   sym.Name,
			"values": sym.Values,
		})
	}

	macros := make([]string, 0, session.Macros.Len())
	for _, m := range session.Macros.All() {
		macros = append(macros, m.Name)
	}

	c.JSON(http.StatusOK, gin.H{
		"symbols": symbols,
		"macros":  macros,
	})
}

// eventView 事件的可读形式
type eventView struct {
	ScheduleEvent
	Strips  string `json:"strips"`
	Name    string `json:"name,omitempty"`
	Reverse bool   `json:"reverse"`
}

// getSchedule 完整时间表
func (ws *WebServer) getSchedule(c *gin.Context) {
	session, _ := ws.current()

	events := make([]eventView, 0, session.Schedule.Len())
	for _, ev := range session.Schedule.Events {
		name, _ := session.Symbols.ReverseLookup(uint(ev.Animation &^ DirectionBit))
		events = append(events, eventView{
			ScheduleEvent: ev,
			Strips:        maskString(ev.StripMask),
			Name:          name,
			Reverse:       ev.Animation&DirectionBit != 0,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"meta":   scheduleMeta(session),
		"events": events,
	})
}

// getPlaybackStatus 获取演出状态
func (ws *WebServer) getPlaybackStatus(c *gin.Context) {
	ws.tracker.mutex.RLock()
	status := ws.tracker.status
	ws.tracker.mutex.RUnlock()

	c.JSON(http.StatusOK, status)
}

// startPlayback 开始演出（异步）
func (ws *WebServer) startPlayback(c *gin.Context) {
	var request struct {
		Mode PlayMode `json:"mode"`
	}
	// 请求体可以为空，默认自由运行模式
	if err := c.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数"})
		return
	}
	if request.Mode == "" {
		request.Mode = ModeFree
	}
	if request.Mode != ModeFree && request.Mode != ModeSync {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("未知播放模式: %s", request.Mode)})
		return
	}

	session, cfg := ws.current()
	if request.Mode == ModeSync {
		if err := CheckMusicFile(session.MusicFile); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	ws.tracker.mutex.Lock()
	if ws.tracker.isRunning {
		ws.tracker.mutex.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": "演出正在进行中，请先停止当前演出"})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	var gate Gate = ImmediateGate{}
	var channelGate *ChannelGate
	if !cfg.Playback.AutoStart {
		channelGate = NewChannelGate()
		gate = channelGate
	}

	ws.tracker.isRunning = true
	ws.tracker.cancel = cancel
	ws.tracker.gate = channelGate
	ws.tracker.status = PlaybackStatus{
		State:       StateIdlePre,
		Mode:        request.Mode,
		TotalEvents: session.Schedule.Len(),
	}
	ws.tracker.mutex.Unlock()

	engine := NewExecutionEngine(session, cfg, gate)
	engine.tracker = ws.tracker

	go func() {
		defer cancel()
		err := engine.Play(ctx, request.Mode)

		ws.tracker.mutex.Lock()
		ws.tracker.isRunning = false
		ws.tracker.cancel = nil
		ws.tracker.gate = nil
		if err != nil && !errors.Is(err, ErrUserStopped) {
			ws.tracker.status.LastError = err.Error()
			fmt.Printf("❌ 演出失败: %v\n", err)
		}
		ws.tracker.mutex.Unlock()
	}()

	message := "演出已就绪，等待开始信号"
	if cfg.Playback.AutoStart {
		message = "演出已开始"
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      message,
		"mode":         request.Mode,
		"total_events": session.Schedule.Len(),
	})
}

// goPlayback 发送开始信号
func (ws *WebServer) goPlayback(c *gin.Context) {
	ws.tracker.mutex.RLock()
	isRunning := ws.tracker.isRunning
	gate := ws.tracker.gate
	ws.tracker.mutex.RUnlock()

	if !isRunning {
		c.JSON(http.StatusBadRequest, gin.H{"error": "当前没有演出在进行"})
		return
	}
	if gate == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "演出已自动开始"})
		return
	}

	gate.Open()
	c.JSON(http.StatusOK, gin.H{"message": "已发送开始信号"})
}

// stopPlayback 停止演出
func (ws *WebServer) stopPlayback(c *gin.Context) {
	ws.tracker.mutex.RLock()
	isRunning := ws.tracker.isRunning
	cancel := ws.tracker.cancel
	ws.tracker.mutex.RUnlock()

	if !isRunning || cancel == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "当前没有演出在进行"})
		return
	}

	cancel()
	c.JSON(http.StatusOK, gin.H{"message": "演出已停止"})
}
