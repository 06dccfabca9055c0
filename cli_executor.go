package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"lightscript/device"
)

////////////////////////////////////////////////////////////////////////////////
// 命令行执行模块
////////////////////////////////////////////////////////////////////////////////

// CLIOptions 命令行参数
type CLIOptions struct {
	ConfigFile     string
	ConfigExplicit bool   // 是否通过 -c 显式指定
	Device         string // -p 覆盖 device.port_name
	CueRange       string // -s start[-end]
	Verbose        bool
	ScriptFile     string
}

// CLIExecutor 命令行执行器
type CLIExecutor struct {
	fileReader *FileReader
	stdin      io.Reader
}

// NewCLIExecutor 创建新的命令行执行器
func NewCLIExecutor() *CLIExecutor {
	return &CLIExecutor{
		fileReader: NewFileReader(),
		stdin:      os.Stdin,
	}
}

// LoadShow 加载配置与脚本并编译出时间表
func (cli *CLIExecutor) LoadShow(opts CLIOptions) (*Session, Config, error) {
	cfg, err := cli.fileReader.LoadConfig(opts.ConfigFile, opts.ConfigExplicit)
	if err != nil {
		return nil, cfg, err
	}
	if opts.Device != "" {
		cfg.Device.PortName = opts.Device
	}

	cue, err := parseCueRange(opts.CueRange)
	if err != nil {
		return nil, cfg, errors.Wrap(err, "invalid -s argument")
	}

	if err := cli.fileReader.CheckFileExists(opts.ScriptFile); err != nil {
		return nil, cfg, err
	}

	configTree, err := cli.fileReader.ConfigTree(cfg)
	if err != nil {
		return nil, cfg, errors.Wrapf(err, "配置文件定义错误 %s", opts.ConfigFile)
	}
	scriptTree, err := cli.fileReader.LoadScript(opts.ScriptFile)
	if err != nil {
		return nil, cfg, err
	}

	session := NewSession()
	session.DeviceName = cfg.Device.PortName
	session.StartOffset = cfg.Playback.StartOffset
	session.Cue = cue
	session.Verbose = opts.Verbose || cfg.Verbose

	if err := session.Compile(configTree, scriptTree); err != nil {
		return nil, cfg, err
	}

	fmt.Printf("✅ 编译完成: %d 个事件, 时长 %.2fs, %d 条警告\n",
		session.Schedule.Len(), session.Schedule.Duration(), len(session.Warnings))
	return session, cfg, nil
}

// RunCheck 只编译并打印时间表
func (cli *CLIExecutor) RunCheck(opts CLIOptions) error {
	session, _, err := cli.LoadShow(opts)
	if err != nil {
		return err
	}
	if !session.Verbose {
		session.Schedule.Dump(session.Symbols)
	}
	return nil
}

// RunPlay 编译并演出
func (cli *CLIExecutor) RunPlay(ctx context.Context, opts CLIOptions, mode PlayMode) error {
	session, cfg, err := cli.LoadShow(opts)
	if err != nil {
		return err
	}

	if mode == ModeSync {
		if err := CheckMusicFile(session.MusicFile); err != nil {
			return err
		}
	}

	var gate Gate = NewReaderGate(cli.stdin)
	if cfg.Playback.AutoStart {
		gate = ImmediateGate{}
	}

	engine := NewExecutionEngine(session, cfg, gate)
	return engine.Play(ctx, mode)
}

// RunServe 编译并启动Web服务
func (cli *CLIExecutor) RunServe(opts CLIOptions) error {
	session, cfg, err := cli.LoadShow(opts)
	if err != nil {
		return err
	}
	ws := NewWebServer(cli, opts, session, cfg)
	return ws.StartWebServer()
}

// RunPorts 列出可用串口
func (cli *CLIExecutor) RunPorts() error {
	ports, err := device.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("⚠️  未找到可用串口")
		return nil
	}
	for _, p := range ports {
		fmt.Printf("🔌 %s\n", p)
	}
	return nil
}

// ExitCode 打印最终结果并返回进程退出码
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var werr *device.WriteError
	switch {
	case errors.Is(err, ErrDeviceOpen):
		fmt.Println("⚠️  设备不可用，已跳过演出")
		return 0
	case errors.Is(err, ErrUserStopped):
		fmt.Println("⏹️  演出已停止")
		return 0
	case errors.As(err, &werr):
		fmt.Printf("❌ 设备写入失败: %v\n", werr)
		return 1
	default:
		fmt.Printf("❌ 错误: %v\n", err)
		return 1
	}
}

// PrintUsage 打印使用说明
func (cli *CLIExecutor) PrintUsage() {
	fmt.Println("💡 灯光秀脚本编译与播放系统")
	fmt.Println("\n用法:")
	fmt.Println("  lightscript [-c config] [-p device] [-s start[-end]] [-v] check|play|mplay|serve script.yaml")
	fmt.Println("  lightscript ports")
	fmt.Println("\n命令:")
	fmt.Println("  check   编译脚本并打印时间表")
	fmt.Println("  play    按系统时钟播放")
	fmt.Println("  mplay   跟随音乐播放位置播放（需要 mp3/wav 音乐文件）")
	fmt.Println("  serve   编译脚本并启动Web控制接口")
	fmt.Println("  ports   列出可用串口")
	fmt.Println("\n参数说明:")
	flag.PrintDefaults()
	fmt.Println("\n完整示例:")
	fmt.Println("  # 检查脚本")
	fmt.Println("  lightscript -v check shows/xmas.yaml")
	fmt.Println("")
	fmt.Println("  # 从1分05秒播放到2分钟")
	fmt.Println("  lightscript -p /dev/ttyUSB0 -s 1:05-2:00 mplay shows/xmas.yaml")
	fmt.Println("")
	fmt.Println("  # 启动Web服务（默认监听8088端口）")
	fmt.Println("  lightscript -c lightscript.yaml serve shows/xmas.yaml")
}
