package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

////////////////////////////////////////////////////////////////////////////////
// 主程序入口
////////////////////////////////////////////////////////////////////////////////

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 设置信号处理，收到退出信号时停止演出（仍会恢复空闲动画并关闭设备）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n🛑 收到退出信号，正在停止演出...")
		cancel()
	}()

	cli := NewCLIExecutor()

	// 定义命令行参数
	var (
		configFile = flag.String("c", DefaultConfigFile, "配置文件路径")
		portName   = flag.String("p", "", "串口设备 (覆盖配置文件中的 device.port_name)")
		cueRange   = flag.String("s", "", "播放起止点 start[-end]，支持秒数或 MM:SS.mmm")
		verbose    = flag.Bool("v", false, "打印符号表、命令表和时间表")
		help       = flag.Bool("help", false, "显示帮助信息")
	)
	flag.Usage = cli.PrintUsage
	flag.Parse()

	if *help {
		cli.PrintUsage()
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage()
		os.Exit(1)
	}

	opts := CLIOptions{
		ConfigFile: *configFile,
		Device:     *portName,
		CueRange:   *cueRange,
		Verbose:    *verbose,
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "c" {
			opts.ConfigExplicit = true
		}
	})

	command := args[0]
	if command == "ports" {
		os.Exit(ExitCode(cli.RunPorts()))
	}

	if len(args) < 2 {
		fmt.Printf("❌ 错误: %s 需要脚本文件\n", command)
		os.Exit(1)
	}
	opts.ScriptFile = args[1]

	var err error
	switch command {
	case "check":
		err = cli.RunCheck(opts)
	case "play":
		err = cli.RunPlay(ctx, opts, ModeFree)
	case "mplay":
		err = cli.RunPlay(ctx, opts, ModeSync)
	case "serve":
		err = cli.RunServe(opts)
	default:
		fmt.Printf("❌ 错误: 未知命令 %s\n", command)
		cli.PrintUsage()
		os.Exit(1)
	}

	os.Exit(ExitCode(err))
}
