// Package main 提供 pushclient 命令行入口
//
// 连接推送服务器，按参数完成应用与用户注册、订阅频道，
// 然后持续打印收到的消息与连接变化，Ctrl+C 退出。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	pushclient "github.com/dep2p/go-pushclient"
	"github.com/dep2p/go-pushclient/pkg/lib/log"
)

var logger = log.Logger("pushclient/cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数：这次运行的身份与订阅
//   配置文件 / PUSHCLIENT_* 环境变量：服务器、退避、存储等长期配置
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	configFile  = flag.String("config", "", "配置文件路径（.toml / .json）")
	serverURL   = flag.String("server", "", "服务器地址（覆盖配置）")
	development = flag.Bool("dev", false, "使用开发环境服务器")
	dataDir     = flag.String("data-dir", "", "身份持久化目录")

	appID    = flag.String("app", "", "应用 ID，非空时注册应用")
	username = flag.String("username", "", "应用注册用户名")
	password = flag.String("password", "", "应用注册密码")
	userID   = flag.String("user", "", "用户 ID，非空时注册用户")
	channels = flag.String("subscribe", "", "订阅的频道，逗号分隔")

	showVersion = flag.Bool("version", false, "显示版本信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Println(pushclient.VersionInfo())
		return nil
	}

	opts, err := buildOptions()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	client, err := pushclient.New(opts...)
	if err != nil {
		return fmt.Errorf("创建客户端失败: %w", err)
	}
	defer func() { _ = client.Close() }()

	setupLogging(client.Config())
	logger.Info("启动 pushclient", "version", pushclient.Version, "commit", pushclient.GitCommit, "server", client.Config().Server.EffectiveURL())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	messages := make(chan *pushclient.Message, 64)
	client.OnMessageReceived(func(msg *pushclient.Message) {
		select {
		case messages <- msg:
		default:
			logger.Warn("打印队列已满，丢弃消息", "id", msg.ID)
		}
	})
	client.OnConnectionChanged(func(change pushclient.StateChange) {
		fmt.Printf("连接: %s -> %s (%s)\n", change.Previous, change.Current, change.Reason)
	})
	client.OnRegistration(func(ev pushclient.RegistrationEvent) {
		if ev.Err != nil {
			fmt.Printf("注册失败: %v\n", ev.Err)
			return
		}
		fmt.Println("注册成功")
	})

	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	if err := register(client); err != nil {
		return err
	}

	fmt.Println("客户端已启动，按 Ctrl+C 退出")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case msg := <-messages:
				printMessage(msg)
			}
		}
	})
	g.Go(func() error {
		waitCtx, cancel := context.WithTimeout(gctx, 30*time.Second)
		defer cancel()
		err := client.WaitConnected(waitCtx)
		switch {
		case err == nil:
			logger.Info("已连接服务器")
		case errors.Is(err, context.DeadlineExceeded):
			logger.Warn("30 秒内未能连接服务器，继续重试", "err", client.FailureError())
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Println("\n正在关闭客户端...")
	return client.Close()
}

// buildOptions 构建选项
//
// 优先级：命令行参数 > PUSHCLIENT_* 环境变量 > 配置文件 > 默认值。
func buildOptions() ([]pushclient.Option, error) {
	var opts []pushclient.Option
	if *configFile != "" {
		opts = append(opts, pushclient.WithConfigFile(*configFile))
	}
	opts = append(opts, pushclient.WithEnv())

	if *serverURL != "" {
		opts = append(opts, pushclient.WithServerURL(*serverURL))
	}
	if isFlagSet("dev") {
		opts = append(opts, pushclient.WithDevelopment(*development))
	}
	if *dataDir != "" {
		opts = append(opts, pushclient.WithDataDir(*dataDir))
	}

	if *appID != "" && (*username == "" || *password == "") {
		return nil, fmt.Errorf("-app 需要同时提供 -username 与 -password")
	}
	if *userID != "" && *appID == "" {
		return nil, fmt.Errorf("-user 需要同时提供 -app")
	}
	return opts, nil
}

// register 按参数排队注册与订阅，结果通过事件打印
func register(client *pushclient.Client) error {
	if *appID != "" {
		creds := pushclient.Credentials{Username: *username, Password: *password}
		if err := client.RegisterApplication(*appID, creds); err != nil {
			return fmt.Errorf("注册应用失败: %w", err)
		}
	}
	if *userID != "" {
		if err := client.RegisterUser(*userID, pushclient.UserOptions{}); err != nil {
			return fmt.Errorf("注册用户失败: %w", err)
		}
	}
	for _, ch := range strings.Split(*channels, ",") {
		ch = strings.TrimSpace(ch)
		if ch == "" {
			continue
		}
		if err := client.Subscribe(ch); err != nil {
			return fmt.Errorf("订阅 %s 失败: %w", ch, err)
		}
	}
	return nil
}

// setupLogging 按配置初始化日志，环境变量优先
func setupLogging(cfg *pushclient.Config) {
	base := log.Options{Level: log.LevelInfo, Format: log.FormatText}
	if lvl, ok := log.ParseLevel(cfg.Log.Level); ok {
		base.Level = lvl
	}
	if f, ok := log.ParseFormat(cfg.Log.Format); ok {
		base.Format = f
	}
	log.ConfigureFromEnv(base)
}

func printMessage(msg *pushclient.Message) {
	channel := msg.Channel
	if channel == "" {
		channel = "-"
	}
	fmt.Printf("[%s] %s %v\n", channel, msg.ID, msg.Payload.Raw())
}

// isFlagSet 检查命令行参数是否被显式设置
func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
