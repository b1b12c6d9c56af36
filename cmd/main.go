// 本文件用于程序启动入口
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"prod-watch/internal/api"
	"prod-watch/internal/config"
	"prod-watch/internal/export"
	"prod-watch/internal/logger"
	"prod-watch/internal/metrics"
	"prod-watch/internal/models"
	"prod-watch/internal/service"
	"prod-watch/internal/ticket"
)

type options struct {
	configPath    string
	once          bool
	exportTickets string
	exportView    string
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("程序退出: %v", err)
	}
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	log.Printf("程序启动，配置文件: %s", opts.configPath)

	cfg, err := loadAndValidateConfig(opts.configPath)
	if err != nil {
		return err
	}

	if err := logger.InitLogger(cfg); err != nil {
		return err
	}
	defer logger.Close()

	logConfig(cfg)

	// 单次模式不需要文件监控
	if opts.once || opts.exportTickets != "" {
		cfg.WatchEnabled = false
	}
	monitor, err := service.NewMonitor(cfg, opts.configPath, metrics.Global())
	if err != nil {
		logger.Error("创建监控服务失败: %v", err)
		return err
	}

	if opts.once || opts.exportTickets != "" {
		defer monitor.Stop()
		return runOnce(monitor, opts)
	}

	if err := monitor.Start(); err != nil {
		logger.Error("启动监控服务失败: %v", err)
		return err
	}

	apiServer := api.NewServer(cfg, monitor)
	apiServer.Start()

	waitForShutdown(monitor, apiServer)
	return nil
}

func parseFlags(args []string) (options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("prod-watch", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", "config.yaml", "配置文件路径")
	flagSet.BoolVar(&opts.once, "once", false, "执行一次刷新后退出")
	flagSet.StringVar(&opts.exportTickets, "export-tickets", "", "刷新后把工单导出为 XLSX 文件")
	flagSet.StringVar(&opts.exportView, "view", string(ticket.ViewAll), "导出的工单视图: all|pending|active|acknowledged|processed|resolved")
	if err := flagSet.Parse(args); err != nil {
		return opts, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return opts, fmt.Errorf("未知参数: %s", rest[0])
	}
	return opts, nil
}

func loadAndValidateConfig(configPath string) (*models.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runOnce 执行一次刷新 需要时导出工单
func runOnce(monitor *service.Monitor, opts options) error {
	result, _ := monitor.RefreshOnce(service.TriggerManual)
	logger.Info("单次刷新: 预警=%d 工单=%v", result.Warnings, result.Tickets)
	if strings.TrimSpace(opts.exportTickets) == "" {
		return nil
	}
	view, err := ticket.ParseView(opts.exportView)
	if err != nil {
		return err
	}
	data, err := export.TicketsXLSX(monitor.Tickets().List(view, monitor.Now()), monitor.Location())
	if err != nil {
		return err
	}
	if err := export.WriteFile(opts.exportTickets, data); err != nil {
		return err
	}
	logger.Info("工单已导出: %s", opts.exportTickets)
	return nil
}

func logConfig(cfg *models.Config) {
	logger.Info("配置加载成功")
	logger.Info("产量目录: %s", cfg.ProductionRoot)
	logger.Info("产量文件模板: %s", cfg.ProductionPattern)
	logger.Info("报警目录: %s", cfg.AlarmRoot)
	logger.Info("报警文件模板: %s", cfg.AlarmPattern)
	if cfg.AlarmPerDayFolder {
		logger.Info("报警文件按天分目录")
	}
	logger.Info("时区: %s", cfg.Location())
	logger.Info("工单存储: %s (%s)", cfg.TicketStore, cfg.TicketFile)
	logger.Info("刷新计划: %s", cfg.RefreshSchedule)
	logger.Info("文件监控: %v, 防抖: %v", cfg.WatchEnabled, cfg.DebounceDuration())
	logger.Info("API 监听: %s", cfg.APIBind)
	logToStd := cfg.LogToStd == nil || *cfg.LogToStd
	logger.Info("日志级别: %s", cfg.LogLevel)
	if cfg.LogFile != "" {
		logger.Info("日志文件: %s", cfg.LogFile)
	}
	logger.Info("日志输出到标准输出: %v", logToStd)
	logger.Info("预警阈值: %+v", cfg.WarningRules)
}

func waitForShutdown(monitor *service.Monitor, apiServer *api.Server) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	<-signalChan
	logger.Info("收到退出信号，正在关闭服务...")

	if apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(ctx); err != nil {
			logger.Warn("关闭 API 服务失败: %v", err)
		}
	}
	if err := monitor.Stop(); err != nil {
		logger.Error("停止监控服务失败: %v", err)
	}

	logger.Info("程序已退出")
}
