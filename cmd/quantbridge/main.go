package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"quantbridge/pkg/align"
	"quantbridge/pkg/config"
	"quantbridge/pkg/export"
	"quantbridge/pkg/fetcher"
	"quantbridge/pkg/logger"
	"quantbridge/pkg/provider"
	"quantbridge/pkg/provider/binance"
	"quantbridge/pkg/provider/decorators"
	"quantbridge/pkg/provider/tencent"
	"quantbridge/pkg/provider/tradingview"
	"quantbridge/pkg/provider/yahoo"
	"quantbridge/pkg/scheduler"
	"quantbridge/pkg/series"
	"quantbridge/pkg/store"
	"quantbridge/pkg/timezone"
)

const usage = `用法: quantbridge [-config 配置文件] <命令> [参数]

命令:
  update  -symbol ZL1! -interval 1d [-venue CBOT] [-provider tradingview]
          [-from 2024-01-01] [-filter-lunch]                                增量更新序列
  load    -symbol ZL1! -interval 1d [-rows 50]                              预览已存序列
  align   -a FCPO1! -b ZL1! -interval 1d [-fields Close] [-max-fill-gap 5]  对齐两条序列
  export  -symbol ZL1! -interval 1d [-format csv|parquet] [-out 路径] [-all] 导出序列
  list                                                                      列出主存清单
  purge   [-symbol ZL1! -interval 1d]                                       删除序列或清空主存
  jobs    -jobs 配置文件                                                    启动定时更新调度
`

type app struct {
	cfg        *config.Config
	store      *store.MasterStore
	normalizer *timezone.Normalizer
	manager    *provider.ProviderManager
	updater    *store.Updater
}

func main() {
	global := flag.NewFlagSet("quantbridge", flag.ExitOnError)
	configPath := global.String("config", "", "配置文件路径")
	logLevel := global.String("log-level", "", "日志级别（覆盖配置文件）")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }

	// 全局参数在子命令之前
	args := os.Args[1:]
	if err := global.Parse(args); err != nil {
		os.Exit(2)
	}
	rest := global.Args()
	if len(rest) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command, cmdArgs := rest[0], rest[1:]

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Logger.Level = *logLevel
	}
	logger.Init(logger.Config{Level: cfg.Logger.Level, Format: cfg.Logger.Format})

	a, err := newApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化失败: %v\n", err)
		os.Exit(1)
	}
	defer a.manager.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.run(ctx, command, cmdArgs); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func newApp(cfg *config.Config) (*app, error) {
	masterStore, err := store.NewMasterStore(cfg.StoreDir, cfg.CanonicalTimezone)
	if err != nil {
		return nil, err
	}
	normalizer, err := timezone.NewNormalizer(cfg.CanonicalTimezone)
	if err != nil {
		return nil, err
	}

	manager := provider.NewProviderManager()
	routes := cfg.RouteTable()

	retryCfg := decorators.DefaultRetryConfig()
	retryCfg.MaxAttempts = cfg.Provider.MaxRetries

	tv := tradingview.NewProvider("", routes)
	if err := manager.RegisterHistoricalProvider("tradingview",
		decorators.NewCircuitBreakerProvider(decorators.NewRetryProvider(tv, retryCfg), nil)); err != nil {
		return nil, err
	}
	if err := manager.RegisterHistoricalProvider("yahoo",
		decorators.NewCircuitBreakerProvider(decorators.NewRetryProvider(yahoo.NewProvider(""), retryCfg), nil)); err != nil {
		return nil, err
	}
	if err := manager.RegisterHistoricalProvider("binance",
		decorators.NewCircuitBreakerProvider(decorators.NewRetryProvider(binance.NewProvider(""), retryCfg), nil)); err != nil {
		return nil, err
	}
	if err := manager.RegisterHistoricalProvider("tencent",
		decorators.NewCircuitBreakerProvider(decorators.NewRetryProvider(tencent.NewProvider(""), retryCfg), nil)); err != nil {
		return nil, err
	}
	if cfg.Provider.Default != "" {
		if err := manager.SetDefault(cfg.Provider.Default); err != nil {
			return nil, err
		}
	}

	return &app{
		cfg:        cfg,
		store:      masterStore,
		normalizer: normalizer,
		manager:    manager,
		updater:    store.NewUpdater(masterStore, normalizer),
	}, nil
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "update":
		return a.cmdUpdate(ctx, args)
	case "load":
		return a.cmdLoad(args)
	case "align":
		return a.cmdAlign(args)
	case "export":
		return a.cmdExport(args)
	case "list":
		return a.cmdList()
	case "purge":
		return a.cmdPurge(args)
	case "jobs":
		return a.cmdJobs(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("未知命令: %s", command)
	}
}

func parseKey(fs *flag.FlagSet) (symbol, venue, interval *string) {
	symbol = fs.String("symbol", "", "资产代码")
	venue = fs.String("venue", "", "交易所（空则按路由表解析）")
	interval = fs.String("interval", "1d", "K线粒度 (1m 5m 15m 1h 1d 1w 1M)")
	return
}

func makeKey(symbol, venue, interval string) (series.Key, error) {
	if symbol == "" {
		return series.Key{}, fmt.Errorf("缺少 -symbol 参数")
	}
	iv, err := series.ParseInterval(interval)
	if err != nil {
		return series.Key{}, err
	}
	return series.Key{Symbol: symbol, Venue: venue, Interval: iv}, nil
}

func (a *app) cmdUpdate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	symbol, venue, interval := parseKey(fs)
	providerName := fs.String("provider", "", "提供商名称（空则使用默认）")
	fromFlag := fs.String("from", "", "回填请求起点 (2006-01-02)，仅对空序列生效")
	filterLunch := fs.Bool("filter-lunch", false, "过滤马交所午间休市的日内K线")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := makeKey(*symbol, *venue, *interval)
	if err != nil {
		return err
	}
	p, err := a.manager.GetHistoricalProvider(*providerName)
	if err != nil {
		return err
	}

	opts := store.UpdateOptions{}
	if *fromFlag != "" {
		from, err := time.ParseInLocation("2006-01-02", *fromFlag, a.normalizer.Canonical())
		if err != nil {
			return fmt.Errorf("-from: %w", err)
		}
		opts.From = from
	}
	if *filterLunch {
		opts.SessionBreak = &timezone.MYXLunchBreak
	}

	fetchCfg := fetcher.DefaultConfig()
	fetchCfg.MaxSegments = a.cfg.Provider.MaxSegments
	result, err := a.updater.UpdateWithOptions(ctx, fetcher.New(p, fetchCfg), key, opts)
	if err != nil {
		return err
	}

	fmt.Printf("%s: 抓取 %d 根, 新增 %d 根, 共 %d 根\n", key, result.Fetched, result.Added, result.TotalRows)
	if result.Partial {
		fmt.Println("警告: 更新不完整，可重试以补齐缺口")
	}
	if result.ShortHistory {
		fmt.Println("警告: 实际历史起点明显晚于请求起点，提供商数据地平线有限")
	}
	for _, gap := range result.Gaps {
		fmt.Printf("疑似缺口: %s .. %s (%v)\n",
			gap.After.Format(time.RFC3339), gap.Before.Format(time.RFC3339), gap.Span)
	}
	return nil
}

func (a *app) cmdLoad(args []string) error {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	symbol, venue, interval := parseKey(fs)
	rows := fs.Int("rows", export.DefaultPreviewRows, "头尾各展示的行数")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := makeKey(*symbol, *venue, *interval)
	if err != nil {
		return err
	}
	s, err := a.store.Load(key)
	if err != nil {
		return err
	}

	printPreview(export.PreviewSeries(s, *rows))
	return nil
}

func (a *app) cmdAlign(args []string) error {
	fs := flag.NewFlagSet("align", flag.ExitOnError)
	symbolA := fs.String("a", "", "第一条序列的资产代码")
	symbolB := fs.String("b", "", "第二条序列的资产代码")
	venueA := fs.String("venue-a", "", "第一条序列的交易所")
	venueB := fs.String("venue-b", "", "第二条序列的交易所")
	interval := fs.String("interval", "1d", "K线粒度")
	intervalA := fs.String("interval-a", "", "第一条序列的存储粒度（空则取 -interval，粒度不同时对齐前重采样）")
	intervalB := fs.String("interval-b", "", "第二条序列的存储粒度")
	fieldsFlag := fs.String("fields", "Close", "参与对齐的字段，逗号分隔")
	maxFillGap := fs.Int("max-fill-gap", 0, "连续前向填充上限（0 使用配置值）")
	out := fs.String("out", "", "结果输出文件（空则仅预览）")
	format := fs.String("format", "csv", "输出格式 (csv, parquet)")
	rows := fs.Int("rows", export.DefaultPreviewRows, "头尾各展示的行数")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *intervalA == "" {
		*intervalA = *interval
	}
	if *intervalB == "" {
		*intervalB = *interval
	}
	keyA, err := makeKey(*symbolA, *venueA, *intervalA)
	if err != nil {
		return fmt.Errorf("-a: %w", err)
	}
	keyB, err := makeKey(*symbolB, *venueB, *intervalB)
	if err != nil {
		return fmt.Errorf("-b: %w", err)
	}

	seriesA, err := a.store.Load(keyA)
	if err != nil {
		return err
	}
	seriesB, err := a.store.Load(keyB)
	if err != nil {
		return err
	}

	var fields []series.Field
	for _, f := range strings.Split(*fieldsFlag, ",") {
		fields = append(fields, series.Field(strings.TrimSpace(f)))
	}
	gap := *maxFillGap
	if gap == 0 {
		gap = a.cfg.MaxFillGap
	}

	table, err := align.Align(seriesA, seriesB, align.Options{Fields: fields, MaxFillGap: gap})
	if err != nil {
		return err
	}

	printPreview(export.PreviewTable(table, *rows))

	if *out != "" {
		f, err := export.ParseFormat(*format)
		if err != nil {
			return err
		}
		path := *out
		if !filepath.IsAbs(path) {
			path = filepath.Join(a.cfg.ExportDir, path)
		}
		if err := export.ExportTable(path, table, f); err != nil {
			return err
		}
		fmt.Printf("已导出 %d 行到 %s\n", table.Len(), path)
	}
	return nil
}

func (a *app) cmdExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	symbol, venue, interval := parseKey(fs)
	format := fs.String("format", "csv", "输出格式 (csv, parquet)")
	out := fs.String("out", "", "输出文件（默认按序列命名）")
	all := fs.Bool("all", false, "导出主存中的全部序列")
	if err := fs.Parse(args); err != nil {
		return err
	}

	f, err := export.ParseFormat(*format)
	if err != nil {
		return err
	}
	if *all {
		return a.exportAll(f)
	}

	key, err := makeKey(*symbol, *venue, *interval)
	if err != nil {
		return err
	}
	s, err := a.store.Load(key)
	if err != nil {
		return err
	}

	path := *out
	if path == "" {
		name := strings.TrimSuffix(key.FileName(), ".parquet")
		path = filepath.Join(a.cfg.ExportDir, fmt.Sprintf("%s.%s", name, f))
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(a.cfg.ExportDir, path)
	}

	if err := export.ExportSeries(path, s, f); err != nil {
		return err
	}
	fmt.Printf("已导出 %d 行到 %s\n", s.Len(), path)
	return nil
}

// exportAll 把主存中的全部序列逐个导出到导出目录
func (a *app) exportAll(f export.Format) error {
	inventories, err := a.store.List()
	if err != nil {
		return err
	}
	for _, inv := range inventories {
		key := series.Key{Symbol: inv.Symbol, Interval: inv.Interval}
		s, err := a.store.Load(key)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(inv.FileName, ".parquet")
		path := filepath.Join(a.cfg.ExportDir, fmt.Sprintf("%s.%s", name, f))
		if err := export.ExportSeries(path, s, f); err != nil {
			return err
		}
		fmt.Printf("已导出 %d 行到 %s\n", s.Len(), path)
	}
	fmt.Printf("共导出 %d 条序列\n", len(inventories))
	return nil
}

func (a *app) cmdList() error {
	inventories, err := a.store.List()
	if err != nil {
		return err
	}
	if len(inventories) == 0 {
		fmt.Println("主存为空")
		return nil
	}

	fmt.Printf("%-20s %-8s %8s  %-19s  %-19s %10s\n",
		"SYMBOL", "INTERVAL", "ROWS", "FIRST", "LAST", "SIZE")
	for _, inv := range inventories {
		fmt.Printf("%-20s %-8s %8d  %-19s  %-19s %9dB\n",
			inv.Symbol, inv.Interval, inv.Rows,
			inv.First.Format("2006-01-02 15:04:05"),
			inv.Last.Format("2006-01-02 15:04:05"),
			inv.SizeBytes)
	}
	return nil
}

func (a *app) cmdPurge(args []string) error {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	symbol, venue, interval := parseKey(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *symbol != "" {
		key, err := makeKey(*symbol, *venue, *interval)
		if err != nil {
			return err
		}
		if err := a.store.Delete(key); err != nil {
			return err
		}
		fmt.Printf("已删除 %s\n", key)
		return nil
	}

	removed, err := a.store.Purge()
	if err != nil {
		return err
	}
	fmt.Printf("已清空主存，删除 %d 个序列文件\n", removed)
	return nil
}

func (a *app) cmdJobs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("jobs", flag.ExitOnError)
	jobsPath := fs.String("jobs", "config/jobs.yaml", "任务配置文件路径")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fetchCfg := fetcher.DefaultConfig()
	fetchCfg.MaxSegments = a.cfg.Provider.MaxSegments

	sched := scheduler.NewJobScheduler()
	sched.SetExecutor(scheduler.NewUpdateExecutor(a.manager, a.updater, fetchCfg))
	if err := sched.LoadConfig(*jobsPath); err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return err
	}

	fmt.Printf("调度器已启动，共 %d 个任务，Ctrl+C 退出\n", len(sched.GetAllJobs()))
	<-ctx.Done()
	return sched.Stop()
}

func printPreview(p *export.Preview) {
	fmt.Println(strings.Join(p.Columns, "\t"))
	for _, row := range p.Head {
		fmt.Println(strings.Join(row, "\t"))
	}
	if p.Truncated {
		fmt.Printf("... 省略 %d 行 ...\n", p.TotalRows-len(p.Head)-len(p.Tail))
		for _, row := range p.Tail {
			fmt.Println(strings.Join(row, "\t"))
		}
	}
	fmt.Printf("共 %d 行\n", p.TotalRows)
}
