package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"quantbridge/pkg/align"
	"quantbridge/pkg/config"
	"quantbridge/pkg/export"
	"quantbridge/pkg/fetcher"
	"quantbridge/pkg/logger"
	"quantbridge/pkg/provider"
	"quantbridge/pkg/provider/binance"
	"quantbridge/pkg/provider/core"
	"quantbridge/pkg/provider/decorators"
	"quantbridge/pkg/provider/tencent"
	"quantbridge/pkg/provider/tradingview"
	"quantbridge/pkg/provider/yahoo"
	"quantbridge/pkg/series"
	"quantbridge/pkg/store"
	"quantbridge/pkg/timezone"
)

var (
	configPath = flag.String("config", "", "配置文件路径")
	listenAddr = flag.String("addr", "", "监听地址（覆盖配置文件）")
	logLevel   = flag.String("log-level", "", "日志级别（覆盖配置文件）")
	ginMode    = flag.String("gin-mode", gin.ReleaseMode, "Gin 运行模式 (debug, release, test)")
)

// APIServer 序列数据服务
type APIServer struct {
	cfg        *config.Config
	store      *store.MasterStore
	manager    *provider.ProviderManager
	updater    *store.Updater
	normalizer *timezone.Normalizer
	server     *http.Server
	log        *logrus.Entry
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Logger.Level = *logLevel
	}
	if *listenAddr != "" {
		cfg.Server.Addr = *listenAddr
	}
	logger.Init(logger.Config{Level: cfg.Logger.Level, Format: cfg.Logger.Format})

	gin.SetMode(*ginMode)

	apiServer, err := NewAPIServer(cfg)
	if err != nil {
		logger.GetLogger().WithError(err).Fatal("创建 API 服务失败")
	}

	if err := apiServer.Start(); err != nil {
		logger.GetLogger().WithError(err).Fatal("启动 API 服务失败")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	apiServer.log.Info("正在关闭 API 服务...")
	apiServer.Stop()
}

// NewAPIServer 创建 API 服务
func NewAPIServer(cfg *config.Config) (*APIServer, error) {
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

	wrap := func(p core.HistoricalProvider) core.HistoricalProvider {
		return decorators.NewCircuitBreakerProvider(decorators.NewRetryProvider(p, retryCfg), nil)
	}
	providers := map[string]core.HistoricalProvider{
		"tradingview": wrap(tradingview.NewProvider("", routes)),
		"yahoo":       wrap(yahoo.NewProvider("")),
		"binance":     wrap(binance.NewProvider("")),
		"tencent":     wrap(tencent.NewProvider("")),
	}
	for name, p := range providers {
		if err := manager.RegisterHistoricalProvider(name, p); err != nil {
			return nil, err
		}
	}
	if cfg.Provider.Default != "" {
		if err := manager.SetDefault(cfg.Provider.Default); err != nil {
			return nil, err
		}
	}

	s := &APIServer{
		cfg:        cfg,
		store:      masterStore,
		manager:    manager,
		updater:    store.NewUpdater(masterStore, normalizer),
		normalizer: normalizer,
		log:        logger.WithComponent("APIServer"),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	s.registerRoutes(router)

	s.server = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s, nil
}

func (s *APIServer) registerRoutes(router *gin.Engine) {
	router.GET("/health", s.handleHealth)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/series", s.handleListSeries)
		v1.POST("/series/update", s.handleUpdateSeries)
		v1.GET("/series/bars", s.handleGetBars)
		v1.DELETE("/series", s.handleDeleteSeries)
		v1.POST("/align", s.handleAlign)
		v1.POST("/export", s.handleExport)
	}
}

// Start 启动 HTTP 服务
func (s *APIServer) Start() error {
	go func() {
		s.log.Infof("API 服务监听 %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Fatal("HTTP 服务异常退出")
		}
	}()
	return nil
}

// Stop 优雅关闭
func (s *APIServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.log.WithError(err).Warn("HTTP 服务关闭超时")
	}
	if err := s.manager.Close(); err != nil {
		s.log.WithError(err).Warn("关闭提供商失败")
	}
	s.log.Info("API 服务已停止")
}

func (s *APIServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"providers": s.manager.ListProviders(),
		"timestamp": time.Now(),
	})
}

func (s *APIServer) handleListSeries(c *gin.Context) {
	inventories, err := s.store.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "list_failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"series": inventories, "count": len(inventories)})
}

type updateRequest struct {
	Symbol      string `json:"symbol" binding:"required"`
	Venue       string `json:"venue"`
	Interval    string `json:"interval" binding:"required"`
	Provider    string `json:"provider"`
	From        string `json:"from"`         // RFC3339，空序列回填的请求起点
	FilterLunch bool   `json:"filter_lunch"` // 过滤马交所午间休市的日内K线
}

func (s *APIServer) handleUpdateSeries(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: err.Error()})
		return
	}

	key, err := keyFrom(req.Symbol, req.Venue, req.Interval)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: err.Error()})
		return
	}
	p, err := s.manager.GetHistoricalProvider(req.Provider)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown_provider", Message: err.Error()})
		return
	}

	opts := store.UpdateOptions{}
	if req.From != "" {
		from, err := time.Parse(time.RFC3339, req.From)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: err.Error()})
			return
		}
		opts.From = from
	}
	if req.FilterLunch {
		opts.SessionBreak = &timezone.MYXLunchBreak
	}

	fetchCfg := fetcher.DefaultConfig()
	fetchCfg.MaxSegments = s.cfg.Provider.MaxSegments
	result, err := s.updater.UpdateWithOptions(c.Request.Context(), fetcher.New(p, fetchCfg), key, opts)
	if err != nil {
		status := http.StatusBadGateway
		if core.IsTerminal(err) {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{Error: "update_failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *APIServer) handleGetBars(c *gin.Context) {
	key, err := keyFrom(c.Query("symbol"), c.Query("venue"), c.DefaultQuery("interval", "1d"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: err.Error()})
		return
	}

	loaded, err := s.store.Load(key)
	if err != nil {
		if errors.Is(err, store.ErrSeriesNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "load_failed", Message: err.Error()})
		return
	}

	rows, _ := strconv.Atoi(c.DefaultQuery("rows", "0"))
	c.JSON(http.StatusOK, gin.H{
		"key":      key,
		"timezone": loaded.Timezone,
		"preview":  export.PreviewSeries(loaded, rows),
	})
}

func (s *APIServer) handleDeleteSeries(c *gin.Context) {
	key, err := keyFrom(c.Query("symbol"), c.Query("venue"), c.DefaultQuery("interval", "1d"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: err.Error()})
		return
	}
	if err := s.store.Delete(key); err != nil {
		if errors.Is(err, store.ErrSeriesNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "delete_failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": key.String()})
}

type alignRequest struct {
	SymbolA    string   `json:"symbol_a" binding:"required"`
	SymbolB    string   `json:"symbol_b" binding:"required"`
	VenueA     string   `json:"venue_a"`
	VenueB     string   `json:"venue_b"`
	Interval   string   `json:"interval" binding:"required"`
	IntervalA  string   `json:"interval_a"` // 空则取 interval，粒度不同时对齐前重采样
	IntervalB  string   `json:"interval_b"`
	Fields     []string `json:"fields"`
	MaxFillGap int      `json:"max_fill_gap"`
	Rows       int      `json:"rows"`
}

func (s *APIServer) handleAlign(c *gin.Context) {
	var req alignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: err.Error()})
		return
	}

	table, err := s.alignFromRequest(req)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, store.ErrSeriesNotFound):
			status = http.StatusNotFound
		case errors.Is(err, align.ErrNoOverlap), errors.Is(err, align.ErrTimezoneMismatch):
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, ErrorResponse{Error: "align_failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"columns":  table.Columns,
		"timezone": table.Timezone,
		"rows":     table.Len(),
		"preview":  export.PreviewTable(table, req.Rows),
	})
}

type exportRequest struct {
	alignRequest
	Format string `json:"format"`
	Path   string `json:"path" binding:"required"`
}

func (s *APIServer) handleExport(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: err.Error()})
		return
	}

	format, err := export.ParseFormat(req.Format)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: err.Error()})
		return
	}

	table, err := s.alignFromRequest(req.alignRequest)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "align_failed", Message: err.Error()})
		return
	}

	path := req.Path
	if !strings.HasPrefix(path, "/") {
		path = s.cfg.ExportDir + "/" + path
	}
	if err := export.ExportTable(path, table, format); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "export_failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path, "rows": table.Len(), "format": format})
}

func (s *APIServer) alignFromRequest(req alignRequest) (*align.Table, error) {
	intervalA, intervalB := req.IntervalA, req.IntervalB
	if intervalA == "" {
		intervalA = req.Interval
	}
	if intervalB == "" {
		intervalB = req.Interval
	}
	keyA, err := keyFrom(req.SymbolA, req.VenueA, intervalA)
	if err != nil {
		return nil, err
	}
	keyB, err := keyFrom(req.SymbolB, req.VenueB, intervalB)
	if err != nil {
		return nil, err
	}

	seriesA, err := s.store.Load(keyA)
	if err != nil {
		return nil, err
	}
	seriesB, err := s.store.Load(keyB)
	if err != nil {
		return nil, err
	}

	var fields []series.Field
	for _, f := range req.Fields {
		fields = append(fields, series.Field(f))
	}
	gap := req.MaxFillGap
	if gap == 0 {
		gap = s.cfg.MaxFillGap
	}
	return align.Align(seriesA, seriesB, align.Options{Fields: fields, MaxFillGap: gap})
}

func keyFrom(symbol, venue, interval string) (series.Key, error) {
	if symbol == "" {
		return series.Key{}, errors.New("symbol 不能为空")
	}
	iv, err := series.ParseInterval(interval)
	if err != nil {
		return series.Key{}, err
	}
	return series.Key{Symbol: symbol, Venue: venue, Interval: iv}, nil
}
