package scheduler

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"quantbridge/pkg/fetcher"
	"quantbridge/pkg/logger"
	"quantbridge/pkg/provider"
	"quantbridge/pkg/store"
)

// UpdateExecutor 增量更新执行器
// 把调度任务翻译成一次主存增量更新
type UpdateExecutor struct {
	manager       *provider.ProviderManager
	updater       *store.Updater
	fetcherConfig *fetcher.Config
	log           *logrus.Entry
}

// NewUpdateExecutor 创建增量更新执行器
func NewUpdateExecutor(manager *provider.ProviderManager, updater *store.Updater, fetcherConfig *fetcher.Config) *UpdateExecutor {
	return &UpdateExecutor{
		manager:       manager,
		updater:       updater,
		fetcherConfig: fetcherConfig,
		log:           logger.WithComponent("UpdateExecutor"),
	}
}

// Execute 实现 JobExecutor 接口
func (e *UpdateExecutor) Execute(ctx context.Context, job *Job) error {
	key, err := job.Config.Key()
	if err != nil {
		return fmt.Errorf("任务 %s 的序列标识无效: %w", job.Config.Name, err)
	}

	p, err := e.manager.GetHistoricalProvider(job.Config.Provider)
	if err != nil {
		return err
	}

	result, err := e.updater.Update(ctx, fetcher.New(p, e.fetcherConfig), key)
	if err != nil {
		return err
	}

	e.log.Infof("%s: %d fetched, %d added, %d total rows",
		key, result.Fetched, result.Added, result.TotalRows)
	if result.Partial {
		return fmt.Errorf("%s 更新不完整，已保留 %d 根K线", key, result.Fetched)
	}
	return nil
}

var _ JobExecutor = (*UpdateExecutor)(nil)
