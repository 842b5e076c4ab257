package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chubarkul/kaspi-parser/internal/fetchers"
	"github.com/chubarkul/kaspi-parser/internal/models"
	"github.com/chubarkul/kaspi-parser/internal/store"
	"github.com/chubarkul/kaspi-parser/internal/utils"
	"github.com/google/uuid"
)

// PageExtractor 商品提取器抽象
type PageExtractor interface {
	// Extract 返回商品列表、命中的策略名称和验证失败被丢弃的记录数
	Extract(html string, payload []byte) ([]*models.ProductRecord, string, int, error)
}

// Runner 分类翻页解析器
// 严格顺序地逐页走完分类列表: 抓取 → 提取 → 入库,每页一个事务。
// 终止条件: 某页零商品、达到翻页上限、或不可重试的失败。
// 失败终止时已入库的页保持提交状态,报告记录部分进度。
type Runner struct {
	config    models.ParseConfig
	fetcher   fetchers.Fetcher
	extractor PageExtractor
	sink      store.Sink
	reporter  *utils.Reporter
}

// NewRunner 创建解析器
// reporter可为nil,此时不落盘运行报告。
func NewRunner(config models.ParseConfig, fetcher fetchers.Fetcher, extractor PageExtractor, sink store.Sink, reporter *utils.Reporter) *Runner {
	return &Runner{
		config:    config,
		fetcher:   fetcher,
		extractor: extractor,
		sink:      sink,
		reporter:  reporter,
	}
}

// Run 执行一次完整的分类解析
// 无论成功失败都返回运行报告;错误与报告并存时,报告反映失败前的部分进度。
func (r *Runner) Run(ctx context.Context) (*models.RunReport, error) {
	taskID := uuid.New().String()
	startTime := time.Now()

	utils.Infof("🚀 解析启动 [%s]", taskID)
	utils.Infof("分类URL: %s", r.config.CategoryURL)
	utils.Infof("最大页数: %d, 模式: %s", r.config.MaxPages, r.config.Mode)

	report := &models.RunReport{
		TaskID:      taskID,
		CategoryURL: r.config.CategoryURL,
		Mode:        string(r.config.Mode),
		StartTime:   startTime,
		Pages:       make([]models.PageResult, 0, r.config.MaxPages),
		Config:      r.config,
	}

	runErr := r.ensureSchemaAndWalk(ctx, report)

	report.EndTime = time.Now()
	report.Stats.Duration = report.EndTime.Sub(startTime).Seconds()
	report.Host = utils.CaptureHostSnapshot()

	utils.Infof("🏁 解析结束 [%s]: 抓取 %d 页, 提取 %d, 入库 %d, 重复跳过 %d, 耗时 %.2f秒",
		taskID, report.Stats.PagesFetched, report.Stats.Extracted,
		report.Stats.Inserted, report.Stats.Skipped, report.Stats.Duration)

	if r.reporter != nil {
		if err := r.reporter.SaveRunReport(report); err != nil {
			utils.Warnf("保存运行报告失败: %v", err)
		}
	}

	return report, runErr
}

// ensureSchemaAndWalk 建表后顺序翻页
func (r *Runner) ensureSchemaAndWalk(ctx context.Context, report *models.RunReport) error {
	if err := r.sink.EnsureSchema(ctx); err != nil {
		return err
	}

	bar := utils.NewProgressBar(r.config.MaxPages, "翻页解析")

	for pageNum := 1; pageNum <= r.config.MaxPages; pageNum++ {
		done, err := r.processPage(ctx, pageNum, report)
		_ = bar.Add(1)
		if err != nil {
			return fmt.Errorf("第 %d 页处理失败: %w", pageNum, err)
		}
		if done {
			return nil
		}
	}

	utils.Infof("已达到最大页数上限 (%d),停止翻页", r.config.MaxPages)
	return nil
}

// processPage 处理单页,返回done=true表示正常终止翻页
func (r *Runner) processPage(ctx context.Context, pageNum int, report *models.RunReport) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	content, err := r.fetcher.FetchPage(ctx, pageNum)
	if err != nil {
		// 空响应体是页级终止信号,不算抓取失败
		if errors.Is(err, fetchers.ErrEmptyPage) {
			report.Stats.PagesFetched++
			report.Stats.PagesEmpty++
			report.Pages = append(report.Pages, models.PageResult{
				Page: pageNum,
				URL:  r.config.PageURL(pageNum),
			})
			utils.Warnf("🛑 第 %d 页响应体为空,停止翻页", pageNum)
			return true, nil
		}
		return false, err
	}
	report.Stats.PagesFetched++

	result := models.PageResult{
		Page: pageNum,
		URL:  content.URL,
		Stub: content.Stub,
	}

	// 占位页按零商品处理,不算抓取失败
	if content.Stub {
		report.Stats.PagesEmpty++
		report.Pages = append(report.Pages, result)
		utils.Warnf("🛑 第 %d 页为占位页,停止翻页", pageNum)
		return true, nil
	}

	products, strategy, dropped, err := r.extractor.Extract(content.HTML, content.Payload)
	if err != nil {
		return false, err
	}
	result.Strategy = strategy
	result.Extracted = len(products)
	report.Stats.FailedRecords += dropped

	// 零商品页意味着走到了分类末尾
	if len(products) == 0 {
		report.Stats.PagesEmpty++
		report.Pages = append(report.Pages, result)
		utils.Infof("🛑 第 %d 页无商品,翻页结束", pageNum)
		return true, nil
	}

	report.Stats.Extracted += len(products)
	utils.Infof("🔍 第 %d 页提取 %d 个商品 (策略: %s)", pageNum, len(products), strategy)

	inserted, skipped, err := r.sink.SaveProducts(ctx, products)
	if err != nil {
		return false, err
	}
	result.Inserted = inserted
	report.Stats.Inserted += inserted
	report.Stats.Skipped += skipped

	report.Pages = append(report.Pages, result)
	return false, nil
}
