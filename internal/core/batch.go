package core

import (
	"context"
	"fmt"
	"time"

	"github.com/chubarkul/kaspi-parser/internal/extract"
	"github.com/chubarkul/kaspi-parser/internal/fetchers"
	"github.com/chubarkul/kaspi-parser/internal/models"
	"github.com/chubarkul/kaspi-parser/internal/store"
	"github.com/chubarkul/kaspi-parser/internal/utils"
)

// BatchRunner 批量解析器
// 按顺序解析多个分类URL,各分类独立建抓取器,共享同一个数据库连接池。
type BatchRunner struct {
	baseConfig     models.ParseConfig
	sink           store.Sink
	reporter       *utils.Reporter
	headerProvider models.HeaderProvider
	batchDelay     time.Duration
	continueOnErr  bool
}

// BatchResult 单个分类的解析结果
type BatchResult struct {
	CategoryURL string
	Success     bool
	Error       error
	Stats       models.RunStats
	ProcessedAt time.Time
}

// BatchSummary 批量解析摘要
type BatchSummary struct {
	TotalCategories int
	SuccessCount    int
	FailCount       int
	TotalExtracted  int
	TotalInserted   int
	TotalDuration   float64
	Results         []BatchResult
}

// NewBatchRunner 创建批量解析器
func NewBatchRunner(baseConfig models.ParseConfig, sink store.Sink, reporter *utils.Reporter, headerProvider models.HeaderProvider, batchDelay int, continueOnErr bool) *BatchRunner {
	return &BatchRunner{
		baseConfig:     baseConfig,
		sink:           sink,
		reporter:       reporter,
		headerProvider: headerProvider,
		batchDelay:     time.Duration(batchDelay) * time.Second,
		continueOnErr:  continueOnErr,
	}
}

// RunBatch 依次解析分类URL列表
func (br *BatchRunner) RunBatch(ctx context.Context, categoryURLs []string) (*BatchSummary, error) {
	utils.Infof("🚀 开始批量解析: %d个分类", len(categoryURLs))

	summary := &BatchSummary{
		TotalCategories: len(categoryURLs),
		Results:         make([]BatchResult, 0, len(categoryURLs)),
	}

	startTime := time.Now()
	bar := utils.NewProgressBar(len(categoryURLs), "分类解析")

	for i, categoryURL := range categoryURLs {
		utils.Infof("\n==================== [%d/%d] ====================", i+1, len(categoryURLs))
		utils.Infof("分类URL: %s", categoryURL)

		result := br.runSingleCategory(ctx, categoryURL)
		summary.Results = append(summary.Results, result)
		_ = bar.Add(1)

		if result.Success {
			summary.SuccessCount++
			summary.TotalExtracted += result.Stats.Extracted
			summary.TotalInserted += result.Stats.Inserted
		} else {
			summary.FailCount++
			utils.Errorf("❌ 分类解析失败: %v", result.Error)

			if !br.continueOnErr {
				utils.Warn("批量解析中止 (--continue-on-error=false)")
				break
			}
		}

		// 分类间延迟(最后一个不需要)
		if i < len(categoryURLs)-1 && br.batchDelay > 0 {
			utils.Debugf("等待 %.0f 秒后处理下一个分类...", br.batchDelay.Seconds())
			select {
			case <-ctx.Done():
				summary.TotalDuration = time.Since(startTime).Seconds()
				return summary, ctx.Err()
			case <-time.After(br.batchDelay):
			}
		}
	}

	summary.TotalDuration = time.Since(startTime).Seconds()
	br.printSummary(summary)

	return summary, nil
}

// runSingleCategory 解析单个分类
func (br *BatchRunner) runSingleCategory(ctx context.Context, categoryURL string) BatchResult {
	result := BatchResult{
		CategoryURL: categoryURL,
		ProcessedAt: time.Now(),
	}

	cfg := br.baseConfig
	cfg.CategoryURL = categoryURL
	if err := cfg.Validate(); err != nil {
		result.Error = fmt.Errorf("分类配置无效: %w", err)
		return result
	}

	fetcher, err := fetchers.NewFetcher(cfg, br.headerProvider)
	if err != nil {
		result.Error = fmt.Errorf("创建抓取器失败: %w", err)
		return result
	}
	defer func() {
		if closeErr := fetcher.Close(); closeErr != nil {
			utils.Warnf("关闭抓取器失败: %v", closeErr)
		}
	}()

	runner := NewRunner(cfg, fetcher, extract.NewExtractor(cfg.BaseOrigin()), br.sink, br.reporter)
	report, err := runner.Run(ctx)
	if report != nil {
		result.Stats = report.Stats
	}
	if err != nil {
		result.Error = err
		return result
	}

	result.Success = true
	return result
}

// printSummary 打印批量解析摘要
func (br *BatchRunner) printSummary(summary *BatchSummary) {
	utils.Info("\n==================================================")
	utils.Info("📊 批量解析摘要")
	utils.Info("==================================================")
	utils.Infof("总分类数: %d", summary.TotalCategories)
	utils.Infof("✅ 成功: %d", summary.SuccessCount)
	utils.Infof("❌ 失败: %d", summary.FailCount)
	utils.Infof("📦 提取商品数: %d", summary.TotalExtracted)
	utils.Infof("💾 入库商品数: %d", summary.TotalInserted)
	utils.Infof("⏱️  总耗时: %.2f秒", summary.TotalDuration)
	utils.Info("==================================================")

	if summary.FailCount > 0 {
		utils.Warn("\n失败的分类:")
		for _, result := range summary.Results {
			if !result.Success {
				utils.Warnf("  - %s: %v", result.CategoryURL, result.Error)
			}
		}
	}
}
