package fetchers

import (
	"context"

	"github.com/chubarkul/kaspi-parser/internal/models"
	"github.com/chubarkul/kaspi-parser/internal/utils"
)

// PageContent 单个列表页的抓取结果
type PageContent struct {
	URL     string // 实际请求的页面URL
	HTML    string // 页面HTML(静态模式为响应体,渲染模式为渲染后DOM)
	Payload []byte // 渲染模式捕获的内嵌JSON状态(静态模式为空)
	Stub    bool   // 是否为维护/封锁占位页
}

// Fetcher 列表页抓取器接口
// 实现: StaticFetcher(直连HTTP)和RenderedFetcher(无头浏览器)。
type Fetcher interface {
	// FetchPage 抓取第pageNum页(从1开始)
	// 占位页不视为错误,返回Stub=true的内容由调用方决定如何处理。
	FetchPage(ctx context.Context, pageNum int) (*PageContent, error)

	// Close 释放抓取器持有的资源(浏览器实例等)
	Close() error
}

// NewFetcher 按配置的抓取模式创建抓取器
// auto模式优先启动浏览器渲染,浏览器不可用时退回直连HTTP。
func NewFetcher(config models.ParseConfig, headerProvider models.HeaderProvider) (Fetcher, error) {
	switch config.Mode {
	case models.ModeStatic:
		return NewStaticFetcher(config, headerProvider), nil

	case models.ModeRendered:
		return NewRenderedFetcher(config, headerProvider)

	case models.ModeAuto:
		fetcher, err := NewRenderedFetcher(config, headerProvider)
		if err != nil {
			utils.Warnf("浏览器启动失败,退回直连HTTP模式: %v", err)
			return NewStaticFetcher(config, headerProvider), nil
		}
		return fetcher, nil

	default:
		return NewStaticFetcher(config, headerProvider), nil
	}
}
