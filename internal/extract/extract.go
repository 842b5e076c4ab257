// Package extract 实现商品列表提取策略
//
// 支持三种提取策略,按可靠性从高到低排列:
//  1. EmbeddedStrategy - 从页面内嵌JSON状态对象中解析商品列表 (最可靠)
//  2. DOMStrategy      - 通过CSS选择器解析商品卡片DOM结构
//  3. AnchorStrategy   - 正则匹配商品详情页链接 (兜底方案)
//
// Extractor 按上述顺序自动选择第一个产出结果的策略。
package extract

import (
	"github.com/chubarkul/kaspi-parser/internal/models"
	"github.com/chubarkul/kaspi-parser/internal/utils"
)

// Strategy 商品提取策略接口
type Strategy interface {
	// Name 策略名称,用于日志和运行报告
	Name() string

	// Extract 从页面内容提取商品记录
	// html为页面HTML,payload为渲染模式下捕获的内嵌JSON (可能为空)。
	// dropped为验证失败被丢弃的记录数。
	Extract(html string, payload []byte) (records []*models.ProductRecord, dropped int, err error)
}

// Extractor 商品提取器,按策略优先级依次尝试
type Extractor struct {
	baseOrigin string
	strategies []Strategy
}

// NewExtractor 创建提取器
// baseOrigin用于将相对商品链接补全为绝对URL,如 https://kaspi.kz
func NewExtractor(baseOrigin string) *Extractor {
	return &Extractor{
		baseOrigin: baseOrigin,
		strategies: []Strategy{
			NewEmbeddedStrategy(baseOrigin),
			NewDOMStrategy(baseOrigin),
			NewAnchorStrategy(baseOrigin),
		},
	}
}

// Extract 依次尝试各策略,返回第一个产出商品的策略结果
// 返回: 商品列表、命中的策略名称、验证失败被丢弃的记录数、错误
// 所有策略都无结果时返回空列表 (不视为错误,由调用方判断是否终止);
// 此时丢弃数取各策略的最大值,以便区分"分类走到头"和"整页记录全部非法"。
func (e *Extractor) Extract(html string, payload []byte) ([]*models.ProductRecord, string, int, error) {
	maxDropped := 0
	for _, s := range e.strategies {
		products, dropped, err := s.Extract(html, payload)
		if err != nil {
			// 单个策略失败降级到下一个策略,不中断提取流程
			utils.Warnf("提取策略 [%s] 失败: %v", s.Name(), err)
			continue
		}
		if dropped > maxDropped {
			maxDropped = dropped
		}
		if len(products) > 0 {
			if dropped > 0 {
				utils.Warnf("提取策略 [%s] 丢弃 %d 条非法记录", s.Name(), dropped)
			}
			utils.Debugf("提取策略 [%s] 命中 %d 个商品", s.Name(), len(products))
			return products, s.Name(), dropped, nil
		}
	}

	return nil, "", maxDropped, nil
}
