package extract

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/chubarkul/kaspi-parser/internal/models"
)

// kaspiPageState 页面内嵌状态对象 window.__KASPIPAGE__ 的结构
// 只声明需要的路径: data.catalogModel.productList
type kaspiPageState struct {
	Data struct {
		CatalogModel struct {
			ProductList []embeddedProduct `json:"productList"`
		} `json:"catalogModel"`
	} `json:"data"`
}

// embeddedProduct 内嵌JSON中的单个商品
type embeddedProduct struct {
	Name  string   `json:"name"`
	URL   string   `json:"url"`
	Price *float64 `json:"price"`
}

// EmbeddedStrategy 从内嵌JSON状态对象解析商品列表
// 渲染模式下从页面捕获 window.__KASPIPAGE__ 序列化后作为payload传入。
// 这是最可靠的策略: 数据结构化,价格为精确数字。
type EmbeddedStrategy struct {
	baseOrigin string
}

// NewEmbeddedStrategy 创建内嵌JSON提取策略
func NewEmbeddedStrategy(baseOrigin string) *EmbeddedStrategy {
	return &EmbeddedStrategy{baseOrigin: baseOrigin}
}

// Name 策略名称
func (s *EmbeddedStrategy) Name() string {
	return "embedded"
}

// Extract 解析payload中的商品列表
// payload为空时直接返回空结果(静态模式无内嵌状态捕获)。
func (s *EmbeddedStrategy) Extract(_ string, payload []byte) ([]*models.ProductRecord, int, error) {
	if len(payload) == 0 {
		return nil, 0, nil
	}

	var state kaspiPageState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, 0, fmt.Errorf("解析内嵌JSON失败: %w", err)
	}

	list := state.Data.CatalogModel.ProductList
	products := make([]*models.ProductRecord, 0, len(list))
	dropped := 0

	for _, item := range list {
		record := &models.ProductRecord{
			Title:     item.Name,
			URL:       models.ResolveURL(s.baseOrigin, item.URL),
			FetchedAt: time.Now(),
		}
		if item.Price != nil {
			record.Price = models.PriceFromNumber(*item.Price)
		}
		if err := record.Validate(); err != nil {
			dropped++
			continue
		}
		products = append(products, record)
	}

	return products, dropped, nil
}
