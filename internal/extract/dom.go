package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/chubarkul/kaspi-parser/internal/models"
)

const (
	// cardNameSelector 商品卡片标题节点选择器
	cardNameSelector = ".item-card__name"

	// cardContainerSelector 商品卡片容器选择器,用于向上查找价格节点
	cardContainerSelector = ".item-card"

	// cardPriceSelector 商品卡片价格节点选择器
	cardPriceSelector = ".item-card__prices-price"
)

// DOMStrategy 通过CSS选择器解析商品卡片
// 每个 .item-card__name 节点内取第一个<a>: 链接文本为标题,href为商品链接。
// 价格从同卡片的价格节点取显示文本,缺失时为nil。
type DOMStrategy struct {
	baseOrigin string
}

// NewDOMStrategy 创建DOM选择器提取策略
func NewDOMStrategy(baseOrigin string) *DOMStrategy {
	return &DOMStrategy{baseOrigin: baseOrigin}
}

// Name 策略名称
func (s *DOMStrategy) Name() string {
	return "dom"
}

// Extract 从HTML中解析商品卡片列表
func (s *DOMStrategy) Extract(html string, _ []byte) ([]*models.ProductRecord, int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, 0, fmt.Errorf("解析HTML失败: %w", err)
	}

	products := make([]*models.ProductRecord, 0)
	dropped := 0
	doc.Find(cardNameSelector).Each(func(_ int, card *goquery.Selection) {
		link := card.Find("a").First()
		if link.Length() == 0 {
			return
		}

		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		title := link.Text()

		// 价格节点在卡片容器内,与名称节点平级
		rawPrice := card.Closest(cardContainerSelector).Find(cardPriceSelector).First().Text()

		record, err := models.NewProductRecord(title, href, s.baseOrigin, rawPrice)
		if err != nil {
			dropped++
			return
		}
		products = append(products, record)
	})

	return products, dropped, nil
}
