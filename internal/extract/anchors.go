package extract

import (
	"regexp"

	"github.com/chubarkul/kaspi-parser/internal/models"
)

// productAnchorRegex 匹配指向商品详情页(/shop/p/...)的链接
// 分组1为href,分组2为链接文本(标题)。
var productAnchorRegex = regexp.MustCompile(`<a[^>]+href="(/shop/p/[^"]+)"[^>]*>([^<]+)</a>`)

// AnchorStrategy 正则匹配商品链接的兜底策略
// 不依赖页面DOM结构,只要HTML里有商品详情页链接就能工作。
// 此策略无法提取价格,Price一律为nil。
type AnchorStrategy struct {
	baseOrigin string
}

// NewAnchorStrategy 创建正则提取策略
func NewAnchorStrategy(baseOrigin string) *AnchorStrategy {
	return &AnchorStrategy{baseOrigin: baseOrigin}
}

// Name 策略名称
func (s *AnchorStrategy) Name() string {
	return "anchors"
}

// Extract 正则扫描HTML中的商品链接
func (s *AnchorStrategy) Extract(html string, _ []byte) ([]*models.ProductRecord, int, error) {
	matches := productAnchorRegex.FindAllStringSubmatch(html, -1)

	products := make([]*models.ProductRecord, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	dropped := 0

	for _, m := range matches {
		href, title := m[1], m[2]

		record, err := models.NewProductRecord(title, href, s.baseOrigin, "")
		if err != nil {
			dropped++
			continue
		}

		// 同一页内按URL去重,避免重复链接产生重复记录
		if seen[record.URL] {
			continue
		}
		seen[record.URL] = true
		products = append(products, record)
	}

	return products, dropped, nil
}
