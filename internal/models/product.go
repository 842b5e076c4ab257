package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"
)

// ProductRecord 商品记录
// 解析器的唯一领域实体: 一条商品(标题+链接+价格)记录。
// URL是去重主键,入库时冲突即跳过。
type ProductRecord struct {
	Title string `json:"title"` // 商品标题(去除首尾空白)
	URL   string `json:"url"`   // 商品详情页绝对URL(去重主键)

	// Price 价格,单位为坚戈(整数)。
	// 嵌入式JSON给出数字价格,DOM/正则策略给出带货币符号的显示字符串,
	// 统一在构造记录时归一化为整数;无法解析时为nil(入库为NULL)。
	Price *int64 `json:"price,omitempty"`

	FetchedAt time.Time `json:"fetched_at"` // 抓取时间
}

// Validate 验证记录有效性
// 标题和URL去除空白后必须非空,URL必须为绝对地址。
func (p *ProductRecord) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("商品标题为空")
	}
	if strings.TrimSpace(p.URL) == "" {
		return fmt.Errorf("商品URL为空")
	}
	parsed, err := url.Parse(p.URL)
	if err != nil {
		return fmt.Errorf("商品URL格式无效: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("商品URL必须是http/https绝对地址: %s", p.URL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("商品URL缺少主机名: %s", p.URL)
	}
	return nil
}

// NewProductRecord 构造商品记录
// 统一完成: 标题去空白、相对href解析为绝对URL、价格归一化。
// 标题或URL为空时返回错误,调用方跳过该记录即可(不是页级错误)。
func NewProductRecord(title, href, baseOrigin, rawPrice string) (*ProductRecord, error) {
	record := &ProductRecord{
		Title:     strings.TrimSpace(title),
		URL:       ResolveURL(baseOrigin, href),
		Price:     NormalizePrice(rawPrice),
		FetchedAt: time.Now(),
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}
	return record, nil
}

// ResolveURL 将相对href解析为绝对URL
// 例: base=https://kaspi.kz, href=/shop/p/item-123 -> https://kaspi.kz/shop/p/item-123
// href已经是绝对地址时原样返回。
func ResolveURL(baseOrigin, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	base, err := url.Parse(baseOrigin)
	if err != nil || base.Host == "" {
		return href
	}
	rel, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(rel).String()
}

// PriceFromNumber 将JSON数字价格转换为整数坚戈
// 嵌入式JSON的price字段反序列化为float64,负数视为无效。
func PriceFromNumber(v float64) *int64 {
	if v < 0 {
		return nil
	}
	p := int64(v)
	return &p
}

// NormalizePrice 价格归一化
// 显示字符串(如 "1 234 567 ₸")仅保留数字位,解析为整数坚戈。
// 空串或无数字时返回nil。
func NormalizePrice(raw string) *int64 {
	var digits strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 || digits.Len() > 18 {
		return nil
	}

	var value int64
	for _, r := range digits.String() {
		value = value*10 + int64(r-'0')
	}
	return &value
}
