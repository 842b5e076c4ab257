package models

import (
	"fmt"
	"net/url"
	"strings"
)

// FetchMode 抓取模式
type FetchMode string

const (
	ModeAuto     FetchMode = "auto"     // 自动: 优先渲染,浏览器不可用时退回直连
	ModeStatic   FetchMode = "static"   // 仅直连HTTP请求
	ModeRendered FetchMode = "rendered" // 仅无头浏览器渲染
)

// ParseConfig 解析任务配置
// 进程启动时构造一次,只读,按值传入各组件。任何组件不直接读环境变量。
type ParseConfig struct {
	CategoryURL string    `json:"category_url"` // 分类列表基础URL
	MaxPages    int       `json:"max_pages"`    // 最大翻页数
	CityID      string    `json:"city_id"`      // 城市ID(追加为c=查询参数,可为空)
	Mode        FetchMode `json:"mode"`         // 抓取模式

	// 浏览器渲染相关
	Headless bool `json:"headless"`  // 无头模式
	WaitTime int  `json:"wait_time"` // 页面加载后的静置等待(秒)
	Timeout  int  `json:"timeout"`   // 单次导航/请求超时(秒)

	// 429限流重试
	RetryAttempts  int `json:"retry_attempts"`   // 最大尝试次数
	RetryBaseDelay int `json:"retry_base_delay"` // 首次重试延迟(秒)
	RetryMaxDelay  int `json:"retry_max_delay"`  // 重试延迟上限(秒)

	// 代理(单个静态凭证,不做轮换)
	ProxyServer   string `json:"proxy_server"`
	ProxyUsername string `json:"proxy_username"`
	ProxyPassword string `json:"-"`

	// 反爬辅助
	Cookies    []Cookie `json:"-"`           // 注入的Cookie集合
	CityMarker string   `json:"city_marker"` // 城市弹窗选择的城市名
}

// Validate 验证配置
// 在任何网络/数据库活动之前调用,失败即为致命错误。
func (c *ParseConfig) Validate() error {
	if strings.TrimSpace(c.CategoryURL) == "" {
		return fmt.Errorf("分类URL不能为空")
	}
	parsed, err := url.Parse(c.CategoryURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("分类URL格式无效: %s", c.CategoryURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("分类URL协议必须是http或https")
	}
	if c.MaxPages < 1 || c.MaxPages > 1000 {
		return fmt.Errorf("最大翻页数必须在1-1000之间")
	}
	if c.WaitTime < 0 || c.WaitTime > 60 {
		return fmt.Errorf("等待时间必须在0-60秒之间")
	}
	if c.Timeout < 1 || c.Timeout > 300 {
		return fmt.Errorf("超时必须在1-300秒之间")
	}
	if c.RetryAttempts < 1 || c.RetryAttempts > 10 {
		return fmt.Errorf("重试次数必须在1-10之间")
	}
	if c.RetryBaseDelay < 1 || c.RetryMaxDelay < c.RetryBaseDelay {
		return fmt.Errorf("重试延迟配置无效: base=%d max=%d", c.RetryBaseDelay, c.RetryMaxDelay)
	}
	switch c.Mode {
	case ModeAuto, ModeStatic, ModeRendered:
	default:
		return fmt.Errorf("抓取模式无效: %s (应为 auto|static|rendered)", c.Mode)
	}
	return nil
}

// BaseOrigin 返回分类URL的源(scheme://host)
// 用于把商品相对href补全为绝对地址。
func (c *ParseConfig) BaseOrigin() string {
	parsed, err := url.Parse(c.CategoryURL)
	if err != nil {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}

// PageURL 构造第pageNum页的完整URL
// 保留分类URL已有的查询参数,追加page和可选的c=城市ID。
func (c *ParseConfig) PageURL(pageNum int) string {
	parsed, err := url.Parse(c.CategoryURL)
	if err != nil {
		return c.CategoryURL
	}
	q := parsed.Query()
	q.Set("page", fmt.Sprintf("%d", pageNum))
	if c.CityID != "" {
		q.Set("c", c.CityID)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String()
}
