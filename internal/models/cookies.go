package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Cookie 注入浏览器/HTTP会话的单条Cookie
// 与KASPI_COOKIES_JSON环境变量中的序列化结构对应。
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path,omitempty"`
}

// ParseCookiesJSON 解析序列化的Cookie列表
// 输入为JSON数组字符串,空串返回nil(未配置Cookie属正常情况)。
func ParseCookiesJSON(raw string) ([]Cookie, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var cookies []Cookie
	if err := json.Unmarshal([]byte(raw), &cookies); err != nil {
		return nil, fmt.Errorf("解析Cookie JSON失败: %w", err)
	}

	// 过滤无名Cookie,保留顺序
	valid := cookies[:0]
	for _, c := range cookies {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		if c.Path == "" {
			c.Path = "/"
		}
		valid = append(valid, c)
	}
	return valid, nil
}
