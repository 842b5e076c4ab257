package main

import (
	"fmt"
	"net/url"

	"github.com/chubarkul/kaspi-parser/internal/utils"
)

// ValidateFlags 验证命令行标志
// 零值表示"使用配置文件默认值",不参与校验。
func ValidateFlags(
	categoryURL string,
	maxPages int,
	waitTime int,
	timeout int,
	mode string,
) error {
	if categoryURL != "" {
		if err := utils.ValidateURL(categoryURL); err != nil {
			return fmt.Errorf("无效的分类URL: %w", err)
		}
	}

	if maxPages != 0 && (maxPages < 1 || maxPages > 1000) {
		return fmt.Errorf("翻页数必须在1-1000之间,当前值: %d", maxPages)
	}

	if waitTime >= 0 && waitTime > 60 {
		return fmt.Errorf("等待时间必须在0-60秒之间,当前值: %d", waitTime)
	}

	if timeout != 0 && (timeout < 1 || timeout > 300) {
		return fmt.Errorf("超时必须在1-300秒之间,当前值: %d", timeout)
	}

	if mode != "" {
		validModes := map[string]bool{
			"auto":     true,
			"static":   true,
			"rendered": true,
		}
		if !validModes[mode] {
			return fmt.Errorf("无效的抓取模式: %s (有效值: auto, static, rendered)", mode)
		}
	}

	return nil
}

// NormalizeURL 规范化URL
// 缺少协议时默认补全https。
func NormalizeURL(urlStr string) (string, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}

	if parsed.Scheme == "" {
		urlStr = "https://" + urlStr
		parsed, err = url.Parse(urlStr)
		if err != nil {
			return "", err
		}
	}

	return parsed.String(), nil
}
