package fetchers

import (
	"strings"
	"time"

	"github.com/chubarkul/kaspi-parser/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// stubMarkers 维护/封锁占位页的特征文本
// 页面HTML包含任一标记即视为占位页,该页按零商品处理。
var stubMarkers = []string{
	"Технические работы",
	"Что-то пошло не так",
}

// citySelectorPopup 城市选择弹窗的选择器
const citySelectorPopup = ".city-selector__popup"

// IsStubPage 判断HTML是否为维护/封锁占位页
func IsStubPage(html string) bool {
	for _, marker := range stubMarkers {
		if strings.Contains(html, marker) {
			return true
		}
	}
	return false
}

// DismissCityPopup 处理城市选择弹窗
// 弹窗出现时点击配置的城市(默认"Алматы")关闭它;弹窗不存在或点击失败
// 都不算错误,页面照常向下处理。
func DismissCityPopup(page *rod.Page, cityMarker string) {
	popup, err := page.Timeout(2 * time.Second).Element(citySelectorPopup)
	if err != nil || popup == nil {
		utils.Debugf("城市弹窗未出现")
		return
	}

	utils.Infof("📍 检测到城市弹窗,尝试选择城市: %s", cityMarker)

	cityBtn, err := page.Timeout(2 * time.Second).ElementR("button, a, span", cityMarker)
	if err != nil || cityBtn == nil {
		utils.Warnf("未找到城市选项 [%s],跳过弹窗处理", cityMarker)
		return
	}

	if err := cityBtn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		utils.Warnf("点击城市选项失败: %v", err)
		return
	}

	// 等待弹窗关闭后的页面刷新
	time.Sleep(1 * time.Second)
	utils.Infof("✅ 城市已选择: %s", cityMarker)
}
