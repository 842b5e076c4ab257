package fetchers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chubarkul/kaspi-parser/internal/models"
	"github.com/chubarkul/kaspi-parser/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// maskingScript 注入到每个新文档的navigator伪装脚本
// 覆盖无头浏览器的自动化特征,降低被反爬识别的概率。
const maskingScript = `
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	Object.defineProperty(navigator, 'platform', { get: () => 'Win32' });
	Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4] });
	Object.defineProperty(navigator, 'languages', { get: () => ['ru-RU', 'ru'] });
	window.chrome = { runtime: {} };
`

// embeddedStatePoll 读取页面内嵌状态对象的脚本
// 对象存在时返回其JSON序列化,否则返回null。
const embeddedStatePoll = `() => window.__KASPIPAGE__ ? JSON.stringify(window.__KASPIPAGE__) : null`

const (
	// embeddedPollAttempts 内嵌状态轮询次数
	embeddedPollAttempts = 20
	// embeddedPollInterval 轮询间隔
	embeddedPollInterval = 500 * time.Millisecond

	// cardWaitSelector 等待商品卡片出现的选择器
	cardWaitSelector = ".item-card__name"
)

// blockedURLFragments 渲染时直接中止的请求URL片段(广告/统计/App横幅)
var blockedURLFragments = []string{"adfox", "google-analytics", "KaspiApp"}

// RenderedFetcher 无头浏览器渲染抓取器(使用Rod)
// 完整执行页面JavaScript,能拿到前端渲染的商品列表和内嵌JSON状态。
type RenderedFetcher struct {
	browser        *rod.Browser
	config         models.ParseConfig
	headerProvider models.HeaderProvider
	retryPolicy    *RetryPolicy
}

// NewRenderedFetcher 创建渲染抓取器并启动浏览器
// 浏览器启动失败返回包装了ErrBrowserUnavailable的错误,auto模式
// 据此退回直连抓取。
func NewRenderedFetcher(config models.ParseConfig, headerProvider models.HeaderProvider) (*RenderedFetcher, error) {
	l := launcher.New().
		Headless(config.Headless).
		Set("ignore-certificate-errors")

	if config.ProxyServer != "" {
		l = l.Proxy(config.ProxyServer)
		utils.Infof("🔀 渲染抓取使用代理: %s", config.ProxyServer)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: 启动失败: %v", ErrBrowserUnavailable, err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("%w: 连接失败: %v", ErrBrowserUnavailable, err)
	}

	// 代理凭证认证
	if config.ProxyServer != "" && config.ProxyUsername != "" {
		go func() {
			if err := browser.HandleAuth(config.ProxyUsername, config.ProxyPassword)(); err != nil {
				utils.Debugf("代理认证处理结束: %v", err)
			}
		}()
	}

	// Cookie注入到浏览器会话
	if len(config.Cookies) > 0 {
		params := make([]*proto.NetworkCookieParam, 0, len(config.Cookies))
		for _, c := range config.Cookies {
			params = append(params, &proto.NetworkCookieParam{
				Name:   c.Name,
				Value:  c.Value,
				Domain: c.Domain,
				Path:   c.Path,
			})
		}
		if err := browser.SetCookies(params); err != nil {
			utils.Warnf("注入Cookie失败: %v", err)
		} else {
			utils.Infof("🍪 已注入 %d 个Cookie", len(params))
		}
	}

	utils.Debugf("浏览器已启动: %s", controlURL)

	return &RenderedFetcher{
		browser:        browser,
		config:         config,
		headerProvider: headerProvider,
		retryPolicy: NewRetryPolicy(
			config.RetryAttempts,
			time.Duration(config.RetryBaseDelay)*time.Second,
			time.Duration(config.RetryMaxDelay)*time.Second,
		),
	}, nil
}

// FetchPage 渲染并抓取第pageNum页
// 主文档429按退避策略重试;浏览器panic被捕获并转换为错误。
func (rf *RenderedFetcher) FetchPage(ctx context.Context, pageNum int) (*PageContent, error) {
	pageURL := rf.config.PageURL(pageNum)

	var content *PageContent
	err := rf.retryPolicy.Do(ctx, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := rf.renderOnce(ctx, pageURL)
		if err != nil {
			return err
		}
		content = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	return content, nil
}

// renderOnce 在新标签页中渲染一次页面
func (rf *RenderedFetcher) renderOnce(ctx context.Context, pageURL string) (content *PageContent, err error) {
	// Rod的操作在失败时panic,统一转换为错误返回
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("页面渲染panic [%s]: %v", pageURL, r)
			err = fmt.Errorf("页面渲染失败 [%s]: %v", pageURL, r)
		}
	}()

	page, err := rf.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("创建标签页失败: %w", err)
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			utils.Debugf("关闭标签页失败: %v", closeErr)
		}
	}()

	page = page.Context(ctx)

	if err := rf.preparePage(page); err != nil {
		return nil, err
	}

	// 拦截请求: 注入头部,中止图片/媒体/字体与广告统计请求
	router := page.HijackRequests()
	rf.setupHijack(router)
	go router.Run()
	defer func() {
		if stopErr := router.Stop(); stopErr != nil {
			utils.Debugf("停止请求拦截失败: %v", stopErr)
		}
	}()

	// 监听主文档响应状态,识别限流(拿到文档状态后停止订阅)
	var docStatus int
	go page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type == proto.NetworkResourceTypeDocument {
			docStatus = e.Response.Status
			return true
		}
		return false
	})()

	utils.Infof("🌐 打开: %s", pageURL)

	navTimeout := time.Duration(rf.config.Timeout) * time.Second
	if err := page.Timeout(navTimeout).Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("导航失败 [%s]: %w", pageURL, err)
	}
	if err := page.Timeout(navTimeout).WaitLoad(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFetchTimeout, pageURL)
	}

	if docStatus >= 400 {
		return nil, &FetchError{URL: pageURL, Status: docStatus}
	}

	// 城市选择弹窗
	DismissCityPopup(page, rf.config.CityMarker)

	// 静置等待前端渲染,滚动触发懒加载
	if rf.config.WaitTime > 0 {
		time.Sleep(time.Duration(rf.config.WaitTime) * time.Second)
	}
	if err := page.Mouse.Scroll(0, 5000, 1); err != nil {
		utils.Debugf("页面滚动失败: %v", err)
	}

	// 等待商品卡片出现(超时不致命,交由提取策略降级)
	if _, err := page.Timeout(5 * time.Second).Element(cardWaitSelector); err != nil {
		utils.Debugf("未等到商品卡片节点: %v", err)
	}

	payload := rf.pollEmbeddedState(page)

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("读取页面HTML失败 [%s]: %w", pageURL, err)
	}
	if strings.TrimSpace(html) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyPage, pageURL)
	}

	stub := IsStubPage(html)
	if stub {
		utils.Warnf("⚠️ 检测到占位页(维护/封锁): %s", pageURL)
	}

	return &PageContent{
		URL:     pageURL,
		HTML:    html,
		Payload: payload,
		Stub:    stub,
	}, nil
}

// preparePage 配置标签页: UA/时区/视口覆盖,注入伪装脚本
func (rf *RenderedFetcher) preparePage(page *rod.Page) error {
	if rf.headerProvider != nil {
		if userAgent := rf.headerProvider.UserAgent(); userAgent != "" {
			if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
				UserAgent:      userAgent,
				AcceptLanguage: "ru-RU,ru;q=0.9",
				Platform:       "Win32",
			}); err != nil {
				return fmt.Errorf("设置UserAgent失败: %w", err)
			}
		}
	}

	if err := (proto.EmulationSetTimezoneOverride{TimezoneID: "Asia/Almaty"}).Call(page); err != nil {
		utils.Debugf("设置时区失败: %v", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1280,
		Height:            800,
		DeviceScaleFactor: 1,
		Mobile:            false,
	}); err != nil {
		utils.Debugf("设置视口失败: %v", err)
	}

	if _, err := page.EvalOnNewDocument(maskingScript); err != nil {
		return fmt.Errorf("注入伪装脚本失败: %w", err)
	}

	return nil
}

// setupHijack 配置请求拦截规则
func (rf *RenderedFetcher) setupHijack(router *rod.HijackRouter) {
	router.MustAdd("*", func(ctx *rod.Hijack) {
		reqURL := ctx.Request.URL().String()

		// 中止图片/媒体/字体,节省流量加快渲染
		switch ctx.Request.Type() {
		case proto.NetworkResourceTypeImage,
			proto.NetworkResourceTypeMedia,
			proto.NetworkResourceTypeFont:
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}

		// 中止广告和统计请求
		for _, fragment := range blockedURLFragments {
			if strings.Contains(reqURL, fragment) {
				ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
				return
			}
		}

		// 应用自定义HTTP头部
		if rf.headerProvider != nil {
			headers, err := rf.headerProvider.GetHeaders()
			if err != nil {
				utils.Warnf("获取HTTP头部失败: %v", err)
			} else {
				for name, values := range headers {
					if len(values) > 0 {
						ctx.Request.Req().Header.Set(name, values[0])
					}
				}
			}
		}

		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
}

// pollEmbeddedState 轮询页面内嵌状态对象
// 对象可能在渲染后才挂载,按固定间隔轮询,超过次数返回nil。
func (rf *RenderedFetcher) pollEmbeddedState(page *rod.Page) []byte {
	for i := 0; i < embeddedPollAttempts; i++ {
		result, err := page.Eval(embeddedStatePoll)
		if err != nil {
			utils.Debugf("读取内嵌状态失败: %v", err)
			return nil
		}
		if result != nil && !result.Value.Nil() {
			serialized := result.Value.Str()
			if serialized != "" {
				utils.Debugf("捕获内嵌状态对象 (%d bytes)", len(serialized))
				return []byte(serialized)
			}
		}
		time.Sleep(embeddedPollInterval)
	}

	utils.Debugf("未等到内嵌状态对象")
	return nil
}

// Close 关闭浏览器实例
func (rf *RenderedFetcher) Close() error {
	if rf.browser != nil {
		if err := rf.browser.Close(); err != nil {
			return fmt.Errorf("关闭浏览器失败: %w", err)
		}
		utils.Debugf("浏览器已关闭")
	}
	return nil
}
