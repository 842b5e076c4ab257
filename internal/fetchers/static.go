package fetchers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/chubarkul/kaspi-parser/internal/models"
	"github.com/chubarkul/kaspi-parser/internal/utils"
	"github.com/gocolly/colly/v2"
)

// StaticFetcher 直连HTTP抓取器(使用Colly)
// 不执行JavaScript,适用于服务端直出HTML的页面。速度快,但对
// 依赖前端渲染的列表页可能只拿到空壳。
type StaticFetcher struct {
	httpClient     *http.Client
	config         models.ParseConfig
	headerProvider models.HeaderProvider
	retryPolicy    *RetryPolicy
}

// NewStaticFetcher 创建直连HTTP抓取器
func NewStaticFetcher(config models.ParseConfig, headerProvider models.HeaderProvider) *StaticFetcher {
	httpTimeout := time.Duration(config.Timeout) * time.Second

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true, // 允许代理出口的证书替换
		},
	}

	// 代理配置(带凭证)
	if config.ProxyServer != "" {
		if proxyURL, err := buildProxyURL(config); err != nil {
			utils.Warnf("代理配置无效,将直连: %v", err)
		} else {
			transport.Proxy = http.ProxyURL(proxyURL)
			utils.Infof("🔀 静态抓取使用代理: %s", config.ProxyServer)
		}
	}

	return &StaticFetcher{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   httpTimeout,
		},
		config:         config,
		headerProvider: headerProvider,
		retryPolicy: NewRetryPolicy(
			config.RetryAttempts,
			time.Duration(config.RetryBaseDelay)*time.Second,
			time.Duration(config.RetryMaxDelay)*time.Second,
		),
	}
}

// FetchPage 抓取第pageNum页
// 429响应按退避策略重试,其余HTTP错误直接返回FetchError。
func (sf *StaticFetcher) FetchPage(ctx context.Context, pageNum int) (*PageContent, error) {
	pageURL := sf.config.PageURL(pageNum)

	var content *PageContent
	err := sf.retryPolicy.Do(ctx, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := sf.fetchOnce(pageURL)
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

// fetchOnce 执行单次请求
// Colly的回调是注册制且无法注销,每次请求使用独立的collector实例,
// 避免跨请求的闭包状态污染(翻页是顺序的,创建开销可以忽略)。
func (sf *StaticFetcher) fetchOnce(pageURL string) (*PageContent, error) {
	c := colly.NewCollector()
	c.SetClient(sf.httpClient)
	c.SetRequestTimeout(sf.httpClient.Timeout)
	c.AllowURLRevisit = true

	var (
		body       []byte
		statusCode int
		fetchErr   error
	)

	// 请求前注入自定义头部和Cookie
	c.OnRequest(func(r *colly.Request) {
		if sf.headerProvider != nil {
			headers, err := sf.headerProvider.GetHeaders()
			if err != nil {
				utils.Warnf("获取HTTP头部失败: %v", err)
			} else {
				for name, values := range headers {
					if len(values) > 0 {
						r.Headers.Set(name, values[0])
					}
				}
			}
		}

		if cookieHeader := buildCookieHeader(sf.config.Cookies); cookieHeader != "" {
			r.Headers.Set("Cookie", cookieHeader)
		}

		utils.Debugf("访问: %s", r.URL.String())
	})

	c.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode

		decoded := r.Body
		if encoding := r.Headers.Get("Content-Encoding"); encoding != "" {
			decompressed, err := decompressBody(encoding, r.Body)
			if err != nil {
				utils.Warnf("解压响应失败 [%s] (编码=%s): %v", pageURL, encoding, err)
			} else {
				decoded = decompressed
			}
		}
		body = decoded
	})

	c.OnError(func(r *colly.Response, err error) {
		statusCode = r.StatusCode
		fetchErr = err
	})

	if err := c.Visit(pageURL); err != nil {
		// Visit本身的错误(URL非法等)没有可用状态码
		if statusCode == 0 {
			return nil, fmt.Errorf("请求失败 [%s]: %w", pageURL, err)
		}
	}
	c.Wait()

	if fetchErr != nil || statusCode >= 400 {
		return nil, &FetchError{URL: pageURL, Status: statusCode, Cause: fetchErr}
	}

	html := string(body)
	if strings.TrimSpace(html) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyPage, pageURL)
	}

	stub := IsStubPage(html)
	if stub {
		utils.Warnf("⚠️ 检测到占位页(维护/封锁): %s", pageURL)
	}

	return &PageContent{
		URL:  pageURL,
		HTML: html,
		Stub: stub,
	}, nil
}

// Close 直连抓取器无需释放资源
func (sf *StaticFetcher) Close() error {
	return nil
}

// buildProxyURL 由配置构造带凭证的代理URL
func buildProxyURL(config models.ParseConfig) (*url.URL, error) {
	proxyURL, err := url.Parse(config.ProxyServer)
	if err != nil {
		return nil, fmt.Errorf("解析代理地址失败: %w", err)
	}
	if config.ProxyUsername != "" {
		proxyURL.User = url.UserPassword(config.ProxyUsername, config.ProxyPassword)
	}
	return proxyURL, nil
}

// buildCookieHeader 将Cookie集合序列化为Cookie请求头
func buildCookieHeader(cookies []models.Cookie) string {
	if len(cookies) == 0 {
		return ""
	}
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// decompressBody 根据Content-Encoding解压响应体
// 支持 gzip, deflate, br (Brotli) 三种压缩格式。
func decompressBody(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip":
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		reader := brotli.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "":
		return body, nil

	default:
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}
