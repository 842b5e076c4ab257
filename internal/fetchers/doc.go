// Package fetchers 实现商品列表页的两种抓取方式
//
// # 抓取器
//
// StaticFetcher(直连HTTP):
//   - 基于Colly发起普通HTTP请求,不执行JavaScript
//   - 支持代理、Cookie注入、自定义头部和gzip/deflate/brotli解压
//   - 适用于服务端直出HTML的页面,速度快
//
// RenderedFetcher(无头浏览器渲染):
//   - 基于Rod驱动Chromium完整渲染页面
//   - 注入navigator伪装脚本,覆盖UA/时区/视口,降低自动化特征
//   - 拦截并中止图片/媒体/字体与广告统计请求,加快渲染
//   - 轮询捕获页面内嵌JSON状态对象,作为最可靠的数据源
//   - 自动处理城市选择弹窗
//
// # 模式选择
//
// auto模式优先启动浏览器渲染,浏览器不可用(未安装Chromium等)时
// 自动退回直连HTTP,保证任务总能跑起来。
//
// # 限流处理
//
// 两种抓取器共用RetryPolicy: 仅对HTTP 429做指数退避重试,
// 其余失败(超时、5xx、解析错误)直接向上传播,由调用方决定终止。
// 维护/封锁占位页不算抓取失败,标记Stub=true按零商品处理。
package fetchers
