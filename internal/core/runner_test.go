package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/chubarkul/kaspi-parser/internal/fetchers"
	"github.com/chubarkul/kaspi-parser/internal/models"
)

// fakeFetcher 按页号返回预设内容的抓取器
type fakeFetcher struct {
	pages  map[int]*fetchers.PageContent
	errs   map[int]error
	calls  []int
	closed bool
}

func (f *fakeFetcher) FetchPage(_ context.Context, pageNum int) (*fetchers.PageContent, error) {
	f.calls = append(f.calls, pageNum)
	if err, ok := f.errs[pageNum]; ok {
		return nil, err
	}
	if content, ok := f.pages[pageNum]; ok {
		return content, nil
	}
	return &fetchers.PageContent{URL: fmt.Sprintf("https://kaspi.kz/shop/c/shoes/?page=%d", pageNum)}, nil
}

func (f *fakeFetcher) Close() error {
	f.closed = true
	return nil
}

// fakeExtractor 按HTML内容返回预设商品的提取器
type fakeExtractor struct {
	products map[string][]*models.ProductRecord
	dropped  map[string]int
}

func (f *fakeExtractor) Extract(html string, _ []byte) ([]*models.ProductRecord, string, int, error) {
	if products, ok := f.products[html]; ok {
		return products, "dom", f.dropped[html], nil
	}
	return nil, "", f.dropped[html], nil
}

// fakeSink 记录保存调用的内存持久化
type fakeSink struct {
	saved     [][]*models.ProductRecord
	seenURLs  map[string]bool
	saveErr   error
	schemaErr error
}

func newFakeSink() *fakeSink {
	return &fakeSink{seenURLs: make(map[string]bool)}
}

func (f *fakeSink) EnsureSchema(_ context.Context) error {
	return f.schemaErr
}

func (f *fakeSink) SaveProducts(_ context.Context, products []*models.ProductRecord) (int, int, error) {
	if f.saveErr != nil {
		return 0, 0, f.saveErr
	}
	f.saved = append(f.saved, products)

	inserted, skipped := 0, 0
	for _, p := range products {
		if f.seenURLs[p.URL] {
			skipped++
			continue
		}
		f.seenURLs[p.URL] = true
		inserted++
	}
	return inserted, skipped, nil
}

func (f *fakeSink) Close() {}

func makeProducts(n int, prefix string) []*models.ProductRecord {
	products := make([]*models.ProductRecord, 0, n)
	for i := 1; i <= n; i++ {
		price := int64(10000 * i)
		products = append(products, &models.ProductRecord{
			Title:     fmt.Sprintf("Товар %s-%d", prefix, i),
			URL:       fmt.Sprintf("https://kaspi.kz/shop/p/%s-%d/", prefix, i),
			Price:     &price,
			FetchedAt: time.Now(),
		})
	}
	return products
}

func testConfig(maxPages int) models.ParseConfig {
	return models.ParseConfig{
		CategoryURL:    "https://kaspi.kz/shop/c/shoes/",
		MaxPages:       maxPages,
		CityID:         "750000000",
		Mode:           models.ModeStatic,
		Headless:       true,
		WaitTime:       0,
		Timeout:        30,
		RetryAttempts:  5,
		RetryBaseDelay: 10,
		RetryMaxDelay:  60,
		CityMarker:     "Алматы",
	}
}

func TestRunner_StopsOnEmptyPage(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[int]*fetchers.PageContent{
			1: {URL: "https://kaspi.kz/shop/c/shoes/?page=1", HTML: "page-1"},
			2: {URL: "https://kaspi.kz/shop/c/shoes/?page=2", HTML: "page-2-empty"},
		},
	}
	extractor := &fakeExtractor{
		products: map[string][]*models.ProductRecord{
			"page-1": makeProducts(3, "p1"),
		},
	}
	sink := newFakeSink()

	runner := NewRunner(testConfig(5), fetcher, extractor, sink, nil)
	report, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(fetcher.calls) != 2 {
		t.Errorf("抓取页数 = %d, 期望 2 (空页后停止)", len(fetcher.calls))
	}
	if report.Stats.PagesFetched != 2 {
		t.Errorf("PagesFetched = %d, 期望 2", report.Stats.PagesFetched)
	}
	if report.Stats.PagesEmpty != 1 {
		t.Errorf("PagesEmpty = %d, 期望 1", report.Stats.PagesEmpty)
	}
	if report.Stats.Extracted != 3 || report.Stats.Inserted != 3 {
		t.Errorf("Extracted/Inserted = %d/%d, 期望 3/3", report.Stats.Extracted, report.Stats.Inserted)
	}
	if len(sink.saved) != 1 {
		t.Errorf("入库事务数 = %d, 期望 1 (空页不入库)", len(sink.saved))
	}
	if len(report.Pages) != 2 {
		t.Errorf("报告页数 = %d, 期望 2", len(report.Pages))
	}
}

func TestRunner_StopsOnStubPage(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[int]*fetchers.PageContent{
			1: {URL: "https://kaspi.kz/shop/c/shoes/?page=1", HTML: "заглушка", Stub: true},
		},
	}
	sink := newFakeSink()

	runner := NewRunner(testConfig(5), fetcher, &fakeExtractor{}, sink, nil)
	report, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("占位页不应返回错误, got %v", err)
	}

	if len(fetcher.calls) != 1 {
		t.Errorf("抓取页数 = %d, 期望 1", len(fetcher.calls))
	}
	if report.Stats.PagesEmpty != 1 {
		t.Errorf("PagesEmpty = %d, 期望 1", report.Stats.PagesEmpty)
	}
	if len(sink.saved) != 0 {
		t.Errorf("占位页不应触发入库, 实际 %d 次", len(sink.saved))
	}
	if len(report.Pages) != 1 || !report.Pages[0].Stub {
		t.Error("报告应记录占位页标记")
	}
}

func TestRunner_EmptyBodyEndsWalk(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[int]*fetchers.PageContent{
			1: {URL: "https://kaspi.kz/shop/c/shoes/?page=1", HTML: "page-1"},
		},
		errs: map[int]error{
			2: fmt.Errorf("%w: https://kaspi.kz/shop/c/shoes/?page=2", fetchers.ErrEmptyPage),
		},
	}
	extractor := &fakeExtractor{
		products: map[string][]*models.ProductRecord{
			"page-1": makeProducts(3, "p1"),
		},
	}
	sink := newFakeSink()

	runner := NewRunner(testConfig(5), fetcher, extractor, sink, nil)
	report, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("空响应体是页级终止信号, 不应返回错误, got %v", err)
	}

	if len(fetcher.calls) != 2 {
		t.Errorf("抓取页数 = %d, 期望 2 (空响应体后停止)", len(fetcher.calls))
	}
	if report.Stats.PagesFetched != 2 {
		t.Errorf("PagesFetched = %d, 期望 2", report.Stats.PagesFetched)
	}
	if report.Stats.PagesEmpty != 1 {
		t.Errorf("PagesEmpty = %d, 期望 1", report.Stats.PagesEmpty)
	}
	// 第1页已入库的数据保持不变
	if report.Stats.Inserted != 3 {
		t.Errorf("Inserted = %d, 期望 3", report.Stats.Inserted)
	}
	if len(report.Pages) != 2 {
		t.Errorf("报告页数 = %d, 期望 2", len(report.Pages))
	}
}

func TestRunner_CountsFailedRecords(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[int]*fetchers.PageContent{
			1: {URL: "https://kaspi.kz/shop/c/shoes/?page=1", HTML: "page-1"},
			2: {URL: "https://kaspi.kz/shop/c/shoes/?page=2", HTML: "page-2-empty"},
		},
	}
	extractor := &fakeExtractor{
		products: map[string][]*models.ProductRecord{
			"page-1": makeProducts(2, "p1"),
		},
		dropped: map[string]int{
			"page-1":       1,
			"page-2-empty": 0,
		},
	}
	sink := newFakeSink()

	runner := NewRunner(testConfig(5), fetcher, extractor, sink, nil)
	report, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.Stats.FailedRecords != 1 {
		t.Errorf("FailedRecords = %d, 期望 1", report.Stats.FailedRecords)
	}
	if report.Stats.Extracted != 2 || report.Stats.Inserted != 2 {
		t.Errorf("Extracted/Inserted = %d/%d, 期望 2/2", report.Stats.Extracted, report.Stats.Inserted)
	}
}

func TestRunner_FetchErrorKeepsPartialProgress(t *testing.T) {
	fetchErr := errors.New("навигация не удалась")
	fetcher := &fakeFetcher{
		pages: map[int]*fetchers.PageContent{
			1: {URL: "https://kaspi.kz/shop/c/shoes/?page=1", HTML: "page-1"},
		},
		errs: map[int]error{2: fetchErr},
	}
	extractor := &fakeExtractor{
		products: map[string][]*models.ProductRecord{
			"page-1": makeProducts(3, "p1"),
		},
	}
	sink := newFakeSink()

	runner := NewRunner(testConfig(5), fetcher, extractor, sink, nil)
	report, err := runner.Run(context.Background())
	if !errors.Is(err, fetchErr) {
		t.Fatalf("Run() error = %v, 期望包装 %v", err, fetchErr)
	}

	// 第1页已提交的数据保持不变
	if report.Stats.Inserted != 3 {
		t.Errorf("Inserted = %d, 期望保留已入库的 3", report.Stats.Inserted)
	}
	if len(sink.saved) != 1 {
		t.Errorf("入库事务数 = %d, 期望 1", len(sink.saved))
	}
}

func TestRunner_RespectsMaxPages(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[int]*fetchers.PageContent{
			1: {HTML: "page-full"},
			2: {HTML: "page-full"},
			3: {HTML: "page-full"},
			4: {HTML: "page-full"},
		},
	}
	extractor := &fakeExtractor{
		products: map[string][]*models.ProductRecord{
			"page-full": makeProducts(2, "x"),
		},
	}
	sink := newFakeSink()

	runner := NewRunner(testConfig(3), fetcher, extractor, sink, nil)
	report, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(fetcher.calls) != 3 {
		t.Errorf("抓取页数 = %d, 期望 3 (翻页上限)", len(fetcher.calls))
	}
	if report.Stats.Extracted != 6 {
		t.Errorf("Extracted = %d, 期望 6", report.Stats.Extracted)
	}
	// 每页返回相同商品,去重后只入库第一页
	if report.Stats.Inserted != 2 || report.Stats.Skipped != 4 {
		t.Errorf("Inserted/Skipped = %d/%d, 期望 2/4", report.Stats.Inserted, report.Stats.Skipped)
	}
}

func TestRunner_SinkErrorStopsWalk(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[int]*fetchers.PageContent{
			1: {HTML: "page-1"},
		},
	}
	extractor := &fakeExtractor{
		products: map[string][]*models.ProductRecord{
			"page-1": makeProducts(1, "p1"),
		},
	}
	sink := newFakeSink()
	sink.saveErr = errors.New("соединение с базой потеряно")

	runner := NewRunner(testConfig(5), fetcher, extractor, sink, nil)
	_, err := runner.Run(context.Background())
	if err == nil {
		t.Fatal("入库失败应终止翻页并返回错误")
	}
	if len(fetcher.calls) != 1 {
		t.Errorf("抓取页数 = %d, 期望 1", len(fetcher.calls))
	}
}

func TestRunner_SchemaErrorAbortsBeforeFetch(t *testing.T) {
	fetcher := &fakeFetcher{}
	sink := newFakeSink()
	sink.schemaErr = errors.New("нет прав на создание таблицы")

	runner := NewRunner(testConfig(5), fetcher, &fakeExtractor{}, sink, nil)
	_, err := runner.Run(context.Background())
	if err == nil {
		t.Fatal("建表失败应返回错误")
	}
	if len(fetcher.calls) != 0 {
		t.Errorf("建表失败后不应抓取任何页, 实际 %d 次", len(fetcher.calls))
	}
}

func TestRunner_ContextCancelStopsWalk(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[int]*fetchers.PageContent{
			1: {HTML: "page-1"},
		},
	}
	sink := newFakeSink()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := NewRunner(testConfig(5), fetcher, &fakeExtractor{}, sink, nil)
	_, err := runner.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, 期望 context.Canceled", err)
	}
}
