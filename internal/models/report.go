package models

import (
	"encoding/json"
	"time"
)

// RunStats 单次解析运行的统计
type RunStats struct {
	PagesFetched  int     `json:"pages_fetched"`  // 实际抓取的页数
	PagesEmpty    int     `json:"pages_empty"`    // 空页/占位页数
	Extracted     int     `json:"extracted"`      // 提取出的商品记录数
	Inserted      int     `json:"inserted"`       // 实际入库行数(去重后)
	Skipped       int     `json:"skipped"`        // 因URL冲突跳过的行数
	FailedRecords int     `json:"failed_records"` // 验证失败被丢弃的记录数
	Duration      float64 `json:"duration"`       // 总耗时(秒)
}

// PageResult 单页抓取结果摘要(写入报告)
type PageResult struct {
	Page      int    `json:"page"`
	URL       string `json:"url"`
	Strategy  string `json:"strategy"` // 使用的提取策略: embedded|dom|anchors
	Extracted int    `json:"extracted"`
	Inserted  int    `json:"inserted"`
	Stub      bool   `json:"stub,omitempty"` // 是否为维护占位页
}

// HostSnapshot 运行环境快照(gopsutil采集)
type HostSnapshot struct {
	TotalMemory     uint64  `json:"total_memory"`     // 系统总内存(字节)
	AvailableMemory uint64  `json:"available_memory"` // 采样时可用内存(字节)
	CPUPercent      float64 `json:"cpu_percent"`      // 采样时CPU使用率
}

// RunReport 解析运行报告
type RunReport struct {
	// 任务信息
	TaskID      string `json:"task_id"` // 运行唯一ID (UUID)
	CategoryURL string `json:"category_url"`
	Mode        string `json:"mode"`

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	// 统计与逐页明细
	Stats RunStats     `json:"stats"`
	Pages []PageResult `json:"pages"`

	// 运行环境
	Host HostSnapshot `json:"host"`

	// 配置快照(敏感字段已剔除,见ParseConfig的json标签)
	Config ParseConfig `json:"config"`
}

// ToJSON 序列化为JSON
func (r *RunReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
