package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chubarkul/kaspi-parser/internal/models"
	"github.com/schollz/progressbar/v3"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Reporter 运行报告生成器
type Reporter struct {
	outputDir string
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string) *Reporter {
	return &Reporter{
		outputDir: outputDir,
	}
}

// SaveRunReport 保存运行报告
func (r *Reporter) SaveRunReport(report *models.RunReport) error {
	reportsDir := filepath.Join(r.outputDir, "reports")
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return fmt.Errorf("创建报告目录失败: %w", err)
	}

	filename := fmt.Sprintf("run_report_%s.json", report.TaskID)
	if err := r.saveJSONReport(reportsDir, filename, report); err != nil {
		return err
	}

	Infof("✅ 运行报告已生成: %s", filepath.Join(reportsDir, filename))
	return nil
}

// saveJSONReport 保存JSON报告
func (r *Reporter) saveJSONReport(dir string, filename string, data interface{}) error {
	path := filepath.Join(dir, filename)

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", path)
	return nil
}

// CaptureHostSnapshot 采集主机资源快照
// 采集失败不影响主流程,返回零值快照。
func CaptureHostSnapshot() models.HostSnapshot {
	snapshot := models.HostSnapshot{}

	if vm, err := mem.VirtualMemory(); err == nil {
		snapshot.TotalMemory = vm.Total
		snapshot.AvailableMemory = vm.Available
	} else {
		Debugf("获取内存信息失败: %v", err)
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		snapshot.CPUPercent = percents[0]
	} else if err != nil {
		Debugf("获取CPU信息失败: %v", err)
	}

	return snapshot
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
