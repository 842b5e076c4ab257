package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/chubarkul/kaspi-parser/internal/models"
	"github.com/chubarkul/kaspi-parser/internal/utils"
	"github.com/spf13/viper"
)

// Config 应用程序配置
type Config struct {
	Parse    models.ParseConfig `mapstructure:"parse"`
	Database DatabaseConfig     `mapstructure:"database"`
	Logging  LoggingConfig      `mapstructure:"logging"`
	Output   OutputConfig       `mapstructure:"output"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// LoadConfig 加载配置文件
// 配置来源优先级: 命令行参数 > 环境变量 > 配置文件 > 默认值。
// 敏感项(数据库连接串、代理凭证、Cookie)只通过环境变量传入,
// 绝不写进配置文件或源码。
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".kaspiparser"))
		}
	}

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		// 配置文件不存在时使用默认值+环境变量
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// Cookie集合只从环境变量读取(JSON数组)
	if raw := os.Getenv("KASPI_COOKIES_JSON"); raw != "" {
		cookies, err := models.ParseCookiesJSON(raw)
		if err != nil {
			utils.Warnf("解析KASPI_COOKIES_JSON失败,忽略Cookie注入: %v", err)
		} else {
			config.Parse.Cookies = cookies
			utils.Infof("🍪 从环境变量加载了 %d 个Cookie", len(cookies))
		}
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 解析配置默认值
	v.SetDefault("parse.category_url", "https://kaspi.kz/shop/c/shoes/")
	v.SetDefault("parse.max_pages", 5)
	v.SetDefault("parse.city_id", "750000000")
	v.SetDefault("parse.mode", "auto")
	v.SetDefault("parse.headless", true)
	v.SetDefault("parse.wait_time", 6)
	v.SetDefault("parse.timeout", 60)
	v.SetDefault("parse.retry_attempts", 5)
	v.SetDefault("parse.retry_base_delay", 10)
	v.SetDefault("parse.retry_max_delay", 60)
	v.SetDefault("parse.city_marker", "Алматы")

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 输出配置默认值
	v.SetDefault("output.base_dir", "output")
}

// bindEnv 绑定环境变量
// 敏感配置项只接受环境变量传入。
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("database.url", "DATABASE_URL")
	_ = v.BindEnv("parse.proxy_server", "PROXY_SERVER")
	_ = v.BindEnv("parse.proxy_username", "PROXY_USERNAME")
	_ = v.BindEnv("parse.proxy_password", "PROXY_PASSWORD")
}

// GetParseConfig 从配置中提取解析配置
func (c *Config) GetParseConfig() models.ParseConfig {
	return c.Parse
}

// MergeCLIFlags 合并命令行参数到配置
// 命令行参数优先于配置文件和环境变量。
func (c *Config) MergeCLIFlags(
	categoryURL string,
	maxPages int,
	cityID string,
	mode string,
	headless bool,
	waitTime int,
	timeout int,
) {
	if categoryURL != "" {
		c.Parse.CategoryURL = categoryURL
	}
	if maxPages > 0 {
		c.Parse.MaxPages = maxPages
	}
	if cityID != "" {
		c.Parse.CityID = cityID
	}
	if mode != "" {
		c.Parse.Mode = models.FetchMode(mode)
	}
	c.Parse.Headless = headless
	if waitTime >= 0 {
		c.Parse.WaitTime = waitTime
	}
	if timeout > 0 {
		c.Parse.Timeout = timeout
	}
}
