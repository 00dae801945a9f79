package config

import (
	"log"
	"sort"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
	Rewards  RewardsConfig  `mapstructure:"rewards"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	RewardGranted  string `mapstructure:"reward_granted"`
	PurchaseResult string `mapstructure:"purchase_result"`
}

type BusinessConfig struct {
	// Timezone 日界线时区，所有"今天"的计算都以这个时区的零点为准
	Timezone               string `mapstructure:"timezone"`
	PurchaseTimeoutMinutes int    `mapstructure:"purchase_timeout_minutes"`
	MaxRetryCount          int    `mapstructure:"max_retry_count"`
	BalanceCacheSeconds    int    `mapstructure:"balance_cache_seconds"`
}

// ============================================================================
// 奖励规则配置
// ============================================================================
//
// 【设计思考】奖励表为什么放配置里？
//
// 连续打卡门槛、里程碑奖励金额是运营决策，不是架构决策。
// 写死在代码里每次调整都要发版，所以做成可配置项，
// 代码里保留一份默认表，配置文件不写时用默认值。
// ============================================================================

// StreakRewardTier 连续打卡奖励档位
type StreakRewardTier struct {
	Days    int   `mapstructure:"days"`
	Credits int64 `mapstructure:"credits"`
}

type RewardsConfig struct {
	Streak    []StreakRewardTier `mapstructure:"streak"`
	Milestone map[string]int64   `mapstructure:"milestone"`
}

// DefaultStreakRewards 默认连续打卡奖励表（升序）
var DefaultStreakRewards = []StreakRewardTier{
	{Days: 3, Credits: 25},
	{Days: 7, Credits: 50},
	{Days: 15, Credits: 100},
	{Days: 30, Credits: 200},
	{Days: 60, Credits: 400},
	{Days: 100, Credits: 750},
	{Days: 180, Credits: 1500},
	{Days: 365, Credits: 3000},
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	ApplyDefaults(config)

	GlobalConfig = config
	return config
}

// ApplyDefaults 填充缺省配置项并校验奖励表
func ApplyDefaults(cfg *Config) {
	if cfg.Business.Timezone == "" {
		cfg.Business.Timezone = "UTC"
	}
	if cfg.Business.PurchaseTimeoutMinutes <= 0 {
		cfg.Business.PurchaseTimeoutMinutes = 30
	}
	if cfg.Business.MaxRetryCount <= 0 {
		cfg.Business.MaxRetryCount = 3
	}
	if cfg.Business.BalanceCacheSeconds <= 0 {
		cfg.Business.BalanceCacheSeconds = 60
	}

	if len(cfg.Rewards.Streak) == 0 {
		cfg.Rewards.Streak = DefaultStreakRewards
	}
	// 发奖逻辑按序遍历，奖励表必须升序且无重复档位
	sort.Slice(cfg.Rewards.Streak, func(i, j int) bool {
		return cfg.Rewards.Streak[i].Days < cfg.Rewards.Streak[j].Days
	})
	for i := 1; i < len(cfg.Rewards.Streak); i++ {
		if cfg.Rewards.Streak[i].Days == cfg.Rewards.Streak[i-1].Days {
			log.Fatalf("连续打卡奖励表存在重复档位: %d 天", cfg.Rewards.Streak[i].Days)
		}
	}
}
