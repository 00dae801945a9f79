package handler

import (
	"lingocredit/internal/config"
	"lingocredit/pkg/clock"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config, clk clock.Clock) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg, clk)

	// API 路由组，全部要求登录态
	api := r.Group("/api/v1")
	api.Use(AuthMiddleware())
	{
		// 积分账户
		credits := api.Group("/credits")
		{
			credits.GET("/balance", h.GetBalance)
			credits.GET("/ledger", h.ListLedger)
			credits.POST("/spend", h.SpendCredits)
		}

		// 积分购买（两阶段）
		purchase := api.Group("/purchase")
		{
			purchase.POST("/create", h.CreatePurchase)
			purchase.POST("/complete", h.CompletePurchase)
		}

		// 学习活动
		activity := api.Group("/activity")
		{
			activity.POST("/record", h.RecordActivity)
			activity.POST("/conversation", h.RecordConversation)
			activity.POST("/module", h.RecordModuleProgress)
			activity.GET("/recent", h.ListRecentActivity)
		}

		// 连续打卡与奖励
		api.GET("/streak", h.GetStreak)
		api.GET("/streak/rewards", h.ListStreakRewards)
		api.POST("/milestone/check", h.CheckMilestone)
		api.GET("/milestones", h.ListMilestones)
		api.GET("/achievements", h.ListAchievements)
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
