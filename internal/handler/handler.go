package handler

import (
	"errors"
	"strconv"
	"time"

	"lingocredit/internal/config"
	"lingocredit/internal/model"
	"lingocredit/internal/repository"
	"lingocredit/internal/service"
	"lingocredit/pkg/clock"
	"lingocredit/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	creditService   *service.CreditService
	purchaseService *service.PurchaseService
	activityService *service.ActivityService
	streakService   *service.StreakService
	rewardService   *service.RewardService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config, clk clock.Clock) *Handler {
	creditService := service.NewCreditService(db, rdb, cfg)
	streakService := service.NewStreakService(db, clk)
	rewardService := service.NewRewardService(db, rdb, cfg, creditService, clk)
	return &Handler{
		creditService:   creditService,
		purchaseService: service.NewPurchaseService(db, rdb, cfg),
		activityService: service.NewActivityService(db, rdb, cfg, creditService, streakService, rewardService, clk),
		streakService:   streakService,
		rewardService:   rewardService,
	}
}

// businessError 把服务层错误翻译成业务错误码
// 调用方（前端/网关）按 code 决定重试还是报给用户，不解析文案
func businessError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrInsufficientCredits):
		response.BusinessError(c, response.CodeInsufficientCredits, err.Error())
	case errors.Is(err, repository.ErrStorageConflict):
		response.BusinessError(c, response.CodeStorageConflict, err.Error())
	case errors.Is(err, repository.ErrEntryNotFound):
		response.BusinessError(c, response.CodeEntryNotFound, err.Error())
	case errors.Is(err, service.ErrAlreadyProcessed):
		response.BusinessError(c, response.CodeAlreadyProcessed, err.Error())
	case errors.Is(err, service.ErrNotOwned):
		response.BusinessError(c, response.CodeNotOwned, err.Error())
	case errors.Is(err, service.ErrUnknownMilestone):
		response.BusinessError(c, response.CodeUnknownMilestone, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 积分账户接口
// ============================================================

// GetBalance 查询当前用户余额
// GET /api/v1/credits/balance
func (h *Handler) GetBalance(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	balance, err := h.creditService.GetBalance(c.Request.Context(), userID)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"user_id": userID,
		"balance": balance,
	})
}

// ListLedger 查询积分流水
// GET /api/v1/credits/ledger?page=1&page_size=10
func (h *Handler) ListLedger(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	entries, total, err := h.creditService.ListLedger(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"list":      entries,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// SpendCreditsRequest 消耗积分请求
type SpendCreditsRequest struct {
	Amount int64  `json:"amount" binding:"required,gt=0"`
	Reason string `json:"reason" binding:"required"` // 如 开始对话会话 / 解锁课程模块
}

// SpendCredits 消耗积分
// POST /api/v1/credits/spend
//
// 【关键点】余额检查和扣减在同一个事务里完成，
// 余额不足返回 1003 且零写入
func (h *Handler) SpendCredits(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	var req SpendCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	entry, err := h.creditService.SpendCredits(c.Request.Context(), userID, req.Amount, req.Reason)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, gin.H{
		"entry_no": entry.EntryNo,
		"amount":   entry.Amount,
		"balance":  entry.BalanceAfter,
	})
}

// ============================================================
// 购买接口（两阶段）
// ============================================================

// CreatePurchase 创建待支付购买单
// POST /api/v1/purchase/create
func (h *Handler) CreatePurchase(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	var req service.CreatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	req.UserID = userID

	result, err := h.purchaseService.CreatePendingPurchase(c.Request.Context(), &req)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, result)
}

// CompletePurchase 支付回调，完成购买
// POST /api/v1/purchase/complete
//
// 【关键点】一个购买单只能完成一次：重复提交返回 1006，余额不变
func (h *Handler) CompletePurchase(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	var req service.CompletePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	req.UserID = userID

	result, err := h.purchaseService.CompletePurchase(c.Request.Context(), &req)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, result)
}

// ============================================================
// 学习活动接口
// ============================================================

// RecordActivityRequest 通用活动记录请求
type RecordActivityRequest struct {
	Conversations    int    `json:"conversations" binding:"gte=0"`
	ModuleProgress   int    `json:"module_progress" binding:"gte=0"`
	TimeSpentSeconds int    `json:"time_spent_seconds" binding:"gte=0"`
	CreditsEarned    int64  `json:"credits_earned" binding:"gte=0"`
	At               string `json:"at"` // RFC3339，缺省为当前时刻
}

// RecordActivity 记录学习活动
// POST /api/v1/activity/record
//
// 返回时打卡状态已经是本次活动之后的最新值，
// 新跨过的打卡档位奖励也已入账
func (h *Handler) RecordActivity(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	var req RecordActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	var at time.Time
	if req.At != "" {
		parsed, err := time.Parse(time.RFC3339, req.At)
		if err != nil {
			response.ParamError(c, "at 时间格式错误")
			return
		}
		at = parsed
	}

	result, err := h.activityService.RecordActivity(c.Request.Context(), userID, model.ActivityDelta{
		Conversations:    req.Conversations,
		ModuleProgress:   req.ModuleProgress,
		TimeSpentSeconds: req.TimeSpentSeconds,
		CreditsEarned:    req.CreditsEarned,
	}, at)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, result)
}

// RecordConversationRequest 对话会话结果
// 会话本身由语音厂商托管，这里只收结果
type RecordConversationRequest struct {
	DurationSeconds int    `json:"duration_seconds" binding:"required,gt=0"`
	Language        string `json:"language" binding:"required"`
	CreditsEarned   int64  `json:"credits_earned" binding:"gte=0"`
}

// RecordConversation 记录一次完成的对话会话
// POST /api/v1/activity/conversation
func (h *Handler) RecordConversation(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	var req RecordConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, milestone, err := h.activityService.RecordConversation(
		c.Request.Context(), userID, req.DurationSeconds, req.Language, req.CreditsEarned)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, gin.H{
		"activity":  result,
		"milestone": milestone,
	})
}

// RecordModuleProgressRequest 课程模块进度
type RecordModuleProgressRequest struct {
	Sections         int    `json:"sections" binding:"required,gt=0"`
	TimeSpentSeconds int    `json:"time_spent_seconds" binding:"gte=0"`
	Language         string `json:"language" binding:"required"`
	ModuleCompleted  bool   `json:"module_completed"`
	CreditsEarned    int64  `json:"credits_earned" binding:"gte=0"`
}

// RecordModuleProgress 记录课程模块小节完成
// POST /api/v1/activity/module
func (h *Handler) RecordModuleProgress(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	var req RecordModuleProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, milestone, err := h.activityService.RecordModuleProgress(
		c.Request.Context(), userID, req.Sections, req.TimeSpentSeconds,
		req.Language, req.ModuleCompleted, req.CreditsEarned)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, gin.H{
		"activity":  result,
		"milestone": milestone,
	})
}

// ListRecentActivity 查询最近活动
// GET /api/v1/activity/recent?limit=30
func (h *Handler) ListRecentActivity(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "30"))
	activities, err := h.activityService.ListRecent(c.Request.Context(), userID, limit)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"list": activities})
}

// ============================================================
// 打卡与奖励接口
// ============================================================

// GetStreak 查询打卡状态
// GET /api/v1/streak
func (h *Handler) GetStreak(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	state, err := h.streakService.GetState(c.Request.Context(), userID)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, state)
}

// ListStreakRewards 查询已发放的打卡奖励
// GET /api/v1/streak/rewards
func (h *Handler) ListStreakRewards(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	rewards, err := h.rewardService.ListStreakRewards(c.Request.Context(), userID)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"list": rewards})
}

// CheckMilestoneRequest 里程碑达成请求
type CheckMilestoneRequest struct {
	MilestoneType string `json:"milestone_type" binding:"required"`
	Language      string `json:"language"`
	Metadata      string `json:"metadata"`
}

// CheckMilestone 尝试达成里程碑
// POST /api/v1/milestone/check
//
// 已达成返回 awarded=false（幂等空操作）；未知类型返回 1009
func (h *Handler) CheckMilestone(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	var req CheckMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.rewardService.CheckMilestone(c.Request.Context(), userID, req.MilestoneType, req.Language, req.Metadata)
	if err != nil {
		businessError(c, err)
		return
	}

	response.Success(c, result)
}

// ListMilestones 查询里程碑
// GET /api/v1/milestones
func (h *Handler) ListMilestones(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	milestones, err := h.rewardService.ListMilestones(c.Request.Context(), userID)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"list": milestones})
}

// ListAchievements 查询成就徽章
// GET /api/v1/achievements
func (h *Handler) ListAchievements(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	achievements, err := h.rewardService.ListAchievements(c.Request.Context(), userID)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{"list": achievements})
}
