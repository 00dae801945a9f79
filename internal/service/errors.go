package service

import "errors"

// 服务层错误分类
// 每类失败都要能被调用方精确分类：除 repository.ErrStorageConflict
// 外都属于逻辑或输入错误，不应盲目重试
var (
	ErrAlreadyProcessed = errors.New("购买已处理，请勿重复提交")
	ErrNotOwned         = errors.New("流水不属于当前用户")
	ErrUnknownMilestone = errors.New("未知的里程碑类型")
)
