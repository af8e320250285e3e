package service

import "github.com/goalpath/internal/db"

// ComputeProgress 返回已完成里程碑占比（0-100），空集合为 0。
// 保持浮点原值，展示层再做取整。
func ComputeProgress(milestones []db.Milestone) float64 {
	if len(milestones) == 0 {
		return 0
	}

	completed := 0
	for _, milestone := range milestones {
		if milestone.Status == db.StatusComplete {
			completed++
		}
	}

	return 100 * float64(completed) / float64(len(milestones))
}
