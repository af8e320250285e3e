package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goalpath/internal/db"
)

// ErrValidation 表示请求字段缺失或格式错误，handler 会映射为 400
var ErrValidation = errors.New("validation failed")

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func normalizePriority(raw string) (string, error) {
	switch value := strings.ToLower(strings.TrimSpace(raw)); value {
	case "":
		return db.PriorityMedium, nil
	case db.PriorityHigh, db.PriorityMedium, db.PriorityLow:
		return value, nil
	default:
		return "", validationError("unsupported priority %q", raw)
	}
}

// normalizeProgressStatus 适用于目标与里程碑的状态枚举
func normalizeProgressStatus(raw string) (string, error) {
	switch value := strings.ToLower(strings.TrimSpace(raw)); value {
	case "":
		return db.StatusNotStarted, nil
	case db.StatusNotStarted, db.StatusInProgress, db.StatusComplete:
		return value, nil
	default:
		return "", validationError("unsupported status %q", raw)
	}
}

func normalizeTaskStatus(raw string) (string, error) {
	switch value := strings.ToLower(strings.TrimSpace(raw)); value {
	case "":
		return db.TaskStatusTodo, nil
	case db.TaskStatusTodo, db.TaskStatusInProgress, db.TaskStatusComplete:
		return value, nil
	default:
		return "", validationError("unsupported task status %q", raw)
	}
}

// NormalizeDayKey 将 YYYY-MM-DD 或 RFC3339 时间归一为指定时区下的日期键
func NormalizeDayKey(raw string, loc *time.Location) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", validationError("date is required")
	}
	if loc == nil {
		loc = time.Local
	}

	if day, err := time.ParseInLocation(db.DayKeyFormat, trimmed, loc); err == nil {
		return day.Format(db.DayKeyFormat), nil
	}
	if ts, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return ts.In(loc).Format(db.DayKeyFormat), nil
	}
	return "", validationError("invalid date %q, expected YYYY-MM-DD", raw)
}

// ParseDateInput 解析目标/里程碑的目标日期，支持 RFC3339 与 YYYY-MM-DD
func ParseDateInput(raw string, loc *time.Location) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, validationError("targetDate is required")
	}
	if loc == nil {
		loc = time.Local
	}
	if ts, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return ts, nil
	}
	if day, err := time.ParseInLocation(db.DayKeyFormat, trimmed, loc); err == nil {
		return day, nil
	}
	return time.Time{}, validationError("invalid date %q", raw)
}

// validateClockTime 接受 HH:MM 或 HH:MM:SS，空值合法
func validateClockTime(field, raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil
	}
	for _, layout := range []string{"15:04", "15:04:05"} {
		if _, err := time.Parse(layout, trimmed); err == nil {
			return trimmed, nil
		}
	}
	return "", validationError("invalid %s %q, expected HH:MM", field, raw)
}
