package service

import (
	"errors"
	"testing"
	"time"

	"github.com/goalpath/internal/db"
	"gorm.io/gorm"
)

func newTestScheduleService(gdb *gorm.DB, today time.Time) *ScheduleService {
	svc := NewScheduleService(gdb, DefaultRetentionLimit, time.UTC)
	svc.now = func() time.Time { return today }
	return svc
}

func taskInput(title string) TaskInput {
	return TaskInput{Title: title, EstimatedTime: floatPtr(30)}
}

func seedSchedules(t *testing.T, svc *ScheduleService, userID uint, first time.Time, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		day := first.AddDate(0, 0, i).Format(db.DayKeyFormat)
		if _, created, err := svc.Upsert(userID, day, []TaskInput{taskInput("seed " + day)}); err != nil || !created {
			t.Fatalf("failed to seed schedule %s: created=%v err=%v", day, created, err)
		}
	}
}

func scheduleDates(t *testing.T, svc *ScheduleService, userID uint) []string {
	t.Helper()
	schedules, err := svc.List(userID)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	dates := make([]string, 0, len(schedules))
	for _, schedule := range schedules {
		dates = append(dates, schedule.Date)
	}
	return dates
}

func TestScheduleRetentionEvictsOldestPastSchedule(t *testing.T) {
	gdb := setupServiceTestDB(t)
	today := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	svc := newTestScheduleService(gdb, today)

	seedSchedules(t, svc, 1, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), 7)
	seedSchedules(t, svc, 2, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), 7)

	schedule, created, err := svc.Upsert(1, "2024-05-20", []TaskInput{taskInput("today")})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if !created || schedule.Date != "2024-05-20" {
		t.Fatalf("expected a new schedule for today, got created=%v date=%s", created, schedule.Date)
	}

	dates := scheduleDates(t, svc, 1)
	if len(dates) != 7 {
		t.Fatalf("expected 7 schedules after eviction, got %d: %v", len(dates), dates)
	}
	if dates[0] != "2024-05-11" {
		t.Fatalf("expected the earliest schedule to be evicted, got %v", dates)
	}

	if other := scheduleDates(t, svc, 2); len(other) != 7 {
		t.Fatalf("retention must not touch other users, got %v", other)
	}
}

func TestScheduleRetentionKeepsTodayAndFuture(t *testing.T) {
	gdb := setupServiceTestDB(t)
	today := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	svc := newTestScheduleService(gdb, today)

	seedSchedules(t, svc, 1, time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC), 7)

	if _, created, err := svc.Upsert(1, "2024-05-27", []TaskInput{taskInput("later")}); err != nil || !created {
		t.Fatalf("Upsert failed: created=%v err=%v", created, err)
	}

	dates := scheduleDates(t, svc, 1)
	if len(dates) != 8 {
		t.Fatalf("expected 8 schedules without eviction, got %d: %v", len(dates), dates)
	}
	if dates[0] != "2024-05-20" {
		t.Fatalf("expected today's schedule to be kept, got %v", dates)
	}
}

func TestScheduleUpsertReplacesTasksWithoutEviction(t *testing.T) {
	gdb := setupServiceTestDB(t)
	today := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	svc := newTestScheduleService(gdb, today)

	seedSchedules(t, svc, 1, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), 7)

	before, err := svc.GetByDate(1, "2024-05-12")
	if err != nil {
		t.Fatalf("GetByDate returned error: %v", err)
	}
	oldTaskID := before.Tasks[0].ID

	updated, created, err := svc.Upsert(1, "2024-05-12", []TaskInput{taskInput("new a"), taskInput("new b")})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if created {
		t.Fatal("expected existing schedule to be updated, not created")
	}
	if updated.ID != before.ID {
		t.Fatalf("expected same schedule id %d, got %d", before.ID, updated.ID)
	}
	if len(updated.Tasks) != 2 || updated.TaskIndex(oldTaskID) >= 0 {
		t.Fatalf("expected tasks to be replaced wholesale, got %+v", updated.Tasks)
	}

	dates := scheduleDates(t, svc, 1)
	if len(dates) != 7 || dates[0] != "2024-05-10" {
		t.Fatalf("expected no eviction on update, got %v", dates)
	}
}

func TestScheduleUpsertNormalizesDates(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := newTestScheduleService(gdb, time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC))

	first, created, err := svc.Upsert(1, "2024-05-21T15:30:00Z", []TaskInput{taskInput("a")})
	if err != nil || !created {
		t.Fatalf("Upsert failed: created=%v err=%v", created, err)
	}
	if first.Date != "2024-05-21" {
		t.Fatalf("expected day key 2024-05-21, got %s", first.Date)
	}

	second, created, err := svc.Upsert(1, "2024-05-21", []TaskInput{taskInput("b")})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if created || second.ID != first.ID {
		t.Fatalf("expected RFC3339 and day key inputs to address the same schedule")
	}

	if _, _, err := svc.Upsert(1, "tomorrow", nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for bad date, got %v", err)
	}
	if _, _, err := svc.Upsert(1, "2024-05-22", []TaskInput{{Title: "no estimate"}}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for missing estimatedTime, got %v", err)
	}
}

func TestScheduleTaskMutations(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := newTestScheduleService(gdb, time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC))

	schedule, _, err := svc.Upsert(1, "2024-05-20", []TaskInput{taskInput("write"), taskInput("review")})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	_, added, err := svc.AddTask(1, schedule.ID, TaskInput{
		Title:         "deploy",
		Priority:      db.PriorityHigh,
		EstimatedTime: floatPtr(15),
		StartTime:     "14:00",
		EndTime:       "14:15",
	})
	if err != nil {
		t.Fatalf("AddTask returned error: %v", err)
	}
	if added.ID == "" || added.Status != db.TaskStatusTodo {
		t.Fatalf("unexpected added task: %+v", added)
	}

	updatedSchedule, task, err := svc.UpdateTask(1, schedule.ID, added.ID, TaskUpdate{Status: stringPtr(db.TaskStatusComplete)})
	if err != nil {
		t.Fatalf("UpdateTask returned error: %v", err)
	}
	if task.Status != db.TaskStatusComplete || task.Title != "deploy" || task.StartTime != "14:00" {
		t.Fatalf("expected only status to change, got %+v", task)
	}
	if len(updatedSchedule.Tasks) != 3 || updatedSchedule.Tasks[2].ID != added.ID {
		t.Fatalf("expected task to stay in place, got %+v", updatedSchedule.Tasks)
	}

	if _, _, err := svc.UpdateTask(1, schedule.ID, added.ID, TaskUpdate{StartTime: stringPtr("25:99")}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for bad clock time, got %v", err)
	}

	remaining, err := svc.DeleteTask(1, schedule.ID, schedule.Tasks[0].ID)
	if err != nil {
		t.Fatalf("DeleteTask returned error: %v", err)
	}
	if len(remaining.Tasks) != 2 || remaining.Tasks[0].Title != "review" {
		t.Fatalf("unexpected tasks after delete: %+v", remaining.Tasks)
	}
}

func TestScheduleUpdateUnknownTaskLeavesScheduleUntouched(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := newTestScheduleService(gdb, time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC))

	schedule, _, err := svc.Upsert(1, "2024-05-20", []TaskInput{taskInput("a"), taskInput("b")})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	_, _, err = svc.UpdateTask(1, schedule.ID, "does-not-exist", TaskUpdate{Title: stringPtr("changed")})
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}

	stored, err := svc.Get(1, schedule.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if len(stored.Tasks) != 2 || stored.Tasks[0].Title != "a" || stored.Tasks[1].Title != "b" {
		t.Fatalf("expected tasks to be unchanged, got %+v", stored.Tasks)
	}

	if _, err := svc.DeleteTask(1, schedule.ID, "does-not-exist"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound on delete, got %v", err)
	}
	if _, err := svc.DeleteTask(1, schedule.ID+50, stored.Tasks[0].ID); !errors.Is(err, ErrScheduleNotFound) {
		t.Fatalf("expected ErrScheduleNotFound, got %v", err)
	}
	if _, _, err := svc.UpdateTask(2, schedule.ID, stored.Tasks[0].ID, TaskUpdate{}); !errors.Is(err, ErrScheduleNotFound) {
		t.Fatalf("expected ErrScheduleNotFound for other user, got %v", err)
	}
}

func TestSchedulePatchAllowList(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := newTestScheduleService(gdb, time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC))

	first, _, err := svc.Upsert(1, "2024-05-20", []TaskInput{taskInput("a")})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if _, _, err := svc.Upsert(1, "2024-05-21", nil); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	if _, err := svc.Patch(1, first.ID, SchedulePatch{Date: stringPtr("2024-05-21")}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected conflict on occupied date, got %v", err)
	}

	tasks := []TaskInput{taskInput("x"), taskInput("y")}
	patched, err := svc.Patch(1, first.ID, SchedulePatch{Date: stringPtr("2024-05-23"), Tasks: &tasks})
	if err != nil {
		t.Fatalf("Patch returned error: %v", err)
	}
	if patched.Date != "2024-05-23" || len(patched.Tasks) != 2 {
		t.Fatalf("unexpected patched schedule: %+v", patched)
	}

	bad := []TaskInput{{Title: "", EstimatedTime: floatPtr(1)}}
	if _, err := svc.Patch(1, first.ID, SchedulePatch{Tasks: &bad}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for invalid task, got %v", err)
	}

	if _, err := svc.Patch(1, first.ID+99, SchedulePatch{}); !errors.Is(err, ErrScheduleNotFound) {
		t.Fatalf("expected ErrScheduleNotFound, got %v", err)
	}
}

func TestScheduleDelete(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := newTestScheduleService(gdb, time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC))

	schedule, _, err := svc.Upsert(1, "2024-05-20", nil)
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	if err := svc.Delete(2, schedule.ID); !errors.Is(err, ErrScheduleNotFound) {
		t.Fatalf("expected ErrScheduleNotFound for other user, got %v", err)
	}
	if err := svc.Delete(1, schedule.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := svc.GetByDate(1, "2024-05-20"); !errors.Is(err, ErrScheduleNotFound) {
		t.Fatalf("expected schedule to be gone, got %v", err)
	}
}

func TestScheduleTaskIDsStayUnique(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := newTestScheduleService(gdb, time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC))

	first := taskInput("a")
	first.ID = "x"
	schedule, _, err := svc.Upsert(1, "2024-05-20", []TaskInput{first})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	second := taskInput("b")
	second.ID = "x"
	_, added, err := svc.AddTask(1, schedule.ID, second)
	if err != nil {
		t.Fatalf("AddTask returned error: %v", err)
	}
	if added.ID == "x" || added.ID == "" {
		t.Fatalf("expected a generated task id, got %q", added.ID)
	}

	renamed, _, err := svc.UpdateTask(1, schedule.ID, "x", TaskUpdate{Title: stringPtr("a2")})
	if err != nil {
		t.Fatalf("UpdateTask returned error: %v", err)
	}
	if renamed.Tasks[0].Title != "a2" || renamed.Tasks[1].Title != "b" {
		t.Fatalf("expected only the first task to change, got %+v", renamed.Tasks)
	}

	dup := taskInput("c")
	dup.ID = "x"
	tests := []struct {
		name string
		run  func() error
	}{
		{name: "upsert", run: func() error {
			_, _, err := svc.Upsert(1, "2024-05-21", []TaskInput{first, dup})
			return err
		}},
		{name: "patch", run: func() error {
			tasks := []TaskInput{first, dup}
			_, err := svc.Patch(1, schedule.ID, SchedulePatch{Tasks: &tasks})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error for duplicate task id, got %v", err)
			}
		})
	}
}
