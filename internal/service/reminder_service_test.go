package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goalpath/internal/db"
	"github.com/goalpath/internal/notify"
	"gorm.io/gorm"
)

type fakeDispatcher struct {
	mu     sync.Mutex
	calls  []notify.Payload
	failOn map[string]error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, endpoint db.PushEndpoint, payload notify.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, payload)
	if err, ok := f.failOn[endpoint.Endpoint]; ok {
		return err
	}
	return nil
}

func (f *fakeDispatcher) payloadFor(userID uint) (notify.Payload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, payload := range f.calls {
		if payload.Data["userId"] == userID {
			return payload, true
		}
	}
	return notify.Payload{}, false
}

func TestEvaluateGoalReminderWindow(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	day := 24 * time.Hour
	goal := db.Goal{
		ID:         7,
		UserID:     3,
		Title:      "Learn Go",
		Status:     db.StatusInProgress,
		CreatedAt:  t0,
		TargetDate: t0.Add(10 * day),
	}

	if _, ok := EvaluateGoalReminder(goal, t0.Add(4*day)); ok {
		t.Fatal("expected no reminder before the halfway point")
	}

	halfway, ok := EvaluateGoalReminder(goal, t0.Add(6*day))
	if !ok {
		t.Fatal("expected halfway reminder at T0+6d")
	}
	if halfway.Kind != ReminderHalfway || halfway.RemainingDays != 4 {
		t.Fatalf("unexpected halfway reminder: %+v", halfway)
	}

	overdue, ok := EvaluateGoalReminder(goal, t0.Add(11*day))
	if !ok {
		t.Fatal("expected overdue reminder at T0+11d")
	}
	if overdue.Kind != ReminderOverdue || overdue.RemainingDays != 1 {
		t.Fatalf("unexpected overdue reminder: %+v", overdue)
	}
	if overdue.GoalID != 7 || overdue.UserID != 3 {
		t.Fatalf("unexpected identity on reminder: %+v", overdue)
	}
}

func TestEvaluateGoalReminderEdgeCases(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	tests := []struct {
		name     string
		goal     db.Goal
		now      time.Time
		wantOK   bool
		wantKind string
		wantDays int
	}{
		{
			name:     "exactly halfway fires",
			goal:     db.Goal{CreatedAt: t0, TargetDate: t0.Add(10 * day)},
			now:      t0.Add(5 * day),
			wantOK:   true,
			wantKind: ReminderHalfway,
			wantDays: 5,
		},
		{
			name:     "partial day rounds up",
			goal:     db.Goal{CreatedAt: t0, TargetDate: t0.Add(10 * day)},
			now:      t0.Add(8*day + time.Hour),
			wantOK:   true,
			wantKind: ReminderHalfway,
			wantDays: 2,
		},
		{
			name:     "target before creation is immediately eligible",
			goal:     db.Goal{CreatedAt: t0, TargetDate: t0.Add(-day)},
			now:      t0,
			wantOK:   true,
			wantKind: ReminderOverdue,
			wantDays: 1,
		},
		{
			name:     "slightly overdue reports zero days",
			goal:     db.Goal{CreatedAt: t0, TargetDate: t0.Add(2 * day)},
			now:      t0.Add(2*day + time.Hour),
			wantOK:   true,
			wantKind: ReminderOverdue,
			wantDays: 0,
		},
		{
			name:   "complete goal never fires",
			goal:   db.Goal{CreatedAt: t0, TargetDate: t0.Add(day), Status: db.StatusComplete},
			now:    t0.Add(5 * day),
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EvaluateGoalReminder(tt.goal, tt.now)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if !ok {
				return
			}
			if got.Kind != tt.wantKind || got.RemainingDays != tt.wantDays {
				t.Fatalf("expected %s/%d, got %s/%d", tt.wantKind, tt.wantDays, got.Kind, got.RemainingDays)
			}
		})
	}
}

func TestEvaluateGoalReminderCountsRemainingMilestones(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	goal := db.Goal{
		CreatedAt:  t0,
		TargetDate: t0.Add(48 * time.Hour),
		Milestones: []db.Milestone{
			{Status: db.StatusComplete},
			{Status: db.StatusInProgress},
			{Status: db.StatusNotStarted},
			{Status: db.StatusNotStarted, EveryDayAction: true},
		},
	}

	reminder, ok := EvaluateGoalReminder(goal, t0.Add(30*time.Hour))
	if !ok {
		t.Fatal("expected reminder")
	}
	if reminder.RemainingMilestones != 2 {
		t.Fatalf("expected 2 remaining milestones, got %d", reminder.RemainingMilestones)
	}
}

func TestFormatReminderLocalized(t *testing.T) {
	overdue := GoalReminder{Title: "Apprendre", Kind: ReminderOverdue, RemainingDays: 3, RemainingMilestones: 2}
	halfway := GoalReminder{Title: "Learn", Kind: ReminderHalfway, RemainingDays: 4, RemainingMilestones: 1}

	tests := []struct {
		name     string
		reminder GoalReminder
		language string
		want     string
	}{
		{
			name:     "french overdue",
			reminder: overdue,
			language: "fr",
			want:     "⚠️ \"Apprendre\" est en retard de 3 jour(s). Il reste 2 étape(s).",
		},
		{
			name:     "french halfway",
			reminder: halfway,
			language: "fr-CA",
			want:     "⏳ \"Learn\" est à mi-chemin de sa date limite. Il reste 4 jour(s) et 1 étape(s).",
		},
		{
			name:     "english default",
			reminder: overdue,
			language: "",
			want:     "⚠️ \"Apprendre\" is 3 day(s) overdue. 2 milestone(s) remaining.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatReminder(tt.reminder, tt.language); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func seedReminderUser(t *testing.T, svc *AuthService, email string, endpoint *db.PushEndpoint) *db.User {
	t.Helper()
	user, err := svc.Register(RegisterInput{Name: "tester", Email: email, Password: "secret1"})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if endpoint != nil {
		user, err = svc.SetPushEndpoint(user.ID, endpoint)
		if err != nil {
			t.Fatalf("SetPushEndpoint returned error: %v", err)
		}
	}
	return user
}

func seedReminderGoal(t *testing.T, gdb *gorm.DB, goal db.Goal) {
	t.Helper()
	if err := gdb.Create(&goal).Error; err != nil {
		t.Fatalf("failed to seed goal: %v", err)
	}
}

func TestReminderServiceRunSkipsUsersWithoutEndpoint(t *testing.T) {
	gdb := setupServiceTestDB(t)
	auth := NewAuthService(gdb, "test-secret", time.Hour)

	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	registered := seedReminderUser(t, auth, "with@example.com", &db.PushEndpoint{Endpoint: "https://push.example.com/a"})
	silent := seedReminderUser(t, auth, "without@example.com", nil)

	for _, userID := range []uint{registered.ID, silent.ID} {
		seedReminderGoal(t, gdb, db.Goal{
			UserID:      userID,
			Title:       "Overdue goal",
			Description: "d",
			Category:    "c",
			Priority:    db.PriorityMedium,
			Status:      db.StatusInProgress,
			CreatedAt:   now.Add(-10 * 24 * time.Hour),
			TargetDate:  now.Add(-24 * time.Hour),
		})
	}

	dispatcher := &fakeDispatcher{}
	svc := NewReminderService(gdb, dispatcher, 4)
	svc.now = func() time.Time { return now }

	summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(dispatcher.calls) != 1 {
		t.Fatalf("expected exactly one dispatch, got %d", len(dispatcher.calls))
	}
	if _, ok := dispatcher.payloadFor(registered.ID); !ok {
		t.Fatal("expected the registered user to be notified")
	}
	if summary.UsersNotified != 1 || summary.UsersSkipped != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestReminderServiceRunBatchesPerUserAndIsolatesFailures(t *testing.T) {
	gdb := setupServiceTestDB(t)
	auth := NewAuthService(gdb, "test-secret", time.Hour)

	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	failing := seedReminderUser(t, auth, "failing@example.com", &db.PushEndpoint{Endpoint: "https://push.example.com/broken"})
	french := seedReminderUser(t, auth, "french@example.com", &db.PushEndpoint{Endpoint: "https://push.example.com/fr"})
	if _, err := auth.UpdateProfile(french.ID, ProfileUpdate{Language: stringPtr("fr")}); err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}

	goals := []db.Goal{
		{UserID: failing.ID, Title: "Broken", Status: db.StatusInProgress, CreatedAt: now.Add(-4 * day), TargetDate: now.Add(day)},
		{UserID: french.ID, Title: "Premier", Status: db.StatusNotStarted, CreatedAt: now.Add(-6 * day), TargetDate: now.Add(4 * day)},
		{UserID: french.ID, Title: "Second", Status: db.StatusInProgress, CreatedAt: now.Add(-11 * day), TargetDate: now.Add(-day)},
		{UserID: french.ID, Title: "Early", Status: db.StatusInProgress, CreatedAt: now.Add(-day), TargetDate: now.Add(9 * day)},
		{UserID: french.ID, Title: "Done", Status: db.StatusComplete, CreatedAt: now.Add(-20 * day), TargetDate: now.Add(-10 * day)},
	}
	for _, goal := range goals {
		goal.Description = "d"
		goal.Category = "c"
		goal.Priority = db.PriorityLow
		seedReminderGoal(t, gdb, goal)
	}

	dispatcher := &fakeDispatcher{failOn: map[string]error{
		"https://push.example.com/broken": errors.New("push service unavailable"),
	}}
	svc := NewReminderService(gdb, dispatcher, 2)
	svc.now = func() time.Time { return now }

	summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error despite isolated failure: %v", err)
	}

	if len(dispatcher.calls) != 2 {
		t.Fatalf("expected one dispatch per user, got %d", len(dispatcher.calls))
	}
	if summary.GoalsScanned != 4 {
		t.Fatalf("expected complete goals to be excluded from the scan, got %d", summary.GoalsScanned)
	}
	if summary.Reminders != 3 || summary.UsersNotified != 1 || summary.DispatchFailures != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	payload, ok := dispatcher.payloadFor(french.ID)
	if !ok {
		t.Fatal("expected french user to receive a notification")
	}
	if payload.Title != "📌 Rappel de vos objectifs" {
		t.Fatalf("unexpected title: %q", payload.Title)
	}
	lines := strings.Split(payload.Body, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two joined messages, got %q", payload.Body)
	}
	if !strings.Contains(lines[0], "\"Premier\" est à mi-chemin") || !strings.Contains(lines[0], "4 jour(s)") {
		t.Fatalf("unexpected halfway line: %q", lines[0])
	}
	if !strings.Contains(lines[1], "\"Second\" est en retard de 1 jour(s)") {
		t.Fatalf("unexpected overdue line: %q", lines[1])
	}
}

func TestReminderServiceRunWithNothingDue(t *testing.T) {
	gdb := setupServiceTestDB(t)
	dispatcher := &fakeDispatcher{}
	svc := NewReminderService(gdb, dispatcher, 0)

	summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(dispatcher.calls) != 0 || summary.Reminders != 0 {
		t.Fatalf("expected no dispatch, got %d calls / %+v", len(dispatcher.calls), summary)
	}
}

func TestReminderServiceRunFailsWhenGoalsUnreadable(t *testing.T) {
	gdb := setupServiceTestDB(t)
	if err := gdb.Migrator().DropTable(&db.Goal{}); err != nil {
		t.Fatalf("failed to drop goals table: %v", err)
	}

	svc := NewReminderService(gdb, &fakeDispatcher{}, 1)
	if _, err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected error when goals cannot be read")
	}
}

func TestReminderServiceRunClearsGoneEndpoint(t *testing.T) {
	gdb := setupServiceTestDB(t)
	auth := NewAuthService(gdb, "test-secret", time.Hour)

	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	gone := seedReminderUser(t, auth, "gone@example.com", &db.PushEndpoint{Endpoint: "https://push.example.com/expired"})
	broken := seedReminderUser(t, auth, "flaky@example.com", &db.PushEndpoint{Endpoint: "https://push.example.com/flaky"})

	for _, userID := range []uint{gone.ID, broken.ID} {
		seedReminderGoal(t, gdb, db.Goal{
			UserID:      userID,
			Title:       "Overdue goal",
			Description: "d",
			Category:    "c",
			Priority:    db.PriorityMedium,
			Status:      db.StatusInProgress,
			CreatedAt:   now.Add(-10 * 24 * time.Hour),
			TargetDate:  now.Add(-24 * time.Hour),
		})
	}

	dispatcher := &fakeDispatcher{failOn: map[string]error{
		"https://push.example.com/expired": notify.ErrEndpointGone,
		"https://push.example.com/flaky":   errors.New("push service unavailable"),
	}}
	svc := NewReminderService(gdb, dispatcher, 2)
	svc.now = func() time.Time { return now }

	summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.DispatchFailures != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	reloaded, err := auth.GetUser(gone.ID)
	if err != nil {
		t.Fatalf("GetUser returned error: %v", err)
	}
	if reloaded.PushEndpoint != nil {
		t.Fatalf("expected gone endpoint to be cleared, got %+v", reloaded.PushEndpoint)
	}
	kept, err := auth.GetUser(broken.ID)
	if err != nil {
		t.Fatalf("GetUser returned error: %v", err)
	}
	if !kept.PushEndpoint.Registered() {
		t.Fatal("expected endpoint with a transient failure to be kept")
	}

	second, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}
	if second.UsersSkipped != 1 || second.DispatchFailures != 1 {
		t.Fatalf("expected the cleared user to be skipped on the next run, got %+v", second)
	}
}
