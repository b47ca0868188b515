package validation

import (
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/models"
)

func TestValidateHabit(t *testing.T) {
	validator := New()

	tests := []struct {
		name      string
		habit     models.Habit
		wantField string
	}{
		{
			name:  "valid daily",
			habit: models.Habit{Title: "Read", Category: "mind", Frequency: constants.FrequencyDaily},
		},
		{
			name:      "missing title",
			habit:     models.Habit{Title: "  ", Category: "mind", Frequency: constants.FrequencyDaily},
			wantField: "title",
		},
		{
			name:      "missing category",
			habit:     models.Habit{Title: "Read", Frequency: constants.FrequencyDaily},
			wantField: "category",
		},
		{
			name:      "weekly without days",
			habit:     models.Habit{Title: "Run", Category: "health", Frequency: constants.FrequencyWeekly},
			wantField: "days_of_week",
		},
		{
			name: "weekly with days",
			habit: models.Habit{Title: "Run", Category: "health", Frequency: constants.FrequencyWeekly,
				DaysOfWeek: []time.Weekday{time.Monday, time.Thursday}},
		},
		{
			name: "weekly with bad weekday",
			habit: models.Habit{Title: "Run", Category: "health", Frequency: constants.FrequencyWeekly,
				DaysOfWeek: []time.Weekday{7}},
			wantField: "days_of_week",
		},
		{
			name:      "monthly without days",
			habit:     models.Habit{Title: "Budget", Category: "money", Frequency: constants.FrequencyMonthly},
			wantField: "days_of_month",
		},
		{
			name: "monthly day out of range",
			habit: models.Habit{Title: "Budget", Category: "money", Frequency: constants.FrequencyMonthly,
				DaysOfMonth: []int{0, 15}},
			wantField: "days_of_month",
		},
		{
			name: "monthly day 31 is allowed",
			habit: models.Habit{Title: "Budget", Category: "money", Frequency: constants.FrequencyMonthly,
				DaysOfMonth: []int{1, 31}},
		},
		{
			name:      "unknown frequency",
			habit:     models.Habit{Title: "Nap", Category: "rest", Frequency: "hourly"},
			wantField: "frequency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateHabit(tt.habit)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("ValidateHabit() unexpected error: %v", err)
				}
				return
			}
			if !errors.IsValidation(err) {
				t.Fatalf("ValidateHabit() error = %v, want validation error", err)
			}
			var verr *errors.ValidationError
			if !stderrors.As(err, &verr) || verr.Field != tt.wantField {
				t.Errorf("ValidateHabit() error = %v, want field %q", err, tt.wantField)
			}
		})
	}
}

func TestValidateHabits_DuplicateTitles(t *testing.T) {
	validator := New()
	deleted := time.Now()

	habits := []models.Habit{
		{ID: "1", Title: "Read", Category: "mind", Frequency: constants.FrequencyDaily},
		{ID: "2", Title: "Walk", Category: "health", Frequency: constants.FrequencyDaily},
		{ID: "3", Title: "read ", Category: "mind", Frequency: constants.FrequencyDaily}, // Duplicate
		{ID: "4", Title: "Walk", Category: "health", Frequency: constants.FrequencyDaily, DeletedAt: &deleted},
	}

	result := validator.ValidateHabits(habits)

	if len(result.Conflicts) != 1 {
		t.Fatalf("Expected 1 conflict, got %d: %s", len(result.Conflicts), result.FormatReport())
	}
	if result.Conflicts[0].Type != ConflictDuplicateHabitTitle {
		t.Errorf("Expected ConflictDuplicateHabitTitle, got %s", result.Conflicts[0].Type)
	}
	if got := result.HabitIDs(); len(got) != 2 || got[0] != "1" || got[1] != "3" {
		t.Errorf("HabitIDs() = %v, want [1 3]", got)
	}
}

func TestValidateHabits_StreakAndHistory(t *testing.T) {
	validator := New()
	t1 := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	t0 := t1.Add(-24 * time.Hour)

	habits := []models.Habit{
		{ID: "ok", Title: "Read", Category: "mind", Frequency: constants.FrequencyDaily,
			Streak: 2, LongestStreak: 2, CompletionHistory: []time.Time{t0, t1}},
		{ID: "streak", Title: "Walk", Category: "health", Frequency: constants.FrequencyDaily,
			Streak: 4, LongestStreak: 3},
		{ID: "order", Title: "Stretch", Category: "health", Frequency: constants.FrequencyDaily,
			Streak: 1, LongestStreak: 1, CompletionHistory: []time.Time{t1, t0}},
		{ID: "recurrence", Title: "Budget", Category: "money", Frequency: constants.FrequencyMonthly},
	}

	result := validator.ValidateHabits(habits)

	counts := make(map[ConflictType]int)
	for _, c := range result.Conflicts {
		counts[c.Type]++
	}
	if counts[ConflictStreakInvariant] != 1 || counts[ConflictHistoryOrder] != 1 || counts[ConflictInvalidRecurrence] != 1 {
		t.Errorf("unexpected conflicts: %s", result.FormatReport())
	}

	repairable := result.HabitIDs(ConflictStreakInvariant, ConflictHistoryOrder)
	if len(repairable) != 2 {
		t.Errorf("HabitIDs(streak, order) = %v, want 2 ids", repairable)
	}
}

func TestFormatReport(t *testing.T) {
	empty := ValidationResult{}
	if empty.FormatReport() != "No conflicts detected." {
		t.Errorf("FormatReport() = %q", empty.FormatReport())
	}

	result := ValidationResult{Conflicts: []Conflict{{Description: "first"}, {Description: "second"}}}
	report := result.FormatReport()
	if !strings.Contains(report, "- first\n") || !strings.Contains(report, "- second\n") {
		t.Errorf("FormatReport() = %q", report)
	}
}
