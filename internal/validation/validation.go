package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/models"
)

// ConflictType represents the type of validation conflict
type ConflictType string

const (
	ConflictDuplicateHabitTitle ConflictType = "duplicate_habit_title"
	ConflictInvalidRecurrence   ConflictType = "invalid_recurrence"
	ConflictStreakInvariant     ConflictType = "streak_invariant"
	ConflictHistoryOrder        ConflictType = "history_order"
)

// Conflict represents a detected problem in stored habits
type Conflict struct {
	Type        ConflictType
	Description string
	Items       []string // Habit titles involved
	HabitIDs    []string // IDs of habits involved (for repair)
}

// ValidationResult contains all detected conflicts
type ValidationResult struct {
	Conflicts []Conflict
}

// HasConflicts returns true if there are any conflicts
func (vr *ValidationResult) HasConflicts() bool {
	return len(vr.Conflicts) > 0
}

// HabitIDs returns the distinct habit ids referenced by conflicts of the given types.
// With no types, every conflict counts.
func (vr *ValidationResult) HabitIDs(types ...ConflictType) []string {
	want := make(map[ConflictType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	seen := make(map[string]bool)
	var ids []string
	for _, c := range vr.Conflicts {
		if len(want) > 0 && !want[c.Type] {
			continue
		}
		for _, id := range c.HabitIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// FormatReport returns a human-readable report of all conflicts
func (vr *ValidationResult) FormatReport() string {
	if !vr.HasConflicts() {
		return "No conflicts detected."
	}

	var b strings.Builder
	b.WriteString("Conflicts detected:\n")
	for _, conflict := range vr.Conflicts {
		fmt.Fprintf(&b, "- %s\n", conflict.Description)
	}
	return b.String()
}

// Validator validates habit input and stored habit state
type Validator struct{}

// New creates a new Validator
func New() *Validator {
	return &Validator{}
}

// ValidateHabit checks user-supplied habit fields. It returns the first
// problem found as an *errors.ValidationError, or nil.
func (v *Validator) ValidateHabit(h models.Habit) error {
	if strings.TrimSpace(h.Title) == "" {
		return errors.NewValidationError("title", "title is required")
	}
	if strings.TrimSpace(h.Category) == "" {
		return errors.NewValidationError("category", "category is required")
	}
	return v.ValidateRecurrence(h)
}

// ValidateRecurrence checks the frequency and its day set.
func (v *Validator) ValidateRecurrence(h models.Habit) error {
	switch h.Frequency {
	case constants.FrequencyDaily:
		return nil
	case constants.FrequencyWeekly:
		if len(h.DaysOfWeek) == 0 {
			return errors.NewValidationError("days_of_week", "weekly habits need at least one weekday")
		}
		for _, wd := range h.DaysOfWeek {
			if wd < 0 || wd > 6 {
				return errors.NewValidationError("days_of_week", "invalid weekday %d", int(wd))
			}
		}
		return nil
	case constants.FrequencyMonthly:
		if len(h.DaysOfMonth) == 0 {
			return errors.NewValidationError("days_of_month", "monthly habits need at least one day of the month")
		}
		for _, d := range h.DaysOfMonth {
			if d < 1 || d > 31 {
				return errors.NewValidationError("days_of_month", "day of month %d out of range (1-31)", d)
			}
		}
		return nil
	default:
		return errors.NewValidationError("frequency", "unknown frequency %q (expected daily, weekly or monthly)", h.Frequency)
	}
}

// ValidateHabits scans stored habits for problems the engine cannot fix on
// its own: duplicate titles, broken recurrences, violated streak invariants
// and out-of-order completion history. Deleted habits are skipped.
func (v *Validator) ValidateHabits(habits []models.Habit) ValidationResult {
	result := ValidationResult{Conflicts: []Conflict{}}

	// Check for duplicate habit titles
	titleIDs := make(map[string][]string)
	var titles []string
	for _, h := range habits {
		if h.DeletedAt != nil || h.Title == "" {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(h.Title))
		if _, ok := titleIDs[key]; !ok {
			titles = append(titles, key)
		}
		titleIDs[key] = append(titleIDs[key], h.ID)
	}
	sort.Strings(titles)
	for _, title := range titles {
		ids := titleIDs[title]
		if len(ids) > 1 {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictDuplicateHabitTitle,
				Description: fmt.Sprintf("Duplicate habit title: \"%s\" (IDs: %v)", title, ids),
				Items:       []string{title},
				HabitIDs:    ids,
			})
		}
	}

	for _, h := range habits {
		if h.DeletedAt != nil {
			continue
		}

		if err := v.ValidateRecurrence(h); err != nil {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictInvalidRecurrence,
				Description: fmt.Sprintf("Habit \"%s\": %s", h.Title, err.Error()),
				Items:       []string{h.Title},
				HabitIDs:    []string{h.ID},
			})
		}

		if h.Streak < 0 || h.LongestStreak < h.Streak {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type: ConflictStreakInvariant,
				Description: fmt.Sprintf("Habit \"%s\": streak %d, longest %d (longest must be >= streak >= 0)",
					h.Title, h.Streak, h.LongestStreak),
				Items:    []string{h.Title},
				HabitIDs: []string{h.ID},
			})
		}

		for i := 1; i < len(h.CompletionHistory); i++ {
			if h.CompletionHistory[i].Before(h.CompletionHistory[i-1]) {
				result.Conflicts = append(result.Conflicts, Conflict{
					Type:        ConflictHistoryOrder,
					Description: fmt.Sprintf("Habit \"%s\": completion history is not in chronological order", h.Title),
					Items:       []string{h.Title},
					HabitIDs:    []string{h.ID},
				})
				break
			}
		}
	}

	return result
}
