package tracker

import (
	"context"
	"sync"

	"github.com/julianstephens/daystreak/internal/models"
)

// Listener receives the session's habit list after every change.
type Listener func(habits []models.HabitView)

// Session is the per-user view of the tracker: the service, the user's
// projected habits, and the listeners notified when they change. It is
// owned by its caller and passed explicitly; nothing in the package keeps
// a global one.
type Session struct {
	svc    *Service
	userID string

	mu        sync.Mutex
	habits    []models.HabitView
	listeners map[int]Listener
	nextID    int
}

func NewSession(svc *Service, userID string) *Session {
	return &Session{svc: svc, userID: userID, listeners: make(map[int]Listener)}
}

func (s *Session) UserID() string { return s.userID }

func (s *Session) Service() *Service { return s.svc }

// Habits returns a copy of the last loaded habit list.
func (s *Session) Habits() []models.HabitView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.HabitView(nil), s.habits...)
}

// Subscribe registers fn and returns a function that removes it.
func (s *Session) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Refresh reloads the habit list from the store and notifies listeners.
func (s *Session) Refresh(ctx context.Context) error {
	views, err := s.svc.FetchHabits(ctx, s.userID)
	if err != nil {
		return err
	}
	s.set(views)
	return nil
}

// MarkComplete completes habitID and refreshes the session.
func (s *Session) MarkComplete(ctx context.Context, habitID string) (CompletionResult, error) {
	result, err := s.svc.MarkHabitComplete(ctx, s.userID, habitID)
	if err != nil {
		return result, err
	}
	if !result.AlreadyCompleted || result.Resumed {
		if err := s.Refresh(ctx); err != nil {
			return result, err
		}
	}
	return result, nil
}

// Add creates a habit and refreshes the session.
func (s *Session) Add(ctx context.Context, input HabitInput) (models.Habit, error) {
	habit, err := s.svc.AddHabit(ctx, s.userID, input)
	if err != nil {
		return habit, err
	}
	return habit, s.Refresh(ctx)
}

// Update edits a habit and refreshes the session.
func (s *Session) Update(ctx context.Context, habitID string, patch HabitPatch) (models.Habit, error) {
	habit, err := s.svc.UpdateHabit(ctx, s.userID, habitID, patch)
	if err != nil {
		return habit, err
	}
	return habit, s.Refresh(ctx)
}

// Delete soft-deletes a habit and refreshes the session.
func (s *Session) Delete(ctx context.Context, habitID string) error {
	if err := s.svc.DeleteHabit(ctx, s.userID, habitID); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// Restore undeletes a habit and refreshes the session.
func (s *Session) Restore(ctx context.Context, habitID string) (models.Habit, error) {
	habit, err := s.svc.RestoreHabit(ctx, s.userID, habitID)
	if err != nil {
		return habit, err
	}
	return habit, s.Refresh(ctx)
}

func (s *Session) set(views []models.HabitView) {
	s.mu.Lock()
	s.habits = views
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(append([]models.HabitView(nil), views...))
	}
}
