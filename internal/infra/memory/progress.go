package memory

import (
	"context"
	"sync"
	"time"

	"quiz-session-service/internal/domain"
)

// scorePerLevel is the accumulated score needed to advance one level.
const scorePerLevel = 50

// ProgressTracker is an in-memory stand-in for the leveling subsystem.
type ProgressTracker struct {
	mu        sync.Mutex
	snapshots map[domain.UserID]domain.ProgressSnapshot
}

func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		snapshots: make(map[domain.UserID]domain.ProgressSnapshot),
	}
}

func (t *ProgressTracker) RecordResult(_ context.Context, userID domain.UserID, score int, studyDuration time.Duration) (domain.ProgressSnapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := t.snapshots[userID]
	snap.UserID = userID
	snap.SessionsCompleted++
	snap.TotalScore += score
	snap.StudySeconds += int64(studyDuration / time.Second)
	snap.Level = 1 + snap.TotalScore/scorePerLevel
	t.snapshots[userID] = snap
	return snap, nil
}

func (t *ProgressTracker) Progress(_ context.Context, userID domain.UserID) (domain.ProgressSnapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap, ok := t.snapshots[userID]
	if !ok {
		return domain.ProgressSnapshot{UserID: userID, Level: 1}, nil
	}
	return snap, nil
}
