package attendance

import (
	"context"
	"sync"
	"time"

	"github.com/FanyNavas/Sentara.Api/internal/model"
)

// MemoryStore keeps records in process memory. Ids are shared across both
// record kinds and start at 1.
type MemoryStore struct {
	mu         sync.Mutex
	lastID     int64
	attendance []model.AttendanceRecord
	reviews    []model.ManualReviewRequest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) InsertAttendance(_ context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastID++
	rec.ID = m.lastID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.attendance = append(m.attendance, rec)
	return rec, nil
}

func (m *MemoryStore) InsertManualReview(_ context.Context, req model.ManualReviewRequest) (model.ManualReviewRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastID++
	req.ID = m.lastID
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	m.reviews = append(m.reviews, req)
	return req, nil
}

// Attendance returns a copy of the stored attendance records.
func (m *MemoryStore) Attendance() []model.AttendanceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.AttendanceRecord(nil), m.attendance...)
}

// ManualReviews returns a copy of the stored manual-review requests.
func (m *MemoryStore) ManualReviews() []model.ManualReviewRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ManualReviewRequest(nil), m.reviews...)
}
