package attendance

import (
	"context"
	"time"

	"github.com/FanyNavas/Sentara.Api/internal/model"
	"github.com/FanyNavas/Sentara.Api/internal/store"
)

// Repository persists submissions through database/sql.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

// InsertAttendance writes a new attendance record and returns it with its id.
func (r *Repository) InsertAttendance(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	id, err := r.insert(ctx, `
		INSERT INTO AttendanceRecords (teacher_email, student_name, class_name, status, created_at, snapshot_file_name)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.TeacherEmail, rec.StudentName, rec.ClassName, rec.Status, rec.CreatedAt, rec.SnapshotFileName)
	if err != nil {
		return model.AttendanceRecord{}, err
	}
	rec.ID = id
	return rec, nil
}

// InsertManualReview writes a new manual-review request and returns it with its id.
func (r *Repository) InsertManualReview(ctx context.Context, req model.ManualReviewRequest) (model.ManualReviewRequest, error) {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	id, err := r.insert(ctx, `
		INSERT INTO ManualReviewRequests (teacher_email, claimed_name, class_name, reason, created_at, uploaded_photo_file_name, live_snapshot_file_name)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		req.TeacherEmail, req.ClaimedName, req.ClassName, req.Reason, req.CreatedAt, req.UploadedPhotoFileName, req.LiveSnapshotFileName)
	if err != nil {
		return model.ManualReviewRequest{}, err
	}
	req.ID = id
	return req, nil
}

// insert runs an INSERT and returns the generated id. Postgres has no
// LastInsertId, so it goes through RETURNING instead.
func (r *Repository) insert(ctx context.Context, query string, args ...any) (int64, error) {
	if r.db.Dialect == store.Postgres {
		var id int64
		err := r.db.Client.QueryRowContext(ctx, r.db.Rebind(query)+" RETURNING id", args...).Scan(&id)
		return id, err
	}
	res, err := r.db.Client.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
