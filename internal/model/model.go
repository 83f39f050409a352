package model

import "time"

// AttendanceRecord is one attendance submission as persisted.
type AttendanceRecord struct {
	ID           int64     `json:"id"`
	TeacherEmail string    `json:"teacher_email"`
	StudentName  string    `json:"student_name"`
	ClassName    string    `json:"class_name"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`

	// Name of the PNG in the snapshot directory; nil when no image was stored.
	SnapshotFileName *string `json:"snapshot_file_name,omitempty"`
}

// ManualReviewRequest is a student's request for a teacher to review attendance by hand.
type ManualReviewRequest struct {
	ID           int64     `json:"id"`
	TeacherEmail string    `json:"teacher_email"`
	ClaimedName  string    `json:"claimed_name"`
	ClassName    string    `json:"class_name"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`

	UploadedPhotoFileName *string `json:"uploaded_photo_file_name,omitempty"`
	LiveSnapshotFileName  *string `json:"live_snapshot_file_name,omitempty"`
}
