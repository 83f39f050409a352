package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"

	"github.com/FanyNavas/Sentara.Api/internal/apperr"
	"github.com/FanyNavas/Sentara.Api/internal/metrics"
	"github.com/FanyNavas/Sentara.Api/internal/model"
	"github.com/FanyNavas/Sentara.Api/internal/notify"
	"github.com/FanyNavas/Sentara.Api/internal/requestid"
	"github.com/FanyNavas/Sentara.Api/internal/snapshot"
)

// MsgMissingFields is returned to clients when a required field is blank.
const MsgMissingFields = "Missing required fields."

// Store persists submissions. Implementations assign the id.
type Store interface {
	InsertAttendance(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, error)
	InsertManualReview(ctx context.Context, req model.ManualReviewRequest) (model.ManualReviewRequest, error)
}

// LinkSigner produces a time-limited URL for a stored image.
type LinkSigner interface {
	Link(fileName string) (string, error)
}

// Policy tunes how notification failures are treated.
type Policy struct {
	// StrictManualReview turns a failed manual-review email into a request failure.
	StrictManualReview bool
	NotifyTimeout      time.Duration
}

// AttendanceSubmission is the input of SubmitAttendance.
type AttendanceSubmission struct {
	Teacher         string `validate:"required"`
	Student         string `validate:"required"`
	ClassName       string `validate:"required"`
	Status          string `validate:"required"`
	SnapshotDataURL string
}

// ManualReviewSubmission is the input of SubmitManualReview.
type ManualReviewSubmission struct {
	Teacher      string `validate:"required"`
	ClaimedName  string `validate:"required"`
	ClassName    string `validate:"required"`
	Reason       string `validate:"required"`
	PhotoDataURL string
	LiveDataURL  string
}

// Service runs the submission pipeline: validate, store images, persist,
// then notify the teacher.
type Service struct {
	store    Store
	codec    *snapshot.Codec
	notifier notify.Notifier
	links    LinkSigner
	policy   Policy
	logger   *log.Logger
	validate *validator.Validate
}

// NewService wires the pipeline.
func NewService(store Store, codec *snapshot.Codec, notifier notify.Notifier, logger *log.Logger, policy Policy) *Service {
	if policy.NotifyTimeout <= 0 {
		policy.NotifyTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		store:    store,
		codec:    codec,
		notifier: notifier,
		policy:   policy,
		logger:   logger,
		validate: validator.New(),
	}
}

// WithLinks makes manual-review emails list signed links to the stored images.
func (s *Service) WithLinks(signer LinkSigner) *Service {
	s.links = signer
	return s
}

// SubmitAttendance records one attendance submission. Only validation and
// persistence failures are returned; image and email problems are logged.
func (s *Service) SubmitAttendance(ctx context.Context, sub AttendanceSubmission) (rec model.AttendanceRecord, err error) {
	defer func() { metrics.Submission(metrics.KindAttendance, outcome(err)) }()
	defer s.recoverPanic(ctx, "attendance", &err)

	sub.Teacher = clean(sub.Teacher)
	sub.Student = clean(sub.Student)
	sub.ClassName = clean(sub.ClassName)
	sub.Status = clean(sub.Status)
	if err := s.validate.Struct(sub); err != nil {
		return rec, apperr.Validation(MsgMissingFields)
	}

	snap := s.storeImage(ctx, sub.SnapshotDataURL, snapshot.PurposeAttendance)
	rec, err = s.store.InsertAttendance(ctx, model.AttendanceRecord{
		TeacherEmail:     sub.Teacher,
		StudentName:      sub.Student,
		ClassName:        sub.ClassName,
		Status:           sub.Status,
		SnapshotFileName: snap,
	})
	if err != nil {
		s.discardImages(ctx, snap)
		return model.AttendanceRecord{}, apperr.Persistence("save attendance", err)
	}

	content := notify.ComposeAttendance(rec)
	msg := notify.Message{To: rec.TeacherEmail, Subject: content.Subject, HTMLBody: content.HTML}
	if rec.SnapshotFileName != nil {
		p := s.codec.Path(*rec.SnapshotFileName)
		if _, statErr := os.Stat(p); statErr != nil {
			s.logger.Printf("[%s] WARN: snapshot %s for attendance %d is missing, sending without attachment", requestid.From(ctx), p, rec.ID)
		} else {
			msg.Attachments = append(msg.Attachments, notify.Attachment{
				FilePath:    p,
				ContentType: "image/png",
				DisplayName: fmt.Sprintf("attendance_%d.png", rec.ID),
			})
		}
	}

	if nerr := s.send(ctx, metrics.KindAttendance, msg); nerr != nil {
		s.logger.Printf("[%s] ERROR: attendance %d saved but email to %s failed: %v", requestid.From(ctx), rec.ID, rec.TeacherEmail, nerr)
	}
	return rec, nil
}

// SubmitManualReview records a manual-review request. A failed email only
// fails the call when the policy is strict; the record stays persisted.
func (s *Service) SubmitManualReview(ctx context.Context, sub ManualReviewSubmission) (req model.ManualReviewRequest, err error) {
	defer func() { metrics.Submission(metrics.KindManualReview, outcome(err)) }()
	defer s.recoverPanic(ctx, "manual review", &err)

	sub.Teacher = clean(sub.Teacher)
	sub.ClaimedName = clean(sub.ClaimedName)
	sub.ClassName = clean(sub.ClassName)
	sub.Reason = clean(sub.Reason)
	if err := s.validate.Struct(sub); err != nil {
		return req, apperr.Validation(MsgMissingFields)
	}

	photo := s.storeImage(ctx, sub.PhotoDataURL, snapshot.PurposeManualUpload)
	live := s.storeImage(ctx, sub.LiveDataURL, snapshot.PurposeManualLive)
	req, err = s.store.InsertManualReview(ctx, model.ManualReviewRequest{
		TeacherEmail:          sub.Teacher,
		ClaimedName:           sub.ClaimedName,
		ClassName:             sub.ClassName,
		Reason:                sub.Reason,
		UploadedPhotoFileName: photo,
		LiveSnapshotFileName:  live,
	})
	if err != nil {
		s.discardImages(ctx, photo, live)
		return model.ManualReviewRequest{}, apperr.Persistence("save manual review", err)
	}

	content := notify.ComposeManualReview(req, s.imageLinks(ctx, req))
	msg := notify.Message{To: req.TeacherEmail, Subject: content.Subject, HTMLBody: content.HTML}

	if nerr := s.send(ctx, metrics.KindManualReview, msg); nerr != nil {
		if s.policy.StrictManualReview {
			return req, nerr
		}
		s.logger.Printf("[%s] ERROR: manual review %d saved but email to %s failed: %v", requestid.From(ctx), req.ID, req.TeacherEmail, nerr)
	}
	return req, nil
}

// storeImage decodes dataURL best-effort. A supplied image that cannot be
// stored is logged and counted, and the reference stays nil.
func (s *Service) storeImage(ctx context.Context, dataURL string, purpose snapshot.Purpose) *string {
	name, err := s.codec.Decode(dataURL, purpose)
	if err != nil {
		metrics.DecodeFailure(string(purpose))
		s.logger.Printf("[%s] WARN: %s image dropped: %v", requestid.From(ctx), purpose, err)
		return nil
	}
	return name
}

// discardImages removes files written for a submission that was never saved.
func (s *Service) discardImages(ctx context.Context, names ...*string) {
	for _, name := range names {
		if name == nil {
			continue
		}
		if err := os.Remove(s.codec.Path(*name)); err != nil && !os.IsNotExist(err) {
			s.logger.Printf("[%s] WARN: remove unsaved image %s: %v", requestid.From(ctx), *name, err)
		}
	}
}

func (s *Service) imageLinks(ctx context.Context, req model.ManualReviewRequest) []notify.Link {
	if s.links == nil {
		return nil
	}
	var links []notify.Link
	for _, img := range []struct {
		label string
		name  *string
	}{
		{"Uploaded photo", req.UploadedPhotoFileName},
		{"Live snapshot", req.LiveSnapshotFileName},
	} {
		if img.name == nil {
			continue
		}
		url, err := s.links.Link(*img.name)
		if err != nil {
			s.logger.Printf("[%s] WARN: sign link for %s: %v", requestid.From(ctx), *img.name, err)
			continue
		}
		links = append(links, notify.Link{Label: img.label, URL: url})
	}
	return links
}

// send calls the notifier with its own deadline. The record is already saved,
// so a client hanging up must not cancel the email.
func (s *Service) send(ctx context.Context, kind string, msg notify.Message) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.policy.NotifyTimeout)
	defer cancel()

	start := time.Now()
	err := s.notifier.Send(ctx, msg)
	metrics.Notification(kind, time.Since(start), err)
	if err != nil && !apperr.Is(err, apperr.KindNotification) {
		err = apperr.Notification("send notification", err)
	}
	return err
}

func (s *Service) recoverPanic(ctx context.Context, what string, err *error) {
	if r := recover(); r != nil {
		s.logger.Printf("[%s] ERROR: %s submission panicked: %v", requestid.From(ctx), what, r)
		if e, ok := r.(error); ok {
			*err = apperr.Unexpected("unexpected failure", e)
			return
		}
		*err = apperr.Unexpected(fmt.Sprint(r), nil)
	}
}

func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func outcome(err error) string {
	var e *apperr.Error
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &e) && e.Kind == apperr.KindValidation:
		return "invalid"
	default:
		return "error"
	}
}
