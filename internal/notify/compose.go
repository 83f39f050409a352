package notify

import (
	"bytes"
	"html/template"

	"github.com/FanyNavas/Sentara.Api/internal/model"
)

const timeLayout = "2006-01-02 15:04:05Z"

// Content is a composed subject and HTML body.
type Content struct {
	Subject string
	HTML    string
}

// Link is a labelled URL rendered into a notification body.
type Link struct {
	Label string
	URL   string
}

var attendanceTmpl = template.Must(template.New("attendance").Parse(`
<h2>Sentara Attendance</h2>
<p><strong>Student:</strong> {{.StudentName}}</p>
<p><strong>Class:</strong> {{.ClassName}}</p>
<p><strong>Status:</strong> {{.Status}}</p>
<p><strong>Recorded at (UTC):</strong> {{.CreatedAt}}</p>
{{- if .HasSnapshot}}
<p>The snapshot image is attached to this email.</p>
{{- end}}
`))

var manualReviewTmpl = template.Must(template.New("manual-review").Parse(`
<h2>Sentara Manual Review Request</h2>
<p><strong>Claimed student:</strong> {{.ClaimedName}}</p>
<p><strong>Class:</strong> {{.ClassName}}</p>
<p><strong>Reason:</strong> {{.Reason}}</p>
<p><strong>Requested at (UTC):</strong> {{.CreatedAt}}</p>
<p>Images have been stored in the backend for your review.</p>
{{- if .Links}}
<ul>
{{- range .Links}}
<li><a href="{{.URL}}">{{.Label}}</a></li>
{{- end}}
</ul>
{{- end}}
`))

// ComposeAttendance builds the teacher notification for an attendance record.
func ComposeAttendance(rec model.AttendanceRecord) Content {
	data := struct {
		StudentName, ClassName, Status, CreatedAt string
		HasSnapshot                               bool
	}{
		StudentName: rec.StudentName,
		ClassName:   rec.ClassName,
		Status:      rec.Status,
		CreatedAt:   rec.CreatedAt.UTC().Format(timeLayout),
		HasSnapshot: rec.SnapshotFileName != nil && *rec.SnapshotFileName != "",
	}
	return Content{
		Subject: "Sentara Attendance • " + rec.ClassName,
		HTML:    render(attendanceTmpl, data),
	}
}

// ComposeManualReview builds the teacher notification for a manual review
// request. Images are not attached; links, when given, point at the stored copies.
func ComposeManualReview(req model.ManualReviewRequest, links []Link) Content {
	data := struct {
		ClaimedName, ClassName, Reason, CreatedAt string
		Links                                     []Link
	}{
		ClaimedName: req.ClaimedName,
		ClassName:   req.ClassName,
		Reason:      req.Reason,
		CreatedAt:   req.CreatedAt.UTC().Format(timeLayout),
		Links:       links,
	}
	return Content{
		Subject: "Sentara Manual Review • " + req.ClassName,
		HTML:    render(manualReviewTmpl, data),
	}
}

// render panics on template errors. The templates are static.
func render(t *template.Template, data any) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		panic("notify: render " + t.Name() + ": " + err.Error())
	}
	return buf.String()
}
