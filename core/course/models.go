package course

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/access"
)

type Course struct {
	ID           string      `json:"id" db:"id"`
	SchoolID     string      `json:"school_id" db:"school_id"`
	SubjectID    null.String `json:"subject_id" db:"subject_id"`
	TeacherID    string      `json:"teacher_id" db:"teacher_id"`
	Title        string      `json:"title" db:"title"`
	Description  null.String `json:"description" db:"description"`
	ThumbnailURL null.String `json:"thumbnail_url" db:"thumbnail_url"`
	IsPublished  bool        `json:"is_published" db:"is_published"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

// NewCourse is the course creation form. Teachers own the courses they create;
// managers must name the teacher and, when not bound to a school, the school.
type NewCourse struct {
	Title        string   `json:"title" validate:"required,min=3,max=200"`
	Description  string   `json:"description" validate:"omitempty,max=5000"`
	SubjectID    string   `json:"subject_id" validate:"omitempty,uuid"`
	ClassIDs     []string `json:"class_ids" validate:"omitempty,dive,uuid"`
	ThumbnailURL string   `json:"thumbnail_url" validate:"omitempty,url"`
	IsPublished  bool     `json:"is_published"`
	TeacherID    string   `json:"teacher_id" validate:"omitempty,uuid"`
	SchoolID     string   `json:"school_id" validate:"omitempty,uuid"`
}

func (nc *NewCourse) Validate(validate *validator.Validate, by access.Principal) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.SubjectID = core.CleanString(nc.SubjectID)
	nc.ThumbnailURL = core.CleanString(nc.ThumbnailURL)
	nc.TeacherID = core.CleanString(nc.TeacherID)
	nc.SchoolID = core.CleanString(nc.SchoolID)

	if err := validate.Struct(nc); err != nil {
		return err
	}

	switch {
	case by.Role == access.RoleTeacher:
		nc.TeacherID = by.ID
		nc.SchoolID = by.SchoolID
	case by.Role.Unscoped():
		if nc.SchoolID == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "school_id", Error: "this field is required"})
		}
	default:
		nc.SchoolID = by.SchoolID
	}
	if nc.TeacherID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "teacher_id", Error: "this field is required"})
	}
	if nc.SchoolID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "school_id", Error: "this field is required"})
	}
	return nil
}

type Enrollment struct {
	ID          string    `json:"id" db:"id"`
	CourseID    string    `json:"course_id" db:"course_id"`
	StudentID   string    `json:"student_id" db:"student_id"`
	Progress    int       `json:"progress" db:"progress"`
	EnrolledAt  time.Time `json:"enrolled_at" db:"enrolled_at"`
	CompletedAt null.Time `json:"completed_at" db:"completed_at"`
}

// QueryFilter selects courses. Scope.StudentID keeps the courses the student is enrolled in.
type QueryFilter struct {
	Scope         access.Scope `query:"-"`
	PublishedOnly bool         `query:"-"`
	Search        string       `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// EnrollmentStats summarizes the enrollments visible in a scope.
type EnrollmentStats struct {
	Students        int     `json:"students" db:"students"`
	Enrollments     int     `json:"enrollments" db:"enrollments"`
	Completed       int     `json:"completed" db:"completed"`
	AverageProgress float64 `json:"average_progress" db:"average_progress"`
}
