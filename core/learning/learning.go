// Package learning lists the content nested under courses: lessons, assignments, quizzes
// and discussions. Every query goes through the scope of the owning course.
package learning

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/access"
)

type (
	Module struct {
		ID          string      `json:"id" db:"id"`
		CourseID    string      `json:"course_id" db:"course_id"`
		Title       string      `json:"title" db:"title"`
		Description null.String `json:"description" db:"description"`
		Order       int         `json:"order" db:"order"`
		CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	}

	Lesson struct {
		ID          string      `json:"id" db:"id"`
		ModuleID    string      `json:"module_id" db:"module_id"`
		CourseID    string      `json:"course_id" db:"course_id"`
		CourseTitle string      `json:"course_title" db:"course_title"`
		Title       string      `json:"title" db:"title"`
		Type        string      `json:"type" db:"type"`
		Duration    null.Int    `json:"duration" db:"duration"`
		Order       int         `json:"order" db:"order"`
		IsPreview   bool        `json:"is_preview" db:"is_preview"`
		VideoURL    null.String `json:"video_url" db:"video_url"`
		CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	}

	Assignment struct {
		ID                  string    `json:"id" db:"id"`
		LessonID            string    `json:"lesson_id" db:"lesson_id"`
		CourseID            string    `json:"course_id" db:"course_id"`
		CourseTitle         string    `json:"course_title" db:"course_title"`
		Title               string    `json:"title" db:"title"`
		Description         string    `json:"description" db:"description"`
		DueDate             time.Time `json:"due_date" db:"due_date"`
		MaxScore            int       `json:"max_score" db:"max_score"`
		AllowLateSubmission bool      `json:"allow_late_submission" db:"allow_late_submission"`
		CreatedAt           time.Time `json:"created_at" db:"created_at"`
	}

	Submission struct {
		ID           string      `json:"id" db:"id"`
		AssignmentID string      `json:"assignment_id" db:"assignment_id"`
		StudentID    string      `json:"student_id" db:"student_id"`
		Score        null.Int    `json:"score" db:"score"`
		Feedback     null.String `json:"feedback" db:"feedback"`
		SubmittedAt  time.Time   `json:"submitted_at" db:"submitted_at"`
		GradedAt     null.Time   `json:"graded_at" db:"graded_at"`
	}

	Quiz struct {
		ID           string    `json:"id" db:"id"`
		LessonID     string    `json:"lesson_id" db:"lesson_id"`
		CourseID     string    `json:"course_id" db:"course_id"`
		CourseTitle  string    `json:"course_title" db:"course_title"`
		Title        string    `json:"title" db:"title"`
		TimeLimit    null.Int  `json:"time_limit" db:"time_limit"`
		MaxAttempts  int       `json:"max_attempts" db:"max_attempts"`
		PassingScore int       `json:"passing_score" db:"passing_score"`
		Questions    int       `json:"questions" db:"questions"`
		CreatedAt    time.Time `json:"created_at" db:"created_at"`
	}

	Discussion struct {
		ID          string    `json:"id" db:"id"`
		CourseID    string    `json:"course_id" db:"course_id"`
		CourseTitle string    `json:"course_title" db:"course_title"`
		AuthorID    string    `json:"author_id" db:"author_id"`
		Title       string    `json:"title" db:"title"`
		Content     string    `json:"content" db:"content"`
		IsPinned    bool      `json:"is_pinned" db:"is_pinned"`
		Replies     int       `json:"replies" db:"replies"`
		CreatedAt   time.Time `json:"created_at" db:"created_at"`
	}

	NewDiscussion struct {
		CourseID string `json:"course_id" validate:"required,uuid"`
		Title    string `json:"title" validate:"required,min=3,max=200"`
		Content  string `json:"content" validate:"required,min=3"`
	}

	// Repository scopes every row by its course: SchoolID and TeacherID match the course,
	// StudentID requires an enrollment in it.
	Repository interface {
		CreateModule(ctx context.Context, m Module) (Module, error)
		CreateLesson(ctx context.Context, l Lesson) (Lesson, error)
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		CreateSubmission(ctx context.Context, s Submission) (Submission, error)
		CreateQuiz(ctx context.Context, q Quiz) (Quiz, error)
		CreateDiscussion(ctx context.Context, d Discussion) (Discussion, error)

		QueryLessons(ctx context.Context, scope access.Scope) ([]Lesson, error)
		QueryAssignments(ctx context.Context, scope access.Scope) ([]Assignment, error)
		QueryQuizzes(ctx context.Context, scope access.Scope) ([]Quiz, error)
		QueryDiscussions(ctx context.Context, scope access.Scope) ([]Discussion, error)

		// CountPendingSubmissions counts ungraded submissions; with StudentID, the student's
		// assignments that have no submission yet.
		CountPendingSubmissions(ctx context.Context, scope access.Scope) (int, error)
		CountDiscussions(ctx context.Context, scope access.Scope) (int, error)
	}

	// CourseFinder checks that a course is visible in a scope.
	CourseFinder interface {
		Exists(ctx context.Context, id string, scope access.Scope) (bool, error)
	}

	Service struct {
		repo    Repository
		courses CourseFinder
	}
)

func NewService(repo Repository, courses CourseFinder) *Service {
	return &Service{repo: repo, courses: courses}
}

func (nd *NewDiscussion) Validate(validate *validator.Validate) error {
	nd.CourseID = core.CleanString(nd.CourseID)
	nd.Title = core.CleanString(nd.Title)
	nd.Content = core.CleanString(nd.Content)
	return validate.Struct(nd)
}

func (svc *Service) Lessons(ctx context.Context, scope access.Scope) ([]Lesson, error) {
	if scope.Deny {
		return []Lesson{}, nil
	}
	return svc.repo.QueryLessons(ctx, scope)
}

func (svc *Service) Assignments(ctx context.Context, scope access.Scope) ([]Assignment, error) {
	if scope.Deny {
		return []Assignment{}, nil
	}
	return svc.repo.QueryAssignments(ctx, scope)
}

func (svc *Service) Quizzes(ctx context.Context, scope access.Scope) ([]Quiz, error) {
	if scope.Deny {
		return []Quiz{}, nil
	}
	return svc.repo.QueryQuizzes(ctx, scope)
}

func (svc *Service) Discussions(ctx context.Context, scope access.Scope) ([]Discussion, error) {
	if scope.Deny {
		return []Discussion{}, nil
	}
	return svc.repo.QueryDiscussions(ctx, scope)
}

func (svc *Service) PendingSubmissions(ctx context.Context, scope access.Scope) (int, error) {
	if scope.Deny {
		return 0, nil
	}
	return svc.repo.CountPendingSubmissions(ctx, scope)
}

func (svc *Service) CountDiscussions(ctx context.Context, scope access.Scope) (int, error) {
	if scope.Deny {
		return 0, nil
	}
	return svc.repo.CountDiscussions(ctx, scope)
}

// StartDiscussion opens a thread in a course visible in scope.
func (svc *Service) StartDiscussion(ctx context.Context, author access.Principal, scope access.Scope, nd NewDiscussion) (Discussion, error) {
	if scope.Deny {
		return Discussion{}, core.NewNotFoundError("course")
	}
	ok, err := svc.courses.Exists(ctx, nd.CourseID, scope)
	if err != nil {
		return Discussion{}, err
	}
	if !ok {
		return Discussion{}, core.NewNotFoundError("course")
	}
	return svc.repo.CreateDiscussion(ctx, Discussion{
		ID:        uuid.NewString(),
		CourseID:  nd.CourseID,
		AuthorID:  author.ID,
		Title:     nd.Title,
		Content:   nd.Content,
		CreatedAt: time.Now().UTC(),
	})
}
