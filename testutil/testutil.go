// Package testutil wires the core services on the in-memory storage for tests.
package testutil

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	ut "github.com/go-playground/universal-translator"
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/access"
	"github.com/fatsal/lms/core/auth"
	"github.com/fatsal/lms/core/course"
	"github.com/fatsal/lms/core/learning"
	"github.com/fatsal/lms/core/profile"
	"github.com/fatsal/lms/core/report"
	"github.com/fatsal/lms/core/school"
	appfs "github.com/fatsal/lms/fs"
	"github.com/fatsal/lms/services/email"
	"github.com/fatsal/lms/services/events"
	"github.com/fatsal/lms/services/logger"
	"github.com/fatsal/lms/storage/cache/inmem"
	"github.com/fatsal/lms/storage/database/inmem"
)

// Password of every profile created by CreateProfile.
const Password = "Kur1kulum-Merdeka!"

type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator

	DB       *inmemdb.DB
	Sessions auth.SessionRepository
	Courses  course.Repository
	Learning learning.Repository

	Backend   auth.Backend
	State     auth.StateStore
	Bus       *events.Bus
	Mailer    *emailsvc.ConsoleServiceMock
	Provider  *auth.Provider
	ProfileSv profile.ServiceInterface
	SchoolSv  *school.Service
	CourseSv  *course.Service
	LearnSv   *learning.Service
	ReportSv  *report.Service
}

// NewEnv builds a fresh environment. Its auth subscription is released when the test ends.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	conf := core.NewTestConfig()
	lgr := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	lgr.Enable(false)

	validate, translator := core.NewValidator()
	profile.InitValidators(validate, translator)
	if err := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, false); err != nil {
		t.Fatalf("ParseEmailTemplates() failed: %v", err)
	}

	db := inmemdb.Open()
	env := &Env{
		Conf:       conf,
		Logger:     lgr,
		Validate:   validate,
		Translator: translator,
		DB:         db,
		Sessions:   inmemdb.NewSessionRepository(db),
		Courses:    inmemdb.NewCourseRepository(db),
		Learning:   inmemdb.NewLearningRepository(db),
		State:      inmemcache.NewStateStore(),
		Mailer:     emailsvc.NewConsoleServiceMock(conf, lgr),
	}

	bus, err := events.NewBus(conf, lgr)
	if err != nil {
		t.Fatalf("NewBus() failed: %v", err)
	}
	env.Bus = bus

	env.Backend = auth.NewLocalBackend(conf, inmemdb.NewCredentialRepository(db), env.Sessions)
	env.ProfileSv = profile.NewService(inmemdb.NewProfileRepository(db))
	env.SchoolSv = school.NewService(inmemdb.NewSchoolRepository(db))
	env.CourseSv = course.NewService(env.Courses)
	env.LearnSv = learning.NewService(env.Learning, env.CourseSv)
	env.ReportSv = report.NewService(env.ProfileSv, env.SchoolSv, env.CourseSv, env.LearnSv)
	env.Provider = auth.NewProvider(auth.ProviderOptions{
		Conf:     conf,
		Logger:   lgr,
		Backend:  env.Backend,
		Profiles: env.ProfileSv,
		State:    env.State,
		Bus:      bus,
		Mailer:   env.Mailer,
	})

	t.Cleanup(func() {
		_ = env.Provider.Close()
		_ = env.Bus.Close()
	})
	return env
}

func (env *Env) CreateSchool(t *testing.T, name string) school.School {
	t.Helper()
	s, err := env.SchoolSv.Create(context.Background(), school.NewSchool{Name: name, Level: "MA"})
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	return s
}

// CreateProfile signs up a profile holding Password. Its email is derived from identityNumber.
func (env *Env) CreateProfile(t *testing.T, name, identityNumber string, role access.Role, schoolID string, isActive bool) profile.Profile {
	t.Helper()
	ctx := context.Background()

	prof, err := env.Provider.SignUp(ctx, profile.NewProfile{
		FullName:        name,
		Email:           strings.ToLower(identityNumber) + "@lms.test",
		IdentityNumber:  identityNumber,
		Role:            role,
		SchoolID:        schoolID,
		Password:        Password,
		PasswordConfirm: Password,
	})
	if err != nil {
		t.Fatalf("CreateProfile() failed: %v", err)
	}
	if !isActive {
		inactive := false
		if prof, err = env.ProfileSv.Update(ctx, prof, profile.UpdateProfile{FullName: prof.FullName, IsActive: &inactive}); err != nil {
			t.Fatalf("CreateProfile() failed: %v", err)
		}
	}
	return prof
}

func (env *Env) CreateCourse(t *testing.T, schoolID, teacherID, title string, published bool) course.Course {
	t.Helper()
	c, err := env.CourseSv.Create(context.Background(), course.NewCourse{
		Title:       title,
		SchoolID:    schoolID,
		TeacherID:   teacherID,
		IsPublished: published,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return c
}

// Enroll stores an enrollment with the given progress; 100 marks it completed.
func (env *Env) Enroll(t *testing.T, courseID, studentID string, progress int) course.Enrollment {
	t.Helper()
	e := course.Enrollment{
		ID:         uuid.NewString(),
		CourseID:   courseID,
		StudentID:  studentID,
		Progress:   progress,
		EnrolledAt: time.Now().UTC(),
	}
	if progress >= 100 {
		e.CompletedAt = null.TimeFrom(e.EnrolledAt)
	}
	e, err := env.Courses.CreateEnrollment(context.Background(), e)
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	return e
}

// CreateLesson adds a module holding one lesson to the course.
func (env *Env) CreateLesson(t *testing.T, courseID, title string) learning.Lesson {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	m, err := env.Learning.CreateModule(ctx, learning.Module{ID: uuid.NewString(), CourseID: courseID, Title: "Modul " + title, Order: 1, CreatedAt: now})
	if err != nil {
		t.Fatalf("CreateLesson() failed: %v", err)
	}
	l, err := env.Learning.CreateLesson(ctx, learning.Lesson{ID: uuid.NewString(), ModuleID: m.ID, Title: title, Type: "text", Order: 1, CreatedAt: now})
	if err != nil {
		t.Fatalf("CreateLesson() failed: %v", err)
	}
	return l
}

func (env *Env) CreateAssignment(t *testing.T, lessonID, title string) learning.Assignment {
	t.Helper()
	now := time.Now().UTC()
	a, err := env.Learning.CreateAssignment(context.Background(), learning.Assignment{
		ID:        uuid.NewString(),
		LessonID:  lessonID,
		Title:     title,
		DueDate:   now.Add(7 * 24 * time.Hour),
		MaxScore:  100,
		CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return a
}

// Submit stores an ungraded submission.
func (env *Env) Submit(t *testing.T, assignmentID, studentID string) learning.Submission {
	t.Helper()
	s, err := env.Learning.CreateSubmission(context.Background(), learning.Submission{
		ID:           uuid.NewString(),
		AssignmentID: assignmentID,
		StudentID:    studentID,
		SubmittedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	return s
}

func (env *Env) CreateDiscussion(t *testing.T, courseID, authorID, title string) learning.Discussion {
	t.Helper()
	d, err := env.Learning.CreateDiscussion(context.Background(), learning.Discussion{
		ID:        uuid.NewString(),
		CourseID:  courseID,
		AuthorID:  authorID,
		Title:     title,
		Content:   "Isi diskusi " + title,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateDiscussion() failed: %v", err)
	}
	return d
}

// SignIn signs prof in with Password and returns the access token.
func (env *Env) SignIn(t *testing.T, prof profile.Profile) auth.Session {
	t.Helper()
	sess, _, err := env.Provider.SignIn(context.Background(), prof.IdentityNumber, Password)
	if err != nil {
		t.Fatalf("SignIn() failed: %v", err)
	}
	return sess
}
