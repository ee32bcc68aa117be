package course_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/access"
	"github.com/fatsal/lms/core/course"
	"github.com/fatsal/lms/testutil"
)

func TestNewCourse_Validate(t *testing.T) {
	validate, _ := core.NewValidator()
	schoolID, teacherID := uuid.NewString(), uuid.NewString()

	tests := []struct {
		name          string
		by            access.Principal
		nc            course.NewCourse
		wantErr       bool
		wantTeacherID string
		wantSchoolID  string
	}{
		{
			name:          "teacher owns the course",
			by:            access.Principal{ID: teacherID, Role: access.RoleTeacher, SchoolID: schoolID},
			nc:            course.NewCourse{Title: " Fiqih Kelas X ", TeacherID: uuid.NewString(), SchoolID: uuid.NewString()},
			wantTeacherID: teacherID,
			wantSchoolID:  schoolID,
		},
		{
			name:          "principal is bound to the school",
			by:            access.Principal{ID: uuid.NewString(), Role: access.RolePrincipal, SchoolID: schoolID},
			nc:            course.NewCourse{Title: "Fiqih Kelas X", TeacherID: teacherID, SchoolID: uuid.NewString()},
			wantTeacherID: teacherID,
			wantSchoolID:  schoolID,
		},
		{
			name:    "staff must name the teacher",
			by:      access.Principal{ID: uuid.NewString(), Role: access.RoleStaff, SchoolID: schoolID},
			nc:      course.NewCourse{Title: "Fiqih Kelas X"},
			wantErr: true,
		},
		{
			name:    "admin must name the school",
			by:      access.Principal{ID: uuid.NewString(), Role: access.RoleAdmin},
			nc:      course.NewCourse{Title: "Fiqih Kelas X", TeacherID: teacherID},
			wantErr: true,
		},
		{
			name:          "admin picks the school",
			by:            access.Principal{ID: uuid.NewString(), Role: access.RoleAdmin},
			nc:            course.NewCourse{Title: "Fiqih Kelas X", TeacherID: teacherID, SchoolID: schoolID},
			wantTeacherID: teacherID,
			wantSchoolID:  schoolID,
		},
		{
			name:    "title too short",
			by:      access.Principal{ID: teacherID, Role: access.RoleTeacher, SchoolID: schoolID},
			nc:      course.NewCourse{Title: "IP"},
			wantErr: true,
		},
		{
			name:    "bad thumbnail",
			by:      access.Principal{ID: teacherID, Role: access.RoleTeacher, SchoolID: schoolID},
			nc:      course.NewCourse{Title: "Fiqih Kelas X", ThumbnailURL: "not a url"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nc := tt.nc
			err := nc.Validate(validate, tt.by)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Fiqih Kelas X", nc.Title)
			assert.Equal(t, tt.wantTeacherID, nc.TeacherID)
			assert.Equal(t, tt.wantSchoolID, nc.SchoolID)
		})
	}
}

func TestService_QueryScope(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	s1 := env.CreateSchool(t, "MA Fathus Salafi")
	s2 := env.CreateSchool(t, "MTs Fathus Salafi")
	t1 := env.CreateProfile(t, "Ahmad Fauzi", "198705122010011001", access.RoleTeacher, s1.ID, true)
	t2 := env.CreateProfile(t, "Nur Hidayah", "198811112011012003", access.RoleTeacher, s2.ID, true)
	student := env.CreateProfile(t, "Rizki Pratama", "0051234567", access.RoleStudent, s1.ID, true)

	fiqih := env.CreateCourse(t, s1.ID, t1.ID, "Fiqih", true)
	env.CreateCourse(t, s1.ID, t1.ID, "Tafsir", false)
	env.CreateCourse(t, s2.ID, t2.ID, "Nahwu", true)
	env.Enroll(t, fiqih.ID, student.ID, 40)

	tests := []struct {
		name string
		p    access.Principal
		want []string
	}{
		{name: "admin sees all", p: access.Principal{Role: access.RoleAdmin}, want: []string{"Fiqih", "Nahwu", "Tafsir"}},
		{name: "staff sees its school", p: access.Principal{Role: access.RoleStaff, SchoolID: s1.ID}, want: []string{"Fiqih", "Tafsir"}},
		{name: "teacher sees own courses", p: t2.Principal(), want: []string{"Nahwu"}},
		{name: "student sees enrolled courses", p: student.Principal(), want: []string{"Fiqih"}},
		{name: "unknown role sees nothing", p: access.Principal{Role: "janitor", SchoolID: s1.ID}},
		{name: "staff without school sees nothing", p: access.Principal{Role: access.RoleStaff}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := course.QueryFilter{Scope: access.ScopeFilter(tt.p, access.Scope{})}
			courses, err := env.CourseSv.Query(ctx, filter, []core.DBOrdering{{Field: "title", Ascending: true}})
			require.NoError(t, err)
			titles := make([]string, 0, len(courses))
			for _, c := range courses {
				titles = append(titles, c.Title)
			}
			assert.ElementsMatch(t, tt.want, titles)

			n, err := env.CourseSv.Count(ctx, filter)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), n)
		})
	}

	t.Run("scoped lookup", func(t *testing.T) {
		_, err := env.CourseSv.GetByID(ctx, fiqih.ID, access.ScopeFilter(t2.Principal(), access.Scope{}))
		assert.True(t, core.IsNotFound(err))

		ok, err := env.CourseSv.Exists(ctx, fiqih.ID, access.ScopeFilter(student.Principal(), access.Scope{}))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("search", func(t *testing.T) {
		courses, err := env.CourseSv.Query(ctx, course.QueryFilter{Search: " nah "}, nil)
		require.NoError(t, err)
		require.Len(t, courses, 1)
		assert.Equal(t, "Nahwu", courses[0].Title)
	})

	t.Run("counts by teacher", func(t *testing.T) {
		counts, err := env.CourseSv.CountByTeacher(ctx, access.Scope{SchoolID: s1.ID})
		require.NoError(t, err)
		assert.Equal(t, map[string]int{t1.ID: 2}, counts)
	})
}

func TestService_Enroll(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	s1 := env.CreateSchool(t, "MA Fathus Salafi")
	s2 := env.CreateSchool(t, "MTs Fathus Salafi")
	teacher := env.CreateProfile(t, "Ahmad Fauzi", "198705122010011001", access.RoleTeacher, s1.ID, true)
	student := env.CreateProfile(t, "Rizki Pratama", "0051234567", access.RoleStudent, s1.ID, true)

	published := env.CreateCourse(t, s1.ID, teacher.ID, "Fiqih", true)
	draft := env.CreateCourse(t, s1.ID, teacher.ID, "Tafsir", false)
	other := env.CreateCourse(t, s2.ID, teacher.ID, "Nahwu", true)

	_, err := env.CourseSv.Enroll(ctx, teacher.Principal(), published.ID)
	assert.True(t, core.IsNotFound(err), "teachers do not enroll")
	_, err = env.CourseSv.Enroll(ctx, student.Principal(), draft.ID)
	assert.True(t, core.IsNotFound(err), "drafts are hidden")
	_, err = env.CourseSv.Enroll(ctx, student.Principal(), other.ID)
	assert.True(t, core.IsNotFound(err), "other schools are hidden")

	e, err := env.CourseSv.Enroll(ctx, student.Principal(), published.ID)
	require.NoError(t, err)
	assert.Equal(t, student.ID, e.StudentID)
	assert.Zero(t, e.Progress)

	_, err = env.CourseSv.Enroll(ctx, student.Principal(), published.ID)
	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve), "want ValidationError, got %v", err)
	assert.Equal(t, course.ErrAlreadyEnrolled, ve.Err)

	enrollments, err := env.CourseSv.Enrollments(ctx, access.ScopeFilter(student.Principal(), access.Scope{}))
	require.NoError(t, err)
	assert.Len(t, enrollments, 1)
}

func TestService_EnrollmentStats(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	sch := env.CreateSchool(t, "MA Fathus Salafi")
	teacher := env.CreateProfile(t, "Ahmad Fauzi", "198705122010011001", access.RoleTeacher, sch.ID, true)
	s1 := env.CreateProfile(t, "Rizki Pratama", "0051234567", access.RoleStudent, sch.ID, true)
	s2 := env.CreateProfile(t, "Dina Safitri", "0057654321", access.RoleStudent, sch.ID, true)

	fiqih := env.CreateCourse(t, sch.ID, teacher.ID, "Fiqih", true)
	tafsir := env.CreateCourse(t, sch.ID, teacher.ID, "Tafsir", true)
	env.Enroll(t, fiqih.ID, s1.ID, 100)
	env.Enroll(t, tafsir.ID, s1.ID, 50)
	env.Enroll(t, fiqih.ID, s2.ID, 30)

	stats, err := env.CourseSv.EnrollmentStats(ctx, access.ScopeFilter(teacher.Principal(), access.Scope{}))
	require.NoError(t, err)
	assert.Equal(t, course.EnrollmentStats{Students: 2, Enrollments: 3, Completed: 1, AverageProgress: 60}, stats)

	stats, err = env.CourseSv.EnrollmentStats(ctx, access.ScopeFilter(s1.Principal(), access.Scope{}))
	require.NoError(t, err)
	assert.Equal(t, course.EnrollmentStats{Students: 1, Enrollments: 2, Completed: 1, AverageProgress: 75}, stats)

	stats, err = env.CourseSv.EnrollmentStats(ctx, access.Scope{Deny: true})
	require.NoError(t, err)
	assert.Zero(t, stats)
}
