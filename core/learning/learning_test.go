package learning_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/access"
	"github.com/fatsal/lms/core/learning"
	"github.com/fatsal/lms/testutil"
)

type fixture struct {
	env              *testutil.Env
	teacher, other   access.Principal
	student, outside access.Principal
	fiqihID, nahwuID string
}

func newFixture(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	s1 := env.CreateSchool(t, "MA Fathus Salafi")
	s2 := env.CreateSchool(t, "MTs Fathus Salafi")
	teacher := env.CreateProfile(t, "Ahmad Fauzi", "198705122010011001", access.RoleTeacher, s1.ID, true)
	other := env.CreateProfile(t, "Nur Hidayah", "198811112011012003", access.RoleTeacher, s2.ID, true)
	student := env.CreateProfile(t, "Rizki Pratama", "0051234567", access.RoleStudent, s1.ID, true)
	outside := env.CreateProfile(t, "Dina Safitri", "0057654321", access.RoleStudent, s1.ID, true)

	fiqih := env.CreateCourse(t, s1.ID, teacher.ID, "Fiqih", true)
	nahwu := env.CreateCourse(t, s2.ID, other.ID, "Nahwu", true)
	env.Enroll(t, fiqih.ID, student.ID, 20)

	l1 := env.CreateLesson(t, fiqih.ID, "Thaharah")
	l2 := env.CreateLesson(t, nahwu.ID, "Kalam")
	a1 := env.CreateAssignment(t, l1.ID, "Rangkuman Thaharah")
	env.CreateAssignment(t, l1.ID, "Praktik Wudhu")
	a3 := env.CreateAssignment(t, l2.ID, "I'rab")
	env.Submit(t, a1.ID, student.ID)
	env.Submit(t, a3.ID, other.ID)
	env.CreateDiscussion(t, fiqih.ID, teacher.ID, "Najis")
	env.CreateDiscussion(t, nahwu.ID, other.ID, "Isim")

	return fixture{
		env:     env,
		teacher: teacher.Principal(),
		other:   other.Principal(),
		student: student.Principal(),
		outside: outside.Principal(),
		fiqihID: fiqih.ID,
		nahwuID: nahwu.ID,
	}
}

func scopeOf(p access.Principal) access.Scope {
	return access.ScopeFilter(p, access.Scope{})
}

func TestService_Lists(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name                              string
		scope                             access.Scope
		lessons, assignments, discussions int
	}{
		{name: "admin", scope: scopeOf(access.Principal{Role: access.RoleAdmin}), lessons: 2, assignments: 3, discussions: 2},
		{name: "teacher", scope: scopeOf(fx.teacher), lessons: 1, assignments: 2, discussions: 1},
		{name: "enrolled student", scope: scopeOf(fx.student), lessons: 1, assignments: 2, discussions: 1},
		{name: "student without enrollments", scope: scopeOf(fx.outside)},
		{name: "denied", scope: access.Scope{Deny: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lessons, err := fx.env.LearnSv.Lessons(ctx, tt.scope)
			require.NoError(t, err)
			assert.Len(t, lessons, tt.lessons)

			assignments, err := fx.env.LearnSv.Assignments(ctx, tt.scope)
			require.NoError(t, err)
			assert.Len(t, assignments, tt.assignments)

			discussions, err := fx.env.LearnSv.Discussions(ctx, tt.scope)
			require.NoError(t, err)
			assert.Len(t, discussions, tt.discussions)

			n, err := fx.env.LearnSv.CountDiscussions(ctx, tt.scope)
			require.NoError(t, err)
			assert.Equal(t, tt.discussions, n)
		})
	}

	lessons, err := fx.env.LearnSv.Lessons(ctx, scopeOf(fx.student))
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, "Fiqih", lessons[0].CourseTitle)
	assert.Equal(t, fx.fiqihID, lessons[0].CourseID)
}

func TestService_PendingSubmissions(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	// ungraded submissions of the teacher's courses
	n, err := fx.env.LearnSv.PendingSubmissions(ctx, scopeOf(fx.teacher))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// assignments the student has not submitted yet
	n, err = fx.env.LearnSv.PendingSubmissions(ctx, scopeOf(fx.student))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = fx.env.LearnSv.PendingSubmissions(ctx, access.Scope{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestService_StartDiscussion(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	nd := learning.NewDiscussion{CourseID: " " + fx.fiqihID + " ", Title: " Hadas kecil ", Content: "Apa saja yang membatalkan wudhu?"}
	require.NoError(t, nd.Validate(fx.env.Validate))
	assert.Equal(t, fx.fiqihID, nd.CourseID)

	d, err := fx.env.LearnSv.StartDiscussion(ctx, fx.student, scopeOf(fx.student), nd)
	require.NoError(t, err)
	assert.Equal(t, fx.student.ID, d.AuthorID)
	assert.Equal(t, "Hadas kecil", d.Title)

	nd.CourseID = fx.nahwuID
	_, err = fx.env.LearnSv.StartDiscussion(ctx, fx.student, scopeOf(fx.student), nd)
	assert.True(t, core.IsNotFound(err))

	_, err = fx.env.LearnSv.StartDiscussion(ctx, fx.outside, scopeOf(fx.outside), learning.NewDiscussion{CourseID: fx.fiqihID, Title: "Najis", Content: "Pertanyaan"})
	assert.True(t, core.IsNotFound(err))

	_, err = fx.env.LearnSv.StartDiscussion(ctx, fx.student, access.Scope{Deny: true}, nd)
	assert.True(t, core.IsNotFound(err))

	bad := learning.NewDiscussion{CourseID: "not-a-uuid", Title: "Najis", Content: "Pertanyaan"}
	assert.Error(t, bad.Validate(fx.env.Validate))
}
