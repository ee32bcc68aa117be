package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/fatsal/lms/core"
	"github.com/fatsal/lms/core/access"
	"github.com/fatsal/lms/core/learning"
)

type learningRepository struct {
	exec core.DBExecutor
}

var _ learning.Repository = (*learningRepository)(nil) // interface compliance check

func NewLearningRepository(exec core.DBExecutor) *learningRepository {
	return &learningRepository{exec: exec}
}

func (repo learningRepository) insert(ctx context.Context, q string, arg interface{}, what string) error {
	_, err := repo.exec.NamedExecContext(ctx, q, arg)
	return errors.Wrap(err, "inserting "+what)
}

func (repo learningRepository) CreateModule(ctx context.Context, m learning.Module) (learning.Module, error) {
	return m, repo.insert(ctx, `INSERT INTO modules (id, course_id, title, description, "order", created_at)
		VALUES (:id, :course_id, :title, :description, :order, :created_at)`, m, "module")
}

func (repo learningRepository) CreateLesson(ctx context.Context, l learning.Lesson) (learning.Lesson, error) {
	return l, repo.insert(ctx, `INSERT INTO lessons (id, module_id, title, type, video_url, duration, "order", is_preview, created_at)
		VALUES (:id, :module_id, :title, :type, :video_url, :duration, :order, :is_preview, :created_at)`, l, "lesson")
}

func (repo learningRepository) CreateAssignment(ctx context.Context, a learning.Assignment) (learning.Assignment, error) {
	return a, repo.insert(ctx, `INSERT INTO assignments (id, lesson_id, title, description, due_date, max_score, allow_late_submission, created_at)
		VALUES (:id, :lesson_id, :title, :description, :due_date, :max_score, :allow_late_submission, :created_at)`, a, "assignment")
}

func (repo learningRepository) CreateSubmission(ctx context.Context, s learning.Submission) (learning.Submission, error) {
	return s, repo.insert(ctx, `INSERT INTO assignment_submissions (id, assignment_id, student_id, score, feedback, submitted_at, graded_at)
		VALUES (:id, :assignment_id, :student_id, :score, :feedback, :submitted_at, :graded_at)`, s, "submission")
}

func (repo learningRepository) CreateQuiz(ctx context.Context, q learning.Quiz) (learning.Quiz, error) {
	return q, repo.insert(ctx, `INSERT INTO quizzes (id, lesson_id, title, time_limit, max_attempts, passing_score, created_at)
		VALUES (:id, :lesson_id, :title, :time_limit, :max_attempts, :passing_score, :created_at)`, q, "quiz")
}

func (repo learningRepository) CreateDiscussion(ctx context.Context, d learning.Discussion) (learning.Discussion, error) {
	return d, repo.insert(ctx, `INSERT INTO discussions (id, course_id, author_id, title, content, is_pinned, created_at)
		VALUES (:id, :course_id, :author_id, :title, :content, :is_pinned, :created_at)`, d, "discussion")
}

func (repo learningRepository) selectScoped(ctx context.Context, dest interface{}, q, tail string, scope access.Scope, what string) error {
	var c conds
	c.courseScope(scope, "c", "")
	err := repo.exec.SelectContext(ctx, dest, repo.exec.Rebind(q+c.where()+tail), c.args...)
	return errors.Wrap(err, "querying "+what)
}

func (repo learningRepository) QueryLessons(ctx context.Context, scope access.Scope) ([]learning.Lesson, error) {
	lessons := make([]learning.Lesson, 0)
	err := repo.selectScoped(ctx, &lessons, `SELECT l.id, l.module_id, m.course_id, c.title AS course_title, l.title, l.type,
		l.duration, l."order", l.is_preview, l.video_url, l.created_at
		FROM lessons l JOIN modules m ON m.id = l.module_id JOIN courses c ON c.id = m.course_id`,
		` ORDER BY c.title, m."order", l."order"`, scope, "lessons")
	return lessons, err
}

func (repo learningRepository) QueryAssignments(ctx context.Context, scope access.Scope) ([]learning.Assignment, error) {
	assignments := make([]learning.Assignment, 0)
	err := repo.selectScoped(ctx, &assignments, `SELECT a.id, a.lesson_id, m.course_id, c.title AS course_title, a.title,
		a.description, a.due_date, a.max_score, a.allow_late_submission, a.created_at
		FROM assignments a JOIN lessons l ON l.id = a.lesson_id JOIN modules m ON m.id = l.module_id
		JOIN courses c ON c.id = m.course_id`,
		` ORDER BY a.due_date ASC`, scope, "assignments")
	return assignments, err
}

func (repo learningRepository) QueryQuizzes(ctx context.Context, scope access.Scope) ([]learning.Quiz, error) {
	quizzes := make([]learning.Quiz, 0)
	err := repo.selectScoped(ctx, &quizzes, `SELECT q.id, q.lesson_id, m.course_id, c.title AS course_title, q.title,
		q.time_limit, q.max_attempts, q.passing_score, q.created_at,
		(SELECT COUNT(*) FROM quiz_questions qq WHERE qq.quiz_id = q.id) AS questions
		FROM quizzes q JOIN lessons l ON l.id = q.lesson_id JOIN modules m ON m.id = l.module_id
		JOIN courses c ON c.id = m.course_id`,
		` ORDER BY q.created_at DESC`, scope, "quizzes")
	return quizzes, err
}

func (repo learningRepository) QueryDiscussions(ctx context.Context, scope access.Scope) ([]learning.Discussion, error) {
	discussions := make([]learning.Discussion, 0)
	err := repo.selectScoped(ctx, &discussions, `SELECT d.id, d.course_id, c.title AS course_title, d.author_id, d.title,
		d.content, d.is_pinned, d.created_at,
		(SELECT COUNT(*) FROM discussion_replies r WHERE r.discussion_id = d.id) AS replies
		FROM discussions d JOIN courses c ON c.id = d.course_id`,
		` ORDER BY d.is_pinned DESC, d.created_at DESC`, scope, "discussions")
	return discussions, err
}

func (repo learningRepository) CountPendingSubmissions(ctx context.Context, scope access.Scope) (int, error) {
	var c conds
	c.courseScope(scope, "c", "")

	q := `SELECT COUNT(*) FROM assignment_submissions s JOIN assignments a ON a.id = s.assignment_id
		JOIN lessons l ON l.id = a.lesson_id JOIN modules m ON m.id = l.module_id JOIN courses c ON c.id = m.course_id`
	if scope.StudentID != "" {
		// the student's assignments still waiting for a submission
		q = `SELECT COUNT(*) FROM assignments a JOIN lessons l ON l.id = a.lesson_id
			JOIN modules m ON m.id = l.module_id JOIN courses c ON c.id = m.course_id`
		c.add("NOT EXISTS (SELECT 1 FROM assignment_submissions s WHERE s.assignment_id = a.id AND s.student_id = ?)", scope.StudentID)
	} else {
		c.add("s.graded_at IS NULL")
	}

	var n int
	if err := repo.exec.GetContext(ctx, &n, repo.exec.Rebind(q+c.where()), c.args...); err != nil {
		return 0, errors.Wrap(err, "counting pending submissions")
	}
	return n, nil
}

func (repo learningRepository) CountDiscussions(ctx context.Context, scope access.Scope) (int, error) {
	var c conds
	c.courseScope(scope, "c", "")

	var n int
	q := repo.exec.Rebind(`SELECT COUNT(*) FROM discussions d JOIN courses c ON c.id = d.course_id` + c.where())
	if err := repo.exec.GetContext(ctx, &n, q, c.args...); err != nil {
		return 0, errors.Wrap(err, "counting discussions")
	}
	return n, nil
}
