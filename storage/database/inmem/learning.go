package inmemdb

import (
	"context"
	"sort"

	"github.com/fatsal/lms/core/access"
	"github.com/fatsal/lms/core/learning"
)

type learningRepository struct {
	db *DB
}

var _ learning.Repository = (*learningRepository)(nil) // interface compliance check

func NewLearningRepository(db *DB) *learningRepository {
	return &learningRepository{db: db}
}

func (repo *learningRepository) CreateModule(_ context.Context, m learning.Module) (learning.Module, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.modules[m.ID] = &m
	return m, nil
}

func (repo *learningRepository) CreateLesson(_ context.Context, l learning.Lesson) (learning.Lesson, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.lessons[l.ID] = &l
	return l, nil
}

func (repo *learningRepository) CreateAssignment(_ context.Context, a learning.Assignment) (learning.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.assignments[a.ID] = &a
	return a, nil
}

func (repo *learningRepository) CreateSubmission(_ context.Context, s learning.Submission) (learning.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.submissions[s.ID] = &s
	return s, nil
}

func (repo *learningRepository) CreateQuiz(_ context.Context, q learning.Quiz) (learning.Quiz, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.quizzes[q.ID] = &q
	return q, nil
}

func (repo *learningRepository) CreateDiscussion(_ context.Context, d learning.Discussion) (learning.Discussion, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.discussions[d.ID] = &d
	return d, nil
}

func (repo *learningRepository) QueryLessons(_ context.Context, scope access.Scope) ([]learning.Lesson, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	lessons := make([]learning.Lesson, 0)
	for _, l := range repo.db.lessons {
		c, ok := repo.db.lessonCourse(l.ID)
		if !ok || !repo.db.courseVisible(c.ID, scope) {
			continue
		}
		lesson := *l
		lesson.CourseID, lesson.CourseTitle = c.ID, c.Title
		lessons = append(lessons, lesson)
	}
	sort.Slice(lessons, func(i, j int) bool {
		if lessons[i].CourseTitle != lessons[j].CourseTitle {
			return lessons[i].CourseTitle < lessons[j].CourseTitle
		}
		return lessons[i].Order < lessons[j].Order
	})
	return lessons, nil
}

func (repo *learningRepository) visibleAssignments(scope access.Scope) []learning.Assignment {
	assignments := make([]learning.Assignment, 0)
	for _, a := range repo.db.assignments {
		c, ok := repo.db.lessonCourse(a.LessonID)
		if !ok || !repo.db.courseVisible(c.ID, scope) {
			continue
		}
		assignment := *a
		assignment.CourseID, assignment.CourseTitle = c.ID, c.Title
		assignments = append(assignments, assignment)
	}
	return assignments
}

func (repo *learningRepository) QueryAssignments(_ context.Context, scope access.Scope) ([]learning.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	assignments := repo.visibleAssignments(scope)
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].DueDate.Before(assignments[j].DueDate) })
	return assignments, nil
}

func (repo *learningRepository) QueryQuizzes(_ context.Context, scope access.Scope) ([]learning.Quiz, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	quizzes := make([]learning.Quiz, 0)
	for _, q := range repo.db.quizzes {
		c, ok := repo.db.lessonCourse(q.LessonID)
		if !ok || !repo.db.courseVisible(c.ID, scope) {
			continue
		}
		quiz := *q
		quiz.CourseID, quiz.CourseTitle = c.ID, c.Title
		quizzes = append(quizzes, quiz)
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].CreatedAt.After(quizzes[j].CreatedAt) })
	return quizzes, nil
}

func (repo *learningRepository) visibleDiscussions(scope access.Scope) []learning.Discussion {
	discussions := make([]learning.Discussion, 0)
	for _, d := range repo.db.discussions {
		if !repo.db.courseVisible(d.CourseID, scope) {
			continue
		}
		discussion := *d
		discussion.CourseTitle = repo.db.courses[d.CourseID].Title
		discussions = append(discussions, discussion)
	}
	return discussions
}

func (repo *learningRepository) QueryDiscussions(_ context.Context, scope access.Scope) ([]learning.Discussion, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	discussions := repo.visibleDiscussions(scope)
	sort.Slice(discussions, func(i, j int) bool {
		if discussions[i].IsPinned != discussions[j].IsPinned {
			return discussions[i].IsPinned
		}
		return discussions[i].CreatedAt.After(discussions[j].CreatedAt)
	})
	return discussions, nil
}

func (repo *learningRepository) CountPendingSubmissions(_ context.Context, scope access.Scope) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if scope.StudentID != "" {
		n := 0
		for _, a := range repo.visibleAssignments(scope) {
			if !repo.submitted(a.ID, scope.StudentID) {
				n++
			}
		}
		return n, nil
	}

	n := 0
	for _, s := range repo.db.submissions {
		if s.GradedAt.Valid {
			continue
		}
		a, ok := repo.db.assignments[s.AssignmentID]
		if !ok {
			continue
		}
		if c, ok := repo.db.lessonCourse(a.LessonID); ok && repo.db.courseVisible(c.ID, scope) {
			n++
		}
	}
	return n, nil
}

func (repo *learningRepository) submitted(assignmentID, studentID string) bool {
	for _, s := range repo.db.submissions {
		if s.AssignmentID == assignmentID && s.StudentID == studentID {
			return true
		}
	}
	return false
}

func (repo *learningRepository) CountDiscussions(_ context.Context, scope access.Scope) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.visibleDiscussions(scope)), nil
}
