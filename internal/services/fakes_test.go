package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ccpq/academy-service/internal/contentgen"
	"github.com/ccpq/academy-service/internal/models"
	"github.com/ccpq/academy-service/internal/notify"
	"github.com/ccpq/academy-service/internal/paypal"
	"github.com/ccpq/academy-service/internal/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, gorm.ErrRecordNotFound)
}

// fakeRepo is an in-memory Repository. The unique (user, course) rule of the
// enrollment ledger is enforced the same way the database index does.
type fakeRepo struct {
	mu sync.Mutex

	courses     []*models.Course
	lessons     map[string]*models.Lesson
	quizzes     map[string]*models.Quiz
	enrollments []*models.Enrollment
	progress    map[string]*models.LessonProgress
	attempts    []*models.QuizAttempt
	pending     map[string]*models.PendingOrder
	captures    map[string]*models.PaymentCapture
	tasks       []*models.ReconciliationTask
	users       map[string]*models.User

	// failUpserts makes the next n enrollment upserts return upsertErr
	failUpserts int
	upsertErr   error

	contentUpdates int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		lessons:  map[string]*models.Lesson{},
		quizzes:  map[string]*models.Quiz{},
		progress: map[string]*models.LessonProgress{},
		pending:  map[string]*models.PendingOrder{},
		captures: map[string]*models.PaymentCapture{},
		users:    map[string]*models.User{},
	}
}

func (r *fakeRepo) addCourse(course *models.Course) *models.Course {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	if course.Slug == "" {
		course.Slug = strings.ToLower(strings.ReplaceAll(course.Title, " ", "-"))
	}
	r.courses = append(r.courses, course)
	return course
}

func (r *fakeRepo) addUser(id, name, email string, role models.UserRole) {
	r.users[id] = &models.User{ID: id, FullName: name, Email: email, Role: role}
}

// addLessons creates one module with n lessons for the course
func (r *fakeRepo) addLessons(courseID string, n int) []string {
	module := &models.Module{ID: uuid.NewString(), CourseID: courseID, Title: "Module 1"}
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		lesson := &models.Lesson{ID: uuid.NewString(), ModuleID: module.ID, Title: fmt.Sprintf("Lesson %d", i+1), OrderIndex: i, Module: module}
		r.lessons[lesson.ID] = lesson
		ids = append(ids, lesson.ID)
	}
	return ids
}

func (r *fakeRepo) addQuiz(courseID string, passingScore int, correctAnswers ...int) *models.Quiz {
	module := &models.Module{ID: uuid.NewString(), CourseID: courseID, Title: "Assessment"}
	quiz := &models.Quiz{ID: uuid.NewString(), ModuleID: module.ID, Title: "Final quiz", PassingScore: passingScore, Module: module}
	for i, answer := range correctAnswers {
		quiz.Questions = append(quiz.Questions, models.QuizQuestion{
			ID:            fmt.Sprintf("q%d", i+1),
			QuizID:        quiz.ID,
			Question:      fmt.Sprintf("Question %d", i+1),
			Options:       []byte(`["a","b","c","d"]`),
			CorrectAnswer: answer,
			OrderIndex:    i,
		})
	}
	r.quizzes[quiz.ID] = quiz
	return quiz
}

func (r *fakeRepo) enrollmentCount(userID, courseID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			n++
		}
	}
	return n
}

func (r *fakeRepo) Course() repositories.CourseRepository                 { return &fakeCourses{r} }
func (r *fakeRepo) Enrollment() repositories.EnrollmentRepository         { return &fakeEnrollments{r} }
func (r *fakeRepo) Progress() repositories.ProgressRepository             { return &fakeProgress{r} }
func (r *fakeRepo) Payment() repositories.PaymentRepository               { return &fakePayments{r} }
func (r *fakeRepo) Reconciliation() repositories.ReconciliationRepository { return &fakeTasks{r} }
func (r *fakeRepo) User() repositories.UserRepository                     { return &fakeUsers{r} }
func (r *fakeRepo) Dashboard() repositories.DashboardRepository           { return &fakeDashboard{r} }

func (r *fakeRepo) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(r)
}

func (r *fakeRepo) Ping(ctx context.Context) error { return nil }
func (r *fakeRepo) Close() error                   { return nil }

// ===== COURSES =====

type fakeCourses struct{ r *fakeRepo }

func (f *fakeCourses) find(id string) *models.Course {
	for _, c := range f.r.courses {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (f *fakeCourses) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Course, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if c := f.find(id); c != nil {
		copied := *c
		return &copied, nil
	}
	return nil, notFound("course", id)
}

func (f *fakeCourses) GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*models.Course, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, c := range f.r.courses {
		if c.Slug == slug {
			copied := *c
			return &copied, nil
		}
	}
	return nil, notFound("course", slug)
}

func (f *fakeCourses) GetWithContent(ctx context.Context, tx *gorm.DB, id string) (*models.Course, error) {
	course, err := f.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	modules := map[string]*models.Module{}
	var order []string
	add := func(m *models.Module) *models.Module {
		if existing, ok := modules[m.ID]; ok {
			return existing
		}
		copied := models.Module{ID: m.ID, CourseID: m.CourseID, Title: m.Title, OrderIndex: len(order)}
		modules[m.ID] = &copied
		order = append(order, m.ID)
		return &copied
	}
	for _, l := range f.r.lessons {
		if l.Module != nil && l.Module.CourseID == id {
			m := add(l.Module)
			m.Lessons = append(m.Lessons, *l)
		}
	}
	for _, q := range f.r.quizzes {
		if q.Module != nil && q.Module.CourseID == id {
			m := add(q.Module)
			m.Quizzes = append(m.Quizzes, *q)
		}
	}
	for _, mid := range order {
		m := modules[mid]
		sort.Slice(m.Lessons, func(i, j int) bool { return m.Lessons[i].OrderIndex < m.Lessons[j].OrderIndex })
		course.Modules = append(course.Modules, *m)
	}
	return course, nil
}

func (f *fakeCourses) List(ctx context.Context, tx *gorm.DB, filters repositories.CourseFilters) ([]*models.Course, int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.Course
	for _, c := range f.r.courses {
		if filters.PublishedOnly && !c.IsPublished {
			continue
		}
		if filters.Query != "" && !strings.Contains(strings.ToLower(c.Title), strings.ToLower(filters.Query)) {
			continue
		}
		out = append(out, c)
	}
	total := int64(len(out))
	if filters.Offset >= len(out) {
		return []*models.Course{}, total, nil
	}
	out = out[filters.Offset:]
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, total, nil
}

func (f *fakeCourses) ListCategories(ctx context.Context, tx *gorm.DB) ([]*models.CourseCategory, error) {
	return []*models.CourseCategory{}, nil
}

func (f *fakeCourses) ListNeedingContent(ctx context.Context, tx *gorm.DB, limit int) ([]*models.Course, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.Course
	for _, c := range f.r.courses {
		if c.IsPublished && c.NeedsContent() {
			copied := *c
			out = append(out, &copied)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeCourses) CountNeedingContent(ctx context.Context, tx *gorm.DB) (int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var n int64
	for _, c := range f.r.courses {
		if c.IsPublished && c.NeedsContent() {
			n++
		}
	}
	return n, nil
}

func (f *fakeCourses) UpdateContent(ctx context.Context, tx *gorm.DB, id string, fields map[string]interface{}) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	c := f.find(id)
	if c == nil {
		return notFound("course", id)
	}
	for column, value := range fields {
		text := value.(string)
		switch column {
		case "description":
			c.Description = &text
		case "short_description":
			c.ShortDescription = &text
		case "curriculum":
			c.Curriculum = &text
		case "learning_outcomes":
			c.LearningOutcomes = &text
		case "who_should_take":
			c.WhoShouldTake = &text
		default:
			return fmt.Errorf("unexpected column %s", column)
		}
	}
	f.r.contentUpdates++
	return nil
}

func (f *fakeCourses) GetLesson(ctx context.Context, tx *gorm.DB, lessonID string) (*models.Lesson, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if l, ok := f.r.lessons[lessonID]; ok {
		return l, nil
	}
	return nil, notFound("lesson", lessonID)
}

func (f *fakeCourses) GetQuiz(ctx context.Context, tx *gorm.DB, quizID string) (*models.Quiz, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if q, ok := f.r.quizzes[quizID]; ok {
		return q, nil
	}
	return nil, notFound("quiz", quizID)
}

func (f *fakeCourses) ListLessonIDs(ctx context.Context, tx *gorm.DB, courseID string) ([]string, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var ids []string
	for id, l := range f.r.lessons {
		if l.Module != nil && l.Module.CourseID == courseID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ===== ENROLLMENTS =====

type fakeEnrollments struct{ r *fakeRepo }

func (f *fakeEnrollments) find(userID, courseID string) *models.Enrollment {
	for _, e := range f.r.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			return e
		}
	}
	return nil
}

func (f *fakeEnrollments) insert(e *models.Enrollment) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = time.Now().UTC()
	}
	copied := *e
	f.r.enrollments = append(f.r.enrollments, &copied)
}

func (f *fakeEnrollments) Upsert(ctx context.Context, tx *gorm.DB, e *models.Enrollment) (bool, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if f.r.failUpserts > 0 {
		f.r.failUpserts--
		return false, f.r.upsertErr
	}
	if f.find(e.UserID, e.CourseID) != nil {
		return false, nil
	}
	f.insert(e)
	return true, nil
}

func (f *fakeEnrollments) Create(ctx context.Context, tx *gorm.DB, e *models.Enrollment) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if f.find(e.UserID, e.CourseID) != nil {
		return gorm.ErrDuplicatedKey
	}
	f.insert(e)
	return nil
}

func (f *fakeEnrollments) GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID, courseID string) (*models.Enrollment, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if e := f.find(userID, courseID); e != nil {
		copied := *e
		return &copied, nil
	}
	return nil, notFound("enrollment", userID+"/"+courseID)
}

func (f *fakeEnrollments) Exists(ctx context.Context, tx *gorm.DB, userID, courseID string) (bool, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	return f.find(userID, courseID) != nil, nil
}

func (f *fakeEnrollments) ListByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*models.Enrollment, error) {
	uid := userID
	list, _, err := f.List(ctx, tx, repositories.EnrollmentFilters{UserID: &uid})
	return list, err
}

func (f *fakeEnrollments) List(ctx context.Context, tx *gorm.DB, filters repositories.EnrollmentFilters) ([]*models.Enrollment, int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.Enrollment
	for _, e := range f.r.enrollments {
		if filters.UserID != nil && e.UserID != *filters.UserID {
			continue
		}
		if filters.CourseID != nil && e.CourseID != *filters.CourseID {
			continue
		}
		if filters.Source != nil && e.Source != *filters.Source {
			continue
		}
		copied := *e
		for _, c := range f.r.courses {
			if c.ID == e.CourseID {
				course := *c
				copied.Course = &course
			}
		}
		out = append(out, &copied)
	}
	total := int64(len(out))
	if filters.Offset >= len(out) {
		return []*models.Enrollment{}, total, nil
	}
	out = out[filters.Offset:]
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, total, nil
}

func (f *fakeEnrollments) MarkCompleted(ctx context.Context, tx *gorm.DB, userID, courseID string, at time.Time) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	e := f.find(userID, courseID)
	if e == nil {
		return nil
	}
	if e.CompletedAt == nil {
		e.CompletedAt = &at
	}
	return nil
}

// ===== PROGRESS =====

type fakeProgress struct{ r *fakeRepo }

func (f *fakeProgress) UpsertLessonProgress(ctx context.Context, tx *gorm.DB, p *models.LessonProgress) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	key := p.UserID + "|" + p.LessonID
	if existing, ok := f.r.progress[key]; ok {
		existing.Completed = p.Completed
		existing.CompletedAt = p.CompletedAt
		return nil
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	copied := *p
	f.r.progress[key] = &copied
	return nil
}

func (f *fakeProgress) ListLessonProgress(ctx context.Context, tx *gorm.DB, userID string, lessonIDs []string) ([]*models.LessonProgress, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	out := []*models.LessonProgress{}
	for _, id := range lessonIDs {
		if p, ok := f.r.progress[userID+"|"+id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProgress) CreateQuizAttempt(ctx context.Context, tx *gorm.DB, a *models.QuizAttempt) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	f.r.attempts = append(f.r.attempts, a)
	return nil
}

func (f *fakeProgress) ListQuizAttempts(ctx context.Context, tx *gorm.DB, userID, quizID string) ([]*models.QuizAttempt, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.QuizAttempt
	for _, a := range f.r.attempts {
		if a.UserID == userID && a.QuizID == quizID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeProgress) RecentCompletedLessons(ctx context.Context, tx *gorm.DB, limit int) ([]*models.LessonProgress, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	out := []*models.LessonProgress{}
	for _, p := range f.r.progress {
		if p.Completed && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProgress) RecentQuizAttempts(ctx context.Context, tx *gorm.DB, limit int) ([]*models.QuizAttempt, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	out := []*models.QuizAttempt{}
	for i := len(f.r.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.r.attempts[i])
	}
	return out, nil
}

// ===== PAYMENTS =====

type fakePayments struct{ r *fakeRepo }

func (f *fakePayments) CreatePendingOrder(ctx context.Context, tx *gorm.DB, order *models.PendingOrder) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	copied := *order
	f.r.pending[order.OrderID] = &copied
	return nil
}

func (f *fakePayments) GetPendingOrder(ctx context.Context, tx *gorm.DB, orderID string) (*models.PendingOrder, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if p, ok := f.r.pending[orderID]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, notFound("pending order", orderID)
}

func (f *fakePayments) GetPendingOrderByIdempotencyKey(ctx context.Context, tx *gorm.DB, key string) (*models.PendingOrder, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, p := range f.r.pending {
		if p.IdempotencyKey != nil && *p.IdempotencyKey == key {
			copied := *p
			return &copied, nil
		}
	}
	return nil, notFound("pending order", key)
}

func (f *fakePayments) UpdatePendingOrderStatus(ctx context.Context, tx *gorm.DB, orderID string, status models.PendingOrderStatus) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	p, ok := f.r.pending[orderID]
	if !ok {
		return notFound("pending order", orderID)
	}
	p.Status = status
	return nil
}

func (f *fakePayments) ExpirePendingOrders(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var n int64
	for _, p := range f.r.pending {
		if p.IsExpired(now) {
			p.Status = models.PendingOrderExpired
			n++
		}
	}
	return n, nil
}

func (f *fakePayments) SaveCapture(ctx context.Context, tx *gorm.DB, capture *models.PaymentCapture) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if existing, ok := f.r.captures[capture.OrderID]; ok && existing.IsCompleted() {
		return nil
	}
	copied := *capture
	f.r.captures[capture.OrderID] = &copied
	return nil
}

func (f *fakePayments) GetCapture(ctx context.Context, tx *gorm.DB, orderID string) (*models.PaymentCapture, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if c, ok := f.r.captures[orderID]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, notFound("capture", orderID)
}

func (f *fakePayments) AssignCaptureUser(ctx context.Context, tx *gorm.DB, orderID, userID string) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	c, ok := f.r.captures[orderID]
	if !ok {
		return notFound("capture", orderID)
	}
	if c.UserID != nil && *c.UserID != userID {
		return notFound("capture", orderID)
	}
	c.UserID = &userID
	return nil
}

// ===== RECONCILIATION =====

type fakeTasks struct{ r *fakeRepo }

func (f *fakeTasks) Create(ctx context.Context, tx *gorm.DB, task *models.ReconciliationTask) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, t := range f.r.tasks {
		if t.OrderID == task.OrderID {
			return gorm.ErrDuplicatedKey
		}
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	copied := *task
	f.r.tasks = append(f.r.tasks, &copied)
	return nil
}

func (f *fakeTasks) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.ReconciliationTask, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, t := range f.r.tasks {
		if t.ID == id {
			copied := *t
			return &copied, nil
		}
	}
	return nil, notFound("reconciliation task", id)
}

func (f *fakeTasks) ListDue(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*models.ReconciliationTask, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.ReconciliationTask
	for _, t := range f.r.tasks {
		if t.Status == models.ReconciliationPending && !t.NextAttemptAt.After(now) && len(out) < limit {
			copied := *t
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeTasks) List(ctx context.Context, tx *gorm.DB, filters repositories.ReconciliationFilters) ([]*models.ReconciliationTask, int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.ReconciliationTask
	for _, t := range f.r.tasks {
		if filters.Status != nil && t.Status != *filters.Status {
			continue
		}
		out = append(out, t)
	}
	return out, int64(len(out)), nil
}

func (f *fakeTasks) Update(ctx context.Context, tx *gorm.DB, task *models.ReconciliationTask) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for i, t := range f.r.tasks {
		if t.ID == task.ID {
			copied := *task
			f.r.tasks[i] = &copied
			return nil
		}
	}
	return notFound("reconciliation task", task.ID)
}

// ===== USERS =====

type fakeUsers struct{ r *fakeRepo }

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if u, ok := f.r.users[id]; ok {
		return u, nil
	}
	return nil, repositories.ErrUserNotFound
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, u := range f.r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (f *fakeUsers) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.User
	for _, id := range ids {
		if u, ok := f.r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUsers) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.User
	for _, u := range f.r.users {
		out = append(out, u)
	}
	return out, int64(len(out)), nil
}

func (f *fakeUsers) Search(ctx context.Context, query string, filters repositories.UserFilters) ([]*models.User, int64, error) {
	return f.List(ctx, filters)
}

func (f *fakeUsers) ExistsByID(ctx context.Context, id string) (bool, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	_, ok := f.r.users[id]
	return ok, nil
}

// ===== DASHBOARD =====

type fakeDashboard struct{ r *fakeRepo }

func (f *fakeDashboard) GetTotalCourses(ctx context.Context, tx *gorm.DB) (int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	return int64(len(f.r.courses)), nil
}

func (f *fakeDashboard) GetTotalEnrollments(ctx context.Context, tx *gorm.DB) (int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	return int64(len(f.r.enrollments)), nil
}

func (f *fakeDashboard) GetTotalStudents(ctx context.Context, tx *gorm.DB) (int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	students := map[string]bool{}
	for _, e := range f.r.enrollments {
		students[e.UserID] = true
	}
	return int64(len(students)), nil
}

func (f *fakeDashboard) GetCompletedLessons(ctx context.Context, tx *gorm.DB) (int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var n int64
	for _, p := range f.r.progress {
		if p.Completed {
			n++
		}
	}
	return n, nil
}

func (f *fakeDashboard) GetOpenReconciliations(ctx context.Context, tx *gorm.DB) (int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var n int64
	for _, t := range f.r.tasks {
		if t.Status == models.ReconciliationPending {
			n++
		}
	}
	return n, nil
}

// ===== COLLABORATORS =====

// fakeGateway stands in for the checkout provider
type fakeGateway struct {
	mu sync.Mutex

	createCalls  int
	captureCalls int
	lastParams   paypal.OrderParams

	createErr     error
	captureErr    error
	captureStatus string
	// referenceID overrides the course id echoed back by capture
	referenceID string
}

func (g *fakeGateway) CreateOrder(ctx context.Context, params paypal.OrderParams) (*paypal.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	g.lastParams = params
	if g.createErr != nil {
		return nil, g.createErr
	}
	id := fmt.Sprintf("ORDER-%d", g.createCalls)
	if g.referenceID == "" {
		g.referenceID = params.CourseID
	}
	return &paypal.Order{
		ID:     id,
		Status: paypal.StatusCreated,
		Links: []paypal.Link{
			{Rel: "self", Href: "https://api.paypal.test/v2/checkout/orders/" + id},
			{Rel: "payer-action", Href: "https://www.paypal.test/checkoutnow?token=" + id},
		},
	}, nil
}

func (g *fakeGateway) CaptureOrder(ctx context.Context, orderID string) (*paypal.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.captureCalls++
	if g.captureErr != nil {
		return nil, g.captureErr
	}
	status := g.captureStatus
	if status == "" {
		status = paypal.StatusCompleted
	}
	unit := paypal.OrderUnit{ReferenceID: g.referenceID}
	unit.Payments.Captures = []paypal.Capture{{
		ID:     "CAPTURE-" + orderID,
		Status: status,
		Amount: paypal.Amount{CurrencyCode: "ZAR", Value: "499.00"},
	}}
	return &paypal.Order{
		ID:            orderID,
		Status:        status,
		Payer:         &paypal.Payer{EmailAddress: "buyer@example.com"},
		PurchaseUnits: []paypal.OrderUnit{unit},
	}, nil
}

// fakeGenerator returns canned copy and tracks concurrency
type fakeGenerator struct {
	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
	failTitles  map[string]bool
	err         error
}

func (g *fakeGenerator) Generate(ctx context.Context, input contentgen.CourseInput) (*contentgen.GeneratedContent, error) {
	g.calls.Add(1)
	current := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		seen := g.maxInFlight.Load()
		if current <= seen || g.maxInFlight.CompareAndSwap(seen, current) {
			break
		}
	}
	if g.delay > 0 {
		time.Sleep(g.delay)
	}

	if g.err != nil {
		return nil, g.err
	}
	if g.failTitles[input.Title] {
		return nil, &contentgen.APIError{StatusCode: 500, Body: "upstream failure"}
	}
	return &contentgen.GeneratedContent{
		Description:      "A practical programme on " + input.Title + " covering the full regulatory landscape in depth.",
		ShortDescription: "Learn " + input.Title + " with confidence.",
		Curriculum:       "## Module 1: Foundations\n- Key concepts\n## Module 2: Practice\n- Case studies",
		LearningOutcomes: "- Apply " + input.Title + " principles\n- Assess compliance risks in practice",
		WhoShouldTake:    "- Compliance officers\n- Risk managers\n- New graduates entering the field",
	}, nil
}

// fakeSender records outbound mail
type fakeSender struct {
	mu       sync.Mutex
	messages []notify.Message
	err      error
}

func (s *fakeSender) Send(ctx context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *fakeSender) sent() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notify.Message, len(s.messages))
	copy(out, s.messages)
	return out
}
