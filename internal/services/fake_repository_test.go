package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/studyhub/assessment-service/internal/events"
	"github.com/studyhub/assessment-service/internal/generation"
	"github.com/studyhub/assessment-service/internal/grading"
	"github.com/studyhub/assessment-service/internal/models"
	"github.com/studyhub/assessment-service/internal/repositories"
	"github.com/studyhub/assessment-service/internal/utils"
)

// fakeRepo is an in-memory Repository. Transactions run fn directly.
type fakeRepo struct {
	mu     sync.Mutex
	nextID uint

	tests       map[uint]*models.Test
	questions   map[uint]*models.Question
	courses     map[uint]*models.Course
	lessons     map[uint]*models.Lesson
	lessonLinks []models.LessonTest
	attempts    map[uint]*models.Attempt
	details     map[uint]*models.AttemptDetail
	certs       map[uint]*models.Certificate
	users       map[string]*models.User

	registerErr    error
	createBatchErr error
	transactions   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		tests:     make(map[uint]*models.Test),
		questions: make(map[uint]*models.Question),
		courses:   make(map[uint]*models.Course),
		lessons:   make(map[uint]*models.Lesson),
		attempts:  make(map[uint]*models.Attempt),
		details:   make(map[uint]*models.AttemptDetail),
		certs:     make(map[uint]*models.Certificate),
		users:     make(map[string]*models.User),
	}
}

func (r *fakeRepo) id() uint {
	r.nextID++
	return r.nextID
}

func notFound(what string, id interface{}) error {
	return fmt.Errorf("%s %v: %w", what, id, repositories.ErrNotFound)
}

func (r *fakeRepo) Test() repositories.TestRepository                   { return fakeTests{r} }
func (r *fakeRepo) Question() repositories.QuestionRepository           { return fakeQuestions{r} }
func (r *fakeRepo) Course() repositories.CourseRepository               { return fakeCourses{r} }
func (r *fakeRepo) Attempt() repositories.AttemptRepository             { return fakeAttempts{r} }
func (r *fakeRepo) AttemptDetail() repositories.AttemptDetailRepository { return fakeDetails{r} }
func (r *fakeRepo) Certificate() repositories.CertificateRepository     { return fakeCerts{r} }
func (r *fakeRepo) User() repositories.UserRepository                   { return fakeUsers{r} }

func (r *fakeRepo) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	r.mu.Lock()
	r.transactions++
	r.mu.Unlock()
	return fn(nil)
}

func (r *fakeRepo) Ping(ctx context.Context) error { return nil }
func (r *fakeRepo) Close() error                   { return nil }

// ===== SEEDING =====

func (r *fakeRepo) addUser(id string, role models.UserRole) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := &models.User{ID: id, FullName: strings.ToUpper(id), Role: role, CurrentLevel: "A2", StudyHoursPerWeek: 4}
	r.users[id] = u
	return u
}

func (r *fakeRepo) addCourse(examType string) *models.Course {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &models.Course{ID: r.id(), Title: "Course", ExamType: examType}
	r.courses[c.ID] = c
	return c
}

func (r *fakeRepo) addLesson(courseID uint) *models.Lesson {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := &models.Lesson{ID: r.id(), CourseID: courseID, Title: "Lesson"}
	r.lessons[l.ID] = l
	return l
}

func (r *fakeRepo) test(id uint) *models.Test {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyTest(r.tests[id])
}

func (r *fakeRepo) attempt(id uint) *models.Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *r.attempts[id]
	return &c
}

func copyTest(t *models.Test) *models.Test {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyQuestion(q *models.Question) *models.Question {
	c := *q
	c.Options = append([]models.QuestionOption(nil), q.Options...)
	return &c
}

// ===== TESTS =====

type fakeTests struct{ r *fakeRepo }

func (f fakeTests) Create(ctx context.Context, tx *gorm.DB, test *models.Test) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	test.ID = f.r.id()
	test.CreatedAt = time.Now()
	f.r.tests[test.ID] = copyTest(test)
	return nil
}

func (f fakeTests) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Test, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	t, ok := f.r.tests[id]
	if !ok {
		return nil, notFound("test", id)
	}
	return copyTest(t), nil
}

func (f fakeTests) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Test, error) {
	return f.GetByID(ctx, tx, id)
}

func (f fakeTests) Update(ctx context.Context, tx *gorm.DB, test *models.Test) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.tests[test.ID]; !ok {
		return notFound("test", test.ID)
	}
	f.r.tests[test.ID] = copyTest(test)
	return nil
}

func (f fakeTests) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.TestStatus, reopened bool) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	t, ok := f.r.tests[id]
	if !ok {
		return notFound("test", id)
	}
	t.Status = status
	t.Reopened = reopened
	return nil
}

func (f fakeTests) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.tests[id]; !ok {
		return notFound("test", id)
	}
	delete(f.r.tests, id)
	return nil
}

func (f fakeTests) List(ctx context.Context, tx *gorm.DB, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.Test
	for _, t := range f.r.tests {
		if filters.CreatedBy != nil && t.CreatedBy != *filters.CreatedBy {
			continue
		}
		if filters.OpenOnly && (t.Status != models.TestPublished || t.Reopened) {
			continue
		}
		if filters.Status != nil && t.Status != *filters.Status {
			continue
		}
		out = append(out, copyTest(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

// ===== QUESTIONS =====

type fakeQuestions struct{ r *fakeRepo }

func (f fakeQuestions) store(q *models.Question) {
	if q.ID == 0 {
		q.ID = f.r.id()
	}
	for i := range q.Options {
		if q.Options[i].ID == 0 {
			q.Options[i].ID = f.r.id()
		}
		q.Options[i].QuestionID = q.ID
	}
	f.r.questions[q.ID] = copyQuestion(q)
}

func (f fakeQuestions) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	f.store(question)
	return nil
}

func (f fakeQuestions) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if f.r.createBatchErr != nil {
		return f.r.createBatchErr
	}
	for _, q := range questions {
		f.store(q)
	}
	return nil
}

func (f fakeQuestions) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	q, ok := f.r.questions[id]
	if !ok {
		return nil, notFound("question", id)
	}
	return copyQuestion(q), nil
}

func (f fakeQuestions) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.questions[question.ID]; !ok {
		return notFound("question", question.ID)
	}
	f.store(question)
	return nil
}

func (f fakeQuestions) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.questions[id]; !ok {
		return notFound("question", id)
	}
	delete(f.r.questions, id)
	return nil
}

func (f fakeQuestions) ListByTest(ctx context.Context, tx *gorm.DB, testID uint) ([]*models.Question, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.Question
	for _, q := range f.r.questions {
		if q.TestID == testID {
			out = append(out, copyQuestion(q))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f fakeQuestions) CountByTest(ctx context.Context, tx *gorm.DB, testID uint) (int64, error) {
	questions, _ := f.ListByTest(ctx, tx, testID)
	return int64(len(questions)), nil
}

func (f fakeQuestions) SetCorrectOption(ctx context.Context, tx *gorm.DB, questionID, optionID uint) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	q, ok := f.r.questions[questionID]
	if !ok || q.FindOption(optionID) == nil {
		return notFound("option", optionID)
	}
	for i := range q.Options {
		q.Options[i].IsCorrect = q.Options[i].ID == optionID
	}
	return nil
}

// ===== COURSES =====

type fakeCourses struct{ r *fakeRepo }

func (f fakeCourses) GetCourse(ctx context.Context, tx *gorm.DB, id uint) (*models.Course, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	c, ok := f.r.courses[id]
	if !ok {
		return nil, notFound("course", id)
	}
	return c, nil
}

func (f fakeCourses) GetLesson(ctx context.Context, tx *gorm.DB, id uint) (*models.Lesson, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	l, ok := f.r.lessons[id]
	if !ok {
		return nil, notFound("lesson", id)
	}
	return l, nil
}

func (f fakeCourses) RegisterLessonTest(ctx context.Context, tx *gorm.DB, lessonID, testID uint) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if f.r.registerErr != nil {
		return f.r.registerErr
	}
	f.r.lessonLinks = append(f.r.lessonLinks, models.LessonTest{LessonID: lessonID, TestID: testID})
	return nil
}

// ===== ATTEMPTS =====

type fakeAttempts struct{ r *fakeRepo }

func (f fakeAttempts) Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, a := range f.r.attempts {
		if a.TestID == attempt.TestID && a.LearnerID == attempt.LearnerID && a.AttemptNumber == attempt.AttemptNumber {
			return repositories.ErrDuplicate
		}
	}
	attempt.ID = f.r.id()
	c := *attempt
	f.r.attempts[attempt.ID] = &c
	return nil
}

func (f fakeAttempts) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	a, ok := f.r.attempts[id]
	if !ok {
		return nil, notFound("attempt", id)
	}
	c := *a
	return &c, nil
}

func (f fakeAttempts) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	return f.GetByID(ctx, tx, id)
}

func (f fakeAttempts) Update(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if _, ok := f.r.attempts[attempt.ID]; !ok {
		return notFound("attempt", attempt.ID)
	}
	c := *attempt
	f.r.attempts[attempt.ID] = &c
	return nil
}

func (f fakeAttempts) latest(testID uint, learnerID string, match func(*models.Attempt) bool) (*models.Attempt, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var best *models.Attempt
	for _, a := range f.r.attempts {
		if a.TestID != testID || a.LearnerID != learnerID || !match(a) {
			continue
		}
		if best == nil || a.AttemptNumber > best.AttemptNumber {
			best = a
		}
	}
	if best == nil {
		return nil, notFound("attempt for test", testID)
	}
	c := *best
	return &c, nil
}

func (f fakeAttempts) GetInProgress(ctx context.Context, tx *gorm.DB, testID uint, learnerID string) (*models.Attempt, error) {
	return f.latest(testID, learnerID, func(a *models.Attempt) bool { return a.IsInProgress() })
}

func (f fakeAttempts) GetLatest(ctx context.Context, tx *gorm.DB, testID uint, learnerID string) (*models.Attempt, error) {
	return f.latest(testID, learnerID, func(*models.Attempt) bool { return true })
}

func (f fakeAttempts) CountByLearner(ctx context.Context, tx *gorm.DB, testID uint, learnerID string) (int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var n int64
	for _, a := range f.r.attempts {
		if a.TestID == testID && a.LearnerID == learnerID {
			n++
		}
	}
	return n, nil
}

func (f fakeAttempts) CountByTest(ctx context.Context, tx *gorm.DB, testID uint) (int64, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var n int64
	for _, a := range f.r.attempts {
		if a.TestID == testID {
			n++
		}
	}
	return n, nil
}

// ===== ATTEMPT DETAILS =====

type fakeDetails struct{ r *fakeRepo }

func (f fakeDetails) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AttemptDetail, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	d, ok := f.r.details[id]
	if !ok {
		return nil, notFound("attempt detail", id)
	}
	c := *d
	return &c, nil
}

func (f fakeDetails) GetByAttemptID(ctx context.Context, tx *gorm.DB, attemptID uint) (*models.AttemptDetail, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, d := range f.r.details {
		if d.AttemptID == attemptID {
			c := *d
			return &c, nil
		}
	}
	return nil, notFound("attempt detail for attempt", attemptID)
}

func (f fakeDetails) Upsert(ctx context.Context, tx *gorm.DB, detail *models.AttemptDetail) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for id, d := range f.r.details {
		if d.AttemptID == detail.AttemptID {
			detail.ID = id
			break
		}
	}
	if detail.ID == 0 {
		detail.ID = f.r.id()
	}
	c := *detail
	f.r.details[detail.ID] = &c
	return nil
}

func (f fakeDetails) ListHistory(ctx context.Context, tx *gorm.DB, learnerID string, testID uint) ([]*models.AttemptDetail, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	var out []*models.AttemptDetail
	for _, d := range f.r.details {
		if d.LearnerID == learnerID && d.TestID == testID {
			c := *d
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// ===== CERTIFICATES =====

type fakeCerts struct{ r *fakeRepo }

func (f fakeCerts) Create(ctx context.Context, tx *gorm.DB, certificate *models.Certificate) (*models.Certificate, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, c := range f.r.certs {
		if c.AttemptID == certificate.AttemptID {
			return c, nil
		}
	}
	certificate.ID = f.r.id()
	f.r.certs[certificate.ID] = certificate
	return certificate, nil
}

func (f fakeCerts) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Certificate, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	c, ok := f.r.certs[id]
	if !ok {
		return nil, notFound("certificate", id)
	}
	return c, nil
}

func (f fakeCerts) GetByAttemptID(ctx context.Context, tx *gorm.DB, attemptID uint) (*models.Certificate, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for _, c := range f.r.certs {
		if c.AttemptID == attemptID {
			return c, nil
		}
	}
	return nil, notFound("certificate for attempt", attemptID)
}

// ===== USERS =====

type fakeUsers struct{ r *fakeRepo }

func (f fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	u, ok := f.r.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	return u, nil
}

func (f fakeUsers) HasRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	u, err := f.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return u.Role == role, nil
}

// ===== COLLABORATOR STUBS =====

type stubGenerator struct {
	mu        sync.Mutex
	questions []generation.GeneratedQuestion
	err       error
	block     bool
	calls     int
}

func (g *stubGenerator) Generate(ctx context.Context, params generation.Params) ([]generation.GeneratedQuestion, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return g.questions, g.err
}

type stubGrader struct {
	mu       sync.Mutex
	result   func(req *grading.Request) *grading.Result
	err      error
	calls    int
	requests []*grading.Request
}

func (g *stubGrader) Grade(ctx context.Context, req *grading.Request) (*grading.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	if g.result != nil {
		return g.result(req), nil
	}
	return grading.GradeDeterministic(req), nil
}

func discardLogger() utils.Logger {
	return utils.NewSlogLogger(slog.New(slog.DiscardHandler))
}

func newPublisher() *events.MockEventPublisher {
	return events.NewMockEventPublisher(slog.New(slog.DiscardHandler))
}

// ===== FIXTURES =====

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

// seedPublishedTest stores a published test with n fill-in-blank questions
// whose answers are "a1".."an".
func (r *fakeRepo) seedPublishedTest(owner string, n int, passingScore float64, maxAttempts *int) (*models.Test, []*models.Question) {
	test := &models.Test{
		Title:        "Unit 3",
		ExamType:     "TOEIC",
		NumQuestions: n,
		DurationMin:  30,
		PassingScore: passingScore,
		MaxAttempts:  maxAttempts,
		Kind:         models.TestKindCustom,
		CreatedBy:    owner,
		Status:       models.TestPublished,
	}
	_ = fakeTests{r}.Create(context.Background(), nil, test)

	var questions []*models.Question
	for i := 1; i <= n; i++ {
		q := &models.Question{
			TestID:   test.ID,
			Type:     models.FillInBlank,
			Text:     fmt.Sprintf("Question %d", i),
			Points:   1,
			Position: i,
			Answer:   strPtr(fmt.Sprintf("a%d", i)),
			Skill:    strPtr("grammar"),
			Topic:    strPtr(fmt.Sprintf("Topic %d", i)),
		}
		_ = fakeQuestions{r}.Create(context.Background(), nil, q)
		questions = append(questions, q)
	}
	return test, questions
}
