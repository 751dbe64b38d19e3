package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "student"
	// UserRoleAdmin is an admin user role.
	UserRoleAdmin UserRole = "admin"
)

// TrialDays is the length of the free trial window granted at registration.
const TrialDays = 3

// DefaultQuestionCount is how many questions an exam session samples when the
// request does not specify a count.
const DefaultQuestionCount = 40

// DefaultPremiumMonths is the premium duration used when an admin grants
// access or generates codes without an explicit duration.
const DefaultPremiumMonths = 9

// MaxCodesPerBatch caps how many unlock codes one generate request may create.
const MaxCodesPerBatch = 100

// User represents a registered account. PasswordHash never leaves the server.
type User struct {
	ID               int64      `json:"id"`
	FullName         string     `json:"fullName"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone"`
	PasswordHash     string     `json:"-"`
	Role             UserRole   `json:"role"`
	RegistrationDate time.Time  `json:"registrationDate"`
	IsPremium        bool       `json:"isPremium"`
	PremiumExpiresAt *time.Time `json:"premiumExpiresAt,omitempty"`
	UsedUnlockCode   string     `json:"usedUnlockCode,omitempty"`
}

// TrialEndsAt returns the end of the user's trial window. It is derived from
// the registration date rather than stored, so the two can never drift.
func (u User) TrialEndsAt() time.Time {
	return u.RegistrationDate.AddDate(0, 0, TrialDays)
}

// AccessType classifies the result of an access evaluation.
type AccessType string

const (
	AccessTrial   AccessType = "trial"
	AccessPremium AccessType = "premium"
	AccessExpired AccessType = "expired"
)

// Access is the result of evaluating a user's entitlement at a point in time.
type Access struct {
	HasAccess bool       `json:"hasAccess"`
	Type      AccessType `json:"type"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// UnlockCode is a single-use token redeemable for months of premium access.
// Once used it is immutable.
type UnlockCode struct {
	ID          int64      `json:"id"`
	Code        string     `json:"code"`
	Duration    int        `json:"duration"` // months of premium granted
	IsUsed      bool       `json:"isUsed"`
	GeneratedBy int64      `json:"generatedBy"`
	GeneratedAt time.Time  `json:"generatedAt"`
	UsedBy      *int64     `json:"usedBy,omitempty"`
	UsedAt      *time.Time `json:"usedAt,omitempty"`

	// Redeeming user identity, populated by joined listings only.
	UsedByName  string `json:"usedByName,omitempty"`
	UsedByEmail string `json:"usedByEmail,omitempty"`
}

// Difficulty represents question difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Question is one catalog entry. Immutable after upload except for deletion.
type Question struct {
	ID            int64      `json:"id"`
	ExamType      string     `json:"examType"`
	Subject       string     `json:"subject"`
	Year          int        `json:"year"`
	Topic         string     `json:"topic,omitempty"`
	QuestionType  string     `json:"questionType"`
	QuestionText  string     `json:"questionText"`
	QuestionImage string     `json:"questionImage,omitempty"`
	Options       []string   `json:"options"`
	CorrectAnswer string     `json:"correctAnswer"`
	Explanation   string     `json:"explanation,omitempty"`
	Difficulty    Difficulty `json:"difficulty"`
}

// ExamQuestion is the client-facing view of a question: everything except the
// correct answer and explanation.
type ExamQuestion struct {
	ID            int64    `json:"id"`
	QuestionText  string   `json:"questionText"`
	QuestionImage string   `json:"questionImage,omitempty"`
	Options       []string `json:"options"`
	Topic         string   `json:"topic,omitempty"`
}

// Public returns the question stripped of grading fields.
func (q Question) Public() ExamQuestion {
	return ExamQuestion{
		ID:            q.ID,
		QuestionText:  q.QuestionText,
		QuestionImage: q.QuestionImage,
		Options:       q.Options,
		Topic:         q.Topic,
	}
}

// ExamSession is one attempt at an exam: a fixed sample of questions and a
// countdown. It is mutated exactly once, at completion.
type ExamSession struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"userId"`
	ExamType       string     `json:"examType"`
	Subject        string     `json:"subject"`
	Year           int        `json:"year,omitempty"`
	StartTime      time.Time  `json:"startTime"`
	Duration       int        `json:"duration"` // minutes
	TotalQuestions int        `json:"totalQuestions"`
	EndTime        *time.Time `json:"endTime,omitempty"`
	IsCompleted    bool       `json:"isCompleted"`
	Score          *int       `json:"score,omitempty"`

	// Owner identity, populated by joined listings only.
	UserFullName string `json:"userFullName,omitempty"`
	UserEmail    string `json:"userEmail,omitempty"`
}

// ExamAnswer records the latest submission for one question in one session.
// Upsert semantics are keyed by (session, question).
type ExamAnswer struct {
	ID              int64  `json:"id"`
	SessionID       int64  `json:"sessionId"`
	QuestionID      int64  `json:"questionId"`
	SelectedAnswer  string `json:"selectedAnswer"`
	IsCorrect       bool   `json:"isCorrect"`
	MarkedForReview bool   `json:"markedForReview"`
}

// AnswerResult joins an answer with its question for session results.
type AnswerResult struct {
	QuestionText   string   `json:"questionText"`
	Options        []string `json:"options"`
	SelectedAnswer string   `json:"selectedAnswer"`
	CorrectAnswer  string   `json:"correctAnswer"`
	IsCorrect      bool     `json:"isCorrect"`
	Explanation    string   `json:"explanation,omitempty"`
}

// Statistics holds the admin dashboard aggregate counts.
type Statistics struct {
	TotalUsers     int `json:"totalUsers"`
	PremiumUsers   int `json:"premiumUsers"`
	TrialUsers     int `json:"trialUsers"`
	TotalQuestions int `json:"totalQuestions"`
	TotalSessions  int `json:"totalSessions"`
	TotalCodes     int `json:"totalCodes"`
	ActiveCodes    int `json:"activeCodes"`
}

// QuestionImport is used for loading question banks from JSON, either via the
// admin upload endpoint or the startup --questions import.
type QuestionImport struct {
	ExamType      string     `json:"examType" validate:"required"`
	Subject       string     `json:"subject" validate:"required"`
	Year          int        `json:"year" validate:"required"`
	Topic         string     `json:"topic"`
	QuestionType  string     `json:"questionType"`
	QuestionText  string     `json:"questionText" validate:"required"`
	QuestionImage string     `json:"questionImage"`
	Options       []string   `json:"options" validate:"required,min=2"`
	CorrectAnswer string     `json:"correctAnswer" validate:"required"`
	Explanation   string     `json:"explanation"`
	Difficulty    Difficulty `json:"difficulty"`
}

// Question converts an import row to a catalog question, filling defaults.
func (qi QuestionImport) Question() Question {
	qt := qi.QuestionType
	if qt == "" {
		qt = "multiple-choice"
	}
	diff := qi.Difficulty
	if diff == "" {
		diff = DifficultyMedium
	}
	return Question{
		ExamType:      qi.ExamType,
		Subject:       qi.Subject,
		Year:          qi.Year,
		Topic:         qi.Topic,
		QuestionType:  qt,
		QuestionText:  qi.QuestionText,
		QuestionImage: qi.QuestionImage,
		Options:       qi.Options,
		CorrectAnswer: qi.CorrectAnswer,
		Explanation:   qi.Explanation,
		Difficulty:    diff,
	}
}

// ExamDuration returns the fixed exam length in minutes for an exam type.
// Not user-configurable.
func ExamDuration(examType string) int {
	if examType == "JAMB" {
		return 120
	}
	return 180
}

type userCtxKey struct{}

// ContextWithUser stores the authenticated user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}
