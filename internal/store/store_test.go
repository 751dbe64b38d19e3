package store

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prepstack/prepstack/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestUser(t *testing.T, s *Store, email string) int64 {
	t.Helper()
	id, err := s.CreateUser(model.User{
		FullName:         "Test User",
		Email:            email,
		Phone:            "+2340000000",
		PasswordHash:     "hash",
		Role:             model.UserRoleStudent,
		RegistrationDate: time.Now(),
	})
	if err != nil {
		t.Fatalf("insertTestUser: %v", err)
	}
	return id
}

func insertTestQuestion(t *testing.T, s *Store, examType, subject string, year int, correct string) int64 {
	t.Helper()
	n, err := s.InsertQuestions([]model.Question{{
		ExamType:      examType,
		Subject:       subject,
		Year:          year,
		QuestionType:  "multiple-choice",
		QuestionText:  fmt.Sprintf("%s %s %d?", examType, subject, year),
		Options:       []string{"A", "B", "C", "D"},
		CorrectAnswer: correct,
		Difficulty:    model.DifficultyMedium,
	}})
	if err != nil || n != 1 {
		t.Fatalf("insertTestQuestion: n=%d err=%v", n, err)
	}
	var id int64
	if err := s.db.QueryRow(`SELECT MAX(id) FROM questions`).Scan(&id); err != nil {
		t.Fatalf("last question id: %v", err)
	}
	return id
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	insertTestUser(t, s, "jane@x.com")

	_, err := s.CreateUser(model.User{
		FullName:         "Second Jane",
		Email:            "jane@x.com",
		PasswordHash:     "otherhash",
		Role:             model.UserRoleStudent,
		RegistrationDate: time.Now(),
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	u, err := s.GetUserByEmail("jane@x.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if u == nil || u.FullName != "Test User" {
		t.Errorf("original user overwritten: %+v", u)
	}
}

func TestGetUserNotFound(t *testing.T) {
	s := newTestStore(t)
	u, err := s.GetUserByEmail("nobody@x.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if u != nil {
		t.Errorf("expected nil user, got %+v", u)
	}
	u, err = s.GetUserByID(9999)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if u != nil {
		t.Errorf("expected nil user, got %+v", u)
	}
}

func TestGrantRevokePremium(t *testing.T) {
	s := newTestStore(t)
	id := insertTestUser(t, s, "jane@x.com")

	exp := time.Now().AddDate(0, 9, 0).UTC()
	if err := s.GrantPremium(id, exp); err != nil {
		t.Fatalf("GrantPremium: %v", err)
	}
	u, _ := s.GetUserByID(id)
	if !u.IsPremium || u.PremiumExpiresAt == nil {
		t.Fatalf("premium not set: %+v", u)
	}
	if !u.PremiumExpiresAt.Equal(exp) {
		t.Errorf("expiry = %v, want %v", u.PremiumExpiresAt, exp)
	}

	if err := s.RevokePremium(id); err != nil {
		t.Fatalf("RevokePremium: %v", err)
	}
	u, _ = s.GetUserByID(id)
	if u.IsPremium || u.PremiumExpiresAt != nil {
		t.Errorf("premium not cleared: %+v", u)
	}

	if err := s.GrantPremium(9999, exp); !errors.Is(err, ErrNotFound) {
		t.Errorf("GrantPremium on missing user: %v, want ErrNotFound", err)
	}
}

func TestRedeemCode(t *testing.T) {
	s := newTestStore(t)
	admin := insertTestUser(t, s, "admin@x.com")
	user := insertTestUser(t, s, "jane@x.com")

	_, err := s.CreateCode(model.UnlockCode{
		Code: "CBT-TEST0001", Duration: 9, GeneratedBy: admin, GeneratedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateCode: %v", err)
	}

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	expiresAt, err := s.RedeemCode("CBT-TEST0001", user, now)
	if err != nil {
		t.Fatalf("RedeemCode: %v", err)
	}
	if want := now.AddDate(0, 9, 0); !expiresAt.Equal(want) {
		t.Errorf("expiresAt = %v, want %v", expiresAt, want)
	}

	u, _ := s.GetUserByID(user)
	if !u.IsPremium || u.PremiumExpiresAt == nil || !u.PremiumExpiresAt.Equal(expiresAt) {
		t.Errorf("user premium state wrong: %+v", u)
	}
	if u.UsedUnlockCode != "CBT-TEST0001" {
		t.Errorf("UsedUnlockCode = %q", u.UsedUnlockCode)
	}

	codes, err := s.ListCodes()
	if err != nil {
		t.Fatalf("ListCodes: %v", err)
	}
	if len(codes) != 1 || !codes[0].IsUsed {
		t.Fatalf("code not marked used: %+v", codes)
	}
	if codes[0].UsedBy == nil || *codes[0].UsedBy != user {
		t.Errorf("UsedBy = %v, want %d", codes[0].UsedBy, user)
	}
	if codes[0].UsedByEmail != "jane@x.com" {
		t.Errorf("UsedByEmail = %q", codes[0].UsedByEmail)
	}
}

func TestRedeemCodeOnlyOnce(t *testing.T) {
	s := newTestStore(t)
	admin := insertTestUser(t, s, "admin@x.com")
	a := insertTestUser(t, s, "a@x.com")
	b := insertTestUser(t, s, "b@x.com")

	if _, err := s.CreateCode(model.UnlockCode{
		Code: "CBT-ONCE", Duration: 3, GeneratedBy: admin, GeneratedAt: time.Now(),
	}); err != nil {
		t.Fatalf("CreateCode: %v", err)
	}

	now := time.Now()
	if _, err := s.RedeemCode("CBT-ONCE", a, now); err != nil {
		t.Fatalf("first redemption: %v", err)
	}
	if _, err := s.RedeemCode("CBT-ONCE", b, now); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("second redemption: %v, want ErrCodeInvalid", err)
	}

	// The losing user must be untouched.
	u, _ := s.GetUserByID(b)
	if u.IsPremium {
		t.Errorf("second redeemer gained premium: %+v", u)
	}
}

func TestRedeemCodeReplacesExpiry(t *testing.T) {
	s := newTestStore(t)
	admin := insertTestUser(t, s, "admin@x.com")
	user := insertTestUser(t, s, "jane@x.com")

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := s.GrantPremium(user, now.AddDate(2, 0, 0)); err != nil {
		t.Fatalf("GrantPremium: %v", err)
	}

	if _, err := s.CreateCode(model.UnlockCode{
		Code: "CBT-SHORT", Duration: 1, GeneratedBy: admin, GeneratedAt: now,
	}); err != nil {
		t.Fatalf("CreateCode: %v", err)
	}

	expiresAt, err := s.RedeemCode("CBT-SHORT", user, now)
	if err != nil {
		t.Fatalf("RedeemCode: %v", err)
	}
	// Redemption replaces the previous expiry, it does not extend it.
	if want := now.AddDate(0, 1, 0); !expiresAt.Equal(want) {
		t.Errorf("expiresAt = %v, want %v", expiresAt, want)
	}
}

func TestRedeemUnknownCode(t *testing.T) {
	s := newTestStore(t)
	user := insertTestUser(t, s, "jane@x.com")
	if _, err := s.RedeemCode("CBT-NOPE", user, time.Now()); !errors.Is(err, ErrCodeInvalid) {
		t.Fatalf("got %v, want ErrCodeInvalid", err)
	}
}

func TestCreateCodeCollision(t *testing.T) {
	s := newTestStore(t)
	admin := insertTestUser(t, s, "admin@x.com")
	c := model.UnlockCode{Code: "CBT-DUP", Duration: 9, GeneratedBy: admin, GeneratedAt: time.Now()}
	if _, err := s.CreateCode(c); err != nil {
		t.Fatalf("CreateCode: %v", err)
	}
	if _, err := s.CreateCode(c); !errors.Is(err, ErrCodeExists) {
		t.Fatalf("duplicate code: %v, want ErrCodeExists", err)
	}
}

func TestDeleteUnusedCode(t *testing.T) {
	s := newTestStore(t)
	admin := insertTestUser(t, s, "admin@x.com")
	user := insertTestUser(t, s, "jane@x.com")

	usedID, _ := s.CreateCode(model.UnlockCode{Code: "CBT-USED", Duration: 9, GeneratedBy: admin, GeneratedAt: time.Now()})
	freshID, _ := s.CreateCode(model.UnlockCode{Code: "CBT-FRESH", Duration: 9, GeneratedBy: admin, GeneratedAt: time.Now()})
	if _, err := s.RedeemCode("CBT-USED", user, time.Now()); err != nil {
		t.Fatalf("RedeemCode: %v", err)
	}

	if err := s.DeleteUnusedCode(usedID); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleting used code: %v, want ErrNotFound", err)
	}
	if err := s.DeleteUnusedCode(freshID); err != nil {
		t.Errorf("deleting fresh code: %v", err)
	}

	count, _ := s.CodeCount()
	if count != 1 {
		t.Errorf("CodeCount = %d, want 1", count)
	}
}

func TestQuestionCatalog(t *testing.T) {
	s := newTestStore(t)
	insertTestQuestion(t, s, "JAMB", "Mathematics", 2023, "A")
	insertTestQuestion(t, s, "JAMB", "Mathematics", 2022, "B")
	insertTestQuestion(t, s, "JAMB", "English", 2023, "C")
	insertTestQuestion(t, s, "WAEC", "Mathematics", 2023, "D")

	types, err := s.ExamTypes()
	if err != nil {
		t.Fatalf("ExamTypes: %v", err)
	}
	if len(types) != 2 {
		t.Errorf("ExamTypes = %v, want [JAMB WAEC]", types)
	}

	subjects, err := s.Subjects("JAMB")
	if err != nil {
		t.Fatalf("Subjects: %v", err)
	}
	if len(subjects) != 2 {
		t.Errorf("Subjects(JAMB) = %v, want 2 entries", subjects)
	}

	years, err := s.Years("JAMB", "Mathematics")
	if err != nil {
		t.Fatalf("Years: %v", err)
	}
	if len(years) != 2 || years[0] != 2023 || years[1] != 2022 {
		t.Errorf("Years = %v, want [2023 2022]", years)
	}

	qs, err := s.ListQuestionsFiltered("JAMB", "Mathematics", 0)
	if err != nil {
		t.Fatalf("ListQuestionsFiltered: %v", err)
	}
	if len(qs) != 2 {
		t.Errorf("filtered(any year) = %d, want 2", len(qs))
	}
	if len(qs[0].Options) != 4 {
		t.Errorf("options round trip failed: %v", qs[0].Options)
	}

	qs, err = s.ListQuestionsFiltered("JAMB", "Mathematics", 2022)
	if err != nil {
		t.Fatalf("ListQuestionsFiltered: %v", err)
	}
	if len(qs) != 1 || qs[0].Year != 2022 {
		t.Errorf("filtered(2022) = %+v", qs)
	}
}

func TestDeleteQuestion(t *testing.T) {
	s := newTestStore(t)
	id := insertTestQuestion(t, s, "JAMB", "Mathematics", 2023, "A")
	if err := s.DeleteQuestion(id); err != nil {
		t.Fatalf("DeleteQuestion: %v", err)
	}
	if err := s.DeleteQuestion(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: %v, want ErrNotFound", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	user := insertTestUser(t, s, "jane@x.com")

	var questionIDs []int64
	for i := 0; i < 10; i++ {
		questionIDs = append(questionIDs, insertTestQuestion(t, s, "JAMB", "Mathematics", 2020+i, "A"))
	}

	sessID, err := s.CreateSession(model.ExamSession{
		UserID:         user,
		ExamType:       "JAMB",
		Subject:        "Mathematics",
		StartTime:      time.Now(),
		Duration:       120,
		TotalQuestions: 10,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// 7 correct, 3 wrong.
	for i, qID := range questionIDs {
		selected := "A"
		if i >= 7 {
			selected = "B"
		}
		if err := s.UpsertAnswer(model.ExamAnswer{
			SessionID:      sessID,
			QuestionID:     qID,
			SelectedAnswer: selected,
			IsCorrect:      selected == "A",
		}); err != nil {
			t.Fatalf("UpsertAnswer: %v", err)
		}
	}

	score, total, err := s.CompleteSession(sessID, time.Now())
	if err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}
	if score != 7 || total != 10 {
		t.Errorf("score/total = %d/%d, want 7/10", score, total)
	}

	sess, err := s.GetSession(sessID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !sess.IsCompleted || sess.Score == nil || *sess.Score != 7 || sess.EndTime == nil {
		t.Errorf("session not finalized: %+v", sess)
	}

	results, err := s.SessionResults(sessID)
	if err != nil {
		t.Fatalf("SessionResults: %v", err)
	}
	if len(results) != 10 {
		t.Fatalf("results = %d rows, want 10", len(results))
	}
	correct := 0
	for _, r := range results {
		if r.IsCorrect {
			correct++
		}
	}
	if correct != 7 {
		t.Errorf("correct results = %d, want 7", correct)
	}
}

func TestUpsertAnswerOverwrites(t *testing.T) {
	s := newTestStore(t)
	user := insertTestUser(t, s, "jane@x.com")
	qID := insertTestQuestion(t, s, "JAMB", "Mathematics", 2023, "A")
	sessID, _ := s.CreateSession(model.ExamSession{
		UserID: user, ExamType: "JAMB", Subject: "Mathematics",
		StartTime: time.Now(), Duration: 120, TotalQuestions: 1,
	})

	if err := s.UpsertAnswer(model.ExamAnswer{SessionID: sessID, QuestionID: qID, SelectedAnswer: "B"}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := s.UpsertAnswer(model.ExamAnswer{SessionID: sessID, QuestionID: qID, SelectedAnswer: "A", IsCorrect: true}); err != nil {
		t.Fatalf("second submit: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM exam_answers WHERE session_id = ?`, sessID).Scan(&count); err != nil {
		t.Fatalf("count answers: %v", err)
	}
	if count != 1 {
		t.Fatalf("answer rows = %d, want 1", count)
	}

	score, total, err := s.CompleteSession(sessID, time.Now())
	if err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}
	if score != 1 || total != 1 {
		t.Errorf("score/total = %d/%d, want 1/1 after overwrite", score, total)
	}
}

func TestCompleteSessionEdgeCases(t *testing.T) {
	s := newTestStore(t)
	user := insertTestUser(t, s, "jane@x.com")
	qID := insertTestQuestion(t, s, "JAMB", "Mathematics", 2023, "A")

	empty, _ := s.CreateSession(model.ExamSession{
		UserID: user, ExamType: "JAMB", Subject: "Mathematics",
		StartTime: time.Now(), Duration: 120, TotalQuestions: 1,
	})
	if _, _, err := s.CompleteSession(empty, time.Now()); !errors.Is(err, ErrNoAnswers) {
		t.Errorf("empty session: %v, want ErrNoAnswers", err)
	}

	done, _ := s.CreateSession(model.ExamSession{
		UserID: user, ExamType: "JAMB", Subject: "Mathematics",
		StartTime: time.Now(), Duration: 120, TotalQuestions: 1,
	})
	_ = s.UpsertAnswer(model.ExamAnswer{SessionID: done, QuestionID: qID, SelectedAnswer: "A", IsCorrect: true})
	if _, _, err := s.CompleteSession(done, time.Now()); err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}
	if _, _, err := s.CompleteSession(done, time.Now()); !errors.Is(err, ErrSessionCompleted) {
		t.Errorf("repeat completion: %v, want ErrSessionCompleted", err)
	}

	if _, _, err := s.CompleteSession(9999, time.Now()); !errors.Is(err, ErrNoAnswers) {
		t.Errorf("missing session: %v, want ErrNoAnswers (no answers recorded)", err)
	}
}

func TestRecentSessions(t *testing.T) {
	s := newTestStore(t)
	user := insertTestUser(t, s, "jane@x.com")

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		_, err := s.CreateSession(model.ExamSession{
			UserID: user, ExamType: "JAMB", Subject: "Mathematics",
			StartTime: base.Add(time.Duration(i) * time.Hour), Duration: 120, TotalQuestions: 5,
		})
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	recent, err := s.RecentSessions(10)
	if err != nil {
		t.Fatalf("RecentSessions: %v", err)
	}
	if len(recent) != 10 {
		t.Fatalf("recent = %d, want 10", len(recent))
	}
	if !recent[0].StartTime.After(recent[9].StartTime) {
		t.Errorf("recent sessions not newest-first")
	}
	if recent[0].UserEmail != "jane@x.com" {
		t.Errorf("UserEmail = %q", recent[0].UserEmail)
	}
}

func TestStatistics(t *testing.T) {
	s := newTestStore(t)
	admin := insertTestUser(t, s, "admin@x.com")
	user := insertTestUser(t, s, "jane@x.com")
	_ = s.GrantPremium(user, time.Now().AddDate(0, 9, 0))
	insertTestQuestion(t, s, "JAMB", "Mathematics", 2023, "A")
	_, _ = s.CreateCode(model.UnlockCode{Code: "CBT-A", Duration: 9, GeneratedBy: admin, GeneratedAt: time.Now()})
	_, _ = s.CreateCode(model.UnlockCode{Code: "CBT-B", Duration: 9, GeneratedBy: admin, GeneratedAt: time.Now()})
	_, _ = s.RedeemCode("CBT-A", user, time.Now())
	_, _ = s.CreateSession(model.ExamSession{
		UserID: user, ExamType: "JAMB", Subject: "Mathematics",
		StartTime: time.Now(), Duration: 120, TotalQuestions: 1,
	})

	stats, err := s.Statistics()
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	want := model.Statistics{
		TotalUsers: 2, PremiumUsers: 1, TrialUsers: 1,
		TotalQuestions: 1, TotalSessions: 1, TotalCodes: 2, ActiveCodes: 1,
	}
	if stats != want {
		t.Errorf("Statistics = %+v, want %+v", stats, want)
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)

	hash, err := s.GetImportedFileHash("questions/jamb_math.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	if err := s.SetImportedFileHash("questions/jamb_math.json", "abc123"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	if err := s.SetImportedFileHash("questions/jamb_math.json", "def456"); err != nil {
		t.Fatalf("SetImportedFileHash upsert: %v", err)
	}

	hash, err = s.GetImportedFileHash("questions/jamb_math.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "def456" {
		t.Errorf("hash = %q, want def456", hash)
	}
}
