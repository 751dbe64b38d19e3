// Package client is a Go client for the platform API. Session state lives in
// an explicit TokenStore handed to the client, not in package globals, so a
// caller can swap persistent storage for an in-memory one in tests.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prepstack/prepstack/internal/model"
)

// TokenStore holds the bearer token between calls.
type TokenStore interface {
	Token() (string, error)
	SetToken(token string) error
	Clear() error
}

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client calls the platform API.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenStore
}

// New creates a client. A nil store defaults to an in-memory one.
func New(baseURL string, tokens TokenStore) *Client {
	if tokens == nil {
		tokens = NewMemoryStore()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
	}
}

// AuthResult is the server's response to register and login.
type AuthResult struct {
	Message string     `json:"message"`
	Token   string     `json:"token"`
	User    model.User `json:"user"`
}

// Profile pairs the account with its current access evaluation.
type Profile struct {
	User   model.User   `json:"user"`
	Access model.Access `json:"access"`
}

// StartedExam is the server's response to starting a session.
type StartedExam struct {
	SessionID int64                `json:"sessionId"`
	Questions []model.ExamQuestion `json:"questions"`
	Duration  int                  `json:"duration"`
	ExamType  string               `json:"examType"`
	Subject   string               `json:"subject"`
}

// SubmitResult is the server's response to an answer submission.
type SubmitResult struct {
	Message   string `json:"message"`
	IsCorrect bool   `json:"isCorrect"`
}

// ExamResult is the server's response to completing a session.
type ExamResult struct {
	Score          int                  `json:"score"`
	TotalQuestions int                  `json:"totalQuestions"`
	Percentage     string               `json:"percentage"`
	Results        []model.AnswerResult `json:"results"`
}

// UnlockResult is the server's response to redeeming a code.
type UnlockResult struct {
	Message          string    `json:"message"`
	PremiumExpiresAt time.Time `json:"premiumExpiresAt"`
}

// Register creates an account and stores the returned session token.
func (c *Client) Register(ctx context.Context, fullName, email, phone, password string) (*AuthResult, error) {
	var out AuthResult
	err := c.do(ctx, http.MethodPost, "/api/auth/register", nil, map[string]string{
		"fullName": fullName,
		"email":    email,
		"phone":    phone,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	if err := c.tokens.SetToken(out.Token); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	return &out, nil
}

// Login authenticates and stores the returned session token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	if err := c.tokens.SetToken(out.Token); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	return &out, nil
}

// Logout drops the stored session token. Purely client-side; bearer tokens
// are not revocable server-side before they expire.
func (c *Client) Logout() error {
	return c.tokens.Clear()
}

// Profile fetches the account and its access evaluation.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var out Profile
	if err := c.do(ctx, http.MethodGet, "/api/auth/profile", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Unlock redeems an unlock code for premium access.
func (c *Client) Unlock(ctx context.Context, code string) (*UnlockResult, error) {
	var out UnlockResult
	err := c.do(ctx, http.MethodPost, "/api/auth/unlock", nil, map[string]string{"code": code}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ExamTypes lists the exam types available in the catalog.
func (c *Client) ExamTypes(ctx context.Context) ([]string, error) {
	var out struct {
		ExamTypes []string `json:"examTypes"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/exams/types", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.ExamTypes, nil
}

// Subjects lists the subjects available for an exam type.
func (c *Client) Subjects(ctx context.Context, examType string) ([]string, error) {
	var out struct {
		Subjects []string `json:"subjects"`
	}
	q := url.Values{"examType": {examType}}
	if err := c.do(ctx, http.MethodGet, "/api/exams/subjects", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Subjects, nil
}

// Years lists the years available for an exam type and subject.
func (c *Client) Years(ctx context.Context, examType, subject string) ([]int, error) {
	var out struct {
		Years []int `json:"years"`
	}
	q := url.Values{"examType": {examType}, "subject": {subject}}
	if err := c.do(ctx, http.MethodGet, "/api/exams/years", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Years, nil
}

// StartExam opens a new exam session. year and count of 0 use the server
// defaults (any year, 40 questions).
func (c *Client) StartExam(ctx context.Context, examType, subject string, year, count int) (*StartedExam, error) {
	var out StartedExam
	body := map[string]any{"examType": examType, "subject": subject}
	if year != 0 {
		body["year"] = year
	}
	if count != 0 {
		body["numberOfQuestions"] = count
	}
	if err := c.do(ctx, http.MethodPost, "/api/exams/start", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitAnswer records an answer for one question; resubmitting overwrites.
func (c *Client) SubmitAnswer(ctx context.Context, sessionID, questionID int64, selected string, markedForReview bool) (*SubmitResult, error) {
	var out SubmitResult
	err := c.do(ctx, http.MethodPost, "/api/exams/submit-answer", nil, map[string]any{
		"sessionId":       sessionID,
		"questionId":      questionID,
		"selectedAnswer":  selected,
		"markedForReview": markedForReview,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteExam finalizes a session and returns the scored results.
func (c *Client) CompleteExam(ctx context.Context, sessionID int64) (*ExamResult, error) {
	var out ExamResult
	err := c.do(ctx, http.MethodPost, "/api/exams/complete", nil, map[string]any{
		"sessionId": sessionID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateCodes asks the server to mint unlock codes (admin only).
func (c *Client) GenerateCodes(ctx context.Context, quantity, durationMonths int) ([]string, error) {
	var out struct {
		Codes []string `json:"codes"`
	}
	err := c.do(ctx, http.MethodPost, "/api/admin/codes", nil, map[string]int{
		"quantity": quantity,
		"duration": durationMonths,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Codes, nil
}

// ListCodes fetches all unlock codes with redemption details (admin only).
func (c *Client) ListCodes(ctx context.Context) ([]model.UnlockCode, error) {
	var out struct {
		Codes []model.UnlockCode `json:"codes"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/admin/codes", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Codes, nil
}

// DeleteCode removes an unused unlock code (admin only).
func (c *Client) DeleteCode(ctx context.Context, codeID int64) error {
	path := "/api/admin/codes/" + strconv.FormatInt(codeID, 10)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// UploadQuestions adds a batch of questions to the catalog (admin only).
func (c *Client) UploadQuestions(ctx context.Context, questions []model.QuestionImport) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	err := c.do(ctx, http.MethodPost, "/api/admin/questions", nil, map[string]any{
		"questions": questions,
	}, &out)
	if err != nil {
		return 0, err
	}
	return out.Count, nil
}

// DeleteQuestion removes a question from the catalog (admin only).
func (c *Client) DeleteQuestion(ctx context.Context, questionID int64) error {
	path := "/api/admin/questions/" + strconv.FormatInt(questionID, 10)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// ListUsers fetches all registered users (admin only).
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var out struct {
		Users []model.User `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/admin/users", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// Statistics fetches the aggregate platform counts (admin only).
func (c *Client) Statistics(ctx context.Context) (*model.Statistics, error) {
	var out model.Statistics
	if err := c.do(ctx, http.MethodGet, "/api/admin/statistics", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GrantPremium grants premium access by admin override (admin only).
func (c *Client) GrantPremium(ctx context.Context, userID int64, months int) error {
	path := "/api/admin/users/" + strconv.FormatInt(userID, 10) + "/premium"
	return c.do(ctx, http.MethodPost, path, nil, map[string]int{"months": months}, nil)
}

// RevokePremium clears a user's premium access (admin only).
func (c *Client) RevokePremium(ctx context.Context, userID int64) error {
	path := "/api/admin/users/" + strconv.FormatInt(userID, 10) + "/premium"
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// RecentActivity fetches the latest exam sessions (admin only).
func (c *Client) RecentActivity(ctx context.Context) ([]model.ExamSession, error) {
	var out struct {
		Sessions []model.ExamSession `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/admin/recent-activity", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error == "" {
			errBody.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: errBody.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
