package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/reclaim/backend/internal/database/dbtest"
	"github.com/reclaim/backend/internal/models"
	"github.com/reclaim/backend/internal/queue"
	"github.com/reclaim/backend/internal/services/complaint"
	"github.com/reclaim/backend/internal/services/wise"
	"github.com/reclaim/backend/internal/store"
	"github.com/reclaim/backend/internal/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testTransferID = int64(9001)

// jpegHeader is enough of a JPEG for content sniffing
var jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

// MockTransferGateway is a mock implementation of complaint.TransferGateway
type MockTransferGateway struct {
	mock.Mock
}

func (m *MockTransferGateway) CreateRecipientAccount(ctx context.Context, fullName, iban string) (int64, error) {
	args := m.Called(ctx, fullName, iban)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransferGateway) CreateQuote(ctx context.Context, amount decimal.Decimal) (uuid.UUID, error) {
	args := m.Called(ctx, amount)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockTransferGateway) CreateTransfer(ctx context.Context, targetAccountID int64, quoteID uuid.UUID) (int64, error) {
	args := m.Called(ctx, targetAccountID, quoteID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransferGateway) FundTransfer(ctx context.Context, transferID int64) error {
	return m.Called(ctx, transferID).Error(0)
}

func (m *MockTransferGateway) CancelTransfer(ctx context.Context, transferID int64) error {
	return m.Called(ctx, transferID).Error(0)
}

type stubUploader struct{}

func (stubUploader) UploadObject(ctx context.Context, data []byte, key, contentType string) (string, error) {
	return "https://photos.s3.amazonaws.com/" + key, nil
}

type stubNotifier struct{}

func (stubNotifier) SendEmail(ctx context.Context, subject, body string, recipients []string) error {
	return nil
}

type testServer struct {
	router     *gin.Engine
	users      *store.UserStore
	complaints *store.ComplaintStore
	gateway    *MockTransferGateway
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := dbtest.New(t)

	users := store.NewUserStore(db)
	complaints := store.NewComplaintStore(db)
	gateway := new(MockTransferGateway)
	svc := complaint.NewService(
		complaints,
		store.NewTransactionStore(db),
		users,
		gateway,
		stubUploader{},
		stubNotifier{},
		complaint.Options{GatewayTimeout: time.Second},
	)

	router := gin.New()
	SetupRoutes(router, Dependencies{
		Users:      users,
		Complaints: svc,
		JWTSecret:  "test-secret",
		TokenTTL:   time.Hour,
	})
	return &testServer{router: router, users: users, complaints: complaints, gateway: gateway}
}

func (s *testServer) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	form := url.Values{"username": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := s.do(req, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var token utils.Token
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &token))
	return token.AccessToken
}

func (s *testServer) seedUser(t *testing.T, email, password string, role models.Role) *models.User {
	t.Helper()
	hash, err := utils.HashPassword(password)
	require.NoError(t, err)
	user := &models.User{Email: email, FirstName: "Seed", LastName: "User", Role: role, PasswordHash: hash}
	require.NoError(t, s.users.Create(context.Background(), user))
	return user
}

func complaintForm(t *testing.T, title, amount string, photo []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("title", title))
	require.NoError(t, writer.WriteField("description", "Water everywhere"))
	require.NoError(t, writer.WriteField("amount", amount))
	part, err := writer.CreateFormFile("photo", "pipe.jpg")
	require.NoError(t, err)
	_, err = part.Write(photo)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/complaints", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeComplaint(t *testing.T, w *httptest.ResponseRecorder) models.Complaint {
	t.Helper()
	var c models.Complaint
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))
	return c
}

func TestComplaintLifecycleEndToEnd(t *testing.T) {
	s := newTestServer(t)

	// complainer registers with an IBAN
	register := `{"email":"Ada@Example.com","password":"analytical-engine-1","first_name":"Ada","last_name":"Lovelace","iban":"DE89 3704 0044 0532 0130 00"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", strings.NewReader(register))
	req.Header.Set("Content-Type", "application/json")
	w := s.do(req, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "password")

	// admin promotes a second user to approver
	s.seedUser(t, "root@example.com", "rootpass-123", models.RoleAdmin)
	reviewer := s.seedUser(t, "grace@example.com", "cobol-rules-1", models.RoleComplainer)
	adminToken := s.login(t, "root@example.com", "rootpass-123")
	w = s.do(httptest.NewRequest(http.MethodPut, fmt.Sprintf("/api/v1/users/%d/make-approver", reviewer.ID), nil), adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	complainerToken := s.login(t, "ada@example.com", "analytical-engine-1")
	approverToken := s.login(t, "grace@example.com", "cobol-rules-1")

	s.gateway.On("CreateRecipientAccount", mock.Anything, "Ada Lovelace", "DE89370400440532013000").Return(int64(7001), nil)
	s.gateway.On("CreateQuote", mock.Anything, mock.Anything).Return(uuid.New(), nil)
	s.gateway.On("CreateTransfer", mock.Anything, int64(7001), mock.Anything).Return(testTransferID, nil)
	s.gateway.On("FundTransfer", mock.Anything, testTransferID).Return(nil).Once()

	// complaint is filed
	w = s.do(complaintForm(t, "Broken pipe", "120.50", jpegHeader), complainerToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeComplaint(t, w)
	assert.Equal(t, models.ComplaintStatusPending, created.Status)
	assert.True(t, created.Amount.Equal(decimal.RequireFromString("120.50")))
	assert.True(t, strings.HasSuffix(created.PhotoURL, ".jpg"))
	s.gateway.AssertNumberOfCalls(t, "CreateTransfer", 1)

	// the complainer cannot review it
	approvePath := fmt.Sprintf("/api/v1/complaints/%d/approve", created.ID)
	w = s.do(httptest.NewRequest(http.MethodPut, approvePath, nil), complainerToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "User does not have enough privileges")

	// approval funds the transfer
	w = s.do(httptest.NewRequest(http.MethodPut, approvePath, nil), approverToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.ComplaintStatusApproved, decodeComplaint(t, w).Status)
	s.gateway.AssertNumberOfCalls(t, "FundTransfer", 1)

	// a later rejection is refused and changes nothing
	w = s.do(httptest.NewRequest(http.MethodPut, fmt.Sprintf("/api/v1/complaints/%d/reject", created.ID), nil), approverToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	s.gateway.AssertNotCalled(t, "CancelTransfer", mock.Anything, mock.Anything)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/complaints?status=approved", nil), complainerToken)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []models.Complaint
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, models.ComplaintStatusApproved, listed[0].Status)

	// admin deletes it
	deletePath := fmt.Sprintf("/api/v1/complaints/%d", created.ID)
	w = s.do(httptest.NewRequest(http.MethodDelete, deletePath, nil), adminToken)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(httptest.NewRequest(http.MethodDelete, deletePath, nil), adminToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApproveAlreadyFundedReturnsBadRequest(t *testing.T) {
	s := newTestServer(t)
	complainer := s.seedUser(t, "ada@example.com", "analytical-engine-1", models.RoleComplainer)
	iban := "DE89370400440532013000"
	_, err := s.users.UpdateProfile(context.Background(), complainer.ID, store.ProfileUpdate{IBAN: &iban})
	require.NoError(t, err)
	s.seedUser(t, "grace@example.com", "cobol-rules-1", models.RoleApprover)

	s.gateway.On("CreateRecipientAccount", mock.Anything, mock.Anything, mock.Anything).Return(int64(1), nil)
	s.gateway.On("CreateQuote", mock.Anything, mock.Anything).Return(uuid.New(), nil)
	s.gateway.On("CreateTransfer", mock.Anything, mock.Anything, mock.Anything).Return(testTransferID, nil)
	s.gateway.On("FundTransfer", mock.Anything, testTransferID).Return(fmt.Errorf("%w: transfer 9001", wise.ErrAlreadyFunded))

	w := s.do(complaintForm(t, "Leak", "10", jpegHeader), s.login(t, "ada@example.com", "analytical-engine-1"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeComplaint(t, w)

	approverToken := s.login(t, "grace@example.com", "cobol-rules-1")
	w = s.do(httptest.NewRequest(http.MethodPut, fmt.Sprintf("/api/v1/complaints/%d/approve", created.ID), nil), approverToken)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "transaction already approved")
}

func TestListComplaintsPageSize(t *testing.T) {
	s := newTestServer(t)
	complainer := s.seedUser(t, "ada@example.com", "analytical-engine-1", models.RoleComplainer)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.complaints.Create(context.Background(), &models.Complaint{
			Title:        "Leak",
			PhotoURL:     "https://photos.s3.amazonaws.com/leak.jpg",
			Amount:       decimal.NewFromInt(10),
			ComplainerID: complainer.ID,
		}))
	}
	token := s.login(t, "ada@example.com", "analytical-engine-1")

	tests := []struct {
		query string
		count int
	}{
		{"", 3},
		{"?limit=0", 0},
		{"?limit=2", 2},
		{"?skip=2&limit=100", 1},
	}

	for _, tt := range tests {
		t.Run("complaints"+tt.query, func(t *testing.T) {
			w := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/complaints"+tt.query, nil), token)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var listed []models.Complaint
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
			assert.NotNil(t, listed)
			assert.Len(t, listed, tt.count)
		})
	}
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t)
	complainer := s.seedUser(t, "ada@example.com", "analytical-engine-1", models.RoleComplainer)
	iban := "DE89370400440532013000"
	_, err := s.users.UpdateProfile(context.Background(), complainer.ID, store.ProfileUpdate{IBAN: &iban})
	require.NoError(t, err)
	s.seedUser(t, "grace@example.com", "cobol-rules-1", models.RoleApprover)
	token := s.login(t, "ada@example.com", "analytical-engine-1")
	approverToken := s.login(t, "grace@example.com", "cobol-rules-1")

	tests := []struct {
		name   string
		req    *http.Request
		token  string
		status int
	}{
		{"no token", httptest.NewRequest(http.MethodGet, "/api/v1/complaints", nil), "", http.StatusForbidden},
		{"limit too large", httptest.NewRequest(http.MethodGet, "/api/v1/complaints?limit=101", nil), token, http.StatusBadRequest},
		{"bad status", httptest.NewRequest(http.MethodGet, "/api/v1/complaints?status=archived", nil), token, http.StatusBadRequest},
		{"bad amount", complaintForm(t, "Leak", "ten", jpegHeader), token, http.StatusBadRequest},
		{"not an image", complaintForm(t, "Leak", "10", []byte("plain text")), token, http.StatusBadRequest},
		{"missing complaint", httptest.NewRequest(http.MethodPut, "/api/v1/complaints/404/approve", nil), approverToken, http.StatusNotFound},
		{"bad id", httptest.NewRequest(http.MethodPut, "/api/v1/complaints/abc/approve", nil), approverToken, http.StatusBadRequest},
		{"users list is admin only", httptest.NewRequest(http.MethodGet, "/api/v1/users", nil), token, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(tt.req, tt.token)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	s.gateway.AssertNotCalled(t, "CreateRecipientAccount", mock.Anything, mock.Anything, mock.Anything)
}

func TestLoginAndRegistrationErrors(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "ada@example.com", "analytical-engine-1", models.RoleComplainer)

	form := url.Values{"username": {"ada@example.com"}, "password": {"wrong-password-1"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusUnauthorized, s.do(req, "").Code)

	register := `{"email":"ada@example.com","password":"another-pass-2","first_name":"Ada","last_name":"L"}`
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/register", strings.NewReader(register))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusConflict, s.do(req, "").Code)

	register = `{"email":"ada.example.com","password":"another-pass-2","first_name":"Ada","last_name":"L"}`
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/register", strings.NewReader(register))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, s.do(req, "").Code)

	token := s.login(t, "ada@example.com", "analytical-engine-1")
	w := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil), token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"ada@example.com"`)
}

func TestHealthReportsNotificationBacklog(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	redisQueue := queue.NewRedisClient(client)
	notifications := queue.NewNotificationQueue(redisQueue, queue.DefaultMaxRetries)
	require.NoError(t, notifications.SendEmail(context.Background(), "s", "b", []string{"ada@example.com"}))

	router := gin.New()
	SetupRoutes(router, Dependencies{Queue: redisQueue, JWTSecret: "test-secret", TokenTTL: time.Hour})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"status":"ok","notifications":{"queue":"notifications","waiting":1,"delayed":0,"failed":0}}`, w.Body.String())

	mr.Close()
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
