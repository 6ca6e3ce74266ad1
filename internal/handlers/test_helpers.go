package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/warden/internal/auth"
	"github.com/BradenHooton/warden/internal/models"
	"github.com/BradenHooton/warden/internal/services"
	pkghttp "github.com/BradenHooton/warden/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithClientContext attaches cc to the request as ClientContextMiddleware would
func WithClientContext(req *http.Request, cc *auth.ClientContext) *http.Request {
	return req.WithContext(auth.WithClientContext(req.Context(), cc))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAccountService implements AccountServiceInterface for testing
type MockAccountService struct {
	RegisterFunc       func(ctx context.Context, kind, loginIdentifier, password, name string) (*models.Account, error)
	ChangePasswordFunc func(ctx context.Context, owner services.LoggedInUserProvider, newPassword, confirmPassword, oldPassword string) error
}

func (m *MockAccountService) Register(ctx context.Context, kind, loginIdentifier, password, name string) (*models.Account, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrDuplicateLoginIdentifier
	}
	return m.RegisterFunc(ctx, kind, loginIdentifier, password, name)
}

func (m *MockAccountService) ChangePassword(ctx context.Context, owner services.LoggedInUserProvider, newPassword, confirmPassword, oldPassword string) error {
	if m.ChangePasswordFunc == nil {
		return models.ErrNotAccountOwner
	}
	return m.ChangePasswordFunc(ctx, owner, newPassword, confirmPassword, oldPassword)
}
