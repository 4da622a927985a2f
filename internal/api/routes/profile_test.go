package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"Ensign/internal/core/profiles"
)

// MockProfileService is a mock implementation of profiles.ProfileService
type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) ResolveIdentifier(ctx context.Context, raw string) (*profiles.Resolution, error) {
	args := m.Called(ctx, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*profiles.Resolution), args.Error(1)
}

func (m *MockProfileService) FetchProfile(ctx context.Context, identifier string) (*profiles.Profile, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*profiles.Profile), args.Error(1)
}

func (m *MockProfileService) UpdateProfile(ctx context.Context, address, nameHint string) error {
	args := m.Called(ctx, address, nameHint)
	return args.Error(0)
}

func (m *MockProfileService) IsFresh(updatedAt int64) bool {
	args := m.Called(updatedAt)
	return args.Bool(0)
}

const testAddr = "0x00000000000000000000000000000000deadbeef"

func newTestRouter(svc profiles.ProfileService) http.Handler {
	r := chi.NewRouter()
	RegisterProfileRoutes(r, svc)
	return r
}

func TestGetProfile_InvalidIdentifier(t *testing.T) {
	mockSvc := new(MockProfileService)
	mockSvc.On("ResolveIdentifier", mock.Anything, "nonsense").Return(&profiles.Resolution{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/nonsense", nil)
	rec := httptest.NewRecorder()
	newTestRouter(mockSvc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Invalid address or name", body["error"])

	mockSvc.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetProfile_FreshCacheServedWithoutRefresh(t *testing.T) {
	mockSvc := new(MockProfileService)

	cached := &profiles.Profile{
		Address:   testAddr,
		Name:      "alice.eth",
		Data:      profiles.ProfileData{Avatar: "https://img.example/a.png"},
		UpdatedAt: time.Now().Unix(),
	}
	mockSvc.On("ResolveIdentifier", mock.Anything, "alice.eth").Return(&profiles.Resolution{
		Address: testAddr,
		Name:    "alice.eth",
		Profile: cached,
		Fresh:   true,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/alice.eth", nil)
	rec := httptest.NewRecorder()
	newTestRouter(mockSvc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var got profiles.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, *cached, got)

	// Fresh hit: no refresh, no re-fetch
	mockSvc.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything, mock.Anything)
	mockSvc.AssertNotCalled(t, "FetchProfile", mock.Anything, mock.Anything)
}

func TestGetProfile_StaleCacheTriggersOneRefresh(t *testing.T) {
	mockSvc := new(MockProfileService)

	stale := &profiles.Profile{Address: testAddr, Name: "alice.eth", UpdatedAt: 1}
	refreshed := &profiles.Profile{Address: testAddr, Name: "alice.eth", UpdatedAt: time.Now().Unix()}

	mockSvc.On("ResolveIdentifier", mock.Anything, testAddr).Return(&profiles.Resolution{
		Address: testAddr,
		Name:    "alice.eth",
		Profile: stale,
		Fresh:   false,
	}, nil)
	mockSvc.On("UpdateProfile", mock.Anything, testAddr, "alice.eth").Return(nil).Once()
	mockSvc.On("FetchProfile", mock.Anything, testAddr).Return(refreshed, nil)

	req := httptest.NewRequest(http.MethodGet, "/"+testAddr, nil)
	rec := httptest.NewRecorder()
	newTestRouter(mockSvc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var got profiles.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, *refreshed, got)

	mockSvc.AssertExpectations(t)
	mockSvc.AssertNumberOfCalls(t, "UpdateProfile", 1)
}

func TestGetProfile_UncachedIdentifierRefreshes(t *testing.T) {
	mockSvc := new(MockProfileService)

	refreshed := &profiles.Profile{Address: testAddr, Name: "alice.eth", UpdatedAt: time.Now().Unix()}

	mockSvc.On("ResolveIdentifier", mock.Anything, "alice.eth").Return(&profiles.Resolution{
		Address: testAddr,
		Name:    "alice.eth",
	}, nil)
	mockSvc.On("UpdateProfile", mock.Anything, testAddr, "alice.eth").Return(nil)
	mockSvc.On("FetchProfile", mock.Anything, testAddr).Return(refreshed, nil)

	req := httptest.NewRequest(http.MethodGet, "/alice.eth", nil)
	rec := httptest.NewRecorder()
	newTestRouter(mockSvc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	mockSvc.AssertExpectations(t)
}

func TestGetProfile_RefreshFailureIsServerError(t *testing.T) {
	mockSvc := new(MockProfileService)

	mockSvc.On("ResolveIdentifier", mock.Anything, testAddr).Return(&profiles.Resolution{
		Address: testAddr,
	}, nil)
	mockSvc.On("UpdateProfile", mock.Anything, testAddr, "").Return(errors.New("rpc unreachable"))

	req := httptest.NewRequest(http.MethodGet, "/"+testAddr, nil)
	rec := httptest.NewRecorder()
	newTestRouter(mockSvc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPostProfile_AlwaysRefreshes(t *testing.T) {
	mockSvc := new(MockProfileService)

	cached := &profiles.Profile{Address: testAddr, Name: "alice.eth", UpdatedAt: time.Now().Unix()}
	refreshed := &profiles.Profile{Address: testAddr, Name: "alice.eth", UpdatedAt: time.Now().Unix() + 1}

	// Even a fresh cached row must be refreshed on POST
	mockSvc.On("ResolveIdentifier", mock.Anything, "alice.eth").Return(&profiles.Resolution{
		Address: testAddr,
		Name:    "alice.eth",
		Profile: cached,
		Fresh:   true,
	}, nil)
	mockSvc.On("UpdateProfile", mock.Anything, testAddr, "alice.eth").Return(nil).Once()
	mockSvc.On("FetchProfile", mock.Anything, testAddr).Return(refreshed, nil)

	req := httptest.NewRequest(http.MethodPost, "/alice.eth", nil)
	rec := httptest.NewRecorder()
	newTestRouter(mockSvc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var got profiles.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, *refreshed, got)

	mockSvc.AssertExpectations(t)
	mockSvc.AssertNumberOfCalls(t, "UpdateProfile", 1)
}

func TestPostProfile_InvalidIdentifier(t *testing.T) {
	mockSvc := new(MockProfileService)
	mockSvc.On("ResolveIdentifier", mock.Anything, "nonsense").Return(&profiles.Resolution{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/nonsense", nil)
	rec := httptest.NewRecorder()
	newTestRouter(mockSvc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	mockSvc.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything, mock.Anything)
}
