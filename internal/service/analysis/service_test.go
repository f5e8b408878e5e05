package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/humanplus/posture-console/internal/camera"
	"github.com/humanplus/posture-console/internal/model"
	"github.com/humanplus/posture-console/internal/stream"
	apperrors "github.com/humanplus/posture-console/pkg/errors"
)

type MockCamera struct {
	mock.Mock
}

func (m *MockCamera) Start(ctx context.Context) camera.Result {
	return m.Called(ctx).Get(0).(camera.Result)
}

func (m *MockCamera) Stop(ctx context.Context) camera.Result {
	return m.Called(ctx).Get(0).(camera.Result)
}

type MockStream struct {
	mock.Mock
}

func (m *MockStream) Disconnect() {
	m.Called()
}

func (m *MockStream) Reconnect(visitID string) error {
	return m.Called(visitID).Error(0)
}

func (m *MockStream) Status() stream.Status {
	return m.Called().Get(0).(stream.Status)
}

type MockVisits struct {
	mock.Mock
}

func (m *MockVisits) CreateVisit(ctx context.Context, req *model.CreateVisitRequest) (*model.Visit, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Visit), args.Error(1)
}

func setupService() (*Service, *MockVisits, *MockCamera, *MockStream) {
	v, c, s := &MockVisits{}, &MockCamera{}, &MockStream{}
	return NewService(v, c, s, nil), v, c, s
}

var startReq = &model.CreateVisitRequest{PatientID: "p1", OperatorID: "op-1", AnalysisType: model.AnalysisPostural}

func TestService_Start(t *testing.T) {
	svc, visits, cam, st := setupService()
	ctx := context.Background()
	visit := &model.Visit{ID: "v1", PatientID: "p1", Status: model.VisitStatusInProgress}

	visits.On("CreateVisit", ctx, startReq).Return(visit, nil)
	cam.On("Start", ctx).Return(camera.Result{Success: true, Message: "ok"})
	st.On("Reconnect", "v1").Return(nil)
	st.On("Status").Return(stream.Status{State: stream.StateConnecting, VisitID: "v1"})

	snap, err := svc.Start(ctx, startReq)
	require.NoError(t, err)
	assert.Equal(t, "v1", snap.Visit.ID)
	assert.Equal(t, stream.StateConnecting, snap.Stream.State)
	assert.True(t, snap.Camera.Success)

	_, err = svc.Start(ctx, startReq)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrConflict, appErr.Code)

	visits.AssertNumberOfCalls(t, "CreateVisit", 1)
	st.AssertExpectations(t)
}

func TestService_StartCameraFailure(t *testing.T) {
	svc, visits, cam, st := setupService()
	ctx := context.Background()

	visits.On("CreateVisit", ctx, startReq).Return(&model.Visit{ID: "v1"}, nil)
	cam.On("Start", ctx).Return(camera.Result{Message: "Camera già in uso"})

	_, err := svc.Start(ctx, startReq)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrUnavailable, appErr.Code)
	assert.Equal(t, "Camera già in uso", appErr.Message)
	st.AssertNotCalled(t, "Reconnect", mock.Anything)

	st.On("Status").Return(stream.Status{})
	assert.Nil(t, svc.Snapshot().Visit)
}

func TestService_StartVisitFailure(t *testing.T) {
	svc, visits, cam, _ := setupService()
	ctx := context.Background()
	visits.On("CreateVisit", ctx, startReq).Return(nil, apperrors.BadRequest("patient id is required", nil))

	_, err := svc.Start(ctx, startReq)
	assert.Error(t, err)
	cam.AssertNotCalled(t, "Start", mock.Anything)
}

func TestService_StartStreamFailureStopsCamera(t *testing.T) {
	svc, visits, cam, st := setupService()
	ctx := context.Background()
	visits.On("CreateVisit", ctx, startReq).Return(&model.Visit{ID: "v1"}, nil)
	cam.On("Start", ctx).Return(camera.Result{Success: true})
	cam.On("Stop", ctx).Return(camera.Result{Success: true})
	st.On("Reconnect", "v1").Return(errors.New("bad url"))

	_, err := svc.Start(ctx, startReq)
	assert.Error(t, err)
	cam.AssertCalled(t, "Stop", ctx)
}

func TestService_Stop(t *testing.T) {
	svc, visits, cam, st := setupService()
	ctx := context.Background()
	visits.On("CreateVisit", ctx, startReq).Return(&model.Visit{ID: "v1"}, nil)
	cam.On("Start", ctx).Return(camera.Result{Success: true})
	cam.On("Stop", ctx).Return(camera.Result{Success: true, Message: "stopped"})
	st.On("Reconnect", "v1").Return(nil)
	st.On("Disconnect").Return()
	st.On("Status").Return(stream.Status{State: stream.StateClosedClean})

	_, err := svc.Start(ctx, startReq)
	require.NoError(t, err)

	snap := svc.Stop(ctx)
	assert.Equal(t, "v1", snap.Visit.ID)
	assert.Equal(t, "stopped", snap.Camera.Message)
	st.AssertCalled(t, "Disconnect")

	// Stopping again only reports state.
	snap = svc.Stop(ctx)
	assert.Nil(t, snap.Visit)
	st.AssertNumberOfCalls(t, "Disconnect", 1)
}

func TestService_Reconnect(t *testing.T) {
	svc, visits, cam, st := setupService()
	ctx := context.Background()

	_, err := svc.Reconnect(ctx)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)

	visits.On("CreateVisit", ctx, startReq).Return(&model.Visit{ID: "v1"}, nil)
	cam.On("Start", ctx).Return(camera.Result{Success: true})
	st.On("Reconnect", "v1").Return(nil)
	st.On("Status").Return(stream.Status{State: stream.StateConnecting})

	_, err = svc.Start(ctx, startReq)
	require.NoError(t, err)

	snap, err := svc.Reconnect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", snap.Visit.ID)
	st.AssertNumberOfCalls(t, "Reconnect", 2)
}
