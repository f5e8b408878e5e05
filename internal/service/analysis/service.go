// Package analysis owns the console's live analysis session: the current
// visit, the camera and the pose stream.
package analysis

import (
	"context"
	"sync"

	"github.com/humanplus/posture-console/internal/camera"
	"github.com/humanplus/posture-console/internal/model"
	"github.com/humanplus/posture-console/internal/stream"
	apperrors "github.com/humanplus/posture-console/pkg/errors"
	"github.com/humanplus/posture-console/pkg/logger"
)

type Camera interface {
	Start(ctx context.Context) camera.Result
	Stop(ctx context.Context) camera.Result
}

type Stream interface {
	Disconnect()
	Reconnect(visitID string) error
	Status() stream.Status
}

type Visits interface {
	CreateVisit(ctx context.Context, req *model.CreateVisitRequest) (*model.Visit, error)
}

// Snapshot is the observable session state.
type Snapshot struct {
	Visit  *model.Visit   `json:"visit"`
	Stream stream.Status  `json:"stream"`
	Camera *camera.Result `json:"camera,omitempty"`
}

type Service struct {
	visits Visits
	camera Camera
	stream Stream
	log    *logger.Logger

	mu      sync.Mutex
	current *model.Visit
}

func NewService(visits Visits, cam Camera, st Stream, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{visits: visits, camera: cam, stream: st, log: log.With("analysis")}
}

// Start opens a visit, turns the camera on and connects the pose stream.
// A visit whose camera fails to start stays recorded as in progress.
func (s *Service) Start(ctx context.Context, req *model.CreateVisitRequest) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return nil, apperrors.Conflict("an analysis session is already running", nil)
	}

	v, err := s.visits.CreateVisit(ctx, req)
	if err != nil {
		return nil, err
	}

	cam := s.camera.Start(ctx)
	if !cam.Success {
		s.log.Warn("camera did not start", "visit_id", v.ID, "message", cam.Message)
		return nil, apperrors.Unavailable(cam.Message, nil)
	}

	// Reconnect restores the attempt budget a previous Stop exhausted.
	if err := s.stream.Reconnect(v.ID); err != nil {
		s.camera.Stop(ctx)
		return nil, apperrors.Internal(err)
	}

	s.current = v
	s.log.Info("analysis started", "visit_id", v.ID)
	return &Snapshot{Visit: v, Stream: s.stream.Status(), Camera: &cam}, nil
}

// Stop disconnects the stream and turns the camera off. Without a running
// session it only reports the current state.
func (s *Service) Stop(ctx context.Context) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return &Snapshot{Stream: s.stream.Status()}
	}

	s.stream.Disconnect()
	cam := s.camera.Stop(ctx)
	if !cam.Success {
		s.log.Warn("camera did not stop", "visit_id", s.current.ID, "message", cam.Message)
	}
	s.log.Info("analysis stopped", "visit_id", s.current.ID)

	snap := &Snapshot{Visit: s.current, Stream: s.stream.Status(), Camera: &cam}
	s.current = nil
	return snap
}

// Reconnect restarts the stream of the running session with a fresh
// attempt budget.
func (s *Service) Reconnect(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil, apperrors.BadRequest("no analysis session is running", nil)
	}
	if err := s.stream.Reconnect(s.current.ID); err != nil {
		return nil, apperrors.Internal(err)
	}
	return &Snapshot{Visit: s.current, Stream: s.stream.Status()}, nil
}

func (s *Service) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Snapshot{Visit: s.current, Stream: s.stream.Status()}
}
