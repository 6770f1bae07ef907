package grpc_control

import (
	"fmt"
	"net"
	"time"

	"chain-observer/src/interfaces"
	"chain-observer/src/logger"
	"chain-observer/src/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// -----------------------------------------------------------------------------
// ControlService exposes a gRPC health listener (grpc.health.v1.Health) so
// orchestration can probe the process out-of-band. The serving status
// tracks upstream reachability from recent dispatch outcomes.
// -----------------------------------------------------------------------------

const healthCheckInterval = 5 * time.Second

type ControlService struct {
	Config *models.MConfig
	Logger *logger.Logger

	reporter interfaces.IHealthReporter

	server *grpc.Server
	health *health.Server
	stop   chan struct{}
}

// -----------------------------------------------------------------------------

func NewControlService(cfg *models.MConfig, reporter interfaces.IHealthReporter, log *logger.Logger) *ControlService {
	return &ControlService{
		Config:   cfg,
		Logger:   log,
		reporter: reporter,
		stop:     make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

func (s *ControlService) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.GrpcHost, s.Config.GrpcPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind grpc listener on %s: %w", addr, err)
	}

	s.server = grpc.NewServer()
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.server, s.health)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go s.monitor()
	go func() {
		s.Logger.Info("gRPC health listener on %s", addr)
		if err := s.server.Serve(lis); err != nil {
			s.Logger.Error("gRPC server stopped: %v", err)
		}
	}()

	return nil
}

// -----------------------------------------------------------------------------

// monitor flips the serving status when the upstream stops responding.
func (s *ControlService) monitor() {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if s.reporter == nil {
				continue
			}
			if s.reporter.UpstreamHealthy() {
				s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
			} else {
				s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
			}
		}
	}
}

// -----------------------------------------------------------------------------

func (s *ControlService) Stop() {
	close(s.stop)
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.server != nil {
		s.server.GracefulStop()
	}
}
