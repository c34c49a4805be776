package server

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func TestLoggingInterceptor(t *testing.T) {
	logger := zaptest.NewLogger(t)

	interceptor := LoggingInterceptor(logger)

	successHandler := func(ctx context.Context, req any) (any, error) {
		return "success", nil
	}

	info := &grpc.UnaryServerInfo{
		FullMethod: "/evaluation.v1.EvaluationAnalytics/ScoreSubmission",
	}

	t.Run("successful request", func(t *testing.T) {
		resp, err := interceptor(context.Background(), "test request", info, successHandler)
		if err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
		if resp != "success" {
			t.Errorf("Expected 'success', got %v", resp)
		}
	})

	for _, code := range []codes.Code{codes.InvalidArgument, codes.Internal} {
		t.Run("error request "+code.String(), func(t *testing.T) {
			handler := func(ctx context.Context, req any) (any, error) {
				return nil, status.Error(code, "test error")
			}

			_, err := interceptor(context.Background(), "test request", info, handler)
			if err == nil {
				t.Fatal("Expected an error, got nil")
			}

			st, ok := status.FromError(err)
			if !ok {
				t.Fatal("Expected gRPC status error")
			}
			if st.Code() != code {
				t.Errorf("Expected %v, got %v", code, st.Code())
			}
		})
	}
}

func TestRateLimitInterceptor(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 2)
	interceptor := RateLimitInterceptor(limiter, zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/TestMethod"}

	calls := 0
	handler := func(ctx context.Context, req any) (any, error) {
		calls++
		return "ok", nil
	}

	for i := 0; i < 2; i++ {
		if _, err := interceptor(context.Background(), nil, info, handler); err != nil {
			t.Fatalf("request %d within burst failed: %v", i, err)
		}
	}

	_, err := interceptor(context.Background(), nil, info, handler)
	if status.Code(err) != codes.ResourceExhausted {
		t.Errorf("Expected ResourceExhausted, got %v", err)
	}
	if calls != 2 {
		t.Errorf("Expected handler to run twice, ran %d times", calls)
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	interceptor := RecoveryInterceptor(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/TestMethod"}

	resp, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		panic("nil map write")
	})
	if resp != nil {
		t.Errorf("Expected nil response, got %v", resp)
	}
	if status.Code(err) != codes.Internal {
		t.Errorf("Expected Internal, got %v", err)
	}

	resp, err = interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return "fine", nil
	})
	if err != nil || resp != "fine" {
		t.Errorf("Expected pass-through, got %v, %v", resp, err)
	}
}

func TestNew_InvalidPort(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		if _, err := New(WithPort(port)); err == nil {
			t.Errorf("Expected error for port %d", port)
		}
	}
}

func TestServerBuilderWithLogging(t *testing.T) {
	logger := zaptest.NewLogger(t)
	lis := bufconn.Listen(1 << 20)

	server, err := New(
		WithListener(lis),
		WithLogger(logger),
		WithLogging(true),
		WithRateLimit(100, 10),
	)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			t.Logf("Server shutdown error: %v", err)
		}
	}()

	if server.grpcServer == nil {
		t.Error("gRPC server should not be nil")
	}
	if server.healthServer == nil {
		t.Error("Health server should not be nil")
	}
	if server.Addr() != lis.Addr() {
		t.Errorf("Expected server to use the supplied listener")
	}

	server.Start()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Failed to dial server: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	healthClient := healthpb.NewHealthClient(conn)
	resp, err := healthClient.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Health check failed: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("Expected SERVING status, got %v", resp.Status)
	}

	server.SetServiceHealth("evaluation.v1.EvaluationAnalytics", healthpb.HealthCheckResponse_NOT_SERVING)
	resp, err = healthClient.Check(ctx, &healthpb.HealthCheckRequest{Service: "evaluation.v1.EvaluationAnalytics"})
	if err != nil {
		t.Fatalf("Service health check failed: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("Expected NOT_SERVING status, got %v", resp.Status)
	}
}
