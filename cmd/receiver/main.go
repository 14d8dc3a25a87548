package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/api"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/config"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/health"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/receiver"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/renderstreaming"
	"github.com/RenatoCabral2022/renderstreaming-receiver/internal/serverconfig"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()
	if err := serverconfig.ValidateServerURL(cfg.ServerURL); err != nil {
		logger.Fatal("invalid SERVER_URL", zap.Error(err))
	}
	logger.Info("render-streaming receiver starting",
		zap.String("server", cfg.ServerURL),
		zap.String("listen", cfg.ListenAddr),
		zap.String("grpc", cfg.GRPCAddr),
		zap.Int("slots", cfg.Slots),
		zap.Bool("codecPreferences", cfg.CodecPrefs),
	)

	rtcAPI, err := renderstreaming.NewAPI(logger)
	if err != nil {
		logger.Fatal("failed to create webrtc api", zap.Error(err))
	}

	hs := health.New(cfg.Slots)
	ctrl := receiver.NewController(cfg, receiver.Deps{
		Config:    serverconfig.NewClient(cfg.ServerURL),
		Signaling: receiver.NewSignalingFactory(cfg.ServerURL, cfg.PollInterval, logger),
		Sessions:  receiver.NewSessionFactory(rtcAPI, logger),
		Health:    hs,
	}, logger)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      api.NewRouter(ctrl, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
	}
	grpcServer := grpc.NewServer()
	hs.Register(grpcServer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("control API listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		logger.Info("health service listening", zap.String("addr", cfg.GRPCAddr))
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		if err := ctrl.Setup(ctx); err != nil {
			// No retry: the receiver stays up but NOT_SERVING.
			logger.Error("bootstrap failed", zap.Error(err))
			return nil
		}
		if len(cfg.AutoPlay) > 0 {
			if err := ctrl.AutoPlay(ctx, cfg.AutoPlay); err != nil {
				logger.Warn("auto play failed", zap.Error(err))
			}
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := ctrl.Shutdown(shutdownCtx); err != nil {
			logger.Warn("session shutdown", zap.Error(err))
		}
		hs.Shutdown()
		grpcServer.GracefulStop()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("receiver stopped", zap.Error(err))
		os.Exit(1)
	}
}
