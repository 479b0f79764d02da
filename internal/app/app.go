// Package app assembles the services from their parts.
package app

import (
	"go.uber.org/zap"

	"radiorec/internal/app/bus"
	"radiorec/internal/app/recorder"
	"radiorec/internal/app/repository"
	"radiorec/internal/app/scheduler"
	"radiorec/internal/config"
)

// NewStore opens the configured job store. Used by the one-shot commands
// that only need persistence and a bus connection.
func NewStore(cfg *config.Config) (repository.Store, error) {
	return provideStore(cfg)
}

// SchedulerApp is the assembled schedule coordinator service.
type SchedulerApp struct {
	Coordinator *scheduler.Coordinator
	Bus         *bus.Bus
	Store       repository.Store
	Logger      *zap.Logger
}

func NewSchedulerApp(coordinator *scheduler.Coordinator, mbus *bus.Bus, store repository.Store, logger *zap.Logger) *SchedulerApp {
	return &SchedulerApp{Coordinator: coordinator, Bus: mbus, Store: store, Logger: logger}
}

// RecorderApp is the assembled capture worker service.
type RecorderApp struct {
	Worker *recorder.Worker
	Bus    *bus.Bus
	Store  repository.Store
	Logger *zap.Logger
}

func NewRecorderApp(worker *recorder.Worker, mbus *bus.Bus, store repository.Store, logger *zap.Logger) *RecorderApp {
	return &RecorderApp{Worker: worker, Bus: mbus, Store: store, Logger: logger}
}
