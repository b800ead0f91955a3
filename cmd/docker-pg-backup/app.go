package main

import (
	"fmt"

	"github.com/shyim/docker-pg-backup/internal/backup"
	"github.com/shyim/docker-pg-backup/internal/config"
	"github.com/shyim/docker-pg-backup/internal/docker"
	"github.com/shyim/docker-pg-backup/internal/dump"
	"github.com/shyim/docker-pg-backup/internal/metrics"
	"github.com/shyim/docker-pg-backup/internal/storage"
)

// app wires the components shared by the run, rotate and daemon commands
type app struct {
	docker  *docker.Client
	store   storage.Storage
	metrics *metrics.Collector
	runner  *backup.Runner
}

func newApp() (*app, error) {
	store, err := defaultStore()
	if err != nil {
		return nil, err
	}

	dockerClient, err := docker.NewClient(cfg.DockerHost)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Docker: %w", err)
	}

	dumper := dump.New(dockerClient, dump.Options{
		User:     cfg.DBUser,
		Password: cfg.DBPass,
		Host:     cfg.DBHost,
		Compress: cfg.Compression == config.CompressionZstd,
	})
	collector := metrics.New(nil)

	return &app{
		docker:  dockerClient,
		store:   store,
		metrics: collector,
		runner:  backup.NewRunner(cfg, dockerClient, dumper, store, notifyMgr, collector),
	}, nil
}

func (a *app) Close() {
	_ = a.docker.Close()
}

func defaultStore() (storage.Storage, error) {
	pools, err := storage.NewPoolManager(cfg.StoragePools, cfg.DefaultStorage)
	if err != nil {
		return nil, err
	}
	return pools.Resolve("")
}
