package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/edisonhq/edison/internal/config"
	"github.com/edisonhq/edison/internal/config/defaults"
	"github.com/edisonhq/edison/internal/entity"
	"github.com/edisonhq/edison/internal/handler"
	"github.com/edisonhq/edison/internal/logging"
	"github.com/edisonhq/edison/internal/memory"
	"github.com/edisonhq/edison/internal/pathio"
	"github.com/edisonhq/edison/internal/statemachine"
	"github.com/edisonhq/edison/internal/statemachine/specs"
	"github.com/edisonhq/edison/internal/workflow"
)

// buildService wires one Service per invocation (spec.md §5 "Each CLI
// invocation is a short-lived process that acquires locks, does work, and
// exits").
func buildService() (*workflow.Service, error) {
	root := workspace
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		root = wd
	}

	paths := config.DefaultPaths(root)
	cfg, err := config.Load(paths, defaults.Loader)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level := "info"
	if verbose {
		level = "debug"
	}
	log := logging.New(level, "edison")
	clock := pathio.SystemClock{}

	registries := handler.NewRegistries()
	if err := handler.RegisterBuiltins(registries, clock); err != nil {
		return nil, fmt.Errorf("registering builtin handlers: %w", err)
	}

	taskSpec, err := specs.Load("task")
	if err != nil {
		return nil, err
	}
	qaSpec, err := specs.Load("qa")
	if err != nil {
		return nil, err
	}
	sessionSpec, err := specs.Load("session")
	if err != nil {
		return nil, err
	}

	taskRepo := entity.NewTaskRepository(paths.PMDir)
	qaRepo := entity.NewQARepository(paths.PMDir)
	sessionRepo := entity.NewSessionRepository(paths.PMDir)

	taskEngine := &statemachine.Engine[*entity.Task]{Spec: taskSpec, Repo: taskRepo, Registries: registries, Clock: clock, Log: log}
	qaEngine := &statemachine.Engine[*entity.QA]{Spec: qaSpec, Repo: qaRepo, Registries: registries, Clock: clock, Log: log}
	sessionEngine := &statemachine.Engine[*entity.Session]{Spec: sessionSpec, Repo: sessionRepo, Registries: registries, Clock: clock, Log: log}

	memReg := memory.NewRegistry()
	memReg.Register(memory.NewFileProvider(filepath.Join(root, "memory"), clock))
	memPipeline := memory.NewPipeline(memReg, log)

	evidenceRoot := filepath.Join(paths.ConfigDir, "evidence")

	return workflow.New(cfg, taskRepo, qaRepo, sessionRepo, taskEngine, qaEngine, sessionEngine, registries, memPipeline, evidenceRoot, clock, log), nil
}
