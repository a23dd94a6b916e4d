package main

import (
	"github.com/promptarena/promptarena/api"
	"github.com/promptarena/promptarena/internal/llm"
	"github.com/promptarena/promptarena/internal/store"
)

// Seams for tests.
var (
	openStore   = store.Open
	newRegistry = llm.NewRegistryFromConfig
	newServer   = api.NewServer
	runServer   = (*api.Server).Run
)
