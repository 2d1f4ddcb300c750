// Package baton is an autonomous LLM agent orchestrator: it decomposes
// a natural-language request into tasks, runs each task through a
// tool-using reasoning loop bound to a deterministic scheduler, and
// returns one consolidated result.
//
// The importable surface lives under pkg/:
//
//	import (
//	    "github.com/batonlabs/baton/pkg/orchestrator"
//	    "github.com/batonlabs/baton/pkg/agent"
//	    "github.com/batonlabs/baton/pkg/tools"
//	    "github.com/batonlabs/baton/pkg/config"
//	)
//
// A typical embedding assembles the stack through pkg/runtime:
//
//	rt, err := runtime.New(ctx, cfg, runtime.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//	result := rt.Orchestrator().HandleRequest(ctx, "read tests/fixture.txt")
//
// The baton CLI (cmd/baton) wraps the same runtime with run, chat,
// serve, validate and schema commands.
package baton
