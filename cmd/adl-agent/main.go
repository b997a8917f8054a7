// Package main provides the adl-agent CLI, which asks a model for one new
// file, checks it and commits it on a fresh branch.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/run-bigpig/observable-agent/pkg/app"
	"github.com/run-bigpig/observable-agent/pkg/coding"
)

const version = "0.1.0"

// exitError carries a process exit code
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

func fail(code int, format string, args ...interface{}) error {
	return &exitError{code: code, msg: fmt.Sprintf(format, args...)}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd(defaultDeps()).ExecuteContext(ctx)
	if err == nil {
		return
	}
	var exit *exitError
	if errors.As(err, &exit) {
		if exit.msg != "" {
			fmt.Fprintln(os.Stderr, exit.msg)
		}
		os.Exit(exit.code)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(2)
}

// deps are the collaborators a run needs beyond its flags
type deps struct {
	newGenerator func(env *app.Env) coding.Generator
	runner       coding.Runner
	publisher    func(env *app.Env) coding.Publisher
}

func defaultDeps() deps {
	return deps{
		newGenerator: func(env *app.Env) coding.Generator {
			return coding.NewCodeAgent(env.NewAgent(coding.Observation))
		},
		runner: coding.RunCommand,
		publisher: func(env *app.Env) coding.Publisher {
			return coding.NewPublisher(env.Config.GitHub.Token, env.Logger)
		},
	}
}
