// anygen CI
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
package main

import (
	"context"

	"dagger/anygen/internal/dagger"
)

// Anygen is the main module for the anygen CI pipeline
type Anygen struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new anygen CI module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", "build", "tmp", "_examples"]
	source *dagger.Directory,
) *Anygen {
	return &Anygen{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container for platform with
// gcc and libsqlite3-dev installed, CGO enabled and the project source
// mounted. The preferences store links SQLite through cgo.
func (a *Anygen) goContainer(platform dagger.Platform) *dagger.Container {
	return dag.Container(dagger.ContainerOpts{Platform: platform}).
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod-"+string(platform))).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build-"+string(platform))).
		WithWorkdir("/src").
		WithDirectory("/src", a.Source)
}

// Test runs the unit tests via "go test"
//
// +check
func (a *Anygen) Test(ctx context.Context) (string, error) {
	return a.goContainer("").
		WithExec([]string{"go", "test", "-race", "./..."}).
		Stdout(ctx)
}
