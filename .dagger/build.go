package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/anygen/internal/dagger"
)

var platforms = []dagger.Platform{"linux/amd64", "linux/arm64"}

// Build and return directory of anygen binaries, one per platform
func (a *Anygen) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	outputs := dag.Directory()

	for _, platform := range platforms {
		// cgo rules out cross compiling, so each platform builds in its own
		// emulated container
		path := strings.ReplaceAll(string(platform), "/", "-") + "/"

		build := a.goContainer(platform).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/anygen"})

		outputs = outputs.WithDirectory(path, build.Directory(path))
	}

	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (a *Anygen) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/rshanygen/anygen/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/rshanygen/anygen/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/rshanygen/anygen/pkg/utils.Buildtime=%s'", time.Now().UTC().Format(time.RFC3339)),
	}

	return a.Build(ctx, strings.Join(ldflags, " "))
}
