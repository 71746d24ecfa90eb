package main

import (
	"context"
	"log"

	"github.com/jittakal/kafobjectsink/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := cli.BuildCLI(version).ExecuteContext(context.Background()); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
