package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dshills/pdfqa-mcp/internal/cli"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if err := cli.Run(context.Background(), os.Args, cli.BuildInfo{Version: version, BuildTime: buildTime}); err != nil {
		fmt.Fprintln(os.Stderr, err.Message)
		os.Exit(err.Code)
	}
}
