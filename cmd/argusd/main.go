// Package main hosts the standalone argus daemon binary. It loads
// configuration, then hands off to daemonrun for the full boot sequence.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"argus/internal/config"
	"argus/internal/daemonrun"
)

func main() {
	var configPath string
	var logLevel string
	var socketPath string
	flag.StringVar(&configPath, "config", "", "configuration file path")
	flag.StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flag.StringVar(&socketPath, "socket", "", "daemon socket path override")
	flag.Parse()

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		LogLevel:   logLevel,
		SocketPath: socketPath,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "argusd: %v\n", err)
		os.Exit(1)
	}
}
