package main

import (
	"fmt"
	"os"

	"github.com/proppicks/auth-gateway/config"
	"github.com/proppicks/auth-gateway/internal/observability"
	"go.uber.org/zap"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initLogger builds the process logger from LOG_LEVEL and LOG_FORMAT
func initLogger() (*zap.Logger, error) {
	return observability.NewLogger(config.Load().Observability)
}
