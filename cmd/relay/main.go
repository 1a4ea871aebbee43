package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/aanthord/mtls-relay/docs"
)

// @title mTLS Relay API
// @version 1.0
// @description HTTP surfaces of the mutual-TLS JSON relay: ingress endpoints, poll endpoints and request-id search.

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:3003
// @BasePath /
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
