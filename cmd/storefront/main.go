// Command storefront opens a product screen against the catalog API and
// optionally adds the product to a session cart.
package main

import (
	"context"
	"os"

	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/storefront"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := storefront.LoadConfig()
		if err != nil {
			return err
		}
		return storefront.Run(ctx, lg, m, cfg, os.Stdout)
	})
}
