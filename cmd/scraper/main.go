package main

import (
	"context"

	"wordsynk-backend/cmd/scraper/commands"
	"wordsynk-backend/lib/serviceutil"
	"wordsynk-backend/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()

	telemetry.InitSlog(false)
	t, err := telemetry.SetupFromEnv(context.Background(), "cmd/scraper")
	if err == nil {
		defer t.Shutdown(context.Background())
	}

	commands.ExecuteContext(ctx)
}
