package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tasky/internal/app"
)

// version is set at build time with -ldflags "-X main.version=1.2.3".
var version = "0.0.0-dev"

func main() {
	var cfgPath, envPath string
	flag.StringVar(&cfgPath, "config", "./config.json", "path to config json or yaml")
	flag.StringVar(&envPath, "env", ".env", "optional dotenv file, reloaded on change")
	flag.Parse()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	a, err := app.NewApp(app.Options{ConfigPath: cfgPath, EnvFiles: []string{envPath}, Version: version})
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	if err := a.Start(context.Background()); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}

	var reason app.StopReason
	select {
	case s := <-sigs:
		reason = app.StopSIGINT
		if s == syscall.SIGTERM {
			reason = app.StopSIGTERM
		}
	case reason = <-a.StopRequested():
	case <-a.Done():
		reason = app.StopFatal
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.StopTimeout())
	defer cancel()
	_ = a.Stop(ctx, reason)

	if reason == app.StopFatal {
		fmt.Println("fatal:", a.Err())
		cancel()
		os.Exit(1)
	}
}
