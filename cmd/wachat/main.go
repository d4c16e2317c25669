package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/matheus3301/wachat/internal/app"
	"github.com/matheus3301/wachat/internal/lock"
	"github.com/matheus3301/wachat/internal/session"
	"github.com/matheus3301/wachat/internal/tui"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	configFlag := flag.String("config", "", "config file (default ~/.wachat/config.toml)")
	flag.Parse()

	configPath := *configFlag
	if configPath == "" {
		configPath = session.ConfigPath()
	}
	sessionName := session.Resolve(*sessionFlag, configPath)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	var rt *app.Runtime
	fxApp := fx.New(
		app.Module(app.Params{
			SessionName: sessionName,
			ConfigPath:  configPath,
			Live:        true,
			Exclusive:   true,
		}),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		fx.Populate(&rt),
	)
	if err := fxApp.Err(); err != nil {
		var held *lock.HeldError
		if errors.As(err, &held) {
			fmt.Fprintf(os.Stderr, "wachat is already open for session %q (PID %d)\n", sessionName, held.Holder.PID)
			fmt.Fprintln(os.Stderr, "close it or pick another one with --session")
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ui := tui.NewApp(tui.Options{
		Session:    rt.Session,
		PlatformID: rt.Config.PlatformWaID,
		Engine:     rt.Engine,
		Writer:     rt.Coordinator,
		Bus:        rt.Bus,
		Logger:     rt.Logger.Named("tui"),
	})
	runErr := ui.Run()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer stopCancel()
	if err := fxApp.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		os.Exit(1)
	}
}
