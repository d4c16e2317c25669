package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/matheus3301/wachat/internal/app"
	"github.com/matheus3301/wachat/internal/session"
	"github.com/matheus3301/wachat/internal/store"
)

type options struct {
	session    string
	configPath string
	json       bool
	timeout    time.Duration
}

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	configFlag := flag.String("config", "", "config file (default ~/.wachat/config.toml)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	timeoutFlag := flag.Duration("timeout", 15*time.Second, "timeout for one-shot commands")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	opts := options{configPath: *configFlag, json: *jsonFlag, timeout: *timeoutFlag}
	if opts.configPath == "" {
		opts.configPath = session.ConfigPath()
	}
	opts.session = session.Resolve(*sessionFlag, opts.configPath)
	if err := session.ValidateName(opts.session); err != nil {
		fatal(err)
	}

	var err error
	switch args[0] {
	case "sessions":
		err = cmdSessions(opts)
	case "conversations", "ls":
		err = withRuntime(opts, false, func(ctx context.Context, env *runtimeEnv) error {
			return cmdConversations(ctx, env, opts)
		})
	case "thread":
		if len(args) != 2 {
			usageError("usage: wachatctl thread <number>")
		}
		err = withRuntime(opts, false, func(ctx context.Context, env *runtimeEnv) error {
			return cmdThread(ctx, env, opts, args[1])
		})
	case "send":
		if len(args) < 3 {
			usageError("usage: wachatctl send <number> <text>")
		}
		text := strings.Join(args[2:], " ")
		err = withRuntime(opts, false, func(ctx context.Context, env *runtimeEnv) error {
			return cmdSend(ctx, env, opts, args[1], text)
		})
	case "delete", "rm":
		if len(args) != 2 {
			usageError("usage: wachatctl delete <message-id>")
		}
		err = withRuntime(opts, false, func(ctx context.Context, env *runtimeEnv) error {
			return cmdDelete(ctx, env, opts, args[1])
		})
	case "contacts":
		err = withRuntime(opts, false, func(_ context.Context, env *runtimeEnv) error {
			return cmdContacts(env, opts)
		})
	case "watch":
		err = withRuntime(opts, true, func(ctx context.Context, env *runtimeEnv) error {
			return cmdWatch(ctx, env, opts)
		})
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fatal(err)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: wachatctl [--session <name>] [--config <path>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  conversations          List conversations, most recent first")
	fmt.Fprintln(os.Stderr, "  thread <number>        Print one conversation")
	fmt.Fprintln(os.Stderr, "  send <number> <text>   Send a message and wait for the server")
	fmt.Fprintln(os.Stderr, "  delete <message-id>    Delete a message")
	fmt.Fprintln(os.Stderr, "  contacts               List cached contact names")
	fmt.Fprintln(os.Stderr, "  watch                  Follow live changes until interrupted")
	fmt.Fprintln(os.Stderr, "  sessions               List known sessions")
}

func usageError(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

// runtimeEnv is what the commands get from the running module.
type runtimeEnv struct {
	*app.Runtime
	DB *store.DB
}

// withRuntime starts the client module, runs fn and stops the module.
// One-shot commands get opts.timeout; live ones run until SIGINT/SIGTERM.
func withRuntime(opts options, live bool, fn func(context.Context, *runtimeEnv) error) error {
	var env runtimeEnv
	fxApp := fx.New(
		app.Module(app.Params{
			SessionName: opts.session,
			ConfigPath:  opts.configPath,
			Live:        live,
			LogStderr:   true,
		}),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		fx.Populate(&env.Runtime, &env.DB),
	)
	if err := fxApp.Err(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if !live {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	if err := fxApp.Start(ctx); err != nil {
		return err
	}
	runErr := fn(ctx, &env)

	stopCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := fxApp.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	if errors.Is(runErr, context.Canceled) && live {
		return nil
	}
	return runErr
}
