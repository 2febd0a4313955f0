package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/opway/opway/internal/adapter"
	"github.com/opway/opway/internal/core/domain"
	"github.com/opway/opway/internal/pkg/config"
	"github.com/opway/opway/internal/session"
	"github.com/opway/opway/pkg/logger"
)

const usage = `usage: opway [flags] <command> [args]

commands:
  login    -email E -password P
  register -name N -email E -password P
  logout
  whoami   [-remote]
  profile  [-name] [-phone] [-address] [-city] [-country] [-bio] [-avatar]
  open     <path>
  routes

flags:
`

type app struct {
	svc    *session.Service
	guard  session.Guard
	out    io.Writer
	closer func() error
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.LoadClient(ctx)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	fs := flag.NewFlagSet("opway", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.APIURL, "api", cfg.APIURL, "backend base URL")
	fs.StringVar(&cfg.StateDriver, "state-driver", cfg.StateDriver, "session mirror: file, sqlite or memory")
	fs.StringVar(&cfg.StatePath, "state-path", cfg.StatePath, "session mirror location")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "per-request timeout")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "trace, debug, info, warn or error")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	pathSet := os.Getenv("OPWAY_STATE_PATH") != ""
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "state-path" {
			pathSet = true
		}
	})
	if !pathSet && cfg.StateDriver != config.StateDriverMemory {
		cfg.StatePath = config.DefaultStatePath(cfg.StateDriver)
	}

	logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: true, Output: stderr})

	a, err := newApp(ctx, cfg, stdout, logger.Component("session"))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer func() { _ = a.closer() }()

	if err := a.dispatch(ctx, fs.Arg(0), fs.Args()[1:]); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		var ue usageError
		if errors.As(err, &ue) {
			return 2
		}
		return 1
	}
	return 0
}

func newApp(ctx context.Context, cfg *config.ClientConfig, out io.Writer, log zerolog.Logger) (*app, error) {
	mirror, closer, err := openMirror(ctx, cfg)
	if err != nil {
		return nil, err
	}

	gw, err := adapter.NewHTTPGateway(cfg.APIURL, cfg.RequestTimeout)
	if err != nil {
		_ = closer()
		return nil, err
	}

	store := session.NewStore(mirror, cfg.InitTimeout, log)
	store.Init(ctx)

	return &app{
		svc:    session.NewService(store, gw, cfg.RequestTimeout, log),
		guard:  session.NewGuard(),
		out:    out,
		closer: closer,
	}, nil
}

func openMirror(ctx context.Context, cfg *config.ClientConfig) (session.Mirror, func() error, error) {
	noop := func() error { return nil }
	switch cfg.StateDriver {
	case config.StateDriverMemory:
		return session.NewMemoryMirror(), noop, nil
	case config.StateDriverSQLite:
		m, err := session.OpenSQLiteMirror(ctx, cfg.StatePath)
		if err != nil {
			return nil, nil, err
		}
		return m, m.Close, nil
	default:
		return session.NewFileMirror(cfg.StatePath), noop, nil
	}
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.login(ctx, args)
	case "register":
		return a.register(ctx, args)
	case "logout":
		if err := a.svc.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "signed out")
		return nil
	case "whoami":
		return a.whoami(ctx, args)
	case "profile":
		return a.profile(ctx, args)
	case "open":
		if len(args) != 1 {
			return usageError{"open needs exactly one path"}
		}
		return a.open(args[0])
	case "routes":
		for _, r := range session.Routes {
			if err := a.open(r.Path); err != nil {
				return err
			}
		}
		return nil
	default:
		return usageError{fmt.Sprintf("unknown command %q", cmd)}
	}
}

func subFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := subFlags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}

	p, err := a.svc.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	return a.printPrincipal(p)
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := subFlags("register")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}

	p, err := a.svc.Register(ctx, *name, *email, *password)
	if err != nil {
		return err
	}
	return a.printPrincipal(p)
}

func (a *app) whoami(ctx context.Context, args []string) error {
	fs := subFlags("whoami")
	remote := fs.Bool("remote", false, "reload the user from the backend")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}

	if *remote {
		p, err := a.svc.Refresh(ctx)
		if err != nil {
			return err
		}
		return a.printPrincipal(p)
	}

	st := a.svc.Store().Snapshot()
	if !st.Authenticated || st.Principal == nil {
		fmt.Fprintln(a.out, "not signed in")
		return nil
	}
	return a.printPrincipal(*st.Principal)
}

func (a *app) profile(ctx context.Context, args []string) error {
	fs := subFlags("profile")
	var upd domain.ProfileUpdate
	fs.StringVar(&upd.Name, "name", "", "display name")
	fs.StringVar(&upd.Phone, "phone", "", "phone number")
	fs.StringVar(&upd.Address, "address", "", "street address")
	fs.StringVar(&upd.City, "city", "", "city")
	fs.StringVar(&upd.Country, "country", "", "country")
	fs.StringVar(&upd.Bio, "bio", "", "short bio")
	fs.StringVar(&upd.Avatar, "avatar", "", "avatar URL")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}

	if !a.svc.Store().Snapshot().Authenticated {
		fmt.Fprintln(a.out, "not signed in, nothing to update")
		return nil
	}
	if err := a.svc.UpdateProfile(ctx, upd); err != nil {
		return err
	}
	return a.printPrincipal(*a.svc.Store().Snapshot().Principal)
}

func (a *app) open(path string) error {
	route, ok := session.LookupRoute(path)
	if !ok {
		return usageError{fmt.Sprintf("unknown route %q", path)}
	}

	out := a.guard.Evaluate(a.svc.Store().Snapshot(), route)
	line := fmt.Sprintf("%-10s %s", route.Path, out.Decision)
	if out.Location != "" {
		line += " " + out.Location
	}
	fmt.Fprintln(a.out, strings.TrimRight(line, " "))
	return nil
}

func (a *app) printPrincipal(p session.Principal) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}
