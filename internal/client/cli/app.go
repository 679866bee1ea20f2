// Package cli implements the `directory` command: register, login, list
// users and start chats against a directory server.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/sakif/chat-directory/internal/client/directory"
	"github.com/sakif/chat-directory/internal/events"
)

// ErrUsage is returned for unknown commands or missing arguments.
var ErrUsage = errors.New("usage: directory <register|login|users|chat|watch> [args]")

// refreshWait bounds how long `chat` waits for its own refresh event.
const refreshWait = 2 * time.Second

// App is one CLI invocation.
type App struct {
	client *directory.Client
	bus    events.Bus
	in     *bufio.Reader
	out    io.Writer
	logger *slog.Logger
}

func NewApp(client *directory.Client, bus events.Bus, in io.Reader, out io.Writer, logger *slog.Logger) *App {
	return &App{
		client: client,
		bus:    bus,
		in:     bufio.NewReader(in),
		out:    out,
		logger: logger,
	}
}

// Run dispatches args[0] to its subcommand.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "register":
		return a.register(ctx, rest)
	case "login":
		return a.login(ctx, rest)
	case "users":
		return a.users(ctx, rest)
	case "chat":
		return a.chat(ctx, rest)
	case "watch":
		return a.watch(ctx, rest)
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

func (a *App) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(a.out)
	name := fs.String("name", "", "user name")
	email := fs.String("email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *name == "" {
		if *name, err = readLine(a.in, a.out, "Name"); err != nil {
			return err
		}
	}
	if *email == "" {
		if *email, err = readLine(a.in, a.out, "Email"); err != nil {
			return err
		}
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}

	s, err := a.client.Register(ctx, *name, *email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Registered %s (%s)\nexport DIRECTORY_TOKEN=%s\n", s.Name, s.ID, s.Token)
	return nil
}

func (a *App) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.out)
	name := fs.String("name", "", "user name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *name == "" {
		if *name, err = readLine(a.in, a.out, "Name"); err != nil {
			return err
		}
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}

	s, err := a.client.Login(ctx, *name, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s\nexport DIRECTORY_TOKEN=%s\n", s.Name, s.Token)
	return nil
}

// users prints the directory, optionally filtered by args[0].
func (a *App) users(ctx context.Context, args []string) error {
	query := ""
	if len(args) > 0 {
		query = args[0]
	}
	a.render(directory.Filter(a.client.Fetch(ctx), query))
	return nil
}

// chat starts a chat with args[0] and re-renders the directory once the
// refresh event arrives.
func (a *App) chat(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}

	refresh, cancel, err := a.bus.Subscribe(ctx, events.TopicDirectoryRefresh)
	if err != nil {
		return fmt.Errorf("subscribing to refresh: %w", err)
	}
	defer cancel()

	if err := a.client.StartChat(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Chat with %s is ready.\n", args[0])

	select {
	case <-refresh:
		a.render(a.client.Fetch(ctx))
	case <-time.After(refreshWait):
		a.logger.Debug("no refresh event received")
	case <-ctx.Done():
	}
	return nil
}

// watch re-renders the directory on every refresh event until ctx ends.
func (a *App) watch(ctx context.Context, _ []string) error {
	refresh, cancel, err := a.bus.Subscribe(ctx, events.TopicDirectoryRefresh)
	if err != nil {
		return fmt.Errorf("subscribing to refresh: %w", err)
	}
	defer cancel()

	a.render(a.client.Fetch(ctx))
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-refresh:
			if !ok {
				return nil
			}
			a.render(a.client.Fetch(ctx))
		}
	}
}

func (a *App) render(entries []directory.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No users found.")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "IMG\tNAME\tEMAIL\tID")
	for _, e := range entries {
		img := e.Image()
		pic := "[" + img.Glyph + "]"
		if img.URI != "" {
			pic = "[img]"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", pic, e.Name, e.Email, e.ID)
	}
	tw.Flush()
}
