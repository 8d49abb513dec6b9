package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"unicode/utf8"

	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/ledzpl/linechat/internal/chat"
	"github.com/ledzpl/linechat/internal/client"
	"github.com/ledzpl/linechat/internal/config"
	"github.com/ledzpl/linechat/pkg/sshserver"
	"github.com/ledzpl/linechat/pkg/wsconn"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	var err error
	switch os.Args[1] {
	case "server":
		err = runServer(ctx, os.Args[2:], logger)
	case "client":
		err = runClient(ctx, os.Args[2:])
	case "-h", "-help", "--help", "help":
		usage(os.Stdout)
		return
	default:
		usage(os.Stderr)
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, flag.ErrHelp) {
		cancel()
		logger.Fatalf("linechat: %v", err)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage:")
	fmt.Fprintln(w, "  linechat server [flags] [addr]")
	fmt.Fprintln(w, "  linechat client <host> <port> <username>")
}

func runServer(ctx context.Context, args []string, logger *log.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	switch fs.NArg() {
	case 0:
	case 1:
		cfg.Addr = fs.Arg(0)
	default:
		return fmt.Errorf("server: unexpected arguments %q", fs.Args()[1:])
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Everything that can fail before serving is prepared before any
	// listener starts.
	var sshSrv *sshserver.Server
	if cfg.SSHAddr != "" {
		signer, err := hostSigner(cfg.HostKeyPath)
		if err != nil {
			return fmt.Errorf("failed to prepare host key: %w", err)
		}
		sshSrv = sshserver.New(cfg.SSHAddr, signer, logger)
	}

	relay := chat.New(cfg.Addr, chat.OptionsFromConfig(cfg), logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return relay.ListenAndServe(ctx)
	})

	if sshSrv != nil {
		handler := sshserver.TerminalHandler(relay.HandleConn, sshserver.TerminalOptions{
			MaxLineLength: cfg.MaxLineLength / utf8.UTFMax,
			Header:        "linechat | type a line and press Enter to send",
		}, logger)
		g.Go(func() error {
			return sshSrv.ListenAndServe(ctx, handler)
		})
	}

	if cfg.WSAddr != "" {
		handler := wsconn.Handler(relay.HandleConn, wsconn.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			ReadLimit:      int64(cfg.MaxLineLength + 2),
		}, logger)
		g.Go(func() error {
			return wsconn.ListenAndServe(ctx, cfg.WSAddr, handler, logger)
		})
	}

	return g.Wait()
}

func hostSigner(path string) (ssh.Signer, error) {
	if path == "" {
		return sshserver.EphemeralSigner()
	}
	return sshserver.LoadOrGenerateSigner(path)
}

func runClient(ctx context.Context, args []string) error {
	if len(args) != 3 {
		usage(os.Stderr)
		return errors.New("client: expected <host> <port> <username>")
	}

	c := client.New(args[0], args[1], args[2])
	if term.IsTerminal(int(os.Stdin.Fd())) {
		c.Prompt = "> "
	}
	return c.Run(ctx, os.Stdin, os.Stdout)
}
