package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// Dispatch runs prog's command-line invocation against commands and
// returns the process exit code. It owns help/usage display and the
// graceful-shutdown handshake on sigCh (nil disables signal handling,
// e.g. in tests), mirroring the ticket tool's Run loop: a command runs in
// its own goroutine so a first signal can cancel its context and a second
// forces an immediate exit.
func Dispatch(prog string, commands []*Command, out, errOut io.Writer, args []string, sigCh <-chan os.Signal) int {
	commandMap := make(map[string]*Command, len(commands))
	for _, cmd := range commands {
		commandMap[cmd.Name()] = cmd
	}

	if len(args) == 0 {
		printUsage(prog, out, commands)
		return 0
	}

	if args[0] == "-h" || args[0] == "--help" {
		printUsage(prog, out, commands)
		return 0
	}

	cmd, ok := commandMap[args[0]]
	if !ok {
		fmt.Fprintln(errOut, "error: unknown command:", args[0])
		printUsage(prog, errOut, commands)

		return 1
	}

	cmdIO := NewIO(out, errOut)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan int, 1)

	go func() {
		done <- cmd.Run(ctx, prog, cmdIO, args[1:])
	}()

	select {
	case exitCode := <-done:
		if exitCode != 0 {
			return exitCode
		}

		return cmdIO.Finish()
	case <-sigCh:
		fmt.Fprintln(errOut, "shutting down with 5s timeout...")
		cancel()
	}

	select {
	case <-done:
		fmt.Fprintln(errOut, "graceful shutdown ok (130)")
		return 130
	case <-time.After(5 * time.Second):
		fmt.Fprintln(errOut, "graceful shutdown timed out, forced exit (130)")
		return 130
	case <-sigCh:
		fmt.Fprintln(errOut, "graceful shutdown interrupted, forced exit (130)")
		return 130
	}
}

func printUsage(prog string, w io.Writer, commands []*Command) {
	fmt.Fprintf(w, "Usage: %s <command> [args]\n\n", prog)
	fmt.Fprintln(w, "Commands:")

	for _, cmd := range commands {
		fmt.Fprintln(w, cmd.HelpLine())
	}
}
