package process

import (
	"context"
	"io"
	"os/exec"
	"runtime"
)

// PlayerLauncher starts the Flash player (or a browser on a URL) once fdb
// is waiting for a connection.
type PlayerLauncher struct {
	Supervisor *Supervisor

	// Command is the player executable. When empty, URL is opened with
	// the platform's default handler.
	Command string
	Args    []string

	// URL is the SWF or page to open. It is appended to Args when Command
	// is set.
	URL string
}

// LaunchPlayer starts the player. The player is not bound to ctx: it lives
// until the session's supervisor shuts down.
func (l *PlayerLauncher) LaunchPlayer(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name, args := l.commandLine()
	if name == "" {
		return &LaunchError{Name: PlayerName, Err: ErrNothingToLaunch}
	}

	cmd := exec.Command(name, args...)
	proc, err := l.Supervisor.Start(PlayerName, cmd)
	if err != nil {
		return err
	}
	// Output is not part of the debug conversation.
	go drain(proc)
	return nil
}

func (l *PlayerLauncher) commandLine() (string, []string) {
	if l.Command != "" {
		args := append([]string(nil), l.Args...)
		if l.URL != "" {
			args = append(args, l.URL)
		}
		return l.Command, args
	}
	if l.URL == "" {
		return "", nil
	}
	switch runtime.GOOS {
	case "darwin":
		return "open", []string{l.URL}
	case "windows":
		return "cmd", []string{"/c", "start", "", l.URL}
	default:
		return "xdg-open", []string{l.URL}
	}
}

func drain(p *Process) {
	if p.stdin != nil {
		_ = p.stdin.Close()
	}
	for _, r := range []io.Reader{p.stdout, p.stderr} {
		if r != nil {
			r := r
			go func() { _, _ = io.Copy(io.Discard, r) }()
		}
	}
}
