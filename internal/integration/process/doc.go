// Package process runs the subprocesses of a debug session: fdb and,
// optionally, the Flash player.
//
// A Supervisor starts processes with piped stdio, tracks them until they
// exit and shuts them down together:
//
//	sup := process.NewSupervisor(process.WithLogger(logger))
//	defer sup.Shutdown(5 * time.Second)
//
//	fdb, err := sup.StartFDB(cfg.FDB.Path, cfg.FDB.Args...)
//	if err != nil {
//	    var le *process.LaunchError
//	    errors.As(err, &le) // le.CommandLine names what failed
//	}
//	session := debug.NewSession(fdb, debug.WithPlayerLauncher(&process.PlayerLauncher{
//	    Supervisor: sup,
//	    URL:        cfg.Player.URL,
//	}))
//
// A started *Process implements the debug session's transport: Stdin,
// Stdout and Stderr expose the pipes, and Close closes stdin, gives the
// process a grace period to exit and kills it afterwards.
//
// Making the fdb script executable is remembered per Supervisor, so two
// sessions never share that state.
package process
