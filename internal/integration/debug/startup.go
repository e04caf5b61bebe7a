package debug

import (
	"fmt"
	"strings"

	"github.com/dshills/fdbridge/internal/integration/debug/fdb"
)

// Texts fdb prints while connecting to the player.
const (
	playerConnectedNotice = "Player connected; session starting."
	typeContinueHint      = "type 'continue'"
	unexpectedVersion     = "Unexpected version of the Flash Player"
	unexpectedVersionHint = "Session timed out or unexpected version of the Flash Player"
)

// launchFailures end the handshake.
var launchFailures = []string{
	"Another Flash debugger is probably running",
	"Failed to connect",
	"unexpected version of the Flash Player",
	"Connection refused",
}

// handleRun consumes the responses of "run" until the player connected.
func (s *Session) handleRun(text string) fdb.Progress {
	var kept []string
	it := fdb.NewLineIterator(text)
	for it.HasNext() {
		line := it.Next()
		if strings.Contains(line, typeContinueHint) {
			continue
		}
		line = strings.Replace(line, unexpectedVersion, unexpectedVersionHint, 1)
		kept = append(kept, line)

		l := fdb.Classify(line)
		if l.Kind == fdb.LineSWF && s.filterSWF {
			continue
		}
		s.console.Print(line+"\n", OutputSystem)
	}
	text = strings.Join(kept, "\n")

	for _, failure := range launchFailures {
		if strings.Contains(text, failure) {
			s.terminate(fmt.Errorf("%w: %s", ErrLaunchFailed, firstLineWith(kept, failure)))
			return fdb.Done
		}
	}

	// The notices may arrive together with the connection when the player
	// was already running.
	if strings.Contains(text, playerConnectedNotice) {
		s.startupDone.Store(true)
		_ = s.queue.PushBack(fdb.Continue())
		s.checkStartupStop = true
		s.markStarted()
		return fdb.Done
	}

	if strings.Contains(text, fdb.WaitingForPlayerNotice) || strings.Contains(text, fdb.TryingToConnectNotice) {
		if s.launcher == nil {
			s.console.Print("Waiting for the player to be started...\n", OutputSystem)
			return fdb.Proceed
		}
		s.logger.Debug("launching player")
		if err := s.launcher.LaunchPlayer(s.ctx); err != nil {
			s.terminate(fmt.Errorf("%w: %w", ErrLaunchFailed, err))
			return fdb.Done
		}
		return fdb.Proceed
	}

	return fdb.Proceed
}

func firstLineWith(lines []string, substr string) string {
	for _, l := range lines {
		if strings.Contains(l, substr) {
			return l
		}
	}
	return substr
}
