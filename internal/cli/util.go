package cli

import "time"

// nowUTC is the single time.Now() call site for commands that stamp
// history.json, kept here so tests can see at a glance where wall-clock
// time enters the CLI layer.
func nowUTC() time.Time { return time.Now().UTC() }
