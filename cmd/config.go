package cmd

import "time"

const (
	DEF_SHUTDOWN_TIMEOUT = 10 * time.Second
	// DEF_WATCH_REFRESH is the redraw interval of progress bars.
	DEF_WATCH_REFRESH = 120 * time.Millisecond
)

const DESCRIPTION = `
batchdl downloads lists of files with a bounded number of concurrent
transfers. Every transfer resumes from the bytes already on disk, so
paused, stopped or interrupted work continues where it left off.

Downloads are run by a background daemon; the other commands talk to
it over a local, token protected JSON-RPC endpoint.
`

const (
	DaemonDescription = `The daemon command runs the download service in the foreground.
It hosts the global queue and all batches, and listens on
127.0.0.1:<port> for JSON-RPC over HTTP and WebSocket.

Example:
        batchdl daemon --concurrency 8

`
	AddDescription = `The add command appends downloads to the global queue.
The queue does not run until "batchdl start" is issued.

Example:
        batchdl add https://domain.com/file.zip
        batchdl add -d ~/isos -i urls.txt

`
	QueueDescription = `Controls the global queue: start runs it, pause suspends
the running transfers, resume continues them and stop cancels
everything and empties the queue.

Example:
        batchdl start

`
	StatusDescription = `The status command prints the global queue state, its
active transfers and the items still waiting.

Example:
        batchdl status

`
	InfoDescription = `The info command prints the host's CPU count, the daemon's
concurrency limit and the recommended and maximum limits.

Example:
        batchdl info

`
	BatchDescription = `The batch command submits and controls independent batches.
A batch file is either a list of URLs (one per line, an optional
file name after the URL, # for comments) or a YAML manifest:

        id: nightly
        dir: /srv/mirror
        items:
          - url: https://example.com/a.iso
          - url: sftp://host/b.tar
            filename: b-latest.tar

Example:
        batchdl batch submit --watch nightly.yaml
        batchdl batch pause nightly

`
	WatchDescription = `The watch command shows live progress bars for every transfer
until interrupted.

Example:
        batchdl watch

`
	SecretDescription = `The secret command prints the RPC token clients must send as
"Authorization: Bearer <token>". --rotate replaces it; restart
the daemon afterwards.

Example:
        batchdl secret

`
)
