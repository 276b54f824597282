package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/chzyer/readline"
)

// historyFileName mirrors original_source's repl.rs: history lives in
// the user's home directory across sessions, deduplicated and capped.
const historyFileName = ".glox_history"

// lineReader wraps readline.Instance so the REPL loop only has to
// know about Readline and Close; readline itself appends each
// accepted line to the history file (AutoHistory, on by default).
type lineReader struct {
	*readline.Instance
}

func newLineReader() (*lineReader, error) {
	historyPath := historyFileName
	if home, err := os.UserHomeDir(); err == nil {
		historyPath = filepath.Join(home, historyFileName)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            ">> ",
		HistoryFile:       historyPath,
		HistoryLimit:      1000,
		HistorySearchFold: true,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
	})
	if err != nil {
		return nil, err
	}
	return &lineReader{Instance: rl}, nil
}

// Readline reads one line, treating Ctrl-C on an empty line and EOF
// (Ctrl-D) both as a request to end the session rather than an error
// worth reporting.
func (r *lineReader) Readline() (string, error) {
	line, err := r.Instance.Readline()
	if err == readline.ErrInterrupt || err == io.EOF {
		return "", io.EOF
	}
	return line, err
}

// SaveHistory is a no-op: readline's AutoHistory setting already
// persists every accepted line to HistoryFile as it's entered.
func (r *lineReader) SaveHistory(string) {}
