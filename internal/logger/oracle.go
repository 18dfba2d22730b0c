package logger

import (
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
)

var (
	oracleMu  sync.Mutex
	oracleLog *log.Logger
)

// SetOracleWriter directs raw oracle request/response dumps to w.
// A nil writer disables dumping entirely.
func SetOracleWriter(w io.Writer) {
	oracleMu.Lock()
	defer oracleMu.Unlock()
	if w == nil {
		oracleLog = nil
		return
	}
	oracleLog = log.New(w, "", log.LstdFlags)
}

func OracleRequest(provider string, attachments int, prompt string) {
	dumpOracle("request", provider, "PROMPT (attachments="+strconv.Itoa(attachments)+")", prompt)
}

func OracleResponse(provider, raw string) {
	dumpOracle("response", provider, "RAW", raw)
}

func dumpOracle(kind, provider, title, body string) {
	oracleMu.Lock()
	l := oracleLog
	oracleMu.Unlock()
	if l == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[oracle-" + kind + "][" + provider + "]\n")
	b.WriteString("--- " + title + " ---\n")
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("=====\n")
	l.Print(b.String())
}
