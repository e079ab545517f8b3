// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package compact

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/blockzilla-foundation/blockzilla/lib/ledger"
	"github.com/blockzilla-foundation/blockzilla/lib/registry"
)

// Log event kinds. Runtime log lines with a recognized shape are
// stored structurally; everything else is kept verbatim as a Plain
// event through the string table.
const (
	LogPlain       byte = 0 // Text
	LogProgramData byte = 1 // Data
	LogInvoke      byte = 2 // Program, Depth
	LogSuccess     byte = 3 // Program
	LogConsumed    byte = 4 // Program, Used, Limit
	LogFailed      byte = 5 // Program, Text (failure reason)
	LogReturn      byte = 6 // Program, Data
	LogTruncated   byte = 7
	LogTokenMsg    byte = 8 // Code (SPL Token message, see tokenlog.go)
	LogInstruction byte = 9 // Text (instruction name)
)

// LogEvent is one structured runtime log line. Field use depends on
// Kind: Program is a registry ID, Text a string table ID, Data a
// bytes table ID, Code an index into the token message table.
type LogEvent struct {
	Kind    byte
	Program uint32
	Text    uint32
	Data    uint32
	Code    uint32
	Depth   uint32
	Used    uint64
	Limit   uint64
}

// logParser turns raw log lines into events, interning referenced
// values as it goes. Program keys that cannot be resolved against the
// registry demote the line to a Plain event rather than failing the
// transaction.
type logParser struct {
	lookup  func(key [32]byte) (uint32, bool)
	strings *registry.TableBuilder
	blobs   *registry.TableBuilder
}

func (p *logParser) parse(lines []string) []LogEvent {
	events := make([]LogEvent, 0, len(lines))
	for _, line := range lines {
		events = append(events, p.parseLine(strings.TrimRight(line, " ")))
	}
	return events
}

func (p *logParser) plain(line string) LogEvent {
	return LogEvent{Kind: LogPlain, Text: p.strings.InternString(line)}
}

func (p *logParser) program(text string) (uint32, bool) {
	key, err := ledger.ParsePubkey(text)
	if err != nil {
		return 0, false
	}
	return p.lookup(key)
}

func (p *logParser) parseLine(line string) LogEvent {
	if line == "Log truncated" {
		return LogEvent{Kind: LogTruncated}
	}

	rest, ok := strings.CutPrefix(line, "Program ")
	if !ok {
		return p.plain(line)
	}

	// "Program log: <msg>" carries no program id. SPL Token's fixed
	// messages compress to a table code; the common "Instruction:
	// <Name>" shape keeps just the name.
	if msg, ok := strings.CutPrefix(rest, "log: "); ok {
		if code, ok := tokenMessageCode[msg]; ok {
			return LogEvent{Kind: LogTokenMsg, Code: code}
		}
		if name, ok := strings.CutPrefix(msg, "Instruction: "); ok {
			if name = strings.TrimSpace(name); name != "" {
				return LogEvent{Kind: LogInstruction, Text: p.strings.InternString(name)}
			}
		}
		return p.plain(line)
	}

	if b64, ok := strings.CutPrefix(rest, "data: "); ok {
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
		if err != nil {
			return p.plain(line)
		}
		return LogEvent{Kind: LogProgramData, Data: p.blobs.Intern(data)}
	}

	if tail, ok := strings.CutPrefix(rest, "return: "); ok {
		pkText, b64, found := strings.Cut(strings.TrimSpace(tail), " ")
		if !found {
			return p.plain(line)
		}
		program, ok := p.program(pkText)
		if !ok {
			return p.plain(line)
		}
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
		if err != nil {
			return p.plain(line)
		}
		return LogEvent{Kind: LogReturn, Program: program, Data: p.blobs.Intern(data)}
	}

	pkText, after, found := strings.Cut(rest, " ")
	if !found {
		return p.plain(line)
	}
	program, ok := p.program(pkText)
	if !ok {
		return p.plain(line)
	}

	switch {
	case after == "success":
		return LogEvent{Kind: LogSuccess, Program: program}

	case strings.HasPrefix(after, "invoke ["):
		depthText, ok := strings.CutSuffix(after[len("invoke ["):], "]")
		if !ok {
			return p.plain(line)
		}
		depth, err := strconv.ParseUint(depthText, 10, 32)
		if err != nil {
			return p.plain(line)
		}
		return LogEvent{Kind: LogInvoke, Program: program, Depth: uint32(depth)}

	case strings.HasPrefix(after, "consumed "):
		used, limit, ok := parseConsumed(after[len("consumed "):])
		if !ok {
			return p.plain(line)
		}
		return LogEvent{Kind: LogConsumed, Program: program, Used: used, Limit: limit}

	case strings.HasPrefix(after, "failed: "):
		reason := after[len("failed: "):]
		return LogEvent{Kind: LogFailed, Program: program, Text: p.strings.InternString(reason)}
	}
	return p.plain(line)
}

// parseConsumed reads "<used> of <limit> compute units".
func parseConsumed(s string) (uint64, uint64, bool) {
	usedText, tail, found := strings.Cut(s, " of ")
	if !found {
		return 0, 0, false
	}
	limitText, ok := strings.CutSuffix(tail, " compute units")
	if !ok {
		return 0, 0, false
	}
	used, err := strconv.ParseUint(usedText, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	limit, err := strconv.ParseUint(limitText, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return used, limit, true
}

func appendLogEvents(buf []byte, events []LogEvent) []byte {
	buf = appendUvarint(buf, uint64(len(events)))
	for _, ev := range events {
		buf = append(buf, ev.Kind)
		switch ev.Kind {
		case LogPlain:
			buf = appendUvarint(buf, uint64(ev.Text))
		case LogProgramData:
			buf = appendUvarint(buf, uint64(ev.Data))
		case LogInvoke:
			buf = appendUvarint(buf, uint64(ev.Program))
			buf = appendUvarint(buf, uint64(ev.Depth))
		case LogSuccess:
			buf = appendUvarint(buf, uint64(ev.Program))
		case LogConsumed:
			buf = appendUvarint(buf, uint64(ev.Program))
			buf = appendUvarint(buf, ev.Used)
			buf = appendUvarint(buf, ev.Limit)
		case LogFailed:
			buf = appendUvarint(buf, uint64(ev.Program))
			buf = appendUvarint(buf, uint64(ev.Text))
		case LogReturn:
			buf = appendUvarint(buf, uint64(ev.Program))
			buf = appendUvarint(buf, uint64(ev.Data))
		case LogTruncated:
		case LogTokenMsg:
			buf = appendUvarint(buf, uint64(ev.Code))
		case LogInstruction:
			buf = appendUvarint(buf, uint64(ev.Text))
		default:
			panic("compact: unknown log event kind")
		}
	}
	return buf
}

func decodeLogEvents(c *byteCursor) ([]LogEvent, error) {
	count, err := c.uvarint("log event count")
	if err != nil {
		return nil, err
	}
	if count > uint64(c.remaining()) {
		return nil, c.errf("log event count %d exceeds remaining bytes", count)
	}
	events := make([]LogEvent, count)
	for i := range events {
		ev := &events[i]
		kind, err := c.u8("log event kind")
		if err != nil {
			return nil, err
		}
		ev.Kind = kind
		switch kind {
		case LogPlain:
			ev.Text, err = c.uvarint32("log text id")
		case LogProgramData:
			ev.Data, err = c.uvarint32("log data id")
		case LogInvoke:
			if ev.Program, err = c.uvarint32("log program id"); err == nil {
				ev.Depth, err = c.uvarint32("log invoke depth")
			}
		case LogSuccess:
			ev.Program, err = c.uvarint32("log program id")
		case LogConsumed:
			if ev.Program, err = c.uvarint32("log program id"); err == nil {
				if ev.Used, err = c.uvarint("log units used"); err == nil {
					ev.Limit, err = c.uvarint("log units limit")
				}
			}
		case LogFailed:
			if ev.Program, err = c.uvarint32("log program id"); err == nil {
				ev.Text, err = c.uvarint32("log reason id")
			}
		case LogReturn:
			if ev.Program, err = c.uvarint32("log program id"); err == nil {
				ev.Data, err = c.uvarint32("log return data id")
			}
		case LogTruncated:
		case LogTokenMsg:
			if ev.Code, err = c.uvarint32("log token message code"); err == nil && ev.Code >= uint32(len(tokenMessages)) {
				return nil, c.errf("token message code %d out of range", ev.Code)
			}
		case LogInstruction:
			ev.Text, err = c.uvarint32("log instruction name id")
		default:
			return nil, c.errf("unknown log event kind %d", kind)
		}
		if err != nil {
			return nil, err
		}
	}
	return events, nil
}
