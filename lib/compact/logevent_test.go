// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

package compact

import (
	"fmt"
	"testing"

	"github.com/blockzilla-foundation/blockzilla/lib/ledger"
	"github.com/blockzilla-foundation/blockzilla/lib/registry"
)

func testKey(b byte) [32]byte {
	var k [32]byte
	for i := range k {
		k[i] = b
	}
	return k
}

func newTestParser(keys ...[32]byte) (*logParser, *registry.Registry) {
	b := registry.NewBuilder()
	for _, k := range keys {
		b.LookupOrInsert(k)
	}
	reg := b.Finalize()
	return &logParser{
		lookup:  reg.Lookup,
		strings: registry.NewTableBuilder(),
		blobs:   registry.NewTableBuilder(),
	}, reg
}

func TestLogParserStructuredLines(t *testing.T) {
	program := testKey(7)
	p, _ := newTestParser(program)
	pk := ledger.FormatPubkey(program)

	lines := []string{
		fmt.Sprintf("Program %s invoke [1]", pk),
		"Program log: Instruction: Transfer",
		"Program data: aGVsbG8=",
		fmt.Sprintf("Program return: %s AQID", pk),
		fmt.Sprintf("Program %s consumed 2211 of 200000 compute units", pk),
		fmt.Sprintf("Program %s success", pk),
		fmt.Sprintf("Program %s failed: custom program error: 0x1", pk),
		"Log truncated",
	}
	events := p.parse(lines)
	if len(events) != len(lines) {
		t.Fatalf("parsed %d events from %d lines", len(events), len(lines))
	}

	kinds := []byte{LogInvoke, LogTokenMsg, LogProgramData, LogReturn, LogConsumed, LogSuccess, LogFailed, LogTruncated}
	for i, want := range kinds {
		if events[i].Kind != want {
			t.Errorf("line %d: kind %d, want %d", i, events[i].Kind, want)
		}
	}

	if events[0].Depth != 1 {
		t.Errorf("invoke depth = %d, want 1", events[0].Depth)
	}
	if msg, ok := TokenLogMessage(events[1].Code); !ok || msg != "Instruction: Transfer" {
		t.Errorf("token message %d = %q", events[1].Code, msg)
	}
	if events[4].Used != 2211 || events[4].Limit != 200000 {
		t.Errorf("consumed = %d of %d, want 2211 of 200000", events[4].Used, events[4].Limit)
	}

	strings := p.strings.Finalize()
	reason, err := strings.Value(events[6].Text)
	if err != nil {
		t.Fatalf("failed reason: %v", err)
	}
	if string(reason) != "custom program error: 0x1" {
		t.Errorf("failed reason = %q", reason)
	}

	blobs := p.blobs.Finalize()
	data, err := blobs.Value(events[2].Data)
	if err != nil {
		t.Fatalf("program data: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("program data = %q, want %q", data, "hello")
	}
	ret, err := blobs.Value(events[3].Data)
	if err != nil {
		t.Fatalf("return data: %v", err)
	}
	if string(ret) != "\x01\x02\x03" {
		t.Errorf("return data = %x", ret)
	}
}

func TestLogParserDemotesUnresolvable(t *testing.T) {
	// Parser knows no keys at all.
	p, _ := newTestParser()
	stranger := ledger.FormatPubkey(testKey(9))

	lines := []string{
		fmt.Sprintf("Program %s invoke [1]", stranger),
		fmt.Sprintf("Program %s success", stranger),
		"Program notbase58!! success",
		"Program data: not-valid-base64!",
	}
	for i, ev := range p.parse(lines) {
		if ev.Kind != LogPlain {
			t.Errorf("line %d: kind %d, want Plain", i, ev.Kind)
		}
	}

	strings := p.strings.Finalize()
	got, err := strings.Value(0)
	if err != nil {
		t.Fatalf("string 0: %v", err)
	}
	if string(got) != lines[0] {
		t.Errorf("demoted line stored as %q", got)
	}
}

func TestLogParserProgramLogForms(t *testing.T) {
	p, _ := newTestParser()

	events := p.parse([]string{
		"Program log: Error: insufficient funds",
		"Program log: Instruction: CreateLookupTable",
		"Program log: transfer complete",
	})

	if events[0].Kind != LogTokenMsg {
		t.Fatalf("token error line kind = %d", events[0].Kind)
	}
	if msg, ok := TokenLogMessage(events[0].Code); !ok || msg != "Error: insufficient funds" {
		t.Errorf("token message = %q", msg)
	}

	if events[1].Kind != LogInstruction {
		t.Fatalf("instruction line kind = %d", events[1].Kind)
	}
	strings := p.strings.Finalize()
	name, err := strings.Value(events[1].Text)
	if err != nil {
		t.Fatalf("instruction name: %v", err)
	}
	if string(name) != "CreateLookupTable" {
		t.Errorf("instruction name = %q", name)
	}

	// Free-form text keeps the whole line.
	if events[2].Kind != LogPlain {
		t.Fatalf("free-form line kind = %d", events[2].Kind)
	}
	text, err := strings.Value(events[2].Text)
	if err != nil {
		t.Fatalf("plain text: %v", err)
	}
	if string(text) != "Program log: transfer complete" {
		t.Errorf("plain text = %q", text)
	}
}

func TestTokenLogMessageBounds(t *testing.T) {
	if _, ok := TokenLogMessage(uint32(len(tokenMessages))); ok {
		t.Error("out-of-range token code resolved")
	}
	if msg, ok := TokenLogMessage(0); !ok || msg == "" {
		t.Errorf("code 0 = %q, %v", msg, ok)
	}
}

func TestLogEventCodecRoundTrip(t *testing.T) {
	events := []LogEvent{
		{Kind: LogInvoke, Program: 3, Depth: 2},
		{Kind: LogPlain, Text: 17},
		{Kind: LogProgramData, Data: 4},
		{Kind: LogConsumed, Program: 3, Used: 150000, Limit: 1400000},
		{Kind: LogFailed, Program: 3, Text: 0},
		{Kind: LogReturn, Program: 9, Data: 1},
		{Kind: LogSuccess, Program: 3},
		{Kind: LogTruncated},
		{Kind: LogTokenMsg, Code: 33},
		{Kind: LogInstruction, Text: 5},
	}
	buf := appendLogEvents(nil, events)
	c := &byteCursor{data: buf, ctx: "test"}
	got, err := decodeLogEvents(c)
	if err != nil {
		t.Fatalf("decodeLogEvents: %v", err)
	}
	if c.remaining() != 0 {
		t.Fatalf("%d trailing bytes", c.remaining())
	}
	if len(got) != len(events) {
		t.Fatalf("decoded %d events, want %d", len(got), len(events))
	}
	for i := range events {
		if got[i] != events[i] {
			t.Errorf("event %d: %+v, want %+v", i, got[i], events[i])
		}
	}
}

func TestLogEventCodecRejectsUnknownKind(t *testing.T) {
	buf := appendUvarint(nil, 1)
	buf = append(buf, 0xee)
	c := &byteCursor{data: buf, ctx: "test"}
	if _, err := decodeLogEvents(c); err == nil {
		t.Fatal("unknown event kind accepted")
	}
}

func TestLogEventCodecRejectsTokenCodeOutOfRange(t *testing.T) {
	buf := appendLogEvents(nil, []LogEvent{
		{Kind: LogTokenMsg, Code: uint32(len(tokenMessages))},
	})
	c := &byteCursor{data: buf, ctx: "test"}
	if _, err := decodeLogEvents(c); err == nil {
		t.Fatal("out-of-range token message code accepted")
	}
}
