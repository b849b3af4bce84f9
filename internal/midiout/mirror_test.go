package midiout

import (
	"context"
	"testing"
	"time"

	"gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/beatgrid-go/internal/clock"
	"github.com/cbegin/beatgrid-go/internal/pattern"
)

func collect(msgs chan midi.Message) Sender {
	return func(msg midi.Message) error {
		msgs <- msg
		return nil
	}
}

func next(t *testing.T, msgs chan midi.Message) midi.Message {
	t.Helper()
	select {
	case msg := <-msgs:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("no midi message")
		return nil
	}
}

func TestMirrorSendsTriggerPerAudibleStep(t *testing.T) {
	clk := clock.NewManual(5)
	msgs := make(chan midi.Message, 16)
	m := New(clk, collect(msgs))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	m.Synthesize(pattern.Silent, 4)
	m.Synthesize(pattern.Accent, 4.5)
	m.Synthesize(pattern.Normal, 4.75)

	var ch, key, vel uint8
	if msg := next(t, msgs); !msg.GetNoteOn(&ch, &key, &vel) || ch != DefaultChannel || key != DefaultAccentNote || vel != 127 {
		t.Fatalf("first message = %v", msg)
	}
	if msg := next(t, msgs); !msg.GetNoteOff(&ch, &key, &vel) || key != DefaultAccentNote {
		t.Fatalf("second message = %v", msg)
	}
	if msg := next(t, msgs); !msg.GetNoteOn(&ch, &key, &vel) || key != DefaultNormalNote || vel != 90 {
		t.Fatalf("third message = %v", msg)
	}
	next(t, msgs)

	select {
	case msg := <-msgs:
		t.Fatalf("unexpected message %v", msg)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestMirrorWaitsForNoteTime(t *testing.T) {
	clk := clock.NewManual(0)
	msgs := make(chan midi.Message, 4)
	m := New(clk, collect(msgs), WithChannel(3), WithNotes(60, 61))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	start := time.Now()
	m.Synthesize(pattern.Normal, 0.05)
	var ch, key, vel uint8
	msg := next(t, msgs)
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("note sent after %v, before its time", elapsed)
	}
	if !msg.GetNoteOn(&ch, &key, &vel) || ch != 3 || key != 60 {
		t.Fatalf("message = %v", msg)
	}
}

func TestMirrorDropsWhenQueueFull(t *testing.T) {
	m := New(clock.NewManual(0), func(midi.Message) error { return nil })
	for i := 0; i < pendingSize+3; i++ {
		m.Synthesize(pattern.Accent, float64(i))
	}
	if m.Dropped() != 3 {
		t.Fatalf("dropped = %d, want 3", m.Dropped())
	}
}
