package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/soypat/gpdma"
)

func TestReplay(t *testing.T) {
	payloads := []payload{
		{Data: []byte{0x01, 0x02, 0x03, 0x04}},
		{Data: bytes.Repeat([]byte{0xa5}, 4095)},
		{Data: bytes.Repeat([]byte{0x5a, 0x11}, 4100)},
	}
	r, err := newReplayer(payloads, 4, nil)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	sum, err := r.run(&buf, payloads)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Transactions != 3 || sum.Failed != 0 {
		t.Fatalf("unexpected summary %+v\n%s", sum, buf.String())
	}
	if sum.Descriptors != 1+1+3 {
		t.Errorf("want 5 descriptors, got %d", sum.Descriptors)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 3 {
		t.Errorf("want 3 output lines, got %d", lines)
	}
}

func TestReplayCapacity(t *testing.T) {
	payloads := []payload{{Data: make([]byte, 5000)}}
	r, err := newReplayer(payloads, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.replay(payloads[0].Data); err != gpdma.ErrDescriptorBufferNotSufficient {
		t.Errorf("want not sufficient, got %v", err)
	}
	// The failed replay must not leak the channel.
	if st := r.m.Stats(); st.Allocated != 0 {
		t.Errorf("%d channels leaked", st.Allocated)
	}
	if _, err := r.replay(nil); err != gpdma.ErrInvalidParameter {
		t.Errorf("empty payload: %v", err)
	}
}

func TestReplayReleaseLogs(t *testing.T) {
	var buf bytes.Buffer
	payloads := []payload{{Data: []byte{1, 2, 3}}}
	r, err := newReplayer(payloads, 1, slog.New(slog.NewTextHandler(&buf, nil)))
	if err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	r.release(2) // Never allocated.
	out := buf.String()
	if !strings.Contains(out, "replay:deallocate") || !strings.Contains(out, gpdma.ErrChannelAlreadyUnallocated.Error()) {
		t.Errorf("deallocate failure not logged: %q", out)
	}
}
