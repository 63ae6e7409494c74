package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sotto-ai/sotto/pkg/audio"
	audiomock "github.com/sotto-ai/sotto/pkg/audio/mock"
	"github.com/sotto-ai/sotto/pkg/provider/stt"
	sttmock "github.com/sotto-ai/sotto/pkg/provider/stt/mock"
	"github.com/sotto-ai/sotto/pkg/provider/vad"
	vadmock "github.com/sotto-ai/sotto/pkg/provider/vad/mock"
)

// speechByMarker classifies a frame as speech when its first byte is 1.
// Tests craft frames accordingly.
func speechByMarker(frame []byte) (vad.Result, error) {
	if len(frame) > 0 && frame[0] == 1 {
		return vad.Result{Speech: true, Score: 1}, nil
	}
	return vad.Result{Speech: false}, nil
}

func markedFrame(ch audio.SourceChannel, at time.Time, speech bool) audio.Frame {
	f := frameAt(ch, at)
	if speech {
		f.PCM[0] = 1
	}
	return f
}

func testConfig() Config {
	return Config{
		SampleRate:      16000,
		FrameMs:         30,
		RemoteChannel:   chRemote,
		LocalChannel:    chLocal,
		SilenceTimeout:  40 * time.Millisecond,
		MinSpeechFrames: 5,
	}
}

func TestNewValidation(t *testing.T) {
	valid := func() (Config, Deps) {
		return testConfig(), Deps{
			Sources: []audio.Source{audiomock.NewSource(chRemote, 1)},
			VAD:     &vadmock.Engine{},
			STT:     &sttmock.Provider{},
		}
	}

	t.Run("valid", func(t *testing.T) {
		cfg, deps := valid()
		if _, err := New(cfg, deps); err != nil {
			t.Fatalf("New: %v", err)
		}
	})

	t.Run("same channel twice", func(t *testing.T) {
		cfg, deps := valid()
		cfg.LocalChannel = cfg.RemoteChannel
		if _, err := New(cfg, deps); err == nil {
			t.Fatal("expected an error for identical channels")
		}
	})

	t.Run("missing collaborators", func(t *testing.T) {
		cfg, deps := valid()
		deps.VAD = nil
		if _, err := New(cfg, deps); err == nil {
			t.Fatal("expected an error for a nil VAD engine")
		}
	})
}

func TestPipelineFinalizesRemoteUtterance(t *testing.T) {
	remote := audiomock.NewSource(chRemote, 64)
	local := audiomock.NewSource(chLocal, 64)
	sessRemote := sttmock.NewSession()
	sessLocal := sttmock.NewSession()
	sttProv := &sttmock.Provider{}
	sttProv.AddSession(sessRemote)
	sttProv.AddSession(sessLocal)

	p, err := New(testConfig(), Deps{
		Sources: []audio.Source{remote, local},
		VAD:     &vadmock.Engine{ClassifyFunc: speechByMarker},
		STT:     sttProv,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- p.Run(ctx) }()

	// Eight speech frames, then enough silence to close the last window
	// and trip the silence timeout.
	base := time.Unix(200, 0)
	step := 30 * time.Millisecond
	for i := 0; i < 8; i++ {
		remote.Push(markedFrame(chRemote, base.Add(time.Duration(i)*step), true))
	}
	for i := 8; i < 11; i++ {
		remote.Push(markedFrame(chRemote, base.Add(time.Duration(i)*step), false))
	}

	// Let the frame path drain, then deliver the recognition final.
	time.Sleep(100 * time.Millisecond)
	sessRemote.EmitFinal(stt.Transcript{Text: "how would you scale this?", Confidence: 0.92})

	select {
	case ev, ok := <-p.Events():
		if !ok {
			t.Fatal("event channel closed")
		}
		if ev.Speaker != SpeakerRemote {
			t.Errorf("speaker = %v, want REMOTE", ev.Speaker)
		}
		if ev.Text != "how would you scale this?" {
			t.Errorf("text = %q", ev.Text)
		}
	case err := <-runDone:
		t.Fatalf("pipeline stopped early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the transcript event")
	}

	if len(sessRemote.Audio()) != 8 {
		t.Errorf("remote STT received %d chunks, want 8", len(sessRemote.Audio()))
	}
	if len(sessLocal.Audio()) != 0 {
		t.Errorf("local STT received %d chunks, want 0", len(sessLocal.Audio()))
	}
}

func TestPipelineDropsLocalDuringOverlap(t *testing.T) {
	remote := audiomock.NewSource(chRemote, 64)
	local := audiomock.NewSource(chLocal, 64)
	sessRemote := sttmock.NewSession()
	sessLocal := sttmock.NewSession()
	sttProv := &sttmock.Provider{}
	sttProv.AddSession(sessRemote)
	sttProv.AddSession(sessLocal)

	p, err := New(testConfig(), Deps{
		Sources: []audio.Source{remote, local},
		VAD:     &vadmock.Engine{ClassifyFunc: speechByMarker},
		STT:     sttProv,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	// Both parties speak in the same windows; only the remote line may
	// reach recognition.
	base := time.Unix(300, 0)
	step := 30 * time.Millisecond
	for i := 0; i < 8; i++ {
		at := base.Add(time.Duration(i) * step)
		local.Push(markedFrame(chLocal, at, true))
		remote.Push(markedFrame(chRemote, at, true))
		// Give the frame path a moment so both frames land in the same
		// window before the next one opens it.
		time.Sleep(2 * time.Millisecond)
	}
	remote.Push(markedFrame(chRemote, base.Add(8*step), false))

	time.Sleep(150 * time.Millisecond)

	if got := len(sessRemote.Audio()); got != 8 {
		t.Errorf("remote STT received %d chunks, want 8", got)
	}
	if got := len(sessLocal.Audio()); got != 0 {
		t.Errorf("local STT received %d chunks during overlap, want 0", got)
	}
}

func TestPipelineFailsFastOnUnknownChannel(t *testing.T) {
	ghost := audiomock.NewSource("ghost", 4)

	p, err := New(testConfig(), Deps{
		Sources: []audio.Source{ghost},
		VAD:     &vadmock.Engine{ClassifyFunc: speechByMarker},
		STT:     &sttmock.Provider{},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- p.Run(ctx) }()

	ghost.Push(markedFrame("ghost", time.Unix(400, 0), true))

	select {
	case err := <-runDone:
		var uce *audio.UnknownChannelError
		if !errors.As(err, &uce) {
			t.Fatalf("Run returned %v, want UnknownChannelError", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop on an unknown channel")
	}
}

func TestPipelineStopsWhenSourceCloses(t *testing.T) {
	remote := audiomock.NewSource(chRemote, 4)

	p, err := New(testConfig(), Deps{
		Sources: []audio.Source{remote},
		VAD:     &vadmock.Engine{ClassifyFunc: speechByMarker},
		STT:     &sttmock.Provider{},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- p.Run(ctx) }()

	_ = remote.Close()

	select {
	case err := <-runDone:
		if err == nil {
			t.Fatal("Run returned nil after its source closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop after its source closed")
	}
}
