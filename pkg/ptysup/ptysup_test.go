package ptysup

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestResizeEchoesNewSizeEvenWhenUnchanged(t *testing.T) {
	sup, err := Start(logrus.StandardLogger(), "test-shell", "/bin/cat", t.TempDir(), Size{Rows: 24, Cols: 80})
	if err != nil {
		t.Skipf("ptysup.Start unavailable in this environment: %v", err)
	}
	defer sup.Close()

	first := sup.Resize(Size{Rows: 30, Cols: 100})
	if first != (Size{Rows: 30, Cols: 100}) {
		t.Fatalf("first resize = %+v, want {30 100}", first)
	}
	select {
	case got := <-sup.ResizeNotify:
		if got != (Size{Rows: 30, Cols: 100}) {
			t.Errorf("notify = %+v, want {30 100}", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for resize notification")
	}

	second := sup.Resize(Size{Rows: 30, Cols: 100})
	if second != (Size{Rows: 30, Cols: 100}) {
		t.Fatalf("second resize = %+v, want unchanged {30 100}", second)
	}
	select {
	case got := <-sup.ResizeNotify:
		if got != (Size{Rows: 30, Cols: 100}) {
			t.Errorf("notify = %+v, want {30 100}", got)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an echo even when the size is unchanged")
	}
}

func TestSizeReflectsLastApplied(t *testing.T) {
	sup, err := Start(logrus.StandardLogger(), "test-shell", "/bin/cat", t.TempDir(), Size{Rows: 10, Cols: 20})
	if err != nil {
		t.Skipf("ptysup.Start unavailable in this environment: %v", err)
	}
	defer sup.Close()

	if got := sup.Size(); got != (Size{Rows: 10, Cols: 20}) {
		t.Fatalf("initial Size() = %+v, want {10 20}", got)
	}
}
