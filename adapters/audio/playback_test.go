package audio

import (
	"bytes"
	"testing"
)

func readN(t *testing.T, tl *timeline, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	got, err := tl.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != n {
		t.Fatalf("Read returned %d bytes, want %d", got, n)
	}
	return buf
}

func TestTimelinePlaysSilenceWhenEmpty(t *testing.T) {
	var tl timeline
	buf := readN(t, &tl, 8)
	if !bytes.Equal(buf, make([]byte, 8)) {
		t.Errorf("empty timeline read %v, want silence", buf)
	}
	if tl.position() != 8 {
		t.Errorf("position = %d, want 8", tl.position())
	}
}

func TestTimelineInsertsSilenceBeforeSegment(t *testing.T) {
	var tl timeline
	tl.schedule([]byte{1, 2, 3, 4}, 4)

	buf := readN(t, &tl, 8)
	want := []byte{0, 0, 0, 0, 1, 2, 3, 4}
	if !bytes.Equal(buf, want) {
		t.Errorf("read %v, want %v", buf, want)
	}
}

func TestTimelineBackToBackSegments(t *testing.T) {
	var tl timeline
	tl.schedule([]byte{1, 2}, 0)
	tl.schedule([]byte{3, 4}, 2)

	buf := readN(t, &tl, 6)
	want := []byte{1, 2, 3, 4, 0, 0}
	if !bytes.Equal(buf, want) {
		t.Errorf("read %v, want %v", buf, want)
	}
}

func TestTimelineClampsPastStarts(t *testing.T) {
	var tl timeline
	readN(t, &tl, 10)

	// Start position 4 is already behind the cursor; the data must not be
	// dropped, it plays from the cursor instead.
	tl.schedule([]byte{1, 2}, 4)
	buf := readN(t, &tl, 2)
	if !bytes.Equal(buf, []byte{1, 2}) {
		t.Errorf("read %v, want the clamped segment", buf)
	}
}

func TestTimelineClampsOverlappingSegments(t *testing.T) {
	var tl timeline
	tl.schedule([]byte{1, 2, 3, 4}, 0)
	tl.schedule([]byte{5, 6}, 2)

	buf := readN(t, &tl, 6)
	want := []byte{1, 2, 3, 4, 5, 6}
	if !bytes.Equal(buf, want) {
		t.Errorf("read %v, want %v", buf, want)
	}
}

func TestTimelineResetDropsPendingKeepsClock(t *testing.T) {
	var tl timeline
	tl.schedule([]byte{1, 2, 3, 4}, 0)
	readN(t, &tl, 2)

	tl.reset()
	buf := readN(t, &tl, 4)
	if !bytes.Equal(buf, make([]byte, 4)) {
		t.Errorf("read %v after reset, want silence", buf)
	}
	if tl.position() != 6 {
		t.Errorf("position = %d, want 6 (clock keeps running)", tl.position())
	}
}

func TestTimelineReadAcrossSegmentBoundary(t *testing.T) {
	var tl timeline
	tl.schedule([]byte{1, 2, 3, 4}, 2)

	first := readN(t, &tl, 4)
	if !bytes.Equal(first, []byte{0, 0, 1, 2}) {
		t.Errorf("first read %v", first)
	}
	second := readN(t, &tl, 4)
	if !bytes.Equal(second, []byte{3, 4, 0, 0}) {
		t.Errorf("second read %v", second)
	}
}
