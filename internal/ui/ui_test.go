package ui

import (
	"bytes"
	"testing"
)

func TestPage(t *testing.T) {
	p := Page()
	if len(p) == 0 {
		t.Fatal("Expected embedded page")
	}

	for _, path := range []string{"/control?x=", "/reverse?left=", "/imu", "/rssi", "/logs"} {
		if !bytes.Contains(p, []byte(path)) {
			t.Errorf("Page does not reference %s", path)
		}
	}
}
