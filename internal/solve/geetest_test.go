package solve

import (
	"encoding/base64"
	"testing"
)

func TestDecodeDataURL(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	dataURL := "data:image/png;base64," + payload

	got, err := decodeDataURL(dataURL)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "png-bytes" {
		t.Fatalf("expected decoded bytes %q, got %q", "png-bytes", got)
	}
}

func TestDecodeDataURLRejectsMalformedInput(t *testing.T) {
	if _, err := decodeDataURL("not-a-data-url"); err == nil {
		t.Fatal("expected an error for a data URL with no comma separator")
	}
}
