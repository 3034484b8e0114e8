package util

import "testing"

func TestStripResizedSuffix(t *testing.T) {
	cases := map[string]string{
		"2024/05/photo-resized.png":         "2024/05/photo.png",
		"2024/05/photo-resized-300x200.png": "2024/05/photo-300x200.png",
		"2024/05/photo.png":                 "2024/05/photo.png",
		"photo-resized.jpg":                 "photo.jpg",
	}
	for in, want := range cases {
		if got := StripResizedSuffix(in); got != want {
			t.Fatalf("StripResizedSuffix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReplaceExt(t *testing.T) {
	if got := ReplaceExt("2024/05/photo.jpg", ".png"); got != "2024/05/photo.png" {
		t.Fatalf("unexpected path: %s", got)
	}
}

func TestThumbFileName(t *testing.T) {
	if got := ThumbFileName("photo.png", 300, 200); got != "photo-300x200.png" {
		t.Fatalf("unexpected name: %s", got)
	}
}
