package util

import (
	"fmt"
	"path"
	"strings"
)

// StripResizedSuffix removes the "-resized" marker the upload pipeline appends
// to basenames, so a restore lands on the collision-free original name.
// "2024/05/photo-resized.png" becomes "2024/05/photo.png" and
// "2024/05/photo-resized-300x200.png" becomes "2024/05/photo-300x200.png".
func StripResizedSuffix(rel string) string {
	dir, base := path.Split(rel)
	ext := path.Ext(base)
	name := strings.TrimSuffix(base, ext)
	name = strings.Replace(name, "-resized", "", 1)
	return dir + name + ext
}

// ReplaceExt swaps the extension of a relative path. ext must include the dot.
func ReplaceExt(rel, ext string) string {
	return strings.TrimSuffix(rel, path.Ext(rel)) + ext
}

// ThumbFileName returns the conventional derived-variant basename for a main
// file basename and pixel dimensions: ("photo.png", 300, 200) -> "photo-300x200.png".
func ThumbFileName(base string, width, height int) string {
	ext := path.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s-%dx%d%s", name, width, height, ext)
}
