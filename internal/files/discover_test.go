package files

import (
	"reflect"
	"testing"
)

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.tif", "b")
	writeFile(t, dir, "a/x.tif", "x")
	writeFile(t, dir, "a/x.xml", "<x/>")
	writeFile(t, dir, "debug.log", "log")
	writeFile(t, dir, "tmp/scratch.txt", "scratch")
	writeFile(t, dir, ".DS_Store", "")

	t.Run("without matcher lists every file sorted", func(t *testing.T) {
		got, err := Discover(dir, nil)
		if err != nil {
			t.Fatalf("Discover() error = %v", err)
		}
		want := []string{".DS_Store", "a/x.tif", "a/x.xml", "b.tif", "debug.log", "tmp/scratch.txt"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Discover() = %v, want %v", got, want)
		}
	})

	t.Run("ignored files and directories are skipped", func(t *testing.T) {
		writeFile(t, dir, IgnoreFileName, "tmp\n")
		matcher, err := LoadIgnoreMatcher(dir, []string{"*.log"})
		if err != nil {
			t.Fatalf("LoadIgnoreMatcher() error = %v", err)
		}

		got, err := Discover(dir, matcher)
		if err != nil {
			t.Fatalf("Discover() error = %v", err)
		}
		want := []string{"a/x.tif", "a/x.xml", "b.tif"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Discover() = %v, want %v", got, want)
		}
	})

	t.Run("rejects a regular file as root", func(t *testing.T) {
		if _, err := Discover(dir+"/b.tif", nil); err == nil {
			t.Error("expected error for non-directory root")
		}
	})
}
