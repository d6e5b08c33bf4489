package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeInput(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "words.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEmptyInput(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "")
	output := filepath.Join(dir, "out.txt")

	var stderr bytes.Buffer
	if code := run([]string{input, output, "--log-level", "error"}, &stderr); code != exitOK {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("output not created: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected empty output, got %q", data)
	}
}

func TestExpandsWords(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "a1b2\n")
	output := filepath.Join(dir, "out.txt")

	var stderr bytes.Buffer
	if code := run([]string{"-w", "4", "-c", "1", input, output, "--log-level", "error"}, &stderr); code != exitOK {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}

	data, _ := os.ReadFile(output)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 100 {
		t.Fatalf("got %d variants, want 100", len(lines))
	}
	if lines[0] != "a0b0" || lines[1] != "a0b1" || lines[99] != "a9b9" {
		t.Errorf("unexpected order: %q %q ... %q", lines[0], lines[1], lines[99])
	}
}

func TestDepthAndAlphabetFlags(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "x1y2z3\n")
	output := filepath.Join(dir, "out.txt")

	var stderr bytes.Buffer
	if code := run([]string{"-d", "2", "-i", "ab", input, output, "--log-level", "error"}, &stderr); code != exitOK {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}

	data, _ := os.ReadFile(output)
	want := "x1yaza\nx1yazb\nx1ybza\nx1ybzb\n"
	if string(data) != want {
		t.Errorf("output = %q, want %q", data, want)
	}
}

func TestConfigFileWithOverride(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "k7\n")
	output := filepath.Join(dir, "out.txt")
	cfgPath := filepath.Join(dir, "permute.yaml")
	cfgDoc := "permute:\n  digit_alphabet: \"xy\"\npipeline:\n  workers: 3\nlogging:\n  level: error\n"
	if err := os.WriteFile(cfgPath, []byte(cfgDoc), 0644); err != nil {
		t.Fatal(err)
	}

	var stderr bytes.Buffer
	if code := run([]string{"--config", cfgPath, "-i", "01", input, output}, &stderr); code != exitOK {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	data, _ := os.ReadFile(output)
	if string(data) != "k0\nk1\n" {
		t.Errorf("flag should override the config file, got %q", data)
	}
}

func TestUnreadableInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "missing.txt")
	output := filepath.Join(dir, "out.txt")

	var stderr bytes.Buffer
	code := run([]string{input, output, "--log-level", "error"}, &stderr)
	if code != exitIO {
		t.Fatalf("exit code = %d, want %d", code, exitIO)
	}
	if !strings.Contains(stderr.String(), input) {
		t.Errorf("stderr should name the input path, got: %s", stderr.String())
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Error("output should not exist")
	}
}

func TestConfigErrors(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "a1\n")
	output := filepath.Join(dir, "out.txt")

	tests := []struct {
		name string
		args []string
	}{
		{"zero workers", []string{"-w", "0", input, output}},
		{"zero chunk size", []string{"-c", "0", input, output}},
		{"empty alphabet", []string{"-i", "", input, output}},
		{"unknown flag", []string{"--threads", "3", input, output}},
		{"missing output", []string{input}},
		{"bad log level", []string{"--log-level", "loud", input, output}},
		{"missing config file", []string{"--config", filepath.Join(dir, "nope.yaml"), input, output}},
	}

	for _, tt := range tests {
		var stderr bytes.Buffer
		if code := run(tt.args, &stderr); code != exitConfig {
			t.Errorf("%s: exit code = %d, want %d (stderr: %s)", tt.name, code, exitConfig, stderr.String())
		}
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Error("configuration errors should not create output")
	}
}

func TestManifestFlag(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "q5\n")
	output := filepath.Join(dir, "out.txt.gz")
	manifest := filepath.Join(dir, "run.json")

	var stderr bytes.Buffer
	if code := run([]string{input, output, "--manifest", manifest, "--log-level", "error"}, &stderr); code != exitOK {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr.String())
	}
	data, err := os.ReadFile(manifest)
	if err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
	if !strings.Contains(string(data), `"variants": 10`) {
		t.Errorf("manifest missing totals:\n%s", data)
	}
}
