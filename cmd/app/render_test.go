package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/starford/sowilo/internal/finder"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/query"
)

func testResult() *finder.Result {
	return &finder.Result{
		ID:    "q1",
		Query: query.Parse("src/ma"),
		Dir:   "/home/u/src",
		Items: []models.Item{
			{Label: models.Label("main/", 120), Path: "main/", Score: 120, IsDir: true},
			{Label: models.Label("main.go", 110), Path: "main.go", Score: 110},
		},
	}
}

func TestRenderTextPlain(t *testing.T) {
	var buf bytes.Buffer
	renderText(&buf, testResult(), false)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if lines[0] != "1  main/    (120)" || lines[1] != "2  main.go    (110)" {
		t.Errorf("output = %q", lines)
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Error("plain output must not contain escape codes")
	}
}

func TestRenderTextColor(t *testing.T) {
	var buf bytes.Buffer
	renderText(&buf, testResult(), true)
	if !strings.Contains(buf.String(), "\x1b[") {
		t.Error("color output should contain escape codes")
	}
}

func TestRenderTextEmpty(t *testing.T) {
	var buf bytes.Buffer
	renderText(&buf, &finder.Result{Dir: "/tmp/x"}, false)
	if got := buf.String(); got != "no matches in /tmp/x\n" {
		t.Errorf("output = %q", got)
	}
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := renderJSON(&buf, testResult()); err != nil {
		t.Fatal(err)
	}
	var decoded finder.Result
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Dir != "/home/u/src" || len(decoded.Items) != 2 || !decoded.Items[0].IsDir {
		t.Errorf("decoded = %+v", decoded)
	}
}
