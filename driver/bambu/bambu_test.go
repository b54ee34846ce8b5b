package bambu

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"testing"
)

func TestPack3MF(t *testing.T) {
	program := []byte("G28\nG0 X10.00 Y20.00 F30000\n")
	archive, err := Pack3MF(program)
	if err != nil {
		t.Fatal(err)
	}
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		t.Fatal(err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != gcodeEntry {
		t.Fatalf("archive entries %v, want exactly %q", zr.File, gcodeEntry)
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, program) {
		t.Fatalf("archived program %q, want %q", got, program)
	}
}

func TestStartRequest(t *testing.T) {
	payload, err := startRequest("letter.3mf")
	if err != nil {
		t.Fatal(err)
	}
	var req printRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		t.Fatal(err)
	}
	if req.Print.Command != "project_file" {
		t.Errorf("command %q", req.Print.Command)
	}
	if req.Print.URL != "ftp://letter.3mf" {
		t.Errorf("url %q", req.Print.URL)
	}
	if req.Print.Param != gcodeEntry {
		t.Errorf("param %q", req.Print.Param)
	}
}

func TestClientValidate(t *testing.T) {
	clients := []*Client{
		{},
		{Host: "10.0.0.2"},
		{Host: "10.0.0.2", Serial: "01S00C123400000"},
	}
	for i, c := range clients {
		if _, err := c.Upload("x", []byte("G28\n")); err == nil {
			t.Errorf("client %d: incomplete config accepted", i)
		}
	}
}
