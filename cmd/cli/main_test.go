package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thevladbog/idento-sub000/internal/agentclient"
	"github.com/thevladbog/idento-sub000/internal/checkin"
	"github.com/thevladbog/idento-sub000/internal/journal"
)

const testLabel = `{
	"width_mm": 50, "height_mm": 30, "dpi": 203,
	"elements": [
		{"type": "text", "x": 2, "y": 2, "width": 46, "height": 8, "fontSize": 12, "source": "full_name"},
		{"type": "qrcode", "x": 30, "y": 12, "width": 16, "height": 16, "source": "code"}
	]
}`

// runCLI executes the root command with a config file in a temp dir
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	cfg := "agent:\n  data_dir: " + dir + "\nlog:\n  level: error\n"
	cfgPath := filepath.Join(dir, "idento.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return runCLIWithConfig(t, cfgPath, args...)
}

func runCLIWithConfig(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadData(t *testing.T) {
	path := writeFile(t, "attendee.yaml", "first_name: Jane\ncompany: Acme\n")

	data, err := loadData(path, []string{"company=Globex", "code = ABC1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"first_name": "Jane", "company": "Globex", "code": " ABC1"}, data)

	data, err = loadData(writeFile(t, "a.json", `{"first_name": "Joe"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "Joe", data["first_name"])

	_, err = loadData("", []string{"novalue"})
	assert.Error(t, err)
	_, err = loadData("", []string{"=x"})
	assert.Error(t, err)
}

func TestCommandLine(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"printer", "list"}, "printer list"},
		{[]string{"printer", "rename", "p1", "Front desk"}, `printer rename p1 "Front desk"`},
		{[]string{"print", "p1", "f.json", "--var", `title=say "hi"`}, `print p1 f.json --var 'title=say "hi"'`},
		{[]string{"scan", "simulate", ""}, `scan simulate ""`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, commandLine(tt.args))
	}
}

func TestTemplateRender(t *testing.T) {
	tmpl := writeFile(t, "card.md", "# {first_name} {last_name}\n## {company}")

	out, err := runCLI(t, "template", "render", "-t", tmpl, "--set", "first_name=Jane", "--set", "last_name=Doe", "--set", "company=Acme")
	require.NoError(t, err)
	assert.Contains(t, out, "Jane Doe")
	assert.Contains(t, out, "Acme")
	assert.NotContains(t, out, "{")

	_, err = runCLI(t, "template", "render")
	assert.Error(t, err)
}

func TestZPLGenerate(t *testing.T) {
	label := writeFile(t, "badge.json", testLabel)

	out, err := runCLI(t, "zpl", "generate", "-l", label, "--set", "full_name=Jane Doe", "--set", "code=ABC1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "^XA"))
	assert.Contains(t, out, "^FDJane Doe^FS")

	dest := filepath.Join(t.TempDir(), "badge.zpl")
	_, err = runCLI(t, "zpl", "generate", "-l", label, "--set", "full_name=Jane", "-o", dest)
	require.NoError(t, err)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "^FDJane^FS")

	_, err = runCLI(t, "zpl", "generate", "-l", writeFile(t, "bad.json", `{"width_mm": 0}`))
	assert.Error(t, err)
}

func TestPreview(t *testing.T) {
	label := writeFile(t, "badge.json", testLabel)
	dest := filepath.Join(t.TempDir(), "badge.png")

	_, err := runCLI(t, "preview", "-l", label, "--set", "full_name=Jane Doe", "--set", "code=ABC1", "-o", dest)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

// fakeAgent serves the agent endpoints the CLI uses
func fakeAgent(t *testing.T) (*httptest.Server, *[]agentclient.PrintRequest) {
	t.Helper()
	var printed []agentclient.PrintRequest
	mux := http.NewServeMux()
	mux.HandleFunc("GET /printers", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]agentclient.Printer{
			{ID: "p1", Name: "Front desk", Type: "network", Status: "online", IsDefault: true},
		})
	})
	mux.HandleFunc("POST /print", func(w http.ResponseWriter, r *http.Request) {
		var body agentclient.PrintRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		printed = append(printed, body)
		json.NewEncoder(w).Encode(agentclient.PrintResponse{JobID: "job-1", Printer: "Front desk", Status: "queued"})
	})
	mux.HandleFunc("POST /command", func(w http.ResponseWriter, r *http.Request) {
		var body agentclient.CommandRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(agentclient.CommandResult{
			Success: true,
			Message: "ran " + body.Command,
			Data:    map[string]interface{}{"printer_id": "p1"},
		})
	})
	mux.HandleFunc("GET /scan/last", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(agentclient.ScanResponse{Code: "SCAN42"})
	})
	mux.HandleFunc("POST /scan/clear", func(w http.ResponseWriter, r *http.Request) {})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &printed
}

func TestPrint(t *testing.T) {
	srv, printed := fakeAgent(t)
	label := writeFile(t, "badge.json", testLabel)

	out, err := runCLI(t, "--agent", srv.URL, "print", "-l", label, "--set", "full_name=Jane", "-p", "Front desk")
	require.NoError(t, err)
	assert.Contains(t, out, "Job ID: job-1")
	require.Len(t, *printed, 1)
	assert.Equal(t, "Front desk", (*printed)[0].PrinterName)
	assert.Contains(t, (*printed)[0].ZPL, "^FDJane^FS")

	zplFile := writeFile(t, "raw.zpl", "^XA^FDraw^FS^XZ")
	_, err = runCLI(t, "--agent", srv.URL, "print", "--zpl", zplFile)
	require.NoError(t, err)
	require.Len(t, *printed, 2)
	assert.Equal(t, "^XA^FDraw^FS^XZ", (*printed)[1].ZPL)

	_, err = runCLI(t, "--agent", srv.URL, "print")
	assert.Error(t, err)
	_, err = runCLI(t, "--agent", srv.URL, "print", "--zpl", zplFile, "-l", label)
	assert.Error(t, err)
}

func TestAgentCommands(t *testing.T) {
	srv, _ := fakeAgent(t)

	out, err := runCLI(t, "--agent", srv.URL, "agent", "printers")
	require.NoError(t, err)
	assert.Contains(t, out, "Front desk")
	assert.Contains(t, out, "⭐")

	out, err = runCLI(t, "--agent", srv.URL, "agent", "exec", "printer", "rename", "p1", "Front desk")
	require.NoError(t, err)
	assert.Contains(t, out, `ran printer rename p1 "Front desk"`)
	assert.Contains(t, out, "Printer ID: p1")

	out, err = runCLI(t, "--agent", srv.URL, "agent", "test-scanner", "--timeout", "2s")
	require.NoError(t, err)
	assert.Contains(t, out, "Received: SCAN42")
}

func TestAttendeeBlock(t *testing.T) {
	var got []string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/attendees/{id}/block", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got = append(got, "block "+r.PathValue("id")+" "+body["reason"])
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/attendees/{id}/unblock", func(w http.ResponseWriter, r *http.Request) {
		got = append(got, "unblock "+r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	out, err := runCLI(t, "--backend", srv.URL, "attendee", "block", "a1", "--reason", "duplicate ticket")
	require.NoError(t, err)
	assert.Contains(t, out, "Attendee a1 blocked")

	_, err = runCLI(t, "--backend", srv.URL, "attendee", "unblock", "a1")
	require.NoError(t, err)

	_, err = runCLI(t, "--backend", srv.URL, "attendee", "block", "a1")
	assert.Error(t, err)

	assert.Equal(t, []string{"block a1 duplicate ticket", "unblock a1"}, got)
}

func TestJournal(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "idento.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("agent:\n  data_dir: "+dir+"\n"), 0o644))

	out, err := runCLIWithConfig(t, cfgPath, "journal")
	require.NoError(t, err)
	assert.Contains(t, out, "No check-ins recorded")

	j, err := journal.Open(filepath.Join(dir, "journal.db"))
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, j.Record(context.Background(), checkin.Record{
		EventID: "ev1", Code: "ABC1", Status: checkin.StatusSuccess, Message: checkin.MsgCheckedIn, At: now,
	}))
	require.NoError(t, j.Record(context.Background(), checkin.Record{
		EventID: "ev1", Code: "NOPE", Status: checkin.StatusError, Message: checkin.MsgNotFound, At: now.Add(time.Second),
	}))
	require.NoError(t, j.Close())

	out, err = runCLIWithConfig(t, cfgPath, "journal", "--event", "ev1")
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "NOPE"), strings.Index(out, "ABC1"))

	out, err = runCLIWithConfig(t, cfgPath, "journal", "--event", "ev1", "--stats")
	require.NoError(t, err)
	assert.Contains(t, out, "success  1")
	assert.Contains(t, out, "error    1")
}

func TestCheckin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/events/ev1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "ev1", "name": "DevConf", "custom_fields": {}}`))
	})
	mux.HandleFunc("GET /api/events/ev1/attendees", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id": "a1", "code": "ABC1", "first_name": "Jane", "last_name": "Doe", "company": "Acme"},
			{"id": "a2", "code": "BAN1", "first_name": "Joe", "last_name": "Roe", "blocked": true, "block_reason": "refund"}
		]`))
	})
	mux.HandleFunc("PUT /api/attendees/a1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "a1", "code": "ABC1", "first_name": "Jane", "last_name": "Doe", "company": "Acme", "checkin_status": true}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	out, err := runCLI(t, "--backend", srv.URL, "checkin", "abc1", "--event", "ev1")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ "+checkin.MsgCheckedIn)
	assert.Contains(t, out, "Jane Doe, Acme")
	assert.Contains(t, out, "1/2 checked in")

	out, err = runCLI(t, "--backend", srv.URL, "checkin", "BAN1", "--event", "ev1")
	assert.Error(t, err)
	assert.Contains(t, out, "✗ refund")

	out, err = runCLI(t, "--backend", srv.URL, "checkin", "NOPE", "--event", "ev1")
	assert.Error(t, err)
	assert.Contains(t, out, "✗ "+checkin.MsgNotFound)

	_, err = runCLI(t, "--backend", srv.URL, "checkin", "ABC1")
	assert.Error(t, err)
}
