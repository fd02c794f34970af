package command

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/thevladbog/idento-sub000/internal/printer"
	"github.com/thevladbog/idento-sub000/internal/registry"
	"github.com/thevladbog/idento-sub000/internal/zpl"
	"github.com/thevladbog/idento-sub000/pkg/badgeformat"
)

const fetchTimeout = 10 * time.Second

// handlePrint handles print commands
// Usage: print <printer> <path-or-url> [--var key=value]...
func (e *Executor) handlePrint(args []string) *Result {
	if len(args) < 2 {
		return fail("usage: print <printer> <path-or-url> [--var key=value]")
	}

	target, err := e.manager.Resolve(args[0])
	if err != nil {
		return fail("%v", err)
	}

	data, err := parseVars(args[2:])
	if err != nil {
		return fail("%v", err)
	}

	raw, err := loadSource(args[1])
	if err != nil {
		return fail("%v", err)
	}

	payload, err := toZPL(raw, data)
	if err != nil {
		return fail("%v", err)
	}

	job := e.queue.Enqueue(target, []byte(payload))

	return &Result{
		Success: true,
		Message: fmt.Sprintf("Print job queued: %s", job.ID),
		Data: map[string]interface{}{
			"job_id":     job.ID,
			"printer_id": target.ID,
		},
	}
}

func parseVars(args []string) (map[string]any, error) {
	data := make(map[string]any)
	for i := 0; i < len(args); i++ {
		kv := args[i]
		if kv == "--var" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--var needs key=value")
			}
			i++
			kv = args[i]
		} else if v, ok := strings.CutPrefix(kv, "--var="); ok {
			kv = v
		} else {
			return nil, fmt.Errorf("unexpected argument: %s", kv)
		}

		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid variable %q, want key=value", kv)
		}
		data[key] = value
	}
	return data, nil
}

// toZPL passes raw ZPL through and generates ZPL from a label JSON
func toZPL(raw []byte, data map[string]any) (string, error) {
	text := strings.TrimSpace(string(raw))
	if strings.HasPrefix(text, "^XA") || strings.HasPrefix(text, "~") {
		return text, nil
	}

	spec, err := badgeformat.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("not ZPL and not a label template: %w", err)
	}
	if err := badgeformat.Validate(spec); err != nil {
		return "", fmt.Errorf("invalid label template: %w", err)
	}
	return zpl.GenerateLabel(spec, data), nil
}

func loadSource(pathOrURL string) ([]byte, error) {
	if !strings.HasPrefix(pathOrURL, "http://") && !strings.HasPrefix(pathOrURL, "https://") {
		data, err := os.ReadFile(pathOrURL)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		return data, nil
	}

	client := &http.Client{Timeout: fetchTimeout}
	resp, err := client.Get(pathOrURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read from URL: %w", err)
	}
	return data, nil
}

// handlePrinter handles printer commands
// Usage: printer list | add-network <host> [port] | rename <id> <name> | default [name]
func (e *Executor) handlePrinter(args []string) *Result {
	if len(args) == 0 {
		return fail("usage: printer <list|add-network|rename|default>")
	}

	switch args[0] {
	case "list":
		printers := e.manager.GetAllPrinters()
		def := e.manager.DefaultPrinter()
		list := make([]map[string]interface{}, len(printers))
		for i, p := range printers {
			list[i] = map[string]interface{}{
				"id":          p.ID,
				"type":        p.Type,
				"description": p.Description,
				"name":        p.Name,
				"default":     def != nil && def.ID == p.ID,
			}
			if p.Type == registry.TypeNetwork {
				list[i]["host"] = p.Host
				list[i]["port"] = p.Port
			}
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Found %d printer(s)", len(printers)),
			Data:    map[string]interface{}{"printers": list},
		}

	case "add-network":
		if len(args) < 2 {
			return fail("usage: printer add-network <host> [port]")
		}
		port := 0
		if len(args) >= 3 {
			var err error
			port, err = strconv.Atoi(args[2])
			if err != nil || port <= 0 || port > 65535 {
				return fail("invalid port: %s", args[2])
			}
		}
		p := e.manager.AddNetworkPrinter(args[1], port, "")
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Added network printer: %s", p.Description),
			Data: map[string]interface{}{
				"printer_id": p.ID,
				"printer":    p,
			},
		}

	case "rename":
		if len(args) < 3 {
			return fail("usage: printer rename <id> <name>")
		}
		if !e.manager.SetPrinterName(args[1], args[2]) {
			return fail("printer not found: %s", args[1])
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Renamed printer %s to %s", args[1], args[2]),
		}

	case "default":
		if len(args) < 2 {
			def := e.manager.DefaultPrinter()
			if def == nil {
				return &Result{Success: true, Message: "No default printer"}
			}
			return &Result{
				Success: true,
				Message: fmt.Sprintf("Default printer: %s", def.DisplayName()),
				Data:    map[string]interface{}{"printer_id": def.ID},
			}
		}
		p, err := e.manager.SetDefaultPrinter(args[1])
		if err != nil {
			return fail("%v", err)
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Default printer set to %s", p.DisplayName()),
			Data:    map[string]interface{}{"printer_id": p.ID},
		}

	default:
		return fail("unknown printer subcommand: %s. Use: list, add-network, rename, default", args[0])
	}
}

func jobData(job *printer.PrintJob) map[string]interface{} {
	data := map[string]interface{}{
		"id":         job.ID,
		"printer_id": job.PrinterID,
		"status":     job.Status,
		"retries":    job.Retries,
		"created_at": job.CreatedAt,
	}
	if job.Error != "" {
		data["error"] = job.Error
	}
	return data
}

// handleJob handles job commands
// Usage: job list | status <id> | clear
func (e *Executor) handleJob(args []string) *Result {
	if len(args) == 0 {
		return fail("usage: job <list|status|clear>")
	}

	switch args[0] {
	case "list":
		jobs := e.queue.GetAllJobs()
		list := make([]map[string]interface{}, len(jobs))
		for i, job := range jobs {
			list[i] = jobData(job)
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Found %d job(s)", len(jobs)),
			Data:    map[string]interface{}{"jobs": list},
		}

	case "status":
		if len(args) < 2 {
			return fail("usage: job status <id>")
		}
		job := e.queue.GetJob(args[1])
		if job == nil {
			return fail("job not found: %s", args[1])
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Job %s: %s", job.ID, job.Status),
			Data:    jobData(job),
		}

	case "clear":
		n := e.queue.ClearCompleted()
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Cleared %d completed job(s)", n),
		}

	default:
		return fail("unknown job subcommand: %s. Use: list, status, clear", args[0])
	}
}

// handleScanner handles scanner commands
// Usage: scanner list | ports | add <port> | remove <port>
func (e *Executor) handleScanner(args []string) *Result {
	if e.scanners == nil {
		return fail("scanner support is disabled")
	}
	if len(args) == 0 {
		return fail("usage: scanner <list|ports|add|remove>")
	}

	switch args[0] {
	case "list":
		list := e.scanners.List()
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Found %d scanner(s)", len(list)),
			Data:    map[string]interface{}{"scanners": list},
		}

	case "ports":
		ports := e.scanners.Ports()
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Found %d port(s)", len(ports)),
			Data:    map[string]interface{}{"ports": ports},
		}

	case "add":
		if len(args) < 2 {
			return fail("usage: scanner add <port>")
		}
		if err := e.scanners.Add(args[1]); err != nil {
			return fail("%v", err)
		}
		return &Result{Success: true, Message: fmt.Sprintf("Scanner added on %s", args[1])}

	case "remove":
		if len(args) < 2 {
			return fail("usage: scanner remove <port>")
		}
		if !e.scanners.Remove(args[1]) {
			return fail("no scanner on %s", args[1])
		}
		return &Result{Success: true, Message: fmt.Sprintf("Scanner removed from %s", args[1])}

	default:
		return fail("unknown scanner subcommand: %s. Use: list, ports, add, remove", args[0])
	}
}

// handleScan handles scan buffer commands
// Usage: scan last | clear | simulate <code>
func (e *Executor) handleScan(args []string) *Result {
	if e.scanners == nil {
		return fail("scanner support is disabled")
	}
	if len(args) == 0 {
		return fail("usage: scan <last|clear|simulate>")
	}

	switch args[0] {
	case "last":
		scan, ok := e.scanners.Last()
		if !ok {
			return &Result{Success: true, Message: "No scan"}
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Last scan: %s (%s)", scan.Code, scan.PortName),
			Data:    map[string]interface{}{"code": scan.Code, "port_name": scan.PortName},
		}

	case "clear":
		e.scanners.Clear()
		return &Result{Success: true, Message: "Scan buffer cleared"}

	case "simulate":
		if len(args) < 2 || args[1] == "" {
			return fail("usage: scan simulate <code>")
		}
		e.scanners.Inject(args[1], "console")
		return &Result{Success: true, Message: fmt.Sprintf("Simulated scan: %s", args[1])}

	default:
		return fail("unknown scan subcommand: %s. Use: last, clear, simulate", args[0])
	}
}

// handleDetect handles detect command
// Usage: detect
func (e *Executor) handleDetect(args []string) *Result {
	printers, err := e.manager.DetectPrinters()
	if err != nil {
		return fail("detection failed: %v", err)
	}
	return &Result{
		Success: true,
		Message: fmt.Sprintf("Detected %d printer(s)", len(printers)),
		Data:    map[string]interface{}{"count": len(printers)},
	}
}

const helpText = `Available Commands:

  print <printer> <path-or-url> [--var key=value]
    Print a .zpl file or a label template (JSON) filled with variables

  printer list
  printer add-network <host> [port]    (default port: 9100)
  printer rename <id> <name>
  printer default [name]

  job list
  job status <id>
  job clear

  scanner list
  scanner ports
  scanner add <port>
  scanner remove <port>

  scan last
  scan clear
  scan simulate <code>

  detect
  help

Examples:
  print "Front Desk" ./badge.zpl
  print "" ./badge.json --var full_name="Jane Doe" --var code=ABC123
  printer add-network 192.168.1.50
  scanner add /dev/ttyACM0
`

// handleHelp handles help command
func (e *Executor) handleHelp(args []string) *Result {
	return &Result{
		Success: true,
		Message: helpText,
	}
}
