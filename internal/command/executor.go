// Package command implements the agent's text command line, shared by the
// /command endpoint and the console
package command

import (
	"fmt"
	"strings"

	"github.com/thevladbog/idento-sub000/internal/printer"
	"github.com/thevladbog/idento-sub000/internal/scanner"
)

// Executor executes commands
type Executor struct {
	manager  *printer.Manager
	queue    *printer.PrintQueue
	scanners *scanner.Manager
}

// NewExecutor creates a new command executor. scanners may be nil when the
// agent runs without scanner support.
func NewExecutor(manager *printer.Manager, queue *printer.PrintQueue, scanners *scanner.Manager) *Executor {
	return &Executor{
		manager:  manager,
		queue:    queue,
		scanners: scanners,
	}
}

// Result represents the result of executing a command
type Result struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

func fail(format string, args ...interface{}) *Result {
	return &Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Execute executes a command string and returns a result
func (e *Executor) Execute(cmdStr string) *Result {
	parts := parseCommand(cmdStr)
	if len(parts) == 0 {
		return fail("empty command")
	}

	command := parts[0]
	args := parts[1:]

	switch command {
	case "print":
		return e.handlePrint(args)
	case "printer":
		return e.handlePrinter(args)
	case "job":
		return e.handleJob(args)
	case "scanner":
		return e.handleScanner(args)
	case "scan":
		return e.handleScan(args)
	case "detect":
		return e.handleDetect(args)
	case "help":
		return e.handleHelp(args)
	default:
		return fail("unknown command: %s. Type 'help' for available commands", command)
	}
}

// parseCommand splits a command line on spaces, keeping quoted strings
// together
func parseCommand(cmdStr string) []string {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		return []string{}
	}

	var parts []string
	var current strings.Builder
	inQuotes := false
	quoted := false
	quoteChar := byte(0)

	for i := 0; i < len(cmdStr); i++ {
		char := cmdStr[i]

		switch {
		case (char == '"' || char == '\'') && !inQuotes:
			inQuotes = true
			quoted = true
			quoteChar = char
		case inQuotes && char == quoteChar:
			inQuotes = false
			quoteChar = 0
		case char == ' ' && !inQuotes:
			if current.Len() > 0 || quoted {
				parts = append(parts, current.String())
				current.Reset()
				quoted = false
			}
		default:
			current.WriteByte(char)
		}
	}

	if current.Len() > 0 || quoted {
		parts = append(parts, current.String())
	}

	return parts
}
