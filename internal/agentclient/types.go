package agentclient

// Health is the /health response
type Health struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Printers int    `json:"printers"`
	Scanners int    `json:"scanners"`
}

// Printer is one entry of /printers
type Printer struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	IsDefault   bool   `json:"is_default"`
}

// Scanner is an attached barcode scanner
type Scanner struct {
	PortName  string `json:"port_name"`
	Connected bool   `json:"connected"`
	LastError string `json:"last_error,omitempty"`
}

// Port is a serial port a scanner could be attached to
type Port struct {
	PortName string `json:"port_name"`
	InUse    bool   `json:"in_use"`
}

// DefaultPrinterBody is the /printers/default request and response
type DefaultPrinterBody struct {
	Default string `json:"default"`
}

// AddScannerRequest is the /scanners/add body
type AddScannerRequest struct {
	PortName string `json:"port_name"`
}

// ScanResponse is the /scan/last response. Code is empty when nothing
// has been scanned since the last clear.
type ScanResponse struct {
	Code      string `json:"code,omitempty"`
	PortName  string `json:"port_name,omitempty"`
	ScannedAt string `json:"scanned_at,omitempty"`
}

// PrintRequest is the /print body
type PrintRequest struct {
	PrinterName string `json:"printer_name"`
	ZPL         string `json:"zpl"`
}

// PrintResponse is the /print response
type PrintResponse struct {
	JobID   string `json:"job_id"`
	Printer string `json:"printer"`
	Status  string `json:"status"`
}

// CommandRequest is the /command body: one console command line
type CommandRequest struct {
	Command string `json:"command"`
}

// CommandResult is the /command response
type CommandResult struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}
