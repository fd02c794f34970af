// Package api serves the agent's HTTP and WebSocket endpoints
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/thevladbog/idento-sub000/internal/agentclient"
	"github.com/thevladbog/idento-sub000/internal/command"
	"github.com/thevladbog/idento-sub000/internal/printer"
	"github.com/thevladbog/idento-sub000/internal/renderer"
	"github.com/thevladbog/idento-sub000/internal/scanner"
	"github.com/thevladbog/idento-sub000/internal/zpl"
	"github.com/thevladbog/idento-sub000/pkg/badgeformat"
)

const shutdownTimeout = 5 * time.Second

// Options wires the server to the agent's components
type Options struct {
	Manager  *printer.Manager
	Pool     *printer.ConnectionPool
	Queue    *printer.PrintQueue
	Scanners *scanner.Manager // nil disables the scanner endpoints
	Logger   logrus.FieldLogger

	// CORSOrigins lists allowed browser origins; empty or "*" allows all
	CORSOrigins []string
	Version     string
}

// Server is the API server
type Server struct {
	router   *gin.Engine
	manager  *printer.Manager
	pool     *printer.ConnectionPool
	queue    *printer.PrintQueue
	scanners *scanner.Manager
	executor *command.Executor
	hub      *Hub
	log      logrus.FieldLogger
	version  string
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)

	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))
	router.Use(cors.New(corsConfig(opts.CORSOrigins)))

	s := &Server{
		router:   router,
		manager:  opts.Manager,
		pool:     opts.Pool,
		queue:    opts.Queue,
		scanners: opts.Scanners,
		executor: command.NewExecutor(opts.Manager, opts.Queue, opts.Scanners),
		hub:      NewHub(originChecker(opts.CORSOrigins), log),
		log:      log,
		version:  opts.Version,
	}

	s.setupRoutes()

	return s
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if allowAll(origins) {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	return cfg
}

func allowAll(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

func originChecker(origins []string) func(*http.Request) bool {
	if allowAll(origins) {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range origins {
			if strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// /scan/last is polled twice a second
		if c.Request.URL.Path == "/scan/last" && c.Writer.Status() == http.StatusOK {
			return
		}
		log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).Round(time.Millisecond),
		}).Debug("HTTP request")
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	// Printers
	s.router.GET("/printers", s.handleGetPrinters)
	s.router.GET("/printers/default", s.handleGetDefaultPrinter)
	s.router.POST("/printers/default", s.handleSetDefaultPrinter)
	s.router.POST("/printers/network", s.handleAddNetworkPrinter)
	s.router.POST("/printers/detect", s.handleDetectPrinters)
	s.router.POST("/printer/:id/name", s.handleSetPrinterName)

	// Scanners
	s.router.GET("/scanners", s.handleGetScanners)
	s.router.GET("/scanners/ports", s.handleGetScannerPorts)
	s.router.POST("/scanners/add", s.handleAddScanner)
	s.router.POST("/scanners/remove", s.handleRemoveScanner)
	s.router.GET("/scan/last", s.handleLastScan)
	s.router.POST("/scan/clear", s.handleClearScan)
	s.router.POST("/scan/simulate", s.handleSimulateScan)

	// Printing
	s.router.POST("/print", s.handlePrint)
	s.router.GET("/jobs", s.handleGetJobs)
	s.router.GET("/job/:id", s.handleGetJob)
	s.router.POST("/jobs/clear", s.handleClearJobs)

	// Label tooling
	s.router.POST("/preview", s.handlePreview)
	s.router.POST("/preview/zpl", s.handlePreviewZPL)

	s.router.POST("/command", s.handleCommand)
	s.router.GET("/ws", s.hub.handle)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Executor returns the command executor behind /command
func (s *Server) Executor() *command.Executor {
	return s.executor
}

// Hub returns the WebSocket hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// NotifyPrinterAdded broadcasts a printer_added event
func (s *Server) NotifyPrinterAdded(p *printer.Printer) {
	s.hub.Broadcast(EventPrinterAdded, s.toAPIPrinter(p, s.defaultID()))
}

// NotifyPrinterRemoved broadcasts a printer_removed event
func (s *Server) NotifyPrinterRemoved(id string) {
	s.hub.Broadcast(EventPrinterRemoved, gin.H{"id": id})
}

// NotifyJob broadcasts a job_updated event
func (s *Server) NotifyJob(job printer.PrintJob) {
	s.hub.Broadcast(EventJobUpdated, job)
}

// NotifyScan broadcasts a scan event
func (s *Server) NotifyScan(scan scanner.Scan) {
	s.hub.Broadcast(EventScan, toScanResponse(scan))
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	health := agentclient.Health{
		Status:   "ok",
		Version:  s.version,
		Printers: len(s.manager.GetAllPrinters()),
	}
	if s.scanners != nil {
		health.Scanners = len(s.scanners.List())
	}
	c.JSON(http.StatusOK, health)
}

func (s *Server) defaultID() string {
	if def := s.manager.DefaultPrinter(); def != nil {
		return def.ID
	}
	return ""
}

func (s *Server) toAPIPrinter(p *printer.Printer, defaultID string) agentclient.Printer {
	status := "online"
	if s.pool != nil && s.pool.IsConnected(p.ID) {
		status = "connected"
	}
	return agentclient.Printer{
		ID:          p.ID,
		Name:        p.DisplayName(),
		Type:        p.Type,
		Description: p.Description,
		Status:      status,
		IsDefault:   p.ID == defaultID,
	}
}

// handleGetPrinters returns all known printers
func (s *Server) handleGetPrinters(c *gin.Context) {
	printers := s.manager.GetAllPrinters()
	defaultID := s.defaultID()

	out := make([]agentclient.Printer, 0, len(printers))
	for _, p := range printers {
		out = append(out, s.toAPIPrinter(p, defaultID))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetDefaultPrinter(c *gin.Context) {
	var body agentclient.DefaultPrinterBody
	if def := s.manager.DefaultPrinter(); def != nil {
		body.Default = def.DisplayName()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleSetDefaultPrinter(c *gin.Context) {
	var req agentclient.DefaultPrinterBody
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Default) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "default is required"})
		return
	}

	p, err := s.manager.SetDefaultPrinter(req.Default)
	if err != nil {
		c.JSON(printerErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, agentclient.DefaultPrinterBody{Default: p.DisplayName()})
}

func printerErrorStatus(err error) int {
	if errors.Is(err, printer.ErrNoPrinter) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// handleSetPrinterName sets a custom name for a printer
func (s *Server) handleSetPrinterName(c *gin.Context) {
	printerID := c.Param("id")

	var req struct {
		Name string `json:"name" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	if !s.manager.SetPrinterName(printerID, req.Name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "printer not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleAddNetworkPrinter manually adds a network printer
func (s *Server) handleAddNetworkPrinter(c *gin.Context) {
	var req struct {
		Host        string `json:"host" binding:"required"`
		Port        int    `json:"port"`
		Description string `json:"description"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "host is required"})
		return
	}
	if req.Port < 0 || req.Port > 65535 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid port"})
		return
	}

	p := s.manager.AddNetworkPrinter(req.Host, req.Port, req.Description)

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"printer_id": p.ID,
		"printer":    s.toAPIPrinter(p, s.defaultID()),
	})
}

func (s *Server) handleDetectPrinters(c *gin.Context) {
	printers, err := s.manager.DetectPrinters()
	if err != nil {
		// Partial results are still useful
		s.log.WithError(err).Warn("Printer detection incomplete")
	}
	c.JSON(http.StatusOK, gin.H{"count": len(printers)})
}

func (s *Server) scannersEnabled(c *gin.Context) bool {
	if s.scanners == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scanner support is disabled"})
		return false
	}
	return true
}

func (s *Server) handleGetScanners(c *gin.Context) {
	if !s.scannersEnabled(c) {
		return
	}
	list := s.scanners.List()
	out := make([]agentclient.Scanner, 0, len(list))
	for _, st := range list {
		out = append(out, agentclient.Scanner{
			PortName:  st.PortName,
			Connected: st.Connected,
			LastError: st.LastError,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetScannerPorts(c *gin.Context) {
	if !s.scannersEnabled(c) {
		return
	}
	ports := s.scanners.Ports()
	out := make([]agentclient.Port, 0, len(ports))
	for _, p := range ports {
		out = append(out, agentclient.Port{PortName: p.PortName, InUse: p.InUse})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleAddScanner(c *gin.Context) {
	if !s.scannersEnabled(c) {
		return
	}
	var req agentclient.AddScannerRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.PortName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "port_name is required"})
		return
	}

	if err := s.scanners.Add(req.PortName); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, scanner.ErrAlreadyAttached) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleRemoveScanner(c *gin.Context) {
	if !s.scannersEnabled(c) {
		return
	}
	var req agentclient.AddScannerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PortName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "port_name is required"})
		return
	}
	if !s.scanners.Remove(req.PortName) {
		c.JSON(http.StatusNotFound, gin.H{"error": "scanner not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func toScanResponse(scan scanner.Scan) agentclient.ScanResponse {
	return agentclient.ScanResponse{
		Code:      scan.Code,
		PortName:  scan.PortName,
		ScannedAt: scan.ScannedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (s *Server) handleLastScan(c *gin.Context) {
	if !s.scannersEnabled(c) {
		return
	}
	scan, ok := s.scanners.Last()
	if !ok {
		c.JSON(http.StatusOK, agentclient.ScanResponse{})
		return
	}
	c.JSON(http.StatusOK, toScanResponse(scan))
}

func (s *Server) handleClearScan(c *gin.Context) {
	if !s.scannersEnabled(c) {
		return
	}
	s.scanners.Clear()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleSimulateScan injects a code as if it had been scanned
func (s *Server) handleSimulateScan(c *gin.Context) {
	if !s.scannersEnabled(c) {
		return
	}
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}
	s.scanners.Inject(req.Code, "api")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handlePrint resolves the printer and queues raw ZPL
func (s *Server) handlePrint(c *gin.Context) {
	var req agentclient.PrintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload := strings.TrimSpace(req.ZPL)
	if payload == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "zpl is required"})
		return
	}
	if !strings.Contains(payload, "^XA") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "zpl must contain a ^XA label"})
		return
	}

	target, err := s.manager.Resolve(req.PrinterName)
	if err != nil {
		c.JSON(printerErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	job := s.queue.Enqueue(target, []byte(payload))

	c.JSON(http.StatusOK, agentclient.PrintResponse{
		JobID:   job.ID,
		Printer: target.DisplayName(),
		Status:  job.Status,
	})
}

// handleGetJobs returns all print jobs
func (s *Server) handleGetJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": s.queue.GetAllJobs()})
}

// handleGetJob returns a specific print job
func (s *Server) handleGetJob(c *gin.Context) {
	job := s.queue.GetJob(c.Param("id"))
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleClearJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cleared": s.queue.ClearCompleted()})
}

type previewRequest struct {
	Label json.RawMessage `json:"label"`
	Data  map[string]any  `json:"data"`
}

func (s *Server) bindPreview(c *gin.Context) (*badgeformat.LabelSpec, map[string]any, bool) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, nil, false
	}
	if len(req.Label) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "label is required"})
		return nil, nil, false
	}

	spec, err := badgeformat.Parse(req.Label)
	if err == nil {
		err = badgeformat.Validate(spec)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid label: " + err.Error()})
		return nil, nil, false
	}
	return spec, req.Data, true
}

// handlePreview renders a label to PNG
func (s *Server) handlePreview(c *gin.Context) {
	spec, data, ok := s.bindPreview(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := renderer.RenderPNG(spec, data, &buf); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// handlePreviewZPL returns the ZPL a label would print as
func (s *Server) handlePreviewZPL(c *gin.Context) {
	spec, data, ok := s.bindPreview(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"zpl": zpl.GenerateLabel(spec, data)})
}

// handleCommand handles command execution requests
func (s *Server) handleCommand(c *gin.Context) {
	var req struct {
		Command string `json:"command" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "command is required"})
		return
	}

	result := s.executor.Execute(req.Command)
	if !result.Success {
		c.JSON(http.StatusBadRequest, result)
		return
	}
	c.JSON(http.StatusOK, result)
}
