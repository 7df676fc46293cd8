package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType identifies the kind of pipeline event being recorded.
type AuditEventType string

const (
	// LLM provider calls
	AuditLLMRequest  AuditEventType = "llm_request"
	AuditLLMResponse AuditEventType = "llm_response"
	AuditLLMError    AuditEventType = "llm_error"

	// Embedding index operations
	AuditIndexAdd    AuditEventType = "index_add"
	AuditIndexQuery  AuditEventType = "index_query"
	AuditIndexClear  AuditEventType = "index_clear"
	AuditIndexDelete AuditEventType = "index_delete"

	// Test-case generation
	AuditGenerateStart    AuditEventType = "generate_start"
	AuditGenerateComplete AuditEventType = "generate_complete"
	AuditGenerateError    AuditEventType = "generate_error"

	// Script synthesis
	AuditSynthStart    AuditEventType = "synth_start"
	AuditSynthComplete AuditEventType = "synth_complete"
	AuditSynthError    AuditEventType = "synth_error"

	// Chunk ingestion
	AuditIngestFile AuditEventType = "ingest_file"
)

// AuditEvent is one structured line in the audit log. The audit trail is the
// durable record of what was retrieved, generated, and validated, so grounding
// decisions can be reconstructed after the fact.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"` // Unix milliseconds
	EventType  AuditEventType         `json:"event"`
	RequestID  string                 `json:"req,omitempty"`
	Target     string                 `json:"target,omitempty"` // model, source, test-case id
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Message    string                 `json:"msg,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

var (
	auditFile *os.File
	auditMu   sync.Mutex
)

// InitAudit opens the audit log. No-op when logging is disabled.
func InitAudit() error {
	if !IsEnabled() || logsDir == "" {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		return nil
	}

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(logsDir, fmt.Sprintf("%s_audit.log", date))
	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file
	fmt.Fprintf(auditFile, "# audit log started %s\n", time.Now().Format(time.RFC3339))
	return nil
}

// CloseAudit closes the audit log file.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// AuditLogger records structured pipeline events, optionally scoped to one
// request id.
type AuditLogger struct {
	requestID string
}

// Audit returns an unscoped audit logger.
func Audit() *AuditLogger {
	return &AuditLogger{}
}

// AuditWithRequest returns an audit logger scoped to a request id.
func AuditWithRequest(requestID string) *AuditLogger {
	return &AuditLogger{requestID: requestID}
}

// Log writes one audit event as a JSON line.
func (a *AuditLogger) Log(event AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile == nil {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.RequestID == "" {
		event.RequestID = a.requestID
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	auditFile.Write(append(data, '\n'))
}

// LLMCall records a completed provider call.
func (a *AuditLogger) LLMCall(model string, durationMs int64, success bool, errMsg string) {
	event := AuditEvent{
		EventType:  AuditLLMResponse,
		Target:     model,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
		Message:    fmt.Sprintf("LLM call: %s (%dms, success=%v)", model, durationMs, success),
	}
	if !success {
		event.EventType = AuditLLMError
	}
	a.Log(event)
}

// IndexOp records an embedding-index operation.
func (a *AuditLogger) IndexOp(op AuditEventType, target string, count int, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType: op,
		Target:    target,
		Success:   success,
		Error:     errMsg,
		Fields:    map[string]interface{}{"count": count},
		Message:   fmt.Sprintf("Index %s: %s count=%d success=%v", op, target, count, success),
	})
}

// Generation records the outcome of a test-case generation call.
func (a *AuditLogger) Generation(query string, cases, ungrounded int, durationMs int64, success bool, errMsg string) {
	event := AuditEvent{
		EventType:  AuditGenerateComplete,
		Target:     query,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
		Fields:     map[string]interface{}{"cases": cases, "ungrounded": ungrounded},
		Message:    fmt.Sprintf("Generation: %d cases (%d ungrounded, %dms)", cases, ungrounded, durationMs),
	}
	if !success {
		event.EventType = AuditGenerateError
	}
	a.Log(event)
}

// Synthesis records the outcome of one script synthesis.
func (a *AuditLogger) Synthesis(testCaseID, status string, version int, durationMs int64, success bool, errMsg string) {
	event := AuditEvent{
		EventType:  AuditSynthComplete,
		Target:     testCaseID,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
		Fields:     map[string]interface{}{"status": status, "version": version},
		Message:    fmt.Sprintf("Synthesis: %s v%d status=%s (%dms)", testCaseID, version, status, durationMs),
	}
	if !success {
		event.EventType = AuditSynthError
	}
	a.Log(event)
}

// IngestFile records one ingested chunk file.
func (a *AuditLogger) IngestFile(path string, chunks int, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType: AuditIngestFile,
		Target:    path,
		Success:   success,
		Error:     errMsg,
		Fields:    map[string]interface{}{"chunks": chunks},
		Message:   fmt.Sprintf("Ingest: %s chunks=%d success=%v", path, chunks, success),
	})
}

// =============================================================================
// PACKAGE-LEVEL CONVENIENCE
// =============================================================================

// LLMCall records a completed provider call on the unscoped audit logger.
func LLMCall(model string, durationMs int64, success bool, errMsg string) {
	Audit().LLMCall(model, durationMs, success, errMsg)
}

// IndexOp records an embedding-index operation. op is one of add, query,
// clear, delete.
func IndexOp(op string, target string, count int, success bool, errMsg string) {
	Audit().IndexOp(AuditEventType("index_"+op), target, count, success, errMsg)
}

// Generation records the outcome of a test-case generation call.
func Generation(query string, cases, ungrounded int, durationMs int64, success bool, errMsg string) {
	Audit().Generation(query, cases, ungrounded, durationMs, success, errMsg)
}

// Synthesis records the outcome of one script synthesis.
func Synthesis(testCaseID, status string, version int, durationMs int64, success bool, errMsg string) {
	Audit().Synthesis(testCaseID, status, version, durationMs, success, errMsg)
}

// IngestFile records one ingested chunk file.
func IngestFile(path string, chunks int, success bool, errMsg string) {
	Audit().IngestFile(path, chunks, success, errMsg)
}
