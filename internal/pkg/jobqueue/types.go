package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeWebhookRepair JobType = "webhook_repair"
	JobTypeInvoiceSend   JobType = "invoice_send"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// WebhookRepairJobPayload contains the payload for webhook repair jobs
type WebhookRepairJobPayload struct {
	Limit int `json:"limit"`
}

// ToMap converts the payload to a map for storage
func (p WebhookRepairJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"limit": p.Limit,
	}
}

// WebhookRepairJobPayloadFromMap creates a payload from a map
func WebhookRepairJobPayloadFromMap(data map[string]interface{}) (*WebhookRepairJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload WebhookRepairJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// InvoiceSendJobPayload contains the payload for monthly invoice jobs
type InvoiceSendJobPayload struct {
	JukuID uint `json:"juku_id"`
	Year   int  `json:"year"`
	Month  int  `json:"month"`
}

// ToMap converts the payload to a map for storage
func (p InvoiceSendJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"juku_id": p.JukuID,
		"year":    p.Year,
		"month":   p.Month,
	}
}

// InvoiceSendJobPayloadFromMap creates a payload from a map
func InvoiceSendJobPayloadFromMap(data map[string]interface{}) (*InvoiceSendJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload InvoiceSendJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
