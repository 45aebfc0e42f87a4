package orders

import (
	"slices"
	"time"
)

// ============================================================================
// STATUS ENUMS
// ============================================================================

// OrderStatus tracks inquiry confirmation, the first status axis.
type OrderStatus string

const (
	OrderStatusNewInquiry OrderStatus = "NEW_INQUIRY"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusExecuted   OrderStatus = "EXECUTED"
)

// BeoStatus tracks execution-document approval, the second status axis.
type BeoStatus string

const (
	BeoStatusPlanning      BeoStatus = "PLANNING"
	BeoStatusSentToKanit   BeoStatus = "SENT_TO_KANIT"
	BeoStatusApproved      BeoStatus = "APPROVED"
	BeoStatusNeedsRevision BeoStatus = "NEEDS_REVISION"
)

// Label returns the human-readable status used in document headers.
func (s BeoStatus) Label() string {
	switch s {
	case BeoStatusPlanning:
		return "Planning"
	case BeoStatusSentToKanit:
		return "Sent to Kanit"
	case BeoStatusApproved:
		return "Approved"
	case BeoStatusNeedsRevision:
		return "Needs Revision"
	default:
		return string(s)
	}
}

// beoSendSources are the statuses a supervisor hand-off may start from.
var beoSendSources = []BeoStatus{BeoStatusPlanning, BeoStatusNeedsRevision}

// canSend reports whether sales may hand the documents to the supervisor.
func canSend(s BeoStatus) bool {
	return slices.Contains(beoSendSources, s)
}

// ============================================================================
// AGGREGATE
// ============================================================================

// Order is the root aggregate: one venue event booking.
type Order struct {
	ID         int64       `json:"id"`
	CustomCode string      `json:"custom_code"`
	EventName  string      `json:"event_name"`
	CustomerID int64       `json:"customer_id"`
	EventID    int64       `json:"event_id"`
	Discount   float64     `json:"discount"`
	StartDate  time.Time   `json:"start_date"`
	EndDate    time.Time   `json:"end_date"`
	Status     OrderStatus `json:"status"`
	BeoStatus  BeoStatus   `json:"status_beo"`
	CreatedBy  int64       `json:"created_by"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`

	CustomerName string            `json:"customer_name,omitempty"`
	Schedules    []Schedule        `json:"schedules,omitempty"`
	Beos         []Beo             `json:"beos,omitempty"`
	Attachments  []OrderAttachment `json:"attachments,omitempty"`
	File         *BeoFile          `json:"file,omitempty"`
}

// Schedule is one timed activity line of an order.
type Schedule struct {
	ID       int64     `json:"id"`
	OrderID  int64     `json:"order_id"`
	Title    string    `json:"title"`
	Location string    `json:"location"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// Beo is one department's execution order for an event.
type Beo struct {
	ID           int64           `json:"id"`
	OrderID      int64           `json:"order_id"`
	DepartmentID int64           `json:"department_id"`
	PackageID    *int64          `json:"package_id,omitempty"`
	UserID       *int64          `json:"user_id,omitempty"`
	Notes        string          `json:"notes"`
	Attachments  []BeoAttachment `json:"attachments,omitempty"`

	DepartmentName string `json:"department_name,omitempty"`
	PackageName    string `json:"package_name,omitempty"`
	PICName        string `json:"pic_name,omitempty"`
}

// OrderAttachment is an upload attached to the order itself.
type OrderAttachment struct {
	ID           int64     `json:"id"`
	OrderID      int64     `json:"order_id"`
	StorageKey   string    `json:"-"`
	OriginalName string    `json:"original_name"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
}

// BeoAttachment is an upload attached to one department's BEO.
type BeoAttachment struct {
	ID           int64     `json:"id"`
	BeoID        int64     `json:"beo_id"`
	StorageKey   string    `json:"-"`
	OriginalName string    `json:"original_name"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
}

// ============================================================================
// GENERATED DOCUMENT
// ============================================================================

// DownloadRecord is one audit entry appended on every successful download.
type DownloadRecord struct {
	DownloadedAt time.Time `json:"downloaded_at"`
	DownloadedBy string    `json:"downloaded_by"`
	UserID       int64     `json:"user_id"`
	IPAddress    string    `json:"ip_address"`
}

// FileMetadata is the semi-structured blob stored with a BeoFile.
type FileMetadata struct {
	GeneratedAt     time.Time        `json:"generated_at"`
	TemplateVersion string           `json:"template_version"`
	Checksum        string           `json:"checksum,omitempty"`
	SkippedAssets   []string         `json:"skipped_assets,omitempty"`
	Downloads       []DownloadRecord `json:"downloads,omitempty"`
}

// BeoFile is the generated PDF record, at most one per order. Its
// file_code and id never change once assigned; only the binary, size
// and metadata move on regeneration.
type BeoFile struct {
	ID                int64        `json:"id"`
	OrderID           int64        `json:"order_id"`
	FileCode          string       `json:"file_code"`
	FilePath          string       `json:"file_path"`
	OriginalFilename  string       `json:"original_filename"`
	FileSize          int64        `json:"file_size"`
	MimeType          string       `json:"mime_type"`
	RegenerationCount int          `json:"regeneration_count"`
	Metadata          FileMetadata `json:"metadata"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// PDFStatus is the probe result for an order's document state.
type PDFStatus struct {
	HasBeoRecord      bool      `json:"has_beo_record"`
	HasPDFFile        bool      `json:"has_pdf_file"`
	FileCode          string    `json:"file_code,omitempty"`
	StatusBeo         BeoStatus `json:"status_beo"`
	CanGeneratePDF    bool      `json:"can_generate_pdf"`
	NeedsRegeneration bool      `json:"needs_regeneration"`
}
