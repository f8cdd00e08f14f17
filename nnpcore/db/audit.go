package db

import (
	"fmt"
	"time"

	"github.com/wnagchenghku/nnpshare/nnpcore"
)

// AuditEvent is a session lifecycle transition, per AuditRecord.Event.
type AuditEvent string

const (
	AuditPublish AuditEvent = "publish"
	AuditClose   AuditEvent = "close"
)

// AuditRecord is one append-only entry in a session's lifecycle: a
// publish when the backend grants a frontend its model, a close when the
// frontend tears down. Purely observational — nothing in the protocol
// reads this table back.
type AuditRecord struct {
	ID               uint64 `gorm:"primary_key"`
	FrontendDomainID int
	Model            string
	TotalPages       int
	Event            AuditEvent
	OccurredAt       time.Time
}

// RecordPublish appends a publish event. Implements nnpcore.AuditSink.
func (d *DB) RecordPublish(feID int, model string, totalPages int) {
	d.gorm.Create(&AuditRecord{
		FrontendDomainID: feID,
		Model:            model,
		TotalPages:       totalPages,
		Event:            AuditPublish,
		OccurredAt:       time.Now(),
	})
}

// RecordClose appends a close event. Implements nnpcore.AuditSink.
func (d *DB) RecordClose(feID int, model string) {
	d.gorm.Create(&AuditRecord{
		FrontendDomainID: feID,
		Model:            model,
		Event:            AuditClose,
		OccurredAt:       time.Now(),
	})
}

// ListAuditRecords returns every audit record for feID in chronological
// order. Implements nnpcore.AuditReader; surfaced by the diagnostics
// endpoint's /sessions/{id}/audit route and cmd/nnpstatus's audit command.
func (d *DB) ListAuditRecords(feID int) ([]nnpcore.AuditRecord, error) {
	var rows []AuditRecord
	err := d.gorm.Where("frontend_domain_id = ?", feID).Order("occurred_at asc").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("nnpcore/db: list audit records: %w", err)
	}

	records := make([]nnpcore.AuditRecord, len(rows))
	for i, row := range rows {
		records[i] = nnpcore.AuditRecord{
			FrontendDomainID: row.FrontendDomainID,
			Model:            row.Model,
			TotalPages:       row.TotalPages,
			Event:            string(row.Event),
			OccurredAt:       row.OccurredAt.Format(time.RFC3339),
		}
	}
	return records, nil
}
