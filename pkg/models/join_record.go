package models

import (
	"time"

	"github.com/google/uuid"
)

// JoinRecord is a materialised instance of a Relationship linking two concrete
// records. Exactly one of (RecordID, RecordUUID) and exactly one of
// (RelatedRecordID, RelatedRecordUUID) is populated, chosen by ClassifyPK.
// Stored in gateway_join_records.
type JoinRecord struct {
	ID                uuid.UUID  `json:"id"`
	RelationshipID    uuid.UUID  `json:"relationship_id"`
	RecordID          *int64     `json:"record_id,omitempty"`
	RecordUUID        *uuid.UUID `json:"record_uuid,omitempty"`
	RelatedRecordID   *int64     `json:"related_record_id,omitempty"`
	RelatedRecordUUID *uuid.UUID `json:"related_record_uuid,omitempty"`
	// OrganizationUUID scopes the join to a tenant. Nil means the join is
	// globally visible (bulk-import seeds).
	OrganizationUUID *uuid.UUID `json:"organization_uuid,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// OriginPK returns the populated origin-side PK as a string.
func (j *JoinRecord) OriginPK() string {
	if j.RecordUUID != nil {
		return j.RecordUUID.String()
	}
	if j.RecordID != nil {
		return StringifyPK(*j.RecordID)
	}
	return ""
}

// RelatedPK returns the populated related-side PK as a string.
func (j *JoinRecord) RelatedPK() string {
	if j.RelatedRecordUUID != nil {
		return j.RelatedRecordUUID.String()
	}
	if j.RelatedRecordID != nil {
		return StringifyPK(*j.RelatedRecordID)
	}
	return ""
}
