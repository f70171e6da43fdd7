// Package repository implements the layered persistence surface shared by
// every business entity: identity primitives scoped to one feature entity,
// feature-entity partitioned queries with a CRUD formatting pipeline, tenant
// isolation with edit locks, and target-relation scoping on top of that.
//
// A domain repository is constructed once at startup with its schema
// (feature-entity name, aliases, required fields) and calls the layer
// matching its scope kind. All physical access goes through the injected
// store driver.
package repository

import "time"

// Reserved generic field names. Domain schemas must not redefine these.
const (
	FieldID                    = "id"
	FieldFeatureEntity         = "featureEntity"
	FieldFeatureEntityTenantID = "featureEntityTenantId"
	FieldTenantID              = "tenantId"
	FieldCreatedAtDate         = "createdAtDate"
	FieldCreatedAtDayStamp     = "createdAtDayStamp"
	FieldRecordDate            = "recordDate"
	FieldCreatorUserID         = "creatorUserId"
	FieldLastModifiedDate      = "lastModifiedDate"
	FieldLastModifierUserID    = "lastModifierUserId"
	FieldDeleterUserID         = "deleterUserId"
	FieldDeletedAtDate         = "deletedAtDate"
	FieldSK01                  = "sk01"
	FieldSK02                  = "sk02"
	FieldSK03                  = "sk03"
	FieldNumberCode            = "numberCode"
	FieldStringCode            = "stringCode"
	FieldTargetID              = "targetId"
	FieldCustomerID            = "customerId"
	FieldOperationID           = "operationId"
	FieldTags                  = "tags"
)

// Timestamp layouts. createdAtDate carries the full instant; day stamps and
// record dates are date-only.
const (
	TimestampLayout = time.RFC3339
	DayStampLayout  = "2006-01-02"
)

// TenantKeySeparator joins the feature-entity name and the tenant id into
// the derived composite partition key.
const TenantKeySeparator = "::"

// FieldAlias declares a synonym pair: a domain-meaningful source field
// mapped onto a generic indexed slot (sk01, targetId, ...). Both sides must
// carry equal values on every persisted write.
type FieldAlias struct {
	Source string
	Slot   string
}

// Schema is the declaration a domain repository is constructed with.
type Schema struct {
	FeatureEntity  string
	RequiredFields []string
	Aliases        []FieldAlias
}

// SessionUser is the caller context supplied by the session collaborator.
type SessionUser struct {
	UserID              string
	TenantID            string
	IsAdmin             bool
	DataEditLockMinutes int
}

// TenantKey derives the composite partition key for tenant-scoped indexes.
// It is always recomputed server-side, never accepted from a caller.
func TenantKey(featureEntity, tenantID string) string {
	return featureEntity + TenantKeySeparator + tenantID
}
