// Package index holds the process-wide catalog of secondary index
// definitions. The catalog is pure data: every repository layer consults it
// to resolve the physical index for a requested sort dimension, and the
// store driver's admin surface creates the declared indexes from it.
package index

// KeyType is the scalar data type of an index key attribute.
type KeyType string

const (
	KeyTypeString KeyType = "S"
	KeyTypeNumber KeyType = "N"
)

// Name identifies one secondary index in the catalog. The set is closed;
// lookups against catalog names never fail at runtime.
type Name string

const (
	// Feature-entity scoped access patterns.
	FeatureEntityCreatedAt  Name = "featureEntity-createdAtDate-index"
	FeatureEntityRecordDate Name = "featureEntity-recordDate-index"

	// Tenant scoped access patterns, partitioned by the derived
	// featureEntityTenantId composite key.
	TenantCreatedAt  Name = "featureEntityTenantId-createdAtDate-index"
	TenantRecordDate Name = "featureEntityTenantId-recordDate-index"
	TenantNumberCode Name = "featureEntityTenantId-numberCode-index"
	TenantStringCode Name = "featureEntityTenantId-stringCode-index"

	// Target-relation scoped access patterns.
	TargetCreatedAt     Name = "targetId-createdAtDate-index"
	TargetRecordDate    Name = "targetId-recordDate-index"
	TargetFeatureEntity Name = "targetId-featureEntity-index"

	// Cache partitioning.
	CacheTargetCategory Name = "targetId-category-index"
)

// Definition describes one secondary index: the partition key field, the
// sort key field, and their data types.
type Definition struct {
	IndexName        Name
	PartitionKey     string
	SortKey          string
	PartitionKeyType KeyType
	SortKeyType      KeyType
}

// catalog is built once at package init and read-only afterward.
var catalog = map[Name]Definition{}

func register(def Definition) Definition {
	catalog[def.IndexName] = def
	return def
}

var (
	DefFeatureEntityCreatedAt = register(Definition{
		IndexName:        FeatureEntityCreatedAt,
		PartitionKey:     "featureEntity",
		SortKey:          "createdAtDate",
		PartitionKeyType: KeyTypeString,
		SortKeyType:      KeyTypeString,
	})
	DefFeatureEntityRecordDate = register(Definition{
		IndexName:        FeatureEntityRecordDate,
		PartitionKey:     "featureEntity",
		SortKey:          "recordDate",
		PartitionKeyType: KeyTypeString,
		SortKeyType:      KeyTypeString,
	})
	DefTenantCreatedAt = register(Definition{
		IndexName:        TenantCreatedAt,
		PartitionKey:     "featureEntityTenantId",
		SortKey:          "createdAtDate",
		PartitionKeyType: KeyTypeString,
		SortKeyType:      KeyTypeString,
	})
	DefTenantRecordDate = register(Definition{
		IndexName:        TenantRecordDate,
		PartitionKey:     "featureEntityTenantId",
		SortKey:          "recordDate",
		PartitionKeyType: KeyTypeString,
		SortKeyType:      KeyTypeString,
	})
	DefTenantNumberCode = register(Definition{
		IndexName:        TenantNumberCode,
		PartitionKey:     "featureEntityTenantId",
		SortKey:          "numberCode",
		PartitionKeyType: KeyTypeString,
		SortKeyType:      KeyTypeNumber,
	})
	// stringCode carries string values but is declared with the numeric key
	// type, matching the deployed tables. Changing the declared type would
	// require a migration of every existing index.
	DefTenantStringCode = register(Definition{
		IndexName:        TenantStringCode,
		PartitionKey:     "featureEntityTenantId",
		SortKey:          "stringCode",
		PartitionKeyType: KeyTypeString,
		SortKeyType:      KeyTypeNumber,
	})
	DefTargetCreatedAt = register(Definition{
		IndexName:        TargetCreatedAt,
		PartitionKey:     "targetId",
		SortKey:          "createdAtDate",
		PartitionKeyType: KeyTypeString,
		SortKeyType:      KeyTypeString,
	})
	DefTargetRecordDate = register(Definition{
		IndexName:        TargetRecordDate,
		PartitionKey:     "targetId",
		SortKey:          "recordDate",
		PartitionKeyType: KeyTypeString,
		SortKeyType:      KeyTypeString,
	})
	DefTargetFeatureEntity = register(Definition{
		IndexName:        TargetFeatureEntity,
		PartitionKey:     "targetId",
		SortKey:          "featureEntity",
		PartitionKeyType: KeyTypeString,
		SortKeyType:      KeyTypeString,
	})
	DefCacheTargetCategory = register(Definition{
		IndexName:        CacheTargetCategory,
		PartitionKey:     "targetId",
		SortKey:          "category",
		PartitionKeyType: KeyTypeString,
		SortKeyType:      KeyTypeString,
	})
)

// Lookup resolves a catalog name to its definition. Catalog names are a
// closed set, so a miss indicates a programming error.
func Lookup(name Name) Definition {
	return catalog[name]
}

// EntityIndexes returns the definitions provisioned on every feature-entity
// table.
func EntityIndexes() []Definition {
	return []Definition{
		DefFeatureEntityCreatedAt,
		DefFeatureEntityRecordDate,
		DefTenantCreatedAt,
		DefTenantRecordDate,
		DefTenantNumberCode,
		DefTenantStringCode,
		DefTargetCreatedAt,
		DefTargetRecordDate,
		DefTargetFeatureEntity,
	}
}

// CacheIndexes returns the definitions provisioned on the cache table.
func CacheIndexes() []Definition {
	return []Definition{DefCacheTargetCategory}
}
