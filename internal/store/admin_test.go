package store

import (
	"testing"

	"tenantcore-backend/internal/index"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attributeNames(defs []types.AttributeDefinition) map[string]types.ScalarAttributeType {
	out := make(map[string]types.ScalarAttributeType, len(defs))
	for _, def := range defs {
		out[aws.ToString(def.AttributeName)] = def.AttributeType
	}
	return out
}

func TestAttributeDefinitionsForSingleIndex(t *testing.T) {
	def := index.Lookup(index.TenantCreatedAt)

	attrs := attributeNames(attributeDefinitions([]index.Definition{def}))

	// Only the table key and the one index's key pair appear; attributes
	// belonging to other catalog indexes must not.
	require.Len(t, attrs, 3)
	assert.Contains(t, attrs, idField)
	assert.Contains(t, attrs, def.PartitionKey)
	assert.Contains(t, attrs, def.SortKey)
}

func TestAttributeDefinitionsKeyTypes(t *testing.T) {
	numberCoded := index.Lookup(index.TenantNumberCode)

	attrs := attributeNames(attributeDefinitions([]index.Definition{numberCoded}))
	assert.Equal(t, types.ScalarAttributeTypeS, attrs[idField])
	assert.Equal(t, types.ScalarAttributeTypeN, attrs[numberCoded.SortKey])
}
