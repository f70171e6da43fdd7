package store

import (
	"context"
	goerrors "errors"

	apperrors "tenantcore-backend/internal/errors"
	"tenantcore-backend/internal/index"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// EnsureIndexes provisions the table and the catalog's secondary indexes.
// Missing tables are created with all indexes in one call; on existing
// tables, absent indexes are added one at a time since the service accepts
// a single index change per update.
func (d *DynamoDriver) EnsureIndexes(ctx context.Context, defs []index.Definition) error {
	existing, err := d.ListIndexes(ctx)
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if goerrors.As(err, &notFound) {
			return d.createTable(ctx, defs)
		}
		return err
	}

	present := make(map[string]bool, len(existing))
	for _, name := range existing {
		present[name] = true
	}

	for _, def := range defs {
		if present[string(def.IndexName)] {
			continue
		}
		d.logger.Info("creating secondary index",
			zap.String("table", d.tableName),
			zap.String("index", string(def.IndexName)))
		// Definitions are restricted to the index being created; the
		// service rejects attributes no key schema in the request uses.
		_, err := d.client.UpdateTable(ctx, &dynamodb.UpdateTableInput{
			TableName:            aws.String(d.tableName),
			AttributeDefinitions: attributeDefinitions([]index.Definition{def}),
			GlobalSecondaryIndexUpdates: []types.GlobalSecondaryIndexUpdate{
				{Create: &types.CreateGlobalSecondaryIndexAction{
					IndexName:  aws.String(string(def.IndexName)),
					KeySchema:  keySchema(def),
					Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
				}},
			},
		})
		if err != nil {
			return apperrors.Wrap(err, "EnsureIndexes")
		}
	}
	return nil
}

// ListIndexes returns the names of the secondary indexes present on the
// table.
func (d *DynamoDriver) ListIndexes(ctx context.Context) ([]string, error) {
	out, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.tableName),
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "ListIndexes")
	}
	names := make([]string, 0, len(out.Table.GlobalSecondaryIndexes))
	for _, gsi := range out.Table.GlobalSecondaryIndexes {
		names = append(names, aws.ToString(gsi.IndexName))
	}
	return names, nil
}

func (d *DynamoDriver) createTable(ctx context.Context, defs []index.Definition) error {
	gsis := make([]types.GlobalSecondaryIndex, len(defs))
	for i, def := range defs {
		gsis[i] = types.GlobalSecondaryIndex{
			IndexName:  aws.String(string(def.IndexName)),
			KeySchema:  keySchema(def),
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		}
	}

	d.logger.Info("creating table", zap.String("table", d.tableName), zap.Int("indexes", len(gsis)))
	_, err := d.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(d.tableName),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(idField), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions:   attributeDefinitions(defs),
		GlobalSecondaryIndexes: gsis,
		BillingMode:            types.BillingModePayPerRequest,
	})
	if err != nil {
		return apperrors.Wrap(err, "EnsureIndexes")
	}
	return nil
}

func attributeDefinitions(defs []index.Definition) []types.AttributeDefinition {
	seen := map[string]types.ScalarAttributeType{
		idField: types.ScalarAttributeTypeS,
	}
	for _, def := range defs {
		seen[def.PartitionKey] = scalarType(def.PartitionKeyType)
		seen[def.SortKey] = scalarType(def.SortKeyType)
	}
	out := make([]types.AttributeDefinition, 0, len(seen))
	for name, attrType := range seen {
		out = append(out, types.AttributeDefinition{
			AttributeName: aws.String(name),
			AttributeType: attrType,
		})
	}
	return out
}

func keySchema(def index.Definition) []types.KeySchemaElement {
	return []types.KeySchemaElement{
		{AttributeName: aws.String(def.PartitionKey), KeyType: types.KeyTypeHash},
		{AttributeName: aws.String(def.SortKey), KeyType: types.KeyTypeRange},
	}
}

func scalarType(t index.KeyType) types.ScalarAttributeType {
	if t == index.KeyTypeNumber {
		return types.ScalarAttributeTypeN
	}
	return types.ScalarAttributeTypeS
}
