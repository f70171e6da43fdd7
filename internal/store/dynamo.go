package store

import (
	"context"
	goerrors "errors"
	"time"

	apperrors "tenantcore-backend/internal/errors"
	"tenantcore-backend/internal/index"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// idField is the primary key attribute of every table this driver manages.
const idField = "id"

// DynamoConfig holds tuning options for the DynamoDB driver.
type DynamoConfig struct {
	MaxRetries     int
	QueryBatchSize int // BatchGetItem chunk size (service max 100)
}

// DynamoDriver implements Driver and Admin against one DynamoDB table.
// The repository root owns one driver per feature entity; the table name is
// the feature-entity name.
type DynamoDriver struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger

	maxRetries     int
	queryBatchSize int
}

// NewDynamoDriver creates a driver for one table.
func NewDynamoDriver(client *dynamodb.Client, tableName string, logger *zap.Logger, cfg *DynamoConfig) *DynamoDriver {
	if cfg == nil {
		cfg = &DynamoConfig{MaxRetries: 3, QueryBatchSize: 100}
	}
	return &DynamoDriver{
		client:         client,
		tableName:      tableName,
		logger:         logger,
		maxRetries:     cfg.MaxRetries,
		queryBatchSize: cfg.QueryBatchSize,
	}
}

// TableName returns the table this driver addresses.
func (d *DynamoDriver) TableName() string {
	return d.tableName
}

// GetOneByID fetches a record by primary key. Pushed-down conditions are
// evaluated before the record leaves the driver, so a condition mismatch is
// indistinguishable from absence.
func (d *DynamoDriver) GetOneByID(ctx context.Context, id string, conds ...Condition) (Record, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key:       d.key(id),
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "GetOneByID")
	}
	if out.Item == nil {
		return nil, nil
	}
	rec, err := unmarshalItem(out.Item)
	if err != nil {
		return nil, apperrors.Wrap(err, "GetOneByID")
	}
	if !MatchesConditions(rec, conds) {
		return nil, nil
	}
	return rec, nil
}

// GetManyByIDs fetches records through BatchGetItem, chunked at the service
// limit with exponential backoff on unprocessed keys. Records failing a
// pushed-down condition are dropped; the rest are field-projected.
func (d *DynamoDriver) GetManyByIDs(ctx context.Context, ids []string, fields []string, conds ...Condition) ([]Record, error) {
	if len(ids) == 0 {
		return []Record{}, nil
	}

	var results []Record
	for i := 0; i < len(ids); i += d.queryBatchSize {
		end := i + d.queryBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk, err := d.batchGetChunk(ctx, ids[i:end])
		if err != nil {
			return nil, err
		}
		results = append(results, chunk...)
	}

	out := make([]Record, 0, len(results))
	for _, rec := range results {
		if !MatchesConditions(rec, conds) {
			continue
		}
		out = append(out, Project(rec, fields))
	}
	return out, nil
}

func (d *DynamoDriver) batchGetChunk(ctx context.Context, ids []string) ([]Record, error) {
	keys := make([]map[string]types.AttributeValue, len(ids))
	for i, id := range ids {
		keys[i] = d.key(id)
	}

	input := &dynamodb.BatchGetItemInput{
		RequestItems: map[string]types.KeysAndAttributes{
			d.tableName: {Keys: keys},
		},
	}

	var results []Record
	retryCount := 0
	for {
		output, err := d.client.BatchGetItem(ctx, input)
		if err != nil {
			return nil, apperrors.Wrap(err, "GetManyByIDs")
		}

		for _, item := range output.Responses[d.tableName] {
			rec, err := unmarshalItem(item)
			if err != nil {
				d.logger.Warn("failed to unmarshal item", zap.String("table", d.tableName), zap.Error(err))
				continue
			}
			results = append(results, rec)
		}

		unprocessed, ok := output.UnprocessedKeys[d.tableName]
		if !ok || len(unprocessed.Keys) == 0 {
			break
		}
		if retryCount >= d.maxRetries {
			d.logger.Warn("max retries exceeded for batch get",
				zap.String("table", d.tableName),
				zap.Int("unprocessed", len(unprocessed.Keys)))
			break
		}
		time.Sleep(time.Duration(1<<retryCount) * 100 * time.Millisecond)
		input.RequestItems = map[string]types.KeysAndAttributes{
			d.tableName: {Keys: unprocessed.Keys},
		}
		retryCount++
	}
	return results, nil
}

// DeleteByID removes a record, honoring pushed-down conditions. A failed
// condition (including a missing record) is a silent no-op: ownership
// mismatches must not be distinguishable from absence.
func (d *DynamoDriver) DeleteByID(ctx context.Context, id string, conds ...Condition) error {
	cond := expression.AttributeExists(expression.Name(idField))
	for _, c := range conds {
		cond = cond.And(expression.Equal(expression.Name(c.Field), expression.Value(c.Value)))
	}
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return apperrors.Wrap(err, "DeleteByID")
	}

	_, err = d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(d.tableName),
		Key:                       d.key(id),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil
		}
		return apperrors.Wrap(err, "DeleteByID")
	}
	return nil
}

// CreateOne inserts a record. The id must not already exist.
func (d *DynamoDriver) CreateOne(ctx context.Context, data Record) (Record, error) {
	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return nil, apperrors.Wrap(err, "CreateOne")
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name(idField))).
		Build()
	if err != nil {
		return nil, apperrors.Wrap(err, "CreateOne")
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(d.tableName),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, apperrors.Conflict("DUPLICATE_ID", "record %v already exists in %s", data[idField], d.tableName)
		}
		return nil, apperrors.Wrap(err, "CreateOne")
	}
	return data, nil
}

// UpdateOne applies a partial update and returns the new record state.
// A failed condition, including a missing record, yields (nil, nil).
func (d *DynamoDriver) UpdateOne(ctx context.Context, id string, data Record, conds ...Condition) (Record, error) {
	if len(data) == 0 {
		return d.GetOneByID(ctx, id, conds...)
	}

	var update expression.UpdateBuilder
	for field, value := range data {
		if field == idField {
			continue
		}
		update = update.Set(expression.Name(field), expression.Value(value))
	}

	cond := expression.AttributeExists(expression.Name(idField))
	for _, c := range conds {
		cond = cond.And(expression.Equal(expression.Name(c.Field), expression.Value(c.Value)))
	}

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return nil, apperrors.Wrap(err, "UpdateOne")
	}

	out, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.tableName),
		Key:                       d.key(id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, nil
		}
		return nil, apperrors.Wrap(err, "UpdateOne")
	}
	rec, err := unmarshalItem(out.Attributes)
	if err != nil {
		return nil, apperrors.Wrap(err, "UpdateOne")
	}
	return rec, nil
}

// QueryIndex runs an index query to completion, following continuation keys
// until the limit is met or the index is exhausted. A zero limit means no
// cap.
func (d *DynamoDriver) QueryIndex(ctx context.Context, q IndexQuery) ([]Record, error) {
	var all []Record
	var startKey map[string]types.AttributeValue
	for {
		items, lastKey, err := d.queryOnce(ctx, q, startKey)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if q.Limit > 0 && int32(len(all)) >= q.Limit {
			return all[:q.Limit], nil
		}
		if lastKey == nil {
			return all, nil
		}
		startKey = lastKey
	}
}

// QueryIndexPage runs one page of an index query, threading the opaque
// cursor in and out.
func (d *DynamoDriver) QueryIndexPage(ctx context.Context, q IndexQuery, cursor string) (Page, error) {
	var startKey map[string]types.AttributeValue
	var payload map[string]any
	ok, err := DecodeCursor(cursor, q.Index, &payload)
	if err != nil {
		return Page{}, apperrors.Wrap(err, "QueryIndexPage")
	}
	if ok {
		startKey, err = attributevalue.MarshalMap(payload)
		if err != nil {
			return Page{}, apperrors.Wrap(err, "QueryIndexPage")
		}
	}

	items, lastKey, err := d.queryOnce(ctx, q, startKey)
	if err != nil {
		return Page{}, err
	}

	page := Page{Items: items}
	if lastKey != nil {
		var keyPayload map[string]any
		if err := attributevalue.UnmarshalMap(lastKey, &keyPayload); err != nil {
			return Page{}, apperrors.Wrap(err, "QueryIndexPage")
		}
		page.NextPageHash = EncodeCursor(q.Index, keyPayload)
	}
	return page, nil
}

func (d *DynamoDriver) queryOnce(ctx context.Context, q IndexQuery, startKey map[string]types.AttributeValue) ([]Record, map[string]types.AttributeValue, error) {
	def := index.Lookup(q.Index)

	keyCond := expression.Key(def.PartitionKey).Equal(expression.Value(q.PartitionValue))
	if sc := q.SortCondition; sc != nil {
		sortCond, err := buildSortCondition(sc)
		if err != nil {
			return nil, nil, err
		}
		keyCond = keyCond.And(sortCond)
	}

	builder := expression.NewBuilder().WithKeyCondition(keyCond)

	if len(q.Filters) > 0 {
		filterCond, err := buildFilterCondition(q.Filters)
		if err != nil {
			return nil, nil, err
		}
		builder = builder.WithFilter(filterCond)
	}
	if len(q.Fields) > 0 {
		proj := expression.NamesList(expression.Name(q.Fields[0]))
		for _, f := range q.Fields[1:] {
			proj = proj.AddNames(expression.Name(f))
		}
		builder = builder.WithProjection(proj)
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, nil, apperrors.Wrap(err, "QueryIndex")
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(d.tableName),
		IndexName:                 aws.String(string(q.Index)),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(q.Direction != Descending),
	}
	if len(q.Filters) > 0 {
		input.FilterExpression = expr.Filter()
	}
	if len(q.Fields) > 0 {
		input.ProjectionExpression = expr.Projection()
	}
	if q.Limit > 0 {
		input.Limit = aws.Int32(q.Limit)
	}
	if startKey != nil {
		input.ExclusiveStartKey = startKey
	}

	result, err := d.client.Query(ctx, input)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, "QueryIndex")
	}

	records := make([]Record, 0, len(result.Items))
	for _, item := range result.Items {
		rec, err := unmarshalItem(item)
		if err != nil {
			d.logger.Warn("failed to unmarshal item", zap.String("table", d.tableName), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, result.LastEvaluatedKey, nil
}

func buildSortCondition(sc *SortKeyCondition) (expression.KeyConditionBuilder, error) {
	key := expression.Key(sc.Field)
	switch sc.Operator {
	case SortEq:
		return key.Equal(expression.Value(sc.Value)), nil
	case SortLt:
		return key.LessThan(expression.Value(sc.Value)), nil
	case SortLte:
		return key.LessThanEqual(expression.Value(sc.Value)), nil
	case SortGt:
		return key.GreaterThan(expression.Value(sc.Value)), nil
	case SortGte:
		return key.GreaterThanEqual(expression.Value(sc.Value)), nil
	case SortBetween:
		return key.Between(expression.Value(sc.Value), expression.Value(sc.UpperBound)), nil
	case SortBeginsWith:
		s, ok := sc.Value.(string)
		if !ok {
			return expression.KeyConditionBuilder{}, apperrors.Validation("SORT_CONDITION", "begins_with requires a string value")
		}
		return key.BeginsWith(s), nil
	default:
		return expression.KeyConditionBuilder{}, apperrors.Validation("SORT_CONDITION", "unsupported sort operator %q", sc.Operator)
	}
}

func buildFilterCondition(filters []Filter) (expression.ConditionBuilder, error) {
	var cond expression.ConditionBuilder
	for i, f := range filters {
		var clause expression.ConditionBuilder
		switch f.Operator {
		case FilterEq:
			clause = expression.Equal(expression.Name(f.Field), expression.Value(f.Value))
		case FilterNe:
			clause = expression.NotEqual(expression.Name(f.Field), expression.Value(f.Value))
		case FilterContains:
			s, ok := f.Value.(string)
			if !ok {
				return expression.ConditionBuilder{}, apperrors.Validation("FILTER", "contains requires a string value")
			}
			clause = expression.Contains(expression.Name(f.Field), s)
		case FilterIn:
			if len(f.Values) == 0 {
				return expression.ConditionBuilder{}, apperrors.Validation("FILTER", "in requires at least one value")
			}
			operands := make([]expression.OperandBuilder, len(f.Values))
			for j, v := range f.Values {
				operands[j] = expression.Value(v)
			}
			if len(operands) == 1 {
				clause = expression.Name(f.Field).In(operands[0])
			} else {
				clause = expression.Name(f.Field).In(operands[0], operands[1:]...)
			}
		case FilterExists:
			clause = expression.AttributeExists(expression.Name(f.Field))
		case FilterMissing:
			clause = expression.AttributeNotExists(expression.Name(f.Field))
		default:
			return expression.ConditionBuilder{}, apperrors.Validation("FILTER", "unsupported filter operator %q", f.Operator)
		}
		if i == 0 {
			cond = clause
		} else {
			cond = cond.And(clause)
		}
	}
	return cond, nil
}

func (d *DynamoDriver) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		idField: &types.AttributeValueMemberS{Value: id},
	}
}

func unmarshalItem(item map[string]types.AttributeValue) (Record, error) {
	var rec map[string]any
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return goerrors.As(err, &ccf)
}
