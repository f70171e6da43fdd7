package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	apperrors "tenantcore-backend/internal/errors"
	"tenantcore-backend/internal/index"
)

// MemoryDriver is an in-memory Driver and Admin used by tests and local
// development. It mirrors the DynamoDB driver's observable behavior:
// conditional writes, index-ordered queries, cursor pagination, and the
// not-found-as-nil contract.
type MemoryDriver struct {
	mu      sync.RWMutex
	records map[string]Record
	indexes map[string]index.Definition
}

// NewMemoryDriver creates an empty in-memory driver.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{
		records: make(map[string]Record),
		indexes: make(map[string]index.Definition),
	}
}

func (m *MemoryDriver) GetOneByID(ctx context.Context, id string, conds ...Condition) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok || !MatchesConditions(rec, conds) {
		return nil, nil
	}
	return cloneRecord(rec), nil
}

func (m *MemoryDriver) GetManyByIDs(ctx context.Context, ids []string, fields []string, conds ...Condition) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, ok := m.records[id]
		if !ok || !MatchesConditions(rec, conds) {
			continue
		}
		out = append(out, Project(cloneRecord(rec), fields))
	}
	return out, nil
}

func (m *MemoryDriver) DeleteByID(ctx context.Context, id string, conds ...Condition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok || !MatchesConditions(rec, conds) {
		return nil
	}
	delete(m.records, id)
	return nil
}

func (m *MemoryDriver) CreateOne(ctx context.Context, data Record) (Record, error) {
	id, _ := data["id"].(string)
	if id == "" {
		return nil, apperrors.Validation("MISSING_ID", "record has no id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[id]; exists {
		return nil, apperrors.Conflict("DUPLICATE_ID", "record %s already exists", id)
	}
	m.records[id] = cloneRecord(data)
	return cloneRecord(data), nil
}

func (m *MemoryDriver) UpdateOne(ctx context.Context, id string, data Record, conds ...Condition) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok || !MatchesConditions(rec, conds) {
		return nil, nil
	}
	for field, value := range data {
		if field == "id" {
			continue
		}
		rec[field] = value
	}
	return cloneRecord(rec), nil
}

func (m *MemoryDriver) QueryIndex(ctx context.Context, q IndexQuery) ([]Record, error) {
	m.mu.RLock()
	matches := m.match(q)
	m.mu.RUnlock()

	if q.Limit > 0 && int32(len(matches)) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches, nil
}

type memoryCursor struct {
	Offset int `json:"offset"`
}

func (m *MemoryDriver) QueryIndexPage(ctx context.Context, q IndexQuery, cursor string) (Page, error) {
	var cur memoryCursor
	if _, err := DecodeCursor(cursor, q.Index, &cur); err != nil {
		return Page{}, err
	}

	m.mu.RLock()
	matches := m.match(q)
	m.mu.RUnlock()

	if cur.Offset >= len(matches) {
		return Page{Items: []Record{}}, nil
	}

	end := len(matches)
	limit := int(q.Limit)
	if limit > 0 && cur.Offset+limit < end {
		end = cur.Offset + limit
	}

	page := Page{Items: matches[cur.Offset:end]}
	if end < len(matches) {
		page.NextPageHash = EncodeCursor(q.Index, memoryCursor{Offset: end})
	}
	return page, nil
}

// match collects, filters, sorts, and projects the records addressed by a
// query. Callers must hold at least a read lock.
func (m *MemoryDriver) match(q IndexQuery) []Record {
	def := index.Lookup(q.Index)

	var matches []Record
	for _, rec := range m.records {
		if rec[def.PartitionKey] != q.PartitionValue {
			continue
		}
		if sc := q.SortCondition; sc != nil && !matchSort(rec[sc.Field], sc) {
			continue
		}
		if !matchFilters(rec, q.Filters) {
			continue
		}
		matches = append(matches, cloneRecord(rec))
	}

	sort.SliceStable(matches, func(i, j int) bool {
		c := compareValues(matches[i][def.SortKey], matches[j][def.SortKey])
		if c == 0 {
			// Stable tiebreak so pagination never reorders equal keys.
			c = strings.Compare(fmt.Sprint(matches[i]["id"]), fmt.Sprint(matches[j]["id"]))
		}
		if q.Direction == Descending {
			return c > 0
		}
		return c < 0
	})

	if len(q.Fields) > 0 {
		for i, rec := range matches {
			matches[i] = Project(rec, q.Fields)
		}
	}
	return matches
}

func (m *MemoryDriver) EnsureIndexes(ctx context.Context, defs []index.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, def := range defs {
		m.indexes[string(def.IndexName)] = def
	}
	return nil
}

func (m *MemoryDriver) ListIndexes(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.indexes))
	for name := range m.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Len reports how many records the driver holds. Test helper.
func (m *MemoryDriver) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func matchSort(value any, sc *SortKeyCondition) bool {
	switch sc.Operator {
	case SortEq:
		return compareValues(value, sc.Value) == 0
	case SortLt:
		return compareValues(value, sc.Value) < 0
	case SortLte:
		return compareValues(value, sc.Value) <= 0
	case SortGt:
		return compareValues(value, sc.Value) > 0
	case SortGte:
		return compareValues(value, sc.Value) >= 0
	case SortBetween:
		return compareValues(value, sc.Value) >= 0 && compareValues(value, sc.UpperBound) <= 0
	case SortBeginsWith:
		s, _ := value.(string)
		prefix, _ := sc.Value.(string)
		return strings.HasPrefix(s, prefix)
	default:
		return false
	}
}

func matchFilters(rec Record, filters []Filter) bool {
	for _, f := range filters {
		value, present := rec[f.Field]
		switch f.Operator {
		case FilterEq:
			if compareValues(value, f.Value) != 0 {
				return false
			}
		case FilterNe:
			if compareValues(value, f.Value) == 0 {
				return false
			}
		case FilterContains:
			s, _ := value.(string)
			sub, _ := f.Value.(string)
			if !strings.Contains(s, sub) {
				return false
			}
		case FilterIn:
			found := false
			for _, candidate := range f.Values {
				if compareValues(value, candidate) == 0 {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case FilterExists:
			if !present {
				return false
			}
		case FilterMissing:
			if present {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// compareValues orders two attribute values. Numbers compare numerically
// across Go numeric types; everything else falls back to string comparison.
func compareValues(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func cloneRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
