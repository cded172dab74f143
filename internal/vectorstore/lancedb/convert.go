package lancedb

import (
	"encoding/json"

	"github.com/apache/arrow/go/arrow"
	"github.com/apache/arrow/go/arrow/array"
	"github.com/apache/arrow/go/arrow/memory"

	"github.com/suntianc/toolcore/internal/model"
	"github.com/suntianc/toolcore/internal/vectorstore"
)

// toArrowRecords builds one Arrow record batch from the given tool rows,
// using the field order and types declared in vectorstore.Schema.
func toArrowRecords(rows []model.Tool) ([]arrow.Record, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	dim := len(rows[0].Vector)
	schema := vectorstore.Schema(dim)
	pool := memory.NewGoAllocator()
	b := array.NewRecordBuilder(pool, schema)
	defer b.Release()

	idB := b.Field(0).(*array.StringBuilder)
	nameB := b.Field(1).(*array.StringBuilder)
	descB := b.Field(2).(*array.StringBuilder)
	tagsB := b.Field(3).(*array.ListBuilder)
	tagsValB := tagsB.ValueBuilder().(*array.StringBuilder)
	pathB := b.Field(4).(*array.StringBuilder)
	versionB := b.Field(5).(*array.StringBuilder)
	sourceB := b.Field(6).(*array.StringBuilder)
	typeB := b.Field(7).(*array.StringBuilder)
	metaB := b.Field(8).(*array.StringBuilder)
	vecB := b.Field(9).(*array.FixedSizeListBuilder)
	vecValB := vecB.ValueBuilder().(*array.Float32Builder)
	tsB := b.Field(10).(*array.TimestampBuilder)

	for _, t := range rows {
		idB.Append(t.ID)
		nameB.Append(t.Name)
		descB.Append(t.Description)

		tagsB.Append(true)
		for _, tag := range t.Tags {
			tagsValB.Append(tag)
		}

		appendOptionalString(pathB, t.Path)
		appendOptionalString(versionB, t.Version)
		appendOptionalString(sourceB, t.Source)

		typeB.Append(string(t.ToolType))

		metaBytes, err := json.Marshal(t.Metadata)
		if err != nil {
			return nil, err
		}
		metaB.Append(string(metaBytes))

		vecB.Append(true)
		for _, f := range t.Vector {
			vecValB.Append(f)
		}

		tsB.Append(arrow.Timestamp(t.IndexedAt.UnixMicro()))
	}

	return []arrow.Record{b.NewRecord()}, nil
}

func appendOptionalString(b *array.StringBuilder, s string) {
	if s == "" {
		b.AppendNull()
		return
	}
	b.Append(s)
}

// fromArrowRows decodes LanceDB query results back into QueryRow values.
// The distance column is assumed to be appended by the driver alongside
// the table's declared fields.
func fromArrowRows(records []arrow.Record) ([]vectorstore.QueryRow, error) {
	var out []vectorstore.QueryRow
	for _, rec := range records {
		n := int(rec.NumRows())
		for i := 0; i < n; i++ {
			tool, dist, err := decodeRow(rec, i)
			if err != nil {
				return nil, err
			}
			out = append(out, vectorstore.QueryRow{Tool: tool, Distance: dist})
		}
	}
	return out, nil
}

func decodeRow(rec arrow.Record, i int) (model.Tool, float64, error) {
	schema := rec.Schema()
	tool := model.Tool{}
	var dist float64

	col := func(name string) arrow.Array {
		idx, ok := schema.FieldsByName(name)
		if !ok || len(idx) == 0 {
			return nil
		}
		for j := 0; j < int(rec.NumCols()); j++ {
			if schema.Field(j).Name == name {
				return rec.Column(j)
			}
		}
		return nil
	}

	if a, ok := col("id").(*array.String); ok {
		tool.ID = a.Value(i)
	}
	if a, ok := col("name").(*array.String); ok {
		tool.Name = a.Value(i)
	}
	if a, ok := col("description").(*array.String); ok {
		tool.Description = a.Value(i)
	}
	if a, ok := col("tool_type").(*array.String); ok {
		tool.ToolType = model.ToolType(a.Value(i))
	}
	if a, ok := col("metadata").(*array.String); ok {
		_ = json.Unmarshal([]byte(a.Value(i)), &tool.Metadata)
	}
	if a, ok := col("_distance").(*array.Float32); ok {
		dist = float64(a.Value(i))
	}

	return tool, dist, nil
}
