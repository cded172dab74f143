package vectorstore

import (
	"github.com/apache/arrow/go/arrow"
)

// Schema builds the Arrow schema for the tool vector table with the exact
// field order, types, and nullability declared in the external interface
// contract: id, name, description, tags, path, version, source, tool_type,
// metadata, vector, indexed_at.
func Schema(dim int) *arrow.Schema {
	vectorType := arrow.FixedSizeListOf(int32(dim), &arrow.Float32Type{})

	fields := []arrow.Field{
		{Name: "id", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "description", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "tags", Type: arrow.ListOf(arrow.BinaryTypes.String), Nullable: false},
		{Name: "path", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "version", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "source", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "tool_type", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "metadata", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "vector", Type: vectorType, Nullable: false},
		{Name: "indexed_at", Type: arrow.FixedWidthTypes.Timestamp_us, Nullable: false},
	}
	return arrow.NewSchema(fields, nil)
}

// VectorDimension extracts the declared dimension of the schema's "vector"
// field, or (0, false) if the schema has no such field.
func VectorDimension(schema *arrow.Schema) (int, bool) {
	idx, ok := schema.FieldsByName("vector")
	if !ok || len(idx) == 0 {
		return 0, false
	}
	fsl, ok := idx[0].Type.(*arrow.FixedSizeListType)
	if !ok {
		return 0, false
	}
	return int(fsl.Len()), true
}
