package ledger

import "strings"

// Field is a canonical column of the ledger schema.
type Field string

const (
	FieldTimestamp Field = "timestamp"
	FieldDateTime  Field = "datetime"
	FieldDate      Field = "date"
	FieldBank      Field = "bank"
	FieldType      Field = "type"
	FieldAmount    Field = "amount"
	FieldMessage   Field = "message"
	FieldCategory  Field = "category"
	FieldDeleted   Field = "is_deleted"
)

var knownFields = map[Field]bool{
	FieldTimestamp: true,
	FieldDateTime:  true,
	FieldDate:      true,
	FieldBank:      true,
	FieldType:      true,
	FieldAmount:    true,
	FieldMessage:   true,
	FieldCategory:  true,
	FieldDeleted:   true,
}

// Schema maps canonical fields to the column names actually present in a ledger.
// Matching is case-insensitive; it is built once per read and shared by every row.
type Schema struct {
	names map[Field][]string
}

// NewSchema builds the lookup table for the given column names.
// When several stored names fold to the same field ("Amount", "amount"), all are
// kept in column order and the first one present in a row wins.
func NewSchema(columns []string) *Schema {
	s := &Schema{names: make(map[Field][]string)}
	for _, col := range columns {
		f := Field(strings.ToLower(strings.TrimSpace(col)))
		if !knownFields[f] {
			continue
		}
		s.names[f] = append(s.names[f], col)
	}
	return s
}

// Has reports whether any column maps to f.
func (s *Schema) Has(f Field) bool {
	return len(s.names[f]) > 0
}

// Value returns the non-blank cell of row for field f.
func (s *Schema) Value(row RawRow, f Field) (any, bool) {
	for _, name := range s.names[f] {
		if v, ok := row.Cells[name]; ok && !isBlank(v) {
			return v, true
		}
	}
	return nil, false
}

// Text returns the trimmed text of field f, or "" when absent.
func (s *Schema) Text(row RawRow, f Field) string {
	return strings.TrimSpace(s.RawText(row, f))
}

// RawText returns the text of field f as written in the cell, or "" when
// absent or blank.
func (s *Schema) RawText(row RawRow, f Field) string {
	v, ok := s.Value(row, f)
	if !ok {
		return ""
	}
	return cellText(v)
}
