package schema

// TableType distinguishes base tables from views.
type TableType string

const (
	TypeTable TableType = "Table"
	TypeView  TableType = "View"
)

// TableTypeOf maps an information_schema table_type value to a TableType.
func TableTypeOf(s string) TableType {
	switch s {
	case "BASE TABLE", "table", "TABLE":
		return TypeTable
	default:
		return TypeView
	}
}

// Table represents a database table or view.
type Table struct {
	Schema string
	Name   string
	Type   TableType
}

// QualifiedName returns schema.name, or name when schema is empty.
func (t Table) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// Column represents a table column.
type Column struct {
	Table    string
	Name     string
	Type     string
	UDT      string // underlying type name, e.g. "int4"
	Size     int64  // character maximum length, 0 if not applicable
	Nullable bool
	Default  string
}
