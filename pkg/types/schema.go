package types

// Schema defines the structure of a catalog file.
type Schema struct {
	// Version tracks schema evolution for backward compatibility
	Version int `json:"version"`

	// Columns defines the columns in the schema
	Columns []ColumnDef `json:"columns"`

	// SortColumns lists the columns rows are sorted by, in order
	SortColumns []string `json:"sort_columns"`
}

// ColumnDef defines a single column in the schema.
type ColumnDef struct {
	// Name is the column name
	Name string `json:"name"`

	// Type is the physical type: INT64, DOUBLE, STRING, BINARY
	Type string `json:"type"`

	// Nullable indicates whether the column can contain NULL values
	Nullable bool `json:"nullable"`

	// PrimaryKey indicates whether this column is the primary key
	PrimaryKey bool `json:"primary_key"`
}

// InternalIndexColumn is the row index column some writers add to data files.
// It is never part of the catalog schema.
const InternalIndexColumn = "__index_level_0__"

// StarSchema returns the schema of catalog files.
func StarSchema() Schema {
	return Schema{
		Version: 1,
		Columns: []ColumnDef{
			{Name: "pk", Type: "INT64", PrimaryKey: true},
			{Name: "ra", Type: "DOUBLE"},
			{Name: "dec", Type: "DOUBLE"},
			{Name: "magnitude", Type: "DOUBLE"},
			{Name: "bv", Type: "DOUBLE"},
			{Name: "constellation_id", Type: "STRING"},
			{Name: "hip", Type: "INT64", Nullable: true},
			{Name: "tyc", Type: "STRING", Nullable: true},
			{Name: "parallax_mas", Type: "DOUBLE"},
			{Name: "ra_mas_per_year", Type: "DOUBLE"},
			{Name: "dec_mas_per_year", Type: "DOUBLE"},
			{Name: "epoch_year", Type: "INT64"},
			{Name: "geometry", Type: "BINARY"},
			{Name: "healpix_index", Type: "INT64"},
		},
		SortColumns: []string{"magnitude"},
	}
}

// ColumnNames returns the column names in schema order.
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}
