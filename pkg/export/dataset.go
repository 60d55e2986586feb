package export

// Dataset is a column-ordered table handed to the exporters.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
}

// Exporter renders a dataset into one output format.
type Exporter interface {
	Render(data Dataset) ([]byte, error)
}
