package dto

// DashboardExportQuery selects the period of the dashboard CSV.
type DashboardExportQuery struct {
	Period string `form:"period"`
	Month  int    `form:"month"`
	Year   int    `form:"year"`
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
