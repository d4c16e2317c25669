package store

// Contact sources. Names from config win over names learned from messages.
const (
	SourceConfig  = "config"
	SourceMessage = "message"
)

// Contact is a cached correspondent name.
type Contact struct {
	WaID      string
	Name      string
	Category  string
	Source    string
	UpdatedAt int64
}
