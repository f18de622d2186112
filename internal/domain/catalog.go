package domain

// Station is the interview-station context an attempt was recorded against.
// Read-only; used to bias article recommendations.
type Station struct {
	ID         string   `db:"id"         json:"id"`
	Title      string   `db:"title"      json:"title"`
	Prompt     string   `db:"prompt"     json:"prompt"`
	Themes     []string `db:"-"          json:"themes"`
	RolePlay   bool     `db:"role_play"  json:"role_play"`
	GraphData  bool     `db:"graph_data" json:"graph_data"`
	Difficulty string   `db:"difficulty" json:"difficulty"`
}

// Article is an entry in the read-only study-article catalog.
type Article struct {
	ID         string   `db:"id"         json:"id"`
	Title      string   `db:"title"      json:"title"`
	Category   string   `db:"category"   json:"category"`
	Tags       []string `db:"-"          json:"tags"`
	Difficulty string   `db:"difficulty" json:"difficulty"`
}
