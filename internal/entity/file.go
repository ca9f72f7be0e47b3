package entity

type FileCounter struct {
	ID      string `yaml:"id" json:"id"`
	Path    string `yaml:"path" json:"path"`
	Counter int64  `yaml:"counter" json:"counter"`
}

type Stats struct {
	Files    []FileCounter    `json:"files"`
	Outcomes []OutcomeCounter `json:"outcomes"`
	Recent   []*FetchRecord   `json:"recent"`
}
