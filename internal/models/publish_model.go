package models

// Content is what gets published to a single account.
type Content struct {
	Text  string   `json:"text"`
	Media []string `json:"media,omitempty"`
	Link  string   `json:"link,omitempty"`
	Title string   `json:"title,omitempty"`
}

type PublishOutcome struct {
	AccountID string   `json:"account_id"`
	Provider  Provider `json:"provider,omitempty"`
	Success   bool     `json:"success"`
	PostID    string   `json:"post_id,omitempty"`
	PostURL   string   `json:"post_url,omitempty"`
	Error     string   `json:"error,omitempty"`
	ErrorKind string   `json:"error_kind,omitempty"`
}

type PublishResult struct {
	Success  bool             `json:"success"`
	Outcomes []PublishOutcome `json:"outcomes"`
}
