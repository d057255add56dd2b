package transfer

type PinterestPin struct {
	BoardID     string               `json:"board_id"`
	Title       string               `json:"title,omitempty"`
	Description string               `json:"description,omitempty"`
	Link        string               `json:"link,omitempty"`
	MediaSource PinterestMediaSource `json:"media_source"`
}

type PinterestMediaSource struct {
	SourceType string `json:"source_type"`
	URL        string `json:"url"`
}

type PinterestPinResponse struct {
	ID string `json:"id"`
}

type PinterestUserAccount struct {
	Username     string `json:"username"`
	ID           string `json:"id"`
	ProfileImage string `json:"profile_image"`
	BusinessName string `json:"business_name"`
}

type PinterestError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
