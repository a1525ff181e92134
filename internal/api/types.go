package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes one slide of the session in a transport-friendly format.
type Job struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	ContentPoints []string `json:"contentPoints"`
	LayoutHint    string   `json:"layoutHint,omitempty"`
	Notes         string   `json:"notes,omitempty"`
	HTML          string   `json:"html,omitempty"`
	State         string   `json:"state"`
	RetryCount    int      `json:"retryCount"`
	Error         string   `json:"error,omitempty"`
	Regenerating  bool     `json:"regenerating,omitempty"`
}

// SessionConfig echoes the outline request that produced the session.
type SessionConfig struct {
	SlideCount int    `json:"slideCount"`
	Audience   string `json:"audience,omitempty"`
	Topic      string `json:"topic,omitempty"`
	Language   string `json:"language,omitempty"`
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
}

// Session is the editing session as seen by clients.
type Session struct {
	Status        string         `json:"status"`
	Title         string         `json:"title"`
	DeckID        string         `json:"deckId,omitempty"`
	Selection     string         `json:"selection,omitempty"`
	Palette       string         `json:"palette,omitempty"`
	Config        SessionConfig  `json:"config"`
	Cost          float64        `json:"accumulatedCost"`
	Error         string         `json:"error,omitempty"`
	Counts        map[string]int `json:"counts"`
	RunStatus     string         `json:"runStatus"`
	StopRequested bool           `json:"stopRequested"`
	Jobs          []Job          `json:"jobs"`
	UpdatedAt     string         `json:"updatedAt,omitempty"`
}

// Slide is one positioned slide of a stored deck.
type Slide struct {
	Position      int      `json:"position"`
	JobID         string   `json:"jobId,omitempty"`
	Title         string   `json:"title"`
	ContentPoints []string `json:"contentPoints"`
	LayoutHint    string   `json:"layoutHint,omitempty"`
	Notes         string   `json:"notes,omitempty"`
	HTML          string   `json:"html,omitempty"`
	Failed        bool     `json:"failed,omitempty"`
	Error         string   `json:"error,omitempty"`
	UpdatedAt     string   `json:"updatedAt,omitempty"`
}

// Deck is a stored deck with its slides.
type Deck struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Topic     string  `json:"topic,omitempty"`
	Audience  string  `json:"audience,omitempty"`
	Palette   string  `json:"palette,omitempty"`
	Provider  string  `json:"provider,omitempty"`
	Model     string  `json:"model,omitempty"`
	Cost      float64 `json:"cost"`
	CreatedAt string  `json:"createdAt,omitempty"`
	UpdatedAt string  `json:"updatedAt,omitempty"`
	Slides    []Slide `json:"slides"`
}

// DeckSummary is a deck list row.
type DeckSummary struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Topic      string  `json:"topic,omitempty"`
	SlideCount int     `json:"slideCount"`
	Cost       float64 `json:"cost"`
	UpdatedAt  string  `json:"updatedAt,omitempty"`
}

// DeckVersion is one deck history row.
type DeckVersion struct {
	ID         int64  `json:"id"`
	DeckID     string `json:"deckId"`
	Label      string `json:"label,omitempty"`
	SlideCount int    `json:"slideCount"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

// SlideVersion is one rendered slide from history.
type SlideVersion struct {
	ID        int64  `json:"id"`
	DeckID    string `json:"deckId"`
	Position  int    `json:"position"`
	Title     string `json:"title,omitempty"`
	HTML      string `json:"html"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// DeckListResponse wraps a deck list.
type DeckListResponse struct {
	Decks []DeckSummary `json:"decks"`
}

// DeckVersionListResponse wraps a deck history list.
type DeckVersionListResponse struct {
	Versions []DeckVersion `json:"versions"`
}

// SlideVersionListResponse wraps a slide history list.
type SlideVersionListResponse struct {
	Versions []SlideVersion `json:"versions"`
}

// CheckResult mirrors one preflight check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running         bool           `json:"running"`
	PID             int            `json:"pid"`
	Bind            string         `json:"bind"`
	DatabasePath    string         `json:"databasePath"`
	LockFilePath    string         `json:"lockFilePath"`
	LogPath         string         `json:"logPath,omitempty"`
	StartedAt       string         `json:"startedAt,omitempty"`
	DefaultProvider string         `json:"defaultProvider,omitempty"`
	Providers       []string       `json:"providers"`
	SessionStatus   string         `json:"sessionStatus"`
	SessionTitle    string         `json:"sessionTitle,omitempty"`
	Counts          map[string]int `json:"counts"`
	Checks          []CheckResult  `json:"checks"`
}

// LogEvent is one structured log line.
type LogEvent struct {
	Sequence  uint64            `json:"seq"`
	Timestamp string            `json:"ts"`
	Level     string            `json:"level"`
	Message   string            `json:"msg"`
	Component string            `json:"component,omitempty"`
	DeckID    string            `json:"deckId,omitempty"`
	JobID     string            `json:"jobId,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// LogStreamResponse is returned by /api/logs.
type LogStreamResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}

// OutlineRequest asks for a new outline.
type OutlineRequest struct {
	SourceText string `json:"sourceText"`
	SlideCount int    `json:"slideCount"`
	Audience   string `json:"audience,omitempty"`
	Topic      string `json:"topic,omitempty"`
	Language   string `json:"language,omitempty"`
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
}

// ConfirmRequest starts rendering. Palette uses the "name=#hex,..." form or
// 18 bare colors; empty selects the default palette.
type ConfirmRequest struct {
	Palette string `json:"palette,omitempty"`
}

// JobEditRequest carries optional slide edits; omitted fields are unchanged.
type JobEditRequest struct {
	Title         *string   `json:"title,omitempty"`
	ContentPoints *[]string `json:"contentPoints,omitempty"`
	LayoutHint    *string   `json:"layoutHint,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	HTML          *string   `json:"html,omitempty"`
}

// JobAddRequest inserts a slide during outline review.
type JobAddRequest struct {
	Index         int      `json:"index"`
	Title         string   `json:"title"`
	ContentPoints []string `json:"contentPoints"`
	LayoutHint    string   `json:"layoutHint,omitempty"`
}

// RegenerateRequest re-renders one slide.
type RegenerateRequest struct {
	Instruction string `json:"instruction,omitempty"`
}

// RegenerateEvent is one server-sent event of a streamed regeneration.
type RegenerateEvent struct {
	Type  string `json:"type"`
	HTML  string `json:"html,omitempty"`
	Job   *Job   `json:"job,omitempty"`
	Error string `json:"error,omitempty"`
}

// NotesRequest asks for speaker notes.
type NotesRequest struct {
	Overwrite bool `json:"overwrite"`
}

// NotesResponse reports how many slides received notes.
type NotesResponse struct {
	Applied int     `json:"applied"`
	Session Session `json:"session"`
}

// SaveRequest labels a saved deck version.
type SaveRequest struct {
	Label string `json:"label,omitempty"`
}

// DeckMetaRequest edits deck metadata; omitted fields are unchanged.
type DeckMetaRequest struct {
	Title    *string `json:"title,omitempty"`
	Topic    *string `json:"topic,omitempty"`
	Audience *string `json:"audience,omitempty"`
	Palette  *string `json:"palette,omitempty"`
}

// SlideUpdateRequest edits one stored slide; omitted fields are unchanged.
type SlideUpdateRequest struct {
	Title         *string   `json:"title,omitempty"`
	ContentPoints *[]string `json:"contentPoints,omitempty"`
	LayoutHint    *string   `json:"layoutHint,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	HTML          *string   `json:"html,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateDeckRequest stores a new deck.
type CreateDeckRequest struct {
	Title    string  `json:"title"`
	Topic    string  `json:"topic,omitempty"`
	Audience string  `json:"audience,omitempty"`
	Palette  string  `json:"palette,omitempty"`
	Slides   []Slide `json:"slides"`
}

// TestNotificationResponse reports the outcome of a test notification.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message,omitempty"`
}
