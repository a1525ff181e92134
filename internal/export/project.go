package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"slidesmith/internal/services"
)

// ProjectVersion is written into every project file. Files whose major
// version differs are rejected on import.
const ProjectVersion = "1"

type projectFile struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Document
}

// ExportProject writes doc as an indented project file.
func ExportProject(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(projectFile{Version: ProjectVersion, ExportedAt: nowUTC(), Document: doc}); err != nil {
		return fmt.Errorf("encode project: %w", err)
	}
	return nil
}

// ImportProject reads a project file.
func ImportProject(r io.Reader) (Document, error) {
	var pf projectFile
	dec := json.NewDecoder(r)
	if err := dec.Decode(&pf); err != nil {
		return Document{}, services.Wrap(services.ErrValidation, "export", "import project", "project file is not valid JSON", err)
	}
	version := strings.TrimSpace(pf.Version)
	if version == "" {
		return Document{}, services.Wrap(services.ErrValidation, "export", "import project", "project file has no version", nil)
	}
	major, _, _ := strings.Cut(version, ".")
	if major != ProjectVersion {
		return Document{}, services.Wrap(services.ErrValidation, "export", "import project",
			fmt.Sprintf("unsupported project version %q", version), nil)
	}
	if strings.TrimSpace(pf.Title) == "" {
		pf.Title = "Imported deck"
	}
	for i := range pf.Slides {
		if pf.Slides[i].ContentPoints == nil {
			pf.Slides[i].ContentPoints = []string{}
		}
	}
	return pf.Document, nil
}
