package manifest

// Manifest is the single JSON document describing one repository analysis.
// It is created at the inventory phase and enriched in place by every later
// phase; the files order assigned at inventory time is canonical.
type Manifest struct {
	Repository Repository  `json:"repository"`
	Files      []FileEntry `json:"files"`
}

// Repository pins the analyzed revision. CommitSHA is set once on first
// write; later phases verify it before touching the manifest.
type Repository struct {
	URL               string `json:"url"`
	DefaultBranch     string `json:"default_branch"`
	CommitSHA         string `json:"commit_sha"`
	AnalysisTimestamp string `json:"analysis_timestamp"`
}

// FileEntry is one record per analyzable file. Fields accumulate across
// phases; a missing field means the owning phase has not run yet.
//
// Vulnerabilities is a pointer so the document can distinguish "scanned,
// none found" (present, empty list) from "not scanned" (absent).
type FileEntry struct {
	Path              string          `json:"path"`
	BlobID            string          `json:"blob_id"`
	Size              int64           `json:"size"`
	Extension         string          `json:"extension"`
	Purpose           string          `json:"purpose,omitempty"`
	Category          string          `json:"category,omitempty"`
	Confidence        *float64        `json:"confidence,omitempty"`
	SecurityRelevance string          `json:"security_relevance,omitempty"`
	Reasoning         string          `json:"reasoning,omitempty"`
	Provider          string          `json:"provider,omitempty"`
	Model             string          `json:"model,omitempty"`
	TokenStats        *TokenStats     `json:"token_stats,omitempty"`
	Vulnerabilities   *[]Finding      `json:"vulnerabilities,omitempty"`
	RiskAssessment    *RiskAssessment `json:"risk_assessment,omitempty"`
}

// TokenStats is the token accounting record attached at phase 1.5.
type TokenStats struct {
	ContentTokens           int     `json:"content_tokens"`
	PromptTokens            int     `json:"prompt_tokens"`
	EstimatedResponseTokens int     `json:"estimated_response_tokens"`
	TotalTokens             int     `json:"total_tokens"`
	EstimatedCost           float64 `json:"estimated_cost"`
	Approximate             bool    `json:"approximate,omitempty"`
}

// Finding is one normalized scanner result scoped to a path and line range.
type Finding struct {
	ScannerName   string   `json:"scanner_name"`
	RuleID        string   `json:"rule_id"`
	Severity      string   `json:"severity"`
	Message       string   `json:"message"`
	LineStart     int      `json:"line_start"`
	LineEnd       int      `json:"line_end"`
	Confidence    string   `json:"confidence,omitempty"`
	CWE           string   `json:"cwe,omitempty"`
	FixSuggestion string   `json:"fix_suggestion,omitempty"`
	References    []string `json:"references,omitempty"`
}

// RiskAssessment is the computed score/priority/SLA triple per file.
type RiskAssessment struct {
	RiskScore  float64            `json:"risk_score"`
	Priority   string             `json:"priority"`
	SLAHours   int                `json:"sla_hours"`
	Components map[string]float64 `json:"components"`
	Reasoning  string             `json:"reasoning"`
}

// New creates an empty manifest for the given repository pin.
func New(repo Repository) *Manifest {
	return &Manifest{Repository: repo, Files: []FileEntry{}}
}

// Entry returns a pointer to the entry with the given path, or nil.
func (m *Manifest) Entry(path string) *FileEntry {
	for i := range m.Files {
		if m.Files[i].Path == path {
			return &m.Files[i]
		}
	}
	return nil
}

// MergeInventory merges freshly listed entries into the manifest. Existing
// entries keep their position and enrichment fields, with provenance
// metadata refreshed; new paths are appended in the given order. Entries
// for paths no longer present in the repository are retained.
func (m *Manifest) MergeInventory(entries []FileEntry) {
	for _, e := range entries {
		if existing := m.Entry(e.Path); existing != nil {
			existing.BlobID = e.BlobID
			existing.Size = e.Size
			existing.Extension = e.Extension
			continue
		}
		m.Files = append(m.Files, e)
	}
}

// SetTokenStats attaches token accounting to the entry at path.
func (m *Manifest) SetTokenStats(path string, ts TokenStats) bool {
	e := m.Entry(path)
	if e == nil {
		return false
	}
	e.TokenStats = &ts
	return true
}

// Classification is the set of fields the classification phase owns.
type Classification struct {
	Purpose           string
	Category          string
	Confidence        float64
	SecurityRelevance string
	Reasoning         string
	Provider          string
	Model             string
}

// SetClassification overwrites only the classification-owned fields.
func (m *Manifest) SetClassification(path string, c Classification) bool {
	e := m.Entry(path)
	if e == nil {
		return false
	}
	confidence := c.Confidence
	e.Purpose = c.Purpose
	e.Category = c.Category
	e.Confidence = &confidence
	e.SecurityRelevance = c.SecurityRelevance
	e.Reasoning = c.Reasoning
	e.Provider = c.Provider
	e.Model = c.Model
	return true
}

// SetVulnerabilities records scan results for the entry at path. An empty
// findings slice marks the file as scanned with nothing found.
func (m *Manifest) SetVulnerabilities(path string, findings []Finding) bool {
	e := m.Entry(path)
	if e == nil {
		return false
	}
	if findings == nil {
		findings = []Finding{}
	}
	e.Vulnerabilities = &findings
	return true
}

// SetRiskAssessment attaches a risk assessment to the entry at path.
func (m *Manifest) SetRiskAssessment(path string, ra RiskAssessment) bool {
	e := m.Entry(path)
	if e == nil {
		return false
	}
	e.RiskAssessment = &ra
	return true
}
