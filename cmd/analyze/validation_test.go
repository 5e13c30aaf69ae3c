package analyze

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAnalyzeArgs(t *testing.T) {
	tests := []struct {
		name    string
		opts    RunOptionsAnalyze
		args    []string
		wantErr bool
	}{
		{"valid minimal", RunOptionsAnalyze{}, []string{"https://github.com/a/b"}, false},
		{"no args", RunOptionsAnalyze{}, nil, true},
		{"two args", RunOptionsAnalyze{}, []string{"a", "b"}, true},
		{"valid provider", RunOptionsAnalyze{Provider: "bedrock"}, []string{"u"}, false},
		{"unknown provider", RunOptionsAnalyze{Provider: "gemini"}, []string{"u"}, true},
		{"unknown scanner", RunOptionsAnalyze{Scanners: []string{"trivy"}, ScanVulnerabilities: true}, []string{"u"}, true},
		{"scanners without scan phase", RunOptionsAnalyze{Scanners: []string{"semgrep"}}, []string{"u"}, true},
		{"scanners with flag", RunOptionsAnalyze{Scanners: []string{"semgrep"}, ScanVulnerabilities: true}, []string{"u"}, false},
		{"scanners with phase 3", RunOptionsAnalyze{Scanners: []string{"bandit"}, Phases: []string{"3"}}, []string{"u"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAnalyzeArgs(&tt.opts, tt.args)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRequestedPhases(t *testing.T) {
	assert.Equal(t, []string{"1", "1.5", "2.5"}, requestedPhases(&RunOptionsAnalyze{}))
	assert.Equal(t, []string{"1", "1.5", "2.5", "3"}, requestedPhases(&RunOptionsAnalyze{ScanVulnerabilities: true}))
	assert.Equal(t, []string{"3"}, requestedPhases(&RunOptionsAnalyze{Phases: []string{"3"}}))
}
