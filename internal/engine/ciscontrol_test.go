package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCISControl(t *testing.T) {
	tests := []struct {
		name        string
		policyName  string
		description string
		want        string // empty means nil expected
	}{
		{"dashed marker", "CIS - 1.1 - Ensure updates are installed", "", "1.1"},
		{"colon marker", "CIS: 5.2.1 Ensure SSH config", "", "5.2.1"},
		{"bare marker", "CIS 2.3 Disable guest account", "", "2.3"},
		{"benchmark marker", "Benchmark: 3.1.4 Audit something", "", "3.1.4"},
		{"lowercase marker", "cis - 6.1 - Ensure permissions", "", "6.1"},
		{"leading token fallback", "1.4.2 Ensure bootloader password", "", "1.4.2"},
		{"marker in description", "Disk encryption enabled", "Required by CIS 2.6.1", "2.6.1"},
		{"name wins over description", "CIS - 1.1 - Thing", "see CIS 9.9", "1.1"},
		{"no token", "Custom corporate policy", "internal rule", ""},
		{"bare integer is not a control", "10 hosts minimum", "", ""},
		{"version-like token without marker mid-name", "Ensure TLS 1.2 is used", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractCISControl(tt.policyName, tt.description)

			if tt.want == "" {
				assert.Nil(t, got)
				return
			}

			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}
