package resume

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	base := Resume{
		Personal: Personal{Name: "Ada"},
		Skills:   []string{"math"},
	}

	next, err := Apply(base, []byte(`{"summary":"Analyst","skills":["math","engines"]}`))
	require.NoError(t, err)
	assert.Equal(t, "Ada", next.Personal.Name, "untouched fields survive")
	assert.Equal(t, "Analyst", next.Summary)
	assert.Equal(t, []string{"math", "engines"}, next.Skills)
	assert.Equal(t, []string{"math"}, base.Skills, "base is not modified")

	_, err = Apply(base, []byte(`{`))
	assert.Error(t, err)
}

func TestApplyNestedObjectMerges(t *testing.T) {
	base := Resume{Personal: Personal{Name: "Ada", Email: "ada@example.com"}}
	next, err := Apply(base, []byte(`{"personal":{"title":"Countess"}}`))
	require.NoError(t, err)
	assert.Equal(t, Personal{Name: "Ada", Email: "ada@example.com", Title: "Countess"}, next.Personal)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		resume   Resume
		problems int
	}{
		{"empty draft", Resume{}, 0},
		{"bad email", Resume{Personal: Personal{Email: "nope"}}, 1},
		{"bad website", Resume{Personal: Personal{Website: "not a url"}}, 1},
		{"experience needs company", Resume{Experience: []Experience{{Role: "Engineer"}}}, 1},
		{"complete", Resume{
			Personal:   Personal{Name: "Ada", Email: "ada@example.com", Website: "https://ada.dev"},
			Experience: []Experience{{Company: "Analytical Engines"}},
			Education:  []Education{{School: "Home"}},
			Projects:   []Project{{Name: "Notes", URL: "https://example.com/notes"}},
		}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, tt.resume.Problems(), tt.problems)
		})
	}
}
