// Package resume defines the document the editor autosaves.
package resume

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Resume is the whole editable document.
type Resume struct {
	Personal   Personal     `json:"personal"`
	Summary    string       `json:"summary,omitempty"`
	Experience []Experience `json:"experience,omitempty" validate:"dive"`
	Education  []Education  `json:"education,omitempty" validate:"dive"`
	Skills     []string     `json:"skills,omitempty"`
	Projects   []Project    `json:"projects,omitempty" validate:"dive"`
	Template   string       `json:"template,omitempty"`
}

type Personal struct {
	Name     string `json:"name,omitempty"`
	Title    string `json:"title,omitempty"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
	Website  string `json:"website,omitempty" validate:"omitempty,url"`
}

type Experience struct {
	Company    string   `json:"company" validate:"required"`
	Role       string   `json:"role,omitempty"`
	StartDate  string   `json:"startDate,omitempty"`
	EndDate    string   `json:"endDate,omitempty"`
	Highlights []string `json:"highlights,omitempty"`
}

type Education struct {
	School string `json:"school" validate:"required"`
	Degree string `json:"degree,omitempty"`
	Year   string `json:"year,omitempty"`
}

type Project struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty" validate:"omitempty,url"`
}

// Validate checks the document for publishing. Drafts are saved regardless.
func (r *Resume) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Problems lists validation failures as readable strings.
func (r *Resume) Problems() []string {
	err := r.Validate()
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return out
}

// Apply merges a JSON object onto a copy of r. Fields present in patch
// replace the current value; lists are replaced whole.
func Apply(r Resume, patch []byte) (Resume, error) {
	next, err := Clone(r)
	if err != nil {
		return Resume{}, err
	}
	if err := json.Unmarshal(patch, &next); err != nil {
		return Resume{}, fmt.Errorf("apply patch: %w", err)
	}
	return next, nil
}

// Clone returns a deep copy of r.
func Clone(r Resume) (Resume, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return Resume{}, fmt.Errorf("clone resume: %w", err)
	}
	var out Resume
	if err := json.Unmarshal(data, &out); err != nil {
		return Resume{}, fmt.Errorf("clone resume: %w", err)
	}
	return out, nil
}
