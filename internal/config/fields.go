package config

import (
	"fmt"
	"regexp"
)

// FieldSet lists, per logical attribute, the document field names to try in
// priority order. The first candidate present on a document wins, which lets
// legacy and unified naming schemes coexist.
type FieldSet struct {
	EventSubject      []string `yaml:"event_subject"`
	EventObject       []string `yaml:"event_object"`
	EventCounterparty []string `yaml:"event_counterparty"`
	EventTimestamp    []string `yaml:"event_timestamp"`

	ProposalTitle []string `yaml:"proposal_title"`
	ProposalOwner []string `yaml:"proposal_owner"`

	OwnerName []string `yaml:"owner_name"`

	AcceptanceSubject []string `yaml:"acceptance_subject"`
	AcceptanceObject  []string `yaml:"acceptance_object"`
}

var candidatePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (f *FieldSet) applyDefaults() {
	defaults := []struct {
		target *[]string
		value  []string
	}{
		{&f.EventSubject, []string{"postulanteId"}},
		{&f.EventObject, []string{"propuestaId"}},
		{&f.EventCounterparty, []string{"idEmpleador", "empleadorId"}},
		{&f.EventTimestamp, []string{"timestamp"}},
		{&f.ProposalTitle, []string{"titulo"}},
		{&f.ProposalOwner, []string{"empleadorId", "idEmpleador"}},
		{&f.OwnerName, []string{"nombre"}},
		{&f.AcceptanceSubject, []string{"idPostulante"}},
		{&f.AcceptanceObject, []string{"idPropuesta"}},
	}
	for _, d := range defaults {
		if len(*d.target) == 0 {
			*d.target = append([]string(nil), d.value...)
		}
	}
}

func (f *FieldSet) validate() error {
	groups := map[string][]string{
		"event_subject":      f.EventSubject,
		"event_object":       f.EventObject,
		"event_counterparty": f.EventCounterparty,
		"event_timestamp":    f.EventTimestamp,
		"proposal_title":     f.ProposalTitle,
		"proposal_owner":     f.ProposalOwner,
		"owner_name":         f.OwnerName,
		"acceptance_subject": f.AcceptanceSubject,
		"acceptance_object":  f.AcceptanceObject,
	}
	for group, names := range groups {
		for i, name := range names {
			if !candidatePattern.MatchString(name) {
				return fmt.Errorf("fields.%s[%d]: invalid field name %q", group, i, name)
			}
		}
	}
	return nil
}
