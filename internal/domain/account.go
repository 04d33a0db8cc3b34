/**
 * @description
 * Directory account model and the relation (custom attribute) helpers the
 * lifecycle logic is built on. Relations are not upsert-by-key on the
 * directory side, so every write that replaces one must filter the existing
 * set by custom type before appending.
 */
package domain

import "time"

// Relation custom types used by the lifecycle.
const (
	RelationManager                  = "manager"
	RelationConfirmationDate         = "confirmation_date"
	RelationScheduledForDeactivation = "scheduled_for_deactivation"
)

// Relation is a typed key/value attribute attached to a directory account.
type Relation struct {
	Type       string `json:"type"`
	CustomType string `json:"customType,omitempty"`
	Value      string `json:"value"`
}

// TypedEmail is a secondary address entry on a directory account.
type TypedEmail struct {
	Type    string `json:"type"`
	Address string `json:"address"`
}

// TypedPhone is a phone entry on a directory account.
type TypedPhone struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// AccountName holds the structured name of a directory account.
type AccountName struct {
	FullName   string `json:"fullName,omitempty"`
	GivenName  string `json:"givenName"`
	FamilyName string `json:"familyName"`
}

// Account is an authoritative directory account object.
type Account struct {
	PrimaryEmail              string       `json:"primaryEmail"`
	Name                      AccountName  `json:"name"`
	OrgUnitPath               string       `json:"orgUnitPath"`
	Suspended                 bool         `json:"suspended"`
	ChangePasswordAtNextLogin bool         `json:"changePasswordAtNextLogin"`
	Password                  string       `json:"password,omitempty"`
	RecoveryEmail             string       `json:"recoveryEmail,omitempty"`
	RecoveryPhone             string       `json:"recoveryPhone,omitempty"`
	CreationTime              time.Time    `json:"creationTime,omitempty"`
	LastLoginTime             time.Time    `json:"lastLoginTime,omitempty"`
	Relations                 []Relation   `json:"relations,omitempty"`
	Emails                    []TypedEmail `json:"emails,omitempty"`
	Phones                    []TypedPhone `json:"phones,omitempty"`
}

// FindRelation returns the value of the first relation with the given custom
// type and whether one was present.
func FindRelation(relations []Relation, customType string) (string, bool) {
	for _, r := range relations {
		if r.CustomType == customType {
			return r.Value, true
		}
	}
	return "", false
}

// FindRelationType returns the value of the first relation with the given
// standard type (e.g. manager) and whether one was present.
func FindRelationType(relations []Relation, relationType string) (string, bool) {
	for _, r := range relations {
		if r.Type == relationType {
			return r.Value, true
		}
	}
	return "", false
}

// WithoutRelationType returns the relation set with every relation of the
// given standard type removed.
func WithoutRelationType(relations []Relation, relationType string) []Relation {
	out := make([]Relation, 0, len(relations))
	for _, r := range relations {
		if r.Type != relationType {
			out = append(out, r)
		}
	}
	return out
}

// WithoutRelation returns the relation set with every relation of the given
// custom type removed.
func WithoutRelation(relations []Relation, customType string) []Relation {
	out := make([]Relation, 0, len(relations))
	for _, r := range relations {
		if r.CustomType != customType {
			out = append(out, r)
		}
	}
	return out
}

// ReplaceRelation removes every relation of the given custom type and appends
// a single fresh one, so repeated writes never accumulate duplicates.
func ReplaceRelation(relations []Relation, customType, value string) []Relation {
	return append(WithoutRelation(relations, customType), Relation{
		Type:       "custom",
		CustomType: customType,
		Value:      value,
	})
}

// NeverLoggedIn reports whether the directory marks the account as never
// activated. The directory uses the Unix epoch as a sentinel last-login for
// such accounts; a missing last-login time means the field could not be read
// and is not treated as inactivity.
func (a *Account) NeverLoggedIn() bool {
	if a.LastLoginTime.IsZero() {
		return false
	}
	return a.LastLoginTime.Unix() == 0
}

// ScheduledDeactivationDeadline parses the scheduled_for_deactivation
// relation, if any.
func (a *Account) ScheduledDeactivationDeadline() (time.Time, bool) {
	raw, ok := FindRelation(a.Relations, RelationScheduledForDeactivation)
	if !ok {
		return time.Time{}, false
	}
	deadline, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return deadline, true
}
