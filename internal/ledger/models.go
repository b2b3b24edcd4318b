package ledger

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// FeatureType classifies the kind of change a feature represents.
type FeatureType string

const (
	TypeNewFeature  FeatureType = "new_feature"
	TypeBugFix      FeatureType = "bug_fix"
	TypeRefactor    FeatureType = "refactor"
	TypeEnhancement FeatureType = "enhancement"
)

// FeatureTypes lists every valid feature type in display order.
var FeatureTypes = []FeatureType{TypeNewFeature, TypeBugFix, TypeRefactor, TypeEnhancement}

// Valid reports whether t is a known feature type.
func (t FeatureType) Valid() bool {
	for _, v := range FeatureTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of a feature.
type Status string

const (
	StatusRequested              Status = "requested"
	StatusInReview               Status = "in_review"
	StatusAwaitingImplementation Status = "awaiting_implementation"
	StatusAwaitingValidation     Status = "awaiting_validation"
	StatusValidated              Status = "validated"
	StatusSuperseded             Status = "superseded"
)

// Statuses lists every status. The first five form the forward lifecycle.
var Statuses = []Status{
	StatusRequested,
	StatusInReview,
	StatusAwaitingImplementation,
	StatusAwaitingValidation,
	StatusValidated,
	StatusSuperseded,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s.rank() >= 0
}

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusSuperseded
}

func (s Status) rank() int {
	for i, v := range Statuses {
		if v == s {
			return i
		}
	}
	return -1
}

// CanTransition reports whether a feature may move from one status to another.
// Moves go forward along the lifecycle (skipping is allowed); superseded is
// reachable from any non-terminal status. Re-applying the current status is a no-op.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	if from.Terminal() {
		return false
	}
	if to == StatusSuperseded {
		return true
	}
	return to.rank() > from.rank()
}

// RelationType is the label of a directed edge between two features.
type RelationType string

const (
	RelationBuildsOn   RelationType = "builds_on"
	RelationSupersedes RelationType = "supersedes"
	RelationRefactors  RelationType = "refactors"
	RelationFixes      RelationType = "fixes"
)

// RelationTypes lists the relation types the ledger can store.
var RelationTypes = []RelationType{RelationBuildsOn, RelationSupersedes, RelationRefactors, RelationFixes}

// Valid reports whether r is a storable relation type.
func (r RelationType) Valid() bool {
	for _, v := range RelationTypes {
		if v == r {
			return true
		}
	}
	return false
}

// DocumentType identifies the purpose of a document attached to a feature.
type DocumentType string

const (
	DocFeatureRequest     DocumentType = "feature_request"
	DocTechnicalSpec      DocumentType = "technical_architecture_specification"
	DocImplementationPlan DocumentType = "feature_implementation_plan"
)

// DocumentTypes lists every document type.
var DocumentTypes = []DocumentType{DocFeatureRequest, DocTechnicalSpec, DocImplementationPlan}

// Valid reports whether d is a known document type.
func (d DocumentType) Valid() bool {
	for _, v := range DocumentTypes {
		if v == d {
			return true
		}
	}
	return false
}

// TimestampField names the optional date column stamped by a status update.
type TimestampField string

const (
	StampNone        TimestampField = ""
	StampImplemented TimestampField = "date_implemented"
	StampSuperseded  TimestampField = "date_superseded"
)

// Feature is a tracked unit of proposed work.
type Feature struct {
	ID              string      `json:"feature_id" yaml:"feature_id"`
	Type            FeatureType `json:"type" yaml:"type"`
	Status          Status      `json:"status" yaml:"status"`
	Title           string      `json:"title" yaml:"title"`
	Description     string      `json:"description" yaml:"description"`
	Keywords        []string    `json:"keywords" yaml:"keywords"`
	DateCreated     time.Time   `json:"date_created" yaml:"date_created"`
	DateImplemented *time.Time  `json:"date_implemented,omitempty" yaml:"date_implemented,omitempty"`
	DateSuperseded  *time.Time  `json:"date_superseded,omitempty" yaml:"date_superseded,omitempty"`
	CommitHash      string      `json:"commit_hash,omitempty" yaml:"commit_hash,omitempty"`
	ChangedFiles    []string    `json:"changed_files,omitempty" yaml:"changed_files,omitempty"`

	// Populated by GetFeatureByID only.
	Relations         []Relation `json:"relations,omitempty" yaml:"relations,omitempty"`
	IncomingRelations []Relation `json:"incoming_relations,omitempty" yaml:"incoming_relations,omitempty"`
	Documents         []Document `json:"documents,omitempty" yaml:"documents,omitempty"`
}

// Relation is a directed, typed edge between two features.
type Relation struct {
	ID        int64        `json:"id" yaml:"id"`
	FeatureID string       `json:"feature_id" yaml:"feature_id"`
	Type      RelationType `json:"relation_type" yaml:"relation_type"`
	TargetID  string       `json:"target_id" yaml:"target_id"`
}

// Document is a text artifact attached to a feature for a specific purpose.
type Document struct {
	FeatureID string       `json:"feature_id" yaml:"feature_id"`
	Type      DocumentType `json:"document_type" yaml:"document_type"`
	Content   string       `json:"content" yaml:"content"`
	CreatedAt time.Time    `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" yaml:"updated_at"`
}

// RelationInput is an outgoing relation supplied when a feature is created.
type RelationInput struct {
	Type     RelationType
	TargetID string
}

// FeatureInput carries everything AddFeature needs to create a feature.
type FeatureInput struct {
	Type        FeatureType
	Title       string
	Description string
	Keywords    []string
	Relations   []RelationInput

	// InitialDocument is written in the same transaction when set.
	InitialDocument *DocumentInput

	// IdempotencyKey makes creation exactly-once per key when non-empty.
	IdempotencyKey string
}

// DocumentInput is a document to attach during feature creation.
type DocumentInput struct {
	Type    DocumentType
	Content string
}

// Validate checks the input against the enum and required-field constraints.
func (in FeatureInput) Validate() error {
	if !in.Type.Valid() {
		return fmt.Errorf("invalid feature type %q", in.Type)
	}
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("title is required")
	}
	for _, r := range in.Relations {
		if !r.Type.Valid() {
			return fmt.Errorf("invalid relation type %q", r.Type)
		}
		if r.TargetID == "" {
			return fmt.Errorf("relation %s has no target", r.Type)
		}
	}
	if in.InitialDocument != nil && !in.InitialDocument.Type.Valid() {
		return fmt.Errorf("invalid document type %q", in.InitialDocument.Type)
	}
	return nil
}

// Statistics is a read-only aggregate over the ledger.
type Statistics struct {
	ByStatus map[Status]int      `json:"by_status" yaml:"by_status"`
	ByType   map[FeatureType]int `json:"by_type" yaml:"by_type"`
	Total    int                 `json:"total" yaml:"total"`
}

// ListFilter narrows ListFeatures. Zero values match everything.
type ListFilter struct {
	Status Status
	Type   FeatureType
	Limit  int
}

var (
	initialsPattern  = regexp.MustCompile(`^[A-Z]{1,4}$`)
	featureIDPattern = regexp.MustCompile(`^[A-Z]{1,4}-\d{3,}$`)
)

// ValidInitials reports whether s can be used as a feature id prefix.
func ValidInitials(s string) bool {
	return initialsPattern.MatchString(s)
}

// ValidFeatureID reports whether id has the PREFIX-NNN shape.
func ValidFeatureID(id string) bool {
	return featureIDPattern.MatchString(id)
}

// FormatFeatureID renders a sequence number with the given prefix.
func FormatFeatureID(prefix string, seq int) string {
	return fmt.Sprintf("%s-%03d", prefix, seq)
}

// normalizeKeywords trims keywords and drops empties and repeats, keeping first-seen order.
func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, k := range in {
		k = strings.TrimSpace(k)
		if k == "" || seen[strings.ToLower(k)] {
			continue
		}
		seen[strings.ToLower(k)] = true
		out = append(out, k)
	}
	return out
}
