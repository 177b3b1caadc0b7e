package models

// ReconcileConfig is the static configuration supplied at process start.
// Read-only for the duration of a batch; batches are independent units of
// work, so no process-wide mutable state is needed.
type ReconcileConfig struct {
	// Matching
	AcceptThreshold float64 `json:"accept_threshold" validate:"required,gt=0,lte=1"`
	ReviewThreshold float64 `json:"review_threshold" validate:"required,gt=0,ltefield=AcceptThreshold"`
	NameWeight      float64 `json:"name_weight" validate:"gte=0,lte=1"`

	// Clustering
	MaxClusterSize int `json:"max_cluster_size" validate:"required,min=2"`

	// Merge ordering: higher priority = more trusted. Unlisted sources get 0.
	SourcePriorities map[string]int `json:"source_priorities,omitempty"`

	// Attribute mapping for the builtin bases
	NameField        string `json:"name_field"`
	EmailField       string `json:"email_field"`
	LicenseField     string `json:"license_field"`
	InstitutionField string `json:"institution_field"`

	// Normalization / validation
	RequiredAttributes    []string      `json:"required_attributes,omitempty"`
	Schema                *RecordSchema `json:"schema,omitempty"`
	FingerprintExclusions []string      `json:"fingerprint_exclusions,omitempty"`

	// RollbackRetention is the total number of committed batches whose rollback
	// entries are kept, counting the batch just committed. A value of N means
	// the current batch plus the N-1 before it can still be undone.
	RollbackRetention int `json:"rollback_retention" validate:"required,min=1"`

	// Rules
	Rules            []RuleDefinition   `json:"rules"`
	DimensionWeights map[string]float64 `json:"dimension_weights,omitempty"`

	// Workers for bucket-parallel matching
	MatchWorkers int `json:"match_workers" validate:"min=0"`

	// Per-batch wall-clock limit. Zero disables the limit.
	BatchTimeoutSeconds int `json:"batch_timeout_seconds" validate:"min=0"`
}

// Defaults used when the corresponding config value is zero
const (
	DefaultNameField        = "full_name"
	DefaultEmailField       = "email"
	DefaultLicenseField     = "license_number"
	DefaultInstitutionField = "institution"
	DefaultNameWeight       = 0.8
	DefaultMatchWorkers     = 4
)

// WithDefaults returns a copy with unset optional fields filled in.
func (c ReconcileConfig) WithDefaults() ReconcileConfig {
	if c.NameField == "" {
		c.NameField = DefaultNameField
	}
	if c.EmailField == "" {
		c.EmailField = DefaultEmailField
	}
	if c.LicenseField == "" {
		c.LicenseField = DefaultLicenseField
	}
	if c.InstitutionField == "" {
		c.InstitutionField = DefaultInstitutionField
	}
	if c.NameWeight == 0 {
		c.NameWeight = DefaultNameWeight
	}
	if c.MatchWorkers == 0 {
		c.MatchWorkers = DefaultMatchWorkers
	}
	return c
}

// Priority returns the configured trust priority for a source.
func (c ReconcileConfig) Priority(sourceID string) int {
	return c.SourcePriorities[sourceID]
}
