package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/syncforge/syncforge/internal/models"
	"github.com/syncforge/syncforge/internal/util"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// maxStatusMessage bounds the last-test message stored on a binding.
const maxStatusMessage = 500

// RepoFieldFetcher reads the live attribute set of one repository.
type RepoFieldFetcher interface {
	FetchRepoFields(ctx context.Context, token, repository string) ([]string, error)
}

// TableCredentials carries what the table fetcher needs to authenticate.
type TableCredentials struct {
	InstanceURL string
	Username    string
	Password    string
}

// TableFieldFetcher reads the live field dictionary of one table.
type TableFieldFetcher interface {
	FetchTableFields(ctx context.Context, creds TableCredentials, table string) ([]TableField, error)
}

// SecretSource resolves stored secret references to plaintext.
type SecretSource interface {
	Get(ctx context.Context, userID uint64, ref string) (string, error)
}

// Service orchestrates validation, matching, remote schema fetches and
// mapping persistence.
type Service struct {
	db           *gorm.DB
	secrets      SecretSource
	repoFetcher  RepoFieldFetcher
	tableFetcher TableFieldFetcher
}

// NewService constructs a Service.
func NewService(db *gorm.DB, secrets SecretSource, repoFetcher RepoFieldFetcher, tableFetcher TableFieldFetcher) *Service {
	return &Service{db: db, secrets: secrets, repoFetcher: repoFetcher, tableFetcher: tableFetcher}
}

// CreateMappingInput is the request for CreateMapping.
type CreateMappingInput struct {
	UserID       uint64
	Repository   string
	Table        string
	Label        string
	Direction    string
	FieldMapping map[string]string
}

// MappingRecord is a persisted mapping as returned to callers.
type MappingRecord struct {
	ID           uint64            `json:"id"`
	Repository   string            `json:"repository"`
	Table        string            `json:"table"`
	Label        string            `json:"label"`
	Direction    string            `json:"direction"`
	FieldMapping map[string]string `json:"field_mapping"`
	CreatedAt    time.Time         `json:"created_at"`
}

// ValidateInput is the request for ValidateMapping.
type ValidateInput struct {
	UserID       uint64
	Repository   string
	Table        string
	Label        string
	Direction    string
	FieldMapping map[string]string
}

// ValidateResult reports how a caller mapping relates to the live schemas.
// OK depends only on the missing-field lists, never on warnings.
type ValidateResult struct {
	OK                 bool              `json:"ok"`
	SuggestedMapping   map[string]string `json:"suggested_mapping"`
	MissingTableFields []string          `json:"missing_table_fields"`
	MissingRepoFields  []string          `json:"missing_repo_fields"`
	Warnings           []string          `json:"warnings"`
}

// AutoMapInput is the request for AutoMap.
type AutoMapInput struct {
	UserID     uint64
	Repository string
	Table      string
	Label      string
	Direction  string
}

// AutoMapResult carries the matcher output over the live schemas.
type AutoMapResult struct {
	OK      bool              `json:"ok"`
	Mapping map[string]string `json:"mapping"`
	Notes   []string          `json:"notes"`
}

// CreateMapping validates and persists a new mapping. The repository shape
// and direction are checked first, then the field mapping is validated
// structurally, then uniqueness is enforced.
func (s *Service) CreateMapping(ctx context.Context, in CreateMappingInput) (*MappingRecord, error) {
	repository := strings.TrimSpace(in.Repository)
	table := strings.TrimSpace(in.Table)
	label := normalizeLabel(in.Label)

	direction, errDirection := ParseDirection(in.Direction)
	if errDirection != nil {
		return nil, errDirection
	}
	if !strings.Contains(repository, "/") {
		return nil, ErrInvalidRepositoryIdentifier
	}
	if errValidate := Validate(in.FieldMapping, direction); errValidate != nil {
		return nil, errValidate
	}

	var existing models.Mapping
	errFind := s.db.WithContext(ctx).
		Where("user_id = ? AND repository = ? AND table_name = ? AND label = ?", in.UserID, repository, table, label).
		First(&existing).Error
	if errFind == nil {
		return nil, ErrMappingExists
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("mapping: query existing: %w", errFind)
	}

	fieldMapping := in.FieldMapping
	if fieldMapping == nil {
		fieldMapping = map[string]string{}
	}
	encoded, errEncode := json.Marshal(fieldMapping)
	if errEncode != nil {
		return nil, fmt.Errorf("mapping: encode field mapping: %w", errEncode)
	}

	row := models.Mapping{
		UserID:       in.UserID,
		Repository:   repository,
		TableName:    table,
		Label:        label,
		Direction:    string(direction),
		FieldMapping: datatypes.JSON(encoded),
	}
	if errCreate := s.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		// The unique index is the arbiter under concurrent creates.
		return nil, ErrMappingExists
	}

	return recordFromRow(row), nil
}

// ListMappings returns the owner's mappings, most recently created first.
func (s *Service) ListMappings(ctx context.Context, userID uint64) ([]MappingRecord, error) {
	var rows []models.Mapping
	if errFind := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("mapping: list: %w", errFind)
	}

	records := make([]MappingRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, *recordFromRow(row))
	}
	return records, nil
}

// ValidateMapping checks a caller-supplied mapping against the live remote
// schemas. Structural validation runs before any network round trip; the
// matcher output is attached as a suggestion regardless of the caller
// mapping.
func (s *Service) ValidateMapping(ctx context.Context, in ValidateInput) (*ValidateResult, error) {
	repository := strings.TrimSpace(in.Repository)
	table := strings.TrimSpace(in.Table)
	label := normalizeLabel(in.Label)

	direction, errDirection := ParseDirection(in.Direction)
	if errDirection != nil {
		return nil, errDirection
	}
	if !strings.Contains(repository, "/") {
		return nil, ErrInvalidRepositoryIdentifier
	}
	if errValidate := Validate(in.FieldMapping, direction); errValidate != nil {
		return nil, errValidate
	}

	repoFields, tableFields, errFetch := s.fetchSchemas(ctx, in.UserID, repository, table, label)
	if errFetch != nil {
		return nil, errFetch
	}

	repoSet := make(map[string]struct{}, len(repoFields))
	for _, name := range repoFields {
		repoSet[name] = struct{}{}
	}
	tableSet := make(map[string]struct{}, len(tableFields))
	for _, field := range tableFields {
		tableSet[field.Name] = struct{}{}
	}

	keys := make([]string, 0, len(in.FieldMapping))
	for key := range in.FieldMapping {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var missingTable []string
	var missingRepo []string
	seenMissingRepo := make(map[string]struct{})
	for _, key := range keys {
		if _, ok := tableSet[key]; !ok {
			missingTable = append(missingTable, key)
		}
		value := in.FieldMapping[key]
		if _, ok := repoSet[value]; !ok {
			if _, dup := seenMissingRepo[value]; !dup {
				seenMissingRepo[value] = struct{}{}
				missingRepo = append(missingRepo, value)
			}
		}
	}

	var warnings []string
	if direction.requiresTableCoverage() {
		var unmappedRequired []string
		for _, field := range tableFields {
			if !field.Required {
				continue
			}
			if _, ok := in.FieldMapping[field.Name]; !ok {
				unmappedRequired = append(unmappedRequired, field.Name)
			}
		}
		if len(unmappedRequired) > 0 {
			warnings = append(warnings, fmt.Sprintf("required table fields not mapped: %s", strings.Join(unmappedRequired, ", ")))
		}
	}

	suggested, notes := Suggest(tableFields, repoFields)
	warnings = append(warnings, notes...)

	return &ValidateResult{
		OK:                 len(missingTable) == 0 && len(missingRepo) == 0,
		SuggestedMapping:   suggested,
		MissingTableFields: missingTable,
		MissingRepoFields:  missingRepo,
		Warnings:           warnings,
	}, nil
}

// AutoMap runs the matcher over the live schemas without a caller mapping.
func (s *Service) AutoMap(ctx context.Context, in AutoMapInput) (*AutoMapResult, error) {
	repository := strings.TrimSpace(in.Repository)
	table := strings.TrimSpace(in.Table)
	label := normalizeLabel(in.Label)

	if _, errDirection := ParseDirection(in.Direction); errDirection != nil {
		return nil, errDirection
	}
	if !strings.Contains(repository, "/") {
		return nil, ErrInvalidRepositoryIdentifier
	}

	repoFields, tableFields, errFetch := s.fetchSchemas(ctx, in.UserID, repository, table, label)
	if errFetch != nil {
		return nil, errFetch
	}

	suggested, notes := Suggest(tableFields, repoFields)
	return &AutoMapResult{OK: true, Mapping: suggested, Notes: notes}, nil
}

// fetchSchemas resolves both credential bindings, reveals their secrets and
// fetches the live schemas sequentially. Once both bindings are resolved, any
// secret-retrieval or fetch failure marks both bindings failed before the
// error propagates; a full success marks both OK.
func (s *Service) fetchSchemas(ctx context.Context, userID uint64, repository, table, label string) ([]string, []TableField, error) {
	ghBinding, errGH := s.binding(ctx, userID, models.ProviderGitHub, label)
	if errGH != nil {
		return nil, nil, errGH
	}
	snBinding, errSN := s.binding(ctx, userID, models.ProviderServiceNow, label)
	if errSN != nil {
		return nil, nil, errSN
	}

	var snConfig struct {
		InstanceURL string `json:"instance_url"`
		Username    string `json:"username"`
	}
	if errDecode := json.Unmarshal(snBinding.Config, &snConfig); errDecode != nil {
		return nil, nil, fmt.Errorf("%s: %w", models.ProviderServiceNow, ErrCredentialIncomplete)
	}
	if strings.TrimSpace(snConfig.InstanceURL) == "" || strings.TrimSpace(snConfig.Username) == "" {
		return nil, nil, fmt.Errorf("%s: %w", models.ProviderServiceNow, ErrCredentialIncomplete)
	}

	token, errToken := s.secrets.Get(ctx, userID, ghBinding.SecretRef)
	if errToken != nil {
		s.recordTestResult(ctx, ghBinding, false, errToken.Error())
		s.recordTestResult(ctx, snBinding, false, errToken.Error())
		return nil, nil, errToken
	}
	password, errPassword := s.secrets.Get(ctx, userID, snBinding.SecretRef)
	if errPassword != nil {
		s.recordTestResult(ctx, ghBinding, false, errPassword.Error())
		s.recordTestResult(ctx, snBinding, false, errPassword.Error())
		return nil, nil, errPassword
	}

	repoFields, errRepo := s.repoFetcher.FetchRepoFields(ctx, token, repository)
	if errRepo != nil {
		s.recordTestResult(ctx, ghBinding, false, errRepo.Error())
		s.recordTestResult(ctx, snBinding, false, errRepo.Error())
		return nil, nil, &RemoteFetchError{Provider: models.ProviderGitHub, Err: errRepo}
	}

	creds := TableCredentials{
		InstanceURL: snConfig.InstanceURL,
		Username:    snConfig.Username,
		Password:    password,
	}
	tableFields, errTable := s.tableFetcher.FetchTableFields(ctx, creds, table)
	if errTable != nil {
		s.recordTestResult(ctx, ghBinding, false, errTable.Error())
		s.recordTestResult(ctx, snBinding, false, errTable.Error())
		return nil, nil, &RemoteFetchError{Provider: models.ProviderServiceNow, Err: errTable}
	}

	s.recordTestResult(ctx, ghBinding, true, "OK")
	s.recordTestResult(ctx, snBinding, true, "OK")
	return repoFields, tableFields, nil
}

// binding loads one credential binding or fails with
// ErrCredentialNotConfigured.
func (s *Service) binding(ctx context.Context, userID uint64, provider, label string) (*models.Integration, error) {
	var row models.Integration
	errFind := s.db.WithContext(ctx).
		Where("user_id = ? AND provider = ? AND label = ?", userID, provider, label).
		First(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s: %w", provider, ErrCredentialNotConfigured)
		}
		return nil, fmt.Errorf("mapping: query binding: %w", errFind)
	}
	if strings.TrimSpace(row.SecretRef) == "" {
		return nil, fmt.Errorf("%s: %w", provider, ErrCredentialNotConfigured)
	}
	return &row, nil
}

// recordTestResult stores the outcome of a connectivity attempt on a
// binding. It is best-effort: a failure to write the status is logged and
// never escalated past the primary result.
func (s *Service) recordTestResult(ctx context.Context, binding *models.Integration, ok bool, message string) {
	now := time.Now().UTC()
	if errUpdate := s.db.WithContext(ctx).
		Model(&models.Integration{}).
		Where("id = ?", binding.ID).
		Updates(map[string]any{
			"last_tested_at":    now,
			"last_test_ok":      ok,
			"last_test_message": util.Truncate(message, maxStatusMessage),
		}).Error; errUpdate != nil {
		log.WithError(errUpdate).
			WithField("provider", binding.Provider).
			Warn("record credential test result failed")
	}
}

// normalizeLabel trims a label and falls back to "default".
func normalizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "default"
	}
	return label
}

// recordFromRow converts a persisted row to the caller-facing record.
func recordFromRow(row models.Mapping) *MappingRecord {
	fieldMapping := map[string]string{}
	if len(row.FieldMapping) > 0 {
		_ = json.Unmarshal(row.FieldMapping, &fieldMapping)
	}
	return &MappingRecord{
		ID:           row.ID,
		Repository:   row.Repository,
		Table:        row.TableName,
		Label:        row.Label,
		Direction:    row.Direction,
		FieldMapping: fieldMapping,
		CreatedAt:    row.CreatedAt,
	}
}
